package recall_test

import (
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/advisim-lab/mnemosyne/pkg/domain/model"
	"github.com/advisim-lab/mnemosyne/pkg/domain/types"
	"github.com/advisim-lab/mnemosyne/pkg/service/recall"
)

func memResult(kind types.MemoryKind) *model.MemoryResult {
	return &model.MemoryResult{Memory: &model.Memory{ID: model.NewMemoryID(), Kind: kind}}
}

func caseResult(taskType string) *model.CaseResult {
	return &model.CaseResult{Case: &model.Case{ID: model.NewCaseID(), TaskType: taskType}}
}

func ruleResult(confidence float64) *model.RuleResult {
	return &model.RuleResult{Rule: &model.Rule{ID: model.NewRuleID(), Confidence: confidence}}
}

func TestRationale(t *testing.T) {
	t.Run("empty bundle without failures", func(t *testing.T) {
		got := recall.Rationale(nil, nil, nil, recall.RetrievalFailures{})
		gt.Value(t, got).Equal("No relevant context found for this consultation.")
	})

	t.Run("memory kinds in fixed order with zero counts omitted", func(t *testing.T) {
		memories := []*model.MemoryResult{
			memResult(types.MemoryKindPlan),
			memResult(types.MemoryKindObservation),
			memResult(types.MemoryKindObservation),
		}
		got := recall.Rationale(memories, nil, nil, recall.RetrievalFailures{})
		gt.Value(t, got).Equal("Retrieved 3 memories (observation=2, plan=1).")
	})

	t.Run("full bundle", func(t *testing.T) {
		memories := []*model.MemoryResult{
			memResult(types.MemoryKindObservation),
			memResult(types.MemoryKindReflection),
		}
		cases := []*model.CaseResult{
			caseResult("retirement_planning"),
			caseResult("budgeting"),
			caseResult("retirement_planning"),
		}
		rules := []*model.RuleResult{
			ruleResult(0.9),
			ruleResult(0.74),
		}
		got := recall.Rationale(memories, cases, rules, recall.RetrievalFailures{})
		gt.Value(t, got).Equal("Retrieved 2 memories (observation=1, reflection=1); " +
			"3 cases covering task types [budgeting, retirement_planning]; " +
			"2 rules (avg confidence 0.82).")
	})

	t.Run("cases with empty task type count but add no tag", func(t *testing.T) {
		cases := []*model.CaseResult{
			caseResult("pension_transfer"),
			caseResult(""),
		}
		got := recall.Rationale(nil, cases, nil, recall.RetrievalFailures{})
		gt.Value(t, got).Equal("Retrieved 2 cases covering task types [pension_transfer].")

		got = recall.Rationale(nil, []*model.CaseResult{caseResult(""), caseResult("")}, nil, recall.RetrievalFailures{})
		gt.Value(t, got).Equal("Retrieved 2 cases covering task types [].")
	})

	t.Run("failure parts follow data parts", func(t *testing.T) {
		memories := []*model.MemoryResult{memResult(types.MemoryKindPlan)}
		got := recall.Rationale(memories, nil, nil, recall.RetrievalFailures{Rules: true})
		gt.Value(t, got).Equal("Retrieved 1 memories (plan=1); rule retrieval unavailable.")
	})

	t.Run("only failures", func(t *testing.T) {
		got := recall.Rationale(nil, nil, nil, recall.RetrievalFailures{Memories: true, Cases: true, Rules: true})
		gt.Value(t, got).Equal("No context retrieved: memory retrieval unavailable; case retrieval unavailable; rule retrieval unavailable.")
	})
}
