package core

import (
	"context"
	"fmt"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"

	"github.com/advisim-lab/mnemosyne/pkg/agent/tool"
	"github.com/advisim-lab/mnemosyne/pkg/domain/model"
	"github.com/advisim-lab/mnemosyne/pkg/domain/types"
	"github.com/advisim-lab/mnemosyne/pkg/service/embedding"
	"github.com/advisim-lab/mnemosyne/pkg/service/recall"
)

const defaultTopK = 5

// retrieveContextTool assembles the full scored context bundle for a query
type retrieveContextTool struct {
	memories *recall.MemoryIndex
	cases    *recall.CaseIndex
	rules    *recall.RuleIndex
	embedder embedding.Service
	weights  model.RetrievalWeights
}

func (t *retrieveContextTool) Spec() gollem.ToolSpec {
	return gollem.ToolSpec{
		Name:        "core__retrieve_context",
		Description: "Retrieve scored consultation context for a query: relevant memories (weighted by recency, importance, and similarity), similar past cases, and applicable advice rules. Retrieval advances the last-accessed time of the returned memories.",
		Parameters: map[string]*gollem.Parameter{
			"query": {
				Type:        gollem.TypeString,
				Description: "The client question or situation to retrieve context for",
				Required:    true,
			},
			"top_k": {
				Type:        gollem.TypeInteger,
				Description: "Maximum number of results per section (default: 5)",
				Required:    false,
			},
			"phase": {
				Type:        gollem.TypeString,
				Description: "Current consultation phase (e.g. fact_finding, recommendation); boosts cases demonstrating it",
				Required:    false,
			},
			"task_type": {
				Type:        gollem.TypeString,
				Description: "Restrict case search to this task type",
				Required:    false,
			},
			"domain": {
				Type:        gollem.TypeString,
				Description: "Restrict rule search to this domain",
				Required:    false,
			},
			"min_confidence": {
				Type:        gollem.TypeNumber,
				Description: "Drop rules below this confidence (default: 0)",
				Required:    false,
			},
		},
	}
}

func (t *retrieveContextTool) Run(ctx context.Context, args map[string]any) (map[string]any, error) {
	query, _ := args["query"].(string)
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}

	tool.Update(ctx, fmt.Sprintf("Retrieving context: %s", query))

	topK := defaultTopK
	if v, err := extractInt64(args, "top_k"); err == nil && v > 0 {
		topK = int(v)
	}

	queryEmbedding, err := t.embedder.Embed(ctx, query)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate embedding for query")
	}

	memories, err := t.memories.RetrieveAndTouch(ctx, queryEmbedding, topK, t.weights, time.Now())
	if err != nil {
		return nil, goerr.Wrap(err, "failed to retrieve memories")
	}

	var caseOpts []recall.CaseOption
	if taskType, _ := args["task_type"].(string); taskType != "" {
		caseOpts = append(caseOpts, recall.WithTaskType(taskType))
	}
	if phase, _ := args["phase"].(string); phase != "" {
		caseOpts = append(caseOpts, recall.WithConversationContext(&model.ConversationContext{
			Phase: types.ConsultationPhase(phase),
		}))
	}
	cases, err := t.cases.Retrieve(ctx, queryEmbedding, topK, caseOpts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to retrieve cases")
	}

	var ruleOpts []recall.RuleOption
	if domain, _ := args["domain"].(string); domain != "" {
		ruleOpts = append(ruleOpts, recall.WithDomain(domain))
	}
	if v, err := extractFloat64(args, "min_confidence"); err == nil && v > 0 {
		ruleOpts = append(ruleOpts, recall.WithMinConfidence(v))
	}
	rules, err := t.rules.Retrieve(ctx, queryEmbedding, topK, ruleOpts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to retrieve rules")
	}

	memoryItems := make([]map[string]any, len(memories))
	for i, m := range memories {
		memoryItems[i] = map[string]any{
			"id":          string(m.Memory.ID),
			"description": m.Memory.Description,
			"kind":        m.Memory.Kind.String(),
			"importance":  m.Memory.Importance,
			"score":       m.Score,
		}
	}

	caseItems := make([]map[string]any, len(cases))
	for i, c := range cases {
		caseItems[i] = map[string]any{
			"id":          string(c.Case.ID),
			"task_type":   c.Case.TaskType,
			"situation":   c.Case.Situation,
			"guidance":    c.Case.Guidance,
			"final_score": c.FinalScore,
		}
	}

	ruleItems := make([]map[string]any, len(rules))
	for i, r := range rules {
		ruleItems[i] = map[string]any{
			"id":             string(r.Rule.ID),
			"principle":      r.Rule.Principle,
			"domain":         r.Rule.Domain,
			"confidence":     r.Rule.Confidence,
			"weighted_score": r.WeightedScore,
		}
	}

	return map[string]any{
		"memories":  memoryItems,
		"cases":     caseItems,
		"rules":     ruleItems,
		"rationale": recall.Rationale(memories, cases, rules, recall.RetrievalFailures{}),
	}, nil
}
