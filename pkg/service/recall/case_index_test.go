package recall_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/advisim-lab/mnemosyne/pkg/domain/model"
	"github.com/advisim-lab/mnemosyne/pkg/domain/types"
	"github.com/advisim-lab/mnemosyne/pkg/repository/memory"
	"github.com/advisim-lab/mnemosyne/pkg/service/recall"
)

func newCaseIndex() *recall.CaseIndex {
	repo := memory.New(memory.WithDimension(3))
	return recall.NewCaseIndex(repo.Cases())
}

// embeddingWithSimilarity builds a unit vector whose cosine similarity
// with [1, 0, 0] is sim
func embeddingWithSimilarity(sim float64) []float32 {
	return []float32{float32(sim), float32(math.Sqrt(1 - sim*sim)), 0}
}

var queryAxis = []float32{1, 0, 0}

func TestCaseIndex_Retrieve_NoContext(t *testing.T) {
	ctx := context.Background()
	idx := newCaseIndex()

	quality := 0.95
	near := &model.Case{
		ID:        model.NewCaseID(),
		Situation: "near",
		Embedding: embeddingWithSimilarity(0.9),
		Meta:      model.CaseMeta{ConversationalQuality: &quality},
	}
	far := &model.Case{
		ID:        model.NewCaseID(),
		Situation: "far",
		Embedding: embeddingWithSimilarity(0.5),
	}
	gt.NoError(t, idx.Add(ctx, near)).Required()
	gt.NoError(t, idx.Add(ctx, far)).Required()

	results, err := idx.Retrieve(ctx, queryAxis, 2)
	gt.NoError(t, err).Required()
	gt.Array(t, results).Length(2).Required()

	// Without a conversation context nothing is boosted, not even
	// high quality cases
	gt.Value(t, results[0].Case.Situation).Equal("near")
	gt.Value(t, results[0].Boost).Equal(0.0)
	gt.Value(t, results[0].FinalScore).Equal(results[0].Similarity)
	gt.Value(t, results[1].Boost).Equal(0.0)
}

func TestCaseIndex_Retrieve_ConversationBoost(t *testing.T) {
	ctx := context.Background()
	idx := newCaseIndex()

	quality := 0.9
	c := &model.Case{
		ID:        model.NewCaseID(),
		Situation: "boosted",
		Embedding: embeddingWithSimilarity(0.6),
		Meta: model.CaseMeta{
			ConversationalQuality: &quality,
			DialogueTechniques: model.DialogueTechniques{
				PhasesCovered: []types.ConsultationPhase{types.PhaseFactFinding},
			},
		},
	}
	gt.NoError(t, idx.Add(ctx, c)).Required()

	conversation := &model.ConversationContext{Phase: types.PhaseFactFinding}
	results, err := idx.Retrieve(ctx, queryAxis, 1, recall.WithConversationContext(conversation))
	gt.NoError(t, err).Required()
	gt.Array(t, results).Length(1).Required()

	// similarity 0.6, +0.2 quality, +0.1 phase
	gt.Bool(t, almostEqual(results[0].Similarity, 0.6)).True()
	gt.Bool(t, almostEqual(results[0].Boost, 0.3)).True()
	gt.Bool(t, almostEqual(results[0].FinalScore, 0.9)).True()
}

func TestCaseIndex_Retrieve_BoostRerank(t *testing.T) {
	ctx := context.Background()
	idx := newCaseIndex()

	plain := &model.Case{
		ID:        model.NewCaseID(),
		Situation: "plain but close",
		Embedding: embeddingWithSimilarity(0.9),
	}
	quality := 0.9
	boosted := &model.Case{
		ID:        model.NewCaseID(),
		Situation: "farther but boosted",
		Embedding: embeddingWithSimilarity(0.75),
		Meta: model.CaseMeta{
			ConversationalQuality: &quality,
			DialogueTechniques: model.DialogueTechniques{
				PhasesCovered: []types.ConsultationPhase{types.PhaseClosing},
			},
		},
	}
	gt.NoError(t, idx.Add(ctx, plain)).Required()
	gt.NoError(t, idx.Add(ctx, boosted)).Required()

	conversation := &model.ConversationContext{Phase: types.PhaseClosing}
	results, err := idx.Retrieve(ctx, queryAxis, 1, recall.WithConversationContext(conversation))
	gt.NoError(t, err).Required()
	gt.Array(t, results).Length(1).Required()

	// 0.75 + 0.3 = 1.05 beats 0.9
	gt.Value(t, results[0].Case.Situation).Equal("farther but boosted")
	gt.Bool(t, almostEqual(results[0].FinalScore, 1.05)).True()
}

func TestCaseIndex_Retrieve_QualityThresholdIsStrict(t *testing.T) {
	ctx := context.Background()
	idx := newCaseIndex()

	atThreshold := 0.7
	c := &model.Case{
		ID:        model.NewCaseID(),
		Situation: "exactly at threshold",
		Embedding: embeddingWithSimilarity(0.8),
		Meta:      model.CaseMeta{ConversationalQuality: &atThreshold},
	}
	gt.NoError(t, idx.Add(ctx, c)).Required()

	conversation := &model.ConversationContext{Phase: types.PhaseIntroduction}
	results, err := idx.Retrieve(ctx, queryAxis, 1, recall.WithConversationContext(conversation))
	gt.NoError(t, err).Required()
	gt.Array(t, results).Length(1).Required()
	gt.Value(t, results[0].Boost).Equal(0.0)
}

func TestCaseIndex_Retrieve_PhaseBoostNeedsAPhase(t *testing.T) {
	ctx := context.Background()
	idx := newCaseIndex()

	c := &model.Case{
		ID:        model.NewCaseID(),
		Situation: "covers phases",
		Embedding: embeddingWithSimilarity(0.8),
		Meta: model.CaseMeta{
			DialogueTechniques: model.DialogueTechniques{
				PhasesCovered: []types.ConsultationPhase{types.PhaseIntroduction, types.PhaseClosing},
			},
		},
	}
	gt.NoError(t, idx.Add(ctx, c)).Required()

	// Conversation context without a phase
	conversation := &model.ConversationContext{EmotionalState: "anxious"}
	results, err := idx.Retrieve(ctx, queryAxis, 1, recall.WithConversationContext(conversation))
	gt.NoError(t, err).Required()
	gt.Array(t, results).Length(1).Required()
	gt.Value(t, results[0].Boost).Equal(0.0)
}

func TestCaseIndex_Retrieve_TaskTypeFilter(t *testing.T) {
	ctx := context.Background()
	idx := newCaseIndex()

	review := &model.Case{
		ID:        model.NewCaseID(),
		TaskType:  "portfolio_review",
		Situation: "review",
		Embedding: embeddingWithSimilarity(0.9),
	}
	claim := &model.Case{
		ID:        model.NewCaseID(),
		TaskType:  "claim_handling",
		Situation: "claim",
		Embedding: embeddingWithSimilarity(0.8),
	}
	gt.NoError(t, idx.Add(ctx, review)).Required()
	gt.NoError(t, idx.Add(ctx, claim)).Required()

	results, err := idx.Retrieve(ctx, queryAxis, 5, recall.WithTaskType("claim_handling"))
	gt.NoError(t, err).Required()
	gt.Array(t, results).Length(1).Required()
	gt.Value(t, results[0].Case.ID).Equal(claim.ID)
}

func TestCaseIndex_Retrieve_TopKZero(t *testing.T) {
	ctx := context.Background()
	idx := newCaseIndex()

	c := &model.Case{
		ID:        model.NewCaseID(),
		Situation: "present",
		Embedding: embeddingWithSimilarity(0.9),
	}
	gt.NoError(t, idx.Add(ctx, c)).Required()

	results, err := idx.Retrieve(ctx, queryAxis, 0)
	gt.NoError(t, err).Required()
	gt.Array(t, results).Length(0)
}

func TestCaseIndex_Add_Validates(t *testing.T) {
	ctx := context.Background()
	idx := newCaseIndex()

	err := idx.Add(ctx, &model.Case{ID: model.NewCaseID()})
	gt.Error(t, err)
	gt.Bool(t, errors.Is(err, model.ErrInvalidRecord)).True()
}
