package recall_test

import (
	"context"
	"errors"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/advisim-lab/mnemosyne/pkg/domain/model"
	"github.com/advisim-lab/mnemosyne/pkg/repository/memory"
	"github.com/advisim-lab/mnemosyne/pkg/service/recall"
)

func newRuleIndex() *recall.RuleIndex {
	repo := memory.New(memory.WithDimension(3))
	return recall.NewRuleIndex(repo.Rules())
}

func TestRuleIndex_Retrieve_WeightedScore(t *testing.T) {
	ctx := context.Background()
	idx := newRuleIndex()

	shaky := &model.Rule{
		ID:         model.NewRuleID(),
		Principle:  "close but shaky",
		Confidence: 0.5,
		Embedding:  embeddingWithSimilarity(1.0),
	}
	solid := &model.Rule{
		ID:         model.NewRuleID(),
		Principle:  "farther but solid",
		Confidence: 0.9,
		Embedding:  embeddingWithSimilarity(0.8),
	}
	gt.NoError(t, idx.Add(ctx, shaky)).Required()
	gt.NoError(t, idx.Add(ctx, solid)).Required()

	results, err := idx.Retrieve(ctx, queryAxis, 2)
	gt.NoError(t, err).Required()
	gt.Array(t, results).Length(2).Required()

	// 0.8*0.9 = 0.72 beats 1.0*0.5 = 0.5
	gt.Value(t, results[0].Rule.Principle).Equal("farther but solid")
	gt.Bool(t, almostEqual(results[0].WeightedScore, 0.72)).True()
	gt.Value(t, results[1].Rule.Principle).Equal("close but shaky")
	gt.Bool(t, almostEqual(results[1].WeightedScore, 0.5)).True()
}

func TestRuleIndex_Retrieve_MinConfidence(t *testing.T) {
	ctx := context.Background()
	idx := newRuleIndex()

	weak := &model.Rule{
		ID:         model.NewRuleID(),
		Principle:  "weak",
		Confidence: 0.5,
		Embedding:  embeddingWithSimilarity(1.0),
	}
	strong := &model.Rule{
		ID:         model.NewRuleID(),
		Principle:  "strong",
		Confidence: 0.8,
		Embedding:  embeddingWithSimilarity(0.7),
	}
	gt.NoError(t, idx.Add(ctx, weak)).Required()
	gt.NoError(t, idx.Add(ctx, strong)).Required()

	results, err := idx.Retrieve(ctx, queryAxis, 5, recall.WithMinConfidence(0.6))
	gt.NoError(t, err).Required()
	gt.Array(t, results).Length(1).Required()
	gt.Value(t, results[0].Rule.Principle).Equal("strong")
}

func TestRuleIndex_Retrieve_OverFetchSurfacesSolidRules(t *testing.T) {
	ctx := context.Background()
	idx := newRuleIndex()

	// Nearest by similarity, but nearly worthless confidence
	nearest := &model.Rule{
		ID:         model.NewRuleID(),
		Principle:  "nearest",
		Confidence: 0.1,
		Embedding:  embeddingWithSimilarity(0.95),
	}
	// Second by similarity, only reachable through the over-fetch
	runnerUp := &model.Rule{
		ID:         model.NewRuleID(),
		Principle:  "runner up",
		Confidence: 0.9,
		Embedding:  embeddingWithSimilarity(0.85),
	}
	gt.NoError(t, idx.Add(ctx, nearest)).Required()
	gt.NoError(t, idx.Add(ctx, runnerUp)).Required()

	results, err := idx.Retrieve(ctx, queryAxis, 1)
	gt.NoError(t, err).Required()
	gt.Array(t, results).Length(1).Required()
	gt.Value(t, results[0].Rule.Principle).Equal("runner up")
}

func TestRuleIndex_Retrieve_DomainFilter(t *testing.T) {
	ctx := context.Background()
	idx := newRuleIndex()

	retirement := &model.Rule{
		ID:         model.NewRuleID(),
		Principle:  "retirement",
		Domain:     "retirement_planning",
		Confidence: 0.9,
		Embedding:  embeddingWithSimilarity(0.9),
	}
	insurance := &model.Rule{
		ID:         model.NewRuleID(),
		Principle:  "insurance",
		Domain:     "insurance",
		Confidence: 0.9,
		Embedding:  embeddingWithSimilarity(0.8),
	}
	gt.NoError(t, idx.Add(ctx, retirement)).Required()
	gt.NoError(t, idx.Add(ctx, insurance)).Required()

	results, err := idx.Retrieve(ctx, queryAxis, 5, recall.WithDomain("insurance"))
	gt.NoError(t, err).Required()
	gt.Array(t, results).Length(1).Required()
	gt.Value(t, results[0].Rule.ID).Equal(insurance.ID)
}

func TestRuleIndex_Retrieve_TopKZero(t *testing.T) {
	ctx := context.Background()
	idx := newRuleIndex()

	rule := &model.Rule{
		ID:         model.NewRuleID(),
		Principle:  "present",
		Confidence: 0.9,
		Embedding:  embeddingWithSimilarity(0.9),
	}
	gt.NoError(t, idx.Add(ctx, rule)).Required()

	results, err := idx.Retrieve(ctx, queryAxis, -1)
	gt.NoError(t, err).Required()
	gt.Array(t, results).Length(0)
}

func TestRuleIndex_Add_Validates(t *testing.T) {
	ctx := context.Background()
	idx := newRuleIndex()

	err := idx.Add(ctx, &model.Rule{
		ID:         model.NewRuleID(),
		Principle:  "confidence out of range",
		Confidence: 1.5,
	})
	gt.Error(t, err)
	gt.Bool(t, errors.Is(err, model.ErrInvalidRecord)).True()
}
