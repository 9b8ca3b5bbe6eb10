package recall

import (
	"context"
	"sort"

	"github.com/m-mizutani/goerr/v2"

	"github.com/advisim-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/advisim-lab/mnemosyne/pkg/domain/model"
)

// RuleIndex retrieves distilled rules weighted by their confidence
type RuleIndex struct {
	repo interfaces.RuleRepository
}

// NewRuleIndex creates a RuleIndex over the given repository
func NewRuleIndex(repo interfaces.RuleRepository) *RuleIndex {
	return &RuleIndex{repo: repo}
}

// Add validates the rule and stores it
func (x *RuleIndex) Add(ctx context.Context, rule *model.Rule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	return x.repo.Put(ctx, rule)
}

// Get retrieves a rule by ID, nil when absent
func (x *RuleIndex) Get(ctx context.Context, id model.RuleID) (*model.Rule, error) {
	return x.repo.Get(ctx, id)
}

// Delete removes a rule by ID
func (x *RuleIndex) Delete(ctx context.Context, id model.RuleID) error {
	return x.repo.Delete(ctx, id)
}

// Retrieve returns the topK rules for the query ranked by
// similarity * confidence. The index over-fetches twice the requested
// size so that high-confidence rules slightly farther from the query
// can still surface, and drops rules below the configured minimum
// confidence.
func (x *RuleIndex) Retrieve(ctx context.Context, query []float32, topK int, opts ...RuleOption) ([]*model.RuleResult, error) {
	if topK <= 0 {
		return []*model.RuleResult{}, nil
	}
	cfg := buildRuleConfig(opts)

	var findOpts []interfaces.FindRulesOption
	if cfg.domain != nil {
		findOpts = append(findOpts, interfaces.WithDomain(*cfg.domain))
	}

	matches, err := x.repo.FindByEmbedding(ctx, query, topK*2, findOpts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to search rules")
	}

	results := make([]*model.RuleResult, 0, len(matches))
	for _, match := range matches {
		if match.Rule.Confidence < cfg.minConfidence {
			continue
		}
		results = append(results, &model.RuleResult{
			Rule:          match.Rule,
			Similarity:    match.Similarity,
			WeightedScore: match.Similarity * match.Rule.Confidence,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].WeightedScore != results[j].WeightedScore {
			return results[i].WeightedScore > results[j].WeightedScore
		}
		return results[i].Rule.ID < results[j].Rule.ID
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}
