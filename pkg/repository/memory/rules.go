package memory

import (
	"context"

	"github.com/advisim-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/advisim-lab/mnemosyne/pkg/domain/model"
)

type ruleRepository struct {
	store *vectorStore[model.Rule]
}

var _ interfaces.RuleRepository = &ruleRepository{}

func newRuleRepository(dimension int) *ruleRepository {
	return &ruleRepository{
		store: newVectorStore(dimension, recordFuncs[model.Rule]{
			id:        func(r *model.Rule) string { return string(r.ID) },
			embedding: func(r *model.Rule) []float32 { return r.Embedding },
			clone:     func(r *model.Rule) *model.Rule { return r.Clone() },
			seq:       func(r *model.Rule) int64 { return r.Seq },
			setSeq:    func(r *model.Rule, seq int64) { r.Seq = seq },
		}),
	}
}

func (r *ruleRepository) Put(ctx context.Context, rule *model.Rule) error {
	return r.store.put(rule)
}

func (r *ruleRepository) Get(ctx context.Context, id model.RuleID) (*model.Rule, error) {
	return r.store.get(string(id)), nil
}

func (r *ruleRepository) Delete(ctx context.Context, id model.RuleID) error {
	r.store.delete(string(id))
	return nil
}

func (r *ruleRepository) List(ctx context.Context) ([]*model.Rule, error) {
	return r.store.list(nil), nil
}

func (r *ruleRepository) FindByEmbedding(ctx context.Context, embedding []float32, limit int, opts ...interfaces.FindRulesOption) ([]*model.RuleMatch, error) {
	cfg := interfaces.BuildFindRulesConfig(opts...)

	var filter func(*model.Rule) bool
	if domain := cfg.Domain(); domain != nil {
		filter = func(r *model.Rule) bool { return r.Domain == *domain }
	}

	matches := r.store.find(embedding, limit, filter)
	result := make([]*model.RuleMatch, len(matches))
	for i, m := range matches {
		result[i] = &model.RuleMatch{Rule: m.record, Similarity: m.similarity}
	}
	return result, nil
}
