package memory

import (
	"context"

	"github.com/advisim-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/advisim-lab/mnemosyne/pkg/domain/model"
)

type caseRepository struct {
	store *vectorStore[model.Case]
}

var _ interfaces.CaseRepository = &caseRepository{}

func newCaseRepository(dimension int) *caseRepository {
	return &caseRepository{
		store: newVectorStore(dimension, recordFuncs[model.Case]{
			id:        func(c *model.Case) string { return string(c.ID) },
			embedding: func(c *model.Case) []float32 { return c.Embedding },
			clone:     func(c *model.Case) *model.Case { return c.Clone() },
			seq:       func(c *model.Case) int64 { return c.Seq },
			setSeq:    func(c *model.Case, seq int64) { c.Seq = seq },
		}),
	}
}

func (r *caseRepository) Put(ctx context.Context, c *model.Case) error {
	return r.store.put(c)
}

func (r *caseRepository) Get(ctx context.Context, id model.CaseID) (*model.Case, error) {
	return r.store.get(string(id)), nil
}

func (r *caseRepository) Delete(ctx context.Context, id model.CaseID) error {
	r.store.delete(string(id))
	return nil
}

func (r *caseRepository) List(ctx context.Context) ([]*model.Case, error) {
	return r.store.list(nil), nil
}

func (r *caseRepository) FindByEmbedding(ctx context.Context, embedding []float32, limit int, opts ...interfaces.FindCasesOption) ([]*model.CaseMatch, error) {
	cfg := interfaces.BuildFindCasesConfig(opts...)

	var filter func(*model.Case) bool
	if taskType := cfg.TaskType(); taskType != nil {
		filter = func(c *model.Case) bool { return c.TaskType == *taskType }
	}

	matches := r.store.find(embedding, limit, filter)
	result := make([]*model.CaseMatch, len(matches))
	for i, m := range matches {
		result[i] = &model.CaseMatch{Case: m.record, Similarity: m.similarity}
	}
	return result, nil
}
