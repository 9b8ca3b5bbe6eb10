package memory

import (
	"context"
	"sort"
	"time"

	"github.com/advisim-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/advisim-lab/mnemosyne/pkg/domain/model"
	"github.com/advisim-lab/mnemosyne/pkg/domain/types"
)

type memoryRepository struct {
	store *vectorStore[model.Memory]
}

var _ interfaces.MemoryRepository = &memoryRepository{}

func newMemoryRepository(dimension int) *memoryRepository {
	return &memoryRepository{
		store: newVectorStore(dimension, recordFuncs[model.Memory]{
			id:        func(m *model.Memory) string { return string(m.ID) },
			embedding: func(m *model.Memory) []float32 { return m.Embedding },
			clone:     func(m *model.Memory) *model.Memory { return m.Clone() },
			seq:       func(m *model.Memory) int64 { return m.Seq },
			setSeq:    func(m *model.Memory, seq int64) { m.Seq = seq },
		}),
	}
}

func (r *memoryRepository) Put(ctx context.Context, mem *model.Memory) error {
	return r.store.put(mem)
}

func (r *memoryRepository) Get(ctx context.Context, id model.MemoryID) (*model.Memory, error) {
	return r.store.get(string(id)), nil
}

func (r *memoryRepository) Delete(ctx context.Context, id model.MemoryID) error {
	r.store.delete(string(id))
	return nil
}

func (r *memoryRepository) List(ctx context.Context) ([]*model.Memory, error) {
	return r.store.list(nil), nil
}

func (r *memoryRepository) ListByKind(ctx context.Context, kind types.MemoryKind, limit int) ([]*model.Memory, error) {
	mems := r.store.list(func(m *model.Memory) bool { return m.Kind == kind })
	sortNewestFirst(mems)
	return truncateMemories(mems, limit), nil
}

func (r *memoryRepository) ListSince(ctx context.Context, since time.Time, limit int) ([]*model.Memory, error) {
	mems := r.store.list(func(m *model.Memory) bool { return !m.Timestamp.Before(since) })
	sortNewestFirst(mems)
	return truncateMemories(mems, limit), nil
}

func (r *memoryRepository) TouchLastAccessed(ctx context.Context, ids []model.MemoryID, now time.Time) error {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = string(id)
	}
	r.store.update(keys, func(m *model.Memory) { m.LastAccessed = now })
	return nil
}

func (r *memoryRepository) FindByEmbedding(ctx context.Context, embedding []float32, limit int) ([]*model.MemoryMatch, error) {
	matches := r.store.find(embedding, limit, nil)
	result := make([]*model.MemoryMatch, len(matches))
	for i, m := range matches {
		result[i] = &model.MemoryMatch{Memory: m.record, Similarity: m.similarity}
	}
	return result, nil
}

// sortNewestFirst orders by Timestamp descending; equal timestamps put
// the later insertion first
func sortNewestFirst(mems []*model.Memory) {
	sort.Slice(mems, func(i, j int) bool {
		if !mems[i].Timestamp.Equal(mems[j].Timestamp) {
			return mems[i].Timestamp.After(mems[j].Timestamp)
		}
		return mems[i].Seq > mems[j].Seq
	})
}

func truncateMemories(mems []*model.Memory, limit int) []*model.Memory {
	if limit > 0 && len(mems) > limit {
		return mems[:limit]
	}
	return mems
}
