// Package recall implements the scored retrieval indexes over the
// memory, case and rule repositories.
package recall

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/advisim-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/advisim-lab/mnemosyne/pkg/domain/model"
	"github.com/advisim-lab/mnemosyne/pkg/domain/types"
)

// DecayFactor is the hourly base of the recency score: a memory
// untouched for h hours contributes DecayFactor^h
const DecayFactor = 0.99

// MemoryIndex retrieves memories scored by recency, importance and
// relevance
type MemoryIndex struct {
	repo interfaces.MemoryRepository
}

// NewMemoryIndex creates a MemoryIndex over the given repository
func NewMemoryIndex(repo interfaces.MemoryRepository) *MemoryIndex {
	return &MemoryIndex{repo: repo}
}

// Add validates the memory and stores it with its access state reset,
// so a re-added memory starts fresh
func (x *MemoryIndex) Add(ctx context.Context, mem *model.Memory) error {
	if err := mem.Validate(); err != nil {
		return err
	}

	stored := mem.Clone()
	stored.LastAccessed = stored.Timestamp
	return x.repo.Put(ctx, stored)
}

// RetrieveAndTouch returns the topK memories by combined score and
// marks exactly the returned ones as accessed at now. Retrieval is
// therefore not idempotent: returned memories decay slower on the
// next call.
//
//	score = w.Recency * DecayFactor^hoursSinceAccess
//	      + w.Importance * Importance
//	      + w.Relevance * cosine(embedding, query)
func (x *MemoryIndex) RetrieveAndTouch(ctx context.Context, query []float32, topK int, weights model.RetrievalWeights, now time.Time) ([]*model.MemoryResult, error) {
	if topK <= 0 {
		return []*model.MemoryResult{}, nil
	}

	memories, err := x.repo.List(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list memories for retrieval")
	}

	results := make([]*model.MemoryResult, 0, len(memories))
	for _, mem := range memories {
		recency := recencyScore(mem.LastAccessed, now)
		relevance := model.CosineSimilarity(mem.Embedding, query)
		results = append(results, &model.MemoryResult{
			Memory:    mem,
			Recency:   recency,
			Relevance: relevance,
			Score:     weights.Recency*recency + weights.Importance*mem.Importance + weights.Relevance*relevance,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Memory.Seq < results[j].Memory.Seq
	})
	if len(results) > topK {
		results = results[:topK]
	}

	ids := make([]model.MemoryID, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.Memory.ID)
	}
	if len(ids) > 0 {
		if err := x.repo.TouchLastAccessed(ctx, ids, now); err != nil {
			return nil, goerr.Wrap(err, "failed to touch retrieved memories")
		}
		for _, r := range results {
			r.Memory.LastAccessed = now
		}
	}

	return results, nil
}

// RetrieveByKind returns memories of one kind, newest first, without
// touching access state
func (x *MemoryIndex) RetrieveByKind(ctx context.Context, kind types.MemoryKind, limit int) ([]*model.Memory, error) {
	return x.repo.ListByKind(ctx, kind, limit)
}

// RetrieveRecent returns memories whose Timestamp falls within the
// window ending at now, newest first, without touching access state
func (x *MemoryIndex) RetrieveRecent(ctx context.Context, now time.Time, window time.Duration, limit int) ([]*model.Memory, error) {
	return x.repo.ListSince(ctx, now.Add(-window), limit)
}

// Get retrieves a memory by ID, nil when absent
func (x *MemoryIndex) Get(ctx context.Context, id model.MemoryID) (*model.Memory, error) {
	return x.repo.Get(ctx, id)
}

// Delete removes a memory by ID
func (x *MemoryIndex) Delete(ctx context.Context, id model.MemoryID) error {
	return x.repo.Delete(ctx, id)
}

func recencyScore(lastAccessed, now time.Time) float64 {
	hours := now.Sub(lastAccessed).Hours()
	if hours < 0 {
		hours = 0
	}
	return math.Pow(DecayFactor, hours)
}
