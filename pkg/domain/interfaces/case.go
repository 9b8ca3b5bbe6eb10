package interfaces

import (
	"context"

	"github.com/advisim-lab/mnemosyne/pkg/domain/model"
)

// CaseRepository defines the interface for Case data persistence
type CaseRepository interface {
	// Put inserts or fully replaces a case by ID. A replacing upsert
	// keeps the insertion sequence assigned on first insert.
	Put(ctx context.Context, c *model.Case) error

	// Get retrieves a case by ID. Returns nil, nil if no case is found
	Get(ctx context.Context, id model.CaseID) (*model.Case, error)

	// Delete deletes a case by ID. Deleting an absent ID is not an error
	Delete(ctx context.Context, id model.CaseID) error

	// List retrieves all cases in insertion order
	List(ctx context.Context) ([]*model.Case, error)

	// FindByEmbedding performs vector similarity search using cosine
	// similarity over cases that carry an embedding, optionally filtered
	// by task type. Returns up to limit matches ordered by similarity
	// descending, ties by ascending ID. limit <= 0 returns an empty
	// result.
	FindByEmbedding(ctx context.Context, embedding []float32, limit int, opts ...FindCasesOption) ([]*model.CaseMatch, error)
}
