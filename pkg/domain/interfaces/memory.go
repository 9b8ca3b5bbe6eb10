package interfaces

import (
	"context"
	"time"

	"github.com/advisim-lab/mnemosyne/pkg/domain/model"
	"github.com/advisim-lab/mnemosyne/pkg/domain/types"
)

// MemoryRepository defines the interface for Memory data persistence
type MemoryRepository interface {
	// Put inserts or fully replaces a memory by ID. A replacing upsert
	// keeps the insertion sequence assigned on first insert.
	Put(ctx context.Context, memory *model.Memory) error

	// Get retrieves a memory by ID. Returns nil, nil if no memory is found
	Get(ctx context.Context, id model.MemoryID) (*model.Memory, error)

	// Delete deletes a memory by ID. Deleting an absent ID is not an error
	Delete(ctx context.Context, id model.MemoryID) error

	// List retrieves all memories in insertion order
	List(ctx context.Context) ([]*model.Memory, error)

	// ListByKind retrieves memories of the given kind, newest first.
	// limit <= 0 means no limit.
	ListByKind(ctx context.Context, kind types.MemoryKind, limit int) ([]*model.Memory, error)

	// ListSince retrieves memories with Timestamp >= since, newest first.
	// limit <= 0 means no limit.
	ListSince(ctx context.Context, since time.Time, limit int) ([]*model.Memory, error)

	// TouchLastAccessed sets LastAccessed to now for exactly the given
	// IDs. Unknown IDs are skipped silently.
	TouchLastAccessed(ctx context.Context, ids []model.MemoryID, now time.Time) error

	// FindByEmbedding performs vector similarity search using cosine
	// similarity over memories that carry an embedding. Returns up to
	// limit matches ordered by similarity descending, ties by ascending
	// ID. limit <= 0 returns an empty result.
	FindByEmbedding(ctx context.Context, embedding []float32, limit int) ([]*model.MemoryMatch, error)
}
