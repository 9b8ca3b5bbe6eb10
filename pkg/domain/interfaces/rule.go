package interfaces

import (
	"context"

	"github.com/advisim-lab/mnemosyne/pkg/domain/model"
)

// RuleRepository defines the interface for Rule data persistence
type RuleRepository interface {
	// Put inserts or fully replaces a rule by ID. A replacing upsert
	// keeps the insertion sequence assigned on first insert.
	Put(ctx context.Context, rule *model.Rule) error

	// Get retrieves a rule by ID. Returns nil, nil if no rule is found
	Get(ctx context.Context, id model.RuleID) (*model.Rule, error)

	// Delete deletes a rule by ID. Deleting an absent ID is not an error
	Delete(ctx context.Context, id model.RuleID) error

	// List retrieves all rules in insertion order
	List(ctx context.Context) ([]*model.Rule, error)

	// FindByEmbedding performs vector similarity search using cosine
	// similarity over rules that carry an embedding, optionally filtered
	// by domain. Returns up to limit matches ordered by similarity
	// descending, ties by ascending ID. limit <= 0 returns an empty
	// result.
	FindByEmbedding(ctx context.Context, embedding []float32, limit int, opts ...FindRulesOption) ([]*model.RuleMatch, error)
}
