package model

import (
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"

	"github.com/advisim-lab/mnemosyne/pkg/domain/types"
)

// MemoryID is a UUID-based identifier for Memory
type MemoryID string

// NewMemoryID generates a new UUID v4 MemoryID
func NewMemoryID() MemoryID {
	return MemoryID(uuid.New().String())
}

// String returns the string representation of MemoryID
func (id MemoryID) String() string {
	return string(id)
}

// Memory represents a single consultation memory: something the advisor
// observed, concluded, or planned during a session. Memories are ranked
// for retrieval by recency, importance, and similarity to the current
// conversation.
type Memory struct {
	ID           MemoryID         `json:"id"`
	Description  string           `json:"description"`
	Timestamp    time.Time        `json:"timestamp"`     // when the memory was formed
	LastAccessed time.Time        `json:"last_accessed"` // advanced by scored retrieval
	Importance   float64          `json:"importance"`    // [0, 1]
	Kind         types.MemoryKind `json:"kind"`
	Embedding    []float32        `json:"embedding,omitempty"`
	Meta         map[string]any   `json:"meta,omitempty"`
	Seq          int64            `json:"-"` // insertion order, assigned by the store
}

// Validate checks the fields that retrieval scoring depends on
func (m *Memory) Validate() error {
	if m.ID == "" {
		return goerr.Wrap(ErrInvalidRecord, "memory ID is required")
	}
	if !m.Kind.IsValid() {
		return goerr.Wrap(ErrInvalidRecord, "unknown memory kind", goerr.V("kind", m.Kind))
	}
	if m.Importance < 0 || m.Importance > 1 {
		return goerr.Wrap(ErrInvalidRecord, "importance must be within [0, 1]", goerr.V("importance", m.Importance))
	}
	if m.Timestamp.IsZero() {
		return goerr.Wrap(ErrInvalidRecord, "timestamp is required")
	}
	return nil
}

// Clone returns a deep copy that shares no mutable state with the original
func (m *Memory) Clone() *Memory {
	if m == nil {
		return nil
	}
	cp := *m
	cp.Embedding = slices.Clone(m.Embedding)
	cp.Meta = maps.Clone(m.Meta)
	return &cp
}

// MemoryMatch is a similarity search hit for a memory record
type MemoryMatch struct {
	Memory     *Memory `json:"memory"`
	Similarity float64 `json:"similarity"`
}
