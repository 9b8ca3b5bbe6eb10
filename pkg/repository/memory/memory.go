package memory

import (
	"github.com/advisim-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/advisim-lab/mnemosyne/pkg/domain/model"
)

// Repository is an alias for Memory to match the pattern
type Repository = Memory

// Memory is the in-memory repository backend used for development and
// tests. It carries the same semantics as the persistent backends.
type Memory struct {
	memories *memoryRepository
	cases    *caseRepository
	rules    *ruleRepository
}

var _ interfaces.Repository = &Memory{}

// Option configures the in-memory backend
type Option func(*options)

type options struct {
	dimension int
}

// WithDimension sets the embedding dimension enforced on upsert
func WithDimension(dimension int) Option {
	return func(o *options) {
		o.dimension = dimension
	}
}

func New(opts ...Option) *Memory {
	opt := options{dimension: model.DefaultEmbeddingDimension}
	for _, o := range opts {
		o(&opt)
	}

	return &Memory{
		memories: newMemoryRepository(opt.dimension),
		cases:    newCaseRepository(opt.dimension),
		rules:    newRuleRepository(opt.dimension),
	}
}

func (m *Memory) Memories() interfaces.MemoryRepository {
	return m.memories
}

func (m *Memory) Cases() interfaces.CaseRepository {
	return m.cases
}

func (m *Memory) Rules() interfaces.RuleRepository {
	return m.rules
}

// Close is a no-op for the in-memory backend
func (m *Memory) Close() error {
	return nil
}
