// Package postgres provides a PostgreSQL implementation of the
// repository interfaces backed by pgx and the pgvector extension.
package postgres

import (
	"context"
	"fmt"
	"math"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/m-mizutani/goerr/v2"

	"github.com/advisim-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/advisim-lab/mnemosyne/pkg/domain/model"
)

// Postgres implements interfaces.Repository backed by PostgreSQL with
// the pgvector extension for cosine similarity search.
type Postgres struct {
	pool     *pgxpool.Pool
	memories *memoryRepository
	cases    *caseRepository
	rules    *ruleRepository
}

var _ interfaces.Repository = &Postgres{}

// Option is a functional option for Postgres
type Option func(*Postgres)

// WithDimension sets the embedding dimension enforced on writes and
// used for the vector column type in Migrate
func WithDimension(dimension int) Option {
	return func(p *Postgres) {
		p.memories.dimension = dimension
		p.cases.dimension = dimension
		p.rules.dimension = dimension
	}
}

// New creates a new Postgres repository from a connection string
func New(ctx context.Context, dsn string, opts ...Option) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create postgres pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, goerr.Wrap(err, "failed to ping postgres")
	}

	p := &Postgres{
		pool:     pool,
		memories: newMemoryRepository(pool),
		cases:    newCaseRepository(pool),
		rules:    newRuleRepository(pool),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Memories returns the memory repository
func (p *Postgres) Memories() interfaces.MemoryRepository {
	return p.memories
}

// Cases returns the case repository
func (p *Postgres) Cases() interfaces.CaseRepository {
	return p.cases
}

// Rules returns the rule repository
func (p *Postgres) Rules() interfaces.RuleRepository {
	return p.rules
}

// Close closes the connection pool
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

// Migrate creates the pgvector extension, tables and indexes. All
// statements are idempotent, so Migrate is safe to run repeatedly.
// The vector column width follows the configured dimension.
func (p *Postgres) Migrate(ctx context.Context) error {
	dim := p.memories.dimension

	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE SEQUENCE IF NOT EXISTS record_seq`,

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS memories (
			id TEXT PRIMARY KEY,
			description TEXT NOT NULL DEFAULT '',
			"timestamp" TIMESTAMPTZ NOT NULL,
			last_accessed TIMESTAMPTZ NOT NULL,
			importance DOUBLE PRECISION NOT NULL DEFAULT 0,
			kind TEXT NOT NULL,
			embedding vector(%d),
			meta JSONB,
			seq BIGINT NOT NULL DEFAULT nextval('record_seq')
		)`, dim),
		`CREATE INDEX IF NOT EXISTS memories_kind_timestamp_idx ON memories (kind, "timestamp" DESC, seq DESC)`,
		`CREATE INDEX IF NOT EXISTS memories_timestamp_idx ON memories ("timestamp" DESC, seq DESC)`,
		`CREATE INDEX IF NOT EXISTS memories_embedding_idx ON memories USING hnsw (embedding vector_cosine_ops)`,

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS cases (
			id TEXT PRIMARY KEY,
			task_type TEXT NOT NULL DEFAULT '',
			situation TEXT NOT NULL DEFAULT '',
			guidance TEXT NOT NULL DEFAULT '',
			outcome JSONB,
			embedding vector(%d),
			meta JSONB NOT NULL DEFAULT '{}'::jsonb,
			seq BIGINT NOT NULL DEFAULT nextval('record_seq')
		)`, dim),
		`CREATE INDEX IF NOT EXISTS cases_task_type_idx ON cases (task_type)`,
		`CREATE INDEX IF NOT EXISTS cases_embedding_idx ON cases USING hnsw (embedding vector_cosine_ops)`,

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS rules (
			id TEXT PRIMARY KEY,
			principle TEXT NOT NULL DEFAULT '',
			domain TEXT NOT NULL DEFAULT '',
			confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
			supporting_evidence TEXT[],
			embedding vector(%d),
			meta JSONB,
			seq BIGINT NOT NULL DEFAULT nextval('record_seq')
		)`, dim),
		`CREATE INDEX IF NOT EXISTS rules_domain_idx ON rules (domain)`,
		`CREATE INDEX IF NOT EXISTS rules_embedding_idx ON rules USING hnsw (embedding vector_cosine_ops)`,
	}

	for _, stmt := range stmts {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return goerr.Wrap(err, "failed to apply schema statement")
		}
	}
	return nil
}

func validateDimension(embedding []float32, dimension int) error {
	if len(embedding) == 0 || dimension <= 0 {
		return nil
	}
	if len(embedding) != dimension {
		return goerr.Wrap(model.ErrDimensionMismatch, "embedding length does not match store dimension",
			goerr.V(model.ExpectedDimensionKey, dimension),
			goerr.V(model.ActualDimensionKey, len(embedding)))
	}
	return nil
}

func isZeroVector(embedding []float32) bool {
	for _, v := range embedding {
		if v != 0 {
			return false
		}
	}
	return true
}

// normalizeSimilarity maps the NaN produced by cosine distance against
// a zero-magnitude stored vector to similarity 0
func normalizeSimilarity(sim float64) float64 {
	if math.IsNaN(sim) {
		return 0
	}
	return sim
}
