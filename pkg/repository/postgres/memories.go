package postgres

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/m-mizutani/goerr/v2"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/advisim-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/advisim-lab/mnemosyne/pkg/domain/model"
	"github.com/advisim-lab/mnemosyne/pkg/domain/types"
)

type memoryRepository struct {
	pool      *pgxpool.Pool
	dimension int
}

var _ interfaces.MemoryRepository = &memoryRepository{}

func newMemoryRepository(pool *pgxpool.Pool) *memoryRepository {
	return &memoryRepository{pool: pool, dimension: model.DefaultEmbeddingDimension}
}

const memoryColumns = `id, description, "timestamp", last_accessed, importance, kind, embedding, meta, seq`

func scanMemory(row pgx.Row) (*model.Memory, error) {
	var (
		m   model.Memory
		vec *pgvector.Vector
	)
	err := row.Scan(&m.ID, &m.Description, &m.Timestamp, &m.LastAccessed, &m.Importance, &m.Kind, &vec, &m.Meta, &m.Seq)
	if err != nil {
		return nil, err
	}
	if vec != nil {
		m.Embedding = vec.Slice()
	}
	return &m, nil
}

func embeddingParam(embedding []float32) *pgvector.Vector {
	if len(embedding) == 0 {
		return nil
	}
	vec := pgvector.NewVector(embedding)
	return &vec
}

func (r *memoryRepository) Put(ctx context.Context, mem *model.Memory) error {
	if err := validateDimension(mem.Embedding, r.dimension); err != nil {
		return err
	}

	// seq is assigned by the column default on first insert and left
	// untouched on conflict, so replacement keeps the insertion order
	_, err := r.pool.Exec(ctx,
		`INSERT INTO memories (id, description, "timestamp", last_accessed, importance, kind, embedding, meta)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO UPDATE SET
			description = EXCLUDED.description,
			"timestamp" = EXCLUDED."timestamp",
			last_accessed = EXCLUDED.last_accessed,
			importance = EXCLUDED.importance,
			kind = EXCLUDED.kind,
			embedding = EXCLUDED.embedding,
			meta = EXCLUDED.meta`,
		string(mem.ID), mem.Description, mem.Timestamp, mem.LastAccessed, mem.Importance,
		string(mem.Kind), embeddingParam(mem.Embedding), mem.Meta,
	)
	if err != nil {
		return goerr.Wrap(err, "failed to put memory", goerr.V("id", mem.ID))
	}
	return nil
}

func (r *memoryRepository) Get(ctx context.Context, id model.MemoryID) (*model.Memory, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+memoryColumns+` FROM memories WHERE id = $1`, string(id))

	m, err := scanMemory(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to get memory", goerr.V("id", id))
	}
	return m, nil
}

func (r *memoryRepository) Delete(ctx context.Context, id model.MemoryID) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM memories WHERE id = $1`, string(id)); err != nil {
		return goerr.Wrap(err, "failed to delete memory", goerr.V("id", id))
	}
	return nil
}

func (r *memoryRepository) queryMemories(ctx context.Context, query string, args ...any) ([]*model.Memory, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query memories")
	}
	defer rows.Close()

	memories := make([]*model.Memory, 0)
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to scan memory")
		}
		memories = append(memories, m)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate memories")
	}
	return memories, nil
}

func (r *memoryRepository) List(ctx context.Context) ([]*model.Memory, error) {
	return r.queryMemories(ctx,
		`SELECT `+memoryColumns+` FROM memories ORDER BY seq`)
}

func (r *memoryRepository) ListByKind(ctx context.Context, kind types.MemoryKind, limit int) ([]*model.Memory, error) {
	if limit > 0 {
		return r.queryMemories(ctx,
			`SELECT `+memoryColumns+` FROM memories
			 WHERE kind = $1
			 ORDER BY "timestamp" DESC, seq DESC
			 LIMIT $2`, string(kind), limit)
	}
	return r.queryMemories(ctx,
		`SELECT `+memoryColumns+` FROM memories
		 WHERE kind = $1
		 ORDER BY "timestamp" DESC, seq DESC`, string(kind))
}

func (r *memoryRepository) ListSince(ctx context.Context, since time.Time, limit int) ([]*model.Memory, error) {
	if limit > 0 {
		return r.queryMemories(ctx,
			`SELECT `+memoryColumns+` FROM memories
			 WHERE "timestamp" >= $1
			 ORDER BY "timestamp" DESC, seq DESC
			 LIMIT $2`, since, limit)
	}
	return r.queryMemories(ctx,
		`SELECT `+memoryColumns+` FROM memories
		 WHERE "timestamp" >= $1
		 ORDER BY "timestamp" DESC, seq DESC`, since)
}

func (r *memoryRepository) TouchLastAccessed(ctx context.Context, ids []model.MemoryID, now time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	rawIDs := make([]string, 0, len(ids))
	for _, id := range ids {
		rawIDs = append(rawIDs, string(id))
	}

	_, err := r.pool.Exec(ctx,
		`UPDATE memories SET last_accessed = $1 WHERE id = ANY($2)`, now, rawIDs)
	if err != nil {
		return goerr.Wrap(err, "failed to touch memories", goerr.V("ids", ids))
	}
	return nil
}

func (r *memoryRepository) FindByEmbedding(ctx context.Context, embedding []float32, limit int) ([]*model.MemoryMatch, error) {
	if limit <= 0 {
		return []*model.MemoryMatch{}, nil
	}

	var (
		rows pgx.Rows
		err  error
	)
	if len(embedding) == 0 || isZeroVector(embedding) {
		rows, err = r.pool.Query(ctx,
			`SELECT `+memoryColumns+`, 0::float8 AS similarity
			 FROM memories
			 WHERE embedding IS NOT NULL
			 ORDER BY id
			 LIMIT $1`, limit)
	} else {
		rows, err = r.pool.Query(ctx,
			`SELECT `+memoryColumns+`, 1 - (embedding <=> $1) AS similarity
			 FROM memories
			 WHERE embedding IS NOT NULL
			 ORDER BY embedding <=> $1, id
			 LIMIT $2`, pgvector.NewVector(embedding), limit)
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to search memories by embedding")
	}
	defer rows.Close()

	matches := make([]*model.MemoryMatch, 0, limit)
	for rows.Next() {
		var (
			m          model.Memory
			vec        *pgvector.Vector
			similarity float64
		)
		err := rows.Scan(&m.ID, &m.Description, &m.Timestamp, &m.LastAccessed, &m.Importance, &m.Kind, &vec, &m.Meta, &m.Seq, &similarity)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to scan memory match")
		}
		if vec != nil {
			m.Embedding = vec.Slice()
		}
		matches = append(matches, &model.MemoryMatch{Memory: &m, Similarity: normalizeSimilarity(similarity)})
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate memory matches")
	}

	sortMemoryMatches(matches)
	return matches, nil
}

func sortMemoryMatches(matches []*model.MemoryMatch) {
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		return matches[i].Memory.ID < matches[j].Memory.ID
	})
}
