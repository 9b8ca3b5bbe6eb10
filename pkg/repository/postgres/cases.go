package postgres

import (
	"context"
	"errors"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/m-mizutani/goerr/v2"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/advisim-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/advisim-lab/mnemosyne/pkg/domain/model"
)

type caseRepository struct {
	pool      *pgxpool.Pool
	dimension int
}

var _ interfaces.CaseRepository = &caseRepository{}

func newCaseRepository(pool *pgxpool.Pool) *caseRepository {
	return &caseRepository{pool: pool, dimension: model.DefaultEmbeddingDimension}
}

const caseColumns = `id, task_type, situation, guidance, outcome, embedding, meta, seq`

func scanCase(row pgx.Row) (*model.Case, error) {
	var (
		c   model.Case
		vec *pgvector.Vector
	)
	err := row.Scan(&c.ID, &c.TaskType, &c.Situation, &c.Guidance, &c.Outcome, &vec, &c.Meta, &c.Seq)
	if err != nil {
		return nil, err
	}
	if vec != nil {
		c.Embedding = vec.Slice()
	}
	return &c, nil
}

func (r *caseRepository) Put(ctx context.Context, c *model.Case) error {
	if err := validateDimension(c.Embedding, r.dimension); err != nil {
		return err
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO cases (id, task_type, situation, guidance, outcome, embedding, meta)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE SET
			task_type = EXCLUDED.task_type,
			situation = EXCLUDED.situation,
			guidance = EXCLUDED.guidance,
			outcome = EXCLUDED.outcome,
			embedding = EXCLUDED.embedding,
			meta = EXCLUDED.meta`,
		string(c.ID), c.TaskType, c.Situation, c.Guidance, c.Outcome,
		embeddingParam(c.Embedding), c.Meta,
	)
	if err != nil {
		return goerr.Wrap(err, "failed to put case", goerr.V("id", c.ID))
	}
	return nil
}

func (r *caseRepository) Get(ctx context.Context, id model.CaseID) (*model.Case, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+caseColumns+` FROM cases WHERE id = $1`, string(id))

	c, err := scanCase(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to get case", goerr.V("id", id))
	}
	return c, nil
}

func (r *caseRepository) Delete(ctx context.Context, id model.CaseID) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM cases WHERE id = $1`, string(id)); err != nil {
		return goerr.Wrap(err, "failed to delete case", goerr.V("id", id))
	}
	return nil
}

func (r *caseRepository) List(ctx context.Context) ([]*model.Case, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+caseColumns+` FROM cases ORDER BY seq`)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query cases")
	}
	defer rows.Close()

	cases := make([]*model.Case, 0)
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to scan case")
		}
		cases = append(cases, c)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate cases")
	}
	return cases, nil
}

func (r *caseRepository) FindByEmbedding(ctx context.Context, embedding []float32, limit int, opts ...interfaces.FindCasesOption) ([]*model.CaseMatch, error) {
	if limit <= 0 {
		return []*model.CaseMatch{}, nil
	}
	taskType := interfaces.BuildFindCasesConfig(opts...).TaskType()

	var (
		rows pgx.Rows
		err  error
	)
	if len(embedding) == 0 || isZeroVector(embedding) {
		rows, err = r.pool.Query(ctx,
			`SELECT `+caseColumns+`, 0::float8 AS similarity
			 FROM cases
			 WHERE embedding IS NOT NULL
			   AND ($1::text IS NULL OR task_type = $1)
			 ORDER BY id
			 LIMIT $2`, taskType, limit)
	} else {
		rows, err = r.pool.Query(ctx,
			`SELECT `+caseColumns+`, 1 - (embedding <=> $1) AS similarity
			 FROM cases
			 WHERE embedding IS NOT NULL
			   AND ($2::text IS NULL OR task_type = $2)
			 ORDER BY embedding <=> $1, id
			 LIMIT $3`, pgvector.NewVector(embedding), taskType, limit)
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to search cases by embedding")
	}
	defer rows.Close()

	matches := make([]*model.CaseMatch, 0, limit)
	for rows.Next() {
		var (
			c          model.Case
			vec        *pgvector.Vector
			similarity float64
		)
		err := rows.Scan(&c.ID, &c.TaskType, &c.Situation, &c.Guidance, &c.Outcome, &vec, &c.Meta, &c.Seq, &similarity)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to scan case match")
		}
		if vec != nil {
			c.Embedding = vec.Slice()
		}
		matches = append(matches, &model.CaseMatch{Case: &c, Similarity: normalizeSimilarity(similarity)})
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate case matches")
	}

	sortCaseMatches(matches)
	return matches, nil
}

func sortCaseMatches(matches []*model.CaseMatch) {
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		return matches[i].Case.ID < matches[j].Case.ID
	})
}
