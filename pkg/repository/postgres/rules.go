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

type ruleRepository struct {
	pool      *pgxpool.Pool
	dimension int
}

var _ interfaces.RuleRepository = &ruleRepository{}

func newRuleRepository(pool *pgxpool.Pool) *ruleRepository {
	return &ruleRepository{pool: pool, dimension: model.DefaultEmbeddingDimension}
}

const ruleColumns = `id, principle, domain, confidence, supporting_evidence, embedding, meta, seq`

func scanRule(row pgx.Row) (*model.Rule, error) {
	var (
		rule     model.Rule
		evidence []string
		vec      *pgvector.Vector
	)
	err := row.Scan(&rule.ID, &rule.Principle, &rule.Domain, &rule.Confidence, &evidence, &vec, &rule.Meta, &rule.Seq)
	if err != nil {
		return nil, err
	}
	for _, caseID := range evidence {
		rule.SupportingEvidence = append(rule.SupportingEvidence, model.CaseID(caseID))
	}
	if vec != nil {
		rule.Embedding = vec.Slice()
	}
	return &rule, nil
}

func (r *ruleRepository) Put(ctx context.Context, rule *model.Rule) error {
	if err := validateDimension(rule.Embedding, r.dimension); err != nil {
		return err
	}

	var evidence []string
	for _, caseID := range rule.SupportingEvidence {
		evidence = append(evidence, string(caseID))
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO rules (id, principle, domain, confidence, supporting_evidence, embedding, meta)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE SET
			principle = EXCLUDED.principle,
			domain = EXCLUDED.domain,
			confidence = EXCLUDED.confidence,
			supporting_evidence = EXCLUDED.supporting_evidence,
			embedding = EXCLUDED.embedding,
			meta = EXCLUDED.meta`,
		string(rule.ID), rule.Principle, rule.Domain, rule.Confidence, evidence,
		embeddingParam(rule.Embedding), rule.Meta,
	)
	if err != nil {
		return goerr.Wrap(err, "failed to put rule", goerr.V("id", rule.ID))
	}
	return nil
}

func (r *ruleRepository) Get(ctx context.Context, id model.RuleID) (*model.Rule, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+ruleColumns+` FROM rules WHERE id = $1`, string(id))

	rule, err := scanRule(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to get rule", goerr.V("id", id))
	}
	return rule, nil
}

func (r *ruleRepository) Delete(ctx context.Context, id model.RuleID) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM rules WHERE id = $1`, string(id)); err != nil {
		return goerr.Wrap(err, "failed to delete rule", goerr.V("id", id))
	}
	return nil
}

func (r *ruleRepository) List(ctx context.Context) ([]*model.Rule, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+ruleColumns+` FROM rules ORDER BY seq`)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query rules")
	}
	defer rows.Close()

	rules := make([]*model.Rule, 0)
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to scan rule")
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate rules")
	}
	return rules, nil
}

func (r *ruleRepository) FindByEmbedding(ctx context.Context, embedding []float32, limit int, opts ...interfaces.FindRulesOption) ([]*model.RuleMatch, error) {
	if limit <= 0 {
		return []*model.RuleMatch{}, nil
	}
	domain := interfaces.BuildFindRulesConfig(opts...).Domain()

	var (
		rows pgx.Rows
		err  error
	)
	if len(embedding) == 0 || isZeroVector(embedding) {
		rows, err = r.pool.Query(ctx,
			`SELECT `+ruleColumns+`, 0::float8 AS similarity
			 FROM rules
			 WHERE embedding IS NOT NULL
			   AND ($1::text IS NULL OR domain = $1)
			 ORDER BY id
			 LIMIT $2`, domain, limit)
	} else {
		rows, err = r.pool.Query(ctx,
			`SELECT `+ruleColumns+`, 1 - (embedding <=> $1) AS similarity
			 FROM rules
			 WHERE embedding IS NOT NULL
			   AND ($2::text IS NULL OR domain = $2)
			 ORDER BY embedding <=> $1, id
			 LIMIT $3`, pgvector.NewVector(embedding), domain, limit)
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to search rules by embedding")
	}
	defer rows.Close()

	matches := make([]*model.RuleMatch, 0, limit)
	for rows.Next() {
		var (
			rule       model.Rule
			evidence   []string
			vec        *pgvector.Vector
			similarity float64
		)
		err := rows.Scan(&rule.ID, &rule.Principle, &rule.Domain, &rule.Confidence, &evidence, &vec, &rule.Meta, &rule.Seq, &similarity)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to scan rule match")
		}
		for _, caseID := range evidence {
			rule.SupportingEvidence = append(rule.SupportingEvidence, model.CaseID(caseID))
		}
		if vec != nil {
			rule.Embedding = vec.Slice()
		}
		matches = append(matches, &model.RuleMatch{Rule: &rule, Similarity: normalizeSimilarity(similarity)})
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate rule matches")
	}

	sortRuleMatches(matches)
	return matches, nil
}

func sortRuleMatches(matches []*model.RuleMatch) {
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		return matches[i].Rule.ID < matches[j].Rule.ID
	})
}
