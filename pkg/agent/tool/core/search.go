package core

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"

	"github.com/advisim-lab/mnemosyne/pkg/agent/tool"
	"github.com/advisim-lab/mnemosyne/pkg/service/embedding"
	"github.com/advisim-lab/mnemosyne/pkg/service/recall"
)

// searchCasesTool searches past consultation cases by vector similarity
type searchCasesTool struct {
	cases    *recall.CaseIndex
	embedder embedding.Service
}

func (t *searchCasesTool) Spec() gollem.ToolSpec {
	return gollem.ToolSpec{
		Name:        "core__search_cases",
		Description: "Search past consultation cases by semantic similarity to the given query. Use this to find how similar client situations were handled before.",
		Parameters: map[string]*gollem.Parameter{
			"query": {
				Type:        gollem.TypeString,
				Description: "Search query text",
				Required:    true,
			},
			"task_type": {
				Type:        gollem.TypeString,
				Description: "Restrict results to this task type",
				Required:    false,
			},
			"limit": {
				Type:        gollem.TypeInteger,
				Description: "Maximum number of results to return (default: 5)",
				Required:    false,
			},
		},
	}
}

func (t *searchCasesTool) Run(ctx context.Context, args map[string]any) (map[string]any, error) {
	query, _ := args["query"].(string)
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}

	tool.Update(ctx, fmt.Sprintf("Searching cases: %s", query))

	limit := defaultTopK
	if v, err := extractInt64(args, "limit"); err == nil && v > 0 {
		limit = int(v)
	}

	queryEmbedding, err := t.embedder.Embed(ctx, query)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate embedding for search query",
			goerr.V("query", query),
		)
	}

	var opts []recall.CaseOption
	if taskType, _ := args["task_type"].(string); taskType != "" {
		opts = append(opts, recall.WithTaskType(taskType))
	}

	results, err := t.cases.Retrieve(ctx, queryEmbedding, limit, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to search cases by embedding",
			goerr.V("limit", limit),
		)
	}

	items := make([]map[string]any, len(results))
	for i, c := range results {
		items[i] = map[string]any{
			"id":         string(c.Case.ID),
			"task_type":  c.Case.TaskType,
			"situation":  c.Case.Situation,
			"guidance":   c.Case.Guidance,
			"similarity": c.Similarity,
		}
	}
	return map[string]any{"cases": items}, nil
}

// searchRulesTool searches advice rules ranked by similarity times confidence
type searchRulesTool struct {
	rules    *recall.RuleIndex
	embedder embedding.Service
}

func (t *searchRulesTool) Spec() gollem.ToolSpec {
	return gollem.ToolSpec{
		Name:        "core__search_rules",
		Description: "Search generalized advice rules for the given query. Results are ranked by similarity weighted with each rule's confidence.",
		Parameters: map[string]*gollem.Parameter{
			"query": {
				Type:        gollem.TypeString,
				Description: "Search query text",
				Required:    true,
			},
			"domain": {
				Type:        gollem.TypeString,
				Description: "Restrict results to this domain",
				Required:    false,
			},
			"min_confidence": {
				Type:        gollem.TypeNumber,
				Description: "Drop rules below this confidence (default: 0)",
				Required:    false,
			},
			"limit": {
				Type:        gollem.TypeInteger,
				Description: "Maximum number of results to return (default: 5)",
				Required:    false,
			},
		},
	}
}

func (t *searchRulesTool) Run(ctx context.Context, args map[string]any) (map[string]any, error) {
	query, _ := args["query"].(string)
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}

	tool.Update(ctx, fmt.Sprintf("Searching rules: %s", query))

	limit := defaultTopK
	if v, err := extractInt64(args, "limit"); err == nil && v > 0 {
		limit = int(v)
	}

	queryEmbedding, err := t.embedder.Embed(ctx, query)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate embedding for search query",
			goerr.V("query", query),
		)
	}

	var opts []recall.RuleOption
	if domain, _ := args["domain"].(string); domain != "" {
		opts = append(opts, recall.WithDomain(domain))
	}
	if v, err := extractFloat64(args, "min_confidence"); err == nil && v > 0 {
		opts = append(opts, recall.WithMinConfidence(v))
	}

	results, err := t.rules.Retrieve(ctx, queryEmbedding, limit, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to search rules by embedding",
			goerr.V("limit", limit),
		)
	}

	items := make([]map[string]any, len(results))
	for i, r := range results {
		items[i] = map[string]any{
			"id":             string(r.Rule.ID),
			"principle":      r.Rule.Principle,
			"domain":         r.Rule.Domain,
			"confidence":     r.Rule.Confidence,
			"similarity":     r.Similarity,
			"weighted_score": r.WeightedScore,
		}
	}
	return map[string]any{"rules": items}, nil
}
