package core

import (
	"fmt"

	"github.com/m-mizutani/gollem"

	"github.com/advisim-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/advisim-lab/mnemosyne/pkg/domain/model"
	"github.com/advisim-lab/mnemosyne/pkg/service/embedding"
	"github.com/advisim-lab/mnemosyne/pkg/service/recall"
)

// New builds the core tool set for the assist agent. The tools cover
// scored context retrieval, direct case and rule search, and memory
// recording over the given repository. The weights control memory
// scoring in context retrieval.
func New(repo interfaces.Repository, embedder embedding.Service, weights model.RetrievalWeights) []gollem.Tool {
	memories := recall.NewMemoryIndex(repo.Memories())
	cases := recall.NewCaseIndex(repo.Cases())
	rules := recall.NewRuleIndex(repo.Rules())

	return []gollem.Tool{
		&retrieveContextTool{memories: memories, cases: cases, rules: rules, embedder: embedder, weights: weights},
		&searchCasesTool{cases: cases, embedder: embedder},
		&searchRulesTool{rules: rules, embedder: embedder},
		&addMemoryTool{memories: memories, embedder: embedder},
		&listRecentMemoriesTool{memories: memories},
	}
}

func extractInt64(args map[string]any, key string) (int64, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return 0, fmt.Errorf("%s is required", key)
	}
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("%s must be an integer, got %T", key, v)
	}
}

func extractFloat64(args map[string]any, key string) (float64, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return 0, fmt.Errorf("%s is required", key)
	}
	switch n := v.(type) {
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case float64:
		return n, nil
	default:
		return 0, fmt.Errorf("%s must be a number, got %T", key, v)
	}
}
