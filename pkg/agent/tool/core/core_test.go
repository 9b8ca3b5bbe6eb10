package core_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gt"

	"github.com/advisim-lab/mnemosyne/pkg/agent/tool"
	"github.com/advisim-lab/mnemosyne/pkg/agent/tool/core"
	"github.com/advisim-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/advisim-lab/mnemosyne/pkg/domain/model"
	"github.com/advisim-lab/mnemosyne/pkg/domain/types"
	"github.com/advisim-lab/mnemosyne/pkg/repository/memory"
)

const testDimension = 3

// newCtxWithNotifyCapture returns a context that captures all progress
// messages and a pointer to the slice where they are appended.
func newCtxWithNotifyCapture() (context.Context, *[]string) {
	var messages []string
	ctx := tool.WithNotify(context.Background(), func(_ context.Context, msg string) {
		messages = append(messages, msg)
	})
	return ctx, &messages
}

// stubEmbedder returns the unit query axis for every text unless an
// embedFn overrides it.
type stubEmbedder struct {
	embedFn func(ctx context.Context, text string) ([]float32, error)
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if s.embedFn != nil {
		return s.embedFn(ctx, text)
	}
	return []float32{1, 0, 0}, nil
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := s.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (s *stubEmbedder) Dimension() int { return testDimension }

func newEmbedder() *stubEmbedder {
	return &stubEmbedder{}
}

// embeddingAt builds a unit vector whose cosine similarity against the
// fallback query axis equals sim.
func embeddingAt(sim float64) []float32 {
	return []float32{float32(sim), float32(math.Sqrt(1 - sim*sim)), 0}
}

func newRepo() interfaces.Repository {
	return memory.New(memory.WithDimension(testDimension))
}

func findTool(tools []gollem.Tool, name string) gollem.Tool {
	for _, t := range tools {
		if t.Spec().Name == name {
			return t
		}
	}
	return nil
}

func putMemory(t *testing.T, repo interfaces.Repository, mem *model.Memory) {
	t.Helper()
	gt.NoError(t, repo.Memories().Put(context.Background(), mem)).Required()
}

func putCase(t *testing.T, repo interfaces.Repository, c *model.Case) {
	t.Helper()
	gt.NoError(t, repo.Cases().Put(context.Background(), c)).Required()
}

func putRule(t *testing.T, repo interfaces.Repository, rule *model.Rule) {
	t.Helper()
	gt.NoError(t, repo.Rules().Put(context.Background(), rule)).Required()
}

func TestToolSet(t *testing.T) {
	tools := core.New(newRepo(), newEmbedder(), model.DefaultRetrievalWeights())

	names := make([]string, len(tools))
	for i, tl := range tools {
		names[i] = tl.Spec().Name
	}
	gt.Array(t, names).Has("core__retrieve_context")
	gt.Array(t, names).Has("core__search_cases")
	gt.Array(t, names).Has("core__search_rules")
	gt.Array(t, names).Has("core__add_memory")
	gt.Array(t, names).Has("core__list_recent_memories")
}

func TestRetrieveContextTool(t *testing.T) {
	t.Run("assembles all three sections with rationale", func(t *testing.T) {
		repo := newRepo()
		now := time.Now()
		putMemory(t, repo, &model.Memory{
			ID:           "mem-1",
			Description:  "client is anxious about market dips",
			Timestamp:    now.Add(-time.Hour),
			LastAccessed: now.Add(-time.Hour),
			Importance:   0.8,
			Kind:         types.MemoryKindObservation,
			Embedding:    embeddingAt(0.9),
		})
		putCase(t, repo, &model.Case{
			ID:        "case-1",
			TaskType:  "retirement_planning",
			Situation: "client unsure about drawdown",
			Guidance:  "walk through sustainable withdrawal rates",
			Embedding: embeddingAt(0.8),
		})
		putRule(t, repo, &model.Rule{
			ID:         "rule-1",
			Principle:  "always confirm risk tolerance first",
			Domain:     "pension_transfer",
			Confidence: 0.9,
			Embedding:  embeddingAt(0.7),
		})

		ctx, messages := newCtxWithNotifyCapture()
		tools := core.New(repo, newEmbedder(), model.DefaultRetrievalWeights())
		result, err := findTool(tools, "core__retrieve_context").Run(ctx, map[string]any{
			"query": "how should I plan retirement income",
		})
		gt.NoError(t, err).Required()

		gt.Array(t, result["memories"].([]map[string]any)).Length(1)
		gt.Array(t, result["cases"].([]map[string]any)).Length(1)
		gt.Array(t, result["rules"].([]map[string]any)).Length(1)
		gt.Value(t, result["rationale"]).Equal(
			"Retrieved 1 memories (observation=1); " +
				"1 cases covering task types [retirement_planning]; " +
				"1 rules (avg confidence 0.90).")
		gt.Array(t, *messages).Length(1)
	})

	t.Run("advances last accessed of returned memories", func(t *testing.T) {
		repo := newRepo()
		stale := time.Now().Add(-24 * time.Hour)
		putMemory(t, repo, &model.Memory{
			ID:           "mem-1",
			Description:  "stale memory",
			Timestamp:    stale,
			LastAccessed: stale,
			Importance:   0.5,
			Kind:         types.MemoryKindObservation,
			Embedding:    embeddingAt(0.9),
		})

		tools := core.New(repo, newEmbedder(), model.DefaultRetrievalWeights())
		_, err := findTool(tools, "core__retrieve_context").Run(context.Background(), map[string]any{
			"query": "anything",
		})
		gt.NoError(t, err).Required()

		got, err := repo.Memories().Get(context.Background(), "mem-1")
		gt.NoError(t, err).Required()
		gt.Bool(t, got.LastAccessed.After(stale)).True()
	})

	t.Run("filters cases by task type and rules by confidence", func(t *testing.T) {
		repo := newRepo()
		putCase(t, repo, &model.Case{ID: "case-a", TaskType: "budgeting", Situation: "s", Embedding: embeddingAt(0.9)})
		putCase(t, repo, &model.Case{ID: "case-b", TaskType: "retirement_planning", Situation: "s", Embedding: embeddingAt(0.9)})
		putRule(t, repo, &model.Rule{ID: "rule-a", Principle: "p", Confidence: 0.3, Embedding: embeddingAt(0.9)})
		putRule(t, repo, &model.Rule{ID: "rule-b", Principle: "p", Confidence: 0.8, Embedding: embeddingAt(0.9)})

		tools := core.New(repo, newEmbedder(), model.DefaultRetrievalWeights())
		result, err := findTool(tools, "core__retrieve_context").Run(context.Background(), map[string]any{
			"query":          "q",
			"task_type":      "budgeting",
			"min_confidence": 0.5,
		})
		gt.NoError(t, err).Required()

		cases := result["cases"].([]map[string]any)
		gt.Array(t, cases).Length(1)
		gt.Value(t, cases[0]["id"]).Equal("case-a")

		rules := result["rules"].([]map[string]any)
		gt.Array(t, rules).Length(1)
		gt.Value(t, rules[0]["id"]).Equal("rule-b")
	})

	t.Run("phase boosts covering cases", func(t *testing.T) {
		repo := newRepo()
		putCase(t, repo, &model.Case{
			ID:        "case-1",
			TaskType:  "budgeting",
			Situation: "s",
			Embedding: embeddingAt(0.8),
			Meta: model.CaseMeta{
				DialogueTechniques: model.DialogueTechniques{
					PhasesCovered: []types.ConsultationPhase{types.PhaseFactFinding},
				},
			},
		})

		tools := core.New(repo, newEmbedder(), model.DefaultRetrievalWeights())
		result, err := findTool(tools, "core__retrieve_context").Run(context.Background(), map[string]any{
			"query": "q",
			"phase": "fact_finding",
		})
		gt.NoError(t, err).Required()

		cases := result["cases"].([]map[string]any)
		gt.Array(t, cases).Length(1)
		score := cases[0]["final_score"].(float64)
		gt.Bool(t, score > 0.85).True()
	})

	t.Run("returns error when query is missing", func(t *testing.T) {
		tools := core.New(newRepo(), newEmbedder(), model.DefaultRetrievalWeights())
		_, err := findTool(tools, "core__retrieve_context").Run(context.Background(), map[string]any{})
		gt.Error(t, err)
	})

	t.Run("propagates embedding failure", func(t *testing.T) {
		embedder := &stubEmbedder{embedFn: func(ctx context.Context, text string) ([]float32, error) {
			return nil, errors.New("embedding unavailable")
		}}
		tools := core.New(newRepo(), embedder, model.DefaultRetrievalWeights())
		_, err := findTool(tools, "core__retrieve_context").Run(context.Background(), map[string]any{"query": "q"})
		gt.Error(t, err)
	})
}

func TestSearchCasesTool(t *testing.T) {
	t.Run("ranks by similarity", func(t *testing.T) {
		repo := newRepo()
		putCase(t, repo, &model.Case{ID: "far", Situation: "s", Embedding: embeddingAt(0.3)})
		putCase(t, repo, &model.Case{ID: "near", Situation: "s", Embedding: embeddingAt(0.95)})

		tools := core.New(repo, newEmbedder(), model.DefaultRetrievalWeights())
		result, err := findTool(tools, "core__search_cases").Run(context.Background(), map[string]any{"query": "q"})
		gt.NoError(t, err).Required()

		items := result["cases"].([]map[string]any)
		gt.Array(t, items).Length(2)
		gt.Value(t, items[0]["id"]).Equal("near")
		gt.Value(t, items[1]["id"]).Equal("far")
	})

	t.Run("filters by task type", func(t *testing.T) {
		repo := newRepo()
		putCase(t, repo, &model.Case{ID: "case-a", TaskType: "budgeting", Situation: "s", Embedding: embeddingAt(0.9)})
		putCase(t, repo, &model.Case{ID: "case-b", TaskType: "protection", Situation: "s", Embedding: embeddingAt(0.9)})

		tools := core.New(repo, newEmbedder(), model.DefaultRetrievalWeights())
		result, err := findTool(tools, "core__search_cases").Run(context.Background(), map[string]any{
			"query":     "q",
			"task_type": "protection",
		})
		gt.NoError(t, err).Required()

		items := result["cases"].([]map[string]any)
		gt.Array(t, items).Length(1)
		gt.Value(t, items[0]["id"]).Equal("case-b")
	})

	t.Run("returns error when query is missing", func(t *testing.T) {
		tools := core.New(newRepo(), newEmbedder(), model.DefaultRetrievalWeights())
		_, err := findTool(tools, "core__search_cases").Run(context.Background(), map[string]any{})
		gt.Error(t, err)
	})
}

func TestSearchRulesTool(t *testing.T) {
	t.Run("ranks by similarity weighted with confidence", func(t *testing.T) {
		repo := newRepo()
		putRule(t, repo, &model.Rule{ID: "close-shaky", Principle: "p", Confidence: 0.5, Embedding: embeddingAt(1.0)})
		putRule(t, repo, &model.Rule{ID: "solid", Principle: "p", Confidence: 0.9, Embedding: embeddingAt(0.8)})

		tools := core.New(repo, newEmbedder(), model.DefaultRetrievalWeights())
		result, err := findTool(tools, "core__search_rules").Run(context.Background(), map[string]any{"query": "q"})
		gt.NoError(t, err).Required()

		items := result["rules"].([]map[string]any)
		gt.Array(t, items).Length(2)
		gt.Value(t, items[0]["id"]).Equal("solid")
	})

	t.Run("drops rules below min confidence", func(t *testing.T) {
		repo := newRepo()
		putRule(t, repo, &model.Rule{ID: "weak", Principle: "p", Confidence: 0.2, Embedding: embeddingAt(0.9)})
		putRule(t, repo, &model.Rule{ID: "strong", Principle: "p", Confidence: 0.8, Embedding: embeddingAt(0.9)})

		tools := core.New(repo, newEmbedder(), model.DefaultRetrievalWeights())
		result, err := findTool(tools, "core__search_rules").Run(context.Background(), map[string]any{
			"query":          "q",
			"min_confidence": 0.5,
		})
		gt.NoError(t, err).Required()

		items := result["rules"].([]map[string]any)
		gt.Array(t, items).Length(1)
		gt.Value(t, items[0]["id"]).Equal("strong")
	})

	t.Run("returns error when query is missing", func(t *testing.T) {
		tools := core.New(newRepo(), newEmbedder(), model.DefaultRetrievalWeights())
		_, err := findTool(tools, "core__search_rules").Run(context.Background(), map[string]any{})
		gt.Error(t, err)
	})
}

func TestAddMemoryTool(t *testing.T) {
	t.Run("records memory with generated embedding", func(t *testing.T) {
		repo := newRepo()
		ctx, messages := newCtxWithNotifyCapture()
		tools := core.New(repo, newEmbedder(), model.DefaultRetrievalWeights())

		result, err := findTool(tools, "core__add_memory").Run(ctx, map[string]any{
			"description": "client prefers quarterly reviews",
			"kind":        "plan",
			"importance":  0.7,
		})
		gt.NoError(t, err).Required()
		gt.Value(t, result["kind"]).Equal("plan")
		gt.Value(t, result["importance"]).Equal(0.7)

		stored, err := repo.Memories().List(context.Background())
		gt.NoError(t, err).Required()
		gt.Array(t, stored).Length(1).Required()
		gt.Value(t, stored[0].Description).Equal("client prefers quarterly reviews")
		gt.Value(t, stored[0].Kind).Equal(types.MemoryKindPlan)
		gt.Value(t, stored[0].Importance).Equal(0.7)
		gt.Array(t, stored[0].Embedding).Length(testDimension)
		gt.Value(t, stored[0].LastAccessed).Equal(stored[0].Timestamp)
		gt.Array(t, *messages).Length(1)
	})

	t.Run("defaults importance to 0.5", func(t *testing.T) {
		repo := newRepo()
		tools := core.New(repo, newEmbedder(), model.DefaultRetrievalWeights())

		result, err := findTool(tools, "core__add_memory").Run(context.Background(), map[string]any{
			"description": "note",
			"kind":        "observation",
		})
		gt.NoError(t, err).Required()
		gt.Value(t, result["importance"]).Equal(0.5)
	})

	t.Run("rejects unknown kind", func(t *testing.T) {
		tools := core.New(newRepo(), newEmbedder(), model.DefaultRetrievalWeights())
		_, err := findTool(tools, "core__add_memory").Run(context.Background(), map[string]any{
			"description": "note",
			"kind":        "daydream",
		})
		gt.Error(t, err)
	})

	t.Run("rejects out-of-range importance", func(t *testing.T) {
		tools := core.New(newRepo(), newEmbedder(), model.DefaultRetrievalWeights())
		_, err := findTool(tools, "core__add_memory").Run(context.Background(), map[string]any{
			"description": "note",
			"kind":        "observation",
			"importance":  1.5,
		})
		gt.Error(t, err)
	})

	t.Run("returns error when description is missing", func(t *testing.T) {
		tools := core.New(newRepo(), newEmbedder(), model.DefaultRetrievalWeights())
		_, err := findTool(tools, "core__add_memory").Run(context.Background(), map[string]any{"kind": "plan"})
		gt.Error(t, err)
	})
}

func TestListRecentMemoriesTool(t *testing.T) {
	t.Run("lists only memories inside the window", func(t *testing.T) {
		repo := newRepo()
		now := time.Now()
		putMemory(t, repo, &model.Memory{
			ID: "recent", Description: "d", Timestamp: now.Add(-time.Hour),
			LastAccessed: now.Add(-time.Hour), Kind: types.MemoryKindObservation,
		})
		putMemory(t, repo, &model.Memory{
			ID: "old", Description: "d", Timestamp: now.Add(-48 * time.Hour),
			LastAccessed: now.Add(-48 * time.Hour), Kind: types.MemoryKindObservation,
		})

		tools := core.New(repo, newEmbedder(), model.DefaultRetrievalWeights())
		result, err := findTool(tools, "core__list_recent_memories").Run(context.Background(), map[string]any{})
		gt.NoError(t, err).Required()

		items := result["memories"].([]map[string]any)
		gt.Array(t, items).Length(1)
		gt.Value(t, items[0]["id"]).Equal("recent")
		gt.Value(t, result["count"]).Equal(1)
	})

	t.Run("does not advance last accessed", func(t *testing.T) {
		repo := newRepo()
		formed := time.Now().Add(-time.Hour)
		putMemory(t, repo, &model.Memory{
			ID: "mem-1", Description: "d", Timestamp: formed,
			LastAccessed: formed, Kind: types.MemoryKindObservation,
		})

		tools := core.New(repo, newEmbedder(), model.DefaultRetrievalWeights())
		_, err := findTool(tools, "core__list_recent_memories").Run(context.Background(), map[string]any{})
		gt.NoError(t, err).Required()

		got, err := repo.Memories().Get(context.Background(), "mem-1")
		gt.NoError(t, err).Required()
		gt.Value(t, got.LastAccessed).Equal(formed)
	})

	t.Run("respects custom window and limit", func(t *testing.T) {
		repo := newRepo()
		now := time.Now()
		for i, id := range []string{"a", "b", "c"} {
			putMemory(t, repo, &model.Memory{
				ID: model.MemoryID(id), Description: "d",
				Timestamp:    now.Add(-time.Duration(i+1) * time.Hour),
				LastAccessed: now.Add(-time.Duration(i+1) * time.Hour),
				Kind:         types.MemoryKindPlan,
			})
		}

		tools := core.New(repo, newEmbedder(), model.DefaultRetrievalWeights())
		result, err := findTool(tools, "core__list_recent_memories").Run(context.Background(), map[string]any{
			"hours": float64(2),
			"limit": float64(1),
		})
		gt.NoError(t, err).Required()

		items := result["memories"].([]map[string]any)
		gt.Array(t, items).Length(1)
		gt.Value(t, items[0]["id"]).Equal("a")
	})
}
