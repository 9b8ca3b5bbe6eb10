package usecase_test

import (
	"context"
	"math"
	"testing"

	"github.com/advisim-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/advisim-lab/mnemosyne/pkg/domain/model"
	"github.com/advisim-lab/mnemosyne/pkg/repository/memory"
	"github.com/advisim-lab/mnemosyne/pkg/usecase"
	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gt"
)

const testDimension = 3

// mockLLMClient satisfies gollem.LLMClient for embedding generation.
// Without an override every text embeds to the unit query axis.
type mockLLMClient struct {
	generateEmbeddingFn func(ctx context.Context, dimension int, input []string) ([][]float64, error)
}

func (m *mockLLMClient) NewSession(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
	return nil, nil
}

func (m *mockLLMClient) GenerateEmbedding(ctx context.Context, dimension int, input []string) ([][]float64, error) {
	if m.generateEmbeddingFn != nil {
		return m.generateEmbeddingFn(ctx, dimension, input)
	}
	out := make([][]float64, len(input))
	for i := range input {
		vec := make([]float64, dimension)
		vec[0] = 1
		out[i] = vec
	}
	return out, nil
}

func newRepo() interfaces.Repository {
	return memory.New(memory.WithDimension(testDimension))
}

// embeddingAt builds a unit vector whose cosine similarity against the
// mock query axis equals sim.
func embeddingAt(sim float64) []float32 {
	return []float32{float32(sim), float32(math.Sqrt(1 - sim*sim)), 0}
}

func TestNew(t *testing.T) {
	t.Run("builds context and record use cases without an LLM client", func(t *testing.T) {
		uc, err := usecase.New(newRepo())
		gt.NoError(t, err).Required()
		gt.Value(t, uc.Context).NotNil()
		gt.Value(t, uc.Record).NotNil()
		gt.Value(t, uc.Assist).Nil()
	})

	t.Run("enables assist when an LLM client is configured", func(t *testing.T) {
		uc, err := usecase.New(newRepo(),
			usecase.WithLLMClient(&mockLLMClient{}),
			usecase.WithEmbeddingDimension(testDimension),
		)
		gt.NoError(t, err).Required()
		gt.Value(t, uc.Assist).NotNil()
	})

	t.Run("rejects negative default weights", func(t *testing.T) {
		_, err := usecase.New(newRepo(),
			usecase.WithDefaultWeights(model.RetrievalWeights{Recency: -1, Importance: 1, Relevance: 1}),
		)
		gt.Error(t, err)
	})
}
