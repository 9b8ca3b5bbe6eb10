package usecase

import (
	"github.com/advisim-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/advisim-lab/mnemosyne/pkg/domain/model"
	"github.com/advisim-lab/mnemosyne/pkg/service/embedding"
	"github.com/advisim-lab/mnemosyne/pkg/service/recall"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
)

// UseCases bundles the application operations over one repository.
// Assist stays nil unless an LLM client was configured.
type UseCases struct {
	repo      interfaces.Repository
	llmClient gollem.LLMClient
	dimension int
	weights   model.RetrievalWeights

	Context *ContextUseCase
	Record  *RecordUseCase
	Assist  *AssistUseCase
}

type Option func(*UseCases)

// WithLLMClient enables the operations that need an LLM: text queries,
// embedding generation during ingest, and the assist agent.
func WithLLMClient(llmClient gollem.LLMClient) Option {
	return func(uc *UseCases) {
		uc.llmClient = llmClient
	}
}

// WithEmbeddingDimension sets the embedding dimension requested from
// the LLM client. Defaults to model.DefaultEmbeddingDimension.
func WithEmbeddingDimension(dimension int) Option {
	return func(uc *UseCases) {
		uc.dimension = dimension
	}
}

// WithDefaultWeights sets the retrieval weights applied when a caller
// does not pass its own.
func WithDefaultWeights(weights model.RetrievalWeights) Option {
	return func(uc *UseCases) {
		uc.weights = weights
	}
}

func New(repo interfaces.Repository, opts ...Option) (*UseCases, error) {
	uc := &UseCases{
		repo:      repo,
		dimension: model.DefaultEmbeddingDimension,
		weights:   model.DefaultRetrievalWeights(),
	}

	for _, opt := range opts {
		opt(uc)
	}

	if err := uc.weights.Validate(); err != nil {
		return nil, err
	}

	var embedder embedding.Service
	if uc.llmClient != nil {
		svc, err := embedding.New(uc.llmClient, embedding.WithDimension(uc.dimension))
		if err != nil {
			return nil, goerr.Wrap(err, "failed to build embedding service")
		}
		embedder = svc
	}

	memories := recall.NewMemoryIndex(repo.Memories())
	cases := recall.NewCaseIndex(repo.Cases())
	rules := recall.NewRuleIndex(repo.Rules())

	uc.Context = &ContextUseCase{
		memories: memories,
		cases:    cases,
		rules:    rules,
		embedder: embedder,
		weights:  uc.weights,
	}
	uc.Record = &RecordUseCase{
		memories: memories,
		cases:    cases,
		rules:    rules,
		embedder: embedder,
	}
	if uc.llmClient != nil {
		uc.Assist = &AssistUseCase{
			repo:      repo,
			llmClient: uc.llmClient,
			embedder:  embedder,
			weights:   uc.weights,
			dimension: uc.dimension,
		}
	}

	return uc, nil
}
