package embedding

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"

	"github.com/advisim-lab/mnemosyne/pkg/domain/model"
)

// client implements Service interface
type client struct {
	llmClient gollem.LLMClient
	dimension int
}

// Option is a functional option for client configuration
type Option func(*client)

// WithDimension sets the dimension of generated vectors
func WithDimension(dimension int) Option {
	return func(c *client) {
		c.dimension = dimension
	}
}

// New creates a new embedding service with the provided LLM client
func New(llmClient gollem.LLMClient, opts ...Option) (Service, error) {
	if llmClient == nil {
		return nil, goerr.New("LLM client is required")
	}

	c := &client{
		llmClient: llmClient,
		dimension: model.DefaultEmbeddingDimension,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

func (c *client) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (c *client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	embeddings, err := c.llmClient.GenerateEmbedding(ctx, c.dimension, texts)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate embeddings", goerr.V("count", len(texts)))
	}
	if len(embeddings) != len(texts) {
		return nil, goerr.New("embedding count does not match input count",
			goerr.V("want", len(texts)), goerr.V("got", len(embeddings)))
	}

	vectors := make([][]float32, len(embeddings))
	for i, emb := range embeddings {
		vec := make([]float32, len(emb))
		for j, v := range emb {
			vec[j] = float32(v)
		}
		vectors[i] = vec
	}
	return vectors, nil
}

func (c *client) Dimension() int {
	return c.dimension
}
