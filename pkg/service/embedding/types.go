package embedding

import "context"

// Service defines the interface for text embedding generation
type Service interface {
	// Embed generates an embedding vector for a single text
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embedding vectors for multiple texts in one
	// call, preserving input order
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the vector dimension this service produces
	Dimension() int
}
