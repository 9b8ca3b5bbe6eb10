package model

import "math"

// DefaultEmbeddingDimension is the embedding dimension used when no
// explicit dimension is configured. The ingestion pipeline requests
// 1536-dimensional vectors from its embedding model.
const DefaultEmbeddingDimension = 1536

// CosineSimilarity computes the cosine similarity between two embedding
// vectors. It returns 0 when either vector is absent, has zero
// magnitude, or the lengths differ, so callers never see NaN.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x := float64(a[i])
		y := float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
