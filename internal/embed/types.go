// Package embed provides the embedding function the index depends on. The
// index only cares about the input/output contract: text in, fixed-dimension
// vector out, consistent across calls.
package embed

import (
	"context"
	"math"
)

const (
	// StaticDimensions is the vector dimension of the offline static embedder.
	StaticDimensions = 256

	// DefaultOllamaDimensions matches the nomic-embed-text model.
	DefaultOllamaDimensions = 768

	// DefaultCacheSize is the default LRU embedding cache capacity.
	DefaultCacheSize = 1000
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, in order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimension.
	Dimensions() int

	// ModelName returns the model identifier.
	ModelName() string

	// Available reports whether the embedder is ready for use.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}

// normalizeVector normalizes a vector to unit length.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}

	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}

	normalized := make([]float32, len(v))
	for i, val := range v {
		normalized[i] = float32(float64(val) / magnitude)
	}
	return normalized
}
