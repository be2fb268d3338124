// Package embed computes vector embeddings for text.
//
// Providers (Ollama, OpenAI/Azure OpenAI, static hashing) implement Embedder.
// Adapter wraps a provider with the batching, pacing, retry and per-item
// fallback policy the retrieval pipeline relies on.
package embed

import (
	"context"
	"fmt"
	"math"
	"time"
)

const (
	// DefaultBatchSize is the number of texts sent per provider call.
	DefaultBatchSize = 32

	// MaxBatchSize bounds a single request payload.
	MaxBatchSize = 256

	// DefaultDimensions matches text-embedding-ada-002.
	DefaultDimensions = 1536

	// StaticDimensions is the static embedder's default width when none is configured.
	StaticDimensions = 256

	// DefaultTimeout bounds one provider call.
	DefaultTimeout = 60 * time.Second

	// DefaultConcurrency is the number of batches in flight.
	DefaultConcurrency = 4
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for texts, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding width.
	Dimensions() int

	// ModelName returns the model identifier recorded in cache manifests.
	ModelName() string

	// Available checks if the embedder can serve requests.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}

// HTTPStatusError is returned by HTTP providers for non-2xx responses so the
// adapter can tell rate limiting and server faults from rejected input.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("embedding request failed with status %d: %s", e.StatusCode, e.Body)
}

// normalizeVector scales v to unit length. Zero vectors are returned as-is.
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
