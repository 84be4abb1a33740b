// Package embedding turns text into vectors suitable for similarity search.
//
// The package defines a small Embedder interface and ships two
// implementations: an OpenAI-compatible HTTP client and a memoizing
// wrapper that deduplicates concurrent requests for the same text.
package embedding

import (
	"context"
	"fmt"
)

// Embedder produces a fixed-dimension vector for a piece of text.
type Embedder interface {
	// Embed returns the embedding vector for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the dimensionality of vectors produced by Embed.
	Dimension() int
}

// ProviderError reports a failure response from an embedding provider.
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("embedding provider error (status %d): %s", e.StatusCode, e.Message)
}

// Retryable reports whether the request may succeed if retried.
func (e *ProviderError) Retryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}
