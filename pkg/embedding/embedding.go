// Package embedding defines the text-embedding contract used by the
// semantic cache index. The embedder is an optional capability: when
// none is configured the cache runs in exact-match-only mode.
package embedding

import (
	"context"
	"errors"
)

// Common errors returned by embedding providers.
var (
	ErrEmptyInput    = errors.New("empty input text")
	ErrRateLimited   = errors.New("rate limited by embedding provider")
	ErrInvalidAPIKey = errors.New("invalid API key")
)

// Provider converts prompt text into fixed-dimension vectors.
type Provider interface {
	// Embed converts a single text into a vector embedding.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the embedding dimension for this provider.
	Dimension() int

	// ModelName returns the name of the embedding model.
	ModelName() string
}
