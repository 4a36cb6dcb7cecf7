// Package semindex maintains prompt embeddings and answers
// nearest-neighbor queries for semantic cache lookups. A semantic match
// returns the store key of a previously answered, differently-worded
// prompt whose embedding clears a similarity threshold.
package semindex

import (
	"context"
	"errors"
)

// Common errors.
var (
	ErrEmptyVector = errors.New("empty query vector")
)

// Candidate pairs a stored cache key with its similarity score. It is
// transient: produced during lookup and discarded once the caller has
// decided hit or miss.
type Candidate struct {
	Key   string
	Score float64
}

// Index is the nearest-neighbor backend contract. Implementations:
// the in-process Memory index, and the qdrant and pinecone subpackages
// for remote vector services.
type Index interface {
	// Add indexes a prompt vector under the given cache key. Re-adding
	// a key replaces its vector and refreshes its recency.
	Add(ctx context.Context, key string, vector []float32) error

	// Search returns the best candidate whose cosine similarity to the
	// query vector is at least threshold. The boolean is false when no
	// candidate clears the threshold. Equal top scores resolve to the
	// most recently added entry.
	Search(ctx context.Context, vector []float32, threshold float64) (Candidate, bool, error)

	// Clear removes all indexed vectors.
	Clear(ctx context.Context) error

	// Close releases resources.
	Close() error
}
