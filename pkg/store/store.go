// Package store provides exact-match persistence for cached LLM responses.
// Two interchangeable backends exist: a bounded in-process LRU map and a
// Redis-backed remote store. Both treat expired entries as absent.
package store

import (
	"context"
	"errors"
	"time"
)

// Common errors.
var (
	ErrNotFound = errors.New("cache entry not found")
	ErrClosed   = errors.New("store is closed")
)

// Entry is a cached response together with its bookkeeping fields.
// An entry is owned by the store that holds it; callers mutate it only
// through Put and Touch.
type Entry struct {
	Key            string    `json:"key"`
	ParamsKey      string    `json:"params_key,omitempty"`
	Response       string    `json:"response_text"`
	CreatedAt      time.Time `json:"created_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
	HitCount       int64     `json:"hit_count"`
	CostSaved      float64   `json:"cost_saved"`
}

// Store is the exact-match backend contract.
type Store interface {
	// Get retrieves an entry by key. Expired or missing entries return
	// ErrNotFound.
	Get(ctx context.Context, key string) (Entry, error)

	// Put inserts or refreshes an entry. When the key already exists,
	// hit bookkeeping (HitCount, LastAccessedAt) of the stored entry is
	// preserved; only the response, creation time, and cost are replaced.
	Put(ctx context.Context, key string, entry Entry) error

	// Touch records a hit on an existing entry, bumping HitCount and
	// LastAccessedAt. Best effort: a failed Touch never fails a lookup.
	Touch(ctx context.Context, key string) error

	// Delete removes a key. Returns ErrNotFound if absent.
	Delete(ctx context.Context, key string) error

	// Clear removes all entries.
	Clear(ctx context.Context) error

	// Len returns the current number of entries.
	Len(ctx context.Context) (int64, error)

	// Close releases resources.
	Close() error
}

// Config holds settings shared by store backends.
type Config struct {
	// MaxEntries bounds the in-process store (0 = use default).
	MaxEntries int64

	// TTL is the entry lifetime. Zero means entries never expire.
	TTL time.Duration

	// CleanupInterval is how often the in-process store purges expired
	// entries in the background.
	CleanupInterval time.Duration

	// Now overrides the clock, for tests. Nil means time.Now.
	Now func() time.Time
}

// DefaultConfig returns sensible store defaults. The 30-day TTL matches
// the typical lifetime of drafted book content between editing passes.
func DefaultConfig() Config {
	return Config{
		MaxEntries:      10000,
		TTL:             30 * 24 * time.Hour,
		CleanupInterval: time.Minute,
	}
}

func (c Config) clock() func() time.Time {
	if c.Now != nil {
		return c.Now
	}
	return time.Now
}
