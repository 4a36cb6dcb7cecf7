// Package llmcache memoizes expensive, non-deterministic LLM calls.
// The Cache facade sequences fingerprinting, exact-match lookup,
// optional semantic similarity lookup, and cost accounting. It never
// initiates network calls of its own: the dispatch layer asks the cache
// before calling a provider and reports the result back afterwards.
//
// Backend trouble is invisible to callers. Storage or index failures
// degrade to a miss or a no-op and are logged; the only errors a caller
// ever sees are configuration errors at construction time.
package llmcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/inkwell-ai/recall/pkg/embedding"
	"github.com/inkwell-ai/recall/pkg/metrics"
	"github.com/inkwell-ai/recall/pkg/pricing"
	"github.com/inkwell-ai/recall/pkg/semindex"
	"github.com/inkwell-ai/recall/pkg/store"
	"github.com/inkwell-ai/recall/pkg/telemetry"
)

var tracer = otel.Tracer("github.com/inkwell-ai/recall/pkg/llmcache")

// Config holds facade-level settings.
type Config struct {
	// MaxEntries bounds the default in-process store.
	MaxEntries int64

	// TTL is the cached-entry lifetime. Zero means no expiry.
	TTL time.Duration

	// SimilarityThreshold is the minimum cosine similarity for a
	// semantic hit, in [0, 1]. Raising it only ever reduces hits.
	SimilarityThreshold float64
}

// DefaultConfig returns facade defaults.
func DefaultConfig() Config {
	return Config{
		MaxEntries:          10000,
		TTL:                 30 * 24 * time.Hour,
		SimilarityThreshold: 0.95,
	}
}

// Option customizes a Cache at construction.
type Option func(*Cache)

// WithStore replaces the default in-process store.
func WithStore(s store.Store) Option {
	return func(c *Cache) { c.store = s }
}

// WithIndex supplies a semantic index. Without both an index and an
// embedder the cache runs in exact-match-only mode.
func WithIndex(ix semindex.Index) Option {
	return func(c *Cache) { c.index = ix }
}

// WithEmbedder supplies the embedding provider for semantic lookups.
func WithEmbedder(p embedding.Provider) Option {
	return func(c *Cache) { c.embedder = p }
}

// WithPricing replaces the default price table.
func WithPricing(t pricing.Table) Option {
	return func(c *Cache) { c.prices = t }
}

// WithLogger sets the logger for degradation warnings.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// WithMetrics attaches prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

// WithClock overrides the clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// Cache is the memoization facade. Construct one instance at startup
// and share it by reference; it is safe for concurrent use. Concurrent
// misses on the same key may each trigger generation, and the last Set
// wins.
type Cache struct {
	cfg      Config
	store    store.Store
	index    semindex.Index
	embedder embedding.Provider
	prices   pricing.Table
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
	stats    counters
}

// New validates cfg and builds a Cache. This is the only place the
// caching layer reports errors: invalid settings fail construction,
// never an individual Get or Set.
func New(cfg Config, opts ...Option) (*Cache, error) {
	def := DefaultConfig()
	if cfg.MaxEntries == 0 {
		cfg.MaxEntries = def.MaxEntries
	}
	if cfg.SimilarityThreshold == 0 {
		cfg.SimilarityThreshold = def.SimilarityThreshold
	}

	c := &Cache{
		cfg:    cfg,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	if cfg.SimilarityThreshold < 0 || cfg.SimilarityThreshold > 1 {
		return nil, fmt.Errorf("similarity threshold must be in [0, 1], got %g", cfg.SimilarityThreshold)
	}
	if cfg.MaxEntries < 0 {
		return nil, fmt.Errorf("max entries must be positive, got %d", cfg.MaxEntries)
	}
	if cfg.TTL < 0 {
		return nil, fmt.Errorf("ttl must be non-negative, got %s", cfg.TTL)
	}

	if c.prices == nil {
		c.prices = pricing.DefaultTable()
	}
	if c.store == nil {
		c.store = store.NewMemoryStore(store.Config{
			MaxEntries: cfg.MaxEntries,
			TTL:        cfg.TTL,
			Now:        c.now,
		})
	}
	return c, nil
}

// semanticEnabled reports whether the similarity path is available.
func (c *Cache) semanticEnabled() bool {
	return c.index != nil && c.embedder != nil
}

// Get returns the cached response for an identical or sufficiently
// similar earlier request. On a miss the caller performs the real
// generation and reports it back through Set.
func (c *Cache) Get(ctx context.Context, prompt string, params Params) (string, bool) {
	start := c.now()
	c.stats.totalRequests.Add(1)

	ctx, span := tracer.Start(ctx, "cache.get")
	defer span.End()

	key := Fingerprint(prompt, params)
	span.SetAttributes(attribute.String("cache.key", key))

	if entry, err := c.store.Get(ctx, key); err == nil {
		c.recordHit(ctx, span, "exact", key, entry, start)
		return entry.Response, true
	} else if !errors.Is(err, store.ErrNotFound) {
		c.logger.Warn("cache store lookup failed, treating as miss", "error", err)
	}

	if c.semanticEnabled() {
		if entry, ok := c.findSimilar(ctx, prompt, params); ok {
			c.recordHit(ctx, span, "semantic", entry.Key, entry, start)
			return entry.Response, true
		}
	}

	c.stats.misses.Add(1)
	span.SetAttributes(attribute.Bool("cache.hit", false))
	telemetry.RecordLookupResult(span, "miss", 0, time.Since(start))
	if c.metrics != nil {
		c.metrics.RecordLookup("miss", time.Since(start))
	}
	return "", false
}

// findSimilar runs the similarity path. Any failure along it (embedding,
// index, or a stale candidate whose entry has expired) is a miss, and so
// is a candidate generated under a different parameter set.
func (c *Cache) findSimilar(ctx context.Context, prompt string, params Params) (store.Entry, bool) {
	vec, err := c.embedder.Embed(ctx, prompt)
	if err != nil {
		c.logger.Warn("prompt embedding failed, skipping semantic lookup", "error", err)
		return store.Entry{}, false
	}

	cand, ok, err := c.index.Search(ctx, vec, c.cfg.SimilarityThreshold)
	if err != nil {
		c.logger.Warn("semantic index search failed, skipping semantic lookup", "error", err)
		return store.Entry{}, false
	}
	if !ok {
		return store.Entry{}, false
	}

	entry, err := c.store.Get(ctx, cand.Key)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			c.logger.Warn("cache store lookup failed for similar entry", "error", err)
		}
		return store.Entry{}, false
	}
	if entry.ParamsKey != ParamsFingerprint(params) {
		return store.Entry{}, false
	}
	return entry, true
}

// recordHit updates counters, entry bookkeeping, and instrumentation
// for either hit type. A semantic hit bumps the matched entry's own
// stats; its key is never rewritten.
func (c *Cache) recordHit(ctx context.Context, span trace.Span, hitType, key string, entry store.Entry, start time.Time) {
	if err := c.store.Touch(ctx, key); err != nil && !errors.Is(err, store.ErrNotFound) {
		c.logger.Warn("cache hit bookkeeping failed", "error", err)
	}

	switch hitType {
	case "exact":
		c.stats.exactHits.Add(1)
	case "semantic":
		c.stats.semanticHits.Add(1)
	}
	c.stats.costSaved.Add(entry.CostSaved)

	span.SetAttributes(attribute.Bool("cache.hit", true))
	telemetry.RecordLookupResult(span, hitType, entry.CostSaved, time.Since(start))
	if c.metrics != nil {
		c.metrics.RecordLookup(hitType, time.Since(start))
		c.metrics.AddCostSaved(entry.CostSaved)
	}
}

// Set stores the response of a completed generation. A non-positive
// cost is replaced with a price-table estimate. Storage or index
// failures are logged and swallowed: a failed Set simply means the next
// identical request misses.
func (c *Cache) Set(ctx context.Context, prompt string, params Params, response string, cost float64) {
	ctx, span := tracer.Start(ctx, "cache.set")
	defer span.End()

	key := Fingerprint(prompt, params)
	span.SetAttributes(attribute.String("cache.key", key))

	if cost <= 0 {
		cost = pricing.Estimate(c.prices, prompt, response, params.Model)
	}
	c.stats.costSpent.Add(cost)
	if c.metrics != nil {
		c.metrics.AddCostSpent(cost)
	}

	now := c.now()
	entry := store.Entry{
		Key:            key,
		ParamsKey:      ParamsFingerprint(params),
		Response:       response,
		CreatedAt:      now,
		LastAccessedAt: now,
		CostSaved:      cost,
	}
	if err := c.store.Put(ctx, key, entry); err != nil {
		c.logger.Warn("cache store write failed, response not cached", "error", err)
		return
	}

	if c.semanticEnabled() {
		vec, err := c.embedder.Embed(ctx, prompt)
		if err != nil {
			c.logger.Warn("prompt embedding failed, entry not indexed", "error", err)
			return
		}
		if err := c.index.Add(ctx, key, vec); err != nil {
			c.logger.Warn("semantic index write failed, entry not indexed", "error", err)
		}
	}
}

// Stats returns a snapshot of the aggregate counters. The snapshot is
// a value copy; two calls with no intervening activity are equal.
func (c *Cache) Stats() UsageStats {
	return c.stats.snapshot()
}

// ClearStats resets the aggregate counters to zero.
func (c *Cache) ClearStats() {
	c.stats.reset()
}

// Clear removes all cached entries and indexed vectors.
func (c *Cache) Clear(ctx context.Context) error {
	if err := c.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear store: %w", err)
	}
	if c.index != nil {
		if err := c.index.Clear(ctx); err != nil {
			return fmt.Errorf("clear index: %w", err)
		}
	}
	return nil
}

// Close releases the store and index.
func (c *Cache) Close() error {
	err := c.store.Close()
	if c.index != nil {
		if ierr := c.index.Close(); err == nil {
			err = ierr
		}
	}
	return err
}
