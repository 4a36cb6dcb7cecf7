package llmcache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/inkwell-ai/recall/pkg/pricing"
	"github.com/inkwell-ai/recall/pkg/semindex"
	"github.com/inkwell-ai/recall/pkg/store"
)

// stubEmbedder returns a fixed vector per known prompt.
type stubEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	if v, ok := s.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 0, 1}, nil
}

func (s *stubEmbedder) Dimension() int    { return 3 }
func (s *stubEmbedder) ModelName() string { return "stub" }

// brokenStore fails every operation.
type brokenStore struct{}

var errDown = errors.New("backend down")

func (brokenStore) Get(ctx context.Context, key string) (store.Entry, error) {
	return store.Entry{}, errDown
}
func (brokenStore) Put(ctx context.Context, key string, entry store.Entry) error { return errDown }
func (brokenStore) Touch(ctx context.Context, key string) error                  { return errDown }
func (brokenStore) Delete(ctx context.Context, key string) error                 { return errDown }
func (brokenStore) Clear(ctx context.Context) error                              { return errDown }
func (brokenStore) Len(ctx context.Context) (int64, error)                       { return 0, errDown }
func (brokenStore) Close() error                                                 { return nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestCache(t *testing.T, cfg Config, opts ...Option) *Cache {
	t.Helper()
	opts = append([]Option{WithLogger(testLogger())}, opts...)
	c, err := New(cfg, opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCache_RoundTrip(t *testing.T) {
	c := newTestCache(t, Config{})
	ctx := context.Background()

	params := Params{Provider: "openai", Model: "gpt-4", Temperature: 0.7}

	if _, ok := c.Get(ctx, "prompt", params); ok {
		t.Fatal("expected miss on empty cache")
	}

	c.Set(ctx, "prompt", params, "the response", 0.05)

	text, ok := c.Get(ctx, "prompt", params)
	if !ok {
		t.Fatal("expected hit after Set")
	}
	if text != "the response" {
		t.Errorf("expected 'the response', got '%s'", text)
	}
}

func TestCache_ParamsIsolate(t *testing.T) {
	c := newTestCache(t, Config{})
	ctx := context.Background()

	a := Params{Model: "gpt-4", Temperature: 0.7}
	b := Params{Model: "gpt-4", Temperature: 0.9}

	c.Set(ctx, "prompt", a, "response-a", 0.01)

	if _, ok := c.Get(ctx, "prompt", b); ok {
		t.Error("different temperature should not share an entry")
	}
	if _, ok := c.Get(ctx, "prompt", a); !ok {
		t.Error("original params should still hit")
	}
}

func TestCache_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"threshold above 1", Config{SimilarityThreshold: 1.5}},
		{"negative threshold", Config{SimilarityThreshold: -0.5}},
		{"negative max entries", Config{MaxEntries: -1}},
		{"negative ttl", Config{TTL: -time.Hour}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg); err == nil {
				t.Error("expected construction error")
			}
		})
	}
}

func TestCache_TTLExpiry(t *testing.T) {
	current := time.Now()
	clock := func() time.Time { return current }

	c := newTestCache(t, Config{TTL: time.Hour}, WithClock(clock))
	ctx := context.Background()

	params := Params{Model: "gpt-4"}
	c.Set(ctx, "prompt", params, "response", 0.01)

	if _, ok := c.Get(ctx, "prompt", params); !ok {
		t.Fatal("expected hit before TTL")
	}

	current = current.Add(2 * time.Hour)
	if _, ok := c.Get(ctx, "prompt", params); ok {
		t.Error("expected miss after TTL elapsed")
	}

	stats := c.Stats()
	if stats.Misses != 1 {
		t.Errorf("expected 1 miss (the expired lookup), got %d", stats.Misses)
	}
}

func TestCache_Stats(t *testing.T) {
	c := newTestCache(t, Config{})
	ctx := context.Background()

	params := Params{Model: "gpt-4"}

	_, _ = c.Get(ctx, "prompt", params) // miss
	c.Set(ctx, "prompt", params, "response", 0.10)
	_, _ = c.Get(ctx, "prompt", params) // exact hit
	_, _ = c.Get(ctx, "prompt", params) // exact hit

	stats := c.Stats()
	if stats.TotalRequests != 3 {
		t.Errorf("expected 3 requests, got %d", stats.TotalRequests)
	}
	if stats.ExactHits != 2 {
		t.Errorf("expected 2 exact hits, got %d", stats.ExactHits)
	}
	if stats.Misses != 1 {
		t.Errorf("expected 1 miss, got %d", stats.Misses)
	}
	if stats.CostSpent != 0.10 {
		t.Errorf("expected 0.10 spent, got %f", stats.CostSpent)
	}
	if stats.CostSaved < 0.1999 || stats.CostSaved > 0.2001 {
		t.Errorf("expected ~0.20 saved (two hits), got %f", stats.CostSaved)
	}

	want := float64(2) / float64(3) * 100
	if got := stats.HitRate(); got != want {
		t.Errorf("expected hit rate %f, got %f", want, got)
	}
}

func TestCache_ClearStats(t *testing.T) {
	c := newTestCache(t, Config{})
	ctx := context.Background()

	params := Params{Model: "gpt-4"}
	c.Set(ctx, "prompt", params, "response", 0.10)
	_, _ = c.Get(ctx, "prompt", params)

	c.ClearStats()

	stats := c.Stats()
	if stats.TotalRequests != 0 || stats.ExactHits != 0 || stats.CostSpent != 0 {
		t.Errorf("expected zeroed stats, got %+v", stats)
	}

	// Entries survive a stats reset
	if _, ok := c.Get(ctx, "prompt", params); !ok {
		t.Error("ClearStats should not evict entries")
	}
}

func TestCache_StatsSnapshotIsolated(t *testing.T) {
	c := newTestCache(t, Config{})
	ctx := context.Background()

	params := Params{Model: "gpt-4"}
	c.Set(ctx, "prompt", params, "response", 0.10)

	s1 := c.Stats()
	s1.TotalRequests = 999

	s2 := c.Stats()
	if s2.TotalRequests == 999 {
		t.Error("mutating a snapshot must not affect the cache")
	}
}

func TestCache_CostEstimatedWhenUnreported(t *testing.T) {
	c := newTestCache(t, Config{})
	ctx := context.Background()

	params := Params{Model: "gpt-4"}
	prompt := "a prompt of some length for token estimation"
	response := "a response of comparable length for token estimation"

	c.Set(ctx, prompt, params, response, 0)

	want := pricing.Estimate(pricing.DefaultTable(), prompt, response, "gpt-4")
	stats := c.Stats()
	if stats.CostSpent != want {
		t.Errorf("expected estimated cost %f, got %f", want, stats.CostSpent)
	}
}

func TestCache_DegradesToMissOnStoreFailure(t *testing.T) {
	c := newTestCache(t, Config{}, WithStore(brokenStore{}))
	ctx := context.Background()

	params := Params{Model: "gpt-4"}

	// Set must not panic or error outward
	c.Set(ctx, "prompt", params, "response", 0.01)

	if _, ok := c.Get(ctx, "prompt", params); ok {
		t.Error("expected miss when the store is down")
	}

	stats := c.Stats()
	if stats.Misses != 1 {
		t.Errorf("expected the failed lookup to count as a miss, got %d", stats.Misses)
	}
	// Spend is still recorded; the provider call happened
	if stats.CostSpent != 0.01 {
		t.Errorf("expected 0.01 spent, got %f", stats.CostSpent)
	}
}

func TestCache_SemanticHit(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float32{
		"write chapter one":   {1, 0, 0},
		"write chapter one!!": {0.999, 0.04, 0},
	}}
	index := semindex.NewMemory(100)

	c := newTestCache(t, Config{SimilarityThreshold: 0.95},
		WithEmbedder(embedder), WithIndex(index))
	ctx := context.Background()

	params := Params{Model: "gpt-4"}
	c.Set(ctx, "write chapter one", params, "Chapter One...", 0.25)

	// Different fingerprint, close embedding
	text, ok := c.Get(ctx, "write chapter one!!", params)
	if !ok {
		t.Fatal("expected semantic hit")
	}
	if text != "Chapter One..." {
		t.Errorf("expected the stored response, got '%s'", text)
	}

	stats := c.Stats()
	if stats.SemanticHits != 1 {
		t.Errorf("expected 1 semantic hit, got %d", stats.SemanticHits)
	}
	if stats.ExactHits != 0 {
		t.Errorf("expected 0 exact hits, got %d", stats.ExactHits)
	}
	if stats.CostSaved != 0.25 {
		t.Errorf("expected 0.25 saved, got %f", stats.CostSaved)
	}
}

func TestCache_SemanticHitRequiresMatchingParams(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float32{
		"write chapter one":   {1, 0, 0},
		"write chapter one!!": {0.999, 0.04, 0},
	}}
	index := semindex.NewMemory(100)

	c := newTestCache(t, Config{SimilarityThreshold: 0.95},
		WithEmbedder(embedder), WithIndex(index))
	ctx := context.Background()

	c.Set(ctx, "write chapter one",
		Params{Model: "gpt-4", Temperature: 0.2}, "gpt-4 prose", 0.25)

	// Similar prompt, different model and temperature: a response
	// generated under other parameters must not be reused.
	if _, ok := c.Get(ctx, "write chapter one!!",
		Params{Model: "gpt-3.5-turbo", Temperature: 0.9}); ok {
		t.Fatal("expected a miss for a similar prompt under different params")
	}
	if got := c.Stats().SemanticHits; got != 0 {
		t.Errorf("expected 0 semantic hits, got %d", got)
	}

	// Same parameter set: the similarity path applies.
	text, ok := c.Get(ctx, "write chapter one!!",
		Params{Model: "gpt-4", Temperature: 0.2})
	if !ok {
		t.Fatal("expected a semantic hit under matching params")
	}
	if text != "gpt-4 prose" {
		t.Errorf("expected the stored response, got '%s'", text)
	}
}

func TestCache_SemanticMissBelowThreshold(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float32{
		"write chapter one": {1, 0, 0},
		"delete everything": {0, 1, 0},
	}}
	index := semindex.NewMemory(100)

	c := newTestCache(t, Config{SimilarityThreshold: 0.95},
		WithEmbedder(embedder), WithIndex(index))
	ctx := context.Background()

	params := Params{Model: "gpt-4"}
	c.Set(ctx, "write chapter one", params, "Chapter One...", 0.25)

	if _, ok := c.Get(ctx, "delete everything", params); ok {
		t.Error("orthogonal prompt should not match semantically")
	}
}

func TestCache_ExactHitSkipsEmbedding(t *testing.T) {
	embedder := &stubEmbedder{err: errors.New("embedding should not be called")}
	index := semindex.NewMemory(100)

	c := newTestCache(t, Config{}, WithEmbedder(embedder), WithIndex(index))
	ctx := context.Background()

	params := Params{Model: "gpt-4"}

	// Set will fail to index (embedder down) but must still store
	c.Set(ctx, "prompt", params, "response", 0.01)

	if _, ok := c.Get(ctx, "prompt", params); !ok {
		t.Error("exact hit should work without the embedder")
	}
	if s := c.Stats(); s.ExactHits != 1 {
		t.Errorf("expected 1 exact hit, got %d", s.ExactHits)
	}
}

func TestCache_EmbedderFailureDegradesToMiss(t *testing.T) {
	embedder := &stubEmbedder{err: errors.New("rate limited")}
	index := semindex.NewMemory(100)

	c := newTestCache(t, Config{}, WithEmbedder(embedder), WithIndex(index))
	ctx := context.Background()

	params := Params{Model: "gpt-4"}
	if _, ok := c.Get(ctx, "never stored", params); ok {
		t.Error("expected miss when embedding fails")
	}
}

func TestCache_Clear(t *testing.T) {
	index := semindex.NewMemory(100)
	embedder := &stubEmbedder{vectors: map[string][]float32{"prompt": {1, 0, 0}}}

	c := newTestCache(t, Config{}, WithEmbedder(embedder), WithIndex(index))
	ctx := context.Background()

	params := Params{Model: "gpt-4"}
	c.Set(ctx, "prompt", params, "response", 0.01)

	if err := c.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	if _, ok := c.Get(ctx, "prompt", params); ok {
		t.Error("expected miss after Clear")
	}
	if index.Len() != 0 {
		t.Errorf("expected empty index after Clear, got %d vectors", index.Len())
	}
}

func TestCache_HitBookkeepingAccumulates(t *testing.T) {
	st := store.NewMemoryStore(store.Config{MaxEntries: 100})
	c := newTestCache(t, Config{}, WithStore(st))
	ctx := context.Background()

	params := Params{Model: "gpt-4"}
	c.Set(ctx, "prompt", params, "response", 0.01)

	_, _ = c.Get(ctx, "prompt", params)
	_, _ = c.Get(ctx, "prompt", params)
	_, _ = c.Get(ctx, "prompt", params)

	entry, err := st.Get(ctx, Fingerprint("prompt", params))
	if err != nil {
		t.Fatalf("store Get failed: %v", err)
	}
	if entry.HitCount != 3 {
		t.Errorf("expected hit count 3, got %d", entry.HitCount)
	}
}
