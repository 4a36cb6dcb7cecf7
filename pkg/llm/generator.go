// Package llm defines the text-generation boundary and a caching
// decorator over it. The decorator is how applications adopt the cache
// without touching call sites: wrap a provider-backed Generator once
// and every identical or near-identical prompt after the first is
// served from storage.
package llm

import (
	"context"

	"github.com/inkwell-ai/recall/pkg/llmcache"
	"github.com/inkwell-ai/recall/pkg/telemetry"
)

// Result is a completed generation and its actual cost in dollars.
// A zero Cost means the provider did not report one and the price
// table estimate applies.
type Result struct {
	Text string
	Cost float64
}

// Generator produces text for a prompt under a fixed parameter set.
type Generator interface {
	Generate(ctx context.Context, prompt string, params llmcache.Params) (Result, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, prompt string, params llmcache.Params) (Result, error)

func (f GeneratorFunc) Generate(ctx context.Context, prompt string, params llmcache.Params) (Result, error) {
	return f(ctx, prompt, params)
}

// CachedGenerator wraps a Generator with a response cache. Lookups
// happen before the wrapped call; successful generations are written
// back. Errors from the wrapped Generator pass through untouched and
// are never cached.
type CachedGenerator struct {
	inner Generator
	cache *llmcache.Cache
}

// NewCachedGenerator wraps gen with cache.
func NewCachedGenerator(gen Generator, cache *llmcache.Cache) *CachedGenerator {
	return &CachedGenerator{inner: gen, cache: cache}
}

// Generate returns a cached response when one exists, otherwise calls
// the wrapped Generator and stores its output. A hit reports zero Cost;
// the money was spent when the entry was first created.
func (g *CachedGenerator) Generate(ctx context.Context, prompt string, params llmcache.Params) (Result, error) {
	if text, ok := g.cache.Get(ctx, prompt, params); ok {
		return Result{Text: text}, nil
	}

	genCtx, span := telemetry.StartGeneration(ctx, params.Model)
	res, err := g.inner.Generate(genCtx, prompt, params)
	if err != nil {
		telemetry.RecordError(span, err)
		span.End()
		return Result{}, err
	}
	span.End()

	g.cache.Set(ctx, prompt, params, res.Text, res.Cost)
	return res, nil
}

// Stats exposes the underlying cache counters.
func (g *CachedGenerator) Stats() llmcache.UsageStats {
	return g.cache.Stats()
}
