package llmcache

import (
	"math"
	"sync/atomic"
)

// UsageStats is an immutable snapshot of the facade's aggregate
// counters. Mutating a snapshot has no effect on the cache.
type UsageStats struct {
	TotalRequests int64
	ExactHits     int64
	SemanticHits  int64
	Misses        int64
	CostSaved     float64
	CostSpent     float64
}

// HitRate returns the combined hit rate as a percentage.
func (s UsageStats) HitRate() float64 {
	if s.TotalRequests == 0 {
		return 0
	}
	return float64(s.ExactHits+s.SemanticHits) / float64(s.TotalRequests) * 100
}

// counters is the live, atomically updated backing for UsageStats.
type counters struct {
	totalRequests atomic.Int64
	exactHits     atomic.Int64
	semanticHits  atomic.Int64
	misses        atomic.Int64
	costSaved     atomicFloat64
	costSpent     atomicFloat64
}

func (c *counters) snapshot() UsageStats {
	return UsageStats{
		TotalRequests: c.totalRequests.Load(),
		ExactHits:     c.exactHits.Load(),
		SemanticHits:  c.semanticHits.Load(),
		Misses:        c.misses.Load(),
		CostSaved:     c.costSaved.Load(),
		CostSpent:     c.costSpent.Load(),
	}
}

func (c *counters) reset() {
	c.totalRequests.Store(0)
	c.exactHits.Store(0)
	c.semanticHits.Store(0)
	c.misses.Store(0)
	c.costSaved.Store(0)
	c.costSpent.Store(0)
}

// atomicFloat64 accumulates a float64 without lost updates, via CAS on
// the bit pattern.
type atomicFloat64 struct {
	bits atomic.Uint64
}

func (f *atomicFloat64) Add(delta float64) {
	for {
		old := f.bits.Load()
		next := math.Float64bits(math.Float64frombits(old) + delta)
		if f.bits.CompareAndSwap(old, next) {
			return
		}
	}
}

func (f *atomicFloat64) Load() float64 {
	return math.Float64frombits(f.bits.Load())
}

func (f *atomicFloat64) Store(v float64) {
	f.bits.Store(math.Float64bits(v))
}
