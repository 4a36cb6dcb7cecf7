// Package metrics provides Prometheus instrumentation for Recall.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metric collectors for Recall.
type Metrics struct {
	LookupsTotal   *prometheus.CounterVec
	LookupDuration prometheus.Histogram
	StoreEntries   prometheus.Gauge
	CostSaved      prometheus.Counter
	CostSpent      prometheus.Counter
	DegradedTotal  *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates and registers all Recall metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	// Include default Go and process collectors
	reg.MustRegister(prometheus.NewGoCollector())
	reg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	m := &Metrics{
		LookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recall_lookups_total",
				Help: "Total cache lookups by result (exact/semantic/miss).",
			},
			[]string{"result"},
		),
		LookupDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "recall_lookup_duration_seconds",
				Help:    "Cache lookup latency distribution, semantic path included.",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
		),
		StoreEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "recall_store_entries",
				Help: "Number of entries currently held by the response store.",
			},
		),
		CostSaved: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "recall_cost_saved_dollars_total",
				Help: "Cumulative estimated dollars saved by cache hits.",
			},
		),
		CostSpent: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "recall_cost_spent_dollars_total",
				Help: "Cumulative estimated dollars spent on cache misses.",
			},
		),
		DegradedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recall_degraded_total",
				Help: "Operations that fell back after a backend failure.",
			},
			[]string{"backend"},
		),
		registry: reg,
	}

	reg.MustRegister(
		m.LookupsTotal,
		m.LookupDuration,
		m.StoreEntries,
		m.CostSaved,
		m.CostSpent,
		m.DegradedTotal,
	)

	return m
}

// Handler returns an http.Handler that serves the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordLookup records a completed lookup's metrics.
func (m *Metrics) RecordLookup(result string, duration time.Duration) {
	m.LookupsTotal.WithLabelValues(result).Inc()
	m.LookupDuration.Observe(duration.Seconds())
}

// AddCostSaved adds dollars saved by a hit.
func (m *Metrics) AddCostSaved(dollars float64) {
	m.CostSaved.Add(dollars)
}

// AddCostSpent adds dollars spent on a miss.
func (m *Metrics) AddCostSpent(dollars float64) {
	m.CostSpent.Add(dollars)
}

// RecordDegraded counts a backend failure that was absorbed by a
// fallback path.
func (m *Metrics) RecordDegraded(backend string) {
	m.DegradedTotal.WithLabelValues(backend).Inc()
}

// SetStoreEntries updates the store size gauge.
func (m *Metrics) SetStoreEntries(n int) {
	m.StoreEntries.Set(float64(n))
}
