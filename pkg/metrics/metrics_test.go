package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestNew(t *testing.T) {
	m := New()
	if m == nil {
		t.Fatal("New() returned nil")
	}
	if m.registry == nil {
		t.Fatal("registry is nil")
	}
}

func TestRecordLookup(t *testing.T) {
	m := New()
	m.RecordLookup("exact", 1*time.Millisecond)
	m.RecordLookup("exact", 2*time.Millisecond)
	m.RecordLookup("semantic", 50*time.Millisecond)
	m.RecordLookup("miss", 100*time.Microsecond)

	if val := counterValue(t, m.LookupsTotal, "result", "exact"); val != 2 {
		t.Errorf("expected 2 exact lookups, got %f", val)
	}
	if val := counterValue(t, m.LookupsTotal, "result", "semantic"); val != 1 {
		t.Errorf("expected 1 semantic lookup, got %f", val)
	}
	if val := counterValue(t, m.LookupsTotal, "result", "miss"); val != 1 {
		t.Errorf("expected 1 miss, got %f", val)
	}
}

func TestCostCounters(t *testing.T) {
	m := New()
	m.AddCostSaved(0.05)
	m.AddCostSaved(0.10)
	m.AddCostSpent(0.02)

	var metric dto.Metric
	if err := m.CostSaved.Write(&metric); err != nil {
		t.Fatalf("failed to read counter: %v", err)
	}
	if got := metric.GetCounter().GetValue(); got < 0.1499 || got > 0.1501 {
		t.Errorf("expected ~0.15 saved, got %f", got)
	}

	metric.Reset()
	if err := m.CostSpent.Write(&metric); err != nil {
		t.Fatalf("failed to read counter: %v", err)
	}
	if got := metric.GetCounter().GetValue(); got != 0.02 {
		t.Errorf("expected 0.02 spent, got %f", got)
	}
}

func TestRecordDegraded(t *testing.T) {
	m := New()
	m.RecordDegraded("redis")
	m.RecordDegraded("redis")
	m.RecordDegraded("qdrant")

	if val := counterValue(t, m.DegradedTotal, "backend", "redis"); val != 2 {
		t.Errorf("expected 2 redis degradations, got %f", val)
	}
	if val := counterValue(t, m.DegradedTotal, "backend", "qdrant"); val != 1 {
		t.Errorf("expected 1 qdrant degradation, got %f", val)
	}
}

func TestSetStoreEntries(t *testing.T) {
	m := New()
	m.SetStoreEntries(42)

	var metric dto.Metric
	if err := m.StoreEntries.Write(&metric); err != nil {
		t.Fatalf("failed to read gauge: %v", err)
	}
	if metric.GetGauge().GetValue() != 42 {
		t.Errorf("expected 42 entries, got %f", metric.GetGauge().GetValue())
	}
}

func TestHandler(t *testing.T) {
	m := New()
	m.RecordLookup("exact", 10*time.Millisecond)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}

	body := rec.Body.String()
	if !strings.Contains(body, "recall_lookups_total") {
		t.Error("metrics output missing recall_lookups_total")
	}
	if !strings.Contains(body, "recall_lookup_duration_seconds") {
		t.Error("metrics output missing recall_lookup_duration_seconds")
	}
	if !strings.Contains(body, "go_goroutines") {
		t.Error("metrics output missing go runtime metrics")
	}
}

// counterValue extracts the value of a counter with the given label pairs.
func counterValue(t *testing.T, cv *prometheus.CounterVec, labelPairs ...string) float64 {
	t.Helper()
	labels := prometheus.Labels{}
	for i := 0; i < len(labelPairs); i += 2 {
		labels[labelPairs[i]] = labelPairs[i+1]
	}
	counter, err := cv.GetMetricWith(labels)
	if err != nil {
		t.Fatalf("failed to get metric: %v", err)
	}
	var metric dto.Metric
	if err := counter.Write(&metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	return metric.GetCounter().GetValue()
}
