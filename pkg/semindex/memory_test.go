package semindex

import (
	"context"
	"errors"
	"math"
	"strconv"
	"testing"
)

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 0, 0}, []float32{1, 0, 0}, 1.0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0.0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1.0},
		{"scaled", []float32{1, 2, 3}, []float32{2, 4, 6}, 1.0},
		{"empty", nil, nil, 0.0},
		{"zero magnitude", []float32{0, 0}, []float32{1, 1}, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Cosine(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Cosine(%v, %v) = %f, want %f", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestCosine_MismatchedLengths(t *testing.T) {
	// Shorter prefix applies
	got := Cosine([]float32{1, 0, 5}, []float32{1, 0})
	want := Cosine([]float32{1, 0}, []float32{1, 0})
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("expected prefix comparison %f, got %f", want, got)
	}
}

func TestCosine_Clamped(t *testing.T) {
	// Accumulated rounding must never push the score outside [-1, 1]
	a := make([]float32, 512)
	for i := range a {
		a[i] = 0.1
	}
	got := Cosine(a, a)
	if got > 1.0 || got < -1.0 {
		t.Errorf("score %f outside [-1, 1]", got)
	}
}

func TestMemory_AddSearch(t *testing.T) {
	m := NewMemory(10)
	ctx := context.Background()

	_ = m.Add(ctx, "key1", []float32{1, 0, 0})
	_ = m.Add(ctx, "key2", []float32{0, 1, 0})

	cand, ok, err := m.Search(ctx, []float32{1, 0, 0}, 0.9)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if !ok {
		t.Fatal("expected a match")
	}
	if cand.Key != "key1" {
		t.Errorf("expected key1, got %s", cand.Key)
	}
	if cand.Score < 0.999 {
		t.Errorf("expected score ~1.0, got %f", cand.Score)
	}
}

func TestMemory_ThresholdExcludes(t *testing.T) {
	m := NewMemory(10)
	ctx := context.Background()

	_ = m.Add(ctx, "key1", []float32{1, 0})

	// Orthogonal query scores 0, below any positive threshold
	_, ok, err := m.Search(ctx, []float32{0, 1}, 0.5)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if ok {
		t.Error("expected no match below threshold")
	}
}

func TestMemory_RaisingThresholdOnlyRemovesMatches(t *testing.T) {
	m := NewMemory(10)
	ctx := context.Background()

	_ = m.Add(ctx, "close", []float32{0.9, 0.1})
	_ = m.Add(ctx, "far", []float32{0.1, 0.9})

	query := []float32{1, 0}

	var prev int
	for _, threshold := range []float64{0.0, 0.5, 0.9, 0.999} {
		matches := 0
		if _, ok, _ := m.Search(ctx, query, threshold); ok {
			matches = 1
		}
		if threshold == 0.0 {
			prev = matches
			continue
		}
		if matches > prev {
			t.Errorf("raising threshold to %f produced a new match", threshold)
		}
		prev = matches
	}
}

func TestMemory_TieBreakPrefersFreshest(t *testing.T) {
	m := NewMemory(10)
	ctx := context.Background()

	// Two entries with identical vectors: the newer one wins
	vec := []float32{0.6, 0.8}
	_ = m.Add(ctx, "older", vec)
	_ = m.Add(ctx, "newer", vec)

	cand, ok, err := m.Search(ctx, vec, 0.9)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if !ok {
		t.Fatal("expected a match")
	}
	if cand.Key != "newer" {
		t.Errorf("expected tie to resolve to newest entry, got %s", cand.Key)
	}
}

func TestMemory_ReAddMovesToFreshEnd(t *testing.T) {
	m := NewMemory(2)
	ctx := context.Background()

	_ = m.Add(ctx, "a", []float32{1, 0})
	_ = m.Add(ctx, "b", []float32{0, 1})
	// Re-adding "a" makes it the freshest; the bound then drops "b"
	_ = m.Add(ctx, "a", []float32{1, 0})
	_ = m.Add(ctx, "c", []float32{0.5, 0.5})

	if m.Len() != 2 {
		t.Fatalf("expected 2 vectors, got %d", m.Len())
	}
	if _, ok, _ := m.Search(ctx, []float32{0, 1}, 0.99); ok {
		t.Error("expected b to have been evicted")
	}
	if _, ok, _ := m.Search(ctx, []float32{1, 0}, 0.99); !ok {
		t.Error("expected a to survive after re-add")
	}
}

func TestMemory_BoundEvictsOldest(t *testing.T) {
	m := NewMemory(3)
	ctx := context.Background()

	_ = m.Add(ctx, "v1", []float32{1, 0, 0})
	_ = m.Add(ctx, "v2", []float32{0, 1, 0})
	_ = m.Add(ctx, "v3", []float32{0, 0, 1})
	_ = m.Add(ctx, "v4", []float32{1, 1, 0})

	if m.Len() != 3 {
		t.Fatalf("expected 3 vectors, got %d", m.Len())
	}
	if _, ok, _ := m.Search(ctx, []float32{1, 0, 0}, 0.99); ok {
		t.Error("expected oldest vector v1 to be evicted")
	}
}

func TestMemory_EmptyVector(t *testing.T) {
	m := NewMemory(10)
	ctx := context.Background()

	if err := m.Add(ctx, "key", nil); !errors.Is(err, ErrEmptyVector) {
		t.Errorf("expected ErrEmptyVector from Add, got %v", err)
	}
	if _, _, err := m.Search(ctx, nil, 0.5); !errors.Is(err, ErrEmptyVector) {
		t.Errorf("expected ErrEmptyVector from Search, got %v", err)
	}
}

func TestMemory_Clear(t *testing.T) {
	m := NewMemory(10)
	ctx := context.Background()

	_ = m.Add(ctx, "key1", []float32{1, 0})
	_ = m.Add(ctx, "key2", []float32{0, 1})

	if err := m.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if m.Len() != 0 {
		t.Errorf("expected 0 vectors after clear, got %d", m.Len())
	}
}

func TestMemory_AddDefensivelyCopies(t *testing.T) {
	m := NewMemory(10)
	ctx := context.Background()

	vec := []float32{1, 0}
	_ = m.Add(ctx, "key", vec)
	vec[0] = 0
	vec[1] = 1

	// Mutating the caller's slice must not affect the indexed vector
	if _, ok, _ := m.Search(ctx, []float32{1, 0}, 0.99); !ok {
		t.Error("indexed vector changed after caller mutation")
	}
}

func BenchmarkMemory_Search(b *testing.B) {
	m := NewMemory(10000)
	ctx := context.Background()

	vec := make([]float32, 256)
	for i := range vec {
		vec[i] = float32(i%7) * 0.1
	}
	for i := 0; i < 1000; i++ {
		v := make([]float32, 256)
		copy(v, vec)
		v[i%256] += float32(i) * 0.001
		_ = m.Add(ctx, "key"+strconv.Itoa(i), v)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _, _ = m.Search(ctx, vec, 0.95)
	}
}
