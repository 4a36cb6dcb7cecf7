package semindex

import (
	"context"
	"sync"
)

// DefaultMaxVectors bounds the in-process index. Brute-force cosine
// over a few thousand prompt vectors stays well under a millisecond.
const DefaultMaxVectors = 10000

// Memory is an in-process brute-force index. Vectors are kept in
// insertion order, oldest first; when the bound is exceeded the oldest
// vector is dropped. Safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	vectors []indexed
	byKey   map[string]int
	max     int
}

type indexed struct {
	key string
	vec []float32
}

// NewMemory creates an in-process index bounded at maxVectors
// (0 = DefaultMaxVectors).
func NewMemory(maxVectors int) *Memory {
	if maxVectors <= 0 {
		maxVectors = DefaultMaxVectors
	}
	return &Memory{
		byKey: make(map[string]int),
		max:   maxVectors,
	}
}

// Add indexes vector under key. An existing key is moved to the fresh
// end with its new vector.
func (m *Memory) Add(ctx context.Context, key string, vector []float32) error {
	if len(vector) == 0 {
		return ErrEmptyVector
	}
	vec := make([]float32, len(vector))
	copy(vec, vector)

	m.mu.Lock()
	defer m.mu.Unlock()

	if i, ok := m.byKey[key]; ok {
		m.removeAt(i)
	}
	for len(m.vectors) >= m.max {
		m.removeAt(0)
	}
	m.byKey[key] = len(m.vectors)
	m.vectors = append(m.vectors, indexed{key: key, vec: vec})
	return nil
}

// Search scans all vectors and returns the best candidate at or above
// threshold. Scanning oldest to newest with a >= comparison makes ties
// resolve to the most recently added entry.
func (m *Memory) Search(ctx context.Context, vector []float32, threshold float64) (Candidate, bool, error) {
	if len(vector) == 0 {
		return Candidate{}, false, ErrEmptyVector
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	best := Candidate{Score: -1}
	found := false
	for _, iv := range m.vectors {
		score := Cosine(vector, iv.vec)
		if score < threshold {
			continue
		}
		if score >= best.Score {
			best = Candidate{Key: iv.key, Score: score}
			found = true
		}
	}
	if !found {
		return Candidate{}, false, nil
	}
	return best, true, nil
}

// Clear removes all vectors.
func (m *Memory) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.vectors = nil
	m.byKey = make(map[string]int)
	return nil
}

// Close is a no-op for the in-process index.
func (m *Memory) Close() error { return nil }

// Len returns the number of indexed vectors.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.vectors)
}

// removeAt must be called with the write lock held.
func (m *Memory) removeAt(i int) {
	delete(m.byKey, m.vectors[i].key)
	m.vectors = append(m.vectors[:i], m.vectors[i+1:]...)
	for j := i; j < len(m.vectors); j++ {
		m.byKey[m.vectors[j].key] = j
	}
}
