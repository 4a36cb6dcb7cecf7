package semindex

import "math"

// Cosine computes cosine similarity between two float32 vectors,
// accumulating in float64 for stability. Returns a value in [-1, 1];
// mismatched lengths compare over the shorter prefix and empty input
// scores 0.
func Cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n == 0 {
		return 0
	}

	var dot, magA, magB float64
	for i := 0; i < n; i++ {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		magA += x * x
		magB += y * y
	}

	denom := math.Sqrt(magA * magB)
	if denom == 0 {
		return 0
	}
	sim := dot / denom
	// Clamp floating point drift.
	if sim > 1 {
		sim = 1
	} else if sim < -1 {
		sim = -1
	}
	return sim
}
