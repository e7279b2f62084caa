package search

import "math"

// Cosine returns the cosine similarity of a and b in [-1,1].
// It returns 0 when either vector is empty, the lengths differ, or either norm is zero.
// Accumulation is done in float64.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
