// Package embeddings provides vector math for prompt embeddings: L2 normalization and cosine similarity.
package embeddings

import (
	"math"
)

// sumSquares accumulates in float64 so 1536-dim float32 vectors do not lose precision.
func sumSquares(vector []float32) float64 {
	var sum float64
	for _, v := range vector {
		sum += float64(v) * float64(v)
	}

	return sum
}

// Magnitude returns the L2 norm of vector.
func Magnitude(vector []float32) float64 {
	return math.Sqrt(sumSquares(vector))
}

// NormalizeL2 scales vector in place to unit length. A zero vector is left unchanged.
func NormalizeL2(vector []float32) {
	magnitude := Magnitude(vector)
	if magnitude == 0 {
		return
	}

	for i := range vector {
		vector[i] = float32(float64(vector[i]) / magnitude)
	}
}
