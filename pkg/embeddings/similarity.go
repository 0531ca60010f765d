package embeddings

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrDimensionMismatch is returned when two compared vectors have different lengths.
	ErrDimensionMismatch = errors.New("embeddings: dimension mismatch")
	// ErrZeroMagnitude is returned when a compared vector has zero norm (including empty vectors).
	ErrZeroMagnitude = errors.New("embeddings: zero-magnitude vector")
)

// CosineSimilarity returns dot(a,b) / (|a| * |b|). The result is not clamped, so float rounding
// may put it marginally outside [-1, 1].
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		va, vb := float64(a[i]), float64(b[i])
		dot += va * vb
		normA += va * va
		normB += vb * vb
	}

	if normA == 0 || normB == 0 {
		return 0, ErrZeroMagnitude
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// Percentage converts a cosine score to a percentage rounded to 2 decimals (0.87654 -> 87.65).
// Exact ties round half to even (0.03125 -> 3.12).
func Percentage(score float64) float64 {
	return math.RoundToEven(score*10000) / 100
}
