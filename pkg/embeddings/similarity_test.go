package embeddings

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tolerance = 1e-9

func randomVector(r *rand.Rand, n int) []float32 {
	v := make([]float32, n)
	for i := range v {
		v[i] = float32(r.NormFloat64())
	}

	return v
}

func TestCosineSimilarity_Identities(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 11))

	for _, dims := range []int{1, 3, 128, 1536} {
		a := randomVector(r, dims)

		t.Run("identical vectors score 1", func(t *testing.T) {
			got, err := CosineSimilarity(a, a)
			require.NoError(t, err)
			assert.InDelta(t, 1.0, got, tolerance)
		})

		t.Run("negated vector scores -1", func(t *testing.T) {
			neg := make([]float32, len(a))
			for i := range a {
				neg[i] = -a[i]
			}

			got, err := CosineSimilarity(a, neg)
			require.NoError(t, err)
			assert.InDelta(t, -1.0, got, tolerance)
		})

		t.Run("scale independent", func(t *testing.T) {
			scaled := make([]float32, len(a))
			for i := range a {
				scaled[i] = a[i] * 4
			}

			got, err := CosineSimilarity(a, scaled)
			require.NoError(t, err)
			assert.InDelta(t, 1.0, got, 1e-6)
		})
	}
}

func TestCosineSimilarity_Orthogonal(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
	}{
		{"axes", []float32{1, 0, 0}, []float32{0, 1, 0}},
		{"mixed signs", []float32{1, 1}, []float32{1, -1}},
		{"sparse", []float32{0, 2, 0, 0}, []float32{3, 0, 0, 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CosineSimilarity(tt.a, tt.b)
			require.NoError(t, err)
			assert.InDelta(t, 0.0, got, tolerance)
		})
	}
}

func TestCosineSimilarity_KnownValue(t *testing.T) {
	got, err := CosineSimilarity([]float32{1, 2, 3}, []float32{4, 5, 6})
	require.NoError(t, err)

	want := 32 / (math.Sqrt(14) * math.Sqrt(77))
	assert.InDelta(t, want, got, tolerance)
}

func TestCosineSimilarity_Errors(t *testing.T) {
	t.Run("dimension mismatch", func(t *testing.T) {
		_, err := CosineSimilarity(make([]float32, 1536), make([]float32, 128))
		require.ErrorIs(t, err, ErrDimensionMismatch)
		assert.Contains(t, err.Error(), "1536 vs 128")
	})

	t.Run("zero magnitude", func(t *testing.T) {
		_, err := CosineSimilarity([]float32{0, 0}, []float32{1, 2})
		assert.ErrorIs(t, err, ErrZeroMagnitude)

		_, err = CosineSimilarity([]float32{1, 2}, []float32{0, 0})
		assert.ErrorIs(t, err, ErrZeroMagnitude)
	})

	t.Run("empty vectors", func(t *testing.T) {
		got, err := CosineSimilarity(nil, []float32{})
		assert.ErrorIs(t, err, ErrZeroMagnitude)
		assert.False(t, math.IsNaN(got))
	})
}

func TestPercentage(t *testing.T) {
	tests := []struct {
		score float64
		want  float64
	}{
		{1, 100},
		{0.99999994, 100},
		{0.87654, 87.65},
		{0.123449, 12.34},
		{0, 0},
		{-0.5, -50},
		{0.03125, 3.12},
		{0.09375, 9.38},
	}

	for _, tt := range tests {
		assert.InDelta(t, tt.want, Percentage(tt.score), 1e-9, "Percentage(%v)", tt.score)
	}
}
