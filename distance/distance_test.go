package distance

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDot(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float32
	}{
		{"Simple", []float32{1, 2, 3}, []float32{4, 5, 6}, 32},
		{"Zero", []float32{0, 0, 0}, []float32{0, 0, 0}, 0},
		{"Mixed", []float32{1, -1, 2}, []float32{1, 1, -2}, -4},
		{"Empty", []float32{}, []float32{}, 0},
		{"Single", []float32{2}, []float32{3}, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Dot(tt.a, tt.b)
			assert.InDelta(t, tt.expected, got, 1e-5)
		})
	}
}

func TestEuclidean(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float32
	}{
		{"Simple", []float32{0, 0}, []float32{3, 4}, 5},
		{"Identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 0},
		{"Mixed", []float32{1, -1}, []float32{-1, 1}, float32(math.Sqrt(8))},
		{"Empty", []float32{}, []float32{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Euclidean(tt.a, tt.b)
			assert.InDelta(t, tt.expected, got, 1e-5)
		})
	}
}

func TestCosineDistance(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float32
	}{
		{"Identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 0},
		{"Orthogonal", []float32{1, 0}, []float32{0, 1}, 1},
		{"Opposite", []float32{1, 0}, []float32{-1, 0}, 2},
		{"Scaled", []float32{1, 1}, []float32{5, 5}, 0},
		{"ZeroVector", []float32{0, 0}, []float32{1, 0}, 1},
		{"BothZero", []float32{0, 0}, []float32{0, 0}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineDistance(tt.a, tt.b)
			assert.InDelta(t, tt.expected, got, 1e-5)
		})
	}

	t.Run("Bounds", func(t *testing.T) {
		d := CosineDistance([]float32{1e-20, 1e-20}, []float32{1e-20, 1e-20})
		assert.GreaterOrEqual(t, d, float32(0))
		assert.LessOrEqual(t, d, float32(2))
	})
}

func TestNegDot(t *testing.T) {
	// Higher similarity must map to smaller distance.
	q := []float32{1, 1}
	close := []float32{2, 2}
	far := []float32{0.1, 0.1}
	assert.Less(t, NegDot(q, close), NegDot(q, far))
	assert.Equal(t, float32(-4), NegDot(q, close))
}

func TestNormalizeL2(t *testing.T) {
	t.Run("InPlace", func(t *testing.T) {
		v := []float32{3, 4}
		ok := NormalizeL2InPlace(v)
		assert.True(t, ok)
		assert.InDelta(t, float32(0.6), v[0], 1e-5)
		assert.InDelta(t, float32(0.8), v[1], 1e-5)

		vZero := []float32{0, 0}
		ok = NormalizeL2InPlace(vZero)
		assert.False(t, ok)

		vEmpty := []float32{}
		ok = NormalizeL2InPlace(vEmpty)
		assert.False(t, ok)
	})

	t.Run("Copy", func(t *testing.T) {
		v := []float32{1, 0}
		dst, ok := NormalizeL2Copy(v)
		assert.True(t, ok)
		assert.Equal(t, float32(1), dst[0])
		assert.NotSame(t, &v[0], &dst[0])

		vZero := []float32{0, 0}
		dst, ok = NormalizeL2Copy(vZero)
		assert.False(t, ok)
		assert.Nil(t, dst)
	})
}

func TestMetric(t *testing.T) {
	t.Run("String", func(t *testing.T) {
		assert.Equal(t, "Euclidean", MetricEuclidean.String())
		assert.Equal(t, "Cosine", MetricCosine.String())
		assert.Equal(t, "DotProduct", MetricDotProduct.String())
		assert.Contains(t, Metric(42).String(), "Unknown")
	})

	t.Run("Parse", func(t *testing.T) {
		m, err := ParseMetric("l2")
		require.NoError(t, err)
		assert.Equal(t, MetricEuclidean, m)

		m, err = ParseMetric("cosine")
		require.NoError(t, err)
		assert.Equal(t, MetricCosine, m)

		m, err = ParseMetric("dot")
		require.NoError(t, err)
		assert.Equal(t, MetricDotProduct, m)

		_, err = ParseMetric("manhattan")
		assert.Error(t, err)
	})

	t.Run("Provider", func(t *testing.T) {
		for _, m := range []Metric{MetricEuclidean, MetricCosine, MetricDotProduct} {
			fn, err := Provider(m)
			require.NoError(t, err)
			require.NotNil(t, fn)
		}

		_, err := Provider(Metric(42))
		assert.Error(t, err)
	})
}
