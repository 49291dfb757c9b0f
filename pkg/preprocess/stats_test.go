package preprocess

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuantile(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		q      float64
		want   float64
	}{
		{
			name:   "median odd count",
			values: []float64{3, 1, 2},
			q:      0.5,
			want:   2,
		},
		{
			name:   "median even count interpolates",
			values: []float64{1, 2, 3, 4},
			q:      0.5,
			want:   2.5,
		},
		{
			name:   "first quartile",
			values: []float64{1, 2, 3, 4},
			q:      0.25,
			want:   1.75,
		},
		{
			name:   "third quartile",
			values: []float64{1, 2, 3, 4},
			q:      0.75,
			want:   3.25,
		},
		{
			name:   "extremes",
			values: []float64{5, 1, 9},
			q:      0,
			want:   1,
		},
		{
			name:   "single value",
			values: []float64{7},
			q:      0.75,
			want:   7,
		},
		{
			name:   "missing values ignored",
			values: []float64{1, math.NaN(), 3, math.NaN()},
			q:      0.5,
			want:   2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, quantile(tt.values, tt.q), 1e-12)
		})
	}

	t.Run("all missing", func(t *testing.T) {
		assert.True(t, math.IsNaN(quantile([]float64{math.NaN(), math.NaN()}, 0.5)))
	})

	t.Run("empty", func(t *testing.T) {
		assert.True(t, math.IsNaN(quantile(nil, 0.5)))
	})
}

func TestMedian(t *testing.T) {
	assert.InDelta(t, 2.0, median([]float64{1, 2, math.NaN(), 1000}), 1e-12)
}

func TestAdjustedSkewness(t *testing.T) {
	t.Run("symmetric data is unskewed", func(t *testing.T) {
		assert.InDelta(t, 0, adjustedSkewness([]float64{-2, -1, 0, 1, 2}), 1e-12)
	})

	t.Run("right tail is positive", func(t *testing.T) {
		skew := adjustedSkewness([]float64{1, 2, 2, 1000})
		assert.Greater(t, skew, 0.75)
	})

	t.Run("left tail is negative", func(t *testing.T) {
		skew := adjustedSkewness([]float64{-1000, 2, 2, 1})
		assert.Less(t, skew, -0.75)
	})

	t.Run("constant column", func(t *testing.T) {
		assert.Equal(t, 0.0, adjustedSkewness([]float64{5, 5, 5, 5}))
	})

	t.Run("too few observations", func(t *testing.T) {
		assert.Equal(t, 0.0, adjustedSkewness([]float64{1, 2}))
		assert.Equal(t, 0.0, adjustedSkewness([]float64{1, 2, math.NaN()}))
	})
}
