package preprocess

import (
	"math"
	"sort"
)

// observed returns the non-missing values of a column.
func observed(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// quantile computes the q-th quantile of the observed values with linear
// interpolation between order statistics. Returns NaN when nothing was
// observed.
func quantile(values []float64, q float64) float64 {
	obs := observed(values)
	if len(obs) == 0 {
		return math.NaN()
	}
	sort.Float64s(obs)

	pos := q * float64(len(obs)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return obs[lo]
	}
	frac := pos - float64(lo)
	return obs[lo]*(1-frac) + obs[hi]*frac
}

// median is the 0.5 quantile of the observed values.
func median(values []float64) float64 {
	return quantile(values, 0.5)
}

// adjustedSkewness computes the adjusted Fisher-Pearson skewness coefficient
// G1 over the observed values. Fewer than three observations or a constant
// column yield 0.
func adjustedSkewness(values []float64) float64 {
	obs := observed(values)
	n := float64(len(obs))
	if n < 3 {
		return 0
	}

	var mean float64
	for _, v := range obs {
		mean += v
	}
	mean /= n

	var m2, m3 float64
	for _, v := range obs {
		d := v - mean
		m2 += d * d
		m3 += d * d * d
	}
	m2 /= n
	m3 /= n
	if m2 == 0 {
		return 0
	}

	g1 := m3 / math.Pow(m2, 1.5)
	return g1 * math.Sqrt(n*(n-1)) / (n - 2)
}
