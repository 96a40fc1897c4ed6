// Package stats holds the small numeric helpers behind the color scales and summaries.
package stats

import (
	"math"
	"sort"
)

// Quantile calculates the q-th quantile (0-1) of values.
// Uses linear interpolation between closest ranks
func Quantile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return 0
	}

	// Create a copy to avoid modifying the original slice
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	return QuantileSorted(sorted, q)
}

// QuantileSorted is Quantile for input that is already sorted ascending
func QuantileSorted(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q < 0 {
		q = 0
	}
	if q > 1 {
		q = 1
	}

	n := float64(len(sorted))
	index := q * (n - 1)
	lower := int(math.Floor(index))
	upper := int(math.Ceil(index))

	if lower == upper {
		return sorted[lower]
	}

	// Linear interpolation
	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// Percentile calculates the p-th percentile (0-100)
func Percentile(values []float64, p float64) float64 {
	return Quantile(values, p/100.0)
}

// Boundaries splits sorted into n equal-probability parts and returns the n+1 part edges.
// The first edge is the minimum and the last the maximum of sorted; edges are non-decreasing.
func Boundaries(sorted []float64, n int) []float64 {
	if n < 1 || len(sorted) == 0 {
		return nil
	}

	edges := make([]float64, n+1)
	for i := 0; i <= n; i++ {
		edges[i] = QuantileSorted(sorted, float64(i)/float64(n))
	}
	// Pin the ends so interpolation noise cannot move them
	edges[0] = sorted[0]
	edges[n] = sorted[len(sorted)-1]

	return edges
}

// BisectRight returns the number of thresholds that are <= value.
// thresholds must be sorted ascending.
func BisectRight(thresholds []float64, value float64) int {
	return sort.Search(len(thresholds), func(i int) bool {
		return thresholds[i] > value
	})
}
