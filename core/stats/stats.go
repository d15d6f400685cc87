// Package stats holds the small order-statistics helpers shared by the
// dataset summaries and the LIME discretizer.
package stats

import (
	"math"
	"sort"
)

// Percentile returns the p-th percentile (0 ≤ p ≤ 100) of values using
// linear interpolation between closest ranks, the default of
// numpy.percentile and pandas.describe. values need not be sorted and are
// not modified. An empty slice yields NaN.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	return PercentileSorted(sorted, p)
}

// PercentileSorted is Percentile for an already sorted slice.
func PercentileSorted(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	pos := p / 100 * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo < 0 {
		lo = 0
	}
	if hi >= n {
		hi = n - 1
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

// SearchSorted returns the index at which v would be inserted into the
// ascending slice edges keeping it sorted, choosing the leftmost position
// on ties (numpy.searchsorted side="left").
func SearchSorted(edges []float64, v float64) int {
	return sort.Search(len(edges), func(i int) bool { return edges[i] >= v })
}

// Argsort returns the indices that sort values ascending. Equal values keep
// their original order.
func Argsort(values []float64) []int {
	idx := make([]int, len(values))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return values[idx[a]] < values[idx[b]] })
	return idx
}

// Unique returns the sorted distinct values.
func Unique(values []float64) []float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	out := sorted[:0]
	for i, v := range sorted {
		if i == 0 || v != sorted[i-1] {
			out = append(out, v)
		}
	}
	return out
}
