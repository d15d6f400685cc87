package lime

import (
	"fmt"
	"math"

	"github.com/YuminosukeSato/watertemp/core/stats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// stdFloor keeps the per-bin standard deviation strictly positive.
const stdFloor = 1e-11

// quartileDiscretizer maps each continuous feature to the bin between its
// training quartiles and samples values back from a bin.
type quartileDiscretizer struct {
	edges [][]float64 // distinct quartiles per feature, ascending
	names [][]string  // one description per bin

	// Per feature, per bin statistics of the training data.
	mins  [][]float64
	maxs  [][]float64
	means [][]float64
	stds  [][]float64
}

func newQuartileDiscretizer(data mat.Matrix, featureNames []string) *quartileDiscretizer {
	rows, cols := data.Dims()
	d := &quartileDiscretizer{
		edges: make([][]float64, cols),
		names: make([][]string, cols),
		mins:  make([][]float64, cols),
		maxs:  make([][]float64, cols),
		means: make([][]float64, cols),
		stds:  make([][]float64, cols),
	}

	col := make([]float64, rows)
	for f := 0; f < cols; f++ {
		mat.Col(col, f, data)
		qts := stats.Unique([]float64{
			stats.Percentile(col, 25),
			stats.Percentile(col, 50),
			stats.Percentile(col, 75),
		})
		d.edges[f] = qts

		name := featureNames[f]
		n := len(qts)
		names := []string{fmt.Sprintf("%s <= %.2f", name, qts[0])}
		for i := 0; i < n-1; i++ {
			names = append(names, fmt.Sprintf("%.2f < %s <= %.2f", qts[i], name, qts[i+1]))
		}
		names = append(names, fmt.Sprintf("%s > %.2f", name, qts[n-1]))
		d.names[f] = names

		lo, hi := math.Inf(1), math.Inf(-1)
		bins := make([][]float64, n+1)
		for _, v := range col {
			b := stats.SearchSorted(qts, v)
			bins[b] = append(bins[b], v)
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		d.mins[f] = append([]float64{lo}, qts...)
		d.maxs[f] = append(append([]float64(nil), qts...), hi)
		for _, sel := range bins {
			mean, std := 0.0, 0.0
			if len(sel) > 0 {
				var variance float64
				mean, variance = stat.PopMeanVariance(sel, nil)
				std = math.Sqrt(variance)
			}
			d.means[f] = append(d.means[f], mean)
			d.stds[f] = append(d.stds[f], std+stdFloor)
		}
	}
	return d
}

// nBins returns the number of bins of feature f.
func (d *quartileDiscretizer) nBins(f int) int {
	return len(d.edges[f]) + 1
}

// discretize returns the bin of every value in row. Values equal to a
// quartile fall in the lower bin.
func (d *quartileDiscretizer) discretize(row []float64) []int {
	out := make([]int, len(row))
	for f, v := range row {
		out[f] = stats.SearchSorted(d.edges[f], v)
	}
	return out
}

// undiscretize draws a value for feature f inside bin from a normal with
// the bin's training mean and deviation, truncated to the bin bounds.
func (d *quartileDiscretizer) undiscretize(f, bin int, draw func(lo, hi float64) float64) float64 {
	lo, hi := d.mins[f][bin], d.maxs[f][bin]
	mean, std := d.means[f][bin], d.stds[f][bin]
	minz, maxz := (lo-mean)/std, (hi-mean)/std
	if minz == maxz {
		return lo
	}
	return mean + std*draw(minz, maxz)
}
