package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPercentile(t *testing.T) {
	values := []float64{4, 1, 3, 2}

	tests := []struct {
		p    float64
		want float64
	}{
		{0, 1},
		{25, 1.75},
		{50, 2.5},
		{75, 3.25},
		{100, 4},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, Percentile(values, tt.p), 1e-12, "p=%v", tt.p)
	}
	assert.Equal(t, []float64{4, 1, 3, 2}, values, "input must not be reordered")
	assert.True(t, math.IsNaN(Percentile(nil, 50)))
	assert.Equal(t, 7.0, Percentile([]float64{7}, 90))
}

func TestSearchSorted(t *testing.T) {
	edges := []float64{1, 2, 3}
	assert.Equal(t, 0, SearchSorted(edges, 0.5))
	assert.Equal(t, 0, SearchSorted(edges, 1))
	assert.Equal(t, 1, SearchSorted(edges, 1.5))
	assert.Equal(t, 2, SearchSorted(edges, 3))
	assert.Equal(t, 3, SearchSorted(edges, 3.1))
}

func TestArgsortStable(t *testing.T) {
	assert.Equal(t, []int{1, 3, 0, 2}, Argsort([]float64{2, 1, 2, 1}))
}

func TestUnique(t *testing.T) {
	assert.Equal(t, []float64{0, 1, 2}, Unique([]float64{2, 0, 1, 2, 0}))
	assert.Empty(t, Unique(nil))
}
