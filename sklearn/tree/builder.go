package tree

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// featureThreshold is the smallest gap between two feature values that may
// be split.
const featureThreshold = 1e-7

// builder grows a tree depth first.
type builder struct {
	dt          *DecisionTreeClassifier
	X           *mat.Dense
	labels      []int     // Encoded class index per sample
	weights     []float64 // Sample weights
	importances []float64 // Unnormalised impurity decrease per feature
}

type split struct {
	found     bool
	feature   int
	threshold float64
	proxy     float64
	left      []int
	right     []int
	impLeft   float64
	impRight  float64
	wLeft     float64
	wRight    float64
}

func (b *builder) classWeights(samples []int) ([]float64, float64) {
	counts := make([]float64, b.dt.nClasses_)
	total := 0.0
	for _, s := range samples {
		counts[b.labels[s]] += b.weights[s]
		total += b.weights[s]
	}
	return counts, total
}

func (b *builder) grow(samples []int, depth int) *node {
	dt := b.dt
	counts, total := b.classWeights(samples)
	imp := impurity(dt.criterion, counts, total)

	value := make([]float64, len(counts))
	for k, c := range counts {
		value[k] = c / total
	}
	n := &node{value: value, impurity: imp, weight: total, nSamples: len(samples)}
	if depth > dt.depth_ {
		dt.depth_ = depth
	}

	isLeaf := (dt.maxDepth > 0 && depth >= dt.maxDepth) ||
		len(samples) < dt.minSamplesSplit ||
		len(samples) < 2*dt.minSamplesLeaf ||
		imp <= featureThreshold
	if !isLeaf {
		s := b.bestSplit(samples, counts, total)
		if s.found {
			b.importances[s.feature] += total*imp - s.wLeft*s.impLeft - s.wRight*s.impRight
			n.feature = s.feature
			n.threshold = s.threshold
			n.left = b.grow(s.left, depth+1)
			n.right = b.grow(s.right, depth+1)
			return n
		}
	}
	dt.nLeaves_++
	return n
}

// bestSplit scans the candidate features of one node and returns the split
// with the lowest weighted child impurity. Ties keep the feature examined
// first.
func (b *builder) bestSplit(samples []int, counts []float64, total float64) split {
	dt := b.dt
	_, nFeatures := b.X.Dims()

	order := make([]int, nFeatures)
	for i := range order {
		order[i] = i
	}
	if dt.maxFeatures > 0 && dt.maxFeatures < nFeatures {
		order = dt.rng.Perm(nFeatures)
	}

	best := split{proxy: math.Inf(-1)}
	sorted := make([]int, len(samples))
	left := make([]float64, len(counts))
	right := make([]float64, len(counts))
	visited := 0

	for _, f := range order {
		if dt.maxFeatures > 0 && visited >= dt.maxFeatures {
			break
		}
		copy(sorted, samples)
		sort.SliceStable(sorted, func(a, c int) bool {
			return b.X.At(sorted[a], f) < b.X.At(sorted[c], f)
		})
		lo := b.X.At(sorted[0], f)
		hi := b.X.At(sorted[len(sorted)-1], f)
		if hi <= lo+featureThreshold {
			continue
		}
		visited++

		for k := range left {
			left[k] = 0
		}
		copy(right, counts)
		wl, wr := 0.0, total

		for i := 0; i < len(sorted)-1; i++ {
			s := sorted[i]
			w := b.weights[s]
			left[b.labels[s]] += w
			right[b.labels[s]] -= w
			wl += w
			wr -= w

			xi := b.X.At(s, f)
			xn := b.X.At(sorted[i+1], f)
			if xn <= xi+featureThreshold {
				continue
			}
			nl := i + 1
			if nl < dt.minSamplesLeaf || len(sorted)-nl < dt.minSamplesLeaf {
				continue
			}

			impL := impurity(dt.criterion, left, wl)
			impR := impurity(dt.criterion, right, wr)
			proxy := -wl*impL - wr*impR
			if proxy > best.proxy {
				threshold := xi/2 + xn/2
				if threshold == xn || math.IsInf(threshold, 0) || math.IsNaN(threshold) {
					threshold = xi
				}
				best = split{
					found:     true,
					feature:   f,
					threshold: threshold,
					proxy:     proxy,
					impLeft:   impL,
					impRight:  impR,
					wLeft:     wl,
					wRight:    wr,
				}
			}
		}
	}

	if best.found {
		for _, s := range samples {
			if b.X.At(s, best.feature) <= best.threshold {
				best.left = append(best.left, s)
			} else {
				best.right = append(best.right, s)
			}
		}
	}
	return best
}
