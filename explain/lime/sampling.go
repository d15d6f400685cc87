package lime

import (
	"math"
	"math/rand/v2"

	"github.com/YuminosukeSato/watertemp/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// sampler owns the explainer's random stream.
type sampler struct {
	src rand.Source
	rng *rand.Rand
}

func newSampler(seed uint64) *sampler {
	src := rand.NewPCG(seed, seed)
	return &sampler{src: src, rng: rand.New(src)}
}

// normal draws from N(0, 1).
func (s *sampler) normal() float64 {
	return distuv.Normal{Mu: 0, Sigma: 1, Src: s.src}.Rand()
}

// truncatedNormal draws from N(0, 1) restricted to [a, b] by inverting the
// CDF. Draws in the upper tail use the mirrored lower tail, which keeps
// the CDF differences away from 1.
func (s *sampler) truncatedNormal(a, b float64) float64 {
	if a > b {
		a, b = b, a
	}
	if a > 0 {
		return -s.truncatedNormal(-b, -a)
	}
	u := s.rng.Float64()
	pa := distuv.UnitNormal.CDF(a)
	pb := distuv.UnitNormal.CDF(b)
	x := distuv.UnitNormal.Quantile(pa + u*(pb-pa))
	if math.IsNaN(x) {
		return a
	}
	return errors.ClipValue(x, a, b)
}

// neighbourhood draws numSamples perturbations of row. data holds the
// interpretable representation (bin indicators when discretizing, raw
// values otherwise) and inverse the same samples in original units. Row 0
// of both is the instance itself.
func (e *TabularExplainer) neighbourhood(row []float64, numSamples int) (data, inverse *mat.Dense) {
	p := len(row)
	data = mat.NewDense(numSamples, p, nil)
	inverse = mat.NewDense(numSamples, p, nil)
	data.SetRow(0, row)
	inverse.SetRow(0, row)

	if e.discretizer == nil {
		for i := 1; i < numSamples; i++ {
			for j := 0; j < p; j++ {
				center := e.mean[j]
				if e.sampleAroundInstance {
					center = row[j]
				}
				v := e.sampler.normal()*e.scale[j] + center
				data.Set(i, j, v)
				inverse.Set(i, j, v)
			}
		}
		return data, inverse
	}

	first := e.discretizer.discretize(row)
	for j := 0; j < p; j++ {
		choice := distuv.NewCategorical(e.binFrequencies[j], e.sampler.src)
		data.Set(0, j, 1)
		for i := 1; i < numSamples; i++ {
			bin := int(choice.Rand())
			if bin == first[j] {
				data.Set(i, j, 1)
			}
			inverse.Set(i, j, e.discretizer.undiscretize(j, bin, e.sampler.truncatedNormal))
		}
	}
	return data, inverse
}
