package neural_network

import (
	"math"

	"github.com/YuminosukeSato/watertemp/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// activation applies a hidden-layer nonlinearity in place and
// back-propagates through it. derivative is expressed in terms of the
// activation output, so the pre-activation values need not be kept.
type activation struct {
	name       string
	forward    func(z *mat.Dense)
	derivative func(out, delta *mat.Dense)
}

var activations = map[string]activation{
	"identity": {
		name:       "identity",
		forward:    func(*mat.Dense) {},
		derivative: func(_, _ *mat.Dense) {},
	},
	"logistic": {
		name: "logistic",
		forward: func(z *mat.Dense) {
			z.Apply(func(_, _ int, v float64) float64 {
				return 1 / (1 + errors.StabilizeExp(-v))
			}, z)
		},
		derivative: func(out, delta *mat.Dense) {
			delta.Apply(func(i, j int, d float64) float64 {
				a := out.At(i, j)
				return d * a * (1 - a)
			}, delta)
		},
	},
	"tanh": {
		name: "tanh",
		forward: func(z *mat.Dense) {
			z.Apply(func(_, _ int, v float64) float64 {
				return math.Tanh(v)
			}, z)
		},
		derivative: func(out, delta *mat.Dense) {
			delta.Apply(func(i, j int, d float64) float64 {
				a := out.At(i, j)
				return d * (1 - a*a)
			}, delta)
		},
	},
	"relu": {
		name: "relu",
		forward: func(z *mat.Dense) {
			z.Apply(func(_, _ int, v float64) float64 {
				return math.Max(v, 0)
			}, z)
		},
		derivative: func(out, delta *mat.Dense) {
			delta.Apply(func(i, j int, d float64) float64 {
				if out.At(i, j) == 0 {
					return 0
				}
				return d
			}, delta)
		},
	},
}

// ActivationNames lists the supported hidden-layer activations.
func ActivationNames() []string {
	return []string{"identity", "logistic", "tanh", "relu"}
}
