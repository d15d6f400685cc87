package neural_network

import (
	"math"
)

// optimizer updates the flattened parameter slices in place from their
// gradients. params and grads are parallel: coefficient matrices first,
// then intercept vectors.
type optimizer interface {
	update(params, grads [][]float64)
	// iterationEnds is called after every epoch with the number of samples
	// seen so far.
	iterationEnds(timeStep int)
	// triggerStopping is called when the no-improvement counter overflows.
	// It returns true when training should stop.
	triggerStopping() bool
	learningRate() float64
}

func zerosLike(params [][]float64) [][]float64 {
	out := make([][]float64, len(params))
	for i, p := range params {
		out[i] = make([]float64, len(p))
	}
	return out
}

// sgdOptimizer is stochastic gradient descent with momentum and an
// optional learning-rate schedule.
type sgdOptimizer struct {
	lrInit     float64
	lr         float64
	schedule   string
	momentum   float64
	nesterov   bool
	powerT     float64
	velocities [][]float64
}

func newSGD(params [][]float64, lrInit float64, schedule string, momentum float64, nesterov bool, powerT float64) *sgdOptimizer {
	return &sgdOptimizer{
		lrInit:     lrInit,
		lr:         lrInit,
		schedule:   schedule,
		momentum:   momentum,
		nesterov:   nesterov,
		powerT:     powerT,
		velocities: zerosLike(params),
	}
}

func (o *sgdOptimizer) update(params, grads [][]float64) {
	for i, p := range params {
		v, g := o.velocities[i], grads[i]
		for j := range p {
			v[j] = o.momentum*v[j] - o.lr*g[j]
			if o.nesterov {
				p[j] += o.momentum*v[j] - o.lr*g[j]
			} else {
				p[j] += v[j]
			}
		}
	}
}

func (o *sgdOptimizer) iterationEnds(timeStep int) {
	if o.schedule == "invscaling" {
		o.lr = o.lrInit / math.Pow(float64(timeStep+1), o.powerT)
	}
}

// triggerStopping divides the adaptive learning rate by 5 until it falls
// below 1e-6.
func (o *sgdOptimizer) triggerStopping() bool {
	if o.schedule != "adaptive" {
		return true
	}
	if o.lr <= 1e-6 {
		return true
	}
	o.lr /= 5
	return false
}

func (o *sgdOptimizer) learningRate() float64 { return o.lr }

// adamOptimizer is Adam with bias-corrected step size.
type adamOptimizer struct {
	lrInit  float64
	lr      float64
	beta1   float64
	beta2   float64
	epsilon float64
	t       int
	ms      [][]float64
	vs      [][]float64
}

func newAdam(params [][]float64, lrInit, beta1, beta2, epsilon float64) *adamOptimizer {
	return &adamOptimizer{
		lrInit:  lrInit,
		lr:      lrInit,
		beta1:   beta1,
		beta2:   beta2,
		epsilon: epsilon,
		ms:      zerosLike(params),
		vs:      zerosLike(params),
	}
}

func (o *adamOptimizer) update(params, grads [][]float64) {
	o.t++
	t := float64(o.t)
	o.lr = o.lrInit * math.Sqrt(1-math.Pow(o.beta2, t)) / (1 - math.Pow(o.beta1, t))
	for i, p := range params {
		m, v, g := o.ms[i], o.vs[i], grads[i]
		for j := range p {
			m[j] = o.beta1*m[j] + (1-o.beta1)*g[j]
			v[j] = o.beta2*v[j] + (1-o.beta2)*g[j]*g[j]
			p[j] -= o.lr * m[j] / (math.Sqrt(v[j]) + o.epsilon)
		}
	}
}

func (o *adamOptimizer) iterationEnds(int) {}

func (o *adamOptimizer) triggerStopping() bool { return true }

func (o *adamOptimizer) learningRate() float64 { return o.lr }
