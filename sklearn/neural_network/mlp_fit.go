package neural_network

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/YuminosukeSato/watertemp/core/model"
	"github.com/YuminosukeSato/watertemp/metrics"
	"github.com/YuminosukeSato/watertemp/pkg/errors"
	"github.com/YuminosukeSato/watertemp/pkg/log"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Fit trains the network on X (n_samples × n_features) and the column
// target y. Reaching max_iter without converging emits a
// ConvergenceWarning and still leaves the model fitted.
func (m *MLPRegressor) Fit(X, y mat.Matrix) error {
	return m.FitContext(context.Background(), X, y)
}

// FitContext is Fit with cancellation checked between epochs.
func (m *MLPRegressor) FitContext(ctx context.Context, X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "MLPRegressor.Fit")

	if err := m.validate(); err != nil {
		return err
	}
	nSamples, nFeatures := X.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return errors.NewModelError("MLPRegressor.Fit", "empty data", errors.ErrEmptyData)
	}
	yRows, yCols := y.Dims()
	if yRows != nSamples {
		return errors.NewDimensionError("MLPRegressor.Fit", nSamples, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewValueError("MLPRegressor.Fit", "y must be a column vector (n×1 matrix)")
	}

	m.reset()
	m.rng = newRand(m.randomState)

	Xd := mat.DenseCopyOf(X)
	yd := mat.NewDense(nSamples, 1, mat.Col(nil, 0, y))

	layerUnits := make([]int, 0, len(m.hiddenLayerSizes)+2)
	layerUnits = append(layerUnits, nFeatures)
	layerUnits = append(layerUnits, m.hiddenLayerSizes...)
	layerUnits = append(layerUnits, 1)
	m.initialize(layerUnits)

	var XVal, yVal *mat.Dense
	if m.earlyStopping {
		Xd, yd, XVal, yVal, err = m.validationSplit(Xd, yd)
		if err != nil {
			return err
		}
	}

	logger := m.logger.With(
		log.OperationKey, log.OperationFit,
		log.SamplesKey, nSamples,
		log.FeaturesKey, nFeatures,
	)
	logger.Debug("Training started",
		"hidden_layer_sizes", m.hiddenLayerSizes,
		"activation", m.activation,
		log.LearningRateKey, m.learningRateInit,
	)

	if err := m.fitStochastic(ctx, Xd, yd, XVal, yVal, logger); err != nil {
		m.reset()
		return err
	}

	m.state.SetDimensions(nFeatures, nSamples)
	m.state.SetFitted()
	logger.Debug("Training finished",
		log.IterationKey, m.nIter_,
		log.LossKey, m.loss_,
	)
	return nil
}

func newRand(seed int64) *rand.Rand {
	if seed < 0 {
		seed = rand.Int63()
	}
	return rand.New(rand.NewSource(seed))
}

// initialize draws Glorot-uniform weights and biases for every layer.
func (m *MLPRegressor) initialize(layerUnits []int) {
	nLayers := len(layerUnits) - 1
	m.coefs_ = make([]*mat.Dense, nLayers)
	m.intercepts_ = make([][]float64, nLayers)

	factor := 6.0
	if m.activation == "logistic" {
		factor = 2.0
	}
	for i := 0; i < nLayers; i++ {
		fanIn, fanOut := layerUnits[i], layerUnits[i+1]
		bound := math.Sqrt(factor / float64(fanIn+fanOut))

		w := make([]float64, fanIn*fanOut)
		for j := range w {
			w[j] = m.rng.Float64()*2*bound - bound
		}
		b := make([]float64, fanOut)
		for j := range b {
			b[j] = m.rng.Float64()*2*bound - bound
		}
		m.coefs_[i] = mat.NewDense(fanIn, fanOut, w)
		m.intercepts_[i] = b
	}
}

// validationSplit holds out ceil(validation_fraction·n) shuffled rows.
func (m *MLPRegressor) validationSplit(X, y *mat.Dense) (*mat.Dense, *mat.Dense, *mat.Dense, *mat.Dense, error) {
	n, _ := X.Dims()
	nVal := int(math.Ceil(m.validationFraction * float64(n)))
	if nVal < 2 || n-nVal < 1 {
		return nil, nil, nil, nil, errors.NewValueError("MLPRegressor.Fit",
			"the validation set is too small; increase validation_fraction or the size of the dataset")
	}
	perm := m.rng.Perm(n)
	XVal, yVal := takeRows(X, y, perm[:nVal])
	XTrain, yTrain := takeRows(X, y, perm[nVal:])
	return XTrain, yTrain, XVal, yVal, nil
}

func takeRows(X, y *mat.Dense, idx []int) (*mat.Dense, *mat.Dense) {
	_, c := X.Dims()
	Xs := mat.NewDense(len(idx), c, nil)
	ys := mat.NewDense(len(idx), 1, nil)
	for i, r := range idx {
		Xs.SetRow(i, X.RawRowView(r))
		ys.Set(i, 0, y.At(r, 0))
	}
	return Xs, ys
}

// params returns the learned parameters as flat slices aliasing the
// model's storage: coefficient matrices first, then intercepts.
func (m *MLPRegressor) params() [][]float64 {
	out := make([][]float64, 0, 2*len(m.coefs_))
	for _, c := range m.coefs_ {
		out = append(out, c.RawMatrix().Data)
	}
	return append(out, m.intercepts_...)
}

func (m *MLPRegressor) newOptimizer(params [][]float64) optimizer {
	if m.solver == "sgd" {
		return newSGD(params, m.learningRateInit, m.learningRate, m.momentum, m.nesterovsMomentum, m.powerT)
	}
	return newAdam(params, m.learningRateInit, m.beta1, m.beta2, m.epsilon)
}

func (m *MLPRegressor) effectiveBatchSize(n int) int {
	if m.batchSize == 0 {
		if n < 200 {
			return n
		}
		return 200
	}
	if m.batchSize > n {
		m.logger.Warn("batch_size larger than sample size, clipping", log.BatchSizeKey, m.batchSize, log.SamplesKey, n)
		return n
	}
	return m.batchSize
}

func (m *MLPRegressor) fitStochastic(ctx context.Context, X, y, XVal, yVal *mat.Dense, logger log.Logger) error {
	n, nFeatures := X.Dims()
	batchSize := m.effectiveBatchSize(n)
	params := m.params()
	opt := m.newOptimizer(params)

	m.bestLoss_ = math.Inf(1)
	m.bestValidationScore = math.Inf(-1)
	var bestCoefs []*mat.Dense
	var bestIntercepts [][]float64

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}

	for it := 0; it < m.maxIter; it++ {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, "MLPRegressor.Fit cancelled")
		}
		if m.shuffle {
			m.rng.Shuffle(n, func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		}

		accumulated := 0.0
		for start := 0; start < n; start += batchSize {
			end := start + batchSize
			if end > n {
				end = n
			}
			Xb := mat.NewDense(end-start, nFeatures, nil)
			yb := mat.NewDense(end-start, 1, nil)
			for i, r := range idx[start:end] {
				Xb.SetRow(i, X.RawRowView(r))
				yb.Set(i, 0, y.At(r, 0))
			}

			loss, grads := m.backprop(Xb, yb)
			accumulated += loss * float64(end-start)
			opt.update(params, grads)
		}

		m.nIter_++
		m.loss_ = accumulated / float64(n)
		if err := errors.CheckScalar("MLPRegressor.Fit", m.loss_, m.nIter_); err != nil {
			return err
		}
		m.t_ += n
		m.lossCurve_ = append(m.lossCurve_, m.loss_)
		if m.verbose {
			logger.Info(fmt.Sprintf("Iteration %d, loss = %.8f", m.nIter_, m.loss_),
				log.IterationKey, m.nIter_,
				log.LossKey, m.loss_,
			)
		}

		if m.earlyStopping {
			score, err := m.validationScore(XVal, yVal)
			if err != nil {
				return err
			}
			m.validationScores_ = append(m.validationScores_, score)
			if m.verbose {
				logger.Info(fmt.Sprintf("Validation score: %f", score), log.ScoreKey, score)
			}
			if score < m.bestValidationScore+m.tol {
				m.noImprovementCount++
			} else {
				m.noImprovementCount = 0
			}
			if score > m.bestValidationScore {
				m.bestValidationScore = score
				bestCoefs = m.Coefs()
				bestIntercepts = m.Intercepts()
			}
		} else {
			if m.loss_ > m.bestLoss_-m.tol {
				m.noImprovementCount++
			} else {
				m.noImprovementCount = 0
			}
			if m.loss_ < m.bestLoss_ {
				m.bestLoss_ = m.loss_
			}
		}

		opt.iterationEnds(m.t_)

		if m.noImprovementCount > m.nIterNoChange {
			what := "Training loss"
			if m.earlyStopping {
				what = "Validation score"
			}
			msg := fmt.Sprintf("%s did not improve more than tol=%f for %d consecutive epochs.", what, m.tol, m.nIterNoChange)
			if opt.triggerStopping() {
				if m.verbose {
					logger.Info(msg + " Stopping.")
				}
				break
			}
			if m.verbose {
				logger.Info(fmt.Sprintf("%s Setting learning rate to %f", msg, opt.learningRate()))
			}
			m.noImprovementCount = 0
		}

		if m.nIter_ == m.maxIter {
			errors.Warn(errors.NewConvergenceWarning("MLPRegressor", m.maxIter,
				fmt.Sprintf("Stochastic Optimizer: Maximum iterations (%d) reached and the optimization hasn't converged yet.", m.maxIter)))
		}
	}

	if m.earlyStopping && bestCoefs != nil {
		m.coefs_ = bestCoefs
		m.intercepts_ = bestIntercepts
	}
	return nil
}

func (m *MLPRegressor) validationScore(XVal, yVal *mat.Dense) (float64, error) {
	pred := m.forward(XVal, nil)
	yTrue := mat.NewVecDense(len(yVal.RawMatrix().Data), yVal.RawMatrix().Data)
	yPred := mat.NewVecDense(len(pred.RawMatrix().Data), pred.RawMatrix().Data)
	score, err := metrics.R2Score(yTrue, yPred)
	if err != nil {
		// Constant validation targets leave R² undefined.
		return math.Inf(-1), nil
	}
	return score, nil
}

// forward runs the network on X. When acts is non-nil it receives the
// output of every layer, input included.
func (m *MLPRegressor) forward(X mat.Matrix, acts []*mat.Dense) *mat.Dense {
	act := activations[m.activation]
	last := len(m.coefs_) - 1
	var in mat.Matrix = X
	var out *mat.Dense
	for i, W := range m.coefs_ {
		r, _ := in.Dims()
		_, c := W.Dims()
		out = mat.NewDense(r, c, nil)
		out.Mul(in, W)
		b := m.intercepts_[i]
		out.Apply(func(_, j int, v float64) float64 { return v + b[j] }, out)
		if i != last {
			act.forward(out)
		}
		if acts != nil {
			acts[i+1] = out
		}
		in = out
	}
	return out
}

// backprop computes the penalised squared loss of one minibatch and the
// gradients of every parameter, in the order returned by params.
func (m *MLPRegressor) backprop(Xb, yb *mat.Dense) (float64, [][]float64) {
	nLayers := len(m.coefs_)
	b, _ := Xb.Dims()
	nb := float64(b)

	acts := make([]*mat.Dense, nLayers+1)
	acts[0] = Xb
	pred := m.forward(Xb, acts)

	delta := mat.NewDense(b, 1, nil)
	delta.Sub(pred, yb)
	sq := delta.RawMatrix().Data
	loss := floats.Dot(sq, sq) / nb / 2

	penalty := 0.0
	for _, W := range m.coefs_ {
		raw := W.RawMatrix().Data
		penalty += floats.Dot(raw, raw)
	}
	loss += 0.5 * m.alpha * penalty / nb

	coefGrads := make([][]float64, nLayers)
	interceptGrads := make([][]float64, nLayers)
	act := activations[m.activation]

	for layer := nLayers - 1; layer >= 0; layer-- {
		fanIn, fanOut := m.coefs_[layer].Dims()
		g := mat.NewDense(fanIn, fanOut, nil)
		g.Mul(acts[layer].T(), delta)
		g.Add(g, scaled(m.alpha, m.coefs_[layer]))
		g.Scale(1/nb, g)
		coefGrads[layer] = g.RawMatrix().Data

		ig := make([]float64, fanOut)
		for j := 0; j < fanOut; j++ {
			ig[j] = floats.Sum(mat.Col(nil, j, delta)) / nb
		}
		interceptGrads[layer] = ig

		if layer == 0 {
			break
		}
		next := mat.NewDense(b, fanIn, nil)
		next.Mul(delta, m.coefs_[layer].T())
		act.derivative(acts[layer], next)
		delta = next
	}
	return loss, append(coefGrads, interceptGrads...)
}

func scaled(alpha float64, W *mat.Dense) *mat.Dense {
	var out mat.Dense
	out.Scale(alpha, W)
	return &out
}

// ExportWeights returns the learned layers and hyperparameters.
func (m *MLPRegressor) ExportWeights() (*model.ModelWeights, error) {
	w := &model.ModelWeights{
		ModelType:       "MLPRegressor",
		Version:         model.WeightsVersion,
		Hyperparameters: m.GetParams(),
		IsFitted:        m.state.IsFitted(),
	}
	if !w.IsFitted {
		return w, nil
	}
	for i, c := range m.coefs_ {
		r, cols := c.Dims()
		w.Layers = append(w.Layers, model.LayerWeights{
			Rows:       r,
			Cols:       cols,
			Coefs:      append([]float64(nil), c.RawMatrix().Data...),
			Intercepts: append([]float64(nil), m.intercepts_[i]...),
		})
	}
	w.Metadata = map[string]interface{}{
		"n_iter": m.nIter_,
		"loss":   m.loss_,
	}
	return w, nil
}

// ImportWeights restores a model saved with ExportWeights.
func (m *MLPRegressor) ImportWeights(w *model.ModelWeights) error {
	if w == nil {
		return errors.NewValueError("MLPRegressor.ImportWeights", "weights are nil")
	}
	if w.ModelType != "MLPRegressor" {
		return errors.NewValidationError("model_type", "expected MLPRegressor", w.ModelType)
	}
	if err := w.Validate(); err != nil {
		return err
	}
	if err := m.SetParams(w.Hyperparameters); err != nil {
		return err
	}
	if !w.IsFitted {
		return nil
	}
	if len(w.Layers) != len(m.hiddenLayerSizes)+1 || w.Layers[len(w.Layers)-1].Cols != 1 {
		return errors.NewValidationError("layers", "do not match hidden_layer_sizes", len(w.Layers))
	}

	m.coefs_ = make([]*mat.Dense, len(w.Layers))
	m.intercepts_ = make([][]float64, len(w.Layers))
	for i, l := range w.Layers {
		m.coefs_[i] = mat.NewDense(l.Rows, l.Cols, append([]float64(nil), l.Coefs...))
		m.intercepts_[i] = append([]float64(nil), l.Intercepts...)
	}
	if v, ok := w.Metadata["n_iter"]; ok {
		if n, err := model.ParamInt("n_iter", v); err == nil {
			m.nIter_ = n
		}
	}
	if v, ok := w.Metadata["loss"]; ok {
		if f, err := model.ParamFloat("loss", v); err == nil {
			m.loss_ = f
		}
	}
	m.state.SetDimensions(w.Layers[0].Rows, 0)
	m.state.SetFitted()
	return nil
}
