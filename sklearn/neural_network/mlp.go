// Package neural_network implements a multilayer perceptron regressor
// compatible with scikit-learn's MLPRegressor.
package neural_network

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"github.com/YuminosukeSato/watertemp/core/model"
	"github.com/YuminosukeSato/watertemp/metrics"
	"github.com/YuminosukeSato/watertemp/pkg/errors"
	"github.com/YuminosukeSato/watertemp/pkg/log"
	"gonum.org/v1/gonum/mat"
)

var (
	_ model.Regressor      = (*MLPRegressor)(nil)
	_ model.Tunable        = (*MLPRegressor)(nil)
	_ model.ContextFitter  = (*MLPRegressor)(nil)
	_ model.WeightExporter = (*MLPRegressor)(nil)
)

// MLPRegressor is a fully connected feed-forward network trained on the
// squared error with an L2 penalty. The output layer is linear.
type MLPRegressor struct {
	state *model.StateManager // State management (composition)

	// Hyperparameters
	hiddenLayerSizes   []int   // Units per hidden layer
	activation         string  // Hidden activation: "identity", "logistic", "tanh", "relu"
	solver             string  // "adam" or "sgd"
	alpha              float64 // L2 penalty
	batchSize          int     // Minibatch size, 0 means min(200, n_samples)
	learningRate       string  // SGD schedule: "constant", "invscaling", "adaptive"
	learningRateInit   float64 // Initial step size
	powerT             float64 // Exponent of the invscaling schedule
	maxIter            int     // Maximum number of epochs
	shuffle            bool    // Shuffle samples every epoch
	randomState        int64   // Random seed, -1 for nondeterministic
	tol                float64 // Improvement tolerance
	verbose            bool    // Log progress every epoch
	momentum           float64 // SGD momentum
	nesterovsMomentum  bool    // Use Nesterov momentum
	earlyStopping      bool    // Hold out validation data and stop on its score
	validationFraction float64 // Share of training data held out for early stopping
	beta1              float64 // Adam first moment decay
	beta2              float64 // Adam second moment decay
	epsilon            float64 // Adam numerical stability
	nIterNoChange      int     // Epochs without improvement before stopping

	// Learned parameters
	coefs_              []*mat.Dense // Weight matrices, fan_in × fan_out
	intercepts_         [][]float64  // Bias vectors
	nIter_              int          // Epochs run
	t_                  int          // Samples seen
	loss_               float64      // Last epoch loss
	lossCurve_          []float64    // Loss per epoch
	bestLoss_           float64      // Minimum training loss
	validationScores_   []float64    // Validation R² per epoch (early stopping)
	bestValidationScore float64      // Best validation R²
	noImprovementCount  int

	rng    *rand.Rand
	logger log.Logger
}

// Option is a functional option for MLPRegressor.
type Option func(*MLPRegressor)

// NewMLPRegressor creates an MLPRegressor with scikit-learn's defaults.
//
//	mlp := neural_network.NewMLPRegressor(
//	    neural_network.WithHiddenLayerSizes(9, 7, 5),
//	    neural_network.WithActivation("tanh"),
//	    neural_network.WithRandomState(2912),
//	)
func NewMLPRegressor(opts ...Option) *MLPRegressor {
	m := &MLPRegressor{
		state:              model.NewStateManager(),
		hiddenLayerSizes:   []int{100},
		activation:         "relu",
		solver:             "adam",
		alpha:              1e-4,
		batchSize:          0,
		learningRate:       "constant",
		learningRateInit:   1e-3,
		powerT:             0.5,
		maxIter:            200,
		shuffle:            true,
		randomState:        -1,
		tol:                1e-4,
		momentum:           0.9,
		nesterovsMomentum:  true,
		validationFraction: 0.1,
		beta1:              0.9,
		beta2:              0.999,
		epsilon:            1e-8,
		nIterNoChange:      10,
		logger:             log.GetLoggerWithName("MLPRegressor"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// WithHiddenLayerSizes sets the number of units of each hidden layer.
func WithHiddenLayerSizes(sizes ...int) Option {
	return func(m *MLPRegressor) {
		m.hiddenLayerSizes = append([]int(nil), sizes...)
	}
}

// WithActivation sets the hidden-layer activation.
func WithActivation(activation string) Option {
	return func(m *MLPRegressor) {
		m.activation = activation
	}
}

// WithSolver selects "adam" or "sgd".
func WithSolver(solver string) Option {
	return func(m *MLPRegressor) {
		m.solver = solver
	}
}

// WithAlpha sets the L2 penalty.
func WithAlpha(alpha float64) Option {
	return func(m *MLPRegressor) {
		m.alpha = alpha
	}
}

// WithBatchSize sets the minibatch size. 0 selects min(200, n_samples).
func WithBatchSize(n int) Option {
	return func(m *MLPRegressor) {
		m.batchSize = n
	}
}

// WithLearningRate sets the SGD learning-rate schedule.
func WithLearningRate(schedule string) Option {
	return func(m *MLPRegressor) {
		m.learningRate = schedule
	}
}

// WithLearningRateInit sets the initial step size.
func WithLearningRateInit(lr float64) Option {
	return func(m *MLPRegressor) {
		m.learningRateInit = lr
	}
}

// WithMaxIter sets the maximum number of epochs.
func WithMaxIter(n int) Option {
	return func(m *MLPRegressor) {
		m.maxIter = n
	}
}

// WithShuffle toggles per-epoch shuffling.
func WithShuffle(shuffle bool) Option {
	return func(m *MLPRegressor) {
		m.shuffle = shuffle
	}
}

// WithRandomState seeds weight initialisation, shuffling and the
// validation split.
func WithRandomState(seed int64) Option {
	return func(m *MLPRegressor) {
		m.randomState = seed
	}
}

// WithTol sets the improvement tolerance.
func WithTol(tol float64) Option {
	return func(m *MLPRegressor) {
		m.tol = tol
	}
}

// WithVerbose logs the loss of every epoch at info level.
func WithVerbose(verbose bool) Option {
	return func(m *MLPRegressor) {
		m.verbose = verbose
	}
}

// WithMomentum sets the SGD momentum and whether it is Nesterov's.
func WithMomentum(momentum float64, nesterov bool) Option {
	return func(m *MLPRegressor) {
		m.momentum = momentum
		m.nesterovsMomentum = nesterov
	}
}

// WithEarlyStopping holds out fraction of the training data and stops when
// its R² stops improving.
func WithEarlyStopping(enabled bool, fraction float64) Option {
	return func(m *MLPRegressor) {
		m.earlyStopping = enabled
		m.validationFraction = fraction
	}
}

// WithAdam sets the Adam moment decay rates and epsilon.
func WithAdam(beta1, beta2, epsilon float64) Option {
	return func(m *MLPRegressor) {
		m.beta1 = beta1
		m.beta2 = beta2
		m.epsilon = epsilon
	}
}

// WithNIterNoChange sets the patience of the convergence check.
func WithNIterNoChange(n int) Option {
	return func(m *MLPRegressor) {
		m.nIterNoChange = n
	}
}

// WithLogger replaces the logger used for training progress.
func WithLogger(logger log.Logger) Option {
	return func(m *MLPRegressor) {
		m.logger = logger
	}
}

// GetParams returns the hyperparameters keyed by their scikit-learn names.
func (m *MLPRegressor) GetParams() map[string]interface{} {
	var batch interface{} = "auto"
	if m.batchSize > 0 {
		batch = m.batchSize
	}
	return map[string]interface{}{
		"hidden_layer_sizes":  append([]int(nil), m.hiddenLayerSizes...),
		"activation":          m.activation,
		"solver":              m.solver,
		"alpha":               m.alpha,
		"batch_size":          batch,
		"learning_rate":       m.learningRate,
		"learning_rate_init":  m.learningRateInit,
		"power_t":             m.powerT,
		"max_iter":            m.maxIter,
		"shuffle":             m.shuffle,
		"random_state":        m.randomState,
		"tol":                 m.tol,
		"verbose":             m.verbose,
		"momentum":            m.momentum,
		"nesterovs_momentum":  m.nesterovsMomentum,
		"early_stopping":      m.earlyStopping,
		"validation_fraction": m.validationFraction,
		"beta_1":              m.beta1,
		"beta_2":              m.beta2,
		"epsilon":             m.epsilon,
		"n_iter_no_change":    m.nIterNoChange,
	}
}

// SetParams updates hyperparameters by name. Unknown names are rejected and
// leave the model unchanged. Changing parameters resets the fitted state.
func (m *MLPRegressor) SetParams(params map[string]interface{}) error {
	next := *m
	var err error
	for _, name := range sortedKeys(params) {
		v := params[name]
		switch name {
		case "hidden_layer_sizes":
			next.hiddenLayerSizes, err = model.ParamIntSlice(name, v)
		case "activation":
			next.activation, err = model.ParamString(name, v)
		case "solver":
			next.solver, err = model.ParamString(name, v)
		case "alpha":
			next.alpha, err = model.ParamFloat(name, v)
		case "batch_size":
			if s, ok := v.(string); ok && s == "auto" {
				next.batchSize = 0
			} else {
				next.batchSize, err = model.ParamInt(name, v)
			}
		case "learning_rate":
			next.learningRate, err = model.ParamString(name, v)
		case "learning_rate_init":
			next.learningRateInit, err = model.ParamFloat(name, v)
		case "power_t":
			next.powerT, err = model.ParamFloat(name, v)
		case "max_iter":
			next.maxIter, err = model.ParamInt(name, v)
		case "shuffle":
			next.shuffle, err = model.ParamBool(name, v)
		case "random_state":
			if v == nil {
				next.randomState = -1
			} else {
				next.randomState, err = model.ParamInt64(name, v)
			}
		case "tol":
			next.tol, err = model.ParamFloat(name, v)
		case "verbose":
			next.verbose, err = model.ParamBool(name, v)
		case "momentum":
			next.momentum, err = model.ParamFloat(name, v)
		case "nesterovs_momentum":
			next.nesterovsMomentum, err = model.ParamBool(name, v)
		case "early_stopping":
			next.earlyStopping, err = model.ParamBool(name, v)
		case "validation_fraction":
			next.validationFraction, err = model.ParamFloat(name, v)
		case "beta_1":
			next.beta1, err = model.ParamFloat(name, v)
		case "beta_2":
			next.beta2, err = model.ParamFloat(name, v)
		case "epsilon":
			next.epsilon, err = model.ParamFloat(name, v)
		case "n_iter_no_change":
			next.nIterNoChange, err = model.ParamInt(name, v)
		default:
			return errors.NewValidationError(name, "unknown parameter for MLPRegressor", v)
		}
		if err != nil {
			return err
		}
	}
	m.hiddenLayerSizes = next.hiddenLayerSizes
	m.activation = next.activation
	m.solver = next.solver
	m.alpha = next.alpha
	m.batchSize = next.batchSize
	m.learningRate = next.learningRate
	m.learningRateInit = next.learningRateInit
	m.powerT = next.powerT
	m.maxIter = next.maxIter
	m.shuffle = next.shuffle
	m.randomState = next.randomState
	m.tol = next.tol
	m.verbose = next.verbose
	m.momentum = next.momentum
	m.nesterovsMomentum = next.nesterovsMomentum
	m.earlyStopping = next.earlyStopping
	m.validationFraction = next.validationFraction
	m.beta1 = next.beta1
	m.beta2 = next.beta2
	m.epsilon = next.epsilon
	m.nIterNoChange = next.nIterNoChange
	m.reset()
	return nil
}

func sortedKeys(params map[string]interface{}) []string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns an unfitted MLPRegressor with the same hyperparameters.
func (m *MLPRegressor) Clone() model.Tunable {
	c := NewMLPRegressor(WithLogger(m.logger))
	// GetParams always round-trips through SetParams.
	_ = c.SetParams(m.GetParams())
	return c
}

func (m *MLPRegressor) reset() {
	m.state.Reset()
	m.coefs_ = nil
	m.intercepts_ = nil
	m.nIter_ = 0
	m.t_ = 0
	m.loss_ = 0
	m.lossCurve_ = nil
	m.validationScores_ = nil
}

// validate checks the hyperparameters before training.
func (m *MLPRegressor) validate() error {
	if len(m.hiddenLayerSizes) == 0 {
		return errors.NewValidationError("hidden_layer_sizes", "must have at least one layer", m.hiddenLayerSizes)
	}
	for _, n := range m.hiddenLayerSizes {
		if n <= 0 {
			return errors.NewValidationError("hidden_layer_sizes", "must be > 0", m.hiddenLayerSizes)
		}
	}
	if _, ok := activations[m.activation]; !ok {
		return errors.NewValidationError("activation", "must be one of "+strings.Join(ActivationNames(), ", "), m.activation)
	}
	switch m.solver {
	case "adam", "sgd":
	default:
		return errors.NewValidationError("solver", "must be adam or sgd", m.solver)
	}
	switch m.learningRate {
	case "constant", "invscaling", "adaptive":
	default:
		return errors.NewValidationError("learning_rate", "must be constant, invscaling or adaptive", m.learningRate)
	}
	switch {
	case m.maxIter <= 0:
		return errors.NewValidationError("max_iter", "must be > 0", m.maxIter)
	case m.alpha < 0:
		return errors.NewValidationError("alpha", "must be >= 0", m.alpha)
	case m.learningRateInit <= 0:
		return errors.NewValidationError("learning_rate_init", "must be > 0", m.learningRateInit)
	case m.batchSize < 0:
		return errors.NewValidationError("batch_size", "must be >= 0", m.batchSize)
	case m.momentum < 0 || m.momentum > 1:
		return errors.NewValidationError("momentum", "must be in [0, 1]", m.momentum)
	case m.earlyStopping && (m.validationFraction <= 0 || m.validationFraction >= 1):
		return errors.NewValidationError("validation_fraction", "must be in (0, 1)", m.validationFraction)
	case m.beta1 < 0 || m.beta1 >= 1:
		return errors.NewValidationError("beta_1", "must be in [0, 1)", m.beta1)
	case m.beta2 < 0 || m.beta2 >= 1:
		return errors.NewValidationError("beta_2", "must be in [0, 1)", m.beta2)
	case m.epsilon <= 0:
		return errors.NewValidationError("epsilon", "must be > 0", m.epsilon)
	case m.nIterNoChange <= 0:
		return errors.NewValidationError("n_iter_no_change", "must be > 0", m.nIterNoChange)
	case m.tol < 0:
		return errors.NewValidationError("tol", "must be >= 0", m.tol)
	}
	return nil
}

// Predict returns an n_samples × 1 matrix of predictions.
func (m *MLPRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := m.state.RequireFitted("MLPRegressor", "Predict"); err != nil {
		return nil, err
	}
	if err := m.state.CheckFeatures("MLPRegressor.Predict", X); err != nil {
		return nil, err
	}
	return m.forward(X, nil), nil
}

// Score returns the coefficient of determination R² on (X, y).
func (m *MLPRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := m.Predict(X)
	if err != nil {
		return 0, err
	}
	yTrue, err := metrics.ColumnVector("MLPRegressor.Score", y)
	if err != nil {
		return 0, err
	}
	yPred, err := metrics.ColumnVector("MLPRegressor.Score", pred)
	if err != nil {
		return 0, err
	}
	return metrics.R2Score(yTrue, yPred)
}

// IsFitted reports whether Fit has completed.
func (m *MLPRegressor) IsFitted() bool {
	return m.state.IsFitted()
}

// LossCurve returns the training loss of every epoch.
func (m *MLPRegressor) LossCurve() []float64 {
	return append([]float64(nil), m.lossCurve_...)
}

// ValidationScores returns the validation R² of every epoch when early
// stopping is enabled.
func (m *MLPRegressor) ValidationScores() []float64 {
	return append([]float64(nil), m.validationScores_...)
}

// NIter returns the number of epochs run by the last Fit.
func (m *MLPRegressor) NIter() int {
	return m.nIter_
}

// Loss returns the loss of the final epoch.
func (m *MLPRegressor) Loss() float64 {
	return m.loss_
}

// Coefs returns copies of the learned weight matrices.
func (m *MLPRegressor) Coefs() []*mat.Dense {
	out := make([]*mat.Dense, len(m.coefs_))
	for i, c := range m.coefs_ {
		out[i] = mat.DenseCopyOf(c)
	}
	return out
}

// Intercepts returns copies of the learned bias vectors.
func (m *MLPRegressor) Intercepts() [][]float64 {
	out := make([][]float64, len(m.intercepts_))
	for i, b := range m.intercepts_ {
		out[i] = append([]float64(nil), b...)
	}
	return out
}

func (m *MLPRegressor) String() string {
	return fmt.Sprintf("MLPRegressor(activation='%s', hidden_layer_sizes=%s, learning_rate_init=%g, solver='%s', max_iter=%d, random_state=%d)",
		m.activation, model.FormatParam(m.hiddenLayerSizes), m.learningRateInit, m.solver, m.maxIter, m.randomState)
}
