// Package lime explains individual predictions of any tabular model with
// Local Interpretable Model-agnostic Explanations: the model is queried on
// perturbations of one instance and a weighted ridge regression fitted on
// them serves as the local, interpretable surrogate.
package lime

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"strconv"

	"github.com/YuminosukeSato/watertemp/core/parallel"
	"github.com/YuminosukeSato/watertemp/pkg/errors"
	"github.com/YuminosukeSato/watertemp/pkg/log"
	"github.com/YuminosukeSato/watertemp/preprocessing"
	"gonum.org/v1/gonum/mat"
)

// Explainer modes.
const (
	ModeClassification = "classification"
	ModeRegression     = "regression"
)

// PredictFunc is the black box being explained. For classification it
// returns one row of class probabilities per input row, for regression an
// n×1 matrix. A classifier's PredictProba method value fits directly.
type PredictFunc func(X mat.Matrix) (mat.Matrix, error)

// TabularExplainer explains predictions on tabular data. Training data
// statistics drive how neighbourhoods are sampled.
type TabularExplainer struct {
	// Configuration
	mode                 string
	featureNames         []string
	classNames           []string
	discretize           bool
	kernelWidth          float64 // 0 means 0.75·sqrt(n_features)
	randomState          int64   // -1 for nondeterministic
	sampleAroundInstance bool
	featureSelection     string

	// Training statistics
	nFeatures      int
	mean           []float64
	scale          []float64
	discretizer    *quartileDiscretizer
	binFrequencies [][]float64

	sampler *sampler
	logger  log.Logger
}

// Option configures a TabularExplainer.
type Option func(*TabularExplainer)

// WithFeatureNames names the columns. Defaults to "0", "1", ...
func WithFeatureNames(names []string) Option {
	return func(e *TabularExplainer) {
		e.featureNames = names
	}
}

// WithClassNames names the classes. Defaults to "0", "1", ...
func WithClassNames(names []string) Option {
	return func(e *TabularExplainer) {
		e.classNames = names
	}
}

// WithMode selects "classification" (default) or "regression".
func WithMode(mode string) Option {
	return func(e *TabularExplainer) {
		e.mode = mode
	}
}

// WithDiscretizeContinuous toggles quartile discretization (default true).
func WithDiscretizeContinuous(v bool) Option {
	return func(e *TabularExplainer) {
		e.discretize = v
	}
}

// WithKernelWidth sets the width of the exponential kernel.
func WithKernelWidth(w float64) Option {
	return func(e *TabularExplainer) {
		e.kernelWidth = w
	}
}

// WithRandomState seeds neighbourhood sampling.
func WithRandomState(seed int64) Option {
	return func(e *TabularExplainer) {
		e.randomState = seed
	}
}

// WithSampleAroundInstance centres continuous perturbations on the
// instance instead of the training mean.
func WithSampleAroundInstance(v bool) Option {
	return func(e *TabularExplainer) {
		e.sampleAroundInstance = v
	}
}

// WithFeatureSelection sets "auto" (default), "forward_selection",
// "highest_weights" or "none".
func WithFeatureSelection(method string) Option {
	return func(e *TabularExplainer) {
		e.featureSelection = method
	}
}

// WithLogger replaces the logger.
func WithLogger(logger log.Logger) Option {
	return func(e *TabularExplainer) {
		e.logger = logger
	}
}

// NewTabularExplainer learns the training statistics used for sampling.
//
//	explainer, err := lime.NewTabularExplainer(XTrain,
//	    lime.WithFeatureNames(iris.FeatureNames),
//	    lime.WithClassNames(iris.TargetNames),
//	)
//	exp, err := explainer.ExplainInstance(row, rf.PredictProba, lime.WithNumFeatures(2), lime.WithTopLabels(1))
func NewTabularExplainer(training mat.Matrix, opts ...Option) (*TabularExplainer, error) {
	e := &TabularExplainer{
		mode:             ModeClassification,
		discretize:       true,
		randomState:      -1,
		featureSelection: SelectAuto,
		logger:           log.GetLoggerWithName("lime"),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.mode != ModeClassification && e.mode != ModeRegression {
		return nil, errors.NewValidationError("mode", "must be classification or regression", e.mode)
	}
	switch e.featureSelection {
	case SelectAuto, SelectForward, SelectHighestWeights, SelectNone:
	default:
		return nil, errors.NewValidationError("feature_selection", "unknown method", e.featureSelection)
	}
	rows, cols := training.Dims()
	if rows == 0 || cols == 0 {
		return nil, errors.NewModelError("NewTabularExplainer", "empty training data", errors.ErrEmptyData)
	}
	e.nFeatures = cols
	if e.featureNames == nil {
		e.featureNames = make([]string, cols)
		for j := range e.featureNames {
			e.featureNames[j] = strconv.Itoa(j)
		}
	}
	if len(e.featureNames) != cols {
		return nil, errors.NewDimensionError("NewTabularExplainer", cols, len(e.featureNames), 1)
	}
	if e.kernelWidth == 0 {
		e.kernelWidth = 0.75 * math.Sqrt(float64(cols))
	}
	if e.kernelWidth < 0 {
		return nil, errors.NewValidationError("kernel_width", "must be > 0", e.kernelWidth)
	}

	scaler := preprocessing.NewStandardScalerDefault()
	if err := scaler.Fit(training); err != nil {
		return nil, err
	}
	e.mean = append([]float64(nil), scaler.Mean...)
	e.scale = append([]float64(nil), scaler.Scale...)

	if e.discretize {
		e.discretizer = newQuartileDiscretizer(training, e.featureNames)
		e.binFrequencies = make([][]float64, cols)
		row := make([]float64, cols)
		for j := 0; j < cols; j++ {
			e.binFrequencies[j] = make([]float64, e.discretizer.nBins(j))
		}
		for i := 0; i < rows; i++ {
			mat.Row(row, i, training)
			for j, bin := range e.discretizer.discretize(row) {
				e.binFrequencies[j][bin] += 1 / float64(rows)
			}
		}
	}

	seed := uint64(e.randomState)
	if e.randomState < 0 {
		seed = rand.Uint64()
	}
	e.sampler = newSampler(seed)
	return e, nil
}

// explainConfig holds the per-call options of ExplainInstance.
type explainConfig struct {
	numFeatures int
	numSamples  int
	topLabels   int
	labels      []int
}

// ExplainOption configures ExplainInstance.
type ExplainOption func(*explainConfig)

// WithNumFeatures caps the features in each explanation (default 10).
func WithNumFeatures(n int) ExplainOption {
	return func(c *explainConfig) {
		c.numFeatures = n
	}
}

// WithNumSamples sets the neighbourhood size (default 5000).
func WithNumSamples(n int) ExplainOption {
	return func(c *explainConfig) {
		c.numSamples = n
	}
}

// WithTopLabels explains the k most probable classes.
func WithTopLabels(k int) ExplainOption {
	return func(c *explainConfig) {
		c.topLabels = k
	}
}

// WithLabels explains the listed classes (default class 1). Ignored when
// top labels are requested.
func WithLabels(labels ...int) ExplainOption {
	return func(c *explainConfig) {
		c.labels = labels
	}
}

// kernel is the exponential kernel applied to distances.
func (e *TabularExplainer) kernel(d float64) float64 {
	return math.Sqrt(math.Exp(-(d * d) / (e.kernelWidth * e.kernelWidth)))
}

// ExplainInstance explains predict's output at row.
func (e *TabularExplainer) ExplainInstance(row []float64, predict PredictFunc, opts ...ExplainOption) (*Explanation, error) {
	cfg := explainConfig{numFeatures: 10, numSamples: 5000, labels: []int{1}}
	for _, opt := range opts {
		opt(&cfg)
	}
	if len(row) != e.nFeatures {
		return nil, errors.NewDimensionError("ExplainInstance", e.nFeatures, len(row), 1)
	}
	if cfg.numSamples < 2 {
		return nil, errors.NewValidationError("num_samples", "must be at least 2", cfg.numSamples)
	}
	if cfg.numFeatures < 1 {
		return nil, errors.NewValidationError("num_features", "must be at least 1", cfg.numFeatures)
	}
	if predict == nil {
		return nil, errors.NewValidationError("predict_fn", "must not be nil", nil)
	}

	data, inverse := e.neighbourhood(row, cfg.numSamples)

	scaled := e.standardize(data)
	weights := make([]float64, cfg.numSamples)
	parallel.Parallelize(cfg.numSamples, -1, func(start, end int) {
		for i := start; i < end; i++ {
			d := 0.0
			for j := 0; j < e.nFeatures; j++ {
				diff := scaled.At(i, j) - scaled.At(0, j)
				d += diff * diff
			}
			weights[i] = e.kernel(math.Sqrt(d))
		}
	})

	yss, err := predict(inverse)
	if err != nil {
		return nil, errors.Wrap(err, "predict_fn")
	}
	yRows, yCols := yss.Dims()
	if yRows != cfg.numSamples {
		return nil, errors.NewDimensionError("ExplainInstance", cfg.numSamples, yRows, 0)
	}

	exp := newExplanation(e.mode, e.classNames)
	exp.FeatureNames = append([]string(nil), e.featureNames...)
	exp.FeatureValues = make([]string, e.nFeatures)
	exp.Descriptions = append([]string(nil), e.featureNames...)
	for j, v := range row {
		exp.FeatureValues[j] = fmt.Sprintf("%.2f", v)
	}
	if e.discretizer != nil {
		for j, bin := range e.discretizer.discretize(row) {
			exp.Descriptions[j] = e.discretizer.names[j][bin]
		}
	}

	var labels []int
	if e.mode == ModeClassification {
		if exp.ClassNames == nil {
			exp.ClassNames = make([]string, yCols)
			for k := range exp.ClassNames {
				exp.ClassNames[k] = strconv.Itoa(k)
			}
		}
		if len(exp.ClassNames) != yCols {
			return nil, errors.NewDimensionError("ExplainInstance", len(exp.ClassNames), yCols, 1)
		}
		exp.PredictProba = mat.Row(nil, 0, yss)
		e.checkProbabilities(yss)
		labels, err = chooseLabels(exp.PredictProba, cfg)
		if err != nil {
			return nil, err
		}
		if cfg.topLabels > 0 {
			exp.topLabels = append([]int(nil), labels...)
		}
	} else {
		if yCols != 1 {
			return nil, errors.NewDimensionError("ExplainInstance", 1, yCols, 1)
		}
		col := mat.Col(nil, 0, yss)
		exp.PredictedValue = col[0]
		exp.MinValue, exp.MaxValue = col[0], col[0]
		for _, v := range col {
			exp.MinValue = math.Min(exp.MinValue, v)
			exp.MaxValue = math.Max(exp.MaxValue, v)
		}
		labels = []int{0}
	}

	for _, label := range labels {
		y := mat.NewDense(cfg.numSamples, 1, mat.Col(nil, label, yss))
		used, err := selectFeatures(e.featureSelection, scaled, y, weights, cfg.numFeatures)
		if err != nil {
			return nil, err
		}
		intercept, coef, score, localPred, err := surrogate(scaled, y, weights, used)
		if err != nil {
			return nil, errors.Wrapf(err, "surrogate for label %d", label)
		}
		terms := make([]FeatureWeight, len(used))
		for k, f := range used {
			terms[k] = FeatureWeight{Feature: exp.Descriptions[f], Index: f, Weight: coef[k]}
		}
		sort.SliceStable(terms, func(a, b int) bool {
			return math.Abs(terms[a].Weight) > math.Abs(terms[b].Weight)
		})
		exp.Intercept[label] = intercept
		exp.LocalExp[label] = terms
		exp.Score[label] = score
		exp.LocalPred[label] = localPred
	}

	e.logger.Debug("Instance explained",
		log.OperationKey, log.OperationExplain,
		log.SamplesKey, cfg.numSamples,
		log.FeaturesKey, e.nFeatures,
		"labels", labels,
	)
	return exp, nil
}

// standardize centres and scales neighbourhood rows with the statistics
// of the raw training data, bin indicators included.
func (e *TabularExplainer) standardize(data *mat.Dense) *mat.Dense {
	r, c := data.Dims()
	scaled := mat.NewDense(r, c, nil)
	scaled.Apply(func(i, j int, v float64) float64 {
		return (v - e.mean[j]) / e.scale[j]
	}, data)
	return scaled
}

// chooseLabels returns the top-k classes by probability, best first, or
// the explicitly requested labels.
func chooseLabels(proba []float64, cfg explainConfig) ([]int, error) {
	if cfg.topLabels > 0 {
		order := make([]int, len(proba))
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(a, b int) bool {
			return proba[order[a]] > proba[order[b]]
		})
		k := cfg.topLabels
		if k > len(order) {
			k = len(order)
		}
		return order[:k], nil
	}
	for _, l := range cfg.labels {
		if l < 0 || l >= len(proba) {
			return nil, errors.NewValidationError("labels", "label out of range", l)
		}
	}
	return append([]int(nil), cfg.labels...), nil
}

// checkProbabilities warns when predicted rows do not sum to one, which
// usually means a regressor was passed in classification mode.
func (e *TabularExplainer) checkProbabilities(yss mat.Matrix) {
	rows, cols := yss.Dims()
	for i := 0; i < rows; i++ {
		sum := 0.0
		for j := 0; j < cols; j++ {
			sum += yss.At(i, j)
		}
		if math.Abs(sum-1) > 1e-6 {
			e.logger.Warn("Prediction probabilities do not sum to 1; is predict_fn a classifier?",
				log.OperationKey, log.OperationExplain,
				"row", i,
			)
			return
		}
	}
}
