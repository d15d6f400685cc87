// Package ensemble implements bagged tree ensembles compatible with
// scikit-learn's RandomForestClassifier.
package ensemble

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/YuminosukeSato/watertemp/core/model"
	"github.com/YuminosukeSato/watertemp/core/parallel"
	"github.com/YuminosukeSato/watertemp/metrics"
	"github.com/YuminosukeSato/watertemp/pkg/errors"
	"github.com/YuminosukeSato/watertemp/pkg/log"
	"github.com/YuminosukeSato/watertemp/sklearn/tree"
	"gonum.org/v1/gonum/mat"
)

var (
	_ model.Classifier = (*RandomForestClassifier)(nil)
	_ model.Tunable    = (*RandomForestClassifier)(nil)
)

// RandomForestClassifier averages the class probabilities of decision
// trees grown on bootstrap samples with random feature subsets.
type RandomForestClassifier struct {
	state *model.StateManager // State management (composition)

	// Hyperparameters
	nEstimators     int         // Number of trees
	criterion       string      // "gini" or "entropy"
	maxDepth        int         // Maximum tree depth, 0 for unlimited
	minSamplesSplit int         // Minimum samples to split a node
	minSamplesLeaf  int         // Minimum samples in each leaf
	maxFeatures     interface{} // "sqrt", "log2", "all" or a count
	bootstrap       bool        // Draw a bootstrap sample per tree
	randomState     int64       // Random seed, -1 for nondeterministic
	nJobs           int         // Parallel tree fits, -1 for all CPUs

	// Learned parameters
	estimators_ []*tree.DecisionTreeClassifier
	classes_    []int

	logger log.Logger
}

// Option is a functional option for RandomForestClassifier.
type Option func(*RandomForestClassifier)

// NewRandomForestClassifier creates a forest with scikit-learn's defaults.
//
//	rf := ensemble.NewRandomForestClassifier(ensemble.WithRandomState(1), ensemble.WithNJobs(-1))
//	err := rf.Fit(XTrain, yTrain)
func NewRandomForestClassifier(opts ...Option) *RandomForestClassifier {
	rf := &RandomForestClassifier{
		state:           model.NewStateManager(),
		nEstimators:     100,
		criterion:       "gini",
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		maxFeatures:     "sqrt",
		bootstrap:       true,
		randomState:     -1,
		nJobs:           1,
		logger:          log.GetLoggerWithName("RandomForestClassifier"),
	}
	for _, opt := range opts {
		opt(rf)
	}
	return rf
}

// WithNEstimators sets the number of trees.
func WithNEstimators(n int) Option {
	return func(rf *RandomForestClassifier) {
		rf.nEstimators = n
	}
}

// WithCriterion sets the impurity measure of every tree.
func WithCriterion(criterion string) Option {
	return func(rf *RandomForestClassifier) {
		rf.criterion = criterion
	}
}

// WithMaxDepth limits the depth of every tree.
func WithMaxDepth(depth int) Option {
	return func(rf *RandomForestClassifier) {
		rf.maxDepth = depth
	}
}

// WithMinSamplesLeaf sets the minimum leaf size of every tree.
func WithMinSamplesLeaf(n int) Option {
	return func(rf *RandomForestClassifier) {
		rf.minSamplesLeaf = n
	}
}

// WithMaxFeatures sets the per-split feature budget: "sqrt", "log2",
// "all" or a positive int.
func WithMaxFeatures(v interface{}) Option {
	return func(rf *RandomForestClassifier) {
		rf.maxFeatures = v
	}
}

// WithBootstrap toggles bootstrap sampling.
func WithBootstrap(bootstrap bool) Option {
	return func(rf *RandomForestClassifier) {
		rf.bootstrap = bootstrap
	}
}

// WithRandomState seeds bootstrap sampling and feature selection.
func WithRandomState(seed int64) Option {
	return func(rf *RandomForestClassifier) {
		rf.randomState = seed
	}
}

// WithNJobs sets the number of trees fitted concurrently.
func WithNJobs(n int) Option {
	return func(rf *RandomForestClassifier) {
		rf.nJobs = n
	}
}

// WithLogger replaces the logger.
func WithLogger(logger log.Logger) Option {
	return func(rf *RandomForestClassifier) {
		rf.logger = logger
	}
}

// GetParams returns the hyperparameters keyed by their scikit-learn names.
func (rf *RandomForestClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":      rf.nEstimators,
		"criterion":         rf.criterion,
		"max_depth":         rf.maxDepth,
		"min_samples_split": rf.minSamplesSplit,
		"min_samples_leaf":  rf.minSamplesLeaf,
		"max_features":      rf.maxFeatures,
		"bootstrap":         rf.bootstrap,
		"random_state":      rf.randomState,
		"n_jobs":            rf.nJobs,
	}
}

// SetParams updates hyperparameters by name and resets the fitted state.
func (rf *RandomForestClassifier) SetParams(params map[string]interface{}) error {
	next := *rf
	var err error
	for name, v := range params {
		switch name {
		case "n_estimators":
			next.nEstimators, err = model.ParamInt(name, v)
		case "criterion":
			next.criterion, err = model.ParamString(name, v)
		case "max_depth":
			if v == nil {
				next.maxDepth = 0
			} else {
				next.maxDepth, err = model.ParamInt(name, v)
			}
		case "min_samples_split":
			next.minSamplesSplit, err = model.ParamInt(name, v)
		case "min_samples_leaf":
			next.minSamplesLeaf, err = model.ParamInt(name, v)
		case "max_features":
			next.maxFeatures = v
		case "bootstrap":
			next.bootstrap, err = model.ParamBool(name, v)
		case "random_state":
			if v == nil {
				next.randomState = -1
			} else {
				next.randomState, err = model.ParamInt64(name, v)
			}
		case "n_jobs":
			next.nJobs, err = model.ParamInt(name, v)
		default:
			return errors.NewValidationError(name, "unknown parameter for RandomForestClassifier", v)
		}
		if err != nil {
			return err
		}
	}
	next.estimators_ = nil
	next.classes_ = nil
	*rf = next
	rf.state = model.NewStateManager()
	return nil
}

// Clone returns an unfitted forest with the same hyperparameters.
func (rf *RandomForestClassifier) Clone() model.Tunable {
	c := NewRandomForestClassifier(WithLogger(rf.logger))
	_ = c.SetParams(rf.GetParams())
	return c
}

// resolveMaxFeatures turns the max_features setting into a count.
func (rf *RandomForestClassifier) resolveMaxFeatures(nFeatures int) (int, error) {
	switch v := rf.maxFeatures.(type) {
	case nil:
		return nFeatures, nil
	case string:
		switch v {
		case "sqrt":
			return maxInt(1, int(math.Sqrt(float64(nFeatures)))), nil
		case "log2":
			return maxInt(1, int(math.Log2(float64(nFeatures)))), nil
		case "all":
			return nFeatures, nil
		}
	default:
		n, err := model.ParamInt("max_features", v)
		if err == nil && n > 0 {
			if n > nFeatures {
				n = nFeatures
			}
			return n, nil
		}
	}
	return 0, errors.NewValidationError("max_features", "must be sqrt, log2, all or a positive integer", rf.maxFeatures)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Fit grows the forest.
func (rf *RandomForestClassifier) Fit(X, y mat.Matrix) error {
	return rf.FitContext(context.Background(), X, y)
}

// FitContext grows the trees on the worker pool. Each tree receives its
// own seed drawn from random_state, so results do not depend on n_jobs.
func (rf *RandomForestClassifier) FitContext(ctx context.Context, X, y mat.Matrix) error {
	if rf.nEstimators <= 0 {
		return errors.NewValidationError("n_estimators", "must be > 0", rf.nEstimators)
	}
	nSamples, nFeatures := X.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return errors.NewModelError("RandomForestClassifier.Fit", "empty data", errors.ErrEmptyData)
	}
	yRows, _ := y.Dims()
	if yRows != nSamples {
		return errors.NewDimensionError("RandomForestClassifier.Fit", nSamples, yRows, 0)
	}
	maxFeatures, err := rf.resolveMaxFeatures(nFeatures)
	if err != nil {
		return err
	}

	seed := rf.randomState
	if seed < 0 {
		seed = rand.Int63()
	}
	master := rand.New(rand.NewSource(seed))
	seeds := make([]int64, rf.nEstimators)
	for i := range seeds {
		seeds[i] = master.Int63()
	}

	Xd := mat.DenseCopyOf(X)
	trees := make([]*tree.DecisionTreeClassifier, rf.nEstimators)
	err = parallel.Run(ctx, rf.nJobs, rf.nEstimators, func(_ context.Context, i int) (err error) {
		defer errors.Recover(&err, fmt.Sprintf("RandomForestClassifier tree %d", i))
		dt := tree.NewDecisionTreeClassifier(
			tree.WithCriterion(rf.criterion),
			tree.WithMaxDepth(rf.maxDepth),
			tree.WithMinSamplesSplit(rf.minSamplesSplit),
			tree.WithMinSamplesLeaf(rf.minSamplesLeaf),
			tree.WithMaxFeatures(maxFeatures),
			tree.WithRandomState(seeds[i]),
		)
		var weights []float64
		if rf.bootstrap {
			weights = make([]float64, nSamples)
			rng := rand.New(rand.NewSource(seeds[i]))
			for k := 0; k < nSamples; k++ {
				weights[rng.Intn(nSamples)]++
			}
		}
		if err := dt.FitWeighted(Xd, y, weights); err != nil {
			return err
		}
		trees[i] = dt
		return nil
	})
	if err != nil {
		return err
	}

	rf.estimators_ = trees
	rf.classes_ = trees[0].Classes()
	rf.state.SetDimensions(nFeatures, nSamples)
	rf.state.SetFitted()
	rf.logger.Debug("Forest fitted",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, nSamples,
		log.FeaturesKey, nFeatures,
		"n_estimators", rf.nEstimators,
		log.JobsKey, parallel.EffectiveJobs(rf.nJobs, rf.nEstimators),
	)
	return nil
}

// PredictProba averages the class probabilities of all trees. Columns
// follow Classes().
func (rf *RandomForestClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := rf.state.RequireFitted("RandomForestClassifier", "PredictProba"); err != nil {
		return nil, err
	}
	if err := rf.state.CheckFeatures("RandomForestClassifier.PredictProba", X); err != nil {
		return nil, err
	}
	r, _ := X.Dims()
	sum := mat.NewDense(r, len(rf.classes_), nil)
	for _, dt := range rf.estimators_ {
		p, err := dt.PredictProba(X)
		if err != nil {
			return nil, err
		}
		sum.Add(sum, p)
	}
	sum.Scale(1/float64(len(rf.estimators_)), sum)
	return sum, nil
}

// Predict returns the class with the highest averaged probability.
func (rf *RandomForestClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := rf.PredictProba(X)
	if err != nil {
		return nil, err
	}
	r, c := proba.Dims()
	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		best := 0
		for j := 1; j < c; j++ {
			if proba.At(i, j) > proba.At(i, best) {
				best = j
			}
		}
		out.Set(i, 0, float64(rf.classes_[best]))
	}
	return out, nil
}

// Score returns the mean accuracy on (X, y).
func (rf *RandomForestClassifier) Score(X, y mat.Matrix) (float64, error) {
	pred, err := rf.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.AccuracyMatrix(y, pred)
}

// Classes returns the sorted class labels seen during Fit.
func (rf *RandomForestClassifier) Classes() []int {
	return append([]int(nil), rf.classes_...)
}

// FeatureImportances returns the mean impurity-based importance over all
// trees.
func (rf *RandomForestClassifier) FeatureImportances() []float64 {
	if len(rf.estimators_) == 0 {
		return nil
	}
	nFeatures, _ := rf.state.GetDimensions()
	out := make([]float64, nFeatures)
	for _, dt := range rf.estimators_ {
		for j, v := range dt.GetFeatureImportances() {
			out[j] += v
		}
	}
	for j := range out {
		out[j] /= float64(len(rf.estimators_))
	}
	return out
}

// Estimators returns the fitted trees.
func (rf *RandomForestClassifier) Estimators() []*tree.DecisionTreeClassifier {
	return append([]*tree.DecisionTreeClassifier(nil), rf.estimators_...)
}

// IsFitted reports whether Fit has completed.
func (rf *RandomForestClassifier) IsFitted() bool {
	return rf.state.IsFitted()
}

func (rf *RandomForestClassifier) String() string {
	return fmt.Sprintf("RandomForestClassifier(n_estimators=%d, criterion='%s', max_features=%v, bootstrap=%t)",
		rf.nEstimators, rf.criterion, model.FormatParam(rf.maxFeatures), rf.bootstrap)
}
