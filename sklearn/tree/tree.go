// Package tree implements CART decision trees compatible with
// scikit-learn's DecisionTreeClassifier.
package tree

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/YuminosukeSato/watertemp/core/model"
	"github.com/YuminosukeSato/watertemp/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

var _ model.Classifier = (*DecisionTreeClassifier)(nil)

// node is one split or leaf of a fitted tree. Leaves have nil children.
type node struct {
	feature   int
	threshold float64
	left      *node
	right     *node

	value    []float64 // Class probabilities of the training samples reaching the node
	impurity float64
	weight   float64 // Sum of sample weights
	nSamples int
}

func (n *node) isLeaf() bool {
	return n.left == nil
}

// DecisionTreeClassifier is a binary-split classification tree grown
// greedily on gini or entropy impurity.
type DecisionTreeClassifier struct {
	state *model.StateManager // State management (composition)

	// Hyperparameters
	criterion       string // Split quality: "gini" or "entropy"
	maxDepth        int    // Maximum depth, 0 for unlimited
	minSamplesSplit int    // Minimum samples required to split a node
	minSamplesLeaf  int    // Minimum samples in each leaf
	maxFeatures     int    // Features examined per split, 0 for all
	randomState     int64  // Random seed, -1 for nondeterministic

	// Learned parameters
	root                *node
	classes_            []int     // Sorted class labels
	nClasses_           int       // Number of classes
	nFeatures_          int       // Number of features
	featureImportances_ []float64 // Normalised impurity decrease per feature
	depth_              int       // Depth of the deepest leaf
	nLeaves_            int       // Number of leaves

	rng *rand.Rand
}

// Option is a functional option for DecisionTreeClassifier.
type Option func(*DecisionTreeClassifier)

// NewDecisionTreeClassifier creates a tree with scikit-learn's defaults.
func NewDecisionTreeClassifier(opts ...Option) *DecisionTreeClassifier {
	dt := &DecisionTreeClassifier{
		state:           model.NewStateManager(),
		criterion:       "gini",
		maxDepth:        0,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		maxFeatures:     0,
		randomState:     -1,
	}
	for _, opt := range opts {
		opt(dt)
	}
	return dt
}

// WithCriterion sets the impurity measure.
func WithCriterion(criterion string) Option {
	return func(dt *DecisionTreeClassifier) {
		dt.criterion = criterion
	}
}

// WithMaxDepth limits the depth of the tree. 0 means unlimited.
func WithMaxDepth(depth int) Option {
	return func(dt *DecisionTreeClassifier) {
		dt.maxDepth = depth
	}
}

// WithMinSamplesSplit sets the minimum node size that may be split.
func WithMinSamplesSplit(n int) Option {
	return func(dt *DecisionTreeClassifier) {
		dt.minSamplesSplit = n
	}
}

// WithMinSamplesLeaf sets the minimum number of samples in each leaf.
func WithMinSamplesLeaf(n int) Option {
	return func(dt *DecisionTreeClassifier) {
		dt.minSamplesLeaf = n
	}
}

// WithMaxFeatures sets how many randomly chosen features each split
// examines. 0 examines all features in column order.
func WithMaxFeatures(n int) Option {
	return func(dt *DecisionTreeClassifier) {
		dt.maxFeatures = n
	}
}

// WithRandomState seeds the feature sampling.
func WithRandomState(seed int64) Option {
	return func(dt *DecisionTreeClassifier) {
		dt.randomState = seed
	}
}

// GetParams returns the hyperparameters keyed by their scikit-learn names.
func (dt *DecisionTreeClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"criterion":         dt.criterion,
		"max_depth":         dt.maxDepth,
		"min_samples_split": dt.minSamplesSplit,
		"min_samples_leaf":  dt.minSamplesLeaf,
		"max_features":      dt.maxFeatures,
		"random_state":      dt.randomState,
	}
}

// SetParams updates hyperparameters by name and resets the fitted state.
func (dt *DecisionTreeClassifier) SetParams(params map[string]interface{}) error {
	next := *dt
	var err error
	for name, v := range params {
		switch name {
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
			if v == nil {
				next.maxFeatures = 0
			} else {
				next.maxFeatures, err = model.ParamInt(name, v)
			}
		case "random_state":
			if v == nil {
				next.randomState = -1
			} else {
				next.randomState, err = model.ParamInt64(name, v)
			}
		default:
			return errors.NewValidationError(name, "unknown parameter for DecisionTreeClassifier", v)
		}
		if err != nil {
			return err
		}
	}
	dt.criterion = next.criterion
	dt.maxDepth = next.maxDepth
	dt.minSamplesSplit = next.minSamplesSplit
	dt.minSamplesLeaf = next.minSamplesLeaf
	dt.maxFeatures = next.maxFeatures
	dt.randomState = next.randomState
	dt.state.Reset()
	dt.root = nil
	return nil
}

// Clone returns an unfitted tree with the same hyperparameters.
func (dt *DecisionTreeClassifier) Clone() model.Tunable {
	c := NewDecisionTreeClassifier()
	_ = c.SetParams(dt.GetParams())
	return c
}

func (dt *DecisionTreeClassifier) validate() error {
	switch dt.criterion {
	case "gini", "entropy":
	default:
		return errors.NewValidationError("criterion", "must be gini or entropy", dt.criterion)
	}
	switch {
	case dt.maxDepth < 0:
		return errors.NewValidationError("max_depth", "must be >= 0", dt.maxDepth)
	case dt.minSamplesSplit < 2:
		return errors.NewValidationError("min_samples_split", "must be >= 2", dt.minSamplesSplit)
	case dt.minSamplesLeaf < 1:
		return errors.NewValidationError("min_samples_leaf", "must be >= 1", dt.minSamplesLeaf)
	case dt.maxFeatures < 0:
		return errors.NewValidationError("max_features", "must be >= 0", dt.maxFeatures)
	}
	return nil
}

// Fit grows the tree on X and integer class labels y (n × 1).
func (dt *DecisionTreeClassifier) Fit(X, y mat.Matrix) error {
	return dt.FitWeighted(X, y, nil)
}

// FitWeighted grows the tree with per-sample weights. Samples with zero
// weight do not reach any node but their labels still count as classes,
// which keeps bootstrap replicas of a forest aligned on the same classes.
func (dt *DecisionTreeClassifier) FitWeighted(X, y mat.Matrix, sampleWeight []float64) error {
	if err := dt.validate(); err != nil {
		return err
	}
	nSamples, nFeatures := X.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return errors.NewModelError("DecisionTreeClassifier.Fit", "empty data", errors.ErrEmptyData)
	}
	yRows, yCols := y.Dims()
	if yRows != nSamples {
		return errors.NewDimensionError("DecisionTreeClassifier.Fit", nSamples, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewValueError("DecisionTreeClassifier.Fit", "y must be a column vector (n×1 matrix)")
	}
	if sampleWeight != nil && len(sampleWeight) != nSamples {
		return errors.NewDimensionError("DecisionTreeClassifier.Fit", nSamples, len(sampleWeight), 0)
	}

	dt.extractClasses(y)
	dt.nFeatures_ = nFeatures
	dt.rng = rand.New(rand.NewSource(seedOf(dt.randomState)))

	b := &builder{
		dt:          dt,
		X:           mat.DenseCopyOf(X),
		labels:      make([]int, nSamples),
		weights:     make([]float64, nSamples),
		importances: make([]float64, nFeatures),
	}
	index := make(map[int]int, dt.nClasses_)
	for k, c := range dt.classes_ {
		index[c] = k
	}
	samples := make([]int, 0, nSamples)
	for i := 0; i < nSamples; i++ {
		b.labels[i] = index[int(y.At(i, 0))]
		w := 1.0
		if sampleWeight != nil {
			w = sampleWeight[i]
		}
		if w < 0 {
			return errors.NewValidationError("sample_weight", "must be non-negative", w)
		}
		b.weights[i] = w
		if w > 0 {
			samples = append(samples, i)
		}
	}
	if len(samples) == 0 {
		return errors.NewValueError("DecisionTreeClassifier.Fit", "all sample weights are zero")
	}

	dt.depth_ = 0
	dt.nLeaves_ = 0
	dt.root = b.grow(samples, 0)

	total := 0.0
	for _, v := range b.importances {
		total += v
	}
	for i := range b.importances {
		b.importances[i] = errors.SafeDivide(b.importances[i], total)
	}
	dt.featureImportances_ = b.importances

	dt.state.SetDimensions(nFeatures, nSamples)
	dt.state.SetFitted()
	return nil
}

func seedOf(randomState int64) int64 {
	if randomState < 0 {
		return rand.Int63()
	}
	return randomState
}

func (dt *DecisionTreeClassifier) extractClasses(y mat.Matrix) {
	rows, _ := y.Dims()
	seen := make(map[int]bool)
	for i := 0; i < rows; i++ {
		seen[int(y.At(i, 0))] = true
	}
	dt.classes_ = make([]int, 0, len(seen))
	for c := range seen {
		dt.classes_ = append(dt.classes_, c)
	}
	sort.Ints(dt.classes_)
	dt.nClasses_ = len(dt.classes_)
}

// PredictProba returns the class distribution of the leaf each sample
// falls into. Columns follow Classes().
func (dt *DecisionTreeClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := dt.state.RequireFitted("DecisionTreeClassifier", "PredictProba"); err != nil {
		return nil, err
	}
	if err := dt.state.CheckFeatures("DecisionTreeClassifier.PredictProba", X); err != nil {
		return nil, err
	}
	r, _ := X.Dims()
	out := mat.NewDense(r, dt.nClasses_, nil)
	for i := 0; i < r; i++ {
		out.SetRow(i, dt.leaf(X, i).value)
	}
	return out, nil
}

// Predict returns the most probable class of every sample as an n × 1
// matrix.
func (dt *DecisionTreeClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := dt.state.RequireFitted("DecisionTreeClassifier", "Predict"); err != nil {
		return nil, err
	}
	if err := dt.state.CheckFeatures("DecisionTreeClassifier.Predict", X); err != nil {
		return nil, err
	}
	r, _ := X.Dims()
	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		out.Set(i, 0, float64(dt.classes_[argmax(dt.leaf(X, i).value)]))
	}
	return out, nil
}

func (dt *DecisionTreeClassifier) leaf(X mat.Matrix, i int) *node {
	n := dt.root
	for !n.isLeaf() {
		if X.At(i, n.feature) <= n.threshold {
			n = n.left
		} else {
			n = n.right
		}
	}
	return n
}

// argmax returns the first index of the largest value.
func argmax(values []float64) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}

// Score returns the mean accuracy on (X, y).
func (dt *DecisionTreeClassifier) Score(X, y mat.Matrix) (float64, error) {
	pred, err := dt.Predict(X)
	if err != nil {
		return 0, err
	}
	r, _ := y.Dims()
	pr, _ := pred.Dims()
	if r != pr {
		return 0, errors.NewDimensionError("DecisionTreeClassifier.Score", pr, r, 0)
	}
	correct := 0
	for i := 0; i < r; i++ {
		if pred.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(r), nil
}

// Classes returns the sorted class labels seen during Fit.
func (dt *DecisionTreeClassifier) Classes() []int {
	return append([]int(nil), dt.classes_...)
}

// GetFeatureImportances returns the normalised total impurity decrease
// contributed by each feature.
func (dt *DecisionTreeClassifier) GetFeatureImportances() []float64 {
	return append([]float64(nil), dt.featureImportances_...)
}

// GetDepth returns the depth of the deepest leaf; a single-leaf tree has
// depth 0.
func (dt *DecisionTreeClassifier) GetDepth() int {
	return dt.depth_
}

// GetNLeaves returns the number of leaves.
func (dt *DecisionTreeClassifier) GetNLeaves() int {
	return dt.nLeaves_
}

// IsFitted reports whether Fit has completed.
func (dt *DecisionTreeClassifier) IsFitted() bool {
	return dt.state.IsFitted()
}

func (dt *DecisionTreeClassifier) String() string {
	return fmt.Sprintf("DecisionTreeClassifier(criterion='%s', max_depth=%d, min_samples_split=%d, min_samples_leaf=%d)",
		dt.criterion, dt.maxDepth, dt.minSamplesSplit, dt.minSamplesLeaf)
}

// impurity returns the gini or entropy (base 2) impurity of class weights
// summing to total.
func impurity(criterion string, counts []float64, total float64) float64 {
	if total <= 0 {
		return 0
	}
	if criterion == "entropy" {
		h := 0.0
		for _, c := range counts {
			if c > 0 {
				p := c / total
				h -= p * math.Log2(p)
			}
		}
		return h
	}
	g := 1.0
	for _, c := range counts {
		p := c / total
		g -= p * p
	}
	return g
}
