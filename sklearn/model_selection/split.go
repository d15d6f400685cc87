// Package model_selection provides cross-validation splitters, parameter
// grids and exhaustive grid search.
package model_selection

import (
	"math/rand/v2"
	"sort"

	"github.com/YuminosukeSato/watertemp/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Splitter generates train/test index pairs for cross-validation.
type Splitter interface {
	Split(X, y mat.Matrix) ([]Fold, error)
	GetNSplits() int
}

// Fold is a single train/test partition of the sample indices.
type Fold struct {
	TrainIndices []int
	TestIndices  []int
}

func newRand(seed int64) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed)))
}

func checkSplits(op string, nSplits, nSamples int) error {
	if nSplits < 2 {
		return errors.NewValidationError("n_splits", "must be at least 2", nSplits)
	}
	if nSplits > nSamples {
		return errors.NewValueError(op, "cannot have number of splits greater than the number of samples")
	}
	return nil
}

// complement returns the indices in [0, n) that are not in test, ascending.
func complement(n int, test []int) []int {
	inTest := make([]bool, n)
	for _, i := range test {
		inTest[i] = true
	}
	train := make([]int, 0, n-len(test))
	for i := 0; i < n; i++ {
		if !inTest[i] {
			train = append(train, i)
		}
	}
	return train
}

// KFold splits the samples into NSplits consecutive folds. The first
// n_samples % n_splits folds get one extra sample.
type KFold struct {
	NSplits     int
	Shuffle     bool
	RandomState int64
}

// NewKFold creates a k-fold splitter.
func NewKFold(nSplits int, shuffle bool, randomState int64) *KFold {
	return &KFold{
		NSplits:     nSplits,
		Shuffle:     shuffle,
		RandomState: randomState,
	}
}

// GetNSplits returns the number of folds.
func (kf *KFold) GetNSplits() int {
	return kf.NSplits
}

// Split generates train/test indices for each fold.
func (kf *KFold) Split(X, _ mat.Matrix) ([]Fold, error) {
	nSamples, _ := X.Dims()
	if err := checkSplits("KFold.Split", kf.NSplits, nSamples); err != nil {
		return nil, err
	}

	indices := make([]int, nSamples)
	for i := range indices {
		indices[i] = i
	}
	if kf.Shuffle {
		r := newRand(kf.RandomState)
		r.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
	}

	folds := make([]Fold, kf.NSplits)
	foldSize := nSamples / kf.NSplits
	remainder := nSamples % kf.NSplits
	current := 0
	for i := 0; i < kf.NSplits; i++ {
		testSize := foldSize
		if i < remainder {
			testSize++
		}
		test := append([]int(nil), indices[current:current+testSize]...)
		folds[i] = Fold{
			TrainIndices: complement(nSamples, test),
			TestIndices:  test,
		}
		current += testSize
	}
	return folds, nil
}

// StratifiedKFold is a k-fold splitter that keeps the class proportions of
// y in every test fold.
type StratifiedKFold struct {
	NSplits     int
	Shuffle     bool
	RandomState int64
}

// NewStratifiedKFold creates a stratified k-fold splitter.
func NewStratifiedKFold(nSplits int, shuffle bool, randomState int64) *StratifiedKFold {
	return &StratifiedKFold{
		NSplits:     nSplits,
		Shuffle:     shuffle,
		RandomState: randomState,
	}
}

// GetNSplits returns the number of folds.
func (skf *StratifiedKFold) GetNSplits() int {
	return skf.NSplits
}

// Split distributes the samples of each class over the folds in turn.
func (skf *StratifiedKFold) Split(X, y mat.Matrix) ([]Fold, error) {
	nSamples, _ := X.Dims()
	if err := checkSplits("StratifiedKFold.Split", skf.NSplits, nSamples); err != nil {
		return nil, err
	}
	if y == nil {
		return nil, errors.NewValueError("StratifiedKFold.Split", "y is required for stratification")
	}
	if yRows, _ := y.Dims(); yRows != nSamples {
		return nil, errors.NewDimensionError("StratifiedKFold.Split", nSamples, yRows, 0)
	}

	byClass := make(map[float64][]int)
	for i := 0; i < nSamples; i++ {
		label := y.At(i, 0)
		byClass[label] = append(byClass[label], i)
	}
	labels := make([]float64, 0, len(byClass))
	for label := range byClass {
		labels = append(labels, label)
	}
	sort.Float64s(labels)

	var r *rand.Rand
	if skf.Shuffle {
		r = newRand(skf.RandomState)
	}

	tests := make([][]int, skf.NSplits)
	for _, label := range labels {
		indices := byClass[label]
		if r != nil {
			r.Shuffle(len(indices), func(i, j int) {
				indices[i], indices[j] = indices[j], indices[i]
			})
		}
		foldSize := len(indices) / skf.NSplits
		remainder := len(indices) % skf.NSplits
		current := 0
		for i := 0; i < skf.NSplits; i++ {
			testSize := foldSize
			if i < remainder {
				testSize++
			}
			tests[i] = append(tests[i], indices[current:current+testSize]...)
			current += testSize
		}
	}

	folds := make([]Fold, skf.NSplits)
	for i, test := range tests {
		sort.Ints(test)
		folds[i] = Fold{
			TrainIndices: complement(nSamples, test),
			TestIndices:  test,
		}
	}
	return folds, nil
}

// TrainTestSplit shuffles the rows with seed and returns the first
// floor(trainSize·n) permuted rows after the test block as the training set,
// the same layout scikit-learn's ShuffleSplit produces.
func TrainTestSplit(X, y mat.Matrix, trainSize float64, seed int64) (XTrain, XTest, yTrain, yTest *mat.Dense, err error) {
	nSamples, _ := X.Dims()
	if yRows, _ := y.Dims(); yRows != nSamples {
		return nil, nil, nil, nil, errors.NewDimensionError("TrainTestSplit", nSamples, yRows, 0)
	}
	if trainSize <= 0 || trainSize >= 1 {
		return nil, nil, nil, nil, errors.NewValidationError("train_size", "must be in (0, 1)", trainSize)
	}
	nTrain := int(trainSize * float64(nSamples))
	nTest := nSamples - nTrain
	if nTrain == 0 || nTest == 0 {
		return nil, nil, nil, nil, errors.NewValueError("TrainTestSplit",
			"the resulting train or test set would be empty")
	}

	perm := newRand(seed).Perm(nSamples)
	test := perm[:nTest]
	train := perm[nTest:]
	return Rows(X, train), Rows(X, test), Rows(y, train), Rows(y, test), nil
}

// Rows copies the given rows of m, in order, into a new matrix.
func Rows(m mat.Matrix, indices []int) *mat.Dense {
	_, cols := m.Dims()
	out := mat.NewDense(len(indices), cols, nil)
	for i, idx := range indices {
		for j := 0; j < cols; j++ {
			out.Set(i, j, m.At(idx, j))
		}
	}
	return out
}
