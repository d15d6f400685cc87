package lime

import (
	"math"
	"sort"

	"github.com/YuminosukeSato/watertemp/pkg/errors"
	"github.com/YuminosukeSato/watertemp/sklearn/linear_model"
	"gonum.org/v1/gonum/mat"
)

// Feature selection methods.
const (
	SelectAuto             = "auto"
	SelectForward          = "forward_selection"
	SelectHighestWeights   = "highest_weights"
	SelectNone             = "none"
	forwardSelectionCutoff = 6
)

// columns returns the listed columns of X.
func columns(X *mat.Dense, idx []int) *mat.Dense {
	rows, _ := X.Dims()
	out := mat.NewDense(rows, len(idx), nil)
	for i := 0; i < rows; i++ {
		for k, j := range idx {
			out.Set(i, k, X.At(i, j))
		}
	}
	return out
}

// selectFeatures picks at most numFeatures columns of data to explain y.
func selectFeatures(method string, data *mat.Dense, y *mat.Dense, weights []float64, numFeatures int) ([]int, error) {
	_, p := data.Dims()
	switch method {
	case SelectNone:
		all := make([]int, p)
		for i := range all {
			all[i] = i
		}
		return all, nil
	case SelectForward:
		return forwardSelection(data, y, weights, numFeatures)
	case SelectHighestWeights:
		return highestWeights(data, y, weights, numFeatures)
	case SelectAuto:
		if numFeatures <= forwardSelectionCutoff {
			return forwardSelection(data, y, weights, numFeatures)
		}
		return highestWeights(data, y, weights, numFeatures)
	}
	return nil, errors.NewValidationError("feature_selection", "unknown method", method)
}

// forwardSelection greedily adds the feature that most improves the
// weighted R² of an unpenalised linear fit.
func forwardSelection(data, y *mat.Dense, weights []float64, numFeatures int) ([]int, error) {
	_, p := data.Dims()
	if numFeatures > p {
		numFeatures = p
	}
	used := make([]int, 0, numFeatures)
	inUse := make([]bool, p)
	for len(used) < numFeatures {
		best, bestScore := -1, -1e8
		for f := 0; f < p; f++ {
			if inUse[f] {
				continue
			}
			cand := append(append([]int(nil), used...), f)
			X := columns(data, cand)
			ols := linear_model.NewRidge(linear_model.WithAlpha(0))
			if err := ols.FitWeighted(X, y, weights); err != nil {
				return nil, err
			}
			score, err := ols.ScoreWeighted(X, y, weights)
			if err != nil {
				return nil, err
			}
			if score > bestScore {
				best, bestScore = f, score
			}
		}
		if best < 0 {
			best = firstUnused(inUse)
		}
		used = append(used, best)
		inUse[best] = true
	}
	return used, nil
}

func firstUnused(inUse []bool) int {
	for f, u := range inUse {
		if !u {
			return f
		}
	}
	return 0
}

// highestWeights ranks features by |coef · x₀| of a lightly penalised fit
// on all features, where x₀ is the explained instance.
func highestWeights(data, y *mat.Dense, weights []float64, numFeatures int) ([]int, error) {
	_, p := data.Dims()
	r := linear_model.NewRidge(linear_model.WithAlpha(0.01))
	if err := r.FitWeighted(data, y, weights); err != nil {
		return nil, err
	}
	coef := r.Coef()
	contrib := make([]float64, p)
	order := make([]int, p)
	for j := range coef {
		contrib[j] = math.Abs(coef[j] * data.At(0, j))
		order[j] = j
	}
	sort.SliceStable(order, func(a, b int) bool {
		return contrib[order[a]] > contrib[order[b]]
	})
	if numFeatures > p {
		numFeatures = p
	}
	return order[:numFeatures], nil
}

// surrogate fits the weighted ridge on the selected columns and returns its
// intercept, coefficients, weighted R² and prediction at the instance.
func surrogate(data, y *mat.Dense, weights []float64, used []int) (float64, []float64, float64, float64, error) {
	X := columns(data, used)
	r := linear_model.NewRidge(linear_model.WithAlpha(1))
	if err := r.FitWeighted(X, y, weights); err != nil {
		return 0, nil, 0, 0, err
	}
	score, err := r.ScoreWeighted(X, y, weights)
	if err != nil {
		return 0, nil, 0, 0, err
	}
	pred, err := r.Predict(X.Slice(0, 1, 0, len(used)))
	if err != nil {
		return 0, nil, 0, 0, err
	}
	return r.Intercept(), r.Coef(), score, pred.At(0, 0), nil
}
