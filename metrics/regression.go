// Package metrics implements regression and classification scores and the
// named scorers used by model selection.
package metrics

import (
	"math"

	"github.com/YuminosukeSato/watertemp/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// checkPair validates a (yTrue, yPred) pair and returns the raw values.
func checkPair(op string, yTrue, yPred *mat.VecDense) ([]float64, []float64, error) {
	if yTrue == nil || yTrue.Len() == 0 {
		return nil, nil, errors.NewValueError(op, "empty vector")
	}
	if yPred == nil || yPred.Len() != yTrue.Len() {
		got := 0
		if yPred != nil {
			got = yPred.Len()
		}
		return nil, nil, errors.NewDimensionError(op, yTrue.Len(), got, 0)
	}
	return mat.Col(nil, 0, yTrue), mat.Col(nil, 0, yPred), nil
}

// ColumnVector converts an n×1 matrix (or a VecDense) to a VecDense.
func ColumnVector(op string, m mat.Matrix) (*mat.VecDense, error) {
	if v, ok := m.(*mat.VecDense); ok {
		return v, nil
	}
	r, c := m.Dims()
	if r == 0 || c == 0 {
		return nil, errors.NewValueError(op, "empty matrix")
	}
	if c != 1 {
		return nil, errors.NewValueError(op, "must be a column vector (n×1 matrix)")
	}
	return mat.NewVecDense(r, mat.Col(nil, 0, m)), nil
}

// MSE is the mean squared error.
func MSE(yTrue, yPred *mat.VecDense) (float64, error) {
	t, p, err := checkPair("MSE", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	var sum float64
	for i := range t {
		d := t[i] - p[i]
		sum += d * d
	}
	return sum / float64(len(t)), nil
}

// MSEMatrix is MSE over n×1 matrices.
func MSEMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	t, err := ColumnVector("MSEMatrix", yTrue)
	if err != nil {
		return 0, err
	}
	p, err := ColumnVector("MSEMatrix", yPred)
	if err != nil {
		return 0, err
	}
	return MSE(t, p)
}

// RMSE is the root mean squared error, the headline metric for water
// temperature models.
func RMSE(yTrue, yPred *mat.VecDense) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// RMSEMatrix is RMSE over n×1 matrices.
func RMSEMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	mse, err := MSEMatrix(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE is the mean absolute error.
func MAE(yTrue, yPred *mat.VecDense) (float64, error) {
	t, p, err := checkPair("MAE", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	var sum float64
	for i := range t {
		sum += math.Abs(t[i] - p[i])
	}
	return sum / float64(len(t)), nil
}

// R2Score is the coefficient of determination. A constant yTrue makes it
// undefined and is reported as an error.
func R2Score(yTrue, yPred *mat.VecDense) (float64, error) {
	return WeightedR2Score(yTrue, yPred, nil)
}

// WeightedR2Score is R² with per-sample weights. nil weights mean uniform.
func WeightedR2Score(yTrue, yPred *mat.VecDense, weights []float64) (float64, error) {
	tss, rss, err := sumsOfSquares(yTrue, yPred, weights)
	if err != nil {
		return 0, err
	}
	if tss == 0 {
		return 0, errors.Newf("R2Score: total sum of squares is zero (no variance in yTrue)")
	}
	return 1 - rss/tss, nil
}

// FiniteR2Score is WeightedR2Score except that a constant yTrue scores 1
// when predicted exactly and 0 otherwise, as scikit-learn's estimators
// report it.
func FiniteR2Score(yTrue, yPred *mat.VecDense, weights []float64) (float64, error) {
	tss, rss, err := sumsOfSquares(yTrue, yPred, weights)
	if err != nil {
		return 0, err
	}
	switch {
	case tss != 0:
		return 1 - rss/tss, nil
	case rss == 0:
		return 1, nil
	}
	return 0, nil
}

// sumsOfSquares returns the weighted total and residual sums of squares.
func sumsOfSquares(yTrue, yPred *mat.VecDense, weights []float64) (tss, rss float64, err error) {
	t, p, err := checkPair("R2Score", yTrue, yPred)
	if err != nil {
		return 0, 0, err
	}
	if weights != nil && len(weights) != len(t) {
		return 0, 0, errors.NewDimensionError("R2Score", len(t), len(weights), 0)
	}
	mean := stat.Mean(t, weights)
	for i := range t {
		w := 1.0
		if weights != nil {
			w = weights[i]
		}
		tss += w * (t[i] - mean) * (t[i] - mean)
		rss += w * (t[i] - p[i]) * (t[i] - p[i])
	}
	return tss, rss, nil
}

// MAPE is the mean absolute percentage error over the non-zero targets.
func MAPE(yTrue, yPred *mat.VecDense) (float64, error) {
	t, p, err := checkPair("MAPE", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	var sum float64
	valid := 0
	for i := range t {
		if t[i] != 0 {
			sum += math.Abs(t[i]-p[i]) / math.Abs(t[i])
			valid++
		}
	}
	if valid == 0 {
		return 0, errors.Newf("MAPE: all yTrue values are zero")
	}
	return sum / float64(valid) * 100, nil
}

// ExplainedVarianceScore is 1 − Var(yTrue − yPred) / Var(yTrue).
func ExplainedVarianceScore(yTrue, yPred *mat.VecDense) (float64, error) {
	t, p, err := checkPair("ExplainedVarianceScore", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	diff := make([]float64, len(t))
	for i := range t {
		diff[i] = t[i] - p[i]
	}
	_, varTrue := stat.PopMeanVariance(t, nil)
	if varTrue == 0 {
		return 0, errors.Newf("ExplainedVarianceScore: no variance in yTrue")
	}
	_, varDiff := stat.PopMeanVariance(diff, nil)
	return 1 - varDiff/varTrue, nil
}
