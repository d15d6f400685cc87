// Package linear_model provides weighted ridge regression, the local
// surrogate fitted by the LIME explainer.
package linear_model

import (
	"fmt"

	"github.com/YuminosukeSato/watertemp/core/model"
	"github.com/YuminosukeSato/watertemp/metrics"
	"github.com/YuminosukeSato/watertemp/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// svdRcond is the relative singular value cutoff of the fallback solver.
const svdRcond = 1e-15

var (
	_ model.Regressor      = (*Ridge)(nil)
	_ model.WeightExporter = (*Ridge)(nil)
)

// Ridge is L2-penalised least squares compatible with scikit-learn's Ridge.
// With alpha = 0 it is ordinary least squares; rank-deficient systems get
// the minimum-norm solution.
type Ridge struct {
	state *model.StateManager // State management (composition instead of embedding)

	// Hyperparameters
	alpha        float64 // L2 penalty strength
	fitIntercept bool    // Whether to learn the intercept

	// Learned parameters
	coef_      []float64 // Weight coefficients
	intercept_ float64   // Intercept
}

// RidgeOption configures a Ridge.
type RidgeOption func(*Ridge)

// NewRidge creates a ridge regressor with alpha 1 and an intercept.
func NewRidge(options ...RidgeOption) *Ridge {
	r := &Ridge{
		state:        model.NewStateManager(),
		alpha:        1.0,
		fitIntercept: true,
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// WithAlpha sets the L2 penalty.
func WithAlpha(alpha float64) RidgeOption {
	return func(r *Ridge) {
		r.alpha = alpha
	}
}

// WithFitIntercept sets whether to learn the intercept.
func WithFitIntercept(fit bool) RidgeOption {
	return func(r *Ridge) {
		r.fitIntercept = fit
	}
}

// Fit learns the coefficients with unit sample weights.
func (r *Ridge) Fit(X, y mat.Matrix) error {
	return r.FitWeighted(X, y, nil)
}

// FitWeighted minimises Σ wᵢ(yᵢ − xᵢβ − b)² + α‖β‖². The weighted means are
// removed first so the intercept is not penalised.
func (r *Ridge) FitWeighted(X, y mat.Matrix, sampleWeight []float64) error {
	if r.alpha < 0 {
		return errors.NewValidationError("alpha", "must be >= 0", r.alpha)
	}
	rows, cols := X.Dims()
	yRows, yCols := y.Dims()
	if rows == 0 || cols == 0 {
		return errors.NewModelError("Ridge.Fit", "empty data", errors.ErrEmptyData)
	}
	if rows != yRows {
		return errors.NewDimensionError("Ridge.Fit", rows, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewDimensionError("Ridge.Fit", 1, yCols, 1)
	}
	if sampleWeight != nil && len(sampleWeight) != rows {
		return errors.NewDimensionError("Ridge.Fit", rows, len(sampleWeight), 0)
	}

	w := make([]float64, rows)
	total := 0.0
	for i := range w {
		w[i] = 1
		if sampleWeight != nil {
			w[i] = sampleWeight[i]
		}
		if w[i] < 0 {
			return errors.NewValidationError("sample_weight", "must be non-negative", w[i])
		}
		total += w[i]
	}
	if total <= 0 {
		return errors.NewValueError("Ridge.Fit", "sample weights sum to zero")
	}

	xMean := make([]float64, cols)
	yMean := 0.0
	if r.fitIntercept {
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				xMean[j] += w[i] * X.At(i, j)
			}
			yMean += w[i] * y.At(i, 0)
		}
		for j := range xMean {
			xMean[j] /= total
		}
		yMean /= total
	}

	// Normal equations of the centred, weighted problem.
	A := mat.NewSymDense(cols, nil)
	b := mat.NewVecDense(cols, nil)
	xc := make([]float64, cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			xc[j] = X.At(i, j) - xMean[j]
		}
		yc := y.At(i, 0) - yMean
		for j := 0; j < cols; j++ {
			b.SetVec(j, b.AtVec(j)+w[i]*xc[j]*yc)
			for k := j; k < cols; k++ {
				A.SetSym(j, k, A.At(j, k)+w[i]*xc[j]*xc[k])
			}
		}
	}
	for j := 0; j < cols; j++ {
		A.SetSym(j, j, A.At(j, j)+r.alpha)
	}

	coef := mat.NewVecDense(cols, nil)
	var chol mat.Cholesky
	solved := false
	if chol.Factorize(A) {
		solved = chol.SolveVecTo(coef, b) == nil
	}
	if !solved {
		var svd mat.SVD
		if !svd.Factorize(A, mat.SVDThin) {
			return errors.NewModelError("Ridge.Fit", "SVD factorization failed", nil)
		}
		svd.SolveVecTo(coef, b, svd.Rank(svdRcond))
	}

	r.coef_ = make([]float64, cols)
	intercept := yMean
	for j := range r.coef_ {
		r.coef_[j] = coef.AtVec(j)
		intercept -= xMean[j] * r.coef_[j]
	}
	r.intercept_ = 0
	if r.fitIntercept {
		r.intercept_ = intercept
	}

	r.state.SetDimensions(cols, rows)
	r.state.SetFitted()
	return nil
}

// Predict returns X·coef + intercept as an n×1 matrix.
func (r *Ridge) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := r.state.RequireFitted("Ridge", "Predict"); err != nil {
		return nil, err
	}
	if err := r.state.CheckFeatures("Ridge.Predict", X); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	out := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		v := r.intercept_
		for j := 0; j < cols; j++ {
			v += X.At(i, j) * r.coef_[j]
		}
		out.Set(i, 0, v)
	}
	return out, nil
}

// Score returns the coefficient of determination R². A constant target
// scores 1 when fitted exactly and 0 otherwise.
func (r *Ridge) Score(X, y mat.Matrix) (float64, error) {
	return r.ScoreWeighted(X, y, nil)
}

// ScoreWeighted returns the sample-weighted R².
func (r *Ridge) ScoreWeighted(X, y mat.Matrix, sampleWeight []float64) (float64, error) {
	pred, err := r.Predict(X)
	if err != nil {
		return 0, err
	}
	yTrue, err := metrics.ColumnVector("Ridge.Score", y)
	if err != nil {
		return 0, err
	}
	yPred, err := metrics.ColumnVector("Ridge.Score", pred)
	if err != nil {
		return 0, err
	}
	return metrics.FiniteR2Score(yTrue, yPred, sampleWeight)
}

// Coef returns a copy of the learned coefficients.
func (r *Ridge) Coef() []float64 {
	return append([]float64(nil), r.coef_...)
}

// Intercept returns the learned intercept.
func (r *Ridge) Intercept() float64 {
	return r.intercept_
}

// GetParams returns the hyperparameters.
func (r *Ridge) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"alpha":         r.alpha,
		"fit_intercept": r.fitIntercept,
	}
}

// SetParams updates hyperparameters and resets the fitted state.
func (r *Ridge) SetParams(params map[string]interface{}) error {
	alpha, fit := r.alpha, r.fitIntercept
	for k, v := range params {
		var err error
		switch k {
		case "alpha":
			alpha, err = model.ParamFloat(k, v)
		case "fit_intercept":
			fit, err = model.ParamBool(k, v)
		default:
			return errors.NewValidationError(k, "unknown parameter for Ridge", v)
		}
		if err != nil {
			return err
		}
	}
	r.alpha, r.fitIntercept = alpha, fit
	r.coef_, r.intercept_ = nil, 0
	r.state.Reset()
	return nil
}

// Clone returns an unfitted copy.
func (r *Ridge) Clone() model.Tunable {
	return NewRidge(WithAlpha(r.alpha), WithFitIntercept(r.fitIntercept))
}

// ExportWeights stores the coefficients as a single p×1 layer.
func (r *Ridge) ExportWeights() (*model.ModelWeights, error) {
	w := &model.ModelWeights{
		ModelType:       "Ridge",
		Version:         model.WeightsVersion,
		Hyperparameters: r.GetParams(),
		IsFitted:        r.state.IsFitted(),
	}
	if w.IsFitted {
		w.Layers = []model.LayerWeights{{
			Rows:       len(r.coef_),
			Cols:       1,
			Coefs:      r.Coef(),
			Intercepts: []float64{r.intercept_},
		}}
	}
	return w, nil
}

// ImportWeights restores a model saved with ExportWeights.
func (r *Ridge) ImportWeights(w *model.ModelWeights) error {
	if w == nil {
		return errors.NewValueError("Ridge.ImportWeights", "weights are nil")
	}
	if w.ModelType != "Ridge" {
		return errors.NewValidationError("model_type", "expected Ridge", w.ModelType)
	}
	if err := w.Validate(); err != nil {
		return err
	}
	if err := r.SetParams(w.Hyperparameters); err != nil {
		return err
	}
	if !w.IsFitted {
		return nil
	}
	if len(w.Layers) != 1 || w.Layers[0].Cols != 1 {
		return errors.NewValidationError("layers", "ridge weights have one p×1 layer", len(w.Layers))
	}
	r.coef_ = append([]float64(nil), w.Layers[0].Coefs...)
	r.intercept_ = w.Layers[0].Intercepts[0]
	r.state.SetDimensions(len(r.coef_), 0)
	r.state.SetFitted()
	return nil
}

// IsFitted reports whether the model has been fitted.
func (r *Ridge) IsFitted() bool {
	return r.state.IsFitted()
}

func (r *Ridge) String() string {
	if !r.state.IsFitted() {
		return fmt.Sprintf("Ridge(alpha=%g, fit_intercept=%t)", r.alpha, r.fitIntercept)
	}
	return fmt.Sprintf("Ridge(alpha=%g, fit_intercept=%t, n_features=%d)", r.alpha, r.fitIntercept, len(r.coef_))
}
