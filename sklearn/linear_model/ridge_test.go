package linear_model

import (
	"testing"

	"github.com/YuminosukeSato/watertemp/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestRidge_OrdinaryLeastSquares(t *testing.T) {
	X := mat.NewDense(6, 2, []float64{
		0, 1,
		1, 0,
		2, 3,
		3, 1,
		4, 4,
		5, 2,
	})
	y := mat.NewDense(6, 1, nil)
	for i := 0; i < 6; i++ {
		y.Set(i, 0, 1+2*X.At(i, 0)-3*X.At(i, 1))
	}

	r := NewRidge(WithAlpha(0))
	require.NoError(t, r.Fit(X, y))
	coef := r.Coef()
	assert.InDelta(t, 2.0, coef[0], 1e-9)
	assert.InDelta(t, -3.0, coef[1], 1e-9)
	assert.InDelta(t, 1.0, r.Intercept(), 1e-9)

	score, err := r.Score(X, y)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, score, 1e-12)
}

func TestRidge_Shrinkage(t *testing.T) {
	X := mat.NewDense(5, 1, []float64{1, 2, 3, 4, 5})
	y := mat.NewDense(5, 1, []float64{2, 4, 6, 8, 10})

	r := NewRidge()
	require.NoError(t, r.Fit(X, y))
	// Centred x has Σx² = 10, so β = 20 / (10 + α).
	assert.InDelta(t, 20.0/11.0, r.Coef()[0], 1e-12)
	assert.InDelta(t, 6-3*20.0/11.0, r.Intercept(), 1e-12)

	noIntercept := NewRidge(WithAlpha(0), WithFitIntercept(false))
	require.NoError(t, noIntercept.Fit(X, y))
	assert.InDelta(t, 2.0, noIntercept.Coef()[0], 1e-12)
	assert.Equal(t, 0.0, noIntercept.Intercept())
}

func TestRidge_SampleWeights(t *testing.T) {
	X := mat.NewDense(6, 1, []float64{0, 1, 2, 3, 4, 5})
	y := mat.NewDense(6, 1, []float64{1, 3, 5, 7, 100, -50})
	w := []float64{1, 1, 1, 1, 0, 0}

	r := NewRidge(WithAlpha(0))
	require.NoError(t, r.FitWeighted(X, y, w))
	assert.InDelta(t, 2.0, r.Coef()[0], 1e-9)
	assert.InDelta(t, 1.0, r.Intercept(), 1e-9)

	score, err := r.ScoreWeighted(X, y, w)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, score, 1e-9)

	unweighted, err := r.Score(X, y)
	require.NoError(t, err)
	assert.Less(t, unweighted, 0.5)

	assert.Error(t, r.FitWeighted(X, y, []float64{1, 1}))
	assert.Error(t, r.FitWeighted(X, y, []float64{1, 1, 1, 1, 1, -1}))
	assert.Error(t, r.FitWeighted(X, y, make([]float64, 6)))
}

func TestRidge_RankDeficient(t *testing.T) {
	X := mat.NewDense(5, 2, []float64{
		1, 1,
		2, 2,
		3, 3,
		4, 4,
		5, 5,
	})
	y := mat.NewDense(5, 1, []float64{2, 4, 6, 8, 10})

	r := NewRidge(WithAlpha(0))
	require.NoError(t, r.Fit(X, y))
	coef := r.Coef()
	assert.InDelta(t, 1.0, coef[0], 1e-6)
	assert.InDelta(t, 1.0, coef[1], 1e-6)

	pred, err := r.Predict(X)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		assert.InDelta(t, y.At(i, 0), pred.At(i, 0), 1e-6)
	}
}

func TestRidge_Params(t *testing.T) {
	r := NewRidge()
	assert.Equal(t, map[string]interface{}{"alpha": 1.0, "fit_intercept": true}, r.GetParams())

	require.NoError(t, r.SetParams(map[string]interface{}{"alpha": 0.01}))
	assert.Equal(t, 0.01, r.GetParams()["alpha"])
	assert.Equal(t, r.GetParams(), r.Clone().GetParams())

	err := r.SetParams(map[string]interface{}{"solver": "svd"})
	var ve *errors.ValidationError
	assert.True(t, errors.As(err, &ve))

	X := mat.NewDense(2, 1, []float64{1, 2})
	y := mat.NewDense(2, 1, []float64{1, 2})
	assert.Error(t, NewRidge(WithAlpha(-1)).Fit(X, y))
	assert.Error(t, NewRidge().Fit(X, mat.NewDense(3, 1, nil)))
}

func TestRidge_WeightsRoundTrip(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{1, 0, 0, 1, 1, 1, 2, 1})
	y := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	r := NewRidge(WithAlpha(0.5))
	require.NoError(t, r.Fit(X, y))

	w, err := r.ExportWeights()
	require.NoError(t, err)
	require.NoError(t, w.Validate())

	restored := NewRidge()
	require.NoError(t, restored.ImportWeights(w))
	assert.Equal(t, r.Coef(), restored.Coef())
	assert.Equal(t, r.Intercept(), restored.Intercept())
	assert.Equal(t, 0.5, restored.GetParams()["alpha"])

	p1, err := r.Predict(X)
	require.NoError(t, err)
	p2, err := restored.Predict(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(p1, p2))

	w.ModelType = "MLPRegressor"
	assert.Error(t, NewRidge().ImportWeights(w))
}

func TestRidge_NotFitted(t *testing.T) {
	_, err := NewRidge().Predict(mat.NewDense(1, 1, nil))
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))
}
