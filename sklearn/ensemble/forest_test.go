package ensemble

import (
	"context"
	"testing"

	"github.com/YuminosukeSato/watertemp/dataset"
	"github.com/YuminosukeSato/watertemp/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func irisXY(t *testing.T) (*mat.Dense, *mat.Dense) {
	t.Helper()
	iris, err := dataset.LoadIris()
	require.NoError(t, err)
	n, _ := iris.Data.Dims()
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		y.Set(i, 0, iris.Target.AtVec(i))
	}
	return iris.Data, y
}

func TestRandomForestClassifier_Iris(t *testing.T) {
	X, y := irisXY(t)

	rf := NewRandomForestClassifier(WithNEstimators(25), WithRandomState(1), WithNJobs(-1))
	require.NoError(t, rf.Fit(X, y))
	assert.True(t, rf.IsFitted())
	assert.Equal(t, []int{0, 1, 2}, rf.Classes())
	assert.Len(t, rf.Estimators(), 25)

	score, err := rf.Score(X, y)
	require.NoError(t, err)
	assert.Greater(t, score, 0.95)

	proba, err := rf.PredictProba(X)
	require.NoError(t, err)
	rows, cols := proba.Dims()
	assert.Equal(t, 150, rows)
	assert.Equal(t, 3, cols)
	for i := 0; i < rows; i++ {
		sum := 0.0
		for j := 0; j < cols; j++ {
			sum += proba.At(i, j)
		}
		assert.InDelta(t, 1.0, sum, 1e-9)
	}

	imp := rf.FeatureImportances()
	require.Len(t, imp, 4)
	total := 0.0
	for _, v := range imp {
		total += v
	}
	assert.InDelta(t, 1.0, total, 1e-9)
	// Petal measurements carry most of the signal.
	assert.Greater(t, imp[2]+imp[3], imp[0]+imp[1])
}

func TestRandomForestClassifier_DeterministicAcrossJobs(t *testing.T) {
	X, y := irisXY(t)

	probaFor := func(jobs int) mat.Matrix {
		rf := NewRandomForestClassifier(WithNEstimators(10), WithRandomState(7), WithNJobs(jobs))
		require.NoError(t, rf.Fit(X, y))
		p, err := rf.PredictProba(X)
		require.NoError(t, err)
		return p
	}
	assert.True(t, mat.Equal(probaFor(1), probaFor(4)))
}

func TestRandomForestClassifier_NoBootstrap(t *testing.T) {
	X, y := irisXY(t)
	rf := NewRandomForestClassifier(WithNEstimators(3), WithBootstrap(false), WithMaxFeatures("all"), WithRandomState(0))
	require.NoError(t, rf.Fit(X, y))

	// Without bootstrap or feature sampling every tree fits the data exactly.
	score, err := rf.Score(X, y)
	require.NoError(t, err)
	assert.Equal(t, 1.0, score)
}

func TestRandomForestClassifier_ResolveMaxFeatures(t *testing.T) {
	tests := []struct {
		setting interface{}
		want    int
	}{
		{"sqrt", 3},
		{"log2", 3},
		{"all", 10},
		{nil, 10},
		{4, 4},
		{25, 10},
		{2.0, 2},
	}
	for _, tt := range tests {
		rf := NewRandomForestClassifier(WithMaxFeatures(tt.setting))
		got, err := rf.resolveMaxFeatures(10)
		require.NoError(t, err, "%v", tt.setting)
		assert.Equal(t, tt.want, got, "%v", tt.setting)
	}

	for _, bad := range []interface{}{"auto", 0, -1} {
		_, err := NewRandomForestClassifier(WithMaxFeatures(bad)).resolveMaxFeatures(10)
		var ve *errors.ValidationError
		assert.True(t, errors.As(err, &ve), "%v", bad)
	}
}

func TestRandomForestClassifier_GetSetParams(t *testing.T) {
	rf := NewRandomForestClassifier()
	params := rf.GetParams()
	assert.Equal(t, 100, params["n_estimators"])
	assert.Equal(t, "sqrt", params["max_features"])
	assert.Equal(t, true, params["bootstrap"])

	require.NoError(t, rf.SetParams(map[string]interface{}{
		"n_estimators": 10.0,
		"max_depth":    nil,
		"random_state": 3,
		"criterion":    "entropy",
	}))
	assert.Equal(t, 10, rf.nEstimators)
	assert.Equal(t, int64(3), rf.randomState)
	assert.Equal(t, "entropy", rf.criterion)

	clone := rf.Clone()
	assert.Equal(t, rf.GetParams(), clone.GetParams())

	err := rf.SetParams(map[string]interface{}{"oob_score": true})
	var ve *errors.ValidationError
	assert.True(t, errors.As(err, &ve))
	assert.Equal(t, 10, rf.nEstimators, "failed SetParams leaves the forest unchanged")
}

func TestRandomForestClassifier_Errors(t *testing.T) {
	X, y := irisXY(t)

	_, err := NewRandomForestClassifier().Predict(X)
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	assert.Error(t, NewRandomForestClassifier(WithNEstimators(0)).Fit(X, y))
	assert.Error(t, NewRandomForestClassifier(WithCriterion("mse")).Fit(X, y))
	assert.Error(t, NewRandomForestClassifier().Fit(X, mat.NewDense(3, 1, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, NewRandomForestClassifier(WithNEstimators(5)).FitContext(ctx, X, y), context.Canceled)

	rf := NewRandomForestClassifier(WithNEstimators(2), WithRandomState(0))
	require.NoError(t, rf.Fit(X, y))
	_, err = rf.Predict(mat.NewDense(1, 3, nil))
	var de *errors.DimensionError
	assert.True(t, errors.As(err, &de))
}
