package tree

import (
	"math"
	"testing"

	"github.com/YuminosukeSato/watertemp/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func separable() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(6, 2, []float64{
		0, 0,
		0, 1,
		1, 0,
		2, 2,
		2, 3,
		3, 2,
	})
	y := mat.NewDense(6, 1, []float64{0, 0, 0, 1, 1, 1})
	return X, y
}

func assertProbaRows(t *testing.T, probas mat.Matrix) {
	t.Helper()
	rows, cols := probas.Dims()
	for i := 0; i < rows; i++ {
		sum := 0.0
		for j := 0; j < cols; j++ {
			p := probas.At(i, j)
			assert.GreaterOrEqual(t, p, 0.0)
			assert.LessOrEqual(t, p, 1.0)
			sum += p
		}
		assert.InDelta(t, 1.0, sum, 1e-9, "row %d", i)
	}
}

func TestDecisionTreeClassifier_FitPredict_Binary(t *testing.T) {
	X := mat.NewDense(8, 2, []float64{
		0, 0,
		0, 1,
		1, 0,
		1, 1,
		3, 3,
		3, 4,
		4, 3,
		4, 4,
	})
	y := mat.NewDense(8, 1, []float64{0, 0, 0, 0, 1, 1, 1, 1})

	dt := NewDecisionTreeClassifier(WithCriterion("gini"), WithMaxDepth(5))
	require.NoError(t, dt.Fit(X, y))

	pred, err := dt.Predict(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(y, pred))

	testPreds, err := dt.Predict(mat.NewDense(2, 2, []float64{0.5, 0.5, 3.5, 3.5}))
	require.NoError(t, err)
	assert.Equal(t, 0.0, testPreds.At(0, 0))
	assert.Equal(t, 1.0, testPreds.At(1, 0))

	assert.Equal(t, 1, dt.GetDepth())
	assert.Equal(t, 2, dt.GetNLeaves())
}

func TestDecisionTreeClassifier_PredictProba(t *testing.T) {
	X, y := separable()
	dt := NewDecisionTreeClassifier(WithMaxDepth(3))
	require.NoError(t, dt.Fit(X, y))

	probas, err := dt.PredictProba(X)
	require.NoError(t, err)
	rows, cols := probas.Dims()
	assert.Equal(t, 6, rows)
	assert.Equal(t, 2, cols)
	assertProbaRows(t, probas)
}

func TestDecisionTreeClassifier_Score(t *testing.T) {
	// Class 0 when both features agree, class 1 otherwise.
	X := mat.NewDense(8, 2, []float64{
		0.0, 0.0,
		0.0, 0.1,
		0.1, 1.0,
		0.0, 0.9,
		1.0, 0.0,
		0.9, 0.0,
		1.0, 1.0,
		0.9, 0.9,
	})
	y := mat.NewDense(8, 1, []float64{0, 0, 1, 1, 1, 1, 0, 0})

	dt := NewDecisionTreeClassifier(WithMaxDepth(5), WithMinSamplesLeaf(1))
	require.NoError(t, dt.Fit(X, y))
	score, err := dt.Score(X, y)
	require.NoError(t, err)
	assert.Equal(t, 1.0, score)

	XSimple, ySimple := separable()
	dtSimple := NewDecisionTreeClassifier(WithMaxDepth(3))
	require.NoError(t, dtSimple.Fit(XSimple, ySimple))
	score, err = dtSimple.Score(XSimple, ySimple)
	require.NoError(t, err)
	assert.Equal(t, 1.0, score)
}

func TestDecisionTreeClassifier_Multiclass(t *testing.T) {
	X := mat.NewDense(9, 2, []float64{
		0, 0,
		0, 1,
		1, 0,
		3, 3,
		3, 4,
		4, 3,
		6, 6,
		6, 7,
		7, 6,
	})
	y := mat.NewDense(9, 1, []float64{0, 0, 0, 1, 1, 1, 2, 2, 2})

	dt := NewDecisionTreeClassifier(WithCriterion("gini"), WithMaxDepth(5))
	require.NoError(t, dt.Fit(X, y))
	assert.Equal(t, 3, dt.nClasses_)
	assert.Equal(t, []int{0, 1, 2}, dt.Classes())

	pred, err := dt.Predict(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(y, pred))

	probas, err := dt.PredictProba(X)
	require.NoError(t, err)
	_, cols := probas.Dims()
	assert.Equal(t, 3, cols)
	assertProbaRows(t, probas)
	for i := 0; i < 9; i++ {
		assert.Equal(t, 1.0, probas.At(i, int(y.At(i, 0))))
	}
}

func TestDecisionTreeClassifier_NonContiguousLabels(t *testing.T) {
	X, _ := separable()
	y := mat.NewDense(6, 1, []float64{5, 5, 5, -1, -1, -1})

	dt := NewDecisionTreeClassifier()
	require.NoError(t, dt.Fit(X, y))
	assert.Equal(t, []int{-1, 5}, dt.Classes())

	pred, err := dt.Predict(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(y, pred))
}

func TestDecisionTreeClassifier_Entropy(t *testing.T) {
	X, y := separable()
	dt := NewDecisionTreeClassifier(WithCriterion("entropy"), WithMaxDepth(3))
	require.NoError(t, dt.Fit(X, y))

	score, err := dt.Score(X, y)
	require.NoError(t, err)
	assert.Equal(t, 1.0, score)
	assert.InDelta(t, 1.0, dt.root.impurity, 1e-12, "balanced binary root has one bit of entropy")
}

func TestDecisionTreeClassifier_FeatureImportance(t *testing.T) {
	// Feature 0 alone determines the class.
	X := mat.NewDense(8, 3, []float64{
		0, 0, 0,
		0, 1, 1,
		0, 0, 1,
		0, 1, 0,
		1, 0, 0,
		1, 1, 1,
		1, 0, 1,
		1, 1, 0,
	})
	y := mat.NewDense(8, 1, []float64{0, 0, 0, 0, 1, 1, 1, 1})

	dt := NewDecisionTreeClassifier()
	require.NoError(t, dt.Fit(X, y))

	importances := dt.GetFeatureImportances()
	require.Len(t, importances, 3)
	assert.Greater(t, importances[0], importances[1])
	assert.Greater(t, importances[0], importances[2])

	sum := 0.0
	for _, v := range importances {
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestDecisionTreeClassifier_MaxDepth(t *testing.T) {
	X := mat.NewDense(16, 2, nil)
	y := mat.NewDense(16, 1, nil)
	for i := 0; i < 16; i++ {
		X.Set(i, 0, float64(i))
		X.Set(i, 1, float64(i%4))
		y.Set(i, 0, float64(i%2))
	}

	dt := NewDecisionTreeClassifier(WithMaxDepth(2))
	require.NoError(t, dt.Fit(X, y))
	assert.LessOrEqual(t, dt.GetDepth(), 2)
	assert.LessOrEqual(t, dt.GetNLeaves(), 4)
}

func TestDecisionTreeClassifier_MinSamples(t *testing.T) {
	X := mat.NewDense(10, 2, nil)
	y := mat.NewDense(10, 1, nil)
	for i := 0; i < 10; i++ {
		X.Set(i, 0, float64(i))
		X.Set(i, 1, float64(i%3))
		y.Set(i, 0, float64(i%2))
	}

	dt := NewDecisionTreeClassifier(WithMinSamplesSplit(5), WithMinSamplesLeaf(2))
	require.NoError(t, dt.Fit(X, y))
	assert.LessOrEqual(t, dt.GetNLeaves(), 5)
}

func TestDecisionTreeClassifier_SampleWeights(t *testing.T) {
	X, y := separable()

	// Zero weights drop the positive class from every node, but the
	// class is still reported.
	dt := NewDecisionTreeClassifier()
	require.NoError(t, dt.FitWeighted(X, y, []float64{1, 2, 1, 0, 0, 0}))
	assert.Equal(t, []int{0, 1}, dt.Classes())
	assert.Equal(t, 1, dt.GetNLeaves())

	probas, err := dt.PredictProba(X)
	require.NoError(t, err)
	assert.Equal(t, 1.0, probas.At(5, 0))

	err = dt.FitWeighted(X, y, []float64{1, 1})
	var de *errors.DimensionError
	assert.True(t, errors.As(err, &de))

	assert.Error(t, dt.FitWeighted(X, y, make([]float64, 6)))
}

func TestDecisionTreeClassifier_MaxFeaturesSeeded(t *testing.T) {
	X := mat.NewDense(40, 4, nil)
	y := mat.NewDense(40, 1, nil)
	for i := 0; i < 40; i++ {
		for j := 0; j < 4; j++ {
			X.Set(i, j, math.Sin(float64(i*(j+1))))
		}
		if X.At(i, 0)+X.At(i, 2) > 0 {
			y.Set(i, 0, 1)
		}
	}

	fit := func() []float64 {
		dt := NewDecisionTreeClassifier(WithMaxFeatures(2), WithRandomState(42))
		require.NoError(t, dt.Fit(X, y))
		score, err := dt.Score(X, y)
		require.NoError(t, err)
		assert.Equal(t, 1.0, score)
		return dt.GetFeatureImportances()
	}
	assert.Equal(t, fit(), fit())
}

func TestDecisionTreeClassifier_GetSetParams(t *testing.T) {
	dt := NewDecisionTreeClassifier()

	params := dt.GetParams()
	assert.Equal(t, "gini", params["criterion"])
	assert.Equal(t, 2, params["min_samples_split"])

	err := dt.SetParams(map[string]interface{}{
		"criterion":         "entropy",
		"max_depth":         5,
		"min_samples_split": 4,
		"min_samples_leaf":  2,
	})
	require.NoError(t, err)
	assert.Equal(t, "entropy", dt.criterion)
	assert.Equal(t, 5, dt.maxDepth)
	assert.Equal(t, 4, dt.minSamplesSplit)
	assert.Equal(t, 2, dt.minSamplesLeaf)

	clone := dt.Clone()
	assert.Equal(t, dt.GetParams(), clone.GetParams())

	err = dt.SetParams(map[string]interface{}{"splitter": "random"})
	var ve *errors.ValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestDecisionTreeClassifier_InvalidParams(t *testing.T) {
	X, y := separable()
	assert.Error(t, NewDecisionTreeClassifier(WithCriterion("log_loss")).Fit(X, y))
	assert.Error(t, NewDecisionTreeClassifier(WithMinSamplesSplit(1)).Fit(X, y))
	assert.Error(t, NewDecisionTreeClassifier(WithMinSamplesLeaf(0)).Fit(X, y))
}

func TestDecisionTreeClassifier_NotFitted(t *testing.T) {
	dt := NewDecisionTreeClassifier()
	X := mat.NewDense(2, 2, []float64{1, 2, 3, 4})

	_, err := dt.Predict(X)
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	_, err = dt.PredictProba(X)
	assert.Error(t, err)
}
