package model_selection

import (
	"bytes"
	"context"
	"math"
	"strings"
	"testing"

	"github.com/YuminosukeSato/watertemp/core/model"
	"github.com/YuminosukeSato/watertemp/pkg/errors"
	"github.com/YuminosukeSato/watertemp/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// slopeRegressor predicts slope·x0 and can be told to fail or panic.
type slopeRegressor struct {
	slope  float64
	mode   string
	fitted bool
}

func (s *slopeRegressor) Fit(X, y mat.Matrix) error {
	switch s.mode {
	case "error":
		return errors.NewValueError("slopeRegressor.Fit", "asked to fail")
	case "panic":
		panic("asked to panic")
	}
	s.fitted = true
	return nil
}

func (s *slopeRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !s.fitted {
		return nil, errors.NewNotFittedError("slopeRegressor", "Predict")
	}
	r, _ := X.Dims()
	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		out.Set(i, 0, s.slope*X.At(i, 0))
	}
	return out, nil
}

func (s *slopeRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{"slope": s.slope, "mode": s.mode}
}

func (s *slopeRegressor) SetParams(p map[string]interface{}) error {
	for k, v := range p {
		var err error
		switch k {
		case "slope":
			s.slope, err = model.ParamFloat(k, v)
		case "mode":
			s.mode, err = model.ParamString(k, v)
		default:
			return errors.NewValidationError(k, "unknown parameter", v)
		}
		if err != nil {
			return err
		}
	}
	s.fitted = false
	return nil
}

func (s *slopeRegressor) Clone() model.Tunable {
	return &slopeRegressor{slope: s.slope, mode: s.mode}
}

// lineData returns y = 2·x.
func lineData(n int) (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(n, 1, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		X.Set(i, 0, float64(i))
		y.Set(i, 0, 2*float64(i))
	}
	return X, y
}

func TestGridSearchCV_FindsBest(t *testing.T) {
	X, y := lineData(20)
	grid := ParameterGrid{"slope": {0.0, 1.0, 2.0, 3.0}}

	gs := NewGridSearchCV(&slopeRegressor{}, grid,
		WithScoring("neg_root_mean_squared_error"),
		WithCV(5),
		WithNJobs(-1),
		WithReturnTrainScore(true),
	)
	require.NoError(t, gs.Fit(context.Background(), X, y))
	assert.True(t, gs.IsFitted())

	assert.Equal(t, 2, gs.BestIndex())
	assert.Equal(t, map[string]interface{}{"slope": 2.0}, gs.BestParams())
	assert.InDelta(t, 0.0, gs.BestScore(), 1e-12)

	res := gs.CVResults()
	require.Equal(t, 4, res.Len())
	assert.Equal(t, []int{4, 2, 1, 2}, res.RankTestScore)
	require.Len(t, res.SplitTestScores, 5)
	for f := range res.SplitTestScores {
		assert.LessOrEqual(t, res.SplitTestScores[f][0], 0.0)
	}
	require.NotNil(t, res.MeanTrainScore)
	assert.InDelta(t, 0.0, res.MeanTrainScore[2], 1e-12)

	require.NotNil(t, gs.BestEstimator())
	pred, err := gs.Predict(mat.NewDense(1, 1, []float64{10}))
	require.NoError(t, err)
	assert.Equal(t, 20.0, pred.At(0, 0))

	score, err := gs.Score(X, y)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, score, 1e-12)
}

func TestGridSearchCV_DefaultScorerNeedsScore(t *testing.T) {
	X, y := lineData(10)
	gs := NewGridSearchCV(&slopeRegressor{}, ParameterGrid{"slope": {1.0}}, WithCV(2))
	assert.Error(t, gs.Fit(context.Background(), X, y))
}

func TestGridSearchCV_ErrorScore(t *testing.T) {
	X, y := lineData(12)
	grid := ParameterGrid{
		"mode":  {"", "error", "panic"},
		"slope": {2.0},
	}
	logger, _ := log.NewTestLogger(log.LevelDebug)

	gs := NewGridSearchCV(&slopeRegressor{}, grid,
		WithScoring("r2"), WithCV(3), WithLogger(logger))
	require.NoError(t, gs.Fit(context.Background(), X, y))

	res := gs.CVResults()
	assert.Equal(t, 1.0, res.MeanTestScore[0])
	assert.True(t, math.IsNaN(res.MeanTestScore[1]))
	assert.True(t, math.IsNaN(res.MeanTestScore[2]))
	assert.Equal(t, []int{1, 2, 2}, res.RankTestScore)
	assert.Equal(t, 0, gs.BestIndex())
	assert.Equal(t, 6, logger.Count("Fit failed"))
	assert.True(t, logger.ContainsMessage("panic in GridSearchCV.fitAndScore"))

	gs = NewGridSearchCV(&slopeRegressor{}, grid, WithScoring("r2"), WithCV(3), WithErrorScore(-1), WithLogger(logger))
	require.NoError(t, gs.Fit(context.Background(), X, y))
	assert.Equal(t, -1.0, gs.CVResults().MeanTestScore[1])

	gs = NewGridSearchCV(&slopeRegressor{}, grid, WithScoring("r2"), WithCV(3), WithErrorRaise(), WithLogger(logger))
	err := gs.Fit(context.Background(), X, y)
	require.Error(t, err)
	assert.False(t, gs.IsFitted())
}

func TestGridSearchCV_AllFitsFail(t *testing.T) {
	X, y := lineData(10)
	logger, _ := log.NewTestLogger(log.LevelError)
	gs := NewGridSearchCV(&slopeRegressor{}, ParameterGrid{"mode": {"error"}},
		WithScoring("r2"), WithCV(2), WithLogger(logger))
	err := gs.Fit(context.Background(), X, y)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all the 2 fits failed")
}

func TestGridSearchCV_InvalidGrid(t *testing.T) {
	X, y := lineData(10)

	gs := NewGridSearchCV(&slopeRegressor{}, ParameterGrid{"depth": {1}}, WithScoring("r2"))
	var ve *errors.ValidationError
	assert.True(t, errors.As(gs.Fit(context.Background(), X, y), &ve))

	gs = NewGridSearchCV(&slopeRegressor{}, ParameterGrid{"slope": {1.0}}, WithScoring("f1"))
	assert.Error(t, gs.Fit(context.Background(), X, y))

	gs = NewGridSearchCV(&slopeRegressor{}, ParameterGrid{"slope": {1.0}}, WithScoring("r2"), WithCV(11))
	assert.Error(t, gs.Fit(context.Background(), X, y))
}

func TestGridSearchCV_Cancelled(t *testing.T) {
	X, y := lineData(10)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	gs := NewGridSearchCV(&slopeRegressor{}, ParameterGrid{"slope": {1.0, 2.0}}, WithScoring("r2"), WithCV(2))
	assert.ErrorIs(t, gs.Fit(ctx, X, y), context.Canceled)
}

func TestGridSearchCV_NoRefit(t *testing.T) {
	X, y := lineData(10)
	gs := NewGridSearchCV(&slopeRegressor{}, ParameterGrid{"slope": {1.0, 2.0}},
		WithScoring("r2"), WithCV(2), WithRefit(false))
	require.NoError(t, gs.Fit(context.Background(), X, y))
	assert.Nil(t, gs.BestEstimator())
	assert.Equal(t, 1, gs.BestIndex())

	_, err := gs.Predict(X)
	assert.Error(t, err)
}

func TestGridSearchCV_Verbose(t *testing.T) {
	X, y := lineData(10)
	logger, _ := log.NewTestLogger(log.LevelInfo)
	gs := NewGridSearchCV(&slopeRegressor{}, ParameterGrid{"slope": {1.0, 2.0}, "mode": {""}},
		WithScoring("r2"), WithCV(2), WithVerbose(3), WithLogger(logger))
	require.NoError(t, gs.Fit(context.Background(), X, y))

	assert.True(t, logger.ContainsMessage("Fitting 2 folds for each of 2 candidates, totalling 4 fits"))
	assert.Equal(t, 2, logger.Count("] END mode=, slope=1;"))
	assert.True(t, logger.ContainsMessage("[CV 1/2] END mode=, slope=2; score=1.000 total time="))
}

func TestCVResults_WriteCSV(t *testing.T) {
	grid := ParameterGrid{
		"activation":         {"relu"},
		"hidden_layer_sizes": {[]int{5}, []int{7, 5}},
	}
	cands := grid.Candidates()
	results := make([]fitResult, len(cands)*2)
	for i := range results {
		results[i] = fitResult{testScore: -float64(i + 1), fitTime: 0.5, scoreTime: 0.1}
	}
	res := newCVResults(grid.Keys(), cands, 2, results, false)

	var buf bytes.Buffer
	require.NoError(t, res.WriteCSV(&buf, ';'))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t,
		"mean_fit_time;std_fit_time;mean_score_time;std_score_time;param_activation;param_hidden_layer_sizes;params;"+
			"split0_test_score;split1_test_score;mean_test_score;std_test_score;rank_test_score",
		lines[0])
	assert.Equal(t,
		"0.5;0.0;0.1;0.0;relu;(5,);{'activation': 'relu', 'hidden_layer_sizes': (5,)};-1.0;-2.0;-1.5;0.5;1",
		lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "0.5;0.0;0.1;0.0;relu;(7, 5);"))
	assert.True(t, strings.HasSuffix(lines[2], ";-3.5;0.5;2"))
}

func TestRankDescending(t *testing.T) {
	nan := math.NaN()
	assert.Equal(t, []int{2, 1, 2, 4}, rankDescending([]float64{0.5, 0.9, 0.5, 0.1}))
	assert.Equal(t, []int{3, 1, 2, 3}, rankDescending([]float64{nan, 1, 0, nan}))
}
