package store

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/YuminosukeSato/watertemp/sklearn/model_selection"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResults() *model_selection.CVResults {
	return &model_selection.CVResults{
		ParamNames: []string{"activation", "learning_rate_init"},
		Params: []map[string]interface{}{
			{"activation": "relu", "learning_rate_init": 0.001},
			{"activation": "tanh", "learning_rate_init": 0.001},
		},
		MeanFitTime:     []float64{1.5, 2.5},
		StdFitTime:      []float64{0.1, 0.2},
		MeanScoreTime:   []float64{0.01, 0.01},
		StdScoreTime:    []float64{0, 0},
		SplitTestScores: [][]float64{{-0.4, math.NaN()}, {-0.6, -0.9}},
		MeanTestScore:   []float64{-0.5, math.NaN()},
		StdTestScore:    []float64{0.1, math.NaN()},
		RankTestScore:   []int{1, 2},
	}
}

func TestSaveAndListRuns(t *testing.T) {
	ctx := context.Background()
	s, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer s.Close()

	first := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	id1, err := s.SaveSearch(ctx, Run{
		Target:     "WATERTEMP",
		Scoring:    "neg_root_mean_squared_error",
		BestParams: map[string]interface{}{"activation": "relu", "learning_rate_init": 0.001},
		BestScore:  -0.5,
		RMSETrain:  0.41,
		RMSETest:   0.52,
		CreatedAt:  first,
	}, sampleResults())
	require.NoError(t, err)

	id2, err := s.SaveSearch(ctx, Run{
		Target:     "WATERTEMP_MAX",
		Scoring:    "r2",
		BestParams: map[string]interface{}{"activation": "tanh"},
		BestScore:  0.9,
		RMSETrain:  math.NaN(),
		RMSETest:   math.NaN(),
		CreatedAt:  first.Add(time.Hour),
	}, sampleResults())
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, id2, runs[0].ID)
	assert.Equal(t, "WATERTEMP_MAX", runs[0].Target)
	assert.True(t, math.IsNaN(runs[0].RMSETest))

	assert.Equal(t, "WATERTEMP", runs[1].Target)
	assert.Equal(t, "relu", runs[1].BestParams["activation"])
	assert.InDelta(t, 0.001, runs[1].BestParams["learning_rate_init"], 1e-15)
	assert.InDelta(t, 0.52, runs[1].RMSETest, 1e-12)
	assert.Equal(t, 2, runs[1].Candidates)
	assert.Equal(t, 2, runs[1].Folds)
	assert.True(t, first.Equal(runs[1].CreatedAt))

	cands, err := s.Candidates(ctx, id1)
	require.NoError(t, err)
	require.Len(t, cands, 2)
	assert.Equal(t, "tanh", cands[1].Params["activation"])
	assert.Equal(t, 2, cands[1].Rank)
	assert.True(t, math.IsNaN(cands[1].MeanTestScore))
	assert.InDelta(t, -0.5, cands[0].MeanTestScore, 1e-12)
}

func TestSaveSearchRejectsNilResults(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	_, err = s.SaveSearch(context.Background(), Run{Target: "WATERTEMP"}, nil)
	assert.Error(t, err)

	runs, err := s.ListRuns(context.Background())
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestSaveSearchHonoursCancelledContext(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.SaveSearch(ctx, Run{Target: "WATERTEMP"}, sampleResults())
	assert.Error(t, err)
}
