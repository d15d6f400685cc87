package main

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/YuminosukeSato/watertemp/core/model"
	"github.com/YuminosukeSato/watertemp/sklearn/neural_network"
	"github.com/YuminosukeSato/watertemp/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeWaterCSV writes n rows of two scaled predictors and a temperature
// that depends linearly on them.
func writeWaterCSV(t *testing.T, path string, n int, seed int64) {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	var b strings.Builder
	b.WriteString("AIRTEMP,FLOW,WATERTEMP\n")
	for i := 0; i < n; i++ {
		air, flow := rng.NormFloat64(), rng.NormFloat64()
		fmt.Fprintf(&b, "%.4f,%.4f,%.4f\n", air, flow, 0.8*air-0.3*flow+0.05*rng.NormFloat64())
	}
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o600))
}

func TestRunEndToEnd(t *testing.T) {
	dir := t.TempDir()
	train := filepath.Join(dir, "train.csv")
	test := filepath.Join(dir, "test.csv")
	writeWaterCSV(t, train, 60, 1)
	writeWaterCSV(t, test, 20, 2)

	configPath := filepath.Join(dir, "search.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(fmt.Sprintf(`
data:
  train: %s
  test: %s
  scaler: standard
grid:
  activation: [relu, tanh]
  hidden_layer_sizes: [[3]]
  learning_rate_init: [0.01]
estimator:
  max_iter: 40
search:
  cv: 2
  n_jobs: 1
  verbose: 0
output:
  model: %s
  plot_dir: %s
  database: %s
  explain: true
log:
  level: error
`, train, test, filepath.Join(dir, "mlp.json"), filepath.Join(dir, "plots"), filepath.Join(dir, "runs.db"))), 0o600))

	results := filepath.Join(dir, "out", "results.csv")
	var stdout bytes.Buffer
	err := run(context.Background(), []string{
		"-config", configPath,
		"-env", filepath.Join(dir, "absent.env"),
		"-out", results,
	}, &stdout)
	require.NoError(t, err)

	out := stdout.String()
	assert.Contains(t, out, "RMSE (train) = ")
	assert.Contains(t, out, "RMSE (test) = ")
	assert.Contains(t, out, "Predicted value")

	raw, err := os.ReadFile(results)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "mean_fit_time;std_fit_time;"))
	assert.Contains(t, lines[0], "param_activation")

	for _, name := range []string{"predictions_test.png", "loss_curve.png", "explanation_test0.png"} {
		_, err := os.Stat(filepath.Join(dir, "plots", name))
		assert.NoError(t, err, name)
	}

	restored := neural_network.NewMLPRegressor()
	require.NoError(t, model.LoadWeights(restored, filepath.Join(dir, "mlp.json")))
	assert.True(t, restored.IsFitted())

	db, err := store.Open(filepath.Join(dir, "runs.db"))
	require.NoError(t, err)
	defer db.Close()
	runs, err := db.ListRuns(context.Background())
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "WATERTEMP", runs[0].Target)
	assert.Equal(t, 2, runs[0].Candidates)
}

func TestRunRejectsUnknownTarget(t *testing.T) {
	dir := t.TempDir()
	train := filepath.Join(dir, "train.csv")
	writeWaterCSV(t, train, 10, 1)

	err := run(context.Background(), []string{
		"-train", train,
		"-test", train,
		"-target", "SALINITY",
		"-env", filepath.Join(dir, "absent.env"),
		"-log-level", "error",
	}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestRunRejectsBadFlags(t *testing.T) {
	err := run(context.Background(), []string{"-log-level", "chatty", "-env", "absent.env"}, &bytes.Buffer{})
	assert.Error(t, err)
}
