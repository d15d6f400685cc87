package main

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	chart := filepath.Join(t.TempDir(), "lime.png")
	var stdout bytes.Buffer
	require.NoError(t, run([]string{"-chart", chart, "-log-level", "error"}, &stdout))

	out := stdout.String()
	assert.Regexp(t, regexp.MustCompile(`(?m)^Accuracy: \d+\.\d+%$`), out)
	assert.Contains(t, out, "Prediction probabilities")
	assert.Contains(t, out, "Explanation for class ")
	assert.Contains(t, out, "Feature values")

	info, err := os.Stat(chart)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestRunPrintsConfusionMatrix(t *testing.T) {
	var stdout bytes.Buffer
	require.NoError(t, run([]string{"-confusion", "-log-level", "error"}, &stdout))
	assert.Contains(t, stdout.String(), "Confusion matrix (classes [0 1 2])")
}

func TestRunIsReproducible(t *testing.T) {
	var a, b bytes.Buffer
	require.NoError(t, run([]string{"-seed", "3", "-log-level", "error"}, &a))
	require.NoError(t, run([]string{"-seed", "3", "-log-level", "error"}, &b))
	assert.Equal(t, a.String(), b.String())
}

func TestPyFloat(t *testing.T) {
	assert.Equal(t, "100.0", pyFloat(100))
	assert.Equal(t, "96.667", pyFloat(96.667))
	assert.Equal(t, "93.333", pyFloat(93.333))
}
