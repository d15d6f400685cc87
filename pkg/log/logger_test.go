package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	werrors "github.com/YuminosukeSato/watertemp/pkg/errors"
)

func TestTestLoggerCapturesLevelsAndFields(t *testing.T) {
	logger, buffer := NewTestLogger(LevelDebug)

	logger.Debug("debug message", "key1", "value1", "number", 42)
	logger.Info("info message", OperationKey, OperationFit)
	logger.Warn("warning message")
	logger.Error("error message", fmt.Errorf("boom"), "code", "E1")

	require.NotEmpty(t, buffer.String())
	for _, msg := range []string{"debug message", "info message", "warning message", "error message"} {
		assert.True(t, logger.ContainsMessage(msg), msg)
	}
	assert.True(t, logger.ContainsField("key1", "value1"))
	assert.True(t, logger.ContainsField("number", 42.0))
	assert.True(t, logger.ContainsField("error", "boom"))
	assert.True(t, logger.ContainsField("code", "E1"))
}

func TestTestLoggerWithSharesBuffer(t *testing.T) {
	logger, _ := NewTestLogger(LevelDebug)
	child := logger.With(ModelNameKey, "MLPRegressor", ComponentKey, "neural_network")
	child.Info("contextual message", OperationKey, OperationFit)

	assert.True(t, logger.ContainsField(ModelNameKey, "MLPRegressor"))
	assert.True(t, logger.ContainsField(ComponentKey, "neural_network"))
	assert.Equal(t, 1, logger.Count("contextual"))
}

func TestTestLoggerLevelFiltering(t *testing.T) {
	logger, _ := NewTestLogger(LevelWarn)
	ctx := context.Background()

	assert.False(t, logger.Enabled(ctx, LevelInfo))
	assert.True(t, logger.Enabled(ctx, LevelError))

	logger.Info("hidden")
	logger.Warn("shown")
	assert.False(t, logger.ContainsMessage("hidden"))
	assert.True(t, logger.ContainsMessage("shown"))
}

func TestTestLoggerConcurrent(t *testing.T) {
	logger, _ := NewTestLogger(LevelDebug)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			logger.With(WorkerKeyForTest, i).Info("fold done", FoldKey, i)
		}(i)
	}
	wg.Wait()

	entries, err := logger.GetLogEntries()
	require.NoError(t, err)
	assert.Len(t, entries, 16)
}

const WorkerKeyForTest = "test.worker"

func TestSetupJSONWritesStructuredRecords(t *testing.T) {
	var buf bytes.Buffer
	logger, closer, err := Setup(Config{Level: "debug", Format: "json", Writer: &buf})
	require.NoError(t, err)
	defer closer.Close()
	defer werrors.SetZerologWarnFunc(nil)

	logger.With(ModelNameKey, "MLPRegressor").Info("fit done", LossKey, 0.25, EpochKey, 12)

	var record map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &record))
	assert.Equal(t, "fit done", record["message"])
	assert.Equal(t, "MLPRegressor", record[ModelNameKey])
	assert.Equal(t, 0.25, record[LossKey])
	assert.Equal(t, 12.0, record[EpochKey])
	assert.Same(t, logger, GetLogger())
}

func TestSetupRoutesWarnings(t *testing.T) {
	var buf bytes.Buffer
	_, closer, err := Setup(Config{Level: "info", Format: "json", Writer: &buf})
	require.NoError(t, err)
	defer closer.Close()
	defer werrors.SetZerologWarnFunc(nil)

	werrors.Warn(werrors.NewConvergenceWarning("MLPRegressor", 200, ""))
	out := buf.String()
	assert.Contains(t, out, `"type":"ConvergenceWarning"`)
	assert.Contains(t, out, `"level":"warn"`)
}

func TestSetupErrorField(t *testing.T) {
	var buf bytes.Buffer
	logger, closer, err := Setup(Config{Level: "info", Format: "json", Writer: &buf})
	require.NoError(t, err)
	defer closer.Close()
	defer werrors.SetZerologWarnFunc(nil)

	logger.Error("fit failed", werrors.NewValueError("Fit", "empty data"))
	out := buf.String()
	assert.Contains(t, out, `"error":"watertemp: Fit: empty data"`)
	assert.Contains(t, out, `"level":"error"`)
}

func TestSetupRotatingFile(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "watertemp.log")
	logger, closer, err := Setup(Config{Level: "info", Format: "json", Writer: &buf, File: path})
	require.NoError(t, err)
	defer werrors.SetZerologWarnFunc(nil)

	logger.Info("to both sinks")
	require.NoError(t, closer.Close())
	assert.True(t, strings.Contains(buf.String(), "to both sinks"))
	assert.FileExists(t, path)
}

func TestSetupRejectsUnknownLevel(t *testing.T) {
	_, _, err := Setup(Config{Level: "verbose"})
	var ve *werrors.ValidationError
	assert.True(t, werrors.As(err, &ve))
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "ERROR", LevelError.String())
	assert.Equal(t, "UNKNOWN", Level(99).String())

	lvl, ok := ParseLevel("warn")
	assert.True(t, ok)
	assert.Equal(t, LevelWarn, lvl)
}
