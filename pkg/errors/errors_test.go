package errors

import (
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewModelError(t *testing.T) {
	tests := []struct {
		name    string
		op      string
		kind    string
		err     error
		wantMsg string
	}{
		{
			name:    "with original error",
			op:      "Fit",
			kind:    "invalid input",
			err:     fmt.Errorf("test error"),
			wantMsg: "watertemp: Fit: invalid input: test error",
		},
		{
			name:    "without original error",
			op:      "Predict",
			kind:    "not fitted",
			err:     nil,
			wantMsg: "watertemp: Predict: not fitted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewModelError(tt.op, tt.kind, tt.err)
			assert.Equal(t, tt.wantMsg, err.Error())

			formatted := fmt.Sprintf("%+v", err)
			assert.True(t, strings.Contains(formatted, "errors_test.go"), "stack trace should mention the caller")

			var modelErr *ModelError
			assert.True(t, As(err, &modelErr))
		})
	}
}

func TestNewDimensionError(t *testing.T) {
	err := NewDimensionError("Predict", 4, 3, 1)
	assert.Equal(t, "watertemp: Predict: dimension mismatch on axis 1 (features). Expected 4, got 3", err.Error())

	var dimErr *DimensionError
	require.True(t, As(err, &dimErr))
	assert.Equal(t, 4, dimErr.Expected)
	assert.Equal(t, 3, dimErr.Got)
}

func TestNotFittedAndValidationErrors(t *testing.T) {
	err := NewNotFittedError("MLPRegressor", "Predict")
	assert.Contains(t, err.Error(), "MLPRegressor")
	var nf *NotFittedError
	assert.True(t, As(err, &nf))

	err = NewValidationError("activation", "unknown activation", "softsign")
	var ve *ValidationError
	require.True(t, As(err, &ve))
	assert.Equal(t, "activation", ve.ParamName)
	assert.Equal(t, "softsign", ve.Value)
}

func TestWarnRoutesToZerologSink(t *testing.T) {
	var got []error
	SetZerologWarnFunc(func(w error) { got = append(got, w) })
	defer SetZerologWarnFunc(nil)

	Warn(NewConvergenceWarning("MLPRegressor", 200, ""))
	require.Len(t, got, 1)
	assert.Contains(t, got[0].Error(), "failed to converge after 200 iterations")
}

func TestWarnFallsBackToHandler(t *testing.T) {
	var got error
	SetWarningHandler(func(w error) { got = w })
	defer SetWarningHandler(func(w error) {})

	Warn(NewUndefinedMetricWarning("r2", "constant target", 0))
	require.Error(t, got)
	assert.Contains(t, got.Error(), "'r2' is ill-defined")
}

func TestCheckScalarAndMatrix(t *testing.T) {
	assert.NoError(t, CheckScalar("loss", 1.5, 0))
	assert.Error(t, CheckScalar("loss", math.NaN(), 3))
	assert.Error(t, CheckScalar("loss", math.Inf(1), 3))

	m := [][]float64{{1, 2}, {math.Inf(-1), 4}}
	err := CheckMatrix("predict", matrixFunc(func(i, j int) float64 { return m[i][j] }), 2, 2, 0)
	var ni *NumericalInstabilityError
	require.True(t, As(err, &ni))
	assert.Len(t, ni.Values, 1)
}

type matrixFunc func(i, j int) float64

func (f matrixFunc) At(i, j int) float64 { return f(i, j) }

func TestRecoverWithPanic(t *testing.T) {
	fn := func() (err error) {
		defer Recover(&err, "TestOperation")
		panic("test panic message")
	}

	err := fn()
	require.Error(t, err)

	var panicErr *PanicError
	require.True(t, As(err, &panicErr))
	assert.Equal(t, "TestOperation", panicErr.Operation)
	assert.Equal(t, "test panic message", panicErr.PanicValue)
	assert.NotEmpty(t, panicErr.StackTrace)
	assert.Equal(t, "panic in TestOperation: test panic message", panicErr.Error())
}

func TestRecoverWithoutPanic(t *testing.T) {
	fn := func() (err error) {
		defer Recover(&err, "TestOperation")
		return nil
	}
	assert.NoError(t, fn())
}

func TestRecoverKeepsExistingError(t *testing.T) {
	original := New("original failure")
	fn := func() (err error) {
		defer Recover(&err, "TestOperation")
		err = original
		panic("late panic")
	}

	err := fn()
	require.Error(t, err)
	assert.True(t, Is(err, original))
}

func TestSafeExecute(t *testing.T) {
	err := SafeExecute("index", func() error {
		var s []int
		_ = s[3]
		return nil
	})
	var panicErr *PanicError
	assert.True(t, As(err, &panicErr))

	assert.NoError(t, SafeExecute("noop", func() error { return nil }))
}
