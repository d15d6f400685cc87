package model

import (
	"fmt"
	"math"

	"github.com/YuminosukeSato/watertemp/pkg/errors"
)

// Hyperparameter values arrive from code, YAML and JSON, so numbers may be
// any Go numeric type and sequences may be []interface{}. The helpers below
// coerce them and report a ValidationError naming the parameter otherwise.

// ParamFloat coerces v to float64.
func ParamFloat(name string, v interface{}) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case int32:
		return float64(x), nil
	}
	return 0, errors.NewValidationError(name, "must be a number", v)
}

// ParamInt coerces v to int. Floats must be integral.
func ParamInt(name string, v interface{}) (int, error) {
	switch x := v.(type) {
	case int:
		return x, nil
	case int64:
		return int(x), nil
	case int32:
		return int(x), nil
	case float64:
		if x == math.Trunc(x) {
			return int(x), nil
		}
	}
	return 0, errors.NewValidationError(name, "must be an integer", v)
}

// ParamInt64 coerces v to int64.
func ParamInt64(name string, v interface{}) (int64, error) {
	i, err := ParamInt(name, v)
	return int64(i), err
}

// ParamString asserts v is a string.
func ParamString(name string, v interface{}) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", errors.NewValidationError(name, "must be a string", v)
	}
	return s, nil
}

// ParamBool asserts v is a bool.
func ParamBool(name string, v interface{}) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, errors.NewValidationError(name, "must be a boolean", v)
	}
	return b, nil
}

// ParamIntSlice coerces a single integer or a sequence of integers to
// []int. A single integer n becomes [n], the way scikit-learn reads
// hidden_layer_sizes=(5).
func ParamIntSlice(name string, v interface{}) ([]int, error) {
	switch x := v.(type) {
	case []int:
		return append([]int(nil), x...), nil
	case []interface{}:
		out := make([]int, len(x))
		for i, e := range x {
			n, err := ParamInt(name, e)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	}
	if n, err := ParamInt(name, v); err == nil {
		return []int{n}, nil
	}
	return nil, errors.NewValidationError(name, "must be an integer or a list of integers", v)
}

// FormatParam renders a hyperparameter value the way scikit-learn prints
// it in cv_results_: strings quoted, sequences as tuples.
func FormatParam(v interface{}) string {
	switch x := v.(type) {
	case string:
		return fmt.Sprintf("'%s'", x)
	case []int:
		if len(x) == 1 {
			return fmt.Sprintf("(%d,)", x[0])
		}
		s := "("
		for i, n := range x {
			if i > 0 {
				s += ", "
			}
			s += fmt.Sprint(n)
		}
		return s + ")"
	case bool:
		if x {
			return "True"
		}
		return "False"
	case nil:
		return "None"
	}
	return fmt.Sprint(v)
}
