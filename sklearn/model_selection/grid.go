package model_selection

import (
	"sort"

	"github.com/YuminosukeSato/watertemp/pkg/errors"
)

// ParameterGrid maps hyperparameter names to the values to try.
//
//	grid := model_selection.ParameterGrid{
//	    "activation":         {"relu", "tanh"},
//	    "learning_rate_init": {0.001, 0.01},
//	}
type ParameterGrid map[string][]interface{}

// Keys returns the parameter names in sorted order.
func (g ParameterGrid) Keys() []string {
	keys := make([]string, 0, len(g))
	for k := range g {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of candidates.
func (g ParameterGrid) Len() int {
	if len(g) == 0 {
		return 0
	}
	n := 1
	for _, values := range g {
		n *= len(values)
	}
	return n
}

// Validate rejects an empty grid or a parameter without values.
func (g ParameterGrid) Validate() error {
	if len(g) == 0 {
		return errors.NewValidationError("param_grid", "must name at least one parameter", nil)
	}
	for _, k := range g.Keys() {
		if len(g[k]) == 0 {
			return errors.NewValidationError("param_grid", "parameter "+k+" has no values", g[k])
		}
	}
	return nil
}

// Candidates enumerates the cartesian product of the grid. Keys are visited
// in sorted order with the last key varying fastest.
func (g ParameterGrid) Candidates() []map[string]interface{} {
	keys := g.Keys()
	n := g.Len()
	out := make([]map[string]interface{}, 0, n)
	idx := make([]int, len(keys))
	for c := 0; c < n; c++ {
		cand := make(map[string]interface{}, len(keys))
		for i, k := range keys {
			cand[k] = g[k][idx[i]]
		}
		out = append(out, cand)

		for i := len(keys) - 1; i >= 0; i-- {
			idx[i]++
			if idx[i] < len(g[keys[i]]) {
				break
			}
			idx[i] = 0
		}
	}
	return out
}
