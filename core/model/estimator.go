// Package model defines the contracts shared by every estimator: fitting,
// predicting, scoring, hyperparameter access and weight export.
package model

import (
	"context"

	"gonum.org/v1/gonum/mat"
)

// Fitter is a model that can learn from X (n_samples × n_features) and a
// column target y (n_samples × 1).
type Fitter interface {
	Fit(X, y mat.Matrix) error
}

// Predictor is a model that produces one row of output per input row.
type Predictor interface {
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Estimator is a supervised model.
type Estimator interface {
	Fitter
	Predictor
}

// Scorer is an estimator with a default score (R² for regressors, accuracy
// for classifiers). Greater is better.
type Scorer interface {
	Score(X, y mat.Matrix) (float64, error)
}

// ContextFitter is implemented by estimators whose training loop can be
// cancelled. Model selection prefers FitContext over Fit when available.
type ContextFitter interface {
	FitContext(ctx context.Context, X, y mat.Matrix) error
}
