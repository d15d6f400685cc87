package model

import (
	"gonum.org/v1/gonum/mat"
)

// Regressor is a scored estimator with a continuous output.
type Regressor interface {
	Estimator
	Scorer
}

// Classifier is an estimator that exposes class probabilities. Columns of
// PredictProba follow the order of Classes.
type Classifier interface {
	Estimator
	PredictProba(X mat.Matrix) (mat.Matrix, error)
	Classes() []int
}

// Transformer is an unsupervised preprocessing step.
type Transformer interface {
	Fit(X mat.Matrix) error
	Transform(X mat.Matrix) (mat.Matrix, error)
	FitTransform(X mat.Matrix) (mat.Matrix, error)
}

// ParameterGetter exposes hyperparameters by their scikit-learn name.
type ParameterGetter interface {
	GetParams() map[string]interface{}
}

// ParameterSetter updates hyperparameters by their scikit-learn name.
// Unknown names are an error.
type ParameterSetter interface {
	SetParams(params map[string]interface{}) error
}

// Tunable is what hyperparameter search needs: an estimator that can be
// copied unfitted and reconfigured.
type Tunable interface {
	Estimator
	ParameterGetter
	ParameterSetter
	// Clone returns an unfitted copy with identical hyperparameters.
	Clone() Tunable
}

// WeightExporter is implemented by models whose learned state can be
// written to and restored from ModelWeights.
type WeightExporter interface {
	ExportWeights() (*ModelWeights, error)
	ImportWeights(weights *ModelWeights) error
}
