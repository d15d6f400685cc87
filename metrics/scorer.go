package metrics

import (
	"sort"

	"github.com/YuminosukeSato/watertemp/core/model"
	"github.com/YuminosukeSato/watertemp/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Scorer evaluates a fitted estimator on (X, y). Greater is always better,
// so error metrics are negated ("neg_root_mean_squared_error").
type Scorer func(est model.Predictor, X, y mat.Matrix) (float64, error)

type errorMetric func(yTrue, yPred *mat.VecDense) (float64, error)

func predictAndScore(op string, metric errorMetric, sign float64) Scorer {
	return func(est model.Predictor, X, y mat.Matrix) (float64, error) {
		pred, err := est.Predict(X)
		if err != nil {
			return 0, err
		}
		yTrue, err := ColumnVector(op, y)
		if err != nil {
			return 0, err
		}
		yPred, err := ColumnVector(op, pred)
		if err != nil {
			return 0, err
		}
		v, err := metric(yTrue, yPred)
		if err != nil {
			return 0, err
		}
		return sign * v, nil
	}
}

var scorers = map[string]Scorer{
	"neg_root_mean_squared_error": predictAndScore("neg_root_mean_squared_error", RMSE, -1),
	"neg_mean_squared_error":      predictAndScore("neg_mean_squared_error", MSE, -1),
	"neg_mean_absolute_error":     predictAndScore("neg_mean_absolute_error", MAE, -1),
	"r2":                          predictAndScore("r2", R2Score, 1),
	"explained_variance":          predictAndScore("explained_variance", ExplainedVarianceScore, 1),
	"accuracy":                    predictAndScore("accuracy", Accuracy, 1),

	// scikit-learn reports MAPE as a fraction.
	"neg_mean_absolute_percentage_error": predictAndScore("neg_mean_absolute_percentage_error",
		func(yTrue, yPred *mat.VecDense) (float64, error) {
			v, err := MAPE(yTrue, yPred)
			return v / 100, err
		}, -1),
}

// GetScorer returns the scorer registered under name.
func GetScorer(name string) (Scorer, error) {
	s, ok := scorers[name]
	if !ok {
		return nil, errors.NewValidationError("scoring", "unknown scorer", name)
	}
	return s, nil
}

// ScorerNames lists the registered scorer names in sorted order.
func ScorerNames() []string {
	names := make([]string, 0, len(scorers))
	for n := range scorers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// EstimatorScorer uses the estimator's own Score method.
func EstimatorScorer(est model.Predictor, X, y mat.Matrix) (float64, error) {
	s, ok := est.(model.Scorer)
	if !ok {
		return 0, errors.NewValueError("EstimatorScorer", "estimator has no Score method; pass an explicit scoring")
	}
	return s.Score(X, y)
}
