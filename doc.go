// Package watertemp trains multilayer-perceptron regressors that predict
// river water temperature and explains tabular models with LIME.
//
// The library follows scikit-learn's API: estimators are configured with
// functional options, expose GetParams/SetParams/Clone for hyperparameter
// search, and return explicit errors from Fit, Predict and Score.
//
// # Quick Start
//
// Grid-search an MLP on a pre-scaled CSV:
//
//	package main
//
//	import (
//	    "context"
//	    "fmt"
//	    "log"
//
//	    "github.com/YuminosukeSato/watertemp/dataset"
//	    "github.com/YuminosukeSato/watertemp/sklearn/model_selection"
//	    "github.com/YuminosukeSato/watertemp/sklearn/neural_network"
//	)
//
//	func main() {
//	    frame, err := dataset.LoadCSV("data/cleaned/water_temp_data_scaled_train.csv")
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    X, y, _, err := frame.Split("WATERTEMP")
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    mlp := neural_network.NewMLPRegressor(
//	        neural_network.WithRandomState(2912),
//	        neural_network.WithMaxIter(10000),
//	        neural_network.WithTol(1e-5),
//	    )
//	    search := model_selection.NewGridSearchCV(mlp, model_selection.ParameterGrid{
//	        "activation":         {"relu", "tanh", "logistic"},
//	        "hidden_layer_sizes": {[]int{5}, []int{7, 5}},
//	        "learning_rate_init": {0.001, 0.01},
//	    },
//	        model_selection.WithScoring("neg_root_mean_squared_error"),
//	        model_selection.WithCV(5),
//	        model_selection.WithNJobs(-1),
//	    )
//	    if err := search.Fit(context.Background(), X, y); err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Println(search.BestParams(), search.BestScore())
//	}
//
// # Packages
//
//   - dataset: CSV loading, data summaries and the bundled iris data
//   - metrics: regression and classification metrics, named scorers
//   - preprocessing: StandardScaler and MinMaxScaler
//   - sklearn/neural_network: MLPRegressor (adam and sgd solvers)
//   - sklearn/tree, sklearn/ensemble: decision trees and random forests
//   - sklearn/linear_model: weighted ridge regression
//   - sklearn/model_selection: KFold, StratifiedKFold, TrainTestSplit, GridSearchCV
//   - explain/lime: LIME explanations for tabular models
//   - report: prediction, loss curve and explanation plots
//   - store: SQLite history of grid-search runs
//   - config: YAML, dotenv and environment configuration of a search
//   - core/model, core/parallel, core/stats: shared interfaces and helpers
//   - pkg/errors, pkg/log: structured errors and logging
//
// The cmd/mlpsearch and cmd/limeiris programs wire these together.
package watertemp
