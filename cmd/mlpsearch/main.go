// Command mlpsearch grid-searches MLP regressors that predict river water
// temperature, exports the cross-validation table and reports the RMSE of
// the refitted best model on the train and test sets.
//
//	mlpsearch -config search.yaml -target WATERTEMP -out tmp/results.csv
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/YuminosukeSato/watertemp/config"
	"github.com/YuminosukeSato/watertemp/core/model"
	"github.com/YuminosukeSato/watertemp/dataset"
	"github.com/YuminosukeSato/watertemp/explain/lime"
	"github.com/YuminosukeSato/watertemp/metrics"
	"github.com/YuminosukeSato/watertemp/pkg/errors"
	"github.com/YuminosukeSato/watertemp/pkg/log"
	"github.com/YuminosukeSato/watertemp/preprocessing"
	"github.com/YuminosukeSato/watertemp/report"
	"github.com/YuminosukeSato/watertemp/sklearn/model_selection"
	"github.com/YuminosukeSato/watertemp/sklearn/neural_network"
	"github.com/YuminosukeSato/watertemp/store"
	"gonum.org/v1/gonum/mat"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "mlpsearch: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("mlpsearch", flag.ContinueOnError)
	configPath := fs.String("config", "", "YAML search configuration")
	envFile := fs.String("env", ".env", "dotenv file with WATERTEMP_* overrides")
	train := fs.String("train", "", "training CSV (overrides config)")
	test := fs.String("test", "", "test CSV (overrides config)")
	target := fs.String("target", "", "target column (overrides config)")
	out := fs.String("out", "", "results CSV (overrides config)")
	logLevel := fs.String("log-level", "", "debug, info, warn or error (overrides config)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := config.LoadDotEnv(*envFile); err != nil {
		return err
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	override(&cfg.Data.Train, *train)
	override(&cfg.Data.Test, *test)
	override(&cfg.Data.Target, *target)
	override(&cfg.Output.Results, *out)
	override(&cfg.Log.Level, *logLevel)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, closer, err := log.Setup(cfg.Log)
	if err != nil {
		return err
	}
	defer closer.Close()

	XTrain, yTrain, features, err := load(cfg, cfg.Data.Train, logger)
	if err != nil {
		return err
	}
	XTest, yTest, _, err := load(cfg, cfg.Data.Test, logger)
	if err != nil {
		return err
	}
	if _, c := XTest.Dims(); c != len(features) {
		return errors.NewDimensionError("mlpsearch", len(features), c, 1)
	}
	if XTrain, XTest, err = scale(cfg.Data.Scaler, XTrain, XTest); err != nil {
		return err
	}

	mlp := neural_network.NewMLPRegressor()
	if err := mlp.SetParams(cfg.EstimatorParams()); err != nil {
		return err
	}
	search := model_selection.NewGridSearchCV(mlp, cfg.ParameterGrid(),
		model_selection.WithScoring(cfg.Search.Scoring),
		model_selection.WithCV(cfg.Search.CV),
		model_selection.WithNJobs(cfg.Search.NJobs),
		model_selection.WithRefit(true),
		model_selection.WithVerbose(cfg.Search.Verbose),
		model_selection.WithReturnTrainScore(cfg.Search.ReturnTrainScore),
	)
	if err := search.Fit(ctx, XTrain, yTrain); err != nil {
		return errors.Wrap(err, "grid search")
	}

	if err := writeResults(cfg.Output.Results, search.CVResults()); err != nil {
		return err
	}
	logger.Info("Results exported", log.PathKey, cfg.Output.Results)

	best := search.BestEstimator()
	predTrain, err := best.Predict(XTrain)
	if err != nil {
		return err
	}
	predTest, err := best.Predict(XTest)
	if err != nil {
		return err
	}
	rmseTrain, err := metrics.RMSEMatrix(yTrain, predTrain)
	if err != nil {
		return err
	}
	rmseTest, err := metrics.RMSEMatrix(yTest, predTest)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, "RMSE (train) = ", rmseTrain)
	fmt.Fprintln(stdout, "RMSE (test) = ", rmseTest)

	if cfg.Output.Model != "" {
		exporter, ok := best.(model.WeightExporter)
		if !ok {
			return errors.NewValueError("mlpsearch", "best estimator cannot export weights")
		}
		if err := model.SaveWeights(exporter, cfg.Output.Model); err != nil {
			return err
		}
		logger.Info("Best model saved", log.PathKey, cfg.Output.Model)
	}

	if cfg.Output.PlotDir != "" {
		if err := plots(cfg.Output.PlotDir, best, yTest, predTest); err != nil {
			return err
		}
	}

	if cfg.Output.Database != "" {
		db, err := store.Open(cfg.Output.Database)
		if err != nil {
			return err
		}
		defer db.Close()
		if _, err := db.SaveSearch(ctx, store.Run{
			Target:     cfg.Data.Target,
			Scoring:    cfg.Search.Scoring,
			BestParams: search.BestParams(),
			BestScore:  search.BestScore(),
			RMSETrain:  rmseTrain,
			RMSETest:   rmseTest,
		}, search.CVResults()); err != nil {
			return err
		}
	}

	if cfg.Output.Explain {
		if err := explain(stdout, cfg, XTrain, XTest, features, best.Predict); err != nil {
			return err
		}
	}
	return nil
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// load reads one CSV and splits it into predictors and target.
func load(cfg *config.Config, path string, logger log.Logger) (*mat.Dense, *mat.VecDense, []string, error) {
	frame, err := dataset.LoadCSV(path,
		dataset.WithDelimiter(cfg.Delimiter()),
		dataset.WithDecimal(cfg.Decimal()),
	)
	if err != nil {
		return nil, nil, nil, err
	}
	rows, cols := frame.Dims()
	logger.Info("Data loaded",
		log.PathKey, path,
		log.SamplesKey, rows,
		log.FeaturesKey, cols-1,
	)
	if logger.Enabled(context.Background(), log.LevelDebug) {
		logger.Debug("Head\n" + frame.Head(5).String())
		for _, s := range frame.Describe() {
			logger.Debug("Column summary",
				"column", s.Name,
				"mean", s.Mean,
				"std", s.Std,
				"min", s.Min,
				"max", s.Max,
			)
		}
	}
	return frame.Split(cfg.Data.Target)
}

// scale fits the named scaler on the training predictors and applies it to
// both sets.
func scale(name string, XTrain, XTest *mat.Dense) (*mat.Dense, *mat.Dense, error) {
	scaler, err := preprocessing.NewScaler(name)
	if err != nil || scaler == nil {
		return XTrain, XTest, err
	}
	train, err := scaler.FitTransform(XTrain)
	if err != nil {
		return nil, nil, err
	}
	test, err := scaler.Transform(XTest)
	if err != nil {
		return nil, nil, err
	}
	return mat.DenseCopyOf(train), mat.DenseCopyOf(test), nil
}

func writeResults(path string, results *model_selection.CVResults) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "create %s", dir)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	if err := results.WriteCSV(f, ';'); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// lossCurver is implemented by estimators that record their training loss.
type lossCurver interface {
	LossCurve() []float64
}

func plots(dir string, best interface{}, yTest *mat.VecDense, predTest mat.Matrix) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create %s", dir)
	}
	pred, err := metrics.ColumnVector("mlpsearch", predTest)
	if err != nil {
		return err
	}
	if err := report.PlotPredictions(yTest, pred, filepath.Join(dir, "predictions_test.png")); err != nil {
		return err
	}
	if lc, ok := best.(lossCurver); ok {
		return report.PlotLossCurve(lc.LossCurve(), filepath.Join(dir, "loss_curve.png"))
	}
	return nil
}

// explain prints the LIME explanation of the best model on the first test
// row.
func explain(stdout io.Writer, cfg *config.Config, XTrain, XTest *mat.Dense, features []string,
	predict lime.PredictFunc) error {
	explainer, err := lime.NewTabularExplainer(XTrain,
		lime.WithMode(lime.ModeRegression),
		lime.WithFeatureNames(features),
		lime.WithRandomState(cfg.Estimator.RandomState),
	)
	if err != nil {
		return err
	}
	exp, err := explainer.ExplainInstance(mat.Row(nil, 0, XTest), predict)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout)
	fmt.Fprint(stdout, exp.String())
	if cfg.Output.PlotDir != "" {
		return report.PlotExplanation(exp, 0, filepath.Join(cfg.Output.PlotDir, "explanation_test0.png"))
	}
	return nil
}
