// Package config describes a water temperature grid search: where the data
// lives, which grid to search and where results go. Values come from the
// defaults, then a YAML file, then WATERTEMP_* environment variables
// (optionally loaded from a .env file).
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/watertemp/pkg/errors"
	"github.com/YuminosukeSato/watertemp/pkg/log"
	"github.com/YuminosukeSato/watertemp/preprocessing"
	"github.com/YuminosukeSato/watertemp/sklearn/model_selection"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "WATERTEMP_"

// Config is the full search configuration.
type Config struct {
	Data      DataConfig      `yaml:"data"`
	Grid      GridConfig      `yaml:"grid"`
	Estimator EstimatorConfig `yaml:"estimator"`
	Search    SearchConfig    `yaml:"search"`
	Output    OutputConfig    `yaml:"output"`
	Log       log.Config      `yaml:"log"`
}

// DataConfig locates the train and test CSV files. Scaler is "none" for
// pre-scaled data, or "standard" or "minmax" to scale predictors with
// statistics of the training set.
type DataConfig struct {
	Train     string `yaml:"train"`
	Test      string `yaml:"test"`
	Target    string `yaml:"target"`
	Delimiter string `yaml:"delimiter"`
	Decimal   string `yaml:"decimal"`
	Scaler    string `yaml:"scaler"`
}

// GridConfig is the hyperparameter grid of the MLP regressor.
type GridConfig struct {
	Activation       []string     `yaml:"activation"`
	HiddenLayerSizes []LayerSizes `yaml:"hidden_layer_sizes"`
	LearningRateInit []float64    `yaml:"learning_rate_init"`
}

// LayerSizes is one hidden_layer_sizes entry. A bare integer stays a
// scalar so the results report 5, not (5,).
type LayerSizes struct {
	Sizes  []int
	Scalar bool
}

// UnmarshalYAML accepts an integer or a list of integers.
func (l *LayerSizes) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var n int
	if err := unmarshal(&n); err == nil {
		l.Sizes, l.Scalar = []int{n}, true
		return nil
	}
	var sizes []int
	if err := unmarshal(&sizes); err != nil {
		return err
	}
	l.Sizes, l.Scalar = sizes, false
	return nil
}

func (l LayerSizes) value() interface{} {
	if l.Scalar && len(l.Sizes) == 1 {
		return l.Sizes[0]
	}
	return append([]int(nil), l.Sizes...)
}

// EstimatorConfig holds the MLP parameters fixed across the grid.
type EstimatorConfig struct {
	RandomState   int64   `yaml:"random_state"`
	Solver        string  `yaml:"solver"`
	MaxIter       int     `yaml:"max_iter"`
	Tol           float64 `yaml:"tol"`
	EarlyStopping bool    `yaml:"early_stopping"`
}

// SearchConfig configures the cross-validation.
type SearchConfig struct {
	CV               int    `yaml:"cv"`
	NJobs            int    `yaml:"n_jobs"`
	Scoring          string `yaml:"scoring"`
	Verbose          int    `yaml:"verbose"`
	ReturnTrainScore bool   `yaml:"return_train_score"`
}

// OutputConfig says where results are written. Empty optional paths
// disable that output.
type OutputConfig struct {
	Results  string `yaml:"results"`
	Model    string `yaml:"model"`
	PlotDir  string `yaml:"plot_dir"`
	Database string `yaml:"database"`
	Explain  bool   `yaml:"explain"`
}

// Default returns the configuration of the original water temperature
// search.
func Default() *Config {
	return &Config{
		Data: DataConfig{
			Train:     "data/cleaned/water_temp_data_scaled_train.csv",
			Test:      "data/cleaned/water_temp_data_scaled_test.csv",
			Target:    "WATERTEMP",
			Delimiter: ",",
			Decimal:   ".",
			Scaler:    "none",
		},
		Grid: GridConfig{
			Activation:       []string{"relu", "tanh", "logistic"},
			HiddenLayerSizes: []LayerSizes{
				{Sizes: []int{5}, Scalar: true},
				{Sizes: []int{7, 5}},
				{Sizes: []int{9, 7, 5}},
				{Sizes: []int{9, 9, 7, 7}},
				{Sizes: []int{15, 9, 9, 7}},
			},
			LearningRateInit: []float64{0.0005, 0.001, 0.01},
		},
		Estimator: EstimatorConfig{
			RandomState: 2912,
			Solver:      "adam",
			MaxIter:     10000,
			Tol:         1e-5,
		},
		Search: SearchConfig{
			CV:      5,
			NJobs:   -1,
			Scoring: "neg_root_mean_squared_error",
			Verbose: 3,
		},
		Output: OutputConfig{
			Results: "tmp/mlp_sklearn_results.csv",
		},
		Log: log.Config{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads the YAML file at path over the defaults and applies the
// environment. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
		if err := yaml.UnmarshalStrict(raw, cfg); err != nil {
			return nil, errors.Wrapf(err, "parse config %s", path)
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv loads variables from the given .env files (".env" when none
// are named) without overriding the existing environment. Missing files
// are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return errors.Wrapf(err, "load %s", f)
		}
	}
	return nil
}

// ApplyEnv overrides paths, the target, n_jobs and the log level from
// WATERTEMP_* variables.
func (c *Config) ApplyEnv() error {
	strs := map[string]*string{
		"TRAIN":      &c.Data.Train,
		"TEST":       &c.Data.Test,
		"TARGET":     &c.Data.Target,
		"OUTPUT":     &c.Output.Results,
		"MODEL":      &c.Output.Model,
		"PLOT_DIR":   &c.Output.PlotDir,
		"DATABASE":   &c.Output.Database,
		"LOG_LEVEL":  &c.Log.Level,
		"LOG_FORMAT": &c.Log.Format,
		"LOG_FILE":   &c.Log.File,
	}
	for name, dst := range strs {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok {
			*dst = v
		}
	}
	if v, ok := os.LookupEnv(EnvPrefix + "N_JOBS"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return errors.NewValidationError(EnvPrefix+"N_JOBS", "must be an integer", v)
		}
		c.Search.NJobs = n
	}
	return nil
}

// Validate checks the configuration before any data is read.
func (c *Config) Validate() error {
	switch {
	case c.Data.Train == "":
		return errors.NewValidationError("data.train", "must not be empty", c.Data.Train)
	case c.Data.Test == "":
		return errors.NewValidationError("data.test", "must not be empty", c.Data.Test)
	case c.Data.Target == "":
		return errors.NewValidationError("data.target", "must not be empty", c.Data.Target)
	case len([]rune(c.Data.Delimiter)) != 1:
		return errors.NewValidationError("data.delimiter", "must be a single character", c.Data.Delimiter)
	case len([]rune(c.Data.Decimal)) != 1:
		return errors.NewValidationError("data.decimal", "must be a single character", c.Data.Decimal)
	case c.Output.Results == "":
		return errors.NewValidationError("output.results", "must not be empty", c.Output.Results)
	case c.Search.CV < 2:
		return errors.NewValidationError("search.cv", "must be at least 2", c.Search.CV)
	case c.Search.NJobs == 0:
		return errors.NewValidationError("search.n_jobs", "must be positive or -1", c.Search.NJobs)
	case c.Estimator.MaxIter < 1:
		return errors.NewValidationError("estimator.max_iter", "must be positive", c.Estimator.MaxIter)
	case c.Estimator.Tol < 0:
		return errors.NewValidationError("estimator.tol", "must be >= 0", c.Estimator.Tol)
	}
	for _, layers := range c.Grid.HiddenLayerSizes {
		sizes := layers.Sizes
		if len(sizes) == 0 {
			return errors.NewValidationError("grid.hidden_layer_sizes", "layers must not be empty", sizes)
		}
		for _, n := range sizes {
			if n < 1 {
				return errors.NewValidationError("grid.hidden_layer_sizes", "layer sizes must be positive", sizes)
			}
		}
	}
	if _, err := preprocessing.NewScaler(c.Data.Scaler); err != nil {
		return err
	}
	if _, ok := log.ParseLevel(c.Log.Level); !ok {
		return errors.NewValidationError("log.level", "unknown level", c.Log.Level)
	}
	return c.ParameterGrid().Validate()
}

// ParameterGrid returns the grid searched over. Empty lists are left out
// so the estimator keeps its fixed value.
func (c *Config) ParameterGrid() model_selection.ParameterGrid {
	grid := model_selection.ParameterGrid{}
	if len(c.Grid.Activation) > 0 {
		values := make([]interface{}, len(c.Grid.Activation))
		for i, a := range c.Grid.Activation {
			values[i] = a
		}
		grid["activation"] = values
	}
	if len(c.Grid.HiddenLayerSizes) > 0 {
		values := make([]interface{}, len(c.Grid.HiddenLayerSizes))
		for i, sizes := range c.Grid.HiddenLayerSizes {
			values[i] = sizes.value()
		}
		grid["hidden_layer_sizes"] = values
	}
	if len(c.Grid.LearningRateInit) > 0 {
		values := make([]interface{}, len(c.Grid.LearningRateInit))
		for i, lr := range c.Grid.LearningRateInit {
			values[i] = lr
		}
		grid["learning_rate_init"] = values
	}
	return grid
}

// EstimatorParams returns the fixed MLP parameters in SetParams form.
func (c *Config) EstimatorParams() map[string]interface{} {
	return map[string]interface{}{
		"random_state":   c.Estimator.RandomState,
		"solver":         c.Estimator.Solver,
		"max_iter":       c.Estimator.MaxIter,
		"tol":            c.Estimator.Tol,
		"early_stopping": c.Estimator.EarlyStopping,
	}
}

// Delimiter returns the CSV delimiter rune.
func (c *Config) Delimiter() rune {
	return []rune(c.Data.Delimiter)[0]
}

// Decimal returns the decimal separator rune.
func (c *Config) Decimal() rune {
	return []rune(c.Data.Decimal)[0]
}
