// Standard attribute keys. They follow a dotted hierarchy ("model.name",
// "data.samples") so log records from different estimators can be filtered
// the same way.

package log

// Model and operation context.
const (
	// ModelNameKey identifies the estimator type, e.g. "MLPRegressor".
	ModelNameKey = "model.name"

	// OperationKey is the operation being performed: "fit", "predict", ...
	OperationKey = "ml.operation"

	// ComponentKey identifies the package doing the work.
	ComponentKey = "ml.component"

	// PhaseKey is the lifecycle phase: "training", "validation", ...
	PhaseKey = "ml.phase"
)

// Data shape.
const (
	SamplesKey   = "data.samples"
	FeaturesKey  = "data.features"
	TargetKey    = "data.target"
	PathKey      = "data.path"
	BatchSizeKey = "data.batch_size"
)

// Performance and training progress.
const (
	DurationMsKey = "perf.duration_ms"
	LossKey       = "metrics.loss"
	ScoreKey      = "metrics.score"
	RMSEKey       = "metrics.rmse"
	AccuracyKey   = "metrics.accuracy"
	R2ScoreKey    = "metrics.r2_score"
	IterationKey  = "training.iteration"
	EpochKey      = "training.epoch"
)

// Cross-validation.
const (
	CandidateKey  = "cv.candidate"
	FoldKey       = "cv.fold"
	CandidatesKey = "cv.candidates"
	FoldsKey      = "cv.folds"
	JobsKey       = "cv.n_jobs"
	ParamsKey     = "cv.params"
)

// Errors and hyperparameters.
const (
	ErrorTypeKey    = "error.type"
	StacktraceKey   = "error.stacktrace"
	LearningRateKey = "hyperparams.learning_rate"
	RandomSeedKey   = "config.random_seed"
)

// Standard values.
const (
	OperationFit     = "fit"
	OperationPredict = "predict"
	OperationScore   = "score"
	OperationExplain = "explain"
	OperationSearch  = "search"

	PhaseTraining   = "training"
	PhaseValidation = "validation"
	PhaseTesting    = "testing"
)
