package model_selection

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/YuminosukeSato/watertemp/core/model"
	"github.com/YuminosukeSato/watertemp/core/parallel"
	"github.com/YuminosukeSato/watertemp/metrics"
	"github.com/YuminosukeSato/watertemp/pkg/errors"
	"github.com/YuminosukeSato/watertemp/pkg/log"
	"gonum.org/v1/gonum/mat"
)

// GridSearchCV evaluates every candidate of a ParameterGrid with
// cross-validation and optionally refits the best one on all data.
type GridSearchCV struct {
	state *model.StateManager // State management (composition)

	// Configuration
	estimator        model.Tunable
	grid             ParameterGrid
	scoring          string   // Scorer name, "" for the estimator's Score
	cv               Splitter // Defaults to 5-fold KFold
	nJobs            int      // Parallel fits, -1 for all CPUs
	refit            bool     // Refit the best candidate on all data
	verbose          int      // 1: summary, 2+: one line per fit
	returnTrainScore bool     // Also score the training folds
	errorScore       float64  // Score recorded for a failed fit
	raiseOnError     bool     // Abort the search on the first failed fit

	// Results
	cvResults_     *CVResults
	bestIndex_     int
	bestScore_     float64
	bestParams_    map[string]interface{}
	bestEstimator_ model.Tunable
	refitTime_     float64

	logger log.Logger
}

// SearchOption configures a GridSearchCV.
type SearchOption func(*GridSearchCV)

// NewGridSearchCV creates a grid search over grid for estimator.
//
//	gs := model_selection.NewGridSearchCV(mlp, grid,
//	    model_selection.WithScoring("neg_root_mean_squared_error"),
//	    model_selection.WithNJobs(-1),
//	)
//	err := gs.Fit(ctx, XTrain, yTrain)
func NewGridSearchCV(estimator model.Tunable, grid ParameterGrid, opts ...SearchOption) *GridSearchCV {
	gs := &GridSearchCV{
		state:      model.NewStateManager(),
		estimator:  estimator,
		grid:       grid,
		cv:         NewKFold(5, false, 0),
		nJobs:      1,
		refit:      true,
		errorScore: math.NaN(),
		bestIndex_: -1,
		logger:     log.GetLoggerWithName("GridSearchCV"),
	}
	for _, opt := range opts {
		opt(gs)
	}
	return gs
}

// WithScoring selects a registered scorer by name.
func WithScoring(name string) SearchOption {
	return func(gs *GridSearchCV) {
		gs.scoring = name
	}
}

// WithCV uses an unshuffled KFold with n folds.
func WithCV(n int) SearchOption {
	return func(gs *GridSearchCV) {
		gs.cv = NewKFold(n, false, 0)
	}
}

// WithSplitter uses a custom cross-validation splitter.
func WithSplitter(s Splitter) SearchOption {
	return func(gs *GridSearchCV) {
		gs.cv = s
	}
}

// WithNJobs sets the number of concurrent fits.
func WithNJobs(n int) SearchOption {
	return func(gs *GridSearchCV) {
		gs.nJobs = n
	}
}

// WithRefit toggles refitting the best candidate on the full data.
func WithRefit(refit bool) SearchOption {
	return func(gs *GridSearchCV) {
		gs.refit = refit
	}
}

// WithVerbose sets the verbosity level.
func WithVerbose(level int) SearchOption {
	return func(gs *GridSearchCV) {
		gs.verbose = level
	}
}

// WithReturnTrainScore records training-fold scores as well.
func WithReturnTrainScore(v bool) SearchOption {
	return func(gs *GridSearchCV) {
		gs.returnTrainScore = v
	}
}

// WithErrorScore sets the score assigned to a failed fit.
func WithErrorScore(v float64) SearchOption {
	return func(gs *GridSearchCV) {
		gs.errorScore = v
		gs.raiseOnError = false
	}
}

// WithErrorRaise makes the first failed fit abort the search.
func WithErrorRaise() SearchOption {
	return func(gs *GridSearchCV) {
		gs.raiseOnError = true
	}
}

// WithLogger replaces the logger.
func WithLogger(logger log.Logger) SearchOption {
	return func(gs *GridSearchCV) {
		gs.logger = logger
	}
}

// fitResult is the outcome of one (candidate, fold) fit.
type fitResult struct {
	testScore  float64
	trainScore float64
	fitTime    float64
	scoreTime  float64
	err        error
}

func (gs *GridSearchCV) scorer() (metrics.Scorer, error) {
	if gs.scoring == "" {
		return metrics.EstimatorScorer, nil
	}
	return metrics.GetScorer(gs.scoring)
}

// Fit runs the search. Fits are spread over n_jobs workers; cancelling ctx
// stops the pending ones and returns the context error.
func (gs *GridSearchCV) Fit(ctx context.Context, X, y mat.Matrix) error {
	if gs.estimator == nil {
		return errors.NewValidationError("estimator", "must not be nil", nil)
	}
	if err := gs.grid.Validate(); err != nil {
		return err
	}
	scorer, err := gs.scorer()
	if err != nil {
		return err
	}
	nSamples, nFeatures := X.Dims()
	if yRows, _ := y.Dims(); yRows != nSamples {
		return errors.NewDimensionError("GridSearchCV.Fit", nSamples, yRows, 0)
	}
	folds, err := gs.cv.Split(X, y)
	if err != nil {
		return err
	}
	candidates := gs.grid.Candidates()
	for _, cand := range candidates {
		if err := gs.estimator.Clone().SetParams(cand); err != nil {
			return err
		}
	}

	nFolds := len(folds)
	nFits := len(candidates) * nFolds
	if gs.verbose > 0 {
		gs.logger.Info(fmt.Sprintf("Fitting %d folds for each of %d candidates, totalling %d fits",
			nFolds, len(candidates), nFits),
			log.OperationKey, log.OperationSearch,
			log.CandidatesKey, len(candidates),
			log.FoldsKey, nFolds,
			log.JobsKey, parallel.EffectiveJobs(gs.nJobs, nFits),
		)
	}

	trainX := make([]*mat.Dense, nFolds)
	trainY := make([]*mat.Dense, nFolds)
	testX := make([]*mat.Dense, nFolds)
	testY := make([]*mat.Dense, nFolds)
	for f, fold := range folds {
		trainX[f], trainY[f] = Rows(X, fold.TrainIndices), Rows(y, fold.TrainIndices)
		testX[f], testY[f] = Rows(X, fold.TestIndices), Rows(y, fold.TestIndices)
	}

	results := make([]fitResult, nFits)
	err = parallel.Run(ctx, gs.nJobs, nFits, func(ctx context.Context, t int) error {
		c, f := t/nFolds, t%nFolds
		res := gs.fitAndScore(ctx, scorer, candidates[c], trainX[f], trainY[f], testX[f], testY[f])
		if res.err != nil {
			if gs.raiseOnError || ctx.Err() != nil {
				return errors.Wrapf(res.err, "candidate %d fold %d", c, f)
			}
			gs.logger.Warn("Fit failed; recording error_score",
				&errors.FitFailedWarning{Candidate: c, Fold: f, Err: res.err},
				log.CandidateKey, c,
				log.FoldKey, f,
				log.ParamsKey, formatCandidate(candidates[c], false),
			)
			res.testScore = gs.errorScore
			res.trainScore = gs.errorScore
		}
		results[t] = res
		if gs.verbose > 1 {
			gs.logger.Info(gs.endLine(f, nFolds, candidates[c], res),
				log.CandidateKey, c,
				log.FoldKey, f,
			)
		}
		return nil
	})
	if err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		if r.err != nil {
			failed++
		}
	}
	if failed == nFits {
		return errors.Wrapf(results[0].err, "all the %d fits failed", nFits)
	}

	gs.cvResults_ = newCVResults(gs.grid.Keys(), candidates, nFolds, results, gs.returnTrainScore)
	gs.bestIndex_ = gs.cvResults_.BestIndex()
	gs.bestScore_ = gs.cvResults_.MeanTestScore[gs.bestIndex_]
	gs.bestParams_ = candidates[gs.bestIndex_]

	if gs.refit {
		best := gs.estimator.Clone()
		if err := best.SetParams(gs.bestParams_); err != nil {
			return err
		}
		start := time.Now()
		if err := fitWithContext(ctx, best, X, y); err != nil {
			return errors.Wrap(err, "refit best estimator")
		}
		gs.refitTime_ = time.Since(start).Seconds()
		gs.bestEstimator_ = best
	}

	gs.state.SetDimensions(nFeatures, nSamples)
	gs.state.SetFitted()
	gs.logger.Info("Grid search finished",
		log.OperationKey, log.OperationSearch,
		log.CandidatesKey, len(candidates),
		log.ScoreKey, gs.bestScore_,
		log.ParamsKey, formatCandidate(gs.bestParams_, false),
	)
	return nil
}

func fitWithContext(ctx context.Context, est model.Estimator, X, y mat.Matrix) error {
	if cf, ok := est.(model.ContextFitter); ok {
		return cf.FitContext(ctx, X, y)
	}
	return est.Fit(X, y)
}

// fitAndScore fits one clone and scores it. A panic inside the estimator
// is returned as a PanicError in the result.
func (gs *GridSearchCV) fitAndScore(ctx context.Context, scorer metrics.Scorer, params map[string]interface{},
	Xtr, ytr, Xte, yte *mat.Dense) (res fitResult) {
	defer errors.Recover(&res.err, "GridSearchCV.fitAndScore")

	est := gs.estimator.Clone()
	if err := est.SetParams(params); err != nil {
		res.err = err
		return res
	}
	start := time.Now()
	if err := fitWithContext(ctx, est, Xtr, ytr); err != nil {
		res.fitTime = time.Since(start).Seconds()
		res.err = err
		return res
	}
	res.fitTime = time.Since(start).Seconds()

	start = time.Now()
	score, err := scorer(est, Xte, yte)
	if err != nil {
		res.err = err
		return res
	}
	res.testScore = score
	res.scoreTime = time.Since(start).Seconds()

	if gs.returnTrainScore {
		score, err = scorer(est, Xtr, ytr)
		if err != nil {
			res.err = err
			return res
		}
		res.trainScore = score
	}
	return res
}

// endLine renders the per-fit progress line.
func (gs *GridSearchCV) endLine(fold, nFolds int, params map[string]interface{}, res fitResult) string {
	score := fmt.Sprintf("score=%.3f", res.testScore)
	if gs.returnTrainScore {
		score = fmt.Sprintf("score=(train=%.3f, test=%.3f)", res.trainScore, res.testScore)
	}
	return fmt.Sprintf("[CV %d/%d] END %s; %s total time=%6.1fs",
		fold+1, nFolds, formatCandidate(params, false), score, res.fitTime+res.scoreTime)
}

// formatCandidate renders params in sorted key order, either as
// "a=1, b='x'" or as a Python-style dict.
func formatCandidate(params map[string]interface{}, asDict bool) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		if asDict {
			parts[i] = fmt.Sprintf("'%s': %s", k, model.FormatParam(params[k]))
		} else {
			v := params[k]
			if s, ok := v.(string); ok {
				parts[i] = k + "=" + s
			} else {
				parts[i] = k + "=" + model.FormatParam(v)
			}
		}
	}
	if asDict {
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return strings.Join(parts, ", ")
}

// CVResults returns the per-candidate results of the last Fit.
func (gs *GridSearchCV) CVResults() *CVResults {
	return gs.cvResults_
}

// BestIndex returns the index of the best candidate.
func (gs *GridSearchCV) BestIndex() int {
	return gs.bestIndex_
}

// BestScore returns the mean cross-validated score of the best candidate.
func (gs *GridSearchCV) BestScore() float64 {
	return gs.bestScore_
}

// BestParams returns the hyperparameters of the best candidate.
func (gs *GridSearchCV) BestParams() map[string]interface{} {
	out := make(map[string]interface{}, len(gs.bestParams_))
	for k, v := range gs.bestParams_ {
		out[k] = v
	}
	return out
}

// BestEstimator returns the refitted best estimator, or nil when refit is
// disabled.
func (gs *GridSearchCV) BestEstimator() model.Tunable {
	return gs.bestEstimator_
}

// RefitTime returns the seconds spent refitting the best estimator.
func (gs *GridSearchCV) RefitTime() float64 {
	return gs.refitTime_
}

// IsFitted reports whether Fit has completed.
func (gs *GridSearchCV) IsFitted() bool {
	return gs.state.IsFitted()
}

func (gs *GridSearchCV) requireBest(method string) error {
	if err := gs.state.RequireFitted("GridSearchCV", method); err != nil {
		return err
	}
	if gs.bestEstimator_ == nil {
		return errors.NewValueError("GridSearchCV."+method, "not available with refit=false")
	}
	return nil
}

// Predict uses the refitted best estimator.
func (gs *GridSearchCV) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := gs.requireBest("Predict"); err != nil {
		return nil, err
	}
	return gs.bestEstimator_.Predict(X)
}

// Score evaluates the refitted best estimator with the search's scorer.
func (gs *GridSearchCV) Score(X, y mat.Matrix) (float64, error) {
	if err := gs.requireBest("Score"); err != nil {
		return 0, err
	}
	scorer, err := gs.scorer()
	if err != nil {
		return 0, err
	}
	return scorer(gs.bestEstimator_, X, y)
}
