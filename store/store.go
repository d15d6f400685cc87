// Package store persists grid-search runs in a SQLite database so that
// searches over different targets and grids can be compared later.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"math"
	"time"

	"github.com/YuminosukeSato/watertemp/pkg/errors"
	"github.com/YuminosukeSato/watertemp/pkg/log"
	"github.com/YuminosukeSato/watertemp/sklearn/model_selection"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS search_runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    target TEXT NOT NULL,
    scoring TEXT NOT NULL,
    best_params TEXT NOT NULL,
    best_score REAL,
    rmse_train REAL,
    rmse_test REAL,
    n_candidates INTEGER NOT NULL,
    n_folds INTEGER NOT NULL,
    created_at DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS search_candidates (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id INTEGER NOT NULL REFERENCES search_runs(id) ON DELETE CASCADE,
    candidate INTEGER NOT NULL,
    params TEXT NOT NULL,
    mean_fit_time REAL,
    mean_test_score REAL,
    std_test_score REAL,
    rank_test_score INTEGER,
    UNIQUE(run_id, candidate)
);
`

// Run summarises one grid search.
type Run struct {
	ID         int64
	Target     string
	Scoring    string
	BestParams map[string]interface{}
	BestScore  float64
	RMSETrain  float64
	RMSETest   float64
	Candidates int
	Folds      int
	CreatedAt  time.Time
}

// Candidate is one row of a stored cv_results table.
type Candidate struct {
	Index         int
	Params        map[string]interface{}
	MeanFitTime   float64
	MeanTestScore float64
	StdTestScore  float64
	Rank          int
}

// Store is a SQLite-backed run history.
type Store struct {
	db     *sql.DB
	logger log.Logger
}

// Open opens (creating if needed) the database at path. ":memory:" gives a
// private in-memory database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	// One connection keeps ":memory:" databases alive and serialises writes.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create schema")
	}
	return &Store{db: db, logger: log.GetLoggerWithName("store")}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveSearch stores run and its per-candidate results in one transaction
// and returns the new run id. NaN scores are stored as NULL.
func (s *Store) SaveSearch(ctx context.Context, run Run, results *model_selection.CVResults) (int64, error) {
	if results == nil {
		return 0, errors.NewValueError("Store.SaveSearch", "results are nil")
	}
	best, err := json.Marshal(run.BestParams)
	if err != nil {
		return 0, errors.Wrap(err, "encode best params")
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "begin")
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
        INSERT INTO search_runs (target, scoring, best_params, best_score, rmse_train, rmse_test,
                                 n_candidates, n_folds, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.Target, run.Scoring, string(best), nullable(run.BestScore), nullable(run.RMSETrain),
		nullable(run.RMSETest), results.Len(), len(results.SplitTestScores), run.CreatedAt.UTC())
	if err != nil {
		return 0, errors.Wrap(err, "insert run")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, errors.Wrap(err, "run id")
	}

	stmt, err := tx.PrepareContext(ctx, `
        INSERT INTO search_candidates (run_id, candidate, params, mean_fit_time, mean_test_score,
                                       std_test_score, rank_test_score)
        VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, errors.Wrap(err, "prepare candidates")
	}
	defer stmt.Close()
	for c := 0; c < results.Len(); c++ {
		params, err := json.Marshal(results.Params[c])
		if err != nil {
			return 0, errors.Wrapf(err, "encode params of candidate %d", c)
		}
		if _, err := stmt.ExecContext(ctx, id, c, string(params), nullable(results.MeanFitTime[c]),
			nullable(results.MeanTestScore[c]), nullable(results.StdTestScore[c]), results.RankTestScore[c]); err != nil {
			return 0, errors.Wrapf(err, "insert candidate %d", c)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "commit")
	}
	s.logger.Info("Search run saved",
		"run_id", id,
		log.TargetKey, run.Target,
		log.CandidatesKey, results.Len(),
	)
	return id, nil
}

// ListRuns returns every stored run, newest first.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, target, scoring, best_params, best_score, rmse_train, rmse_test,
               n_candidates, n_folds, created_at
        FROM search_runs
        ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, errors.Wrap(err, "query runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r                     Run
			params                string
			best, train, testRMSE sql.NullFloat64
		)
		if err := rows.Scan(&r.ID, &r.Target, &r.Scoring, &params, &best, &train, &testRMSE,
			&r.Candidates, &r.Folds, &r.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan run")
		}
		if err := json.Unmarshal([]byte(params), &r.BestParams); err != nil {
			return nil, errors.Wrapf(err, "decode params of run %d", r.ID)
		}
		r.BestScore, r.RMSETrain, r.RMSETest = orNaN(best), orNaN(train), orNaN(testRMSE)
		runs = append(runs, r)
	}
	return runs, errors.Wrap(rows.Err(), "iterate runs")
}

// Candidates returns the stored results of a run in candidate order.
func (s *Store) Candidates(ctx context.Context, runID int64) ([]Candidate, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT candidate, params, mean_fit_time, mean_test_score, std_test_score, rank_test_score
        FROM search_candidates
        WHERE run_id = ?
        ORDER BY candidate`, runID)
	if err != nil {
		return nil, errors.Wrap(err, "query candidates")
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		var (
			c              Candidate
			params         string
			fit, mean, std sql.NullFloat64
		)
		if err := rows.Scan(&c.Index, &params, &fit, &mean, &std, &c.Rank); err != nil {
			return nil, errors.Wrap(err, "scan candidate")
		}
		if err := json.Unmarshal([]byte(params), &c.Params); err != nil {
			return nil, errors.Wrapf(err, "decode params of candidate %d", c.Index)
		}
		c.MeanFitTime, c.MeanTestScore, c.StdTestScore = orNaN(fit), orNaN(mean), orNaN(std)
		out = append(out, c)
	}
	return out, errors.Wrap(rows.Err(), "iterate candidates")
}

func nullable(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: !math.IsNaN(v) && !math.IsInf(v, 0)}
}

func orNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
