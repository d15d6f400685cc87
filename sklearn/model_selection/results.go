package model_selection

import (
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/YuminosukeSato/watertemp/core/model"
	"github.com/YuminosukeSato/watertemp/dataset"
	"gonum.org/v1/gonum/stat"
)

// CVResults holds one entry per candidate, in candidate order, mirroring
// scikit-learn's cv_results_.
type CVResults struct {
	ParamNames []string
	Params     []map[string]interface{}

	MeanFitTime   []float64
	StdFitTime    []float64
	MeanScoreTime []float64
	StdScoreTime  []float64

	// SplitTestScores[f][c] is the score of candidate c on fold f.
	SplitTestScores [][]float64
	MeanTestScore   []float64
	StdTestScore    []float64
	RankTestScore   []int

	// Train scores are nil unless return_train_score was set.
	SplitTrainScores [][]float64
	MeanTrainScore   []float64
	StdTrainScore    []float64
}

func newCVResults(paramNames []string, candidates []map[string]interface{}, nFolds int,
	results []fitResult, withTrain bool) *CVResults {
	nCand := len(candidates)
	r := &CVResults{
		ParamNames:      paramNames,
		Params:          candidates,
		SplitTestScores: make([][]float64, nFolds),
	}
	if withTrain {
		r.SplitTrainScores = make([][]float64, nFolds)
	}
	for f := 0; f < nFolds; f++ {
		r.SplitTestScores[f] = make([]float64, nCand)
		if withTrain {
			r.SplitTrainScores[f] = make([]float64, nCand)
		}
	}

	fit := make([]float64, nFolds)
	score := make([]float64, nFolds)
	test := make([]float64, nFolds)
	train := make([]float64, nFolds)
	for c := 0; c < nCand; c++ {
		for f := 0; f < nFolds; f++ {
			res := results[c*nFolds+f]
			fit[f], score[f], test[f], train[f] = res.fitTime, res.scoreTime, res.testScore, res.trainScore
			r.SplitTestScores[f][c] = res.testScore
			if withTrain {
				r.SplitTrainScores[f][c] = res.trainScore
			}
		}
		m, s := meanStd(fit)
		r.MeanFitTime, r.StdFitTime = append(r.MeanFitTime, m), append(r.StdFitTime, s)
		m, s = meanStd(score)
		r.MeanScoreTime, r.StdScoreTime = append(r.MeanScoreTime, m), append(r.StdScoreTime, s)
		m, s = meanStd(test)
		r.MeanTestScore, r.StdTestScore = append(r.MeanTestScore, m), append(r.StdTestScore, s)
		if withTrain {
			m, s = meanStd(train)
			r.MeanTrainScore, r.StdTrainScore = append(r.MeanTrainScore, m), append(r.StdTrainScore, s)
		}
	}
	r.RankTestScore = rankDescending(r.MeanTestScore)
	return r
}

// meanStd returns the mean and population standard deviation. Any NaN
// propagates to both.
func meanStd(x []float64) (float64, float64) {
	return stat.PopMeanStdDev(x, nil)
}

// rankDescending ranks scores with 1 for the greatest. Equal scores share
// the lowest rank; NaN scores rank after every number.
func rankDescending(scores []float64) []int {
	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	less := func(a, b float64) bool {
		if math.IsNaN(a) {
			return false
		}
		if math.IsNaN(b) {
			return true
		}
		return a > b
	}
	sort.SliceStable(order, func(i, j int) bool {
		return less(scores[order[i]], scores[order[j]])
	})

	ranks := make([]int, len(scores))
	for pos, idx := range order {
		if pos > 0 {
			prev := order[pos-1]
			if scores[prev] == scores[idx] || (math.IsNaN(scores[prev]) && math.IsNaN(scores[idx])) {
				ranks[idx] = ranks[prev]
				continue
			}
		}
		ranks[idx] = pos + 1
	}
	return ranks
}

// BestIndex returns the first candidate ranked 1.
func (r *CVResults) BestIndex() int {
	for i, rank := range r.RankTestScore {
		if rank == 1 {
			return i
		}
	}
	return 0
}

// Len returns the number of candidates.
func (r *CVResults) Len() int {
	return len(r.Params)
}

// Header returns the column names in scikit-learn's cv_results_ order.
func (r *CVResults) Header() []string {
	h := []string{"mean_fit_time", "std_fit_time", "mean_score_time", "std_score_time"}
	for _, p := range r.ParamNames {
		h = append(h, "param_"+p)
	}
	h = append(h, "params")
	for f := range r.SplitTestScores {
		h = append(h, fmt.Sprintf("split%d_test_score", f))
	}
	h = append(h, "mean_test_score", "std_test_score", "rank_test_score")
	if r.SplitTrainScores != nil {
		for f := range r.SplitTrainScores {
			h = append(h, fmt.Sprintf("split%d_train_score", f))
		}
		h = append(h, "mean_train_score", "std_train_score")
	}
	return h
}

// Records returns one row of formatted cells per candidate, aligned with
// Header.
func (r *CVResults) Records() [][]string {
	rows := make([][]string, r.Len())
	for c := range rows {
		row := []string{
			dataset.FormatFloat(r.MeanFitTime[c]),
			dataset.FormatFloat(r.StdFitTime[c]),
			dataset.FormatFloat(r.MeanScoreTime[c]),
			dataset.FormatFloat(r.StdScoreTime[c]),
		}
		for _, p := range r.ParamNames {
			v := r.Params[c][p]
			if s, ok := v.(string); ok {
				row = append(row, s)
			} else {
				row = append(row, model.FormatParam(v))
			}
		}
		row = append(row, formatCandidate(r.Params[c], true))
		for f := range r.SplitTestScores {
			row = append(row, dataset.FormatFloat(r.SplitTestScores[f][c]))
		}
		row = append(row,
			dataset.FormatFloat(r.MeanTestScore[c]),
			dataset.FormatFloat(r.StdTestScore[c]),
			fmt.Sprint(r.RankTestScore[c]),
		)
		if r.SplitTrainScores != nil {
			for f := range r.SplitTrainScores {
				row = append(row, dataset.FormatFloat(r.SplitTrainScores[f][c]))
			}
			row = append(row,
				dataset.FormatFloat(r.MeanTrainScore[c]),
				dataset.FormatFloat(r.StdTrainScore[c]),
			)
		}
		rows[c] = row
	}
	return rows
}

// WriteCSV exports the results with the given field separator and no index
// column.
func (r *CVResults) WriteCSV(w io.Writer, sep rune) error {
	return dataset.WriteCSV(w, r.Header(), r.Records(), sep)
}
