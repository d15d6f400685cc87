package dataset

import (
	"fmt"
	"math"
	"strings"

	"github.com/YuminosukeSato/watertemp/core/stats"
	"github.com/YuminosukeSato/watertemp/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Frame is a numeric table with named columns.
type Frame struct {
	Columns []string
	Data    *mat.Dense
}

// Dims returns the number of rows and columns.
func (f *Frame) Dims() (rows, cols int) {
	return f.Data.Dims()
}

// ColumnIndex returns the position of name, or -1.
func (f *Frame) ColumnIndex(name string) int {
	for i, c := range f.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Split separates the target column from the predictors. Predictor columns
// keep their original order.
//
//	X, y, features, err := train.Split("WATERTEMP")
func (f *Frame) Split(target string) (*mat.Dense, *mat.VecDense, []string, error) {
	t := f.ColumnIndex(target)
	if t < 0 {
		return nil, nil, nil, errors.NewValidationError("target", "column not found in data", target)
	}
	rows, cols := f.Dims()
	if cols < 2 {
		return nil, nil, nil, errors.NewValidationError("target", "data has no predictor columns", target)
	}

	features := make([]string, 0, cols-1)
	for j, c := range f.Columns {
		if j != t {
			features = append(features, c)
		}
	}

	X := mat.NewDense(rows, cols-1, nil)
	y := mat.NewVecDense(rows, nil)
	for i := 0; i < rows; i++ {
		k := 0
		for j := 0; j < cols; j++ {
			v := f.Data.At(i, j)
			if j == t {
				y.SetVec(i, v)
				continue
			}
			X.Set(i, k, v)
			k++
		}
	}
	return X, y, features, nil
}

// Head returns a Frame holding the first n rows.
func (f *Frame) Head(n int) *Frame {
	rows, cols := f.Dims()
	if n > rows {
		n = rows
	}
	if n <= 0 {
		return &Frame{Columns: f.Columns, Data: &mat.Dense{}}
	}
	return &Frame{
		Columns: f.Columns,
		Data:    mat.DenseCopyOf(f.Data.Slice(0, n, 0, cols)),
	}
}

// ColumnSummary is one column of Describe.
type ColumnSummary struct {
	Name  string
	Count int
	Mean  float64
	Std   float64
	Min   float64
	Q25   float64
	Q50   float64
	Q75   float64
	Max   float64
}

// Describe summarises every column like pandas.DataFrame.describe: the
// standard deviation uses n−1 and quartiles interpolate linearly.
func (f *Frame) Describe() []ColumnSummary {
	rows, cols := f.Dims()
	out := make([]ColumnSummary, cols)
	col := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(col, j, f.Data)
		mean, std := stat.MeanStdDev(col, nil)
		if rows < 2 {
			std = math.NaN()
		}
		out[j] = ColumnSummary{
			Name:  f.Columns[j],
			Count: rows,
			Mean:  mean,
			Std:   std,
			Min:   stats.Percentile(col, 0),
			Q25:   stats.Percentile(col, 25),
			Q50:   stats.Percentile(col, 50),
			Q75:   stats.Percentile(col, 75),
			Max:   stats.Percentile(col, 100),
		}
	}
	return out
}

// String renders the frame's header and up to five rows.
func (f *Frame) String() string {
	var b strings.Builder
	b.WriteString(strings.Join(f.Columns, "\t"))
	rows, cols := f.Dims()
	shown := rows
	if shown > 5 {
		shown = 5
	}
	for i := 0; i < shown; i++ {
		b.WriteByte('\n')
		for j := 0; j < cols; j++ {
			if j > 0 {
				b.WriteByte('\t')
			}
			fmt.Fprintf(&b, "%.4g", f.Data.At(i, j))
		}
	}
	fmt.Fprintf(&b, "\n[%d rows x %d columns]", rows, cols)
	return b.String()
}
