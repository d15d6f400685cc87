// Package dataset loads the tabular inputs of the water temperature models
// and the bundled iris data.
package dataset

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/watertemp/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// csvConfig holds the parsing options of ReadCSV.
type csvConfig struct {
	delimiter rune
	decimal   rune
}

// CSVOption configures ReadCSV and LoadCSV.
type CSVOption func(*csvConfig)

// WithDelimiter sets the field separator (default ',').
func WithDelimiter(d rune) CSVOption {
	return func(c *csvConfig) {
		c.delimiter = d
	}
}

// WithDecimal sets the decimal separator (default '.').
func WithDecimal(d rune) CSVOption {
	return func(c *csvConfig) {
		c.decimal = d
	}
}

// ReadCSV parses a CSV stream with a header row into a Frame. Every data
// cell must be numeric; parse errors name the offending row and column.
func ReadCSV(r io.Reader, opts ...CSVOption) (*Frame, error) {
	cfg := csvConfig{delimiter: ',', decimal: '.'}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.delimiter == cfg.decimal {
		return nil, errors.NewValidationError("decimal", "must differ from the delimiter", string(cfg.decimal))
	}

	reader := csv.NewReader(r)
	reader.Comma = cfg.delimiter
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.Wrap(errors.ErrEmptyData, "csv has no header row")
	}
	if err != nil {
		return nil, errors.Wrap(err, "read csv header")
	}
	columns := make([]string, len(header))
	for j, name := range header {
		columns[j] = strings.TrimSpace(strings.TrimPrefix(name, "\uFEFF"))
	}

	var data []float64
	rows := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "read csv row %d", rows+1)
		}
		for j, cell := range record {
			v, err := parseCell(cell, cfg.decimal)
			if err != nil {
				return nil, errors.Wrapf(err, "row %d, column %q", rows+1, columns[j])
			}
			data = append(data, v)
		}
		rows++
	}
	if rows == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "csv has no data rows")
	}

	return &Frame{
		Columns: columns,
		Data:    mat.NewDense(rows, len(columns), data),
	}, nil
}

func parseCell(cell string, decimal rune) (float64, error) {
	cell = strings.TrimSpace(cell)
	if decimal != '.' {
		cell = strings.ReplaceAll(cell, string(decimal), ".")
	}
	switch strings.ToLower(cell) {
	case "", "na", "nan":
		return 0, errors.NewValueError("ReadCSV", "missing value")
	}
	return strconv.ParseFloat(cell, 64)
}

// LoadCSV opens path and parses it with ReadCSV.
//
//	train, err := dataset.LoadCSV("data/cleaned/water_temp_data_scaled_train.csv")
func LoadCSV(path string, opts ...CSVOption) (*Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	frame, err := ReadCSV(f, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", path)
	}
	return frame, nil
}

// WriteCSV writes a header and rows using sep as the field separator.
// Fields are quoted only when needed.
func WriteCSV(w io.Writer, header []string, rows [][]string, sep rune) error {
	writer := csv.NewWriter(w)
	writer.Comma = sep
	if err := writer.Write(header); err != nil {
		return errors.Wrap(err, "write csv header")
	}
	for i, row := range rows {
		if len(row) != len(header) {
			return errors.NewDimensionError("WriteCSV", len(header), len(row), 1)
		}
		if err := writer.Write(row); err != nil {
			return errors.Wrapf(err, "write csv row %d", i+1)
		}
	}
	writer.Flush()
	return errors.WithStack(writer.Error())
}

// FormatFloat renders v the way pandas.to_csv writes float64 columns:
// shortest round-trip digits, ".0" on integral values and exponent
// notation only outside [1e-4, 1e16).
func FormatFloat(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	if abs := math.Abs(v); abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(v, 'e', -1, 64)
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
