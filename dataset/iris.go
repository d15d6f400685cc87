package dataset

import (
	"bytes"
	_ "embed"

	"github.com/YuminosukeSato/watertemp/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

//go:embed data/iris.csv
var irisCSV []byte

// Bunch is a labelled classification dataset.
type Bunch struct {
	Data         *mat.Dense
	Target       *mat.VecDense
	FeatureNames []string
	TargetNames  []string
}

// LoadIris returns Fisher's iris data: 150 samples, 4 features, 3 classes
// encoded 0, 1 and 2.
func LoadIris() (*Bunch, error) {
	frame, err := ReadCSV(bytes.NewReader(irisCSV))
	if err != nil {
		return nil, errors.Wrap(err, "load iris")
	}
	X, y, features, err := frame.Split("target")
	if err != nil {
		return nil, err
	}
	return &Bunch{
		Data:         X,
		Target:       y,
		FeatureNames: features,
		TargetNames:  []string{"setosa", "versicolor", "virginica"},
	}, nil
}
