package metrics

import (
	"github.com/YuminosukeSato/watertemp/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Accuracy is the fraction of exact label matches.
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	t, p, err := checkPair("Accuracy", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	correct := 0
	for i := range t {
		if t[i] == p[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(t)), nil
}

// AccuracyMatrix is Accuracy over n×1 matrices.
func AccuracyMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	t, err := ColumnVector("Accuracy", yTrue)
	if err != nil {
		return 0, err
	}
	p, err := ColumnVector("Accuracy", yPred)
	if err != nil {
		return 0, err
	}
	return Accuracy(t, p)
}

// ConfusionMatrix counts (true, predicted) label pairs over the given
// class labels. Labels outside classes are an error.
func ConfusionMatrix(yTrue, yPred *mat.VecDense, classes []int) (*mat.Dense, error) {
	t, p, err := checkPair("ConfusionMatrix", yTrue, yPred)
	if err != nil {
		return nil, err
	}
	index := make(map[int]int, len(classes))
	for i, c := range classes {
		index[c] = i
	}
	cm := mat.NewDense(len(classes), len(classes), nil)
	for i := range t {
		ti, ok1 := index[int(t[i])]
		pi, ok2 := index[int(p[i])]
		if !ok1 || !ok2 {
			return nil, errors.NewValueError("ConfusionMatrix", "label not in classes")
		}
		cm.Set(ti, pi, cm.At(ti, pi)+1)
	}
	return cm, nil
}
