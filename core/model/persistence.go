package model

import (
	"os"

	"github.com/YuminosukeSato/watertemp/pkg/errors"
)

// SaveWeights writes the exported weights of m to path as JSON.
//
//	if err := model.SaveWeights(best, "tmp/mlp_best.json"); err != nil { ... }
func SaveWeights(m WeightExporter, path string) error {
	w, err := m.ExportWeights()
	if err != nil {
		return err
	}
	data, err := w.ToJSON()
	if err != nil {
		return errors.Wrap(err, "encode model weights")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "write model weights to %s", path)
	}
	return nil
}

// LoadWeights reads weights written by SaveWeights into m.
func LoadWeights(m WeightExporter, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "read model weights from %s", path)
	}
	var w ModelWeights
	if err := w.FromJSON(data); err != nil {
		return err
	}
	if err := w.Validate(); err != nil {
		return err
	}
	return m.ImportWeights(&w)
}
