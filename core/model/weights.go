package model

import (
	"encoding/json"

	"github.com/YuminosukeSato/watertemp/pkg/errors"
)

// WeightsVersion is bumped whenever the ModelWeights layout changes.
const WeightsVersion = "1"

// LayerWeights holds one dense layer: Coefs is Rows×Cols in row-major
// order (Rows = fan-in, Cols = fan-out) and Intercepts has Cols entries.
type LayerWeights struct {
	Rows       int       `json:"rows"`
	Cols       int       `json:"cols"`
	Coefs      []float64 `json:"coefs"`
	Intercepts []float64 `json:"intercepts"`
}

// ModelWeights is the serialisable learned state of a model.
type ModelWeights struct {
	ModelType       string                 `json:"model_type"`
	Version         string                 `json:"version"`
	Layers          []LayerWeights         `json:"layers"`
	Features        []string               `json:"features,omitempty"`
	Hyperparameters map[string]interface{} `json:"hyperparameters"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
	IsFitted        bool                   `json:"is_fitted"`
}

// ToJSON encodes the weights as indented JSON.
func (mw *ModelWeights) ToJSON() ([]byte, error) {
	return json.MarshalIndent(mw, "", "  ")
}

// FromJSON decodes weights produced by ToJSON.
func (mw *ModelWeights) FromJSON(data []byte) error {
	if err := json.Unmarshal(data, mw); err != nil {
		return errors.Wrap(err, "decode model weights")
	}
	return nil
}

// Validate checks structural consistency: version, layer shapes and
// chaining (each layer's Cols equals the next layer's Rows).
func (mw *ModelWeights) Validate() error {
	if mw.ModelType == "" {
		return errors.NewValidationError("model_type", "is required", mw.ModelType)
	}
	if mw.Version != WeightsVersion {
		return errors.NewValidationError("version", "unsupported weights version", mw.Version)
	}
	if !mw.IsFitted {
		if len(mw.Layers) > 0 {
			return errors.NewValidationError("layers", "unfitted model should not have layers", len(mw.Layers))
		}
		return nil
	}
	if len(mw.Layers) == 0 {
		return errors.NewValidationError("layers", "fitted model must have layers", 0)
	}
	for i, l := range mw.Layers {
		if l.Rows <= 0 || l.Cols <= 0 || len(l.Coefs) != l.Rows*l.Cols || len(l.Intercepts) != l.Cols {
			return errors.NewValidationError("layers", "inconsistent layer shape", i)
		}
		if i > 0 && mw.Layers[i-1].Cols != l.Rows {
			return errors.NewValidationError("layers", "layers do not chain", i)
		}
	}
	return nil
}
