package inference

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"ModelArena/internal/domain/models"
)

// OutputDim is the required width of a model's final layer.
const OutputDim = 3

var errNotObject = errors.New("not a valid JSON object")

// DecodeModel parses the JSON model file format. Anything other than a JSON
// object is rejected.
func DecodeModel(raw []byte) (*models.Model, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, errNotObject
	}
	var m models.Model
	if err := json.Unmarshal(trimmed, &m); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	return &m, nil
}

// ValidateModel checks the layer shapes of m. It does not mutate m.
func ValidateModel(m *models.Model) error {
	if m == nil {
		return errNotObject
	}
	if len(m.Layers) == 0 {
		return errors.New(`must have a non-empty "layers" array`)
	}

	prevDim := len(m.Layers[0].Weights)
	for i, l := range m.Layers {
		if l.Weights == nil || l.Bias == nil {
			return fmt.Errorf("layer %d: missing weights/bias", i)
		}
		if len(l.Weights) != prevDim {
			return fmt.Errorf("layer %d: dim mismatch: expected %d rows, got %d", i, prevDim, len(l.Weights))
		}
		outDim := len(l.Bias)
		for r, row := range l.Weights {
			if len(row) != outDim {
				return fmt.Errorf("layer %d, row %d: bad shape: expected %d columns, got %d", i, r, outDim, len(row))
			}
		}
		if !IsKnownActivation(l.Activation) {
			return fmt.Errorf("layer %d: unknown activation %q", i, l.Activation)
		}
		prevDim = outDim
	}

	if last := len(m.Layers[len(m.Layers)-1].Bias); last != OutputDim {
		return fmt.Errorf("last layer must output %d, got %d", OutputDim, last)
	}
	return nil
}
