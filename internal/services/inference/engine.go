package inference

import (
	"fmt"
	"math"

	"ModelArena/internal/domain/models"
)

// sigmoidClamp bounds sigmoid inputs so exp never overflows.
const sigmoidClamp = 500

type activationFunc func([]float64) []float64

var activations = map[string]activationFunc{
	models.ActivationReLU:    relu,
	models.ActivationSigmoid: sigmoid,
	models.ActivationTanh:    tanh,
	models.ActivationSoftmax: softmax,
	models.ActivationLinear:  func(x []float64) []float64 { return x },
}

// IsKnownActivation reports whether name is a supported activation. The empty
// name is accepted and means relu.
func IsKnownActivation(name string) bool {
	if name == "" {
		return true
	}
	_, ok := activations[name]
	return ok
}

// Predict runs a forward pass of model over x and returns the final layer's
// activated output. It never panics on malformed shapes.
func Predict(model *models.Model, x []float64) ([]float64, error) {
	if model == nil {
		return nil, fmt.Errorf("predict: nil model")
	}
	out := append([]float64(nil), x...)
	for i, layer := range model.Layers {
		y, err := dense(out, layer.Weights, layer.Bias)
		if err != nil {
			return nil, fmt.Errorf("predict: layer %d: %w", i, err)
		}
		act := layer.Activation
		if act == "" {
			act = models.ActivationReLU
		}
		fn, ok := activations[act]
		if !ok {
			return nil, fmt.Errorf("predict: layer %d: unknown activation %q", i, act)
		}
		out = fn(y)
	}
	return out, nil
}

// dense computes y_j = b_j + sum_i x_i * W[i][j].
func dense(x []float64, w [][]float64, b []float64) ([]float64, error) {
	if len(x) != len(w) {
		return nil, fmt.Errorf("input length %d does not match %d weight rows", len(x), len(w))
	}
	y := make([]float64, len(b))
	copy(y, b)
	for i, xi := range x {
		row := w[i]
		if len(row) != len(b) {
			return nil, fmt.Errorf("row %d has %d columns, want %d", i, len(row), len(b))
		}
		for j, wij := range row {
			y[j] += xi * wij
		}
	}
	return y, nil
}

func relu(x []float64) []float64 {
	for i, v := range x {
		if v < 0 {
			x[i] = 0
		}
	}
	return x
}

func sigmoid(x []float64) []float64 {
	for i, v := range x {
		v = math.Max(-sigmoidClamp, math.Min(sigmoidClamp, v))
		x[i] = 1 / (1 + math.Exp(-v))
	}
	return x
}

func tanh(x []float64) []float64 {
	for i, v := range x {
		x[i] = math.Tanh(v)
	}
	return x
}

func softmax(x []float64) []float64 {
	if len(x) == 0 {
		return x
	}
	hi := x[0]
	for _, v := range x[1:] {
		if v > hi {
			hi = v
		}
	}
	sum := 0.0
	for i, v := range x {
		x[i] = math.Exp(v - hi)
		sum += x[i]
	}
	for i := range x {
		x[i] /= sum
	}
	return x
}

// GetSignal picks the arg-max of out as buy, sell or hold. Ties go to the
// earliest index. Indices past hold map to hold.
func GetSignal(out []float64) models.Signal {
	if len(out) == 0 {
		return models.Signal{Label: models.SignalHold, Probabilities: []float64{}}
	}
	idx := 0
	for i, v := range out {
		if v > out[idx] {
			idx = i
		}
	}
	label := models.SignalHold
	if idx < len(models.SignalLabels) {
		label = models.SignalLabels[idx]
	}
	return models.Signal{
		Label:         label,
		Confidence:    out[idx],
		Probabilities: append([]float64(nil), out...),
	}
}
