package inference

import (
	"fmt"

	"ModelArena/internal/domain/models"
	"ModelArena/internal/domain/service"
	"ModelArena/internal/services/features"
)

// Engine is the in-process Strategy: features, forward pass, arg-max.
type Engine struct{}

var _ service.Strategy = (*Engine)(nil)

func NewEngine() *Engine { return &Engine{} }

func (e *Engine) Decide(prices []float64, model *models.Model) (models.Signal, error) {
	x := features.PrepareFeatures(prices, model.Window(), model)
	out, err := Predict(model, x)
	if err != nil {
		return models.Signal{}, err
	}
	if len(out) != OutputDim {
		return models.Signal{}, fmt.Errorf("decide: model produced %d outputs, want %d", len(out), OutputDim)
	}
	return GetSignal(out), nil
}
