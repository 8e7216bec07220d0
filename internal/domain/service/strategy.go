package service

import "ModelArena/internal/domain/models"

// Strategy turns a price history into a trading decision for one model.
type Strategy interface {
	Decide(prices []float64, model *models.Model) (models.Signal, error)
}
