package inference

import (
	"math"

	"ModelArena/internal/domain/models"
)

// Built-in sample models: 10 -> 16 relu -> 8 relu -> 3 softmax.

func matrix(rows, cols int, fn func(i, j int) float64) [][]float64 {
	w := make([][]float64, rows)
	for i := range w {
		w[i] = make([]float64, cols)
		for j := range w[i] {
			w[i][j] = fn(i, j)
		}
	}
	return w
}

func fill(n int, v float64) []float64 {
	b := make([]float64, n)
	for i := range b {
		b[i] = v
	}
	return b
}

// SampleModels returns fresh copies of the built-in models.
func SampleModels() []*models.Model {
	return []*models.Model{momentum(), meanReversion(), volatilityScalper()}
}

func momentum() *models.Model {
	l1 := matrix(10, 16, func(i, j int) float64 {
		recency := float64(i+1) / 10
		if j < 8 {
			return recency * (0.4 - float64(j)*0.04)
		}
		return -recency * (0.4 - float64(j-8)*0.04)
	})
	l2 := matrix(16, 8, func(i, j int) float64 {
		if (i < 8 && j < 4) || (i >= 8 && j >= 4) {
			return 0.35
		}
		return -0.05
	})
	l3 := matrix(8, 3, func(i, j int) float64 {
		switch {
		case j == 0 && i < 4, j == 1 && i >= 4:
			return 0.7
		case j == 2:
			return 0.05
		default:
			return -0.3
		}
	})
	return &models.Model{
		Name:        "Momentum Trader",
		Description: "Follows price trends: buys on uptrends, sells on downtrends",
		Color:       "#f0b90b",
		InputWindow: 10,
		Layers: []models.Layer{
			{Weights: l1, Bias: fill(16, 0), Activation: models.ActivationReLU},
			{Weights: l2, Bias: fill(8, 0), Activation: models.ActivationReLU},
			{Weights: l3, Bias: []float64{0.1, -0.1, 0}, Activation: models.ActivationSoftmax},
		},
	}
}

func meanReversion() *models.Model {
	l1 := matrix(10, 16, func(i, j int) float64 {
		recency := float64(i+1) / 10
		if j < 8 {
			return -recency * (0.35 - float64(j)*0.03)
		}
		return recency * (0.35 - float64(j-8)*0.03)
	})
	l2 := matrix(16, 8, func(i, j int) float64 {
		if (i < 8 && j < 4) || (i >= 8 && j >= 4) {
			return 0.30
		}
		return -0.04
	})
	l3 := matrix(8, 3, func(i, j int) float64 {
		switch {
		case j == 0 && i < 4, j == 1 && i >= 4:
			return 0.65
		case j == 2:
			return 0.15
		default:
			return -0.25
		}
	})
	return &models.Model{
		Name:        "Mean-Reversion",
		Description: "Buys dips and sells rips, betting on price returning to the mean",
		Color:       "#26a17b",
		InputWindow: 10,
		Layers: []models.Layer{
			{Weights: l1, Bias: fill(16, 0.05), Activation: models.ActivationReLU},
			{Weights: l2, Bias: fill(8, 0), Activation: models.ActivationReLU},
			{Weights: l3, Bias: []float64{0, 0, 0.1}, Activation: models.ActivationSoftmax},
		},
	}
}

func volatilityScalper() *models.Model {
	l1 := matrix(10, 16, func(i, j int) float64 {
		recency := float64(i+1) / 10
		if j%2 == 0 {
			return recency * math.Sin(float64(i+j)*0.7) * 0.4
		}
		return recency * math.Cos(float64(i+j)*0.5) * 0.4
	})
	l2 := matrix(16, 8, func(i, j int) float64 {
		return math.Sin(float64(i*3+j*7)*0.3) * 0.25
	})
	l3 := matrix(8, 3, func(i, j int) float64 {
		hit := i%3 == j
		switch {
		case j < 2 && hit:
			return 0.5
		case j < 2:
			return -0.1
		case hit:
			return 0.6
		default:
			return 0.15
		}
	})
	return &models.Model{
		Name:        "Volatility Scalper",
		Description: "Trades aggressively during volatile swings, holds when calm",
		Color:       "#627eea",
		InputWindow: 10,
		Layers: []models.Layer{
			{Weights: l1, Bias: fill(16, 0.02), Activation: models.ActivationReLU},
			{Weights: l2, Bias: fill(8, 0.01), Activation: models.ActivationReLU},
			{Weights: l3, Bias: []float64{-0.05, -0.05, 0.2}, Activation: models.ActivationSoftmax},
		},
	}
}
