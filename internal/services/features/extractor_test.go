package features

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ModelArena/internal/domain/models"
)

func modelWithInput(n int) *models.Model {
	w := make([][]float64, n)
	for i := range w {
		w[i] = []float64{0, 0, 0}
	}
	return &models.Model{Layers: []models.Layer{{Weights: w, Bias: []float64{0, 0, 0}, Activation: "softmax"}}}
}

func TestPrepareFeatures_NormalisedWindow(t *testing.T) {
	prices := []float64{100, 101, 99, 105}
	x := PrepareFeatures(prices, 4, modelWithInput(4))

	require.Len(t, x, 4)
	assert.InDelta(t, 0, x[0], 1e-12)
	assert.InDelta(t, 0.01, x[1], 1e-12)
	assert.InDelta(t, -0.01, x[2], 1e-12)
	assert.InDelta(t, 0.05, x[3], 1e-12)
}

func TestPrepareFeatures_PadsShortHistory(t *testing.T) {
	x := PrepareFeatures([]float64{50}, 5, modelWithInput(5))
	assert.Equal(t, []float64{0, 0, 0, 0, 0}, x)

	x = PrepareFeatures(nil, 3, modelWithInput(3))
	assert.Equal(t, []float64{0, 0, 0}, x)
}

func TestPrepareFeatures_DoesNotMutateInput(t *testing.T) {
	prices := []float64{1, 2, 3}
	_ = PrepareFeatures(prices, 5, modelWithInput(25))
	assert.Equal(t, []float64{1, 2, 3}, prices)
}

func TestPrepareFeatures_AlwaysInputDim(t *testing.T) {
	prices := make([]float64, 0, 60)
	for i := 0; i < 60; i++ {
		prices = append(prices, 100+10*math.Sin(float64(i)/3))
	}
	for _, window := range []int{1, 3, 5, 10, 25} {
		for _, dim := range []int{1, 2, 7, 10, 16, 50, 200} {
			x := PrepareFeatures(prices, window, modelWithInput(dim))
			require.Lenf(t, x, dim, "window=%d dim=%d", window, dim)
			for _, v := range x {
				assert.False(t, math.IsNaN(v) || math.IsInf(v, 0))
			}
		}
	}
}

func TestPrepareFeatures_NoModelUsesWindow(t *testing.T) {
	x := PrepareFeatures([]float64{10, 20}, 4, nil)
	require.Len(t, x, 4)
	assert.InDelta(t, 1, x[3], 1e-12)
}

func TestPrepareFeatures_SubFeatures(t *testing.T) {
	// flat history then a single step up on the last sample
	prices := make([]float64, 30)
	for i := range prices {
		prices[i] = 100
	}
	prices[29] = 110

	x := PrepareFeatures(prices, 2, modelWithInput(10))
	require.Len(t, x, 10)

	// first sample: flat
	assert.Equal(t, []float64{0, 0, 0, 0, 0}, x[:5])

	last := x[5:]
	assert.InDelta(t, 0.1, last[0], 1e-12) // normalised price
	assert.InDelta(t, 0.1, last[1], 1e-12) // one-step return
	assert.InDelta(t, 110.0/102-1, last[2], 1e-12)
	assert.InDelta(t, 0.04, last[3], 1e-12) // stdev of {0,0,0,0,0.1}
	assert.InDelta(t, 0.2, last[4], 1e-12)  // one up-move in five
}

func TestPrepareFeatures_TruncatesAndPads(t *testing.T) {
	prices := []float64{1, 2, 3, 4, 5, 6, 7, 8}

	// 7/3 -> two sub-features per sample, six values then one zero
	x := PrepareFeatures(prices, 3, modelWithInput(7))
	require.Len(t, x, 7)
	assert.Equal(t, 0.0, x[6])

	// 40/4 clamps to five sub-features, twenty values then padding
	x = PrepareFeatures(prices, 4, modelWithInput(40))
	require.Len(t, x, 40)
	for _, v := range x[20:] {
		assert.Equal(t, 0.0, v)
	}
}

func TestPadHistory(t *testing.T) {
	assert.Equal(t, []float64{3, 3, 3, 4}, PadHistory([]float64{3, 4}, 4))
	assert.Equal(t, []float64{1, 1}, PadHistory(nil, 2))
	assert.Equal(t, []float64{5, 6, 7}, PadHistory([]float64{5, 6, 7}, 2))
}
