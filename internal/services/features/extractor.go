package features

import (
	"math"

	"ModelArena/internal/domain/models"
)

const (
	// minHistory is the shortest history the rolling features work on.
	minHistory = 20
	// lookback is how many samples beyond the window feed the rolling math.
	lookback = 10
	// maxPerSample is the number of distinct per-sample sub-features.
	maxPerSample = 5
	// rolling is the span of the SMA, volatility and up-move features.
	rolling = 5
)

// PrepareFeatures builds the input vector for model from a price history.
//
// When the model's input width equals window the output is the trailing
// window normalised to its first price. Otherwise each sample of the window
// contributes up to five sub-features in fixed order: normalised price,
// one-step return, ratio to the 5-sample SMA, stdev of recent returns and the
// fraction of recent up-moves. The result is always exactly the model's input
// width long. prices is never modified.
func PrepareFeatures(prices []float64, window int, model *models.Model) []float64 {
	if window <= 0 {
		window = models.DefaultInputWindow
	}
	inputDim := model.InputDim(window)
	if inputDim <= 0 {
		return []float64{}
	}

	series := PadHistory(prices, max(window, minHistory))
	win := series[len(series)-window:]
	base := orOne(win[0])

	if inputDim == window {
		out := make([]float64, window)
		for i, p := range win {
			out[i] = p/base - 1
		}
		return out
	}

	perSample := inputDim / window
	if perSample < 1 {
		perSample = 1
	}
	if perSample > maxPerSample {
		perSample = maxPerSample
	}

	ext := series
	if len(ext) > window+lookback {
		ext = ext[len(ext)-(window+lookback):]
	}

	out := make([]float64, 0, inputDim)
	for i := 0; i < window; i++ {
		idx := len(ext) - window + i
		p := ext[idx]
		prev := p
		if idx > 0 && ext[idx-1] != 0 {
			prev = ext[idx-1]
		}

		out = append(out, p/base-1)
		if perSample >= 2 {
			out = append(out, stepReturn(p, prev))
		}
		if perSample >= 3 {
			out = append(out, smaRatio(ext, idx))
		}
		if perSample >= 4 {
			out = append(out, returnStdev(ext, idx))
		}
		if perSample >= 5 {
			out = append(out, upFraction(ext, idx))
		}
	}

	for len(out) < inputDim {
		out = append(out, 0)
	}
	return out[:inputDim]
}

// PadHistory returns a copy of prices left-padded with the earliest price (or
// 1 when empty) up to n samples.
func PadHistory(prices []float64, n int) []float64 {
	if len(prices) >= n {
		return append([]float64(nil), prices...)
	}
	fill := 1.0
	if len(prices) > 0 && prices[0] != 0 {
		fill = prices[0]
	}
	out := make([]float64, 0, n)
	for i := len(prices); i < n; i++ {
		out = append(out, fill)
	}
	return append(out, prices...)
}

func stepReturn(p, prev float64) float64 {
	if prev == 0 {
		return 0
	}
	return (p - prev) / prev
}

func smaRatio(ext []float64, idx int) float64 {
	start := max(0, idx-(rolling-1))
	sum := 0.0
	for _, v := range ext[start : idx+1] {
		sum += v
	}
	sma := sum / float64(idx+1-start)
	if sma == 0 {
		return 0
	}
	return ext[idx]/sma - 1
}

// returnStdev is the population standard deviation of the one-step returns
// ending at idx.
func returnStdev(ext []float64, idx int) float64 {
	var rets []float64
	for k := max(1, idx-(rolling-1)); k <= idx; k++ {
		rp := orOne(ext[k-1])
		rets = append(rets, (ext[k]-rp)/rp)
	}
	if len(rets) == 0 {
		return 0
	}
	mean := 0.0
	for _, r := range rets {
		mean += r
	}
	mean /= float64(len(rets))
	variance := 0.0
	for _, r := range rets {
		variance += (r - mean) * (r - mean)
	}
	return math.Sqrt(variance / float64(len(rets)))
}

func upFraction(ext []float64, idx int) float64 {
	ups, total := 0, 0
	for k := max(1, idx-(rolling-1)); k <= idx; k++ {
		total++
		if ext[k] > ext[k-1] {
			ups++
		}
	}
	if total == 0 {
		return 0.5
	}
	return float64(ups) / float64(total)
}

func orOne(v float64) float64 {
	if v == 0 {
		return 1
	}
	return v
}
