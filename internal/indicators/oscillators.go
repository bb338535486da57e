package indicators

import "math"

// RSI returns the n-period Relative Strength Index using Wilder's
// smoothing, seeded with the simple average of the first n gains and
// losses. Values are in [0,100]; a flat window reads neutral 50.
func RSI(xs []float64, n int) []float64 {
	out := holes(len(xs))
	if n < 1 || len(xs) < n+1 {
		return out
	}
	avgGain, avgLoss := 0.0, 0.0
	for i := 1; i <= n; i++ {
		d := xs[i] - xs[i-1]
		if d > 0 {
			avgGain += d
		} else {
			avgLoss -= d
		}
	}
	avgGain /= float64(n)
	avgLoss /= float64(n)
	out[n] = rsiValue(avgGain, avgLoss)

	alpha := 1.0 / float64(n)
	for i := n + 1; i < len(xs); i++ {
		d := xs[i] - xs[i-1]
		gain, loss := 0.0, 0.0
		if d > 0 {
			gain = d
		} else {
			loss = -d
		}
		avgGain = avgGain*(1-alpha) + gain*alpha
		avgLoss = avgLoss*(1-alpha) + loss*alpha
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// MACD returns the MACD line, its signal line and the histogram.
func MACD(xs []float64, fast, slow, signal int) (macd, sig, hist []float64) {
	fastEMA := EMA(xs, fast)
	slowEMA := EMA(xs, slow)
	macd = holes(len(xs))
	for i := range xs {
		if defined(fastEMA[i]) && defined(slowEMA[i]) {
			macd[i] = fastEMA[i] - slowEMA[i]
		}
	}
	sig = EMASeries(macd, signal)
	hist = holes(len(xs))
	for i := range xs {
		if defined(macd[i]) && defined(sig[i]) {
			hist[i] = macd[i] - sig[i]
		}
	}
	return macd, sig, hist
}

// Stochastic returns %K and %D. %K is the close's position within the
// k-period high/low range scaled to [0,100]; a zero range reads neutral
// 50. %D is the d-period SMA of %K.
func Stochastic(highs, lows, closes []float64, k, d int) (pctK, pctD []float64) {
	pctK = holes(len(closes))
	if k < 1 || len(closes) < k {
		return pctK, holes(len(closes))
	}
	for i := k - 1; i < len(closes); i++ {
		hi, lo := math.Inf(-1), math.Inf(1)
		for j := i - k + 1; j <= i; j++ {
			hi = math.Max(hi, highs[j])
			lo = math.Min(lo, lows[j])
		}
		if hi == lo {
			pctK[i] = 50
			continue
		}
		pctK[i] = (closes[i] - lo) / (hi - lo) * 100
	}
	pctD = SMASeries(pctK, d)
	return pctK, pctD
}

// SMASeries is SMA over a channel with leading holes: a window counts only
// once all of its positions are defined.
func SMASeries(xs []float64, n int) []float64 {
	out := holes(len(xs))
	if n < 1 {
		return out
	}
	for i := n - 1; i < len(xs); i++ {
		sum, ok := 0.0, true
		for j := i - n + 1; j <= i; j++ {
			if !defined(xs[j]) {
				ok = false
				break
			}
			sum += xs[j]
		}
		if ok {
			out[i] = sum / float64(n)
		}
	}
	return out
}

// ROC returns the n-period rate of change in percent.
func ROC(xs []float64, n int) []float64 {
	out := holes(len(xs))
	for i := n; i < len(xs); i++ {
		if xs[i-n] == 0 {
			continue
		}
		out[i] = (xs[i] - xs[i-n]) / xs[i-n] * 100
	}
	return out
}

// CCI returns the n-period Commodity Channel Index over the typical price,
// using Lambert's 0.015 scaling constant. A zero mean absolute deviation
// is a hole.
func CCI(highs, lows, closes []float64, n int) []float64 {
	tp := make([]float64, len(closes))
	for i := range closes {
		tp[i] = (highs[i] + lows[i] + closes[i]) / 3
	}
	smaTP := SMA(tp, n)
	out := holes(len(closes))
	for i := n - 1; i < len(closes); i++ {
		mad := 0.0
		for j := i - n + 1; j <= i; j++ {
			mad += math.Abs(tp[j] - smaTP[i])
		}
		mad /= float64(n)
		if mad == 0 {
			continue
		}
		out[i] = (tp[i] - smaTP[i]) / (0.015 * mad)
	}
	return out
}

// ZScore returns the n-period z-score of xs against its rolling mean. A
// zero standard deviation is a hole.
func ZScore(xs []float64, n int) []float64 {
	mean := SMA(xs, n)
	std := StdDev(xs, n)
	out := holes(len(xs))
	for i := range xs {
		if defined(mean[i]) && defined(std[i]) && std[i] > 0 {
			out[i] = (xs[i] - mean[i]) / std[i]
		}
	}
	return out
}
