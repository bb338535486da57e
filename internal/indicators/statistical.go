package indicators

import "math"

// Kalman runs a 1-D constant-velocity Kalman filter over prices with
// process noise q and measurement noise r. It returns the filtered price
// estimate and the per-step velocity (change in state estimate). Both
// channels are full length; the velocity at the first bar is zero.
func Kalman(xs []float64, q, r float64) (filtered, velocity []float64) {
	filtered = holes(len(xs))
	velocity = holes(len(xs))
	if len(xs) == 0 {
		return filtered, velocity
	}
	x := xs[0]
	p := 1.0
	for i, z := range xs {
		pPred := p + q
		k := pPred / (pPred + r)
		prev := x
		x = x + k*(z-x)
		p = (1 - k) * pPred
		filtered[i] = x
		velocity[i] = x - prev
	}
	return filtered, velocity
}

// KalmanGain returns the steady-state gain reached after the covariance
// recursion converges, for reporting in statistical outputs.
func KalmanGain(q, r float64, steps int) float64 {
	p := 1.0
	k := 0.0
	for i := 0; i < steps; i++ {
		pPred := p + q
		k = pPred / (pPred + r)
		p = (1 - k) * pPred
	}
	return k
}

// RegimeHMM is a two-state regime approximation: the n-period rolling mean
// of signed close-to-close returns classifies each bar as bullish (+1) or
// bearish (-1). It also returns the rolling return volatility channel for
// chart overlays.
func RegimeHMM(closes []float64, n int) (regime, vol []float64) {
	if len(closes) == 0 {
		return holes(0), holes(0)
	}
	rets := make([]float64, len(closes))
	signs := make([]float64, len(closes))
	rets[0] = math.NaN()
	signs[0] = math.NaN()
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			rets[i] = math.NaN()
			signs[i] = math.NaN()
			continue
		}
		rets[i] = closes[i]/closes[i-1] - 1
		switch {
		case rets[i] > 0:
			signs[i] = 1
		case rets[i] < 0:
			signs[i] = -1
		default:
			signs[i] = 0
		}
	}
	meanSign := SMASeries(signs, n)
	vol = stdSeries(rets, n)
	regime = holes(len(closes))
	for i, m := range meanSign {
		if !defined(m) {
			continue
		}
		if m >= 0 {
			regime[i] = 1
		} else {
			regime[i] = -1
		}
	}
	return regime, vol
}

// stdSeries is StdDev over a channel with leading holes.
func stdSeries(xs []float64, n int) []float64 {
	out := holes(len(xs))
	if n < 2 {
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
		if !ok {
			continue
		}
		mean := sum / float64(n)
		ss := 0.0
		for j := i - n + 1; j <= i; j++ {
			d := xs[j] - mean
			ss += d * d
		}
		out[i] = math.Sqrt(ss / float64(n-1))
	}
	return out
}
