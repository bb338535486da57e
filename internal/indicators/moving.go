// Package indicators implements the numerical primitives the strategy
// registry builds on. Every primitive is a streaming recurrence over
// index-aligned slices: the output always has the same length as the
// input, leading positions that lack lookback are NaN holes, and any
// division by zero yields a hole instead of an infinity. Accumulators
// (EMA, Wilder smoothing) seed with a simple average of the first n
// observations.
package indicators

import (
	"math"
	"sort"
)

// SMA returns the n-period simple moving average. A NaN input holes the
// positions whose window contains it; the average recovers once the NaN
// slides out of the window.
func SMA(xs []float64, n int) []float64 {
	out := holes(len(xs))
	if n < 1 || len(xs) < n {
		return out
	}
	sum := 0.0
	bad := 0
	for i, v := range xs {
		if math.IsNaN(v) {
			bad++
		} else {
			sum += v
		}
		if i >= n {
			if prev := xs[i-n]; math.IsNaN(prev) {
				bad--
			} else {
				sum -= prev
			}
		}
		if i >= n-1 && bad == 0 {
			out[i] = sum / float64(n)
		}
	}
	return out
}

// EMA returns the n-period exponential moving average with smoothing
// factor 2/(n+1), seeded with the SMA of the first n observations.
func EMA(xs []float64, n int) []float64 {
	out := holes(len(xs))
	if n < 1 || len(xs) < n {
		return out
	}
	alpha := 2.0 / float64(n+1)
	seed := 0.0
	for i := 0; i < n; i++ {
		seed += xs[i]
	}
	ema := seed / float64(n)
	out[n-1] = ema
	for i := n; i < len(xs); i++ {
		ema = alpha*xs[i] + (1-alpha)*ema
		out[i] = ema
	}
	return out
}

// EMASeries smooths a channel that may itself begin with holes, seeding
// on the first n defined values. Used for MACD signal lines and composite
// scores.
func EMASeries(xs []float64, n int) []float64 {
	out := holes(len(xs))
	if n < 1 {
		return out
	}
	alpha := 2.0 / float64(n+1)
	count, sum := 0, 0.0
	seeded := false
	var ema float64
	for i, v := range xs {
		if math.IsNaN(v) {
			continue
		}
		if !seeded {
			sum += v
			count++
			if count == n {
				ema = sum / float64(n)
				out[i] = ema
				seeded = true
			}
			continue
		}
		ema = alpha*v + (1-alpha)*ema
		out[i] = ema
	}
	return out
}

// StdDev returns the n-period rolling sample standard deviation.
func StdDev(xs []float64, n int) []float64 {
	out := holes(len(xs))
	if n < 2 || len(xs) < n {
		return out
	}
	for i := n - 1; i < len(xs); i++ {
		mean := 0.0
		for j := i - n + 1; j <= i; j++ {
			mean += xs[j]
		}
		mean /= float64(n)
		ss := 0.0
		for j := i - n + 1; j <= i; j++ {
			d := xs[j] - mean
			ss += d * d
		}
		out[i] = math.Sqrt(ss / float64(n-1))
	}
	return out
}

// Median returns the median of the finite values in xs, or NaN when none
// exist.
func Median(xs []float64) float64 {
	vals := make([]float64, 0, len(xs))
	for _, v := range xs {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			vals = append(vals, v)
		}
	}
	if len(vals) == 0 {
		return math.NaN()
	}
	sort.Float64s(vals)
	mid := len(vals) / 2
	if len(vals)%2 == 1 {
		return vals[mid]
	}
	return (vals[mid-1] + vals[mid]) / 2
}

func holes(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func defined(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
