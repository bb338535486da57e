package indicators

import (
	"math"

	"github.com/stratrun/stratrun/internal/domain"
)

// TrueRange returns the per-bar true range. The first bar has no previous
// close, so its true range is the plain high-low span.
func TrueRange(bars domain.Series) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		hl := b.High - b.Low
		if i == 0 {
			out[i] = hl
			continue
		}
		prev := bars[i-1].Close
		out[i] = math.Max(hl, math.Max(math.Abs(b.High-prev), math.Abs(b.Low-prev)))
	}
	return out
}

// ATR returns the n-period Average True Range with Wilder's smoothing,
// seeded with the simple average of the first n true ranges.
func ATR(bars domain.Series, n int) []float64 {
	out := holes(len(bars))
	if n < 1 || len(bars) < n {
		return out
	}
	tr := TrueRange(bars)
	seed := 0.0
	for i := 0; i < n; i++ {
		seed += tr[i]
	}
	atr := seed / float64(n)
	out[n-1] = atr
	alpha := 1.0 / float64(n)
	for i := n; i < len(bars); i++ {
		atr = atr*(1-alpha) + tr[i]*alpha
		out[i] = atr
	}
	return out
}

// Bollinger returns the middle, upper and lower bands: SMA(n) ± k·stdev(n).
func Bollinger(xs []float64, n int, k float64) (mid, upper, lower []float64) {
	mid = SMA(xs, n)
	std := StdDev(xs, n)
	upper = holes(len(xs))
	lower = holes(len(xs))
	for i := range xs {
		if defined(mid[i]) && defined(std[i]) {
			upper[i] = mid[i] + k*std[i]
			lower[i] = mid[i] - k*std[i]
		}
	}
	return mid, upper, lower
}

// Donchian returns the n-period channel: rolling max of highs, rolling min
// of lows, and their midpoint.
func Donchian(bars domain.Series, n int) (upper, lower, middle []float64) {
	upper = holes(len(bars))
	lower = holes(len(bars))
	middle = holes(len(bars))
	if n < 1 || len(bars) < n {
		return upper, lower, middle
	}
	for i := n - 1; i < len(bars); i++ {
		hi, lo := math.Inf(-1), math.Inf(1)
		for j := i - n + 1; j <= i; j++ {
			hi = math.Max(hi, bars[j].High)
			lo = math.Min(lo, bars[j].Low)
		}
		upper[i] = hi
		lower[i] = lo
		middle[i] = (hi + lo) / 2
	}
	return upper, lower, middle
}

// Keltner returns the EMA midline with ATR bands: EMA(n) ± mult·ATR(atrN).
func Keltner(bars domain.Series, n, atrN int, mult float64) (mid, upper, lower []float64) {
	mid = EMA(bars.Closes(), n)
	atr := ATR(bars, atrN)
	upper = holes(len(bars))
	lower = holes(len(bars))
	for i := range bars {
		if defined(mid[i]) && defined(atr[i]) {
			upper[i] = mid[i] + mult*atr[i]
			lower[i] = mid[i] - mult*atr[i]
		}
	}
	return mid, upper, lower
}

// SuperTrend returns the SuperTrend line and its direction channel
// (+1 long, -1 short). Bands are hl2 ± mult·ATR(n); direction flips when
// the close breaches the prior bar's band and carries otherwise.
func SuperTrend(bars domain.Series, n int, mult float64) (line, direction []float64) {
	atr := ATR(bars, n)
	line = holes(len(bars))
	direction = holes(len(bars))
	if len(bars) == 0 {
		return line, direction
	}
	upper := holes(len(bars))
	lower := holes(len(bars))
	for i, b := range bars {
		if defined(atr[i]) {
			hl2 := (b.High + b.Low) / 2
			upper[i] = hl2 + mult*atr[i]
			lower[i] = hl2 - mult*atr[i]
		}
	}
	dir := 1.0
	started := false
	for i := 1; i < len(bars); i++ {
		if !defined(upper[i-1]) || !defined(upper[i]) {
			continue
		}
		if !started {
			started = true
		}
		switch {
		case bars[i].Close > upper[i-1]:
			dir = 1
		case bars[i].Close < lower[i-1]:
			dir = -1
		}
		direction[i] = dir
		if dir == 1 {
			line[i] = lower[i]
		} else {
			line[i] = upper[i]
		}
	}
	return line, direction
}
