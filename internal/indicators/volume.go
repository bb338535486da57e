package indicators

import "github.com/stratrun/stratrun/internal/domain"

// VWAP returns the cumulative volume-weighted average price over the
// typical price. Zero cumulative volume is a hole. Bars with a NaN volume
// or typical price are holed and left out of the cumulative sums, so one
// bad bar does not poison the rest of the series.
func VWAP(bars domain.Series) []float64 {
	out := holes(len(bars))
	cumVol, cumPV := 0.0, 0.0
	for i, b := range bars {
		tp := (b.High + b.Low + b.Close) / 3
		if !defined(b.Volume) || !defined(tp) {
			continue
		}
		cumVol += b.Volume
		cumPV += tp * b.Volume
		if cumVol > 0 {
			out[i] = cumPV / cumVol
		}
	}
	return out
}

// VolumeRatio returns volume divided by its n-period SMA. A zero average
// (or NaN volume from the provider) is a hole at that position only.
func VolumeRatio(volumes []float64, n int) []float64 {
	avg := SMA(volumes, n)
	out := holes(len(volumes))
	for i := range volumes {
		if defined(avg[i]) && avg[i] > 0 && defined(volumes[i]) {
			out[i] = volumes[i] / avg[i]
		}
	}
	return out
}

// VolumeSpike flags bars whose volume exceeds mult times the n-period
// average volume. The returned channel is 1 on spike bars, 0 otherwise,
// with holes where the ratio is unavailable.
func VolumeSpike(volumes []float64, n int, mult float64) []float64 {
	ratio := VolumeRatio(volumes, n)
	out := holes(len(volumes))
	for i, r := range ratio {
		if !defined(r) {
			continue
		}
		if r > mult {
			out[i] = 1
		} else {
			out[i] = 0
		}
	}
	return out
}
