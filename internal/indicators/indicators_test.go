package indicators

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratrun/stratrun/internal/domain"
)

func countDefined(xs []float64) int {
	n := 0
	for _, v := range xs {
		if defined(v) {
			n++
		}
	}
	return n
}

func TestSMA(t *testing.T) {
	xs := []float64{1, 2, 3, 4, 5}
	out := SMA(xs, 3)
	require.Len(t, out, len(xs))
	assert.True(t, math.IsNaN(out[0]))
	assert.True(t, math.IsNaN(out[1]))
	assert.Equal(t, 2.0, out[2])
	assert.Equal(t, 3.0, out[3])
	assert.Equal(t, 4.0, out[4])
}

func TestSMAShortInput(t *testing.T) {
	out := SMA([]float64{1, 2}, 5)
	require.Len(t, out, 2)
	assert.Equal(t, 0, countDefined(out))
}

func TestSMARecoversAfterNaN(t *testing.T) {
	xs := []float64{1, 2, 3, math.NaN(), 5, 6, 7}
	out := SMA(xs, 3)
	require.Len(t, out, len(xs))
	assert.InDelta(t, 2.0, out[2], 1e-12)
	// windows containing the NaN are holes
	assert.True(t, math.IsNaN(out[3]))
	assert.True(t, math.IsNaN(out[4]))
	assert.True(t, math.IsNaN(out[5]))
	// once the NaN slides out the average comes back
	assert.InDelta(t, 6.0, out[6], 1e-12)
}

func TestEMASeedsWithSMA(t *testing.T) {
	xs := []float64{1, 2, 3, 4, 5}
	out := EMA(xs, 3)
	require.Len(t, out, len(xs))
	assert.True(t, math.IsNaN(out[1]))
	// seed is the SMA of the first 3 values, then alpha = 0.5
	assert.InDelta(t, 2.0, out[2], 1e-12)
	assert.InDelta(t, 3.0, out[3], 1e-12)
	assert.InDelta(t, 4.0, out[4], 1e-12)
}

func TestEMASeriesSkipsLeadingHoles(t *testing.T) {
	nan := math.NaN()
	xs := []float64{nan, nan, 1, 2, 3, 4}
	out := EMASeries(xs, 3)
	require.Len(t, out, len(xs))
	assert.True(t, math.IsNaN(out[2]))
	assert.True(t, math.IsNaN(out[3]))
	// seeded at the third defined value with mean(1,2,3) = 2
	assert.InDelta(t, 2.0, out[4], 1e-12)
	assert.InDelta(t, 3.0, out[5], 1e-12)
}

func TestSMASeriesRequiresFullWindow(t *testing.T) {
	nan := math.NaN()
	xs := []float64{nan, 1, 2, 3}
	out := SMASeries(xs, 2)
	require.Len(t, out, len(xs))
	assert.True(t, math.IsNaN(out[1]))
	assert.InDelta(t, 1.5, out[2], 1e-12)
	assert.InDelta(t, 2.5, out[3], 1e-12)
}

func TestStdDev(t *testing.T) {
	xs := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	out := StdDev(xs, len(xs))
	require.Len(t, out, len(xs))
	// sample stdev of the classic data set
	assert.InDelta(t, 2.138, out[len(out)-1], 0.001)
}

func TestMedian(t *testing.T) {
	assert.Equal(t, 3.0, Median([]float64{5, 1, 3}))
	assert.Equal(t, 2.5, Median([]float64{4, 1, 2, 3}))
	assert.Equal(t, 2.0, Median([]float64{math.NaN(), 2, math.Inf(1)}))
	assert.True(t, math.IsNaN(Median(nil)))
	assert.True(t, math.IsNaN(Median([]float64{math.NaN()})))
}

func TestRSIExtremes(t *testing.T) {
	up := []float64{1, 2, 3, 4, 5, 6, 7}
	out := RSI(up, 3)
	require.Len(t, out, len(up))
	assert.True(t, math.IsNaN(out[2]))
	assert.Equal(t, 100.0, out[3])
	assert.Equal(t, 100.0, out[len(out)-1])

	flat := []float64{5, 5, 5, 5, 5, 5}
	outFlat := RSI(flat, 3)
	assert.Equal(t, 50.0, outFlat[3])

	down := []float64{7, 6, 5, 4, 3, 2}
	outDown := RSI(down, 3)
	assert.Equal(t, 0.0, outDown[3])
}

func TestRSITooShort(t *testing.T) {
	out := RSI([]float64{1, 2, 3}, 3)
	assert.Equal(t, 0, countDefined(out))
}

func TestMACDAlignment(t *testing.T) {
	xs := make([]float64, 60)
	for i := range xs {
		xs[i] = 100 + float64(i)
	}
	macd, sig, hist := MACD(xs, 12, 26, 9)
	require.Len(t, macd, len(xs))
	require.Len(t, sig, len(xs))
	require.Len(t, hist, len(xs))
	// MACD defined once the slow EMA is, signal 9 defined values later
	assert.True(t, math.IsNaN(macd[24]))
	assert.False(t, math.IsNaN(macd[25]))
	assert.True(t, math.IsNaN(sig[32]))
	assert.False(t, math.IsNaN(sig[33]))
	for i := range xs {
		if defined(hist[i]) {
			assert.InDelta(t, macd[i]-sig[i], hist[i], 1e-12)
		}
	}
}

func TestStochasticFlatRangeIsNeutral(t *testing.T) {
	n := 10
	highs := make([]float64, n)
	lows := make([]float64, n)
	closes := make([]float64, n)
	for i := 0; i < n; i++ {
		highs[i], lows[i], closes[i] = 5, 5, 5
	}
	k, d := Stochastic(highs, lows, closes, 5, 3)
	require.Len(t, k, n)
	require.Len(t, d, n)
	assert.Equal(t, 50.0, k[4])
	assert.Equal(t, 50.0, d[n-1])
}

func TestROCZeroBaseIsHole(t *testing.T) {
	out := ROC([]float64{0, 10, 20}, 1)
	assert.True(t, math.IsNaN(out[0]))
	assert.True(t, math.IsNaN(out[1]))
	assert.Equal(t, 100.0, out[2])
}

func TestZScoreZeroStdIsHole(t *testing.T) {
	out := ZScore([]float64{5, 5, 5, 5, 5}, 3)
	assert.Equal(t, 0, countDefined(out))

	out = ZScore([]float64{1, 2, 3, 4, 5}, 3)
	assert.InDelta(t, 1.0, out[4], 1e-12)
}

func TestCCIZeroMADIsHole(t *testing.T) {
	n := 6
	highs := make([]float64, n)
	lows := make([]float64, n)
	closes := make([]float64, n)
	for i := 0; i < n; i++ {
		highs[i], lows[i], closes[i] = 10, 10, 10
	}
	out := CCI(highs, lows, closes, 3)
	assert.Equal(t, 0, countDefined(out))
}

func testBars(closes []float64) domain.Series {
	bars := make(domain.Series, len(closes))
	for i, c := range closes {
		bars[i] = domain.Bar{
			Timestamp: int64(i+1) * 86400,
			Open:      c,
			High:      c + 1,
			Low:       c - 1,
			Close:     c,
			Volume:    1000,
		}
	}
	return bars
}

func TestTrueRangeFirstBar(t *testing.T) {
	bars := testBars([]float64{10, 20})
	tr := TrueRange(bars)
	require.Len(t, tr, 2)
	assert.Equal(t, 2.0, tr[0])
	// gap up: |high - prev close| dominates
	assert.Equal(t, 11.0, tr[1])
}

func TestATRSeed(t *testing.T) {
	bars := testBars([]float64{10, 10, 10, 10, 10})
	atr := ATR(bars, 3)
	require.Len(t, atr, 5)
	assert.True(t, math.IsNaN(atr[1]))
	assert.InDelta(t, 2.0, atr[2], 1e-12)
	assert.InDelta(t, 2.0, atr[4], 1e-12)
}

func TestBollingerBandsSymmetric(t *testing.T) {
	xs := []float64{1, 2, 3, 4, 5, 6}
	mid, upper, lower := Bollinger(xs, 3, 2)
	require.Len(t, mid, len(xs))
	for i := range xs {
		if !defined(mid[i]) {
			assert.True(t, math.IsNaN(upper[i]))
			assert.True(t, math.IsNaN(lower[i]))
			continue
		}
		assert.InDelta(t, mid[i], (upper[i]+lower[i])/2, 1e-12)
		assert.Greater(t, upper[i], lower[i])
	}
}

func TestDonchian(t *testing.T) {
	bars := testBars([]float64{10, 12, 11, 15, 9})
	upper, lower, middle := Donchian(bars, 3)
	require.Len(t, upper, 5)
	assert.True(t, math.IsNaN(upper[1]))
	assert.Equal(t, 13.0, upper[2]) // max high of 11,13,12
	assert.Equal(t, 9.0, lower[2])  // min low of 9,11,10
	assert.Equal(t, 11.0, middle[2])
	assert.Equal(t, 16.0, upper[3])
	assert.Equal(t, 8.0, lower[4])
}

func TestKalmanTracksPrice(t *testing.T) {
	xs := []float64{100, 100, 100, 100, 100}
	filtered, velocity := Kalman(xs, 0.01, 1.0)
	require.Len(t, filtered, 5)
	require.Len(t, velocity, 5)
	for i := range xs {
		assert.InDelta(t, 100.0, filtered[i], 1e-9)
		assert.InDelta(t, 0.0, velocity[i], 1e-9)
	}

	rising := []float64{100, 101, 102, 103, 104, 105}
	f2, v2 := Kalman(rising, 0.01, 1.0)
	assert.Less(t, f2[5], 105.0)   // filter lags the measurement
	assert.Greater(t, v2[5], 0.0)  // but moves toward it
}

func TestKalmanGainConverges(t *testing.T) {
	g := KalmanGain(0.01, 1.0, 50)
	assert.Greater(t, g, 0.0)
	assert.Less(t, g, 1.0)
	// converged: more steps change nothing
	assert.InDelta(t, g, KalmanGain(0.01, 1.0, 200), 1e-9)
}

func TestRegimeHMM(t *testing.T) {
	closes := []float64{100, 101, 102, 103, 104, 103, 102, 101, 100, 99}
	regime, vol := RegimeHMM(closes, 3)
	require.Len(t, regime, len(closes))
	require.Len(t, vol, len(closes))
	assert.Equal(t, 1.0, regime[4])
	assert.Equal(t, -1.0, regime[len(regime)-1])
}

func TestRegimeHMMEmptyInput(t *testing.T) {
	regime, vol := RegimeHMM(nil, 3)
	assert.Empty(t, regime)
	assert.Empty(t, vol)
}

func TestVWAP(t *testing.T) {
	bars := domain.Series{
		{Timestamp: 1, High: 11, Low: 9, Close: 10, Volume: 100},
		{Timestamp: 2, High: 21, Low: 19, Close: 20, Volume: 100},
	}
	out := VWAP(bars)
	require.Len(t, out, 2)
	assert.InDelta(t, 10.0, out[0], 1e-12)
	assert.InDelta(t, 15.0, out[1], 1e-12)
}

func TestVWAPZeroVolumeIsHole(t *testing.T) {
	bars := domain.Series{{Timestamp: 1, High: 11, Low: 9, Close: 10, Volume: 0}}
	out := VWAP(bars)
	assert.True(t, math.IsNaN(out[0]))
}

func TestVWAPSkipsNaNVolumeBar(t *testing.T) {
	bars := domain.Series{
		{Timestamp: 1, High: 11, Low: 9, Close: 10, Volume: 100},
		{Timestamp: 2, High: 21, Low: 19, Close: 20, Volume: math.NaN()},
		{Timestamp: 3, High: 31, Low: 29, Close: 30, Volume: 100},
	}
	out := VWAP(bars)
	require.Len(t, out, 3)
	assert.InDelta(t, 10.0, out[0], 1e-12)
	assert.True(t, math.IsNaN(out[1]))
	// the bad bar stays out of the cumulative sums
	assert.InDelta(t, 20.0, out[2], 1e-12)
}

func TestVolumeRatio(t *testing.T) {
	vols := []float64{100, 100, 100, 300}
	out := VolumeRatio(vols, 3)
	require.Len(t, out, 4)
	assert.True(t, math.IsNaN(out[1]))
	assert.InDelta(t, 1.0, out[2], 1e-12)
	// 300 / mean(100,100,300)
	assert.InDelta(t, 1.8, out[3], 1e-12)
}

func TestVolumeRatioSingleNaNVolumeBar(t *testing.T) {
	vols := []float64{100, 100, 100, math.NaN(), 100, 100, 100, 100, 100, 100}
	out := VolumeRatio(vols, 3)
	require.Len(t, out, len(vols))
	assert.InDelta(t, 1.0, out[2], 1e-12)
	// the NaN holes its own bar and the windows it sits in, nothing more
	assert.True(t, math.IsNaN(out[3]))
	assert.True(t, math.IsNaN(out[4]))
	assert.True(t, math.IsNaN(out[5]))
	assert.InDelta(t, 1.0, out[6], 1e-12)
	assert.InDelta(t, 1.0, out[9], 1e-12)
}

func TestVolumeSpike(t *testing.T) {
	vols := []float64{100, 100, 100, 100, 500}
	out := VolumeSpike(vols, 3, 2.0)
	assert.Equal(t, 0.0, out[3])
	assert.Equal(t, 1.0, out[4])
}

func TestSuperTrendDirectionFlips(t *testing.T) {
	closes := []float64{100, 100, 100, 100, 120, 121, 122, 90, 89, 88}
	bars := testBars(closes)
	line, direction := SuperTrend(bars, 3, 1.0)
	require.Len(t, line, len(bars))
	require.Len(t, direction, len(bars))
	sawUp, sawDown := false, false
	for _, d := range direction {
		if d == 1 {
			sawUp = true
		}
		if d == -1 {
			sawDown = true
		}
	}
	assert.True(t, sawUp)
	assert.True(t, sawDown)
}
