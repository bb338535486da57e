// Package perf turns signals and equity series into the performance
// battery: Sharpe, drawdown, trade stats, confidence, risk label and the
// templated verdict. The same core serves the signal-level metric path
// and the capital-simulation path.
package perf

import (
	"fmt"
	"math"

	"github.com/stratrun/stratrun/internal/domain"
	"github.com/stratrun/stratrun/internal/safejson"
)

// profitFactorCap replaces an infinite profit factor (no losing trades).
const profitFactorCap = 999.0

// Trade is one closed round trip.
type Trade struct {
	EntryTimestamp int64
	ExitTimestamp  int64
	EntryPrice     float64
	ExitPrice      float64
	PnL            float64
	// Forced marks the terminal exit synthesized at the last bar for a
	// position still open when the series ends.
	Forced bool
}

// PairTrades matches BUY signals to the following SELL. Signals arrive
// already alternating, so pairing is positional. A trailing open position
// is force-closed at the last bar's close.
func PairTrades(bars domain.Series, signals []domain.Signal) []Trade {
	trades := make([]Trade, 0, len(signals)/2+1)
	var open *domain.Signal
	for i := range signals {
		s := signals[i]
		switch s.Side {
		case domain.SideBuy:
			open = &signals[i]
		case domain.SideSell:
			if open == nil {
				continue
			}
			trades = append(trades, Trade{
				EntryTimestamp: open.Timestamp,
				ExitTimestamp:  s.Timestamp,
				EntryPrice:     open.Price,
				ExitPrice:      s.Price,
				PnL:            s.Price - open.Price,
			})
			open = nil
		}
	}
	if open != nil && len(bars) > 0 {
		last := bars[len(bars)-1]
		trades = append(trades, Trade{
			EntryTimestamp: open.Timestamp,
			ExitTimestamp:  last.Timestamp,
			EntryPrice:     open.Price,
			ExitPrice:      last.Close,
			PnL:            last.Close - open.Price,
			Forced:         true,
		})
	}
	return trades
}

// Compute derives metrics from signals over a bar series without a
// capital simulation: the position follows the signals with a notional
// single unit, and the equity series is the compounded close-to-close
// return while long.
func Compute(bars domain.Series, signals []domain.Signal, barsPerYear float64) domain.Metrics {
	trades := PairTrades(bars, signals)
	if len(trades) == 0 {
		return Empty()
	}

	long := false
	si := 0
	equity := make([]float64, len(bars))
	value := 1.0
	for i, b := range bars {
		if i > 0 && long && bars[i-1].Close != 0 {
			value *= b.Close / bars[i-1].Close
		}
		for si < len(signals) && signals[si].Timestamp == b.Timestamp {
			long = signals[si].Side == domain.SideBuy
			si++
		}
		equity[i] = value
	}

	pnls := make([]float64, len(trades))
	for i, t := range trades {
		pnls[i] = t.PnL
	}
	return FromEquity(equity, pnls, barsPerYear)
}

// FromEquity derives metrics from a mark-to-market equity series and the
// per-trade PnL list. Zero-PnL trades count toward the total but neither
// as wins nor losses.
func FromEquity(equity []float64, pnls []float64, barsPerYear float64) domain.Metrics {
	if len(pnls) == 0 {
		return Empty()
	}

	var sumWin, sumLoss float64
	var nWin, nLoss int
	for _, p := range pnls {
		switch {
		case p > 0:
			sumWin += p
			nWin++
		case p < 0:
			sumLoss -= p
			nLoss++
		}
	}
	// zero-PnL trades count toward the total but not the win rate
	winRate := math.NaN()
	if nWin+nLoss > 0 {
		winRate = float64(nWin) / float64(nWin+nLoss)
	}
	wr := winRate
	if math.IsNaN(wr) {
		wr = 0
	}

	avgWin := math.NaN()
	if nWin > 0 {
		avgWin = sumWin / float64(nWin)
	}
	avgLoss := math.NaN()
	if nLoss > 0 {
		avgLoss = sumLoss / float64(nLoss)
	}

	profitFactor := math.NaN()
	if sumLoss > 0 {
		profitFactor = math.Min(sumWin/sumLoss, profitFactorCap)
	} else if nWin > 0 {
		profitFactor = profitFactorCap
	}

	sharpe := sharpeRatio(equity, barsPerYear)
	maxDD := maxDrawdownPct(equity)

	pf := 0.0
	if !math.IsNaN(profitFactor) {
		pf = profitFactor
	}
	confidence := clamp01(
		math.Min(1, float64(len(pnls))/20)*0.4 +
			math.Max(0, wr-0.5)*0.8 +
			math.Min(0.3, math.Max(0, pf-1)*0.15))

	risk := domain.RiskHigh
	switch {
	case maxDD <= 5 && len(pnls) >= 10:
		risk = domain.RiskLow
	case maxDD <= 15:
		risk = domain.RiskModerate
	}

	netPnL := 0.0
	for _, p := range pnls {
		netPnL += p
	}
	return domain.Metrics{
		Sharpe:               safejson.Ptr(safejson.Round(sharpe, 3)),
		MaxDrawdownPct:       safejson.Ptr(safejson.Round(maxDD, 2)),
		WinRate:              safejson.Ptr(safejson.Round(winRate, 3)),
		TotalTrades:          len(pnls),
		ProfitFactor:         safejson.Ptr(safejson.Round(profitFactor, 3)),
		AvgWin:               safejson.Ptr(safejson.Round(avgWin, 2)),
		AvgLoss:              safejson.Ptr(safejson.Round(avgLoss, 2)),
		RiskLabel:            risk,
		Confidence:           safejson.Float(safejson.Round(confidence, 3)),
		Verdict:              verdict(netPnL, sharpe, wr, len(pnls)),
		SuggestedPositionPct: safejson.Float(positionPct(wr)),
	}
}

// Empty is the zero-trade battery: ratios null, risk Low, confidence 0.
func Empty() domain.Metrics {
	return domain.Metrics{
		TotalTrades:          0,
		RiskLabel:            domain.RiskLow,
		Confidence:           0,
		Verdict:              "Insufficient signals for analysis",
		SuggestedPositionPct: 0,
	}
}

// sharpeRatio annualizes the mean over stdev of per-step equity returns.
// Fewer than two defined returns, or zero variance, is NaN.
func sharpeRatio(equity []float64, barsPerYear float64) float64 {
	rets := make([]float64, 0, len(equity))
	for i := 1; i < len(equity); i++ {
		if equity[i-1] == 0 || math.IsNaN(equity[i]) || math.IsNaN(equity[i-1]) {
			continue
		}
		rets = append(rets, equity[i]/equity[i-1]-1)
	}
	if len(rets) < 2 {
		return math.NaN()
	}
	mean := 0.0
	for _, r := range rets {
		mean += r
	}
	mean /= float64(len(rets))
	ss := 0.0
	for _, r := range rets {
		d := r - mean
		ss += d * d
	}
	std := math.Sqrt(ss / float64(len(rets)-1))
	if std == 0 {
		return math.NaN()
	}
	return mean / std * math.Sqrt(barsPerYear)
}

// maxDrawdownPct returns the largest peak-to-trough decline in percent.
func maxDrawdownPct(equity []float64) float64 {
	peak := math.Inf(-1)
	maxDD := 0.0
	for _, v := range equity {
		if math.IsNaN(v) {
			continue
		}
		if v > peak {
			peak = v
		}
		if peak > 0 {
			dd := (peak - v) / peak * 100
			if dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

func verdict(netPnL, sharpe, winRate float64, trades int) string {
	bias := "Bearish"
	if netPnL > 0 {
		bias = "Bullish"
	}
	quality := "unfavorable"
	if sharpe > 1 {
		quality = "favorable"
	} else if sharpe > 0 {
		quality = "marginal"
	}
	return fmt.Sprintf("%s bias detected. %d round-trip trades with %.0f%% win rate. Risk-adjusted return %s.",
		bias, trades, winRate*100, quality)
}

// positionPct suggests a position size between 2% and 25% scaled by win
// rate, matching the sizing rule the terminal UI expects.
func positionPct(winRate float64) float64 {
	return math.Max(2, math.Min(25, float64(int(winRate*30))))
}

func clamp01(v float64) float64 { return math.Max(0, math.Min(1, v)) }
