// Package backtest runs the capital simulation: it replays strategy
// signals against a bar series with integer share sizing and produces the
// equity curve, trade log and performance battery.
package backtest

import (
	"math"

	"github.com/stratrun/stratrun/internal/domain"
	"github.com/stratrun/stratrun/internal/perf"
	"github.com/stratrun/stratrun/internal/safejson"
)

// DefaultSizeFraction is the share of available cash committed per entry.
const DefaultSizeFraction = 0.95

// Config holds the simulation inputs.
type Config struct {
	InitialCapital float64
	// SizeFraction is the fraction of cash deployed on each BUY, in
	// (0, 1]. Zero means DefaultSizeFraction.
	SizeFraction float64
	BarsPerYear  float64
}

// Validate rejects non-positive capital and out-of-range sizing.
func (c Config) Validate() error {
	if c.InitialCapital <= 0 || math.IsNaN(c.InitialCapital) || math.IsInf(c.InitialCapital, 0) {
		return domain.InvalidParams("initial_capital must be positive, got %v", c.InitialCapital)
	}
	if c.SizeFraction != 0 && (c.SizeFraction <= 0 || c.SizeFraction > 1 || math.IsNaN(c.SizeFraction)) {
		return domain.InvalidParams("size_fraction must be in (0,1], got %v", c.SizeFraction)
	}
	return nil
}

// Run executes the simulation. Signals must alternate BUY/SELL in
// timestamp order; execution is always at the bar close. The equity curve
// has exactly one point per input bar, and an open position at the last
// bar is force-closed with a CLOSE record.
func Run(bars domain.Series, signals []domain.Signal, cfg Config) (*domain.BacktestResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	size := cfg.SizeFraction
	if size == 0 {
		size = DefaultSizeFraction
	}
	barsPerYear := cfg.BarsPerYear
	if barsPerYear == 0 {
		barsPerYear = 252
	}

	bySignal := make(map[int64]domain.Signal, len(signals))
	for _, s := range signals {
		bySignal[s.Timestamp] = s
	}

	cash := cfg.InitialCapital
	var qty int64
	entryPrice := 0.0
	cumulativePnL := 0.0
	tradeLog := make([]domain.TradeRecord, 0, len(signals)+1)
	curve := make([]domain.EquityPoint, 0, len(bars))

	for _, b := range bars {
		if s, ok := bySignal[b.Timestamp]; ok {
			price := b.Close
			switch {
			case s.Side == domain.SideBuy && qty == 0 && price > 0:
				n := int64(cash * size / price)
				if n > 0 {
					cash -= float64(n) * price
					qty = n
					entryPrice = price
					tradeLog = append(tradeLog, domain.TradeRecord{
						Timestamp:     b.Timestamp,
						Side:          domain.SideBuy,
						Price:         safejson.Float(safejson.Round(price, 2)),
						Quantity:      n,
						PnL:           0,
						CumulativePnL: safejson.Float(safejson.Round(cumulativePnL, 2)),
					})
				}
			case s.Side == domain.SideSell && qty > 0:
				pnl := (price - entryPrice) * float64(qty)
				cumulativePnL += pnl
				cash += float64(qty) * price
				tradeLog = append(tradeLog, domain.TradeRecord{
					Timestamp:     b.Timestamp,
					Side:          domain.SideSell,
					Price:         safejson.Float(safejson.Round(price, 2)),
					Quantity:      qty,
					PnL:           safejson.Float(safejson.Round(pnl, 2)),
					CumulativePnL: safejson.Float(safejson.Round(cumulativePnL, 2)),
				})
				qty = 0
				entryPrice = 0
			}
		}

		positionValue := float64(qty) * b.Close
		curve = append(curve, domain.EquityPoint{
			Timestamp:     b.Timestamp,
			Value:         safejson.Float(safejson.Round(cash+positionValue, 2)),
			Cash:          safejson.Float(safejson.Round(cash, 2)),
			PositionValue: safejson.Float(safejson.Round(positionValue, 2)),
		})
	}

	if qty > 0 && len(bars) > 0 {
		last := bars[len(bars)-1]
		pnl := (last.Close - entryPrice) * float64(qty)
		cumulativePnL += pnl
		cash += float64(qty) * last.Close
		tradeLog = append(tradeLog, domain.TradeRecord{
			Timestamp:     last.Timestamp,
			Side:          domain.SideClose,
			Price:         safejson.Float(safejson.Round(last.Close, 2)),
			Quantity:      qty,
			PnL:           safejson.Float(safejson.Round(pnl, 2)),
			CumulativePnL: safejson.Float(safejson.Round(cumulativePnL, 2)),
		})
		qty = 0
	}

	finalValue := cash
	totalReturnPct := (finalValue - cfg.InitialCapital) / cfg.InitialCapital * 100

	equity := make([]float64, len(curve))
	for i, pt := range curve {
		equity[i] = float64(pt.Value)
	}
	pnls := make([]float64, 0, len(tradeLog))
	for _, t := range tradeLog {
		if t.Side == domain.SideSell || t.Side == domain.SideClose {
			pnls = append(pnls, float64(t.PnL))
		}
	}
	metrics := perf.FromEquity(equity, pnls, barsPerYear)

	return &domain.BacktestResult{
		Metrics:        metrics,
		InitialCapital: cfg.InitialCapital,
		FinalValue:     safejson.Float(safejson.Round(finalValue, 2)),
		TotalReturnPct: safejson.Float(safejson.Round(totalReturnPct, 2)),
		EquityCurve:    curve,
		TradeLog:       tradeLog,
	}, nil
}
