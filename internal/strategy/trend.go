package strategy

import (
	"math"

	"github.com/stratrun/stratrun/internal/domain"
	"github.com/stratrun/stratrun/internal/indicators"
	"github.com/stratrun/stratrun/internal/safejson"
)

func slowAboveFast(fastName, slowName string) func(Params) error {
	return func(p Params) error {
		if p[slowName] <= p[fastName] {
			return domain.InvalidParams("%s (%v) must be greater than %s (%v)",
				slowName, p[slowName], fastName, p[fastName])
		}
		return nil
	}
}

// trendOutput summarizes the fast/slow relation at the last bar.
func trendOutput(fast, slow []float64, lastClose float64) domain.Output {
	f, okF := lastDefined(fast)
	s, okS := lastDefined(slow)
	direction := "NEUTRAL"
	strength := math.NaN()
	if okF && okS {
		if f > s {
			direction = "BULLISH"
		} else if f < s {
			direction = "BEARISH"
		}
		if lastClose != 0 {
			strength = round(math.Abs(f-s)/lastClose*100, 2)
		}
	}
	return domain.Output{Type: "trend", Value: domain.TrendOutput{
		Direction:   direction,
		StrengthPct: safejson.Float(strength),
		FastValue:   safejson.Float(round(f, 2)),
		SlowValue:   safejson.Float(round(s, 2)),
	}}
}

func maCrossover() *Strategy {
	return &Strategy{
		Descriptor: domain.StrategyDescriptor{
			Key:         "ma_crossover",
			DisplayName: "Moving Average Crossover",
			Category:    domain.CategoryTrend,
			Description: "Generates signals when the fast SMA crosses above or below the slow SMA.",
			DefaultParams: map[string]float64{
				"fast_period": 10,
				"slow_period": 30,
			},
		},
		IntParams: []string{"fast_period", "slow_period"},
		Validate:  slowAboveFast("fast_period", "slow_period"),
		Run: func(bars domain.Series, p Params) (*Result, error) {
			closes := bars.Closes()
			fast := indicators.SMA(closes, p.Int("fast_period"))
			slow := indicators.SMA(closes, p.Int("slow_period"))

			em := newEmitter(bars)
			for i := range bars {
				if crossAbove(fast, slow, i) {
					em.buy(i, "")
				} else if crossBelow(fast, slow, i) {
					em.sell(i, "")
				}
			}
			return &Result{
				Signals:       em.list(),
				IndicatorData: channels(map[string][]float64{"fast_sma": fast, "slow_sma": slow}),
				Output:        trendOutput(fast, slow, bars[len(bars)-1].Close),
			}, nil
		},
	}
}

func emaStrategy() *Strategy {
	return &Strategy{
		Descriptor: domain.StrategyDescriptor{
			Key:         "ema_strategy",
			DisplayName: "EMA Strategy",
			Category:    domain.CategoryTrend,
			Description: "Exponential MA crossover with faster response to price changes.",
			DefaultParams: map[string]float64{
				"fast_period": 9,
				"slow_period": 21,
			},
		},
		IntParams: []string{"fast_period", "slow_period"},
		Validate:  slowAboveFast("fast_period", "slow_period"),
		Run: func(bars domain.Series, p Params) (*Result, error) {
			closes := bars.Closes()
			fast := indicators.EMA(closes, p.Int("fast_period"))
			slow := indicators.EMA(closes, p.Int("slow_period"))

			em := newEmitter(bars)
			for i := range bars {
				if crossAbove(fast, slow, i) {
					em.buy(i, "")
				} else if crossBelow(fast, slow, i) {
					em.sell(i, "")
				}
			}
			return &Result{
				Signals:       em.list(),
				IndicatorData: channels(map[string][]float64{"fast_ema": fast, "slow_ema": slow}),
				Output:        trendOutput(fast, slow, bars[len(bars)-1].Close),
			}, nil
		},
	}
}

func macdSignal() *Strategy {
	return &Strategy{
		Descriptor: domain.StrategyDescriptor{
			Key:         "macd_signal",
			DisplayName: "MACD Signal",
			Category:    domain.CategoryTrend,
			Description: "MACD/signal line crossovers filtered to below-zero buys and above-zero sells.",
			DefaultParams: map[string]float64{
				"fast":   12,
				"slow":   26,
				"signal": 9,
			},
		},
		IntParams: []string{"fast", "slow", "signal"},
		Validate:  slowAboveFast("fast", "slow"),
		Run: func(bars domain.Series, p Params) (*Result, error) {
			closes := bars.Closes()
			macd, sig, hist := indicators.MACD(closes, p.Int("fast"), p.Int("slow"), p.Int("signal"))

			em := newEmitter(bars)
			for i := range bars {
				if crossAbove(macd, sig, i) && macd[i] < 0 && sig[i] < 0 {
					em.buy(i, "")
				} else if crossBelow(macd, sig, i) && macd[i] > 0 && sig[i] > 0 {
					em.sell(i, "")
				}
			}
			return &Result{
				Signals: em.list(),
				IndicatorData: channels(map[string][]float64{
					"macd": macd, "signal": sig, "histogram": hist,
				}),
				Output: trendOutput(macd, sig, bars[len(bars)-1].Close),
			}, nil
		},
	}
}

func superTrend() *Strategy {
	return &Strategy{
		Descriptor: domain.StrategyDescriptor{
			Key:         "supertrend",
			DisplayName: "Supertrend",
			Category:    domain.CategoryTrend,
			Description: "ATR-banded trend line; signals on direction flips.",
			DefaultParams: map[string]float64{
				"period":     10,
				"multiplier": 3.0,
			},
		},
		IntParams: []string{"period"},
		Run: func(bars domain.Series, p Params) (*Result, error) {
			line, direction := indicators.SuperTrend(bars, p.Int("period"), p.F("multiplier"))

			em := newEmitter(bars)
			for i := 1; i < len(bars); i++ {
				if !def(direction[i]) || !def(direction[i-1]) {
					continue
				}
				if direction[i] == 1 && direction[i-1] == -1 {
					em.buy(i, "")
				} else if direction[i] == -1 && direction[i-1] == 1 {
					em.sell(i, "")
				}
			}
			return &Result{
				Signals:       em.list(),
				IndicatorData: channels(map[string][]float64{"supertrend": line, "direction": direction}),
				Output:        trendOutput(bars.Closes(), line, bars[len(bars)-1].Close),
			}, nil
		},
	}
}

func donchianBreakout() *Strategy {
	return &Strategy{
		Descriptor: domain.StrategyDescriptor{
			Key:         "donchian_breakout",
			DisplayName: "Donchian Channel Breakout",
			Category:    domain.CategoryTrend,
			Description: "Breakout signals when the close breaches the prior channel extremes.",
			DefaultParams: map[string]float64{
				"period": 20,
			},
		},
		IntParams: []string{"period"},
		Run: func(bars domain.Series, p Params) (*Result, error) {
			upper, lower, middle := indicators.Donchian(bars, p.Int("period"))

			em := newEmitter(bars)
			for i := 1; i < len(bars); i++ {
				if !def(upper[i-1]) {
					continue
				}
				if bars[i].Close > upper[i-1] {
					em.buy(i, "")
				} else if bars[i].Close < lower[i-1] {
					em.sell(i, "")
				}
			}
			return &Result{
				Signals: em.list(),
				IndicatorData: channels(map[string][]float64{
					"upper": upper, "lower": lower, "middle": middle,
				}),
				Output: trendOutput(bars.Closes(), middle, bars[len(bars)-1].Close),
			}, nil
		},
	}
}
