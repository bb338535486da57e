package strategy

import (
	"github.com/stratrun/stratrun/internal/domain"
	"github.com/stratrun/stratrun/internal/indicators"
	"github.com/stratrun/stratrun/internal/safejson"
)

func momentumOutput(osc []float64, oversold, overbought float64) domain.Output {
	v, ok := lastDefined(osc)
	zone := "NEUTRAL"
	if ok {
		if v <= oversold {
			zone = "OVERSOLD"
		} else if v >= overbought {
			zone = "OVERBOUGHT"
		}
	}
	return domain.Output{Type: "momentum", Value: domain.MomentumOutput{
		Zone:     zone,
		RSIValue: safejson.Float(round(v, 1)),
	}}
}

func thresholdOrder(low, high string) func(Params) error {
	return func(p Params) error {
		if p[low] >= p[high] {
			return domain.InvalidParams("%s (%v) must be below %s (%v)", low, p[low], high, p[high])
		}
		return nil
	}
}

func rsiStrategy() *Strategy {
	return &Strategy{
		Descriptor: domain.StrategyDescriptor{
			Key:         "rsi_strategy",
			DisplayName: "RSI Strategy",
			Category:    domain.CategoryMomentum,
			Description: "Buys when RSI recovers up through the oversold threshold, sells on the overbought mirror.",
			DefaultParams: map[string]float64{
				"period":     14,
				"oversold":   30,
				"overbought": 70,
			},
		},
		IntParams: []string{"period"},
		Validate:  thresholdOrder("oversold", "overbought"),
		Run: func(bars domain.Series, p Params) (*Result, error) {
			rsi := indicators.RSI(bars.Closes(), p.Int("period"))
			os, ob := p.F("oversold"), p.F("overbought")

			em := newEmitter(bars)
			for i := range bars {
				if risesThrough(rsi, i, os) {
					em.buy(i, "")
				} else if fallsThrough(rsi, i, ob) {
					em.sell(i, "")
				}
			}
			return &Result{
				Signals:       em.list(),
				IndicatorData: channels(map[string][]float64{"rsi": rsi}),
				Output:        momentumOutput(rsi, os, ob),
			}, nil
		},
	}
}

func stochastic() *Strategy {
	return &Strategy{
		Descriptor: domain.StrategyDescriptor{
			Key:         "stochastic",
			DisplayName: "Stochastic Oscillator",
			Category:    domain.CategoryMomentum,
			Description: "%K/%D crossovers taken only near the oversold and overbought zones.",
			DefaultParams: map[string]float64{
				"k_period":   14,
				"d_period":   3,
				"oversold":   20,
				"overbought": 80,
			},
		},
		IntParams: []string{"k_period", "d_period"},
		Validate:  thresholdOrder("oversold", "overbought"),
		Run: func(bars domain.Series, p Params) (*Result, error) {
			highs := make([]float64, len(bars))
			lows := make([]float64, len(bars))
			for i, b := range bars {
				highs[i], lows[i] = b.High, b.Low
			}
			pctK, pctD := indicators.Stochastic(highs, lows, bars.Closes(), p.Int("k_period"), p.Int("d_period"))
			os, ob := p.F("oversold"), p.F("overbought")

			// crossovers count only within 10 points of the extreme zones
			em := newEmitter(bars)
			for i := 1; i < len(bars); i++ {
				if !def(pctK[i]) || !def(pctD[i]) || !def(pctK[i-1]) || !def(pctD[i-1]) {
					continue
				}
				if pctK[i] > pctD[i] && pctK[i-1] <= pctD[i-1] && pctK[i] < os+10 {
					em.buy(i, "")
				} else if pctK[i] < pctD[i] && pctK[i-1] >= pctD[i-1] && pctK[i] > ob-10 {
					em.sell(i, "")
				}
			}
			return &Result{
				Signals:       em.list(),
				IndicatorData: channels(map[string][]float64{"stoch_k": pctK, "stoch_d": pctD}),
				Output:        momentumOutput(pctK, os, ob),
			}, nil
		},
	}
}

func rocStrategy() *Strategy {
	return &Strategy{
		Descriptor: domain.StrategyDescriptor{
			Key:         "roc_strategy",
			DisplayName: "Rate of Change",
			Category:    domain.CategoryMomentum,
			Description: "Momentum signals on the rate of change crossing its threshold.",
			DefaultParams: map[string]float64{
				"period":    12,
				"threshold": 0,
			},
		},
		IntParams: []string{"period"},
		Run: func(bars domain.Series, p Params) (*Result, error) {
			roc := indicators.ROC(bars.Closes(), p.Int("period"))
			th := p.F("threshold")

			em := newEmitter(bars)
			for i := range bars {
				if risesThrough(roc, i, th) {
					em.buy(i, "")
				} else if fallsThrough(roc, i, th) {
					em.sell(i, "")
				}
			}
			return &Result{
				Signals:       em.list(),
				IndicatorData: channels(map[string][]float64{"roc": roc}),
				Output:        momentumOutput(roc, -5, 5),
			}, nil
		},
	}
}

func cciStrategy() *Strategy {
	return &Strategy{
		Descriptor: domain.StrategyDescriptor{
			Key:         "cci_strategy",
			DisplayName: "Commodity Channel Index",
			Category:    domain.CategoryMomentum,
			Description: "Buys when CCI crosses up through the oversold level, sells when it drops through the overbought level.",
			DefaultParams: map[string]float64{
				"period":     20,
				"oversold":   -100,
				"overbought": 100,
			},
		},
		IntParams: []string{"period"},
		Validate:  thresholdOrder("oversold", "overbought"),
		Run: func(bars domain.Series, p Params) (*Result, error) {
			highs := make([]float64, len(bars))
			lows := make([]float64, len(bars))
			for i, b := range bars {
				highs[i], lows[i] = b.High, b.Low
			}
			cci := indicators.CCI(highs, lows, bars.Closes(), p.Int("period"))
			os, ob := p.F("oversold"), p.F("overbought")

			em := newEmitter(bars)
			for i := range bars {
				if risesThrough(cci, i, os) {
					em.buy(i, "")
				} else if fallsThrough(cci, i, ob) {
					em.sell(i, "")
				}
			}
			return &Result{
				Signals:       em.list(),
				IndicatorData: channels(map[string][]float64{"cci": cci}),
				Output:        momentumOutput(cci, os, ob),
			}, nil
		},
	}
}
