package strategy

import (
	"math"

	"github.com/stratrun/stratrun/internal/domain"
	"github.com/stratrun/stratrun/internal/indicators"
	"github.com/stratrun/stratrun/internal/safejson"
)

func volatilityOutput(atr []float64) domain.Output {
	cur, ok := lastDefined(atr)
	med := indicators.Median(atr)
	regime := "NORMAL"
	prob := math.NaN()
	if ok && def(med) && med > 0 {
		ratio := cur / med
		switch {
		case ratio < 0.8:
			regime = "LOW"
		case ratio > 1.2:
			regime = "HIGH"
		}
		prob = clamp(ratio/2, 0, 1)
	}
	return domain.Output{Type: "volatility", Value: domain.VolatilityOutput{
		Regime:       regime,
		CurrentATR:   safejson.Float(round(cur, 4)),
		MedianATR:    safejson.Float(round(med, 4)),
		BreakoutProb: safejson.Float(round(prob, 3)),
	}}
}

func atrBreakout() *Strategy {
	return &Strategy{
		Descriptor: domain.StrategyDescriptor{
			Key:         "atr_breakout",
			DisplayName: "ATR Breakout",
			Category:    domain.CategoryVolatility,
			Description: "Signals when the close moves more than a multiple of ATR from the prior close.",
			DefaultParams: map[string]float64{
				"period":     14,
				"multiplier": 1.5,
			},
		},
		IntParams: []string{"period"},
		Validate: func(p Params) error {
			if p["multiplier"] <= 0 {
				return domain.InvalidParams("multiplier must be positive, got %v", p["multiplier"])
			}
			return nil
		},
		Run: func(bars domain.Series, p Params) (*Result, error) {
			atr := indicators.ATR(bars, p.Int("period"))
			mult := p.F("multiplier")

			em := newEmitter(bars)
			for i := 1; i < len(bars); i++ {
				if !def(atr[i]) {
					continue
				}
				move := bars[i].Close - bars[i-1].Close
				if move > mult*atr[i] {
					em.buy(i, "")
				} else if move < -mult*atr[i] {
					em.sell(i, "")
				}
			}
			return &Result{
				Signals:       em.list(),
				IndicatorData: channels(map[string][]float64{"atr": atr}),
				Output:        volatilityOutput(atr),
			}, nil
		},
	}
}

func keltnerChannel() *Strategy {
	return &Strategy{
		Descriptor: domain.StrategyDescriptor{
			Key:         "keltner_channel",
			DisplayName: "Keltner Channel",
			Category:    domain.CategoryVolatility,
			Description: "Breakout signals when the close crosses out of the EMA-centered ATR bands.",
			DefaultParams: map[string]float64{
				"ema_period": 20,
				"atr_period": 14,
				"multiplier": 2.0,
			},
		},
		IntParams: []string{"ema_period", "atr_period"},
		Validate: func(p Params) error {
			if p["multiplier"] <= 0 {
				return domain.InvalidParams("multiplier must be positive, got %v", p["multiplier"])
			}
			return nil
		},
		Run: func(bars domain.Series, p Params) (*Result, error) {
			mid, upper, lower := indicators.Keltner(bars, p.Int("ema_period"), p.Int("atr_period"), p.F("multiplier"))

			em := newEmitter(bars)
			for i := 1; i < len(bars); i++ {
				if !def(upper[i]) || !def(upper[i-1]) {
					continue
				}
				if bars[i].Close > upper[i] && bars[i-1].Close <= upper[i-1] {
					em.buy(i, "")
				} else if bars[i].Close < lower[i] && bars[i-1].Close >= lower[i-1] {
					em.sell(i, "")
				}
			}
			return &Result{
				Signals: em.list(),
				IndicatorData: channels(map[string][]float64{
					"kc_upper": upper, "kc_middle": mid, "kc_lower": lower,
				}),
				Output: volatilityOutput(indicators.ATR(bars, p.Int("atr_period"))),
			}, nil
		},
	}
}
