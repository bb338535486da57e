package strategy

import (
	"math"

	"github.com/stratrun/stratrun/internal/domain"
	"github.com/stratrun/stratrun/internal/indicators"
	"github.com/stratrun/stratrun/internal/safejson"
)

func meanReversionOutput(close float64, mid, upper, lower []float64) domain.Output {
	m, okM := lastDefined(mid)
	u, okU := lastDefined(upper)
	l, okL := lastDefined(lower)
	dist, pos, bandwidth := math.NaN(), math.NaN(), math.NaN()
	if okM && okU && okL {
		if u != m {
			dist = clamp((close-m)/(u-m), -1, 1)
		}
		if u != l {
			pos = clamp((close-l)/(u-l), 0, 1)
		}
		if m != 0 {
			bandwidth = (u - l) / m * 100
		}
	}
	return domain.Output{Type: "mean_reversion", Value: domain.MeanReversionOutput{
		DistanceFromMean: safejson.Float(round(dist, 3)),
		BandwidthPct:     safejson.Float(round(bandwidth, 2)),
		Position:         safejson.Float(round(pos, 3)),
	}}
}

func bollingerReversion() *Strategy {
	return &Strategy{
		Descriptor: domain.StrategyDescriptor{
			Key:         "bollinger_reversion",
			DisplayName: "Bollinger Bands Reversion",
			Category:    domain.CategoryMeanReversion,
			Description: "Fades band touches: buys the lower band, sells the upper.",
			DefaultParams: map[string]float64{
				"period":  20,
				"std_dev": 2.0,
			},
		},
		IntParams: []string{"period"},
		Validate: func(p Params) error {
			if p["std_dev"] <= 0 {
				return domain.InvalidParams("std_dev must be positive, got %v", p["std_dev"])
			}
			return nil
		},
		Run: func(bars domain.Series, p Params) (*Result, error) {
			mid, upper, lower := indicators.Bollinger(bars.Closes(), p.Int("period"), p.F("std_dev"))

			em := newEmitter(bars)
			for i := 1; i < len(bars); i++ {
				if !def(upper[i]) || !def(upper[i-1]) {
					continue
				}
				if bars[i].Close <= lower[i] && bars[i-1].Close > lower[i-1] {
					em.buy(i, "")
				} else if bars[i].Close >= upper[i] && bars[i-1].Close < upper[i-1] {
					em.sell(i, "")
				}
			}
			return &Result{
				Signals: em.list(),
				IndicatorData: channels(map[string][]float64{
					"bb_upper": upper, "bb_middle": mid, "bb_lower": lower,
				}),
				Output: meanReversionOutput(bars[len(bars)-1].Close, mid, upper, lower),
			}, nil
		},
	}
}

func zscoreReversion() *Strategy {
	return &Strategy{
		Descriptor: domain.StrategyDescriptor{
			Key:         "zscore_reversion",
			DisplayName: "Z-Score Reversion",
			Category:    domain.CategoryMeanReversion,
			Description: "Buys once a deep negative z-score starts reverting, sells the positive mirror.",
			DefaultParams: map[string]float64{
				"period":    20,
				"threshold": 2.0,
			},
		},
		IntParams: []string{"period"},
		Validate: func(p Params) error {
			if p["threshold"] <= 0 {
				return domain.InvalidParams("threshold must be positive, got %v", p["threshold"])
			}
			return nil
		},
		Run: func(bars domain.Series, p Params) (*Result, error) {
			z := indicators.ZScore(bars.Closes(), p.Int("period"))
			th := p.F("threshold")

			// armed once the score exceeds the threshold; the signal
			// fires on the first bar it pulls back inside
			em := newEmitter(bars)
			armedLow, armedHigh := false, false
			for i := range bars {
				if !def(z[i]) {
					continue
				}
				switch {
				case z[i] <= -th:
					armedLow = true
				case armedLow && z[i] > -th:
					em.buy(i, "")
					armedLow = false
				}
				switch {
				case z[i] >= th:
					armedHigh = true
				case armedHigh && z[i] < th:
					em.sell(i, "")
					armedHigh = false
				}
			}
			mid := indicators.SMA(bars.Closes(), p.Int("period"))
			std := indicators.StdDev(bars.Closes(), p.Int("period"))
			upper := make([]float64, len(bars))
			lower := make([]float64, len(bars))
			for i := range bars {
				upper[i] = mid[i] + th*std[i]
				lower[i] = mid[i] - th*std[i]
			}
			return &Result{
				Signals:       em.list(),
				IndicatorData: channels(map[string][]float64{"zscore": z}),
				Output:        meanReversionOutput(bars[len(bars)-1].Close, mid, upper, lower),
			}, nil
		},
	}
}

func vwapReversion() *Strategy {
	return &Strategy{
		Descriptor: domain.StrategyDescriptor{
			Key:         "vwap_reversion",
			DisplayName: "VWAP Reversion",
			Category:    domain.CategoryMeanReversion,
			Description: "Trades the snap-back to VWAP after price stretches beyond the deviation band.",
			DefaultParams: map[string]float64{
				"deviation_pct": 2.0,
			},
		},
		Validate: func(p Params) error {
			if p["deviation_pct"] <= 0 {
				return domain.InvalidParams("deviation_pct must be positive, got %v", p["deviation_pct"])
			}
			return nil
		},
		Run: func(bars domain.Series, p Params) (*Result, error) {
			vwap := indicators.VWAP(bars)
			dev := p.F("deviation_pct") / 100

			em := newEmitter(bars)
			armedLow, armedHigh := false, false
			for i, b := range bars {
				if !def(vwap[i]) {
					continue
				}
				if b.Close < vwap[i]*(1-dev) {
					armedLow = true
				} else if armedLow && b.Close > vwap[i] {
					em.buy(i, "")
					armedLow = false
				}
				if b.Close > vwap[i]*(1+dev) {
					armedHigh = true
				} else if armedHigh && b.Close < vwap[i] {
					em.sell(i, "")
					armedHigh = false
				}
			}
			upper := make([]float64, len(bars))
			lower := make([]float64, len(bars))
			for i := range bars {
				upper[i] = vwap[i] * (1 + dev)
				lower[i] = vwap[i] * (1 - dev)
			}
			return &Result{
				Signals:       em.list(),
				IndicatorData: channels(map[string][]float64{"vwap": vwap}),
				Output:        meanReversionOutput(bars[len(bars)-1].Close, vwap, upper, lower),
			}, nil
		},
	}
}
