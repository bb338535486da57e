package strategy

import (
	"math"

	"github.com/stratrun/stratrun/internal/domain"
	"github.com/stratrun/stratrun/internal/indicators"
	"github.com/stratrun/stratrun/internal/safejson"
)

// mlOutput reports the last composite score as a prediction plus the
// normalized feature weights in [0,1].
func mlOutput(score []float64, weights map[string]float64) domain.Output {
	v, ok := lastDefined(score)
	prediction := "FLAT"
	conf := math.NaN()
	if ok {
		if v > 0.02 {
			prediction = "LONG"
		} else if v < -0.02 {
			prediction = "SHORT"
		}
		conf = clamp(math.Abs(v)*10, 0, 1)
	}
	features := make(map[string]safejson.Float, len(weights))
	for name, w := range weights {
		features[name] = safejson.Float(w)
	}
	return domain.Output{Type: "ml", Value: domain.MLOutput{
		Prediction:      prediction,
		ConfidenceScore: safejson.Float(round(conf, 3)),
		Features:        features,
	}}
}

// lstmProxy is a deterministic stand-in for a sequence model: a weighted
// blend of normalized RSI, MACD and Bollinger position, smoothed with an
// EMA over the lookback window.
func lstmProxy() *Strategy {
	return &Strategy{
		Descriptor: domain.StrategyDescriptor{
			Key:         "lstm_proxy",
			DisplayName: "LSTM Proxy",
			Category:    domain.CategoryMLProxy,
			Description: "Smoothed composite of momentum and mean-reversion features traded on score crossings.",
			DefaultParams: map[string]float64{
				"lookback": 30,
			},
		},
		IntParams: []string{"lookback"},
		Run: func(bars domain.Series, p Params) (*Result, error) {
			closes := bars.Closes()
			rsi := indicators.RSI(closes, 14)
			macd, _, _ := indicators.MACD(closes, 12, 26, 9)
			_, bbUpper, bbLower := indicators.Bollinger(closes, 20, 2.0)

			composite := make([]float64, len(bars))
			for i := range bars {
				composite[i] = math.NaN()
				if !def(rsi[i]) || !def(macd[i]) || !def(bbUpper[i]) || closes[i] == 0 {
					continue
				}
				pctB := 0.5
				if bbUpper[i] != bbLower[i] {
					pctB = (closes[i] - bbLower[i]) / (bbUpper[i] - bbLower[i])
				}
				composite[i] = (rsi[i]/100-0.5)*0.3 + (macd[i]/closes[i])*0.4 + (pctB-0.5)*0.3
			}
			score := indicators.EMASeries(composite, p.Int("lookback"))

			em := newEmitter(bars)
			for i := range bars {
				if risesThrough(score, i, 0.05) {
					em.buy(i, "")
				} else if fallsThrough(score, i, -0.05) {
					em.sell(i, "")
				}
			}
			return &Result{
				Signals:       em.list(),
				IndicatorData: channels(map[string][]float64{"ml_composite": score}),
				Output: mlOutput(score, map[string]float64{
					"rsi": 0.3, "macd": 0.4, "bollinger": 0.3,
				}),
			}, nil
		},
	}
}

// gbmProxy mimics a gradient-boosted classifier with a hand-built score
// over clipped momentum, mean-reversion and volume features.
func gbmProxy() *Strategy {
	return &Strategy{
		Descriptor: domain.StrategyDescriptor{
			Key:         "gbm_proxy",
			DisplayName: "Gradient Boosting Proxy",
			Category:    domain.CategoryMLProxy,
			Description: "Clipped feature score with a short EMA, traded on score crossings.",
			DefaultParams: map[string]float64{
				"lookback": 20,
			},
		},
		IntParams: []string{"lookback"},
		Run: func(bars domain.Series, p Params) (*Result, error) {
			n := p.Int("lookback")
			closes := bars.Closes()
			rsi := indicators.RSI(closes, 14)
			sma := indicators.SMA(closes, n)
			volRatio := indicators.VolumeRatio(bars.Volumes(), n)

			clip := func(v, lim float64) float64 { return clamp(v, -lim, lim) }
			raw := make([]float64, len(bars))
			for i := range bars {
				raw[i] = math.NaN()
				if i < n || !def(rsi[i]) || !def(sma[i]) || closes[i-n] == 0 || sma[i] == 0 {
					continue
				}
				momentum := closes[i]/closes[i-n] - 1
				meanRev := (closes[i] - sma[i]) / sma[i]
				vr := 0.0
				if def(volRatio[i]) {
					vr = volRatio[i] - 1
				}
				raw[i] = (rsi[i]/100-0.5)*0.2 +
					clip(momentum, 0.1)*2 -
					clip(meanRev, 0.05)*3 +
					clip(vr, 1)*0.1
			}
			score := indicators.EMASeries(raw, 5)

			em := newEmitter(bars)
			for i := range bars {
				if risesThrough(score, i, 0.03) {
					em.buy(i, "")
				} else if fallsThrough(score, i, -0.03) {
					em.sell(i, "")
				}
			}
			return &Result{
				Signals:       em.list(),
				IndicatorData: channels(map[string][]float64{"gbm_score": score}),
				Output: mlOutput(score, map[string]float64{
					"rsi": 0.04, "momentum": 0.38, "mean_reversion": 0.57, "volume": 0.02,
				}),
			}, nil
		},
	}
}
