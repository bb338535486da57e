package strategy

import (
	"math"

	"github.com/stratrun/stratrun/internal/domain"
	"github.com/stratrun/stratrun/internal/indicators"
	"github.com/stratrun/stratrun/internal/safejson"
)

func kalmanFilter() *Strategy {
	return &Strategy{
		Descriptor: domain.StrategyDescriptor{
			Key:         "kalman_filter",
			DisplayName: "Kalman Filter",
			Category:    domain.CategoryStatistical,
			Description: "Trades zero-crossings of the filtered price velocity.",
			DefaultParams: map[string]float64{
				"process_noise":     0.01,
				"measurement_noise": 1.0,
			},
		},
		Validate: func(p Params) error {
			if p["process_noise"] <= 0 || p["measurement_noise"] <= 0 {
				return domain.InvalidParams("noise parameters must be positive, got q=%v r=%v",
					p["process_noise"], p["measurement_noise"])
			}
			return nil
		},
		Run: func(bars domain.Series, p Params) (*Result, error) {
			q, r := p.F("process_noise"), p.F("measurement_noise")
			filtered, velocity := indicators.Kalman(bars.Closes(), q, r)

			em := newEmitter(bars)
			for i := range bars {
				if risesThrough(velocity, i, 0) {
					em.buy(i, "")
				} else if fallsThrough(velocity, i, 0) {
					em.sell(i, "")
				}
			}

			state := "DECELERATING"
			v, okV := lastDefined(velocity)
			if n := len(velocity); okV && n >= 2 && def(velocity[n-2]) &&
				math.Abs(v) > math.Abs(velocity[n-2]) {
				state = "ACCELERATING"
			}
			est, _ := lastDefined(filtered)
			return &Result{
				Signals:       em.list(),
				IndicatorData: channels(map[string][]float64{"kalman": filtered, "velocity": velocity}),
				Output: domain.Output{Type: "statistical", Value: domain.StatisticalOutput{
					FilterState:    state,
					EstimatedPrice: safejson.Float(round(est, 2)),
					Velocity:       safejson.Float(round(v, 4)),
					Gain:           safejson.Float(round(indicators.KalmanGain(q, r, 50), 4)),
				}},
			}, nil
		},
	}
}

func hmmRegime() *Strategy {
	return &Strategy{
		Descriptor: domain.StrategyDescriptor{
			Key:         "hmm_regime",
			DisplayName: "HMM Regime Detection",
			Category:    domain.CategoryStatistical,
			Description: "Buys on transitions into the bullish regime, sells on transitions into the bearish one.",
			DefaultParams: map[string]float64{
				"lookback": 30,
			},
		},
		IntParams: []string{"lookback"},
		Run: func(bars domain.Series, p Params) (*Result, error) {
			regime, vol := indicators.RegimeHMM(bars.Closes(), p.Int("lookback"))

			em := newEmitter(bars)
			for i := 1; i < len(bars); i++ {
				if !def(regime[i]) || !def(regime[i-1]) {
					continue
				}
				if regime[i] == 1 && regime[i-1] == -1 {
					em.buy(i, "Regime: Bullish")
				} else if regime[i] == -1 && regime[i-1] == 1 {
					em.sell(i, "Regime: Bearish")
				}
			}

			state := "NEUTRAL"
			if r, ok := lastDefined(regime); ok {
				if r == 1 {
					state = "BULLISH"
				} else {
					state = "BEARISH"
				}
			}
			lastVol, _ := lastDefined(vol)
			return &Result{
				Signals:       em.list(),
				IndicatorData: channels(map[string][]float64{"regime": regime, "volatility": vol}),
				Output: domain.Output{Type: "statistical", Value: domain.StatisticalOutput{
					FilterState:    state,
					EstimatedPrice: safejson.Float(round(bars[len(bars)-1].Close, 2)),
					Velocity:       safejson.Float(round(lastVol, 4)),
					Gain:           safejson.Float(math.NaN()),
				}},
			}, nil
		},
	}
}
