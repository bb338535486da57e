package strategy

import (
	"fmt"
	"math"

	"github.com/stratrun/stratrun/internal/domain"
	"github.com/stratrun/stratrun/internal/indicators"
)

func genericOutput(signals []domain.Signal) domain.Output {
	direction := "FLAT"
	if n := len(signals); n > 0 {
		if signals[n-1].Side == domain.SideBuy {
			direction = "LONG"
		} else {
			direction = "FLAT"
		}
	}
	return domain.Output{Type: "generic", Value: domain.GenericOutput{
		NetDirection: direction,
		TotalSignals: len(signals),
	}}
}

func volumeSpike() *Strategy {
	return &Strategy{
		Descriptor: domain.StrategyDescriptor{
			Key:         "volume_spike",
			DisplayName: "Volume Spike",
			Category:    domain.CategoryMicrostructure,
			Description: "Trades unusual volume in the direction of the bar.",
			DefaultParams: map[string]float64{
				"lookback":  20,
				"threshold": 2.0,
			},
		},
		IntParams: []string{"lookback"},
		Validate: func(p Params) error {
			if p["threshold"] <= 1 {
				return domain.InvalidParams("threshold must be above 1, got %v", p["threshold"])
			}
			return nil
		},
		Run: func(bars domain.Series, p Params) (*Result, error) {
			ratio := indicators.VolumeRatio(bars.Volumes(), p.Int("lookback"))
			th := p.F("threshold")

			em := newEmitter(bars)
			for i, b := range bars {
				if !def(ratio[i]) || ratio[i] <= th {
					continue
				}
				label := fmt.Sprintf("Volume %.1fx avg", ratio[i])
				if b.Close > b.Open {
					em.buy(i, label)
				} else if b.Close < b.Open {
					em.sell(i, label)
				}
			}
			return &Result{
				Signals:       em.list(),
				IndicatorData: channels(map[string][]float64{"volume_ratio": ratio}),
				Output:        genericOutput(em.list()),
			}, nil
		},
	}
}

func orderImbalance() *Strategy {
	return &Strategy{
		Descriptor: domain.StrategyDescriptor{
			Key:         "order_imbalance",
			DisplayName: "Order Flow Imbalance",
			Category:    domain.CategoryMicrostructure,
			Description: "Close-location imbalance smoothed and traded on threshold crossings.",
			DefaultParams: map[string]float64{
				"lookback":  10,
				"threshold": 0.6,
			},
		},
		IntParams: []string{"lookback"},
		Validate: func(p Params) error {
			if p["threshold"] <= 0 || p["threshold"] >= 1 {
				return domain.InvalidParams("threshold must be in (0,1), got %v", p["threshold"])
			}
			return nil
		},
		Run: func(bars domain.Series, p Params) (*Result, error) {
			// buying pressure proxy in [-1,1]: where the close sits in the
			// bar's range; a doji range is a hole
			raw := make([]float64, len(bars))
			for i, b := range bars {
				rng := b.High - b.Low
				if rng == 0 {
					raw[i] = math.NaN()
					continue
				}
				raw[i] = ((b.Close - b.Low) - (b.High - b.Close)) / rng
			}
			smoothed := indicators.SMASeries(raw, p.Int("lookback"))
			th := p.F("threshold")

			em := newEmitter(bars)
			for i := range bars {
				if risesThrough(smoothed, i, th) {
					em.buy(i, "")
				} else if fallsThrough(smoothed, i, -th) {
					em.sell(i, "")
				}
			}
			return &Result{
				Signals:       em.list(),
				IndicatorData: channels(map[string][]float64{"imbalance": smoothed}),
				Output:        genericOutput(em.list()),
			}, nil
		},
	}
}
