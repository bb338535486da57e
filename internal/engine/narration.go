package engine

import (
	"fmt"

	"github.com/stratrun/stratrun/internal/domain"
	"github.com/stratrun/stratrun/internal/safejson"
	"github.com/stratrun/stratrun/internal/strategy"
)

// script describes the two indicator-narration steps of the six-step
// sequence for strategies with a custom narration. The loading, scanning,
// risk and completion steps are shared.
type script struct {
	primary     func(p strategy.Params) (title, detail string)
	primaryCh   []string
	secondary   func(p strategy.Params) (title, detail string)
	secondaryCh []string
	scanTitle   string
}

var customScripts = map[string]script{
	"ma_crossover": {
		primary: func(p strategy.Params) (string, string) {
			n := p.Int("fast_period")
			return fmt.Sprintf("Computing Fast SMA(%d)", n),
				fmt.Sprintf("Smoothing price with %d-period simple moving average", n)
		},
		primaryCh: []string{"fast_sma"},
		secondary: func(p strategy.Params) (string, string) {
			n := p.Int("slow_period")
			return fmt.Sprintf("Computing Slow SMA(%d)", n),
				fmt.Sprintf("Establishing trend baseline with %d-period SMA", n)
		},
		secondaryCh: []string{"slow_sma"},
		scanTitle:   "Scanning Crossover Points",
	},
	"ema_strategy": {
		primary: func(p strategy.Params) (string, string) {
			n := p.Int("fast_period")
			return fmt.Sprintf("Computing Fast EMA(%d)", n),
				fmt.Sprintf("Exponential weighting with span=%d", n)
		},
		primaryCh: []string{"fast_ema"},
		secondary: func(p strategy.Params) (string, string) {
			n := p.Int("slow_period")
			return fmt.Sprintf("Computing Slow EMA(%d)", n),
				fmt.Sprintf("Trend baseline with span=%d", n)
		},
		secondaryCh: []string{"slow_ema"},
		scanTitle:   "Scanning Crossover Points",
	},
	"macd_signal": {
		primary: func(p strategy.Params) (string, string) {
			return "Computing MACD Line",
				fmt.Sprintf("Fast EMA(%d) minus slow EMA(%d)", p.Int("fast"), p.Int("slow"))
		},
		primaryCh: []string{"macd"},
		secondary: func(p strategy.Params) (string, string) {
			return fmt.Sprintf("Computing Signal Line(%d)", p.Int("signal")),
				"Smoothing MACD into the trigger line"
		},
		secondaryCh: []string{"signal", "histogram"},
		scanTitle:   "Scanning Signal Crossovers",
	},
	"rsi_strategy": {
		primary: func(p strategy.Params) (string, string) {
			n := p.Int("period")
			return fmt.Sprintf("Computing RSI(%d)", n),
				fmt.Sprintf("Wilder-smoothed gain/loss ratio over %d bars", n)
		},
		primaryCh: []string{"rsi"},
		secondary: func(p strategy.Params) (string, string) {
			return "Computing Threshold Bands",
				fmt.Sprintf("Oversold below %.0f, overbought above %.0f", p.F("oversold"), p.F("overbought"))
		},
		scanTitle: "Scanning Threshold Crossings",
	},
	"stochastic": {
		primary: func(p strategy.Params) (string, string) {
			n := p.Int("k_period")
			return "Computing %K Line",
				fmt.Sprintf("Close position within the %d-bar high/low range", n)
		},
		primaryCh: []string{"stoch_k"},
		secondary: func(p strategy.Params) (string, string) {
			n := p.Int("d_period")
			return "Computing %D Line",
				fmt.Sprintf("%d-period smoothing of %%K", n)
		},
		secondaryCh: []string{"stoch_d"},
		scanTitle:   "Scanning Zone Crossovers",
	},
	"bollinger_reversion": {
		primary: func(p strategy.Params) (string, string) {
			n := p.Int("period")
			return "Computing Middle Band",
				fmt.Sprintf("%d-period moving average of closes", n)
		},
		primaryCh: []string{"bb_middle"},
		secondary: func(p strategy.Params) (string, string) {
			return "Computing Band Envelope",
				fmt.Sprintf("Mid ± %.1f standard deviations", p.F("std_dev"))
		},
		secondaryCh: []string{"bb_upper", "bb_lower"},
		scanTitle:   "Scanning Band Touches",
	},
	"atr_breakout": {
		primary: func(p strategy.Params) (string, string) {
			return "Computing True Range", "Per-bar range against the prior close"
		},
		secondary: func(p strategy.Params) (string, string) {
			n := p.Int("period")
			return fmt.Sprintf("Computing ATR(%d)", n),
				fmt.Sprintf("Wilder smoothing over %d true ranges", n)
		},
		secondaryCh: []string{"atr"},
		scanTitle:   "Scanning Breakout Bars",
	},
	"kalman_filter": {
		primary: func(p strategy.Params) (string, string) {
			return "Computing Filter Estimate",
				fmt.Sprintf("Recursive update with q=%.3g r=%.3g", p.F("process_noise"), p.F("measurement_noise"))
		},
		primaryCh: []string{"kalman"},
		secondary: func(p strategy.Params) (string, string) {
			return "Computing Velocity", "Per-step change of the state estimate"
		},
		secondaryCh: []string{"velocity"},
		scanTitle:   "Scanning Velocity Reversals",
	},
	"lstm_proxy": {
		primary: func(p strategy.Params) (string, string) {
			return "Computing Feature Set", "Normalizing RSI, MACD and band position"
		},
		secondary: func(p strategy.Params) (string, string) {
			return "Computing Composite Score",
				fmt.Sprintf("EMA(%d) smoothing of the weighted blend", p.Int("lookback"))
		},
		secondaryCh: []string{"ml_composite"},
		scanTitle:   "Scanning Score Crossings",
	},
	"gbm_proxy": {
		primary: func(p strategy.Params) (string, string) {
			return "Computing Feature Set", "Clipping momentum, reversion and volume features"
		},
		secondary: func(p strategy.Params) (string, string) {
			return "Computing Boosted Score", "Short EMA over the feature score"
		},
		secondaryCh: []string{"gbm_score"},
		scanTitle:   "Scanning Score Crossings",
	},
}

// buildScript assembles the full event sequence for one finished run:
// the six-step narration for strategies with a custom script, or the
// four-step generic fallback.
func buildScript(key string, p *prepared, res *strategy.Result, metrics domain.Metrics) []StepEvent {
	if sc, ok := customScripts[key]; ok {
		return sixSteps(sc, p, res, metrics)
	}
	return genericSteps(p, res, metrics)
}

func sixSteps(sc script, p *prepared, res *strategy.Result, metrics domain.Metrics) []StepEvent {
	titleA, detailA := sc.primary(p.params)
	titleB, detailB := sc.secondary(p.params)
	buys, sells := countSides(res.Signals)

	return []StepEvent{
		{Step: 1, Total: 6, Title: "Loading Market Data",
			Detail: fmt.Sprintf("%d bars loaded for analysis", len(p.bars)), Progress: 10},
		{Step: 2, Total: 6, Title: titleA, Detail: detailA, Progress: 30,
			Indicator: pick(res.IndicatorData, sc.primaryCh)},
		{Step: 3, Total: 6, Title: titleB, Detail: detailB, Progress: 50,
			Indicator: pick(res.IndicatorData, sc.secondaryCh)},
		{Step: 4, Total: 6, Title: sc.scanTitle,
			Detail:   fmt.Sprintf("Detected %d bullish and %d bearish signals", buys, sells),
			Progress: 70, Signals: res.Signals},
		{Step: 5, Total: 6, Title: "Computing Risk Metrics",
			Detail: metricsDetail(metrics), Progress: 90},
		finalStep(6, 6, p, res, metrics),
	}
}

func genericSteps(p *prepared, res *strategy.Result, metrics domain.Metrics) []StepEvent {
	return []StepEvent{
		{Step: 1, Total: 4, Title: "Loading Market Data",
			Detail: fmt.Sprintf("%d bars loaded for analysis", len(p.bars)), Progress: 10},
		{Step: 2, Total: 4, Title: "Applying Strategy",
			Detail:   fmt.Sprintf("%d signals detected", len(res.Signals)),
			Progress: 50, Signals: res.Signals},
		{Step: 3, Total: 4, Title: "Computing Risk Metrics",
			Detail: metricsDetail(metrics), Progress: 90},
		finalStep(4, 4, p, res, metrics),
	}
}

func finalStep(step, total int, p *prepared, res *strategy.Result, metrics domain.Metrics) StepEvent {
	m := metrics
	return StepEvent{
		Step: step, Total: total, Title: "Analysis Complete",
		Detail:        fmt.Sprintf("%d signals generated", len(res.Signals)),
		Progress:      100,
		Final:         true,
		Signals:       res.Signals,
		Metrics:       &m,
		IndicatorData: res.IndicatorData,
		OutputType:    res.Output.Type,
		Output:        res.Output.Value,
		Disclaimer:    domain.Disclaimer,
	}
}

func metricsDetail(m domain.Metrics) string {
	return fmt.Sprintf("Sharpe %s | Win Rate %s | Max DD %s",
		fmtRatio(m.Sharpe, "%.3f"), fmtPct(m.WinRate), fmtRatio(m.MaxDrawdownPct, "%.1f%%"))
}

func fmtRatio(v *safejson.Float, format string) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf(format, float64(*v))
}

func fmtPct(v *safejson.Float) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.0f%%", float64(*v)*100)
}

func countSides(signals []domain.Signal) (buys, sells int) {
	for _, s := range signals {
		switch s.Side {
		case domain.SideBuy:
			buys++
		case domain.SideSell:
			sells++
		}
	}
	return buys, sells
}

func pick(data domain.IndicatorData, names []string) domain.IndicatorData {
	if len(names) == 0 {
		return nil
	}
	out := make(domain.IndicatorData, len(names))
	for _, name := range names {
		if ch, ok := data[name]; ok {
			out[name] = ch
		}
	}
	return out
}
