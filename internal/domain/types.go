// Package domain holds the data model shared by the strategy engine:
// bars, signals, metrics, backtest results and the category outputs
// rendered by the terminal UI.
package domain

import (
	"time"

	"github.com/stratrun/stratrun/internal/safejson"
)

// Bar is a single OHLCV observation. Timestamps are UTC seconds and must
// be strictly increasing within a series; gaps are allowed but never
// interpolated.
type Bar struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// Series is an ordered bar sequence for one (ticker, period, interval).
type Series []Bar

// Closes extracts the close channel.
func (s Series) Closes() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.Close
	}
	return out
}

// Volumes extracts the volume channel.
func (s Series) Volumes() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.Volume
	}
	return out
}

// Quote is a point-in-time snapshot from the market-data provider.
type Quote struct {
	Ticker        string  `json:"ticker"`
	Price         float64 `json:"price"`
	PreviousClose float64 `json:"previous_close"`
	DayHigh       float64 `json:"day_high"`
	DayLow        float64 `json:"day_low"`
	Volume        float64 `json:"volume"`
	Timestamp     int64   `json:"timestamp"`
}

// Side is a discrete trade recommendation.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
	// SideClose marks the forced terminal exit a backtest appends when a
	// position is still open at the last bar.
	SideClose Side = "CLOSE"
)

// Signal anchors a recommendation to a bar close. Signals are emitted in
// timestamp order with no duplicates at the same timestamp.
type Signal struct {
	Timestamp int64   `json:"timestamp"`
	Side      Side    `json:"side"`
	Price     float64 `json:"price"`
	Label     string  `json:"label,omitempty"`
}

// Category groups strategies for the UI.
type Category string

const (
	CategoryTrend          Category = "Trend"
	CategoryMomentum       Category = "Momentum"
	CategoryMeanReversion  Category = "MeanReversion"
	CategoryVolatility     Category = "Volatility"
	CategoryMicrostructure Category = "MarketMicrostructure"
	CategoryStatistical    Category = "Statistical"
	CategoryMLProxy        Category = "MLProxy"
)

// StrategyDescriptor is the registry metadata for one strategy. Keys are
// stable identifiers; renaming a key is a breaking change.
type StrategyDescriptor struct {
	Key           string             `json:"key"`
	DisplayName   string             `json:"display_name"`
	Category      Category           `json:"category"`
	Description   string             `json:"description"`
	DefaultParams map[string]float64 `json:"default_params"`
}

// RiskLabel buckets drawdown exposure.
type RiskLabel string

const (
	RiskLow      RiskLabel = "Low"
	RiskModerate RiskLabel = "Moderate"
	RiskHigh     RiskLabel = "High"
)

// Metrics is the performance battery computed from signals and closes.
// Ratio fields are nil when no closed trade exists.
type Metrics struct {
	Sharpe               *safejson.Float `json:"sharpe"`
	MaxDrawdownPct       *safejson.Float `json:"max_drawdown_pct"`
	WinRate              *safejson.Float `json:"win_rate"`
	TotalTrades          int             `json:"total_trades"`
	ProfitFactor         *safejson.Float `json:"profit_factor"`
	AvgWin               *safejson.Float `json:"avg_win"`
	AvgLoss              *safejson.Float `json:"avg_loss"`
	RiskLabel            RiskLabel       `json:"risk_label"`
	Confidence           safejson.Float  `json:"confidence"`
	Verdict              string          `json:"verdict"`
	SuggestedPositionPct safejson.Float  `json:"suggested_position_pct"`
}

// EquityPoint is one mark-to-market sample of the simulated portfolio.
type EquityPoint struct {
	Timestamp     int64          `json:"time"`
	Value         safejson.Float `json:"value"`
	Cash          safejson.Float `json:"cash"`
	PositionValue safejson.Float `json:"position_value"`
}

// TradeRecord is one executed entry or exit in the backtest log.
type TradeRecord struct {
	Timestamp     int64          `json:"timestamp"`
	Side          Side           `json:"side"`
	Price         safejson.Float `json:"price"`
	Quantity      int64          `json:"quantity"`
	PnL           safejson.Float `json:"pnl"`
	CumulativePnL safejson.Float `json:"cumulative_pnl"`
}

// BacktestResult extends Metrics with the capital simulation artifacts.
// The equity curve has exactly one point per input bar.
type BacktestResult struct {
	Metrics        Metrics        `json:"metrics"`
	InitialCapital float64        `json:"initial_capital"`
	FinalValue     safejson.Float `json:"final_value"`
	TotalReturnPct safejson.Float `json:"total_return_pct"`
	EquityCurve    []EquityPoint  `json:"equity_curve"`
	TradeLog       []TradeRecord  `json:"trade_log"`
}

// IndicatorData maps channel names to index-aligned series. Every channel
// has the same length as the input bar sequence; holes marshal as null.
type IndicatorData map[string]safejson.FloatSlice

// Output is a category-tagged record summarizing posture at the last bar.
// Type selects which payload struct Value holds.
type Output struct {
	Type  string `json:"output_type"`
	Value any    `json:"output"`
}

// TrendOutput is the payload for output_type "trend".
type TrendOutput struct {
	Direction   string         `json:"direction"` // BULLISH, BEARISH, NEUTRAL
	StrengthPct safejson.Float `json:"strength_pct"`
	FastValue   safejson.Float `json:"fast_value"`
	SlowValue   safejson.Float `json:"slow_value"`
}

// MomentumOutput is the payload for output_type "momentum".
type MomentumOutput struct {
	Zone     string         `json:"zone"` // OVERSOLD, NEUTRAL, OVERBOUGHT
	RSIValue safejson.Float `json:"rsi_value"`
}

// MeanReversionOutput is the payload for output_type "mean_reversion".
type MeanReversionOutput struct {
	DistanceFromMean safejson.Float `json:"distance_from_mean"` // [-1,1]
	BandwidthPct     safejson.Float `json:"bandwidth_pct"`
	Position         safejson.Float `json:"position"` // [0,1]
}

// VolatilityOutput is the payload for output_type "volatility".
type VolatilityOutput struct {
	Regime       string         `json:"regime"` // LOW, NORMAL, HIGH
	CurrentATR   safejson.Float `json:"current_atr"`
	MedianATR    safejson.Float `json:"median_atr"`
	BreakoutProb safejson.Float `json:"breakout_prob"`
}

// MLOutput is the payload for output_type "ml".
type MLOutput struct {
	Prediction      string                    `json:"prediction"` // LONG, SHORT, FLAT
	ConfidenceScore safejson.Float            `json:"confidence_score"`
	Features        map[string]safejson.Float `json:"features"`
}

// StatisticalOutput is the payload for output_type "statistical".
type StatisticalOutput struct {
	FilterState    string         `json:"filter_state"`
	EstimatedPrice safejson.Float `json:"estimated_price"`
	Velocity       safejson.Float `json:"velocity"`
	Gain           safejson.Float `json:"gain"`
}

// GenericOutput is the payload for output_type "generic".
type GenericOutput struct {
	NetDirection string `json:"net_direction"`
	TotalSignals int    `json:"total_signals"`
}

// Disclaimer is stamped on every outward record carrying performance
// numbers. Fixed text, never generated.
const Disclaimer = "This analysis is algorithmically generated and does not constitute financial advice. " +
	"Past performance is not indicative of future results. All trading involves risk."

// BarsPerYear estimates the annualization base for a bar interval, used
// for Sharpe scaling. Unknown intervals fall back to daily.
func BarsPerYear(interval string) float64 {
	switch interval {
	case "1d":
		return 252
	case "1wk":
		return 52
	case "1mo":
		return 12
	case "1h", "60m", "90m":
		return 252 * 7
	case "30m":
		return 252 * 13
	case "15m":
		return 252 * 26
	case "5m":
		return 252 * 78
	case "2m":
		return 252 * 195
	case "1m":
		return 252 * 390
	default:
		return 252
	}
}

// UTCTime converts a bar timestamp to time.Time, for logging.
func UTCTime(ts int64) time.Time { return time.Unix(ts, 0).UTC() }
