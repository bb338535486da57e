package engine

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratrun/stratrun/internal/domain"
	"github.com/stratrun/stratrun/internal/strategy"
)

// fakeProvider serves canned history and quotes.
type fakeProvider struct {
	bars     domain.Series
	histErr  error
	quote    *domain.Quote
	quoteErr error
}

func (f *fakeProvider) History(ctx context.Context, ticker, period, interval string) (domain.Series, error) {
	if f.histErr != nil {
		return nil, f.histErr
	}
	return f.bars, nil
}

func (f *fakeProvider) Quote(ctx context.Context, ticker string) (*domain.Quote, error) {
	if f.quoteErr != nil {
		return nil, f.quoteErr
	}
	return f.quote, nil
}

func trendBars(n int) domain.Series {
	bars := make(domain.Series, n)
	prev := 100.0
	for i := 0; i < n; i++ {
		c := 100 + 12*math.Sin(float64(i)/6) + float64(i)*0.05
		bars[i] = domain.Bar{
			Timestamp: int64(i+1) * 86400,
			Open:      prev,
			High:      math.Max(prev, c) + 0.5,
			Low:       math.Min(prev, c) - 0.5,
			Close:     c,
			Volume:    1_000_000,
		}
		prev = c
	}
	return bars
}

func newTestRunner(p *fakeProvider) *Runner {
	return NewRunner(strategy.NewRegistry(), p, nil)
}

func TestRunHappyPath(t *testing.T) {
	r := newTestRunner(&fakeProvider{bars: trendBars(120)})
	res, err := r.Run(context.Background(), RunRequest{
		Ticker:   "AAPL",
		Strategy: "ma_crossover",
		Params:   map[string]any{"fast_period": 5, "slow_period": 15},
	})
	require.NoError(t, err)
	assert.Equal(t, "AAPL", res.Ticker)
	assert.Equal(t, "ma_crossover", res.Strategy)
	assert.NotNil(t, res.Signals)
	assert.Equal(t, "trend", res.OutputType)
	assert.Equal(t, domain.Disclaimer, res.Disclaimer)
	assert.Contains(t, res.IndicatorData, "fast_sma")
}

func TestRunUnknownStrategy(t *testing.T) {
	r := newTestRunner(&fakeProvider{bars: trendBars(50)})
	_, err := r.Run(context.Background(), RunRequest{Ticker: "AAPL", Strategy: "nope"})
	require.Error(t, err)
	assert.Equal(t, domain.KindUnknownStrategy, domain.KindOf(err))
}

func TestRunBadWindow(t *testing.T) {
	r := newTestRunner(&fakeProvider{bars: trendBars(50)})
	_, err := r.Run(context.Background(), RunRequest{
		Ticker: "AAPL", Strategy: "ma_crossover", Period: "7mo",
	})
	require.Error(t, err)
	assert.Equal(t, domain.KindInvalidParams, domain.KindOf(err))
}

func TestRunEmptyHistory(t *testing.T) {
	r := newTestRunner(&fakeProvider{})
	_, err := r.Run(context.Background(), RunRequest{Ticker: "NOPE", Strategy: "ma_crossover"})
	require.Error(t, err)
	assert.Equal(t, domain.KindDataUnavailable, domain.KindOf(err))
	assert.False(t, domain.IsRetryable(err))
}

func TestRunProviderFailurePropagates(t *testing.T) {
	r := newTestRunner(&fakeProvider{
		histErr: domain.DataUnavailable(true, nil, "upstream down"),
	})
	_, err := r.Run(context.Background(), RunRequest{Ticker: "AAPL", Strategy: "ma_crossover"})
	require.Error(t, err)
	assert.Equal(t, domain.KindDataUnavailable, domain.KindOf(err))
	assert.True(t, domain.IsRetryable(err))
}

func TestBacktestDefaultsCapital(t *testing.T) {
	r := newTestRunner(&fakeProvider{bars: trendBars(120)})
	res, err := r.Backtest(context.Background(), BacktestRequest{
		RunRequest: RunRequest{Ticker: "AAPL", Strategy: "ma_crossover"},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 100000, res.InitialCapital)
	assert.Len(t, res.EquityCurve, 120)
	assert.Equal(t, domain.Disclaimer, res.Disclaimer)
}

func TestBacktestRejectsBadSizing(t *testing.T) {
	r := newTestRunner(&fakeProvider{bars: trendBars(120)})
	_, err := r.Backtest(context.Background(), BacktestRequest{
		RunRequest:   RunRequest{Ticker: "AAPL", Strategy: "ma_crossover"},
		SizeFraction: 2,
	})
	require.Error(t, err)
	assert.Equal(t, domain.KindInvalidParams, domain.KindOf(err))
}

func TestQuoteProxy(t *testing.T) {
	want := &domain.Quote{Ticker: "AAPL", Price: 123.45}
	r := newTestRunner(&fakeProvider{quote: want})
	got, err := r.Quote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	r = newTestRunner(&fakeProvider{})
	_, err = r.Quote(context.Background(), "AAPL")
	require.Error(t, err)
	assert.Equal(t, domain.KindDataUnavailable, domain.KindOf(err))
}
