package http

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratrun/stratrun/internal/domain"
	"github.com/stratrun/stratrun/internal/engine"
	"github.com/stratrun/stratrun/internal/strategy"
)

type fakeProvider struct {
	bars    domain.Series
	histErr error
	quote   *domain.Quote
}

func (f *fakeProvider) History(ctx context.Context, ticker, period, interval string) (domain.Series, error) {
	if f.histErr != nil {
		return nil, f.histErr
	}
	return f.bars, nil
}

func (f *fakeProvider) Quote(ctx context.Context, ticker string) (*domain.Quote, error) {
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

func newTestServer(p *fakeProvider, cfg ServerConfig) *Server {
	runner := engine.NewRunner(strategy.NewRegistry(), p, nil)
	streamer := engine.NewStreamer(runner)
	streamer.StepDelay = 0
	return NewServer(cfg, runner, streamer, nil, nil)
}

func doJSON(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) (kind, message string) {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error.Kind, body.Error.Message
}

func TestStrategiesEndpoint(t *testing.T) {
	s := newTestServer(&fakeProvider{bars: trendBars(120)}, DefaultServerConfig())
	rec := doJSON(t, s, "GET", "/quant/strategies", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var list []domain.StrategyDescriptor
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 20)
}

func TestRunEndpoint(t *testing.T) {
	s := newTestServer(&fakeProvider{bars: trendBars(120)}, DefaultServerConfig())
	rec := doJSON(t, s, "POST", "/quant/run", `{"ticker":"AAPL","strategy":"ma_crossover"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var res engine.RunResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "AAPL", res.Ticker)
	assert.Equal(t, domain.Disclaimer, res.Disclaimer)
}

func TestRunUnknownStrategyIs400(t *testing.T) {
	s := newTestServer(&fakeProvider{bars: trendBars(120)}, DefaultServerConfig())
	rec := doJSON(t, s, "POST", "/quant/run", `{"ticker":"AAPL","strategy":"nope"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	kind, _ := decodeError(t, rec)
	assert.Equal(t, "unknown_strategy", kind)
}

func TestRunMalformedBodyIs400(t *testing.T) {
	s := newTestServer(&fakeProvider{bars: trendBars(120)}, DefaultServerConfig())
	rec := doJSON(t, s, "POST", "/quant/run", `{"ticker":`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	kind, _ := decodeError(t, rec)
	assert.Equal(t, "invalid_params", kind)
}

func TestRunEmptyHistoryIs404(t *testing.T) {
	s := newTestServer(&fakeProvider{}, DefaultServerConfig())
	rec := doJSON(t, s, "POST", "/quant/run", `{"ticker":"NOPE","strategy":"ma_crossover"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
	kind, _ := decodeError(t, rec)
	assert.Equal(t, "data_unavailable", kind)
}

func TestRunRetryableProviderFailureIs502(t *testing.T) {
	s := newTestServer(&fakeProvider{
		histErr: domain.DataUnavailable(true, nil, "upstream down"),
	}, DefaultServerConfig())
	rec := doJSON(t, s, "POST", "/quant/run", `{"ticker":"AAPL","strategy":"ma_crossover"}`)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	kind, _ := decodeError(t, rec)
	assert.Equal(t, "data_unavailable", kind)
}

func TestBacktestEndpoint(t *testing.T) {
	s := newTestServer(&fakeProvider{bars: trendBars(120)}, DefaultServerConfig())
	rec := doJSON(t, s, "POST", "/quant/backtest",
		`{"ticker":"AAPL","strategy":"ma_crossover","initial_capital":50000}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var res engine.BacktestResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.EqualValues(t, 50000, res.InitialCapital)
	assert.Len(t, res.EquityCurve, 120)
}

func TestInsightDisabledIs503(t *testing.T) {
	s := newTestServer(&fakeProvider{bars: trendBars(120)}, DefaultServerConfig())
	rec := doJSON(t, s, "POST", "/quant/ai-insight", `{"ticker":"AAPL","strategy":"ma_crossover"}`)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	kind, _ := decodeError(t, rec)
	assert.Equal(t, "insight_disabled", kind)
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(&fakeProvider{}, DefaultServerConfig())
	rec := doJSON(t, s, "GET", "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestNotFoundEndpoint(t *testing.T) {
	s := newTestServer(&fakeProvider{}, DefaultServerConfig())
	rec := doJSON(t, s, "GET", "/nope", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	kind, _ := decodeError(t, rec)
	assert.Equal(t, "not_found", kind)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(&fakeProvider{}, DefaultServerConfig())
	req := httptest.NewRequest("OPTIONS", "/quant/strategies", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
}

func TestRateLimiting(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.RateLimitRPS = 1
	cfg.RateLimitBurst = 2
	s := newTestServer(&fakeProvider{bars: trendBars(120)}, cfg)

	assert.Equal(t, http.StatusOK, doJSON(t, s, "GET", "/quant/strategies", "").Code)
	assert.Equal(t, http.StatusOK, doJSON(t, s, "GET", "/quant/strategies", "").Code)

	rec := doJSON(t, s, "GET", "/quant/strategies", "")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	kind, _ := decodeError(t, rec)
	assert.Equal(t, "rate_limited", kind)

	// health stays reachable under pressure
	assert.Equal(t, http.StatusOK, doJSON(t, s, "GET", "/health", "").Code)
}

func TestStreamRunSSE(t *testing.T) {
	s := newTestServer(&fakeProvider{bars: trendBars(120)}, DefaultServerConfig())
	rec := doJSON(t, s, "GET", "/quant/stream/run?ticker=AAPL&strategy=ma_crossover", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.Equal(t, 5, strings.Count(body, "event: step\n"))
	assert.Equal(t, 1, strings.Count(body, "event: complete\n"))
	assert.Contains(t, body, "Loading Market Data")
	assert.Contains(t, body, "Analysis Complete")
}

func TestStreamRunSSEError(t *testing.T) {
	s := newTestServer(&fakeProvider{bars: trendBars(120)}, DefaultServerConfig())
	rec := doJSON(t, s, "GET", "/quant/stream/run?ticker=AAPL&strategy=nope", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "event: error\n")
	assert.Contains(t, rec.Body.String(), "unknown_strategy")
}

func TestStreamRunBadParamsJSON(t *testing.T) {
	s := newTestServer(&fakeProvider{bars: trendBars(120)}, DefaultServerConfig())
	rec := doJSON(t, s, "GET", "/quant/stream/run?ticker=AAPL&strategy=ma_crossover&params=notjson", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
