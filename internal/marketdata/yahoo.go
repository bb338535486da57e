package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/stratrun/stratrun/internal/domain"
)

// YahooConfig holds the chart API client configuration.
type YahooConfig struct {
	BaseURL        string
	RequestTimeout time.Duration
	UserAgent      string
}

// YahooClient fetches history and quotes from the Yahoo Finance v8 chart
// endpoint. All calls go through a circuit breaker so a flapping upstream
// fails fast instead of tying up request workers.
type YahooClient struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	breaker    *gobreaker.CircuitBreaker
}

// NewYahooClient builds a client. The zero config is usable.
func NewYahooClient(cfg YahooConfig) *YahooClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://query1.finance.yahoo.com"
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "stratrun/1.0"
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "yahoo",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).
				Str("from", from.String()).Str("to", to.String()).
				Msg("circuit breaker state change")
		},
	})
	return &YahooClient{
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 30 * time.Second,
			},
		},
		baseURL:   cfg.BaseURL,
		userAgent: cfg.UserAgent,
		breaker:   breaker,
	}
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice     float64 `json:"regularMarketPrice"`
				ChartPreviousClose     float64 `json:"chartPreviousClose"`
				RegularMarketDayHigh   float64 `json:"regularMarketDayHigh"`
				RegularMarketDayLow    float64 `json:"regularMarketDayLow"`
				RegularMarketVolume    float64 `json:"regularMarketVolume"`
				RegularMarketTime      int64   `json:"regularMarketTime"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// History implements Provider.
func (c *YahooClient) History(ctx context.Context, ticker, period, interval string) (domain.Series, error) {
	if err := ValidateWindow(period, interval); err != nil {
		return nil, err
	}
	resp, err := c.chart(ctx, ticker, period, interval)
	if err != nil {
		return nil, err
	}
	r := resp.Chart.Result[0]
	if len(r.Indicators.Quote) == 0 || len(r.Timestamp) == 0 {
		return nil, domain.DataUnavailable(false, nil, "no history for ticker %s", ticker)
	}
	q := r.Indicators.Quote[0]
	bars := make(domain.Series, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		b := domain.Bar{
			Timestamp: ts,
			Open:      deref(q.Open, i),
			High:      deref(q.High, i),
			Low:       deref(q.Low, i),
			Close:     deref(q.Close, i),
			Volume:    deref(q.Volume, i),
		}
		// bars with no close are provider gaps, not data
		if math.IsNaN(b.Close) {
			continue
		}
		bars = append(bars, b)
	}
	if len(bars) == 0 {
		return nil, domain.DataUnavailable(false, nil, "no history for ticker %s", ticker)
	}
	return bars, nil
}

// Quote implements Provider using the 1d/1m chart metadata.
func (c *YahooClient) Quote(ctx context.Context, ticker string) (*domain.Quote, error) {
	resp, err := c.chart(ctx, ticker, "1d", "1m")
	if err != nil {
		return nil, err
	}
	meta := resp.Chart.Result[0].Meta
	return &domain.Quote{
		Ticker:        strings.ToUpper(ticker),
		Price:         meta.RegularMarketPrice,
		PreviousClose: meta.ChartPreviousClose,
		DayHigh:       meta.RegularMarketDayHigh,
		DayLow:        meta.RegularMarketDayLow,
		Volume:        meta.RegularMarketVolume,
		Timestamp:     meta.RegularMarketTime,
	}, nil
}

func (c *YahooClient) chart(ctx context.Context, ticker, period, interval string) (*chartResponse, error) {
	ticker = strings.TrimSpace(ticker)
	if ticker == "" {
		return nil, domain.InvalidParams("ticker is required")
	}
	u := fmt.Sprintf("%s/v8/finance/chart/%s?range=%s&interval=%s",
		c.baseURL, url.PathEscape(strings.ToUpper(ticker)), url.QueryEscape(period), url.QueryEscape(interval))

	out, err := c.breaker.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "application/json")

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		log.Debug().Str("ticker", ticker).Str("period", period).Str("interval", interval).
			Int("status", resp.StatusCode).Dur("elapsed", time.Since(start)).
			Msg("chart request")

		body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode == http.StatusNotFound {
			return nil, domain.DataUnavailable(false, nil, "ticker %s not found", ticker)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("chart api status %d", resp.StatusCode)
		}
		var parsed chartResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return nil, fmt.Errorf("decode chart response: %w", err)
		}
		if parsed.Chart.Error != nil {
			return nil, domain.DataUnavailable(false, nil, "ticker %s: %s", ticker, parsed.Chart.Error.Description)
		}
		if len(parsed.Chart.Result) == 0 {
			return nil, domain.DataUnavailable(false, nil, "no data for ticker %s", ticker)
		}
		return &parsed, nil
	})
	if err != nil {
		if domain.KindOf(err) == domain.KindDataUnavailable {
			return nil, err
		}
		return nil, domain.DataUnavailable(true, err, "market data provider failed for %s", ticker)
	}
	return out.(*chartResponse), nil
}

func deref(xs []*float64, i int) float64 {
	if i >= len(xs) || xs[i] == nil {
		return math.NaN()
	}
	return *xs[i]
}
