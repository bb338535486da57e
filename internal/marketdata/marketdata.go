// Package marketdata supplies quote snapshots and OHLCV history. The
// concrete client speaks the Yahoo Finance chart API behind a circuit
// breaker; an optional Redis layer caches history responses.
package marketdata

import (
	"context"

	"github.com/stratrun/stratrun/internal/domain"
)

// Provider is the market-data collaborator the engine consumes. History
// returns bars in ascending time; an unknown ticker yields a non-retryable
// DataUnavailable error. Implementations must be safe for concurrent use.
type Provider interface {
	History(ctx context.Context, ticker, period, interval string) (domain.Series, error)
	Quote(ctx context.Context, ticker string) (*domain.Quote, error)
}

var validPeriods = map[string]bool{
	"1d": true, "5d": true, "1mo": true, "3mo": true, "6mo": true,
	"1y": true, "2y": true, "5y": true, "10y": true, "ytd": true, "max": true,
}

var validIntervals = map[string]bool{
	"1m": true, "2m": true, "5m": true, "15m": true, "30m": true,
	"60m": true, "90m": true, "1h": true, "1d": true, "5d": true,
	"1wk": true, "1mo": true, "3mo": true,
}

// ValidateWindow rejects periods and intervals outside the provider's
// supported sets.
func ValidateWindow(period, interval string) error {
	if !validPeriods[period] {
		return domain.InvalidParams("unknown period %q", period)
	}
	if !validIntervals[interval] {
		return domain.InvalidParams("unknown interval %q", interval)
	}
	return nil
}
