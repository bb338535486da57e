package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/stratrun/stratrun/internal/domain"
)

// CachedProvider is a read-through Redis cache over another Provider.
// Only history is cached; quotes are always live. Cache failures degrade
// to the underlying provider rather than surfacing errors.
type CachedProvider struct {
	next Provider
	rdb  *redis.Client
	ttl  time.Duration
}

// NewCachedProvider wraps next with a Redis history cache. A nil client
// or zero TTL disables caching entirely.
func NewCachedProvider(next Provider, rdb *redis.Client, ttl time.Duration) Provider {
	if rdb == nil || ttl == 0 {
		return next
	}
	return &CachedProvider{next: next, rdb: rdb, ttl: ttl}
}

func historyKey(ticker, period, interval string) string {
	return fmt.Sprintf("stratrun:history:%s:%s:%s", ticker, period, interval)
}

// History implements Provider.
func (c *CachedProvider) History(ctx context.Context, ticker, period, interval string) (domain.Series, error) {
	key := historyKey(ticker, period, interval)
	if raw, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
		var bars domain.Series
		if err := json.Unmarshal(raw, &bars); err == nil && len(bars) > 0 {
			return bars, nil
		}
	} else if err != redis.Nil {
		log.Warn().Err(err).Str("key", key).Msg("history cache read failed")
	}

	bars, err := c.next.History(ctx, ticker, period, interval)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(bars); err == nil {
		if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("history cache write failed")
		}
	}
	return bars, nil
}

// Quote implements Provider by delegating.
func (c *CachedProvider) Quote(ctx context.Context, ticker string) (*domain.Quote, error) {
	return c.next.Quote(ctx, ticker)
}
