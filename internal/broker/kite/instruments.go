package kite

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"brokerage-mcp/internal/logger"
	"brokerage-mcp/internal/types"
)

// instrumentCache maps trading symbols to instruments for one exchange. The
// dump is large, so it is fetched lazily and refreshed after ttl.
type instrumentCache struct {
	exchange string
	ttl      time.Duration
	fetch    func(ctx context.Context, exchange string) ([]types.Instrument, error)

	mu       sync.RWMutex
	bySymbol map[string]types.Instrument
	loadedAt time.Time
	now      func() time.Time
}

func newInstrumentCache(exchange string, ttl time.Duration, fetch func(context.Context, string) ([]types.Instrument, error)) *instrumentCache {
	return &instrumentCache{
		exchange: exchange,
		ttl:      ttl,
		fetch:    fetch,
		bySymbol: make(map[string]types.Instrument),
		now:      time.Now,
	}
}

func (c *instrumentCache) stale() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loadedAt.IsZero() || c.now().Sub(c.loadedAt) > c.ttl
}

func (c *instrumentCache) refresh(ctx context.Context) error {
	list, err := c.fetch(ctx, c.exchange)
	if err != nil {
		return fmt.Errorf("fetch %s instruments: %w", c.exchange, err)
	}

	bySymbol := make(map[string]types.Instrument, len(list))
	for _, in := range list {
		bySymbol[strings.ToUpper(in.Ticker)] = in
	}

	c.mu.Lock()
	c.bySymbol = bySymbol
	c.loadedAt = c.now()
	c.mu.Unlock()

	logger.Info(ctx, "Instrument cache refreshed", "exchange", c.exchange, "count", len(list))
	return nil
}

// lookup returns the instrument for ticker, refreshing the cache when stale.
// A failed refresh falls back to the previous dump if there is one.
func (c *instrumentCache) lookup(ctx context.Context, ticker string) (types.Instrument, error) {
	if c.stale() {
		if err := c.refresh(ctx); err != nil {
			c.mu.RLock()
			empty := len(c.bySymbol) == 0
			c.mu.RUnlock()
			if empty {
				return types.Instrument{}, err
			}
			logger.Warn(ctx, "Using stale instrument cache", "exchange", c.exchange, "error", err)
		}
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	in, ok := c.bySymbol[strings.ToUpper(ticker)]
	if !ok {
		return types.Instrument{}, fmt.Errorf("%w: %s on %s", ErrUnknownTicker, ticker, c.exchange)
	}
	return in, nil
}
