// Package quotes holds the caller-owned cache of latest quotes and fetched
// bar series. The forecasting core never reads it; use cases consult it
// before going to a data source and invalidate it when a price is forced.
package quotes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"SignalCast/internal/domain/models"
	"SignalCast/internal/domain/repository"
	"SignalCast/pkg/cache"
	"SignalCast/pkg/util"
)

const (
	// DefaultQuoteTTL bounds how stale a cached quote may be.
	DefaultQuoteTTL = 30 * time.Second
	// DefaultSeriesTTL bounds how long a fetched series is reused. One minute
	// is well below the 1h bar length, so a cached series is at most one
	// partial bar behind.
	DefaultSeriesTTL = time.Minute
)

// Cache stores quotes and series with TTLs on top of a cache.Service.
type Cache struct {
	store     cache.Service
	quoteTTL  time.Duration
	seriesTTL time.Duration
}

// Option configures Cache.
type Option func(*Cache)

// WithQuoteTTL overrides DefaultQuoteTTL.
func WithQuoteTTL(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.quoteTTL = d
		}
	}
}

// WithSeriesTTL overrides DefaultSeriesTTL.
func WithSeriesTTL(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.seriesTTL = d
		}
	}
}

func New(store cache.Service, opts ...Option) *Cache {
	c := &Cache{store: store, quoteTTL: DefaultQuoteTTL, seriesTTL: DefaultSeriesTTL}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func quoteKey(symbol string) string {
	return cache.Key("quote", util.NormalizeSymbol(symbol))
}

func seriesKey(symbol string, tf repository.Timeframe) string {
	return cache.Key("series", util.NormalizeSymbol(symbol), string(tf))
}

// Quote returns the cached quote; ok is false on a miss.
func (c *Cache) Quote(ctx context.Context, symbol string) (models.Quote, bool, error) {
	var q models.Quote
	err := c.store.Get(ctx, quoteKey(symbol), &q)
	if errors.Is(err, cache.ErrCacheMiss) {
		return q, false, nil
	}
	if err != nil {
		return q, false, fmt.Errorf("get quote: %w", err)
	}
	return q, true, nil
}

// PutQuote stores q for the quote TTL.
func (c *Cache) PutQuote(ctx context.Context, q models.Quote) error {
	if err := c.store.Set(ctx, quoteKey(q.Symbol), q, c.quoteTTL); err != nil {
		return fmt.Errorf("set quote: %w", err)
	}
	return nil
}

// Series returns a cached series for (symbol, tf).
func (c *Cache) Series(ctx context.Context, symbol string, tf repository.Timeframe) ([]models.PriceBar, bool, error) {
	var bars []models.PriceBar
	err := c.store.Get(ctx, seriesKey(symbol, tf), &bars)
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get series: %w", err)
	}
	return bars, true, nil
}

// PutSeries stores bars for the series TTL.
func (c *Cache) PutSeries(ctx context.Context, symbol string, tf repository.Timeframe, bars []models.PriceBar) error {
	if err := c.store.Set(ctx, seriesKey(symbol, tf), bars, c.seriesTTL); err != nil {
		return fmt.Errorf("set series: %w", err)
	}
	return nil
}

// Invalidate drops the quote and every cached series of symbol.
func (c *Cache) Invalidate(ctx context.Context, symbol string) error {
	if err := c.store.Delete(ctx, quoteKey(symbol)); err != nil {
		return fmt.Errorf("invalidate quote: %w", err)
	}
	pattern := cache.Under("series", util.NormalizeSymbol(symbol))
	if err := c.store.DeleteByPattern(ctx, pattern); err != nil {
		return fmt.Errorf("invalidate series: %w", err)
	}
	return nil
}

// Lock takes a short-lived exclusive lock, e.g. for the resolution sweep.
func (c *Cache) Lock(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	return c.store.TryLock(ctx, cache.Key("lock", name), ttl)
}

func (c *Cache) Unlock(ctx context.Context, name string) error {
	return c.store.Unlock(ctx, cache.Key("lock", name))
}
