// Package sources serves OHLCV series to the forecasting pipeline from an
// ordered chain of providers: the bar store, Alpha Vantage, then a seeded
// generator.
package sources

import (
	"context"
	"fmt"
	"time"

	"SignalCast/internal/domain/models"
	"SignalCast/internal/domain/repository"
	"SignalCast/internal/service/quotes"
	"SignalCast/pkg/logger"
)

const (
	NameStore        = "store"
	NameAlphaVantage = "alpha_vantage"
	NameMock         = "mock"
)

// Named pairs a source with the label used in logs and metrics.
type Named struct {
	Name   string
	Source repository.SeriesSource
}

// Chain asks each source in order and returns the first series with at
// least minLength bars.
type Chain struct {
	sources []Named
	metrics repository.Metrics
	log     *logger.Logger
}

func NewChain(l *logger.Logger, metrics repository.Metrics, sources ...Named) *Chain {
	return &Chain{sources: sources, metrics: metrics, log: l.With(logger.String("component", "series_chain"))}
}

func (c *Chain) GetSeries(ctx context.Context, symbol string, tf repository.Timeframe, minLength int) ([]models.PriceBar, error) {
	for _, s := range c.sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start := time.Now()
		bars, err := s.Source.GetSeries(ctx, symbol, tf, minLength)
		if err != nil {
			c.log.Debug("series source failed",
				logger.String("source", s.Name),
				logger.String("symbol", symbol),
				logger.String("tf", string(tf)),
				logger.Error(err),
			)
			continue
		}
		if len(bars) < minLength {
			c.log.Debug("series source too short",
				logger.String("source", s.Name),
				logger.String("symbol", symbol),
				logger.Int("bars", len(bars)),
				logger.Int("want", minLength),
			)
			continue
		}
		c.metrics.RecordSourceHit(s.Name)
		c.metrics.RecordLatency("series_"+s.Name, time.Since(start).Seconds())
		return bars, nil
	}
	c.metrics.RecordError("series_unavailable")
	return nil, fmt.Errorf("%s %s: %w", symbol, tf, repository.ErrSeriesUnavailable)
}

// Cached consults the quote cache before the wrapped source and stores
// what it fetches.
type Cached struct {
	src    repository.SeriesSource
	quotes *quotes.Cache
	log    *logger.Logger
}

func NewCached(src repository.SeriesSource, qc *quotes.Cache, l *logger.Logger) *Cached {
	return &Cached{src: src, quotes: qc, log: l}
}

func (c *Cached) GetSeries(ctx context.Context, symbol string, tf repository.Timeframe, minLength int) ([]models.PriceBar, error) {
	if bars, ok, err := c.quotes.Series(ctx, symbol, tf); err != nil {
		c.log.Warn("series cache read failed", logger.String("symbol", symbol), logger.Error(err))
	} else if ok && len(bars) >= minLength {
		return bars, nil
	}

	bars, err := c.src.GetSeries(ctx, symbol, tf, minLength)
	if err != nil {
		return nil, err
	}
	if err := c.quotes.PutSeries(ctx, symbol, tf, bars); err != nil {
		c.log.Warn("series cache write failed", logger.String("symbol", symbol), logger.Error(err))
	}
	return bars, nil
}
