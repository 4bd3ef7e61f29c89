package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"SignalCast/internal/domain/models"
	domrepo "SignalCast/internal/domain/repository"
	"SignalCast/internal/service/quotes"
	"SignalCast/pkg/logger"
	"SignalCast/pkg/util"

	"github.com/shopspring/decimal"
)

// Quote sources reported by Current besides live stream ticks.
const (
	QuoteSourceBar    = "bar"
	QuoteSourceSeries = "series"
	QuoteSourceManual = "manual"
)

// ErrInvalidPrice is returned for a non-positive manual price.
var ErrInvalidPrice = errors.New("price must be positive")

// Manual bar shape.
var (
	manualHighFactor = decimal.RequireFromString("1.001")
	manualLowFactor  = decimal.RequireFromString("0.999")
)

const manualVolume = 1000

// PriceUseCase serves current prices, manual price entry and the pair catalogue.
type PriceUseCase struct {
	quotes  *quotes.Cache
	bars    domrepo.BarStore
	series  domrepo.SeriesSource
	metrics domrepo.Metrics
	pairs   []models.TradingPair
	l       *logger.Logger
	now     func() time.Time
}

func NewPriceUseCase(qc *quotes.Cache, bars domrepo.BarStore, series domrepo.SeriesSource, metrics domrepo.Metrics, pairs []models.TradingPair, l *logger.Logger) *PriceUseCase {
	if len(pairs) == 0 {
		pairs = models.DefaultPairs()
	}
	return &PriceUseCase{quotes: qc, bars: bars, series: series, metrics: metrics, pairs: pairs, l: l, now: time.Now}
}

// Pairs returns the active trading pairs.
func (uc *PriceUseCase) Pairs() []models.TradingPair {
	out := make([]models.TradingPair, 0, len(uc.pairs))
	for _, p := range uc.pairs {
		if p.IsActive {
			out = append(out, p)
		}
	}
	return out
}

// Current returns the cached quote, else the latest 1h bar close, else the
// last close of the series source. Fallback prices are cached.
func (uc *PriceUseCase) Current(ctx context.Context, symbol string) (models.Quote, error) {
	symbol = util.NormalizeSymbol(symbol)
	if symbol == "" {
		return models.Quote{}, ErrSymbolRequired
	}
	q, ok, err := uc.quotes.Quote(ctx, symbol)
	if err != nil {
		uc.l.Warn("quote cache read failed", logger.String("symbol", symbol), logger.Error(err))
	} else if ok {
		return q, nil
	}

	q, err = uc.fallback(ctx, symbol)
	if err != nil {
		return models.Quote{}, err
	}
	if err := uc.quotes.PutQuote(ctx, q); err != nil {
		uc.l.Warn("quote cache write failed", logger.String("symbol", symbol), logger.Error(err))
	}
	uc.metrics.RecordLastPrice(symbol, q.Price)
	return q, nil
}

func (uc *PriceUseCase) fallback(ctx context.Context, symbol string) (models.Quote, error) {
	bars, err := uc.bars.LatestBars(ctx, symbol, 1, domrepo.TF1h)
	if err != nil {
		uc.l.Debug("latest bar lookup failed", logger.String("symbol", symbol), logger.Error(err))
	}
	if len(bars) > 0 {
		b := bars[len(bars)-1]
		return models.Quote{Symbol: symbol, Price: b.Close, Timestamp: b.Timestamp, Source: QuoteSourceBar}, nil
	}

	bars, err = uc.series.GetSeries(ctx, symbol, domrepo.TF1h, 1)
	if err != nil {
		return models.Quote{}, fmt.Errorf("current price %s: %w", symbol, err)
	}
	if len(bars) == 0 {
		return models.Quote{}, fmt.Errorf("current price %s: %w", symbol, domrepo.ErrSeriesUnavailable)
	}
	b := bars[len(bars)-1]
	return models.Quote{Symbol: symbol, Price: b.Close, Timestamp: b.Timestamp, Source: QuoteSourceSeries}, nil
}

// ManualBar builds the 1h bar stored for a manually entered price.
func ManualBar(symbol string, price float64, at time.Time) models.PriceBar {
	p := decimal.NewFromFloat(price)
	return models.PriceBar{
		Timestamp: util.AlignTo(at, time.Hour),
		Symbol:    symbol,
		Timeframe: string(domrepo.TF1h),
		Open:      price,
		High:      p.Mul(manualHighFactor).InexactFloat64(),
		Low:       p.Mul(manualLowFactor).InexactFloat64(),
		Close:     price,
		Volume:    manualVolume,
	}
}

// Manual stores price as the current 1h bar for symbol, drops the symbol's
// cached series and caches price as its quote.
func (uc *PriceUseCase) Manual(ctx context.Context, symbol string, price float64) (models.PriceBar, error) {
	symbol = util.NormalizeSymbol(symbol)
	if symbol == "" {
		return models.PriceBar{}, ErrSymbolRequired
	}
	if price <= 0 {
		return models.PriceBar{}, ErrInvalidPrice
	}
	bar := ManualBar(symbol, price, uc.now())
	if err := uc.bars.InsertBars(ctx, []models.PriceBar{bar}); err != nil {
		uc.metrics.RecordError("manual_price")
		return models.PriceBar{}, fmt.Errorf("store manual price: %w", err)
	}
	if err := uc.quotes.Invalidate(ctx, symbol); err != nil {
		uc.l.Warn("quote cache invalidate failed", logger.String("symbol", symbol), logger.Error(err))
	}
	q := models.Quote{Symbol: symbol, Price: price, Timestamp: uc.now().UTC(), Source: QuoteSourceManual}
	if err := uc.quotes.PutQuote(ctx, q); err != nil {
		uc.l.Warn("quote cache write failed", logger.String("symbol", symbol), logger.Error(err))
	}
	uc.metrics.RecordLastPrice(symbol, price)
	uc.l.Info("manual price stored",
		logger.String("symbol", symbol),
		logger.Float64("price", price),
	)
	return bar, nil
}
