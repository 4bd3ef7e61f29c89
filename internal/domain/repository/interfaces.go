package repository

import (
	"context"
	"errors"
	"time"

	"SignalCast/internal/domain/models"

	"github.com/google/uuid"
)

var (
	// ErrSeriesUnavailable means no source could serve the requested series.
	ErrSeriesUnavailable = errors.New("series unavailable")
	// ErrPredictionNotFound is returned by PredictionStore lookups.
	ErrPredictionNotFound = errors.New("prediction not found")
	// ErrAlreadyResolved is returned when resolving a resolved prediction.
	ErrAlreadyResolved = errors.New("prediction already resolved")
)

// SeriesSource serves ordered OHLCV series, oldest bar first.
type SeriesSource interface {
	GetSeries(ctx context.Context, symbol string, tf Timeframe, minLength int) ([]models.PriceBar, error)
}

// BarStore persists price bars.
type BarStore interface {
	LatestBars(ctx context.Context, symbol string, n int, tf Timeframe) ([]models.PriceBar, error)
	InsertBars(ctx context.Context, bars []models.PriceBar) error
}

// PredictionStore persists predictions and their outcomes.
type PredictionStore interface {
	Save(ctx context.Context, p *models.Prediction) error
	Get(ctx context.Context, id uuid.UUID) (*models.Prediction, error)
	Recent(ctx context.Context, symbol string, limit int) ([]*models.Prediction, error)
	PendingDue(ctx context.Context, now time.Time, limit int) ([]*models.Prediction, error)
	Resolve(ctx context.Context, p *models.Prediction) error
	Accuracy(ctx context.Context, symbol, timeframe string) ([]models.AccuracyMetrics, error)
}

// PredictionPublisher fans predictions out to downstream consumers.
type PredictionPublisher interface {
	PublishPrediction(ctx context.Context, p *models.Prediction) error
	PublishResolution(ctx context.Context, p *models.Prediction) error
	Close() error
}

// QuoteStream is a live tick feed.
type QuoteStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Quote, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

type Metrics interface {
	RecordPrediction(symbol, direction string, confidence float64)
	RecordResolution(symbol string, correct bool)
	RecordSourceHit(source string)
	RecordError(kind string)
	RecordLastPrice(symbol string, price float64)
	RecordLatency(op string, seconds float64)
}
