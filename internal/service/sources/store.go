package sources

import (
	"context"

	"SignalCast/internal/domain/models"
	"SignalCast/internal/domain/repository"
)

// Store serves series from the bar store. A short 4h series is rebuilt
// from 1h bars.
type Store struct {
	bars repository.BarStore
}

func NewStore(bars repository.BarStore) *Store {
	return &Store{bars: bars}
}

func (s *Store) GetSeries(ctx context.Context, symbol string, tf repository.Timeframe, minLength int) ([]models.PriceBar, error) {
	out, err := s.bars.LatestBars(ctx, symbol, minLength, tf)
	if err != nil {
		return nil, err
	}
	if len(out) >= minLength || tf != repository.TF4h {
		return out, nil
	}

	hourly, err := s.bars.LatestBars(ctx, symbol, minLength*4, repository.TF1h)
	if err != nil {
		return nil, err
	}
	return tail(Resample(hourly, tf.Duration(), string(tf)), minLength), nil
}
