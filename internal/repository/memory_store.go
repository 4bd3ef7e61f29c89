package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"SignalCast/internal/domain/models"
	domrepo "SignalCast/internal/domain/repository"

	"github.com/google/uuid"
)

// MemoryPredictionStore keeps predictions in process. Used when ClickHouse
// is disabled and in tests.
type MemoryPredictionStore struct {
	mu    sync.RWMutex
	items map[uuid.UUID]models.Prediction
}

func NewMemoryPredictionStore() *MemoryPredictionStore {
	return &MemoryPredictionStore{items: make(map[uuid.UUID]models.Prediction)}
}

func (s *MemoryPredictionStore) Save(_ context.Context, p *models.Prediction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[p.ID] = *p
	return nil
}

func (s *MemoryPredictionStore) Get(_ context.Context, id uuid.UUID) (*models.Prediction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.items[id]
	if !ok {
		return nil, domrepo.ErrPredictionNotFound
	}
	return &p, nil
}

func (s *MemoryPredictionStore) Recent(_ context.Context, symbol string, limit int) ([]*models.Prediction, error) {
	out := s.filter(func(p *models.Prediction) bool { return symbol == "" || p.Symbol == symbol })
	sort.Slice(out, func(i, j int) bool { return out[i].PredictedAt.After(out[j].PredictedAt) })
	return head(out, limit), nil
}

func (s *MemoryPredictionStore) PendingDue(_ context.Context, now time.Time, limit int) ([]*models.Prediction, error) {
	out := s.filter(func(p *models.Prediction) bool { return !p.IsResolved && !p.ResolveAt.After(now) })
	sort.Slice(out, func(i, j int) bool { return out[i].ResolveAt.Before(out[j].ResolveAt) })
	return head(out, limit), nil
}

func (s *MemoryPredictionStore) Resolve(_ context.Context, p *models.Prediction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[p.ID]; !ok {
		return domrepo.ErrPredictionNotFound
	}
	s.items[p.ID] = *p
	return nil
}

func (s *MemoryPredictionStore) Accuracy(_ context.Context, symbol, timeframe string) ([]models.AccuracyMetrics, error) {
	type key struct{ symbol, tf string }
	type agg struct {
		total, correct int
		last           time.Time
	}
	groups := make(map[key]*agg)
	for _, p := range s.filter(func(p *models.Prediction) bool {
		return p.IsResolved &&
			(symbol == "" || p.Symbol == symbol) &&
			(timeframe == "" || p.Timeframe == timeframe)
	}) {
		k := key{p.Symbol, p.Timeframe}
		g, ok := groups[k]
		if !ok {
			g = &agg{}
			groups[k] = g
		}
		g.total++
		if p.IsCorrect != nil && *p.IsCorrect {
			g.correct++
		}
		if p.ResolvedAt != nil && p.ResolvedAt.After(g.last) {
			g.last = *p.ResolvedAt
		}
	}

	out := make([]models.AccuracyMetrics, 0, len(groups))
	for k, g := range groups {
		out = append(out, models.NewAccuracyMetrics(k.symbol, k.tf, g.total, g.correct, g.last))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Symbol != out[j].Symbol {
			return out[i].Symbol < out[j].Symbol
		}
		return out[i].Timeframe < out[j].Timeframe
	})
	return out, nil
}

func (s *MemoryPredictionStore) filter(keep func(*models.Prediction) bool) []*models.Prediction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Prediction
	for _, p := range s.items {
		p := p
		if keep(&p) {
			out = append(out, &p)
		}
	}
	return out
}

func head(ps []*models.Prediction, limit int) []*models.Prediction {
	if limit > 0 && len(ps) > limit {
		return ps[:limit]
	}
	return ps
}

// MemoryBarStore keeps bars per (symbol, timeframe), replacing bars with the
// same timestamp.
type MemoryBarStore struct {
	mu   sync.RWMutex
	bars map[string][]models.PriceBar
}

func NewMemoryBarStore() *MemoryBarStore {
	return &MemoryBarStore{bars: make(map[string][]models.PriceBar)}
}

func barKey(symbol, tf string) string { return symbol + "|" + tf }

func (s *MemoryBarStore) LatestBars(_ context.Context, symbol string, n int, tf domrepo.Timeframe) ([]models.PriceBar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.bars[barKey(symbol, string(tf))]
	if n > 0 && len(all) > n {
		all = all[len(all)-n:]
	}
	return append([]models.PriceBar(nil), all...), nil
}

func (s *MemoryBarStore) InsertBars(_ context.Context, bars []models.PriceBar) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	touched := make(map[string]bool)
	for _, b := range bars {
		k := barKey(b.Symbol, b.Timeframe)
		series := s.bars[k]
		replaced := false
		for i := range series {
			if series[i].Timestamp.Equal(b.Timestamp) {
				series[i] = b
				replaced = true
				break
			}
		}
		if !replaced {
			series = append(series, b)
		}
		s.bars[k] = series
		touched[k] = true
	}
	for k := range touched {
		series := s.bars[k]
		sort.Slice(series, func(i, j int) bool { return series[i].Timestamp.Before(series[j].Timestamp) })
	}
	return nil
}

var (
	_ domrepo.PredictionStore = (*MemoryPredictionStore)(nil)
	_ domrepo.BarStore        = (*MemoryBarStore)(nil)
)
