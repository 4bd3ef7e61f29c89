package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"SignalCast/internal/domain/models"
	domrepo "SignalCast/internal/domain/repository"
	"SignalCast/pkg/logger"
	"SignalCast/pkg/queue"

	"github.com/google/uuid"
)

// JobResolveDue is the queue message type of the resolution sweep.
const JobResolveDue = "resolve_due"

const resolveLockName = "resolve_due"

// PriceLookup supplies the realised price of a symbol.
type PriceLookup interface {
	Current(ctx context.Context, symbol string) (models.Quote, error)
}

// Locker guards the sweep across instances.
type Locker interface {
	Lock(ctx context.Context, name string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, name string) error
}

// SweepSummary reports one ResolveDue run. Busy means another instance
// held the sweep lock and nothing was done.
type SweepSummary struct {
	Due      int  `json:"due"`
	Resolved int  `json:"resolved"`
	Correct  int  `json:"correct"`
	Skipped  int  `json:"skipped"`
	Busy     bool `json:"busy"`
}

// ResolutionUseCase settles predictions against realised prices.
type ResolutionUseCase struct {
	store     domrepo.PredictionStore
	prices    PriceLookup
	publisher domrepo.PredictionPublisher
	locker    Locker
	metrics   domrepo.Metrics
	l         *logger.Logger
	batch     int
	lockTTL   time.Duration
	now       func() time.Time
}

func NewResolutionUseCase(
	store domrepo.PredictionStore,
	prices PriceLookup,
	publisher domrepo.PredictionPublisher,
	locker Locker,
	metrics domrepo.Metrics,
	l *logger.Logger,
	batch int,
) *ResolutionUseCase {
	if batch <= 0 {
		batch = 100
	}
	return &ResolutionUseCase{
		store:     store,
		prices:    prices,
		publisher: publisher,
		locker:    locker,
		metrics:   metrics,
		l:         l,
		batch:     batch,
		lockTTL:   time.Minute,
		now:       time.Now,
	}
}

// ResolveDue resolves every pending prediction whose horizon has passed,
// up to the batch size. Predictions without a price are left pending.
func (uc *ResolutionUseCase) ResolveDue(ctx context.Context) (SweepSummary, error) {
	var sum SweepSummary
	if uc.locker != nil {
		ok, err := uc.locker.Lock(ctx, resolveLockName, uc.lockTTL)
		if err != nil {
			return sum, fmt.Errorf("sweep lock: %w", err)
		}
		if !ok {
			sum.Busy = true
			return sum, nil
		}
		defer func() {
			if err := uc.locker.Unlock(context.WithoutCancel(ctx), resolveLockName); err != nil {
				uc.l.Warn("sweep unlock failed", logger.Error(err))
			}
		}()
	}

	start := uc.now()
	due, err := uc.store.PendingDue(ctx, start, uc.batch)
	if err != nil {
		return sum, fmt.Errorf("pending predictions: %w", err)
	}
	sum.Due = len(due)

	prices := make(map[string]float64)
	for _, p := range due {
		price, ok := prices[p.Symbol]
		if !ok {
			q, err := uc.prices.Current(ctx, p.Symbol)
			if err != nil {
				uc.l.Warn("no price for resolution",
					logger.String("symbol", p.Symbol),
					logger.Error(err),
				)
				sum.Skipped++
				continue
			}
			price = q.Price
			prices[p.Symbol] = price
		}
		if err := uc.settle(ctx, p, price); err != nil {
			uc.l.Error("resolve prediction failed",
				logger.String("id", p.ID.String()),
				logger.Error(err),
			)
			sum.Skipped++
			continue
		}
		sum.Resolved++
		if *p.IsCorrect {
			sum.Correct++
		}
	}

	uc.metrics.RecordLatency("resolve_due", time.Since(start).Seconds())
	if sum.Due > 0 {
		uc.l.Info("resolution sweep done",
			logger.Int("due", sum.Due),
			logger.Int("resolved", sum.Resolved),
			logger.Int("skipped", sum.Skipped),
		)
	}
	return sum, nil
}

// Resolve settles one prediction. A zero price means the current price.
func (uc *ResolutionUseCase) Resolve(ctx context.Context, id uuid.UUID, price float64) (*models.Prediction, error) {
	p, err := uc.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.IsResolved {
		return nil, domrepo.ErrAlreadyResolved
	}
	if price <= 0 {
		q, err := uc.prices.Current(ctx, p.Symbol)
		if err != nil {
			return nil, err
		}
		price = q.Price
	}
	if err := uc.settle(ctx, p, price); err != nil {
		return nil, err
	}
	return p, nil
}

func (uc *ResolutionUseCase) settle(ctx context.Context, p *models.Prediction, price float64) error {
	p.MarkResolved(price, uc.now().UTC())
	if err := uc.store.Resolve(ctx, p); err != nil {
		uc.metrics.RecordError("prediction_resolve")
		return fmt.Errorf("store resolution: %w", err)
	}
	if err := uc.publisher.PublishResolution(ctx, p); err != nil {
		uc.metrics.RecordError("resolution_publish")
		uc.l.Warn("publish resolution failed", logger.String("id", p.ID.String()), logger.Error(err))
	}
	uc.metrics.RecordResolution(p.Symbol, *p.IsCorrect)
	return nil
}

// ResolveDueJob runs the sweep from the job queue.
type ResolveDueJob struct {
	uc *ResolutionUseCase
}

func NewResolveDueJob(uc *ResolutionUseCase) *ResolveDueJob { return &ResolveDueJob{uc: uc} }

func (j *ResolveDueJob) Name() string { return "resolution sweep" }
func (j *ResolveDueJob) Type() string { return JobResolveDue }

func (j *ResolveDueJob) Handle(ctx context.Context, _ json.RawMessage) error {
	_, err := j.uc.ResolveDue(ctx)
	return err
}

var _ queue.Job = (*ResolveDueJob)(nil)

// SweepScheduler triggers the sweep on an interval, through the queue when
// one is configured and inline otherwise.
type SweepScheduler struct {
	interval time.Duration
	queue    queue.Publisher
	uc       *ResolutionUseCase
	l        *logger.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewSweepScheduler(interval time.Duration, q queue.Publisher, uc *ResolutionUseCase, l *logger.Logger) *SweepScheduler {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &SweepScheduler{interval: interval, queue: q, uc: uc, l: l}
}

func (s *SweepScheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		t := time.NewTicker(s.interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.tick(ctx)
			}
		}
	}()
}

func (s *SweepScheduler) tick(ctx context.Context) {
	if s.queue != nil {
		if err := s.queue.PublishMessage(ctx, JobResolveDue, nil); err != nil {
			s.l.Error("enqueue sweep failed", logger.Error(err))
		}
		return
	}
	if _, err := s.uc.ResolveDue(ctx); err != nil {
		s.l.Error("sweep failed", logger.Error(err))
	}
}

func (s *SweepScheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// HistoryUseCase reads stored predictions and accuracy.
type HistoryUseCase struct {
	store domrepo.PredictionStore
}

func NewHistoryUseCase(store domrepo.PredictionStore) *HistoryUseCase {
	return &HistoryUseCase{store: store}
}

// Recent returns the newest predictions first. limit defaults to 20 and is
// capped at 200.
func (uc *HistoryUseCase) Recent(ctx context.Context, symbol string, limit int) ([]*models.Prediction, error) {
	switch {
	case limit <= 0:
		limit = 20
	case limit > 200:
		limit = 200
	}
	out, err := uc.store.Recent(ctx, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("recent predictions: %w", err)
	}
	if out == nil {
		out = []*models.Prediction{}
	}
	return out, nil
}

func (uc *HistoryUseCase) Accuracy(ctx context.Context, symbol, timeframe string) ([]models.AccuracyMetrics, error) {
	out, err := uc.store.Accuracy(ctx, symbol, timeframe)
	if err != nil {
		return nil, fmt.Errorf("accuracy: %w", err)
	}
	if out == nil {
		out = []models.AccuracyMetrics{}
	}
	return out, nil
}
