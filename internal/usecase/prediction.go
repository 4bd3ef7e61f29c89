package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"SignalCast/internal/domain/models"
	domrepo "SignalCast/internal/domain/repository"
	"SignalCast/internal/services/confidence"
	"SignalCast/internal/services/signals"
	"SignalCast/internal/services/structure"
	"SignalCast/pkg/logger"
	"SignalCast/pkg/util"

	"github.com/google/uuid"
)

var (
	// ErrSymbolRequired is returned for a blank symbol.
	ErrSymbolRequired = errors.New("symbol required")
	// ErrInvalidArgument wraps rejected caller input.
	ErrInvalidArgument = errors.New("invalid argument")
)

// PredictionConfig tunes the multi-timeframe prediction.
type PredictionConfig struct {
	PrimaryTimeframe domrepo.Timeframe
	HigherTimeframe  domrepo.Timeframe
	HistoryBars      int
	Horizon          time.Duration
	FetchTimeout     time.Duration
}

func DefaultPredictionConfig() PredictionConfig {
	return PredictionConfig{
		PrimaryTimeframe: domrepo.TF1h,
		HigherTimeframe:  domrepo.TF4h,
		HistoryBars:      100,
		Horizon:          5 * time.Minute,
		FetchTimeout:     10 * time.Second,
	}
}

// PredictionView is the forecast body of a PredictionDocument.
type PredictionView struct {
	Direction           signals.Direction    `json:"direction"`
	Confidence          float64              `json:"confidence"`
	CurrentPrice        float64              `json:"current_price"`
	PredictionTimeframe string               `json:"prediction_timeframe"`
	AnalysisTimeframes  []string             `json:"analysis_timeframes"`
	SignalBreakdown     confidence.Breakdown `json:"signal_breakdown"`
	AdvancedAnalysis    structure.Advanced   `json:"advanced_analysis"`
	ConfluenceFactors   map[string]bool      `json:"confluence_factors"`
}

// PredictionDocument is returned to callers of Predict. PredictionID is set
// only when the verdict was persisted.
type PredictionDocument struct {
	Symbol       string         `json:"symbol"`
	Timeframe    string         `json:"timeframe"`
	Prediction   PredictionView `json:"prediction"`
	ThresholdMet bool           `json:"threshold_met"`
	Timestamp    time.Time      `json:"timestamp"`
	PredictionID *uuid.UUID     `json:"prediction_id,omitempty"`
}

// PredictionUseCase produces, persists and publishes short-horizon forecasts.
type PredictionUseCase struct {
	series     domrepo.SeriesSource
	store      domrepo.PredictionStore
	publisher  domrepo.PredictionPublisher
	reconciler *structure.Reconciler
	metrics    domrepo.Metrics
	l          *logger.Logger
	cfg        PredictionConfig
	now        func() time.Time
}

func NewPredictionUseCase(
	series domrepo.SeriesSource,
	store domrepo.PredictionStore,
	publisher domrepo.PredictionPublisher,
	reconciler *structure.Reconciler,
	metrics domrepo.Metrics,
	l *logger.Logger,
	cfg PredictionConfig,
) *PredictionUseCase {
	def := DefaultPredictionConfig()
	if cfg.PrimaryTimeframe == "" {
		cfg.PrimaryTimeframe = def.PrimaryTimeframe
	}
	if cfg.HigherTimeframe == "" {
		cfg.HigherTimeframe = def.HigherTimeframe
	}
	if cfg.HistoryBars <= 0 {
		cfg.HistoryBars = def.HistoryBars
	}
	if cfg.Horizon <= 0 {
		cfg.Horizon = def.Horizon
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = def.FetchTimeout
	}
	return &PredictionUseCase{
		series:     series,
		store:      store,
		publisher:  publisher,
		reconciler: reconciler,
		metrics:    metrics,
		l:          l,
		cfg:        cfg,
		now:        time.Now,
	}
}

// Predict forecasts symbol over horizon, or the configured horizon when it is
// empty. Null verdicts and verdicts below the policy threshold are returned
// without being stored or published.
func (uc *PredictionUseCase) Predict(ctx context.Context, symbol string, horizon domrepo.Timeframe) (*PredictionDocument, error) {
	symbol = util.NormalizeSymbol(symbol)
	if symbol == "" {
		return nil, ErrSymbolRequired
	}
	if horizon != "" && !domrepo.IsValidTimeframe(horizon) {
		return nil, fmt.Errorf("%w: timeframe %q", ErrInvalidArgument, horizon)
	}
	start := uc.now()
	defer func() { uc.metrics.RecordLatency("predict", time.Since(start).Seconds()) }()

	primary, higher := uc.fetch(ctx, symbol)
	res := uc.reconciler.Reconcile(primary, higher)
	resolveAt := start.UTC().Add(uc.cfg.Horizon)
	if horizon != "" {
		res.PredictionTimeframe = string(horizon)
		resolveAt = start.UTC().Add(horizon.Duration())
	}

	doc := &PredictionDocument{
		Symbol:    symbol,
		Timeframe: res.PredictionTimeframe,
		Prediction: PredictionView{
			Direction:           res.Verdict.Direction,
			Confidence:          res.Verdict.Confidence,
			CurrentPrice:        res.Verdict.CurrentPrice,
			PredictionTimeframe: res.PredictionTimeframe,
			AnalysisTimeframes:  res.AnalysisTimeframes,
			SignalBreakdown:     res.Verdict.Breakdown,
			AdvancedAnalysis:    res.Advanced,
			ConfluenceFactors:   res.ConfluenceFactors,
		},
		ThresholdMet: res.Verdict.MeetsThreshold,
		Timestamp:    start.UTC(),
	}
	if res.Verdict.IsNull() {
		uc.l.Info("prediction skipped, not enough data",
			logger.String("symbol", symbol),
			logger.Int("bars", len(primary)),
		)
		return doc, nil
	}
	if !res.Verdict.MeetsThreshold {
		uc.l.Info("prediction below threshold",
			logger.String("symbol", symbol),
			logger.String("policy", res.Verdict.Policy),
			logger.Float64("confidence", res.Verdict.Confidence),
		)
		return doc, nil
	}

	p := &models.Prediction{
		ID:                 uuid.New(),
		Symbol:             symbol,
		Timeframe:          res.PredictionTimeframe,
		Direction:          string(res.Verdict.Direction),
		Confidence:         res.Verdict.Confidence,
		MeetsThreshold:     res.Verdict.MeetsThreshold,
		Policy:             res.Verdict.Policy,
		EntryPrice:         res.Verdict.CurrentPrice,
		Breakdown:          models.SignalBreakdown(res.Verdict.Breakdown),
		AnalysisTimeframes: res.AnalysisTimeframes,
		ConfluenceFactors:  res.ConfluenceFactors,
		Indicators:         res.Values.Map(),
		PredictedAt:        start.UTC(),
		ResolveAt:          resolveAt,
	}
	if err := uc.store.Save(ctx, p); err != nil {
		uc.metrics.RecordError("prediction_save")
		return nil, fmt.Errorf("save prediction: %w", err)
	}
	if err := uc.publisher.PublishPrediction(ctx, p); err != nil {
		uc.metrics.RecordError("prediction_publish")
		uc.l.Warn("publish prediction failed",
			logger.String("id", p.ID.String()),
			logger.Error(err),
		)
	}
	uc.metrics.RecordPrediction(symbol, p.Direction, p.Confidence)
	uc.metrics.RecordLastPrice(symbol, p.EntryPrice)

	uc.l.Info("prediction stored",
		logger.String("id", p.ID.String()),
		logger.String("symbol", symbol),
		logger.String("direction", p.Direction),
		logger.Float64("confidence", p.Confidence),
	)
	doc.PredictionID = &p.ID
	return doc, nil
}

// fetch loads both timeframes concurrently. Failures yield nil series, which
// the reconciler turns into a null verdict or a neutral bias.
func (uc *PredictionUseCase) fetch(ctx context.Context, symbol string) (primary, higher []models.PriceBar) {
	ctx, cancel := context.WithTimeout(ctx, uc.cfg.FetchTimeout)
	defer cancel()

	var wg sync.WaitGroup
	load := func(tf domrepo.Timeframe, dst *[]models.PriceBar) {
		defer wg.Done()
		bars, err := uc.series.GetSeries(ctx, symbol, tf, uc.cfg.HistoryBars)
		if err != nil {
			uc.metrics.RecordError("series")
			uc.l.Warn("series unavailable",
				logger.String("symbol", symbol),
				logger.String("tf", string(tf)),
				logger.Error(err),
			)
			return
		}
		*dst = bars
	}
	wg.Add(2)
	go load(uc.cfg.PrimaryTimeframe, &primary)
	go load(uc.cfg.HigherTimeframe, &higher)
	wg.Wait()
	return primary, higher
}
