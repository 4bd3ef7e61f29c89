package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"SignalCast/internal/domain/models"
	domrepo "SignalCast/internal/domain/repository"
	mid "SignalCast/internal/middleware"
	"SignalCast/internal/repository"
	"SignalCast/internal/service/quotes"
	"SignalCast/internal/service/sources"
	"SignalCast/internal/services/analyzer"
	"SignalCast/internal/services/confidence"
	"SignalCast/internal/services/indicators"
	"SignalCast/internal/services/signals"
	"SignalCast/internal/services/structure"
	"SignalCast/pkg/cache"
	"SignalCast/pkg/logger"
	"SignalCast/pkg/metrics"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)

type failingSeries struct{}

func (failingSeries) GetSeries(context.Context, string, domrepo.Timeframe, int) ([]models.PriceBar, error) {
	return nil, domrepo.ErrSeriesUnavailable
}

type recordingPublisher struct {
	mu       sync.Mutex
	predicts []*models.Prediction
	resolves []*models.Prediction
}

func (r *recordingPublisher) PublishPrediction(_ context.Context, p *models.Prediction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.predicts = append(r.predicts, p)
	return nil
}

func (r *recordingPublisher) PublishResolution(_ context.Context, p *models.Prediction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolves = append(r.resolves, p)
	return nil
}

func (r *recordingPublisher) Close() error { return nil }

type staticPrices map[string]float64

func (s staticPrices) Current(_ context.Context, symbol string) (models.Quote, error) {
	p, ok := s[symbol]
	if !ok {
		return models.Quote{}, domrepo.ErrSeriesUnavailable
	}
	return models.Quote{Symbol: symbol, Price: p}, nil
}

func newQuoteCache(t *testing.T) *quotes.Cache {
	mc := cache.NewMemoryCache()
	t.Cleanup(func() { _ = mc.Close() })
	return quotes.New(mc)
}

func newPredictionUC(series domrepo.SeriesSource, store domrepo.PredictionStore, pub domrepo.PredictionPublisher) *PredictionUseCase {
	rec := structure.NewReconciler(analyzer.NewDefault(confidence.NewProductionPolicy()), structure.DefaultConfig())
	uc := NewPredictionUseCase(series, store, pub, rec, metrics.Nop{}, logger.Nop(), PredictionConfig{})
	uc.now = func() time.Time { return fixedNow }
	return uc
}

func TestPredictPersistsAndPublishes(t *testing.T) {
	store := repository.NewMemoryPredictionStore()
	pub := &recordingPublisher{}
	uc := newPredictionUC(sources.NewMockAt(func() time.Time { return fixedNow }), store, pub)

	doc, err := uc.Predict(context.Background(), " gold_otc ", "")
	require.NoError(t, err)
	assert.Equal(t, "GOLD_OTC", doc.Symbol)
	assert.Equal(t, "5m", doc.Timeframe)
	assert.Equal(t, []string{"1h", "4h"}, doc.Prediction.AnalysisTimeframes)
	assert.Contains(t, []signals.Direction{signals.Up, signals.Down}, doc.Prediction.Direction)
	assert.GreaterOrEqual(t, doc.Prediction.Confidence, 75.0)
	assert.LessOrEqual(t, doc.Prediction.Confidence, 90.0)
	assert.True(t, doc.ThresholdMet)
	require.NotNil(t, doc.PredictionID)

	p, err := store.Get(context.Background(), *doc.PredictionID)
	require.NoError(t, err)
	assert.Equal(t, fixedNow.Add(5*time.Minute), p.ResolveAt)
	assert.Equal(t, doc.Prediction.CurrentPrice, p.EntryPrice)
	assert.Equal(t, confidence.PolicyProduction, p.Policy)
	assert.NotEmpty(t, p.Indicators)
	assert.False(t, p.IsResolved)
	require.Len(t, pub.predicts, 1)
	assert.Equal(t, p.ID, pub.predicts[0].ID)
}

func TestPredictNullVerdictIsNotStored(t *testing.T) {
	store := repository.NewMemoryPredictionStore()
	pub := &recordingPublisher{}
	uc := newPredictionUC(failingSeries{}, store, pub)

	doc, err := uc.Predict(context.Background(), "GOLD_OTC", "")
	require.NoError(t, err)
	assert.Equal(t, signals.None, doc.Prediction.Direction)
	assert.Zero(t, doc.Prediction.Confidence)
	assert.False(t, doc.ThresholdMet)
	assert.Nil(t, doc.PredictionID)

	recent, _ := store.Recent(context.Background(), "", 10)
	assert.Empty(t, recent)
	assert.Empty(t, pub.predicts)

	_, err = uc.Predict(context.Background(), "  ", "")
	assert.ErrorIs(t, err, ErrSymbolRequired)
}

func TestPredictHorizon(t *testing.T) {
	store := repository.NewMemoryPredictionStore()
	uc := newPredictionUC(sources.NewMockAt(func() time.Time { return fixedNow }), store, &recordingPublisher{})

	doc, err := uc.Predict(context.Background(), "GOLD_OTC", domrepo.TF1m)
	require.NoError(t, err)
	assert.Equal(t, "1m", doc.Timeframe)
	assert.Equal(t, "1m", doc.Prediction.PredictionTimeframe)
	require.NotNil(t, doc.PredictionID)

	p, err := store.Get(context.Background(), *doc.PredictionID)
	require.NoError(t, err)
	assert.Equal(t, "1m", p.Timeframe)
	assert.Equal(t, fixedNow.Add(time.Minute), p.ResolveAt)

	_, err = uc.Predict(context.Background(), "GOLD_OTC", "2h")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

// risingSeries serves a steady 1h uptrend and nothing for other timeframes.
// Wicks overlap so no gaps or swings form.
type risingSeries struct{}

func (risingSeries) GetSeries(_ context.Context, symbol string, tf domrepo.Timeframe, n int) ([]models.PriceBar, error) {
	if tf != domrepo.TF1h {
		return nil, domrepo.ErrSeriesUnavailable
	}
	out := make([]models.PriceBar, n)
	for i := range out {
		c := 100 + float64(i)
		out[i] = models.PriceBar{
			Timestamp: fixedNow.Add(time.Duration(i-n) * time.Hour),
			Symbol:    symbol, Timeframe: string(tf),
			Open: c - 0.5, High: c + 1.5, Low: c - 1.5, Close: c, Volume: 1000,
		}
	}
	return out, nil
}

func against(signals.Input) []signals.Vote {
	return []signals.Vote{{Rule: "against", Direction: signals.Down, Weight: signals.WeightTrend}}
}

func TestPredictBelowLegacyThresholdIsNotStored(t *testing.T) {
	store := repository.NewMemoryPredictionStore()
	pub := &recordingPublisher{}
	an := analyzer.New(
		indicators.New(indicators.DefaultConfig()),
		signals.NewVoter(signals.TrendRule, against),
		confidence.NewAggregator(confidence.NewLegacyPolicy(96)),
	)
	rec := structure.NewReconciler(an, structure.DefaultConfig())
	uc := NewPredictionUseCase(risingSeries{}, store, pub, rec, metrics.Nop{}, logger.Nop(), PredictionConfig{})
	uc.now = func() time.Time { return fixedNow }

	doc, err := uc.Predict(context.Background(), "GOLD_OTC", "")
	require.NoError(t, err)
	assert.Equal(t, signals.Up, doc.Prediction.Direction)
	assert.InDelta(t, 95.0, doc.Prediction.Confidence, 0.01)
	assert.False(t, doc.ThresholdMet)
	assert.Nil(t, doc.PredictionID)
	assert.Equal(t, []string{"1h"}, doc.Prediction.AnalysisTimeframes)

	recent, err := store.Recent(context.Background(), "", 10)
	require.NoError(t, err)
	assert.Empty(t, recent)
	assert.Empty(t, pub.predicts)
}

func TestAnalyzeLegacyPolicy(t *testing.T) {
	uc := NewAnalyzeUseCase(sources.NewMockAt(func() time.Time { return fixedNow }),
		analyzer.NewDefault(nil), logger.Nop())

	doc, err := uc.Analyze(context.Background(), AnalyzeParams{
		Symbol: "USDMXN_OTC", Timeframe: domrepo.TF1h, Policy: "legacy", Threshold: 60, Bars: 100,
	})
	require.NoError(t, err)
	assert.Equal(t, confidence.PolicyLegacy, doc.Policy)
	assert.Equal(t, doc.Confidence >= 60, doc.MeetsThreshold)
	assert.NotEmpty(t, doc.Indicators)

	_, err = uc.Analyze(context.Background(), AnalyzeParams{Symbol: "X", Policy: "aggressive"})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestAnalyzeUnavailableSeriesIsNull(t *testing.T) {
	uc := NewAnalyzeUseCase(failingSeries{}, analyzer.NewDefault(nil), logger.Nop())
	doc, err := uc.Analyze(context.Background(), AnalyzeParams{Symbol: "GOLD_OTC"})
	require.NoError(t, err)
	assert.Equal(t, signals.None, doc.Direction)
	assert.False(t, doc.MeetsThreshold)
	assert.Nil(t, doc.Indicators)
}

func pending(symbol, dir string, entry float64, resolveAt time.Time) *models.Prediction {
	return &models.Prediction{
		ID:          uuid.New(),
		Symbol:      symbol,
		Timeframe:   "5m",
		Direction:   dir,
		EntryPrice:  entry,
		PredictedAt: resolveAt.Add(-5 * time.Minute),
		ResolveAt:   resolveAt,
	}
}

func newResolutionUC(t *testing.T, store domrepo.PredictionStore, prices PriceLookup, pub domrepo.PredictionPublisher, locker Locker) *ResolutionUseCase {
	t.Helper()
	uc := NewResolutionUseCase(store, prices, pub, locker, metrics.Nop{}, logger.Nop(), 0)
	uc.now = func() time.Time { return fixedNow }
	return uc
}

func TestResolveDue(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryPredictionStore()
	up := pending("GOLD_OTC", "UP", 100, fixedNow.Add(-time.Minute))
	down := pending("GOLD_OTC", "DOWN", 100, fixedNow.Add(-2*time.Minute))
	flat := pending("USDMXN_OTC", "UP", 20, fixedNow.Add(-time.Minute))
	noPrice := pending("CADCHF_OTC", "UP", 1, fixedNow.Add(-time.Minute))
	future := pending("GOLD_OTC", "UP", 100, fixedNow.Add(time.Minute))
	for _, p := range []*models.Prediction{up, down, flat, noPrice, future} {
		require.NoError(t, store.Save(ctx, p))
	}
	pub := &recordingPublisher{}
	uc := newResolutionUC(t, store, staticPrices{"GOLD_OTC": 101, "USDMXN_OTC": 20}, pub, newQuoteCache(t))

	sum, err := uc.ResolveDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepSummary{Due: 4, Resolved: 3, Correct: 1, Skipped: 1}, sum)
	assert.Len(t, pub.resolves, 3)

	got, _ := store.Get(ctx, up.ID)
	assert.True(t, got.IsResolved)
	assert.True(t, *got.IsCorrect)
	assert.Equal(t, 101.0, *got.ActualPrice)

	got, _ = store.Get(ctx, flat.ID)
	assert.False(t, *got.IsCorrect, "unchanged price is incorrect")

	got, _ = store.Get(ctx, future.ID)
	assert.False(t, got.IsResolved)

	acc, err := NewHistoryUseCase(store).Accuracy(ctx, "GOLD_OTC", "")
	require.NoError(t, err)
	require.Len(t, acc, 1)
	assert.Equal(t, 50.0, acc[0].AccuracyPercentage)
}

func TestResolveDueSkipsWhenLocked(t *testing.T) {
	ctx := context.Background()
	qc := newQuoteCache(t)
	ok, err := qc.Lock(ctx, resolveLockName, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	uc := newResolutionUC(t, repository.NewMemoryPredictionStore(), staticPrices{}, &recordingPublisher{}, qc)
	sum, err := uc.ResolveDue(ctx)
	require.NoError(t, err)
	assert.True(t, sum.Busy)
}

func TestResolveOne(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryPredictionStore()
	p := pending("GOLD_OTC", "DOWN", 100, fixedNow.Add(time.Hour))
	require.NoError(t, store.Save(ctx, p))
	uc := newResolutionUC(t, store, staticPrices{"GOLD_OTC": 99}, &recordingPublisher{}, nil)

	got, err := uc.Resolve(ctx, p.ID, 0)
	require.NoError(t, err)
	assert.True(t, *got.IsCorrect)
	assert.Equal(t, 99.0, *got.ActualPrice)

	_, err = uc.Resolve(ctx, p.ID, 98)
	assert.ErrorIs(t, err, domrepo.ErrAlreadyResolved)

	_, err = uc.Resolve(ctx, uuid.New(), 1)
	assert.ErrorIs(t, err, domrepo.ErrPredictionNotFound)
}

func TestRecentLimits(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryPredictionStore()
	for i := 0; i < 25; i++ {
		require.NoError(t, store.Save(ctx, pending("GOLD_OTC", "UP", 1, fixedNow.Add(time.Duration(i)*time.Minute))))
	}
	h := NewHistoryUseCase(store)

	out, err := h.Recent(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, out, 20)
	assert.True(t, out[0].PredictedAt.After(out[1].PredictedAt))

	out, _ = h.Recent(ctx, "USDMXN_OTC", 5)
	assert.NotNil(t, out)
	assert.Empty(t, out)
}

func TestManualBarShape(t *testing.T) {
	b := ManualBar("GOLD_OTC", 100, fixedNow)
	assert.Equal(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), b.Timestamp)
	assert.Equal(t, "1h", b.Timeframe)
	assert.Equal(t, 100.0, b.Open)
	assert.Equal(t, 100.0, b.Close)
	assert.InDelta(t, 100.1, b.High, 1e-9)
	assert.InDelta(t, 99.9, b.Low, 1e-9)
	assert.Equal(t, 1000.0, b.Volume)
}

func TestPriceUseCase(t *testing.T) {
	ctx := context.Background()
	qc := newQuoteCache(t)
	bars := repository.NewMemoryBarStore()
	uc := NewPriceUseCase(qc, bars, sources.NewMockAt(func() time.Time { return fixedNow }), metrics.Nop{}, nil, logger.Nop())
	uc.now = func() time.Time { return fixedNow }

	assert.Len(t, uc.Pairs(), 6)

	// nothing stored: series fallback
	q, err := uc.Current(ctx, "GOLD_OTC")
	require.NoError(t, err)
	assert.Equal(t, QuoteSourceSeries, q.Source)

	// cached now
	q2, err := uc.Current(ctx, "GOLD_OTC")
	require.NoError(t, err)
	assert.Equal(t, q.Price, q2.Price)

	// manual price replaces the cached quote
	_, err = uc.Manual(ctx, "gold_otc", 2400)
	require.NoError(t, err)
	q, err = uc.Current(ctx, "GOLD_OTC")
	require.NoError(t, err)
	assert.Equal(t, QuoteSourceManual, q.Source)
	assert.Equal(t, 2400.0, q.Price)

	// once the quote is gone the stored bar answers
	require.NoError(t, qc.Invalidate(ctx, "GOLD_OTC"))
	q, err = uc.Current(ctx, "GOLD_OTC")
	require.NoError(t, err)
	assert.Equal(t, QuoteSourceBar, q.Source)
	assert.Equal(t, 2400.0, q.Price)

	_, err = uc.Manual(ctx, "GOLD_OTC", 0)
	assert.ErrorIs(t, err, ErrInvalidPrice)
	_, err = uc.Current(ctx, "")
	assert.ErrorIs(t, err, ErrSymbolRequired)
}

func TestCurrentUnavailable(t *testing.T) {
	uc := NewPriceUseCase(newQuoteCache(t), repository.NewMemoryBarStore(), failingSeries{}, metrics.Nop{}, nil, logger.Nop())
	_, err := uc.Current(context.Background(), "GOLD_OTC")
	assert.ErrorIs(t, err, domrepo.ErrSeriesUnavailable)
}

func TestBarIngestHandler(t *testing.T) {
	ctx := context.Background()
	qc := newQuoteCache(t)
	bars := repository.NewMemoryBarStore()
	h := NewBarIngestHandler("bars", bars, qc, metrics.Nop{}, logger.Nop())
	assert.Equal(t, "bars", h.Topic())

	msg := `[{"symbol":"gold_otc","timeframe":"1h","t":1714564800000,"o":10,"h":12,"l":9,"c":11,"v":5},
	         {"symbol":"gold_otc","timeframe":"1h","t":1714568400,"c":13}]`
	require.NoError(t, h.Handle(ctx, []byte(msg)))

	got, err := bars.LatestBars(ctx, "GOLD_OTC", 10, domrepo.TF1h)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), got[0].Timestamp)
	assert.Equal(t, 13.0, got[1].Open)
	assert.Equal(t, 13.0, got[1].High)

	q, ok, err := qc.Quote(ctx, "GOLD_OTC")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 13.0, q.Price)

	assert.Error(t, h.Handle(ctx, []byte(`{"symbol":"","t":1,"c":1}`)))
	assert.Error(t, h.Handle(ctx, []byte(`nope`)))
}

type fakeStream struct {
	mu        sync.Mutex
	reads     int
	connected bool
}

func (f *fakeStream) Connect(context.Context) error   { f.set(true); return nil }
func (f *fakeStream) Subscribe(context.Context) error { return nil }
func (f *fakeStream) Reconnect(context.Context) error { return nil }
func (f *fakeStream) Close() error                    { f.set(false); return nil }

func (f *fakeStream) set(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = v
}

func (f *fakeStream) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

// Read delivers one quote then drops on the first session and idles on
// later ones.
func (f *fakeStream) Read(ctx context.Context) (<-chan *models.Quote, <-chan error) {
	f.mu.Lock()
	f.reads++
	n := f.reads
	f.mu.Unlock()

	out := make(chan *models.Quote, 1)
	errs := make(chan error, 1)
	if n == 1 {
		out <- &models.Quote{Symbol: "GOLD_OTC", Price: 2300, Timestamp: fixedNow, Source: "stream"}
		errs <- errors.New("dropped")
		close(out)
		close(errs)
		return out, errs
	}
	go func() {
		<-ctx.Done()
		close(out)
		close(errs)
	}()
	return out, errs
}

func TestQuoteCollectorFeedsCacheAndReconnects(t *testing.T) {
	qc := newQuoteCache(t)
	fs := &fakeStream{}
	pipe := mid.NewQuotePipeline(NewQuoteSink(qc, metrics.Nop{}), metrics.Nop{})
	c := NewQuoteCollector(fs, NewQuoteSink(qc, metrics.Nop{}), pipe, metrics.Nop{}, logger.Nop())
	require.NoError(t, c.Start(context.Background()))
	assert.True(t, c.IsConnected())

	require.Eventually(t, func() bool {
		fs.mu.Lock()
		defer fs.mu.Unlock()
		return fs.reads >= 2
	}, 2*time.Second, 10*time.Millisecond)

	q, ok, err := qc.Quote(context.Background(), "GOLD_OTC")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2300.0, q.Price)

	require.NoError(t, c.Shutdown(context.Background()))
	assert.False(t, c.IsConnected())
}
