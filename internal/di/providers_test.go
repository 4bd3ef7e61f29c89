package di

import (
	"context"
	"testing"

	"SignalCast/internal/domain/models"
	internalrepo "SignalCast/internal/repository"
	"SignalCast/pkg/cache"
	"SignalCast/pkg/config"
	"SignalCast/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, doc string) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte("environment: test\n" + doc))
	require.NoError(t, err)
	return cfg
}

func TestInitializeAppStandalone(t *testing.T) {
	cfg := testConfig(t, "metrics:\n  enabled: false\nlog:\n  level: error\nsources:\n  order: [store, mock]\n")

	app, err := InitializeApp(cfg)
	require.NoError(t, err)
	require.NotNil(t, app)

	assert.Nil(t, app.Jobs)
	assert.Nil(t, app.Collector)
	assert.Nil(t, app.Consumer)
	assert.Nil(t, app.ClickHouse)
	assert.IsType(t, internalrepo.NopPublisher{}, app.Publisher)
	assert.IsType(t, &cache.MemoryCache{}, app.Cache)
	assert.NotNil(t, app.Scheduler)
	require.NoError(t, app.Cache.(*cache.MemoryCache).Close())
}

func TestProvideLayeredCacheAndQueue(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t, "cache:\n  type: layered\nredis:\n  addr: "+mr.Addr()+"\n")

	rc, err := ProvideRedisCache(cfg)
	require.NoError(t, err)
	require.NotNil(t, rc)
	defer rc.Close()

	svc := ProvideCache(cfg, rc)
	assert.IsType(t, &cache.LayeredCache{}, svc)

	qc := ProvideQuoteCache(cfg, svc)
	ctx := context.Background()
	ok, err := qc.Lock(ctx, "sweep", 0)
	require.NoError(t, err)
	assert.True(t, ok)

	l := logger.Nop()
	uc := ProvideResolutionUseCase(cfg, internalrepo.NewMemoryPredictionStore(), nil, internalrepo.NopPublisher{}, qc, nil, l)
	q := ProvideJobQueue(cfg, rc, uc, l)
	require.NotNil(t, q)
	assert.NotNil(t, ProvideSweepScheduler(cfg, q, uc, l))
}

func TestProvideMemoryCacheSkipsRedis(t *testing.T) {
	cfg := testConfig(t, "")
	rc, err := ProvideRedisCache(cfg)
	require.NoError(t, err)
	assert.Nil(t, rc)
	assert.Nil(t, ProvideJobQueue(cfg, rc, nil, logger.Nop()))
}

func TestProvideAnalyzerPolicy(t *testing.T) {
	cfg := testConfig(t, "prediction:\n  policy: legacy\n  threshold: 60\n")
	an, err := ProvideAnalyzer(cfg)
	require.NoError(t, err)
	require.NotNil(t, an)
	assert.NotNil(t, ProvideReconciler(cfg, an))
}

func TestPairsFor(t *testing.T) {
	assert.Nil(t, pairsFor(nil))

	pairs := pairsFor([]string{" eurusd_otc ", "XAUUSD"})
	require.Len(t, pairs, 2)
	assert.Equal(t, "EURUSD_OTC", pairs[0].Symbol)
	assert.Equal(t, models.TradingPair{Symbol: "XAUUSD", Name: "XAUUSD", IsActive: true}, pairs[1])
}
