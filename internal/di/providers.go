package di

import (
	"context"
	"fmt"
	"strings"
	"time"

	"SignalCast/internal/domain/models"
	"SignalCast/internal/domain/repository"
	"SignalCast/internal/handler/api"
	mid "SignalCast/internal/middleware"
	internalrepo "SignalCast/internal/repository"
	"SignalCast/internal/service/quotes"
	"SignalCast/internal/service/quotestream"
	"SignalCast/internal/service/ratelimit"
	"SignalCast/internal/service/sources"
	"SignalCast/internal/services/analyzer"
	"SignalCast/internal/services/confidence"
	"SignalCast/internal/services/structure"
	"SignalCast/internal/usecase"
	"SignalCast/pkg/cache"
	pkgch "SignalCast/pkg/clickhouse"
	"SignalCast/pkg/config"
	pkgkafka "SignalCast/pkg/kafka"
	"SignalCast/pkg/logger"
	"SignalCast/pkg/metrics"
	"SignalCast/pkg/queue"
	"SignalCast/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: cfg.Log.TimeFormat,
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(cfg *config.Config) repository.Metrics {
	if !cfg.Metrics.Enabled {
		return metrics.Nop{}
	}
	return metrics.New()
}

// ProvideRedisCache connects to Redis unless the cache is memory-only.
func ProvideRedisCache(cfg *config.Config) (*cache.RedisCache, error) {
	if cfg.Cache.Type == "memory" {
		return nil, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Redis.Addr),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPool(max(cfg.Redis.PoolSize, 10), 5, 30*time.Second),
		cache.WithRedisPrefix(cfg.Cache.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return rc, nil
}

// ProvideCache selects the cache backend.
func ProvideCache(cfg *config.Config, rc *cache.RedisCache) cache.Service {
	switch cfg.Cache.Type {
	case "redis":
		return rc
	case "layered":
		return cache.NewLayeredCache(rc,
			cache.WithLayeredMemorySize(cfg.Cache.MemoryMaxSize),
			cache.WithLayeredMemoryTTL(cfg.Cache.MemoryTTL),
		)
	default:
		return cache.NewMemoryCache(
			cache.WithMemoryMaxSize(cfg.Cache.MemoryMaxSize),
			cache.WithMemoryCleanup(cfg.Cache.CleanupInterval),
		)
	}
}

// ProvideQuoteCache creates the quote and series cache.
func ProvideQuoteCache(cfg *config.Config, svc cache.Service) *quotes.Cache {
	return quotes.New(svc,
		quotes.WithQuoteTTL(cfg.Cache.QuoteTTL),
		quotes.WithSeriesTTL(cfg.Cache.SeriesTTL),
	)
}

// ProvideClickHouseClient creates a ClickHouse client and its schema, or nil
// when ClickHouse is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stmts := append(internalrepo.BarSchema(cfg.ClickHouse.Database), internalrepo.PredictionSchema(cfg.ClickHouse.Database)...)
	if err := client.InitSchema(ctx, stmts); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideBarStore uses ClickHouse when available and memory otherwise.
func ProvideBarStore(cfg *config.Config, ch *pkgch.Client, l *logger.Logger) repository.BarStore {
	if ch == nil {
		return internalrepo.NewMemoryBarStore()
	}
	return internalrepo.NewCHBarStore(ch, cfg.ClickHouse.Database, l)
}

// ProvidePredictionStore uses ClickHouse when available and memory otherwise.
func ProvidePredictionStore(cfg *config.Config, ch *pkgch.Client, l *logger.Logger) repository.PredictionStore {
	if ch == nil {
		return internalrepo.NewMemoryPredictionStore()
	}
	return internalrepo.NewCHPredictionStore(ch, cfg.ClickHouse.Database, l)
}

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
		pkgkafka.WithAutoCreateTopics(cfg.Environment != "production"),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvidePredictionPublisher publishes to Kafka when a producer exists.
func ProvidePredictionPublisher(cfg *config.Config, producer *pkgkafka.Producer) repository.PredictionPublisher {
	if producer == nil {
		return internalrepo.NopPublisher{}
	}
	return internalrepo.NewKafkaPredictionPublisher(producer, cfg.Kafka.Topics.Predictions, cfg.Kafka.Topics.Resolutions)
}

// ProvideSeriesSource builds the source chain in the configured order behind
// the series cache.
func ProvideSeriesSource(
	cfg *config.Config,
	bars repository.BarStore,
	qc *quotes.Cache,
	m repository.Metrics,
	l *logger.Logger,
) repository.SeriesSource {
	var chain []sources.Named
	for _, name := range cfg.Sources.Order {
		switch name {
		case sources.NameStore:
			chain = append(chain, sources.Named{Name: name, Source: sources.NewStore(bars)})
		case sources.NameAlphaVantage:
			av := cfg.Sources.AlphaVantage
			if av.APIKey == "" {
				l.Warn("alpha vantage disabled, no api key")
				continue
			}
			client := sources.NewAlphaVantageClient(av.Timeout)
			chain = append(chain, sources.Named{Name: name, Source: sources.NewAlphaVantage(client, av.BaseURL, av.APIKey)})
		case sources.NameMock:
			chain = append(chain, sources.Named{Name: name, Source: sources.NewMock()})
		}
	}
	return sources.NewCached(sources.NewChain(l, m, chain...), qc, l)
}

// ProvideAnalyzer builds the single-timeframe pipeline under the configured policy.
func ProvideAnalyzer(cfg *config.Config) (*analyzer.Analyzer, error) {
	p, err := confidence.PolicyByName(cfg.Prediction.Policy, cfg.Prediction.Threshold)
	if err != nil {
		return nil, err
	}
	return analyzer.NewDefault(p), nil
}

func ProvideReconciler(cfg *config.Config, an *analyzer.Analyzer) *structure.Reconciler {
	sc := structure.DefaultConfig()
	sc.SwingLookback = cfg.Prediction.SwingLookback
	sc.ProximityPct = cfg.Prediction.ProximityPct
	sc.MaxGaps = cfg.Prediction.MaxGaps
	sc.PrimaryTimeframe = cfg.Prediction.PrimaryTimeframe
	sc.HigherTimeframe = cfg.Prediction.HigherTimeframe
	return structure.NewReconciler(an, sc)
}

func ProvidePredictionUseCase(
	cfg *config.Config,
	series repository.SeriesSource,
	store repository.PredictionStore,
	pub repository.PredictionPublisher,
	rec *structure.Reconciler,
	m repository.Metrics,
	l *logger.Logger,
) *usecase.PredictionUseCase {
	return usecase.NewPredictionUseCase(series, store, pub, rec, m, l, usecase.PredictionConfig{
		PrimaryTimeframe: repository.NormalizeTimeframe(cfg.Prediction.PrimaryTimeframe),
		HigherTimeframe:  repository.NormalizeTimeframe(cfg.Prediction.HigherTimeframe),
		HistoryBars:      cfg.Prediction.HistoryBars,
		Horizon:          cfg.Prediction.Horizon,
		FetchTimeout:     cfg.Prediction.FetchTimeout,
	})
}

func ProvideAnalyzeUseCase(series repository.SeriesSource, an *analyzer.Analyzer, l *logger.Logger) *usecase.AnalyzeUseCase {
	return usecase.NewAnalyzeUseCase(series, an, l)
}

// ProvidePriceUseCase restricts the pair catalogue to configured symbols.
func ProvidePriceUseCase(
	cfg *config.Config,
	qc *quotes.Cache,
	bars repository.BarStore,
	series repository.SeriesSource,
	m repository.Metrics,
	l *logger.Logger,
) *usecase.PriceUseCase {
	return usecase.NewPriceUseCase(qc, bars, series, m, pairsFor(cfg.Prediction.Symbols), l)
}

func pairsFor(symbols []string) []models.TradingPair {
	if len(symbols) == 0 {
		return nil
	}
	known := make(map[string]models.TradingPair)
	for _, p := range models.DefaultPairs() {
		known[p.Symbol] = p
	}
	out := make([]models.TradingPair, 0, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		p, ok := known[s]
		if !ok {
			p = models.TradingPair{Symbol: s, Name: s, IsActive: true}
		}
		out = append(out, p)
	}
	return out
}

func ProvideResolutionUseCase(
	cfg *config.Config,
	store repository.PredictionStore,
	prices *usecase.PriceUseCase,
	pub repository.PredictionPublisher,
	qc *quotes.Cache,
	m repository.Metrics,
	l *logger.Logger,
) *usecase.ResolutionUseCase {
	return usecase.NewResolutionUseCase(store, prices, pub, qc, m, l, cfg.Prediction.ResolveBatch)
}

func ProvideHistoryUseCase(store repository.PredictionStore) *usecase.HistoryUseCase {
	return usecase.NewHistoryUseCase(store)
}

// ProvideJobQueue creates the Redis job queue running the resolution sweep,
// or nil without Redis.
func ProvideJobQueue(cfg *config.Config, rc *cache.RedisCache, uc *usecase.ResolutionUseCase, l *logger.Logger) *queue.RedisQueue {
	if rc == nil {
		return nil
	}
	q := queue.NewRedisQueue(l, &queue.QueueConfig{
		Workers:    cfg.Queue.Workers,
		RetryLimit: cfg.Queue.RetryLimit,
		RetryDelay: cfg.Queue.RetryDelay,
	}, rc.Client(), queue.WithKeyPrefix(cfg.Queue.KeyPrefix))
	q.RegisterJob(usecase.NewResolveDueJob(uc))
	return q
}

// ProvideSweepScheduler enqueues sweeps when a queue exists and runs them
// inline otherwise.
func ProvideSweepScheduler(cfg *config.Config, q *queue.RedisQueue, uc *usecase.ResolutionUseCase, l *logger.Logger) *usecase.SweepScheduler {
	var pub queue.Publisher
	if q != nil {
		pub = q
	}
	return usecase.NewSweepScheduler(cfg.Prediction.ResolveInterval, pub, uc, l)
}

// ProvideQuoteCollector creates the live quote collector, or nil when the
// stream is disabled.
func ProvideQuoteCollector(cfg *config.Config, qc *quotes.Cache, m repository.Metrics, l *logger.Logger) *usecase.QuoteCollector {
	if !cfg.Stream.Enabled {
		return nil
	}
	symbols := cfg.Prediction.Symbols
	if len(symbols) == 0 {
		for _, p := range models.DefaultPairs() {
			symbols = append(symbols, p.Symbol)
		}
	}
	stream := quotestream.New(
		cfg.Stream.URL,
		cfg.Stream.Token,
		symbols,
		cfg.Stream.ReconnectDelay,
		cfg.Stream.PingInterval,
		l,
	)
	sink := usecase.NewQuoteSink(qc, m)
	pipe := mid.NewQuotePipeline(sink, m,
		mid.WithMaxRPS(cfg.Stream.MaxRPS),
		mid.WithBufferSize(2000),
	)
	return usecase.NewQuoteCollector(stream, sink, pipe, m, l)
}

// ProvideKafkaConsumer creates the bar ingestion consumer, or nil when Kafka
// is disabled.
func ProvideKafkaConsumer(cfg *config.Config, l *logger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerAutoOffsetReset(cfg.Kafka.Consumer.AutoOffsetReset),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.NewHookChain(pkgkafka.TracingHook(), pkgkafka.LoggingHook(l, time.Second)))
	return consumer, nil
}

// ProvideBarIngestHandler handles the bars topic.
func ProvideBarIngestHandler(cfg *config.Config, bars repository.BarStore, qc *quotes.Cache, m repository.Metrics, l *logger.Logger) *usecase.BarIngestHandler {
	return usecase.NewBarIngestHandler(cfg.Kafka.Topics.Bars, bars, qc, m, l)
}

// ProvideForecastHandler creates the HTTP handler with per-client rate limiting.
func ProvideForecastHandler(
	cfg *config.Config,
	l *logger.Logger,
	prediction *usecase.PredictionUseCase,
	analyze *usecase.AnalyzeUseCase,
	resolution *usecase.ResolutionUseCase,
	history *usecase.HistoryUseCase,
	prices *usecase.PriceUseCase,
	collector *usecase.QuoteCollector,
	ch *pkgch.Client,
) *api.ForecastHandler {
	health := func() map[string]bool {
		checks := map[string]bool{}
		if collector != nil {
			checks["stream"] = collector.IsConnected()
		}
		if ch != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			checks["clickhouse"] = ch.Health(ctx) == nil
		}
		return checks
	}
	h := api.NewForecastHandler(l, prediction, analyze, resolution, history, prices, health)
	rl := cfg.Server.RateLimit
	h.Use(ratelimit.Middleware(ratelimit.New(), float64(rl.Capacity), rl.RefillPerSec, ratelimit.ByRealIP))
	return h
}

// ProvideApp creates the application server. The log collector ships
// aggregated errors to Kafka when a producer exists.
func ProvideApp(
	cfg *config.Config,
	l *logger.Logger,
	handler *api.ForecastHandler,
	collector *usecase.QuoteCollector,
	consumer *pkgkafka.Consumer,
	bh *usecase.BarIngestHandler,
	jobs *queue.RedisQueue,
	scheduler *usecase.SweepScheduler,
	producer *pkgkafka.Producer,
	pub repository.PredictionPublisher,
	svc cache.Service,
	ch *pkgch.Client,
) *server.App {
	if producer != nil {
		topic := cfg.Log.Topic
		if topic == "" {
			topic = cfg.Kafka.Topics.Logs
		}
		l.AddCollector(&logger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          topic,
			Publisher:      producer,
		})
	}
	return server.New(server.Deps{
		Config:     cfg,
		Logger:     l,
		Handler:    handler,
		Collector:  collector,
		Consumer:   consumer,
		Ingest:     bh,
		Jobs:       jobs,
		Scheduler:  scheduler,
		Publisher:  pub,
		Cache:      svc,
		ClickHouse: ch,
	})
}
