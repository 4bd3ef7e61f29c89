//go:build wireinject
// +build wireinject

package di

import (
	"SignalCast/pkg/config"
	"SignalCast/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Observability
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideRedisCache,
		ProvideCache,
		ProvideQuoteCache,
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Repositories
		ProvideBarStore,
		ProvidePredictionStore,
		ProvidePredictionPublisher,
		ProvideSeriesSource,

		// Forecasting core
		ProvideAnalyzer,
		ProvideReconciler,

		// Use cases
		ProvidePredictionUseCase,
		ProvideAnalyzeUseCase,
		ProvidePriceUseCase,
		ProvideResolutionUseCase,
		ProvideHistoryUseCase,
		ProvideJobQueue,
		ProvideSweepScheduler,
		ProvideQuoteCollector,
		ProvideBarIngestHandler,

		// Transport
		ProvideForecastHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
