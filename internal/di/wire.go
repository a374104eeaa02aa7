//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"FactorLens/pkg/config"
	"FactorLens/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		// Observability
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideCache,

		// Repositories
		ProvidePriceSource,
		ProvideResultStore,
		ProvideRunPublisher,
		ProvideArchiver,

		// Engine and use cases
		ProvideUniverse,
		ProvideEngine,
		ProvideWebsocketHub,
		ProvideRiskService,
		ProvideRefreshHandler,
		ProvideScheduler,

		// HTTP
		ProvideRateLimiter,
		ProvideRiskHandler,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return nil, nil, nil
}
