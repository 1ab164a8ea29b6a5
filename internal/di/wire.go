//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/google/wire"

	"GapSight/pkg/config"
	"GapSight/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
// The cleanup function closes every infrastructure client in reverse order.
func InitializeApp(ctx context.Context, cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		// Observability
		ProvideLogger,
		ProvideRegisterer,
		ProvideMetrics,
		ProvideDashboardMetrics,

		// Infrastructure clients
		ProvideUpstream,
		ProvideRedisClient,
		ProvideCache,
		ProvideChartCache,
		ProvideQueue,
		ProvideClickHouseClient,
		ProvideKafkaProducer,

		// Repositories
		ProvideSnapshotStorage,

		// Use cases
		ProvideUseCaseOptions,
		ProvideDashboardUseCase,
		ProvideCompetitorsUseCase,
		ProvideInsightsUseCase,
		ProvideReportsUseCase,
		ProvideSnapshotProcessor,
		ProvideSnapshotCollector,
		ProvideKafkaConsumer,

		// HTTP
		ProvideGrowthHub,
		ProvideRateLimiter,
		ProvideHTTPHandler,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return nil, nil, nil
}
