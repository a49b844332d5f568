//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/google/wire"

	"canvas-backend/infrastructure/config"
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideDomainConfig,
	ProvideAWSConfig,
	ProvideGraphStore,
	ProvideEventPublisher,
	ProvideCache,
	ProvideCompleter,
	ProvideMetrics,
	ProvideTracer,
	ProvideContextTransferEngine,
	ProvideEdgeOrchestrator,
	ProvideExportPipeline,
	ProvideExporters,
	ProvideCommandBus,
	ProvideQueryBus,
	ProvideAuthConfig,
	ProvideRouter,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container. The returned cleanup
// closes the store and the cache.
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, func(), error) {
	wire.Build(SuperSet)
	return nil, nil, nil // Wire will replace this
}
