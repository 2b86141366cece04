//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/google/wire"

	"cms-backend/infrastructure/config"
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogLevel,
	ProvideLogger,
	ProvideAWSConfig,
	ProvideMetrics,
	ProvideTracing,
	ProvideStore,
	ProvideEventPublisher,
	ProvideCollector,
	ProvideRegistry,
	ProvideProjector,
	ProvideContentService,
	ProvideSettingsService,
	ProvideAuditService,
	ProvideAuthorizer,
	ProvideJWTValidator,
	ProvideLinkGraphBuilder,
	ProvideCommandBus,
	ProvideQueryBus,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, func(), error) {
	wire.Build(SuperSet)
	return nil, nil, nil // Wire will replace this
}
