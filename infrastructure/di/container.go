package di

import (
	"context"

	"go.uber.org/zap"

	"cms-backend/application/commands/bus"
	"cms-backend/application/ports"
	querybus "cms-backend/application/queries/bus"
	"cms-backend/infrastructure/config"
	"cms-backend/infrastructure/observability"
	"cms-backend/pkg/auth"
)

// Container holds all application dependencies
type Container struct {
	Config       *config.Config
	Logger       *zap.Logger
	LogLevel     zap.AtomicLevel
	Store        ports.KeyValueStore
	CommandBus   *bus.CommandBus
	QueryBus     *querybus.QueryBus
	JWTValidator *auth.JWTValidator
	Metrics      *observability.Metrics
	Tracing      *observability.TracerProvider
}

// Ready reports whether the store currently accepts traffic.
func (c *Container) Ready(ctx context.Context) error {
	if r, ok := c.Store.(interface{ Ready(context.Context) error }); ok {
		return r.Ready(ctx)
	}
	return nil
}
