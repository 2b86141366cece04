package di

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"cms-backend/application/collector"
	"cms-backend/application/commands/bus"
	commandhandlers "cms-backend/application/commands/handlers"
	"cms-backend/application/linkgraph"
	"cms-backend/application/ports"
	"cms-backend/application/projection"
	querybus "cms-backend/application/queries/bus"
	queryhandlers "cms-backend/application/queries/handlers"
	"cms-backend/application/services"
	"cms-backend/infrastructure/config"
	"cms-backend/infrastructure/messaging/eventbridge"
	"cms-backend/infrastructure/observability"
	"cms-backend/infrastructure/persistence"
	"cms-backend/infrastructure/persistence/badger"
	"cms-backend/infrastructure/persistence/dynamodb"
	"cms-backend/infrastructure/persistence/memory"
	"cms-backend/pkg/auth"
)

const serviceName = "cms-backend"

// ProvideLogLevel parses LOG_LEVEL into a level the config watcher can
// change at runtime.
func ProvideLogLevel(cfg *config.Config) (zap.AtomicLevel, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return zap.AtomicLevel{}, fmt.Errorf("invalid LOG_LEVEL %q: %w", cfg.LogLevel, err)
	}
	return zap.NewAtomicLevelAt(level), nil
}

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config, level zap.AtomicLevel) (*zap.Logger, func(), error) {
	var zcfg zap.Config
	if cfg.IsProduction() {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = level

	logger, err := zcfg.Build()
	if err != nil {
		return nil, nil, err
	}
	logger = logger.With(zap.String("service", serviceName), zap.String("environment", cfg.Environment))
	return logger, func() { _ = logger.Sync() }, nil
}

// ProvideAWSConfig creates AWS configuration
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
}

// ProvideMetrics creates the Prometheus metrics
func ProvideMetrics() *observability.Metrics {
	return observability.NewMetrics("cms")
}

// ProvideTracing installs the OTLP tracer provider when ENABLE_TRACING is
// set. The returned provider is nil otherwise.
func ProvideTracing(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*observability.TracerProvider, func(), error) {
	if !cfg.EnableTracing {
		return nil, func() {}, nil
	}
	tp, err := observability.InitTracing(ctx, observability.TracingConfig{
		ServiceName: serviceName,
		Environment: cfg.Environment,
		Endpoint:    cfg.OTLPEndpoint,
		Insecure:    !cfg.IsProduction(),
	})
	if err != nil {
		return nil, nil, err
	}
	logger.Info("Tracing enabled", zap.String("endpoint", cfg.OTLPEndpoint))
	return tp, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Tracer shutdown failed", zap.Error(err))
		}
	}, nil
}

// ProvideStore opens the store selected by STORE_DRIVER behind a circuit
// breaker.
func ProvideStore(cfg *config.Config, awsCfg aws.Config, logger *zap.Logger) (ports.KeyValueStore, func(), error) {
	var (
		store   ports.KeyValueStore
		cleanup = func() {}
	)
	switch cfg.StoreDriver {
	case config.StoreDynamoDB:
		store = dynamodb.NewStore(awsdynamodb.NewFromConfig(awsCfg), cfg.TableName, logger.Named("dynamodb"))
	case config.StoreBadger:
		db, err := badger.Open(badger.Config{Path: cfg.BadgerPath, SyncWrites: true}, logger)
		if err != nil {
			return nil, nil, err
		}
		store = db
		cleanup = func() {
			if err := db.Close(); err != nil {
				logger.Warn("Badger close failed", zap.Error(err))
			}
		}
	case config.StoreMemory:
		store = memory.NewStore(logger.Named("memory"))
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}

	logger.Info("Store ready", zap.String("driver", cfg.StoreDriver))
	breaker := persistence.NewCircuitBreakerStore(store, persistence.DefaultCircuitBreakerConfig("store-"+cfg.StoreDriver), logger)
	return breaker, cleanup, nil
}

// ProvideEventPublisher returns the EventBridge publisher on the DynamoDB
// deployment and nil (audit records only) elsewhere.
func ProvideEventPublisher(cfg *config.Config, awsCfg aws.Config, logger *zap.Logger) ports.EventPublisher {
	if cfg.StoreDriver != config.StoreDynamoDB || cfg.EventBusName == "" {
		return nil
	}
	return eventbridge.NewPublisher(awseventbridge.NewFromConfig(awsCfg), cfg.EventBusName, logger.Named("eventbridge"))
}

// ProvideCollector creates the paginated scope collector
func ProvideCollector(store ports.KeyValueStore, cfg *config.Config, metrics *observability.Metrics, logger *zap.Logger) *collector.Collector {
	return collector.New(store, logger,
		collector.WithMaxPages(cfg.CollectorMaxPages),
		collector.WithPageObserver(metrics.ObserveScan),
	)
}

// ProvideRegistry returns the indexers of every projected entity kind
func ProvideRegistry() *projection.Registry {
	return projection.DefaultRegistry()
}

// ProvideProjector creates the adjacency projector
func ProvideProjector(store ports.KeyValueStore, coll *collector.Collector, registry *projection.Registry, logger *zap.Logger) *projection.Projector {
	return projection.NewProjector(store, coll, registry, logger)
}

// ProvideContentService creates the content reader
func ProvideContentService(coll *collector.Collector, logger *zap.Logger) *services.ContentService {
	return services.NewContentService(coll, logger)
}

// ProvideSettingsService creates the tenant settings reader
func ProvideSettingsService(store ports.KeyValueStore, logger *zap.Logger) *services.SettingsService {
	return services.NewSettingsService(store, logger)
}

// ProvideAuditService creates the audit log
func ProvideAuditService(store ports.KeyValueStore, coll *collector.Collector, publisher ports.EventPublisher, logger *zap.Logger) *services.AuditService {
	return services.NewAuditService(store, coll, publisher, logger)
}

// ProvideAuthorizer creates the role-based authorizer
func ProvideAuthorizer(logger *zap.Logger) ports.Authorizer {
	return auth.NewRoleAuthorizer(logger)
}

// ProvideJWTValidator creates the bearer token validator
func ProvideJWTValidator(cfg *config.Config) (*auth.JWTValidator, error) {
	secret := cfg.JWTSecret
	if secret == "" && !cfg.IsProduction() {
		secret = "development-only-secret"
	}
	return auth.NewJWTValidator(auth.JWTConfig{
		SigningMethod: "HS256",
		SecretKey:     secret,
		Issuer:        cfg.JWTIssuer,
		Audience:      []string{cfg.JWTAudience},
	})
}

// ProvideLinkGraphBuilder creates the link graph builder
func ProvideLinkGraphBuilder(
	content *services.ContentService,
	settings *services.SettingsService,
	cfg *config.Config,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *linkgraph.Builder {
	return linkgraph.NewBuilder(content, settings, logger,
		linkgraph.WithDefaultListingLimit(cfg.DefaultListingLimit),
		linkgraph.WithObserver(metrics.ObserveLinkGraph),
	)
}

// ProvideCommandBus creates a command bus with registered handlers
func ProvideCommandBus(
	authorizer ports.Authorizer,
	store ports.KeyValueStore,
	projector *projection.Projector,
	settings *services.SettingsService,
	audit *services.AuditService,
	metrics *observability.Metrics,
	logger *zap.Logger,
) (*bus.CommandBus, error) {
	commandBus := bus.NewCommandBus(
		bus.MetricsMiddleware(metrics),
		bus.LoggingMiddleware(logger),
	)
	err := commandhandlers.Register(commandBus, commandhandlers.Dependencies{
		Authorizer: authorizer,
		Store:      store,
		Projector:  projector,
		Settings:   settings,
		Audit:      audit,
		Logger:     logger,
		Now:        time.Now,
	})
	if err != nil {
		return nil, fmt.Errorf("register command handlers: %w", err)
	}
	return commandBus, nil
}

// ProvideQueryBus creates a query bus with registered handlers
func ProvideQueryBus(
	authorizer ports.Authorizer,
	projector *projection.Projector,
	graph *linkgraph.Builder,
	content *services.ContentService,
	audit *services.AuditService,
	cfg *config.Config,
	metrics *observability.Metrics,
	logger *zap.Logger,
) (*querybus.QueryBus, error) {
	queryBus := querybus.NewQueryBus(
		querybus.MetricsMiddleware(metrics),
		querybus.LoggingMiddleware(logger),
	)
	err := queryhandlers.Register(queryBus, queryhandlers.Dependencies{
		Authorizer:   authorizer,
		Projector:    projector,
		Graph:        graph,
		Content:      content,
		Audit:        audit,
		DefaultLimit: cfg.DefaultListingLimit,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("register query handlers: %w", err)
	}
	return queryBus, nil
}
