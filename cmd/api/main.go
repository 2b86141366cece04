package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"cms-backend/infrastructure/config"
	"cms-backend/infrastructure/di"
	"cms-backend/interfaces/http/rest"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	container, cleanup, err := di.InitializeContainer(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}
	defer cleanup()
	logger := container.Logger

	if cfg.IsDevelopment() && cfg.ConfigFile != "" {
		watcher, err := config.NewWatcher(cfg.ConfigFile, logger.Named("config"))
		if err != nil {
			logger.Warn("Config watcher disabled", zap.Error(err))
		} else {
			watcher.OnChange(func(o *config.Overlay) {
				applyLogLevel(container.LogLevel, o.Observability.LogLevel, logger)
			})
			watcher.Start()
			defer watcher.Stop()
		}
	}

	opts := rest.Options{
		CORS:           cfg.EnableCORS,
		RequestTimeout: cfg.RequestTimeout,
		Debug:          cfg.IsDevelopment(),
		Observer:       container.Metrics,
		Ready:          container.Ready,
	}
	if cfg.EnableMetrics {
		opts.MetricsHandler = container.Metrics.Handler()
	}
	router := rest.NewRouter(container.CommandBus, container.QueryBus, container.JWTValidator, opts, logger)

	srv := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      router.Setup(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Starting server",
			zap.String("address", cfg.ServerAddress),
			zap.String("environment", cfg.Environment),
			zap.String("store", cfg.StoreDriver),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}
	logger.Info("Server stopped")
}

// applyLogLevel switches the running log level after a config file edit.
func applyLogLevel(level zap.AtomicLevel, value string, logger *zap.Logger) {
	if value == "" {
		return
	}
	parsed, err := zapcore.ParseLevel(value)
	if err != nil {
		logger.Warn("Ignoring invalid log level from config file", zap.String("level", value))
		return
	}
	if parsed != level.Level() {
		level.SetLevel(parsed)
		logger.Info("Log level changed", zap.String("level", parsed.String()))
	}
}
