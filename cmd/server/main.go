package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/bobby-s-dev/weather-consensus/internal/api"
	"github.com/bobby-s-dev/weather-consensus/internal/config"
	"github.com/bobby-s-dev/weather-consensus/internal/events"
	"github.com/bobby-s-dev/weather-consensus/internal/logging"
	"github.com/bobby-s-dev/weather-consensus/internal/scheduler"
	"github.com/bobby-s-dev/weather-consensus/internal/services"
	"github.com/bobby-s-dev/weather-consensus/internal/storage"
	"github.com/bobby-s-dev/weather-consensus/internal/telemetry"
	"github.com/bobby-s-dev/weather-consensus/pkg/client"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	zap.ReplaceGlobals(logger)

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	if logger, err = logging.New(cfg.Server.LogLevel); err != nil {
		zap.L().Fatal("Failed to initialize logger", zap.Error(err))
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	logger.Info("Starting Weather Consensus Service")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Init(ctx, cfg.Tracing.ServiceName, cfg.Tracing.Endpoint, logger)
	if err != nil {
		logger.Fatal("Failed to initialize tracing", zap.Error(err))
	}

	// Provider registry
	registry, err := client.NewRegistry(cfg.Providers)
	if err != nil {
		logger.Fatal("Failed to build provider registry", zap.Error(err))
	}
	providers := registry.Providers(cfg.ClientConfig(), logger)

	// Failure events
	bus := events.NewBus(logger)
	recentFailures := events.NewRecentFailures(100)
	if err := recentFailures.Consume(ctx, bus, logger); err != nil {
		logger.Fatal("Failed to subscribe to failure events", zap.Error(err))
	}

	// Prediction history
	history, err := storage.Open(cfg.History.Path, logger)
	if err != nil {
		logger.Fatal("Failed to open history store", zap.Error(err))
	}

	// Initialize aggregator
	aggregator, err := services.NewAggregator(providers, cfg.Weights, logger,
		services.WithProviderTimeout(cfg.Client.Timeout),
		services.WithCache(services.NewPredictionCache(cfg.Cache.Duration, cfg.Cache.MaxSize, logger)),
		services.WithReporter(events.NewReporter(bus, logger)),
		services.WithHistory(history),
	)
	if err != nil {
		logger.Fatal("Failed to initialize aggregator", zap.Error(err))
	}

	// Initialize scheduler
	predictionScheduler := scheduler.NewScheduler(
		aggregator,
		cfg.Scheduler.DefaultLocations,
		cfg.Scheduler.FetchInterval,
		logger,
	)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		JSONEncoder:  fiber.DefaultJSONEncoder,
		ErrorHandler: api.ErrorHandler,
	})

	// Setup handlers and routes
	handlerOpts := []api.HandlerOption{
		api.WithHistory(history),
		api.WithFailures(recentFailures),
	}
	if cfg.Scheduler.Enabled {
		handlerOpts = append(handlerOpts, api.WithScheduler(predictionScheduler))
	}
	handler := api.NewHandler(aggregator, logger, handlerOpts...)
	api.SetupRoutes(app, handler, logger)

	// Start scheduler
	if cfg.Scheduler.Enabled {
		if err := predictionScheduler.Start(); err != nil {
			logger.Fatal("Failed to start scheduler", zap.Error(err))
		}
	}

	// Start server in goroutine
	go func() {
		addr := ":" + cfg.Server.Port
		logger.Info("Starting server", zap.String("address", addr))

		if err := app.Listen(addr); err != nil {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	<-ctx.Done()

	logger.Info("Shutting down server...")

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Stop scheduler
	predictionScheduler.Stop()

	// Shutdown Fiber app
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
	}

	aggregator.Close()

	if err := bus.Close(); err != nil {
		logger.Error("Failed to close event bus", zap.Error(err))
	}
	if err := history.Close(); err != nil {
		logger.Error("Failed to close history store", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("Failed to flush traces", zap.Error(err))
	}

	logger.Info("Server stopped")
}
