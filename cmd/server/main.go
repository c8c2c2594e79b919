package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/petii/mp3-magic-machine/internal/config"
	"github.com/petii/mp3-magic-machine/internal/logging"
	"github.com/petii/mp3-magic-machine/internal/metrics"
	"github.com/petii/mp3-magic-machine/internal/pipeline"
	"github.com/petii/mp3-magic-machine/internal/server"
	"github.com/petii/mp3-magic-machine/internal/store"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "mp3-magic-machine"
	serviceVersion    = "1.0.0"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging)

	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	// Log configuration summary (without credentials)
	logger.Info("Configuration loaded",
		slog.String("store_backend", cfg.Store.Backend),
		slog.String("delivery_mode", cfg.Delivery.Mode),
		slog.String("delivery_bucket", cfg.Delivery.Bucket),
		slog.String("staging_dir", cfg.Staging.Dir),
		slog.Bool("bounded_queue", cfg.Bridge.IsBounded()),
		slog.Bool("strict_decode", cfg.Decode.IsStrict()),
		slog.Int("encoder_quality", cfg.Encoder.Quality),
		slog.String("log_level", cfg.Logging.Level),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appMetrics := metrics.NewMetrics()
	logger.Info("Prometheus metrics initialized")

	objectStore, err := store.New(ctx, cfg.Store)
	if err != nil {
		logger.Error("Failed to create object store", slog.String("error", err.Error()))
		os.Exit(1)
	}

	orchestrator, err := pipeline.New(pipeline.Deps{
		Store:   objectStore,
		Options: pipeline.OptionsFromConfig(cfg),
		Logger:  logger,
		Metrics: appMetrics,
	})
	if err != nil {
		logger.Error("Failed to create pipeline", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if !cfg.HTTP.Enabled {
		logger.Error("HTTP endpoint is disabled; nothing to serve")
		os.Exit(1)
	}

	httpServer := server.NewHTTPServer(cfg.HTTP, logger, orchestrator, appMetrics)
	if err := httpServer.Start(); err != nil {
		logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for signals...",
		slog.String("http_address", cfg.HTTP.GetAddress()),
	)

	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("Context cancelled, shutting down")
	}

	logger.Info("Starting graceful shutdown...")

	// In-flight invocations get the shutdown window to finish
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
	}

	if err := appMetrics.Push(shutdownCtx, cfg.Metrics.PushgatewayURL, cfg.Metrics.Job); err != nil {
		logger.Warn("Failed to push final metrics", slog.String("error", err.Error()))
	}

	logger.Info("Service stopped")
}
