package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/petii/mp3-magic-machine/internal/config"
	"github.com/petii/mp3-magic-machine/internal/logging"
	"github.com/petii/mp3-magic-machine/internal/metrics"
	"github.com/petii/mp3-magic-machine/internal/pipeline"
	"github.com/petii/mp3-magic-machine/internal/server"
	"github.com/petii/mp3-magic-machine/internal/store"
)

// configEnv names the variable holding the configuration file path
const configEnv = "MAGIC_CONFIG"

func main() {
	cfg := config.Default()
	if path := os.Getenv(configEnv); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	} else if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Default configuration is not usable without %s: %v\n", configEnv, err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging)
	appMetrics := metrics.NewMetrics()

	objectStore, err := store.New(context.Background(), cfg.Store)
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

	handler := server.NewLambdaHandler(orchestrator, logger, appMetrics, cfg.Metrics)
	logger.Info("Lambda handler ready",
		slog.String("delivery_mode", cfg.Delivery.Mode),
		slog.String("delivery_bucket", cfg.Delivery.Bucket),
	)

	lambda.Start(handler.HandleEvent)
}
