package server

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"

	"github.com/petii/mp3-magic-machine/internal/config"
	"github.com/petii/mp3-magic-machine/internal/event"
	"github.com/petii/mp3-magic-machine/internal/metrics"
)

// LambdaHandler runs one pipeline invocation per S3 event
type LambdaHandler struct {
	handler Handler
	logger  *slog.Logger
	metrics *metrics.Metrics
	push    config.MetricsConfig
}

// NewLambdaHandler creates a handler for the Lambda runtime. Metrics are pushed
// to the configured Pushgateway after every invocation.
func NewLambdaHandler(handler Handler, logger *slog.Logger, m *metrics.Metrics, push config.MetricsConfig) *LambdaHandler {
	return &LambdaHandler{
		handler: handler,
		logger:  logger,
		metrics: m,
		push:    push,
	}
}

// HandleEvent processes the records of an S3 event notification
func (l *LambdaHandler) HandleEvent(ctx context.Context, e events.S3Event) error {
	records, err := event.FromS3Event(e)
	if err != nil {
		l.logger.Error("Invalid notification", slog.String("error", err.Error()))
		return fmt.Errorf("invalid notification: %w", err)
	}

	result, err := l.handler.Handle(ctx, records)

	if pushErr := l.metrics.Push(ctx, l.push.PushgatewayURL, l.push.Job); pushErr != nil {
		l.logger.Warn("Failed to push metrics", slog.String("error", pushErr.Error()))
	}

	if err != nil {
		return err
	}

	l.logger.Info("Event handled",
		slog.Int("records", len(records)),
		slog.Int("delivered", len(result.Delivered)),
	)
	return nil
}
