package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/example/go-readaloud/internal/config"
)

// shutdownTelemetry flushes the trace provider installed by setupTelemetry.
var shutdownTelemetry = func(context.Context) error { return nil }

// setupTelemetry installs a stdout span exporter when tracing is enabled.
// Spans go to stderr so they never mix with audio streamed to stdout.
func setupTelemetry(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	if !cfg.Telemetry.TraceStdout {
		return nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName("readaloud"),
			attribute.String("readaloud.device", cfg.Playback.Device),
		),
	)
	if err != nil {
		return fmt.Errorf("telemetry resource: %w", err)
	}

	exporter, err := stdouttrace.New(
		stdouttrace.WithWriter(os.Stderr),
		stdouttrace.WithPrettyPrint(),
	)
	if err != nil {
		return fmt.Errorf("telemetry exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	shutdownTelemetry = tp.Shutdown

	logger.Info("telemetry initialized", slog.String("exporter", "stdout"))
	return nil
}
