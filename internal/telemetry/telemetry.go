package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

const serviceName = "cfddns"

// Config selects where spans go.
type Config struct {
	// Exporter is "none" (default), "console", "otlp" or "both".
	Exporter string
	// Endpoint is the OTLP gRPC endpoint (default "localhost:4317").
	Endpoint string
	// Console receives console spans. Defaults to os.Stderr so stdout stays clean for --summary.
	Console io.Writer
	Version string
}

// FromEnv reads OTEL_EXPORTER and OTEL_ENDPOINT.
func FromEnv() Config {
	return Config{
		Exporter: os.Getenv("OTEL_EXPORTER"),
		Endpoint: os.Getenv("OTEL_ENDPOINT"),
	}
}

// Setup installs a global tracer provider and returns its shutdown function.
func Setup(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	if cfg.Exporter == "" {
		cfg.Exporter = "none"
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.Console == nil {
		cfg.Console = os.Stderr
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(cfg.Version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	var exporters []sdktrace.SpanExporter
	switch cfg.Exporter {
	case "none":
		// spans are still created, just never exported
	case "console", "otlp", "both":
		if cfg.Exporter != "otlp" {
			consoleExporter, err := stdouttrace.New(
				stdouttrace.WithWriter(cfg.Console),
				stdouttrace.WithPrettyPrint(),
			)
			if err != nil {
				return nil, fmt.Errorf("failed to create console exporter: %w", err)
			}
			exporters = append(exporters, consoleExporter)
		}
		if cfg.Exporter != "console" {
			otlpExporter, err := otlptracegrpc.New(ctx,
				otlptracegrpc.WithEndpoint(cfg.Endpoint),
				otlptracegrpc.WithInsecure(),
			)
			if err != nil {
				return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
			}
			exporters = append(exporters, otlpExporter)
		}
	default:
		return nil, fmt.Errorf("unknown OTEL_EXPORTER %q: expected none, console, otlp or both", cfg.Exporter)
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithResource(res))
	for _, exporter := range exporters {
		tp.RegisterSpanProcessor(sdktrace.NewBatchSpanProcessor(exporter))
	}
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}
