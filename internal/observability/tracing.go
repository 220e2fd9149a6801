// Package observability wires OpenTelemetry tracing to a local OTLP
// collector over HTTP.
//
// The exporter targets a collector sidecar or agent on localhost rather
// than a vendor endpoint directly: the agent buffers and retries, and it
// holds the credentials so the application never sees an API key.
//
// Configuration (see the config package):
//
//	tracing_enabled: true
//	tracing_endpoint: "localhost:4318"
//	tracing_service: "wellnessgrid"
//	tracing_env: "prod"
package observability

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
)

// Config for the OTLP trace exporter.
type Config struct {
	// Endpoint is the collector's OTLP HTTP endpoint, host:port.
	Endpoint string
	// ServiceName tags every span; shown as the service in APM UIs.
	ServiceName string
	// Environment is the deployment environment (dev, staging, prod).
	Environment string
}

// DefaultEndpoint is the conventional local OTLP HTTP port.
const DefaultEndpoint = "localhost:4318"

// Setup installs a global TracerProvider exporting to the configured
// collector. It returns a shutdown function that flushes pending spans.
//
// A collector that cannot be dialed is not fatal: the exporter retries
// in the background, so startup order between the app and its agent
// does not matter.
func Setup(ctx context.Context, cfg Config, logger *slog.Logger) (shutdown func(context.Context) error, err error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(), // local collector, no TLS
	)
	if err != nil {
		return nil, fmt.Errorf("creating OTLP exporter: %w", err)
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		attribute.String("deployment.environment", cfg.Environment),
	))
	if err != nil {
		return nil, fmt.Errorf("building trace resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)

	logger.Debug("tracing enabled",
		"endpoint", endpoint,
		"service", cfg.ServiceName,
		"environment", cfg.Environment,
	)

	return provider.Shutdown, nil
}
