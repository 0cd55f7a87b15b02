// Package telemetry sets up OpenTelemetry tracing for southd. Tracing is
// off unless an endpoint is configured; with no exporter the reconciler's
// spans are no-ops.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Config holds tracing configuration.
type Config struct {
	// Endpoint is the OTLP/HTTP collector endpoint (host:port). Empty
	// disables tracing entirely.
	Endpoint string `yaml:"endpoint"`

	// Insecure disables TLS on the exporter connection.
	Insecure bool `yaml:"insecure"`

	// ServiceName overrides the service.name resource attribute.
	ServiceName string `yaml:"service_name"`
}

// Provider wraps the tracer provider lifecycle.
type Provider struct {
	tp     *sdktrace.TracerProvider
	logger *slog.Logger
}

// Setup installs a global tracer provider when an endpoint is configured.
// Returns a Provider whose Shutdown must be called on exit; a nil-exporter
// Provider shuts down trivially.
func Setup(ctx context.Context, cfg Config, logger *slog.Logger) (*Provider, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Endpoint == "" {
		return &Provider{logger: logger}, nil
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "southd"
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: creating OTLP exporter: %w", err)
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
	))
	if err != nil {
		return nil, fmt.Errorf("telemetry: building resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	logger.Info("tracing enabled", "endpoint", cfg.Endpoint)

	return &Provider{tp: tp, logger: logger}, nil
}

// Shutdown flushes and stops the tracer provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tp == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return p.tp.Shutdown(ctx)
}
