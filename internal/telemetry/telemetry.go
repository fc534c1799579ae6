// Package telemetry sets up OpenTelemetry tracing for the service.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// ErrServiceNameRequired is returned by Init without a service name.
var ErrServiceNameRequired = errors.New("telemetry: service name required")

// Config controls tracing.
type Config struct {
	ServiceName    string
	ServiceVersion string
	// Endpoint is the OTLP/HTTP collector, e.g. http://127.0.0.1:4318.
	// Tracing is disabled when it is empty.
	Endpoint string
}

// ShutdownFunc flushes and stops the tracer provider.
type ShutdownFunc func(context.Context) error

func noopShutdown(context.Context) error { return nil }

// Init installs a global tracer provider exporting to cfg.Endpoint. With no
// endpoint the global no-op provider is left in place.
func Init(ctx context.Context, cfg Config) (ShutdownFunc, error) {
	if cfg.ServiceName == "" {
		return nil, ErrServiceNameRequired
	}
	if cfg.Endpoint == "" {
		return noopShutdown, nil
	}

	u, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("telemetry: parse endpoint: %w", err)
	}

	// host:port without a scheme parses into Path or Opaque
	endpoint := u.Host
	if endpoint == "" {
		endpoint = cfg.Endpoint
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint)}
	if u.Scheme != "https" {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create exporter: %w", err)
	}

	tp, err := newTracerProvider(exporter, cfg)
	if err != nil {
		_ = exporter.Shutdown(ctx)
		return nil, err
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}

func newTracerProvider(exporter sdktrace.SpanExporter, cfg Config) (*sdktrace.TracerProvider, error) {
	res, err := sdkresource.New(context.Background(), sdkresource.WithAttributes(
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
	))
	if err != nil {
		return nil, fmt.Errorf("telemetry: build resource: %w", err)
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
	), nil
}
