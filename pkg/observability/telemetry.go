// Package observability provides OpenTelemetry-based tracing and metrics
// with backend-agnostic configuration.
package observability

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Config configures the observability stack.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string

	// TraceExporter is pluggable (OTLP, stdout, ...). Nil disables tracing.
	TraceExporter sdktrace.SpanExporter

	// MetricReader is pluggable (Prometheus, OTLP, ...). Nil disables
	// metric export.
	MetricReader sdkmetric.Reader

	Logger *slog.Logger
}

// Telemetry manages the observability stack. With no exporters configured
// every instrument is a no-op, so instrumented code never branches.
type Telemetry struct {
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
	Metrics        *Metrics
	Logger         *slog.Logger

	shutdownFuncs []func(context.Context) error
}

// Init initializes OpenTelemetry with graceful degradation.
func Init(ctx context.Context, cfg Config) (*Telemetry, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", cfg.ServiceName),
			attribute.String("service.version", cfg.ServiceVersion),
			attribute.String("deployment.environment", cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tel := &Telemetry{
		TracerProvider: tracenoop.NewTracerProvider(),
		MeterProvider:  noop.NewMeterProvider(),
		Logger:         cfg.Logger,
	}

	if cfg.TraceExporter != nil {
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(cfg.TraceExporter),
			sdktrace.WithResource(res),
		)
		tel.TracerProvider = tp
		tel.shutdownFuncs = append(tel.shutdownFuncs, tp.Shutdown)
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{}, propagation.Baggage{}))
	}

	if cfg.MetricReader != nil {
		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(cfg.MetricReader),
			sdkmetric.WithResource(res),
		)
		tel.MeterProvider = mp
		tel.shutdownFuncs = append(tel.shutdownFuncs, mp.Shutdown)
		otel.SetMeterProvider(mp)
	}

	metrics, err := NewMetrics(tel.MeterProvider.Meter("graphstore"))
	if err != nil {
		return nil, err
	}
	tel.Metrics = metrics

	return tel, nil
}

// Tracer returns a named tracer from the configured provider.
func (t *Telemetry) Tracer(name string) trace.Tracer {
	return t.TracerProvider.Tracer(name)
}

// Shutdown flushes and stops all providers.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	for _, fn := range t.shutdownFuncs {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("telemetry shutdown: %v", errs)
	}
	return nil
}
