// Package otel wires OpenTelemetry tracing and metrics for the service.
package otel

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"repairtrack/pkg/logger"
)

// Config configures tracing and metrics export.
type Config struct {
	ServiceName string
	// Host is the OTLP gRPC collector endpoint, e.g. "otel-collector:4317".
	// Empty disables OTLP export.
	Host string
	// Probability is the trace sampling ratio in [0,1].
	Probability float64
	// Stdout pretty-prints spans to Writer when no Host is set.
	Stdout bool
	Writer io.Writer
}

func newResource(ctx context.Context, cfg Config) (*resource.Resource, error) {
	return resource.New(ctx,
		resource.WithTelemetrySDK(),
		resource.WithFromEnv(),
		resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)),
	)
}

// InitTracing installs a global tracer provider and propagator. The returned
// shutdown flushes pending spans.
func InitTracing(log *logger.Logger, cfg Config) (*sdktrace.TracerProvider, func(context.Context) error, error) {
	ctx := context.Background()

	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("otel resource: %w", err)
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sampler(cfg.Probability))),
	}

	switch {
	case cfg.Host != "":
		exp, err := otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(cfg.Host),
			otlptracegrpc.WithInsecure(),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("otlp trace exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exp))
		log.Info(ctx, "tracing enabled", "exporter", "otlp", "host", cfg.Host, "probability", cfg.Probability)

	case cfg.Stdout:
		w := cfg.Writer
		if w == nil {
			w = os.Stdout
		}
		exp, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, nil, fmt.Errorf("stdout trace exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exp))
		log.Info(ctx, "tracing enabled", "exporter", "stdout", "probability", cfg.Probability)

	default:
		log.Info(ctx, "tracing export disabled")
	}

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp, tp.Shutdown, nil
}

func sampler(p float64) sdktrace.Sampler {
	switch {
	case p >= 1:
		return sdktrace.AlwaysSample()
	case p <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.TraceIDRatioBased(p)
	}
}

type tracerKey struct{}

// InjectTracing stores tracer in ctx for AddSpan.
func InjectTracing(ctx context.Context, tracer trace.Tracer) context.Context {
	return context.WithValue(ctx, tracerKey{}, tracer)
}

// AddSpan starts a child span using the tracer injected into ctx, falling
// back to the global provider.
func AddSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer, ok := ctx.Value(tracerKey{}).(trace.Tracer)
	if !ok {
		tracer = Tracer()
	}
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// Tracer returns the service tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer("repairtrack")
}

// ExtractHTTP returns ctx carrying the remote span context found in h.
func ExtractHTTP(ctx context.Context, h http.Header) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, propagation.HeaderCarrier(h))
}

// GetTraceID returns the trace id of the span in ctx, or "".
func GetTraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}
