package otel

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics records request rate, errors and duration.
type Metrics struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
}

// InitMetrics installs a global meter provider. With no Host, metrics are
// aggregated in-process but not exported.
func InitMetrics(cfg Config, extra ...sdkmetric.Option) (*Metrics, func(context.Context) error, error) {
	ctx := context.Background()

	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("otel resource: %w", err)
	}

	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	if cfg.Host != "" {
		exp, err := otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(cfg.Host),
			otlpmetricgrpc.WithInsecure(),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("otlp metric exporter: %w", err)
		}
		opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(15*time.Second))))
	}
	opts = append(opts, extra...)

	mp := sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(mp)

	m, err := NewMetrics(mp.Meter("repairtrack"))
	if err != nil {
		return nil, nil, err
	}
	return m, mp.Shutdown, nil
}

// NewMetrics creates the instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	requests, err := meter.Int64Counter("http.server.requests",
		metric.WithDescription("Tracking requests handled"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("http.server.duration",
		metric.WithDescription("Tracking request duration"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5),
	)
	if err != nil {
		return nil, err
	}
	return &Metrics{requests: requests, duration: duration}, nil
}

// Record adds one request observation. A nil Metrics is a no-op.
func (m *Metrics) Record(ctx context.Context, route, method string, status int, kind string, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("http.route", route),
		attribute.String("http.request.method", method),
		attribute.String("http.response.status_code", strconv.Itoa(status)),
		attribute.String("error.kind", kind),
	)
	m.requests.Add(ctx, 1, attrs)
	m.duration.Record(ctx, d.Seconds(), attrs)
}
