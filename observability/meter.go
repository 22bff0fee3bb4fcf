package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Unit outcomes reported by RecordUnits.
const (
	UnitParsed  = "parsed"
	UnitReused  = "reused"
	UnitSkipped = "skipped"
)

// InitMeter initializes the OpenTelemetry meter provider.
// Returns a MeterProvider that should be shut down on application exit.
func InitMeter(ctx context.Context, cfg Config, serviceVersion string) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(cfg.ServiceName, serviceVersion, cfg.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if cfg.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(cfg.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)
	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Metrics holds the wirekit metric instruments.
type Metrics struct {
	unitTotal         metric.Int64Counter
	operationTotal    metric.Int64Counter
	operationDuration metric.Float64Histogram
	failureTotal      metric.Int64Counter
}

// NewMetrics creates metric instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	unitTotal, err := meter.Int64Counter("wirekit.units",
		metric.WithDescription("Source units seen by scans, by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating wirekit.units counter: %w", err)
	}

	operationTotal, err := meter.Int64Counter("wirekit.operations",
		metric.WithDescription("Scans, resolutions, generations and checks, by status"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating wirekit.operations counter: %w", err)
	}

	operationDuration, err := meter.Float64Histogram("wirekit.operation.duration",
		metric.WithDescription("Duration of operations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating wirekit.operation.duration histogram: %w", err)
	}

	failureTotal, err := meter.Int64Counter("wirekit.failures",
		metric.WithDescription("Resolution failures, by kind"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating wirekit.failures counter: %w", err)
	}

	return &Metrics{
		unitTotal:         unitTotal,
		operationTotal:    operationTotal,
		operationDuration: operationDuration,
		failureTotal:      failureTotal,
	}, nil
}

// RecordUnits adds n units with the given outcome.
func (m *Metrics) RecordUnits(ctx context.Context, outcome string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.unitTotal.Add(ctx, int64(n), metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordOperation records a finished operation.
func (m *Metrics) RecordOperation(ctx context.Context, operation, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.operationTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("status", status),
	))
	m.operationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("operation", operation),
	))
}

// RecordFailure records one resolution failure of the given kind.
func (m *Metrics) RecordFailure(ctx context.Context, kind, operation string) {
	if m == nil {
		return
	}
	m.failureTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("operation", operation),
	))
}
