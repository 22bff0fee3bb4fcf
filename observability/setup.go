package observability

import (
	"context"
	"errors"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Telemetry owns the installed providers and the wirekit instruments.
type Telemetry struct {
	Metrics *Metrics
	tracer  *sdktrace.TracerProvider
	meter   *sdkmetric.MeterProvider
}

// Setup installs exporters when cfg.Enabled and creates the instruments on
// the global meter. Disabled telemetry keeps the no-op global providers.
func Setup(ctx context.Context, cfg Config, serviceVersion string) (*Telemetry, error) {
	t := &Telemetry{}
	if cfg.Enabled {
		tp, err := InitTracer(ctx, cfg, serviceVersion)
		if err != nil {
			return nil, err
		}
		t.tracer = tp

		mp, err := InitMeter(ctx, cfg, serviceVersion)
		if err != nil {
			_ = tp.Shutdown(ctx)
			return nil, err
		}
		t.meter = mp
	}

	m, err := NewMetrics(Meter(instrumentationName))
	if err != nil {
		_ = t.Shutdown(ctx)
		return nil, err
	}
	t.Metrics = m
	return t, nil
}

// Enabled reports whether exporters are installed.
func (t *Telemetry) Enabled() bool { return t.tracer != nil }

// Shutdown flushes and stops the installed providers.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	if t.tracer != nil {
		errs = append(errs, t.tracer.Shutdown(ctx))
	}
	if t.meter != nil {
		errs = append(errs, t.meter.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
