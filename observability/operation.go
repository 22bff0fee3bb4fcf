package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Operation statuses.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Operation tracks one traced and metered wirekit operation.
type Operation struct {
	Name      string
	StartTime time.Time
	Metrics   *Metrics
	span      trace.Span
}

// StartOperation starts a span named name. If metrics is nil, metric
// recording is skipped.
func StartOperation(ctx context.Context, name string, metrics *Metrics) (context.Context, *Operation) {
	ctx, span := StartSpan(ctx, name)
	span.SetAttributes(attribute.String(AttrOperationName, name))
	return ctx, &Operation{
		Name:      name,
		StartTime: time.Now(),
		Metrics:   metrics,
		span:      span,
	}
}

// Span returns the operation's span.
func (o *Operation) Span() trace.Span { return o.span }

// End ends the span and records the operation metric. A non-nil err marks
// the operation failed.
func (o *Operation) End(ctx context.Context, err error) {
	duration := time.Since(o.StartTime)
	status := StatusOK
	if err != nil {
		status = StatusFailed
		SetSpanError(trace.ContextWithSpan(ctx, o.span), err)
		o.span.SetAttributes(attribute.String(AttrErrorMessage, err.Error()))
	}

	o.span.SetAttributes(
		attribute.String(AttrStatus, status),
		attribute.Int64(AttrDurationMs, duration.Milliseconds()),
	)
	o.span.End()

	o.Metrics.RecordOperation(ctx, o.Name, status, duration)
}

// Duration returns the elapsed time since the operation started.
func (o *Operation) Duration() time.Duration {
	return time.Since(o.StartTime)
}
