// Package observability provides OpenTelemetry tracing and metrics for
// wirekit scans and resolutions.
//
// Setup installs OTLP/HTTP tracer and meter providers when telemetry is
// enabled. When it is disabled the global providers stay no-op, so spans and
// instruments can be used unconditionally.
//
//	tel, err := observability.Setup(ctx, cfg.Telemetry, version.Get().Version)
//	defer tel.Shutdown(ctx)
//
//	ctx, op := observability.StartOperation(ctx, observability.SpanResolve, tel.Metrics)
//	defer op.End(ctx, err)
package observability
