package engine

import (
	"context"
	"io/fs"
	"sync"
	"time"

	"github.com/kbukum/wirekit/emit"
	"github.com/kbukum/wirekit/errors"
	"github.com/kbukum/wirekit/graph"
	"github.com/kbukum/wirekit/logger"
	"github.com/kbukum/wirekit/observability"
	"github.com/kbukum/wirekit/plan"
	"github.com/kbukum/wirekit/scanner"
	"github.com/kbukum/wirekit/validation"
)

const componentName = "engine"

// Engine scans one source tree and plans against the latest scan.
type Engine struct {
	fsys      fs.FS
	cachePath string
	scanner   *scanner.Scanner
	log       *logger.Logger
	metrics   *observability.Metrics

	// scanMu serializes scans so two runs never race on the cache file.
	scanMu sync.Mutex
	mu     sync.RWMutex
	snap   *Snapshot
}

// Option configures an Engine.
type Option func(*Engine)

// WithCache persists the fingerprint cache at path. Empty disables caching.
func WithCache(path string) Option {
	return func(e *Engine) { e.cachePath = path }
}

// WithScanner replaces the default scanner.
func WithScanner(s *scanner.Scanner) Option {
	return func(e *Engine) { e.scanner = s }
}

// WithLogger sets the logger. The default is logger.Get(logger.ComponentEngine).
func WithLogger(l *logger.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithMetrics records operation metrics on m.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// New creates an engine for the tree rooted at fsys. It holds no snapshot
// until the first Scan.
func New(fsys fs.FS, opts ...Option) *Engine {
	e := &Engine{fsys: fsys}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = logger.Get(logger.ComponentEngine)
	}
	if e.scanner == nil {
		e.scanner = scanner.New()
	}
	return e
}

// Snapshot returns the current snapshot, if a scan has completed.
func (e *Engine) Snapshot() (*Snapshot, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snap, e.snap != nil
}

func (e *Engine) current() (*Snapshot, error) {
	snap, ok := e.Snapshot()
	if !ok {
		return nil, errors.Unavailable("no scan has completed yet")
	}
	return snap, nil
}

// Scan rescans the tree, refreshes the cache and swaps in a new snapshot.
// Problems with individual units end up in Snapshot.Skipped; the error is
// reserved for an unwalkable root or a cancelled context, in which case the
// previous snapshot stays current.
func (e *Engine) Scan(ctx context.Context) (snap *Snapshot, err error) {
	e.scanMu.Lock()
	defer e.scanMu.Unlock()

	ctx, op := observability.StartOperation(ctx, observability.SpanScan, e.metrics)
	defer func() { op.End(ctx, err) }()

	prior, cacheWarning := e.loadCache()
	res, err := e.scanner.Scan(ctx, e.fsys, prior)
	if err != nil {
		e.log.Error("scan failed", logger.ErrorFields(observability.SpanScan, err))
		return nil, err
	}
	if e.cachePath != "" {
		if err := res.Cache.Save(e.cachePath); err != nil {
			cacheWarning = err.Error()
			e.log.Warn("cache not saved", logger.Fields(logger.FieldError, err.Error()))
		}
	}

	g, failures := graph.Build(res.Model)
	snap = &Snapshot{
		RunID:        res.RunID,
		ScannedAt:    time.Now().UTC(),
		Duration:     res.Duration,
		Stats:        res.Stats,
		Skipped:      res.Skipped,
		CacheWarning: cacheWarning,
		Model:        res.Model,
		Graph:        g,
		Failures:     failures,
	}

	e.mu.Lock()
	e.snap = snap
	e.mu.Unlock()

	e.metrics.RecordUnits(ctx, observability.UnitParsed, res.Stats.Parsed)
	e.metrics.RecordUnits(ctx, observability.UnitReused, res.Stats.Reused)
	e.metrics.RecordUnits(ctx, observability.UnitSkipped, res.Stats.Skipped)
	observability.SetSpanAttribute(ctx, observability.AttrRunID, res.RunID)
	observability.SetSpanAttribute(ctx, "units.seen", res.Stats.Seen)

	e.log.Info("scan complete", logger.MergeWithDuration(logger.Fields(
		logger.FieldRunID, res.RunID,
		"seen", res.Stats.Seen,
		"parsed", res.Stats.Parsed,
		"reused", res.Stats.Reused,
		"skipped", res.Stats.Skipped,
		"providers", g.Len(),
		"graph_failures", len(failures),
	), res.Duration))
	return snap, nil
}

// loadCache returns the prior cache, or nil when caching is off. A cache
// that exists but cannot be used is reported and replaced by an empty one.
func (e *Engine) loadCache() (*scanner.Cache, string) {
	if e.cachePath == "" {
		return nil, ""
	}
	c, err := scanner.LoadCache(e.cachePath)
	if err != nil {
		e.log.Warn("cache ignored", logger.Fields(logger.FieldError, err.Error()))
		return c, err.Error()
	}
	return c, ""
}

// Resolve plans the construction of req against the current snapshot. A
// resolution problem is returned as graph.Failures holding every failure
// found.
func (e *Engine) Resolve(ctx context.Context, req plan.Request) (p *plan.Plan, err error) {
	ctx, op := observability.StartOperation(ctx, observability.SpanResolve, e.metrics)
	defer func() { op.End(ctx, err) }()

	snap, err := e.current()
	if err != nil {
		return nil, err
	}
	return e.resolve(ctx, snap, req, observability.SpanResolve)
}

func (e *Engine) resolve(ctx context.Context, snap *Snapshot, req plan.Request, operation string) (*plan.Plan, error) {
	if err := validation.Validate(req); err != nil {
		return nil, err
	}
	observability.SetSpanAttribute(ctx, observability.AttrRoot, req.String())
	log := e.log.WithContext(ctx).WithFields(logger.Fields(
		logger.FieldRunID, snap.RunID,
		logger.FieldRoot, req.String(),
	))

	p, failures := plan.Resolve(snap.Graph, req)
	if len(failures) > 0 {
		e.recordFailures(ctx, failures, operation)
		log.Warn("resolution failed", logger.Fields(
			logger.FieldCount, len(failures),
			logger.FieldError, failures.Error(),
		))
		return nil, failures
	}
	log.Debug("resolved", logger.Fields("steps", len(p.Steps), "fallible", p.Fallible))
	return p, nil
}

// Generate resolves req and renders the plan as Go source.
func (e *Engine) Generate(ctx context.Context, req plan.Request, opts emit.Options) (src []byte, p *plan.Plan, err error) {
	ctx, op := observability.StartOperation(ctx, observability.SpanGenerate, e.metrics)
	defer func() { op.End(ctx, err) }()

	if err := validation.Validate(opts); err != nil {
		return nil, nil, err
	}
	snap, err := e.current()
	if err != nil {
		return nil, nil, err
	}
	p, err = e.resolve(ctx, snap, req, observability.SpanGenerate)
	if err != nil {
		return nil, nil, err
	}
	src, err = emit.Generate(p, opts)
	if err != nil {
		e.log.Error("generation failed", logger.ErrorFields(observability.SpanGenerate, err))
		return nil, p, errors.Internal(err)
	}
	e.log.Info("injector generated", logger.Fields(
		logger.FieldRoot, req.String(),
		"func", opts.Func,
		"bytes", len(src),
	))
	return src, p, nil
}

// Check validates the whole graph: every unresolvable edge, duplicate and
// cycle, whether or not any root reaches it. The report is returned even
// when it holds failures, together with them as the error.
func (e *Engine) Check(ctx context.Context) (r *Report, err error) {
	ctx, op := observability.StartOperation(ctx, observability.SpanCheck, e.metrics)
	defer func() { op.End(ctx, err) }()

	snap, err := e.current()
	if err != nil {
		return nil, err
	}

	failures := append(graph.Failures{}, snap.Failures...)
	failures = append(failures, snap.Graph.DetectCycles()...)
	r = &Report{
		RunID:     snap.RunID,
		Providers: len(snap.Model.Providers),
		Bindings:  len(snap.Model.Bindings),
		Skipped:   snap.Skipped,
		Failures:  failures,
	}

	if len(failures) > 0 {
		e.recordFailures(ctx, failures, observability.SpanCheck)
	}
	e.log.Info("check complete", logger.Fields(
		logger.FieldRunID, snap.RunID,
		"providers", r.Providers,
		"failures", len(failures),
		"skipped", len(snap.Skipped),
	))
	return r, failures.Err()
}

func (e *Engine) recordFailures(ctx context.Context, failures graph.Failures, operation string) {
	for _, f := range failures {
		e.metrics.RecordFailure(ctx, string(f.Kind), operation)
	}
}

// CheckHealth reports degraded until a scan has completed.
func (e *Engine) CheckHealth(context.Context) observability.Health {
	snap, ok := e.Snapshot()
	if !ok {
		return observability.Health{
			Name:    componentName,
			Status:  observability.HealthStatusDegraded,
			Message: "no scan loaded",
		}
	}
	h := observability.Health{
		Name:   componentName,
		Status: observability.HealthStatusUp,
		Details: map[string]string{
			"run_id":     snap.RunID,
			"scanned_at": snap.ScannedAt.Format(time.RFC3339),
		},
	}
	if snap.CacheWarning != "" {
		h.Message = snap.CacheWarning
	}
	return h
}
