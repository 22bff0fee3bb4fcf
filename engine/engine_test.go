package engine

import (
	"bytes"
	"context"
	stderrors "errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"testing/fstest"

	"github.com/kbukum/wirekit/decl"
	"github.com/kbukum/wirekit/emit"
	"github.com/kbukum/wirekit/errors"
	"github.com/kbukum/wirekit/graph"
	"github.com/kbukum/wirekit/logger"
	"github.com/kbukum/wirekit/observability"
	"github.com/kbukum/wirekit/plan"
)

const appSource = `package app

//wire:provider
func NewConfig() Config { return Config{} }

//wire:provider
func NewPool(cfg *Config) (*Pool, error) { return &Pool{}, nil }

//wire:provider
func NewServer(cfg *Config, p *Pool) *Server { return &Server{} }
`

func tree() fstest.MapFS {
	return fstest.MapFS{
		"app/app.go": {Data: []byte(appSource)},
	}
}

func TestResolveBeforeScan(t *testing.T) {
	e := New(tree())

	_, err := e.Resolve(context.Background(), plan.Request{Type: "app.Server"})
	appErr, ok := errors.AsAppError(err)
	if !ok || appErr.Code != errors.ErrCodeUnavailable {
		t.Fatalf("expected UNAVAILABLE, got %v", err)
	}
	if _, err := e.Check(context.Background()); err == nil {
		t.Error("expected check to fail before a scan")
	}
	if h := e.CheckHealth(context.Background()); h.Status != observability.HealthStatusDegraded {
		t.Errorf("expected degraded health, got %s", h.Status)
	}
}

func TestScanAndResolve(t *testing.T) {
	e := New(tree())
	ctx := context.Background()

	snap, err := e.Scan(ctx)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if snap.RunID == "" || snap.Graph.Len() != 3 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}

	p, err := e.Resolve(ctx, plan.Request{Type: "app.Server"})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	got := make([]string, 0, len(p.Steps))
	for _, k := range p.Keys() {
		got = append(got, k.String())
	}
	if strings.Join(got, ",") != "app.Config,app.Pool,app.Server" {
		t.Errorf("unexpected order %v", got)
	}
	if !p.Fallible {
		t.Error("expected fallible plan")
	}
	if h := e.CheckHealth(ctx); h.Status != observability.HealthStatusUp || h.Details["run_id"] != snap.RunID {
		t.Errorf("unexpected health %+v", h)
	}
}

func TestResolveFailures(t *testing.T) {
	e := New(tree())
	ctx := context.Background()
	if _, err := e.Scan(ctx); err != nil {
		t.Fatal(err)
	}

	_, err := e.Resolve(ctx, plan.Request{Type: "app.Missing"})
	var failures graph.Failures
	if !stderrors.As(err, &failures) {
		t.Fatalf("expected graph.Failures, got %T %v", err, err)
	}
	if len(failures) != 1 || failures[0].Kind != graph.KindMissingProvider {
		t.Errorf("unexpected failures %v", failures)
	}
}

func TestResolveInvalidRequest(t *testing.T) {
	e := New(tree())
	if _, err := e.Scan(context.Background()); err != nil {
		t.Fatal(err)
	}

	_, err := e.Resolve(context.Background(), plan.Request{})
	appErr, ok := errors.AsAppError(err)
	if !ok || appErr.Code != errors.ErrCodeInvalidInput {
		t.Fatalf("expected INVALID_INPUT, got %v", err)
	}
}

func TestScanUsesCache(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "nested", "cache.json")
	fsys := tree()
	fsys["app/extra.go"] = &fstest.MapFile{Data: []byte("package app\n\n//wire:provider\nfunc NewClock() Clock { return Clock{} }\n")}
	e := New(fsys, WithCache(cachePath))
	ctx := context.Background()

	first, err := e.Scan(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if first.Stats.Parsed != 2 || first.Stats.Reused != 0 {
		t.Fatalf("unexpected first stats %+v", first.Stats)
	}

	fsys["app/extra.go"] = &fstest.MapFile{Data: []byte("package app\n\n//wire:provider\nfunc NewClock() *Clock { return &Clock{} }\n")}
	second, err := e.Scan(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if second.Stats.Parsed != 1 || second.Stats.Reused != 1 {
		t.Errorf("expected only the changed unit to be parsed, got %+v", second.Stats)
	}
	if second.CacheWarning != "" {
		t.Errorf("unexpected cache warning %q", second.CacheWarning)
	}
	if second.RunID == first.RunID {
		t.Error("expected a fresh run id")
	}
	clock, ok := second.Graph.Node(decl.Key{Type: "app.Clock"})
	if !ok || clock.Provider.Form != decl.Shared {
		t.Error("expected the re-parsed declaration in the new snapshot")
	}
}

func TestScanCorruptCache(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "cache.json")
	if err := writeFile(cachePath, "{not json"); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	log := logger.NewWithWriter(&buf, &logger.Config{Level: "warn", Format: "json"}, "test")
	e := New(tree(), WithCache(cachePath), WithLogger(log))

	snap, err := e.Scan(context.Background())
	if err != nil {
		t.Fatalf("corrupt cache must not fail the scan: %v", err)
	}
	if snap.CacheWarning == "" || snap.Stats.Parsed != 1 {
		t.Errorf("expected warning and full parse, got %+v", snap)
	}
	if !strings.Contains(buf.String(), "cache ignored") {
		t.Errorf("expected a cache warning in the log, got %q", buf.String())
	}
	if h := e.CheckHealth(context.Background()); h.Message == "" {
		t.Error("expected health to mention the cache warning")
	}

	again, err := e.Scan(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if again.CacheWarning != "" || again.Stats.Reused != 1 {
		t.Errorf("expected the rewritten cache to be reused, got %+v", again)
	}
}

func TestDefaultLoggerFromRegistry(t *testing.T) {
	prev := logger.Get(logger.ComponentEngine)
	t.Cleanup(func() { logger.Register(logger.ComponentEngine, prev) })

	var buf bytes.Buffer
	logger.Register(logger.ComponentEngine, logger.NewWithWriter(&buf, &logger.Config{Level: "warn", Format: "json"}, "test"))

	cachePath := filepath.Join(t.TempDir(), "cache.json")
	if err := writeFile(cachePath, "{not json"); err != nil {
		t.Fatal(err)
	}
	if _, err := New(tree(), WithCache(cachePath)).Scan(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "cache ignored") {
		t.Errorf("expected the registered engine logger to be used, got %q", buf.String())
	}
}

func TestScanCancelled(t *testing.T) {
	e := New(tree())
	if _, err := e.Scan(context.Background()); err != nil {
		t.Fatal(err)
	}
	before, _ := e.Snapshot()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.Scan(ctx); err == nil {
		t.Fatal("expected cancelled scan to fail")
	}
	after, _ := e.Snapshot()
	if after != before {
		t.Error("failed scan must keep the previous snapshot")
	}
}

func TestCheck(t *testing.T) {
	fsys := tree()
	fsys["cyc/cyc.go"] = &fstest.MapFile{Data: []byte(`package cyc

//wire:provider
func NewA(b B) A { return A{} }

//wire:provider
func NewB(a A) B { return B{} }
`)}
	fsys["bad/bad.go"] = &fstest.MapFile{Data: []byte("package bad\n\n//wire:provider\nfunc (x T) New() int { return 0 }\n")}
	e := New(fsys)
	ctx := context.Background()
	if _, err := e.Scan(ctx); err != nil {
		t.Fatal(err)
	}

	report, err := e.Check(ctx)
	if err == nil {
		t.Fatal("expected check to report the cycle")
	}
	if report == nil || report.OK() {
		t.Fatal("expected a report with failures")
	}
	if len(report.Failures.Of(graph.KindCycle)) != 1 {
		t.Errorf("expected one cycle, got %v", report.Failures)
	}
	if len(report.Skipped) != 1 || report.Skipped[0].Unit != "bad/bad.go" {
		t.Errorf("expected bad unit to be skipped, got %v", report.Skipped)
	}
	if report.Providers != 5 {
		t.Errorf("expected 5 providers, got %d", report.Providers)
	}

	// The cycle is unreachable from app.Server.
	if _, err := e.Resolve(ctx, plan.Request{Type: "app.Server"}); err != nil {
		t.Errorf("unexpected resolve error: %v", err)
	}
}

func TestGenerate(t *testing.T) {
	e := New(tree())
	ctx := context.Background()
	if _, err := e.Scan(ctx); err != nil {
		t.Fatal(err)
	}

	src, p, err := e.Generate(ctx, plan.Request{Type: "app.Server"}, emit.Options{
		Module:  "example.com/demo",
		Package: "main",
		Dir:     "cmd/demo",
		Func:    "Build",
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(p.Steps) != 3 {
		t.Errorf("expected 3 steps, got %d", len(p.Steps))
	}
	out := string(src)
	for _, want := range []string{
		`"example.com/demo/app"`,
		"func Build() (*app.Server, error) {",
		"app.NewServer(",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("generated source missing %q:\n%s", want, out)
		}
	}

	_, _, err = e.Generate(ctx, plan.Request{Type: "app.Server"}, emit.Options{})
	appErr, ok := errors.AsAppError(err)
	if !ok || appErr.Code != errors.ErrCodeInvalidInput {
		t.Errorf("expected INVALID_INPUT for missing package, got %v", err)
	}
}

func TestConcurrentReads(t *testing.T) {
	e := New(tree())
	ctx := context.Background()
	if _, err := e.Scan(ctx); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	plans := make([]string, 8)
	for i := range plans {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%4 == 0 {
				_, _ = e.Scan(ctx)
				return
			}
			p, err := e.Resolve(ctx, plan.Request{Type: "app.Server"})
			if err != nil {
				t.Error(err)
				return
			}
			plans[i] = p.String()
		}(i)
	}
	wg.Wait()

	var want string
	for i, s := range plans {
		if i%4 == 0 {
			continue
		}
		if want == "" {
			want = s
		}
		if s != want {
			t.Errorf("plan %d differs:\n%s\nvs\n%s", i, s, want)
		}
	}
}
