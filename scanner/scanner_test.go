package scanner

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"testing/fstest"

	"github.com/kbukum/wirekit/decl"
	"github.com/kbukum/wirekit/graph"
	"github.com/kbukum/wirekit/plan"
)

// countingParser wraps a parser and counts Parse calls.
type countingParser struct {
	UnitParser
	calls atomic.Int32
}

func (c *countingParser) Parse(path string, src []byte) (decl.Unit, error) {
	c.calls.Add(1)
	return c.UnitParser.Parse(path, src)
}

type panickingParser struct{}

func (panickingParser) Name() string { return "panic" }

func (panickingParser) Match(path string) bool { return filepath.Ext(path) == ".boom" }

func (panickingParser) Parse(string, []byte) (decl.Unit, error) { panic("boom") }

func tree() fstest.MapFS {
	return fstest.MapFS{
		"db/db.go": {Data: []byte(`package db

//wire:provider
func NewPool(cfg *Config) *Pool { return &Pool{} }
`)},
		"db/config.go": {Data: []byte(`package db

//wire:provider
func NewConfig() Config { return Config{} }
`)},
		"svc/svc.go": {Data: []byte(`package svc

import "example.com/app/db"

type Repo interface{ Find() }

//wire:provider
func NewService(p *db.Pool, r Repo) Service { return Service{} }
`)},
		"svc/svc_test.go":     {Data: []byte("package svc\nthis is not go")},
		"vendor/x/x.go":       {Data: []byte("package x\n//wire:provider\nfunc New() int { return 0 }")},
		"_tools/gen.go":       {Data: []byte("not go")},
		".git/hooks.go":       {Data: []byte("not go")},
		"repo/repo.wire.yaml": {Data: []byte("package: repo\nproviders:\n  - {name: NewSQL, type: SQL, bind: [svc.Repo]}\n")},
		"README.md":           {Data: []byte("# app")},
	}
}

func TestScan_ExtractsModel(t *testing.T) {
	res, err := New(WithWorkers(2)).Scan(context.Background(), tree(), nil)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(res.Skipped) != 0 {
		t.Fatalf("expected no skipped units, got %v", res.Skipped)
	}
	if res.Stats != (Stats{Seen: 4, Parsed: 4}) {
		t.Errorf("unexpected stats %+v", res.Stats)
	}

	var symbols []string
	for _, p := range res.Model.Providers {
		symbols = append(symbols, p.Symbol)
	}
	want := []string{"NewConfig", "NewPool", "NewSQL", "NewService"}
	if len(symbols) != len(want) {
		t.Fatalf("providers = %v, want %v", symbols, want)
	}
	for i := range want {
		if symbols[i] != want[i] {
			t.Errorf("providers = %v, want %v", symbols, want)
			break
		}
	}

	svc := res.Model.Providers[3]
	if svc.Dependencies[1].Form != decl.Shared {
		t.Errorf("expected interface parameter to be shared, got %s", svc.Dependencies[1].Form)
	}
	if res.RunID == "" || res.Cache.RunID != res.RunID {
		t.Error("expected the cache to record the run ID")
	}
	if res.Cache.Len() != 4 {
		t.Errorf("expected 4 cache entries, got %d", res.Cache.Len())
	}
}

func TestScan_InterfaceValuesResolve(t *testing.T) {
	fsys := fstest.MapFS{
		"log/log.go": {Data: []byte(`package log

type Logger interface{ Print(string) }

//wire:provider
func NewLogger() Logger { return nil }
`)},
		"svc/svc.go": {Data: []byte(`package svc

import "example.com/app/log"

//wire:provider
func NewSvc(l log.Logger) *Svc { return &Svc{} }
`)},
		"store/store.go": {Data: []byte(`package store

type Repo interface{ Find() }

//wire:provider bind=Repo
func NewPG() PG { return PG{} }

//wire:provider
func NewUsers(r Repo) Users { return Users{} }
`)},
	}
	res, err := New().Scan(context.Background(), fsys, nil)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	g, fs := graph.Build(res.Model)
	if len(fs) > 0 {
		t.Fatalf("Build failed: %v", fs)
	}

	tests := []struct {
		name string
		root string
		want []plan.Op
	}{
		{"interface output into interface parameter", "svc.Svc", []plan.Op{plan.OpClone}},
		{"bound value into interface parameter", "store.Users", []plan.Op{plan.OpBind}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, fs := plan.Resolve(g, plan.Request{Type: tt.root})
			if len(fs) > 0 {
				t.Fatalf("Resolve(%s) failed: %v", tt.root, fs)
			}
			got := p.RootStep().Args[0].Ops
			if len(got) != len(tt.want) || got[0] != tt.want[0] {
				t.Errorf("ops = %v, want %v", got, tt.want)
			}
		})
	}

	for _, prov := range res.Model.Providers {
		if prov.Symbol == "NewLogger" && (prov.Form != decl.Shared || !prov.Handle()) {
			t.Errorf("expected NewLogger to produce a shared handle, got %s", prov.Form)
		}
	}
}

func TestScan_SkipsMalformedUnitOnly(t *testing.T) {
	fsys := tree()
	fsys["broken/broken.go"] = &fstest.MapFile{Data: []byte("package broken\nfunc (")}
	fsys["broken/bad.wire.yml"] = &fstest.MapFile{Data: []byte("providers: [")}
	fsys["empty/empty.wire.yaml"] = &fstest.MapFile{Data: []byte("")}

	clean, err := New().Scan(context.Background(), tree(), nil)
	if err != nil {
		t.Fatal(err)
	}
	res, err := New().Scan(context.Background(), fsys, nil)
	if err != nil {
		t.Fatalf("a malformed unit must not fail the scan: %v", err)
	}
	if len(res.Skipped) != 2 {
		t.Fatalf("expected 2 skipped units, got %v", res.Skipped)
	}
	if res.Skipped[0].Unit != "broken/bad.wire.yml" || res.Skipped[0].Warning == "" {
		t.Errorf("unexpected skipped entry %+v", res.Skipped[0])
	}
	if len(res.Model.Providers) != len(clean.Model.Providers) {
		t.Errorf("valid units lost declarations: %d vs %d", len(res.Model.Providers), len(clean.Model.Providers))
	}
	if _, ok := res.Cache.Entries["broken/broken.go"]; ok {
		t.Error("a skipped unit must not be cached")
	}
}

func TestScan_ReusesUnchangedUnits(t *testing.T) {
	fsys := tree()
	goParser := &countingParser{UnitParser: NewGoParser(nil)}
	s := New(WithParsers(goParser, NewManifestParser(nil)))

	first, err := s.Scan(context.Background(), fsys, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := goParser.calls.Load(); got != 3 {
		t.Fatalf("expected 3 Go parses, got %d", got)
	}

	fsys["db/db.go"] = &fstest.MapFile{Data: []byte(`package db

//wire:provider qualifier=fast
func NewPool(cfg *Config) *Pool { return &Pool{} }
`)}
	second, err := s.Scan(context.Background(), fsys, first.Cache)
	if err != nil {
		t.Fatal(err)
	}
	if got := goParser.calls.Load(); got != 4 {
		t.Errorf("expected only the changed unit to be parsed, total parses %d", got)
	}
	if second.Stats.Reused != 3 || second.Stats.Parsed != 1 {
		t.Errorf("unexpected stats %+v", second.Stats)
	}
	if first.Cache.Entries["db/db.go"].Fingerprint == second.Cache.Entries["db/db.go"].Fingerprint {
		t.Error("expected the changed unit to get a new fingerprint")
	}
	if a, b := first.Cache.Entries["svc/svc.go"], second.Cache.Entries["svc/svc.go"]; a.Fingerprint != b.Fingerprint || !a.ScannedAt.Equal(b.ScannedAt) {
		t.Error("expected unchanged entries to carry over")
	}

	var pool decl.Provider
	for _, p := range second.Model.Providers {
		if p.Symbol == "NewPool" {
			pool = p
		}
	}
	if pool.Qualifier != "fast" {
		t.Errorf("expected re-parsed declarations, got qualifier %q", pool.Qualifier)
	}
}

func TestScan_CacheDoesNotChangeResult(t *testing.T) {
	fsys := tree()
	cold, err := New().Scan(context.Background(), fsys, nil)
	if err != nil {
		t.Fatal(err)
	}
	warm, err := New().Scan(context.Background(), fsys, cold.Cache)
	if err != nil {
		t.Fatal(err)
	}
	if warm.Stats.Parsed != 0 {
		t.Errorf("expected everything reused, got %+v", warm.Stats)
	}
	if len(cold.Model.Providers) != len(warm.Model.Providers) {
		t.Fatal("cache changed the model")
	}
	for i := range cold.Model.Providers {
		if cold.Model.Providers[i].Key() != warm.Model.Providers[i].Key() {
			t.Errorf("provider %d differs: %s vs %s", i, cold.Model.Providers[i].Key(), warm.Model.Providers[i].Key())
		}
	}
}

func TestScan_FailingUnitDropsCachedEntry(t *testing.T) {
	fsys := tree()
	first, err := New().Scan(context.Background(), fsys, nil)
	if err != nil {
		t.Fatal(err)
	}
	fsys["db/db.go"] = &fstest.MapFile{Data: []byte("package db\nfunc (")}
	second, err := New().Scan(context.Background(), fsys, first.Cache)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := second.Cache.Entries["db/db.go"]; ok {
		t.Error("expected the failing unit's entry to be dropped")
	}
	for _, p := range second.Model.Providers {
		if p.Symbol == "NewPool" {
			t.Error("stale declarations of a failing unit must not be used")
		}
	}
}

func TestScan_VanishedUnitsArePruned(t *testing.T) {
	fsys := tree()
	first, err := New().Scan(context.Background(), fsys, nil)
	if err != nil {
		t.Fatal(err)
	}
	delete(fsys, "db/config.go")
	second, err := New().Scan(context.Background(), fsys, first.Cache)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := second.Cache.Entries["db/config.go"]; ok {
		t.Error("expected vanished unit to be pruned from the cache")
	}
	if second.Stats.Seen != 3 {
		t.Errorf("expected 3 units seen, got %d", second.Stats.Seen)
	}
}

func TestScan_ExcludeAndPanics(t *testing.T) {
	fsys := tree()
	fsys["gen/x.boom"] = &fstest.MapFile{Data: []byte("x")}
	s := New(
		WithParsers(NewGoParser(nil), NewManifestParser(nil), panickingParser{}),
		WithExclude("svc", "*.wire.yaml"),
	)
	res, err := s.Scan(context.Background(), fsys, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Skipped) != 1 || res.Skipped[0].Unit != "gen/x.boom" {
		t.Fatalf("expected the panicking unit to be skipped, got %v", res.Skipped)
	}
	for _, p := range res.Model.Providers {
		if p.Symbol == "NewService" || p.Symbol == "NewSQL" {
			t.Errorf("excluded provider %s was scanned", p.Symbol)
		}
	}
}

func TestScan_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New().Scan(ctx, tree(), nil); err == nil {
		t.Error("expected a cancelled scan to fail")
	}
}

func TestScan_EmptyTree(t *testing.T) {
	res, err := New().Scan(context.Background(), fstest.MapFS{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Stats.Seen != 0 || len(res.Model.Providers) != 0 {
		t.Errorf("expected an empty result, got %+v", res.Stats)
	}
}

func TestCache_SaveAndLoad(t *testing.T) {
	res, err := New().Scan(context.Background(), tree(), nil)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "nested", "cache.json")
	if err := res.Cache.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	loaded, err := LoadCache(path)
	if err != nil {
		t.Fatalf("LoadCache failed: %v", err)
	}
	if loaded.RunID != res.RunID || loaded.Len() != res.Cache.Len() {
		t.Errorf("cache did not round trip: %s/%d vs %s/%d", loaded.RunID, loaded.Len(), res.RunID, res.Cache.Len())
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("expected no temp files left behind, got %d entries", len(entries))
	}
}

func TestLoadCache_MissingAndCorrupt(t *testing.T) {
	dir := t.TempDir()

	c, err := LoadCache(filepath.Join(dir, "missing.json"))
	if err != nil || c.Len() != 0 {
		t.Errorf("expected an empty cache without error, got %v %v", c, err)
	}

	corrupt := filepath.Join(dir, "corrupt.json")
	if err := os.WriteFile(corrupt, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err = LoadCache(corrupt)
	if err == nil {
		t.Error("expected a warning for a corrupt cache")
	}
	if c == nil || c.Len() != 0 {
		t.Error("expected an empty cache for a corrupt file")
	}

	old := filepath.Join(dir, "old.json")
	if err := os.WriteFile(old, []byte(`{"version": 1, "entries": {}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadCache(old); err == nil {
		t.Error("expected a warning for an outdated cache")
	}
}

func TestFingerprint(t *testing.T) {
	a, b := Fingerprint([]byte("a")), Fingerprint([]byte("b"))
	if a == b {
		t.Error("expected different content to fingerprint differently")
	}
	if len(a) != 64 {
		t.Errorf("expected a 256-bit hex digest, got %d chars", len(a))
	}
	if Fingerprint([]byte("a")) != a {
		t.Error("expected fingerprints to be stable")
	}
}
