package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/wirekit/decl"
	"github.com/kbukum/wirekit/logger"
)

// Skipped is a unit left out of the model, with the reason.
type Skipped struct {
	Unit    string `json:"unit"`
	Warning string `json:"warning"`
}

// Stats counts what a scan did with its units.
type Stats struct {
	Seen    int `json:"seen"`
	Parsed  int `json:"parsed"`
	Reused  int `json:"reused"`
	Skipped int `json:"skipped"`
}

// Result is the outcome of one scan.
type Result struct {
	RunID   string
	Model   decl.Model
	Units   []decl.Unit
	Skipped []Skipped
	Stats   Stats
	// Cache holds an entry for every unit that produced declarations in this
	// run and nothing else.
	Cache    *Cache
	Duration time.Duration
}

// Scanner walks a source tree and extracts declarations.
type Scanner struct {
	parsers []UnitParser
	workers int
	exclude []string
	log     *logger.Logger
	now     func() time.Time
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithParsers replaces the unit parsers. The first matching parser wins.
func WithParsers(parsers ...UnitParser) Option {
	return func(s *Scanner) { s.parsers = parsers }
}

// WithWorkers bounds the number of units processed at once.
func WithWorkers(n int) Option {
	return func(s *Scanner) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithExclude skips files and directories whose slash path or base name
// matches any of the globs.
func WithExclude(globs ...string) Option {
	return func(s *Scanner) { s.exclude = append(s.exclude, globs...) }
}

// WithLogger sets the logger skipped units are reported to. The default is
// logger.Get(logger.ComponentScanner).
func WithLogger(l *logger.Logger) Option {
	return func(s *Scanner) { s.log = l }
}

// New creates a Scanner with the Go and manifest parsers.
func New(opts ...Option) *Scanner {
	s := &Scanner{
		parsers: []UnitParser{NewGoParser(nil), NewManifestParser(nil)},
		workers: runtime.NumCPU(),
		log:     logger.Get(logger.ComponentScanner),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type unitRef struct {
	path   string
	parser UnitParser
}

type outcome struct {
	unit        decl.Unit
	fingerprint string
	reused      bool
	warning     string
}

// Scan extracts the declarations under fsys. prior may be nil. The returned
// error is reserved for a root that cannot be walked or a cancelled context;
// problems with individual units are reported in Result.Skipped.
func (s *Scanner) Scan(ctx context.Context, fsys fs.FS, prior *Cache) (*Result, error) {
	start := s.now()
	res := &Result{RunID: uuid.NewString()}
	log := s.log.WithFields(logger.Fields(logger.FieldRunID, res.RunID))

	refs, walkSkipped, err := s.walk(fsys)
	if err != nil {
		return nil, fmt.Errorf("scanner: walking root: %w", err)
	}
	res.Skipped = append(res.Skipped, walkSkipped...)

	outcomes := make([]outcome, len(refs))
	var wg sync.WaitGroup
	sem := make(chan struct{}, s.concurrency(len(refs)))
	for i, ref := range refs {
		wg.Add(1)
		go func(i int, ref unitRef) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if ctx.Err() != nil {
				return
			}
			outcomes[i] = s.process(fsys, ref, prior)
		}(i, ref)
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res.Cache = NewCache()
	res.Cache.RunID = res.RunID
	scannedAt := s.now().UTC()
	for i, o := range outcomes {
		ref := refs[i]
		if o.warning != "" {
			res.Skipped = append(res.Skipped, Skipped{Unit: ref.path, Warning: o.warning})
			continue
		}
		at := scannedAt
		if o.reused {
			res.Stats.Reused++
			at = prior.Entries[ref.path].ScannedAt
		} else {
			res.Stats.Parsed++
		}
		res.Cache.Entries[ref.path] = CacheEntry{Fingerprint: o.fingerprint, Parser: ref.parser.Name(), Unit: o.unit, ScannedAt: at}
		res.Units = append(res.Units, o.unit)
	}

	sort.Slice(res.Skipped, func(i, j int) bool { return res.Skipped[i].Unit < res.Skipped[j].Unit })
	for _, sk := range res.Skipped {
		log.Warn("unit skipped", logger.Fields(logger.FieldUnit, sk.Unit, "warning", sk.Warning))
	}

	res.Stats.Seen = len(refs)
	res.Stats.Skipped = len(res.Skipped)
	res.Model = decl.Merge(res.Units).ShareInterfaces()
	res.Duration = s.now().Sub(start)

	log.Debug("scan finished", logger.MergeWithDuration(logger.Fields(
		"seen", res.Stats.Seen,
		"parsed", res.Stats.Parsed,
		"reused", res.Stats.Reused,
		"skipped", res.Stats.Skipped,
		"providers", len(res.Model.Providers),
	), res.Duration))
	return res, nil
}

// process reads, fingerprints and parses one unit. It never panics: a
// parser that does is treated like one that returned an error.
func (s *Scanner) process(fsys fs.FS, ref unitRef, prior *Cache) (out outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = outcome{warning: fmt.Sprintf("parser %s panicked: %v", ref.parser.Name(), r)}
		}
	}()

	src, err := fs.ReadFile(fsys, ref.path)
	if err != nil {
		return outcome{warning: fmt.Sprintf("read failed: %v", err)}
	}
	fp := Fingerprint(src)
	if unit, ok := prior.Lookup(ref.path, ref.parser.Name(), fp); ok {
		return outcome{unit: unit, fingerprint: fp, reused: true}
	}
	unit, err := ref.parser.Parse(ref.path, src)
	if err != nil {
		return outcome{warning: err.Error()}
	}
	unit.Path = ref.path
	return outcome{unit: unit, fingerprint: fp}
}

// walk lists the units under fsys in lexical order.
func (s *Scanner) walk(fsys fs.FS) ([]unitRef, []Skipped, error) {
	var refs []unitRef
	var skipped []Skipped
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == "." {
				return err
			}
			skipped = append(skipped, Skipped{Unit: p, Warning: fmt.Sprintf("walk failed: %v", err)})
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if p != "." && (skipDir(d.Name()) || s.excluded(p)) {
				return fs.SkipDir
			}
			return nil
		}
		if s.excluded(p) {
			return nil
		}
		for _, parser := range s.parsers {
			if parser.Match(p) {
				refs = append(refs, unitRef{path: p, parser: parser})
				break
			}
		}
		return nil
	})
	return refs, skipped, err
}

func (s *Scanner) excluded(p string) bool {
	base := path.Base(p)
	for _, glob := range s.exclude {
		if ok, _ := path.Match(glob, p); ok {
			return true
		}
		if ok, _ := path.Match(glob, base); ok {
			return true
		}
	}
	return false
}

func (s *Scanner) concurrency(units int) int {
	if units == 0 {
		return 1
	}
	if s.workers <= 0 || s.workers > units {
		return units
	}
	return s.workers
}

func skipDir(name string) bool {
	switch name {
	case "vendor", "testdata", "node_modules":
		return true
	}
	return strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")
}
