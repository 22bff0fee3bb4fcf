package engine

import (
	"time"

	"github.com/kbukum/wirekit/decl"
	"github.com/kbukum/wirekit/graph"
	"github.com/kbukum/wirekit/scanner"
)

// Snapshot is the immutable outcome of one scan.
type Snapshot struct {
	RunID     string            `json:"run_id"`
	ScannedAt time.Time         `json:"scanned_at"`
	Duration  time.Duration     `json:"duration"`
	Stats     scanner.Stats     `json:"stats"`
	Skipped   []scanner.Skipped `json:"skipped"`
	// CacheWarning is set when a cache existed but could not be used or
	// written.
	CacheWarning string `json:"cache_warning,omitempty"`

	Model decl.Model   `json:"-"`
	Graph *graph.Graph `json:"-"`
	// Failures are the edge and duplicate failures found while building the
	// whole graph. A resolution only reports those it can reach.
	Failures graph.Failures `json:"-"`
}

// Report is the outcome of a whole-graph check.
type Report struct {
	RunID     string            `json:"run_id"`
	Providers int               `json:"providers"`
	Bindings  int               `json:"bindings"`
	Skipped   []scanner.Skipped `json:"skipped"`
	Failures  graph.Failures    `json:"failures"`
}

// OK reports whether the check found nothing.
func (r *Report) OK() bool { return len(r.Failures) == 0 }
