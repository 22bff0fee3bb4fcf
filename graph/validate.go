package graph

import (
	"strings"

	"github.com/kbukum/wirekit/decl"
)

const (
	unvisited = iota
	active
	done
)

// Root resolves a requested root type the same way a dependency edge is
// resolved, with qualifier acting as the hint.
func (g *Graph) Root(typ, qualifier string) (*Node, Failures) {
	n, _, f := g.Lookup(typ, qualifier)
	if f != nil {
		return nil, Failures{*f}
	}
	return n, nil
}

// Validate checks the subgraph reachable from root: cycles, unresolved
// edges and duplicate declarations. Every problem is reported, each
// unresolved edge with the chain of keys from root to its requester.
func (g *Graph) Validate(root *Node) Failures {
	w := newWalker(true)
	w.visit(root)
	return w.failures
}

// DetectCycles walks every node in declaration order and reports each
// distinct cycle once, regardless of reachability.
func (g *Graph) DetectCycles() Failures {
	w := newWalker(false)
	for _, n := range g.order {
		if w.state[n] == unvisited {
			w.visit(n)
		}
	}
	return w.failures
}

type walker struct {
	full     bool
	state    map[*Node]int
	path     []*Node
	cycles   map[string]bool
	failures Failures
}

func newWalker(full bool) *walker {
	return &walker{
		full:   full,
		state:  make(map[*Node]int),
		cycles: make(map[string]bool),
	}
}

func (w *walker) visit(n *Node) {
	w.state[n] = active
	w.path = append(w.path, n)

	if w.full && len(n.Duplicates) > 0 {
		f := duplicateFailure(n)
		f.Chain = pathKeys(w.path[:len(w.path)-1])
		w.failures = append(w.failures, f)
	}
	for _, e := range n.Edges {
		if e.Failure != nil {
			if w.full {
				f := *e.Failure
				f.Chain = pathKeys(w.path)
				w.failures = append(w.failures, f)
			}
			continue
		}
		switch w.state[e.To] {
		case active:
			w.cycle(e.To)
		case unvisited:
			w.visit(e.To)
		}
	}

	w.path = w.path[:len(w.path)-1]
	w.state[n] = done
}

// cycle records the cycle closed by revisiting n, from n back to n.
func (w *walker) cycle(n *Node) {
	start := len(w.path) - 1
	for start >= 0 && w.path[start] != n {
		start--
	}
	keys := pathKeys(w.path[start:])
	canon := canonical(keys)
	if w.cycles[canon] {
		return
	}
	w.cycles[canon] = true
	w.failures = append(w.failures, Failure{
		Kind:     KindCycle,
		Key:      n.Key(),
		Cycle:    append(keys, n.Key()),
		Location: n.Provider.Location,
	})
}

// CycleFailure builds the failure for a cycle closed by revisiting the
// last element of path.
func CycleFailure(path []decl.Key) Failure {
	last := path[len(path)-1]
	start := 0
	for i, k := range path[:len(path)-1] {
		if k == last {
			start = i
			break
		}
	}
	return Failure{Kind: KindCycle, Key: last, Cycle: append([]decl.Key(nil), path[start:]...)}
}

func pathKeys(nodes []*Node) []decl.Key {
	out := make([]decl.Key, len(nodes))
	for i, n := range nodes {
		out[i] = n.Key()
	}
	return out
}

// canonical identifies a cycle independent of the node it was entered at.
func canonical(keys []decl.Key) string {
	lo := 0
	for i, k := range keys {
		if k.String() < keys[lo].String() {
			lo = i
		}
	}
	parts := make([]string, len(keys))
	for i := range keys {
		parts[i] = keys[(lo+i)%len(keys)].String()
	}
	return strings.Join(parts, "\x00")
}
