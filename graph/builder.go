package graph

import (
	"github.com/kbukum/wirekit/decl"
)

// Build turns a declaration model into a graph. Every dependency edge is
// resolved; the returned failures cover every edge that could not be, across
// the whole model, in declaration order. Per-root validation narrows them to
// what a request can reach.
func Build(m decl.Model) (*Graph, Failures) {
	g := &Graph{
		nodes:    make(map[decl.Key]*Node, len(m.Providers)),
		byType:   make(map[string][]*Node),
		bindings: make(map[string][]decl.Binding),
	}

	for _, p := range m.Providers {
		key := p.Key()
		if existing, ok := g.nodes[key]; ok {
			existing.Duplicates = append(existing.Duplicates, p)
			continue
		}
		n := &Node{Provider: p, index: len(g.order)}
		g.nodes[key] = n
		g.order = append(g.order, n)
		g.byType[p.Type] = append(g.byType[p.Type], n)
	}
	for _, b := range m.Bindings {
		g.bindings[b.Interface] = append(g.bindings[b.Interface], b)
	}

	var failures Failures
	for _, n := range g.order {
		n.Edges = make([]Edge, len(n.Provider.Dependencies))
		for i, dep := range n.Provider.Dependencies {
			to, via, f := g.Lookup(dep.Type, dep.Hint)
			edge := Edge{Dependency: dep, To: to, Via: via}
			if f != nil {
				f.Dependency = dep.Name
				f.Location = n.Provider.Location
				f.Chain = []decl.Key{n.Key()}
				edge.Failure = f
				failures = append(failures, *f)
			}
			n.Edges[i] = edge
		}
	}
	for _, n := range g.order {
		if len(n.Duplicates) > 0 {
			failures = append(failures, duplicateFailure(n))
		}
	}
	return g, failures
}

func duplicateFailure(n *Node) Failure {
	f := Failure{
		Kind:     KindConflict,
		Key:      n.Key(),
		Location: n.Provider.Location,
	}
	for _, p := range append([]decl.Provider{n.Provider}, n.Duplicates...) {
		f.Candidates = append(f.Candidates, p.Qualifier)
		f.Providers = append(f.Providers, p.QualifiedSymbol()+" at "+p.Location.String())
	}
	return f
}
