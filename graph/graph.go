package graph

import (
	"github.com/kbukum/wirekit/decl"
)

// Via records which rule resolved an edge.
type Via string

const (
	ViaHint    Via = "hint"
	ViaBinding Via = "binding"
	ViaType    Via = "type"
)

// Edge is one dependency of a node and the node that satisfies it.
type Edge struct {
	Dependency decl.Dependency
	// To is nil when the edge did not resolve; Failure says why.
	To      *Node
	Via     Via
	Failure *Failure
}

// Node is a provider in the graph.
type Node struct {
	Provider decl.Provider
	Edges    []Edge
	// Duplicates are later declarations of the same key. The first
	// declaration wins the node.
	Duplicates []decl.Provider

	index int
}

// Key returns the node identity.
func (n *Node) Key() decl.Key { return n.Provider.Key() }

// Index is the node's position in declaration order.
func (n *Node) Index() int { return n.index }

// Graph is the dependency graph of one declaration model. It is never
// mutated after Build returns.
type Graph struct {
	nodes    map[decl.Key]*Node
	order    []*Node
	byType   map[string][]*Node
	bindings map[string][]decl.Binding
}

// Nodes returns every node in declaration order.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, len(g.order))
	copy(out, g.order)
	return out
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.order) }

// Node returns the node for key.
func (g *Graph) Node(key decl.Key) (*Node, bool) {
	n, ok := g.nodes[key]
	return n, ok
}

// ProvidersOf returns the nodes producing typ, any qualifier, in declaration order.
func (g *Graph) ProvidersOf(typ string) []*Node {
	return g.byType[typ]
}

// Lookup resolves a required type with an optional hint using the edge
// precedence rules. The returned failure carries only the key and candidate
// fields; callers add the chain and location.
func (g *Graph) Lookup(typ, hint string) (*Node, Via, *Failure) {
	if hint != "" {
		return g.lookupHint(typ, hint)
	}
	if bs := g.bindings[typ]; len(bs) > 0 {
		return g.lookupBinding(typ, bs)
	}
	candidates := g.byType[typ]
	switch len(candidates) {
	case 0:
		return nil, "", &Failure{Kind: KindMissingProvider, Key: decl.Key{Type: typ}}
	case 1:
		return candidates[0], ViaType, nil
	}
	f := &Failure{Kind: KindConflict, Key: decl.Key{Type: typ}}
	for _, n := range candidates {
		f.Candidates = append(f.Candidates, n.Provider.Qualifier)
		f.Providers = append(f.Providers, n.Provider.QualifiedSymbol())
	}
	return nil, "", f
}

func (g *Graph) lookupHint(typ, hint string) (*Node, Via, *Failure) {
	if n, ok := g.nodes[decl.Key{Type: typ, Qualifier: hint}]; ok {
		return n, ViaHint, nil
	}
	for _, b := range g.bindings[typ] {
		if b.Provider.Qualifier != hint {
			continue
		}
		if n, ok := g.nodes[b.Provider]; ok {
			return n, ViaHint, nil
		}
	}
	return nil, "", &Failure{Kind: KindMissingProvider, Key: decl.Key{Type: typ, Qualifier: hint}}
}

func (g *Graph) lookupBinding(typ string, bs []decl.Binding) (*Node, Via, *Failure) {
	targets := distinctTargets(bs)
	if len(targets) > 1 {
		f := &Failure{Kind: KindConflict, Key: decl.Key{Type: typ}}
		for _, b := range targets {
			f.Candidates = append(f.Candidates, b.Provider.Qualifier)
			f.Providers = append(f.Providers, b.Provider.String())
		}
		return nil, "", f
	}
	target := targets[0].Provider
	n, ok := g.nodes[target]
	if !ok {
		return nil, "", &Failure{Kind: KindMissingProvider, Key: target}
	}
	return n, ViaBinding, nil
}

func distinctTargets(bs []decl.Binding) []decl.Binding {
	seen := make(map[decl.Key]bool, len(bs))
	var out []decl.Binding
	for _, b := range bs {
		if !seen[b.Provider] {
			seen[b.Provider] = true
			out = append(out, b)
		}
	}
	return out
}
