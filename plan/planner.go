package plan

import (
	"fmt"

	"github.com/kbukum/wirekit/decl"
	"github.com/kbukum/wirekit/graph"
)

// Resolve plans the construction of req. It fails with every problem found
// in the reachable subgraph and never returns a partial plan. Planning the
// same graph and request twice yields identical plans.
func Resolve(g *graph.Graph, req Request) (*Plan, graph.Failures) {
	root, fs := g.Root(req.Type, req.Qualifier)
	if len(fs) > 0 {
		return nil, fs
	}
	if fs := g.Validate(root); len(fs) > 0 {
		return nil, fs
	}

	p := &planner{index: make(map[*graph.Node]int), active: make(map[*graph.Node]bool)}
	if f := p.visit(root); f != nil {
		return nil, graph.Failures{*f}
	}
	if fs := p.adapt(); len(fs) > 0 {
		return nil, fs
	}

	out := &Plan{Root: root.Key(), Steps: p.steps}
	for _, s := range p.steps {
		if s.Provider.Fallible {
			out.Fallible = true
			break
		}
	}
	return out, nil
}

type planner struct {
	steps  []Step
	index  map[*graph.Node]int
	active map[*graph.Node]bool
	path   []decl.Key
}

// visit emits n after everything it depends on, in dependency declaration order.
func (p *planner) visit(n *graph.Node) *graph.Failure {
	if _, ok := p.index[n]; ok {
		return nil
	}
	p.path = append(p.path, n.Key())
	if p.active[n] {
		f := graph.CycleFailure(p.path)
		return &f
	}
	p.active[n] = true

	args := make([]Arg, len(n.Edges))
	for i, e := range n.Edges {
		if e.To == nil {
			return e.Failure
		}
		if f := p.visit(e.To); f != nil {
			return f
		}
		args[i] = Arg{Dependency: e.Dependency, From: e.To.Key(), FromIndex: p.index[e.To]}
	}

	delete(p.active, n)
	p.path = p.path[:len(p.path)-1]
	p.index[n] = len(p.steps)
	p.steps = append(p.steps, Step{Key: n.Key(), Provider: n.Provider, Args: args})
	return nil
}

// adapt fills in the ops of every argument and checks ownership.
func (p *planner) adapt() graph.Failures {
	var failures graph.Failures
	moves := make(map[int][]string)
	for si := range p.steps {
		s := &p.steps[si]
		for ai := range s.Args {
			a := &s.Args[ai]
			producer := p.steps[a.FromIndex].Provider
			ops, ok := Adapt(producer.Form, a.Dependency.Form)
			var reason string
			switch {
			case !ok && producer.Form == decl.Exclusive && a.Dependency.Form == decl.Shared && a.Dependency.Type != producer.Type && !producer.Wrapped():
				ops, ok = []Op{OpBind}, true
			case ok && Borrows(ops) && producer.Wrapped():
				ok, reason = false, "value is held in wrapper "+producer.Expr
			}
			if !ok {
				failures = append(failures, graph.Failure{
					Kind:       graph.KindUnadaptable,
					Key:        a.From,
					Dependency: a.Dependency.Name,
					Location:   s.Provider.Location,
					From:       producer.Form,
					To:         a.Dependency.Form,
					Reason:     reason,
				})
				continue
			}
			a.Ops = ops
			if Moves(ops) {
				consumer := fmt.Sprintf("%s(%s)", s.Provider.QualifiedSymbol(), a.Dependency.Name)
				moves[a.FromIndex] = append(moves[a.FromIndex], consumer)
			}
		}
	}
	for i, s := range p.steps {
		if consumers := moves[i]; len(consumers) > 1 {
			failures = append(failures, graph.Failure{
				Kind:      graph.KindOwnershipConflict,
				Key:       s.Key,
				Providers: consumers,
				Location:  s.Provider.Location,
			})
		}
	}
	return failures
}
