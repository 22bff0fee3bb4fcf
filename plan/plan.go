package plan

import (
	"fmt"
	"strings"

	"github.com/kbukum/wirekit/decl"
)

// Request names the root to plan for.
type Request struct {
	Type      string `json:"type" validate:"required"`
	Qualifier string `json:"qualifier,omitempty"`
}

func (r Request) String() string {
	return decl.Key{Type: r.Type, Qualifier: r.Qualifier}.String()
}

// Arg is one argument of a step.
type Arg struct {
	Dependency decl.Dependency `json:"dependency"`
	// From is the key of the step that produces the value.
	From decl.Key `json:"from"`
	// FromIndex is the position of that step in the plan.
	FromIndex int `json:"from_index"`
	// Ops turn the producer's output form into the parameter's form.
	Ops []Op `json:"ops"`
}

// Step constructs one provider.
type Step struct {
	Key      decl.Key      `json:"key"`
	Provider decl.Provider `json:"provider"`
	Args     []Arg         `json:"args,omitempty"`
}

// Plan is an ordered construction sequence for one root.
type Plan struct {
	Root  decl.Key `json:"root"`
	Steps []Step   `json:"steps"`
	// Fallible is true when any step can fail at run time.
	Fallible bool `json:"fallible"`
}

// Index returns the position of key in the plan, or -1.
func (p *Plan) Index(key decl.Key) int {
	for i, s := range p.Steps {
		if s.Key == key {
			return i
		}
	}
	return -1
}

// Keys returns the step keys in order.
func (p *Plan) Keys() []decl.Key {
	out := make([]decl.Key, len(p.Steps))
	for i, s := range p.Steps {
		out[i] = s.Key
	}
	return out
}

// RootStep returns the last step, which produces the root.
func (p *Plan) RootStep() Step {
	return p.Steps[len(p.Steps)-1]
}

// String renders the plan one step per line. The rendering is stable for a
// given plan.
func (p *Plan) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "plan %s", p.Root)
	if p.Fallible {
		b.WriteString(" (fallible)")
	}
	b.WriteByte('\n')
	for i, s := range p.Steps {
		fmt.Fprintf(&b, "%3d  %s = %s(", i, s.Key, s.Provider.QualifiedSymbol())
		for j, a := range s.Args {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s: #%d", a.Dependency.Name, a.FromIndex)
			if len(a.Ops) > 0 {
				ops := make([]string, len(a.Ops))
				for k, op := range a.Ops {
					ops[k] = string(op)
				}
				fmt.Fprintf(&b, " %s", strings.Join(ops, "+"))
			}
		}
		b.WriteByte(')')
		if s.Provider.Fallible {
			b.WriteString(" ?")
		}
		b.WriteByte('\n')
	}
	return b.String()
}
