package plan

import (
	"github.com/kbukum/wirekit/decl"
)

// Op is one conversion applied to a value on its way into a parameter.
type Op string

const (
	OpMove        Op = "move"
	OpBorrow      Op = "borrow"
	OpDerefBorrow Op = "deref-borrow"
	OpClone       Op = "clone"
	// OpBind converts an exclusive value into the abstract type it is bound
	// to. The value is given up to the interface, so it counts as a move.
	OpBind        Op = "bind"
)

// Adapt returns the ops that turn a value held as from into one held as to.
// ok is false when no conversion exists.
func Adapt(from, to decl.WrapperForm) (ops []Op, ok bool) {
	switch {
	case from == decl.Exclusive && to == decl.Exclusive:
		return []Op{OpMove}, true
	case from == decl.Exclusive && to == decl.Borrowed:
		return []Op{OpBorrow}, true
	case from == decl.Shared && to == decl.Borrowed:
		return []Op{OpDerefBorrow}, true
	case from == decl.Shared && to == decl.Shared:
		return []Op{OpClone}, true
	case from == decl.Borrowed && to == decl.Borrowed:
		return []Op{}, true
	}
	return nil, false
}

// Moves reports whether ops take ownership of the source value.
func Moves(ops []Op) bool {
	for _, op := range ops {
		if op == OpMove || op == OpBind {
			return true
		}
	}
	return false
}

// Borrows reports whether ops take a reference to the source value.
func Borrows(ops []Op) bool {
	for _, op := range ops {
		if op == OpBorrow || op == OpDerefBorrow {
			return true
		}
	}
	return false
}
