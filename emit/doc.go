// Package emit renders a resolution plan as Go source: one injector
// function that calls every provider in plan order, applies each edge's
// adaptation and returns the root.
//
// The plan is consumed as data. Ops render as follows:
//
//	move          v
//	borrow        &v
//	deref-borrow  v        (&v for a non-pointer wrapper)
//	clone         v        (v.Clone() for a non-pointer wrapper)
//
// A fallible plan yields an injector returning (T, error) that returns on
// the first failing provider.
package emit
