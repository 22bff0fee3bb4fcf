// Package plan computes the construction order for a requested root and the
// per-edge wrapper adaptations, and can interpret a plan at run time.
//
// A Plan is data. Steps are in dependency order: every step comes after the
// steps it consumes. Each argument of a step names the earlier step it reads
// from and the ops that turn that step's output form into the form the
// parameter wants:
//
//	exclusive -> exclusive   move
//	exclusive -> borrowed    borrow
//	shared    -> borrowed    deref-borrow
//	shared    -> shared      clone
//	borrowed  -> borrowed    (none)
//
// Any other pair is unadaptable. An exclusive output moved into more than one
// consumer is an ownership conflict. Each clone belongs to exactly one edge.
package plan
