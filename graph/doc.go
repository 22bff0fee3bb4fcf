// Package graph builds the dependency graph from a declaration model and
// validates it.
//
// Every dependency edge is resolved with a fixed precedence: an injection
// hint naming an exact qualifier, then a binding for the required abstract
// type, then the single provider of that type. Build is best effort and
// records a Failure on every edge it cannot resolve, so one pass surfaces
// every problem.
//
// Validation is per root: only the subgraph reachable from a requested root
// is checked, so an unused provider with a missing dependency is not an
// error until something asks for it. DetectCycles is the global variant used
// by whole-tree checks.
package graph
