// Package decl holds the declaration model shared by every stage of wirekit:
// providers, their dependencies, bindings from abstract types to concrete
// providers, and the wrapper forms that describe how values are held.
//
// Declarations are produced by the scanner, one Unit per source unit, and
// merged into a Model. They are plain data and are never mutated after a scan.
//
// # Keys
//
// A provider is identified by the type it produces and an optional qualifier:
//
//	decl.Key{Type: "db.Pool"}                     // "db.Pool"
//	decl.Key{Type: "repo.Store", Qualifier: "mock"} // "repo.Store#mock"
package decl
