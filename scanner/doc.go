// Package scanner extracts provider declarations from a source tree.
//
// Every file a registered UnitParser matches is one unit. Units are read,
// fingerprinted and parsed independently by a bounded pool of workers, and
// their declarations are merged only after all of them finish. A unit that
// cannot be read or parsed is skipped with a warning; it never aborts the
// scan and never affects other units.
//
// A Cache from a previous run lets unchanged units skip parsing. An entry is
// reused only when the unit's fingerprint matches; a changed unit replaces
// its own entry, a vanished or failing unit loses it. Scanning with or
// without a cache produces the same model.
//
// # Go sources
//
// Providers are package-level functions annotated with a directive:
//
//	//wire:provider qualifier=primary bind=Store
//	//wire:inject log=json
//	func NewSQLStore(db *sql.DB, log Logger) (*SQLStore, error)
//
// # Manifests
//
// Files named *.wire.yaml or *.wire.yml declare providers directly:
//
//	package: store
//	providers:
//	  - name: NewSQLStore
//	    type: store.SQLStore
//	    form: shared
//	    fallible: true
//	    deps:
//	      - {name: db, type: sql.DB, form: borrowed}
package scanner
