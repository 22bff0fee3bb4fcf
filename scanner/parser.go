package scanner

import (
	"fmt"

	"github.com/kbukum/wirekit/decl"
)

// UnitParser extracts declarations from one kind of source unit.
type UnitParser interface {
	// Name identifies the parser in cache entries; changing it invalidates them.
	Name() string
	// Match reports whether the parser handles the unit at path.
	Match(path string) bool
	// Parse extracts the declarations of one unit. path is slash-separated
	// and relative to the scan root.
	Parse(path string, src []byte) (decl.Unit, error)
}

// ParseError locates a problem inside a unit.
type ParseError struct {
	Unit string
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.Unit, e.Line, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Unit, e.Msg)
}

func parseErrorf(unit string, line int, format string, args ...any) *ParseError {
	return &ParseError{Unit: unit, Line: line, Msg: fmt.Sprintf(format, args...)}
}
