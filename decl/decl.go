package decl

import (
	"fmt"
	"strings"
)

// WrapperForm classifies how a value is held.
type WrapperForm string

const (
	// Exclusive is a by-value, singly owned value.
	Exclusive WrapperForm = "exclusive"
	// Shared is a reference-counted or otherwise shared handle.
	Shared WrapperForm = "shared"
	// Borrowed is a reference to a value owned elsewhere.
	Borrowed WrapperForm = "borrowed"
)

// Valid reports whether f is one of the known forms.
func (f WrapperForm) Valid() bool {
	switch f {
	case Exclusive, Shared, Borrowed:
		return true
	}
	return false
}

// ParseWrapperForm parses a form name. The empty string means Exclusive.
func ParseWrapperForm(s string) (WrapperForm, error) {
	switch f := WrapperForm(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return Exclusive, nil
	case Exclusive, Shared, Borrowed:
		return f, nil
	}
	return "", fmt.Errorf("decl: unknown wrapper form %q", s)
}

// Key identifies a provider: the produced type plus an optional qualifier.
type Key struct {
	Type      string `json:"type" yaml:"type"`
	Qualifier string `json:"qualifier,omitempty" yaml:"qualifier,omitempty"`
}

func (k Key) String() string {
	if k.Qualifier == "" {
		return k.Type
	}
	return k.Type + "#" + k.Qualifier
}

// Location points at the declaration site of a provider or binding.
type Location struct {
	Unit   string `json:"unit"`
	Line   int    `json:"line,omitempty"`
	Symbol string `json:"symbol,omitempty"`
}

func (l Location) String() string {
	switch {
	case l.Line > 0 && l.Symbol != "":
		return fmt.Sprintf("%s:%d (%s)", l.Unit, l.Line, l.Symbol)
	case l.Line > 0:
		return fmt.Sprintf("%s:%d", l.Unit, l.Line)
	case l.Symbol != "":
		return fmt.Sprintf("%s (%s)", l.Unit, l.Symbol)
	}
	return l.Unit
}

// Dependency is one value a provider requires.
type Dependency struct {
	// Name is the parameter name at the declaration site.
	Name string `json:"name"`
	// Type is the normalized required type.
	Type string `json:"type"`
	// Expr is the type as written in source.
	Expr string `json:"expr,omitempty"`
	// Form is the wrapper form the consumer wants.
	Form WrapperForm `json:"form"`
	// Hint is the injection hint for this edge only: an exact qualifier.
	Hint string `json:"hint,omitempty"`
}

// Provider is a declared factory for one typed value.
type Provider struct {
	// Symbol is the factory name, e.g. "NewPool".
	Symbol string `json:"symbol"`
	// Package is the package name the symbol lives in.
	Package string `json:"package,omitempty"`
	// Dir is the unit directory relative to the scan root, used for imports.
	Dir string `json:"dir,omitempty"`

	Type      string      `json:"type"`
	Expr      string      `json:"expr,omitempty"`
	Qualifier string      `json:"qualifier,omitempty"`
	Form      WrapperForm `json:"form"`

	Dependencies []Dependency `json:"dependencies,omitempty"`

	Fallible  bool   `json:"fallible,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`

	// Imports are the packages other than its own that Expr refers to.
	Imports []Import `json:"imports,omitempty"`

	Location Location `json:"location"`
}

// Import is a package referenced by a type expression.
type Import struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// Key returns the provider identity.
func (p Provider) Key() Key {
	return Key{Type: p.Type, Qualifier: p.Qualifier}
}

// QualifiedSymbol returns "pkg.Symbol", or just the symbol when no package is known.
func (p Provider) QualifiedSymbol() string {
	if p.Package == "" {
		return p.Symbol
	}
	return p.Package + "." + p.Symbol
}

// Wrapped reports whether the produced value sits inside a generic wrapper
// such as Shared[T], directly or behind a pointer. A wrapped value is not a
// T, so it cannot be borrowed as one.
func (p Provider) Wrapped() bool {
	expr := strings.TrimPrefix(p.Expr, "*")
	return expr != "" && expr != p.Type && !strings.HasSuffix(p.Type, "."+expr)
}

// Handle reports whether a shared value is an interface value rather than
// a pointer or a wrapper. Sharing a handle copies it.
func (p Provider) Handle() bool {
	return p.Form == Shared && p.Expr != "" && !strings.HasPrefix(p.Expr, "*") && !p.Wrapped()
}

// Binding maps an abstract type to the concrete provider that satisfies it.
type Binding struct {
	Interface string   `json:"interface"`
	Provider  Key      `json:"provider"`
	Location  Location `json:"location"`
}

// Unit is everything extracted from one source unit.
type Unit struct {
	Path       string     `json:"path"`
	Package    string     `json:"package,omitempty"`
	Providers  []Provider `json:"providers,omitempty"`
	Bindings   []Binding  `json:"bindings,omitempty"`
	Interfaces []string   `json:"interfaces,omitempty"`
}
