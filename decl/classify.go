package decl

import (
	"strings"
)

// Default wrapper names recognized by a zero Classifier.
var (
	DefaultSharedWrappers    = []string{"Shared", "Arc", "Rc"}
	DefaultExclusiveWrappers = []string{"Box", "Owned", "Unique"}
)

// Position says which side of an edge a type expression sits on.
type Position int

const (
	// Output is a provider's produced type.
	Output Position = iota
	// Input is a dependency's required type.
	Input
)

// Classifier maps a type expression to its normalized type and WrapperForm.
// Wrappers are generic types such as "Shared[db.Pool]"; the wrapper name is
// matched without its package qualifier.
type Classifier struct {
	SharedWrappers    []string
	ExclusiveWrappers []string
}

// NewClassifier returns a Classifier with the given wrapper names, falling
// back to the defaults for empty lists.
func NewClassifier(shared, exclusive []string) *Classifier {
	if len(shared) == 0 {
		shared = DefaultSharedWrappers
	}
	if len(exclusive) == 0 {
		exclusive = DefaultExclusiveWrappers
	}
	return &Classifier{SharedWrappers: shared, ExclusiveWrappers: exclusive}
}

// Classify returns the normalized type of expr and the form it is held in.
//
//	*T        output: shared   input: borrowed
//	Shared[T] shared
//	Box[T]    exclusive
//	T         exclusive
//
// A pointer to a wrapper ("*Shared[T]") is a borrow of that wrapper.
func (c *Classifier) Classify(expr string, pos Position) (string, WrapperForm) {
	expr = strings.TrimSpace(expr)
	if rest, ok := strings.CutPrefix(expr, "*"); ok {
		inner, _ := c.Classify(rest, Output)
		if pos == Output {
			return inner, Shared
		}
		return inner, Borrowed
	}
	if name, arg, ok := splitGeneric(expr); ok {
		base := name
		if i := strings.LastIndex(base, "."); i >= 0 {
			base = base[i+1:]
		}
		switch {
		case contains(c.shared(), base):
			inner, _ := c.Classify(arg, Output)
			return inner, Shared
		case contains(c.exclusive(), base):
			inner, _ := c.Classify(arg, Output)
			return inner, Exclusive
		}
	}
	return expr, Exclusive
}

func (c *Classifier) shared() []string {
	if c == nil || len(c.SharedWrappers) == 0 {
		return DefaultSharedWrappers
	}
	return c.SharedWrappers
}

func (c *Classifier) exclusive() []string {
	if c == nil || len(c.ExclusiveWrappers) == 0 {
		return DefaultExclusiveWrappers
	}
	return c.ExclusiveWrappers
}

// splitGeneric splits "Name[Arg]" into its parts. Multi-argument generics
// are not wrappers and report false.
func splitGeneric(expr string) (name, arg string, ok bool) {
	open := strings.IndexByte(expr, '[')
	if open <= 0 || !strings.HasSuffix(expr, "]") {
		return "", "", false
	}
	name, arg = expr[:open], expr[open+1:len(expr)-1]
	depth := 0
	for _, r := range arg {
		switch r {
		case '[':
			depth++
		case ']':
			depth--
		case ',':
			if depth == 0 {
				return "", "", false
			}
		}
	}
	return name, strings.TrimSpace(arg), arg != ""
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
