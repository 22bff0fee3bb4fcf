package graph

import (
	"fmt"
	"strings"

	"github.com/kbukum/wirekit/decl"
	"github.com/kbukum/wirekit/errors"
)

// Kind classifies a resolution failure.
type Kind string

const (
	KindCycle             Kind = "cycle"
	KindMissingProvider   Kind = "missing_provider"
	KindConflict          Kind = "conflict"
	KindOwnershipConflict Kind = "ownership_conflict"
	KindUnadaptable       Kind = "unadaptable"
)

// Failure is one structured resolution problem.
type Failure struct {
	Kind Kind `json:"kind"`
	// Key is the requested type, with the hint as qualifier when one was given.
	Key decl.Key `json:"key"`
	// Candidates are the qualifiers of the competing providers of a Conflict.
	Candidates []string `json:"candidates,omitempty"`
	// Providers names the providers involved: competing declarations for a
	// Conflict, the consumers of an OwnershipConflict.
	Providers []string `json:"providers,omitempty"`
	// Chain is the path of provider keys from the requested root to the
	// provider whose dependency failed. Empty for the root itself.
	Chain []decl.Key `json:"chain,omitempty"`
	// Cycle is the cycle from a revisited key back to itself.
	Cycle []decl.Key `json:"cycle,omitempty"`
	// Dependency is the parameter name of the failing edge.
	Dependency string `json:"dependency,omitempty"`
	// Location is the declaration site of the requesting provider.
	Location decl.Location `json:"location,omitzero"`
	// From and To are the wrapper forms of an Unadaptable edge.
	From decl.WrapperForm `json:"from,omitempty"`
	To   decl.WrapperForm `json:"to,omitempty"`
	// Reason explains an Unadaptable edge the form table alone would allow.
	Reason string `json:"reason,omitempty"`
}

func (f Failure) Error() string {
	var b strings.Builder
	switch f.Kind {
	case KindCycle:
		fmt.Fprintf(&b, "dependency cycle: %s", renderKeys(f.Cycle))
	case KindMissingProvider:
		fmt.Fprintf(&b, "no provider for %s", f.Key)
	case KindConflict:
		fmt.Fprintf(&b, "ambiguous %s: candidates %s", f.Key.Type, renderQualifiers(f.Candidates))
		if len(f.Providers) > 0 {
			fmt.Fprintf(&b, " (%s)", strings.Join(f.Providers, ", "))
		}
	case KindOwnershipConflict:
		fmt.Fprintf(&b, "exclusive %s moved into %d consumers: %s", f.Key, len(f.Providers), strings.Join(f.Providers, ", "))
	case KindUnadaptable:
		fmt.Fprintf(&b, "cannot adapt %s from %s to %s", f.Key, f.From, f.To)
		if f.Reason != "" {
			fmt.Fprintf(&b, ": %s", f.Reason)
		}
	default:
		fmt.Fprintf(&b, "%s: %s", f.Kind, f.Key)
	}
	if f.Dependency != "" {
		fmt.Fprintf(&b, " for parameter %s", f.Dependency)
	}
	if f.Location.Unit != "" {
		fmt.Fprintf(&b, " at %s", f.Location)
	}
	if len(f.Chain) > 0 {
		fmt.Fprintf(&b, " (requested via %s)", renderKeys(f.Chain))
	}
	return b.String()
}

// AppError converts the failure for callers outside the resolver.
func (f Failure) AppError() *errors.AppError {
	chain := keyStrings(f.Chain)
	var err *errors.AppError
	switch f.Kind {
	case KindCycle:
		err = errors.Cycle(keyStrings(f.Cycle))
	case KindMissingProvider:
		err = errors.MissingProvider(f.Key.String(), chain)
	case KindConflict:
		err = errors.Conflict(f.Key.Type, f.Candidates, chain)
		if len(f.Providers) > 0 {
			err.WithDetail("providers", f.Providers)
		}
	case KindOwnershipConflict:
		err = errors.Resolution(errors.ErrCodeOwnershipConflict, f.Error()).
			WithDetails(map[string]any{"key": f.Key.String(), "consumers": f.Providers})
	case KindUnadaptable:
		err = errors.Resolution(errors.ErrCodeUnadaptable, f.Error()).
			WithDetails(map[string]any{"key": f.Key.String(), "from": string(f.From), "to": string(f.To)})
	default:
		err = errors.Internal(f)
	}
	if f.Dependency != "" {
		err.WithDetail("dependency", f.Dependency)
	}
	if f.Reason != "" {
		err.WithDetail("reason", f.Reason)
	}
	if f.Location.Unit != "" {
		err.WithDetail("location", f.Location.String())
	}
	return err
}

// Failures is the full set of problems found by one resolution attempt.
type Failures []Failure

func (fs Failures) Error() string {
	switch len(fs) {
	case 0:
		return "no failures"
	case 1:
		return fs[0].Error()
	}
	msgs := make([]string, len(fs))
	for i, f := range fs {
		msgs[i] = f.Error()
	}
	return fmt.Sprintf("%d resolution failures:\n  %s", len(fs), strings.Join(msgs, "\n  "))
}

// Err returns fs as an error, or nil when empty.
func (fs Failures) Err() error {
	if len(fs) == 0 {
		return nil
	}
	return fs
}

// AppErrors converts every failure.
func (fs Failures) AppErrors() []*errors.AppError {
	out := make([]*errors.AppError, len(fs))
	for i, f := range fs {
		out[i] = f.AppError()
	}
	return out
}

// Of returns the failures of the given kind.
func (fs Failures) Of(kind Kind) Failures {
	var out Failures
	for _, f := range fs {
		if f.Kind == kind {
			out = append(out, f)
		}
	}
	return out
}

func renderKeys(keys []decl.Key) string {
	return strings.Join(keyStrings(keys), " -> ")
}

func keyStrings(keys []decl.Key) []string {
	if len(keys) == 0 {
		return nil
	}
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.String()
	}
	return out
}

func renderQualifiers(qs []string) string {
	out := make([]string, len(qs))
	for i, q := range qs {
		if q == "" {
			out[i] = "(unqualified)"
		} else {
			out[i] = q
		}
	}
	return "[" + strings.Join(out, ", ") + "]"
}
