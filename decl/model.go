package decl

import (
	"sort"
)

// Model is the merged declaration set for one scan.
type Model struct {
	Providers []Provider `json:"providers"`
	Bindings  []Binding  `json:"bindings"`
	// Interfaces lists abstract type names known from the scanned units.
	Interfaces []string `json:"interfaces,omitempty"`
}

// Merge combines units into a Model. Units are ordered by path and
// declarations keep their in-unit order, so the result does not depend on
// the order units were produced in.
func Merge(units []Unit) Model {
	sorted := make([]Unit, len(units))
	copy(sorted, units)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	var m Model
	seen := make(map[string]bool)
	for _, u := range sorted {
		m.Providers = append(m.Providers, u.Providers...)
		m.Bindings = append(m.Bindings, u.Bindings...)
		for _, name := range u.Interfaces {
			if !seen[name] {
				seen[name] = true
				m.Interfaces = append(m.Interfaces, name)
			}
		}
	}
	sort.Strings(m.Interfaces)
	return m
}

// ShareInterfaces marks values of abstract types as shared. An interface
// value is a handle onto its dynamic value, so a provider returning one
// produces a shared value and a by-value dependency on one is satisfied by
// sharing rather than moving. Abstract types are the known interfaces plus
// the interface side of every binding.
func (m Model) ShareInterfaces() Model {
	abstract := make(map[string]bool, len(m.Interfaces)+len(m.Bindings))
	for _, name := range m.Interfaces {
		abstract[name] = true
	}
	for _, b := range m.Bindings {
		abstract[b.Interface] = true
	}

	out := Model{
		Providers:  make([]Provider, len(m.Providers)),
		Bindings:   m.Bindings,
		Interfaces: m.Interfaces,
	}
	for i, p := range m.Providers {
		if p.Form == Exclusive && abstract[p.Type] && !p.Wrapped() {
			p.Form = Shared
		}
		if len(p.Dependencies) > 0 {
			deps := make([]Dependency, len(p.Dependencies))
			copy(deps, p.Dependencies)
			for j := range deps {
				if deps[j].Form == Exclusive && abstract[deps[j].Type] {
					deps[j].Form = Shared
				}
			}
			p.Dependencies = deps
		}
		out.Providers[i] = p
	}
	return out
}
