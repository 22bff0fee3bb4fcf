package scanner

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/kbukum/wirekit/decl"
)

// Manifest is the YAML form of a unit's declarations.
type Manifest struct {
	Package    string             `yaml:"package"`
	Imports    map[string]string  `yaml:"imports"`
	Interfaces []string           `yaml:"interfaces"`
	Providers  []ManifestProvider `yaml:"providers"`
	Bindings   []ManifestBinding  `yaml:"bindings"`
}

// ManifestProvider declares one provider.
type ManifestProvider struct {
	Name      string               `yaml:"name"`
	Type      string               `yaml:"type"`
	Expr      string               `yaml:"expr"`
	Qualifier string               `yaml:"qualifier"`
	Form      string               `yaml:"form"`
	Fallible  bool                 `yaml:"fallible"`
	Error     string               `yaml:"error"`
	Bind      []string             `yaml:"bind"`
	Deps      []ManifestDependency `yaml:"deps"`
	line      int
}

// ManifestDependency declares one dependency of a provider.
type ManifestDependency struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
	Form string `yaml:"form"`
	Hint string `yaml:"hint"`
}

// ManifestBinding binds an abstract type to a provider key.
type ManifestBinding struct {
	Interface string `yaml:"interface"`
	Type      string `yaml:"type"`
	Qualifier string `yaml:"qualifier"`
	line      int
}

// ManifestParser reads *.wire.yaml and *.wire.yml units.
type ManifestParser struct {
	classifier *decl.Classifier
}

// NewManifestParser creates a manifest parser. The classifier is used for
// dependencies whose form is left empty; a nil classifier uses the defaults.
func NewManifestParser(c *decl.Classifier) *ManifestParser {
	if c == nil {
		c = decl.NewClassifier(nil, nil)
	}
	return &ManifestParser{classifier: c}
}

// Name implements UnitParser.
func (p *ManifestParser) Name() string { return "manifest/v1" }

// Match implements UnitParser.
func (p *ManifestParser) Match(name string) bool {
	return strings.HasSuffix(name, ".wire.yaml") || strings.HasSuffix(name, ".wire.yml")
}

// Parse implements UnitParser.
func (p *ManifestParser) Parse(unitPath string, src []byte) (decl.Unit, error) {
	var root yaml.Node
	dec := yaml.NewDecoder(bytes.NewReader(src))
	if err := dec.Decode(&root); err != nil {
		if errors.Is(err, io.EOF) {
			return decl.Unit{Path: unitPath}, nil
		}
		return decl.Unit{}, fmt.Errorf("%s: %w", unitPath, err)
	}
	// An empty document declares nothing.
	if len(root.Content) == 0 || root.Content[0].Tag == "!!null" {
		return decl.Unit{Path: unitPath}, nil
	}
	var m Manifest
	if err := root.Decode(&m); err != nil {
		return decl.Unit{}, fmt.Errorf("%s: %w", unitPath, err)
	}
	annotateLines(&root, &m)

	if m.Package == "" {
		return decl.Unit{}, parseErrorf(unitPath, 0, "package is required")
	}
	unit := decl.Unit{Path: unitPath, Package: m.Package}
	for _, iface := range m.Interfaces {
		unit.Interfaces = append(unit.Interfaces, m.qualify(iface))
	}

	dir := unitDir(unitPath)
	for _, mp := range m.Providers {
		prov, err := p.provider(unitPath, dir, &m, mp)
		if err != nil {
			return decl.Unit{}, err
		}
		unit.Providers = append(unit.Providers, prov)
		for _, iface := range mp.Bind {
			unit.Bindings = append(unit.Bindings, decl.Binding{
				Interface: m.qualify(iface),
				Provider:  prov.Key(),
				Location:  prov.Location,
			})
		}
	}
	for _, mb := range m.Bindings {
		if mb.Interface == "" || mb.Type == "" {
			return decl.Unit{}, parseErrorf(unitPath, mb.line, "binding needs interface and type")
		}
		unit.Bindings = append(unit.Bindings, decl.Binding{
			Interface: m.qualify(mb.Interface),
			Provider:  decl.Key{Type: m.qualify(mb.Type), Qualifier: mb.Qualifier},
			Location:  decl.Location{Unit: unitPath, Line: mb.line},
		})
	}
	return unit, nil
}

func (p *ManifestParser) provider(unitPath, dir string, m *Manifest, mp ManifestProvider) (decl.Provider, error) {
	if mp.Name == "" || mp.Type == "" {
		return decl.Provider{}, parseErrorf(unitPath, mp.line, "provider needs name and type")
	}
	form, err := decl.ParseWrapperForm(mp.Form)
	if err != nil {
		return decl.Provider{}, parseErrorf(unitPath, mp.line, "provider %s: %v", mp.Name, err)
	}
	if form == decl.Borrowed {
		return decl.Provider{}, parseErrorf(unitPath, mp.line, "provider %s cannot produce a borrowed value", mp.Name)
	}
	if mp.Error != "" && !mp.Fallible {
		return decl.Provider{}, parseErrorf(unitPath, mp.line, "provider %s declares an error but is not fallible", mp.Name)
	}

	typ := m.qualify(mp.Type)
	prov := decl.Provider{
		Symbol:    mp.Name,
		Package:   m.Package,
		Dir:       dir,
		Type:      typ,
		Expr:      mp.Expr,
		Qualifier: mp.Qualifier,
		Form:      form,
		Fallible:  mp.Fallible,
		Location:  decl.Location{Unit: unitPath, Line: mp.line, Symbol: mp.Name},
	}
	if prov.Expr == "" {
		prov.Expr = typ
		if form == decl.Shared {
			prov.Expr = "*" + typ
		}
	}
	if mp.Fallible {
		prov.ErrorKind = mp.Error
		if prov.ErrorKind == "" {
			prov.ErrorKind = "error"
		}
	}
	prov.Imports = m.importsOf(prov.Expr)

	for i, md := range mp.Deps {
		if md.Type == "" {
			return decl.Provider{}, parseErrorf(unitPath, mp.line, "provider %s: dependency %d has no type", mp.Name, i)
		}
		name := md.Name
		if name == "" {
			name = fmt.Sprintf("arg%d", i)
		}
		dep := decl.Dependency{Name: name, Hint: md.Hint}
		if md.Form == "" {
			dep.Expr = m.qualify(md.Type)
			dep.Type, dep.Form = p.classifier.Classify(dep.Expr, decl.Input)
		} else {
			f, err := decl.ParseWrapperForm(md.Form)
			if err != nil {
				return decl.Provider{}, parseErrorf(unitPath, mp.line, "provider %s: dependency %s: %v", mp.Name, name, err)
			}
			dep.Type, dep.Expr, dep.Form = m.qualify(md.Type), m.qualify(md.Type), f
		}
		prov.Dependencies = append(prov.Dependencies, dep)
	}
	return prov, nil
}

// qualify prefixes unqualified, non-builtin names with the manifest package.
func (m *Manifest) qualify(name string) string {
	name = strings.TrimSpace(name)
	if rest, ok := strings.CutPrefix(name, "*"); ok {
		return "*" + m.qualify(rest)
	}
	if name == "" || strings.ContainsAny(name, ".*[") || isBuiltin(name) {
		return name
	}
	return m.Package + "." + name
}

func (m *Manifest) importsOf(expr string) []decl.Import {
	used := make(map[string]bool)
	for _, tok := range strings.FieldsFunc(expr, func(r rune) bool {
		return r == '*' || r == '[' || r == ']' || r == ',' || r == ' '
	}) {
		if pkg, _, ok := strings.Cut(tok, "."); ok {
			used[pkg] = true
		}
	}
	var out []decl.Import
	for name, ipath := range m.Imports {
		if used[name] {
			out = append(out, decl.Import{Name: name, Path: ipath})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// annotateLines copies source lines from the node tree into providers and
// bindings for diagnostics.
func annotateLines(root *yaml.Node, m *Manifest) {
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return
	}
	doc := root.Content[0]
	for i := 0; i+1 < len(doc.Content); i += 2 {
		key, val := doc.Content[i], doc.Content[i+1]
		if val.Kind != yaml.SequenceNode {
			continue
		}
		switch key.Value {
		case "providers":
			for j, item := range val.Content {
				if j < len(m.Providers) {
					m.Providers[j].line = item.Line
				}
			}
		case "bindings":
			for j, item := range val.Content {
				if j < len(m.Bindings) {
					m.Bindings[j].line = item.Line
				}
			}
		}
	}
}

var builtins = map[string]bool{
	"bool": true, "string": true, "error": true, "any": true, "byte": true, "rune": true,
	"int": true, "int8": true, "int16": true, "int32": true, "int64": true,
	"uint": true, "uint8": true, "uint16": true, "uint32": true, "uint64": true, "uintptr": true,
	"float32": true, "float64": true, "complex64": true, "complex128": true,
}

func isBuiltin(name string) bool { return builtins[name] }
