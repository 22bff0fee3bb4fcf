package emit

import (
	"bytes"
	"fmt"
	"go/format"
	"go/token"
	"sort"
	"strconv"
	"strings"
	"text/template"
	"unicode"

	"github.com/kbukum/wirekit/decl"
	"github.com/kbukum/wirekit/plan"
)

// Options control the generated file.
type Options struct {
	// Module is the import path of the scan root.
	Module string `mapstructure:"module"`
	// Package is the package name of the generated file.
	Package string `mapstructure:"package" validate:"required"`
	// Dir is the generated file's directory relative to the scan root.
	// Providers in that directory are called without a qualifier.
	Dir string `mapstructure:"dir"`
	// Func is the injector name. Defaults to "Initialize".
	Func string `mapstructure:"func"`
}

var fileTemplate = template.Must(template.New("injector").Parse(`// Code generated by wirekit. DO NOT EDIT.

package {{.Package}}
{{if .Imports}}
import (
{{- range .Imports}}
	{{if .Named}}{{.Name}} {{end}}{{printf "%q" .Path}}
{{- end}}
)
{{end}}
// {{.Func}} constructs {{.Root}}.
func {{.Func}}() {{if .Fallible}}({{.Type}}, error){{else}}{{.Type}}{{end}} {
{{- if .Fallible}}
	var zero {{.Type}}
{{- end}}
{{- range .Steps}}
	{{.Var}}{{if .ErrVar}}, {{.ErrVar}}{{end}} := {{.Call}}
{{- if .ErrVar}}
	if {{.ErrVar}} != nil {
		return zero, {{.ErrVar}}
	}
{{- end}}
{{- end}}
	return {{.Result}}{{if .Fallible}}, nil{{end}}
}
`))

type fileData struct {
	Package  string
	Imports  []importSpec
	Func     string
	Root     string
	Type     string
	Fallible bool
	Steps    []stepData
	Result   string
}

type importSpec struct {
	Name  string
	Path  string
	Named bool
}

type stepData struct {
	Var    string
	ErrVar string
	Call   string
}

// Generate renders p as a gofmt'd Go file.
func Generate(p *plan.Plan, opts Options) ([]byte, error) {
	if p == nil || len(p.Steps) == 0 {
		return nil, fmt.Errorf("emit: empty plan")
	}
	if !token.IsIdentifier(opts.Package) {
		return nil, fmt.Errorf("emit: invalid package name %q", opts.Package)
	}
	if opts.Func == "" {
		opts.Func = "Initialize"
	}
	if !token.IsIdentifier(opts.Func) {
		return nil, fmt.Errorf("emit: invalid function name %q", opts.Func)
	}

	g := &generator{
		opts:    opts,
		aliases: make(map[string]string),
		taken:   map[string]bool{"zero": true, "err": true, opts.Func: true},
	}
	for _, s := range p.Steps {
		if err := g.importProvider(s.Provider); err != nil {
			return nil, err
		}
	}
	root := p.RootStep().Provider
	for _, imp := range root.Imports {
		g.importPath(imp.Name, imp.Path)
	}

	vars := make([]string, len(p.Steps))
	data := fileData{
		Package:  opts.Package,
		Func:     opts.Func,
		Root:     p.Root.String(),
		Type:     g.typeExpr(root),
		Fallible: p.Fallible,
	}
	for i, s := range p.Steps {
		vars[i] = g.varName(s.Key)
	}
	for i, s := range p.Steps {
		args := make([]string, len(s.Args))
		for j, a := range s.Args {
			args[j] = renderArg(vars[a.FromIndex], p.Steps[a.FromIndex].Provider, a.Ops)
		}
		step := stepData{
			Var:  vars[i],
			Call: g.symbol(s.Provider) + "(" + strings.Join(args, ", ") + ")",
		}
		if s.Provider.Fallible {
			step.ErrVar = "err"
			if s.Provider.ErrorKind != "" && s.Provider.ErrorKind != "error" {
				step.ErrVar = vars[i] + "Err"
			}
		}
		data.Steps = append(data.Steps, step)
	}
	data.Result = vars[len(vars)-1]
	data.Imports = g.imports()

	var buf bytes.Buffer
	if err := fileTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("emit: rendering: %w", err)
	}
	out, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("emit: formatting: %w\n%s", err, buf.String())
	}
	return out, nil
}

type generator struct {
	opts Options
	// aliases maps import path to the name used in the file.
	aliases map[string]string
	// local maps a provider package name to the alias of its package.
	local map[string]string
	taken map[string]bool
}

func (g *generator) importProvider(p decl.Provider) error {
	if p.Dir == g.opts.Dir {
		return nil
	}
	if g.opts.Module == "" {
		return fmt.Errorf("emit: provider %s lives in %q and no module path is set", p.QualifiedSymbol(), p.Dir)
	}
	ipath := g.opts.Module
	if p.Dir != "" {
		ipath += "/" + p.Dir
	}
	g.importPath(p.Package, ipath)
	return nil
}

func (g *generator) importPath(name, ipath string) {
	if _, ok := g.aliases[ipath]; ok {
		return
	}
	alias := name
	for n := 2; g.taken[alias] || alias == g.opts.Package; n++ {
		alias = name + strconv.Itoa(n)
	}
	g.taken[alias] = true
	g.aliases[ipath] = alias
	if g.local == nil {
		g.local = make(map[string]string)
	}
	if _, ok := g.local[name]; !ok {
		g.local[name] = alias
	}
}

func (g *generator) imports() []importSpec {
	out := make([]importSpec, 0, len(g.aliases))
	for ipath, alias := range g.aliases {
		out = append(out, importSpec{Name: alias, Path: ipath, Named: alias != lastElem(ipath)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// symbol returns the qualified call target of p.
func (g *generator) symbol(p decl.Provider) string {
	if p.Dir == g.opts.Dir {
		return p.Symbol
	}
	ipath := g.opts.Module
	if p.Dir != "" {
		ipath += "/" + p.Dir
	}
	return g.aliases[ipath] + "." + p.Symbol
}

// typeExpr renders the root's declared type with package names replaced by
// their aliases and the output package's own name removed.
func (g *generator) typeExpr(p decl.Provider) string {
	expr := p.Expr
	if expr == "" {
		expr = p.Type
	}
	names := make(map[string]string, len(g.local)+1)
	for name, alias := range g.local {
		names[name] = alias + "."
	}
	if p.Dir == g.opts.Dir {
		names[p.Package] = ""
	} else if alias, ok := g.aliases[g.importOf(p.Dir)]; ok {
		names[p.Package] = alias + "."
	}
	return requalify(expr, names)
}

func (g *generator) importOf(dir string) string {
	if dir == "" {
		return g.opts.Module
	}
	return g.opts.Module + "/" + dir
}

// varName derives a unique local name from a key: "db.Pool#replica"
// becomes "poolReplica".
func (g *generator) varName(k decl.Key) string {
	base := k.Type
	if i := strings.IndexByte(base, '['); i >= 0 {
		base = base[:i]
	}
	if i := strings.LastIndexByte(base, '.'); i >= 0 {
		base = base[i+1:]
	}
	name := lowerCamel(base)
	if k.Qualifier != "" {
		name += upperFirst(sanitize(k.Qualifier))
	}
	if name == "" || token.IsKeyword(name) || !token.IsIdentifier(name) {
		name = "v" + upperFirst(name)
	}
	candidate := name
	for n := 2; g.taken[candidate]; n++ {
		candidate = name + strconv.Itoa(n)
	}
	g.taken[candidate] = true
	return candidate
}

func renderArg(v string, producer decl.Provider, ops []plan.Op) string {
	pointer := strings.HasPrefix(producer.Expr, "*")
	for _, op := range ops {
		switch op {
		case plan.OpBorrow:
			v = "&" + v
		case plan.OpDerefBorrow:
			if !pointer {
				v = "&" + v
			}
		case plan.OpClone:
			if !pointer && !producer.Handle() {
				v += ".Clone()"
			}
		}
	}
	return v
}

// requalify rewrites "pkg." prefixes of identifiers in expr using names.
func requalify(expr string, names map[string]string) string {
	var b strings.Builder
	i := 0
	for i < len(expr) {
		r := rune(expr[i])
		if !isIdentStart(r) {
			b.WriteByte(expr[i])
			i++
			continue
		}
		j := i
		for j < len(expr) && isIdentPart(rune(expr[j])) {
			j++
		}
		ident := expr[i:j]
		if j < len(expr) && expr[j] == '.' {
			if repl, ok := names[ident]; ok {
				b.WriteString(repl)
				i = j + 1
				continue
			}
		}
		b.WriteString(ident)
		i = j
	}
	return b.String()
}

func isIdentStart(r rune) bool { return r == '_' || unicode.IsLetter(r) }
func isIdentPart(r rune) bool  { return isIdentStart(r) || unicode.IsDigit(r) }

// lowerCamel lowers the leading capitals of s, keeping the last one of a
// run that starts a new word: "SQLStore" becomes "sqlStore".
func lowerCamel(s string) string {
	runes := []rune(s)
	n := 0
	for n < len(runes) && unicode.IsUpper(runes[n]) {
		n++
	}
	if n > 1 && n < len(runes) {
		n--
	}
	for i := 0; i < n; i++ {
		runes[i] = unicode.ToLower(runes[i])
	}
	return string(runes)
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func sanitize(s string) string {
	var b strings.Builder
	upper := false
	for _, r := range s {
		if !isIdentPart(r) {
			upper = true
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

func lastElem(ipath string) string {
	return ipath[strings.LastIndexByte(ipath, '/')+1:]
}
