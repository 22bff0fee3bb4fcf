package scanner

import (
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/kbukum/wirekit/decl"
)

const (
	providerDirective = "//wire:provider"
	injectDirective   = "//wire:inject"
)

// GoParser extracts providers from annotated Go source files.
type GoParser struct {
	classifier *decl.Classifier
}

// NewGoParser creates a Go parser. A nil classifier uses the default wrapper names.
func NewGoParser(c *decl.Classifier) *GoParser {
	if c == nil {
		c = decl.NewClassifier(nil, nil)
	}
	return &GoParser{classifier: c}
}

// Name implements UnitParser.
func (p *GoParser) Name() string { return "go/v1" }

// Match implements UnitParser. Test files are never units.
func (p *GoParser) Match(name string) bool {
	return strings.HasSuffix(name, ".go") && !strings.HasSuffix(name, "_test.go")
}

// Parse implements UnitParser.
func (p *GoParser) Parse(unitPath string, src []byte) (decl.Unit, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, unitPath, src, parser.ParseComments|parser.SkipObjectResolution)
	if err != nil {
		return decl.Unit{}, err
	}

	f := &goFile{
		parser:  p,
		fset:    fset,
		path:    unitPath,
		pkg:     file.Name.Name,
		dir:     unitDir(unitPath),
		imports: make(map[string]string),
	}
	for _, imp := range file.Imports {
		ipath, _ := strconv.Unquote(imp.Path.Value)
		name := importName(ipath)
		if imp.Name != nil {
			name = imp.Name.Name
		}
		f.imports[name] = ipath
	}

	unit := decl.Unit{Path: unitPath, Package: f.pkg}
	for _, d := range file.Decls {
		switch d := d.(type) {
		case *ast.GenDecl:
			unit.Interfaces = append(unit.Interfaces, f.interfaces(d)...)
		case *ast.FuncDecl:
			if !hasDirective(d.Doc, providerDirective) {
				continue
			}
			prov, bindings, err := f.provider(d)
			if err != nil {
				return decl.Unit{}, err
			}
			unit.Providers = append(unit.Providers, prov)
			unit.Bindings = append(unit.Bindings, bindings...)
		}
	}
	return unit, nil
}

type goFile struct {
	parser  *GoParser
	fset    *token.FileSet
	path    string
	pkg     string
	dir     string
	imports map[string]string
}

func (f *goFile) line(n ast.Node) int {
	return f.fset.Position(n.Pos()).Line
}

func (f *goFile) interfaces(d *ast.GenDecl) []string {
	if d.Tok != token.TYPE {
		return nil
	}
	var out []string
	for _, spec := range d.Specs {
		ts := spec.(*ast.TypeSpec)
		if _, ok := ts.Type.(*ast.InterfaceType); ok && ts.TypeParams == nil {
			out = append(out, f.pkg+"."+ts.Name.Name)
		}
	}
	return out
}

func (f *goFile) provider(fn *ast.FuncDecl) (decl.Provider, []decl.Binding, error) {
	line := f.line(fn)
	name := fn.Name.Name
	if fn.Recv != nil {
		return decl.Provider{}, nil, parseErrorf(f.path, line, "provider %s must be a package-level function", name)
	}
	if fn.Type.TypeParams != nil {
		return decl.Provider{}, nil, parseErrorf(f.path, line, "provider %s must not be generic", name)
	}

	qualifier, binds, err := f.providerArgs(fn)
	if err != nil {
		return decl.Provider{}, nil, err
	}
	hints, err := f.injectArgs(fn)
	if err != nil {
		return decl.Provider{}, nil, err
	}

	prov := decl.Provider{
		Symbol:    name,
		Package:   f.pkg,
		Dir:       f.dir,
		Qualifier: qualifier,
		Location:  decl.Location{Unit: f.path, Line: line, Symbol: name},
	}

	results := fieldTypes(fn.Type.Results)
	switch len(results) {
	case 1:
	case 2:
		kind, ok := f.errorKind(results[1])
		if !ok {
			return decl.Provider{}, nil, parseErrorf(f.path, line, "provider %s: second result must be error or an *Error type, got %s", name, types.ExprString(results[1]))
		}
		prov.Fallible = true
		prov.ErrorKind = kind
	default:
		return decl.Provider{}, nil, parseErrorf(f.path, line, "provider %s must return T or (T, error)", name)
	}
	refs := make(map[string]string)
	prov.Expr = f.qualify(results[0], refs)
	prov.Type, prov.Form = f.parser.classifier.Classify(prov.Expr, decl.Output)
	prov.Imports = importsOf(refs)

	seen := make(map[string]bool)
	if fn.Type.Params != nil {
		for i, field := range fn.Type.Params.List {
			if _, ok := field.Type.(*ast.Ellipsis); ok {
				return decl.Provider{}, nil, parseErrorf(f.path, line, "provider %s must not be variadic", name)
			}
			names := field.Names
			if len(names) == 0 {
				names = []*ast.Ident{{Name: "arg" + strconv.Itoa(i)}}
			}
			expr := f.qualify(field.Type, nil)
			typ, form := f.parser.classifier.Classify(expr, decl.Input)
			for _, n := range names {
				seen[n.Name] = true
				prov.Dependencies = append(prov.Dependencies, decl.Dependency{
					Name: n.Name, Type: typ, Expr: expr, Form: form, Hint: hints[n.Name],
				})
			}
		}
	}
	for param := range hints {
		if !seen[param] {
			return decl.Provider{}, nil, parseErrorf(f.path, line, "provider %s: inject names unknown parameter %q", name, param)
		}
	}

	var bindings []decl.Binding
	for _, iface := range binds {
		if !strings.Contains(iface, ".") {
			iface = f.pkg + "." + iface
		}
		bindings = append(bindings, decl.Binding{
			Interface: iface,
			Provider:  prov.Key(),
			Location:  prov.Location,
		})
	}
	return prov, bindings, nil
}

func (f *goFile) providerArgs(fn *ast.FuncDecl) (qualifier string, binds []string, err error) {
	for _, c := range fn.Doc.List {
		args, ok := directiveArgs(c.Text, providerDirective)
		if !ok {
			continue
		}
		for _, arg := range args {
			k, v, ok := strings.Cut(arg, "=")
			if !ok || v == "" {
				return "", nil, parseErrorf(f.path, f.line(c), "malformed provider option %q", arg)
			}
			switch k {
			case "qualifier":
				qualifier = v
			case "bind":
				binds = append(binds, v)
			default:
				return "", nil, parseErrorf(f.path, f.line(c), "unknown provider option %q", k)
			}
		}
	}
	return qualifier, binds, nil
}

func (f *goFile) injectArgs(fn *ast.FuncDecl) (map[string]string, error) {
	hints := make(map[string]string)
	for _, c := range fn.Doc.List {
		args, ok := directiveArgs(c.Text, injectDirective)
		if !ok {
			continue
		}
		for _, arg := range args {
			param, q, ok := strings.Cut(arg, "=")
			if !ok || param == "" || q == "" {
				return nil, parseErrorf(f.path, f.line(c), "malformed inject hint %q, want <param>=<qualifier>", arg)
			}
			hints[param] = q
		}
	}
	return hints, nil
}

// errorKind accepts error and named types ending in Error, such as
// *ConfigError or db.Error.
func (f *goFile) errorKind(expr ast.Expr) (string, bool) {
	if id, ok := expr.(*ast.Ident); ok && id.Name == "error" {
		return "error", true
	}
	base := expr
	if star, ok := base.(*ast.StarExpr); ok {
		base = star.X
	}
	var name string
	switch b := base.(type) {
	case *ast.Ident:
		name = b.Name
	case *ast.SelectorExpr:
		name = b.Sel.Name
	default:
		return "", false
	}
	if !strings.HasSuffix(name, "Error") {
		return "", false
	}
	return f.qualify(expr, nil), true
}

// qualify renders a type expression with every named type prefixed by its
// package name. Aliased imports are rendered with the package's own name so
// keys match across files. Packages referenced through imports are added to
// refs by name.
func (f *goFile) qualify(expr ast.Expr, refs map[string]string) string {
	switch e := expr.(type) {
	case *ast.Ident:
		if types.Universe.Lookup(e.Name) != nil {
			return e.Name
		}
		return f.pkg + "." + e.Name
	case *ast.SelectorExpr:
		if x, ok := e.X.(*ast.Ident); ok {
			pkg := x.Name
			if ipath, ok := f.imports[pkg]; ok {
				pkg = importName(ipath)
				if refs != nil {
					refs[pkg] = ipath
				}
			}
			return pkg + "." + e.Sel.Name
		}
	case *ast.StarExpr:
		return "*" + f.qualify(e.X, refs)
	case *ast.ArrayType:
		if e.Len == nil {
			return "[]" + f.qualify(e.Elt, refs)
		}
		return "[" + types.ExprString(e.Len) + "]" + f.qualify(e.Elt, refs)
	case *ast.MapType:
		return "map[" + f.qualify(e.Key, refs) + "]" + f.qualify(e.Value, refs)
	case *ast.IndexExpr:
		return f.qualify(e.X, refs) + "[" + f.qualify(e.Index, refs) + "]"
	case *ast.IndexListExpr:
		args := make([]string, len(e.Indices))
		for i, ix := range e.Indices {
			args[i] = f.qualify(ix, refs)
		}
		return f.qualify(e.X, refs) + "[" + strings.Join(args, ", ") + "]"
	case *ast.ParenExpr:
		return f.qualify(e.X, refs)
	}
	return types.ExprString(expr)
}

func importsOf(refs map[string]string) []decl.Import {
	if len(refs) == 0 {
		return nil
	}
	out := make([]decl.Import, 0, len(refs))
	for name, ipath := range refs {
		out = append(out, decl.Import{Name: name, Path: ipath})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func hasDirective(doc *ast.CommentGroup, directive string) bool {
	if doc == nil {
		return false
	}
	for _, c := range doc.List {
		if _, ok := directiveArgs(c.Text, directive); ok {
			return true
		}
	}
	return false
}

func directiveArgs(text, directive string) ([]string, bool) {
	rest, ok := strings.CutPrefix(text, directive)
	if !ok || (rest != "" && rest[0] != ' ' && rest[0] != '\t') {
		return nil, false
	}
	return strings.Fields(rest), true
}

// fieldTypes flattens a field list into one type per value.
func fieldTypes(fl *ast.FieldList) []ast.Expr {
	if fl == nil {
		return nil
	}
	var out []ast.Expr
	for _, field := range fl.List {
		n := len(field.Names)
		if n == 0 {
			n = 1
		}
		for i := 0; i < n; i++ {
			out = append(out, field.Type)
		}
	}
	return out
}

// importName guesses the package name of an import path: its last element,
// skipping a major version suffix and dropping a gopkg.in style ".vN".
func importName(ipath string) string {
	elems := strings.Split(ipath, "/")
	name := elems[len(elems)-1]
	if len(elems) > 1 && isMajorVersion(name) {
		name = elems[len(elems)-2]
	}
	if i := strings.Index(name, ".v"); i > 0 && isMajorVersion(name[i+1:]) {
		name = name[:i]
	}
	return strings.ReplaceAll(name, "-", "_")
}

func isMajorVersion(s string) bool {
	if len(s) < 2 || s[0] != 'v' {
		return false
	}
	_, err := strconv.Atoi(s[1:])
	return err == nil
}

func unitDir(unitPath string) string {
	dir := path.Dir(unitPath)
	if dir == "." {
		return ""
	}
	return dir
}
