// Package extract turns a parsed Kotlin syntax tree into declaration
// records. It drives the pattern matcher with a fixed pattern set and
// resolves every referenced type name into a usage edge.
//
// Extraction never fails: a field no pattern can capture keeps its default
// (empty, "public" visibility, "Unit" return type).
package extract

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/DeusData/declgraph/internal/fqn"
	"github.com/DeusData/declgraph/internal/lang"
	"github.com/DeusData/declgraph/internal/model"
	"github.com/DeusData/declgraph/internal/parser"
	"github.com/DeusData/declgraph/internal/pattern"
	"github.com/DeusData/declgraph/internal/resolve"
)

// FileDeclarations is everything extracted from one file.
type FileDeclarations struct {
	PackageName  string
	Imports      []string
	Aliases      map[string]string
	Declarations []model.Declaration
}

// Extractor extracts declarations from Kotlin trees. Compiled patterns are
// shared read-only, so one Extractor serves any number of goroutines.
type Extractor struct {
	spec     *lang.LanguageSpec
	resolver *resolve.Resolver
	patterns *pattern.Set
	owners   map[string]bool
}

// New compiles the Kotlin pattern set. A returned error is a
// *pattern.CompileError and means the program itself is broken.
func New(resolver *resolve.Resolver) (*Extractor, error) {
	spec := lang.ForLanguage(lang.Kotlin)
	if spec == nil {
		return nil, fmt.Errorf("extract: kotlin language spec not registered")
	}
	if resolver == nil {
		resolver = resolve.New(spec.BuiltinTypes)
	}
	tsLang, err := parser.GetLanguage(lang.Kotlin)
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}
	set, err := compileKotlin(tsLang)
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}
	owners := make(map[string]bool, len(spec.OwnerNodeTypes))
	for _, k := range spec.OwnerNodeTypes {
		owners[k] = true
	}
	return &Extractor{spec: spec, resolver: resolver, patterns: set, owners: owners}, nil
}

// Close releases the compiled patterns.
func (e *Extractor) Close() {
	if e != nil && e.patterns != nil {
		e.patterns.Close()
	}
}

// Extract returns the package, imports and top-level declarations of one
// file. It is a pure function of its inputs.
func (e *Extractor) Extract(path string, tree *tree_sitter.Tree, source []byte) FileDeclarations {
	var fd FileDeclarations
	if tree == nil {
		return fd
	}
	root := tree.RootNode()
	if root == nil {
		return fd
	}

	fd.PackageName = e.packageName(root, source)
	fd.Imports, fd.Aliases = e.imports(root, source)
	ctx := resolve.Context{Package: fd.PackageName, Imports: fd.Imports, Aliases: fd.Aliases}

	for _, m := range e.patterns.Get(patDeclaration).Match(root, source) {
		node := m.Node(capDecl)
		name := m.Text(capDeclName, source)
		if node == nil || name == "" {
			continue
		}
		if e.ownerOf(node) != nil {
			continue // nested or local declaration
		}
		fd.Declarations = append(fd.Declarations, e.declaration(path, node, name, source, ctx))
	}
	fd.Declarations = append(fd.Declarations, e.annotationClasses(path, root, source, ctx)...)
	sort.SliceStable(fd.Declarations, func(i, j int) bool {
		return fd.Declarations[i].StartLine < fd.Declarations[j].StartLine
	})
	return fd
}

// annotationClassRe matches what remains of "annotation class Name" once
// the grammar has taken the leading meta-annotations as an annotated
// expression.
var annotationClassRe = regexp.MustCompile(`^(?:(public|internal|private|protected)\s+)?annotation\s+class\s+([A-Za-z_][A-Za-z0-9_]*)`)

// annotationClasses recovers annotation classes carrying meta-annotations
// such as @Target, which the grammar reads as an annotated expression
// instead of a class declaration.
func (e *Extractor) annotationClasses(path string, root *tree_sitter.Node, source []byte, ctx resolve.Context) []model.Declaration {
	var out []model.Declaration
	for _, m := range e.patterns.Get(patAnnotated).Match(root, source) {
		node := m.Node(capDecl)
		if node == nil || e.ownerOf(node) != nil {
			continue
		}
		if p := node.Parent(); p != nil && p.Kind() == "annotated_expression" {
			continue
		}
		var annotations []string
		inner := node
		for inner != nil && inner.Kind() == "annotated_expression" {
			var next *tree_sitter.Node
			for i := uint(0); i < inner.NamedChildCount(); i++ {
				c := inner.NamedChild(i)
				if c == nil {
					continue
				}
				if c.Kind() == "annotation" {
					annotations = append(annotations, strings.TrimSpace(parser.NodeText(c, source)))
				} else {
					next = c
				}
			}
			inner = next
		}
		if inner == nil {
			continue
		}
		sm := annotationClassRe.FindStringSubmatch(strings.TrimSpace(parser.NodeText(inner, source)))
		if sm == nil {
			continue
		}
		visibility := model.VisibilityPublic
		if sm[1] != "" {
			visibility = sm[1]
		}
		d := model.Declaration{
			FQN:         fqn.Join(ctx.Package, sm[2]),
			Name:        sm[2],
			Kind:        model.KindAnnotation,
			PackageName: ctx.Package,
			Visibility:  visibility,
			Annotations: annotations,
			Path:        path,
			StartLine:   int(node.StartPosition().Row) + 1,
			EndLine:     int(node.EndPosition().Row) + 1,
			Uses:        []string{},
			UsedBy:      []string{},
		}
		if len(ctx.Imports) > 0 {
			d.Imports = append([]string(nil), ctx.Imports...)
		}
		out = append(out, d)
	}
	return out
}

func (e *Extractor) packageName(root *tree_sitter.Node, source []byte) string {
	for _, m := range e.patterns.Get(patPackage).Match(root, source) {
		if pkg := strings.TrimSpace(m.Text(capPackage, source)); pkg != "" {
			return pkg
		}
	}
	return ""
}

// imports returns the import paths in source order without duplicates.
// Wildcard imports keep their ".*" suffix; "import a.B as C" records a.B
// and the alias C.
func (e *Extractor) imports(root *tree_sitter.Node, source []byte) ([]string, map[string]string) {
	var paths []string
	var aliases map[string]string
	for _, m := range e.patterns.Get(patImport).Match(root, source) {
		stmt, qid := m.Node(capImport), m.Node(capImportPath)
		if stmt == nil || qid == nil {
			continue
		}
		path := strings.TrimSpace(parser.NodeText(qid, source))
		if path == "" {
			continue
		}
		tail := ""
		if qid.EndByte() <= stmt.EndByte() && stmt.EndByte() <= uint(len(source)) {
			tail = strings.TrimSpace(string(source[qid.EndByte():stmt.EndByte()]))
		}
		switch {
		case strings.HasPrefix(tail, ".") && strings.Contains(tail, "*"):
			if !strings.HasSuffix(path, ".*") {
				path += ".*"
			}
		case strings.HasPrefix(tail, "as"):
			if alias := strings.TrimSpace(strings.TrimPrefix(tail, "as")); alias != "" {
				alias = strings.TrimRight(alias, "; \t\r\n")
				if aliases == nil {
					aliases = make(map[string]string)
				}
				aliases[alias] = path
			}
		}
		paths = model.AppendUnique(paths, path)
	}
	return paths, aliases
}

func (e *Extractor) declaration(path string, node *tree_sitter.Node, name string, source []byte, ctx resolve.Context) model.Declaration {
	d := model.Declaration{
		FQN:         fqn.Join(ctx.Package, name),
		Name:        name,
		PackageName: ctx.Package,
		Visibility:  model.VisibilityPublic,
		Path:        path,
		StartLine:   int(node.StartPosition().Row) + 1,
		EndLine:     int(node.EndPosition().Row) + 1,
	}
	if len(ctx.Imports) > 0 {
		d.Imports = append([]string(nil), ctx.Imports...)
	}

	mods := e.modifiers(parser.FindChildByKind(node, "modifiers"), source)
	d.Annotations = mods.annotations
	if mods.visibility != "" {
		d.Visibility = mods.visibility
	}
	d.Kind = declarationKind(node, mods.classModifiers)
	d.TypeParameters = typeParameters(node, source)

	supers := e.supertypes(node, source, ctx, d.TypeParameters)
	d.Extends = supers.extends
	d.Implements = supers.implements

	d.ConstructorParams = e.constructorParams(node, source)
	body := declarationBody(node)
	d.Members = e.properties(node, body, source)
	d.Functions = e.functions(node, body, source)

	nested := e.nestedTypes(node)
	exclude := append(append([]string(nil), d.TypeParameters...), nestedNames(nested, source)...)
	refs := append([]string(nil), supers.refs...)
	refs = append(refs, e.nestedReferences(nested, source, ctx, exclude)...)
	d.Uses = e.uses(&d, ctx, refs, exclude)
	d.UsedBy = []string{}
	return d
}

// declarationKind derives the kind from the node category, the interface
// keyword and the class modifiers.
func declarationKind(node *tree_sitter.Node, classModifiers []string) model.Kind {
	if node.Kind() == "object_declaration" {
		return model.KindObject
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		if c := node.Child(i); c != nil && !c.IsNamed() && c.Kind() == "interface" {
			return model.KindInterface
		}
	}
	has := func(m string) bool {
		for _, cm := range classModifiers {
			if strings.TrimSpace(cm) == m {
				return true
			}
		}
		return false
	}
	switch {
	case has("enum"):
		return model.KindEnum
	case has("annotation"):
		return model.KindAnnotation
	case has("sealed"):
		return model.KindSealedClass
	case has("data"):
		return model.KindDataClass
	}
	if parser.FindChildByKind(node, "enum_class_body") != nil {
		return model.KindEnum
	}
	return model.KindClass
}

func declarationBody(node *tree_sitter.Node) *tree_sitter.Node {
	if body := parser.FindChildByKind(node, "class_body"); body != nil {
		return body
	}
	return parser.FindChildByKind(node, "enum_class_body")
}

func typeParameters(node *tree_sitter.Node, source []byte) []string {
	tps := parser.FindChildByKind(node, "type_parameters")
	if tps == nil {
		return nil
	}
	var out []string
	for i := uint(0); i < tps.ChildCount(); i++ {
		tp := tps.Child(i)
		if tp == nil || tp.Kind() != "type_parameter" {
			continue
		}
		if id := parser.FindChildByKind(tp, "identifier"); id != nil {
			out = model.AppendUnique(out, parser.NodeText(id, source))
		}
	}
	return out
}

// ownerOf returns the nearest enclosing node that owns declarations
// (class, object, function, lambda...), or nil for top-level nodes.
func (e *Extractor) ownerOf(node *tree_sitter.Node) *tree_sitter.Node {
	for p := node.Parent(); p != nil; p = p.Parent() {
		if e.owners[p.Kind()] {
			return p
		}
	}
	return nil
}

func (e *Extractor) ownedBy(node, owner *tree_sitter.Node) bool {
	return parser.SameNode(e.ownerOf(node), owner)
}

// uses collects the resolved type references of a declaration: supertypes,
// member and constructor parameter types, function parameter and return
// types, plus the already resolved refs of supertypes and nested types.
// Built-ins, names in exclude and the declaration itself are dropped.
func (e *Extractor) uses(d *model.Declaration, ctx resolve.Context, resolved, exclude []string) []string {
	var refs []string
	add := func(list []string) {
		for _, r := range list {
			if r != d.FQN {
				refs = append(refs, r)
			}
		}
	}
	add(resolved)
	add(e.memberReferences(d.ConstructorParams, d.Members, d.Functions, ctx, exclude))
	return model.SortedSet(refs)
}

func (e *Extractor) memberReferences(params, members []model.Variable, fns []model.Function, ctx resolve.Context, exclude []string) []string {
	var refs []string
	for _, v := range params {
		refs = append(refs, e.resolver.References(v.Type, ctx, exclude)...)
	}
	for _, v := range members {
		refs = append(refs, e.resolver.References(v.Type, ctx, exclude)...)
	}
	for _, f := range fns {
		fnExclude := append(append([]string(nil), exclude...), f.TypeParameters...)
		for _, p := range f.Parameters {
			refs = append(refs, e.resolver.References(p.Type, ctx, fnExclude)...)
		}
		refs = append(refs, e.resolver.References(f.ReturnType, ctx, fnExclude)...)
	}
	return refs
}

var nestedTypeKinds = map[string]bool{
	"class_declaration":  true,
	"object_declaration": true,
	"companion_object":   true,
}

// nestedTypes returns the classes, objects and companions declared inside
// decl's body at any depth. Types local to a function body are skipped.
func (e *Extractor) nestedTypes(decl *tree_sitter.Node) []*tree_sitter.Node {
	body := declarationBody(decl)
	if body == nil {
		return nil
	}
	var out []*tree_sitter.Node
	parser.Walk(body, func(n *tree_sitter.Node) bool {
		if !e.owners[n.Kind()] {
			return true
		}
		if nestedTypeKinds[n.Kind()] {
			out = append(out, n)
			out = append(out, e.nestedTypes(n)...)
		}
		return false
	})
	return out
}

func nestedNames(nested []*tree_sitter.Node, source []byte) []string {
	var names []string
	for _, n := range nested {
		if id := parser.FindChildByKind(n, "identifier"); id != nil {
			names = model.AppendUnique(names, parser.NodeText(id, source))
		}
	}
	return names
}

// nestedReferences resolves what nested types depend on. A nested type is
// not a graph node, so its dependencies belong to the top-level declaration.
func (e *Extractor) nestedReferences(nested []*tree_sitter.Node, source []byte, ctx resolve.Context, exclude []string) []string {
	var refs []string
	for _, n := range nested {
		ex := append(append([]string(nil), exclude...), typeParameters(n, source)...)
		refs = append(refs, e.supertypes(n, source, ctx, ex).refs...)
		body := declarationBody(n)
		refs = append(refs, e.memberReferences(
			e.constructorParams(n, source),
			e.properties(n, body, source),
			e.functions(n, body, source),
			ctx, ex)...)
	}
	return refs
}
