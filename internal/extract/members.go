package extract

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/DeusData/declgraph/internal/model"
	"github.com/DeusData/declgraph/internal/parser"
	"github.com/DeusData/declgraph/internal/resolve"
)

// typeKinds are the node kinds that spell a type in a declaration.
var typeKinds = map[string]bool{
	"user_type":          true,
	"nullable_type":      true,
	"non_nullable_type":  true,
	"function_type":      true,
	"parenthesized_type": true,
	"type":               true,
}

type modifierInfo struct {
	annotations    []string
	visibility     string
	classModifiers []string
}

// modifiers reads annotations, the visibility modifier and class modifiers
// from a modifiers node. Other modifier lists (parameter modifiers) only
// contribute their annotations.
func (e *Extractor) modifiers(mods *tree_sitter.Node, source []byte) modifierInfo {
	var mi modifierInfo
	if mods == nil {
		return mi
	}
	if mods.Kind() != "modifiers" {
		parser.Walk(mods, func(n *tree_sitter.Node) bool {
			if n.Kind() == "annotation" {
				mi.annotations = append(mi.annotations, strings.TrimSpace(parser.NodeText(n, source)))
				return false
			}
			return true
		})
		return mi
	}
	for _, m := range e.patterns.Get(patModifiers).Match(mods, source) {
		if !parser.SameNode(m.Node(capModifiers), mods) {
			continue
		}
		for _, a := range m.Texts(capAnnotation, source) {
			mi.annotations = append(mi.annotations, strings.TrimSpace(a))
		}
		mi.visibility = strings.TrimSpace(m.Text(capVisibility, source))
		mi.classModifiers = m.Texts(capClassMod, source)
	}
	if !model.IsVisibility(mi.visibility) {
		mi.visibility = ""
	}
	return mi
}

type supertypeInfo struct {
	extends    string
	implements []string
	refs       []string // every type named in the supertype list, resolved
}

// supertypes splits the delegation list of a declaration. The first entry
// written as a constructor call (Base(...)) is the superclass; every other
// entry is an implemented interface. This is a heuristic: an interface and
// a class without a call are indistinguishable without type information.
func (e *Extractor) supertypes(node *tree_sitter.Node, source []byte, ctx resolve.Context, typeParams []string) supertypeInfo {
	var si supertypeInfo
	specs := parser.FindChildByKind(node, "delegation_specifiers")
	if specs == nil {
		return si
	}

	add := func(raw string, call bool) {
		raw = strings.TrimSpace(raw)
		base := resolve.StripGenerics(raw)
		if base == "" {
			return
		}
		target := base
		if !e.resolver.IsBuiltin(base) {
			target = e.resolver.ResolveIn(base, ctx)
		}
		if call && si.extends == "" {
			si.extends = target
		} else {
			si.implements = model.AppendUnique(si.implements, target)
		}
		for _, r := range e.resolver.References(raw, ctx, typeParams) {
			si.refs = model.AppendUnique(si.refs, r)
		}
	}

	seen := make(map[uintptr]bool)
	for _, m := range e.patterns.Get(patSupertypes).Match(specs, source) {
		spec := m.Node(capSuper)
		if spec == nil || !parser.SameNode(spec.Parent(), specs) {
			continue
		}
		seen[spec.Id()] = true
		if m.Has(capSuperCall) {
			add(m.Text(capSuperCall, source), true)
		} else {
			add(m.Text(capSuperType, source), false)
		}
	}

	// Entries the pattern does not cover, such as "Foo by impl".
	for i := uint(0); i < specs.ChildCount(); i++ {
		spec := specs.Child(i)
		if spec == nil || spec.Kind() != "delegation_specifier" || seen[spec.Id()] {
			continue
		}
		if ut := parser.FindFirstByKind(spec, "user_type"); ut != nil {
			add(parser.NodeText(ut, source), false)
		}
	}
	return si
}

// constructorParams reads the primary constructor of a declaration.
func (e *Extractor) constructorParams(node *tree_sitter.Node, source []byte) []model.Variable {
	ctor := parser.FindChildByKind(node, "primary_constructor")
	if ctor == nil {
		return nil
	}
	var out []model.Variable
	for _, m := range e.patterns.Get(patCtorParams).Match(ctor, source) {
		param := m.Node(capParam)
		if param == nil || !parser.SameNode(enclosing(param, "primary_constructor"), ctor) {
			continue
		}
		v := model.Variable{
			Name:         m.Text(capParamName, source),
			Type:         typeText(param, source),
			Visibility:   model.VisibilityPublic,
			DefaultValue: defaultValue(param, source),
			Mutable:      hasToken(param, "var", source),
		}
		mi := e.modifiers(parser.FindChildByKind(param, "modifiers"), source)
		v.Annotations = mi.annotations
		if mi.visibility != "" {
			v.Visibility = mi.visibility
		}
		out = append(out, v)
	}
	return out
}

// properties reads the property declarations owned directly by decl.
// Properties of companion objects, nested types and function bodies belong
// to those owners instead.
func (e *Extractor) properties(decl, body *tree_sitter.Node, source []byte) []model.Variable {
	if body == nil {
		return nil
	}
	var out []model.Variable
	for _, m := range e.patterns.Get(patProperties).Match(body, source) {
		prop := m.Node(capProperty)
		if prop == nil || !e.ownedBy(prop, decl) {
			continue
		}
		v := model.Variable{
			Name:         m.Text(capPropertyName, source),
			Type:         typeText(parser.FindChildByKind(prop, "variable_declaration"), source),
			Visibility:   model.VisibilityPublic,
			DefaultValue: defaultValue(prop, source),
			Mutable:      hasToken(prop, "var", source),
		}
		mi := e.modifiers(parser.FindChildByKind(prop, "modifiers"), source)
		v.Annotations = mi.annotations
		if mi.visibility != "" {
			v.Visibility = mi.visibility
		}
		out = append(out, v)
	}
	return out
}

// functions reads the functions owned directly by decl.
func (e *Extractor) functions(decl, body *tree_sitter.Node, source []byte) []model.Function {
	if body == nil {
		return nil
	}
	var out []model.Function
	for _, m := range e.patterns.Get(patFunctions).Match(body, source) {
		fn := m.Node(capFunction)
		if fn == nil || !e.ownedBy(fn, decl) {
			continue
		}
		params := m.Node(capFunctionArgs)
		f := model.Function{
			Name:           m.Text(capFunctionName, source),
			Visibility:     model.VisibilityPublic,
			TypeParameters: typeParameters(fn, source),
			Parameters:     e.parameters(params, source),
			ReturnType:     returnType(fn, params, source),
		}
		if f.ReturnType == "" {
			f.ReturnType = e.spec.DefaultReturnType
		}
		mi := e.modifiers(parser.FindChildByKind(fn, "modifiers"), source)
		f.Annotations = mi.annotations
		if mi.visibility != "" {
			f.Visibility = mi.visibility
		}
		f.Signature = signature(f)
		out = append(out, f)
	}
	return out
}

// parameters reads a function_value_parameters node. Annotations sit in the
// modifier list just before a parameter and a default value in the
// "= expr" tokens just after it.
func (e *Extractor) parameters(list *tree_sitter.Node, source []byte) []model.Variable {
	if list == nil {
		return nil
	}
	var out []model.Variable
	for _, m := range e.patterns.Get(patFuncParams).Match(list, source) {
		param := m.Node(capParam)
		if param == nil || !parser.SameNode(param.Parent(), list) {
			continue
		}
		v := model.Variable{
			Name:       m.Text(capParamName, source),
			Type:       typeText(param, source),
			Visibility: model.VisibilityPublic,
		}
		v.DefaultValue = defaultValue(param, source)
		if idx, ok := childIndex(list, param); ok {
			if v.DefaultValue == "" {
				v.DefaultValue = defaultAfter(list, idx, source)
			}
			if idx > 0 {
				if prev := list.Child(idx - 1); prev != nil && strings.HasSuffix(prev.Kind(), "modifiers") {
					v.Annotations = e.modifiers(prev, source).annotations
				}
			}
		}
		out = append(out, v)
	}
	return out
}

// returnType is the type written after the ":" that follows the parameter
// list, or "" when the function declares none.
func returnType(fn, params *tree_sitter.Node, source []byte) string {
	if params == nil {
		return ""
	}
	idx, ok := childIndex(fn, params)
	if !ok {
		return ""
	}
	colon := false
	for i := idx + 1; i < fn.ChildCount(); i++ {
		c := fn.Child(i)
		if c == nil || isComment(c) {
			continue
		}
		if !c.IsNamed() {
			if parser.NodeText(c, source) == ":" {
				colon = true
				continue
			}
			return ""
		}
		if colon && typeKinds[c.Kind()] {
			return strings.TrimSpace(parser.NodeText(c, source))
		}
		return ""
	}
	return ""
}

// typeText returns the declared type of a parameter or variable node.
func typeText(node *tree_sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	if t := node.ChildByFieldName("type"); t != nil {
		return strings.TrimSpace(parser.NodeText(t, source))
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		c := node.Child(i)
		if c != nil && typeKinds[c.Kind()] {
			return strings.TrimSpace(parser.NodeText(c, source))
		}
	}
	return ""
}

// defaultValue scans the children of node for "=" and returns the text of
// the node after it.
func defaultValue(node *tree_sitter.Node, source []byte) string {
	equals := false
	for i := uint(0); i < node.ChildCount(); i++ {
		c := node.Child(i)
		if c == nil || isComment(c) {
			continue
		}
		if !c.IsNamed() && parser.NodeText(c, source) == "=" {
			equals = true
			continue
		}
		if equals {
			return strings.TrimSpace(parser.NodeText(c, source))
		}
	}
	return ""
}

// defaultAfter looks at the siblings following child idx of parent: an "="
// token immediately after it introduces the default value.
func defaultAfter(parent *tree_sitter.Node, idx uint, source []byte) string {
	equals := false
	for i := idx + 1; i < parent.ChildCount(); i++ {
		c := parent.Child(i)
		if c == nil || isComment(c) {
			continue
		}
		if !equals {
			if c.IsNamed() || parser.NodeText(c, source) != "=" {
				return ""
			}
			equals = true
			continue
		}
		if text := parser.NodeText(c, source); text != "," && text != ")" {
			return strings.TrimSpace(text)
		}
		return ""
	}
	return ""
}

func signature(f model.Function) string {
	types := make([]string, len(f.Parameters))
	for i, p := range f.Parameters {
		types[i] = p.Type
	}
	return f.Name + "(" + strings.Join(types, ", ") + ")"
}

func childIndex(parent, child *tree_sitter.Node) (uint, bool) {
	for i := uint(0); i < parent.ChildCount(); i++ {
		if c := parent.Child(i); c != nil && parser.SameNode(c, child) {
			return i, true
		}
	}
	return 0, false
}

func enclosing(node *tree_sitter.Node, kind string) *tree_sitter.Node {
	for p := node.Parent(); p != nil; p = p.Parent() {
		if p.Kind() == kind {
			return p
		}
	}
	return nil
}

func hasToken(node *tree_sitter.Node, token string, source []byte) bool {
	for i := uint(0); i < node.ChildCount(); i++ {
		if c := node.Child(i); c != nil && !c.IsNamed() && parser.NodeText(c, source) == token {
			return true
		}
	}
	return false
}

func isComment(n *tree_sitter.Node) bool {
	return strings.Contains(n.Kind(), "comment")
}
