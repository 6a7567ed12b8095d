package pattern

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/DeusData/declgraph/internal/lang"
	"github.com/DeusData/declgraph/internal/parser"
)

const (
	capDecl  Capture = "decl"
	capName  Capture = "name"
	capAnno  Capture = "anno"
	capOther Capture = "other"
)

var testSchema = NewSchema(capDecl, capName, capAnno)

func kotlin(t *testing.T) *tree_sitter.Language {
	t.Helper()
	l, err := parser.GetLanguage(lang.Kotlin)
	require.NoError(t, err)
	return l
}

func parse(t *testing.T, src string) (*tree_sitter.Tree, []byte) {
	t.Helper()
	source := []byte(src)
	tree, err := parser.Parse(lang.Kotlin, source)
	require.NoError(t, err)
	t.Cleanup(tree.Close)
	return tree, source
}

func TestMatchDocumentOrder(t *testing.T) {
	p, err := Compile(kotlin(t), "classes", `(class_declaration (identifier) @name) @decl`, testSchema)
	require.NoError(t, err)
	defer p.Close()

	tree, src := parse(t, `package app

class Alpha
class Beta
class Gamma
`)
	matches := p.Match(tree.RootNode(), src)
	require.Len(t, matches, 3)

	var names []string
	for _, m := range matches {
		assert.Equal(t, "classes", m.Pattern())
		assert.True(t, m.Has(capDecl))
		names = append(names, m.Text(capName, src))
	}
	assert.Equal(t, []string{"Alpha", "Beta", "Gamma"}, names)
}

func TestAlternation(t *testing.T) {
	src := `[
  (class_declaration (identifier) @name)
  (object_declaration (identifier) @name)
] @decl`
	p, err := Compile(kotlin(t), "types", src, testSchema)
	require.NoError(t, err)
	defer p.Close()

	tree, source := parse(t, `object First
class Second
object Third
`)
	matches := p.Match(tree.RootNode(), source)
	require.Len(t, matches, 3)
	assert.Equal(t, "First", matches[0].Text(capName, source))
	assert.Equal(t, "Second", matches[1].Text(capName, source))
	assert.Equal(t, "Third", matches[2].Text(capName, source))
	assert.Equal(t, "object_declaration", matches[0].Node(capDecl).Kind())
}

func TestAnchorFoldsRepeatedCaptures(t *testing.T) {
	src := `(class_declaration
  (modifiers (annotation)* @anno)?
  (identifier) @name) @decl`
	p, err := Compile(kotlin(t), "annotated", src, testSchema, WithAnchor(capDecl))
	require.NoError(t, err)
	defer p.Close()

	tree, source := parse(t, `@First
@Second
class Annotated

class Plain
`)
	matches := p.Match(tree.RootNode(), source)
	require.Len(t, matches, 2)

	assert.Equal(t, "Annotated", matches[0].Text(capName, source))
	assert.Equal(t, []string{"@First", "@Second"}, matches[0].Texts(capAnno, source))
	assert.Len(t, matches[0].Nodes(capName), 1)

	assert.Equal(t, "Plain", matches[1].Text(capName, source))
	assert.False(t, matches[1].Has(capAnno))
	assert.Nil(t, matches[1].Node(capAnno))
	assert.Empty(t, matches[1].Texts(capAnno, source))
}

func TestMatchScopedToSubtree(t *testing.T) {
	p, err := Compile(kotlin(t), "names", `(class_declaration (identifier) @name)`, testSchema)
	require.NoError(t, err)
	defer p.Close()

	tree, source := parse(t, `class Outer {
    class Inner
}
class Other
`)
	outer := parser.FindFirstByKind(tree.RootNode(), "class_body")
	require.NotNil(t, outer)

	matches := p.Match(outer, source)
	require.Len(t, matches, 1)
	assert.Equal(t, "Inner", matches[0].Text(capName, source))
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		opts    []Option
		wantPos bool
	}{
		{"undeclared capture", `(class_declaration (identifier) @other)`, nil, false},
		{"syntax error", `(class_declaration (identifier) @name`, nil, true},
		{"unknown node kind", `(no_such_node_kind) @decl`, nil, true},
		{"empty source", "   ", nil, false},
		{"anchor not declared", `(class_declaration (identifier) @name)`, []Option{WithAnchor(capDecl)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Compile(kotlin(t), tt.name, tt.source, testSchema, tt.opts...)
			require.Error(t, err)
			assert.Nil(t, p)

			var ce *CompileError
			require.True(t, errors.As(err, &ce), "expected *CompileError, got %T", err)
			assert.Equal(t, tt.name, ce.Pattern)
			if tt.wantPos {
				assert.Positive(t, ce.Row)
			}
			assert.Contains(t, ce.Error(), tt.name)
		})
	}
}

func TestMustCompilePanics(t *testing.T) {
	assert.Panics(t, func() {
		MustCompile(kotlin(t), "bad", `(class_declaration @`, testSchema)
	})
	assert.NotPanics(t, func() {
		p := MustCompile(kotlin(t), "good", `(class_declaration) @decl`, testSchema)
		p.Close()
	})
}

func TestMalformedTreeYieldsFewerMatches(t *testing.T) {
	p, err := Compile(kotlin(t), "classes", `(class_declaration (identifier) @name) @decl`, testSchema)
	require.NoError(t, err)
	defer p.Close()

	tree, source := parse(t, `class Good
class {{{ fun (((
`)
	var matches []Match
	require.NotPanics(t, func() { matches = p.Match(tree.RootNode(), source) })
	var names []string
	for _, m := range matches {
		names = append(names, m.Text(capName, source))
	}
	assert.Contains(t, names, "Good")
}

func TestNilInputs(t *testing.T) {
	var p *Pattern
	assert.Nil(t, p.Match(nil, nil))

	q, err := Compile(kotlin(t), "classes", `(class_declaration) @decl`, testSchema)
	require.NoError(t, err)
	assert.Nil(t, q.Match(nil, nil))
	q.Close()
	q.Close()
}

func TestSet(t *testing.T) {
	l := kotlin(t)
	classes := MustCompile(l, "classes", `(class_declaration (identifier) @name)`, testSchema)
	objects := MustCompile(l, "objects", `(object_declaration (identifier) @name)`, testSchema)

	set, err := NewSet(classes, objects)
	require.NoError(t, err)
	defer set.Close()

	assert.Equal(t, []string{"classes", "objects"}, set.Names())
	assert.Same(t, classes, set.Get("classes"))
	assert.Nil(t, set.Get("missing"))

	tree, source := parse(t, "class A\nobject B\nclass C\n")
	all := set.MatchAll(tree.RootNode(), source)
	require.Len(t, all["classes"], 2)
	require.Len(t, all["objects"], 1)
	assert.Equal(t, "B", all["objects"][0].Text(capName, source))

	_, err = NewSet(classes, classes)
	var ce *CompileError
	assert.True(t, errors.As(err, &ce))
}

func TestCapturesOrder(t *testing.T) {
	p := MustCompile(kotlin(t), "order", `(class_declaration (identifier) @name) @decl`, testSchema)
	defer p.Close()
	assert.Equal(t, []Capture{capName, capDecl}, p.Captures())
	assert.Equal(t, "order", p.Name())
	assert.False(t, testSchema.Contains(capOther))
}
