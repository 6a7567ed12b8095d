package parser

import (
	"fmt"
	"sync"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	tree_sitter_kotlin "github.com/tree-sitter-grammars/tree-sitter-kotlin/bindings/go"

	"github.com/DeusData/declgraph/internal/lang"
)

var (
	languagesOnce sync.Once
	languages     map[lang.Language]*tree_sitter.Language
	parserPools   map[lang.Language]*sync.Pool
)

func initLanguages() {
	languagesOnce.Do(func() {
		languages = map[lang.Language]*tree_sitter.Language{
			lang.Kotlin: tree_sitter.NewLanguage(tree_sitter_kotlin.Language()),
		}

		parserPools = make(map[lang.Language]*sync.Pool, len(languages))
		for l, tsLang := range languages {
			parserPools[l] = &sync.Pool{
				New: func() any {
					p := tree_sitter.NewParser()
					if err := p.SetLanguage(tsLang); err != nil {
						panic(fmt.Sprintf("set language: %v", err))
					}
					return p
				},
			}
		}
	})
}

// GetLanguage returns the tree-sitter Language for a lang.Language.
func GetLanguage(l lang.Language) (*tree_sitter.Language, error) {
	initLanguages()
	tsLang, ok := languages[l]
	if !ok {
		return nil, fmt.Errorf("unsupported language: %s", l)
	}
	return tsLang, nil
}

// Parse parses source code into a tree-sitter AST Tree.
// The caller must call tree.Close() when done.
// Parsers are pooled per language via sync.Pool to avoid per-file allocation.
func Parse(l lang.Language, source []byte) (*tree_sitter.Tree, error) {
	initLanguages()

	pool, ok := parserPools[l]
	if !ok {
		return nil, fmt.Errorf("unsupported language: %s", l)
	}

	p, _ := pool.Get().(*tree_sitter.Parser)
	if p == nil {
		return nil, fmt.Errorf("failed to get parser for language %s", l)
	}
	tree := p.Parse(source, nil)
	pool.Put(p)

	if tree == nil {
		return nil, fmt.Errorf("parse failed for language %s", l)
	}

	return tree, nil
}

// SyntaxError locates the first ERROR or missing token of a tree.
type SyntaxError struct {
	Line   int // 1-based
	Column int // 1-based, in bytes
	Kind   string
	Count  int // total error and missing nodes in the tree
}

func (e *SyntaxError) Error() string {
	if e.Count > 1 {
		return fmt.Sprintf("syntax error at %d:%d (%d error nodes)", e.Line, e.Column, e.Count)
	}
	return fmt.Sprintf("syntax error at %d:%d", e.Line, e.Column)
}

// insertedTerminators are the statement and member separators the Kotlin
// grammar inserts as zero-width MISSING nodes when a body closes on the
// same line as its last member. They are not errors.
var insertedTerminators = map[string]bool{
	"_semi":                true,
	"_semis":               true,
	"_class_member_semi":   true,
	"_class_member_semis":  true,
	"_automatic_semicolon": true,
	";":                    true,
}

// IsInsertedTerminator reports whether n is a zero-width separator the
// parser inserted on its own.
func IsInsertedTerminator(n *tree_sitter.Node) bool {
	return n.IsMissing() && n.StartByte() == n.EndByte() && insertedTerminators[n.Kind()]
}

// CheckSyntax returns a *SyntaxError when the tree contains ERROR nodes or
// missing tokens, nil otherwise. Inserted terminators are ignored, and so
// are missing nodes of hidden rules, which the node API never surfaces.
func CheckSyntax(tree *tree_sitter.Tree) *SyntaxError {
	if tree == nil {
		return nil
	}
	root := tree.RootNode()
	if root == nil || !root.HasError() {
		return nil
	}
	var first *SyntaxError
	count := 0
	Walk(root, func(n *tree_sitter.Node) bool {
		if IsInsertedTerminator(n) {
			return false
		}
		if n.IsError() || n.IsMissing() {
			count++
			if first == nil {
				pos := n.StartPosition()
				first = &SyntaxError{
					Line:   int(pos.Row) + 1,
					Column: int(pos.Column) + 1,
					Kind:   n.Kind(),
				}
			}
			return false
		}
		return n.HasError()
	})
	if first == nil {
		return nil
	}
	first.Count = count
	return first
}

// WalkFunc is called for each node during AST traversal.
// Return false to skip children.
type WalkFunc func(node *tree_sitter.Node) bool

// Walk traverses the AST in depth-first order.
func Walk(node *tree_sitter.Node, fn WalkFunc) {
	if node == nil {
		return
	}
	if !fn(node) {
		return
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child != nil {
			Walk(child, fn)
		}
	}
}

// NodeText returns the text content of a node.
func NodeText(node *tree_sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	start, end := node.StartByte(), node.EndByte()
	if end > uint(len(source)) || start > end {
		return ""
	}
	return string(source[start:end])
}

// FindChildByKind returns the first direct child of the given kind.
func FindChildByKind(node *tree_sitter.Node, kind string) *tree_sitter.Node {
	if node == nil {
		return nil
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child != nil && child.Kind() == kind {
			return child
		}
	}
	return nil
}

// FindFirstByKind returns the first descendant (pre-order) of the given kind.
func FindFirstByKind(node *tree_sitter.Node, kind string) *tree_sitter.Node {
	var found *tree_sitter.Node
	Walk(node, func(n *tree_sitter.Node) bool {
		if found != nil {
			return false
		}
		if n.Kind() == kind {
			found = n
			return false
		}
		return true
	})
	return found
}

// SameNode reports whether a and b denote the same node of one tree.
func SameNode(a, b *tree_sitter.Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Id() == b.Id()
}
