// Package pattern compiles declarative structural patterns over tree-sitter
// syntax trees and evaluates them into ordered, typed matches.
//
// Pattern sources use the tree-sitter query language: a parenthesized node
// kind followed by child patterns, "?" / "*" / "+" quantifiers, "[A B]"
// alternation, "." sibling anchors and "@name" captures. Every capture a
// pattern declares must belong to the Schema it is compiled against, so a
// misspelled capture is a compile error rather than a silent empty lookup.
package pattern

import (
	"fmt"
	"sort"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// Capture is the name of a capture slot, written "@name" in pattern source.
type Capture string

// Schema is the closed set of captures a pattern may declare.
type Schema map[Capture]struct{}

// NewSchema builds a Schema from the given captures.
func NewSchema(captures ...Capture) Schema {
	s := make(Schema, len(captures))
	for _, c := range captures {
		s[c] = struct{}{}
	}
	return s
}

// Contains reports whether c is declared in the schema.
func (s Schema) Contains(c Capture) bool {
	_, ok := s[c]
	return ok
}

// CompileError reports a pattern that cannot be used: a syntax error, an
// unknown node kind or field, or a capture missing from the schema.
type CompileError struct {
	Pattern string
	Row     int // 1-based; 0 when not tied to a source position
	Column  int // 1-based; 0 when not tied to a source position
	Message string
}

func (e *CompileError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("pattern %q: %d:%d: %s", e.Pattern, e.Row, e.Column, e.Message)
	}
	return fmt.Sprintf("pattern %q: %s", e.Pattern, e.Message)
}

// Option configures a Pattern at compile time.
type Option func(*Pattern)

// WithAnchor folds matches that bind the same node to capture c into a
// single match. Quantified and optional children can make the underlying
// engine report one logical match several times with different subsets of
// captures; folding unions those captures in document order.
func WithAnchor(c Capture) Option {
	return func(p *Pattern) {
		p.anchor = c
		p.hasAnchor = true
	}
}

// Pattern is a compiled, immutable structural query. It is safe for
// concurrent use; every Match call uses its own cursor.
type Pattern struct {
	name      string
	query     *tree_sitter.Query
	captures  []Capture // indexed by tree-sitter capture index
	anchor    Capture
	hasAnchor bool
}

// Compile compiles source against language. Captures are validated against
// schema. The returned error is always a *CompileError.
func Compile(language *tree_sitter.Language, name, source string, schema Schema, opts ...Option) (*Pattern, error) {
	if language == nil {
		return nil, &CompileError{Pattern: name, Message: "nil language"}
	}
	if strings.TrimSpace(source) == "" {
		return nil, &CompileError{Pattern: name, Message: "empty pattern source"}
	}

	q, qerr := tree_sitter.NewQuery(language, source)
	if qerr != nil {
		return nil, &CompileError{
			Pattern: name,
			Row:     int(qerr.Row) + 1,
			Column:  int(qerr.Column) + 1,
			Message: qerr.Message,
		}
	}

	p := &Pattern{name: name, query: q}
	for _, opt := range opts {
		opt(p)
	}

	names := q.CaptureNames()
	p.captures = make([]Capture, len(names))
	declared := make(map[Capture]bool, len(names))
	for i, n := range names {
		c := Capture(n)
		if !schema.Contains(c) {
			q.Close()
			return nil, &CompileError{Pattern: name, Message: fmt.Sprintf("undeclared capture @%s", n)}
		}
		p.captures[i] = c
		declared[c] = true
	}
	if p.hasAnchor && !declared[p.anchor] {
		q.Close()
		return nil, &CompileError{Pattern: name, Message: fmt.Sprintf("anchor capture @%s not declared by pattern", p.anchor)}
	}
	return p, nil
}

// MustCompile is like Compile but panics on error. Pattern sets are static
// program data, so a compile failure is a programming error.
func MustCompile(language *tree_sitter.Language, name, source string, schema Schema, opts ...Option) *Pattern {
	p, err := Compile(language, name, source, schema, opts...)
	if err != nil {
		panic(err)
	}
	return p
}

// Name returns the pattern's name.
func (p *Pattern) Name() string { return p.name }

// Captures returns the captures the pattern declares, in declaration order.
func (p *Pattern) Captures() []Capture {
	out := make([]Capture, len(p.captures))
	copy(out, p.captures)
	return out
}

// Close releases the compiled query.
func (p *Pattern) Close() {
	if p != nil && p.query != nil {
		p.query.Close()
		p.query = nil
	}
}

// Match evaluates the pattern against node and its descendants. Matches are
// returned in document order: earlier start first, enclosing before
// enclosed, then by pattern index. Error regions of a partial tree simply
// produce fewer captures.
func (p *Pattern) Match(node *tree_sitter.Node, source []byte) []Match {
	if p == nil || p.query == nil || node == nil {
		return nil
	}

	qc := tree_sitter.NewQueryCursor()
	defer qc.Close()

	var out []Match
	folded := make(map[uintptr]int)

	qm := qc.Matches(p.query, node, source)
	for {
		m := qm.Next()
		if m == nil {
			break
		}
		match := Match{
			pattern: p.name,
			index:   m.PatternIndex,
			caps:    make(map[Capture][]tree_sitter.Node, len(m.Captures)),
		}
		first := true
		for _, c := range m.Captures {
			if int(c.Index) >= len(p.captures) {
				continue
			}
			n := c.Node
			name := p.captures[c.Index]
			match.caps[name] = append(match.caps[name], n)
			if first || n.StartByte() < match.start || (n.StartByte() == match.start && n.EndByte() > match.end) {
				match.start, match.end = n.StartByte(), n.EndByte()
			}
			first = false
		}
		if first {
			continue // a match without captures carries no information
		}

		if p.hasAnchor {
			anchors := match.caps[p.anchor]
			if len(anchors) > 0 {
				id := anchors[0].Id()
				if at, ok := folded[id]; ok {
					out[at].merge(match)
					continue
				}
				folded[id] = len(out)
			}
		}
		out = append(out, match)
	}

	for i := range out {
		out[i].sortCaptures()
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.start != b.start {
			return a.start < b.start
		}
		if a.end != b.end {
			return a.end > b.end
		}
		return a.index < b.index
	})
	return out
}

// Set is a named collection of compiled patterns.
type Set struct {
	byName map[string]*Pattern
	order  []string
}

// NewSet groups patterns by name. Duplicate names are a compile error.
func NewSet(patterns ...*Pattern) (*Set, error) {
	s := &Set{byName: make(map[string]*Pattern, len(patterns))}
	for _, p := range patterns {
		if p == nil {
			return nil, &CompileError{Message: "nil pattern in set"}
		}
		if _, dup := s.byName[p.name]; dup {
			return nil, &CompileError{Pattern: p.name, Message: "duplicate pattern name in set"}
		}
		s.byName[p.name] = p
		s.order = append(s.order, p.name)
	}
	return s, nil
}

// Get returns the pattern with the given name, or nil.
func (s *Set) Get(name string) *Pattern {
	return s.byName[name]
}

// Names returns the pattern names in insertion order.
func (s *Set) Names() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// MatchAll evaluates every pattern of the set against node.
func (s *Set) MatchAll(node *tree_sitter.Node, source []byte) map[string][]Match {
	out := make(map[string][]Match, len(s.order))
	for _, name := range s.order {
		out[name] = s.byName[name].Match(node, source)
	}
	return out
}

// Close releases every pattern of the set.
func (s *Set) Close() {
	for _, p := range s.byName {
		p.Close()
	}
}
