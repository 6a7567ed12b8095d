package pattern

import (
	"sort"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// Match is one application of a pattern: every capture slot maps to the
// nodes bound to it, in document order. A slot may hold zero, one or many
// nodes.
type Match struct {
	pattern string
	index   uint
	start   uint
	end     uint
	caps    map[Capture][]tree_sitter.Node
}

// Pattern returns the name of the pattern that produced the match.
func (m Match) Pattern() string { return m.pattern }

// Has reports whether capture c bound at least one node.
func (m Match) Has(c Capture) bool { return len(m.caps[c]) > 0 }

// Node returns the first node bound to c, or nil.
func (m Match) Node(c Capture) *tree_sitter.Node {
	nodes := m.caps[c]
	if len(nodes) == 0 {
		return nil
	}
	n := nodes[0]
	return &n
}

// Nodes returns every node bound to c.
func (m Match) Nodes(c Capture) []tree_sitter.Node {
	nodes := m.caps[c]
	out := make([]tree_sitter.Node, len(nodes))
	copy(out, nodes)
	return out
}

// Text returns the source text of the first node bound to c, or "".
func (m Match) Text(c Capture, source []byte) string {
	nodes := m.caps[c]
	if len(nodes) == 0 {
		return ""
	}
	return nodeText(&nodes[0], source)
}

// Texts returns the source text of every node bound to c.
func (m Match) Texts(c Capture, source []byte) []string {
	nodes := m.caps[c]
	if len(nodes) == 0 {
		return nil
	}
	out := make([]string, 0, len(nodes))
	for i := range nodes {
		out = append(out, nodeText(&nodes[i], source))
	}
	return out
}

// Span returns the byte range covered by the match's captures.
func (m Match) Span() (start, end uint) { return m.start, m.end }

// merge unions other's captures into m, skipping nodes already bound.
func (m *Match) merge(other Match) {
	for c, nodes := range other.caps {
		existing := m.caps[c]
	next:
		for _, n := range nodes {
			for _, e := range existing {
				if e.Id() == n.Id() {
					continue next
				}
			}
			existing = append(existing, n)
		}
		m.caps[c] = existing
	}
	if other.start < m.start || (other.start == m.start && other.end > m.end) {
		m.start, m.end = other.start, other.end
	}
}

func (m *Match) sortCaptures() {
	for _, nodes := range m.caps {
		if len(nodes) < 2 {
			continue
		}
		sort.SliceStable(nodes, func(i, j int) bool {
			return nodes[i].StartByte() < nodes[j].StartByte()
		})
	}
}

func nodeText(n *tree_sitter.Node, source []byte) string {
	start, end := n.StartByte(), n.EndByte()
	if end > uint(len(source)) || start > end {
		return ""
	}
	return string(source[start:end])
}
