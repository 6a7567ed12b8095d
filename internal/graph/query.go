package graph

import (
	"sort"

	"github.com/DeusData/declgraph/internal/model"
)

// Read methods only see a finalized graph; before Reconcile completes they
// report nothing.

func (g *ProjectGraph) finalized() bool {
	return g.State() == Finalized
}

func (g *ProjectGraph) lookup(fqn string) *entry {
	return g.shardFor(fqn).entries[fqn]
}

// Get returns a copy of the primary declaration for fqn.
func (g *ProjectGraph) Get(fqn string) (model.Declaration, bool) {
	if !g.finalized() {
		return model.Declaration{}, false
	}
	e := g.lookup(fqn)
	if e == nil || len(e.decls) == 0 {
		return model.Declaration{}, false
	}
	return e.decls[0].Clone(), true
}

// Duplicates returns copies of every declaration collected for fqn, primary
// first. It has more than one element only for conflicting names.
func (g *ProjectGraph) Duplicates(fqn string) []model.Declaration {
	if !g.finalized() {
		return nil
	}
	e := g.lookup(fqn)
	if e == nil {
		return nil
	}
	out := make([]model.Declaration, len(e.decls))
	for i, d := range e.decls {
		out[i] = d.Clone()
	}
	return out
}

// Keys returns every FQN in the graph, sorted.
func (g *ProjectGraph) Keys() []string {
	if !g.finalized() {
		return nil
	}
	var keys []string
	for _, s := range g.shards {
		for k := range s.entries {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Declarations returns copies of the primary declarations sorted by FQN.
func (g *ProjectGraph) Declarations() []model.Declaration {
	keys := g.Keys()
	out := make([]model.Declaration, 0, len(keys))
	for _, k := range keys {
		out = append(out, g.lookup(k).decls[0].Clone())
	}
	return out
}

// Conflicts lists every FQN declared more than once, sorted by FQN. The
// paths of each conflict are sorted.
func (g *ProjectGraph) Conflicts() []model.Conflict {
	var out []model.Conflict
	for _, k := range g.Keys() {
		e := g.lookup(k)
		if len(e.decls) < 2 {
			continue
		}
		paths := make([]string, len(e.decls))
		for i, d := range e.decls {
			paths[i] = d.Path
		}
		sort.Strings(paths)
		out = append(out, model.Conflict{FQN: k, Paths: paths})
	}
	return out
}

// Len returns the number of distinct FQNs collected so far.
func (g *ProjectGraph) Len() int {
	n := 0
	for _, s := range g.shards {
		s.mu.Lock()
		n += len(s.entries)
		s.mu.Unlock()
	}
	return n
}

// UsersOf returns the FQNs of declarations that use fqn.
func (g *ProjectGraph) UsersOf(fqn string) []string {
	d, ok := g.Get(fqn)
	if !ok {
		return nil
	}
	return d.UsedBy
}

// DependenciesOf returns the uses of fqn split into targets present in the
// graph and external ones.
func (g *ProjectGraph) DependenciesOf(fqn string) (internal, external []string) {
	d, ok := g.Get(fqn)
	if !ok {
		return nil, nil
	}
	for _, u := range d.Uses {
		if g.lookup(u) != nil {
			internal = append(internal, u)
		} else {
			external = append(external, u)
		}
	}
	return internal, external
}

// Snapshot is a serializable view of a finalized graph.
type Snapshot struct {
	Declarations []model.Declaration `json:"declarations"`
	Conflicts    []model.Conflict    `json:"conflicts"`
}

// Snapshot returns the primary declarations and the conflicts. Duplicates
// beyond the primary are listed only by path in Conflicts.
func (g *ProjectGraph) Snapshot() Snapshot {
	s := Snapshot{Declarations: g.Declarations(), Conflicts: g.Conflicts()}
	if s.Conflicts == nil {
		s.Conflicts = []model.Conflict{}
	}
	return s
}
