// Package graph aggregates per-file declarations into one project-wide
// usage graph keyed by fully-qualified name.
//
// A ProjectGraph moves through Empty → Collecting → Reconciling → Finalized.
// Collect may be called from any number of goroutines in any order;
// Reconcile derives every usedBy edge from the collected uses edges, so the
// finalized graph does not depend on the order files were collected in.
package graph

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/zeebo/xxh3"
	"golang.org/x/sync/errgroup"

	"github.com/DeusData/declgraph/internal/model"
)

// DefaultShards is the number of lock stripes used when none is configured.
const DefaultShards = 32

var (
	// ErrFinalized is returned when a finalized graph is asked to change.
	ErrFinalized = errors.New("graph: finalized")
	// ErrNotCollecting is returned by Reconcile on a graph that is not
	// accepting or holding collected declarations.
	ErrNotCollecting = errors.New("graph: not collecting")
)

// State is the lifecycle stage of a ProjectGraph.
type State int

const (
	Empty State = iota
	Collecting
	Reconciling
	Finalized
)

func (s State) String() string {
	switch s {
	case Empty:
		return "empty"
	case Collecting:
		return "collecting"
	case Reconciling:
		return "reconciling"
	case Finalized:
		return "finalized"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// entry holds every declaration collected for one FQN. decls[0] is the
// primary: the declaration with the smallest (Path, StartLine).
type entry struct {
	decls []model.Declaration
}

type shard struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// ProjectGraph maps FQN to Declaration.
type ProjectGraph struct {
	mu     sync.RWMutex // guards state; Collect holds it for reading
	state  State
	shards []*shard
}

// Option configures a ProjectGraph.
type Option func(*ProjectGraph)

// WithShards sets the number of lock stripes. Values below one are ignored.
func WithShards(n int) Option {
	return func(g *ProjectGraph) {
		if n > 0 {
			g.shards = newShards(n)
		}
	}
}

// New creates an empty graph.
func New(opts ...Option) *ProjectGraph {
	g := &ProjectGraph{shards: newShards(DefaultShards)}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func newShards(n int) []*shard {
	out := make([]*shard, n)
	for i := range out {
		out[i] = &shard{entries: make(map[string]*entry)}
	}
	return out
}

func (g *ProjectGraph) shardFor(key string) *shard {
	return g.shards[xxh3.HashString(key)%uint64(len(g.shards))]
}

// State returns the current lifecycle stage.
func (g *ProjectGraph) State() State {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

// Collect inserts the declarations of one file. A declaration whose FQN is
// already present is kept alongside the existing one and reported by
// Conflicts. Safe for concurrent use.
func (g *ProjectGraph) Collect(path string, decls []model.Declaration) error {
	g.mu.RLock()
	st := g.state
	g.mu.RUnlock()
	if st == Empty {
		g.mu.Lock()
		if g.state == Empty {
			g.state = Collecting
		}
		st = g.state
		g.mu.Unlock()
	}
	if st != Collecting {
		return ErrFinalized
	}

	// Holding the read lock keeps Reconcile from starting mid-insert.
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.state != Collecting {
		return ErrFinalized
	}
	for i := range decls {
		d := decls[i].Clone()
		if d.FQN == "" {
			continue
		}
		if d.Path == "" {
			d.Path = path
		}
		d.Uses = withoutSelf(model.SortedSet(d.Uses), d.FQN)
		d.UsedBy = []string{}

		s := g.shardFor(d.FQN)
		s.mu.Lock()
		e, ok := s.entries[d.FQN]
		if !ok {
			e = &entry{}
			s.entries[d.FQN] = e
		}
		e.insert(d)
		s.mu.Unlock()
	}
	return nil
}

func withoutSelf(uses []string, self string) []string {
	i := sort.SearchStrings(uses, self)
	if i < len(uses) && uses[i] == self {
		return append(uses[:i], uses[i+1:]...)
	}
	return uses
}

func (e *entry) insert(d model.Declaration) {
	i := sort.Search(len(e.decls), func(i int) bool {
		return less(d, e.decls[i])
	})
	e.decls = append(e.decls, model.Declaration{})
	copy(e.decls[i+1:], e.decls[i:])
	e.decls[i] = d
}

// less orders duplicates of one FQN. The full key makes the order of
// duplicates independent of collection order.
func less(a, b model.Declaration) bool {
	if a.Path != b.Path {
		return a.Path < b.Path
	}
	if a.StartLine != b.StartLine {
		return a.StartLine < b.StartLine
	}
	return a.EndLine < b.EndLine
}

// Reconcile computes usedBy from uses and finalizes the graph. For every
// declaration A and every target T in A.Uses that is present in the graph,
// A.FQN is added to the usedBy set of each declaration keyed by T. Writes
// are partitioned by the target's shard, one goroutine per shard.
//
// A cancelled Reconcile leaves the graph in Reconciling; it must be rebuilt.
func (g *ProjectGraph) Reconcile(ctx context.Context) error {
	g.mu.Lock()
	switch g.state {
	case Empty, Collecting:
		g.state = Reconciling
	case Finalized:
		g.mu.Unlock()
		return ErrFinalized
	default:
		g.mu.Unlock()
		return ErrNotCollecting
	}
	g.mu.Unlock()

	// Edges grouped by the shard that owns their target. Collection is
	// finished, so reads need no locks.
	type edge struct{ from, to string }
	buckets := make([][]edge, len(g.shards))
	for _, s := range g.shards {
		for _, e := range s.entries {
			for _, d := range e.decls {
				for _, target := range d.Uses {
					idx := xxh3.HashString(target) % uint64(len(g.shards))
					buckets[idx] = append(buckets[idx], edge{from: d.FQN, to: target})
				}
			}
		}
	}

	eg, ctx := errgroup.WithContext(ctx)
	for i := range g.shards {
		s, edges := g.shards[i], buckets[i]
		eg.Go(func() error {
			for n, ed := range edges {
				if n%1024 == 0 {
					if err := ctx.Err(); err != nil {
						return err
					}
				}
				e, ok := s.entries[ed.to]
				if !ok {
					continue // unresolved reference
				}
				for j := range e.decls {
					e.decls[j].UsedBy = model.InsertSorted(e.decls[j].UsedBy, ed.from)
				}
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return fmt.Errorf("graph: reconcile: %w", err)
	}

	g.mu.Lock()
	g.state = Finalized
	g.mu.Unlock()
	return nil
}
