package store

import "fmt"

// Direction selects which side of a uses edge a traversal follows.
type Direction string

const (
	// Outbound follows uses: what a declaration depends on.
	Outbound Direction = "outbound"
	// Inbound follows usedBy: what depends on a declaration.
	Inbound Direction = "inbound"
)

// TraverseResult holds BFS traversal results.
type TraverseResult struct {
	Root    string     `json:"root"`
	Visited []*NodeHop `json:"visited"`
	Edges   []EdgeInfo `json:"edges"`
}

// NodeHop is a declaration FQN with its BFS hop distance.
type NodeHop struct {
	FQN  string    `json:"fqn"`
	Hop  int       `json:"hop"`
	Risk RiskLevel `json:"risk"`
}

// EdgeInfo is one traversed uses edge.
type EdgeInfo struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type bfsQueue struct {
	fqn string
	hop int
}

func (s *Store) neighbours(project, fqn string, direction Direction) ([]string, error) {
	if direction == Outbound {
		return s.DependenciesOf(project, fqn)
	}
	return s.UsersOf(project, fqn)
}

// BFS performs breadth-first traversal over uses edges starting at root.
// maxDepth caps the BFS depth, maxResults caps total visited declarations.
// Hops are visited in FQN order within each level.
func (s *Store) BFS(project, root string, direction Direction, maxDepth, maxResults int) (*TraverseResult, error) {
	if direction != Outbound && direction != Inbound {
		return nil, fmt.Errorf("bfs: unknown direction %q", direction)
	}
	if maxDepth <= 0 {
		maxDepth = 3
	}
	if maxResults <= 0 {
		maxResults = 200
	}

	result := &TraverseResult{Root: root, Visited: []*NodeHop{}, Edges: []EdgeInfo{}}
	visited := map[string]int{root: 0}
	queue := []bfsQueue{{root, 0}}

	for len(queue) > 0 && len(result.Visited) < maxResults {
		item := queue[0]
		queue = queue[1:]

		if item.hop >= maxDepth {
			continue
		}

		next, err := s.neighbours(project, item.fqn, direction)
		if err != nil {
			return nil, err
		}

		for _, n := range next {
			if direction == Outbound {
				result.Edges = append(result.Edges, EdgeInfo{From: item.fqn, To: n})
			} else {
				result.Edges = append(result.Edges, EdgeInfo{From: n, To: item.fqn})
			}
			if _, seen := visited[n]; seen {
				continue
			}
			hop := item.hop + 1
			visited[n] = hop
			result.Visited = append(result.Visited, &NodeHop{FQN: n, Hop: hop, Risk: HopToRisk(hop)})
			queue = append(queue, bfsQueue{n, hop})
			if len(result.Visited) >= maxResults {
				break
			}
		}
	}
	return result, nil
}
