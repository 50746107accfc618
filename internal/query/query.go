// Package query implements read-only traversals over a property graph:
// ego neighborhoods, unweighted shortest paths, directed ancestry and degree
// centrality ranking.
package query

import (
	"sort"

	"github.com/systemshift/supplygraph/internal/errs"
	"github.com/systemshift/supplygraph/internal/propgraph"
)

// Path is the result of ShortestPath. Found is false when the endpoints are
// disconnected; Nodes is then empty.
type Path struct {
	Nodes  []string `json:"nodes"`
	Length int      `json:"length"`
	Found  bool     `json:"found"`
}

// EgoNeighborhood returns the subgraph induced by every node within radius
// hops of id, ignoring edge direction. All original edges between included
// nodes are kept with their direction.
func EgoNeighborhood(g *propgraph.Graph, id string, radius int) (*propgraph.Graph, error) {
	if radius < 1 {
		return nil, errs.InvalidArgument("radius must be at least 1, got %d", radius)
	}
	if !g.HasNode(id) {
		return nil, errs.NotFound("node", id)
	}

	dist := map[string]int{id: 0}
	frontier := []string{id}
	for hop := 1; hop <= radius && len(frontier) > 0; hop++ {
		var next []string
		for _, n := range frontier {
			for _, nb := range g.Neighbors(n) {
				if _, seen := dist[nb]; seen {
					continue
				}
				dist[nb] = hop
				next = append(next, nb)
			}
		}
		frontier = next
	}

	ids := make([]string, 0, len(dist))
	for n := range dist {
		ids = append(ids, n)
	}
	sort.Strings(ids)
	return g.Subgraph(ids), nil
}

// ShortestPath finds an unweighted shortest path between src and dst over the
// undirected projection of g. Neighbors are explored in id order, so the
// returned path is deterministic among equal-length alternatives.
func ShortestPath(g *propgraph.Graph, src, dst string) (Path, error) {
	if !g.HasNode(src) {
		return Path{}, errs.NotFound("node", src)
	}
	if !g.HasNode(dst) {
		return Path{}, errs.NotFound("node", dst)
	}
	if src == dst {
		return Path{Nodes: []string{src}, Length: 0, Found: true}, nil
	}

	parent := map[string]string{src: ""}
	queue := []string{src}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, nb := range g.Neighbors(n) {
			if _, seen := parent[nb]; seen {
				continue
			}
			parent[nb] = n
			if nb == dst {
				nodes := unwind(parent, src, dst)
				return Path{Nodes: nodes, Length: len(nodes) - 1, Found: true}, nil
			}
			queue = append(queue, nb)
		}
	}
	return Path{Nodes: []string{}, Found: false}, nil
}

func unwind(parent map[string]string, src, dst string) []string {
	var rev []string
	for n := dst; ; n = parent[n] {
		rev = append(rev, n)
		if n == src {
			break
		}
	}
	out := make([]string, len(rev))
	for i, n := range rev {
		out[len(rev)-1-i] = n
	}
	return out
}

// Ancestors returns every node with a directed path to id, sorted.
func Ancestors(g *propgraph.Graph, id string) ([]string, error) {
	return reach(g, id, g.Predecessors)
}

// Descendants returns every node reachable from id, sorted.
func Descendants(g *propgraph.Graph, id string) ([]string, error) {
	return reach(g, id, g.Successors)
}

func reach(g *propgraph.Graph, id string, step func(string) []string) ([]string, error) {
	if !g.Directed() {
		return nil, errs.ErrNotDirected
	}
	if !g.HasNode(id) {
		return nil, errs.NotFound("node", id)
	}

	seen := map[string]struct{}{id: {}}
	stack := []string{id}
	out := []string{}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, m := range step(n) {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			out = append(out, m)
			stack = append(stack, m)
		}
	}
	sort.Strings(out)
	return out, nil
}
