// Package propgraph is an in-memory attributed multigraph keyed by string
// node ids. Graphs are built once by the normalizer and read concurrently
// afterwards; nothing mutates a Graph after it has been published.
package propgraph

import (
	"fmt"
	"sort"
)

// Node is a typed vertex.
type Node struct {
	ID    string         // Unique within the graph
	Type  string         // Node type tag (SUPPLIERS, WAREHOUSE, ...)
	Attrs map[string]any // Attribute name -> value, always includes node_type
}

// Edge is a typed relationship. Parallel edges between the same pair are kept.
type Edge struct {
	Source string         // Source node ID
	Target string         // Target node ID
	Type   string         // Relationship type
	Attrs  map[string]any // Always includes relationship_type
}

// Other returns the endpoint of e that is not id.
func (e *Edge) Other(id string) string {
	if e.Source == id {
		return e.Target
	}
	return e.Source
}

// Graph holds nodes and edges with adjacency kept as edge indexes.
type Graph struct {
	directed bool
	nodes    map[string]*Node
	edges    []*Edge
	out      map[string][]int
	in       map[string][]int
}

// New returns an empty graph.
func New(directed bool) *Graph {
	return &Graph{
		directed: directed,
		nodes:    make(map[string]*Node),
		out:      make(map[string][]int),
		in:       make(map[string][]int),
	}
}

func (g *Graph) Directed() bool { return g.directed }
func (g *Graph) NodeCount() int { return len(g.nodes) }
func (g *Graph) EdgeCount() int { return len(g.edges) }

// AddNode inserts n. Adding an id twice is an error.
func (g *Graph) AddNode(n *Node) error {
	if _, ok := g.nodes[n.ID]; ok {
		return fmt.Errorf("duplicate node id %q", n.ID)
	}
	g.nodes[n.ID] = n
	return nil
}

// AddEdge inserts e. Both endpoints must already exist.
func (g *Graph) AddEdge(e *Edge) error {
	if _, ok := g.nodes[e.Source]; !ok {
		return fmt.Errorf("edge source %q is not a node", e.Source)
	}
	if _, ok := g.nodes[e.Target]; !ok {
		return fmt.Errorf("edge target %q is not a node", e.Target)
	}
	idx := len(g.edges)
	g.edges = append(g.edges, e)
	g.out[e.Source] = append(g.out[e.Source], idx)
	g.in[e.Target] = append(g.in[e.Target], idx)
	return nil
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

func (g *Graph) HasNode(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// Nodes returns every node ordered by id.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// NodesOfType returns the nodes tagged typ, ordered by id.
func (g *Graph) NodesOfType(typ string) []*Node {
	var out []*Node
	for _, n := range g.nodes {
		if n.Type == typ {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Edges returns all edges in insertion order. The slice must not be modified.
func (g *Graph) Edges() []*Edge { return g.edges }

// OutEdges returns edges whose source is id.
func (g *Graph) OutEdges(id string) []*Edge { return g.collect(g.out[id]) }

// InEdges returns edges whose target is id.
func (g *Graph) InEdges(id string) []*Edge { return g.collect(g.in[id]) }

// Incident returns every edge touching id regardless of direction. A self
// loop is reported once.
func (g *Graph) Incident(id string) []*Edge {
	out := g.collect(g.out[id])
	for _, idx := range g.in[id] {
		e := g.edges[idx]
		if e.Source == id {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Degree is the number of edge endpoints at id (in + out). A self loop
// counts twice.
func (g *Graph) Degree(id string) int {
	return len(g.out[id]) + len(g.in[id])
}

// Neighbors returns the ids adjacent to id ignoring direction, sorted and
// without duplicates.
func (g *Graph) Neighbors(id string) []string {
	seen := make(map[string]struct{})
	for _, idx := range g.out[id] {
		seen[g.edges[idx].Target] = struct{}{}
	}
	for _, idx := range g.in[id] {
		seen[g.edges[idx].Source] = struct{}{}
	}
	delete(seen, id)
	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Successors returns the targets of id's outgoing edges, sorted and unique.
func (g *Graph) Successors(id string) []string {
	return uniqueSorted(g.out[id], g.edges, func(e *Edge) string { return e.Target })
}

// Predecessors returns the sources of id's incoming edges, sorted and unique.
func (g *Graph) Predecessors(id string) []string {
	return uniqueSorted(g.in[id], g.edges, func(e *Edge) string { return e.Source })
}

// Subgraph returns the graph induced by ids: those nodes and every edge
// whose endpoints are both included. Unknown ids are ignored.
func (g *Graph) Subgraph(ids []string) *Graph {
	sub := New(g.directed)
	for _, id := range ids {
		if n, ok := g.nodes[id]; ok && !sub.HasNode(id) {
			sub.nodes[id] = n
		}
	}
	for _, e := range g.edges {
		if sub.HasNode(e.Source) && sub.HasNode(e.Target) {
			idx := len(sub.edges)
			sub.edges = append(sub.edges, e)
			sub.out[e.Source] = append(sub.out[e.Source], idx)
			sub.in[e.Target] = append(sub.in[e.Target], idx)
		}
	}
	return sub
}

func (g *Graph) collect(idxs []int) []*Edge {
	out := make([]*Edge, 0, len(idxs))
	for _, idx := range idxs {
		out = append(out, g.edges[idx])
	}
	return out
}

func uniqueSorted(idxs []int, edges []*Edge, pick func(*Edge) string) []string {
	seen := make(map[string]struct{}, len(idxs))
	out := make([]string, 0, len(idxs))
	for _, idx := range idxs {
		id := pick(edges[idx])
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
