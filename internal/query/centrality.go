package query

import (
	"context"
	"sort"

	"github.com/systemshift/supplygraph/internal/errs"
	"github.com/systemshift/supplygraph/internal/normalize"
	"github.com/systemshift/supplygraph/internal/propgraph"
	"github.com/systemshift/supplygraph/internal/snapshot"
)

// checkEvery is how many edges are scanned between cancellation checks.
const checkEvery = 1024

// Score is one node's degree centrality (in-degree + out-degree).
type Score struct {
	ID         string `json:"id"`
	Centrality int    `json:"centrality"`
}

// Ranking groups scores by node type, each bucket sorted by centrality
// descending then id. MaxNodes lists every node attaining Max, sorted.
type Ranking struct {
	Buckets  map[string][]Score `json:"buckets"`
	Max      int                `json:"max"`
	MaxNodes []string           `json:"max_nodes"`
}

// DegreeCentrality ranks nodes straight from the raw arrays of snap without
// building a graph. Arrays are validated exactly as the normalizer does.
func DegreeCentrality(ctx context.Context, snap *snapshot.Snapshot) (*Ranking, error) {
	typeOf := make(map[string]string)
	degree := make(map[string]int)

	for _, typ := range snap.SortedNodeTypes() {
		schema, ok := snap.NodeTypes[typ]
		if !ok {
			return nil, &errs.SchemaMismatchError{Kind: "node", Name: typ, Row: -1, Reason: "no schema declared"}
		}
		for row, arr := range snap.NodeValues[typ] {
			id, err := normalize.NodeID(typ, schema, row, arr)
			if err != nil {
				return nil, err
			}
			if _, dup := typeOf[id]; dup {
				return nil, &errs.SchemaMismatchError{Kind: "node", Name: typ, Row: row, Reason: "duplicate node id " + id}
			}
			typeOf[id] = typ
			degree[id] = 0
		}
	}

	scanned := 0
	for _, rel := range snap.SortedRelationshipTypes() {
		schema, ok := snap.RelationshipTypes[rel]
		if !ok {
			return nil, &errs.SchemaMismatchError{Kind: "relationship", Name: rel, Row: -1, Reason: "unknown relationship type"}
		}
		for row, arr := range snap.LinkValues[rel] {
			if scanned++; scanned%checkEvery == 0 {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
			}
			src, dst, err := normalize.EdgeEndpoints(rel, schema, row, arr)
			if err != nil {
				return nil, err
			}
			for _, end := range []string{src, dst} {
				if _, ok := typeOf[end]; !ok {
					return nil, &errs.SchemaMismatchError{Kind: "relationship", Name: rel, Row: row,
						Reason: "endpoint " + end + " is not a node"}
				}
				degree[end]++
			}
		}
	}
	return rank(ctx, typeOf, degree)
}

// GraphDegreeCentrality ranks the nodes of an already built graph.
func GraphDegreeCentrality(ctx context.Context, g *propgraph.Graph) (*Ranking, error) {
	typeOf := make(map[string]string, g.NodeCount())
	degree := make(map[string]int, g.NodeCount())
	for i, n := range g.Nodes() {
		if i%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		typeOf[n.ID] = n.Type
		degree[n.ID] = g.Degree(n.ID)
	}
	return rank(ctx, typeOf, degree)
}

func rank(ctx context.Context, typeOf map[string]string, degree map[string]int) (*Ranking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r := &Ranking{Buckets: make(map[string][]Score), MaxNodes: []string{}}
	first := true
	for id, d := range degree {
		typ := typeOf[id]
		r.Buckets[typ] = append(r.Buckets[typ], Score{ID: id, Centrality: d})
		switch {
		case first || d > r.Max:
			r.Max = d
			r.MaxNodes = append(r.MaxNodes[:0], id)
			first = false
		case d == r.Max:
			r.MaxNodes = append(r.MaxNodes, id)
		}
	}
	for _, bucket := range r.Buckets {
		sort.Slice(bucket, func(i, j int) bool {
			if bucket[i].Centrality != bucket[j].Centrality {
				return bucket[i].Centrality > bucket[j].Centrality
			}
			return bucket[i].ID < bucket[j].ID
		})
	}
	sort.Strings(r.MaxNodes)
	return r, nil
}
