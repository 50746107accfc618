package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systemshift/supplygraph/internal/errs"
	"github.com/systemshift/supplygraph/internal/fixture"
	"github.com/systemshift/supplygraph/internal/normalize"
	"github.com/systemshift/supplygraph/internal/propgraph"
	"github.com/systemshift/supplygraph/internal/snapshot"
)

func build(t *testing.T, snap *snapshot.Snapshot) *propgraph.Graph {
	t.Helper()
	g, err := normalize.Build(snap)
	require.NoError(t, err)
	return g
}

func TestAncestry(t *testing.T) {
	g := build(t, fixture.Chain())

	tests := []struct {
		name string
		fn   func(*propgraph.Graph, string) ([]string, error)
		id   string
		want []string
	}{
		{"ancestors of C", Ancestors, "C", []string{"A", "B"}},
		{"descendants of A", Descendants, "A", []string{"B", "C"}},
		{"ancestors of A", Ancestors, "A", []string{}},
		{"descendants of C", Descendants, "C", []string{}},
		{"isolated", Ancestors, "D", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.fn(g, tt.id)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAncestryErrors(t *testing.T) {
	g := build(t, fixture.Chain())
	_, err := Ancestors(g, "Z")
	assert.ErrorIs(t, err, errs.ErrNotFound)

	undirected := fixture.Chain()
	undirected.Directed = false
	ug := build(t, undirected)
	_, err = Ancestors(ug, "C")
	assert.ErrorIs(t, err, errs.ErrNotDirected)
	_, err = Descendants(ug, "A")
	assert.ErrorIs(t, err, errs.ErrNotDirected)
}

func TestAncestryCycle(t *testing.T) {
	snap := fixture.Chain()
	snap.LinkValues["R"] = append(snap.LinkValues["R"], []any{"R", "C", "A"})
	g := build(t, snap)

	got, err := Ancestors(g, "A")
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "C"}, got)
}

func TestEgoNeighborhood(t *testing.T) {
	g := build(t, fixture.Scenario(500, 1000))

	ego, err := EgoNeighborhood(g, "F_1", 1)
	require.NoError(t, err)
	ids := nodeIDs(ego)
	assert.Equal(t, []string{"F_1", "PO_1", "P_1"}, ids)
	assert.Equal(t, 2, ego.EdgeCount())

	ego, err = EgoNeighborhood(g, "F_1", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"F_1", "PO_1", "P_1", "W_1", "W_2"}, nodeIDs(ego))
	assert.Equal(t, 4, ego.EdgeCount())
	for _, e := range ego.Edges() {
		if e.Type == "WAREHOUSEToPARTS" {
			assert.Equal(t, "W_2", e.Source)
		}
	}
}

func TestEgoIsolated(t *testing.T) {
	g := build(t, fixture.Chain())
	ego, err := EgoNeighborhood(g, "D", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"D"}, nodeIDs(ego))
	assert.Zero(t, ego.EdgeCount())
}

func TestEgoErrors(t *testing.T) {
	g := build(t, fixture.Chain())
	_, err := EgoNeighborhood(g, "A", 0)
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
	_, err = EgoNeighborhood(g, "Z", 1)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestShortestPath(t *testing.T) {
	g := build(t, fixture.Scenario(500, 1000))

	tests := []struct {
		name     string
		src, dst string
		want     Path
	}{
		{"self", "S_1", "S_1", Path{Nodes: []string{"S_1"}, Length: 0, Found: true}},
		{"against edge direction", "P_1", "W_1", Path{Nodes: []string{"P_1", "F_1", "PO_1", "W_1"}, Length: 3, Found: true}},
		{"supplier to product", "S_1", "PO_1", Path{Nodes: []string{"S_1", "W_2", "P_1", "F_1", "PO_1"}, Length: 4, Found: true}},
		{"disconnected", "S_2", "PO_1", Path{Nodes: []string{}, Found: false}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ShortestPath(g, tt.src, tt.dst)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ShortestPath(g, "S_1", "nope")
	assert.ErrorIs(t, err, errs.ErrNotFound)
	_, err = ShortestPath(g, "nope", "S_1")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestDegreeCentrality(t *testing.T) {
	snap := fixture.Scenario(500, 1000)
	r, err := DegreeCentrality(context.Background(), snap)
	require.NoError(t, err)

	g := build(t, snap)
	total := 0
	for typ, bucket := range r.Buckets {
		for i, s := range bucket {
			total++
			n, ok := g.Node(s.ID)
			require.True(t, ok)
			assert.Equal(t, typ, n.Type)
			assert.Equal(t, len(g.InEdges(s.ID))+len(g.OutEdges(s.ID)), s.Centrality, s.ID)
			if i > 0 {
				assert.GreaterOrEqual(t, bucket[i-1].Centrality, s.Centrality)
			}
		}
	}
	assert.Equal(t, g.NodeCount(), total)

	// re-scan for the maximum
	best := -1
	var want []string
	for _, n := range g.Nodes() {
		d := g.Degree(n.ID)
		if d > best {
			best, want = d, []string{n.ID}
		} else if d == best {
			want = append(want, n.ID)
		}
	}
	assert.Equal(t, best, r.Max)
	assert.Equal(t, want, r.MaxNodes)
	assert.Equal(t, 2, r.Max)
	assert.Equal(t, []string{"F_1", "PO_1", "P_1", "W_2"}, r.MaxNodes)

	assert.Equal(t, []Score{{ID: "S_1", Centrality: 1}, {ID: "S_2", Centrality: 0}}, r.Buckets["SUPPLIERS"])

	fromGraph, err := GraphDegreeCentrality(context.Background(), g)
	require.NoError(t, err)
	assert.Equal(t, r, fromGraph)
}

func TestDegreeCentralityTies(t *testing.T) {
	snap := fixture.Chain()
	snap.LinkValues["R"] = nil
	r, err := DegreeCentrality(context.Background(), snap)
	require.NoError(t, err)
	assert.Equal(t, 0, r.Max)
	assert.Equal(t, []string{"A", "B", "C", "D"}, r.MaxNodes)
}

func TestDegreeCentralityEmpty(t *testing.T) {
	r, err := DegreeCentrality(context.Background(), &snapshot.Snapshot{})
	require.NoError(t, err)
	assert.Empty(t, r.Buckets)
	assert.Empty(t, r.MaxNodes)
	assert.Zero(t, r.Max)
}

func TestDegreeCentralityMismatch(t *testing.T) {
	snap := fixture.Chain()
	snap.LinkValues["R"] = append(snap.LinkValues["R"], []any{"R", "A", "Q"})
	_, err := DegreeCentrality(context.Background(), snap)
	assert.ErrorIs(t, err, errs.ErrSchemaMismatch)

	snap = fixture.Chain()
	snap.LinkValues["UNKNOWN"] = [][]any{{"A", "B"}}
	_, err = DegreeCentrality(context.Background(), snap)
	assert.ErrorIs(t, err, errs.ErrSchemaMismatch)
}

func TestDegreeCentralityCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := DegreeCentrality(ctx, fixture.Chain())
	assert.ErrorIs(t, err, context.Canceled)

	_, err = GraphDegreeCentrality(ctx, build(t, fixture.Chain()))
	assert.ErrorIs(t, err, context.Canceled)
}

func nodeIDs(g *propgraph.Graph) []string {
	var ids []string
	for _, n := range g.Nodes() {
		ids = append(ids, n.ID)
	}
	return ids
}
