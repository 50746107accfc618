package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systemshift/supplygraph/internal/errs"
	"github.com/systemshift/supplygraph/internal/fixture"
	"github.com/systemshift/supplygraph/internal/snapshot"
)

func TestBuildScenario(t *testing.T) {
	snap := fixture.Scenario(500, 1000)
	g, err := Build(snap)
	require.NoError(t, err)

	assert.True(t, g.Directed())
	assert.Equal(t, 7, g.NodeCount())
	assert.Equal(t, 5, g.EdgeCount())

	w, ok := g.Node("W_1")
	require.True(t, ok)
	assert.Equal(t, "WAREHOUSE", w.Type)
	assert.Equal(t, "WAREHOUSE", w.Attrs["node_type"])
	assert.Equal(t, 2000.0, w.Attrs["max_capacity"])
	assert.Equal(t, "W_1", w.Attrs["id"])

	out := g.OutEdges("F_1")
	require.Len(t, out, 2)
	var req map[string]any
	for _, e := range out {
		if e.Type == "FACILITYToPARTS" {
			req = e.Attrs
		}
	}
	require.NotNil(t, req)
	assert.Equal(t, 2.0, req["quantity"])
	assert.Equal(t, 3.0, req["production_cost"])
	assert.Equal(t, 0.5, req["lead_time"])
	assert.Equal(t, "FACILITYToPARTS", req["relationship_type"])
	assert.NotContains(t, req, "source")
	assert.NotContains(t, req, "target")
}

func TestBuildEndpointsExist(t *testing.T) {
	g, err := Build(fixture.Scenario(500, 1000))
	require.NoError(t, err)
	for _, e := range g.Edges() {
		assert.True(t, g.HasNode(e.Source), e.Source)
		assert.True(t, g.HasNode(e.Target), e.Target)
	}
}

func TestTypeIndexAgreesWithGraph(t *testing.T) {
	snap := fixture.Scenario(500, 1000)
	g, err := Build(snap)
	require.NoError(t, err)
	idx, err := BuildTypeIndex(snap)
	require.NoError(t, err)

	count := 0
	for typ, byID := range idx {
		schema := snap.NodeTypes[typ]
		for id, arr := range byID {
			count++
			n, ok := g.Node(id)
			require.True(t, ok, id)
			assert.Equal(t, typ, n.Type)
			for i, name := range schema {
				assert.Equal(t, arr[i], n.Attrs[name], "%s.%s", id, name)
			}
		}
	}
	assert.Equal(t, g.NodeCount(), count)
}

func TestParallelEdgesKept(t *testing.T) {
	snap := fixture.New(true).
		Warehouse("W_1", 10, 5).
		Product("PO_1", 1, 1).
		Stock("W_1", "PO_1", 3, 1).
		Stock("W_1", "PO_1", 4, 1).
		Snapshot()

	g, err := Build(snap)
	require.NoError(t, err)
	assert.Equal(t, 2, g.EdgeCount())
}

func TestSchemaWithoutIDSlots(t *testing.T) {
	snap := &snapshot.Snapshot{
		Directed:          false,
		NodeTypes:         map[string][]string{"N": {"name"}},
		NodeValues:        map[string][][]any{"N": {{"alpha", "N_1"}, {"beta", "N_2"}}},
		RelationshipTypes: map[string][]string{"R": {"weight"}},
		LinkValues:        map[string][][]any{"R": {{0.5, "N_1", "N_2"}}},
	}

	g, err := Build(snap)
	require.NoError(t, err)
	assert.False(t, g.Directed())

	n, _ := g.Node("N_1")
	assert.Equal(t, map[string]any{"name": "alpha", "node_type": "N"}, n.Attrs)

	e := g.Edges()[0]
	assert.Equal(t, map[string]any{"weight": 0.5, "relationship_type": "R"}, e.Attrs)
	assert.Equal(t, "N_1", e.Source)
	assert.Equal(t, "N_2", e.Target)
}

func TestBuildMismatch(t *testing.T) {
	base := func() *snapshot.Snapshot {
		return &snapshot.Snapshot{
			Directed:          true,
			NodeTypes:         map[string][]string{"N": {"node_type", "name", "id"}},
			NodeValues:        map[string][][]any{"N": {{"N", "a", "A"}, {"N", "b", "B"}}},
			RelationshipTypes: map[string][]string{"R": {"relationship_type", "w", "source", "target"}},
			LinkValues:        map[string][][]any{"R": {{"R", 1.0, "A", "B"}}},
		}
	}

	tests := []struct {
		name   string
		mutate func(s *snapshot.Snapshot)
		kind   string
	}{
		{
			name:   "node array shorter than schema",
			mutate: func(s *snapshot.Snapshot) { s.NodeValues["N"][0] = []any{"N", "A"} },
			kind:   "node",
		},
		{
			name:   "node array too long",
			mutate: func(s *snapshot.Snapshot) { s.NodeValues["N"][0] = []any{"N", "a", "x", "y", "A"} },
			kind:   "node",
		},
		{
			name:   "node id not a string",
			mutate: func(s *snapshot.Snapshot) { s.NodeValues["N"][0] = []any{"N", "a", 7.0} },
			kind:   "node",
		},
		{
			name:   "node type without schema",
			mutate: func(s *snapshot.Snapshot) { s.NodeValues["M"] = [][]any{{"M", "C"}} },
			kind:   "node",
		},
		{
			name:   "duplicate node id",
			mutate: func(s *snapshot.Snapshot) { s.NodeValues["N"][1] = []any{"N", "b", "A"} },
			kind:   "node",
		},
		{
			name:   "unknown relationship type",
			mutate: func(s *snapshot.Snapshot) { s.LinkValues["Q"] = [][]any{{"A", "B"}} },
			kind:   "relationship",
		},
		{
			name:   "edge array shorter than schema",
			mutate: func(s *snapshot.Snapshot) { s.LinkValues["R"][0] = []any{"A", "B"} },
			kind:   "relationship",
		},
		{
			name:   "edge array off by one",
			mutate: func(s *snapshot.Snapshot) { s.LinkValues["R"][0] = []any{"R", 1.0, 2.0, "A", "B"} },
			kind:   "relationship",
		},
		{
			name:   "dangling endpoint",
			mutate: func(s *snapshot.Snapshot) { s.LinkValues["R"][0] = []any{"R", 1.0, "A", "Z"} },
			kind:   "relationship",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := base()
			tt.mutate(s)

			g, err := Build(s)
			assert.Nil(t, g)
			require.ErrorIs(t, err, errs.ErrSchemaMismatch)

			var sme *errs.SchemaMismatchError
			require.ErrorAs(t, err, &sme)
			assert.Equal(t, tt.kind, sme.Kind)
		})
	}
}

func TestBuildTypeIndexMismatch(t *testing.T) {
	s := &snapshot.Snapshot{
		NodeTypes:  map[string][]string{"N": {"node_type", "id"}, "M": {"node_type", "id"}},
		NodeValues: map[string][][]any{"N": {{"N", "A"}}, "M": {{"M", "A"}}},
	}
	_, err := BuildTypeIndex(s)
	assert.ErrorIs(t, err, errs.ErrSchemaMismatch)

	s.NodeValues["M"] = [][]any{{"M", "B"}}
	idx, err := BuildTypeIndex(s)
	require.NoError(t, err)
	assert.Equal(t, []any{"M", "B"}, idx["M"]["B"])
}
