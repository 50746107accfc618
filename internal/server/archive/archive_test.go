package archive

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systemshift/supplygraph/internal/errs"
	"github.com/systemshift/supplygraph/internal/fixture"
	"github.com/systemshift/supplygraph/internal/normalize"
	"github.com/systemshift/supplygraph/internal/snapshot"
	"github.com/systemshift/supplygraph/internal/store"
)

func openTemp(t *testing.T) *SQLite {
	t.Helper()
	a, err := NewSQLite(context.Background(), filepath.Join(t.TempDir(), "archive.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestSyncAndFetch(t *testing.T) {
	ctx := context.Background()
	a := openTemp(t)
	assert.Equal(t, 0, a.Len())

	src := snapshot.NewMemory(fixture.Scenario(500, 1000), fixture.Scenario(100, 50), fixture.Chain())
	res, err := a.Sync(ctx, src, SyncOptions{})
	require.NoError(t, err)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, 3, res.Copied)
	assert.Equal(t, 3, a.Len())

	got, err := a.Fetch(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, fixture.Chain().NodeValues, got.NodeValues)

	again, err := a.Sync(ctx, src, SyncOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, again.Copied)
	assert.Equal(t, 3, again.Skipped)

	forced, err := a.Sync(ctx, src, SyncOptions{Force: true})
	require.NoError(t, err)
	assert.Equal(t, 3, forced.Copied)
}

func TestArchiveServesStore(t *testing.T) {
	ctx := context.Background()
	a := openTemp(t)
	_, err := a.Sync(ctx, snapshot.NewMemory(fixture.Scenario(500, 1000)), SyncOptions{})
	require.NoError(t, err)

	st, err := store.New(a, store.Options{})
	require.NoError(t, err)
	g, err := st.Graph(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 7, g.NodeCount())
}

func TestFetchErrors(t *testing.T) {
	ctx := context.Background()
	a := openTemp(t)
	require.NoError(t, a.Put(ctx, 2, fixture.Chain(), "manual"))
	assert.Equal(t, 3, a.Len())

	_, err := a.Fetch(ctx, 0)
	assert.ErrorIs(t, err, errs.ErrSourceUnavailable)
	assert.ErrorIs(t, err, errs.ErrNotFound)

	_, err = a.Fetch(ctx, 3)
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)

	assert.ErrorIs(t, a.Put(ctx, -1, fixture.Chain(), "manual"), errs.ErrInvalidArgument)
}

type brokenSource struct{ snapshot.Source }

func (b brokenSource) Fetch(ctx context.Context, t int) (*snapshot.Snapshot, error) {
	if t == 1 {
		return nil, errs.Unavailable(t, errors.New("timeout"))
	}
	return b.Source.Fetch(ctx, t)
}

func TestSyncStopsOnFailure(t *testing.T) {
	ctx := context.Background()
	a := openTemp(t)

	src := brokenSource{snapshot.NewMemory(fixture.Chain(), fixture.Chain(), fixture.Chain())}
	res, err := a.Sync(ctx, src, SyncOptions{})
	assert.ErrorIs(t, err, errs.ErrSourceUnavailable)
	assert.Equal(t, 1, res.Copied)
	assert.Equal(t, 1, a.Len())

	var recorded string
	require.NoError(t, a.db.QueryRowContext(ctx, `SELECT error FROM sync_runs WHERE run_id = ?`, res.RunID).Scan(&recorded))
	assert.Contains(t, recorded, "timeout")
}

func TestMemoryDatabase(t *testing.T) {
	ctx := context.Background()
	a, err := NewSQLite(ctx, ":memory:", nil)
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.Put(ctx, 0, fixture.Chain(), "manual"))
	ok, err := a.Has(ctx, 0)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestExportParams(t *testing.T) {
	g, err := normalize.Build(fixture.Chain())
	require.NoError(t, err)

	nodes, err := nodeParams(g)
	require.NoError(t, err)
	require.Len(t, nodes, 4)
	first := nodes[0].(map[string]any)
	assert.Equal(t, "A", first["id"])
	assert.Equal(t, "N", first["type"])

	var props map[string]any
	require.NoError(t, json.Unmarshal([]byte(first["properties"].(string)), &props))
	assert.Equal(t, "A", props["id"])

	edges, err := edgeParams(g)
	require.NoError(t, err)
	require.Len(t, edges, 2)
	assert.Equal(t, "B", edges[0].(map[string]any)["target"])
}

func TestChunk(t *testing.T) {
	items := make([]any, 7)
	assert.Len(t, chunk(items, 3), 3)
	assert.Len(t, chunk(items, 7), 1)
	assert.Empty(t, chunk(nil, 3))
}
