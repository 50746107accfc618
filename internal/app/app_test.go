package app

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/systemshift/supplygraph/internal/config"
	"github.com/systemshift/supplygraph/internal/fixture"
	"github.com/systemshift/supplygraph/internal/fulfillment"
	"github.com/systemshift/supplygraph/internal/snapshot"
)

func writeDataDir(t *testing.T, snaps ...*snapshot.Snapshot) string {
	t.Helper()
	dir := t.TempDir()
	for i, s := range snaps {
		f, err := os.Create(filepath.Join(dir, strconv.Itoa(i)+".json"))
		require.NoError(t, err)
		require.NoError(t, snapshot.Encode(f, s))
		require.NoError(t, f.Close())
	}
	return dir
}

func TestOpenFromDir(t *testing.T) {
	ctx := context.Background()
	caps := filepath.Join(t.TempDir(), "caps.yaml")
	require.NoError(t, os.WriteFile(caps, []byte("suppliers:\n  S_7: [metal]\n"), 0644))

	cfg, err := config.FromEnv(func(key string) string {
		return map[string]string{
			"SCGRAPH_DATA_DIR":     writeDataDir(t, fixture.Scenario(10, 5)),
			"SCGRAPH_CAPABILITIES": caps,
		}[key]
	})
	require.NoError(t, err)

	a, err := Open(ctx, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, 1, a.Store.Len())
	out, err := a.Resolver.Resolve(ctx, 0, "PO_1", 100)
	require.NoError(t, err)
	assert.Equal(t, fulfillment.Tier3Unfulfillable, out.Tier)
	require.Len(t, out.Shortages, 1)
	require.Len(t, out.Shortages[0].Suppliers, 1)
	assert.Equal(t, "S_7", out.Shortages[0].Suppliers[0].ID)
}

func TestOpenSourceSQLite(t *testing.T) {
	ctx := context.Background()
	src, closeFn, err := OpenSource(ctx, config.SourceConfig{
		Kind:        config.SourceSQLite,
		ArchivePath: filepath.Join(t.TempDir(), "a.db"),
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NotNil(t, closeFn)
	defer closeFn()
	assert.Equal(t, 0, src.Len())
}

func TestOpenSourceRejectsKind(t *testing.T) {
	_, _, err := OpenSource(context.Background(), config.SourceConfig{Kind: "ftp"}, zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestOpenCapabilitiesDefault(t *testing.T) {
	table, err := OpenCapabilities(context.Background(), config.CapabilityConfig{})
	require.NoError(t, err)
	assert.Nil(t, table)
}
