package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systemshift/supplygraph/internal/fixture"
	"github.com/systemshift/supplygraph/internal/snapshot"
)

// setupEnv points the configuration at a data directory holding snaps and
// an archive path inside the test's temp dir.
func setupEnv(t *testing.T, snaps ...*snapshot.Snapshot) string {
	t.Helper()
	dir := t.TempDir()
	data := filepath.Join(dir, "data")
	require.NoError(t, os.Mkdir(data, 0755))
	for i, s := range snaps {
		f, err := os.Create(filepath.Join(data, strconv.Itoa(i)+".json"))
		require.NoError(t, err)
		require.NoError(t, snapshot.Encode(f, s))
		require.NoError(t, f.Close())
	}
	archivePath := filepath.Join(dir, "archive.db")

	t.Setenv("SCGRAPH_SOURCE", "dir")
	t.Setenv("SCGRAPH_DATA_DIR", data)
	t.Setenv("SCGRAPH_ARCHIVE_PATH", archivePath)
	t.Setenv("LOG_LEVEL", "error")
	return archivePath
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func TestResolveCommand(t *testing.T) {
	setupEnv(t, fixture.Scenario(500, 1000))

	out, err := run(t, "resolve", "--t", "0", "--product", "PO_1", "--units", "600")
	require.NoError(t, err)

	var resp map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "TIER_2_MANUFACTURABLE", resp["tier"])
}

func TestCentralityCommand(t *testing.T) {
	setupEnv(t, fixture.Chain())

	out, err := run(t, "centrality")
	require.NoError(t, err)

	var resp struct {
		Max      int      `json:"max"`
		MaxNodes []string `json:"max_nodes"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, 2, resp.Max)
	assert.Equal(t, []string{"B"}, resp.MaxNodes)
}

func TestSyncCommand(t *testing.T) {
	archivePath := setupEnv(t, fixture.Chain(), fixture.Scenario(1, 1))

	out, err := run(t, "sync")
	require.NoError(t, err)
	var res map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 2.0, res["copied"])

	// the archive now serves as the source
	t.Setenv("SCGRAPH_SOURCE", "sqlite")
	t.Setenv("SCGRAPH_ARCHIVE_PATH", archivePath)
	out, err = run(t, "centrality", "--t", "0")
	require.NoError(t, err)
	assert.Contains(t, out, `"max": 2`)

	_, err = run(t, "sync")
	assert.ErrorContains(t, err, "already the archive")
}

func TestResolveCommandErrors(t *testing.T) {
	setupEnv(t, fixture.Scenario(500, 1000))

	_, err := run(t, "resolve", "--product", "PO_1", "--units", "0")
	assert.Error(t, err)

	_, err = run(t, "resolve", "--units", "1")
	assert.ErrorContains(t, err, `required flag(s) "product" not set`)
}

func TestMust(t *testing.T) {
	assert.NotPanics(t, func() { must(nil) })
	assert.PanicsWithError(t, "boom", func() { must(errors.New("boom")) })
}
