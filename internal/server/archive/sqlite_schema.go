package archive

// SQLite schema DDL constants

const schemaSnapshots = `
CREATE TABLE IF NOT EXISTS snapshots (
    ts INTEGER PRIMARY KEY,
    body TEXT NOT NULL,
    node_count INTEGER NOT NULL DEFAULT 0,
    edge_count INTEGER NOT NULL DEFAULT 0,
    run_id TEXT NOT NULL,
    synced_at DATETIME NOT NULL
)`

const schemaSyncRuns = `
CREATE TABLE IF NOT EXISTS sync_runs (
    run_id TEXT PRIMARY KEY,
    started_at DATETIME NOT NULL,
    finished_at DATETIME,
    copied INTEGER NOT NULL DEFAULT 0,
    skipped INTEGER NOT NULL DEFAULT 0,
    error TEXT
)`

const indexSnapshotsRun = `CREATE INDEX IF NOT EXISTS idx_snapshots_run_id ON snapshots(run_id)`

// Pragmas
const pragmaWAL = `PRAGMA journal_mode=WAL`
const pragmaBusyTimeout = `PRAGMA busy_timeout=5000`
const pragmaSynchronous = `PRAGMA synchronous=NORMAL`

// allSchemaStatements returns all DDL statements in order
func allSchemaStatements() []string {
	return []string{
		schemaSnapshots,
		schemaSyncRuns,
		indexSnapshotsRun,
	}
}

// allPragmas returns all pragma statements
func allPragmas() []string {
	return []string{
		pragmaWAL,
		pragmaBusyTimeout,
		pragmaSynchronous,
	}
}
