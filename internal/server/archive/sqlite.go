// Package archive persists snapshots and graphs outside the process: a SQLite
// snapshot archive that doubles as a snapshot source, and a Neo4j mirror of
// built graphs.
package archive

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/systemshift/supplygraph/internal/errs"
	"github.com/systemshift/supplygraph/internal/snapshot"
)

// SQLite stores one JSON snapshot per timestamp. It implements
// snapshot.Source over whatever has been synced into it.
type SQLite struct {
	db     *sql.DB
	length atomic.Int64
	logger *zap.Logger
}

// NewSQLite opens (creating if needed) the archive at dbPath.
func NewSQLite(ctx context.Context, dbPath string, logger *zap.Logger) (*SQLite, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	if dbPath == ":memory:" || strings.Contains(dbPath, "mode=memory") {
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	// Verify connectivity
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to sqlite: %w", err)
	}

	for _, pragma := range allPragmas() {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma: %w", err)
		}
	}
	for _, stmt := range allSchemaStatements() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating schema: %w", err)
		}
	}

	if logger == nil {
		logger = zap.NewNop()
	}
	a := &SQLite{db: db, logger: logger.Named("archive")}
	if err := a.refreshLen(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return a, nil
}

// Close closes the SQLite connection
func (a *SQLite) Close() error {
	return a.db.Close()
}

// Len is one past the highest archived timestamp. Gaps are reported as
// unavailable by Fetch.
func (a *SQLite) Len() int { return int(a.length.Load()) }

func (a *SQLite) Fetch(ctx context.Context, t int) (*snapshot.Snapshot, error) {
	if err := snapshot.CheckIndex(t, a.Len()); err != nil {
		return nil, err
	}
	var body string
	err := a.db.QueryRowContext(ctx, `SELECT body FROM snapshots WHERE ts = ?`, t).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.Unavailable(t, errs.NotFound("snapshot", strconv.Itoa(t)))
	}
	if err != nil {
		return nil, errs.Unavailable(t, fmt.Errorf("querying snapshot: %w", err))
	}
	snap, err := snapshot.Decode(strings.NewReader(body))
	if err != nil {
		return nil, errs.Unavailable(t, err)
	}
	return snap, nil
}

// Put stores snap under timestamp t, replacing any previous body.
func (a *SQLite) Put(ctx context.Context, t int, snap *snapshot.Snapshot, runID string) error {
	if t < 0 {
		return errs.InvalidArgument("timestamp must not be negative, got %d", t)
	}
	var buf bytes.Buffer
	if err := snapshot.Encode(&buf, snap); err != nil {
		return err
	}
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO snapshots (ts, body, node_count, edge_count, run_id, synced_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(ts) DO UPDATE SET
			body = excluded.body,
			node_count = excluded.node_count,
			edge_count = excluded.edge_count,
			run_id = excluded.run_id,
			synced_at = excluded.synced_at
	`, t, buf.String(), countRows(snap.NodeValues), countRows(snap.LinkValues), runID, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("storing snapshot %d: %w", t, err)
	}
	return a.refreshLen(ctx)
}

// Has reports whether timestamp t is archived.
func (a *SQLite) Has(ctx context.Context, t int) (bool, error) {
	var n int
	if err := a.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM snapshots WHERE ts = ?`, t).Scan(&n); err != nil {
		return false, fmt.Errorf("checking snapshot %d: %w", t, err)
	}
	return n > 0, nil
}

// SyncOptions control Sync.
type SyncOptions struct {
	// Force re-fetches timestamps that are already archived.
	Force bool
}

// SyncResult summarises one Sync run.
type SyncResult struct {
	RunID   string `json:"run_id"`
	Copied  int    `json:"copied"`
	Skipped int    `json:"skipped"`
}

// Sync copies every timestamp of src into the archive. The run is recorded
// in sync_runs whether it succeeds or not.
func (a *SQLite) Sync(ctx context.Context, src snapshot.Source, opts SyncOptions) (SyncResult, error) {
	res := SyncResult{RunID: uuid.New().String()}
	started := time.Now().UTC()

	if _, err := a.db.ExecContext(ctx,
		`INSERT INTO sync_runs (run_id, started_at) VALUES (?, ?)`,
		res.RunID, started.Format(time.RFC3339)); err != nil {
		return res, fmt.Errorf("recording sync run: %w", err)
	}

	runErr := a.copyAll(ctx, src, opts, &res)

	var errText any
	if runErr != nil {
		errText = runErr.Error()
	}
	if _, err := a.db.ExecContext(context.WithoutCancel(ctx),
		`UPDATE sync_runs SET finished_at = ?, copied = ?, skipped = ?, error = ? WHERE run_id = ?`,
		time.Now().UTC().Format(time.RFC3339), res.Copied, res.Skipped, errText, res.RunID); err != nil && runErr == nil {
		runErr = fmt.Errorf("finishing sync run: %w", err)
	}

	a.logger.Info("sync finished",
		zap.String("run_id", res.RunID),
		zap.Int("copied", res.Copied),
		zap.Int("skipped", res.Skipped),
		zap.Duration("took", time.Since(started)),
		zap.Error(runErr))
	return res, runErr
}

func (a *SQLite) copyAll(ctx context.Context, src snapshot.Source, opts SyncOptions, res *SyncResult) error {
	for t := 0; t < src.Len(); t++ {
		if !opts.Force {
			ok, err := a.Has(ctx, t)
			if err != nil {
				return err
			}
			if ok {
				res.Skipped++
				continue
			}
		}
		snap, err := src.Fetch(ctx, t)
		if err != nil {
			return err
		}
		if err := a.Put(ctx, t, snap, res.RunID); err != nil {
			return err
		}
		res.Copied++
		a.logger.Debug("archived snapshot", zap.Int("timestamp", t))
	}
	return nil
}

func (a *SQLite) refreshLen(ctx context.Context) error {
	var n int64
	if err := a.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(ts) + 1, 0) FROM snapshots`).Scan(&n); err != nil {
		return fmt.Errorf("counting snapshots: %w", err)
	}
	a.length.Store(n)
	return nil
}

func countRows(m map[string][][]any) int {
	n := 0
	for _, rows := range m {
		n += len(rows)
	}
	return n
}
