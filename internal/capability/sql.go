package capability

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

const capabilityQuery = `SELECT supplier_id, part_type FROM supplier_capabilities ORDER BY supplier_id, part_type`

// schemaSQLite creates the capability table in a fresh SQLite database.
const schemaSQLite = `
CREATE TABLE IF NOT EXISTS supplier_capabilities (
    supplier_id TEXT NOT NULL,
    part_type TEXT NOT NULL,
    PRIMARY KEY (supplier_id, part_type)
)`

// OpenSQL loads the supplier_capabilities table through database/sql.
// driver is "sqlite" or "pgx". The whole table is read once.
func OpenSQL(ctx context.Context, driver, dsn string) (Static, error) {
	if driver != "sqlite" && driver != "pgx" {
		return nil, fmt.Errorf("unsupported capability driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening capability database: %w", err)
	}
	defer db.Close()

	return LoadSQL(ctx, db)
}

// LoadSQL reads every row of supplier_capabilities from db.
func LoadSQL(ctx context.Context, db *sql.DB) (Static, error) {
	rows, err := db.QueryContext(ctx, capabilityQuery)
	if err != nil {
		return nil, fmt.Errorf("querying supplier capabilities: %w", err)
	}
	defer rows.Close()

	t := Static{}
	for rows.Next() {
		var supplier, partType string
		if err := rows.Scan(&supplier, &partType); err != nil {
			return nil, fmt.Errorf("scanning supplier capability: %w", err)
		}
		t[supplier] = append(t[supplier], partType)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading supplier capabilities: %w", err)
	}
	return t, nil
}

// SeedSQLite creates the capability table in db and inserts t.
func SeedSQLite(ctx context.Context, db *sql.DB, t Static) error {
	if _, err := db.ExecContext(ctx, schemaSQLite); err != nil {
		return fmt.Errorf("creating capability table: %w", err)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO supplier_capabilities (supplier_id, part_type) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for supplier, types := range t {
		for _, pt := range types {
			if _, err := stmt.ExecContext(ctx, supplier, pt); err != nil {
				return fmt.Errorf("inserting capability %s/%s: %w", supplier, pt, err)
			}
		}
	}
	return tx.Commit()
}
