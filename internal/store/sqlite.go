// Package store persists the progress ledger in SQLite as an append-only
// table, one row per recorded entry.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/joshharrison/loomplan/internal/project"
	"github.com/joshharrison/loomplan/internal/tracker"
)

// DB wraps a SQLite database connection
type DB struct {
	*sql.DB
}

// Open opens the database and creates the progress table if needed.
func Open(dataSourceName string) (*DB, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps ":memory:" databases shared and writes serialized.
	db.SetMaxOpenConns(1)

	s := &DB{db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (db *DB) migrate() error {
	migration := `
CREATE TABLE IF NOT EXISTS progress (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    time INTEGER NOT NULL CHECK(time >= 0),
    resource_id INTEGER NOT NULL,
    activity_id INTEGER NOT NULL,
    units INTEGER NOT NULL CHECK(units > 0),
    recorded_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_progress_slot ON progress(time, resource_id);
CREATE INDEX IF NOT EXISTS idx_progress_activity ON progress(activity_id);
`
	if _, err := db.Exec(migration); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Append stores one entry. Callers validate it with tracker.Ledger.Record first.
func (db *DB) Append(ctx context.Context, e tracker.Entry) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO progress (time, resource_id, activity_id, units) VALUES (?, ?, ?, ?)`,
		e.Time, e.ResourceID, e.ActivityID, e.Units)
	if err != nil {
		return fmt.Errorf("failed to append progress: %w", err)
	}
	return nil
}

// Entries returns every stored entry in insertion order.
func (db *DB) Entries(ctx context.Context) ([]tracker.Entry, error) {
	rows, err := db.QueryContext(ctx, `SELECT time, resource_id, activity_id, units FROM progress ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to query progress: %w", err)
	}
	defer rows.Close()

	var out []tracker.Entry
	for rows.Next() {
		var e tracker.Entry
		if err := rows.Scan(&e.Time, &e.ResourceID, &e.ActivityID, &e.Units); err != nil {
			return nil, fmt.Errorf("failed to scan progress: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read progress: %w", err)
	}
	return out, nil
}

// Ledger replays the stored entries into a ledger for the given resources.
func (db *DB) Ledger(ctx context.Context, resources []project.Resource, plans []tracker.Plan) (*tracker.Ledger, error) {
	entries, err := db.Entries(ctx)
	if err != nil {
		return nil, err
	}
	return tracker.Restore(resources, plans, entries)
}
