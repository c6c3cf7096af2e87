// Package store provides the SQLite-backed catalog: items, recipe lines,
// density records, cost breakdowns and the change history.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS base_items (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL DEFAULT '',
	specific_weight REAL
);

CREATE TABLE IF NOT EXISTS items (
	id               TEXT PRIMARY KEY,
	name             TEXT NOT NULL DEFAULT '',
	kind             TEXT NOT NULL DEFAULT 'raw',
	base_item_id     TEXT NOT NULL DEFAULT '',
	each_grams       REAL,
	yield_amount     REAL,
	yield_unit       TEXT NOT NULL DEFAULT '',
	yield_each_grams REAL,
	wholesale        REAL,
	retail           REAL,
	notes            TEXT NOT NULL DEFAULT '',
	deprecation      TEXT NOT NULL DEFAULT 'none',
	updated_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS recipe_lines (
	id                TEXT PRIMARY KEY,
	parent_id         TEXT NOT NULL REFERENCES items(id) ON DELETE CASCADE,
	position          INTEGER NOT NULL DEFAULT 0,
	kind              TEXT NOT NULL,
	child_id          TEXT NOT NULL DEFAULT '',
	quantity          REAL,
	unit              TEXT NOT NULL DEFAULT '',
	vendor_mode       TEXT NOT NULL DEFAULT '',
	vendor_product_id TEXT NOT NULL DEFAULT '',
	role              TEXT NOT NULL DEFAULT '',
	minutes           REAL
);

CREATE INDEX IF NOT EXISTS idx_lines_parent ON recipe_lines(parent_id, position);
CREATE INDEX IF NOT EXISTS idx_lines_child ON recipe_lines(child_id);

CREATE TABLE IF NOT EXISTS cost_breakdowns (
	item_id             TEXT PRIMARY KEY REFERENCES items(id) ON DELETE CASCADE,
	labor_cost_per_gram REAL NOT NULL DEFAULT 0,
	food_cost_per_gram  REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS change_history (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	item_id     TEXT NOT NULL,
	action      TEXT NOT NULL,
	recorded_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_history_item ON change_history(item_id);
`

// DB wraps a sql.DB with catalog operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func nullFloat(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

// placeholders returns "?, ?, ?" for n arguments along with ids as []any.
func placeholders(ids []string) (string, []any) {
	args := make([]any, len(ids))
	marks := make([]byte, 0, len(ids)*3)
	for i, id := range ids {
		if i > 0 {
			marks = append(marks, ", "...)
		}
		marks = append(marks, '?')
		args[i] = id
	}
	return string(marks), args
}

// Ping checks that the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}
