package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// DB is the SQLite file holding the bundle index. The embedded connection is
// used directly (ExecContext, QueryContext, BeginTx); the index is a local
// single-writer file, so beyond the open-time pragmas there is no pooling
// policy to manage.
type DB struct {
	*sql.DB
	path string
}

// indexPragmas are the driver parameters applied to every index connection.
// go-sqlite3 only honors the underscore-prefixed forms.
var indexPragmas = []string{
	"_journal_mode=WAL",
	"_busy_timeout=30000",
	"_synchronous=NORMAL",
	"_foreign_keys=on",
}

// Open opens the index database at path, creating the file and its parent
// directory on first use.
func Open(path string) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("index database path is empty")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating index directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite3", path+"?"+strings.Join(indexPragmas, "&"))
	if err != nil {
		return nil, fmt.Errorf("opening index %s: %w", path, err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("probing index %s: %w", path, err)
	}
	return &DB{DB: conn, path: path}, nil
}

// Path returns the file the index lives in.
func (d *DB) Path() string { return d.path }

// HasBundles reports whether the index schema exists and holds at least one
// bundle row, so commands can explain an empty index instead of surfacing
// SQLite's "no such table".
func (d *DB) HasBundles(ctx context.Context) (bool, error) {
	var name string
	err := d.QueryRowContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'bundles'`).Scan(&name)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("inspecting index schema: %w", err)
	}

	var count int
	if err := d.QueryRowContext(ctx, `SELECT COUNT(*) FROM bundles`).Scan(&count); err != nil {
		return false, fmt.Errorf("counting indexed bundles: %w", err)
	}
	return count > 0, nil
}
