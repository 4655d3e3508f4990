package database

import (
	"context"
	"fmt"
)

// The index schema is fixed: one row per bundle file, one row per resource.
// Resource IDs are stored as 8-digit lowercase hex so queries can match the
// debug-table notation directly.
var schemaDDL = []string{
	`CREATE TABLE IF NOT EXISTS bundles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		path TEXT NOT NULL UNIQUE,
		format TEXT NOT NULL,
		revision INTEGER NOT NULL,
		platform TEXT NOT NULL,
		flags INTEGER NOT NULL,
		resource_count INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS resources (
		bundle_id INTEGER NOT NULL,
		resource_id TEXT NOT NULL,
		resource_type TEXT NOT NULL,
		debug_name TEXT,
		debug_type TEXT,
		size_0 INTEGER NOT NULL,
		size_1 INTEGER NOT NULL,
		size_2 INTEGER NOT NULL,
		dependency_count INTEGER NOT NULL,
		PRIMARY KEY (bundle_id, resource_id),
		FOREIGN KEY (bundle_id) REFERENCES bundles(id) ON DELETE CASCADE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_resources_type ON resources(resource_type)`,
	`CREATE INDEX IF NOT EXISTS idx_resources_name ON resources(debug_name)`,
}

// CreateSchema creates the index tables if they do not exist yet.
func (d *DB) CreateSchema(ctx context.Context) error {
	for _, ddl := range schemaDDL {
		if _, err := d.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("creating index schema: %w", err)
		}
	}
	return nil
}

// RemoveBundle drops a bundle and its resources from the index, so a
// re-index of the same path replaces rather than duplicates.
func (d *DB) RemoveBundle(ctx context.Context, path string) error {
	if _, err := d.ExecContext(ctx,
		`DELETE FROM resources WHERE bundle_id IN (SELECT id FROM bundles WHERE path = ?)`,
		path); err != nil {
		return fmt.Errorf("removing resources of %s from index: %w", path, err)
	}
	if _, err := d.ExecContext(ctx, `DELETE FROM bundles WHERE path = ?`, path); err != nil {
		return fmt.Errorf("removing bundle %s from index: %w", path, err)
	}
	return nil
}
