package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// BundleRecord is the per-file row of the index.
type BundleRecord struct {
	Path          string
	Format        string
	Revision      uint32
	Platform      string
	Flags         uint32
	ResourceCount int
}

// ResourceRecord is the per-resource row of the index.
type ResourceRecord struct {
	ResourceID      string
	ResourceType    string
	DebugName       string
	DebugType       string
	Sizes           [3]uint32
	DependencyCount int
}

// InsertBundle records one bundle and all of its resources in a single
// transaction, replacing any previous rows for the same path.
func (d *DB) InsertBundle(ctx context.Context, bundle *BundleRecord, resources []ResourceRecord) error {
	if err := d.RemoveBundle(ctx, bundle.Path); err != nil {
		return err
	}

	tx, err := d.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting index transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`INSERT INTO bundles (path, format, revision, platform, flags, resource_count)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		bundle.Path, bundle.Format, bundle.Revision, bundle.Platform, bundle.Flags, bundle.ResourceCount)
	if err != nil {
		return fmt.Errorf("inserting bundle row for %s: %w", bundle.Path, err)
	}
	bundleID, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading bundle row ID: %w", err)
	}

	if err := insertResources(ctx, tx, bundleID, resources); err != nil {
		return fmt.Errorf("inserting resources for %s: %w", bundle.Path, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing index rows for %s: %w", bundle.Path, err)
	}

	slog.Debug("Indexed bundle", "path", bundle.Path, "resources", len(resources))
	return nil
}

func insertResources(ctx context.Context, tx *sql.Tx, bundleID int64, resources []ResourceRecord) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO resources
		 (bundle_id, resource_id, resource_type, debug_name, debug_type,
		  size_0, size_1, size_2, dependency_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing resource insert: %w", err)
	}
	defer stmt.Close()

	for _, res := range resources {
		if _, err := stmt.ExecContext(ctx,
			bundleID, res.ResourceID, res.ResourceType,
			nullable(res.DebugName), nullable(res.DebugType),
			res.Sizes[0], res.Sizes[1], res.Sizes[2],
			res.DependencyCount); err != nil {
			return fmt.Errorf("inserting resource %s: %w", res.ResourceID, err)
		}
	}
	return nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
