package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/burnoutmods/bndl/internal/bundle"
	"github.com/burnoutmods/bndl/internal/database"
	"github.com/burnoutmods/bndl/internal/utils"
	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index [paths...]",
	Short: "Index bundle files into a queryable SQLite database",
	Long: `Index walks the given files and directories, sniffs out bundle files by
their magic bytes, loads each one and records its resources in the SQLite
database. Re-indexing a path replaces its previous rows.

Use "bndl query" to run SQL against the result.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		start := time.Now()

		paths, err := bundle.DiscoverBundleFiles(args)
		if err != nil {
			return err
		}
		if len(paths) == 0 {
			slog.Info("No bundle files found", "paths", args)
			return nil
		}

		db, err := database.Open(cfg.Database)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer db.Close()

		if err := db.CreateSchema(ctx); err != nil {
			return err
		}

		progress := utils.NewProgress(len(paths), !cfg.NoProgress)
		var indexed, failed int
		var totalResources int64
		for i, path := range paths {
			progress.Update(i+1, path)

			b := &bundle.Bundle{}
			if err := b.Load(path); err != nil {
				slog.Warn("Skipping unparseable bundle", "path", path, "error", err)
				failed++
				continue
			}

			if err := db.InsertBundle(ctx, bundleRecord(path, b), resourceRecords(b)); err != nil {
				return err
			}
			indexed++
			totalResources += int64(b.ResourceCount())
		}
		progress.Finish()

		slog.Info("Index finished",
			"bundles", indexed,
			"failed", failed,
			"resources", utils.Number(totalResources),
			"database", cfg.Database,
			"elapsed", utils.Duration(time.Since(start)))
		return nil
	},
}

func bundleRecord(path string, b *bundle.Bundle) *database.BundleRecord {
	return &database.BundleRecord{
		Path:          path,
		Format:        magicName(b.MagicVersion()),
		Revision:      b.RevisionNumber(),
		Platform:      b.Platform().String(),
		Flags:         uint32(b.Flags()),
		ResourceCount: b.ResourceCount(),
	}
}

func resourceRecords(b *bundle.Bundle) []database.ResourceRecord {
	ids := b.ListResourceIDs()
	records := make([]database.ResourceRecord, 0, len(ids))
	for _, id := range ids {
		resourceType, _ := b.GetResourceType(id)
		rec := database.ResourceRecord{
			ResourceID:   fmt.Sprintf("%08x", id),
			ResourceType: resourceType.String(),
		}
		if info, ok := b.GetDebugInfo(id); ok {
			rec.DebugName = info.Name
			rec.DebugType = info.TypeName
		}
		if data, err := b.GetData(id); err == nil {
			for slot := range data.Blocks {
				rec.Sizes[slot] = uint32(len(data.Blocks[slot]))
			}
			rec.DependencyCount = len(data.Dependencies)
		}
		records = append(records, rec)
	}
	return records
}

func init() {
	rootCmd.AddCommand(indexCmd)
}
