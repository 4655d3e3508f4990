package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/burnoutmods/bndl/internal/bundle"
	"github.com/burnoutmods/bndl/internal/utils"
	"github.com/spf13/cobra"
)

var (
	extractFile string
	extractDir  string
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract every resource of a bundle to a directory",
	Long: `Extract loads a bundle and writes the uncompressed payload of each
non-empty block slot to <id>-<slot>.bin in the output directory. When the
bundle carries a debug-name table it is written alongside as resources.xml.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		start := time.Now()

		b := &bundle.Bundle{}
		if err := b.Load(extractFile); err != nil {
			return fmt.Errorf("loading %s: %w", extractFile, err)
		}
		if err := os.MkdirAll(extractDir, 0755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}

		ids := b.ListResourceIDs()
		progress := utils.NewProgress(len(ids), !cfg.NoProgress)

		var files int
		var bytesOut int64
		for i, id := range ids {
			progress.Update(i+1, fmt.Sprintf("%08x", id))
			for slot := 0; slot < 3; slot++ {
				payload, err := b.GetBinary(id, slot)
				if err != nil {
					return fmt.Errorf("resource %08x slot %d: %w", id, slot, err)
				}
				if payload == nil {
					continue
				}
				name := filepath.Join(extractDir, fmt.Sprintf("%08x-%d.bin", id, slot))
				if err := os.WriteFile(name, payload, 0644); err != nil {
					return fmt.Errorf("writing %s: %w", name, err)
				}
				files++
				bytesOut += int64(len(payload))
			}
		}
		progress.Finish()

		if b.DebugInfoCount() > 0 {
			name := filepath.Join(extractDir, "resources.xml")
			if err := os.WriteFile(name, []byte(b.DebugTableXML()), 0644); err != nil {
				return fmt.Errorf("writing %s: %w", name, err)
			}
		}

		slog.Info("Extraction finished",
			"resources", len(ids),
			"files", files,
			"bytes", utils.Bytes(bytesOut),
			"elapsed", utils.Duration(time.Since(start)))
		return nil
	},
}

func init() {
	extractCmd.Flags().StringVarP(&extractFile, "file", "f", "", "bundle file to extract")
	extractCmd.Flags().StringVarP(&extractDir, "out", "o", "", "output directory")
	extractCmd.MarkFlagRequired("file")
	extractCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(extractCmd)
}
