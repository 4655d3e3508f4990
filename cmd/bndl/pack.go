package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/burnoutmods/bndl/internal/bundle"
	"github.com/burnoutmods/bndl/internal/config"
	"github.com/spf13/cobra"
)

var (
	packManifest string
	packOut      string
)

var packCmd = &cobra.Command{
	Use:   "pack",
	Short: "Build a bundle file from a YAML manifest",
	Long: `Pack reads a manifest describing the bundle (format, platform, revision,
compression) and its resources (name or ID, type, per-slot payload files,
alignments, dependencies, optional debug names), then writes the bundle.

Payload paths in the manifest are relative to the manifest file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := config.LoadManifest(packManifest)
		if err != nil {
			return err
		}
		baseDir := filepath.Dir(packManifest)

		b, err := newBundleFromManifest(m)
		if err != nil {
			return err
		}

		for i := range m.Resources {
			if err := addManifestResource(b, baseDir, &m.Resources[i]); err != nil {
				return fmt.Errorf("resource %d: %w", i, err)
			}
		}

		if err := b.Save(packOut); err != nil {
			return fmt.Errorf("saving %s: %w", packOut, err)
		}
		slog.Info("Bundle written", "path", packOut, "resources", b.ResourceCount())
		return nil
	},
}

func newBundleFromManifest(m *config.Manifest) (*bundle.Bundle, error) {
	platform, ok := bundle.ParsePlatform(m.Platform)
	if !ok {
		return nil, fmt.Errorf("unknown platform %q", m.Platform)
	}
	magic := bundle.BND2
	if m.Format == "bndl" {
		magic = bundle.BNDL
	}
	var flags bundle.Flags
	if m.Compressed {
		flags |= bundle.Compressed
	}
	return bundle.New(magic, m.Revision, platform, flags)
}

func addManifestResource(b *bundle.Bundle, baseDir string, res *config.ManifestResource) error {
	id, err := manifestResourceID(res)
	if err != nil {
		return err
	}

	resourceType, ok := bundle.ResourceTypeByName(res.Type)
	if !ok {
		raw, err := config.ParseID(res.Type)
		if err != nil {
			return fmt.Errorf("unknown resource type %q", res.Type)
		}
		resourceType = bundle.ResourceType(raw)
	}

	data := &bundle.EntryData{}
	for slot := range data.Alignments {
		data.Alignments[slot] = 1
	}
	for slot, blk := range res.Blocks {
		if blk.File == "" {
			continue
		}
		payload, err := os.ReadFile(filepath.Join(baseDir, blk.File))
		if err != nil {
			return fmt.Errorf("reading block %d payload: %w", slot, err)
		}
		data.Blocks[slot] = payload
		if blk.Alignment > 0 {
			data.Alignments[slot] = blk.Alignment
		}
	}
	for _, dep := range res.Dependencies {
		depID, err := manifestDependencyID(&dep)
		if err != nil {
			return err
		}
		data.Dependencies = append(data.Dependencies, bundle.Dependency{
			ResourceID:     depID,
			InternalOffset: dep.Offset,
		})
	}

	if err := b.AddResource(id, data, resourceType); err != nil {
		return err
	}

	if res.DebugName != "" || res.Name != "" {
		debugName := res.DebugName
		if debugName == "" {
			debugName = res.Name
		}
		debugType := res.DebugType
		if debugType == "" {
			debugType = res.Type
		}
		if err := b.AddDebugInfo(id, debugName, debugType); err != nil {
			return err
		}
	}
	return nil
}

func manifestResourceID(res *config.ManifestResource) (uint32, error) {
	if res.ID != "" {
		return config.ParseID(res.ID)
	}
	return bundle.HashResourceName(res.Name), nil
}

func manifestDependencyID(dep *config.ManifestDependency) (uint32, error) {
	if dep.ID != "" {
		return config.ParseID(dep.ID)
	}
	if dep.Name != "" {
		return bundle.HashResourceName(dep.Name), nil
	}
	return 0, fmt.Errorf("dependency needs an id or a name")
}

func init() {
	packCmd.Flags().StringVarP(&packManifest, "manifest", "m", "", "manifest file describing the bundle")
	packCmd.Flags().StringVarP(&packOut, "file", "f", "", "output bundle path")
	packCmd.MarkFlagRequired("manifest")
	packCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(packCmd)
}
