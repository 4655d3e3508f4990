package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/burnoutmods/bndl/internal/bundle"
	"github.com/spf13/cobra"
)

var (
	listFile string
	listName string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the resources of a bundle file",
	Long: `List loads a bundle and prints one line per resource: ID, type tag and,
when the bundle carries a debug-name table, the authoring name.

With --name, only the resource whose hashed name matches is shown; the hash
is case-insensitive, so any casing of the original path works.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		b := &bundle.Bundle{}
		if err := b.Load(listFile); err != nil {
			return fmt.Errorf("loading %s: %w", listFile, err)
		}

		ids := b.ListResourceIDs()
		if listName != "" {
			want := bundle.HashResourceName(listName)
			ids = nil
			if _, ok := b.GetResourceType(want); ok {
				ids = []uint32{want}
			}
			if len(ids) == 0 {
				return fmt.Errorf("no resource named %q (ID %08x) in %s", listName, want, listFile)
			}
		}

		fmt.Printf("%s: %s revision %d, %s, %d resources\n",
			listFile, magicName(b.MagicVersion()), b.RevisionNumber(), b.Platform(), b.ResourceCount())

		w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTYPE\tNAME")
		for _, id := range ids {
			resourceType, _ := b.GetResourceType(id)
			name := ""
			if info, ok := b.GetDebugInfo(id); ok {
				name = info.Name
			}
			fmt.Fprintf(w, "%08x\t%s\t%s\n", id, resourceType, name)
		}
		return w.Flush()
	},
}

func magicName(m bundle.MagicVersion) string {
	if m == bundle.BND2 {
		return "bnd2"
	}
	return "bndl"
}

func init() {
	listCmd.Flags().StringVarP(&listFile, "file", "f", "", "bundle file to list")
	listCmd.Flags().StringVar(&listName, "name", "", "show only the resource with this name")
	listCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(listCmd)
}
