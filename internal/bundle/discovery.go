package bundle

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// DiscoverBundleFiles walks the given roots and returns every regular file
// whose first four bytes spell a bundle magic. Extensions are not trusted:
// shipped games use .BNDL, .BIN and .DAT interchangeably, so the magic is
// sniffed instead.
func DiscoverBundleFiles(roots []string) ([]string, error) {
	var found []string
	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("inspecting %s: %w", root, err)
		}
		if !info.IsDir() {
			ok, err := sniffBundleMagic(root)
			if err != nil {
				return nil, err
			}
			if ok {
				found = append(found, root)
			}
			continue
		}

		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.Type().IsRegular() {
				return nil
			}
			ok, err := sniffBundleMagic(path)
			if err != nil {
				slog.Warn("Skipping unreadable file", "path", path, "error", err)
				return nil
			}
			if ok {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", root, err)
		}
	}

	slog.Debug("Bundle discovery finished", "roots", len(roots), "bundles", len(found))
	return found, nil
}

func sniffBundleMagic(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	var magic [4]byte
	if _, err := f.Read(magic[:]); err != nil {
		return false, nil // too short to be a bundle
	}
	switch string(magic[:]) {
	case "bndl", "bnd2":
		return true, nil
	}
	return false, nil
}
