package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Manifest describes a bundle to build with `bndl pack`. Paths are relative
// to the manifest file's directory.
type Manifest struct {
	Format     string             `mapstructure:"format"`
	Revision   uint32             `mapstructure:"revision"`
	Platform   string             `mapstructure:"platform"`
	Compressed bool               `mapstructure:"compressed"`
	Resources  []ManifestResource `mapstructure:"resources"`
}

// ManifestResource is one entry of the manifest. A resource is addressed by
// name (hashed to its ID) or by a literal ID; at least one must be given.
// When both are given the ID addresses the resource and the name only serves
// as the default debug name.
type ManifestResource struct {
	Name         string               `mapstructure:"name"`
	ID           string               `mapstructure:"id"`
	Type         string               `mapstructure:"type"`
	Blocks       []ManifestBlock      `mapstructure:"blocks"`
	Dependencies []ManifestDependency `mapstructure:"dependencies"`
	DebugName    string               `mapstructure:"debug_name"`
	DebugType    string               `mapstructure:"debug_type"`
}

type ManifestBlock struct {
	File      string `mapstructure:"file"`
	Alignment uint32 `mapstructure:"alignment"`
}

type ManifestDependency struct {
	ID     string `mapstructure:"id"`
	Name   string `mapstructure:"name"`
	Offset uint32 `mapstructure:"offset"`
}

// LoadManifest reads and validates a pack manifest.
func LoadManifest(path string) (*Manifest, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	var m Manifest
	if err := v.Unmarshal(&m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}

	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest %s: %w", path, err)
	}
	return &m, nil
}

func (m *Manifest) validate() error {
	switch m.Format {
	case "bnd2", "bndl":
	case "":
		return fmt.Errorf("format is required (bnd2 or bndl)")
	default:
		return fmt.Errorf("unknown format %q", m.Format)
	}
	if m.Platform == "" {
		m.Platform = "PC"
	}
	if m.Revision == 0 {
		if m.Format == "bnd2" {
			m.Revision = 2
		} else {
			m.Revision = 5
		}
	}
	for i, res := range m.Resources {
		if res.Name == "" && res.ID == "" {
			return fmt.Errorf("resource %d: name or id is required", i)
		}
		if res.Type == "" {
			return fmt.Errorf("resource %d: type is required", i)
		}
		if len(res.Blocks) > 3 {
			return fmt.Errorf("resource %d: at most 3 blocks, got %d", i, len(res.Blocks))
		}
	}
	return nil
}

// ParseID accepts decimal or 0x-prefixed hex resource IDs.
func ParseID(s string) (uint32, error) {
	s = strings.TrimSpace(s)
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
		base = 16
	}
	v, err := strconv.ParseUint(s, base, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid resource ID %q: %w", s, err)
	}
	return uint32(v), nil
}
