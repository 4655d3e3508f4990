package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "manifest.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadManifest(t *testing.T) {
	path := writeManifest(t, `
format: bnd2
platform: PC
compressed: true
resources:
  - name: vehicles/car.dat
    type: Model
    blocks:
      - file: car-main.bin
        alignment: 16
      - file: car-gfx.bin
        alignment: 128
    dependencies:
      - id: "0xAAAA"
        offset: 4
      - name: textures/car_body
        offset: 16
    debug_name: vehicles/car.dat
`)
	m, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if m.Format != "bnd2" || !m.Compressed {
		t.Errorf("header = %+v", m)
	}
	if m.Revision != 2 {
		t.Errorf("default revision = %d, want 2", m.Revision)
	}
	if len(m.Resources) != 1 {
		t.Fatalf("resources = %d", len(m.Resources))
	}
	res := m.Resources[0]
	if res.Name != "vehicles/car.dat" || res.Type != "Model" {
		t.Errorf("resource = %+v", res)
	}
	if len(res.Blocks) != 2 || res.Blocks[1].Alignment != 128 {
		t.Errorf("blocks = %+v", res.Blocks)
	}
	if len(res.Dependencies) != 2 || res.Dependencies[1].Name != "textures/car_body" {
		t.Errorf("dependencies = %+v", res.Dependencies)
	}
}

func TestLoadManifestDefaultsLegacy(t *testing.T) {
	path := writeManifest(t, "format: bndl\nresources: []\n")
	m, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if m.Revision != 5 || m.Platform != "PC" {
		t.Errorf("defaults = revision %d platform %s", m.Revision, m.Platform)
	}
}

func TestLoadManifestValidation(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"missing format", "resources: []\n"},
		{"bad format", "format: zip\nresources: []\n"},
		{"missing id", "format: bnd2\nresources:\n  - type: Model\n"},
		{"missing type", "format: bnd2\nresources:\n  - name: x\n"},
		{"too many blocks", "format: bnd2\nresources:\n  - name: x\n    type: Model\n    blocks: [{file: a}, {file: b}, {file: c}, {file: d}]\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := LoadManifest(writeManifest(t, tc.content)); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestParseID(t *testing.T) {
	tests := []struct {
		in   string
		want uint32
		ok   bool
	}{
		{"0x12345678", 0x12345678, true},
		{"4096", 4096, true},
		{"0XABCD", 0xABCD, true},
		{"zzz", 0, false},
		{"0x1FFFFFFFF", 0, false},
	}
	for _, tt := range tests {
		got, err := ParseID(tt.in)
		if (err == nil) != tt.ok {
			t.Errorf("ParseID(%q) error = %v", tt.in, err)
			continue
		}
		if tt.ok && got != tt.want {
			t.Errorf("ParseID(%q) = %#x, want %#x", tt.in, got, tt.want)
		}
	}
}
