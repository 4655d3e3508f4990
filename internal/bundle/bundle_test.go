package bundle

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func tempBundlePath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "test.bundle")
}

func saveAndReload(t *testing.T, b *Bundle) *Bundle {
	t.Helper()
	path := tempBundlePath(t)
	if err := b.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	reloaded := &Bundle{}
	if err := reloaded.Load(path); err != nil {
		t.Fatalf("reload: %v", err)
	}
	return reloaded
}

func TestEmptyModernBundleRoundTrip(t *testing.T) {
	b, err := New(BND2, 2, PC, ReservedFlagA|ReservedFlagB)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	r := saveAndReload(t, b)

	if r.MagicVersion() != BND2 || r.RevisionNumber() != 2 || r.Platform() != PC {
		t.Errorf("header fields: magic=%v revision=%d platform=%v",
			r.MagicVersion(), r.RevisionNumber(), r.Platform())
	}
	if r.Flags() != ReservedFlagA|ReservedFlagB {
		t.Errorf("flags = %#x", r.Flags())
	}
	if r.ResourceCount() != 0 || r.DebugInfoCount() != 0 {
		t.Errorf("counts = %d resources, %d debug entries", r.ResourceCount(), r.DebugInfoCount())
	}
}

func TestSingleResourceRoundTrip(t *testing.T) {
	b, err := New(BND2, 2, PC, ReservedFlagA|ReservedFlagB)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	data := &EntryData{}
	data.Blocks[0] = []byte("hello world")
	data.Alignments = [3]uint32{4, 1, 1}
	if err := b.AddResource(0x12345678, data, TextFile); err != nil {
		t.Fatalf("add: %v", err)
	}

	r := saveAndReload(t, b)
	payload, err := r.GetBinary(0x12345678, 0)
	if err != nil {
		t.Fatalf("get binary: %v", err)
	}
	if string(payload) != "hello world" {
		t.Errorf("payload = %q", payload)
	}
	if rt, ok := r.GetResourceType(0x12345678); !ok || rt != TextFile {
		t.Errorf("resource type = %v, %v", rt, ok)
	}
	got, err := r.GetData(0x12345678)
	if err != nil {
		t.Fatalf("get data: %v", err)
	}
	if got.Alignments[0] != 4 {
		t.Errorf("block 0 alignment = %d", got.Alignments[0])
	}
	if got.Blocks[1] != nil || got.Blocks[2] != nil {
		t.Error("empty slots returned data")
	}
}

func TestDependencyRoundTripModern(t *testing.T) {
	b, err := New(BND2, 2, PC, ReservedFlagA|ReservedFlagB)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	payload := bytes.Repeat([]byte{0xCD}, 32)
	deps := []Dependency{
		{ResourceID: 0xAAAA, InternalOffset: 0x04},
		{ResourceID: 0xBBBB, InternalOffset: 0x10},
	}
	add := &EntryData{}
	add.Blocks[0] = payload
	add.Alignments = [3]uint32{16, 1, 1}
	if err := b.AddResource(0xA, add, Model); err != nil {
		t.Fatalf("add: %v", err)
	}

	replace := &EntryData{Dependencies: deps}
	replace.Blocks[0] = payload
	replace.Alignments = [3]uint32{16, 1, 1}
	if err := b.ReplaceResource(0xA, replace); err != nil {
		t.Fatalf("replace: %v", err)
	}

	res := b.resources[0xA]
	if res.Info.DependenciesOffset != 32 {
		t.Errorf("dependencies offset = %d, want 32", res.Info.DependenciesOffset)
	}
	if res.Info.NumberOfDependencies != 2 {
		t.Errorf("dependency count = %d, want 2", res.Info.NumberOfDependencies)
	}

	r := saveAndReload(t, b)
	got, err := r.GetData(0xA)
	if err != nil {
		t.Fatalf("get data: %v", err)
	}
	if len(got.Dependencies) != 2 || got.Dependencies[0] != deps[0] || got.Dependencies[1] != deps[1] {
		t.Errorf("dependencies = %+v", got.Dependencies)
	}
	if !bytes.Equal(got.Blocks[0], payload) {
		t.Errorf("block 0 not truncated back to payload: %d bytes", len(got.Blocks[0]))
	}
}

func TestDependencyOffsetAfterShortBlock(t *testing.T) {
	// A 16-byte block 0 is already on the 16-byte boundary, so the single
	// dependency lands directly after it.
	b, err := New(BND2, 2, PC, ReservedFlagA|ReservedFlagB)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	add := &EntryData{}
	add.Blocks[0] = bytes.Repeat([]byte{1}, 16)
	add.Dependencies = []Dependency{{ResourceID: 0x1234, InternalOffset: 8}}
	if err := b.AddResource(0xB, add, BinaryFile); err != nil {
		t.Fatalf("add: %v", err)
	}
	if got := b.resources[0xB].Info.DependenciesOffset; got != 16 {
		t.Errorf("dependencies offset = %d, want 16", got)
	}

	r := saveAndReload(t, b)
	got, err := r.GetData(0xB)
	if err != nil {
		t.Fatalf("get data: %v", err)
	}
	if len(got.Dependencies) != 1 || got.Dependencies[0] != (Dependency{ResourceID: 0x1234, InternalOffset: 8}) {
		t.Errorf("dependencies = %+v", got.Dependencies)
	}
}

func TestCompressedRoundTrip(t *testing.T) {
	b, err := New(BND2, 2, PC, Compressed|ReservedFlagA|ReservedFlagB)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	payload := bytes.Repeat([]byte{0x55}, 4096)
	add := &EntryData{}
	add.Blocks[0] = payload
	add.Alignments = [3]uint32{16, 1, 1}
	if err := b.AddResource(0xC0FFEE, add, Raster); err != nil {
		t.Fatalf("add: %v", err)
	}

	if cs := b.resources[0xC0FFEE].Blocks[0].CompressedSize; cs == 0 || cs >= 4096 {
		t.Errorf("compressed size = %d, want 0 < size < 4096", cs)
	}

	r := saveAndReload(t, b)
	got, err := r.GetBinary(0xC0FFEE, 0)
	if err != nil {
		t.Fatalf("get binary: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("payload mismatch after compressed round-trip (%d bytes)", len(got))
	}
	if cs := r.resources[0xC0FFEE].Blocks[0].CompressedSize; cs == 0 || cs >= 4096 {
		t.Errorf("on-disk compressed size = %d", cs)
	}
}

func TestDebugTableRoundTripModern(t *testing.T) {
	b, err := New(BND2, 2, PC, ReservedFlagA|ReservedFlagB)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	add := &EntryData{}
	add.Blocks[0] = []byte("payload")
	if err := b.AddResourceByName("vehicles/car.dat", add, Model); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := b.AddDebugInfoByName("vehicles/car.dat", "Model"); err != nil {
		t.Fatalf("add debug info: %v", err)
	}
	if !b.Flags().Has(HasResourceStringTable) {
		t.Fatal("AddDebugInfo did not set the table flag")
	}

	r := saveAndReload(t, b)
	info, ok := r.GetDebugInfoByName("VEHICLES/CAR.DAT")
	if !ok {
		t.Fatal("debug info lost")
	}
	if info.Name != "vehicles/car.dat" || info.TypeName != "Model" {
		t.Errorf("debug info = %+v", info)
	}
	if _, err := r.GetBinaryByName("Vehicles/Car.DAT", 0); err != nil {
		t.Errorf("name lookup failed: %v", err)
	}
}

func TestAllBlocksEmptyRoundTrip(t *testing.T) {
	b, err := New(BND2, 2, PC, ReservedFlagA|ReservedFlagB)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := b.AddResource(0x42, &EntryData{}, EntryList); err != nil {
		t.Fatalf("add: %v", err)
	}
	r := saveAndReload(t, b)
	res, ok := r.resources[0x42]
	if !ok {
		t.Fatal("resource lost")
	}
	for i := range res.Blocks {
		blk := &res.Blocks[i]
		if !blk.Empty() || blk.UncompressedSize != 0 || blk.CompressedSize != 0 || blk.UncompressedAlignment != 1 {
			t.Errorf("block %d = %+v, want empty", i, blk)
		}
	}
}

func TestListResourceIDsAscending(t *testing.T) {
	b, err := New(BND2, 2, PC, 0)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	for _, id := range []uint32{0xFFFF0000, 0x10, 0x8000, 0x11} {
		if err := b.AddResource(id, &EntryData{}, BinaryFile); err != nil {
			t.Fatalf("add %#x: %v", id, err)
		}
	}
	ids := b.ListResourceIDs()
	want := []uint32{0x10, 0x11, 0x8000, 0xFFFF0000}
	if len(ids) != len(want) {
		t.Fatalf("ids = %v", ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("ids = %v, want %v", ids, want)
		}
	}

	byType := b.ListResourceIDsByType()
	if got := byType[BinaryFile]; len(got) != 4 || got[0] != 0x10 {
		t.Errorf("by type = %v", got)
	}
}

func TestReplaceIsIdempotentModuloChecksum(t *testing.T) {
	b, err := New(BND2, 2, PC, ReservedFlagA|ReservedFlagB)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	add := &EntryData{Dependencies: []Dependency{{ResourceID: 7, InternalOffset: 0}}}
	add.Blocks[0] = bytes.Repeat([]byte{3}, 48)
	add.Blocks[2] = []byte{9, 9}
	add.Alignments = [3]uint32{16, 1, 2}
	if err := b.AddResource(0xD, add, Renderable); err != nil {
		t.Fatalf("add: %v", err)
	}

	before, err := b.GetData(0xD)
	if err != nil {
		t.Fatalf("get data: %v", err)
	}
	if err := b.ReplaceResource(0xD, before); err != nil {
		t.Fatalf("replace: %v", err)
	}
	after, err := b.GetData(0xD)
	if err != nil {
		t.Fatalf("get data: %v", err)
	}

	if !bytes.Equal(before.Blocks[0], after.Blocks[0]) ||
		!bytes.Equal(before.Blocks[2], after.Blocks[2]) ||
		before.Alignments != after.Alignments ||
		len(before.Dependencies) != len(after.Dependencies) {
		t.Errorf("replace changed the entry:\nbefore %+v\nafter  %+v", before, after)
	}
	if got := b.resources[0xD].Info.NumberOfDependencies; got != 1 {
		t.Errorf("dependency count = %d", got)
	}
}

func TestInvalidMagicFails(t *testing.T) {
	path := tempBundlePath(t)
	if err := os.WriteFile(path, []byte("nope, not a bundle"), 0644); err != nil {
		t.Fatal(err)
	}
	b := &Bundle{}
	if err := b.Load(path); !errors.Is(err, ErrInvalidFormat) {
		t.Errorf("load error = %v, want ErrInvalidFormat", err)
	}
}

func TestModernBadRevisionFails(t *testing.T) {
	b, err := New(BND2, 2, PC, 0)
	if err != nil {
		t.Fatal(err)
	}
	img, err := b.SaveBytes()
	if err != nil {
		t.Fatal(err)
	}
	img[4] = 3 // revision word
	reloaded := &Bundle{}
	if err := reloaded.LoadBytes(img); !errors.Is(err, ErrInvalidFormat) {
		t.Errorf("load error = %v, want ErrInvalidFormat", err)
	}
}

func TestAddErrors(t *testing.T) {
	b, err := New(BND2, 2, PC, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := b.AddResource(0, &EntryData{}, BinaryFile); !errors.Is(err, ErrLogic) {
		t.Errorf("zero ID: %v", err)
	}
	if err := b.AddResource(1, &EntryData{}, BinaryFile); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := b.AddResource(1, &EntryData{}, BinaryFile); !errors.Is(err, ErrLogic) {
		t.Errorf("duplicate ID: %v", err)
	}
	if err := b.ReplaceResource(2, &EntryData{}); !errors.Is(err, ErrLogic) {
		t.Errorf("replace missing: %v", err)
	}
	if err := b.AddDebugInfo(5, "n", "t"); err != nil {
		t.Fatalf("add debug info: %v", err)
	}
	if err := b.AddDebugInfo(5, "n", "t"); !errors.Is(err, ErrLogic) {
		t.Errorf("duplicate debug info: %v", err)
	}

	tooMany := &EntryData{Dependencies: make([]Dependency, maxDependencies+1)}
	if err := b.ReplaceResource(1, tooMany); !errors.Is(err, ErrLogic) {
		t.Errorf("oversized dependency list: %v", err)
	}

	badAlign := &EntryData{}
	badAlign.Blocks[0] = []byte{1}
	badAlign.Alignments = [3]uint32{3, 1, 1}
	if err := b.ReplaceResource(1, badAlign); !errors.Is(err, ErrLogic) {
		t.Errorf("non-power-of-two alignment: %v", err)
	}
	hugeAlign := &EntryData{}
	hugeAlign.Blocks[0] = []byte{1}
	hugeAlign.Alignments = [3]uint32{1 << 16, 1, 1}
	if err := b.ReplaceResource(1, hugeAlign); !errors.Is(err, ErrLogic) {
		t.Errorf("alignment beyond 4-bit exponent: %v", err)
	}
}

func TestUnknownResourceTypeRoundTrips(t *testing.T) {
	b, err := New(BND2, 2, PC, ReservedFlagA|ReservedFlagB)
	if err != nil {
		t.Fatal(err)
	}
	const exotic = ResourceType(0xDEAD0001)
	add := &EntryData{}
	add.Blocks[0] = []byte{1, 2, 3}
	if err := b.AddResource(0xE, add, exotic); err != nil {
		t.Fatalf("add: %v", err)
	}
	r := saveAndReload(t, b)
	if rt, ok := r.GetResourceType(0xE); !ok || rt != exotic {
		t.Errorf("resource type = %v, want %v", rt, exotic)
	}
}

func TestModernSaveNonPCFails(t *testing.T) {
	b, err := New(BND2, 2, Xbox360, 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.SaveBytes(); !errors.Is(err, ErrLogic) {
		t.Errorf("non-PC bnd2 save: %v", err)
	}
}
