package bundle

import (
	"fmt"
	"os"
	"sort"

	"github.com/burnoutmods/bndl/internal/binio"
)

// debugTableResourceID is the conventional ID of the resource carrying the
// debug-name table in legacy bundles. It is consumed during load and never
// exposed through the public iteration order.
const debugTableResourceID = 0xC039284A

// syntheticDebugResourceID is the transient resource inserted while saving a
// legacy bundle with debug data, erased before Save returns.
const syntheticDebugResourceID = 0xFFFFFFFF

// maxDependencies is the widest dependency count the 16-bit on-disk field
// can carry.
const maxDependencies = 0xFFFF

// Bundle is an in-memory Criterion bundle: an ordered set of typed resources
// plus the debug-name table and bundle-level metadata. Resources are always
// emitted in ascending ID order, which fixes their on-disk placement.
//
// A Bundle is not safe for concurrent mutation; at most one goroutine may
// call a mutating method at a time.
type Bundle struct {
	magicVersion   MagicVersion
	revisionNumber uint32
	platform       Platform
	flags          Flags

	resources map[uint32]*Resource
	debugInfo map[uint32]DebugInfo

	// outOfLineDeps holds legacy dependency lists, which live in their own
	// file section. Modern bundles keep dependencies appended to block 0 of
	// the owning resource instead.
	outOfLineDeps map[uint32][]Dependency
}

// New creates an empty bundle for write-from-scratch use. The revision must
// be 2 for BND2 and 3..5 for BNDL.
func New(magic MagicVersion, revision uint32, platform Platform, flags Flags) (*Bundle, error) {
	switch magic {
	case BND2:
		if revision != 2 {
			return nil, fmt.Errorf("%w: bnd2 requires revision 2, got %d", ErrLogic, revision)
		}
	case BNDL:
		if revision < 3 || revision > 5 {
			return nil, fmt.Errorf("%w: bndl requires revision 3..5, got %d", ErrLogic, revision)
		}
	default:
		return nil, fmt.Errorf("%w: unknown magic version %d", ErrLogic, magic)
	}
	b := &Bundle{
		magicVersion:   magic,
		revisionNumber: revision,
		platform:       platform,
		flags:          flags,
	}
	b.reset()
	return b, nil
}

func (b *Bundle) reset() {
	b.resources = make(map[uint32]*Resource)
	b.debugInfo = make(map[uint32]DebugInfo)
	b.outOfLineDeps = make(map[uint32][]Dependency)
}

func (b *Bundle) MagicVersion() MagicVersion { return b.magicVersion }
func (b *Bundle) RevisionNumber() uint32     { return b.revisionNumber }
func (b *Bundle) Platform() Platform         { return b.platform }
func (b *Bundle) Flags() Flags               { return b.flags }
func (b *Bundle) ResourceCount() int         { return len(b.resources) }
func (b *Bundle) DebugInfoCount() int        { return len(b.debugInfo) }

// Load reads a bundle file, dispatching on the four-byte magic.
func (b *Bundle) Load(name string) error {
	data, err := os.ReadFile(name)
	if err != nil {
		return fmt.Errorf("reading bundle file: %w", err)
	}
	return b.LoadBytes(data)
}

// LoadBytes parses a bundle from an in-memory image.
func (b *Bundle) LoadBytes(data []byte) error {
	if len(data) < 4 {
		return fmt.Errorf("%w: file shorter than magic", ErrInvalidFormat)
	}
	r := binio.NewReader(data)
	switch r.String(4) {
	case "bnd2":
		b.magicVersion = BND2
		return b.loadBND2(r)
	case "bndl":
		b.magicVersion = BNDL
		return b.loadBNDL(r)
	}
	return fmt.Errorf("%w: unknown magic %q", ErrInvalidFormat, string(data[:4]))
}

// Save writes the bundle according to its magic version.
func (b *Bundle) Save(name string) error {
	data, err := b.SaveBytes()
	if err != nil {
		return err
	}
	if err := os.WriteFile(name, data, 0644); err != nil {
		return fmt.Errorf("writing bundle file: %w", err)
	}
	return nil
}

// SaveBytes serializes the bundle to an in-memory image.
func (b *Bundle) SaveBytes() ([]byte, error) {
	switch b.magicVersion {
	case BND2:
		return b.saveBND2()
	case BNDL:
		return b.saveBNDL()
	}
	return nil, fmt.Errorf("%w: bundle has no magic version", ErrLogic)
}

// GetDebugInfo returns the debug-name entry for a resource ID, if the table
// has one. The debug table and the resource map may disagree in keys.
func (b *Bundle) GetDebugInfo(id uint32) (DebugInfo, bool) {
	info, ok := b.debugInfo[id]
	return info, ok
}

func (b *Bundle) GetDebugInfoByName(name string) (DebugInfo, bool) {
	return b.GetDebugInfo(HashResourceName(name))
}

// GetResourceType returns the type tag of a resource.
func (b *Bundle) GetResourceType(id uint32) (ResourceType, bool) {
	res, ok := b.resources[id]
	if !ok {
		return 0, false
	}
	return res.Info.ResourceType, true
}

func (b *Bundle) GetResourceTypeByName(name string) (ResourceType, bool) {
	return b.GetResourceType(HashResourceName(name))
}

// GetBinary returns the uncompressed payload of a single block slot, or nil
// when the slot is empty.
func (b *Bundle) GetBinary(id uint32, slot int) ([]byte, error) {
	if slot < 0 || slot > 2 {
		return nil, fmt.Errorf("%w: block slot %d out of range", ErrLogic, slot)
	}
	res, ok := b.resources[id]
	if !ok {
		return nil, fmt.Errorf("%w: unknown resource %s", ErrLogic, fmtHex32(id))
	}
	return b.blockPayload(&res.Blocks[slot])
}

func (b *Bundle) GetBinaryByName(name string, slot int) ([]byte, error) {
	return b.GetBinary(HashResourceName(name), slot)
}

// blockPayload returns an owned uncompressed copy of a block's payload,
// inflating when the block is stored compressed.
func (b *Bundle) blockPayload(blk *Block) ([]byte, error) {
	if blk.Empty() {
		return nil, nil
	}
	if blk.CompressedSize > 0 {
		return uncompressBlock(blk.Data, blk.UncompressedSize)
	}
	out := make([]byte, len(blk.Data))
	copy(out, blk.Data)
	return out, nil
}

// GetData returns the editable view of a resource: per-block uncompressed
// payloads, alignments and the dependency list. For BND2 the dependencies
// are parsed out of the tail of block 0 and the returned block 0 excludes
// that tail; for BNDL they come from the out-of-line dependency section.
func (b *Bundle) GetData(id uint32) (*EntryData, error) {
	res, ok := b.resources[id]
	if !ok {
		return nil, fmt.Errorf("%w: unknown resource %s", ErrLogic, fmtHex32(id))
	}

	data := &EntryData{}
	for i := range res.Blocks {
		payload, err := b.blockPayload(&res.Blocks[i])
		if err != nil {
			return nil, fmt.Errorf("resource %s block %d: %w", fmtHex32(id), i, err)
		}
		data.Blocks[i] = payload
		data.Alignments[i] = res.Blocks[i].UncompressedAlignment
		if data.Alignments[i] == 0 {
			data.Alignments[i] = 1
		}
	}

	switch b.magicVersion {
	case BND2:
		if res.Info.NumberOfDependencies > 0 && res.Info.DependenciesOffset > 0 {
			deps, err := parseInlineDependencies(data.Blocks[0], res.Info.DependenciesOffset,
				int(res.Info.NumberOfDependencies), b.platform.BigEndian())
			if err != nil {
				return nil, fmt.Errorf("resource %s: %w", fmtHex32(id), err)
			}
			data.Dependencies = deps
			data.Blocks[0] = data.Blocks[0][:res.Info.DependenciesOffset]
		}
	case BNDL:
		if deps := b.outOfLineDeps[id]; len(deps) > 0 {
			data.Dependencies = append([]Dependency(nil), deps...)
		}
	}
	return data, nil
}

func (b *Bundle) GetDataByName(name string) (*EntryData, error) {
	return b.GetData(HashResourceName(name))
}

// AddResource inserts a new resource. It fails if the ID is zero or already
// present, or if the dependency list does not fit the 16-bit count.
func (b *Bundle) AddResource(id uint32, data *EntryData, resourceType ResourceType) error {
	if id == 0 {
		return fmt.Errorf("%w: resource ID must be non-zero", ErrLogic)
	}
	if _, exists := b.resources[id]; exists {
		return fmt.Errorf("%w: resource %s already exists", ErrLogic, fmtHex32(id))
	}
	res := &Resource{}
	res.Info.ResourceType = resourceType
	if err := b.rebuildResource(id, res, data); err != nil {
		return err
	}
	b.resources[id] = res
	return nil
}

func (b *Bundle) AddResourceByName(name string, data *EntryData, resourceType ResourceType) error {
	return b.AddResource(HashResourceName(name), data, resourceType)
}

// AddDebugInfo inserts a debug-name entry and marks the bundle as carrying a
// resource string table. It fails if the ID already has an entry.
func (b *Bundle) AddDebugInfo(id uint32, name, typeName string) error {
	if _, exists := b.debugInfo[id]; exists {
		return fmt.Errorf("%w: debug info for %s already exists", ErrLogic, fmtHex32(id))
	}
	b.debugInfo[id] = DebugInfo{Name: name, TypeName: typeName}
	b.flags |= HasResourceStringTable
	return nil
}

func (b *Bundle) AddDebugInfoByName(name, typeName string) error {
	return b.AddDebugInfo(HashResourceName(name), name, typeName)
}

// ReplaceResource swaps the payloads and dependencies of an existing
// resource. The stored checksum is opaque and is cleared rather than
// recomputed.
func (b *Bundle) ReplaceResource(id uint32, data *EntryData) error {
	res, ok := b.resources[id]
	if !ok {
		return fmt.Errorf("%w: unknown resource %s", ErrLogic, fmtHex32(id))
	}
	return b.rebuildResource(id, res, data)
}

func (b *Bundle) ReplaceResourceByName(name string, data *EntryData) error {
	return b.ReplaceResource(HashResourceName(name), data)
}

// rebuildResource fills a resource from an EntryData: validates alignments,
// folds the dependency list into block 0 (BND2) or the out-of-line map
// (BNDL), and recompresses payloads when the bundle is compressed.
func (b *Bundle) rebuildResource(id uint32, res *Resource, data *EntryData) error {
	if len(data.Dependencies) > maxDependencies {
		return fmt.Errorf("%w: %d dependencies exceed the 16-bit count", ErrLogic, len(data.Dependencies))
	}

	var payloads [3][]byte
	var alignments [3]uint32
	for i := range payloads {
		payloads[i] = data.Blocks[i]
		align := data.Alignments[i]
		if align == 0 {
			align = 1
		}
		if align&(align-1) != 0 {
			return fmt.Errorf("%w: block %d alignment %d is not a power of two", ErrLogic, i, align)
		}
		if log2u32(align) > 0xF {
			return fmt.Errorf("%w: block %d alignment %d does not fit the 4-bit exponent", ErrLogic, i, align)
		}
		alignments[i] = align
	}

	res.Info.Checksum = 0
	res.Info.DependenciesOffset = 0
	res.Info.NumberOfDependencies = 0

	if b.magicVersion == BND2 {
		if len(data.Dependencies) > 0 {
			block0 := append([]byte(nil), payloads[0]...)
			if rem := len(block0) % 16; rem != 0 {
				block0 = append(block0, make([]byte, 16-rem)...)
			}
			res.Info.DependenciesOffset = uint32(len(block0))
			dw := binio.NewWriter()
			dw.SetBigEndian(b.platform.BigEndian())
			for _, dep := range data.Dependencies {
				writeDependency(dw, dep)
			}
			payloads[0] = append(block0, dw.Bytes()...)
		}
	} else {
		if len(data.Dependencies) > 0 {
			b.outOfLineDeps[id] = append([]Dependency(nil), data.Dependencies...)
		} else {
			delete(b.outOfLineDeps, id)
		}
	}
	res.Info.NumberOfDependencies = uint16(len(data.Dependencies))

	for i := range res.Blocks {
		blk := &res.Blocks[i]
		if len(payloads[i]) == 0 {
			*blk = Block{UncompressedAlignment: 1}
			continue
		}
		blk.UncompressedSize = uint32(len(payloads[i]))
		blk.UncompressedAlignment = alignments[i]
		if b.flags.Has(Compressed) {
			compressed, err := compressBlock(payloads[i])
			if err != nil {
				return fmt.Errorf("compressing block %d of %s: %w", i, fmtHex32(id), err)
			}
			blk.CompressedSize = uint32(len(compressed))
			blk.Data = compressed
		} else {
			blk.CompressedSize = 0
			blk.Data = append([]byte(nil), payloads[i]...)
		}
	}
	return nil
}

// ListResourceIDs returns every resource ID in ascending order.
func (b *Bundle) ListResourceIDs() []uint32 {
	ids := make([]uint32, 0, len(b.resources))
	for id := range b.resources {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ListResourceIDsByType groups resource IDs by type tag, each group in
// ascending order.
func (b *Bundle) ListResourceIDsByType() map[ResourceType][]uint32 {
	byType := make(map[ResourceType][]uint32)
	for _, id := range b.ListResourceIDs() {
		t := b.resources[id].Info.ResourceType
		byType[t] = append(byType[t], id)
	}
	return byType
}

// DebugTableXML renders the current debug-name table in its on-disk XML
// shape.
func (b *Bundle) DebugTableXML() string {
	return buildResourceStringTable(b.debugInfo)
}

// writeDependency emits the 16-byte on-disk dependency record: the ID
// widened to 64 bits, the internal offset, and padding to the 8-byte record
// alignment.
func writeDependency(w *binio.Writer, dep Dependency) {
	w.U64(uint64(dep.ResourceID))
	w.U32(dep.InternalOffset)
	w.AlignTo(8)
}

// readDependency consumes one 16-byte dependency record.
func readDependency(r *binio.Reader) Dependency {
	dep := Dependency{
		ResourceID:     uint32(r.U64()),
		InternalOffset: r.U32(),
	}
	r.AlignTo(8)
	return dep
}

// parseInlineDependencies decodes the dependency list appended to the tail
// of an uncompressed block 0 (the BND2 scheme).
func parseInlineDependencies(block0 []byte, offset uint32, count int, bigEndian bool) ([]Dependency, error) {
	if int(offset) > len(block0) {
		return nil, fmt.Errorf("%w: dependency offset %d beyond block of %d bytes",
			ErrCorruptPayload, offset, len(block0))
	}
	r := binio.NewReader(block0)
	r.SetBigEndian(bigEndian)
	r.Seek(int(offset))
	deps := make([]Dependency, 0, count)
	for i := 0; i < count; i++ {
		deps = append(deps, readDependency(r))
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("%w: truncated dependency list: %v", ErrCorruptPayload, err)
	}
	return deps, nil
}

func log2u32(v uint32) uint32 {
	var n uint32
	for v > 1 {
		v >>= 1
		n++
	}
	return n
}
