package bundle

import (
	"fmt"
	"log/slog"

	"github.com/burnoutmods/bndl/internal/binio"
)

// legacyPlatformWordOffsets are the candidate locations of the platform word
// in a legacy header; its position depends on the platform's slot count, so
// the platform must be probed before an endianness can be committed. The
// word itself is always little-endian.
var legacyPlatformWordOffsets = []int{0x4C, 0x58, 0x64}

func probeLegacyPlatform(r *binio.Reader) (Platform, bool) {
	for _, off := range legacyPlatformWordOffsets {
		p := r.Copy()
		p.SetBigEndian(false)
		p.Seek(off)
		v := Platform(p.U32())
		if p.Err() != nil {
			continue
		}
		switch v {
		case PC, Xbox360, PS3:
			return v, true
		}
	}
	return 0, false
}

// loadBNDL parses the legacy layout. The reader is positioned just past the
// magic.
func (b *Bundle) loadBNDL(r *binio.Reader) error {
	b.reset()
	b.flags = 0

	platform, ok := probeLegacyPlatform(r)
	if !ok {
		return fmt.Errorf("%w: no platform word found in legacy header", ErrInvalidFormat)
	}
	b.platform = platform
	r.SetBigEndian(platform.BigEndian())

	revision := r.U32()
	if revision < 3 || revision > 5 {
		return fmt.Errorf("%w: bndl revision %d, want 3..5", ErrInvalidFormat, revision)
	}
	b.revisionNumber = revision

	numEntries := r.U32()
	blocks := platform.legacyBlockCount()

	legacySizes := make([]uint32, blocks)
	for j := 0; j < blocks; j++ {
		legacySizes[j] = r.U32()
		r.Skip(4) // block alignment, re-derived on save
	}
	r.Skip(blocks * 4) // memory-address words

	idListOffset := r.U32()
	idTableOffset := r.U32()
	r.Skip(4) // dependency-block offset, recovered per resource
	dataStart := r.U32()

	// The literal platform word is little-endian even in big-endian files.
	r.SetBigEndian(false)
	if got := Platform(r.U32()); got != platform {
		return fmt.Errorf("%w: platform word %#x disagrees with probe %#x",
			ErrInvalidFormat, uint32(got), uint32(platform))
	}
	r.SetBigEndian(platform.BigEndian())

	var uncompInfoOffset uint32
	if revision >= 4 {
		if r.U32() != 0 {
			b.flags |= Compressed
		}
		r.Skip(4) // count of compressed resources
		uncompInfoOffset = r.U32()
	}
	if revision >= 5 {
		r.Skip(8)
	}
	if err := r.Err(); err != nil {
		return fmt.Errorf("%w: truncated header: %v", ErrInvalidFormat, err)
	}

	// Per-slot data regions are laid out back to back from the data start.
	regionStart := make([]uint32, blocks)
	base := dataStart
	for j := 0; j < blocks; j++ {
		regionStart[j] = base
		base += legacySizes[j]
	}

	r.Seek(int(idListOffset))
	ids := make([]uint32, numEntries)
	for i := range ids {
		ids[i] = uint32(r.U64())
	}
	if err := r.Err(); err != nil {
		return fmt.Errorf("%w: truncated ID list: %v", ErrInvalidFormat, err)
	}

	compressed := b.flags.Has(Compressed)
	r.Seek(int(idTableOffset))
	for _, id := range ids {
		r.Skip(4) // memory word
		res := &Resource{}
		res.Info.DependenciesOffset = r.U32()
		res.Info.ResourceType = ResourceType(r.U32())

		for j := 0; j < blocks; j++ {
			size := r.U32()
			align := r.U32()
			c := remapLegacySlot(platform, j)
			if c == slotAbsent {
				if size != 0 || align != 1 {
					return fmt.Errorf("%w: entry %s: absent slot %d carries size %d alignment %d",
						ErrInvalidFormat, fmtHex32(id), j, size, align)
				}
				continue
			}
			blk := &res.Blocks[c]
			if compressed {
				blk.CompressedSize = size
			} else {
				blk.UncompressedSize = size
				blk.UncompressedAlignment = align
			}
		}

		for j := 0; j < blocks; j++ {
			offset := r.U32()
			r.Skip(4) // constant 1
			c := remapLegacySlot(platform, j)
			if c == slotAbsent {
				continue
			}
			blk := &res.Blocks[c]
			readSize := blk.UncompressedSize
			if compressed {
				readSize = blk.CompressedSize
			}
			if readSize == 0 {
				*blk = Block{UncompressedAlignment: 1}
				continue
			}
			dataReader := r.Copy()
			dataReader.Seek(int(regionStart[j] + offset))
			blk.Data = dataReader.Bytes(int(readSize))
			if err := dataReader.Err(); err != nil {
				return fmt.Errorf("%w: entry %s block %d payload: %v",
					ErrInvalidFormat, fmtHex32(id), c, err)
			}
		}
		r.Skip(blocks * 4) // memory words
		if err := r.Err(); err != nil {
			return fmt.Errorf("%w: truncated ID table: %v", ErrInvalidFormat, err)
		}
		b.resources[id] = res
	}

	if compressed {
		r.Seek(int(uncompInfoOffset))
		for _, id := range ids {
			res := b.resources[id]
			for j := 0; j < blocks; j++ {
				size := r.U32()
				align := r.U32()
				c := remapLegacySlot(platform, j)
				if c == slotAbsent {
					if size != 0 || align != 1 {
						return fmt.Errorf("%w: entry %s: absent slot %d in uncompressed info",
							ErrInvalidFormat, fmtHex32(id), j)
					}
					continue
				}
				blk := &res.Blocks[c]
				if blk.Empty() {
					continue
				}
				blk.UncompressedSize = size
				blk.UncompressedAlignment = align
			}
		}
		if err := r.Err(); err != nil {
			return fmt.Errorf("%w: truncated uncompressed-size info: %v", ErrInvalidFormat, err)
		}
	}

	for _, id := range ids {
		res := b.resources[id]
		if res.Info.DependenciesOffset == 0 {
			continue
		}
		r.Seek(int(res.Info.DependenciesOffset))
		count := r.U32()
		if count > maxDependencies {
			return fmt.Errorf("%w: entry %s: dependency count %d", ErrInvalidFormat, fmtHex32(id), count)
		}
		if r.U32() != 0 {
			return fmt.Errorf("%w: entry %s: dependency record header", ErrInvalidFormat, fmtHex32(id))
		}
		deps := make([]Dependency, count)
		for i := range deps {
			deps[i] = readDependency(r)
		}
		if err := r.Err(); err != nil {
			return fmt.Errorf("%w: entry %s: truncated dependency list: %v",
				ErrInvalidFormat, fmtHex32(id), err)
		}
		res.Info.NumberOfDependencies = uint16(count)
		b.outOfLineDeps[id] = deps
	}

	b.loadLegacyDebugTable()
	return nil
}

// loadLegacyDebugTable decodes the conventional debug-table resource, if the
// bundle carries one, and erases it from the resource map. The table is
// advisory: decode failures leave the bundle without debug info but do not
// fail the load.
func (b *Bundle) loadLegacyDebugTable() {
	// Criterion files carry the table under the conventional ID; our own
	// legacy writer uses the synthetic ID, so both are probed to keep
	// save/load round-trips closed.
	id := uint32(debugTableResourceID)
	payload, err := b.GetBinary(id, 0)
	if err == nil && payload != nil {
		// The conventional carrier is erased whether or not it decodes.
		defer func() {
			delete(b.resources, id)
			delete(b.outOfLineDeps, id)
		}()
		b.decodeLegacyDebugTable(payload)
		return
	}

	id = syntheticDebugResourceID
	payload, err = b.GetBinary(id, 0)
	if err != nil || payload == nil {
		return
	}
	if b.decodeLegacyDebugTable(payload) {
		delete(b.resources, id)
		delete(b.outOfLineDeps, id)
	}
}

func (b *Bundle) decodeLegacyDebugTable(payload []byte) bool {
	r := binio.NewReader(payload)
	r.SetBigEndian(b.platform.BigEndian())
	length := r.U32()
	doc := r.String(int(length))
	if r.Err() != nil {
		slog.Debug("legacy debug table payload truncated", "length", length)
		return false
	}
	b.debugInfo = parseResourceStringTable(fixupLegacyTable(doc))
	b.flags |= HasResourceStringTable
	return true
}

// saveBNDL emits the legacy layout for the bundle's platform.
func (b *Bundle) saveBNDL() ([]byte, error) {
	compressed := b.flags.Has(Compressed)
	if b.revisionNumber <= 3 && compressed {
		return nil, fmt.Errorf("%w: compressed bndl requires revision 4 or later", ErrLogic)
	}

	_, hasSynthetic := b.resources[syntheticDebugResourceID]
	writeDebug := len(b.debugInfo) > 0 && !compressed && !hasSynthetic
	if writeDebug {
		b.resources[syntheticDebugResourceID] = b.buildSyntheticDebugResource()
		defer delete(b.resources, syntheticDebugResourceID)
	}

	platform := b.platform
	blocks := platform.legacyBlockCount()
	ids := b.ListResourceIDs()

	w := binio.NewWriter()
	w.SetBigEndian(platform.BigEndian())

	w.WriteString("bndl")
	w.U32(b.revisionNumber)
	w.U32(uint32(len(ids)))

	sizeToks := make([]int, blocks)
	alignToks := make([]int, blocks)
	for j := 0; j < blocks; j++ {
		sizeToks[j] = w.Reserve32()
		alignToks[j] = w.Reserve32()
	}
	for j := 0; j < blocks; j++ {
		w.U32(0) // memory-address words
	}
	idListTok := w.Reserve32()
	idTableTok := w.Reserve32()
	importsTok := w.Reserve32()
	dataTok := w.Reserve32()

	w.SetBigEndian(false)
	w.U32(uint32(platform))
	w.SetBigEndian(platform.BigEndian())

	uncompInfoTok := -1
	if b.revisionNumber >= 4 {
		if compressed {
			w.U32(1)
			w.U32(uint32(len(ids)))
		} else {
			w.U32(0)
			w.U32(0)
		}
		uncompInfoTok = w.Reserve32()
	}
	if b.revisionNumber >= 5 {
		w.U32(0)
		w.U32(0)
	}
	w.AlignTo(16)

	w.Patch32(idListTok, uint32(w.Offset()))
	for _, id := range ids {
		w.U64(uint64(id))
	}

	w.Patch32(idTableTok, uint32(w.Offset()))
	depToks := make([]int, len(ids))
	offToks := make([][3]int, len(ids))
	for i, id := range ids {
		res := b.resources[id]
		w.U32(0) // memory word
		depToks[i] = w.Reserve32()
		w.U32(uint32(res.Info.ResourceType))
		for j := 0; j < blocks; j++ {
			c := remapLegacySlot(platform, j)
			if c == slotAbsent {
				w.U32(0)
				w.U32(1)
				continue
			}
			blk := &res.Blocks[c]
			if compressed {
				w.U32(blk.CompressedSize)
			} else {
				w.U32(blk.UncompressedSize)
			}
			w.U32(alignOrOne(blk.UncompressedAlignment))
		}
		offToks[i] = [3]int{-1, -1, -1}
		for j := 0; j < blocks; j++ {
			c := remapLegacySlot(platform, j)
			if c == slotAbsent {
				w.U32(0)
				w.U32(1)
				continue
			}
			offToks[i][c] = w.Reserve32()
			w.U32(1)
		}
		for j := 0; j < blocks; j++ {
			w.U32(0) // memory words
		}
	}

	if compressed && uncompInfoTok >= 0 {
		w.Patch32(uncompInfoTok, uint32(w.Offset()))
		for _, id := range ids {
			res := b.resources[id]
			for j := 0; j < blocks; j++ {
				c := remapLegacySlot(platform, j)
				if c == slotAbsent {
					w.U32(0)
					w.U32(1)
					continue
				}
				blk := &res.Blocks[c]
				w.U32(blk.UncompressedSize)
				w.U32(alignOrOne(blk.UncompressedAlignment))
			}
		}
	}

	w.AlignTo(8)
	w.Patch32(importsTok, uint32(w.Offset()))
	for i, id := range ids {
		deps := b.outOfLineDeps[id]
		if len(deps) == 0 {
			continue
		}
		w.AlignTo(8)
		w.Patch32(depToks[i], uint32(w.Offset()))
		w.U32(uint32(len(deps)))
		w.U32(0)
		for _, dep := range deps {
			writeDependency(w, dep)
		}
	}

	for c := 0; c < 3; c++ {
		blockStart := w.Offset()
		if c == 0 {
			w.Patch32(dataTok, uint32(blockStart))
		}
		for i, id := range ids {
			blk := &b.resources[id].Blocks[c]
			writeSize := blk.UncompressedSize
			if compressed {
				writeSize = blk.CompressedSize
			}
			if writeSize == 0 {
				continue
			}
			w.Patch32(offToks[i][c], uint32(w.Offset()-blockStart))
			w.Write(blk.Data)
		}
		total := uint32(w.Offset() - blockStart)
		align := uint32(1)
		if total > 0 {
			if c == 0 {
				align = 1024
			} else {
				align = 4096
			}
		}
		for j := 0; j < blocks; j++ {
			if remapLegacySlot(platform, j) == c {
				w.Patch32(sizeToks[j], total)
				w.Patch32(alignToks[j], align)
			}
		}
	}
	for j := 0; j < blocks; j++ {
		if remapLegacySlot(platform, j) == slotAbsent {
			w.Patch32(sizeToks[j], 0)
			w.Patch32(alignToks[j], 1)
		}
	}
	return w.Bytes(), nil
}

// buildSyntheticDebugResource wraps the debug XML in the transient TextFile
// resource a legacy save carries it in: a 32-bit length prefix followed by
// the document, in block 0 with alignment 4.
func (b *Bundle) buildSyntheticDebugResource() *Resource {
	doc := b.DebugTableXML()
	pw := binio.NewWriter()
	pw.SetBigEndian(b.platform.BigEndian())
	pw.U32(uint32(len(doc)))
	pw.WriteString(doc)
	payload := pw.Bytes()

	res := &Resource{}
	res.Info.ResourceType = TextFile
	res.Blocks[0] = Block{
		UncompressedSize:      uint32(len(payload)),
		UncompressedAlignment: 4,
		Data:                  payload,
	}
	res.Blocks[1] = Block{UncompressedAlignment: 1}
	res.Blocks[2] = Block{UncompressedAlignment: 1}
	return res
}
