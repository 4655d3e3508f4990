package bundle

import (
	"fmt"
	"log/slog"

	"github.com/burnoutmods/bndl/internal/binio"
)

// loadBND2 parses the modern PC layout. The reader is positioned just past
// the magic.
func (b *Bundle) loadBND2(r *binio.Reader) error {
	b.reset()

	revision := r.U32()
	b.platform = Platform(r.U32())
	r.SetBigEndian(b.platform.BigEndian())
	if r.BigEndian() {
		// The revision word was read before the platform fixed the byte
		// order.
		revision = revision<<24 | revision<<8&0xFF0000 | revision>>8&0xFF00 | revision>>24
	}
	if revision != 2 {
		return fmt.Errorf("%w: bnd2 revision %d, want 2", ErrInvalidFormat, revision)
	}
	b.revisionNumber = revision

	rstOffset := r.U32()
	numEntries := r.U32()
	idBlockOffset := r.U32()
	var dataBlockOffsets [3]uint32
	for i := range dataBlockOffsets {
		dataBlockOffsets[i] = r.U32()
	}
	b.flags = Flags(r.U32())
	if err := r.Err(); err != nil {
		return fmt.Errorf("%w: truncated header: %v", ErrInvalidFormat, err)
	}

	// The final 8 header bytes are padding; the seek to the ID block skips
	// them implicitly.
	r.Seek(int(idBlockOffset))
	compressed := b.flags.Has(Compressed)
	for i := uint32(0); i < numEntries; i++ {
		id := uint32(r.U64())
		if id == 0 {
			return fmt.Errorf("%w: entry %d has zero resource ID", ErrInvalidFormat, i)
		}
		res := &Resource{}
		res.Info.Checksum = uint32(r.U64())

		for j := range res.Blocks {
			sizeWord := r.U32()
			res.Blocks[j].UncompressedSize = sizeWord & ^(uint32(0xF) << 28)
			res.Blocks[j].UncompressedAlignment = 1 << (sizeWord >> 28)
		}
		for j := range res.Blocks {
			res.Blocks[j].CompressedSize = r.U32()
		}
		for j := range res.Blocks {
			offset := r.U32()
			blk := &res.Blocks[j]
			readSize := blk.UncompressedSize
			if compressed {
				readSize = blk.CompressedSize
			}
			if readSize == 0 {
				*blk = Block{UncompressedAlignment: 1}
				continue
			}
			dataReader := r.Copy()
			dataReader.Seek(int(dataBlockOffsets[j] + offset))
			blk.Data = dataReader.Bytes(int(readSize))
			if err := dataReader.Err(); err != nil {
				return fmt.Errorf("%w: entry %s block %d payload: %v",
					ErrInvalidFormat, fmtHex32(id), j, err)
			}
		}

		res.Info.DependenciesOffset = r.U32()
		res.Info.ResourceType = ResourceType(r.U32())
		res.Info.NumberOfDependencies = r.U16()
		r.Skip(2)
		if err := r.Err(); err != nil {
			return fmt.Errorf("%w: truncated entry table: %v", ErrInvalidFormat, err)
		}
		b.resources[id] = res
	}

	if b.flags.Has(HasResourceStringTable) {
		r.Seek(int(rstOffset))
		doc := r.CString()
		if r.Err() != nil {
			// The table is advisory; a malformed one does not fail the load.
			slog.Debug("resource string table unreadable", "offset", rstOffset)
		} else {
			b.debugInfo = parseResourceStringTable(doc)
		}
	}
	return nil
}

// saveBND2 emits the modern layout. Only PC output is supported.
func (b *Bundle) saveBND2() ([]byte, error) {
	if b.platform != PC {
		return nil, fmt.Errorf("%w: bnd2 save supports only the PC platform", ErrLogic)
	}

	w := binio.NewWriter()
	w.SetBigEndian(b.platform.BigEndian())

	ids := b.ListResourceIDs()

	w.WriteString("bnd2")
	w.U32(2)
	w.U32(uint32(b.platform))
	rstOffsetTok := w.Reserve32()
	w.U32(uint32(len(ids)))
	idBlockTok := w.Reserve32()
	var dataBlockToks [3]int
	for i := range dataBlockToks {
		dataBlockToks[i] = w.Reserve32()
	}
	// The reserved flag bits are set in every observed file.
	w.U32(uint32(b.flags | ReservedFlagA | ReservedFlagB))
	w.AlignTo(16)

	w.Patch32(rstOffsetTok, uint32(w.Offset()))
	if b.flags.Has(HasResourceStringTable) {
		w.WriteString(b.DebugTableXML())
		w.U8(0)
		w.AlignTo(16)
	}

	w.Patch32(idBlockTok, uint32(w.Offset()))
	compressed := b.flags.Has(Compressed)
	dataOffsetToks := make([][3]int, len(ids))
	for i, id := range ids {
		res := b.resources[id]
		w.U64(uint64(id))
		w.U64(uint64(res.Info.Checksum))
		for j := range res.Blocks {
			blk := &res.Blocks[j]
			w.U32(blk.UncompressedSize | log2u32(alignOrOne(blk.UncompressedAlignment))<<28)
		}
		for j := range res.Blocks {
			w.U32(res.Blocks[j].CompressedSize)
		}
		for j := range res.Blocks {
			dataOffsetToks[i][j] = w.Reserve32()
		}
		w.U32(res.Info.DependenciesOffset)
		w.U32(uint32(res.Info.ResourceType))
		w.U16(res.Info.NumberOfDependencies)
		w.U16(0)
	}

	for j := 0; j < 3; j++ {
		blockStart := w.Offset()
		w.Patch32(dataBlockToks[j], uint32(blockStart))
		for i, id := range ids {
			blk := &b.resources[id].Blocks[j]
			writeSize := blk.UncompressedSize
			if compressed {
				writeSize = blk.CompressedSize
			}
			if writeSize == 0 {
				continue
			}
			w.Patch32(dataOffsetToks[i][j], uint32(w.Offset()-blockStart))
			w.Write(blk.Data)
			if j != 0 && i != len(ids)-1 {
				w.AlignTo(0x80)
			} else {
				w.AlignTo(16)
			}
		}
		if j != 2 {
			w.AlignTo(0x80)
		}
	}
	return w.Bytes(), nil
}

func alignOrOne(a uint32) uint32 {
	if a == 0 {
		return 1
	}
	return a
}
