package binio

import "encoding/binary"

// Writer builds an in-memory byte buffer with a toggleable byte order. The
// central primitive for offset tables is Reserve32/Patch32: reserve four
// bytes now, patch the value once the target offset is known. Tokens are
// plain byte offsets.
type Writer struct {
	data      []byte
	bigEndian bool
}

func NewWriter() *Writer {
	return &Writer{}
}

func (w *Writer) SetBigEndian(big bool) { w.bigEndian = big }

func (w *Writer) BigEndian() bool { return w.bigEndian }

func (w *Writer) Offset() int { return len(w.data) }

func (w *Writer) Bytes() []byte { return w.data }

func (w *Writer) order() interface {
	binary.ByteOrder
	binary.AppendByteOrder
} {
	if w.bigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

func (w *Writer) U8(v uint8) {
	w.data = append(w.data, v)
}

func (w *Writer) U16(v uint16) {
	w.data = w.order().AppendUint16(w.data, v)
}

func (w *Writer) U32(v uint32) {
	w.data = w.order().AppendUint32(w.data, v)
}

func (w *Writer) U64(v uint64) {
	w.data = w.order().AppendUint64(w.data, v)
}

func (w *Writer) Write(b []byte) {
	w.data = append(w.data, b...)
}

func (w *Writer) WriteString(s string) {
	w.data = append(w.data, s...)
}

// AlignTo zero-pads the buffer to the next multiple of n.
func (w *Writer) AlignTo(n int) {
	if n <= 1 {
		return
	}
	if rem := len(w.data) % n; rem != 0 {
		w.data = append(w.data, make([]byte, n-rem)...)
	}
}

// Reserve32 appends four zero bytes and returns their offset as a patch
// token for Patch32.
func (w *Writer) Reserve32() int {
	off := len(w.data)
	w.data = append(w.data, 0, 0, 0, 0)
	return off
}

// Patch32 writes v at a token previously returned by Reserve32, using the
// writer's current byte order.
func (w *Writer) Patch32(token int, v uint32) {
	w.order().PutUint32(w.data[token:token+4], v)
}
