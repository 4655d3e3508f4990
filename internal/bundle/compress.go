package bundle

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
)

// compressBlock deflates a payload at best compression. Failures here are
// I/O errors for the surrounding save.
func compressBlock(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("create zlib writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("zlib write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("zlib close: %w", err)
	}
	return buf.Bytes(), nil
}

// uncompressBlock inflates a payload and requires the result to be exactly
// uncompressedSize bytes long.
func uncompressBlock(data []byte, uncompressedSize uint32) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptPayload, err)
	}
	defer r.Close()

	out := make([]byte, uncompressedSize)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, fmt.Errorf("%w: short inflate: %v", ErrCorruptPayload, err)
	}
	var extra [1]byte
	if n, _ := r.Read(extra[:]); n != 0 {
		return nil, fmt.Errorf("%w: inflated past expected %d bytes", ErrCorruptPayload, uncompressedSize)
	}
	return out, nil
}
