// Package stream implements the little-endian record codec used by the
// element and shape serialization formats. Both the Writer and Reader are
// sticky: the first error latches and every later operation is a no-op, so
// record code can be written straight-line and checked once.
package stream

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Strings longer than this abort the read; a corrupt length prefix must
// not turn into a giant allocation.
const maxStringLen = 1 << 20

// Writer encodes record fields to an underlying io.Writer.
type Writer struct {
	w       io.Writer
	err     error
	scratch [8]byte
}

// NewWriter creates a record writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Err returns the first error encountered, if any.
func (w *Writer) Err() error {
	return w.err
}

func (w *Writer) write(p []byte) {
	if w.err != nil {
		return
	}
	_, w.err = w.w.Write(p)
}

// U8 writes one byte.
func (w *Writer) U8(v uint8) {
	w.scratch[0] = v
	w.write(w.scratch[:1])
}

// U32 writes a little-endian uint32.
func (w *Writer) U32(v uint32) {
	binary.LittleEndian.PutUint32(w.scratch[:4], v)
	w.write(w.scratch[:4])
}

// U64 writes a little-endian uint64.
func (w *Writer) U64(v uint64) {
	binary.LittleEndian.PutUint64(w.scratch[:8], v)
	w.write(w.scratch[:8])
}

// Bool writes a u8 0/1.
func (w *Writer) Bool(v bool) {
	if v {
		w.U8(1)
	} else {
		w.U8(0)
	}
}

// String writes a u32 length prefix followed by the raw bytes.
func (w *Writer) String(s string) {
	w.U32(uint32(len(s)))
	w.write([]byte(s))
}

// Reader decodes record fields from an underlying io.Reader.
type Reader struct {
	r       io.Reader
	err     error
	scratch [8]byte
}

// NewReader creates a record reader.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Err returns the first error encountered, if any.
func (r *Reader) Err() error {
	return r.err
}

func (r *Reader) read(p []byte) bool {
	if r.err != nil {
		return false
	}
	_, r.err = io.ReadFull(r.r, p)
	return r.err == nil
}

// U8 reads one byte.
func (r *Reader) U8() uint8 {
	if !r.read(r.scratch[:1]) {
		return 0
	}
	return r.scratch[0]
}

// U32 reads a little-endian uint32.
func (r *Reader) U32() uint32 {
	if !r.read(r.scratch[:4]) {
		return 0
	}
	return binary.LittleEndian.Uint32(r.scratch[:4])
}

// U64 reads a little-endian uint64.
func (r *Reader) U64() uint64 {
	if !r.read(r.scratch[:8]) {
		return 0
	}
	return binary.LittleEndian.Uint64(r.scratch[:8])
}

// Bool reads a u8 and reports it as non-zero.
func (r *Reader) Bool() bool {
	return r.U8() != 0
}

// String reads a u32 length prefix followed by the raw bytes.
func (r *Reader) String() string {
	n := r.U32()
	if r.err != nil {
		return ""
	}
	if n > maxStringLen {
		r.err = fmt.Errorf("string length %d exceeds limit", n)
		return ""
	}
	buf := make([]byte, n)
	if !r.read(buf) {
		return ""
	}
	return string(buf)
}
