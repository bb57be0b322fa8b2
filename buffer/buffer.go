package buffer

import (
	"honnef.co/go/safeish"

	"github.com/gridkit/compute/shape"
)

// Buffer is a host-side allocation laid out by a shape. The zero value
// is not usable; create buffers with New.
type Buffer struct {
	shape *shape.Shape
	data  []byte
}

// New allocates a buffer for the shape and retains the shape until
// Release.
func New(s *shape.Shape) *Buffer {
	s.Retain()
	return &Buffer{
		shape: s,
		data:  make([]byte, s.TotalSizeBytes()),
	}
}

// Shape returns the layout this buffer was allocated for.
func (b *Buffer) Shape() *shape.Shape { return b.shape }

// Data returns the backing bytes. The slice aliases the buffer; guest
// staging copies in and out of it.
func (b *Buffer) Data() []byte { return b.data }

// SizeBytes returns the allocation size.
func (b *Buffer) SizeBytes() uint64 { return uint64(len(b.data)) }

// ElementCount returns the number of level-0 cells.
func (b *Buffer) ElementCount() uint32 { return b.shape.ElementCount() }

// Release drops the buffer's reference on its shape. The buffer must
// not be used afterwards.
func (b *Buffer) Release() {
	if b.shape != nil {
		b.shape.Release()
		b.shape = nil
	}
	b.data = nil
}

// Float32View reinterprets the backing bytes as float32 values in
// place. Writes through the view are writes to the buffer.
func (b *Buffer) Float32View() []float32 {
	return safeish.SliceCast[[]float32](b.data)
}

// Uint32View reinterprets the backing bytes as uint32 values in place.
func (b *Buffer) Uint32View() []uint32 {
	return safeish.SliceCast[[]uint32](b.data)
}

// Int32View reinterprets the backing bytes as int32 values in place.
func (b *Buffer) Int32View() []int32 {
	return safeish.SliceCast[[]int32](b.data)
}
