package element

import (
	"io"

	"github.com/gridkit/compute/errors"
	"github.com/gridkit/compute/internal/stream"
)

// streamClassID is the leading tag of a serialized element record.
const streamClassID uint32 = 2

// Fields beyond this are a corrupt stream, not a real layout.
const maxStreamFields = 4096

// Write serializes the element: class tag, field count, then per field
// the name, kind, vector width, and array size. Offsets are derived
// state and are not written.
func Write(w io.Writer, e *Element) error {
	sw := stream.NewWriter(w)
	sw.U32(streamClassID)
	sw.U32(uint32(len(e.fields)))
	for _, f := range e.fields {
		sw.String(f.Name)
		sw.U32(uint32(f.Kind))
		sw.U32(f.Vector)
		sw.U32(f.ArraySize)
	}
	return sw.Err()
}

// Read deserializes an element record. A mismatched leading tag aborts
// with no partial object.
func Read(r io.Reader) (*Element, error) {
	sr := stream.NewReader(r)
	tag := sr.U32()
	if err := sr.Err(); err != nil {
		return nil, errors.Deserialization("element", err)
	}
	if tag != streamClassID {
		return nil, errors.BadStreamTag("element", tag, streamClassID)
	}

	count := sr.U32()
	if err := sr.Err(); err != nil {
		return nil, errors.Deserialization("element", err)
	}
	if count == 0 || count > maxStreamFields {
		return nil, errors.New(errors.PhaseSerialize, errors.KindDeserialization).
			Detail("element field count %d out of range", count).
			Build()
	}

	fields := make([]Field, count)
	for i := range fields {
		fields[i] = Field{
			Name:      sr.String(),
			Kind:      Kind(sr.U32()),
			Vector:    sr.U32(),
			ArraySize: sr.U32(),
		}
	}
	if err := sr.Err(); err != nil {
		return nil, errors.Deserialization("element", err)
	}

	e, err := New(fields...)
	if err != nil {
		return nil, errors.Deserialization("element", err)
	}
	return e, nil
}
