package shape

import (
	"io"

	"github.com/gridkit/compute/element"
	"github.com/gridkit/compute/errors"
	"github.com/gridkit/compute/internal/stream"
)

// streamClassID is the leading tag of a serialized shape record.
const streamClassID uint32 = 3

// Write serializes the shape: class tag, name, the nested element
// record, extents, and the two structure flags. Level tables and sizes
// are derived state and are recomputed on load.
func Write(w io.Writer, s *Shape) error {
	sw := stream.NewWriter(w)
	sw.U32(streamClassID)
	sw.String(s.name)
	if err := sw.Err(); err != nil {
		return err
	}

	if err := element.Write(w, s.elem); err != nil {
		return err
	}

	sw.U32(s.dimX)
	sw.U32(s.dimY)
	sw.U32(s.dimZ)
	sw.Bool(s.mip)
	sw.Bool(s.faces)
	return sw.Err()
}

// Read deserializes a shape record and interns it into the registry. A
// record structurally matching an interned shape returns that instance
// with its count bumped; the record's name transfers onto an unnamed
// match. A mismatched leading tag aborts with no new arena entries.
func Read(r io.Reader, reg *Registry) (*Shape, error) {
	sr := stream.NewReader(r)
	tag := sr.U32()
	if err := sr.Err(); err != nil {
		return nil, errors.Deserialization("shape", err)
	}
	if tag != streamClassID {
		return nil, errors.BadStreamTag("shape", tag, streamClassID)
	}

	name := sr.String()
	if err := sr.Err(); err != nil {
		return nil, errors.Deserialization("shape", err)
	}

	elem, err := element.Read(r)
	if err != nil {
		return nil, errors.Deserialization("shape", err)
	}

	x := sr.U32()
	y := sr.U32()
	z := sr.U32()
	mip := sr.Bool()
	faces := sr.Bool()
	if err := sr.Err(); err != nil {
		return nil, errors.Deserialization("shape", err)
	}

	s, err := reg.buildStructural(Request{
		Element:      elem,
		DimX:         x,
		DimY:         y,
		DimZ:         z,
		MipEnabled:   mip,
		FacesEnabled: faces,
	})
	if err != nil {
		return nil, err
	}
	if name != "" && s.name == "" {
		s.name = name
	}
	return s, nil
}
