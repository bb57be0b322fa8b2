package shape

import "github.com/gridkit/compute/element"

// Render-API numeric type codes for attribute streams.
const (
	GLByte          uint32 = 0x1400
	GLUnsignedByte  uint32 = 0x1401
	GLShort         uint32 = 0x1402
	GLUnsignedShort uint32 = 0x1403
	GLFloat         uint32 = 0x1406
)

// attribPrefix distinguishes generated attribute names from anything a
// shader might declare on its own.
const attribPrefix = "ATTRIB_"

// VertexAttrib describes one element field as a hardware attribute
// stream: component count, byte offset within the element, render-API
// type code, and whether integer values are normalized on fetch.
type VertexAttrib struct {
	Name       string
	Type       uint32
	Size       uint32
	Offset     uint32
	Normalized bool
}

// deriveAttribs builds the attribute table for an element. A field
// qualifies only if it is not padding, its kind has a render-API code,
// and it is not arrayed. Float fields fetch as-is; everything else is
// normalized.
func deriveAttribs(e *element.Element) []VertexAttrib {
	var attribs []VertexAttrib
	for i := 0; i < e.FieldCount(); i++ {
		f := e.Field(i)
		if f.IsPadding() {
			continue
		}
		code, ok := glTypeCode(f.Kind)
		if !ok {
			continue
		}
		if f.ArraySize != 1 {
			continue
		}
		attribs = append(attribs, VertexAttrib{
			Name:       attribPrefix + f.Name,
			Type:       code,
			Size:       f.Vector,
			Offset:     f.Offset,
			Normalized: f.Kind != element.KindF32,
		})
	}
	return attribs
}

func glTypeCode(k element.Kind) (uint32, bool) {
	switch k {
	case element.KindF32:
		return GLFloat, true
	case element.KindU8:
		return GLUnsignedByte, true
	case element.KindU16:
		return GLUnsignedShort, true
	case element.KindI8:
		return GLByte, true
	case element.KindI16:
		return GLShort, true
	default:
		return 0, false
	}
}
