package element

import (
	"fmt"
	"strings"

	"github.com/gridkit/compute/errors"
)

// PaddingMarker prefixes field names that exist only to pad the record
// layout. Padding fields never become GPU attributes.
const PaddingMarker = '#'

// Kind is a scalar data kind.
type Kind int32

const (
	KindNone Kind = iota
	KindF32
	KindF64
	KindI8
	KindI16
	KindI32
	KindI64
	KindU8
	KindU16
	KindU32
	KindU64
	KindBool
)

// kindSizes gives scalar sizes in bytes.
var kindSizes = map[Kind]uint32{
	KindF32:  4,
	KindF64:  8,
	KindI8:   1,
	KindI16:  2,
	KindI32:  4,
	KindI64:  8,
	KindU8:   1,
	KindU16:  2,
	KindU32:  4,
	KindU64:  8,
	KindBool: 1,
}

var kindNames = map[Kind]string{
	KindNone: "none",
	KindF32:  "f32",
	KindF64:  "f64",
	KindI8:   "i8",
	KindI16:  "i16",
	KindI32:  "i32",
	KindI64:  "i64",
	KindU8:   "u8",
	KindU16:  "u16",
	KindU32:  "u32",
	KindU64:  "u64",
	KindBool: "bool",
}

// SizeBytes returns the scalar size of the kind, 0 for invalid kinds.
func (k Kind) SizeBytes() uint32 {
	return kindSizes[k]
}

// Valid reports whether the kind is one of the defined scalar kinds.
func (k Kind) Valid() bool {
	_, ok := kindSizes[k]
	return ok
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int32(k))
}

// Field is one record member. Vector is the component count (1..4);
// ArraySize repeats the whole vector. Offset is assigned by New and
// ignored on input.
type Field struct {
	Name      string
	Kind      Kind
	Vector    uint32
	ArraySize uint32
	Offset    uint32
}

// SizeBytes returns the total byte size of the field.
func (f Field) SizeBytes() uint32 {
	return f.Kind.SizeBytes() * f.Vector * f.ArraySize
}

// IsPadding reports whether the field name carries the padding marker.
func (f Field) IsPadding() bool {
	return len(f.Name) > 0 && f.Name[0] == PaddingMarker
}

// Element is a fixed-layout record descriptor: an ordered field list with
// computed byte offsets and a total size.
type Element struct {
	fields []Field
	size   uint32
}

// New builds an element from the given fields, assigning packed byte
// offsets in declaration order.
func New(fields ...Field) (*Element, error) {
	if len(fields) == 0 {
		return nil, errors.InvalidInput(errors.PhaseLayout, "element needs at least one field")
	}

	e := &Element{fields: make([]Field, len(fields))}
	var offset uint32
	for i, f := range fields {
		if f.Name == "" {
			return nil, errors.InvalidInput(errors.PhaseLayout, fmt.Sprintf("field %d has no name", i))
		}
		if !f.Kind.Valid() {
			return nil, errors.InvalidInput(errors.PhaseLayout, fmt.Sprintf("field %q has invalid kind %d", f.Name, f.Kind))
		}
		if f.Vector < 1 || f.Vector > 4 {
			return nil, errors.InvalidInput(errors.PhaseLayout, fmt.Sprintf("field %q vector size %d out of range 1..4", f.Name, f.Vector))
		}
		if f.ArraySize < 1 {
			return nil, errors.InvalidInput(errors.PhaseLayout, fmt.Sprintf("field %q array size must be at least 1", f.Name))
		}
		f.Offset = offset
		e.fields[i] = f
		offset += f.SizeBytes()
	}
	e.size = offset
	return e, nil
}

// MustNew is New for compile-time-known layouts; it panics on error.
func MustNew(fields ...Field) *Element {
	e, err := New(fields...)
	if err != nil {
		panic(err)
	}
	return e
}

// SizeBytes returns the total record size.
func (e *Element) SizeBytes() uint32 {
	return e.size
}

// FieldCount returns the number of fields.
func (e *Element) FieldCount() int {
	return len(e.fields)
}

// Field returns the field at index i with its computed offset.
func (e *Element) Field(i int) Field {
	return e.fields[i]
}

// Fields returns a copy of the field list.
func (e *Element) Fields() []Field {
	out := make([]Field, len(e.fields))
	copy(out, e.fields)
	return out
}

// Equal reports whether the other element has the same field layout.
// Elements are normally compared by pointer; Equal exists for records
// reconstructed from a stream.
func (e *Element) Equal(o *Element) bool {
	if o == nil || len(e.fields) != len(o.fields) {
		return false
	}
	for i := range e.fields {
		if e.fields[i] != o.fields[i] {
			return false
		}
	}
	return true
}

func (e *Element) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, f := range e.fields {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s:%s", f.Name, f.Kind)
		if f.Vector > 1 {
			fmt.Fprintf(&b, "x%d", f.Vector)
		}
		if f.ArraySize > 1 {
			fmt.Fprintf(&b, "[%d]", f.ArraySize)
		}
	}
	b.WriteByte('}')
	return b.String()
}
