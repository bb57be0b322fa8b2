package element

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/gridkit/compute/errors"
)

func TestCodecRoundTrip(t *testing.T) {
	orig := MustNew(
		Field{Name: "position", Kind: KindF32, Vector: 3, ArraySize: 1},
		Field{Name: "#pad", Kind: KindU8, Vector: 4, ArraySize: 1},
		Field{Name: "bones", Kind: KindU16, Vector: 1, ArraySize: 4},
	)

	var buf bytes.Buffer
	if err := Write(&buf, orig); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.FieldCount() != orig.FieldCount() {
		t.Fatalf("FieldCount() = %d, want %d", got.FieldCount(), orig.FieldCount())
	}
	for i := 0; i < orig.FieldCount(); i++ {
		of, gf := orig.Field(i), got.Field(i)
		if gf != of {
			t.Errorf("field %d = %+v, want %+v", i, gf, of)
		}
	}
	if got.SizeBytes() != orig.SizeBytes() {
		t.Errorf("SizeBytes() = %d, want %d", got.SizeBytes(), orig.SizeBytes())
	}
}

func TestReadBadTag(t *testing.T) {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint32(9)) // not an element record
	binary.Write(&buf, binary.LittleEndian, uint32(1))

	_, err := Read(&buf)
	if err == nil {
		t.Fatal("Read() should fail on a wrong class tag")
	}
	if !errors.IsDeserialization(err) {
		t.Errorf("error kind = %v, want deserialization", err)
	}
}

func TestReadTruncated(t *testing.T) {
	orig := MustNew(Field{Name: "x", Kind: KindF32, Vector: 1, ArraySize: 1})
	var buf bytes.Buffer
	if err := Write(&buf, orig); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	full := buf.Bytes()
	for cut := 1; cut < len(full); cut++ {
		if _, err := Read(bytes.NewReader(full[:cut])); err == nil {
			t.Errorf("Read() of %d/%d bytes should fail", cut, len(full))
		}
	}
}

func TestReadRejectsInvalidField(t *testing.T) {
	// A well-formed stream carrying an out-of-range vector width must
	// be rejected by the same validation New applies.
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, streamClassID)
	binary.Write(&buf, binary.LittleEndian, uint32(1))
	binary.Write(&buf, binary.LittleEndian, uint32(1)) // name length
	buf.WriteByte('x')
	binary.Write(&buf, binary.LittleEndian, uint32(KindF32))
	binary.Write(&buf, binary.LittleEndian, uint32(9)) // vector too wide
	binary.Write(&buf, binary.LittleEndian, uint32(1))

	if _, err := Read(&buf); err == nil {
		t.Fatal("Read() should reject an invalid vector width")
	}
}

func TestReadRejectsAbsurdFieldCount(t *testing.T) {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, streamClassID)
	binary.Write(&buf, binary.LittleEndian, uint32(1<<31))

	if _, err := Read(&buf); err == nil {
		t.Fatal("Read() should reject an absurd field count")
	}
}
