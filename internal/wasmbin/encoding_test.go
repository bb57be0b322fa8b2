package wasmbin

import (
	"bytes"
	"testing"

	"github.com/tetratelabs/wazero/api"
)

func TestULEB128RoundTrip(t *testing.T) {
	values := []uint32{0, 1, 127, 128, 255, 300, 16384, 0xFFFFFFFF}
	for _, v := range values {
		encoded := EncodeULEB128(v)
		decoded, n := DecodeULEB128(encoded)
		if decoded != v {
			t.Errorf("EncodeULEB128(%d) round-tripped to %d", v, decoded)
		}
		if n != len(encoded) {
			t.Errorf("DecodeULEB128 consumed %d of %d bytes for %d", n, len(encoded), v)
		}
	}
}

func TestULEB128KnownEncodings(t *testing.T) {
	tests := []struct {
		value uint32
		want  []byte
	}{
		{0, []byte{0x00}},
		{127, []byte{0x7f}},
		{128, []byte{0x80, 0x01}},
		{300, []byte{0xac, 0x02}},
	}
	for _, tt := range tests {
		if got := EncodeULEB128(tt.value); !bytes.Equal(got, tt.want) {
			t.Errorf("EncodeULEB128(%d) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestSLEB128KnownEncodings(t *testing.T) {
	tests := []struct {
		value int32
		want  []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{-1, []byte{0x7f}},
		{63, []byte{0x3f}},
		{64, []byte{0xc0, 0x00}},
		{-8, []byte{0x78}},
		{-64, []byte{0x40}},
		{-65, []byte{0xbf, 0x7f}},
	}
	for _, tt := range tests {
		if got := EncodeSLEB128(tt.value); !bytes.Equal(got, tt.want) {
			t.Errorf("EncodeSLEB128(%d) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestDecodeULEB128Truncated(t *testing.T) {
	// A continuation bit with no following byte must not run off the end.
	v, n := DecodeULEB128([]byte{0x80})
	if n != 1 {
		t.Errorf("consumed %d bytes, want 1", n)
	}
	if v != 0 {
		t.Errorf("value = %d, want 0", v)
	}
}

func TestValTypeMapping(t *testing.T) {
	types := []api.ValueType{api.ValueTypeI32, api.ValueTypeI64, api.ValueTypeF32, api.ValueTypeF64}
	for _, vt := range types {
		if got := ParseValType(ValTypeToWasm(vt)); got != vt {
			t.Errorf("value type %v round-tripped to %v", vt, got)
		}
	}
	if ValTypeToWasm(api.ValueTypeI32) != 0x7f {
		t.Error("i32 must encode as 0x7f")
	}
}
