package shape

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/gridkit/compute/element"
)

func scalarF32(t *testing.T) *element.Element {
	t.Helper()
	return element.MustNew(element.Field{Name: "v", Kind: element.KindF32, Vector: 1, ArraySize: 1})
}

func buildShape(t *testing.T, reg *Registry, req Request) *Shape {
	t.Helper()
	s, err := reg.Build(req)
	if err != nil {
		t.Fatalf("Build(%+v) error = %v", req, err)
	}
	return s
}

func TestLevelsForDim(t *testing.T) {
	tests := []struct {
		dim  uint32
		want int
	}{
		{0, 0},
		{1, 1},
		{2, 2},
		{3, 3},
		{4, 3},
		{5, 4},
		{8, 4},
		{9, 5},
		{16, 5},
		{1 << 20, 21},
	}
	for _, tt := range tests {
		if got := levelsForDim(tt.dim); got != tt.want {
			t.Errorf("levelsForDim(%d) = %d, want %d", tt.dim, got, tt.want)
		}
	}
}

func TestLayoutNonMip(t *testing.T) {
	reg := NewRegistry(nil)
	s := buildShape(t, reg, Request{Element: scalarF32(t), DimX: 17, DimY: 3})

	if s.LevelCount() != 1 {
		t.Fatalf("LevelCount() = %d, want 1", s.LevelCount())
	}
	lv := s.Level(0)
	if lv.X != 17 || lv.Y != 3 || lv.Z != 0 || lv.Offset != 0 {
		t.Errorf("level 0 = %+v, want {17 3 0 0}", lv)
	}
	if s.TotalSizeBytes() != 17*3*4 {
		t.Errorf("TotalSizeBytes() = %d, want %d", s.TotalSizeBytes(), 17*3*4)
	}
	if s.MipChainSizeBytes() != s.TotalSizeBytes() {
		t.Errorf("mip chain %d != total %d without faces", s.MipChainSizeBytes(), s.TotalSizeBytes())
	}
}

func TestLayoutMipPyramid(t *testing.T) {
	reg := NewRegistry(nil)
	s := buildShape(t, reg, Request{Element: scalarF32(t), DimX: 8, DimY: 4, DimZ: 1, MipEnabled: true})

	wantLevels := []Level{
		{X: 8, Y: 4, Z: 1, Offset: 0},
		{X: 4, Y: 2, Z: 1, Offset: 128},
		{X: 2, Y: 1, Z: 1, Offset: 160},
		{X: 1, Y: 1, Z: 1, Offset: 168},
	}
	if s.LevelCount() != len(wantLevels) {
		t.Fatalf("LevelCount() = %d, want %d", s.LevelCount(), len(wantLevels))
	}
	for i, want := range wantLevels {
		if got := s.Level(i); got != want {
			t.Errorf("level %d = %+v, want %+v", i, got, want)
		}
	}

	// Per-level footprints must sum to the chain size.
	var sum uint64
	for _, lv := range s.Levels() {
		sum += uint64(lv.X) * uint64(max(lv.Y, 1)) * uint64(max(lv.Z, 1)) * 4
	}
	if sum != s.MipChainSizeBytes() {
		t.Errorf("footprint sum %d != chain size %d", sum, s.MipChainSizeBytes())
	}
	if s.MipChainSizeBytes() != 172 {
		t.Errorf("MipChainSizeBytes() = %d, want 172", s.MipChainSizeBytes())
	}
}

func TestLayoutFacesMultiplyBySix(t *testing.T) {
	for _, mip := range []bool{false, true} {
		reg := NewRegistry(nil)
		elem := scalarF32(t)
		plain := buildShape(t, reg, Request{Element: elem, DimX: 16, DimY: 16, MipEnabled: mip})
		faced := buildShape(t, reg, Request{Element: elem, DimX: 16, DimY: 16, MipEnabled: mip, FacesEnabled: true})

		if faced.TotalSizeBytes() != 6*plain.TotalSizeBytes() {
			t.Errorf("mip=%t: faced total %d, want 6*%d", mip, faced.TotalSizeBytes(), plain.TotalSizeBytes())
		}
		if faced.MipChainSizeBytes() != plain.MipChainSizeBytes() {
			t.Errorf("mip=%t: faces must not change the chain size", mip)
		}
	}
}

func TestLayoutZeroAxisStaysZero(t *testing.T) {
	reg := NewRegistry(nil)
	s := buildShape(t, reg, Request{Element: scalarF32(t), DimX: 8, MipEnabled: true})

	if s.LevelCount() != 4 {
		t.Fatalf("LevelCount() = %d, want 4", s.LevelCount())
	}
	for i := 0; i < s.LevelCount(); i++ {
		lv := s.Level(i)
		if lv.Y != 0 || lv.Z != 0 {
			t.Errorf("level %d = %+v, zero axes must stay zero", i, lv)
		}
	}
	// 8 + 4 + 2 + 1 cells of 4 bytes.
	if s.MipChainSizeBytes() != 60 {
		t.Errorf("MipChainSizeBytes() = %d, want 60", s.MipChainSizeBytes())
	}
}

func TestOffsetAtUsesLevelExtents(t *testing.T) {
	reg := NewRegistry(nil)
	s := buildShape(t, reg, Request{Element: scalarF32(t), DimX: 8, DimY: 4, DimZ: 1, MipEnabled: true})

	// Level 1 is 4x2x1 at byte offset 128; cell (1,1) is the fifth cell.
	if got := s.OffsetAt(1, 1, 1, 0); got != 148 {
		t.Errorf("OffsetAt(1,1,1,0) = %d, want 148", got)
	}
	if got := s.OffsetAt2D(1, 1, 1); got != 148 {
		t.Errorf("OffsetAt2D(1,1,1) = %d, want 148", got)
	}
	if got := s.OffsetAt1D(0, 7); got != 28 {
		t.Errorf("OffsetAt1D(0,7) = %d, want 28", got)
	}
	if got := s.OffsetAt(0, 0, 0, 0); got != 0 {
		t.Errorf("OffsetAt(0,0,0,0) = %d, want 0", got)
	}
}

func TestElementCount(t *testing.T) {
	reg := NewRegistry(nil)
	tests := []struct {
		req  Request
		want uint32
	}{
		{Request{DimX: 8, DimY: 4, DimZ: 2}, 64},
		{Request{DimX: 5}, 5},
		{Request{DimX: 7, DimZ: 3}, 21},
		{Request{}, 0},
	}
	for _, tt := range tests {
		tt.req.Element = scalarF32(t)
		s := buildShape(t, reg, tt.req)
		if got := s.ElementCount(); got != tt.want {
			t.Errorf("ElementCount() for %dx%dx%d = %d, want %d",
				tt.req.DimX, tt.req.DimY, tt.req.DimZ, got, tt.want)
		}
	}
}

func TestIsPow2(t *testing.T) {
	reg := NewRegistry(nil)
	tests := []struct {
		x, y, z uint32
		want    bool
	}{
		{8, 4, 1, true},
		{8, 0, 0, true},
		{0, 0, 0, true},
		{6, 4, 0, false},
		{8, 4, 3, false},
	}
	for _, tt := range tests {
		s := buildShape(t, reg, Request{Element: scalarF32(t), DimX: tt.x, DimY: tt.y, DimZ: tt.z})
		if got := s.IsPow2(); got != tt.want {
			t.Errorf("IsPow2() for %dx%dx%d = %t, want %t", tt.x, tt.y, tt.z, got, tt.want)
		}
	}
}

func TestAttribDerivation(t *testing.T) {
	elem := element.MustNew(
		element.Field{Name: "position", Kind: element.KindF32, Vector: 3, ArraySize: 1},
		element.Field{Name: "#pad", Kind: element.KindU8, Vector: 4, ArraySize: 1},
		element.Field{Name: "color", Kind: element.KindU8, Vector: 4, ArraySize: 1},
		element.Field{Name: "bones", Kind: element.KindU16, Vector: 1, ArraySize: 4},
		element.Field{Name: "flags", Kind: element.KindU32, Vector: 1, ArraySize: 1},
	)
	reg := NewRegistry(nil)
	s := buildShape(t, reg, Request{Element: elem, DimX: 4})

	attribs := s.Attribs()
	// #pad is padding, bones is arrayed, flags has no render-API code.
	want := []VertexAttrib{
		{Name: "ATTRIB_position", Type: GLFloat, Size: 3, Offset: 0, Normalized: false},
		{Name: "ATTRIB_color", Type: GLUnsignedByte, Size: 4, Offset: 16, Normalized: true},
	}
	if len(attribs) != len(want) {
		t.Fatalf("got %d attribs, want %d: %+v", len(attribs), len(want), attribs)
	}
	for i := range want {
		if attribs[i] != want[i] {
			t.Errorf("attrib %d = %+v, want %+v", i, attribs[i], want[i])
		}
	}
}

func TestAttribTypeCodes(t *testing.T) {
	tests := []struct {
		kind element.Kind
		code uint32
		norm bool
	}{
		{element.KindF32, GLFloat, false},
		{element.KindU8, GLUnsignedByte, true},
		{element.KindU16, GLUnsignedShort, true},
		{element.KindI8, GLByte, true},
		{element.KindI16, GLShort, true},
	}
	reg := NewRegistry(nil)
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			elem := element.MustNew(element.Field{Name: "a", Kind: tt.kind, Vector: 1, ArraySize: 1})
			s := buildShape(t, reg, Request{Element: elem, DimX: 1})
			attribs := s.Attribs()
			if len(attribs) != 1 {
				t.Fatalf("got %d attribs, want 1", len(attribs))
			}
			if attribs[0].Type != tt.code {
				t.Errorf("type code = %#x, want %#x", attribs[0].Type, tt.code)
			}
			if attribs[0].Normalized != tt.norm {
				t.Errorf("normalized = %t, want %t", attribs[0].Normalized, tt.norm)
			}
		})
	}
}

func TestLogDebug(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	reg := NewRegistry(nil)
	s := buildShape(t, reg, Request{Element: scalarF32(t), DimX: 8, DimY: 4, DimZ: 1, MipEnabled: true})
	s.SetName("probe")
	s.LogDebug(logger)

	// One layout line plus one per level.
	if got := logs.Len(); got != 1+s.LevelCount() {
		t.Fatalf("logged %d entries, want %d", got, 1+s.LevelCount())
	}
	first := logs.All()[0]
	if first.Message != "shape layout" {
		t.Errorf("first message = %q", first.Message)
	}

	s.LogDebug(nil) // must not panic
}
