package shape

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/gridkit/compute/element"
)

// Level is one mip level of a shape: its extents and the byte offset of
// its first cell within the buffer.
type Level struct {
	X, Y, Z uint32
	Offset  uint64
}

// Shape is an immutable buffer layout: element, extents, structure
// flags, and the derived level and attribute tables. Shapes are created
// by a Registry, which interns them, so equal requests share one
// instance and pointer comparison is identity comparison.
type Shape struct {
	elem *element.Element

	dimX, dimY, dimZ uint32
	mip              bool
	faces            bool

	levels       []Level
	mipChainSize uint64
	totalSize    uint64
	attribs      []VertexAttrib

	name string

	// Owning arena; refs is guarded by its mutex.
	reg  *Registry
	refs int
}

func newShape(reg *Registry, req Request) *Shape {
	s := &Shape{
		elem:  req.Element,
		dimX:  req.DimX,
		dimY:  req.DimY,
		dimZ:  req.DimZ,
		mip:   req.MipEnabled,
		faces: req.FacesEnabled,
		reg:   reg,
	}
	s.levels, s.mipChainSize = computeLayout(req.Element, req.DimX, req.DimY, req.DimZ, req.MipEnabled)
	s.totalSize = s.mipChainSize
	if req.FacesEnabled {
		s.totalSize *= faceCount
	}
	s.attribs = deriveAttribs(req.Element)
	return s
}

// Element returns the per-cell layout descriptor.
func (s *Shape) Element() *element.Element { return s.elem }

// DimX returns the level-0 X extent.
func (s *Shape) DimX() uint32 { return s.dimX }

// DimY returns the level-0 Y extent (0 for 1D shapes).
func (s *Shape) DimY() uint32 { return s.dimY }

// DimZ returns the level-0 Z extent (0 for 1D/2D shapes).
func (s *Shape) DimZ() uint32 { return s.dimZ }

// MipEnabled reports whether the shape carries a mip pyramid.
func (s *Shape) MipEnabled() bool { return s.mip }

// FacesEnabled reports whether the shape carries six faces.
func (s *Shape) FacesEnabled() bool { return s.faces }

// LevelCount returns the number of mip levels.
func (s *Shape) LevelCount() int { return len(s.levels) }

// Level returns the extent and byte offset of one mip level.
func (s *Shape) Level(i int) Level { return s.levels[i] }

// Levels returns a copy of the level table.
func (s *Shape) Levels() []Level {
	out := make([]Level, len(s.levels))
	copy(out, s.levels)
	return out
}

// MipChainSizeBytes returns the byte size of one full mip chain.
func (s *Shape) MipChainSizeBytes() uint64 { return s.mipChainSize }

// TotalSizeBytes returns the byte size of the whole buffer, including
// the six-face expansion when enabled.
func (s *Shape) TotalSizeBytes() uint64 { return s.totalSize }

// ElementCount returns the number of level-0 cells, the linear range a
// per-element dispatch walks.
func (s *Shape) ElementCount() uint32 {
	return s.dimX * max(s.dimY, 1) * max(s.dimZ, 1)
}

// OffsetAt returns the byte offset of cell (x,y,z) within the given mip
// level. Coordinates are relative to that level's own extents, not
// level 0's.
func (s *Shape) OffsetAt(level int, x, y, z uint32) uint64 {
	lv := s.levels[level]
	cell := uint64(x) + uint64(y)*uint64(lv.X) + uint64(z)*uint64(lv.X)*uint64(lv.Y)
	return lv.Offset + cell*uint64(s.elem.SizeBytes())
}

// OffsetAt1D returns the byte offset of cell x within the given level.
func (s *Shape) OffsetAt1D(level int, x uint32) uint64 {
	return s.OffsetAt(level, x, 0, 0)
}

// OffsetAt2D returns the byte offset of cell (x,y) within the given level.
func (s *Shape) OffsetAt2D(level int, x, y uint32) uint64 {
	return s.OffsetAt(level, x, y, 0)
}

// Attribs returns a copy of the derived GPU attribute table.
func (s *Shape) Attribs() []VertexAttrib {
	out := make([]VertexAttrib, len(s.attribs))
	copy(out, s.attribs)
	return out
}

// IsPow2 reports whether every non-zero extent is a power of two.
func (s *Shape) IsPow2() bool {
	for _, d := range [3]uint32{s.dimX, s.dimY, s.dimZ} {
		if d != 0 && d&(d-1) != 0 {
			return false
		}
	}
	return true
}

// StructurallyEqual reports whether the other shape has the same element
// identity, extents, and flags. Interned shapes make this equivalent to
// pointer equality; it exists for shapes from different arenas.
func (s *Shape) StructurallyEqual(o *Shape) bool {
	if o == nil {
		return false
	}
	return s.elem == o.elem &&
		s.dimX == o.dimX && s.dimY == o.dimY && s.dimZ == o.dimZ &&
		s.mip == o.mip && s.faces == o.faces
}

// Name returns the optional shape name.
func (s *Shape) Name() string { return s.name }

// SetName names the shape. Not synchronized; set before sharing.
func (s *Shape) SetName(name string) { s.name = name }

// Retain bumps the reference count in the owning arena.
func (s *Shape) Retain() { s.reg.Retain(s) }

// Release drops one reference; the last release removes the shape from
// the owning arena.
func (s *Shape) Release() { s.reg.Release(s) }

func (s *Shape) String() string {
	return fmt.Sprintf("shape(%dx%dx%d mip=%t faces=%t elem=%dB total=%dB)",
		s.dimX, s.dimY, s.dimZ, s.mip, s.faces, s.elem.SizeBytes(), s.totalSize)
}

// LogDebug dumps the computed layout at debug level.
func (s *Shape) LogDebug(log *zap.Logger) {
	if log == nil {
		return
	}
	log.Debug("shape layout",
		zap.String("name", s.name),
		zap.Uint32("dimX", s.dimX),
		zap.Uint32("dimY", s.dimY),
		zap.Uint32("dimZ", s.dimZ),
		zap.Bool("mip", s.mip),
		zap.Bool("faces", s.faces),
		zap.Uint32("elementBytes", s.elem.SizeBytes()),
		zap.Uint64("mipChainBytes", s.mipChainSize),
		zap.Uint64("totalBytes", s.totalSize),
		zap.Int("attribs", len(s.attribs)))
	for i, lv := range s.levels {
		log.Debug("shape level",
			zap.Int("level", i),
			zap.Uint32("x", lv.X),
			zap.Uint32("y", lv.Y),
			zap.Uint32("z", lv.Z),
			zap.Uint64("offset", lv.Offset))
	}
}
