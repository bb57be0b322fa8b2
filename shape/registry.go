package shape

import (
	"sync"

	"go.uber.org/zap"

	"github.com/gridkit/compute/element"
	"github.com/gridkit/compute/errors"
)

// Dim identifies one field of a build request in the staged protocol.
type Dim int32

const (
	DimX     Dim = 0
	DimY     Dim = 1
	DimZ     Dim = 2
	DimLOD   Dim = 3
	DimFaces Dim = 4

	// Arrayed dimensions are reserved wire values; staging one is an
	// explicit unsupported-feature error.
	DimArray0 Dim = 100
	DimArray1 Dim = 101
	DimArray2 Dim = 102
	DimArray3 Dim = 103
)

// Request describes one shape to build. The element participates by
// pointer identity in interning.
type Request struct {
	Element          *element.Element
	DimX, DimY, DimZ uint32
	MipEnabled       bool
	FacesEnabled     bool
}

func (req Request) key() arenaKey {
	return arenaKey{
		elem:  req.Element,
		x:     req.DimX,
		y:     req.DimY,
		z:     req.DimZ,
		mip:   req.MipEnabled,
		faces: req.FacesEnabled,
	}
}

type arenaKey struct {
	elem       *element.Element
	x, y, z    uint32
	mip, faces bool
}

// Registry is an explicit shape arena: it interns built shapes so that
// identical requests share one instance, and tracks per-shape reference
// counts. Pass the registry to whatever builds shapes; it is never
// ambient.
//
// The arena is safe for concurrent use. The single staged build request
// is not; serialize BeginBuild/StageDimension/FinishBuild externally.
type Registry struct {
	mu      sync.Mutex
	arena   map[arenaKey]*Shape
	pending *Request
	logger  *zap.Logger
}

// NewRegistry creates an empty arena. A nil logger disables logging.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		arena:  make(map[arenaKey]*Shape),
		logger: logger,
	}
}

// Build returns the interned shape for the request, computing and
// interning it on first sight. The returned shape holds one new
// reference either way.
func (r *Registry) Build(req Request) (*Shape, error) {
	if req.Element == nil {
		return nil, errors.InvalidInput(errors.PhaseBuild, "shape request has no element")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.arena[req.key()]; ok {
		s.refs++
		return s, nil
	}

	s := newShape(r, req)
	s.refs = 1
	r.arena[req.key()] = s
	r.logger.Debug("shape interned",
		zap.Uint32("dimX", req.DimX),
		zap.Uint32("dimY", req.DimY),
		zap.Uint32("dimZ", req.DimZ),
		zap.Bool("mip", req.MipEnabled),
		zap.Bool("faces", req.FacesEnabled),
		zap.Uint64("totalBytes", s.totalSize))
	return s, nil
}

// BeginBuild resets the pending staged request to defaults bound to the
// element. A request already in flight is discarded.
func (r *Registry) BeginBuild(e *element.Element) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = &Request{Element: e}
}

// StageDimension sets one field of the pending request. DimX/DimY/DimZ
// set extents; DimLOD and DimFaces treat any non-zero value as true.
func (r *Registry) StageDimension(dim Dim, value uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pending == nil {
		return errors.InvalidInput(errors.PhaseBuild, "no staged build in progress")
	}

	switch dim {
	case DimX:
		r.pending.DimX = value
	case DimY:
		r.pending.DimY = value
	case DimZ:
		r.pending.DimZ = value
	case DimLOD:
		r.pending.MipEnabled = value != 0
	case DimFaces:
		r.pending.FacesEnabled = value != 0
	case DimArray0, DimArray1, DimArray2, DimArray3:
		return errors.Unsupported(errors.PhaseBuild, "arrayed dimensions")
	default:
		return errors.New(errors.PhaseBuild, errors.KindInvalidInput).
			Value(int32(dim)).
			Detail("unknown dimension kind %d", dim).
			Build()
	}
	return nil
}

// FinishBuild submits the pending request to Build and clears it.
func (r *Registry) FinishBuild() (*Shape, error) {
	r.mu.Lock()
	req := r.pending
	r.pending = nil
	r.mu.Unlock()

	if req == nil {
		return nil, errors.InvalidInput(errors.PhaseBuild, "no staged build in progress")
	}
	return r.Build(*req)
}

// CloneResize1D returns the interned shape matching s in every respect
// but the X extent.
func (r *Registry) CloneResize1D(s *Shape, newX uint32) (*Shape, error) {
	return r.Build(Request{
		Element:      s.elem,
		DimX:         newX,
		DimY:         s.dimY,
		DimZ:         s.dimZ,
		MipEnabled:   s.mip,
		FacesEnabled: s.faces,
	})
}

// CloneResize2D returns the interned shape matching s in every respect
// but the X and Y extents.
func (r *Registry) CloneResize2D(s *Shape, newX, newY uint32) (*Shape, error) {
	return r.Build(Request{
		Element:      s.elem,
		DimX:         newX,
		DimY:         newY,
		DimZ:         s.dimZ,
		MipEnabled:   s.mip,
		FacesEnabled: s.faces,
	})
}

// Retain bumps the shape's reference count.
func (r *Registry) Retain(s *Shape) {
	if s == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s.refs++
}

// Release drops one reference. The last release removes the arena entry;
// the shape itself stays valid for holders of the pointer but the next
// identical Build creates a fresh instance.
func (r *Registry) Release(s *Shape) {
	if s == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if s.refs == 0 {
		r.logger.Warn("release of unreferenced shape", zap.String("shape", s.String()))
		return
	}
	s.refs--
	if s.refs == 0 {
		delete(r.arena, arenaKey{s.elem, s.dimX, s.dimY, s.dimZ, s.mip, s.faces})
		r.logger.Debug("shape evicted", zap.String("shape", s.String()))
	}
}

// Len returns the number of interned shapes.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.arena)
}

// buildStructural behaves like Build but matches the element
// structurally instead of by pointer, so records loaded from a stream
// dedup against shapes built from live elements.
func (r *Registry) buildStructural(req Request) (*Shape, error) {
	if req.Element == nil {
		return nil, errors.InvalidInput(errors.PhaseBuild, "shape request has no element")
	}

	r.mu.Lock()
	for _, s := range r.arena {
		if s.dimX == req.DimX && s.dimY == req.DimY && s.dimZ == req.DimZ &&
			s.mip == req.MipEnabled && s.faces == req.FacesEnabled &&
			s.elem.Equal(req.Element) {
			s.refs++
			r.mu.Unlock()
			return s, nil
		}
	}
	r.mu.Unlock()

	return r.Build(req)
}
