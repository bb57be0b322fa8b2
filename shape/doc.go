// Package shape computes and interns the memory layout of typed
// multi-dimensional buffers: up to three extents, an optional mipmap
// pyramid, and an optional six-face expansion for cube-style data.
//
// # Layout
//
// A shape pairs an element (the per-cell field layout) with dimensions
// and the two structure flags. The layout engine derives a level table:
// level 0 holds the requested extents, each following level halves every
// extent (clamped to 1) until all reach 1. Levels are stored
// contiguously; the running byte offset past the last level is the
// mip-chain size, and the total size is six mip chains when faces are
// enabled. OffsetAt addresses a cell within a level using that level's
// own extents.
//
// # Interning
//
// A Registry is an explicit arena: structurally identical build requests
// return the same *Shape with its reference count bumped, so shape
// pointers double as cheap identity keys. Build is the atomic form;
// BeginBuild/StageDimension/FinishBuild stage one request field at a
// time for callers driven by serialized command streams.
//
//	reg := shape.NewRegistry(nil)
//	s, err := reg.Build(shape.Request{
//		Element:    elem,
//		DimX:       64,
//		DimY:       64,
//		MipEnabled: true,
//	})
//
// Shapes are immutable once built (the name is the one late-bound
// field) and safe to share across goroutines.
package shape
