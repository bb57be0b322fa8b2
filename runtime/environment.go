package runtime

import (
	"sync/atomic"

	"github.com/gridkit/compute/buffer"
	"github.com/gridkit/compute/shape"
)

// ProgramSlot selects one of the four program-state bindings.
type ProgramSlot int

const (
	ProgramFragment ProgramSlot = iota
	ProgramVertex
	ProgramRaster
	ProgramStore
	programCount
)

// DefaultProgramID is the placeholder program handle every script
// starts bound to.
const DefaultProgramID uint32 = 0

func (p ProgramSlot) String() string {
	switch p {
	case ProgramFragment:
		return "fragment"
	case ProgramVertex:
		return "vertex"
	case ProgramRaster:
		return "raster"
	case ProgramStore:
		return "store"
	}
	return "unknown"
}

// slotBinding is one exported-variable slot: the bound buffer, the
// layout recorded for it, and the guest pointer written at the last
// setup.
type slotBinding struct {
	buf      *buffer.Buffer
	shape    *shape.Shape
	guestPtr uint32
}

type programBinding struct {
	bound bool
	id    uint32
}

// Environment is one script's bound state: exported-variable slots,
// default render-state bindings and the threadability flag. It is
// populated at compile time, mutated by every dispatch, and destroyed
// with the script.
type Environment struct {
	slots    []slotBinding
	programs [programCount]programBinding

	// threadable starts from the compiled module's aggregate bit and
	// only ever turns false.
	threadable atomic.Bool
}

// Threadable reports whether per-element work may be fanned across
// workers.
func (e *Environment) Threadable() bool { return e.threadable.Load() }

// VariableCount returns the number of exported-variable slots.
func (e *Environment) VariableCount() int { return len(e.slots) }

// ProgramBound reports whether slot still carries its default program
// binding. A cleared binding inherits the ambient state at call time.
func (e *Environment) ProgramBound(slot ProgramSlot) bool {
	if slot < 0 || slot >= programCount {
		return false
	}
	return e.programs[slot].bound
}
