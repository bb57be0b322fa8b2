package runtime

import "github.com/gridkit/compute/errors"

// Pragma keys with fixed grammar. Keys outside the grammar are ignored.
const (
	pragmaVersion       = "version"
	pragmaStateVertex   = "stateVertex"
	pragmaStateRaster   = "stateRaster"
	pragmaStateFragment = "stateFragment"
	pragmaStateStore    = "stateStore"

	pragmaValueDefault = "default"
	pragmaValueParent  = "parent"

	supportedVersion = "1"
)

var pragmaSlots = map[string]ProgramSlot{
	pragmaStateVertex:   ProgramVertex,
	pragmaStateRaster:   ProgramRaster,
	pragmaStateFragment: ProgramFragment,
	pragmaStateStore:    ProgramStore,
}

// applyPragmas walks the script.info pairs in order. version must be
// "1". State keys keep the default program binding on "default" and
// clear it on "parent", so the script inherits the ambient state at
// call time. Any other value fails the compile.
func (s *Script) applyPragmas() error {
	for _, p := range s.compiled.Pragmas() {
		switch p.Key {
		case pragmaVersion:
			if p.Value != supportedVersion {
				return errors.BadPragma(s.name, p.Key, p.Value)
			}
		case pragmaStateVertex, pragmaStateRaster, pragmaStateFragment, pragmaStateStore:
			switch p.Value {
			case pragmaValueDefault:
				// keep the placeholder binding
			case pragmaValueParent:
				s.env.programs[pragmaSlots[p.Key]].bound = false
			default:
				return errors.BadPragma(s.name, p.Key, p.Value)
			}
		}
	}
	return nil
}
