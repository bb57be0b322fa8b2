package runtime

import "sync"

// RenderState is the ambient render state shared by every script in a
// runtime: the four installed program handles plus a count of the draws
// guest code has issued. Dispatch installs a script's non-cleared
// bindings here; RunForEach snapshots and restores it around the call.
type RenderState struct {
	mu       sync.Mutex
	programs [programCount]uint32
	draws    int
}

func NewRenderState() *RenderState {
	return &RenderState{}
}

// BindProgram installs a program handle as the ambient state for slot.
func (rs *RenderState) BindProgram(slot ProgramSlot, id uint32) {
	if slot < 0 || slot >= programCount {
		return
	}
	rs.mu.Lock()
	rs.programs[slot] = id
	rs.mu.Unlock()
}

// Program returns the handle currently installed for slot.
func (rs *RenderState) Program(slot ProgramSlot) uint32 {
	if slot < 0 || slot >= programCount {
		return 0
	}
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.programs[slot]
}

// DrawCount returns how many draws guest code has issued.
func (rs *RenderState) DrawCount() int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.draws
}

func (rs *RenderState) recordDraw() {
	rs.mu.Lock()
	rs.draws++
	rs.mu.Unlock()
}

// snapshot captures the program bindings so a dispatch can restore them
// after guest code ran. Draw counts are not part of the snapshot.
func (rs *RenderState) snapshot() [programCount]uint32 {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.programs
}

func (rs *RenderState) restore(saved [programCount]uint32) {
	rs.mu.Lock()
	rs.programs = saved
	rs.mu.Unlock()
}
