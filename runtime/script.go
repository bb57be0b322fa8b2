package runtime

import (
	"context"

	"go.uber.org/zap"

	"github.com/gridkit/compute"
	"github.com/gridkit/compute/buffer"
	"github.com/gridkit/compute/engine"
	"github.com/gridkit/compute/errors"
	"github.com/gridkit/compute/shape"
)

// Strategy hints how a host should fan per-element work across workers.
// Dispatch records it; it never changes what a single call executes.
type Strategy int32

const (
	StrategyDontCare Strategy = iota
	StrategySerial
	StrategyTileSmall
	StrategyTileMedium
	StrategyTileLarge
)

// ForEachOptions clips the dispatched element range and carries the
// host's fan-out hint. A zero end means "to the axis extent".
type ForEachOptions struct {
	XStart, XEnd uint32
	YStart, YEnd uint32
	ZStart, ZEnd uint32
	Strategy     Strategy
}

// Script is one compiled, linked script plus its environment.
//
// Script is NOT safe for concurrent use; see the package documentation.
type Script struct {
	name     string
	rt       *Runtime
	compiled *engine.CompiledScript
	logger   *zap.Logger
	env      Environment
}

// Name returns the script name given at compile time.
func (s *Script) Name() string { return s.name }

// Environment returns the script's bound state.
func (s *Script) Environment() *Environment { return &s.env }

// HasRoot reports whether the script exports a root entry.
func (s *Script) HasRoot() bool { return s.compiled.HasRoot() }

// HasForEach reports whether the script exports a per-element entry.
func (s *Script) HasForEach() bool { return s.compiled.HasForEach() }

// Threadable reports whether per-element work may be fanned across
// workers.
func (s *Script) Threadable() bool { return s.env.threadable.Load() }

// Pragmas returns the script.info pairs in section order.
func (s *Script) Pragmas() []compute.Pragma { return s.compiled.Pragmas() }

// VariableCount returns the number of exported-variable slots.
func (s *Script) VariableCount() int { return len(s.env.slots) }

// VariableName returns the exported name of a variable slot.
func (s *Script) VariableName(slot int) string { return s.compiled.VariableName(slot) }

// FunctionCount returns the number of invokable functions.
func (s *Script) FunctionCount() int { return s.compiled.FunctionCount() }

// FunctionName returns the exported name of an invokable function.
func (s *Script) FunctionName(slot int) string { return s.compiled.FunctionName(slot) }

// TakesPayload reports whether the invokable at slot accepts a staged
// payload.
func (s *Script) TakesPayload(slot int) bool { return s.compiled.TakesPayload(slot) }

// BindBuffer attaches a buffer to a variable slot, or detaches with
// nil. The layout recorded for the old binding is released; the new
// binding's layout is inferred at the next dispatch.
func (s *Script) BindBuffer(slot int, buf *buffer.Buffer) error {
	if slot < 0 || slot >= len(s.env.slots) {
		return errors.OutOfBounds(errors.PhaseDispatch, "variable slot", slot, len(s.env.slots))
	}
	sb := &s.env.slots[slot]
	if sb.shape != nil {
		sb.shape.Release()
		sb.shape = nil
	}
	sb.buf = buf
	sb.guestPtr = 0
	return nil
}

// ResolveBoundBuffer translates a guest pointer back to the buffer
// staged at it during the last setup. A zero pointer resolves to nil; a
// pointer matching no slot is logged and resolves to nil.
func (s *Script) ResolveBoundBuffer(ptr uint32) *buffer.Buffer {
	if ptr == 0 {
		return nil
	}
	for i := range s.env.slots {
		if s.env.slots[i].buf != nil && s.env.slots[i].guestPtr == ptr {
			return s.env.slots[i].buf
		}
	}
	s.logger.Warn("no bound buffer for guest pointer", zap.Uint32("ptr", ptr))
	return nil
}

// Run invokes the root entry once and returns its result. A script
// without a root entry returns a BadScript error and zero with no other
// effect.
func (s *Script) Run(ctx context.Context) (int32, error) {
	if !s.compiled.HasRoot() {
		return 0, errors.BadScript(errors.PhaseDispatch, s.name, "script has no root entry")
	}

	s.setupRenderState()
	inv := newInvocation(s)
	defer inv.finish(ctx)
	if err := s.setupScript(ctx, inv); err != nil {
		return 0, err
	}

	return s.compiled.InvokeRoot(ctx)
}

// RunForEach invokes the per-element entry over the clipped element
// range of in (or out when in is nil). The ambient render state is
// saved first and restored on every exit path, including guest traps.
func (s *Script) RunForEach(ctx context.Context, in, out *buffer.Buffer, userData []byte, opts *ForEachOptions) error {
	saved := s.rt.render.snapshot()
	defer s.rt.render.restore(saved)

	if !s.compiled.HasForEach() {
		return errors.BadScript(errors.PhaseDispatch, s.name, "script has no per-element entry")
	}

	s.setupRenderState()
	inv := newInvocation(s)
	defer inv.finish(ctx)
	if err := s.setupScript(ctx, inv); err != nil {
		return err
	}

	var inPtr, outPtr, usrPtr, usrLen uint32
	if in != nil {
		p, err := inv.stage(ctx, in)
		if err != nil {
			return err
		}
		inPtr = p
	}
	if out != nil {
		p, err := inv.stage(ctx, out)
		if err != nil {
			return err
		}
		outPtr = p
	}
	if len(userData) > 0 {
		p, err := inv.stageBytes(ctx, userData)
		if err != nil {
			return err
		}
		usrPtr, usrLen = p, uint32(len(userData))
	}

	var o ForEachOptions
	if opts != nil {
		o = *opts
	}
	start, end, err := s.forEachRange(in, out, o)
	if err != nil {
		return err
	}
	s.logger.Debug("forEach dispatch",
		zap.Uint32("start", start), zap.Uint32("end", end),
		zap.Int32("strategy", int32(o.Strategy)))

	return s.compiled.InvokeForEach(ctx, inPtr, outPtr, usrPtr, usrLen, start, end)
}

// InvokeFunction calls the invokable at slot with an optional payload.
// An out-of-range slot returns a BadScript error with no state change
// of any kind.
func (s *Script) InvokeFunction(ctx context.Context, slot int, payload []byte) error {
	if slot < 0 || slot >= s.compiled.FunctionCount() {
		return errors.SlotOutOfRange(s.name, slot, s.compiled.FunctionCount())
	}

	inv := newInvocation(s)
	defer inv.finish(ctx)
	if err := s.setupScript(ctx, inv); err != nil {
		return err
	}

	var ptr, length uint32
	if len(payload) > 0 && s.compiled.TakesPayload(slot) {
		p, err := inv.stageBytes(ctx, payload)
		if err != nil {
			return err
		}
		ptr, length = p, uint32(len(payload))
	}
	return s.compiled.InvokeFunction(ctx, slot, ptr, length)
}

// Close releases the slot bindings, their recorded layouts and the
// compiled module.
func (s *Script) Close(ctx context.Context) error {
	for i := range s.env.slots {
		if s.env.slots[i].shape != nil {
			s.env.slots[i].shape.Release()
			s.env.slots[i].shape = nil
		}
		s.env.slots[i].buf = nil
	}
	s.env.slots = nil

	if s.compiled == nil {
		return nil
	}
	err := s.compiled.Close(ctx)
	s.compiled = nil
	return err
}

// setupRenderState installs every non-cleared program binding as the
// ambient state. A pure compute script with all bindings cleared
// touches nothing.
func (s *Script) setupRenderState() {
	for slot := ProgramSlot(0); slot < programCount; slot++ {
		if b := s.env.programs[slot]; b.bound {
			s.rt.render.BindProgram(slot, b.id)
		}
	}
}

// setupScript runs before every dispatch entry: infer missing slot
// layouts from their buffers, stage each bound buffer into guest memory
// and write its pointer (or 0 when unbound) to the exported global.
func (s *Script) setupScript(ctx context.Context, inv *invocation) error {
	for i := range s.env.slots {
		sb := &s.env.slots[i]
		if sb.buf != nil && sb.shape == nil {
			if sh := sb.buf.Shape(); sh != nil {
				sh.Retain()
				sb.shape = sh
			}
		}

		var ptr uint32
		if sb.buf != nil {
			p, err := inv.stage(ctx, sb.buf)
			if err != nil {
				return err
			}
			ptr = p
		}
		sb.guestPtr = ptr
		if err := s.compiled.SetVariable(i, ptr); err != nil {
			return err
		}
	}
	return nil
}

// forEachRange computes the linear [start, end) element range for the
// per-element entry. Axis extents come from the in buffer's layout, or
// the out buffer's when in is nil; the options clip each axis. With no
// buffer at all an explicit X range is required.
func (s *Script) forEachRange(in, out *buffer.Buffer, o ForEachOptions) (uint32, uint32, error) {
	var sh *shape.Shape
	switch {
	case in != nil:
		sh = in.Shape()
	case out != nil:
		sh = out.Shape()
	}

	if sh == nil {
		if o.XEnd == 0 {
			return 0, 0, errors.InvalidInput(errors.PhaseDispatch,
				"forEach needs an input or output buffer, or an explicit range")
		}
		start := o.XStart
		if start > o.XEnd {
			start = o.XEnd
		}
		return start, o.XEnd, nil
	}

	xExt := sh.DimX()
	yExt := sh.DimY()
	if yExt == 0 {
		yExt = 1
	}
	zExt := sh.DimZ()
	if zExt == 0 {
		zExt = 1
	}

	xs, xe := clipAxis(o.XStart, o.XEnd, xExt)
	ys, ye := clipAxis(o.YStart, o.YEnd, yExt)
	zs, ze := clipAxis(o.ZStart, o.ZEnd, zExt)

	start := (zs*yExt+ys)*xExt + xs
	end := ((ze-1)*yExt+(ye-1))*xExt + xe
	if end < start {
		end = start
	}
	return start, end, nil
}

// clipAxis clamps [start, end) to [0, extent); end == 0 means the full
// extent.
func clipAxis(start, end, extent uint32) (uint32, uint32) {
	if end == 0 || end > extent {
		end = extent
	}
	if start > end {
		start = end
	}
	return start, end
}

// invocation tracks guest staging for one dispatch entry: which buffer
// landed at which guest pointer, plus raw payload blocks. finish copies
// staged buffers back out and frees all guest allocations; it runs on
// every exit path.
type invocation struct {
	script *Script
	staged map[*buffer.Buffer]uint32
	order  []*buffer.Buffer
	blocks []uint32
}

func newInvocation(s *Script) *invocation {
	return &invocation{script: s, staged: make(map[*buffer.Buffer]uint32)}
}

func (inv *invocation) memory() (compute.Memory, error) {
	mem := inv.script.compiled.Memory()
	if mem == nil {
		return nil, errors.BadScript(errors.PhaseDispatch, inv.script.name, "script exports no memory")
	}
	return mem, nil
}

// stage copies a buffer into guest memory, once per invocation no
// matter how many slots or arguments reference it.
func (inv *invocation) stage(ctx context.Context, buf *buffer.Buffer) (uint32, error) {
	if ptr, ok := inv.staged[buf]; ok {
		return ptr, nil
	}

	mem, err := inv.memory()
	if err != nil {
		return 0, err
	}
	data := buf.Data()
	ptr, err := inv.script.compiled.Alloc(ctx, uint32(len(data)))
	if err != nil {
		return 0, err
	}
	if len(data) > 0 {
		if err := mem.Write(ptr, data); err != nil {
			inv.script.compiled.Free(ctx, ptr)
			return 0, err
		}
	}

	inv.staged[buf] = ptr
	inv.order = append(inv.order, buf)
	return ptr, nil
}

// stageBytes copies a raw payload into guest memory. Payload blocks are
// freed at finish without copy-back.
func (inv *invocation) stageBytes(ctx context.Context, data []byte) (uint32, error) {
	mem, err := inv.memory()
	if err != nil {
		return 0, err
	}
	ptr, err := inv.script.compiled.Alloc(ctx, uint32(len(data)))
	if err != nil {
		return 0, err
	}
	if err := mem.Write(ptr, data); err != nil {
		inv.script.compiled.Free(ctx, ptr)
		return 0, err
	}
	inv.blocks = append(inv.blocks, ptr)
	return ptr, nil
}

func (inv *invocation) finish(ctx context.Context) {
	mem := inv.script.compiled.Memory()
	for _, buf := range inv.order {
		ptr := inv.staged[buf]
		data := buf.Data()
		if mem != nil && len(data) > 0 {
			out, err := mem.Read(ptr, uint32(len(data)))
			if err != nil {
				inv.script.logger.Warn("staged buffer copy-back failed",
					zap.Uint32("ptr", ptr), zap.Error(err))
			} else {
				copy(data, out)
			}
		}
		inv.script.compiled.Free(ctx, ptr)
	}
	for _, ptr := range inv.blocks {
		inv.script.compiled.Free(ctx, ptr)
	}
}
