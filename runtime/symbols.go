package runtime

import (
	"context"
	"math"
	"time"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/gridkit/compute/linker"
)

// Reserved introspection imports, resolved before any table lookup.
const (
	symIsThreadable    = "__isThreadable"
	symClearThreadable = "__clearThreadable"
)

// resolverFor builds the per-script symbol resolver: the two reserved
// introspection names close over the script's flag, everything else
// walks core, then compute, then graphics.
func (r *Runtime) resolverFor(s *Script) linker.Resolver {
	return func(symbol string) *linker.HostFunc {
		switch symbol {
		case symIsThreadable:
			return &linker.HostFunc{
				Name:       symbol,
				Results:    []api.ValueType{api.ValueTypeI32},
				Threadable: true,
				Fn: func(_ context.Context, _ api.Module, stack []uint64) {
					var v uint64
					if s.env.threadable.Load() {
						v = 1
					}
					stack[0] = v
				},
			}
		case symClearThreadable:
			return &linker.HostFunc{
				Name:       symbol,
				Threadable: true,
				Fn: func(_ context.Context, _ api.Module, stack []uint64) {
					s.env.threadable.Store(false)
				},
			}
		}
		return r.linker.Resolve(symbol)
	}
}

// seedSymbols fills the default core, compute and graphics tables. Every
// handler receives its state through the closure over the runtime; there
// are no process globals.
func (r *Runtime) seedSymbols() {
	i32 := api.ValueTypeI32
	f32 := api.ValueTypeF32

	core := r.linker.Core()
	core.Define(&linker.HostFunc{
		Name:       "log_msg",
		Params:     []api.ValueType{i32, i32},
		Threadable: true,
		Fn: func(_ context.Context, mod api.Module, stack []uint64) {
			ptr, length := uint32(stack[0]), uint32(stack[1])
			msg, ok := readGuestString(mod, ptr, length)
			if !ok {
				r.logger.Warn("script log with out-of-range payload",
					zap.Uint32("ptr", ptr), zap.Uint32("len", length))
				return
			}
			r.logger.Info("script log", zap.String("msg", msg))
		},
	})
	core.Define(&linker.HostFunc{
		Name:       "uptime_ms",
		Results:    []api.ValueType{api.ValueTypeI64},
		Threadable: true,
		Fn: func(_ context.Context, _ api.Module, stack []uint64) {
			stack[0] = uint64(time.Since(r.start).Milliseconds())
		},
	})
	core.Define(&linker.HostFunc{
		Name:    "send_to_client",
		Params:  []api.ValueType{i32, i32, i32},
		Results: []api.ValueType{i32},
		Fn: func(_ context.Context, mod api.Module, stack []uint64) {
			cmd := uint32(stack[0])
			ptr, length := uint32(stack[1]), uint32(stack[2])
			stack[0] = 0
			payload, ok := readGuestBytes(mod, ptr, length)
			if !ok {
				r.logger.Warn("client message with out-of-range payload",
					zap.Uint32("cmd", cmd), zap.Uint32("ptr", ptr), zap.Uint32("len", length))
				return
			}
			if r.deliverClient(cmd, payload) {
				stack[0] = 1
			}
		},
	})

	comp := r.linker.Compute()
	unary := func(name string, f func(float64) float64) *linker.HostFunc {
		return &linker.HostFunc{
			Name:       name,
			Params:     []api.ValueType{f32},
			Results:    []api.ValueType{f32},
			Threadable: true,
			Fn: func(_ context.Context, _ api.Module, stack []uint64) {
				x := math.Float32frombits(uint32(stack[0]))
				stack[0] = uint64(math.Float32bits(float32(f(float64(x)))))
			},
		}
	}
	comp.Define(unary("sin_f32", math.Sin))
	comp.Define(unary("cos_f32", math.Cos))
	comp.Define(unary("sqrt_f32", math.Sqrt))
	comp.Define(&linker.HostFunc{
		Name:       "pow_f32",
		Params:     []api.ValueType{f32, f32},
		Results:    []api.ValueType{f32},
		Threadable: true,
		Fn: func(_ context.Context, _ api.Module, stack []uint64) {
			x := math.Float32frombits(uint32(stack[0]))
			y := math.Float32frombits(uint32(stack[1]))
			stack[0] = uint64(math.Float32bits(float32(math.Pow(float64(x), float64(y)))))
		},
	})

	gfx := r.linker.Graphics()
	bind := func(name string, slot ProgramSlot) *linker.HostFunc {
		return &linker.HostFunc{
			Name:   name,
			Params: []api.ValueType{i32},
			Fn: func(_ context.Context, _ api.Module, stack []uint64) {
				r.render.BindProgram(slot, uint32(stack[0]))
			},
		}
	}
	gfx.Define(bind("bind_program_fragment", ProgramFragment))
	gfx.Define(bind("bind_program_vertex", ProgramVertex))
	gfx.Define(bind("bind_program_raster", ProgramRaster))
	gfx.Define(bind("bind_program_store", ProgramStore))
	gfx.Define(&linker.HostFunc{
		Name:   "draw_rect",
		Params: []api.ValueType{f32, f32, f32, f32},
		Fn: func(_ context.Context, _ api.Module, stack []uint64) {
			x1 := math.Float32frombits(uint32(stack[0]))
			y1 := math.Float32frombits(uint32(stack[1]))
			x2 := math.Float32frombits(uint32(stack[2]))
			y2 := math.Float32frombits(uint32(stack[3]))
			r.render.recordDraw()
			r.logger.Debug("draw rect",
				zap.Float32("x1", x1), zap.Float32("y1", y1),
				zap.Float32("x2", x2), zap.Float32("y2", y2))
		},
	})
}

func readGuestString(mod api.Module, ptr, length uint32) (string, bool) {
	mem := mod.Memory()
	if mem == nil {
		return "", false
	}
	data, ok := mem.Read(ptr, length)
	if !ok {
		return "", false
	}
	return string(data), true
}

// readGuestBytes copies out of guest memory; the view wazero returns is
// only valid during the host call.
func readGuestBytes(mod api.Module, ptr, length uint32) ([]byte, bool) {
	mem := mod.Memory()
	if mem == nil {
		return nil, false
	}
	data, ok := mem.Read(ptr, length)
	if !ok {
		return nil, false
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, true
}
