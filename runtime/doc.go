// Package runtime is the high-level dispatch layer for compute scripts:
// compiling and linking script modules, binding buffers to exported
// variable slots, and driving the three dispatch entry points.
//
// # Quick Start
//
//	ctx := context.Background()
//	rt, err := runtime.New(ctx, runtime.Config{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close(ctx)
//
//	script, err := rt.CompileScript(ctx, "invert", "", wasmBytes)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer script.Close(ctx)
//
//	script.BindBuffer(0, pixels)
//	err = script.RunForEach(ctx, pixels, nil, nil, nil)
//
// # Host Symbols
//
// Scripts import host functions from the "env" namespace. Resolution
// walks three tables in fixed order: core (log_msg, uptime_ms,
// send_to_client), the compute extension (sin_f32, cos_f32, sqrt_f32,
// pow_f32), then the graphics extension (bind_program_fragment,
// bind_program_vertex, bind_program_raster, bind_program_store,
// draw_rect). Hosts extend or override the tables through
// Runtime.Linker before compiling. Two reserved names bypass the
// tables: __isThreadable reads the script's threadability flag and
// __clearThreadable forces it false.
//
// # Dispatch
//
// Run invokes the root entry once and returns its result. RunForEach
// stages the in/out buffers and user data into guest memory, computes
// the clipped element range and invokes the per-element entry; the
// ambient render state is restored afterwards no matter how the call
// exits. InvokeFunction calls one invokable by slot with an optional
// staged payload. Before every entry the bound buffers are staged into
// guest memory and their pointers written to the exported variable
// globals; after it, staged bytes are copied back out, so guest writes
// become visible in the host buffers.
//
// # Thread Safety
//
// Runtime is safe for concurrent use. Script is NOT: dispatch mutates
// slot bindings and guest memory, so each script needs a single calling
// goroutine or external synchronization. Threadable reports whether the
// script's imports permit fanning per-element work across workers; the
// fan-out itself is the host's job.
package runtime
