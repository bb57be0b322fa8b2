// Package compute is the execution core of a scriptable compute/graphics
// runtime: it lays out and interns typed multi-dimensional buffer shapes
// (mip pyramids, cube-style face sets, GPU vertex-attribute tables) and
// compiles WebAssembly "script" modules against closed tables of host
// symbols, binding exported globals to managed buffers and dispatching the
// compiled entry points.
//
// # Architecture Overview
//
// The module is organized into packages with distinct responsibilities:
//
//	compute/          Root package with the guest Memory contract and Pragma pair
//	├── runtime/      Execution context: compile pipeline, script environment, dispatcher
//	├── engine/       Low-level wazero integration: compile, instantiate, staging
//	├── linker/       Closed host-symbol tables with threadability bits
//	├── shape/        Layout engine and interning shape registry
//	├── element/      Per-record field layout descriptor
//	├── buffer/       Shape-bound managed byte buffers
//	└── errors/       Structured error types
//
// # Quick Start
//
// Compile and dispatch a script:
//
//	rt, err := runtime.New(ctx, runtime.Config{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close(ctx)
//
//	script, err := rt.CompileScript(ctx, "blur", "", wasmBytes)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer script.Close(ctx)
//
//	script.BindBuffer(0, buf)
//	result, err := script.Run(ctx)
//
// # Script Container Conventions
//
// Scripts are core wasm modules. They import host symbols from the "env"
// namespace, export "init" (one-time initializer), "root" (single-call
// entry), "root.expand" (per-element entry), and "malloc"/"free" for
// staging. Exported mutable i32 globals are the script's variable slots;
// the host writes guest pointers to bound buffers into them before every
// invocation. Pragma metadata travels in a custom section named
// "script.info".
//
// # Thread Safety
//
// Shapes and compiled scripts are immutable after construction and safe to
// share for reads. The dispatcher executes on the calling goroutine; the
// script's threadability flag reports whether per-element dispatch may be
// fanned across workers, it does not implement the fan-out.
package compute
