// Package engine provides the low-level WebAssembly script container.
//
// This package wraps wazero to compile script modules, resolve their host
// imports against closed symbol tables, and expose the compiled entry
// points, exported-variable globals and invokable functions to the
// dispatcher.
//
// # Architecture
//
// The engine package provides two main types:
//
//	WazeroEngine   - Creates per-script wazero runtimes and shared caches
//	CompiledScript - A compiled, instantiated script with discovered exports
//
// # Compilation Flow
//
//  1. WazeroEngine.Compile() compiles the raw bytes with wazero
//  2. Every "env" import is resolved through the supplied linker.Resolver;
//     misses are logged and bound to a stub that traps only when called
//  3. The guest is instantiated against a per-script host module
//  4. Exports are discovered in binary order: reserved entries, the
//     variable-slot globals, the invokable-function table, the allocator
//
// # Script Container Conventions
//
// Scripts import host symbols from the "env" namespace only. Reserved
// exports and their required signatures:
//
//	init        () -> ()                       one-time initializer
//	root        () -> i32                      single-call entry
//	root.expand (i32,i32,i32,i32,i32,i32) -> () per-element entry
//	malloc      (i32) -> i32                   staging allocator
//	alloc       (i32) -> i32                   allocator fallback name
//	free        (i32) -> ()                    optional staging release
//
// A reserved entry exported with the wrong signature fails compilation.
// Exported mutable i32 globals (excluding "__"-prefixed names) are the
// script's variable slots, in export order. Remaining exported functions
// with signature () -> () or (i32,i32) -> () are the invokable table.
// Pragma metadata travels in a custom section named "script.info".
//
// # Thread Safety
//
// WazeroEngine is safe for concurrent use. CompiledScript is NOT safe for
// concurrent use from multiple goroutines; each script executes on one
// goroutine at a time, or access must be synchronized externally.
//
// Most users should use the runtime package for a simpler API.
// This package is for advanced use cases requiring direct control.
package engine
