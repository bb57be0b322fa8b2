// Package linker holds the host-symbol tables scripts link against:
// closed sets of native functions with wasm signatures and static
// threadability bits. Three tables resolve in fixed priority order
// (core, then the compute extension, then the graphics extension), so
// a core symbol always shadows an extension symbol of the same name.
//
// The linker performs no binding itself; the engine asks it for
// definitions through a Resolver and ANDs each resolved function's
// threadability bit into the script's aggregate flag.
package linker
