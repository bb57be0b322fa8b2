// Package wasmbin works with raw wasm binaries at the byte level: LEB128
// codecs, section scanning for the details wazero's API does not surface
// (export order, custom sections), and a small builder that assembles
// script containers for tests: memory, a bump allocator, variable
// globals, entry points, and the pragma custom section.
package wasmbin
