package wasmbin

import (
	"github.com/tetratelabs/wazero/api"

	"github.com/gridkit/compute"
)

// ScriptModuleBuilder assembles a wasm script container: one exported
// memory, imported host functions, mutable i32 globals for variable
// slots, raw-body functions for entry points, and the pragma custom
// section. It builds valid binaries for the subset scripts use; it is
// a test fixture factory, not a general encoder.
//
// Index spaces follow wasm rules: functions number imports first, then
// local functions in the order added; globals number in the order
// added. Bodies reference both by those indices.
type ScriptModuleBuilder struct {
	memPages uint32
	imports  []importedFunc
	funcs    []localFunc
	globals  []localGlobal
	exports  []Export
	pragmas  []compute.Pragma
	sections []rawSection
}

type importedFunc struct {
	module, name string
	params       []api.ValueType
	results      []api.ValueType
}

type localFunc struct {
	params  []api.ValueType
	results []api.ValueType
	locals  []api.ValueType
	code    []byte
}

type localGlobal struct {
	init int32
}

type rawSection struct {
	name    string
	payload []byte
}

// NewScriptModule starts a builder with one page of memory.
func NewScriptModule() *ScriptModuleBuilder {
	return &ScriptModuleBuilder{memPages: 1}
}

// Memory sets the minimum memory size in 64KiB pages.
func (b *ScriptModuleBuilder) Memory(pages uint32) *ScriptModuleBuilder {
	b.memPages = pages
	return b
}

// ImportFunc declares a host-function import. Imports occupy function
// indices 0..n-1 in declaration order.
func (b *ScriptModuleBuilder) ImportFunc(module, name string, params, results []api.ValueType) *ScriptModuleBuilder {
	b.imports = append(b.imports, importedFunc{module: module, name: name, params: params, results: results})
	return b
}

// Global adds an exported mutable i32 global, i.e. one variable slot.
func (b *ScriptModuleBuilder) Global(name string, init int32) *ScriptModuleBuilder {
	idx := uint32(len(b.globals))
	b.globals = append(b.globals, localGlobal{init: init})
	b.exports = append(b.exports, Export{Name: name, Kind: ExportGlobal, Index: idx})
	return b
}

// PrivateGlobal adds a mutable i32 global without an export entry.
func (b *ScriptModuleBuilder) PrivateGlobal(init int32) *ScriptModuleBuilder {
	b.globals = append(b.globals, localGlobal{init: init})
	return b
}

// Func adds an exported function with a raw instruction body. The
// terminating end opcode is appended automatically. Locals are declared
// one run per entry.
func (b *ScriptModuleBuilder) Func(name string, params, results, locals []api.ValueType, code []byte) *ScriptModuleBuilder {
	idx := uint32(len(b.imports) + len(b.funcs))
	b.funcs = append(b.funcs, localFunc{params: params, results: results, locals: locals, code: code})
	b.exports = append(b.exports, Export{Name: name, Kind: ExportFunc, Index: idx})
	return b
}

// BumpAllocator adds a private heap-pointer global initialized to
// heapBase and an exported allocator function under the given name
// (size i32) -> i32 that returns the old pointer and advances it by the
// size rounded up to 8 bytes. withFree adds a no-op "free".
func (b *ScriptModuleBuilder) BumpAllocator(name string, heapBase int32, withFree bool) *ScriptModuleBuilder {
	heap := uint32(len(b.globals))
	b.PrivateGlobal(heapBase)

	i32 := []api.ValueType{api.ValueTypeI32}
	body := Asm{}.
		GlobalGet(heap).
		LocalSet(1).
		GlobalGet(heap).
		LocalGet(0).
		I32Const(7).
		I32Add().
		I32Const(-8).
		I32And().
		I32Add().
		GlobalSet(heap).
		LocalGet(1)
	b.Func(name, i32, i32, i32, body)

	if withFree {
		b.Func("free", i32, nil, nil, Asm{})
	}
	return b
}

// Pragma adds one key/value pair to the script.info custom section.
func (b *ScriptModuleBuilder) Pragma(key, value string) *ScriptModuleBuilder {
	b.pragmas = append(b.pragmas, compute.Pragma{Key: key, Value: value})
	return b
}

// RawCustomSection appends a custom section with an arbitrary payload,
// before any generated pragma section. Corrupt-metadata tests use this.
func (b *ScriptModuleBuilder) RawCustomSection(name string, payload []byte) *ScriptModuleBuilder {
	b.sections = append(b.sections, rawSection{name: name, payload: payload})
	return b
}

// Build assembles the module bytes.
func (b *ScriptModuleBuilder) Build() []byte {
	var wasm []byte
	wasm = append(wasm, 0x00, 0x61, 0x73, 0x6d)
	wasm = append(wasm, 0x01, 0x00, 0x00, 0x00)

	wasm = appendSection(wasm, 0x01, b.buildTypeSection())
	if len(b.imports) > 0 {
		wasm = appendSection(wasm, 0x02, b.buildImportSection())
	}
	if len(b.funcs) > 0 {
		wasm = appendSection(wasm, 0x03, b.buildFuncSection())
	}
	wasm = appendSection(wasm, 0x05, b.buildMemorySection())
	if len(b.globals) > 0 {
		wasm = appendSection(wasm, 0x06, b.buildGlobalSection())
	}
	wasm = appendSection(wasm, 0x07, b.buildExportSection())
	if len(b.funcs) > 0 {
		wasm = appendSection(wasm, 0x0a, b.buildCodeSection())
	}

	for _, s := range b.sections {
		wasm = appendSection(wasm, sectionCustom, appendName(nil, s.name), s.payload)
	}
	if len(b.pragmas) > 0 {
		wasm = appendSection(wasm, sectionCustom, appendName(nil, PragmaSectionName), b.buildPragmaPayload())
	}

	return wasm
}

func appendSection(wasm []byte, id byte, parts ...[]byte) []byte {
	var size int
	for _, p := range parts {
		size += len(p)
	}
	wasm = append(wasm, id)
	wasm = append(wasm, EncodeULEB128(uint32(size))...)
	for _, p := range parts {
		wasm = append(wasm, p...)
	}
	return wasm
}

// One type entry per function, imports first; no signature dedup.
func (b *ScriptModuleBuilder) buildTypeSection() []byte {
	section := EncodeULEB128(uint32(len(b.imports) + len(b.funcs)))
	appendType := func(params, results []api.ValueType) {
		section = append(section, 0x60)
		section = append(section, EncodeULEB128(uint32(len(params)))...)
		for _, t := range params {
			section = append(section, ValTypeToWasm(t))
		}
		section = append(section, EncodeULEB128(uint32(len(results)))...)
		for _, t := range results {
			section = append(section, ValTypeToWasm(t))
		}
	}
	for _, f := range b.imports {
		appendType(f.params, f.results)
	}
	for _, f := range b.funcs {
		appendType(f.params, f.results)
	}
	return section
}

func (b *ScriptModuleBuilder) buildImportSection() []byte {
	section := EncodeULEB128(uint32(len(b.imports)))
	for i, f := range b.imports {
		section = appendName(section, f.module)
		section = appendName(section, f.name)
		section = append(section, 0x00)
		section = append(section, EncodeULEB128(uint32(i))...)
	}
	return section
}

func (b *ScriptModuleBuilder) buildFuncSection() []byte {
	section := EncodeULEB128(uint32(len(b.funcs)))
	for i := range b.funcs {
		section = append(section, EncodeULEB128(uint32(len(b.imports)+i))...)
	}
	return section
}

func (b *ScriptModuleBuilder) buildMemorySection() []byte {
	section := []byte{0x01, 0x00}
	return append(section, EncodeULEB128(b.memPages)...)
}

func (b *ScriptModuleBuilder) buildGlobalSection() []byte {
	section := EncodeULEB128(uint32(len(b.globals)))
	for _, g := range b.globals {
		section = append(section, 0x7f, 0x01, 0x41)
		section = append(section, EncodeSLEB128(g.init)...)
		section = append(section, 0x0b)
	}
	return section
}

func (b *ScriptModuleBuilder) buildExportSection() []byte {
	section := EncodeULEB128(uint32(len(b.exports) + 1))
	for _, e := range b.exports {
		section = appendName(section, e.Name)
		section = append(section, e.Kind)
		section = append(section, EncodeULEB128(e.Index)...)
	}
	section = appendName(section, "memory")
	section = append(section, ExportMemory, 0x00)
	return section
}

func (b *ScriptModuleBuilder) buildCodeSection() []byte {
	section := EncodeULEB128(uint32(len(b.funcs)))
	for _, f := range b.funcs {
		var body []byte
		body = append(body, EncodeULEB128(uint32(len(f.locals)))...)
		for _, l := range f.locals {
			body = append(body, 0x01, ValTypeToWasm(l))
		}
		body = append(body, f.code...)
		body = append(body, 0x0b)

		section = append(section, EncodeULEB128(uint32(len(body)))...)
		section = append(section, body...)
	}
	return section
}

func (b *ScriptModuleBuilder) buildPragmaPayload() []byte {
	payload := EncodeULEB128(uint32(len(b.pragmas)))
	for _, p := range b.pragmas {
		payload = appendName(payload, p.Key)
		payload = appendName(payload, p.Value)
	}
	return payload
}
