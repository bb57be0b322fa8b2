package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/gridkit/compute"
	"github.com/gridkit/compute/errors"
	"github.com/gridkit/compute/internal/wasmbin"
	"github.com/gridkit/compute/linker"
)

// Reserved export names in the script container.
const (
	entryInit    = "init"
	entryRoot    = "root"
	entryForEach = "root.expand"

	allocPrimary  = "malloc"
	allocFallback = "alloc"
	freeExport    = "free"

	hostNamespace = "env"
	hiddenPrefix  = "__"
)

var (
	sigI32     = []api.ValueType{api.ValueTypeI32}
	sigPayload = []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}
	sigForEach = []api.ValueType{
		api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32,
		api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32,
	}
)

// variable is one exported-variable slot: a mutable i32 global the host
// writes guest pointers into.
type variable struct {
	name   string
	global api.MutableGlobal
}

// invokable is one entry of the exported-function table.
type invokable struct {
	name         string
	fn           api.Function
	takesPayload bool
}

// CompiledScript is a compiled, instantiated script module with its
// discovered entry points, variable slots and invokable functions.
// It is NOT safe for concurrent use from multiple goroutines.
type CompiledScript struct {
	name       string
	runtime    wazero.Runtime
	mod        api.Module
	memory     *guestMemory
	initFn     api.Function
	rootFn     api.Function
	forEachFn  api.Function
	allocFn    api.Function
	freeFn     api.Function
	variables  []variable
	functions  []invokable
	pragmas    []compute.Pragma
	threadable bool
	stackBuf   []uint64
}

// Compile compiles raw script bytes, resolves every "env" import through
// the resolver, instantiates the guest against a per-script host module
// and discovers the container's exports.
//
// Unresolved imports do not fail compilation: a stub with the import's
// exact signature is bound, a warning is logged, and the fault surfaces
// only if the guest calls the stub. Imports from any other namespace fail
// compilation. A non-empty cacheDir overrides the engine's default
// compilation cache directory for this script.
func (e *WazeroEngine) Compile(ctx context.Context, name, cacheDir string, wasm []byte, resolver linker.Resolver) (*CompiledScript, error) {
	runtimeCfg, err := e.runtimeConfig(cacheDir)
	if err != nil {
		return nil, err
	}

	rt := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)

	compiled, err := rt.CompileModule(ctx, wasm)
	if err != nil {
		rt.Close(ctx)
		return nil, errors.CompileFailed(name, err)
	}

	cs := &CompiledScript{
		name:       name,
		runtime:    rt,
		threadable: true,
		stackBuf:   make([]uint64, 8),
	}

	if err := cs.bindImports(ctx, compiled, resolver); err != nil {
		rt.Close(ctx)
		return nil, err
	}

	mod, err := rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(name))
	if err != nil {
		rt.Close(ctx)
		return nil, errors.Instantiation(name, err)
	}
	cs.mod = mod

	if mem := mod.Memory(); mem != nil {
		cs.memory = &guestMemory{mem: mem}
	}

	if err := cs.discoverExports(wasm); err != nil {
		cs.Close(ctx)
		return nil, err
	}

	pragmas, err := parsePragmaSection(name, wasm)
	if err != nil {
		cs.Close(ctx)
		return nil, err
	}
	cs.pragmas = pragmas

	debugf("compiled script %s: %d variables, %d functions, threadable=%v",
		name, len(cs.variables), len(cs.functions), cs.threadable)

	return cs, nil
}

// bindImports resolves the guest's imported functions and instantiates the
// per-script "env" host module. The script's static threadability bit is
// the AND over every resolved symbol's bit.
func (cs *CompiledScript) bindImports(ctx context.Context, compiled wazero.CompiledModule, resolver linker.Resolver) error {
	imports := compiled.ImportedFunctions()
	if len(imports) == 0 {
		return nil
	}

	builder := cs.runtime.NewHostModuleBuilder(hostNamespace)
	bound := make(map[string]bool, len(imports))

	for _, def := range imports {
		module, symbol, _ := def.Import()
		if module != hostNamespace {
			return errors.New(errors.PhaseCompile, errors.KindCompileFailure).
				Script(cs.name).
				Symbol(symbol).
				Detail("import from namespace %q; scripts may only import from %q", module, hostNamespace).
				Build()
		}
		if bound[symbol] {
			continue
		}
		bound[symbol] = true

		var (
			fn      api.GoModuleFunc
			params  = def.ParamTypes()
			results = def.ResultTypes()
		)
		if hf := resolver(symbol); hf != nil {
			// The table signature is authoritative: a guest importing a
			// known symbol with the wrong shape fails instantiation.
			fn = hf.Fn
			params = hf.Params
			results = hf.Results
			cs.threadable = cs.threadable && hf.Threadable
		} else {
			script, sym := cs.name, symbol
			Logger().Warn("unresolved script symbol, binding trap stub",
				zap.String("script", script),
				zap.String("symbol", sym))
			fn = func(_ context.Context, _ api.Module, _ []uint64) {
				panic(errors.UnresolvedSymbol(script, sym))
			}
		}

		builder = builder.NewFunctionBuilder().
			WithGoModuleFunction(fn, params, results).
			Export(symbol)
	}

	if _, err := builder.Instantiate(ctx); err != nil {
		return errors.Instantiation(cs.name, err)
	}
	return nil
}

// discoverExports walks the binary's export section in declaration order,
// collecting variable slots and classifying exported functions.
func (cs *CompiledScript) discoverExports(wasm []byte) error {
	defs := cs.mod.ExportedFunctionDefinitions()

	for _, exp := range wasmbin.ParseExports(wasm) {
		switch exp.Kind {
		case wasmbin.ExportGlobal:
			if strings.HasPrefix(exp.Name, hiddenPrefix) {
				continue
			}
			g := cs.mod.ExportedGlobal(exp.Name)
			if g == nil || g.Type() != api.ValueTypeI32 {
				continue
			}
			mg, ok := g.(api.MutableGlobal)
			if !ok {
				continue
			}
			cs.variables = append(cs.variables, variable{name: exp.Name, global: mg})

		case wasmbin.ExportFunc:
			if err := cs.classifyFunction(exp.Name, defs[exp.Name]); err != nil {
				return err
			}
		}
	}
	return nil
}

func (cs *CompiledScript) classifyFunction(name string, def api.FunctionDefinition) error {
	if def == nil {
		return nil
	}
	params, results := def.ParamTypes(), def.ResultTypes()

	switch name {
	case entryInit:
		if len(params) != 0 || len(results) != 0 {
			return reservedSignature(cs.name, name, "() -> ()")
		}
		cs.initFn = cs.mod.ExportedFunction(name)

	case entryRoot:
		if len(params) != 0 || !sameTypes(results, sigI32) {
			return reservedSignature(cs.name, name, "() -> i32")
		}
		cs.rootFn = cs.mod.ExportedFunction(name)

	case entryForEach:
		if !sameTypes(params, sigForEach) || len(results) != 0 {
			return reservedSignature(cs.name, name, "(i32,i32,i32,i32,i32,i32) -> ()")
		}
		cs.forEachFn = cs.mod.ExportedFunction(name)

	case allocPrimary, allocFallback:
		if !sameTypes(params, sigI32) || !sameTypes(results, sigI32) {
			return nil // wrong shape, unusable for staging
		}
		// malloc wins over alloc regardless of export order.
		if name == allocPrimary || cs.allocFn == nil {
			cs.allocFn = cs.mod.ExportedFunction(name)
		}

	case freeExport:
		if sameTypes(params, sigI32) && len(results) == 0 {
			cs.freeFn = cs.mod.ExportedFunction(name)
		}

	default:
		if strings.HasPrefix(name, hiddenPrefix) {
			return nil
		}
		switch {
		case len(params) == 0 && len(results) == 0:
			cs.functions = append(cs.functions, invokable{
				name: name,
				fn:   cs.mod.ExportedFunction(name),
			})
		case sameTypes(params, sigPayload) && len(results) == 0:
			cs.functions = append(cs.functions, invokable{
				name:         name,
				fn:           cs.mod.ExportedFunction(name),
				takesPayload: true,
			})
		}
	}
	return nil
}

func reservedSignature(script, entry, want string) *errors.Error {
	return errors.New(errors.PhaseCompile, errors.KindCompileFailure).
		Script(script).
		Symbol(entry).
		Detail("reserved entry %q must have signature %s", entry, want).
		Build()
}

func parsePragmaSection(script string, wasm []byte) ([]compute.Pragma, error) {
	payload := wasmbin.CustomSection(wasm, wasmbin.PragmaSectionName)
	if payload == nil {
		return nil, nil
	}
	pragmas, err := wasmbin.ParsePragmas(payload)
	if err != nil {
		return nil, errors.New(errors.PhaseCompile, errors.KindCompileFailure).
			Script(script).
			Cause(err).
			Detail("malformed %q section", wasmbin.PragmaSectionName).
			Build()
	}
	return pragmas, nil
}

func sameTypes(a, b []api.ValueType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Name returns the script's compile-time name.
func (cs *CompiledScript) Name() string { return cs.name }

// HasInit reports whether the script exports an initializer.
func (cs *CompiledScript) HasInit() bool { return cs.initFn != nil }

// HasRoot reports whether the script exports the single-call entry.
func (cs *CompiledScript) HasRoot() bool { return cs.rootFn != nil }

// HasForEach reports whether the script exports the per-element entry.
func (cs *CompiledScript) HasForEach() bool { return cs.forEachFn != nil }

// Threadable returns the static threadability bit: the AND over every
// resolved import's bit. Scripts with no imports are threadable.
func (cs *CompiledScript) Threadable() bool { return cs.threadable }

// Pragmas returns the script's embedded metadata pairs in section order.
func (cs *CompiledScript) Pragmas() []compute.Pragma {
	out := make([]compute.Pragma, len(cs.pragmas))
	copy(out, cs.pragmas)
	return out
}

// Memory returns the script's exported linear memory, or nil if the
// module exports none.
func (cs *CompiledScript) Memory() compute.Memory {
	if cs.memory == nil {
		return nil
	}
	return cs.memory
}

// InvokeInit runs the script's initializer. A script without one is a
// no-op.
func (cs *CompiledScript) InvokeInit(ctx context.Context) error {
	if cs.initFn == nil {
		return nil
	}
	_, err := cs.initFn.Call(ctx)
	return err
}

// InvokeRoot runs the single-call entry and returns its result.
func (cs *CompiledScript) InvokeRoot(ctx context.Context) (int32, error) {
	if cs.rootFn == nil {
		return 0, errors.BadScript(errors.PhaseDispatch, cs.name, "script has no root entry")
	}
	results, err := cs.rootFn.Call(ctx)
	if err != nil {
		return 0, err
	}
	return int32(uint32(results[0])), nil
}

// InvokeForEach runs the per-element entry over [start, end).
func (cs *CompiledScript) InvokeForEach(ctx context.Context, inPtr, outPtr, usrPtr, usrLen, start, end uint32) error {
	if cs.forEachFn == nil {
		return errors.BadScript(errors.PhaseDispatch, cs.name, "script has no per-element entry")
	}
	_, err := cs.forEachFn.Call(ctx,
		uint64(inPtr), uint64(outPtr), uint64(usrPtr),
		uint64(usrLen), uint64(start), uint64(end))
	return err
}

// InvokeFunction calls the invokable-table entry at slot. Payload-less
// functions ignore the pointer and length.
func (cs *CompiledScript) InvokeFunction(ctx context.Context, slot int, payloadPtr, payloadLen uint32) error {
	if slot < 0 || slot >= len(cs.functions) {
		return errors.SlotOutOfRange(cs.name, slot, len(cs.functions))
	}
	inv := cs.functions[slot]
	var err error
	if inv.takesPayload {
		_, err = inv.fn.Call(ctx, uint64(payloadPtr), uint64(payloadLen))
	} else {
		_, err = inv.fn.Call(ctx)
	}
	return err
}

// Alloc requests size bytes of guest memory through the script's exported
// allocator.
func (cs *CompiledScript) Alloc(ctx context.Context, size uint32) (uint32, error) {
	if cs.allocFn == nil {
		return 0, errors.AllocationFailed(cs.name, size,
			errors.NotFound(errors.PhaseDispatch, "allocator export", allocPrimary))
	}
	cs.stackBuf[0] = uint64(size)
	if err := cs.allocFn.CallWithStack(ctx, cs.stackBuf[:1]); err != nil {
		return 0, errors.AllocationFailed(cs.name, size, err)
	}
	ptr := uint32(cs.stackBuf[0])
	if ptr == 0 {
		return 0, errors.AllocationFailed(cs.name, size, nil)
	}
	return ptr, nil
}

// Free releases guest memory previously returned by Alloc. A script
// without a free export makes this a no-op.
func (cs *CompiledScript) Free(ctx context.Context, ptr uint32) {
	if cs.freeFn == nil || ptr == 0 {
		return
	}
	cs.stackBuf[0] = uint64(ptr)
	if err := cs.freeFn.CallWithStack(ctx, cs.stackBuf[:1]); err != nil {
		Logger().Warn("failed to release staged guest memory",
			zap.String("script", cs.name),
			zap.Uint32("ptr", ptr),
			zap.Error(err))
	}
}

// VariableCount returns the number of exported-variable slots.
func (cs *CompiledScript) VariableCount() int { return len(cs.variables) }

// VariableName returns the exported name of the slot's global.
func (cs *CompiledScript) VariableName(slot int) string {
	if slot < 0 || slot >= len(cs.variables) {
		return ""
	}
	return cs.variables[slot].name
}

// SetVariable writes a guest pointer into the slot's exported global.
func (cs *CompiledScript) SetVariable(slot int, value uint32) error {
	if slot < 0 || slot >= len(cs.variables) {
		return errors.OutOfBounds(errors.PhaseDispatch, "variable slot", slot, len(cs.variables))
	}
	cs.variables[slot].global.Set(uint64(value))
	return nil
}

// VariableValue reads the slot global's current value.
func (cs *CompiledScript) VariableValue(slot int) (uint32, error) {
	if slot < 0 || slot >= len(cs.variables) {
		return 0, errors.OutOfBounds(errors.PhaseDispatch, "variable slot", slot, len(cs.variables))
	}
	return uint32(cs.variables[slot].global.Get()), nil
}

// FunctionCount returns the number of invokable-table entries.
func (cs *CompiledScript) FunctionCount() int { return len(cs.functions) }

// FunctionName returns the exported name at the slot.
func (cs *CompiledScript) FunctionName(slot int) string {
	if slot < 0 || slot >= len(cs.functions) {
		return ""
	}
	return cs.functions[slot].name
}

// TakesPayload reports whether the function at slot accepts a staged
// (ptr, len) payload.
func (cs *CompiledScript) TakesPayload(slot int) bool {
	if slot < 0 || slot >= len(cs.functions) {
		return false
	}
	return cs.functions[slot].takesPayload
}

// Close releases the script's module and its dedicated wazero runtime.
func (cs *CompiledScript) Close(ctx context.Context) error {
	var firstErr error
	if cs.mod != nil {
		if err := cs.mod.Close(ctx); err != nil {
			firstErr = err
		}
		cs.mod = nil
	}
	if cs.runtime != nil {
		if err := cs.runtime.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
		cs.runtime = nil
	}
	// Clear references to help GC
	cs.memory = nil
	cs.initFn = nil
	cs.rootFn = nil
	cs.forEachFn = nil
	cs.allocFn = nil
	cs.freeFn = nil
	cs.variables = nil
	cs.functions = nil
	return firstErr
}

// guestMemory wraps wazero memory to implement compute.Memory
type guestMemory struct {
	mem api.Memory
}

func (m *guestMemory) Read(offset uint32, length uint32) ([]byte, error) {
	data, ok := m.mem.Read(offset, length)
	if !ok {
		return nil, fmt.Errorf("read out of bounds: offset=%d, length=%d", offset, length)
	}
	return data, nil
}

func (m *guestMemory) Write(offset uint32, data []byte) error {
	ok := m.mem.Write(offset, data)
	if !ok {
		return fmt.Errorf("write out of bounds: offset=%d, length=%d", offset, len(data))
	}
	return nil
}

func (m *guestMemory) ReadU8(offset uint32) (uint8, error) {
	data, err := m.Read(offset, 1)
	if err != nil {
		return 0, err
	}
	return data[0], nil
}

func (m *guestMemory) ReadU32(offset uint32) (uint32, error) {
	val, ok := m.mem.ReadUint32Le(offset)
	if !ok {
		return 0, fmt.Errorf("read out of bounds")
	}
	return val, nil
}

func (m *guestMemory) ReadU64(offset uint32) (uint64, error) {
	val, ok := m.mem.ReadUint64Le(offset)
	if !ok {
		return 0, fmt.Errorf("read out of bounds")
	}
	return val, nil
}

func (m *guestMemory) WriteU8(offset uint32, value uint8) error {
	return m.Write(offset, []byte{value})
}

func (m *guestMemory) WriteU32(offset uint32, value uint32) error {
	ok := m.mem.WriteUint32Le(offset, value)
	if !ok {
		return fmt.Errorf("write out of bounds")
	}
	return nil
}

func (m *guestMemory) WriteU64(offset uint32, value uint64) error {
	ok := m.mem.WriteUint64Le(offset, value)
	if !ok {
		return fmt.Errorf("write out of bounds")
	}
	return nil
}

func (m *guestMemory) Size() uint32 {
	if m.mem == nil {
		return 0
	}
	return m.mem.Size()
}

// Compile-time check that guestMemory implements compute.Memory
var _ compute.Memory = (*guestMemory)(nil)
