package linker

import (
	"sort"
	"sync"

	"github.com/tetratelabs/wazero/api"
)

// HostFunc defines a host function a script may import: name, wasm
// signature, handler, and whether the function is safe to call from
// concurrent dispatch workers. A script importing any non-threadable
// symbol loses its threadable flag.
type HostFunc struct {
	Name       string
	Params     []api.ValueType
	Results    []api.ValueType
	Fn         api.GoModuleFunc
	Threadable bool
}

// Table is one named set of host functions. Thread-safe.
type Table struct {
	name  string
	funcs map[string]*HostFunc
	mu    sync.RWMutex
}

// NewTable creates an empty table.
func NewTable(name string) *Table {
	return &Table{
		name:  name,
		funcs: make(map[string]*HostFunc),
	}
}

// Name returns the table's name.
func (t *Table) Name() string {
	return t.name
}

// Define registers a host function, overwriting any existing definition
// with the same name.
func (t *Table) Define(fn *HostFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.funcs[fn.Name] = fn
}

// Lookup returns the definition for a symbol, or nil if the table does
// not define it.
func (t *Table) Lookup(symbol string) *HostFunc {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.funcs[symbol]
}

// Len returns the number of definitions.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.funcs)
}

// Names returns the defined symbol names, sorted.
func (t *Table) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	names := make([]string, 0, len(t.funcs))
	for name := range t.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
