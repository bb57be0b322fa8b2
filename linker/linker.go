package linker

// Resolver maps an imported symbol name to its host definition. A nil
// return means the symbol is unresolved; the engine then binds a
// trapping stub in its place.
type Resolver func(symbol string) *HostFunc

// Linker orders the three host tables. Resolution walks core first,
// then the compute extension, then the graphics extension, and returns
// the first hit.
type Linker struct {
	core     *Table
	compute  *Table
	graphics *Table
}

// New creates a linker with three empty tables.
func New() *Linker {
	return &Linker{
		core:     NewTable("core"),
		compute:  NewTable("compute"),
		graphics: NewTable("graphics"),
	}
}

// Core returns the core table.
func (l *Linker) Core() *Table { return l.core }

// Compute returns the compute-extension table.
func (l *Linker) Compute() *Table { return l.compute }

// Graphics returns the graphics-extension table.
func (l *Linker) Graphics() *Table { return l.graphics }

// Resolve returns the highest-priority definition for a symbol, or nil
// when no table defines it.
func (l *Linker) Resolve(symbol string) *HostFunc {
	for _, t := range [...]*Table{l.core, l.compute, l.graphics} {
		if fn := t.Lookup(symbol); fn != nil {
			return fn
		}
	}
	return nil
}

// Resolver adapts the linker to the engine's resolver contract.
func (l *Linker) Resolver() Resolver {
	return l.Resolve
}

// DefineFunc registers a host function in the core table, overwriting
// any existing definition. Extension tables are extended through their
// own Define.
func (l *Linker) DefineFunc(fn *HostFunc) {
	l.core.Define(fn)
}
