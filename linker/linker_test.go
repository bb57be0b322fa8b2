package linker

import (
	"context"
	"testing"

	"github.com/tetratelabs/wazero/api"
)

func noopFn(ctx context.Context, mod api.Module, stack []uint64) {}

func def(name string, threadable bool) *HostFunc {
	return &HostFunc{
		Name:       name,
		Params:     []api.ValueType{api.ValueTypeI32},
		Results:    nil,
		Fn:         noopFn,
		Threadable: threadable,
	}
}

func TestTableDefineLookup(t *testing.T) {
	tbl := NewTable("core")
	if tbl.Name() != "core" {
		t.Errorf("Name() = %q", tbl.Name())
	}
	if tbl.Lookup("missing") != nil {
		t.Error("Lookup() on empty table must return nil")
	}

	fn := def("log_msg", true)
	tbl.Define(fn)
	if got := tbl.Lookup("log_msg"); got != fn {
		t.Errorf("Lookup() = %v, want the defined function", got)
	}
	if tbl.Len() != 1 {
		t.Errorf("Len() = %d, want 1", tbl.Len())
	}

	// Redefinition replaces.
	fn2 := def("log_msg", false)
	tbl.Define(fn2)
	if got := tbl.Lookup("log_msg"); got != fn2 {
		t.Error("Define() must overwrite an existing name")
	}
	if tbl.Len() != 1 {
		t.Errorf("Len() = %d after redefinition, want 1", tbl.Len())
	}
}

func TestTableNamesSorted(t *testing.T) {
	tbl := NewTable("core")
	for _, name := range []string{"zeta", "alpha", "mid"} {
		tbl.Define(def(name, true))
	}
	names := tbl.Names()
	want := []string{"alpha", "mid", "zeta"}
	if len(names) != len(want) {
		t.Fatalf("Names() = %v", names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Names()[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestResolvePriority(t *testing.T) {
	l := New()

	coreFn := def("shared", true)
	computeFn := def("shared", true)
	graphicsFn := def("shared", false)

	l.Graphics().Define(graphicsFn)
	if got := l.Resolve("shared"); got != graphicsFn {
		t.Error("graphics-only symbol must resolve from graphics")
	}

	l.Compute().Define(computeFn)
	if got := l.Resolve("shared"); got != computeFn {
		t.Error("compute must shadow graphics")
	}

	l.Core().Define(coreFn)
	if got := l.Resolve("shared"); got != coreFn {
		t.Error("core must shadow both extensions")
	}
}

func TestResolveMiss(t *testing.T) {
	l := New()
	l.Core().Define(def("present", true))

	if l.Resolve("absent") != nil {
		t.Error("Resolve() of an undefined symbol must return nil")
	}
}

func TestResolverAdapter(t *testing.T) {
	l := New()
	fn := def("sin_f32", true)
	l.Compute().Define(fn)

	var r Resolver = l.Resolver()
	if got := r("sin_f32"); got != fn {
		t.Errorf("resolver returned %v", got)
	}
	if r("cos_f32") != nil {
		t.Error("resolver must return nil for unresolved symbols")
	}
}

func TestDefineFuncTargetsCore(t *testing.T) {
	l := New()
	l.DefineFunc(def("custom", false))

	if l.Core().Lookup("custom") == nil {
		t.Error("DefineFunc must target the core table")
	}
	if l.Compute().Lookup("custom") != nil || l.Graphics().Lookup("custom") != nil {
		t.Error("DefineFunc must not touch extension tables")
	}
}
