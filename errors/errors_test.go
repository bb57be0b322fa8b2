package errors

import (
	"errors"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:  PhaseCompile,
				Kind:   KindCompileFailure,
				Script: "blur",
				Detail: "invalid value \"2\" for pragma \"version\"",
			},
			contains: []string{"[compile]", "compile_failure", `"blur"`, "pragma"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseDispatch,
				Kind:  KindBadScript,
			},
			contains: []string{"[dispatch]", "bad_script"},
		},
		{
			name: "error with symbol",
			err: &Error{
				Phase:  PhaseLink,
				Kind:   KindSymbolResolution,
				Script: "blur",
				Symbol: "rand_u32",
			},
			contains: []string{"[link]", "symbol_resolution", `"rand_u32"`},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseSerialize,
				Kind:   KindDeserialization,
				Detail: "load shape",
				Cause:  errors.New("underlying error"),
			},
			contains: []string{"[serialize]", "deserialization", "load shape", "caused by", "underlying error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !containsSubstring(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{
		Phase: PhaseCompile,
		Kind:  KindCompileFailure,
		Cause: cause,
	}

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}
	if !errors.Is(errors.Unwrap(err), cause) {
		t.Error("errors.Unwrap did not return cause")
	}
}

func TestError_Is(t *testing.T) {
	err := &Error{
		Phase:  PhaseDispatch,
		Kind:   KindBadScript,
		Script: "blur",
	}

	if !err.Is(&Error{Phase: PhaseDispatch, Kind: KindBadScript}) {
		t.Error("Is should match same phase and kind")
	}
	if err.Is(&Error{Phase: PhaseCompile, Kind: KindBadScript}) {
		t.Error("Is should not match different phase")
	}
	if err.Is(&Error{Phase: PhaseDispatch, Kind: KindInvalidInput}) {
		t.Error("Is should not match different kind")
	}

	target := &Error{Phase: PhaseDispatch, Kind: KindBadScript}
	if !errors.Is(err, target) {
		t.Error("errors.Is should match")
	}
}

func TestKindPredicates(t *testing.T) {
	if !IsBadScript(SlotOutOfRange("blur", 7, 3)) {
		t.Error("IsBadScript should match slot out of range")
	}
	if !IsCompileFailure(BadPragma("blur", "version", "2")) {
		t.Error("IsCompileFailure should match bad pragma")
	}
	if !IsDeserialization(BadStreamTag("shape", 9, 3)) {
		t.Error("IsDeserialization should match bad tag")
	}
	if !IsUnsupported(Unsupported(PhaseBuild, "arrayed dimensions")) {
		t.Error("IsUnsupported should match")
	}
	if IsBadScript(errors.New("plain")) {
		t.Error("predicate should not match a plain error")
	}

	// Predicates see through wrapping.
	wrapped := Wrap(PhaseDispatch, KindAllocation, SlotOutOfRange("s", 1, 1), "outer")
	if !IsBadScript(wrapped) {
		t.Error("predicate should match through the cause chain")
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseCompile, KindCompileFailure).
		Script("blur").
		Symbol("root.expand").
		Value(42).
		Cause(cause).
		Detail("expected %s, got %s", "()->i32", "()->f32").
		Build()

	if err.Phase != PhaseCompile {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseCompile)
	}
	if err.Kind != KindCompileFailure {
		t.Errorf("Kind = %v, want %v", err.Kind, KindCompileFailure)
	}
	if err.Script != "blur" {
		t.Errorf("Script = %q, want blur", err.Script)
	}
	if err.Symbol != "root.expand" {
		t.Errorf("Symbol = %q, want root.expand", err.Symbol)
	}
	if err.Value != 42 {
		t.Errorf("Value = %v, want 42", err.Value)
	}
	if !errors.Is(err.Cause, cause) {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if err.Detail != "expected ()->i32, got ()->f32" {
		t.Errorf("Detail = %v", err.Detail)
	}
}

func TestConvenienceConstructors(t *testing.T) {
	t.Run("BadScript", func(t *testing.T) {
		err := BadScript(PhaseDispatch, "blur", "attempted to run bad script")
		if err.Kind != KindBadScript {
			t.Errorf("Kind = %v, want %v", err.Kind, KindBadScript)
		}
		if err.Script != "blur" {
			t.Errorf("Script = %q, want blur", err.Script)
		}
	})

	t.Run("SlotOutOfRange", func(t *testing.T) {
		err := SlotOutOfRange("blur", 7, 3)
		if err.Kind != KindBadScript {
			t.Errorf("Kind = %v, want %v", err.Kind, KindBadScript)
		}
		if err.Value != 7 {
			t.Errorf("Value = %v, want 7", err.Value)
		}
		if !containsSubstring(err.Detail, "7") || !containsSubstring(err.Detail, "3") {
			t.Errorf("Detail = %v, should contain slot and count", err.Detail)
		}
	})

	t.Run("CompileFailed", func(t *testing.T) {
		cause := errors.New("bad magic")
		err := CompileFailed("blur", cause)
		if err.Kind != KindCompileFailure {
			t.Errorf("Kind = %v, want %v", err.Kind, KindCompileFailure)
		}
		if !errors.Is(err, cause) {
			t.Error("cause not wrapped")
		}
	})

	t.Run("BadPragma", func(t *testing.T) {
		err := BadPragma("blur", "stateVertex", "bogus")
		if err.Kind != KindCompileFailure {
			t.Errorf("Kind = %v, want %v", err.Kind, KindCompileFailure)
		}
		if !containsSubstring(err.Detail, "stateVertex") {
			t.Errorf("Detail = %v, should name the pragma", err.Detail)
		}
	})

	t.Run("UnresolvedSymbol", func(t *testing.T) {
		err := UnresolvedSymbol("blur", "rand_u32")
		if err.Kind != KindSymbolResolution {
			t.Errorf("Kind = %v, want %v", err.Kind, KindSymbolResolution)
		}
		if err.Symbol != "rand_u32" {
			t.Errorf("Symbol = %q, want rand_u32", err.Symbol)
		}
	})

	t.Run("BadStreamTag", func(t *testing.T) {
		err := BadStreamTag("shape", 9, 3)
		if err.Kind != KindDeserialization {
			t.Errorf("Kind = %v, want %v", err.Kind, KindDeserialization)
		}
		if err.Value != uint32(9) {
			t.Errorf("Value = %v, want 9", err.Value)
		}
	})

	t.Run("Unsupported", func(t *testing.T) {
		err := Unsupported(PhaseBuild, "arrayed dimensions")
		if err.Kind != KindUnsupported {
			t.Errorf("Kind = %v, want %v", err.Kind, KindUnsupported)
		}
	})

	t.Run("OutOfBounds", func(t *testing.T) {
		err := OutOfBounds(PhaseLayout, "mip level", 10, 4)
		if err.Kind != KindOutOfBounds {
			t.Errorf("Kind = %v, want %v", err.Kind, KindOutOfBounds)
		}
		if err.Value != 10 {
			t.Errorf("Value = %v, want 10", err.Value)
		}
	})

	t.Run("AllocationFailed", func(t *testing.T) {
		err := AllocationFailed("blur", 1024, nil)
		if err.Kind != KindAllocation {
			t.Errorf("Kind = %v, want %v", err.Kind, KindAllocation)
		}
		if !containsSubstring(err.Detail, "1024") {
			t.Errorf("Detail = %v, should contain size", err.Detail)
		}
	})

	t.Run("Instantiation", func(t *testing.T) {
		cause := errors.New("import mismatch")
		err := Instantiation("blur", cause)
		if err.Kind != KindInstantiation {
			t.Errorf("Kind = %v, want %v", err.Kind, KindInstantiation)
		}
		if !errors.Is(err, cause) {
			t.Error("cause not wrapped")
		}
	})
}

func containsSubstring(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return len(substr) == 0
}
