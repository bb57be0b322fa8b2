// Package errors provides structured error types for the compute runtime.
//
// Errors are categorized by Phase (where the error occurred) and Kind
// (error category). The Error type carries the script name, the symbol
// involved, and a cause chain.
//
// Use the Builder for structured construction:
//
//	err := errors.New(errors.PhaseCompile, errors.KindCompileFailure).
//		Script("blur").
//		Detail("invalid value %q for pragma %q", "2", "version").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.BadScript(errors.PhaseDispatch, "blur", "attempted to run bad script")
//	err := errors.UnresolvedSymbol("blur", "rand_u32")
//
// All errors implement the standard error interface and support
// errors.Is/As. Kind predicates (IsBadScript, IsCompileFailure, ...) let
// call sites classify without unwrapping by hand.
package errors
