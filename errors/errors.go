package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseLayout    Phase = "layout"    // shape/mip computation
	PhaseBuild     Phase = "build"     // shape registry build protocol
	PhaseCompile   Phase = "compile"   // script compilation
	PhaseLink      Phase = "link"      // symbol resolution and binding
	PhaseDispatch  Phase = "dispatch"  // script invocation
	PhaseSerialize Phase = "serialize" // stream encoding/decoding
)

// Kind categorizes the error
type Kind string

const (
	KindBadScript        Kind = "bad_script"
	KindCompileFailure   Kind = "compile_failure"
	KindSymbolResolution Kind = "symbol_resolution"
	KindDeserialization  Kind = "deserialization"
	KindUnsupported      Kind = "unsupported"
	KindInvalidInput     Kind = "invalid_input"
	KindOutOfBounds      Kind = "out_of_bounds"
	KindNotFound         Kind = "not_found"
	KindAllocation       Kind = "allocation"
	KindInstantiation    Kind = "instantiation"
)

// Error is the structured error type used throughout the module
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Script string
	Symbol string
	Detail string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Script != "" {
		b.WriteString(" script ")
		b.WriteString(fmt.Sprintf("%q", e.Script))
	}
	if e.Symbol != "" {
		b.WriteString(" symbol ")
		b.WriteString(fmt.Sprintf("%q", e.Symbol))
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// IsKind reports whether err is (or wraps) an Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// IsBadScript reports a recoverable bad-script error: a missing compiled
// entry point or an invoke slot out of range.
func IsBadScript(err error) bool { return IsKind(err, KindBadScript) }

// IsCompileFailure reports a whole-compile abort.
func IsCompileFailure(err error) bool { return IsKind(err, KindCompileFailure) }

// IsDeserialization reports a failed stream load.
func IsDeserialization(err error) bool { return IsKind(err, KindDeserialization) }

// IsUnsupported reports an explicitly unimplemented feature request.
func IsUnsupported(err error) bool { return IsKind(err, KindUnsupported) }

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Script sets the script name
func (b *Builder) Script(name string) *Builder {
	b.err.Script = name
	return b
}

// Symbol sets the symbol name
func (b *Builder) Symbol(name string) *Builder {
	b.err.Symbol = name
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// BadScript creates a recoverable bad-script error.
func BadScript(phase Phase, script, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindBadScript,
		Script: script,
		Detail: detail,
	}
}

// SlotOutOfRange creates a bad-script error for an invoke slot past the
// exported function table.
func SlotOutOfRange(script string, slot, count int) *Error {
	return &Error{
		Phase:  PhaseDispatch,
		Kind:   KindBadScript,
		Script: script,
		Detail: fmt.Sprintf("invoke slot %d out of range (%d exported functions)", slot, count),
		Value:  slot,
	}
}

// CompileFailed creates a compile-abort error.
func CompileFailed(script string, cause error) *Error {
	return &Error{
		Phase:  PhaseCompile,
		Kind:   KindCompileFailure,
		Script: script,
		Detail: "script compilation failed",
		Cause:  cause,
	}
}

// BadPragma creates a compile-abort error for a rejected pragma value.
func BadPragma(script, key, value string) *Error {
	return &Error{
		Phase:  PhaseCompile,
		Kind:   KindCompileFailure,
		Script: script,
		Detail: fmt.Sprintf("invalid value %q for pragma %q", value, key),
		Value:  value,
	}
}

// UnresolvedSymbol creates the non-fatal resolution error bound behind an
// unresolved import; it surfaces only if the guest calls the stub.
func UnresolvedSymbol(script, symbol string) *Error {
	return &Error{
		Phase:  PhaseLink,
		Kind:   KindSymbolResolution,
		Script: script,
		Symbol: symbol,
		Detail: "symbol is unresolved",
	}
}

// BadStreamTag creates a deserialization error for a mismatched leading
// class tag.
func BadStreamTag(what string, got, want uint32) *Error {
	return &Error{
		Phase:  PhaseSerialize,
		Kind:   KindDeserialization,
		Detail: fmt.Sprintf("%s stream: class tag %d, expected %d", what, got, want),
		Value:  got,
	}
}

// Deserialization wraps an inner failure during a stream load.
func Deserialization(what string, cause error) *Error {
	return &Error{
		Phase:  PhaseSerialize,
		Kind:   KindDeserialization,
		Detail: fmt.Sprintf("load %s", what),
		Cause:  cause,
	}
}

// Unsupported creates an unsupported-feature error.
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// OutOfBounds creates an out of bounds error
func OutOfBounds(phase Phase, what string, index, length int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Detail: fmt.Sprintf("%s index %d out of bounds (length %d)", what, index, length),
		Value:  index,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// AllocationFailed creates a guest allocation failure error.
func AllocationFailed(script string, size uint32, cause error) *Error {
	return &Error{
		Phase:  PhaseDispatch,
		Kind:   KindAllocation,
		Script: script,
		Detail: fmt.Sprintf("failed to allocate %d bytes of guest memory", size),
		Cause:  cause,
	}
}

// Instantiation creates a module instantiation error
func Instantiation(script string, cause error) *Error {
	return &Error{
		Phase:  PhaseCompile,
		Kind:   KindInstantiation,
		Script: script,
		Detail: "instantiate module",
		Cause:  cause,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}
