package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in the pipeline the error occurred
type Phase string

const (
	PhaseLoad      Phase = "load"      // reading and decoding the wasm binary
	PhaseTranslate Phase = "translate" // wasm to IR
	PhaseVerify    Phase = "verify"    // IR verification
	PhaseCompile   Phase = "compile"   // code size and layout
	PhaseEmit      Phase = "emit"      // machine code emission and artifact assembly
	PhaseObject    Phase = "object"    // object file writing
	PhaseConfig    Phase = "config"    // driver configuration
)

// Kind categorizes the error
type Kind string

const (
	KindVerifier         Kind = "verifier"
	KindCodegen          Kind = "codegen"
	KindNoCode           Kind = "no_code"
	KindUnsupportedReloc Kind = "unsupported_reloc"
	KindInvalidStart     Kind = "invalid_start"
	KindDuplicateSymbol  Kind = "duplicate_symbol"
	KindInvalidInput     Kind = "invalid_input"
	KindInvalidData      Kind = "invalid_data"
	KindUnsupported      Kind = "unsupported"
	KindIO               Kind = "io"
)

// Error is the structured error type used throughout the pipeline.
//
// When Detail is set it is the complete human-readable diagnostic and the
// cause is not repeated in the message; Unwrap still exposes it.
type Error struct {
	Value    any
	Cause    error
	Phase    Phase
	Kind     Kind
	Function string
	Detail   string
	Path     []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Function != "" {
		b.WriteString(" in ")
		b.WriteString(e.Function)
	}

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	switch {
	case e.Detail != "":
		b.WriteString(": ")
		b.WriteString(e.Detail)
	case e.Cause != nil:
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
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

// Function sets the name of the function being processed
func (b *Builder) Function(name string) *Builder {
	b.err.Function = name
	return b
}

// Path sets the location path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
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

// Sentinel values for errors.Is matching on phase and kind.
var (
	ErrVerifier         = &Error{Phase: PhaseVerify, Kind: KindVerifier}
	ErrCodegen          = &Error{Phase: PhaseCompile, Kind: KindCodegen}
	ErrNoCode           = &Error{Phase: PhaseCompile, Kind: KindNoCode}
	ErrUnsupportedReloc = &Error{Phase: PhaseEmit, Kind: KindUnsupportedReloc}
	ErrInvalidStart     = &Error{Phase: PhaseEmit, Kind: KindInvalidStart}
	ErrDuplicateSymbol  = &Error{Phase: PhaseEmit, Kind: KindDuplicateSymbol}
)

// Unsupported creates an unsupported operation error
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

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// Load creates a module loading error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInvalidData,
		Detail: fmt.Sprintf("%s: %v", detail, cause),
		Cause:  cause,
	}
}

// IO creates an I/O error for reading inputs or writing outputs
func IO(phase Phase, what string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindIO,
		Detail: fmt.Sprintf("%s: %v", what, cause),
		Cause:  cause,
	}
}
