package codegen

import (
	"strings"

	"github.com/wippyai/wasm2obj/verifier"
)

// ErrorKind classifies a compilation failure.
type ErrorKind uint8

const (
	// KindVerifier means the IR failed verification.
	KindVerifier ErrorKind = iota
	// KindImplLimit means the function exceeds a limit of the backend.
	KindImplLimit
	// KindCodeTooLarge means the generated code exceeds MaxCodeSize.
	KindCodeTooLarge
	// KindBackend covers any other failure reported by the target.
	KindBackend
)

func (k ErrorKind) String() string {
	switch k {
	case KindVerifier:
		return "verifier error"
	case KindImplLimit:
		return "implementation limit exceeded"
	case KindCodeTooLarge:
		return "code for function is too large"
	default:
		return "backend error"
	}
}

// Error is returned by Context when compilation fails.
type Error struct {
	Verifier *verifier.Error // set for KindVerifier
	Cause    error
	Kind     ErrorKind
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	switch {
	case e.Verifier != nil:
		b.WriteString(": ")
		b.WriteString(e.Verifier.Error())
	case e.Cause != nil:
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	if e.Verifier != nil {
		return e.Verifier
	}
	return e.Cause
}
