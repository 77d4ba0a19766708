// Package codegen drives a target backend over one function.
//
// A Context owns the function being compiled. Compile verifies it when the
// flags ask for it and lays it out, returning the exact code size; the caller
// then allocates a buffer of that size and calls EmitToMemory.
package codegen

import (
	stderrors "errors"
	"fmt"

	"github.com/wippyai/wasm2obj/binemit"
	"github.com/wippyai/wasm2obj/ir"
	"github.com/wippyai/wasm2obj/isa"
	"github.com/wippyai/wasm2obj/verifier"
)

// MaxCodeSize is the largest function body Compile accepts.
const MaxCodeSize = 1 << 30

// Context is the workspace for compiling a single function. It is not safe
// for concurrent use; create one per function.
type Context struct {
	Func *ir.Function

	layout *isa.CodeLayout
}

// NewContext returns a context holding an empty function.
func NewContext() *Context {
	return &Context{Func: ir.NewFunction("", ir.Signature{})}
}

// NewContextForFunction returns a context that takes ownership of fn.
func NewContextForFunction(fn *ir.Function) *Context {
	return &Context{Func: fn}
}

// Clear resets the context for reuse with another function.
func (c *Context) Clear() {
	c.Func = ir.NewFunction("", ir.Signature{})
	c.layout = nil
}

// Verify runs the verifier on the context's function.
func (c *Context) Verify(target isa.TargetISA) error {
	if err := verifier.Verify(c.Func, target); err != nil {
		var verr *verifier.Error
		if stderrors.As(err, &verr) {
			return &Error{Kind: KindVerifier, Verifier: verr}
		}
		return &Error{Kind: KindVerifier, Cause: err}
	}
	return nil
}

// Compile prepares the function for emission on target and returns the
// size of its machine code in bytes.
func (c *Context) Compile(target isa.TargetISA, flags Flags) (uint32, error) {
	c.layout = nil
	if flags.EnableVerifier() {
		if err := c.Verify(target); err != nil {
			return 0, err
		}
	}

	layout, err := target.Layout(c.Func)
	if err != nil {
		if stderrors.Is(err, isa.ErrImplLimit) {
			return 0, &Error{Kind: KindImplLimit, Cause: err}
		}
		return 0, &Error{Kind: KindBackend, Cause: err}
	}
	if layout.Size > MaxCodeSize {
		return 0, &Error{Kind: KindCodeTooLarge, Cause: fmt.Errorf("%d bytes", layout.Size)}
	}

	c.layout = layout
	return layout.Size, nil
}

// Layout returns the layout computed by the last successful Compile.
func (c *Context) Layout() *isa.CodeLayout {
	return c.layout
}

// EmitToMemory writes the compiled function into buf, which must hold at
// least the size returned by Compile, reporting relocations to relocs.
func (c *Context) EmitToMemory(buf []byte, relocs binemit.RelocSink, target isa.TargetISA) error {
	if c.layout == nil {
		return &Error{Kind: KindBackend, Cause: stderrors.New("emit before a successful compile")}
	}
	if uint32(len(buf)) < c.layout.Size {
		return &Error{Kind: KindBackend, Cause: fmt.Errorf("buffer of %d bytes for %d bytes of code", len(buf), c.layout.Size)}
	}

	sink := binemit.NewMemoryCodeSink(buf, relocs)
	if err := target.Emit(c.Func, c.layout, sink); err != nil {
		return &Error{Kind: KindBackend, Cause: err}
	}
	if err := sink.Err(); err != nil {
		return &Error{Kind: KindBackend, Cause: err}
	}
	return nil
}
