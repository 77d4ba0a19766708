// Package isa describes target instruction set architectures.
//
// A TargetISA turns a verified IR function into machine code in two steps:
// Layout computes the size of every block and of the whole function, and
// Emit writes the bytes into a sink while reporting relocation sites.
// Backends register themselves by name; callers look them up with Lookup.
package isa

import (
	stderrors "errors"
	"sort"
	"sync"

	"github.com/wippyai/wasm2obj/binemit"
	"github.com/wippyai/wasm2obj/errors"
	"github.com/wippyai/wasm2obj/ir"
)

// TargetISA is the code generation interface of one target architecture.
type TargetISA interface {
	// Name returns the registered name of the target, e.g. "x64".
	Name() string

	// PointerBytes returns the size of an address in bytes.
	PointerBytes() int

	// CheckEncoding reports an error when inst has no encoding on this
	// target. The verifier calls it for every instruction.
	CheckEncoding(fn *ir.Function, inst ir.Inst) error

	// Layout computes block offsets and the code size of fn.
	Layout(fn *ir.Function) (*CodeLayout, error)

	// Emit writes the machine code of fn into sink. layout must come from
	// Layout on the same function.
	Emit(fn *ir.Function, layout *CodeLayout, sink binemit.CodeSink) error

	// AnnotateInst names the encoding recipe chosen for inst, used to
	// prefix instructions in diagnostics.
	AnnotateInst(fn *ir.Function, inst ir.Inst) string
}

// CodeLayout is the result of laying out a function for emission.
type CodeLayout struct {
	BlockOffsets map[ir.Block]binemit.CodeOffset
	Size         uint32
	FrameSize    uint32
}

// ErrImplLimit is wrapped by backend errors caused by a function exceeding a
// limit of the encoding, such as a frame too large for a 32-bit displacement.
var ErrImplLimit = stderrors.New("implementation limit exceeded")

// Factory creates a fresh TargetISA.
type Factory func() TargetISA

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register makes a backend available under name. Registering the same name
// twice replaces the earlier factory.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = f
}

// Lookup returns the backend registered under name.
func Lookup(name string) (TargetISA, error) {
	registryMu.RLock()
	f, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, errors.New(errors.PhaseConfig, errors.KindUnsupported).
			Value(name).
			Detail("unknown target %q", name).
			Build()
	}
	return f(), nil
}

// Names returns the registered target names in sorted order.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
