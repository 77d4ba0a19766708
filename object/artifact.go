// Package object assembles compiled functions into a relocatable object.
//
// An Artifact collects named code blobs in insertion order. Names are the
// identity of a definition and must be unique. Emit serializes the artifact
// as an ELF64 relocatable object with one global function symbol per
// definition.
package object

import (
	"debug/elf"
	"strings"

	"github.com/wippyai/wasm2obj/errors"
)

// Target identifies the machine an artifact is built for.
type Target struct {
	Name    string
	Machine elf.Machine
}

// TargetX64 is x86-64 System V.
var TargetX64 = Target{Name: "x64", Machine: elf.EM_X86_64}

// TargetFor returns the object target for a backend name.
func TargetFor(name string) (Target, error) {
	switch name {
	case TargetX64.Name:
		return TargetX64, nil
	}
	return Target{}, errors.New(errors.PhaseObject, errors.KindUnsupported).
		Value(name).
		Detail("no object format for target %q", name).
		Build()
}

// Definition is a named block of machine code.
type Definition struct {
	Name string
	Code []byte
}

// ErrDuplicateDefinition matches errors returned by AddCode for a name that
// is already defined.
var ErrDuplicateDefinition = &errors.Error{Phase: errors.PhaseObject, Kind: errors.KindDuplicateSymbol}

// Artifact accumulates the code of a module. It is not safe for concurrent
// use.
type Artifact struct {
	Name   string
	Target Target

	defs  []Definition
	index map[string]int
}

// NewArtifact returns an empty artifact.
func NewArtifact(name string, target Target) *Artifact {
	return &Artifact{
		Name:   name,
		Target: target,
		index:  make(map[string]int),
	}
}

// AddCode appends a definition. The artifact takes ownership of code.
func (a *Artifact) AddCode(name string, code []byte) error {
	if name == "" {
		return errors.InvalidInput(errors.PhaseObject, "definition without a name")
	}
	if strings.IndexByte(name, 0) >= 0 {
		return errors.New(errors.PhaseObject, errors.KindInvalidInput).
			Value(name).
			Detail("definition name %q contains a NUL byte", name).
			Build()
	}
	if _, ok := a.index[name]; ok {
		return errors.New(errors.PhaseObject, errors.KindDuplicateSymbol).
			Value(name).
			Detail("duplicate definition of %q", name).
			Build()
	}
	a.index[name] = len(a.defs)
	a.defs = append(a.defs, Definition{Name: name, Code: code})
	return nil
}

// Has reports whether name is defined.
func (a *Artifact) Has(name string) bool {
	_, ok := a.index[name]
	return ok
}

// Lookup returns the code defined under name.
func (a *Artifact) Lookup(name string) ([]byte, bool) {
	i, ok := a.index[name]
	if !ok {
		return nil, false
	}
	return a.defs[i].Code, true
}

// Definitions returns the definitions in insertion order.
func (a *Artifact) Definitions() []Definition {
	return append([]Definition(nil), a.defs...)
}

// Len returns the number of definitions.
func (a *Artifact) Len() int {
	return len(a.defs)
}

// CodeSize returns the total number of code bytes, without padding.
func (a *Artifact) CodeSize() int {
	n := 0
	for _, d := range a.defs {
		n += len(d.Code)
	}
	return n
}
