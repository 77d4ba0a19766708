// Package binemit defines the interfaces a target backend writes machine
// code and relocation sites through.
//
// A backend emits each function into a CodeSink. Symbolic references whose
// final address is not known at emission time are reported as relocations:
// the sink is told the relocation kind and target right before the field
// that must later be patched is written.
package binemit

import "github.com/wippyai/wasm2obj/ir"

// CodeOffset is a byte offset from the start of a function's code.
type CodeOffset uint32

// Reloc identifies how a relocated field is computed and encoded.
type Reloc uint8

const (
	// Abs4 is an absolute 4-byte address.
	Abs4 Reloc = iota
	// Abs8 is an absolute 8-byte address.
	Abs8
	// X86PCRel4 is a 4-byte displacement relative to the end of the field.
	X86PCRel4
	// X86CallPCRel4 is the 4-byte displacement of a call instruction.
	X86CallPCRel4
)

var relocNames = [...]string{
	Abs4:          "Abs4",
	Abs8:          "Abs8",
	X86PCRel4:     "X86PCRel4",
	X86CallPCRel4: "X86CallPCRel4",
}

func (r Reloc) String() string {
	if int(r) < len(relocNames) {
		return relocNames[r]
	}
	return "Reloc?"
}

// Size returns the width of the relocated field in bytes.
func (r Reloc) Size() int {
	if r == Abs8 {
		return 8
	}
	return 4
}

// RelocSink receives the relocation sites found while emitting a function.
type RelocSink interface {
	// RelocBlock records a reference to the address of a block.
	RelocBlock(off CodeOffset, r Reloc, blk ir.Block)
	// RelocFunc records a reference to an external function.
	RelocFunc(off CodeOffset, r Reloc, fn ir.FuncRef)
	// RelocJumpTable records a reference to a jump table.
	RelocJumpTable(off CodeOffset, r Reloc, jt ir.JumpTable)
}

// CodeSink accepts the bytes of one function in order. The Reloc methods
// apply to the field that starts at the current offset.
type CodeSink interface {
	Offset() CodeOffset
	Put1(b uint8)
	Put2(v uint16)
	Put4(v uint32)
	Put8(v uint64)
	RelocBlock(r Reloc, blk ir.Block)
	RelocFunc(r Reloc, fn ir.FuncRef)
	RelocJumpTable(r Reloc, jt ir.JumpTable)
}

// NullRelocSink drops every relocation.
type NullRelocSink struct{}

func (NullRelocSink) RelocBlock(CodeOffset, Reloc, ir.Block) {}
func (NullRelocSink) RelocFunc(CodeOffset, Reloc, ir.FuncRef) {}
func (NullRelocSink) RelocJumpTable(CodeOffset, Reloc, ir.JumpTable) {}
