// Package x64 is the x86-64 System V backend.
//
// Code is generated without register allocation: every SSA value and every
// stack slot lives in its own rbp-relative frame slot, and each instruction
// loads its operands into fixed scratch registers, computes, and stores its
// result back. All frame accesses and branches use 32-bit displacements, so
// the size of every instruction is known before block offsets are.
//
// Intra-function branches are resolved directly. References that need a
// linker are reported to the relocation sink: calls and func_addr as
// function relocations, block_addr as a block relocation and br_table as a
// jump table relocation.
package x64

import (
	"fmt"

	"github.com/wippyai/wasm2obj/binemit"
	"github.com/wippyai/wasm2obj/ir"
	"github.com/wippyai/wasm2obj/isa"
)

// Name is the name the backend registers under.
const Name = "x64"

func init() {
	isa.Register(Name, func() isa.TargetISA { return New() })
}

// maxFrameSize keeps every frame displacement within a signed 32-bit field.
const maxFrameSize = 1 << 30

// Backend implements isa.TargetISA for x86-64.
type Backend struct{}

// New returns the x86-64 backend.
func New() *Backend {
	return &Backend{}
}

func (*Backend) Name() string { return Name }
func (*Backend) PointerBytes() int { return 8 }

// CheckEncoding reports instructions that cannot be encoded by this backend.
func (*Backend) CheckEncoding(fn *ir.Function, inst ir.Inst) error {
	data := fn.DFG.Inst(inst)
	switch data.Opcode {
	case ir.OpCall:
		if int(data.Func) >= len(fn.ExtFuncs) {
			return nil
		}
		sig := fn.ExtFuncs[data.Func].Signature
		if len(sig.Params) > len(argRegs) {
			return fmt.Errorf("call passes %d arguments, at most %d are supported in registers",
				len(sig.Params), len(argRegs))
		}
		if len(sig.Returns) > 1 {
			return fmt.Errorf("call returns %d values, at most 1 is supported", len(sig.Returns))
		}
	case ir.OpReturn:
		if len(data.Args) > 1 {
			return fmt.Errorf("return of %d values, at most 1 is supported", len(data.Args))
		}
	case ir.OpInvalid:
		return fmt.Errorf("no encoding for %s", data.Opcode)
	}
	if recipe(fn, inst) == "" {
		return fmt.Errorf("no encoding for %s", data.Opcode)
	}
	return nil
}

// AnnotateInst returns the name of the encoding recipe used for inst.
func (*Backend) AnnotateInst(fn *ir.Function, inst ir.Inst) string {
	return recipe(fn, inst)
}

func recipe(fn *ir.Function, inst ir.Inst) string {
	data := fn.DFG.Inst(inst)
	switch op := data.Opcode; {
	case op == ir.OpIconst:
		if data.Type == ir.I64 {
			return "mov_imm64"
		}
		return "mov_imm32"
	case op == ir.OpImul:
		return "imul_rr"
	case op == ir.OpIshl || op == ir.OpSshr || op == ir.OpUshr:
		return "shift_cl"
	case op.IsBinary():
		return "alu_rr"
	case op == ir.OpIcmp:
		return "cmp_setcc"
	case op == ir.OpIreduce || op == ir.OpUextend:
		return "mov_r32"
	case op == ir.OpSextend:
		return "movsxd"
	case op == ir.OpSelect:
		return "cmovz"
	case op == ir.OpStackLoad:
		return "slot_load"
	case op == ir.OpStackStore:
		return "slot_store"
	case op == ir.OpJump:
		return "jmp_rel32"
	case op == ir.OpBrz || op == ir.OpBrnz:
		return "jcc_rel32"
	case op == ir.OpBrTable:
		return "jt_dispatch"
	case op == ir.OpReturn:
		return "ret"
	case op == ir.OpTrap:
		return "ud2"
	case op == ir.OpCall:
		return "call_rel32"
	case op == ir.OpFuncAddr || op == ir.OpBlockAddr:
		return "movabs_reloc"
	}
	return ""
}

// Layout sizes fn by running the encoder against a counting sink.
func (b *Backend) Layout(fn *ir.Function) (*isa.CodeLayout, error) {
	fr, err := newFrame(fn)
	if err != nil {
		return nil, err
	}
	var sink binemit.SizingSink
	offsets := make(map[ir.Block]binemit.CodeOffset, len(fn.Layout.Blocks()))
	enc := &encoder{fn: fn, frame: fr, sink: &sink, starts: offsets}
	if err := enc.function(); err != nil {
		return nil, err
	}
	return &isa.CodeLayout{
		BlockOffsets: offsets,
		Size:         uint32(sink.Offset()),
		FrameSize:    fr.size,
	}, nil
}

// Emit encodes fn into sink using the block offsets of layout.
func (b *Backend) Emit(fn *ir.Function, layout *isa.CodeLayout, sink binemit.CodeSink) error {
	fr, err := newFrame(fn)
	if err != nil {
		return err
	}
	starts := make(map[ir.Block]binemit.CodeOffset, len(layout.BlockOffsets))
	enc := &encoder{fn: fn, frame: fr, sink: sink, targets: layout.BlockOffsets, starts: starts}
	if err := enc.function(); err != nil {
		return err
	}
	for blk, off := range starts {
		if layout.BlockOffsets[blk] != off {
			return fmt.Errorf("%s emitted at offset %d, laid out at %d", blk, off, layout.BlockOffsets[blk])
		}
	}
	if got := uint32(sink.Offset()); got != layout.Size {
		return fmt.Errorf("emitted %d bytes, laid out %d", got, layout.Size)
	}
	return nil
}

// frame assigns an rbp-relative slot to every value and stack slot.
type frame struct {
	values []int32
	slots  []int32
	size   uint32
}

func newFrame(fn *ir.Function) (*frame, error) {
	fr := &frame{
		values: make([]int32, fn.DFG.NumValues()),
		slots:  make([]int32, len(fn.StackSlots)),
	}
	total := uint64(fn.DFG.NumValues()) * 8
	for _, ss := range fn.StackSlots {
		total += slotSize(ss)
	}
	if total > maxFrameSize {
		return nil, fmt.Errorf("%w: frame of %d bytes", isa.ErrImplLimit, total)
	}

	off := int32(0)
	for v := range fr.values {
		off -= 8
		fr.values[v] = off
	}
	for i, ss := range fn.StackSlots {
		off -= int32(slotSize(ss))
		fr.slots[i] = off
	}
	fr.size = uint32(align(uint64(-off), 16))
	return fr, nil
}

func slotSize(ss ir.StackSlotData) uint64 {
	return max(align(uint64(ss.Size), 8), 8)
}

func align(n, to uint64) uint64 {
	return (n + to - 1) &^ (to - 1)
}
