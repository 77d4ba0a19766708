package x64

import (
	"fmt"

	"github.com/wippyai/wasm2obj/binemit"
	"github.com/wippyai/wasm2obj/ir"
)

const (
	rax uint8 = 0
	rcx uint8 = 1
	rdx uint8 = 2
	rsi uint8 = 6
	rdi uint8 = 7
	r8  uint8 = 8
	r9  uint8 = 9
)

// argRegs are the System V integer argument registers.
var argRegs = [...]uint8{rdi, rsi, rdx, rcx, r8, r9}

// setcc opcodes, second byte after 0x0F.
var setcc = [...]uint8{
	ir.CondEqual:                      0x94,
	ir.CondNotEqual:                   0x95,
	ir.CondSignedLessThan:             0x9C,
	ir.CondSignedGreaterThanOrEqual:   0x9D,
	ir.CondSignedGreaterThan:          0x9F,
	ir.CondSignedLessThanOrEqual:      0x9E,
	ir.CondUnsignedLessThan:           0x92,
	ir.CondUnsignedGreaterThanOrEqual: 0x93,
	ir.CondUnsignedGreaterThan:        0x97,
	ir.CondUnsignedLessThanOrEqual:    0x96,
}

// ALU opcodes of the "op r/m, r" form, applied as op rax, rcx.
var aluOps = map[ir.Opcode]uint8{
	ir.OpIadd: 0x01,
	ir.OpIsub: 0x29,
	ir.OpBand: 0x21,
	ir.OpBor:  0x09,
	ir.OpBxor: 0x31,
}

// ModR/M bytes of the D3 group with rax as operand.
var shiftModRM = map[ir.Opcode]uint8{
	ir.OpIshl: 0xE0,
	ir.OpUshr: 0xE8,
	ir.OpSshr: 0xF8,
}

type encoder struct {
	fn    *ir.Function
	frame *frame
	sink  binemit.CodeSink
	// targets holds final block offsets; nil while sizing.
	targets map[ir.Block]binemit.CodeOffset
	// starts receives the offset at which each block is encoded.
	starts map[ir.Block]binemit.CodeOffset
}

func (e *encoder) function() error {
	e.prologue()
	for _, blk := range e.fn.Layout.Blocks() {
		e.starts[blk] = e.sink.Offset()
		for _, inst := range e.fn.Layout.BlockInsts(blk) {
			if err := e.inst(inst); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *encoder) prologue() {
	s := e.sink
	s.Put1(0x55)             // push rbp
	put(s, 0x48, 0x89, 0xE5) // mov rbp, rsp
	put(s, 0x48, 0x81, 0xEC) // sub rsp, imm32
	s.Put4(e.frame.size)

	entry, ok := e.fn.Layout.EntryBlock()
	if !ok {
		return
	}
	for i, p := range e.fn.DFG.BlockParams(entry) {
		if i < len(argRegs) {
			e.store(p, argRegs[i])
			continue
		}
		// Stack arguments sit above the return address and saved rbp.
		e.rbpMem(0x8B, rax, int32(16+8*(i-len(argRegs))))
		e.store(p, rax)
	}
}

func put(s binemit.CodeSink, bytes ...uint8) {
	for _, b := range bytes {
		s.Put1(b)
	}
}

// rbpMem encodes a 64-bit op between reg and [rbp+disp32].
func (e *encoder) rbpMem(op uint8, reg uint8, disp int32) {
	rex := uint8(0x48)
	if reg >= 8 {
		rex |= 0x04
	}
	put(e.sink, rex, op, 0x80|(reg&7)<<3|5)
	e.sink.Put4(uint32(disp))
}

func (e *encoder) load(reg uint8, v ir.Value) { e.rbpMem(0x8B, reg, e.frame.values[v]) }
func (e *encoder) store(v ir.Value, reg uint8) { e.rbpMem(0x89, reg, e.frame.values[v]) }

func (e *encoder) storeResult(inst ir.Inst) {
	if v, ok := e.fn.DFG.FirstResult(inst); ok {
		e.store(v, rax)
	}
}

func (e *encoder) wide(t ir.Type) {
	if t == ir.I64 {
		e.sink.Put1(0x48)
	}
}

// rel32 writes the displacement from the end of the field to blk.
func (e *encoder) rel32(blk ir.Block) {
	if e.targets == nil {
		e.sink.Put4(0)
		return
	}
	end := int64(e.sink.Offset()) + 4
	e.sink.Put4(uint32(int32(int64(e.targets[blk]) - end)))
}

func (e *encoder) inst(inst ir.Inst) error {
	s := e.sink
	data := e.fn.DFG.Inst(inst)
	args := data.Args

	switch op := data.Opcode; {
	case op == ir.OpIconst:
		if data.Type == ir.I64 {
			put(s, 0x48, 0xB8) // movabs rax, imm64
			s.Put8(uint64(data.Imm))
		} else {
			s.Put1(0xB8) // mov eax, imm32
			s.Put4(uint32(data.Imm))
		}
		e.storeResult(inst)

	case op.IsBinary():
		e.load(rax, args[0])
		e.load(rcx, args[1])
		e.wide(data.Type)
		switch {
		case op == ir.OpImul:
			put(s, 0x0F, 0xAF, 0xC1) // imul rax, rcx
		case shiftModRM[op] != 0:
			put(s, 0xD3, shiftModRM[op]) // shift rax, cl
		default:
			put(s, aluOps[op], 0xC8) // op rax, rcx
		}
		e.storeResult(inst)

	case op == ir.OpIcmp:
		e.load(rax, args[0])
		e.load(rcx, args[1])
		e.wide(e.fn.DFG.ValueType(args[0]))
		put(s, 0x39, 0xC8)                   // cmp rax, rcx
		put(s, 0x0F, setcc[data.Cond], 0xC0) // setcc al
		put(s, 0x0F, 0xB6, 0xC0)             // movzx eax, al
		e.storeResult(inst)

	case op == ir.OpIreduce || op == ir.OpUextend:
		e.load(rax, args[0])
		put(s, 0x89, 0xC0) // mov eax, eax
		e.storeResult(inst)

	case op == ir.OpSextend:
		e.load(rax, args[0])
		put(s, 0x48, 0x63, 0xC0) // movsxd rax, eax
		e.storeResult(inst)

	case op == ir.OpSelect:
		e.load(rdx, args[0])
		e.load(rax, args[1])
		e.load(rcx, args[2])
		put(s, 0x85, 0xD2)             // test edx, edx
		put(s, 0x48, 0x0F, 0x44, 0xC1) // cmovz rax, rcx
		e.storeResult(inst)

	case op == ir.OpStackLoad:
		e.rbpMem(0x8B, rax, e.frame.slots[data.Slot])
		e.storeResult(inst)

	case op == ir.OpStackStore:
		e.load(rax, args[0])
		e.rbpMem(0x89, rax, e.frame.slots[data.Slot])

	case op == ir.OpJump:
		s.Put1(0xE9)
		e.rel32(data.Dest)

	case op == ir.OpBrz || op == ir.OpBrnz:
		e.load(rax, args[0])
		e.wide(e.fn.DFG.ValueType(args[0]))
		put(s, 0x85, 0xC0) // test rax, rax
		if op == ir.OpBrz {
			put(s, 0x0F, 0x84) // jz
		} else {
			put(s, 0x0F, 0x85) // jnz
		}
		e.rel32(data.Dest)

	case op == ir.OpBrTable:
		if int(data.Table) >= len(e.fn.JumpTables) {
			return fmt.Errorf("%s: undeclared %s", inst, data.Table)
		}
		entries := len(e.fn.JumpTables[data.Table].Targets)
		e.load(rax, args[0])
		put(s, 0x89, 0xC0) // mov eax, eax
		s.Put1(0x3D)       // cmp eax, imm32
		s.Put4(uint32(entries))
		put(s, 0x0F, 0x83) // jae default
		e.rel32(data.Dest)
		put(s, 0x48, 0x8D, 0x0D) // lea rcx, [rip+jt]
		s.RelocJumpTable(binemit.X86PCRel4, data.Table)
		s.Put4(0)
		put(s, 0x48, 0x63, 0x04, 0x81) // movsxd rax, [rcx+rax*4]
		put(s, 0x48, 0x01, 0xC8)       // add rax, rcx
		put(s, 0xFF, 0xE0)             // jmp rax

	case op == ir.OpReturn:
		if len(args) == 1 {
			e.load(rax, args[0])
		}
		put(s, 0x48, 0x89, 0xEC) // mov rsp, rbp
		s.Put1(0x5D)             // pop rbp
		s.Put1(0xC3)             // ret

	case op == ir.OpTrap:
		put(s, 0x0F, 0x0B) // ud2

	case op == ir.OpCall:
		if len(args) > len(argRegs) {
			return fmt.Errorf("%s: %d call arguments do not fit in registers", inst, len(args))
		}
		for i, arg := range args {
			e.load(argRegs[i], arg)
		}
		s.Put1(0xE8)
		s.RelocFunc(binemit.X86CallPCRel4, data.Func)
		s.Put4(0)
		e.storeResult(inst)

	case op == ir.OpFuncAddr:
		put(s, 0x48, 0xB8)
		s.RelocFunc(binemit.Abs8, data.Func)
		s.Put8(0)
		e.storeResult(inst)

	case op == ir.OpBlockAddr:
		put(s, 0x48, 0xB8)
		s.RelocBlock(binemit.Abs8, data.Dest)
		s.Put8(0)
		e.storeResult(inst)

	default:
		return fmt.Errorf("%s: no encoding for %s", inst, op)
	}
	return nil
}
