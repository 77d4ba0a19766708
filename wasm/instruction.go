package wasm

import (
	"fmt"

	"github.com/wippyai/wasm2obj/wasm/internal/binary"
)

// Instruction represents a decoded WebAssembly instruction
type Instruction struct {
	Imm    interface{}
	Opcode byte
}

// Block type encodings as read by the signed LEB128 decoder.
const (
	BlockVoid int32 = -64
	BlockI32  int32 = -1
	BlockI64  int32 = -2
)

// BlockImm holds the block type for block, loop and if instructions.
type BlockImm struct {
	Type int32 // -64=void, -1=i32, -2=i64, >=0=type index
}

// BranchImm holds the label index for br and br_if instructions.
type BranchImm struct {
	LabelIdx uint32
}

// BrTableImm holds the label table for br_table instruction.
type BrTableImm struct {
	Labels  []uint32
	Default uint32
}

// CallImm holds the function index for call instruction.
type CallImm struct {
	FuncIdx uint32
}

// LocalImm holds the local index for local.get, local.set, local.tee.
type LocalImm struct {
	LocalIdx uint32
}

// I32Imm holds the constant value for i32.const instruction.
type I32Imm struct {
	Value int32
}

// I64Imm holds the constant value for i64.const instruction.
type I64Imm struct {
	Value int64
}

// UnsupportedOpcodeError is returned when the decoder meets an opcode
// outside the integer/control subset handled by the native backend.
type UnsupportedOpcodeError struct {
	Opcode byte
	Offset int
}

func (e *UnsupportedOpcodeError) Error() string {
	return fmt.Sprintf("unsupported opcode 0x%02x at offset %d", e.Opcode, e.Offset)
}

// GetCallTarget returns the call target if this is a call instruction
func (i Instruction) GetCallTarget() (uint32, bool) {
	if i.Opcode == OpCall {
		if imm, ok := i.Imm.(CallImm); ok {
			return imm.FuncIdx, true
		}
	}
	return 0, false
}

// DecodeInstructions decodes a sequence of instructions from raw bytes.
func DecodeInstructions(code []byte) ([]Instruction, error) {
	r := binary.NewReader(code)
	instrs := make([]Instruction, 0, len(code)/2)

	for r.Len() > 0 {
		offset := r.Position()
		op, _ := r.ReadByte()
		instr := Instruction{Opcode: op}

		var err error
		switch {
		case op == OpBlock || op == OpLoop || op == OpIf:
			var bt int32
			bt, err = r.ReadS32()
			instr.Imm = BlockImm{Type: bt}

		case op == OpBr || op == OpBrIf:
			var idx uint32
			idx, err = r.ReadU32()
			instr.Imm = BranchImm{LabelIdx: idx}

		case op == OpBrTable:
			instr.Imm, err = readBrTable(r)

		case op == OpCall:
			var idx uint32
			idx, err = r.ReadU32()
			instr.Imm = CallImm{FuncIdx: idx}

		case op == OpLocalGet || op == OpLocalSet || op == OpLocalTee:
			var idx uint32
			idx, err = r.ReadU32()
			instr.Imm = LocalImm{LocalIdx: idx}

		case op == OpI32Const:
			var v int32
			v, err = r.ReadS32()
			instr.Imm = I32Imm{Value: v}

		case op == OpI64Const:
			var v int64
			v, err = r.ReadS64()
			instr.Imm = I64Imm{Value: v}

		case isPlainOpcode(op):
			// no immediates

		default:
			return nil, &UnsupportedOpcodeError{Opcode: op, Offset: offset}
		}
		if err != nil {
			return nil, fmt.Errorf("decode opcode 0x%02x at offset %d: %w", op, offset, err)
		}
		instrs = append(instrs, instr)
	}
	return instrs, nil
}

func readBrTable(r *binary.Reader) (BrTableImm, error) {
	count, err := r.ReadU32()
	if err != nil {
		return BrTableImm{}, err
	}
	if int(count) > r.Len() {
		return BrTableImm{}, fmt.Errorf("br_table label count %d exceeds remaining code", count)
	}
	labels := make([]uint32, count)
	for i := range labels {
		if labels[i], err = r.ReadU32(); err != nil {
			return BrTableImm{}, err
		}
	}
	def, err := r.ReadU32()
	if err != nil {
		return BrTableImm{}, err
	}
	return BrTableImm{Labels: labels, Default: def}, nil
}

func isPlainOpcode(op byte) bool {
	switch op {
	case OpUnreachable, OpNop, OpElse, OpEnd, OpReturn, OpDrop, OpSelect,
		OpI32WrapI64, OpI64ExtendI32S, OpI64ExtendI32U:
		return true
	}
	return (op >= OpI32Eqz && op <= OpI64GeU) ||
		(op >= OpI32Add && op <= OpI32Mul) ||
		(op >= OpI32And && op <= OpI32ShrU) ||
		(op >= OpI64Add && op <= OpI64Mul) ||
		(op >= OpI64And && op <= OpI64ShrU)
}

// EncodeInstructions encodes instructions back to bytecode.
func EncodeInstructions(instrs []Instruction) []byte {
	w := binary.NewWriter()
	for i := range instrs {
		encodeInstruction(w, &instrs[i])
	}
	return w.Bytes()
}

func encodeInstruction(w *binary.Writer, instr *Instruction) {
	w.Byte(instr.Opcode)
	switch imm := instr.Imm.(type) {
	case BlockImm:
		w.WriteS64(int64(imm.Type))
	case BranchImm:
		w.WriteU32(imm.LabelIdx)
	case BrTableImm:
		w.WriteU32(uint32(len(imm.Labels)))
		for _, l := range imm.Labels {
			w.WriteU32(l)
		}
		w.WriteU32(imm.Default)
	case CallImm:
		w.WriteU32(imm.FuncIdx)
	case LocalImm:
		w.WriteU32(imm.LocalIdx)
	case I32Imm:
		w.WriteS64(int64(imm.Value))
	case I64Imm:
		w.WriteS64(imm.Value)
	}
}
