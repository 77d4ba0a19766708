package ir

// Opcode identifies the operation performed by an instruction.
type Opcode uint8

const (
	OpInvalid Opcode = iota
	OpIconst
	OpIadd
	OpIsub
	OpImul
	OpBand
	OpBor
	OpBxor
	OpIshl
	OpSshr
	OpUshr
	OpIcmp
	OpIreduce
	OpSextend
	OpUextend
	OpSelect
	OpStackLoad
	OpStackStore
	OpJump
	OpBrz
	OpBrnz
	OpBrTable
	OpReturn
	OpTrap
	OpCall
	OpFuncAddr
	OpBlockAddr
)

var opcodeNames = [...]string{
	OpInvalid:    "invalid",
	OpIconst:     "iconst",
	OpIadd:       "iadd",
	OpIsub:       "isub",
	OpImul:       "imul",
	OpBand:       "band",
	OpBor:        "bor",
	OpBxor:       "bxor",
	OpIshl:       "ishl",
	OpSshr:       "sshr",
	OpUshr:       "ushr",
	OpIcmp:       "icmp",
	OpIreduce:    "ireduce",
	OpSextend:    "sextend",
	OpUextend:    "uextend",
	OpSelect:     "select",
	OpStackLoad:  "stack_load",
	OpStackStore: "stack_store",
	OpJump:       "jump",
	OpBrz:        "brz",
	OpBrnz:       "brnz",
	OpBrTable:    "br_table",
	OpReturn:     "return",
	OpTrap:       "trap",
	OpCall:       "call",
	OpFuncAddr:   "func_addr",
	OpBlockAddr:  "block_addr",
}

func (op Opcode) String() string {
	if int(op) < len(opcodeNames) {
		return opcodeNames[op]
	}
	return "invalid"
}

// IsTerminator reports whether the opcode ends a block. Conditional
// branches are not terminators: an extended basic block may contain several
// of them before its final terminator.
func (op Opcode) IsTerminator() bool {
	switch op {
	case OpJump, OpBrTable, OpReturn, OpTrap:
		return true
	}
	return false
}

// IsBranch reports whether the opcode may transfer control to another block.
func (op Opcode) IsBranch() bool {
	switch op {
	case OpJump, OpBrz, OpBrnz, OpBrTable:
		return true
	}
	return false
}

// IsBinary reports whether the opcode is a two-operand integer operation
// whose result has the type of its operands.
func (op Opcode) IsBinary() bool {
	return op >= OpIadd && op <= OpUshr
}

// IsConversion reports whether the opcode changes integer width.
func (op Opcode) IsConversion() bool {
	return op == OpIreduce || op == OpSextend || op == OpUextend
}
