package ir

import "fmt"

// Block is a reference to an extended basic block in a function.
type Block uint32

func (b Block) String() string { return fmt.Sprintf("block%d", uint32(b)) }

// Inst is a reference to an instruction in a function's data flow graph.
type Inst uint32

func (i Inst) String() string { return fmt.Sprintf("inst%d", uint32(i)) }

// Value is a reference to an SSA value.
type Value uint32

func (v Value) String() string { return fmt.Sprintf("v%d", uint32(v)) }

// FuncRef is a reference to an external function declared in the preamble.
type FuncRef uint32

func (f FuncRef) String() string { return fmt.Sprintf("fn%d", uint32(f)) }

// JumpTable is a reference to a jump table declared in the preamble.
type JumpTable uint32

func (j JumpTable) String() string { return fmt.Sprintf("jt%d", uint32(j)) }

// StackSlot is a reference to a fixed-size slot in the function's frame.
type StackSlot uint32

func (s StackSlot) String() string { return fmt.Sprintf("ss%d", uint32(s)) }

// EntityKind discriminates the entity held by an AnyEntity.
type EntityKind uint8

const (
	EntityFunction EntityKind = iota
	EntityBlock
	EntityInst
	EntityValue
	EntityFuncRef
	EntityJumpTable
	EntityStackSlot
)

// AnyEntity identifies any entity of a function, or the function itself.
// Verifier errors use it to point at the location of a defect.
type AnyEntity struct {
	Kind  EntityKind
	Index uint32
}

// FunctionEntity refers to the function as a whole.
func FunctionEntity() AnyEntity { return AnyEntity{Kind: EntityFunction} }

// BlockEntity wraps a block reference.
func BlockEntity(b Block) AnyEntity { return AnyEntity{Kind: EntityBlock, Index: uint32(b)} }

// InstEntity wraps an instruction reference.
func InstEntity(i Inst) AnyEntity { return AnyEntity{Kind: EntityInst, Index: uint32(i)} }

// ValueEntity wraps a value reference.
func ValueEntity(v Value) AnyEntity { return AnyEntity{Kind: EntityValue, Index: uint32(v)} }

// FuncRefEntity wraps a function reference.
func FuncRefEntity(f FuncRef) AnyEntity { return AnyEntity{Kind: EntityFuncRef, Index: uint32(f)} }

// JumpTableEntity wraps a jump table reference.
func JumpTableEntity(j JumpTable) AnyEntity {
	return AnyEntity{Kind: EntityJumpTable, Index: uint32(j)}
}

// StackSlotEntity wraps a stack slot reference.
func StackSlotEntity(s StackSlot) AnyEntity {
	return AnyEntity{Kind: EntityStackSlot, Index: uint32(s)}
}

// Inst returns the instruction if the entity is one.
func (e AnyEntity) Inst() (Inst, bool) {
	if e.Kind != EntityInst {
		return 0, false
	}
	return Inst(e.Index), true
}

func (e AnyEntity) String() string {
	switch e.Kind {
	case EntityBlock:
		return Block(e.Index).String()
	case EntityInst:
		return Inst(e.Index).String()
	case EntityValue:
		return Value(e.Index).String()
	case EntityFuncRef:
		return FuncRef(e.Index).String()
	case EntityJumpTable:
		return JumpTable(e.Index).String()
	case EntityStackSlot:
		return StackSlot(e.Index).String()
	default:
		return "function"
	}
}
