// Package ir defines the intermediate representation handed to the native
// code generator.
//
// A Function is a data flow graph of SSA values and instructions, plus a
// layout that orders extended basic blocks and their instructions. Locals
// that live across blocks are kept in explicit stack slots; within a block
// values are SSA. Calls, function addresses and jump tables refer to
// entities declared in the function preamble.
package ir

// StackSlotData describes an explicit stack slot.
type StackSlotData struct {
	Size uint32
}

// ExtFuncData describes an external function that may be called.
type ExtFuncData struct {
	Name      string
	Signature Signature
}

// JumpTableData lists the destinations of a br_table, indexed by the
// selector value.
type JumpTableData struct {
	Targets []Block
}

// Function is a function in the intermediate representation.
type Function struct {
	Name       string
	Signature  Signature
	DFG        *DataFlowGraph
	Layout     *Layout
	StackSlots []StackSlotData
	ExtFuncs   []ExtFuncData
	JumpTables []JumpTableData
}

// NewFunction creates an empty function.
func NewFunction(name string, sig Signature) *Function {
	return &Function{
		Name:      name,
		Signature: sig,
		DFG:       NewDataFlowGraph(),
		Layout:    NewLayout(),
	}
}

// CreateStackSlot declares a stack slot of size bytes.
func (f *Function) CreateStackSlot(size uint32) StackSlot {
	f.StackSlots = append(f.StackSlots, StackSlotData{Size: size})
	return StackSlot(len(f.StackSlots) - 1)
}

// ImportFunction declares an external function.
func (f *Function) ImportFunction(data ExtFuncData) FuncRef {
	f.ExtFuncs = append(f.ExtFuncs, data)
	return FuncRef(len(f.ExtFuncs) - 1)
}

// CreateJumpTable declares a jump table.
func (f *Function) CreateJumpTable(targets []Block) JumpTable {
	f.JumpTables = append(f.JumpTables, JumpTableData{Targets: append([]Block(nil), targets...)})
	return JumpTable(len(f.JumpTables) - 1)
}

// Clone returns a deep copy of f. Mutating the copy never affects f.
func (f *Function) Clone() *Function {
	c := &Function{
		Name:       f.Name,
		Signature:  f.Signature.clone(),
		DFG:        f.DFG.clone(),
		Layout:     f.Layout.clone(),
		StackSlots: append([]StackSlotData(nil), f.StackSlots...),
		ExtFuncs:   make([]ExtFuncData, len(f.ExtFuncs)),
		JumpTables: make([]JumpTableData, len(f.JumpTables)),
	}
	for i, ef := range f.ExtFuncs {
		c.ExtFuncs[i] = ExtFuncData{Name: ef.Name, Signature: ef.Signature.clone()}
	}
	for i, jt := range f.JumpTables {
		c.JumpTables[i] = JumpTableData{Targets: append([]Block(nil), jt.Targets...)}
	}
	return c
}

// BranchTargets returns the blocks inst may transfer control to, with the
// jump table entries of a br_table following its default destination.
func (f *Function) BranchTargets(inst Inst) []Block {
	data := f.DFG.Inst(inst)
	switch data.Opcode {
	case OpJump, OpBrz, OpBrnz:
		return []Block{data.Dest}
	case OpBrTable:
		targets := []Block{data.Dest}
		if int(data.Table) < len(f.JumpTables) {
			targets = append(targets, f.JumpTables[data.Table].Targets...)
		}
		return targets
	}
	return nil
}
