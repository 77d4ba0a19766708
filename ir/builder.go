package ir

// Builder appends instructions to the blocks of a function.
type Builder struct {
	fn  *Function
	cur Block
	set bool
}

// NewBuilder returns a builder for fn with no current block.
func NewBuilder(fn *Function) *Builder {
	return &Builder{fn: fn}
}

// Func returns the function being built.
func (b *Builder) Func() *Function { return b.fn }

// CreateBlock creates a new block without inserting it in the layout.
func (b *Builder) CreateBlock() Block {
	return b.fn.DFG.MakeBlock()
}

// SwitchToBlock makes blk the current block, appending it to the layout if
// it is not there yet.
func (b *Builder) SwitchToBlock(blk Block) {
	b.fn.Layout.AppendBlock(blk)
	b.cur = blk
	b.set = true
}

// CurrentBlock returns the block instructions are appended to.
func (b *Builder) CurrentBlock() (Block, bool) {
	return b.cur, b.set
}

// IsFilled reports whether the current block already ends in a terminator.
func (b *Builder) IsFilled() bool {
	if !b.set {
		return false
	}
	last, ok := b.fn.Layout.LastInst(b.cur)
	if !ok {
		return false
	}
	return b.fn.DFG.Inst(last).Opcode.IsTerminator()
}

// AppendBlockParams adds parameters of the given types to blk.
func (b *Builder) AppendBlockParams(blk Block, types ...Type) []Value {
	vals := make([]Value, len(types))
	for i, t := range types {
		vals[i] = b.fn.DFG.AppendBlockParam(blk, t)
	}
	return vals
}

// Ins appends an instruction with the given result types to the current block.
func (b *Builder) Ins(data InstData, results ...Type) (Inst, []Value) {
	if !b.set {
		panic("ir: instruction appended without a current block")
	}
	inst := b.fn.DFG.MakeInst(data)
	b.fn.Layout.AppendInst(inst, b.cur)
	vals := make([]Value, len(results))
	for i, t := range results {
		vals[i] = b.fn.DFG.AppendResult(inst, t)
	}
	return inst, vals
}

func (b *Builder) ins1(data InstData, t Type) Value {
	_, vals := b.Ins(data, t)
	return vals[0]
}

// Iconst materializes an integer constant.
func (b *Builder) Iconst(t Type, imm int64) Value {
	return b.ins1(InstData{Opcode: OpIconst, Type: t, Imm: imm}, t)
}

// Binary appends a two-operand integer operation typed after x.
func (b *Builder) Binary(op Opcode, x, y Value) Value {
	t := b.fn.DFG.ValueType(x)
	return b.ins1(InstData{Opcode: op, Type: t, Args: []Value{x, y}}, t)
}

// Icmp compares x and y, producing an i32 that is 1 when cond holds.
func (b *Builder) Icmp(cond IntCC, x, y Value) Value {
	return b.ins1(InstData{Opcode: OpIcmp, Type: I32, Cond: cond, Args: []Value{x, y}}, I32)
}

// Convert changes the width of x to t with op, one of ireduce, sextend or uextend.
func (b *Builder) Convert(op Opcode, t Type, x Value) Value {
	return b.ins1(InstData{Opcode: op, Type: t, Args: []Value{x}}, t)
}

// Select yields x when c is non-zero and y otherwise.
func (b *Builder) Select(c, x, y Value) Value {
	t := b.fn.DFG.ValueType(x)
	return b.ins1(InstData{Opcode: OpSelect, Type: t, Args: []Value{c, x, y}}, t)
}

// StackLoad reads a value of type t from slot.
func (b *Builder) StackLoad(t Type, slot StackSlot) Value {
	return b.ins1(InstData{Opcode: OpStackLoad, Type: t, Slot: slot}, t)
}

// StackStore writes v to slot.
func (b *Builder) StackStore(v Value, slot StackSlot) Inst {
	inst, _ := b.Ins(InstData{Opcode: OpStackStore, Slot: slot, Args: []Value{v}})
	return inst
}

// Jump unconditionally transfers control to dest.
func (b *Builder) Jump(dest Block) Inst {
	inst, _ := b.Ins(InstData{Opcode: OpJump, Dest: dest})
	return inst
}

// Brz branches to dest when c is zero.
func (b *Builder) Brz(c Value, dest Block) Inst {
	inst, _ := b.Ins(InstData{Opcode: OpBrz, Dest: dest, Args: []Value{c}})
	return inst
}

// Brnz branches to dest when c is non-zero.
func (b *Builder) Brnz(c Value, dest Block) Inst {
	inst, _ := b.Ins(InstData{Opcode: OpBrnz, Dest: dest, Args: []Value{c}})
	return inst
}

// BrTable branches to the idx-th entry of jt, or to def when idx is out of range.
func (b *Builder) BrTable(idx Value, def Block, jt JumpTable) Inst {
	inst, _ := b.Ins(InstData{Opcode: OpBrTable, Dest: def, Table: jt, Args: []Value{idx}})
	return inst
}

// Return returns vals from the function.
func (b *Builder) Return(vals ...Value) Inst {
	inst, _ := b.Ins(InstData{Opcode: OpReturn, Args: append([]Value(nil), vals...)})
	return inst
}

// Trap aborts execution.
func (b *Builder) Trap() Inst {
	inst, _ := b.Ins(InstData{Opcode: OpTrap})
	return inst
}

// Call calls fn with args, returning its results.
func (b *Builder) Call(fn FuncRef, args ...Value) (Inst, []Value) {
	var returns []Type
	if int(fn) < len(b.fn.ExtFuncs) {
		returns = b.fn.ExtFuncs[fn].Signature.Returns
	}
	return b.Ins(InstData{Opcode: OpCall, Func: fn, Args: append([]Value(nil), args...)}, returns...)
}

// FuncAddr materializes the address of fn as a value of type t.
func (b *Builder) FuncAddr(t Type, fn FuncRef) Value {
	return b.ins1(InstData{Opcode: OpFuncAddr, Type: t, Func: fn}, t)
}

// BlockAddr materializes the address of blk as a value of type t.
func (b *Builder) BlockAddr(t Type, blk Block) Value {
	return b.ins1(InstData{Opcode: OpBlockAddr, Type: t, Dest: blk}, t)
}
