package ir

// Layout is the order of blocks in a function and of instructions in each
// block. Blocks and instructions that exist in the data flow graph but not in
// the layout are not emitted.
type Layout struct {
	blocks    []Block
	insts     map[Block][]Inst
	instBlock map[Inst]Block
}

// NewLayout returns an empty layout.
func NewLayout() *Layout {
	return &Layout{
		insts:     make(map[Block][]Inst),
		instBlock: make(map[Inst]Block),
	}
}

// AppendBlock inserts b at the end of the layout. It is a no-op if b is
// already inserted.
func (l *Layout) AppendBlock(b Block) {
	if l.IsBlockInserted(b) {
		return
	}
	l.blocks = append(l.blocks, b)
	l.insts[b] = nil
}

// IsBlockInserted reports whether b is part of the layout.
func (l *Layout) IsBlockInserted(b Block) bool {
	_, ok := l.insts[b]
	return ok
}

// AppendInst appends inst to the end of block b, which must be inserted.
func (l *Layout) AppendInst(inst Inst, b Block) {
	l.insts[b] = append(l.insts[b], inst)
	l.instBlock[inst] = b
}

// Blocks returns the blocks in layout order.
func (l *Layout) Blocks() []Block {
	return l.blocks
}

// EntryBlock returns the first block of the layout.
func (l *Layout) EntryBlock() (Block, bool) {
	if len(l.blocks) == 0 {
		return 0, false
	}
	return l.blocks[0], true
}

// BlockInsts returns the instructions of b in order.
func (l *Layout) BlockInsts(b Block) []Inst {
	return l.insts[b]
}

// LastInst returns the final instruction of b.
func (l *Layout) LastInst(b Block) (Inst, bool) {
	insts := l.insts[b]
	if len(insts) == 0 {
		return 0, false
	}
	return insts[len(insts)-1], true
}

// InstBlock returns the block containing inst.
func (l *Layout) InstBlock(inst Inst) (Block, bool) {
	b, ok := l.instBlock[inst]
	return b, ok
}

func (l *Layout) clone() *Layout {
	c := &Layout{
		blocks:    append([]Block(nil), l.blocks...),
		insts:     make(map[Block][]Inst, len(l.insts)),
		instBlock: make(map[Inst]Block, len(l.instBlock)),
	}
	for b, insts := range l.insts {
		c.insts[b] = append([]Inst(nil), insts...)
	}
	for i, b := range l.instBlock {
		c.instBlock[i] = b
	}
	return c
}
