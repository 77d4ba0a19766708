package ir

// InstData holds the opcode and operands of one instruction. Fields that
// an opcode does not use are left zero.
type InstData struct {
	Args   []Value
	Imm    int64
	Opcode Opcode
	Type   Type // controlling type: result type for iconst, conversions and loads
	Cond   IntCC
	Dest   Block // jump, brz, brnz target; br_table default; block_addr target
	Table  JumpTable
	Slot   StackSlot
	Func   FuncRef
}

// ValueDefKind says whether a value is an instruction result or a block parameter.
type ValueDefKind uint8

const (
	ValueDefResult ValueDefKind = iota
	ValueDefParam
)

// ValueDef describes where a value is defined.
type ValueDef struct {
	Kind  ValueDefKind
	Inst  Inst  // for results
	Block Block // for block parameters
	Num   int   // result or parameter position
}

type valueData struct {
	def ValueDef
	typ Type
}

type blockData struct {
	params []Value
}

// DataFlowGraph owns the instructions, values and blocks of a function,
// independent of their order in the layout.
type DataFlowGraph struct {
	insts   []InstData
	results [][]Value
	values  []valueData
	blocks  []blockData
}

// NewDataFlowGraph returns an empty graph.
func NewDataFlowGraph() *DataFlowGraph {
	return &DataFlowGraph{}
}

// MakeInst adds an instruction without results.
func (d *DataFlowGraph) MakeInst(data InstData) Inst {
	inst := Inst(len(d.insts))
	d.insts = append(d.insts, data)
	d.results = append(d.results, nil)
	return inst
}

// AppendResult adds a result value of type t to inst.
func (d *DataFlowGraph) AppendResult(inst Inst, t Type) Value {
	v := Value(len(d.values))
	d.values = append(d.values, valueData{
		typ: t,
		def: ValueDef{Kind: ValueDefResult, Inst: inst, Num: len(d.results[inst])},
	})
	d.results[inst] = append(d.results[inst], v)
	return v
}

// MakeBlock creates a block that is not yet part of the layout.
func (d *DataFlowGraph) MakeBlock() Block {
	b := Block(len(d.blocks))
	d.blocks = append(d.blocks, blockData{})
	return b
}

// AppendBlockParam adds a parameter of type t to block b.
func (d *DataFlowGraph) AppendBlockParam(b Block, t Type) Value {
	v := Value(len(d.values))
	d.values = append(d.values, valueData{
		typ: t,
		def: ValueDef{Kind: ValueDefParam, Block: b, Num: len(d.blocks[b].params)},
	})
	d.blocks[b].params = append(d.blocks[b].params, v)
	return v
}

// Inst returns the data of an instruction. The returned pointer is valid
// until the next instruction is created.
func (d *DataFlowGraph) Inst(i Inst) *InstData {
	return &d.insts[i]
}

// InstIsValid reports whether i refers to an existing instruction.
func (d *DataFlowGraph) InstIsValid(i Inst) bool { return int(i) < len(d.insts) }

// InstResults returns the results of an instruction.
func (d *DataFlowGraph) InstResults(i Inst) []Value {
	return d.results[i]
}

// FirstResult returns the first result of an instruction.
func (d *DataFlowGraph) FirstResult(i Inst) (Value, bool) {
	if len(d.results[i]) == 0 {
		return 0, false
	}
	return d.results[i][0], true
}

// BlockParams returns the parameters of a block.
func (d *DataFlowGraph) BlockParams(b Block) []Value {
	return d.blocks[b].params
}

// BlockIsValid reports whether b refers to an existing block.
func (d *DataFlowGraph) BlockIsValid(b Block) bool { return int(b) < len(d.blocks) }

// ValueIsValid reports whether v refers to an existing value.
func (d *DataFlowGraph) ValueIsValid(v Value) bool { return int(v) < len(d.values) }

// ValueType returns the type of v, or InvalidType for unknown values.
func (d *DataFlowGraph) ValueType(v Value) Type {
	if !d.ValueIsValid(v) {
		return InvalidType
	}
	return d.values[v].typ
}

// ValueDef returns the definition site of v.
func (d *DataFlowGraph) ValueDef(v Value) ValueDef {
	return d.values[v].def
}

// NumInsts returns the number of instructions created so far.
func (d *DataFlowGraph) NumInsts() int { return len(d.insts) }

// NumBlocks returns the number of blocks created so far.
func (d *DataFlowGraph) NumBlocks() int { return len(d.blocks) }

// NumValues returns the number of values created so far.
func (d *DataFlowGraph) NumValues() int { return len(d.values) }

func (d *DataFlowGraph) clone() *DataFlowGraph {
	c := &DataFlowGraph{
		insts:   make([]InstData, len(d.insts)),
		results: make([][]Value, len(d.results)),
		values:  append([]valueData(nil), d.values...),
		blocks:  make([]blockData, len(d.blocks)),
	}
	for i, data := range d.insts {
		data.Args = append([]Value(nil), data.Args...)
		c.insts[i] = data
	}
	for i, r := range d.results {
		c.results[i] = append([]Value(nil), r...)
	}
	for i, b := range d.blocks {
		c.blocks[i].params = append([]Value(nil), b.params...)
	}
	return c
}
