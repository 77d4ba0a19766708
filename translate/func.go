package translate

import (
	"fmt"
	"strconv"

	"github.com/wippyai/wasm2obj/errors"
	"github.com/wippyai/wasm2obj/ir"
	"github.com/wippyai/wasm2obj/wasm"
)

type frameKind uint8

const (
	frameFunc frameKind = iota
	frameBlock
	frameLoop
	frameIf
)

// controlFrame tracks one enclosing block, loop, if or the function body.
type controlFrame struct {
	kind    frameKind
	result  ir.Type // InvalidType when the construct yields nothing
	slot    ir.StackSlot
	hasSlot bool

	exit      ir.Block // continuation after end
	header    ir.Block // loop only
	elseBlock ir.Block // if only
	elseSeen  bool

	// exitUsed is set once any edge reaches exit.
	exitUsed bool
	height   int
}

// branchArity is the number of values a branch to the frame carries.
func (f *controlFrame) branchArity() int {
	if f.kind == frameLoop || f.result == ir.InvalidType {
		return 0
	}
	return 1
}

type local struct {
	slot ir.StackSlot
	typ  ir.Type
}

type funcTranslator struct {
	m       *wasm.Module
	fn      *ir.Function
	b       *ir.Builder
	locals  []local
	stack   []ir.Value
	frames  []*controlFrame
	callees map[uint32]ir.FuncRef

	reachable bool
	// deadDepth counts constructs opened while unreachable.
	deadDepth int
}

func translateFunction(m *wasm.Module, idx uint32, body *wasm.FuncBody) (*ir.Function, error) {
	name := FuncName(idx)
	fail := func(err error) error {
		if e, ok := err.(*errors.Error); ok {
			e.Function = name
			return e
		}
		return errors.New(errors.PhaseTranslate, errors.KindInvalidData).
			Function(name).
			Cause(err).
			Build()
	}

	ft := m.GetFuncType(idx)
	if ft == nil {
		return nil, fail(errors.InvalidInput(errors.PhaseTranslate, "function has no type"))
	}
	sig, err := signature(ft)
	if err != nil {
		return nil, fail(err)
	}
	code, err := wasm.DecodeInstructions(body.Code)
	if err != nil {
		return nil, fail(err)
	}

	fn := ir.NewFunction(name, sig)
	t := &funcTranslator{
		m:       m,
		fn:      fn,
		b:       ir.NewBuilder(fn),
		callees: make(map[uint32]ir.FuncRef),
	}
	if err := t.prologue(body); err != nil {
		return nil, fail(err)
	}
	for pc, instr := range code {
		if len(t.frames) == 0 {
			return nil, fail(errors.InvalidInput(errors.PhaseTranslate, "instructions after the end of the function"))
		}
		if err := t.translate(instr); err != nil {
			e, ok := err.(*errors.Error)
			if !ok {
				e = errors.New(errors.PhaseTranslate, errors.KindInvalidData).Cause(err).Build()
			}
			e.Path = append(e.Path, "instr"+strconv.Itoa(pc))
			return nil, fail(e)
		}
	}
	if len(t.frames) != 0 {
		return nil, fail(errors.InvalidInput(errors.PhaseTranslate, "function body is not terminated by end"))
	}
	return fn, nil
}

func (t *funcTranslator) prologue(body *wasm.FuncBody) error {
	b := t.b
	entry := b.CreateBlock()
	b.SwitchToBlock(entry)
	params := b.AppendBlockParams(entry, t.fn.Signature.Params...)

	for _, p := range params {
		typ := t.fn.DFG.ValueType(p)
		l := t.newLocal(typ)
		b.StackStore(p, l.slot)
	}
	for _, decl := range body.Locals {
		typ, ok := irType(decl.ValType)
		if !ok {
			return errors.Unsupported(errors.PhaseTranslate, "local type "+decl.ValType.String())
		}
		for range decl.Count {
			l := t.newLocal(typ)
			b.StackStore(b.Iconst(typ, 0), l.slot)
		}
	}

	var result ir.Type
	if len(t.fn.Signature.Returns) == 1 {
		result = t.fn.Signature.Returns[0]
	}
	t.frames = append(t.frames, &controlFrame{
		kind:   frameFunc,
		result: result,
		exit:   b.CreateBlock(),
	})
	t.reachable = true
	return nil
}

func (t *funcTranslator) newLocal(typ ir.Type) local {
	l := local{slot: t.fn.CreateStackSlot(uint32(typ.Bits() / 8)), typ: typ}
	t.locals = append(t.locals, l)
	return l
}

func (t *funcTranslator) push(vals ...ir.Value) {
	t.stack = append(t.stack, vals...)
}

func (t *funcTranslator) top() *controlFrame {
	return t.frames[len(t.frames)-1]
}

func (t *funcTranslator) pop() (ir.Value, error) {
	if len(t.stack) <= t.top().height {
		return 0, errors.InvalidInput(errors.PhaseTranslate, "operand stack underflow")
	}
	v := t.stack[len(t.stack)-1]
	t.stack = t.stack[:len(t.stack)-1]
	return v, nil
}

func (t *funcTranslator) popN(n int) ([]ir.Value, error) {
	if len(t.stack)-n < t.top().height {
		return nil, errors.InvalidInput(errors.PhaseTranslate, "operand stack underflow")
	}
	vals := append([]ir.Value(nil), t.stack[len(t.stack)-n:]...)
	t.stack = t.stack[:len(t.stack)-n]
	return vals, nil
}

func (t *funcTranslator) peek() (ir.Value, error) {
	if len(t.stack) <= t.top().height {
		return 0, errors.InvalidInput(errors.PhaseTranslate, "operand stack underflow")
	}
	return t.stack[len(t.stack)-1], nil
}

func (t *funcTranslator) localAt(idx uint32) (local, error) {
	if int(idx) >= len(t.locals) {
		return local{}, errors.New(errors.PhaseTranslate, errors.KindInvalidInput).
			Value(idx).
			Detail("local index %d out of range", idx).
			Build()
	}
	return t.locals[idx], nil
}

func (t *funcTranslator) frame(depth uint32) (*controlFrame, error) {
	if int(depth) >= len(t.frames) {
		return nil, errors.New(errors.PhaseTranslate, errors.KindInvalidInput).
			Value(depth).
			Detail("branch depth %d out of range", depth).
			Build()
	}
	return t.frames[len(t.frames)-1-int(depth)], nil
}

// resultSlot returns the stack slot a construct's result is passed in,
// declaring it on first use.
func (t *funcTranslator) resultSlot(f *controlFrame) ir.StackSlot {
	if !f.hasSlot {
		f.slot = t.fn.CreateStackSlot(uint32(f.result.Bits() / 8))
		f.hasSlot = true
	}
	return f.slot
}

// branchTo stores the branch value of f, if any, and returns the block to
// branch to. The value stays on the operand stack.
func (t *funcTranslator) branchTo(f *controlFrame) (ir.Block, error) {
	if f.kind == frameLoop {
		return f.header, nil
	}
	if f.branchArity() == 1 {
		v, err := t.peek()
		if err != nil {
			return 0, err
		}
		t.b.StackStore(v, t.resultSlot(f))
	}
	f.exitUsed = true
	return f.exit, nil
}

func blockType(instr wasm.Instruction) (ir.Type, error) {
	imm, _ := instr.Imm.(wasm.BlockImm)
	switch imm.Type {
	case wasm.BlockVoid:
		return ir.InvalidType, nil
	case wasm.BlockI32:
		return ir.I32, nil
	case wasm.BlockI64:
		return ir.I64, nil
	}
	if imm.Type >= 0 {
		return ir.InvalidType, errors.Unsupported(errors.PhaseTranslate, "block type with parameters or multiple results")
	}
	return ir.InvalidType, errors.Unsupported(errors.PhaseTranslate, fmt.Sprintf("block type %d", imm.Type))
}

var binaryOps = map[byte]ir.Opcode{
	wasm.OpI32Add:  ir.OpIadd,
	wasm.OpI64Add:  ir.OpIadd,
	wasm.OpI32Sub:  ir.OpIsub,
	wasm.OpI64Sub:  ir.OpIsub,
	wasm.OpI32Mul:  ir.OpImul,
	wasm.OpI64Mul:  ir.OpImul,
	wasm.OpI32And:  ir.OpBand,
	wasm.OpI64And:  ir.OpBand,
	wasm.OpI32Or:   ir.OpBor,
	wasm.OpI64Or:   ir.OpBor,
	wasm.OpI32Xor:  ir.OpBxor,
	wasm.OpI64Xor:  ir.OpBxor,
	wasm.OpI32Shl:  ir.OpIshl,
	wasm.OpI64Shl:  ir.OpIshl,
	wasm.OpI32ShrS: ir.OpSshr,
	wasm.OpI64ShrS: ir.OpSshr,
	wasm.OpI32ShrU: ir.OpUshr,
	wasm.OpI64ShrU: ir.OpUshr,
}

var compareOps = map[byte]ir.IntCC{
	wasm.OpI32Eq:  ir.CondEqual,
	wasm.OpI64Eq:  ir.CondEqual,
	wasm.OpI32Ne:  ir.CondNotEqual,
	wasm.OpI64Ne:  ir.CondNotEqual,
	wasm.OpI32LtS: ir.CondSignedLessThan,
	wasm.OpI64LtS: ir.CondSignedLessThan,
	wasm.OpI32LtU: ir.CondUnsignedLessThan,
	wasm.OpI64LtU: ir.CondUnsignedLessThan,
	wasm.OpI32GtS: ir.CondSignedGreaterThan,
	wasm.OpI64GtS: ir.CondSignedGreaterThan,
	wasm.OpI32GtU: ir.CondUnsignedGreaterThan,
	wasm.OpI64GtU: ir.CondUnsignedGreaterThan,
	wasm.OpI32LeS: ir.CondSignedLessThanOrEqual,
	wasm.OpI64LeS: ir.CondSignedLessThanOrEqual,
	wasm.OpI32LeU: ir.CondUnsignedLessThanOrEqual,
	wasm.OpI64LeU: ir.CondUnsignedLessThanOrEqual,
	wasm.OpI32GeS: ir.CondSignedGreaterThanOrEqual,
	wasm.OpI64GeS: ir.CondSignedGreaterThanOrEqual,
	wasm.OpI32GeU: ir.CondUnsignedGreaterThanOrEqual,
	wasm.OpI64GeU: ir.CondUnsignedGreaterThanOrEqual,
}

func (t *funcTranslator) translate(instr wasm.Instruction) error {
	if !t.reachable {
		return t.translateDead(instr)
	}
	b := t.b
	op := instr.Opcode

	if irOp, ok := binaryOps[op]; ok {
		y, err := t.pop()
		if err != nil {
			return err
		}
		x, err := t.pop()
		if err != nil {
			return err
		}
		t.push(b.Binary(irOp, x, y))
		return nil
	}
	if cond, ok := compareOps[op]; ok {
		y, err := t.pop()
		if err != nil {
			return err
		}
		x, err := t.pop()
		if err != nil {
			return err
		}
		t.push(b.Icmp(cond, x, y))
		return nil
	}

	switch op {
	case wasm.OpNop:

	case wasm.OpUnreachable:
		b.Trap()
		t.reachable = false

	case wasm.OpBlock:
		result, err := blockType(instr)
		if err != nil {
			return err
		}
		t.frames = append(t.frames, &controlFrame{
			kind:   frameBlock,
			result: result,
			exit:   b.CreateBlock(),
			height: len(t.stack),
		})

	case wasm.OpLoop:
		result, err := blockType(instr)
		if err != nil {
			return err
		}
		f := &controlFrame{
			kind:   frameLoop,
			result: result,
			header: b.CreateBlock(),
			exit:   b.CreateBlock(),
			height: len(t.stack),
		}
		b.Jump(f.header)
		b.SwitchToBlock(f.header)
		t.frames = append(t.frames, f)

	case wasm.OpIf:
		result, err := blockType(instr)
		if err != nil {
			return err
		}
		cond, err := t.pop()
		if err != nil {
			return err
		}
		f := &controlFrame{
			kind:      frameIf,
			result:    result,
			elseBlock: b.CreateBlock(),
			exit:      b.CreateBlock(),
			height:    len(t.stack),
		}
		b.Brz(cond, f.elseBlock)
		t.frames = append(t.frames, f)

	case wasm.OpElse:
		return t.elseArm()

	case wasm.OpEnd:
		return t.end()

	case wasm.OpBr:
		imm, _ := instr.Imm.(wasm.BranchImm)
		f, err := t.frame(imm.LabelIdx)
		if err != nil {
			return err
		}
		if f.kind == frameFunc {
			return t.ret()
		}
		dest, err := t.branchTo(f)
		if err != nil {
			return err
		}
		b.Jump(dest)
		t.reachable = false

	case wasm.OpBrIf:
		imm, _ := instr.Imm.(wasm.BranchImm)
		f, err := t.frame(imm.LabelIdx)
		if err != nil {
			return err
		}
		cond, err := t.pop()
		if err != nil {
			return err
		}
		dest, err := t.branchTo(f)
		if err != nil {
			return err
		}
		b.Brnz(cond, dest)

	case wasm.OpBrTable:
		return t.brTable(instr)

	case wasm.OpReturn:
		return t.ret()

	case wasm.OpCall:
		return t.call(instr)

	case wasm.OpDrop:
		if _, err := t.pop(); err != nil {
			return err
		}

	case wasm.OpSelect:
		vals, err := t.popN(3)
		if err != nil {
			return err
		}
		t.push(b.Select(vals[2], vals[0], vals[1]))

	case wasm.OpLocalGet, wasm.OpLocalSet, wasm.OpLocalTee:
		imm, _ := instr.Imm.(wasm.LocalImm)
		l, err := t.localAt(imm.LocalIdx)
		if err != nil {
			return err
		}
		switch op {
		case wasm.OpLocalGet:
			t.push(b.StackLoad(l.typ, l.slot))
		case wasm.OpLocalSet:
			v, err := t.pop()
			if err != nil {
				return err
			}
			b.StackStore(v, l.slot)
		default:
			v, err := t.peek()
			if err != nil {
				return err
			}
			b.StackStore(v, l.slot)
		}

	case wasm.OpI32Const:
		imm, _ := instr.Imm.(wasm.I32Imm)
		t.push(b.Iconst(ir.I32, int64(imm.Value)))

	case wasm.OpI64Const:
		imm, _ := instr.Imm.(wasm.I64Imm)
		t.push(b.Iconst(ir.I64, imm.Value))

	case wasm.OpI32Eqz, wasm.OpI64Eqz:
		x, err := t.pop()
		if err != nil {
			return err
		}
		typ := ir.I32
		if op == wasm.OpI64Eqz {
			typ = ir.I64
		}
		t.push(b.Icmp(ir.CondEqual, x, b.Iconst(typ, 0)))

	case wasm.OpI32WrapI64, wasm.OpI64ExtendI32S, wasm.OpI64ExtendI32U:
		x, err := t.pop()
		if err != nil {
			return err
		}
		switch op {
		case wasm.OpI32WrapI64:
			t.push(b.Convert(ir.OpIreduce, ir.I32, x))
		case wasm.OpI64ExtendI32S:
			t.push(b.Convert(ir.OpSextend, ir.I64, x))
		default:
			t.push(b.Convert(ir.OpUextend, ir.I64, x))
		}

	default:
		return errors.New(errors.PhaseTranslate, errors.KindUnsupported).
			Value(op).
			Detail("opcode 0x%02x", op).
			Build()
	}
	return nil
}

// translateDead skips code after an unconditional branch, keeping track of
// nesting until the end or else of the current construct.
func (t *funcTranslator) translateDead(instr wasm.Instruction) error {
	switch instr.Opcode {
	case wasm.OpBlock, wasm.OpLoop, wasm.OpIf:
		t.deadDepth++
	case wasm.OpElse:
		if t.deadDepth == 0 {
			return t.elseArm()
		}
	case wasm.OpEnd:
		if t.deadDepth > 0 {
			t.deadDepth--
			return nil
		}
		return t.end()
	}
	return nil
}

// fallthroughTo ends the current arm of f by branching to its exit.
func (t *funcTranslator) fallthroughTo(f *controlFrame) error {
	if !t.reachable {
		return nil
	}
	if f.result != ir.InvalidType {
		v, err := t.peek()
		if err != nil {
			return err
		}
		t.b.StackStore(v, t.resultSlot(f))
	}
	t.b.Jump(f.exit)
	f.exitUsed = true
	return nil
}

func (t *funcTranslator) elseArm() error {
	f := t.top()
	if f.kind != frameIf || f.elseSeen {
		return errors.InvalidInput(errors.PhaseTranslate, "else without matching if")
	}
	if err := t.fallthroughTo(f); err != nil {
		return err
	}
	t.stack = t.stack[:f.height]
	f.elseSeen = true
	t.b.SwitchToBlock(f.elseBlock)
	t.reachable = true
	return nil
}

func (t *funcTranslator) end() error {
	f := t.top()
	if f.kind == frameFunc {
		return t.endFunction(f)
	}

	if err := t.fallthroughTo(f); err != nil {
		return err
	}
	t.stack = t.stack[:f.height]

	if f.kind == frameIf && !f.elseSeen {
		if f.result != ir.InvalidType {
			return errors.InvalidInput(errors.PhaseTranslate, "if with a result has no else")
		}
		t.b.SwitchToBlock(f.elseBlock)
		t.b.Jump(f.exit)
		f.exitUsed = true
	}

	t.frames = t.frames[:len(t.frames)-1]
	if !f.exitUsed {
		t.reachable = false
		return nil
	}
	t.b.SwitchToBlock(f.exit)
	t.reachable = true
	if f.result != ir.InvalidType {
		t.push(t.b.StackLoad(f.result, t.resultSlot(f)))
	}
	return nil
}

func (t *funcTranslator) endFunction(f *controlFrame) error {
	if t.reachable {
		if !f.exitUsed {
			if err := t.ret(); err != nil {
				return err
			}
		} else if err := t.fallthroughTo(f); err != nil {
			return err
		}
	}
	if f.exitUsed {
		t.b.SwitchToBlock(f.exit)
		if f.result != ir.InvalidType {
			t.b.Return(t.b.StackLoad(f.result, t.resultSlot(f)))
		} else {
			t.b.Return()
		}
	}
	t.frames = t.frames[:0]
	t.reachable = false
	return nil
}

func (t *funcTranslator) ret() error {
	vals, err := t.popN(len(t.fn.Signature.Returns))
	if err != nil {
		return err
	}
	t.b.Return(vals...)
	t.reachable = false
	return nil
}

func (t *funcTranslator) brTable(instr wasm.Instruction) error {
	imm, _ := instr.Imm.(wasm.BrTableImm)
	idx, err := t.pop()
	if err != nil {
		return err
	}

	dest := func(depth uint32) (ir.Block, error) {
		f, err := t.frame(depth)
		if err != nil {
			return 0, err
		}
		return t.branchTo(f)
	}

	def, err := dest(imm.Default)
	if err != nil {
		return err
	}
	targets := make([]ir.Block, len(imm.Labels))
	for i, depth := range imm.Labels {
		if targets[i], err = dest(depth); err != nil {
			return err
		}
	}
	jt := t.fn.CreateJumpTable(targets)
	t.b.BrTable(idx, def, jt)
	t.reachable = false
	return nil
}

func (t *funcTranslator) call(instr wasm.Instruction) error {
	callee, _ := instr.GetCallTarget()
	ft := t.m.GetFuncType(callee)
	if ft == nil {
		return errors.New(errors.PhaseTranslate, errors.KindInvalidInput).
			Value(callee).
			Detail("call to unknown function %d", callee).
			Build()
	}

	ref, ok := t.callees[callee]
	if !ok {
		sig, err := signature(ft)
		if err != nil {
			return err
		}
		ref = t.fn.ImportFunction(ir.ExtFuncData{Name: FuncName(callee), Signature: sig})
		t.callees[callee] = ref
	}

	args, err := t.popN(len(ft.Params))
	if err != nil {
		return err
	}
	_, results := t.b.Call(ref, args...)
	t.push(results...)
	return nil
}
