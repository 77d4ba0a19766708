// Package verifier checks the well-formedness of IR functions before they
// are handed to a code generator.
//
// Verify stops at the first defect and returns a *Error naming the entity
// at fault. The checks are:
//
//   - the function has an entry block whose parameters match the signature,
//     and no other block declares parameters
//   - every block ends in exactly one terminator
//   - every operand is a defined value whose definition dominates the use
//   - branch targets, jump table entries and block addresses are laid out
//   - function, jump table and stack slot references are declared
//   - operand and result types agree with the opcode
//   - returns match the signature
//   - when a target is given, every instruction has an encoding on it
package verifier

import (
	"fmt"

	"github.com/wippyai/wasm2obj/ir"
	"github.com/wippyai/wasm2obj/isa"
)

// Error is a verification failure located at an entity of the function.
type Error struct {
	Location ir.AnyEntity
	Message  string
}

func (e *Error) Error() string {
	return e.Location.String() + ": " + e.Message
}

// Verify checks fn. target may be nil, in which case target encodings are
// not checked.
func Verify(fn *ir.Function, target isa.TargetISA) error {
	v := &verifier{fn: fn, target: target}
	if err := v.run(); err != nil {
		return err
	}
	return nil
}

type verifier struct {
	fn     *ir.Function
	target isa.TargetISA
	pos    map[ir.Inst]int
	dom    *domTree
}

func (v *verifier) run() *Error {
	if err := v.checkBlocks(); err != nil {
		return err
	}
	v.dom = computeDomTree(v.fn)
	for _, blk := range v.fn.Layout.Blocks() {
		for _, inst := range v.fn.Layout.BlockInsts(blk) {
			if err := v.checkInst(blk, inst); err != nil {
				return err
			}
		}
	}
	return nil
}

func errorf(loc ir.AnyEntity, format string, args ...any) *Error {
	return &Error{Location: loc, Message: fmt.Sprintf(format, args...)}
}

func (v *verifier) checkBlocks() *Error {
	fn := v.fn
	entry, ok := fn.Layout.EntryBlock()
	if !ok {
		return errorf(ir.FunctionEntity(), "function has no entry block")
	}
	if !fn.DFG.BlockIsValid(entry) {
		return errorf(ir.BlockEntity(entry), "block is not defined in the data flow graph")
	}

	params := fn.DFG.BlockParams(entry)
	if len(params) != len(fn.Signature.Params) {
		return errorf(ir.BlockEntity(entry), "entry block has %d parameters, signature has %d",
			len(params), len(fn.Signature.Params))
	}
	for i, p := range params {
		if got, want := fn.DFG.ValueType(p), fn.Signature.Params[i]; got != want {
			return errorf(ir.BlockEntity(entry), "entry parameter %s has type %s, signature expects %s", p, got, want)
		}
	}

	v.pos = make(map[ir.Inst]int)
	for i, blk := range fn.Layout.Blocks() {
		if !fn.DFG.BlockIsValid(blk) {
			return errorf(ir.BlockEntity(blk), "block is not defined in the data flow graph")
		}
		if i > 0 && len(fn.DFG.BlockParams(blk)) > 0 {
			return errorf(ir.BlockEntity(blk), "only the entry block may have parameters")
		}
		insts := fn.Layout.BlockInsts(blk)
		if len(insts) == 0 {
			return errorf(ir.BlockEntity(blk), "block is empty")
		}
		for j, inst := range insts {
			if !fn.DFG.InstIsValid(inst) {
				return errorf(ir.BlockEntity(blk), "%s is not defined in the data flow graph", inst)
			}
			v.pos[inst] = j
			last := j == len(insts)-1
			isTerm := fn.DFG.Inst(inst).Opcode.IsTerminator()
			if isTerm && !last {
				return errorf(ir.InstEntity(inst), "terminator in the middle of %s", blk)
			}
			if !isTerm && last {
				return errorf(ir.BlockEntity(blk), "block does not end in a terminator")
			}
		}
	}
	return nil
}

func (v *verifier) checkInst(blk ir.Block, inst ir.Inst) *Error {
	fn := v.fn
	data := fn.DFG.Inst(inst)
	loc := ir.InstEntity(inst)

	for _, arg := range data.Args {
		if err := v.checkUse(blk, inst, arg); err != nil {
			return err
		}
	}

	if err := v.checkOperands(inst, data); err != nil {
		return err
	}

	if v.target != nil {
		if err := v.target.CheckEncoding(fn, inst); err != nil {
			return errorf(loc, "%s: %v", v.target.Name(), err)
		}
	}
	return nil
}

func (v *verifier) checkUse(blk ir.Block, inst ir.Inst, val ir.Value) *Error {
	fn := v.fn
	loc := ir.InstEntity(inst)
	if !fn.DFG.ValueIsValid(val) {
		return errorf(loc, "use of undefined value %s", val)
	}

	def := fn.DFG.ValueDef(val)
	var defBlock ir.Block
	switch def.Kind {
	case ir.ValueDefResult:
		b, ok := fn.Layout.InstBlock(def.Inst)
		if !ok {
			return errorf(loc, "%s is defined by %s which is not in the layout", val, def.Inst)
		}
		if b == blk {
			if v.pos[def.Inst] >= v.pos[inst] {
				return errorf(loc, "%s is used before its definition", val)
			}
			return nil
		}
		defBlock = b
	case ir.ValueDefParam:
		if !fn.Layout.IsBlockInserted(def.Block) {
			return errorf(loc, "%s is a parameter of %s which is not in the layout", val, def.Block)
		}
		if def.Block == blk {
			return nil
		}
		defBlock = def.Block
	}

	if v.dom.reachable(blk) && !v.dom.dominates(defBlock, blk) {
		return errorf(loc, "%s is defined in %s which does not dominate %s", val, defBlock, blk)
	}
	return nil
}

func (v *verifier) checkOperands(inst ir.Inst, data *ir.InstData) *Error {
	fn := v.fn
	dfg := fn.DFG
	loc := ir.InstEntity(inst)
	results := dfg.InstResults(inst)

	argType := func(i int) ir.Type { return dfg.ValueType(data.Args[i]) }
	wantArgs := func(n int) *Error {
		if len(data.Args) != n {
			return errorf(loc, "%s takes %d operands, got %d", data.Opcode, n, len(data.Args))
		}
		return nil
	}
	wantResults := func(types ...ir.Type) *Error {
		if len(results) != len(types) {
			return errorf(loc, "%s has %d results, expected %d", data.Opcode, len(results), len(types))
		}
		for i, r := range results {
			if dfg.ValueType(r) != types[i] {
				return errorf(loc, "result %s has type %s, expected %s", r, dfg.ValueType(r), types[i])
			}
		}
		return nil
	}
	wantBlock := func(blk ir.Block) *Error {
		if !fn.Layout.IsBlockInserted(blk) {
			return errorf(loc, "%s refers to %s which is not in the layout", data.Opcode, blk)
		}
		return nil
	}
	wantInt := func(t ir.Type) *Error {
		if !t.IsInt() {
			return errorf(loc, "%s requires an integer type, got %s", data.Opcode, t)
		}
		return nil
	}
	first := func(errs ...*Error) *Error {
		for _, err := range errs {
			if err != nil {
				return err
			}
		}
		return nil
	}

	switch op := data.Opcode; {
	case op == ir.OpIconst:
		if err := first(wantArgs(0), wantInt(data.Type), wantResults(data.Type)); err != nil {
			return err
		}
		if data.Type == ir.I32 && (data.Imm < -1<<31 || data.Imm > 1<<32-1) {
			return errorf(loc, "immediate %d does not fit in i32", data.Imm)
		}

	case op.IsBinary():
		if err := first(wantArgs(2), wantInt(data.Type), wantResults(data.Type)); err != nil {
			return err
		}
		if argType(0) != data.Type || argType(1) != data.Type {
			return errorf(loc, "operands of %s must both be %s, got %s and %s",
				op, data.Type, argType(0), argType(1))
		}

	case op == ir.OpIcmp:
		if err := first(wantArgs(2), wantResults(ir.I32)); err != nil {
			return err
		}
		if err := wantInt(argType(0)); err != nil {
			return err
		}
		if argType(0) != argType(1) {
			return errorf(loc, "icmp operands differ in type: %s and %s", argType(0), argType(1))
		}
		if !data.Cond.IsValid() {
			return errorf(loc, "invalid condition code %d", uint8(data.Cond))
		}

	case op == ir.OpIreduce:
		if err := first(wantArgs(1), wantResults(ir.I32)); err != nil {
			return err
		}
		if data.Type != ir.I32 || argType(0) != ir.I64 {
			return errorf(loc, "ireduce converts i64 to i32, got %s to %s", argType(0), data.Type)
		}

	case op == ir.OpSextend || op == ir.OpUextend:
		if err := first(wantArgs(1), wantResults(ir.I64)); err != nil {
			return err
		}
		if data.Type != ir.I64 || argType(0) != ir.I32 {
			return errorf(loc, "%s converts i32 to i64, got %s to %s", op, argType(0), data.Type)
		}

	case op == ir.OpSelect:
		if err := first(wantArgs(3), wantInt(data.Type), wantResults(data.Type)); err != nil {
			return err
		}
		if argType(0) != ir.I32 {
			return errorf(loc, "select condition must be i32, got %s", argType(0))
		}
		if argType(1) != data.Type || argType(2) != data.Type {
			return errorf(loc, "select operands must both be %s", data.Type)
		}

	case op == ir.OpStackLoad:
		if err := first(wantArgs(0), wantInt(data.Type), wantResults(data.Type), v.checkSlot(loc, data.Slot, data.Type)); err != nil {
			return err
		}

	case op == ir.OpStackStore:
		if err := first(wantArgs(1), wantResults()); err != nil {
			return err
		}
		if err := v.checkSlot(loc, data.Slot, argType(0)); err != nil {
			return err
		}

	case op == ir.OpJump:
		return first(wantArgs(0), wantResults(), wantBlock(data.Dest))

	case op == ir.OpBrz || op == ir.OpBrnz:
		if err := first(wantArgs(1), wantResults(), wantBlock(data.Dest)); err != nil {
			return err
		}
		return wantInt(argType(0))

	case op == ir.OpBrTable:
		if err := first(wantArgs(1), wantResults(), wantBlock(data.Dest)); err != nil {
			return err
		}
		if argType(0) != ir.I32 {
			return errorf(loc, "br_table index must be i32, got %s", argType(0))
		}
		if int(data.Table) >= len(fn.JumpTables) {
			return errorf(ir.JumpTableEntity(data.Table), "undeclared jump table used by %s", inst)
		}
		for _, blk := range fn.JumpTables[data.Table].Targets {
			if !fn.Layout.IsBlockInserted(blk) {
				return errorf(ir.JumpTableEntity(data.Table), "entry %s is not in the layout", blk)
			}
		}

	case op == ir.OpReturn:
		if err := wantResults(); err != nil {
			return err
		}
		sig := fn.Signature.Returns
		if len(data.Args) != len(sig) {
			return errorf(loc, "returns %d values, signature has %d", len(data.Args), len(sig))
		}
		for i := range data.Args {
			if argType(i) != sig[i] {
				return errorf(loc, "return value %s has type %s, signature expects %s", data.Args[i], argType(i), sig[i])
			}
		}

	case op == ir.OpTrap:
		return first(wantArgs(0), wantResults())

	case op == ir.OpCall:
		if int(data.Func) >= len(fn.ExtFuncs) {
			return errorf(ir.FuncRefEntity(data.Func), "undeclared function called by %s", inst)
		}
		sig := fn.ExtFuncs[data.Func].Signature
		if len(data.Args) != len(sig.Params) {
			return errorf(loc, "call to %s passes %d arguments, signature has %d", data.Func, len(data.Args), len(sig.Params))
		}
		for i := range data.Args {
			if argType(i) != sig.Params[i] {
				return errorf(loc, "argument %s has type %s, callee expects %s", data.Args[i], argType(i), sig.Params[i])
			}
		}
		return wantResults(sig.Returns...)

	case op == ir.OpFuncAddr:
		if int(data.Func) >= len(fn.ExtFuncs) {
			return errorf(ir.FuncRefEntity(data.Func), "undeclared function referenced by %s", inst)
		}
		if err := first(wantArgs(0), wantResults(data.Type)); err != nil {
			return err
		}
		return v.checkPointer(loc, data.Type)

	case op == ir.OpBlockAddr:
		if err := first(wantArgs(0), wantResults(data.Type), wantBlock(data.Dest)); err != nil {
			return err
		}
		return v.checkPointer(loc, data.Type)

	default:
		return errorf(loc, "invalid opcode %s", op)
	}
	return nil
}

func (v *verifier) checkSlot(loc ir.AnyEntity, ss ir.StackSlot, t ir.Type) *Error {
	if int(ss) >= len(v.fn.StackSlots) {
		return errorf(ir.StackSlotEntity(ss), "undeclared stack slot used by %s", loc)
	}
	if size := v.fn.StackSlots[ss].Size; int(size)*8 < t.Bits() {
		return errorf(loc, "%s of %d bytes cannot hold %s", ss, size, t)
	}
	return nil
}

func (v *verifier) checkPointer(loc ir.AnyEntity, t ir.Type) *Error {
	if !t.IsInt() {
		return errorf(loc, "address type must be an integer, got %s", t)
	}
	if v.target != nil && t.Bits() != v.target.PointerBytes()*8 {
		return errorf(loc, "address type %s does not match the %d-byte pointers of %s",
			t, v.target.PointerBytes(), v.target.Name())
	}
	return nil
}
