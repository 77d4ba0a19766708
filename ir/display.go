package ir

import (
	"fmt"
	"strings"
)

// InstAnnotator supplies a per-instruction prefix when rendering a function,
// typically the target encoding chosen for the instruction.
type InstAnnotator interface {
	AnnotateInst(fn *Function, inst Inst) string
}

// Display renders the function in its textual form. ann may be nil.
func (f *Function) Display(ann InstAnnotator) string {
	var b strings.Builder
	fmt.Fprintf(&b, "function %s%s {\n", f.Name, f.Signature)

	for i, ss := range f.StackSlots {
		fmt.Fprintf(&b, "    %s = explicit_slot %d\n", StackSlot(i), ss.Size)
	}
	for i, ef := range f.ExtFuncs {
		fmt.Fprintf(&b, "    %s = %s %s\n", FuncRef(i), ef.Name, ef.Signature)
	}
	for i, jt := range f.JumpTables {
		fmt.Fprintf(&b, "    %s = jump_table [%s]\n", JumpTable(i), joinBlocks(jt.Targets))
	}

	hasPreamble := len(f.StackSlots)+len(f.ExtFuncs)+len(f.JumpTables) > 0
	for i, blk := range f.Layout.Blocks() {
		if i > 0 || hasPreamble {
			b.WriteByte('\n')
		}
		b.WriteString(blk.String())
		if params := f.DFG.BlockParams(blk); len(params) > 0 {
			b.WriteByte('(')
			for i, p := range params {
				if i > 0 {
					b.WriteString(", ")
				}
				fmt.Fprintf(&b, "%s: %s", p, f.DFG.ValueType(p))
			}
			b.WriteByte(')')
		}
		b.WriteString(":\n")
		for _, inst := range f.Layout.BlockInsts(blk) {
			b.WriteString("    ")
			b.WriteString(f.DisplayInst(inst, ann))
			b.WriteByte('\n')
		}
	}
	b.WriteString("}\n")
	return b.String()
}

func (f *Function) String() string {
	return f.Display(nil)
}

// DisplayInst renders a single instruction. ann may be nil.
func (f *Function) DisplayInst(inst Inst, ann InstAnnotator) string {
	var b strings.Builder
	if ann != nil {
		if tag := ann.AnnotateInst(f, inst); tag != "" {
			fmt.Fprintf(&b, "[%s] ", tag)
		}
	}

	if results := f.DFG.InstResults(inst); len(results) > 0 {
		for i, r := range results {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(r.String())
		}
		b.WriteString(" = ")
	}

	data := f.DFG.Inst(inst)
	b.WriteString(data.Opcode.String())
	switch data.Opcode {
	case OpIconst:
		fmt.Fprintf(&b, ".%s %d", data.Type, data.Imm)
	case OpIcmp:
		fmt.Fprintf(&b, " %s %s", data.Cond, joinValues(data.Args))
	case OpIreduce, OpSextend, OpUextend:
		fmt.Fprintf(&b, ".%s %s", data.Type, joinValues(data.Args))
	case OpStackLoad:
		fmt.Fprintf(&b, ".%s %s", data.Type, data.Slot)
	case OpStackStore:
		fmt.Fprintf(&b, " %s, %s", joinValues(data.Args), data.Slot)
	case OpJump:
		fmt.Fprintf(&b, " %s", data.Dest)
	case OpBrz, OpBrnz:
		fmt.Fprintf(&b, " %s, %s", joinValues(data.Args), data.Dest)
	case OpBrTable:
		fmt.Fprintf(&b, " %s, %s, %s", joinValues(data.Args), data.Dest, data.Table)
	case OpCall:
		fmt.Fprintf(&b, " %s(%s)", data.Func, joinValues(data.Args))
	case OpFuncAddr:
		fmt.Fprintf(&b, ".%s %s", data.Type, data.Func)
	case OpBlockAddr:
		fmt.Fprintf(&b, ".%s %s", data.Type, data.Dest)
	default:
		if len(data.Args) > 0 {
			b.WriteByte(' ')
			b.WriteString(joinValues(data.Args))
		}
	}
	return b.String()
}

func joinValues(vals []Value) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = v.String()
	}
	return strings.Join(parts, ", ")
}

func joinBlocks(blocks []Block) string {
	parts := make([]string, len(blocks))
	for i, blk := range blocks {
		parts[i] = blk.String()
	}
	return strings.Join(parts, ", ")
}
