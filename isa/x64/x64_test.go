package x64_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wippyai/wasm2obj/binemit"
	"github.com/wippyai/wasm2obj/ir"
	"github.com/wippyai/wasm2obj/isa"
	"github.com/wippyai/wasm2obj/isa/x64"
)

type reloc struct {
	Kind   string
	Offset binemit.CodeOffset
	Reloc  binemit.Reloc
	Target uint32
}

type relocRecorder struct {
	relocs []reloc
}

func (r *relocRecorder) RelocBlock(off binemit.CodeOffset, rel binemit.Reloc, blk ir.Block) {
	r.relocs = append(r.relocs, reloc{"block", off, rel, uint32(blk)})
}

func (r *relocRecorder) RelocFunc(off binemit.CodeOffset, rel binemit.Reloc, fn ir.FuncRef) {
	r.relocs = append(r.relocs, reloc{"func", off, rel, uint32(fn)})
}

func (r *relocRecorder) RelocJumpTable(off binemit.CodeOffset, rel binemit.Reloc, jt ir.JumpTable) {
	r.relocs = append(r.relocs, reloc{"jt", off, rel, uint32(jt)})
}

func compile(t *testing.T, fn *ir.Function) ([]byte, []reloc) {
	t.Helper()
	backend := x64.New()
	layout, err := backend.Layout(fn)
	if err != nil {
		t.Fatalf("Layout: %v", err)
	}
	buf := make([]byte, layout.Size)
	rec := &relocRecorder{}
	sink := binemit.NewMemoryCodeSink(buf, rec)
	if err := backend.Emit(fn, layout, sink); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if err := sink.Err(); err != nil {
		t.Fatalf("sink: %v", err)
	}
	return buf, rec.relocs
}

func newFunc(params, returns []ir.Type) (*ir.Function, *ir.Builder, []ir.Value) {
	fn := ir.NewFunction("u0:0", ir.Signature{Params: params, Returns: returns})
	b := ir.NewBuilder(fn)
	entry := b.CreateBlock()
	b.SwitchToBlock(entry)
	return fn, b, b.AppendBlockParams(entry, params...)
}

func TestReturnConstant(t *testing.T) {
	fn, b, _ := newFunc(nil, []ir.Type{ir.I32})
	b.Return(b.Iconst(ir.I32, 42))

	code, relocs := compile(t, fn)
	want := []byte{
		0x55,                                     // push rbp
		0x48, 0x89, 0xE5,                         // mov rbp, rsp
		0x48, 0x81, 0xEC, 0x10, 0x00, 0x00, 0x00, // sub rsp, 16
		0xB8, 0x2A, 0x00, 0x00, 0x00,             // mov eax, 42
		0x48, 0x89, 0x85, 0xF8, 0xFF, 0xFF, 0xFF, // mov [rbp-8], rax
		0x48, 0x8B, 0x85, 0xF8, 0xFF, 0xFF, 0xFF, // mov rax, [rbp-8]
		0x48, 0x89, 0xEC,                         // mov rsp, rbp
		0x5D,                                     // pop rbp
		0xC3,                                     // ret
	}
	if diff := cmp.Diff(want, code); diff != "" {
		t.Errorf("code (-want +got):\n%s", diff)
	}
	if len(relocs) != 0 {
		t.Errorf("unexpected relocations: %v", relocs)
	}
}

func TestBranchDisplacements(t *testing.T) {
	fn, b, _ := newFunc(nil, nil)
	loop := b.CreateBlock()
	b.Jump(loop)
	b.SwitchToBlock(loop)
	b.Jump(loop)

	code, _ := compile(t, fn)
	// prologue (11 bytes, empty frame), then block0 at 11 and block1 at 16.
	want := []byte{
		0x55, 0x48, 0x89, 0xE5, 0x48, 0x81, 0xEC, 0x00, 0x00, 0x00, 0x00,
		0xE9, 0x00, 0x00, 0x00, 0x00, // jmp block1 (falls through)
		0xE9, 0xFB, 0xFF, 0xFF, 0xFF, // jmp block1 (-5)
	}
	if diff := cmp.Diff(want, code); diff != "" {
		t.Errorf("code (-want +got):\n%s", diff)
	}
}

func TestLayoutBlockOffsets(t *testing.T) {
	fn, b, args := newFunc([]ir.Type{ir.I64}, []ir.Type{ir.I64})
	exit := b.CreateBlock()
	c := b.Convert(ir.OpIreduce, ir.I32, args[0])
	b.Brz(c, exit)
	b.Trap()
	b.SwitchToBlock(exit)
	b.Return(args[0])

	layout, err := x64.New().Layout(fn)
	if err != nil {
		t.Fatal(err)
	}
	// 11 prologue + 7 param spill; ireduce 16; brz 7+2+6; ud2 2.
	if got := layout.BlockOffsets[exit]; got != 18+16+15+2 {
		t.Errorf("exit offset = %d", got)
	}
	if layout.FrameSize != 16 {
		t.Errorf("FrameSize = %d, want 16", layout.FrameSize)
	}
	code, _ := compile(t, fn)
	if uint32(len(code)) != layout.Size {
		t.Errorf("len = %d, Size = %d", len(code), layout.Size)
	}
}

func TestRelocations(t *testing.T) {
	fn, b, args := newFunc([]ir.Type{ir.I32}, nil)
	exit := b.CreateBlock()
	callee := fn.ImportFunction(ir.ExtFuncData{Name: "u0:7"})
	jt := fn.CreateJumpTable([]ir.Block{exit})

	b.Call(callee)
	b.FuncAddr(ir.I64, callee)
	b.BlockAddr(ir.I64, exit)
	b.BrTable(args[0], exit, jt)
	b.SwitchToBlock(exit)
	b.Return()

	_, relocs := compile(t, fn)

	// Prologue 11 plus the parameter spill of 7 bytes puts the call at 18.
	const call = 18
	const funcAddr = call + 5
	const blockAddr = funcAddr + 2 + 8 + 7
	const brTable = blockAddr + 2 + 8 + 7
	want := []reloc{
		{"func", call + 1, binemit.X86CallPCRel4, uint32(callee)},
		{"func", funcAddr + 2, binemit.Abs8, uint32(callee)},
		{"block", blockAddr + 2, binemit.Abs8, uint32(exit)},
		// load 7, mov eax 2, cmp 5, jae 6, lea opcode 3
		{"jt", brTable + 7 + 2 + 5 + 6 + 3, binemit.X86PCRel4, uint32(jt)},
	}
	if diff := cmp.Diff(want, relocs); diff != "" {
		t.Errorf("relocations (-want +got):\n%s", diff)
	}
}

func TestStackArguments(t *testing.T) {
	params := make([]ir.Type, 8)
	for i := range params {
		params[i] = ir.I64
	}
	fn, b, args := newFunc(params, []ir.Type{ir.I64})
	b.Return(args[7])

	code, _ := compile(t, fn)
	// The eighth argument is read from [rbp+24].
	load := []byte{0x48, 0x8B, 0x85, 0x18, 0x00, 0x00, 0x00}
	found := false
	for i := 0; i+len(load) <= len(code); i++ {
		if cmp.Equal(load, code[i:i+len(load)]) {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("load of the eighth argument not found in % x", code)
	}
}

func TestEncodingMatrix(t *testing.T) {
	fn, b, args := newFunc([]ir.Type{ir.I32, ir.I32, ir.I64}, []ir.Type{ir.I64})
	ss := fn.CreateStackSlot(8)
	var v32 ir.Value = args[0]
	for _, op := range []ir.Opcode{ir.OpIadd, ir.OpIsub, ir.OpImul, ir.OpBand, ir.OpBor, ir.OpBxor, ir.OpIshl, ir.OpSshr, ir.OpUshr} {
		v32 = b.Binary(op, v32, args[1])
	}
	v64 := b.Binary(ir.OpImul, args[2], b.Iconst(ir.I64, -3))
	c := b.Icmp(ir.CondUnsignedGreaterThan, v32, args[1])
	s := b.Select(c, b.Convert(ir.OpSextend, ir.I64, v32), v64)
	b.StackStore(s, ss)
	b.Return(b.StackLoad(ir.I64, ss))

	backend := x64.New()
	for _, blk := range fn.Layout.Blocks() {
		for _, inst := range fn.Layout.BlockInsts(blk) {
			if err := backend.CheckEncoding(fn, inst); err != nil {
				t.Errorf("%s: %v", fn.DisplayInst(inst, nil), err)
			}
		}
	}
	code, relocs := compile(t, fn)
	if len(code) == 0 || len(relocs) != 0 {
		t.Errorf("len = %d, relocs = %v", len(code), relocs)
	}
}

func TestCheckEncoding(t *testing.T) {
	params := make([]ir.Type, 7)
	for i := range params {
		params[i] = ir.I32
	}
	fn, b, args := newFunc(params, []ir.Type{ir.I32, ir.I32})
	wide := fn.ImportFunction(ir.ExtFuncData{Name: "wide", Signature: ir.Signature{Params: params}})
	multi := fn.ImportFunction(ir.ExtFuncData{Name: "multi", Signature: ir.Signature{Returns: []ir.Type{ir.I32, ir.I32}}})
	callWide, _ := b.Call(wide, args...)
	callMulti, _ := b.Call(multi)
	ret := b.Return(args[0], args[1])

	backend := x64.New()
	for _, inst := range []ir.Inst{callWide, callMulti, ret} {
		if err := backend.CheckEncoding(fn, inst); err == nil {
			t.Errorf("%s: expected encoding error", fn.DisplayInst(inst, nil))
		}
	}
}

func TestAnnotateInst(t *testing.T) {
	fn, b, args := newFunc([]ir.Type{ir.I64}, []ir.Type{ir.I64})
	b.Return(b.Binary(ir.OpIadd, args[0], b.Iconst(ir.I64, 1)))

	got := fn.Display(x64.New())
	want := `function u0:0(i64) -> i64 {
block0(v0: i64):
    [mov_imm64] v1 = iconst.i64 1
    [alu_rr] v2 = iadd v0, v1
    [ret] return v2
}
`
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Display (-want +got):\n%s", diff)
	}
}

func TestRegistered(t *testing.T) {
	target, err := isa.Lookup(x64.Name)
	if err != nil {
		t.Fatal(err)
	}
	if target.PointerBytes() != 8 {
		t.Errorf("PointerBytes() = %d", target.PointerBytes())
	}
}
