package emit

import (
	"testing"

	"github.com/wippyai/wasm2obj/binemit"
	"github.com/wippyai/wasm2obj/ir"
)

func TestRelocSink_Empty(t *testing.T) {
	if msg, ok := newRelocSink().unsupportedReloc(); ok {
		t.Errorf("empty sink reported %q", msg)
	}
}

func TestRelocSink_OverwritesSameKind(t *testing.T) {
	s := newRelocSink()
	s.RelocFunc(10, binemit.X86CallPCRel4, ir.FuncRef(0))
	s.RelocFunc(30, binemit.X86CallPCRel4, ir.FuncRef(2))
	s.RelocFunc(50, binemit.Abs8, ir.FuncRef(1))

	if len(s.funcs) != 2 {
		t.Fatalf("recorded %d function relocations, want 2", len(s.funcs))
	}
	if got := s.funcs[binemit.X86CallPCRel4]; got.Target != 2 || got.Offset != 30 {
		t.Errorf("X86CallPCRel4 entry = %+v", got)
	}

	msg, ok := s.unsupportedReloc()
	want := "function relocations not yet implemented: X86CallPCRel4 reference to fn2 at offset 30"
	if !ok || msg != want {
		t.Errorf("unsupportedReloc() = %q, %v, want %q", msg, ok, want)
	}
}

func TestRelocSink_ReportOrder(t *testing.T) {
	s := newRelocSink()
	s.RelocFunc(4, binemit.X86CallPCRel4, ir.FuncRef(0))
	s.RelocBlock(8, binemit.Abs8, ir.Block(1))
	if msg, _ := s.unsupportedReloc(); msg != "block relocations not yet implemented: Abs8 reference to block1 at offset 8" {
		t.Errorf("got %q", msg)
	}

	s.RelocJumpTable(12, binemit.X86PCRel4, ir.JumpTable(0))
	if msg, _ := s.unsupportedReloc(); msg != "jump tables not yet implemented: X86PCRel4 reference to jt0 at offset 12" {
		t.Errorf("got %q", msg)
	}
}
