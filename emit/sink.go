package emit

import (
	"fmt"

	"github.com/wippyai/wasm2obj/binemit"
	"github.com/wippyai/wasm2obj/ir"
)

// relocEntry is one relocation site: the field at Offset refers to Target.
type relocEntry[T any] struct {
	Target T
	Offset binemit.CodeOffset
}

// relocSink records the relocations reported while emitting one function.
// Entries are keyed by relocation kind; a later site of the same kind
// replaces the earlier one.
type relocSink struct {
	blocks     map[binemit.Reloc]relocEntry[ir.Block]
	funcs      map[binemit.Reloc]relocEntry[ir.FuncRef]
	jumpTables map[binemit.Reloc]relocEntry[ir.JumpTable]
}

func newRelocSink() *relocSink {
	return &relocSink{
		blocks:     make(map[binemit.Reloc]relocEntry[ir.Block]),
		funcs:      make(map[binemit.Reloc]relocEntry[ir.FuncRef]),
		jumpTables: make(map[binemit.Reloc]relocEntry[ir.JumpTable]),
	}
}

func (s *relocSink) RelocBlock(off binemit.CodeOffset, r binemit.Reloc, blk ir.Block) {
	s.blocks[r] = relocEntry[ir.Block]{Target: blk, Offset: off}
}

func (s *relocSink) RelocFunc(off binemit.CodeOffset, r binemit.Reloc, fn ir.FuncRef) {
	s.funcs[r] = relocEntry[ir.FuncRef]{Target: fn, Offset: off}
}

func (s *relocSink) RelocJumpTable(off binemit.CodeOffset, r binemit.Reloc, jt ir.JumpTable) {
	s.jumpTables[r] = relocEntry[ir.JumpTable]{Target: jt, Offset: off}
}

// unsupportedReloc describes the first recorded relocation in the order jump
// tables, blocks, functions. It returns false when nothing was recorded.
func (s *relocSink) unsupportedReloc() (string, bool) {
	if r, e, ok := first(s.jumpTables); ok {
		return describe("jump tables not yet implemented", e.Target.String(), e.Offset, r), true
	}
	if r, e, ok := first(s.blocks); ok {
		return describe("block relocations not yet implemented", e.Target.String(), e.Offset, r), true
	}
	if r, e, ok := first(s.funcs); ok {
		return describe("function relocations not yet implemented", e.Target.String(), e.Offset, r), true
	}
	return "", false
}

// first returns the entry with the lowest offset so the report does not
// depend on map iteration order.
func first[T any](m map[binemit.Reloc]relocEntry[T]) (binemit.Reloc, relocEntry[T], bool) {
	var (
		bestKind binemit.Reloc
		best     relocEntry[T]
		found    bool
	)
	for r, e := range m {
		if !found || e.Offset < best.Offset || (e.Offset == best.Offset && r < bestKind) {
			bestKind, best, found = r, e, true
		}
	}
	return bestKind, best, found
}

func describe(what, target string, off binemit.CodeOffset, r binemit.Reloc) string {
	return fmt.Sprintf("%s: %s reference to %s at offset %d", what, r, target, off)
}
