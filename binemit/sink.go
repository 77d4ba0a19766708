package binemit

import (
	"encoding/binary"
	"fmt"

	"github.com/wippyai/wasm2obj/ir"
)

// MemoryCodeSink writes little-endian machine code into a caller-provided
// buffer and forwards relocations to a RelocSink.
//
// Bytes written past the end of the buffer are counted but dropped; Err
// reports the overflow once emission is done.
type MemoryCodeSink struct {
	buf    []byte
	offset int
	relocs RelocSink
}

// NewMemoryCodeSink returns a sink filling buf from offset zero. relocs may
// be nil, in which case relocations are dropped.
func NewMemoryCodeSink(buf []byte, relocs RelocSink) *MemoryCodeSink {
	if relocs == nil {
		relocs = NullRelocSink{}
	}
	return &MemoryCodeSink{buf: buf, relocs: relocs}
}

func (s *MemoryCodeSink) Offset() CodeOffset { return CodeOffset(s.offset) }

func (s *MemoryCodeSink) put(n int) []byte {
	start := s.offset
	s.offset += n
	if s.offset > len(s.buf) {
		return nil
	}
	return s.buf[start:s.offset]
}

func (s *MemoryCodeSink) Put1(b uint8) {
	if p := s.put(1); p != nil {
		p[0] = b
	}
}

func (s *MemoryCodeSink) Put2(v uint16) {
	if p := s.put(2); p != nil {
		binary.LittleEndian.PutUint16(p, v)
	}
}

func (s *MemoryCodeSink) Put4(v uint32) {
	if p := s.put(4); p != nil {
		binary.LittleEndian.PutUint32(p, v)
	}
}

func (s *MemoryCodeSink) Put8(v uint64) {
	if p := s.put(8); p != nil {
		binary.LittleEndian.PutUint64(p, v)
	}
}

func (s *MemoryCodeSink) RelocBlock(r Reloc, blk ir.Block) {
	s.relocs.RelocBlock(s.Offset(), r, blk)
}

func (s *MemoryCodeSink) RelocFunc(r Reloc, fn ir.FuncRef) {
	s.relocs.RelocFunc(s.Offset(), r, fn)
}

func (s *MemoryCodeSink) RelocJumpTable(r Reloc, jt ir.JumpTable) {
	s.relocs.RelocJumpTable(s.Offset(), r, jt)
}

// Err reports whether more bytes were emitted than the buffer holds.
func (s *MemoryCodeSink) Err() error {
	if s.offset > len(s.buf) {
		return fmt.Errorf("code buffer overflow: emitted %d bytes into %d", s.offset, len(s.buf))
	}
	return nil
}

// SizingSink only counts bytes. Backends run their encoder against it to
// compute block offsets and the total code size before the real emission.
type SizingSink struct {
	offset CodeOffset
}

func (s *SizingSink) Offset() CodeOffset { return s.offset }
func (s *SizingSink) Put1(uint8) { s.offset++ }
func (s *SizingSink) Put2(uint16) { s.offset += 2 }
func (s *SizingSink) Put4(uint32) { s.offset += 4 }
func (s *SizingSink) Put8(uint64) { s.offset += 8 }
func (s *SizingSink) RelocBlock(Reloc, ir.Block) {}
func (s *SizingSink) RelocFunc(Reloc, ir.FuncRef) {}
func (s *SizingSink) RelocJumpTable(Reloc, ir.JumpTable) {}
