package object

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"io"

	"github.com/wippyai/wasm2obj/errors"
)

// funcAlign is the alignment of each function within .text.
const funcAlign = 16

// Section header indices; index 0 is the null section.
const (
	shText = 1 + iota
	shSymtab
	shStrtab
	shShstrtab
	shNoteStack
	numSections
)

// textFill pads .text between functions (int3).
const textFill = 0xCC

// Emit serializes the artifact as an ELF64 little-endian relocatable object.
func (a *Artifact) Emit() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := a.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteTo writes the ELF object to w.
func (a *Artifact) WriteTo(w io.Writer) (int64, error) {
	img := a.build()
	n, err := w.Write(img)
	if err != nil {
		return int64(n), errors.IO(errors.PhaseObject, "write object", err)
	}
	return int64(n), nil
}

type strtab struct {
	buf bytes.Buffer
}

func newStrtab() *strtab {
	s := &strtab{}
	s.buf.WriteByte(0)
	return s
}

func (s *strtab) add(name string) uint32 {
	off := uint32(s.buf.Len())
	s.buf.WriteString(name)
	s.buf.WriteByte(0)
	return off
}

func alignTo(n, to int) int {
	return (n + to - 1) &^ (to - 1)
}

func (a *Artifact) build() []byte {
	le := binary.LittleEndian

	// .text
	var text bytes.Buffer
	offsets := make([]int, len(a.defs))
	for i, d := range a.defs {
		for text.Len()%funcAlign != 0 {
			text.WriteByte(textFill)
		}
		offsets[i] = text.Len()
		text.Write(d.Code)
	}

	// .symtab and .strtab
	strs := newStrtab()
	var symtab bytes.Buffer
	syms := []elf.Sym64{
		{},
		{Info: elf.ST_INFO(elf.STB_LOCAL, elf.STT_SECTION), Shndx: shText},
	}
	firstGlobal := uint32(len(syms))
	for i, d := range a.defs {
		syms = append(syms, elf.Sym64{
			Name:  strs.add(d.Name),
			Info:  elf.ST_INFO(elf.STB_GLOBAL, elf.STT_FUNC),
			Shndx: shText,
			Value: uint64(offsets[i]),
			Size:  uint64(len(d.Code)),
		})
	}
	for _, s := range syms {
		_ = binary.Write(&symtab, le, s)
	}

	// .shstrtab
	shstrs := newStrtab()
	names := [numSections]uint32{}
	names[shText] = shstrs.add(".text")
	names[shSymtab] = shstrs.add(".symtab")
	names[shStrtab] = shstrs.add(".strtab")
	names[shShstrtab] = shstrs.add(".shstrtab")
	names[shNoteStack] = shstrs.add(".note.GNU-stack")

	// File layout: header, .text, .symtab, .strtab, .shstrtab, section headers.
	// .note.GNU-stack is empty and occupies no file space.
	const ehsize = 64
	textOff := alignTo(ehsize, funcAlign)
	symOff := alignTo(textOff+text.Len(), 8)
	strOff := symOff + symtab.Len()
	shstrOff := strOff + strs.buf.Len()
	shOff := alignTo(shstrOff+shstrs.buf.Len(), 8)

	sections := [numSections]elf.Section64{
		shText: {
			Name:      names[shText],
			Type:      uint32(elf.SHT_PROGBITS),
			Flags:     uint64(elf.SHF_ALLOC | elf.SHF_EXECINSTR),
			Off:       uint64(textOff),
			Size:      uint64(text.Len()),
			Addralign: funcAlign,
		},
		shSymtab: {
			Name:      names[shSymtab],
			Type:      uint32(elf.SHT_SYMTAB),
			Off:       uint64(symOff),
			Size:      uint64(symtab.Len()),
			Link:      shStrtab,
			Info:      firstGlobal,
			Addralign: 8,
			Entsize:   elf.Sym64Size,
		},
		shStrtab: {
			Name:      names[shStrtab],
			Type:      uint32(elf.SHT_STRTAB),
			Off:       uint64(strOff),
			Size:      uint64(strs.buf.Len()),
			Addralign: 1,
		},
		shShstrtab: {
			Name:      names[shShstrtab],
			Type:      uint32(elf.SHT_STRTAB),
			Off:       uint64(shstrOff),
			Size:      uint64(shstrs.buf.Len()),
			Addralign: 1,
		},
		// Empty marker: the code does not need an executable stack.
		shNoteStack: {
			Name:      names[shNoteStack],
			Type:      uint32(elf.SHT_PROGBITS),
			Off:       uint64(shOff),
			Addralign: 1,
		},
	}

	hdr := elf.Header64{
		Type:      uint16(elf.ET_REL),
		Machine:   uint16(a.Target.Machine),
		Version:   uint32(elf.EV_CURRENT),
		Shoff:     uint64(shOff),
		Ehsize:    ehsize,
		Shentsize: 64,
		Shnum:     numSections,
		Shstrndx:  shShstrtab,
	}
	copy(hdr.Ident[:], elf.ELFMAG)
	hdr.Ident[elf.EI_CLASS] = byte(elf.ELFCLASS64)
	hdr.Ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	hdr.Ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)
	hdr.Ident[elf.EI_OSABI] = byte(elf.ELFOSABI_NONE)

	var out bytes.Buffer
	_ = binary.Write(&out, le, hdr)
	pad := func(to int) {
		for out.Len() < to {
			out.WriteByte(0)
		}
	}
	pad(textOff)
	out.Write(text.Bytes())
	pad(symOff)
	out.Write(symtab.Bytes())
	out.Write(strs.buf.Bytes())
	out.Write(shstrs.buf.Bytes())
	pad(shOff)
	for _, sh := range sections {
		_ = binary.Write(&out, le, sh)
	}
	return out.Bytes()
}
