package wasm_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wippyai/wasm2obj/wasm"
)

func sampleModule() *wasm.Module {
	start := uint32(1)
	return &wasm.Module{
		Types: []wasm.FuncType{
			{Params: []wasm.ValType{wasm.ValI32, wasm.ValI32}, Results: []wasm.ValType{wasm.ValI32}},
			{},
		},
		Imports: []wasm.Import{
			{Module: "env", Name: "log", Kind: wasm.KindFunc, TypeIdx: 1},
			{Module: "env", Name: "memory", Kind: wasm.KindMemory, Raw: []byte{0x00, 0x01}},
		},
		Funcs: []uint32{0, 1},
		Exports: []wasm.Export{
			{Name: "add", Kind: wasm.KindFunc, Idx: 1},
			{Name: "plus", Kind: wasm.KindFunc, Idx: 1},
		},
		Start: &start,
		Code: []wasm.FuncBody{
			{
				Code: wasm.EncodeInstructions([]wasm.Instruction{
					{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: 0}},
					{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: 1}},
					{Opcode: wasm.OpI32Add},
					{Opcode: wasm.OpEnd},
				}),
			},
			{
				Locals: []wasm.LocalEntry{{Count: 2, ValType: wasm.ValI64}},
				Code:   []byte{wasm.OpEnd},
			},
		},
	}
}

func TestParseModule_RoundTrip(t *testing.T) {
	orig := sampleModule()

	parsed, err := wasm.ParseModule(orig.Encode())
	if err != nil {
		t.Fatalf("ParseModule: %v", err)
	}
	if diff := cmp.Diff(orig, parsed); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestParseModule_Accessors(t *testing.T) {
	m := sampleModule()

	if got := m.NumImportedFuncs(); got != 1 {
		t.Errorf("NumImportedFuncs = %d, want 1", got)
	}
	if ft := m.GetFuncType(0); ft == nil || len(ft.Params) != 0 {
		t.Errorf("GetFuncType(0) = %+v, want imported () -> ()", ft)
	}
	if ft := m.GetFuncType(1); ft == nil || len(ft.Params) != 2 {
		t.Errorf("GetFuncType(1) = %+v, want (i32, i32) -> i32", ft)
	}
	if ft := m.GetFuncType(5); ft != nil {
		t.Errorf("GetFuncType(5) = %+v, want nil", ft)
	}

	names := m.ExportedFuncNames()
	if diff := cmp.Diff([]string{"add", "plus"}, names[1]); diff != "" {
		t.Errorf("export names (-want +got):\n%s", diff)
	}
}

func TestParseModule_Errors(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		want    error
		wantMsg string
	}{
		{
			name: "bad magic",
			data: []byte{0x00, 0x61, 0x73, 0x6e, 0x01, 0x00, 0x00, 0x00},
			want: wasm.ErrInvalidMagic,
		},
		{
			name: "bad version",
			data: []byte{0x00, 0x61, 0x73, 0x6d, 0x02, 0x00, 0x00, 0x00},
			want: wasm.ErrInvalidVersion,
		},
		{
			name:    "truncated header",
			data:    []byte{0x00, 0x61},
			wantMsg: "header",
		},
		{
			name: "out of order",
			data: []byte{
				0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
				wasm.SectionFunction, 0x01, 0x00,
				wasm.SectionType, 0x01, 0x00,
			},
			wantMsg: "out of order",
		},
		{
			name: "unknown section",
			data: []byte{
				0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
				0x20, 0x00,
			},
			wantMsg: "unknown section",
		},
		{
			name: "function without body",
			data: (&wasm.Module{
				Types: []wasm.FuncType{{}},
				Funcs: []uint32{0},
			}).Encode(),
			wantMsg: "counts differ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := wasm.ParseModule(tt.data)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
			if tt.wantMsg != "" && !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error = %v, want substring %q", err, tt.wantMsg)
			}
		})
	}
}

func TestParseModule_SkipsOtherSections(t *testing.T) {
	data := []byte{
		0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
		wasm.SectionMemory, 0x03, 0x01, 0x00, 0x01,
		wasm.SectionData, 0x01, 0x00,
	}
	m, err := wasm.ParseModule(data)
	if err != nil {
		t.Fatalf("ParseModule: %v", err)
	}
	if len(m.Funcs) != 0 || len(m.Code) != 0 {
		t.Errorf("unexpected functions: %+v", m)
	}
}

func TestParseModule_PositionInError(t *testing.T) {
	data := []byte{
		0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
		wasm.SectionType, 0x02, 0x01, 0x50,
	}
	_, err := wasm.ParseModule(data)
	var perr *wasm.ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("error %v is not a *ParseError", err)
	}
	if perr.Section != "type section" {
		t.Errorf("Section = %q, want %q", perr.Section, "type section")
	}
}
