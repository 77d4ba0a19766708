package translate_test

import (
	stderrors "errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wippyai/wasm2obj/errors"
	"github.com/wippyai/wasm2obj/isa/x64"
	"github.com/wippyai/wasm2obj/translate"
	"github.com/wippyai/wasm2obj/verifier"
	"github.com/wippyai/wasm2obj/wasm"
)

var (
	i32 = wasm.ValI32
	i64 = wasm.ValI64
)

func singleFunc(params, results []wasm.ValType, locals []wasm.LocalEntry, code ...byte) *wasm.Module {
	return &wasm.Module{
		Types: []wasm.FuncType{{Params: params, Results: results}},
		Funcs: []uint32{0},
		Code:  []wasm.FuncBody{{Locals: locals, Code: code}},
	}
}

func translateOne(t *testing.T, m *wasm.Module) *translate.TranslationResult {
	t.Helper()
	res, err := translate.Translate(m, translate.NewRuntime())
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	for _, fn := range res.Functions {
		if err := verifier.Verify(fn, x64.New()); err != nil {
			t.Fatalf("Verify: %v\n%s", err, fn)
		}
	}
	return res
}

func TestTranslate_ReturnConstant(t *testing.T) {
	m := singleFunc(nil, []wasm.ValType{i32}, nil,
		wasm.OpI32Const, 42,
		wasm.OpEnd)
	res := translateOne(t, m)

	want := `function u0:0() -> i32 {
block0:
    v0 = iconst.i32 42
    return v0
}
`
	if diff := cmp.Diff(want, res.Functions[0].Display(nil)); diff != "" {
		t.Errorf("IR (-want +got):\n%s", diff)
	}
}

func TestTranslate_Locals(t *testing.T) {
	m := singleFunc([]wasm.ValType{i32, i32}, []wasm.ValType{i32}, nil,
		wasm.OpLocalGet, 0,
		wasm.OpLocalGet, 1,
		wasm.OpI32Add,
		wasm.OpEnd)
	res := translateOne(t, m)

	want := `function u0:0(i32, i32) -> i32 {
    ss0 = explicit_slot 4
    ss1 = explicit_slot 4

block0(v0: i32, v1: i32):
    stack_store v0, ss0
    stack_store v1, ss1
    v2 = stack_load.i32 ss0
    v3 = stack_load.i32 ss1
    v4 = iadd v2, v3
    return v4
}
`
	if diff := cmp.Diff(want, res.Functions[0].Display(nil)); diff != "" {
		t.Errorf("IR (-want +got):\n%s", diff)
	}
}

func TestTranslate_ControlFlow(t *testing.T) {
	tests := []struct {
		name    string
		params  []wasm.ValType
		results []wasm.ValType
		locals  []wasm.LocalEntry
		code    []byte
	}{
		{
			name:    "if else with result",
			params:  []wasm.ValType{i32},
			results: []wasm.ValType{i32},
			code: []byte{
				wasm.OpLocalGet, 0,
				wasm.OpIf, 0x7F,
				wasm.OpI32Const, 1,
				wasm.OpElse,
				wasm.OpI32Const, 2,
				wasm.OpEnd,
				wasm.OpEnd,
			},
		},
		{
			name:    "if without else",
			params:  []wasm.ValType{i64},
			results: []wasm.ValType{i64},
			code: []byte{
				wasm.OpLocalGet, 0,
				wasm.OpI64Eqz,
				wasm.OpIf, 0x40,
				wasm.OpI64Const, 3,
				wasm.OpLocalSet, 0,
				wasm.OpEnd,
				wasm.OpLocalGet, 0,
				wasm.OpEnd,
			},
		},
		{
			name:    "counting loop",
			params:  []wasm.ValType{i32},
			results: []wasm.ValType{i32},
			locals:  []wasm.LocalEntry{{Count: 1, ValType: i32}},
			code: []byte{
				wasm.OpLoop, 0x40,
				wasm.OpLocalGet, 1, wasm.OpI32Const, 1, wasm.OpI32Add, wasm.OpLocalSet, 1,
				wasm.OpLocalGet, 1, wasm.OpLocalGet, 0, wasm.OpI32LtS, wasm.OpBrIf, 0,
				wasm.OpEnd,
				wasm.OpLocalGet, 1,
				wasm.OpEnd,
			},
		},
		{
			name:    "br out of block skips dead code",
			results: []wasm.ValType{i32},
			code: []byte{
				wasm.OpBlock, 0x7F,
				wasm.OpI32Const, 5,
				wasm.OpBr, 0,
				wasm.OpI32Const, 6,
				wasm.OpBlock, 0x40, wasm.OpEnd,
				wasm.OpEnd,
				wasm.OpEnd,
			},
		},
		{
			name:    "br_table",
			params:  []wasm.ValType{i32},
			results: []wasm.ValType{i32},
			code: []byte{
				wasm.OpBlock, 0x40,
				wasm.OpBlock, 0x40,
				wasm.OpLocalGet, 0,
				wasm.OpBrTable, 2, 0, 1, 1,
				wasm.OpEnd,
				wasm.OpI32Const, 10,
				wasm.OpReturn,
				wasm.OpEnd,
				wasm.OpI32Const, 20,
				wasm.OpEnd,
			},
		},
		{
			name:    "br_if to function",
			params:  []wasm.ValType{i32},
			results: []wasm.ValType{i32},
			code: []byte{
				wasm.OpI32Const, 7,
				wasm.OpLocalGet, 0,
				wasm.OpBrIf, 0,
				wasm.OpDrop,
				wasm.OpI32Const, 9,
				wasm.OpEnd,
			},
		},
		{
			name:    "return inside if",
			params:  []wasm.ValType{i32},
			results: []wasm.ValType{i32},
			code: []byte{
				wasm.OpLocalGet, 0,
				wasm.OpIf, 0x40,
				wasm.OpI32Const, 1,
				wasm.OpReturn,
				wasm.OpEnd,
				wasm.OpI32Const, 2,
				wasm.OpEnd,
			},
		},
		{
			name:    "unreachable body",
			results: []wasm.ValType{i64},
			code:    []byte{wasm.OpUnreachable, wasm.OpEnd},
		},
		{
			name:    "select and conversions",
			params:  []wasm.ValType{i64, i32},
			results: []wasm.ValType{i64},
			code: []byte{
				wasm.OpLocalGet, 0,
				wasm.OpLocalGet, 1, wasm.OpI64ExtendI32U,
				wasm.OpLocalGet, 0, wasm.OpI32WrapI64,
				wasm.OpSelect,
				wasm.OpLocalGet, 1, wasm.OpI64ExtendI32S,
				wasm.OpI64Xor,
				wasm.OpEnd,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			translateOne(t, singleFunc(tt.params, tt.results, tt.locals, tt.code...))
		})
	}
}

func TestTranslate_Calls(t *testing.T) {
	m := &wasm.Module{
		Types: []wasm.FuncType{
			{Params: []wasm.ValType{i32}, Results: []wasm.ValType{i32}},
		},
		Imports: []wasm.Import{{Module: "env", Name: "inc", Kind: wasm.KindFunc, TypeIdx: 0}},
		Funcs:   []uint32{0, 0},
		Exports: []wasm.Export{{Name: "twice", Kind: wasm.KindFunc, Idx: 2}},
		Start:   nil,
		Code: []wasm.FuncBody{
			{Code: []byte{wasm.OpLocalGet, 0, wasm.OpCall, 0, wasm.OpEnd}},
			{Code: []byte{wasm.OpLocalGet, 0, wasm.OpCall, 1, wasm.OpCall, 1, wasm.OpEnd}},
		},
	}
	rt := translate.NewRuntime()
	res, err := translate.Translate(m, rt)
	if err != nil {
		t.Fatal(err)
	}

	if rt.NumImportedFuncs() != 1 || rt.ImportedFuncs[0].Name != "inc" {
		t.Errorf("runtime imports = %+v", rt.ImportedFuncs)
	}
	if res.FuncIndexBase != 1 || res.FuncIndex(1) != 2 {
		t.Errorf("FuncIndexBase = %d", res.FuncIndexBase)
	}
	if diff := cmp.Diff(map[uint32][]string{2: {"twice"}}, res.ExportNames); diff != "" {
		t.Errorf("ExportNames (-want +got):\n%s", diff)
	}

	first, second := res.Functions[0], res.Functions[1]
	if first.Name != "u0:1" || second.Name != "u0:2" {
		t.Errorf("names = %s, %s", first.Name, second.Name)
	}
	if len(first.ExtFuncs) != 1 || first.ExtFuncs[0].Name != "u0:0" {
		t.Errorf("first callees = %+v", first.ExtFuncs)
	}
	// Repeated calls share one declaration.
	if len(second.ExtFuncs) != 1 || second.ExtFuncs[0].Name != "u0:1" {
		t.Errorf("second callees = %+v", second.ExtFuncs)
	}
	for _, fn := range res.Functions {
		if err := verifier.Verify(fn, x64.New()); err != nil {
			t.Errorf("Verify %s: %v", fn.Name, err)
		}
	}
}

func TestTranslate_StartIndex(t *testing.T) {
	m := singleFunc(nil, nil, nil, wasm.OpEnd)
	start := uint32(0)
	m.Start = &start
	res := translateOne(t, m)
	if res.StartIndex == nil || *res.StartIndex != 0 {
		t.Fatalf("StartIndex = %v", res.StartIndex)
	}
	*m.Start = 5
	if *res.StartIndex != 0 {
		t.Error("StartIndex aliases the module")
	}
}

func TestTranslate_Errors(t *testing.T) {
	tests := []struct {
		name string
		mod  *wasm.Module
		kind errors.Kind
	}{
		{
			name: "float parameter",
			mod:  singleFunc([]wasm.ValType{wasm.ValF32}, nil, nil, wasm.OpEnd),
			kind: errors.KindUnsupported,
		},
		{
			name: "multiple results",
			mod:  singleFunc(nil, []wasm.ValType{i32, i32}, nil, wasm.OpI32Const, 1, wasm.OpI32Const, 2, wasm.OpEnd),
			kind: errors.KindUnsupported,
		},
		{
			name: "float local",
			mod:  singleFunc(nil, nil, []wasm.LocalEntry{{Count: 1, ValType: wasm.ValF64}}, wasm.OpEnd),
			kind: errors.KindUnsupported,
		},
		{
			name: "unsupported opcode",
			mod:  singleFunc(nil, nil, nil, 0x43, 0, 0, 0, 0, wasm.OpDrop, wasm.OpEnd),
			kind: errors.KindInvalidData,
		},
		{
			name: "block type index",
			mod:  singleFunc(nil, nil, nil, wasm.OpBlock, 0x00, wasm.OpEnd, wasm.OpEnd),
			kind: errors.KindUnsupported,
		},
		{
			name: "stack underflow",
			mod:  singleFunc(nil, []wasm.ValType{i32}, nil, wasm.OpI32Add, wasm.OpEnd),
			kind: errors.KindInvalidInput,
		},
		{
			name: "local out of range",
			mod:  singleFunc(nil, nil, nil, wasm.OpLocalGet, 3, wasm.OpDrop, wasm.OpEnd),
			kind: errors.KindInvalidInput,
		},
		{
			name: "branch depth out of range",
			mod:  singleFunc(nil, nil, nil, wasm.OpBr, 4, wasm.OpEnd),
			kind: errors.KindInvalidInput,
		},
		{
			name: "missing end",
			mod:  singleFunc(nil, nil, nil, wasm.OpNop),
			kind: errors.KindInvalidInput,
		},
		{
			name: "trailing code",
			mod:  singleFunc(nil, nil, nil, wasm.OpEnd, wasm.OpNop),
			kind: errors.KindInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := translate.Translate(tt.mod, nil)
			var e *errors.Error
			if !stderrors.As(err, &e) {
				t.Fatalf("err = %v (%T), want *errors.Error", err, err)
			}
			if e.Phase != errors.PhaseTranslate || e.Kind != tt.kind {
				t.Errorf("got %s/%s, want translate/%s: %v", e.Phase, e.Kind, tt.kind, e)
			}
			if e.Function != "u0:0" {
				t.Errorf("Function = %q", e.Function)
			}
		})
	}
}
