// Package translate lowers WebAssembly function bodies to IR.
//
// Locals live in explicit stack slots and the operand stack becomes SSA
// values. Structured control flow maps onto extended basic blocks: if
// branches over its then-arm with brz and falls through inside the same
// block, loops get a header block, and block results travel through a stack
// slot owned by the enclosing construct.
//
// Only the integer subset is handled: i32 and i64 values, locals, control
// flow, calls, select, comparisons, arithmetic and width conversions.
package translate

import (
	"strconv"

	"go.uber.org/zap"

	"github.com/wippyai/wasm2obj/errors"
	"github.com/wippyai/wasm2obj/ir"
	"github.com/wippyai/wasm2obj/wasm"
)

// TranslationResult holds the IR of every function a module defines.
type TranslationResult struct {
	// Functions are the defined functions in index order.
	Functions []*ir.Function
	// StartIndex is the absolute index of the start function, if any.
	StartIndex *uint32
	// FuncIndexBase is the absolute index of Functions[0].
	FuncIndexBase uint32
	// ExportNames maps absolute function indices to their export names.
	ExportNames map[uint32][]string
}

// FuncIndex returns the absolute function index of Functions[i].
func (r *TranslationResult) FuncIndex(i int) uint32 {
	return r.FuncIndexBase + uint32(i)
}

// FuncName returns the IR name of the function with the given absolute index.
func FuncName(idx uint32) string {
	return "u0:" + strconv.FormatUint(uint64(idx), 10)
}

// Translate builds IR for every function defined by m. Function imports are
// recorded in rt, replacing any it already holds; rt may be nil.
func Translate(m *wasm.Module, rt *Runtime) (*TranslationResult, error) {
	if len(m.Funcs) != len(m.Code) {
		return nil, errors.InvalidInput(errors.PhaseTranslate, "function and code section counts differ")
	}

	if rt != nil {
		rt.ImportedFuncs = nil
		for _, imp := range m.Imports {
			if imp.Kind != wasm.KindFunc {
				continue
			}
			var ft wasm.FuncType
			if t := m.GetFuncType(uint32(rt.NumImportedFuncs())); t != nil {
				ft = *t
			}
			rt.DeclareFuncImport(imp.Module, imp.Name, ft)
		}
	}

	base := uint32(m.NumImportedFuncs())
	res := &TranslationResult{
		Functions:     make([]*ir.Function, 0, len(m.Funcs)),
		FuncIndexBase: base,
		ExportNames:   m.ExportedFuncNames(),
	}
	if m.Start != nil {
		start := *m.Start
		res.StartIndex = &start
	}

	for i := range m.Funcs {
		idx := base + uint32(i)
		fn, err := translateFunction(m, idx, &m.Code[i])
		if err != nil {
			return nil, err
		}
		Logger().Debug("translated function",
			zap.Uint32("index", idx),
			zap.String("name", fn.Name),
			zap.Int("blocks", len(fn.Layout.Blocks())),
			zap.Int("insts", fn.DFG.NumInsts()))
		res.Functions = append(res.Functions, fn)
	}
	return res, nil
}

// irType maps a WebAssembly value type to an IR type.
func irType(t wasm.ValType) (ir.Type, bool) {
	switch t {
	case wasm.ValI32:
		return ir.I32, true
	case wasm.ValI64:
		return ir.I64, true
	}
	return ir.InvalidType, false
}

func signature(ft *wasm.FuncType) (ir.Signature, error) {
	var sig ir.Signature
	for _, p := range ft.Params {
		t, ok := irType(p)
		if !ok {
			return sig, errors.Unsupported(errors.PhaseTranslate, "parameter type "+p.String())
		}
		sig.Params = append(sig.Params, t)
	}
	if len(ft.Results) > 1 {
		return sig, errors.Unsupported(errors.PhaseTranslate, "multiple results")
	}
	for _, r := range ft.Results {
		t, ok := irType(r)
		if !ok {
			return sig, errors.Unsupported(errors.PhaseTranslate, "result type "+r.String())
		}
		sig.Returns = append(sig.Returns, t)
	}
	return sig, nil
}
