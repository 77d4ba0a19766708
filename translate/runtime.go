package translate

import "github.com/wippyai/wasm2obj/wasm"

// ImportedFunc is a function the module imports from its host.
type ImportedFunc struct {
	Module string
	Name   string
	Type   wasm.FuncType
}

// Runtime describes the environment a module is compiled against. Imported
// functions occupy the low end of the function index space, so the count
// of imports is also the absolute index of the first defined function.
type Runtime struct {
	ImportedFuncs []ImportedFunc
}

// NewRuntime returns a runtime with no imports.
func NewRuntime() *Runtime {
	return &Runtime{}
}

// DeclareFuncImport appends a function import.
func (r *Runtime) DeclareFuncImport(module, name string, ft wasm.FuncType) {
	r.ImportedFuncs = append(r.ImportedFuncs, ImportedFunc{Module: module, Name: name, Type: ft})
}

// NumImportedFuncs returns the number of imported functions.
func (r *Runtime) NumImportedFuncs() int {
	if r == nil {
		return 0
	}
	return len(r.ImportedFuncs)
}
