package emit

import (
	"strconv"

	"github.com/wippyai/wasm2obj/translate"
)

// Namer returns the linkage name of the function with the given absolute
// index in the module's function index space.
type Namer func(idx uint32) string

// DefaultNamer names a function after its first export, falling back to
// wasm_function_<idx> for functions the module does not export.
func DefaultNamer(tr *translate.TranslationResult) Namer {
	return func(idx uint32) string {
		if names := tr.ExportNames[idx]; len(names) > 0 && names[0] != "" {
			return names[0]
		}
		return IndexName(idx)
	}
}

// IndexName is the linkage name of an unexported function.
func IndexName(idx uint32) string {
	return "wasm_function_" + strconv.FormatUint(uint64(idx), 10)
}

// placeholderNamer gives every function the same name. Only modules with a
// single function can be emitted with it.
func placeholderNamer(name string) Namer {
	return func(uint32) string { return name }
}
