// Package errors provides the structured error type shared by the wasm2obj
// pipeline.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error
// category). Emission failures additionally name the function that failed.
// The Detail field holds the human-readable diagnostic, which for verifier
// failures includes the offending instruction and the function's IR.
//
//	err := errors.New(errors.PhaseEmit, errors.KindUnsupportedReloc).
//		Function("wasm_function_3").
//		Detail("function relocations not yet implemented").
//		Build()
//
// Callers branch on the kind with errors.Is and the exported sentinels:
//
//	if errors.Is(err, errors.ErrVerifier) { ... }
package errors
