// Package wasm decodes the parts of a WebAssembly binary module that the
// native backend consumes.
//
// The decoder keeps the type, import, function, export, start and code
// sections. Every other known section is checked for ordering and skipped,
// since tables, memories, globals and data do not influence the machine code
// emitted for function bodies.
//
// # Parsing
//
//	module, err := wasm.ParseModule(data)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for i, body := range module.Code {
//	    instrs, err := wasm.DecodeInstructions(body.Code)
//	    ...
//	}
//
// # Instructions
//
// DecodeInstructions understands the MVP integer and control subset:
// block/loop/if/else/end, br, br_if, br_table, return, call, drop, select,
// local access, i32/i64 constants, comparisons, add/sub/mul, bitwise
// operations, shifts and the integer width conversions. Any other opcode
// yields an *UnsupportedOpcodeError.
//
// # Encoding
//
// Module.Encode and EncodeInstructions produce binaries for the same subset.
// They are mostly used to build fixtures in tests.
package wasm
