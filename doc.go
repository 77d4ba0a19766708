// Package wasm2obj compiles WebAssembly modules to relocatable native object
// files.
//
// # Architecture Overview
//
// The pipeline is split into packages with distinct responsibilities:
//
//	wasm2obj/
//	├── wasm/            WebAssembly binary decoding and encoding
//	├── translate/       WebAssembly function bodies to IR
//	├── ir/              Function IR: data flow graph, layout, builder, text form
//	├── verifier/        IR well-formedness checks
//	├── isa/             Target descriptor interface and backend registry
//	│   └── x64/         x86-64 backend
//	├── binemit/         Code sinks and relocation kinds
//	├── codegen/         Per-function compilation context and flags
//	├── emit/            Module emission into an object artifact
//	├── object/          Object artifact and ELF64 writer
//	├── errors/          Structured error types
//	└── cmd/wasm2obj/    Command line driver
//
// # Quick Start
//
//	m, err := wasm.ParseModule(data)
//	rt := translate.NewRuntime()
//	tr, err := translate.Translate(m, rt)
//
//	target, err := isa.Lookup("x64")
//	obj := object.NewArtifact("module.o", object.TargetX64)
//	err = emit.EmitModule(ctx, tr, obj, target, rt)
//
//	_, err = obj.WriteTo(f)
//
// # Relocations
//
// Backends report every reference whose address is unknown while a function
// is emitted: calls, function and block addresses, and jump tables. The
// object writer cannot record relocations yet, so emission fails with an
// unsupported_reloc error instead of producing unpatched code.
//
// # Error Handling
//
// Errors are returned as *errors.Error with a phase and a kind:
//
//	var e *errors.Error
//	if stderrors.As(err, &e) && e.Kind == errors.KindVerifier {
//	    fmt.Println(e.Detail) // verifier message and function listing
//	}
package wasm2obj
