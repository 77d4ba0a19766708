package codegen_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/wippyai/wasm2obj/binemit"
	"github.com/wippyai/wasm2obj/codegen"
	"github.com/wippyai/wasm2obj/ir"
	"github.com/wippyai/wasm2obj/isa"
	"github.com/wippyai/wasm2obj/isa/x64"
	"github.com/wippyai/wasm2obj/verifier"
)

func returnConst(returns ir.Type) *ir.Function {
	fn := ir.NewFunction("u0:0", ir.Signature{Returns: []ir.Type{returns}})
	b := ir.NewBuilder(fn)
	b.SwitchToBlock(b.CreateBlock())
	b.Return(b.Iconst(ir.I32, 7))
	return fn
}

func TestFlags(t *testing.T) {
	def := codegen.NewFlags()
	if !def.EnableVerifier() || def.OptLevel() != codegen.OptNone {
		t.Errorf("defaults = %s", def)
	}

	f := codegen.NewFlags(codegen.WithVerifier(false), codegen.WithOptLevel(codegen.OptSpeed))
	if f.EnableVerifier() || f.OptLevel() != codegen.OptSpeed {
		t.Errorf("flags = %s", f)
	}
	if got := f.String(); got != "enable_verifier=false opt_level=speed" {
		t.Errorf("String() = %q", got)
	}
	if !def.EnableVerifier() {
		t.Error("building new flags changed an existing value")
	}
}

func TestCompileAndEmit(t *testing.T) {
	target := x64.New()
	ctx := codegen.NewContextForFunction(returnConst(ir.I32))

	size, err := ctx.Compile(target, codegen.NewFlags())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if size == 0 {
		t.Fatal("size = 0")
	}

	buf := make([]byte, size)
	if err := ctx.EmitToMemory(buf, binemit.NullRelocSink{}, target); err != nil {
		t.Fatalf("EmitToMemory: %v", err)
	}
	if buf[0] != 0x55 || buf[size-1] != 0xC3 {
		t.Errorf("unexpected code % x", buf)
	}
}

func TestCompile_VerifierError(t *testing.T) {
	// Returns an i32 from a function declared to return i64.
	ctx := codegen.NewContextForFunction(returnConst(ir.I64))

	_, err := ctx.Compile(x64.New(), codegen.NewFlags())
	var cerr *codegen.Error
	if !stderrors.As(err, &cerr) || cerr.Kind != codegen.KindVerifier {
		t.Fatalf("err = %v, want verifier error", err)
	}
	var verr *verifier.Error
	if !stderrors.As(err, &verr) {
		t.Fatalf("error does not unwrap to *verifier.Error: %v", err)
	}
	if verr.Location != ir.InstEntity(1) {
		t.Errorf("Location = %s", verr.Location)
	}

	size, err := ctx.Compile(x64.New(), codegen.NewFlags(codegen.WithVerifier(false)))
	if err != nil || size == 0 {
		t.Errorf("Compile without verifier = %d, %v", size, err)
	}
}

type failingISA struct {
	isa.TargetISA
	err error
}

func (f failingISA) Layout(*ir.Function) (*isa.CodeLayout, error) { return nil, f.err }

func TestCompile_BackendErrors(t *testing.T) {
	tests := []struct {
		err  error
		kind codegen.ErrorKind
	}{
		{fmt.Errorf("%w: frame of 4 GiB", isa.ErrImplLimit), codegen.KindImplLimit},
		{stderrors.New("boom"), codegen.KindBackend},
	}
	for _, tt := range tests {
		ctx := codegen.NewContextForFunction(returnConst(ir.I32))
		target := failingISA{TargetISA: x64.New(), err: tt.err}
		_, err := ctx.Compile(target, codegen.NewFlags())
		var cerr *codegen.Error
		if !stderrors.As(err, &cerr) || cerr.Kind != tt.kind {
			t.Errorf("Compile(%v) = %v, want kind %s", tt.err, err, tt.kind)
		}
		if !stderrors.Is(err, tt.err) {
			t.Errorf("error does not wrap %v", tt.err)
		}
	}
}

func TestEmitToMemory_Misuse(t *testing.T) {
	target := x64.New()
	ctx := codegen.NewContextForFunction(returnConst(ir.I32))
	if err := ctx.EmitToMemory(make([]byte, 64), nil, target); err == nil {
		t.Error("expected error emitting before Compile")
	}

	size, err := ctx.Compile(target, codegen.NewFlags())
	if err != nil {
		t.Fatal(err)
	}
	if err := ctx.EmitToMemory(make([]byte, size-1), nil, target); err == nil {
		t.Error("expected error for short buffer")
	}
}

func TestClear(t *testing.T) {
	ctx := codegen.NewContextForFunction(returnConst(ir.I32))
	if _, err := ctx.Compile(x64.New(), codegen.NewFlags()); err != nil {
		t.Fatal(err)
	}
	ctx.Clear()
	if ctx.Layout() != nil || ctx.Func.DFG.NumInsts() != 0 {
		t.Error("Clear left state behind")
	}
	if _, err := ctx.Compile(x64.New(), codegen.NewFlags()); err == nil {
		t.Error("empty function compiled")
	}
}
