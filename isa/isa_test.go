package isa_test

import (
	stderrors "errors"
	"slices"
	"testing"

	"github.com/wippyai/wasm2obj/binemit"
	"github.com/wippyai/wasm2obj/errors"
	"github.com/wippyai/wasm2obj/ir"
	"github.com/wippyai/wasm2obj/isa"
)

type stubISA struct{}

func (stubISA) Name() string { return "stub" }
func (stubISA) PointerBytes() int { return 8 }
func (stubISA) CheckEncoding(*ir.Function, ir.Inst) error { return nil }
func (stubISA) Layout(*ir.Function) (*isa.CodeLayout, error) { return &isa.CodeLayout{}, nil }
func (stubISA) Emit(*ir.Function, *isa.CodeLayout, binemit.CodeSink) error {
	return nil
}
func (stubISA) AnnotateInst(*ir.Function, ir.Inst) string { return "" }

func TestRegistry(t *testing.T) {
	isa.Register("stub", func() isa.TargetISA { return stubISA{} })

	target, err := isa.Lookup("stub")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if target.Name() != "stub" {
		t.Errorf("Name() = %q", target.Name())
	}
	if !slices.Contains(isa.Names(), "stub") {
		t.Errorf("Names() = %v, missing stub", isa.Names())
	}
}

func TestLookup_Unknown(t *testing.T) {
	_, err := isa.Lookup("vax")
	if err == nil {
		t.Fatal("expected error")
	}
	var e *errors.Error
	if !stderrors.As(err, &e) {
		t.Fatalf("error type = %T", err)
	}
	if e.Kind != errors.KindUnsupported || e.Phase != errors.PhaseConfig {
		t.Errorf("got %s/%s", e.Phase, e.Kind)
	}
}
