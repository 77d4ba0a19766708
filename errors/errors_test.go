package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
		excludes []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:    PhaseVerify,
				Kind:     KindVerifier,
				Function: "wasm_function_2",
				Path:     []string{"block0", "inst3"},
				Detail:   "use of undefined value v9",
			},
			contains: []string{"[verify]", "verifier", "in wasm_function_2", "block0.inst3", "undefined value v9"},
		},
		{
			name:     "minimal error",
			err:      &Error{Phase: PhaseCompile, Kind: KindNoCode},
			contains: []string{"[compile]", "no_code"},
		},
		{
			name: "cause without detail",
			err: &Error{
				Phase: PhaseObject,
				Kind:  KindIO,
				Cause: errors.New("disk full"),
			},
			contains: []string{"[object]", "io", "disk full"},
		},
		{
			name: "detail hides cause",
			err: &Error{
				Phase:  PhaseVerify,
				Kind:   KindVerifier,
				Detail: "pretty diagnostic",
				Cause:  errors.New("raw message"),
			},
			contains: []string{"pretty diagnostic"},
			excludes: []string{"raw message"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
			for _, s := range tt.excludes {
				if strings.Contains(msg, s) {
					t.Errorf("error message %q should not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := Wrap(PhaseCompile, KindCodegen, cause, "layout failed")

	if !errors.Is(err, cause) {
		t.Error("errors.Is did not find cause")
	}
	if errors.Unwrap(err) != cause {
		t.Error("errors.Unwrap did not return cause")
	}
}

func TestError_Is(t *testing.T) {
	err := New(PhaseEmit, KindUnsupportedReloc).Function("f").Detail("jump tables").Build()

	if !errors.Is(err, ErrUnsupportedReloc) {
		t.Error("expected match on phase and kind")
	}
	if errors.Is(err, ErrNoCode) {
		t.Error("unexpected match on different kind")
	}
	if errors.Is(err, &Error{Phase: PhaseCompile, Kind: KindUnsupportedReloc}) {
		t.Error("unexpected match on different phase")
	}
}

func TestBuilder(t *testing.T) {
	err := New(PhaseEmit, KindInvalidStart).
		Function("start").
		Path("module").
		Value(uint32(1)).
		Detail("start function %d is imported", 1).
		Build()

	if err.Function != "start" || err.Value != uint32(1) {
		t.Errorf("unexpected fields: %+v", err)
	}
	if err.Detail != "start function 1 is imported" {
		t.Errorf("Detail = %q", err.Detail)
	}

	plain := New(PhaseEmit, KindInvalidStart).Detail("100%% literal").Build()
	if plain.Detail != "100%% literal" {
		t.Errorf("Detail without args was formatted: %q", plain.Detail)
	}
}

func TestConstructors(t *testing.T) {
	cause := errors.New("eof")

	tests := []struct {
		err   *Error
		phase Phase
		kind  Kind
	}{
		{Unsupported(PhaseTranslate, "f32"), PhaseTranslate, KindUnsupported},
		{InvalidInput(PhaseConfig, "workers"), PhaseConfig, KindInvalidInput},
		{Load("parse module", cause), PhaseLoad, KindInvalidData},
		{IO(PhaseObject, "write out.o", cause), PhaseObject, KindIO},
	}
	for _, tt := range tests {
		if tt.err.Phase != tt.phase || tt.err.Kind != tt.kind {
			t.Errorf("%v: got %s/%s, want %s/%s", tt.err, tt.err.Phase, tt.err.Kind, tt.phase, tt.kind)
		}
	}
	if !strings.Contains(Load("parse module", cause).Error(), "eof") {
		t.Error("Load message does not include cause")
	}
}
