package emit

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/wippyai/wasm2obj/ir"
	"github.com/wippyai/wasm2obj/isa"
	"github.com/wippyai/wasm2obj/verifier"
)

// prettyVerifierError renders a verifier error followed by the offending
// instruction, when it has one, and the whole function. target may be nil.
func prettyVerifierError(fn *ir.Function, target isa.TargetISA, err *verifier.Error) string {
	ann := annotator(target)

	var b strings.Builder
	b.WriteString(err.Error())
	if inst, ok := err.Location.Inst(); ok && fn.DFG.InstIsValid(inst) {
		fmt.Fprintf(&b, "\n%s: %s\n\n", inst, fn.DisplayInst(inst, ann))
	} else {
		b.WriteByte('\n')
	}
	b.WriteString(fn.Display(ann))
	return b.String()
}

// prettyError renders a compilation error. Only verifier errors include the
// function text.
func prettyError(fn *ir.Function, target isa.TargetISA, err error) string {
	var verr *verifier.Error
	if stderrors.As(err, &verr) {
		return prettyVerifierError(fn, target, verr)
	}
	return err.Error()
}

func annotator(target isa.TargetISA) ir.InstAnnotator {
	if target == nil {
		return nil
	}
	return target
}
