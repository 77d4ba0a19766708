package codegen

import "fmt"

// OptLevel selects how much effort the code generator spends on the output.
type OptLevel uint8

const (
	OptNone OptLevel = iota
	OptSpeed
)

func (o OptLevel) String() string {
	switch o {
	case OptNone:
		return "none"
	case OptSpeed:
		return "speed"
	default:
		return fmt.Sprintf("OptLevel(%d)", uint8(o))
	}
}

// Flags are the settings of one compilation. A Flags value is immutable
// once built and safe to share between goroutines.
type Flags struct {
	verifier bool
	optLevel OptLevel
}

// FlagOption configures Flags.
type FlagOption func(*Flags)

// WithVerifier enables or disables IR verification before code generation.
func WithVerifier(enabled bool) FlagOption {
	return func(f *Flags) { f.verifier = enabled }
}

// WithOptLevel sets the optimization level.
func WithOptLevel(level OptLevel) FlagOption {
	return func(f *Flags) { f.optLevel = level }
}

// NewFlags builds flags from the defaults: verifier on, no optimization.
func NewFlags(opts ...FlagOption) Flags {
	f := Flags{verifier: true, optLevel: OptNone}
	for _, opt := range opts {
		opt(&f)
	}
	return f
}

// EnableVerifier reports whether Compile verifies its input.
func (f Flags) EnableVerifier() bool { return f.verifier }

// OptLevel returns the optimization level. The backends currently emit the
// same code at every level.
func (f Flags) OptLevel() OptLevel { return f.optLevel }

func (f Flags) String() string {
	return fmt.Sprintf("enable_verifier=%t opt_level=%s", f.verifier, f.optLevel)
}
