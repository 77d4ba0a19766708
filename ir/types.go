package ir

import "strings"

// Type is the type of an SSA value.
type Type uint8

const (
	InvalidType Type = iota
	I32
	I64
)

func (t Type) String() string {
	switch t {
	case I32:
		return "i32"
	case I64:
		return "i64"
	default:
		return "invalid"
	}
}

// Bits returns the width of the type in bits, or 0 for InvalidType.
func (t Type) Bits() int {
	switch t {
	case I32:
		return 32
	case I64:
		return 64
	default:
		return 0
	}
}

// IsInt reports whether t is an integer type.
func (t Type) IsInt() bool { return t == I32 || t == I64 }

// Signature describes the parameters and returns of a function.
type Signature struct {
	Params  []Type
	Returns []Type
}

func (s Signature) String() string {
	var b strings.Builder
	b.WriteByte('(')
	writeTypes(&b, s.Params)
	b.WriteByte(')')
	if len(s.Returns) > 0 {
		b.WriteString(" -> ")
		writeTypes(&b, s.Returns)
	}
	return b.String()
}

func (s Signature) clone() Signature {
	return Signature{
		Params:  append([]Type(nil), s.Params...),
		Returns: append([]Type(nil), s.Returns...),
	}
}

func writeTypes(b *strings.Builder, types []Type) {
	for i, t := range types {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(t.String())
	}
}

// IntCC is an integer comparison condition code.
type IntCC uint8

const (
	CondEqual IntCC = iota
	CondNotEqual
	CondSignedLessThan
	CondSignedGreaterThanOrEqual
	CondSignedGreaterThan
	CondSignedLessThanOrEqual
	CondUnsignedLessThan
	CondUnsignedGreaterThanOrEqual
	CondUnsignedGreaterThan
	CondUnsignedLessThanOrEqual
)

var intCCNames = [...]string{
	CondEqual:                      "eq",
	CondNotEqual:                   "ne",
	CondSignedLessThan:             "slt",
	CondSignedGreaterThanOrEqual:   "sge",
	CondSignedGreaterThan:          "sgt",
	CondSignedLessThanOrEqual:      "sle",
	CondUnsignedLessThan:           "ult",
	CondUnsignedGreaterThanOrEqual: "uge",
	CondUnsignedGreaterThan:        "ugt",
	CondUnsignedLessThanOrEqual:    "ule",
}

// IsValid reports whether c is one of the defined condition codes.
func (c IntCC) IsValid() bool { return int(c) < len(intCCNames) }

func (c IntCC) String() string {
	if c.IsValid() {
		return intCCNames[c]
	}
	return "cc?"
}
