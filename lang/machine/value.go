package machine

import (
	"fmt"

	"github.com/vastcl/vcl/lang/symtab"
	"github.com/vastcl/vcl/lang/token"
)

// Handle is an lvalue reference into the data arena. It is a plain
// offset/width pair rather than a Go pointer so arena growth (a realloc
// that moves the backing array) never invalidates an operand sitting on the
// stack.
type Handle struct {
	Offset int
	Width  int
}

// Slot is one entry on the operand stack: the concrete replacement for the
// tagged union the type system otherwise wants. It is a struct, not an
// interface, because the interpreter must type-pun the same bits across
// char/int/long/float/pointer storage; an interface hierarchy would force a
// box-and-assert on every arithmetic op instead of one switch in Promote
// and Store.
type Slot struct {
	Type   symtab.Type
	Const  bool
	LValue bool
	Handle Handle // valid only when LValue is true

	Char     int8
	UChar    uint8
	Int      int32
	UInt     uint32
	Long     int64
	ULong    uint64
	Float    float64
	PtrValue Handle // pointer/array value: where it points, not where it lives

	// Callee is set when the slot names a function (a FUNCREF token's
	// payload resolved through the function table); the postfix call
	// operator dispatches through it.
	Callee *symtab.Function
}

// IntegralKind mirrors the five-way integral promotion target: int,
// unsigned int, long, unsigned long, float.
type IntegralKind int

const (
	KindInt IntegralKind = iota
	KindUnsignedInt
	KindLong
	KindUnsignedLong
	KindFloatKind
)

// IsFloat reports whether the slot's static type is FLOAT.
func (s Slot) IsFloat() bool { return s.Type.Base == token.FLOAT || s.Type.Base == token.DOUBLE }

// IsPointer reports whether the slot is a pointer or array value.
func (s Slot) IsPointer() bool { return s.Type.Indirect > 0 || len(s.Type.Dims) > 0 }

// AsInt64 widens the slot's current value to a signed 64-bit integer, for
// contexts (array subscripts, case labels, shift counts) that only need an
// integral value regardless of the slot's declared width.
func (s Slot) AsInt64() int64 {
	switch {
	case s.IsPointer():
		return int64(s.PtrValue.Offset)
	case s.IsFloat():
		return int64(s.Float)
	case s.Type.Base == token.LONG && s.Type.Unsigned:
		return int64(s.ULong)
	case s.Type.Base == token.LONG:
		return s.Long
	case s.Type.Base == token.CHAR:
		if s.Type.Unsigned {
			return int64(s.UChar)
		}
		return int64(s.Char)
	case s.Type.Unsigned:
		return int64(s.UInt)
	default:
		return int64(s.Int)
	}
}

// AsFloat64 widens the slot's current value to float64.
func (s Slot) AsFloat64() float64 {
	if s.IsFloat() {
		return s.Float
	}
	return float64(s.AsInt64())
}

// IntSlot builds a plain signed int Slot.
func IntSlot(v int32) Slot { return Slot{Type: symtab.Type{Base: token.INT}, Int: v} }

// LongSlot builds a signed long Slot.
func LongSlot(v int64) Slot { return Slot{Type: symtab.Type{Base: token.LONG}, Long: v} }

// FloatSlot builds a FLOAT Slot.
func FloatSlot(v float64) Slot { return Slot{Type: symtab.Type{Base: token.FLOAT}, Float: v} }

// String renders a Slot's current value for diagnostics and the builtin
// print/printf paths.
func (s Slot) String() string {
	switch {
	case s.IsPointer():
		return fmt.Sprintf("<ptr %d>", s.PtrValue.Offset)
	case s.IsFloat():
		return fmt.Sprintf("%g", s.Float)
	case s.Type.Base == token.LONG && s.Type.Unsigned:
		return fmt.Sprintf("%d", s.ULong)
	case s.Type.Base == token.LONG:
		return fmt.Sprintf("%d", s.Long)
	case s.Type.Unsigned:
		return fmt.Sprintf("%d", s.UInt)
	default:
		return fmt.Sprintf("%d", s.AsInt64())
	}
}
