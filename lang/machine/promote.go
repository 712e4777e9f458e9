package machine

import "github.com/vastcl/vcl/lang/token"

// Promote determines the integral/float promotion target for a binary
// operation between lo and ro, mirroring promote.c's Promote(): float beats
// everything, then unsigned long, then long, then unsigned int, else int.
// The original's tie-break for "one side long, the other an unsigned int"
// promoting to unsigned long (not plain long) is preserved exactly, since
// it is the one case C programmers reliably get wrong by intuition.
func Promote(lo, ro Slot) (token.Token, bool, IntegralKind) {
	switch {
	case lo.IsFloat() || ro.IsFloat():
		return token.FLOAT, false, KindFloatKind

	case (lo.Type.Base == token.LONG && lo.Type.Unsigned) ||
		(ro.Type.Base == token.LONG && ro.Type.Unsigned) ||
		(lo.Type.Base == token.LONG && ro.Type.Base == token.INT && ro.Type.Unsigned) ||
		(ro.Type.Base == token.LONG && lo.Type.Base == token.INT && lo.Type.Unsigned):
		return token.LONG, true, KindUnsignedLong

	case lo.Type.Base == token.LONG || ro.Type.Base == token.LONG:
		return token.LONG, false, KindLong

	case (lo.Type.Base == token.INT && lo.Type.Unsigned) ||
		(ro.Type.Base == token.INT && ro.Type.Unsigned):
		return token.INT, true, KindUnsignedInt

	default:
		return token.INT, false, KindInt
	}
}

// Store converts from's current value to to's declared type, truncating or
// widening bit patterns the way a raw union-member assignment in C would,
// and returns the updated slot. It collapses the original's 64-entry
// (to-size x to-sign x from-sign x from-size) store() dispatch table into a
// single switch over (to kind, from kind): Go lets the compiler pick the
// right conversion instruction instead of indexing a function-pointer
// table built at startup.
func Store(to, from Slot) Slot {
	if to.IsPointer() {
		result := to
		result.PtrValue = from.PtrValue
		if !from.IsPointer() {
			result.PtrValue = Handle{Offset: int(from.AsInt64())}
		}
		return result
	}

	result := to
	switch to.Type.Base {
	case token.CHAR:
		if to.Type.Unsigned {
			result.UChar = uint8(from.AsInt64())
		} else {
			result.Char = int8(from.AsInt64())
		}
	case token.INT:
		if to.Type.Unsigned {
			result.UInt = uint32(from.AsInt64())
		} else {
			result.Int = int32(from.AsInt64())
		}
	case token.LONG:
		if to.Type.Unsigned {
			result.ULong = uint64(from.AsInt64())
		} else {
			result.Long = from.AsInt64()
		}
	case token.FLOAT, token.DOUBLE:
		result.Float = from.AsFloat64()
	default:
		// struct/union: raw byte copy is the caller's job (copyAggregate),
		// since Store only ever sees scalar slots.
	}
	return result
}

// Widen returns a copy of s whose Type matches kind/unsigned, with the
// value bits reinterpreted accordingly. Used by the expression evaluator
// once Promote has determined the common type for a binary operation.
func Widen(s Slot, base token.Token, unsigned bool) Slot {
	target := Slot{Type: s.Type}
	target.Type.Base = base
	target.Type.Unsigned = unsigned
	return Store(target, s)
}
