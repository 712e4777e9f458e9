package machine

import (
	"encoding/binary"
	"math"

	"github.com/vastcl/vcl/lang/symtab"
	"github.com/vastcl/vcl/lang/token"
)

// writeSlotBytes writes v's raw bit pattern into dst, whose length must
// equal v.Type.Size(). This is the byte-exact equivalent of the original
// implementation's union-member store: the same bytes that a char/int/
// long/float read back out with readSlotBytes.
func writeSlotBytes(dst []byte, v Slot) {
	switch {
	case v.IsPointer():
		binary.LittleEndian.PutUint64(dst, uint64(v.PtrValue.Offset))
	case v.Type.Base == token.STRUCT || v.Type.Base == token.UNION:
		// aggregates move by byte copy between handles, never through the
		// value union; see copyAggregate
	case v.IsFloat():
		binary.LittleEndian.PutUint64(dst, math.Float64bits(v.Float))
	case v.Type.Base == token.CHAR:
		if v.Type.Unsigned {
			dst[0] = v.UChar
		} else {
			dst[0] = byte(v.Char)
		}
	case v.Type.Base == token.LONG:
		if v.Type.Unsigned {
			binary.LittleEndian.PutUint64(dst, v.ULong)
		} else {
			binary.LittleEndian.PutUint64(dst, uint64(v.Long))
		}
	default: // INT and anything else scalar-sized
		if v.Type.Unsigned {
			binary.LittleEndian.PutUint32(dst, v.UInt)
		} else {
			binary.LittleEndian.PutUint32(dst, uint32(v.Int))
		}
	}
}

// readSlotBytes reconstructs a Slot of the given declared type from its
// backing bytes, the inverse of writeSlotBytes.
func readSlotBytes(typ symtab.Type, src []byte) Slot {
	s := Slot{Type: typ}
	switch {
	case typ.Indirect > 0 || len(typ.Dims) > 0:
		s.PtrValue = Handle{Offset: int(binary.LittleEndian.Uint64(src))}
	case typ.Base == token.STRUCT || typ.Base == token.UNION:
		// the slot identifies the aggregate by handle only
	case typ.Base == token.FLOAT || typ.Base == token.DOUBLE:
		s.Float = math.Float64frombits(binary.LittleEndian.Uint64(src))
	case typ.Base == token.CHAR:
		if typ.Unsigned {
			s.UChar = src[0]
		} else {
			s.Char = int8(src[0])
		}
	case typ.Base == token.LONG:
		if typ.Unsigned {
			s.ULong = binary.LittleEndian.Uint64(src)
		} else {
			s.Long = int64(binary.LittleEndian.Uint64(src))
		}
	default:
		if typ.Unsigned {
			s.UInt = binary.LittleEndian.Uint32(src)
		} else {
			s.Int = int32(binary.LittleEndian.Uint32(src))
		}
	}
	return s
}

// Load reads the current value stored at h, interpreting its bytes per
// typ, and returns an lvalue Slot referencing h.
func (c *Context) Load(h Handle, typ symtab.Type) Slot {
	s := readSlotBytes(typ, c.Data.Bytes(h))
	s.LValue = true
	s.Handle = h
	return s
}

// copyAggregate implements struct/union assignment: a bytewise copy
// between equal-width handles, the §4.7 aggregate store rule.
func (c *Context) copyAggregate(dst, src Handle) {
	if dst.Width != src.Width {
		panic(&RuntimeError{Code: BadExpr, Detail: "aggregate assignment between different sizes"})
	}
	copy(c.Data.Bytes(dst), c.Data.Bytes(src))
}
