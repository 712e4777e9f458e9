package machine

import (
	"math"

	"github.com/vastcl/vcl/lang/symtab"
	"github.com/vastcl/vcl/lang/token"
)

// evalPrimary is level 1: literals, identifiers, parenthesized
// expressions and casts, and the postfix chain of call/index/member/
// increment operators.
func (c *Context) evalPrimary() Slot {
	v := c.evalPrimaryBase()
	return c.evalPostfix(v)
}

func (c *Context) evalPrimaryBase() Slot {
	switch tok := c.Code.ReadToken(); tok {
	case token.INTCONST:
		return IntSlot(int32(c.Code.ReadUint32()))
	case token.UINTCONST:
		return uintSlot(c.Code.ReadUint32())
	case token.LNGCONST:
		return LongSlot(int64(c.Code.ReadUint64()))
	case token.ULNGCONST:
		return ULongSlot(c.Code.ReadUint64())
	case token.FLTCONST:
		return FloatSlot(math.Float64frombits(c.Code.ReadUint64()))
	case token.CHRCONST:
		return Slot{Type: symtab.Type{Base: token.CHAR}, Char: int8(c.Code.ReadByte())}
	case token.STRCONST:
		n := int(c.Code.ReadByte())
		payload := c.Code.ReadN(n)
		typ := symtab.Type{Base: token.CHAR, Dims: []int{n}}
		if c.Skip > 0 {
			return Slot{Type: typ}
		}
		h := c.Data.Alloc(n)
		copy(c.Data.Bytes(h), payload)
		return Slot{Type: typ, PtrValue: h}
	case token.IDENTIFIER:
		return c.loadVariable(int(c.Code.ReadUint32()))
	case token.FUNCREF:
		return Slot{Callee: c.Funcs.At(int(c.Code.ReadUint32()))}
	case token.LPAREN:
		if c.isTypeStartAt(0) {
			typ := c.parseTypeName()
			c.expect(token.RPAREN)
			v := c.evalUnary()
			return castTo(v, typ)
		}
		v := c.Eval()
		c.expect(token.RPAREN)
		return v
	default:
		panic(&RuntimeError{Code: BadExpr, Pos: c.Pos(), Detail: "unexpected token in expression: " + tok.GoString()})
	}
}

// castTo converts v to typ, re-storing the value into the cast's width and
// signedness; the result is an rvalue, and casting twice to the same
// scalar type is the same as casting once.
func castTo(v Slot, typ symtab.Type) Slot {
	target := Slot{Type: typ}
	if typ.Indirect > 0 {
		target.PtrValue = v.PtrValue
		if !v.IsPointer() {
			target.PtrValue = Handle{Offset: int(v.AsInt64())}
		}
		return target
	}
	return Store(target, v)
}

// loadVariable resolves a linked IDENTIFIER token's variable-arena index
// to the record's storage and current value. Array variables decay to
// their own address; everything else loads as an lvalue over its handle.
func (c *Context) loadVariable(idx int) Slot {
	v := c.Vars.At(idx)
	h := c.VarHandle(v)
	s := c.lvalueSlot(h, v.Type)
	s.Const = s.Const || v.Const
	return s
}

// lvalueSlot builds the operand-stack slot for the storage at h holding a
// value of type typ: an array slot referencing its own storage, or a
// loaded scalar/pointer lvalue.
func (c *Context) lvalueSlot(h Handle, typ symtab.Type) Slot {
	if typ.IsArray() {
		return Slot{Type: typ, LValue: true, Handle: h, PtrValue: h}
	}
	return c.Load(h, typ)
}

// evalPostfix applies any run of postfix operators (call, index, member
// access, increment/decrement) following a primary expression.
func (c *Context) evalPostfix(v Slot) Slot {
	for {
		switch tok := c.peek(); tok {
		case token.LPAREN:
			c.Code.ReadToken()
			v = c.evalCall(v)
		case token.LBRACKET:
			c.Code.ReadToken()
			idx := c.Eval()
			c.expect(token.RBRACKET)
			v = c.evalIndex(v, idx)
		case token.DOT, token.ARROW:
			c.Code.ReadToken()
			v = c.evalMember(v, tok == token.ARROW)
		case token.INCR, token.DECR:
			c.Code.ReadToken()
			if c.Skip > 0 {
				continue
			}
			if !v.LValue {
				panic(&RuntimeError{Code: NotLValue, Pos: c.Pos(), Detail: "operand of ++/-- is not an lvalue"})
			}
			delta := int64(1)
			if tok == token.DECR {
				delta = -1
			}
			c.storeToHandle(v.Handle, addDelta(v, delta))
			v.LValue = false // the old value, no longer writable through this slot
		default:
			return v
		}
	}
}

func (c *Context) evalIndex(v, idx Slot) Slot {
	if !v.IsPointer() {
		panic(&RuntimeError{Code: NotPointer, Pos: c.Pos(), Detail: "subscript applied to non-array"})
	}
	elem := v.Type.Elem()
	width := elem.Size()
	if c.Skip > 0 {
		return Slot{Type: elem}
	}
	h := Handle{Offset: v.PtrValue.Offset + int(idx.AsInt64())*width, Width: width}
	return c.lvalueSlot(h, elem)
}

// evalMember resolves a '.' or '->' member access. The token following the
// operator is a linked IDENTIFIER whose payload is the member name's
// intern index; the operand's own struct scope decides which member record
// it names.
func (c *Context) evalMember(v Slot, deref bool) Slot {
	if c.Code.ReadToken() != token.IDENTIFIER {
		panic(&RuntimeError{Code: NotStruct, Pos: c.Pos(), Detail: "expected member name"})
	}
	nameIdx := int(c.Code.ReadUint32())
	if c.Skip > 0 {
		return Slot{}
	}
	if v.Type.Base != token.STRUCT && v.Type.Base != token.UNION {
		panic(&RuntimeError{Code: NotStruct, Pos: c.Pos(), Detail: "member access on non-struct"})
	}
	if deref && v.Type.Indirect == 0 {
		panic(&RuntimeError{Code: NotPointer, Pos: c.Pos(), Detail: "'->' applied to non-pointer"})
	}
	if !deref && v.Type.Indirect != 0 {
		panic(&RuntimeError{Code: NotStruct, Pos: c.Pos(), Detail: "'.' applied to a pointer; use '->'"})
	}
	if v.Type.Members == nil {
		panic(&RuntimeError{Code: NotStruct, Pos: c.Pos(), Detail: "member access on incomplete type"})
	}

	name := c.MemberName(nameIdx)
	member, ok := v.Type.Members.Find(name)
	if !ok {
		panic(&RuntimeError{Code: NotStruct, Pos: c.Pos(), Detail: "no member named " + name})
	}

	base := v.Handle.Offset
	if deref {
		base = v.PtrValue.Offset
	}
	h := Handle{Offset: base + member.Offset, Width: member.Type.Size()}
	return c.lvalueSlot(h, member.Type)
}

// evalCall implements the function call protocol of spec.md §4.4: collect
// the comma-separated arguments, then hand the callee and argument slots
// to the engine's dispatcher, which stages the frame (or runs the builtin
// shim) and resolves the return value.
func (c *Context) evalCall(callee Slot) Slot {
	var args []Slot
	if c.peek() != token.RPAREN {
		args = append(args, c.evalAssign())
		for c.peek() == token.COMMA {
			c.Code.ReadToken()
			args = append(args, c.evalAssign())
		}
	}
	c.expect(token.RPAREN)

	if c.Skip > 0 {
		return IntSlot(0)
	}
	if callee.Callee == nil {
		panic(&RuntimeError{Code: NotFunction, Pos: c.Pos(), Detail: "call target is not a function"})
	}
	if c.CallFunc == nil {
		panic(&RuntimeError{Code: NotFunction, Pos: c.Pos(), Detail: "no call dispatcher configured"})
	}
	result, err := c.CallFunc(c, callee.Callee, args)
	if err != nil {
		panic(&RuntimeError{Code: NotFunction, Pos: c.Pos(), Detail: err.Error()})
	}
	return result
}
