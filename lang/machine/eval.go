package machine

import (
	"github.com/vastcl/vcl/lang/decl"
	"github.com/vastcl/vcl/lang/symtab"
	"github.com/vastcl/vcl/lang/token"
)

// Eval is the expression evaluator entry point, level 15 of the precedence
// table (the comma operator): evaluate and discard every operand but the
// last.
func (c *Context) Eval() Slot {
	v := c.evalAssign()
	for c.peek() == token.COMMA {
		c.Code.ReadToken()
		v = c.evalAssign()
	}
	return v
}

// EvalAssign evaluates a single assignment-level expression, the entry
// point for contexts (initializers, argument lists) where a top-level
// comma is a separator rather than an operator.
func (c *Context) EvalAssign() Slot { return c.evalAssign() }

// evalAssign is level 14: assignment and the compound-assignment family,
// right-associative. An assignment target must resolve to an lvalue; the
// right-hand side is stored into it after §4.7 widening to the left's
// width and signedness, and for op-assign the corresponding binary
// operator runs first on the already-parsed values.
func (c *Context) evalAssign() Slot {
	lhs := c.evalCond()
	tok := c.peek()
	if tok != token.ASSIGN && !(tok.IsOpAssign() && tok.Base().IsOpAssignable()) {
		return lhs
	}
	c.Code.ReadToken()
	rhs := c.evalAssign()

	if c.Skip > 0 {
		return lhs
	}
	if !lhs.LValue {
		panic(&RuntimeError{Code: NotLValue, Pos: c.Pos(), Detail: "assignment target is not an lvalue"})
	}
	if lhs.Const {
		panic(&RuntimeError{Code: NotLValue, Pos: c.Pos(), Detail: "assignment to a readonly lvalue"})
	}

	var result Slot
	if tok == token.ASSIGN {
		if (lhs.Type.Base == token.STRUCT || lhs.Type.Base == token.UNION) && lhs.Type.Indirect == 0 {
			if !rhs.LValue {
				panic(&RuntimeError{Code: NotStruct, Pos: c.Pos(), Detail: "aggregate assignment needs an addressable source"})
			}
			c.copyAggregate(lhs.Handle, rhs.Handle)
			return lhs
		}
		target := lhs
		target.Type.Dims = nil
		result = Store(target, rhs)
	} else {
		result = c.applyBinary(tok.Base(), lhs, rhs)
		target := lhs
		target.Type.Dims = nil
		result = Store(target, result)
	}
	result.LValue = true
	result.Handle = lhs.Handle
	c.storeToHandle(lhs.Handle, result)
	return result
}

// evalCond is level 13: the ternary conditional, right-associative. The
// untaken arm is parsed in skip mode so it cannot trap or cause side
// effects.
func (c *Context) evalCond() Slot {
	cond := c.evalLogOr()
	if c.peek() != token.COND {
		return cond
	}
	c.Code.ReadToken()
	truthy := cond.AsInt64() != 0

	then := c.evalArm(!truthy)
	c.expect(token.COLON)
	els := c.evalArm(truthy)

	if truthy {
		return then
	}
	return els
}

// evalArm parses one conditional-level subexpression, in skip mode when
// skip is set.
func (c *Context) evalArm(skip bool) Slot {
	if skip {
		c.Skip++
		defer func() { c.Skip-- }()
	}
	return c.evalCond()
}

// evalLogOr is level 12: ||. Once the left operand is truthy, the right
// side is parsed without being evaluated.
func (c *Context) evalLogOr() Slot {
	lhs := c.evalLogAnd()
	for c.peek() == token.LIOR {
		c.Code.ReadToken()
		if lhs.AsInt64() != 0 {
			c.Skip++
			c.evalLogAnd()
			c.Skip--
			lhs = IntSlot(1)
			continue
		}
		rhs := c.evalLogAnd()
		lhs = boolSlot(rhs.AsInt64() != 0)
	}
	return lhs
}

// evalLogAnd is level 11: &&, short-circuiting symmetrically to ||.
func (c *Context) evalLogAnd() Slot {
	lhs := c.evalBitOr()
	for c.peek() == token.LAND {
		c.Code.ReadToken()
		if lhs.AsInt64() == 0 {
			c.Skip++
			c.evalBitOr()
			c.Skip--
			lhs = IntSlot(0)
			continue
		}
		rhs := c.evalBitOr()
		lhs = boolSlot(rhs.AsInt64() != 0)
	}
	return lhs
}

func boolSlot(b bool) Slot {
	if b {
		return IntSlot(1)
	}
	return IntSlot(0)
}

// evalBitOr is level 10: |.
func (c *Context) evalBitOr() Slot { return c.binaryLevel(token.IOR, c.evalBitXor) }

// evalBitXor is level 9: ^.
func (c *Context) evalBitXor() Slot { return c.binaryLevel(token.XOR, c.evalBitAnd) }

// evalBitAnd is level 8: &.
func (c *Context) evalBitAnd() Slot { return c.binaryLevel(token.AND, c.evalEquality) }

// evalEquality is level 7: == !=.
func (c *Context) evalEquality() Slot {
	lhs := c.evalRelational()
	for {
		tok := c.peek()
		if tok != token.EQ && tok != token.NE {
			return lhs
		}
		c.Code.ReadToken()
		rhs := c.evalRelational()
		lhs = c.applyCompare(tok, lhs, rhs)
	}
}

// evalRelational is level 6: < <= > >=.
func (c *Context) evalRelational() Slot {
	lhs := c.evalShift()
	for {
		tok := c.peek()
		switch tok {
		case token.LT, token.LE, token.GT, token.GE:
			c.Code.ReadToken()
			rhs := c.evalShift()
			lhs = c.applyCompare(tok, lhs, rhs)
		default:
			return lhs
		}
	}
}

// evalShift is level 5: << >>.
func (c *Context) evalShift() Slot {
	lhs := c.evalAdditive()
	for {
		tok := c.peek()
		if tok != token.SHL && tok != token.SHR {
			return lhs
		}
		c.Code.ReadToken()
		rhs := c.evalAdditive()
		lhs = c.applyShift(tok, lhs, rhs)
	}
}

// evalAdditive is level 4: + -.
func (c *Context) evalAdditive() Slot {
	return c.binaryLevelEither(token.ADD, token.SUB, c.evalMultiplicative)
}

// evalMultiplicative is level 3: * / %.
func (c *Context) evalMultiplicative() Slot {
	lhs := c.evalUnary()
	for {
		tok := c.peek()
		switch tok {
		case token.MUL, token.DIV, token.MOD:
			c.Code.ReadToken()
			rhs := c.evalUnary()
			lhs = c.applyBinary(tok, lhs, rhs)
		default:
			return lhs
		}
	}
}

// evalUnary is level 2: unary operators, sizeof and casts,
// right-associative by recursing into itself for the operand.
func (c *Context) evalUnary() Slot {
	switch tok := c.peek(); tok {
	case token.LNOT:
		c.Code.ReadToken()
		v := c.evalUnary()
		return boolSlot(v.AsInt64() == 0)
	case token.NOT:
		c.Code.ReadToken()
		v := c.evalUnary()
		if v.Type.Base == token.LONG {
			return LongSlot(^v.AsInt64())
		}
		return IntSlot(int32(^v.AsInt64()))
	case token.ADD:
		c.Code.ReadToken()
		return c.evalUnary()
	case token.SUB:
		c.Code.ReadToken()
		v := c.evalUnary()
		if v.IsFloat() {
			return FloatSlot(-v.AsFloat64())
		}
		if v.Type.Base == token.LONG {
			return LongSlot(-v.AsInt64())
		}
		return IntSlot(int32(-v.AsInt64()))
	case token.INCR, token.DECR:
		c.Code.ReadToken()
		v := c.evalUnary()
		delta := int64(1)
		if tok == token.DECR {
			delta = -1
		}
		if c.Skip > 0 {
			return v
		}
		if !v.LValue {
			panic(&RuntimeError{Code: NotLValue, Pos: c.Pos(), Detail: "operand of ++/-- is not an lvalue"})
		}
		updated := addDelta(v, delta)
		c.storeToHandle(v.Handle, updated)
		return updated
	case token.AND:
		c.Code.ReadToken()
		v := c.evalUnary()
		if c.Skip > 0 {
			return v
		}
		if !v.LValue {
			panic(&RuntimeError{Code: NotLValue, Pos: c.Pos(), Detail: "cannot take address of non-lvalue"})
		}
		result := Slot{Type: v.Type}
		result.Type.Dims = nil
		result.Type.Indirect++
		result.PtrValue = v.Handle
		return result
	case token.MUL:
		c.Code.ReadToken()
		v := c.evalUnary()
		return c.deref(v)
	case token.SIZEOF:
		c.Code.ReadToken()
		return c.evalSizeof()
	default:
		return c.evalPrimary()
	}
}

// deref applies unary '*': decrement indirection, reload the pointed-to
// value from the arena as a new lvalue.
func (c *Context) deref(v Slot) Slot {
	if v.Type.Indirect == 0 && !v.Type.IsArray() {
		panic(&RuntimeError{Code: NotPointer, Pos: c.Pos(), Detail: "indirection applied to non-pointer"})
	}
	elem := v.Type.Elem()
	if elem.Base == token.VOID && elem.Indirect == 0 {
		panic(&RuntimeError{Code: NotPointer, Pos: c.Pos(), Detail: "cannot dereference a void pointer"})
	}
	if c.Skip > 0 {
		return Slot{Type: elem}
	}
	return c.lvalueSlot(Handle{Offset: v.PtrValue.Offset, Width: elem.Size()}, elem)
}

// evalSizeof handles both sizeof(T) and sizeof expr; the operand of the
// expression form is parsed without evaluation.
func (c *Context) evalSizeof() Slot {
	if c.peek() == token.LPAREN && c.isTypeStartAt(1) {
		c.Code.ReadToken()
		typ := c.parseTypeName()
		c.expect(token.RPAREN)
		return uintSlot(uint32(typ.Size()))
	}
	c.Skip++
	v := c.evalUnary()
	c.Skip--
	return uintSlot(uint32(v.Type.Size()))
}

func uintSlot(v uint32) Slot {
	return Slot{Type: symtab.Type{Base: token.INT, Unsigned: true}, UInt: v}
}

// isTypeStartAt reports whether the token n bytes past the cursor begins a
// type specifier: a type keyword, or an identifier naming a typedef.
func (c *Context) isTypeStartAt(n int) bool {
	tok := token.Token(c.Code.PeekByteAt(n))
	if token.IsTypeKeyword(tok) {
		return true
	}
	if tok == token.IDENTIFIER && c.Vars != nil {
		idx := int(c.Code.PeekUint32At(n + 1))
		if idx < c.Vars.Len() {
			return c.Vars.At(idx).Kind == symtab.KindTypedef
		}
	}
	return false
}

// parseTypeName consumes an abstract declarator (specifiers plus pointer
// stars, no identifier), as used by casts and sizeof(T). The keyword
// combination rules are decl.Spec's, the same engine the linker's
// declaration parser runs on.
func (c *Context) parseTypeName() symtab.Type {
	var sp decl.Spec
	for {
		tok := c.peek()
		switch {
		case tok == token.STRUCT || tok == token.UNION || tok == token.ENUM:
			c.Code.ReadToken()
			base := symtab.Type{Base: tok}
			if c.peek() == token.IDENTIFIER {
				c.Code.ReadToken()
				tag := c.Vars.At(int(c.Code.ReadUint32()))
				base.Members = tag.Type.Members
				base.StructName = tag.Name
			}
			sp.SetBase(base)
		case tok == token.IDENTIFIER && c.isTypeStartAt(0):
			c.Code.ReadToken()
			td := c.Vars.At(int(c.Code.ReadUint32()))
			sp.SetBase(td.Type)
		case sp.Apply(tok):
			c.Code.ReadToken()
		default:
			typ := sp.Finish()
			for c.peek() == token.MUL {
				c.Code.ReadToken()
				typ.Indirect++
			}
			return typ
		}
	}
}

func addDelta(v Slot, delta int64) Slot {
	if v.IsPointer() {
		r := v
		elem := v.Type.Elem()
		r.PtrValue.Offset += int(delta) * elem.Size()
		return r
	}
	if v.IsFloat() {
		r := v
		r.Float = v.Float + float64(delta)
		return r
	}
	return Store(v, LongSlot(v.AsInt64()+delta))
}

// binaryLevel parses a single left-associative binary level where op is
// the only operator at that level.
func (c *Context) binaryLevel(op token.Token, next func() Slot) Slot {
	lhs := next()
	for c.peek() == op {
		c.Code.ReadToken()
		rhs := next()
		lhs = c.applyBinary(op, lhs, rhs)
	}
	return lhs
}

// binaryLevelEither parses a left-associative binary level with two
// candidate operators (+ and - share level 4).
func (c *Context) binaryLevelEither(a, b token.Token, next func() Slot) Slot {
	lhs := next()
	for {
		tok := c.peek()
		if tok != a && tok != b {
			return lhs
		}
		c.Code.ReadToken()
		rhs := next()
		lhs = c.applyBinary(tok, lhs, rhs)
	}
}

// applyBinary promotes lhs/rhs per Promote and performs the arithmetic,
// matching spec.md's "every binary level that handles two values uses §4.7
// promotion to decide the evaluation integral type before the operation."
// Pointer operands route through pointer arithmetic instead, scaled by the
// element width.
func (c *Context) applyBinary(op token.Token, lhs, rhs Slot) Slot {
	if c.Skip > 0 {
		return IntSlot(0)
	}
	if lhs.IsPointer() || rhs.IsPointer() {
		return c.pointerArith(op, lhs, rhs)
	}

	base, unsigned, _ := Promote(lhs, rhs)
	l := Widen(lhs, base, unsigned)
	r := Widen(rhs, base, unsigned)

	if base == token.FLOAT {
		return FloatSlot(c.floatOp(op, l.Float, r.Float))
	}
	result := Slot{Type: symtab.Type{Base: base, Unsigned: unsigned}}
	if unsigned {
		return Store(result, ULongSlot(c.uintOp(op, l.asUnsigned(), r.asUnsigned())))
	}
	return Store(result, LongSlot(c.intOp(op, l.AsInt64(), r.AsInt64())))
}

// pointerArith implements ptr±int (scaled by element width) and ptr-ptr
// (yielding an element count).
func (c *Context) pointerArith(op token.Token, lhs, rhs Slot) Slot {
	switch {
	case op == token.SUB && lhs.IsPointer() && rhs.IsPointer():
		elem := lhs.Type.Elem()
		width := elem.Size()
		if width == 0 {
			panic(&RuntimeError{Code: NotPointer, Pos: c.Pos(), Detail: "pointer arithmetic on incomplete type"})
		}
		return LongSlot(int64((lhs.PtrValue.Offset - rhs.PtrValue.Offset) / width))
	case op == token.ADD || op == token.SUB:
		ptr, n := lhs, rhs
		if !ptr.IsPointer() {
			if op == token.SUB {
				panic(&RuntimeError{Code: NotPointer, Pos: c.Pos(), Detail: "cannot subtract a pointer from an integer"})
			}
			ptr, n = rhs, lhs
		}
		elem := ptr.Type.Elem()
		width := elem.Size()
		delta := int(n.AsInt64()) * width
		if op == token.SUB {
			delta = -delta
		}
		result := Slot{Type: decayType(ptr.Type)}
		result.PtrValue = Handle{Offset: ptr.PtrValue.Offset + delta, Width: width}
		return result
	default:
		panic(&RuntimeError{Code: NotPointer, Pos: c.Pos(), Detail: "invalid pointer operation " + op.GoString()})
	}
}

// decayType converts an array type to the pointer type its value decays
// to; a plain pointer type is returned unchanged.
func decayType(t symtab.Type) symtab.Type {
	if !t.IsArray() {
		return t
	}
	e := t.Elem()
	e.Indirect++
	return e
}

func (s Slot) asUnsigned() uint64 {
	if s.Type.Base == token.LONG {
		return s.ULong
	}
	return uint64(s.UInt)
}

// ULongSlot builds an unsigned long Slot.
func ULongSlot(v uint64) Slot {
	return Slot{Type: symtab.Type{Base: token.LONG, Unsigned: true}, ULong: v}
}

func (c *Context) floatOp(op token.Token, a, b float64) float64 {
	switch op {
	case token.ADD:
		return a + b
	case token.SUB:
		return a - b
	case token.MUL:
		return a * b
	case token.DIV:
		if b == 0 {
			panic(&RuntimeError{Code: FloatException, Pos: c.Pos(), Detail: "floating point division by zero"})
		}
		return a / b
	default:
		panic(&RuntimeError{Code: BadExpr, Pos: c.Pos(), Detail: "operator " + op.GoString() + " requires integral operands"})
	}
}

func (c *Context) intOp(op token.Token, a, b int64) int64 {
	switch op {
	case token.ADD:
		return a + b
	case token.SUB:
		return a - b
	case token.MUL:
		return a * b
	case token.DIV:
		if b == 0 {
			panic(&RuntimeError{Code: DivByZero, Pos: c.Pos(), Detail: "division by zero"})
		}
		return a / b
	case token.MOD:
		if b == 0 {
			panic(&RuntimeError{Code: DivByZero, Pos: c.Pos(), Detail: "division by zero"})
		}
		return a % b
	case token.AND:
		return a & b
	case token.XOR:
		return a ^ b
	case token.IOR:
		return a | b
	default:
		panic(&RuntimeError{Code: BadExpr, Pos: c.Pos(), Detail: "invalid integer operator"})
	}
}

func (c *Context) uintOp(op token.Token, a, b uint64) uint64 {
	switch op {
	case token.ADD:
		return a + b
	case token.SUB:
		return a - b
	case token.MUL:
		return a * b
	case token.DIV:
		if b == 0 {
			panic(&RuntimeError{Code: DivByZero, Pos: c.Pos(), Detail: "division by zero"})
		}
		return a / b
	case token.MOD:
		if b == 0 {
			panic(&RuntimeError{Code: DivByZero, Pos: c.Pos(), Detail: "division by zero"})
		}
		return a % b
	case token.AND:
		return a & b
	case token.XOR:
		return a ^ b
	case token.IOR:
		return a | b
	default:
		panic(&RuntimeError{Code: BadExpr, Pos: c.Pos(), Detail: "invalid integer operator"})
	}
}

func (c *Context) applyShift(op token.Token, lhs, rhs Slot) Slot {
	if c.Skip > 0 {
		return IntSlot(0)
	}
	n := uint(rhs.AsInt64()) & 63
	result := Slot{Type: lhs.Type}
	result.Type.Dims = nil
	if op == token.SHL {
		return Store(result, LongSlot(lhs.AsInt64()<<n))
	}
	if lhs.Type.Unsigned {
		return Store(result, ULongSlot(lhs.asUnsigned()>>n))
	}
	return Store(result, LongSlot(lhs.AsInt64()>>n))
}

func (c *Context) applyCompare(op token.Token, lhs, rhs Slot) Slot {
	if c.Skip > 0 {
		return IntSlot(0)
	}
	var cmp int
	if lhs.IsFloat() || rhs.IsFloat() {
		a, b := lhs.AsFloat64(), rhs.AsFloat64()
		switch {
		case a < b:
			cmp = -1
		case a > b:
			cmp = 1
		}
	} else {
		a, b := lhs.AsInt64(), rhs.AsInt64()
		switch {
		case a < b:
			cmp = -1
		case a > b:
			cmp = 1
		}
	}

	result := false
	switch op {
	case token.LT:
		result = cmp < 0
	case token.LE:
		result = cmp <= 0
	case token.GT:
		result = cmp > 0
	case token.GE:
		result = cmp >= 0
	case token.EQ:
		result = cmp == 0
	case token.NE:
		result = cmp != 0
	}
	return boolSlot(result)
}

func (c *Context) expect(tok token.Token) {
	c.ReadFileLineMark()
	if got := c.Code.ReadToken(); got != tok {
		panic(&RuntimeError{Code: BadExpr, Pos: c.Pos(), Detail: "expected " + tok.GoString() + ", found " + got.GoString()})
	}
}

// storeToHandle writes v's current bit pattern into the data arena at h,
// the mechanism underlying assignment, ++/--, and argument staging.
func (c *Context) storeToHandle(h Handle, v Slot) {
	if c.Skip > 0 {
		return
	}
	writeSlotBytes(c.Data.Bytes(h), v)
}

// StoreAt writes v into the arena at h unconditionally; the engine's call
// protocol stages widened arguments with it, and builtins write through
// out-parameters with it.
func (c *Context) StoreAt(h Handle, v Slot) {
	writeSlotBytes(c.Data.Bytes(h), v)
}
