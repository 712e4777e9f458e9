package machine

import (
	"github.com/vastcl/vcl/lang/symtab"
	"github.com/vastcl/vcl/lang/token"
)

// execLocalDecl runs one local declaration statement. The linker has
// already parsed the declaration once — allocated frame offsets, recorded
// types, rewritten each declarator's SYMBOL to IDENTIFIER — so the runtime
// pass only re-walks the tokens to find initializers and evaluate them
// against the live frame.
func (c *Context) execLocalDecl() {
	c.skipDeclSpecifiers()
	for {
		for c.peek() == token.MUL {
			c.Code.ReadToken()
		}
		if c.peek() != token.IDENTIFIER {
			// a tag-only struct/union/enum declaration has no declarator
			c.expect(token.SEMICOLON)
			return
		}
		c.Code.ReadToken()
		v := c.Vars.At(int(c.Code.ReadUint32()))
		c.skipDims()
		if c.peek() == token.ASSIGN {
			c.Code.ReadToken()
			c.ExecInitializer(v)
		}
		if c.peek() == token.COMMA {
			c.Code.ReadToken()
			continue
		}
		break
	}
	c.expect(token.SEMICOLON)
}

// skipDeclSpecifiers consumes the storage-class/qualifier/type-specifier
// prefix of a declaration, including a typedef-named identifier and a
// struct/union/enum tag (plus a member body, which only appears on the
// type's defining declaration and carries no runtime work).
func (c *Context) skipDeclSpecifiers() {
	for {
		tok := c.peek()
		switch {
		case token.IsStorageClass(tok) || tok == token.CONST || tok == token.VOLATILE || tok == token.UNSIGNED || tok == token.SHORT:
			c.Code.ReadToken()
		case tok == token.STRUCT || tok == token.UNION || tok == token.ENUM:
			c.Code.ReadToken()
			if c.peek() == token.IDENTIFIER {
				c.Code.ReadToken()
				c.Code.ReadUint32()
			}
			if c.peek() == token.LBRACE {
				c.Code.ReadToken()
				c.skipToMatchingBrace()
			}
		case token.IsTypeKeyword(tok):
			c.Code.ReadToken()
		case tok == token.IDENTIFIER && c.Vars.At(int(c.Code.PeekUint32At(1))).Kind == symtab.KindTypedef:
			c.Code.ReadToken()
			c.Code.ReadUint32()
		default:
			return
		}
	}
}

// skipDims consumes a declarator's [dim] groups.
func (c *Context) skipDims() {
	for c.peek() == token.LBRACKET {
		c.Code.ReadToken()
		for c.peek() != token.RBRACKET {
			c.skipPayload(c.Code.ReadToken())
		}
		c.Code.ReadToken()
	}
}

// ExecInitializer evaluates the initializer the cursor is positioned at
// (just past '=') and stores it into v's storage. Handles the three
// spec.md §4.6 forms: a string literal into a char array, a brace-
// delimited aggregate for arrays and structs, and a scalar expression.
// The linker reuses it for globals with a frame-less Context, which makes
// v's offset absolute.
func (c *Context) ExecInitializer(v *symtab.Variable) {
	h := c.VarHandle(v)
	c.initInto(h, v.Type)
}

func (c *Context) initInto(h Handle, typ symtab.Type) {
	switch {
	case typ.IsArray() && typ.Base == token.CHAR && typ.Indirect == 0 && c.peek() == token.STRCONST:
		c.Code.ReadToken()
		n := int(c.Code.ReadByte())
		payload := c.Code.ReadN(n)
		if n > h.Width {
			panic(&RuntimeError{Code: BadDecl, Pos: c.Pos(), Detail: "string initializer too long for array"})
		}
		copy(c.Data.Bytes(h), payload)

	case c.peek() == token.LBRACE:
		c.initAggregate(h, typ)

	default:
		val := c.evalAssign()
		target := Slot{Type: typ}
		target.Type.Dims = nil
		stored := Store(target, val)
		stored.LValue = true
		stored.Handle = h
		c.storeToHandle(h, stored)
	}
}

// initAggregate walks a brace-delimited initializer list, recursing per
// array element or struct member in declaration order; unlisted trailing
// members keep their zero fill, and extra initializers are fatal.
func (c *Context) initAggregate(h Handle, typ symtab.Type) {
	c.expect(token.LBRACE)
	switch {
	case typ.IsArray():
		elem := typ.Elem()
		width := elem.Size()
		count := typ.Dims[0]
		i := 0
		for c.peek() != token.RBRACE {
			if i >= count {
				panic(&RuntimeError{Code: BadDecl, Pos: c.Pos(), Detail: "too many initializers"})
			}
			c.initInto(Handle{Offset: h.Offset + i*width, Width: width}, elem)
			i++
			if c.peek() == token.COMMA {
				c.Code.ReadToken()
				continue
			}
			break
		}
	case typ.Base == token.STRUCT || typ.Base == token.UNION:
		if typ.Members == nil {
			panic(&RuntimeError{Code: NotStruct, Pos: c.Pos(), Detail: "aggregate initializer for incomplete type"})
		}
		i := 0
		for c.peek() != token.RBRACE {
			if i >= typ.Members.Len() {
				panic(&RuntimeError{Code: BadDecl, Pos: c.Pos(), Detail: "too many initializers"})
			}
			m := typ.Members.At(i)
			c.initInto(Handle{Offset: h.Offset + m.Offset, Width: m.Type.Size()}, m.Type)
			i++
			if c.peek() == token.COMMA {
				c.Code.ReadToken()
				continue
			}
			break
		}
	default:
		// a scalar wrapped in braces
		c.initInto(h, typ)
	}
	c.expect(token.RBRACE)
}
