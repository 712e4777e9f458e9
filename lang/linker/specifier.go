package linker

import (
	"encoding/binary"

	"github.com/vastcl/vcl/lang/decl"
	"github.com/vastcl/vcl/lang/machine"
	"github.com/vastcl/vcl/lang/symtab"
	"github.com/vastcl/vcl/lang/token"
	"github.com/vastcl/vcl/lang/vclerr"
)

// parseSpecifiers consumes a declaration's storage-class/qualifier/
// type-specifier prefix: keyword combination is delegated to decl.Spec
// (the engine the runtime's type-name parser shares), while the
// aggregate and typedef-name tails that need table access are handled
// here, installing any struct/union/enum definition they carry. It
// returns the base type with no declarator modifiers applied.
func (l *Linker) parseSpecifiers() (typ symtab.Type, storage symtab.StorageClass, isTypedef, isConst bool) {
	var sp decl.Spec
	for {
		tok := l.peek()
		switch {
		case tok == token.STRUCT || tok == token.UNION:
			l.cur.ReadToken()
			sp.SetBase(l.parseStructSpecifier(tok))
		case tok == token.ENUM:
			l.cur.ReadToken()
			l.parseEnumSpecifier()
			sp.SetBase(symtab.Type{Base: token.INT})
		case tok == token.SYMBOL && !sp.SawType():
			// possibly a typedef name; only consume if it resolves
			name := l.Names.Name(int(l.cur.PeekUint32At(1)))
			td, ok := l.typedefs[name]
			if !ok {
				return sp.Finish(), sp.Storage, sp.IsTypedef, sp.IsConst
			}
			tokOff := l.cur.Pos()
			l.cur.ReadToken()
			l.cur.ReadUint32()
			l.patchToIdentifier(tokOff, uint32(td.Index))
			sp.SetBase(td.Type)
		case sp.Apply(tok):
			l.cur.ReadToken()
		default:
			return sp.Finish(), sp.Storage, sp.IsTypedef, sp.IsConst
		}
	}
}

// parseStructSpecifier handles the tail of a struct/union specifier: an
// optional tag, an optional member body. The tag record lives in the
// variable arena so tag references patch to IDENTIFIER like any other
// symbol.
func (l *Linker) parseStructSpecifier(kw token.Token) symtab.Type {
	var tag *symtab.Variable

	if l.peek() == token.SYMBOL {
		tokOff := l.cur.Pos()
		l.cur.ReadToken()
		name := l.Names.Name(int(l.cur.ReadUint32()))
		tag = l.tags[name]
		if tag == nil {
			tag = &symtab.Variable{
				Name: name,
				Kind: symtab.KindStructTag,
				Type: symtab.Type{Base: kw, StructName: name},
				Pos:  l.pos(),
			}
			l.Vars.Add(tag)
			l.tags[name] = tag
		} else if tag.Type.Base != kw {
			l.errorf(vclerr.StrucErr, "tag %s redeclared as a different kind", name)
		}
		l.patchToIdentifier(tokOff, uint32(tag.Index))
	}

	if l.peek() == token.LBRACE {
		members := l.parseMembers(kw == token.UNION)
		if tag != nil {
			if tag.Type.Members != nil {
				l.errorf(vclerr.RedefErr, "tag %s redefined", tag.Name)
			}
			tag.Type.Members = members
		} else {
			// anonymous struct/union: the members belong to the declared
			// variables directly.
			return symtab.Type{Base: kw, Members: members}
		}
	}

	typ := symtab.Type{Base: kw}
	if tag != nil {
		typ.StructName = tag.Name
		typ.Members = tag.Type.Members
	}
	return typ
}

// parseMembers walks a struct/union body, laying members out sequentially
// (structs) or all at offset zero (unions), with no alignment padding so
// the byte-exact aggregate copy rules hold.
func (l *Linker) parseMembers(union bool) *symtab.VarList {
	l.expect(token.LBRACE)
	members := &symtab.VarList{}
	off := 0
	for l.peek() != token.RBRACE {
		base, _, _, mconst := l.parseSpecifiers()
		for {
			t := base
			for l.peek() == token.MUL {
				l.cur.ReadToken()
				t.Indirect++
			}
			if l.peek() != token.SYMBOL {
				l.errorf(vclerr.ElemErr, "expected member name")
				panic(declSkip{})
			}
			tokOff := l.cur.Pos()
			l.cur.ReadToken()
			nameIdx := l.cur.ReadUint32()
			name := l.Names.Name(int(nameIdx))
			// member declaration tokens are never executed; the payload
			// keeps the name index for symmetry with member access sites.
			l.Buf.PatchByte(tokOff, byte(token.IDENTIFIER))

			l.parseDims(&t)
			if _, dup := members.Find(name); dup {
				l.errorf(vclerr.MultipleDefErr, "duplicate member %s", name)
			}
			memberOff := off
			if !union {
				off += t.Size()
			}
			members.Append(symtab.Variable{
				Name:   name,
				Kind:   symtab.KindStructElem,
				Type:   t,
				Offset: memberOff,
				Const:  mconst,
				Pos:    l.pos(),
			})
			if l.peek() == token.COMMA {
				l.cur.ReadToken()
				continue
			}
			break
		}
		l.expect(token.SEMICOLON)
	}
	l.expect(token.RBRACE)
	return members
}

// parseEnumSpecifier handles the tail of an enum specifier: optional tag,
// optional enumerator body. Each enumerator becomes a readonly int
// constant in the data arena, with the running counter resuming after an
// explicit "= K".
func (l *Linker) parseEnumSpecifier() {
	if l.peek() == token.SYMBOL {
		tokOff := l.cur.Pos()
		l.cur.ReadToken()
		name := l.Names.Name(int(l.cur.ReadUint32()))
		tag := l.tags[name]
		if tag == nil {
			tag = &symtab.Variable{
				Name: name,
				Kind: symtab.KindStructTag,
				Type: symtab.Type{Base: token.ENUM, StructName: name},
				Pos:  l.pos(),
			}
			l.Vars.Add(tag)
			l.tags[name] = tag
		}
		l.patchToIdentifier(tokOff, uint32(tag.Index))
	}

	if l.peek() != token.LBRACE {
		return
	}
	l.cur.ReadToken()

	next := int32(0)
	for l.peek() != token.RBRACE {
		if l.peek() != token.SYMBOL {
			l.errorf(vclerr.EnumErr, "expected enumerator name")
			panic(declSkip{})
		}
		tokOff := l.cur.Pos()
		l.cur.ReadToken()
		name := l.Names.Name(int(l.cur.ReadUint32()))

		v := &symtab.Variable{
			Name:  name,
			Kind:  symtab.KindEnumConst,
			Type:  symtab.Type{Base: token.INT},
			Const: true,
			Pos:   l.pos(),
		}
		h := l.Ctx.Data.Alloc(4)
		v.Offset = h.Offset
		l.Vars.Add(v)
		l.patchToIdentifier(tokOff, uint32(v.Index))

		if _, exists := l.Symbols.Lookup(name); exists {
			l.errorf(vclerr.RedefErr, "redefinition of %s", name)
		} else {
			l.Symbols.Insert(symtab.Symbol{Name: name, Kind: symtab.KindEnumConst, Var: v})
		}

		if l.peek() == token.ASSIGN {
			l.cur.ReadToken()
			next = int32(l.constExpr())
		}
		binary.LittleEndian.PutUint32(l.Ctx.Data.Bytes(machine.Handle{Offset: v.Offset, Width: 4}), uint32(next))
		next++

		if l.peek() == token.COMMA {
			l.cur.ReadToken()
			continue
		}
		break
	}
	l.expect(token.RBRACE)
}

// constExpr rewrites the constant expression starting at the cursor, then
// re-evaluates it through the machine's evaluator and returns its integral
// value. The cursor ends just past the expression.
func (l *Linker) constExpr() int64 {
	start := l.cur.Pos()
	l.rewriteExpr(exprStopCommaBrace)
	end := l.cur.Pos()
	l.cur.Seek(start)
	v := l.Ctx.EvalAssign()
	l.cur.Seek(end)
	return v.AsInt64()
}
