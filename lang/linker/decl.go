package linker

import (
	"github.com/vastcl/vcl/lang/symtab"
	"github.com/vastcl/vcl/lang/token"
	"github.com/vastcl/vcl/lang/vclerr"
)

const exprStopCommaBrace = true

// linkGlobalDecl processes a file-scope declarator list: allocate each
// variable in the data arena, insert it into the symbol table, rewrite its
// name token, and evaluate any initializer immediately (file-scope
// initializers are constant expressions).
func (l *Linker) linkGlobalDecl(base symtab.Type, firstIndirect int, storage symtab.StorageClass, isTypedef, isConst bool) {
	if storage&(symtab.StorageRegister|symtab.StorageAuto) != 0 {
		l.errorf(vclerr.DeclareErr, "register and auto are not valid at file scope")
	}

	indirect := firstIndirect
	first := true
	for {
		if !first {
			indirect = 0
			for l.peek() == token.MUL {
				l.cur.ReadToken()
				indirect++
			}
		}
		first = false

		t := base
		t.Indirect = indirect
		t.Dims = nil

		if l.peek() != token.SYMBOL {
			l.errorf(vclerr.NoIdentErr, "expected an identifier in declaration")
			panic(declSkip{})
		}
		tokOff := l.cur.Pos()
		l.cur.ReadToken()
		name := l.Names.Name(int(l.cur.ReadUint32()))
		declPos := l.pos()

		l.parseDims(&t)
		l.resolveOpenDim(&t)

		switch {
		case isTypedef:
			td := &symtab.Variable{Name: name, Kind: symtab.KindTypedef, Type: t, Pos: declPos}
			l.Vars.Add(td)
			l.typedefs[name] = td
			l.patchToIdentifier(tokOff, uint32(td.Index))

		case storage&symtab.StorageExternal != 0:
			if sym, ok := l.Symbols.Lookup(name); ok && sym.Var != nil {
				l.patchToIdentifier(tokOff, uint32(sym.Var.Index))
			} else {
				v := &symtab.Variable{Name: name, Kind: symtab.KindVariable, Type: t, Storage: storage, Pos: declPos, Const: isConst}
				l.Vars.Add(v)
				l.Symbols.Insert(symtab.Symbol{Name: name, Kind: symtab.KindVariable, Var: v})
				l.patchToIdentifier(tokOff, uint32(v.Index))
			}
			if l.peek() == token.ASSIGN {
				l.errorf(vclerr.InitErr, "extern declaration of %s cannot carry an initializer", name)
				panic(declSkip{})
			}

		default:
			var v *symtab.Variable
			if sym, ok := l.Symbols.Lookup(name); ok && sym.Var != nil {
				if sym.Var.Storage&symtab.StorageExternal == 0 {
					l.errorf(vclerr.MultipleDefErr, "redefinition of %s", name)
					panic(declSkip{})
				}
				v = sym.Var
				v.Storage &^= symtab.StorageExternal
				v.Type = t
				v.Pos = declPos
			}
			if v == nil {
				v = &symtab.Variable{Name: name, Kind: symtab.KindVariable, Type: t, Storage: storage, Pos: declPos, Const: isConst}
				l.Vars.Add(v)
				l.Symbols.Insert(symtab.Symbol{Name: name, Kind: symtab.KindVariable, Var: v})
			}
			h := l.Ctx.Data.Alloc(t.Size())
			v.Offset = h.Offset
			l.patchToIdentifier(tokOff, uint32(v.Index))

			if l.peek() == token.ASSIGN {
				l.cur.ReadToken()
				l.linkInitializer(v)
			}
		}

		if l.peek() == token.COMMA {
			l.cur.ReadToken()
			continue
		}
		break
	}
	l.expect(token.SEMICOLON)
}

// linkLocalDecl processes a block-scope declaration inside a function
// body: auto locals get frame-relative offsets (their initializers run at
// execution time, so the expression is only rewritten here), while statics
// are allocated and initialized in the data arena at link time like
// globals.
func (l *Linker) linkLocalDecl(f *symtab.Function, frameOff *int, depth int) {
	base, storage, isTypedef, isConst := l.parseSpecifiers()

	first := true
	for {
		t := base
		t.Dims = nil
		for l.peek() == token.MUL {
			l.cur.ReadToken()
			t.Indirect++
		}
		if l.peek() != token.SYMBOL {
			if first {
				break // tag-only declaration, e.g. "struct point;"
			}
			l.errorf(vclerr.NoIdentErr, "expected an identifier in declaration")
			panic(declSkip{})
		}
		first = false

		tokOff := l.cur.Pos()
		l.cur.ReadToken()
		name := l.Names.Name(int(l.cur.ReadUint32()))
		declPos := l.pos()

		l.parseDims(&t)
		l.resolveOpenDim(&t)

		if isTypedef {
			td := &symtab.Variable{Name: name, Kind: symtab.KindTypedef, Type: t, Pos: declPos}
			l.Vars.Add(td)
			l.typedefs[name] = td
			l.patchToIdentifier(tokOff, uint32(td.Index))
		} else {
			for _, prior := range l.locals {
				if prior.Name == name && prior.Depth == depth {
					l.errorf(vclerr.MultipleDefErr, "redefinition of %s", name)
				}
			}
			v := &symtab.Variable{
				Name:    name,
				Kind:    symtab.KindVariable,
				Type:    t,
				Storage: storage,
				Depth:   depth,
				Pos:     declPos,
				Const:   isConst,
			}
			if storage&symtab.StorageStatic != 0 {
				h := l.Ctx.Data.Alloc(t.Size())
				v.Offset = h.Offset
			} else {
				v.Offset = *frameOff
				v.Local = true
				*frameOff += t.Size()
			}
			l.Vars.Add(v)
			l.locals = append(l.locals, v)
			l.patchToIdentifier(tokOff, uint32(v.Index))

			if l.peek() == token.ASSIGN {
				l.cur.ReadToken()
				if storage&symtab.StorageStatic != 0 {
					l.linkInitializer(v)
				} else {
					l.rewriteExpr(exprStopCommaBrace)
				}
			}
		}

		if l.peek() == token.COMMA {
			l.cur.ReadToken()
			continue
		}
		break
	}
	l.expect(token.SEMICOLON)
}

// linkInitializer rewrites the initializer expression's symbols, then
// seeks back and evaluates it through the machine's initializer engine,
// storing the value into v's freshly allocated arena bytes.
func (l *Linker) linkInitializer(v *symtab.Variable) {
	start := l.cur.Pos()
	l.rewriteExpr(exprStopCommaBrace)
	end := l.cur.Pos()
	l.cur.Seek(start)
	l.Ctx.ExecInitializer(v)
	l.cur.Seek(end)
}

// parseDims consumes the declarator's [dim] groups, evaluating each
// dimension as a constant expression; an empty pair records an open
// dimension resolved later from the initializer.
func (l *Linker) parseDims(t *symtab.Type) {
	for l.peek() == token.LBRACKET {
		l.cur.ReadToken()
		if len(t.Dims) >= 4 {
			l.errorf(vclerr.MDimErr, "more than 4 array dimensions")
			panic(declSkip{})
		}
		if l.peek() == token.RBRACKET {
			l.cur.ReadToken()
			t.Dims = append(t.Dims, -1)
			continue
		}
		n := l.constExpr()
		if n < 0 {
			l.errorf(vclerr.SizeErr, "negative array dimension %d", n)
			n = 0
		}
		l.expect(token.RBRACKET)
		t.Dims = append(t.Dims, int(n))
	}
}

// resolveOpenDim fills in an empty leading dimension by peeking at the
// initializer: a string literal's stored length for a char array, or the
// element count of a brace aggregate.
func (l *Linker) resolveOpenDim(t *symtab.Type) {
	if len(t.Dims) == 0 || t.Dims[0] != -1 {
		return
	}
	if l.peek() != token.ASSIGN {
		l.errorf(vclerr.UnknownSizeErr, "array size missing and no initializer to take it from")
		t.Dims[0] = 0
		return
	}
	save := l.cur.Pos()
	l.cur.ReadToken() // tentatively step past '='
	switch l.peek() {
	case token.STRCONST:
		l.cur.ReadToken()
		n := int(l.cur.ReadByte())
		t.Dims[0] = n
	case token.LBRACE:
		t.Dims[0] = l.countBraceItems()
	default:
		l.errorf(vclerr.UnknownSizeErr, "cannot infer array size from a scalar initializer")
		t.Dims[0] = 0
	}
	l.cur.Seek(save)
}

// countBraceItems counts the top-level elements of the brace aggregate the
// cursor sits on, leaving the cursor untouched by the caller's seek.
func (l *Linker) countBraceItems() int {
	l.expect(token.LBRACE)
	depth := 1
	items := 0
	sawAny := false
	for depth > 0 {
		tok := l.cur.ReadToken()
		switch tok {
		case token.LBRACE:
			depth++
		case token.RBRACE:
			depth--
		case token.COMMA:
			if depth == 1 {
				items++
			}
		case token.EOF:
			l.errorf(vclerr.RBraceErr, "unterminated initializer")
			return items
		default:
			l.skipPayload(tok)
			sawAny = true
		}
		if tok != token.RBRACE && tok != token.LBRACE && tok != token.COMMA {
			sawAny = true
		}
	}
	if !sawAny && items == 0 {
		return 0
	}
	return items + 1
}

// rewriteExpr walks one expression's tokens, rewriting every SYMBOL it
// meets through the same resolution the body walker uses, and stops before
// the token that ends the expression: a top-level ';', a top-level ','
// when stopComma is set, or the closer of the group enclosing the
// expression.
func (l *Linker) rewriteExpr(stopComma bool) {
	depth := 0
	prev := token.ILLEGAL
	for {
		l.marks()
		tokOff := l.cur.Pos()
		tok := l.cur.PeekToken()
		switch tok {
		case token.SEMICOLON, token.EOF:
			return
		case token.COMMA:
			if depth <= 0 && stopComma {
				return
			}
			l.cur.ReadToken()
		case token.LPAREN, token.LBRACKET, token.LBRACE:
			depth++
			l.cur.ReadToken()
		case token.RPAREN, token.RBRACKET, token.RBRACE:
			if depth == 0 {
				return
			}
			depth--
			l.cur.ReadToken()
		case token.SYMBOL:
			l.cur.ReadToken()
			nameIdx := int(l.cur.ReadUint32())
			l.resolveSymbol(tokOff, nameIdx, prev)
			tok = token.IDENTIFIER
		default:
			l.cur.ReadToken()
			l.skipPayload(tok)
		}
		prev = tok
	}
}

// resolveSymbol rewrites one SYMBOL token in place, choosing its meaning
// from the token before it (member access, goto target, tag reference) or
// by scope search: innermost local, then global, then typedef, then
// function name.
func (l *Linker) resolveSymbol(tokOff, nameIdx int, prev token.Token) {
	name := l.Names.Name(nameIdx)
	switch {
	case prev == token.DOT || prev == token.ARROW:
		// runtime resolves members against the operand's struct scope; the
		// payload keeps the name index.
		l.Buf.PatchByte(tokOff, byte(token.IDENTIFIER))

	case prev == token.GOTO:
		var lab *symtab.Variable
		if l.fn != nil && l.fn.Locals != nil {
			if v, ok := l.fn.Locals.Find(name); ok && v.Kind == symtab.KindLabel {
				lab = v
			}
		}
		if lab == nil {
			l.errorf(vclerr.GotoErr, "no label %s in this function", name)
			return
		}
		l.patchToIdentifier(tokOff, uint32(lab.Depth)<<24|uint32(lab.Offset))

	case prev == token.STRUCT || prev == token.UNION || prev == token.ENUM:
		tag := l.tags[name]
		if tag == nil {
			tag = &symtab.Variable{
				Name: name,
				Kind: symtab.KindStructTag,
				Type: symtab.Type{Base: prev, StructName: name},
				Pos:  l.pos(),
			}
			l.Vars.Add(tag)
			l.tags[name] = tag
		}
		l.patchToIdentifier(tokOff, uint32(tag.Index))

	default:
		if v := l.findLocal(name); v != nil {
			l.patchToIdentifier(tokOff, uint32(v.Index))
			return
		}
		if sym, ok := l.Symbols.Lookup(name); ok && sym.Var != nil {
			l.patchToIdentifier(tokOff, uint32(sym.Var.Index))
			return
		}
		if td, ok := l.typedefs[name]; ok {
			l.patchToIdentifier(tokOff, uint32(td.Index))
			return
		}
		if fidx, _, ok := l.Funcs.Find(name); ok {
			l.patchToFuncref(tokOff, uint32(fidx))
			return
		}
		l.errorf(vclerr.NoIdentErr, "undeclared identifier %s", name)
	}
}
