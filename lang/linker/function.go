package linker

import (
	"bytes"
	"encoding/binary"

	"github.com/vastcl/vcl/lang/decl"
	"github.com/vastcl/vcl/lang/symtab"
	"github.com/vastcl/vcl/lang/token"
	"github.com/vastcl/vcl/lang/vclerr"
)

// paramSite is one parsed parameter plus the pcode locations the linker
// must patch once the parameter's variable record exists.
type paramSite struct {
	v      symtab.Variable
	symOff int // offset of the name's SYMBOL token, -1 if unnamed
	tagIdx int // var-arena index of the struct/union tag, -1 if not aggregate
}

// protoEnd terminates every prototype blob.
const protoEnd = 0xFF

// unsignedBit marks an unsigned parameter type inside a blob; signedness
// participates in prototype equality like any other byte.
const unsignedBit = 0x80

// linkFunction handles a FUNCTION site: parse the parameter list, build
// and check the prototype blob, and for a definition install the
// parameters and walk the body declaring locals and rewriting symbols.
func (l *Linker) linkFunction(ret symtab.Type, storage symtab.StorageClass) {
	l.cur.ReadToken() // FUNCTION (or FUNCREF when a shim name is redefined)
	f := l.Funcs.At(int(l.cur.ReadUint32()))
	declPos := l.pos()

	l.expect(token.LPAREN)
	params, variadic := l.parseParams()
	l.expect(token.RPAREN)

	if l.peek() == token.SEMICOLON {
		l.cur.ReadToken()
		for _, p := range params {
			if p.symOff >= 0 {
				// prototype parameter names have no storage; the token byte
				// still flips so no SYMBOL survives the pass
				l.Buf.PatchByte(p.symOff, byte(token.IDENTIFIER))
			}
		}
		l.attachPrototype(f, ret, l.buildBlob(params, variadic), declPos)
		return
	}

	// K&R declarators: parameter types follow the close paren, refining the
	// bare names collected above, and run up to the body's '{'.
	if l.peek() != token.LBRACE {
		l.parseKRDecls(params)
	}

	l.attachPrototype(f, ret, l.buildBlob(params, variadic), declPos)
	if f.Defined {
		l.errorf(vclerr.MultipleDefErr, "redefinition of function %s", f.Name)
		panic(declSkip{})
	}
	f.Defined = true
	f.Variadic = variadic
	f.Pos = declPos
	if storage&symtab.StorageStatic != 0 {
		f.Static = true
	}

	l.fn = f
	l.locals = l.locals[:0]
	frameOff := 0
	var installed []symtab.Variable
	for _, p := range params {
		if p.v.Type.Base == token.VOID && p.v.Type.Indirect == 0 {
			continue // the (void) marker declares nothing
		}
		width := p.v.Type.Size()
		if p.v.Type.Base == token.CHAR && p.v.Type.Indirect == 0 && !p.v.Type.IsArray() {
			width = 4 // char arguments are staged at int width
		}
		pv := &symtab.Variable{
			Name:   p.v.Name,
			Kind:   symtab.KindVariable,
			Type:   p.v.Type,
			Offset: frameOff,
			Local:  true,
			Depth:  1,
			Pos:    declPos,
			Const:  p.v.Const,
		}
		l.Vars.Add(pv)
		if p.symOff >= 0 {
			l.patchToIdentifier(p.symOff, uint32(pv.Index))
		}
		if pv.Name != "" {
			l.locals = append(l.locals, pv)
		}
		installed = append(installed, *pv)
		frameOff += width
	}
	f.Params = installed

	l.marks()
	if l.cur.PeekToken() != token.LBRACE {
		l.errorf(vclerr.LBraceErr, "expected function body for %s", f.Name)
		panic(declSkip{})
	}
	f.BodyOffset = l.cur.Pos()
	l.linkBody(f, &frameOff)
	f.FrameSize = frameOff
	if f.Name == "main" {
		f.IsMain = true
	}

	l.fn = nil
	l.locals = l.locals[:0]
}

// parseParams collects the parenthesized parameter list: ANSI declarators
// with types, bare K&R names (typed later), a lone void, or an ellipsis.
func (l *Linker) parseParams() (params []paramSite, variadic bool) {
	if l.peek() == token.RPAREN {
		return nil, false
	}
	for {
		switch {
		case l.peek() == token.ELLIPSE:
			l.cur.ReadToken()
			variadic = true
		case l.peek() == token.SYMBOL && !l.isTypedefName():
			tokOff := l.cur.Pos()
			l.cur.ReadToken()
			name := l.Names.Name(int(l.cur.ReadUint32()))
			params = append(params, paramSite{
				v:      symtab.Variable{Name: name, Type: symtab.Type{Base: token.INT}},
				symOff: tokOff,
				tagIdx: -1,
			})
		default:
			base, _, _, pconst := l.parseSpecifiers()
			t := base
			for l.peek() == token.MUL {
				l.cur.ReadToken()
				t.Indirect++
			}
			site := paramSite{symOff: -1, tagIdx: -1}
			if (t.Base == token.STRUCT || t.Base == token.UNION) && t.StructName != "" {
				if tag := l.tags[t.StructName]; tag != nil {
					site.tagIdx = tag.Index
				}
			}
			var name string
			if l.peek() == token.SYMBOL {
				site.symOff = l.cur.Pos()
				l.cur.ReadToken()
				name = l.Names.Name(int(l.cur.ReadUint32()))
			}
			l.parseDims(&t)
			if t.IsArray() {
				e := t.Elem()
				e.Indirect++
				t = e // array parameters decay to pointers
			}
			site.v = symtab.Variable{Name: name, Type: t, Const: pconst}
			params = append(params, site)
		}
		if l.peek() == token.COMMA {
			l.cur.ReadToken()
			continue
		}
		return params, variadic
	}
}

// isTypedefName reports whether the SYMBOL at the cursor names a typedef,
// distinguishing "f(mytype)" (an ANSI unnamed parameter) from "f(a)" (a
// K&R parameter name).
func (l *Linker) isTypedefName() bool {
	name := l.Names.Name(int(l.cur.PeekUint32At(1)))
	_, ok := l.typedefs[name]
	return ok
}

// parseKRDecls refines the bare K&R parameter names with the
// semicolon-separated declarations between ')' and '{'.
func (l *Linker) parseKRDecls(params []paramSite) {
	for {
		tok := l.peek()
		if tok == token.LBRACE || tok == token.EOF {
			return
		}
		base, _, _, pconst := l.parseSpecifiers()
		for {
			t := base
			for l.peek() == token.MUL {
				l.cur.ReadToken()
				t.Indirect++
			}
			if l.peek() != token.SYMBOL {
				l.errorf(vclerr.NoIdentErr, "expected parameter name")
				panic(declSkip{})
			}
			tokOff := l.cur.Pos()
			l.cur.ReadToken()
			name := l.Names.Name(int(l.cur.ReadUint32()))
			l.Buf.PatchByte(tokOff, byte(token.IDENTIFIER))
			l.parseDims(&t)
			if t.IsArray() {
				e := t.Elem()
				e.Indirect++
				t = e
			}
			found := false
			for i := range params {
				if params[i].v.Name == name {
					params[i].v.Type = t
					params[i].v.Const = pconst
					found = true
					break
				}
			}
			if !found {
				l.errorf(vclerr.ArgErr, "%s is not a parameter of this function", name)
			}
			if l.peek() == token.COMMA {
				l.cur.ReadToken()
				continue
			}
			break
		}
		l.expect(token.SEMICOLON)
	}
}

// buildBlob encodes the parameter list as the terminated byte sequence
// prototypes are compared with: per parameter the base type (with the
// unsigned bit folded in), the defining tag's index for an aggregate, and
// the indirection depth; a void-only list encodes as (VOID, 0).
func (l *Linker) buildBlob(params []paramSite, variadic bool) []byte {
	var blob []byte
	for _, p := range params {
		b := byte(p.v.Type.Base)
		if p.v.Type.Unsigned {
			b |= unsignedBit
		}
		blob = append(blob, b)
		if p.v.Type.Base == token.STRUCT || p.v.Type.Base == token.UNION {
			var tag [4]byte
			binary.LittleEndian.PutUint32(tag[:], uint32(p.tagIdx))
			blob = append(blob, tag[:]...)
		}
		blob = append(blob, byte(p.v.Type.Indirect))
	}
	if variadic {
		blob = append(blob, byte(token.ELLIPSE))
	}
	return append(blob, protoEnd)
}

// attachPrototype installs the blob and return type on first sight and
// compares byte-for-byte on every later declaration; any mismatch is
// fatal to the whole link.
func (l *Linker) attachPrototype(f *symtab.Function, ret symtab.Type, blob []byte, pos token.Pos) {
	if f.Prototype != nil {
		same := bytes.Equal(f.Prototype, blob) &&
			f.Return.Base == ret.Base &&
			f.Return.Unsigned == ret.Unsigned &&
			f.Return.Indirect == ret.Indirect
		if !same {
			l.fatalf(vclerr.MismatchErr, "declaration of %s does not match its prototype", f.Name)
		}
		return
	}
	f.Prototype = blob
	f.Return = ret
	if f.ProtoPos == 0 {
		f.ProtoPos = pos
	}
}

// linkBody walks a function body from its '{' to the matching '}',
// declaring block locals, resolving goto targets, and rewriting every
// symbol token it passes.
func (l *Linker) linkBody(f *symtab.Function, frameOff *int) {
	depth := 0
	prev := token.ILLEGAL
	for {
		l.marks()
		tokOff := l.cur.Pos()
		tok := l.cur.PeekToken()
		switch {
		case tok == token.LBRACE:
			l.cur.ReadToken()
			depth++
		case tok == token.RBRACE:
			l.cur.ReadToken()
			depth--
			if depth == 0 {
				return
			}
			l.popLocals(depth)
		case tok == token.EOF:
			l.errorf(vclerr.RBraceErr, "missing '}' in function %s", f.Name)
			panic(declSkip{})
		case l.isBodyDeclStart(tok, prev):
			l.linkLocalDecl(f, frameOff, depth)
			tok = token.SEMICOLON
		case tok == token.SYMBOL:
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

// isBodyDeclStart reports whether tok opens a declaration at a statement
// position: type keywords and storage classes qualify only when the
// previous significant token ended a statement, so a cast's "(int)" or a
// "sizeof(struct s)" mid-expression stays expression territory.
func (l *Linker) isBodyDeclStart(tok token.Token, prev token.Token) bool {
	switch prev {
	case token.ILLEGAL, token.LBRACE, token.RBRACE, token.SEMICOLON, token.COLON:
	default:
		return false
	}
	if decl.StartsDeclaration(tok) {
		return true
	}
	if tok == token.SYMBOL {
		name := l.Names.Name(int(l.cur.PeekUint32At(1)))
		_, ok := l.typedefs[name]
		return ok
	}
	return false
}
