// Package linker implements the single left-to-right pass over the
// pseudocode that declares globals, installs function bodies and
// prototypes, recursively declares every block's locals, and rewrites
// each SYMBOL token in place to an IDENTIFIER token carrying its
// variable-arena index (or a FUNCREF carrying a function index). The only
// names the runtime still resolves are struct/union members after '.' or
// '->': those tokens become IDENTIFIER but keep their name index, which is
// looked up against the operand's struct scope.
package linker

import (
	"github.com/vastcl/vcl/lang/machine"
	"github.com/vastcl/vcl/lang/pcode"
	"github.com/vastcl/vcl/lang/symtab"
	"github.com/vastcl/vcl/lang/token"
	"github.com/vastcl/vcl/lang/vclerr"
)

// Linker holds the pass state. It borrows the engine's machine.Context
// (and through it the data arena) so that global and static initializers
// are evaluated by the same initializer engine the statement executor
// uses at runtime, with offsets resolving absolutely since no call frame
// exists yet.
type Linker struct {
	FileSet *token.FileSet
	Buf     *pcode.Buffer
	Names   *symtab.NameTable
	Funcs   *symtab.FuncTable
	Symbols *symtab.SymbolTable
	Vars    *symtab.VarArena
	Errors  *vclerr.List
	Ctx     *machine.Context

	cur *pcode.Cursor

	file, line int

	tags     map[string]*symtab.Variable // struct/union/enum tags
	typedefs map[string]*symtab.Variable

	fn     *symtab.Function
	locals []*symtab.Variable // visible locals, innermost last
}

// New builds a Linker over the scanner's output. ctx must be the context
// the runtime will later execute with: the linker populates its data arena
// with globals and evaluates constant initializers through it.
func New(fset *token.FileSet, buf *pcode.Buffer, names *symtab.NameTable, funcs *symtab.FuncTable, ctx *machine.Context) *Linker {
	l := &Linker{
		FileSet:  fset,
		Buf:      buf,
		Names:    names,
		Funcs:    funcs,
		Symbols:  ctx.Symbols,
		Vars:     ctx.Vars,
		Errors:   &vclerr.List{FileSet: fset},
		Ctx:      ctx,
		tags:     make(map[string]*symtab.Variable),
		typedefs: make(map[string]*symtab.Variable),
	}
	l.cur = pcode.NewCursor(buf)
	ctx.Code = l.cur
	return l
}

// fatalLink aborts the whole pass (prototype mismatch and friends), while
// declSkip abandons only the current top-level declaration, resuming at
// the next ';' or '}' so independent errors all get reported.
type fatalLink struct{ code vclerr.Code }
type declSkip struct{}

// Run executes the pass and returns the accumulated diagnostics, nil if
// the program linked cleanly.
func (l *Linker) Run() (err error) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(fatalLink); ok {
				err = l.Errors.Err()
				return
			}
			panic(r)
		}
	}()

	l.cur.Seek(0)
	for {
		l.marks()
		if l.cur.AtEnd() || l.cur.PeekToken() == token.EOF {
			break
		}
		l.linkTopLevel()
	}
	l.verify()
	if l.Errors.HasErrors() {
		return l.Errors.Err()
	}
	return nil
}

// linkTopLevel processes one file-scope site: a data declaration, a
// typedef, a tag declaration, or a function prototype/definition. A
// malformed declaration is skipped to its end so the pass can keep going.
func (l *Linker) linkTopLevel() {
	defer func() {
		if r := recover(); r != nil {
			switch r.(type) {
			case declSkip:
				l.skipToTopLevelBoundary()
			case *machine.RuntimeError:
				l.errorf(vclerr.ConstExprErr, "%s", r.(*machine.RuntimeError).Detail)
				l.skipToTopLevelBoundary()
			default:
				panic(r)
			}
		}
	}()

	typ, storage, isTypedef, isConst := l.parseSpecifiers()

	indirect := 0
	for l.peek() == token.MUL {
		l.cur.ReadToken()
		indirect++
	}

	switch l.peek() {
	case token.FUNCTION, token.FUNCREF:
		ret := typ
		ret.Indirect = indirect
		if isTypedef {
			l.errorf(vclerr.TypedefErr, "typedef cannot declare a function body")
		}
		l.linkFunction(ret, storage)
	case token.SYMBOL:
		l.linkGlobalDecl(typ, indirect, storage, isTypedef, isConst)
	case token.SEMICOLON:
		l.cur.ReadToken() // tag-only struct/union/enum declaration
	default:
		l.errorf(vclerr.SyntaxErr, "unexpected %v at file scope", l.peek())
		panic(declSkip{})
	}
}

// skipToTopLevelBoundary resynchronizes after a bad declaration: scan to
// the next ';' at zero nesting, or past a balanced '{...}'.
func (l *Linker) skipToTopLevelBoundary() {
	depth := 0
	for !l.cur.AtEnd() {
		tok := l.cur.ReadToken()
		switch tok {
		case token.LBRACE:
			depth++
		case token.RBRACE:
			depth--
			if depth <= 0 {
				return
			}
		case token.SEMICOLON:
			if depth == 0 {
				return
			}
		case token.EOF:
			return
		default:
			l.skipPayload(tok)
		}
	}
}

// verify is the end-of-pass check: every global resolved and every declared
// function backed by a body or a library code. A missing main is not
// checked here; Engine.Execute reports it.
func (l *Linker) verify() {
	for i := 0; i < l.Vars.Len(); i++ {
		v := l.Vars.At(i)
		if v.Kind == symtab.KindVariable && !v.Local && v.Storage&symtab.StorageExternal != 0 {
			l.file, l.line = v.Pos.FileLine()
			l.errorf(vclerr.UnresolvedErr, "extern %s is never defined", v.Name)
		}
	}
	for _, f := range l.Funcs.All() {
		if f.LibCode == 0 && !f.Defined {
			pos := f.Pos
			if pos == 0 {
				pos = f.ProtoPos
			}
			l.file, l.line = pos.FileLine()
			l.errorf(vclerr.UndefuncErr, "function %s has no body", f.Name)
		}
	}
}

// marks consumes any run of FILE_LINE_MARK tokens, tracking the current
// source position for diagnostics.
func (l *Linker) marks() {
	for !l.cur.AtEnd() && l.cur.PeekToken() == token.LINENO {
		l.cur.ReadToken()
		pos := token.Pos(l.cur.ReadUint32())
		l.file, l.line = pos.FileLine()
	}
}

// peek returns the next significant token.
func (l *Linker) peek() token.Token {
	l.marks()
	return l.cur.PeekToken()
}

func (l *Linker) pos() token.Pos { return token.MakePos(l.file, l.line) }

func (l *Linker) errorf(code vclerr.Code, format string, args ...any) {
	l.Errors.Errorf(code, l.pos(), format, args...)
}

// fatalf records the diagnostic and aborts the whole link pass.
func (l *Linker) fatalf(code vclerr.Code, format string, args ...any) {
	l.errorf(code, format, args...)
	panic(fatalLink{code})
}

func (l *Linker) expect(tok token.Token) {
	if got := l.peek(); got != tok {
		l.errorf(vclerr.SyntaxErr, "expected %#v, found %#v", tok, got)
		panic(declSkip{})
	}
	l.cur.ReadToken()
}

// skipPayload consumes the fixed-width payload following tok.
func (l *Linker) skipPayload(tok token.Token) {
	switch tok {
	case token.LINENO, token.IDENTIFIER, token.SYMBOL, token.FUNCTION, token.FUNCREF,
		token.INTCONST, token.UINTCONST:
		l.cur.ReadUint32()
	case token.LNGCONST, token.ULNGCONST, token.FLTCONST:
		l.cur.ReadUint64()
	case token.CHRCONST:
		l.cur.ReadByte()
	case token.STRCONST:
		n := int(l.cur.ReadByte())
		l.cur.ReadN(n)
	}
}

// patchToIdentifier rewrites the SYMBOL token at tokOff to IDENTIFIER with
// payload as its new 4-byte operand.
func (l *Linker) patchToIdentifier(tokOff int, payload uint32) {
	l.Buf.PatchByte(tokOff, byte(token.IDENTIFIER))
	l.Buf.PatchUint32(tokOff+1, payload)
}

// patchToFuncref rewrites the SYMBOL token at tokOff to FUNCREF + function
// index.
func (l *Linker) patchToFuncref(tokOff int, idx uint32) {
	l.Buf.PatchByte(tokOff, byte(token.FUNCREF))
	l.Buf.PatchUint32(tokOff+1, idx)
}

// findLocal resolves name against the visible locals, innermost first.
func (l *Linker) findLocal(name string) *symtab.Variable {
	for i := len(l.locals) - 1; i >= 0; i-- {
		if l.locals[i].Name == name {
			return l.locals[i]
		}
	}
	return nil
}

// popLocals drops visibility of locals declared deeper than depth; their
// arena records live on for the runtime.
func (l *Linker) popLocals(depth int) {
	keep := l.locals[:0]
	for _, v := range l.locals {
		if v.Depth <= depth {
			keep = append(keep, v)
		}
	}
	l.locals = keep
}
