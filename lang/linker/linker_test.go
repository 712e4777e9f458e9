package linker_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vastcl/vcl/lang/builtin"
	"github.com/vastcl/vcl/lang/linker"
	"github.com/vastcl/vcl/lang/machine"
	"github.com/vastcl/vcl/lang/pcode"
	"github.com/vastcl/vcl/lang/scanner"
	"github.com/vastcl/vcl/lang/symtab"
	"github.com/vastcl/vcl/lang/token"
)

// link scans and links src (already preprocessed text with markers) and
// returns the populated pieces.
func link(t *testing.T, src string) (*scanner.Scanner, *machine.Context, error) {
	t.Helper()
	fset := token.NewFileSet()
	_, err := fset.AddFile("t.vcl", "t.vcl")
	require.NoError(t, err)

	s := scanner.NewScanner(fset, []byte(src))
	s.LibLookup = builtin.Lookup
	require.NoError(t, s.Run())

	ctx := &machine.Context{
		Symbols: &symtab.SymbolTable{},
		Vars:    &symtab.VarArena{},
		Funcs:   s.Funcs,
	}
	ctx.Data.Alloc(8)

	lk := linker.New(fset, s.Out, s.Names, s.Funcs, ctx)
	return s, ctx, lk.Run()
}

// TestNoSymbolTokenSurvives asserts the §8 invariant: after a clean link
// no SYMBOL token remains anywhere in the stream.
func TestNoSymbolTokenSurvives(t *testing.T) {
	_, ctx, err := link(t, `/*1@1*/int g = 3;
/*1@2*/int twice(int n) { return n + n + g; }
/*1@3*/int main(void) { int local; local = twice(g); return local; }
`)
	require.NoError(t, err)

	cur := pcode.NewCursor(ctx.Code.Buffer())
	for !cur.AtEnd() {
		tok := cur.ReadToken()
		require.NotEqual(t, token.SYMBOL, tok, "SYMBOL token survived linking at offset %d", cur.Pos()-1)
		skipPayload(cur, tok)
	}
}

func skipPayload(cur *pcode.Cursor, tok token.Token) {
	switch tok {
	case token.LINENO, token.IDENTIFIER, token.SYMBOL, token.FUNCTION, token.FUNCREF,
		token.INTCONST, token.UINTCONST:
		cur.ReadUint32()
	case token.LNGCONST, token.ULNGCONST, token.FLTCONST:
		cur.ReadUint64()
	case token.CHRCONST:
		cur.ReadByte()
	case token.STRCONST:
		n := int(cur.ReadByte())
		cur.ReadN(n)
	}
}

func TestGlobalAllocationAndInit(t *testing.T) {
	_, ctx, err := link(t, `/*1@1*/int a = 5, b;
/*1@2*/int main(void) { return 0; }
`)
	require.NoError(t, err)

	sym, ok := ctx.Symbols.Lookup("a")
	require.True(t, ok)
	require.NotZero(t, sym.Var.Offset, "offset zero is reserved for the null guard")

	v := ctx.Load(machine.Handle{Offset: sym.Var.Offset, Width: 4}, sym.Var.Type)
	require.Equal(t, int64(5), v.AsInt64())

	symB, ok := ctx.Symbols.Lookup("b")
	require.True(t, ok)
	require.NotEqual(t, sym.Var.Offset, symB.Var.Offset)
}

func TestPrototypeBlobsCompareEqual(t *testing.T) {
	s, _, err := link(t, `/*1@1*/int f(int, long);
/*1@2*/int f(int a, long b) { return a; }
/*1@3*/int main(void) { return f(1, 2); }
`)
	require.NoError(t, err)

	_, f, ok := s.Funcs.Find("f")
	require.True(t, ok)
	require.True(t, f.Defined)
	require.NotNil(t, f.Prototype)
	require.Equal(t, byte(0xFF), f.Prototype[len(f.Prototype)-1])
}

func TestPrototypeMismatchAborts(t *testing.T) {
	_, _, err := link(t, `/*1@1*/int f(int);
/*1@2*/int f(long x) { return 0; }
/*1@3*/int main(void) { return 0; }
`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "prototype")
}

func TestUndefinedFunctionFails(t *testing.T) {
	_, _, err := link(t, `/*1@1*/int missing(int);
/*1@2*/int main(void) { return missing(1); }
`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "missing")
}

func TestUnresolvedExternFails(t *testing.T) {
	_, _, err := link(t, `/*1@1*/extern int ghost;
/*1@2*/int main(void) { return ghost; }
`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "ghost")
}

func TestExternResolvedByLaterDefinition(t *testing.T) {
	_, ctx, err := link(t, `/*1@1*/extern int shared;
/*1@2*/int main(void) { return shared; }
/*1@3*/int shared = 9;
`)
	require.NoError(t, err)

	sym, ok := ctx.Symbols.Lookup("shared")
	require.True(t, ok)
	require.Zero(t, sym.Var.Storage&symtab.StorageExternal)
}

func TestLocalsGetFrameOffsets(t *testing.T) {
	s, _, err := link(t, `/*1@1*/int main(void) { int a; long b; char c; return 0; }
`)
	require.NoError(t, err)

	_, f, ok := s.Funcs.Find("main")
	require.True(t, ok)
	// a at 0 (4 bytes), b at 4 (8 bytes), c at 12 (1 byte)
	require.Equal(t, 13, f.FrameSize)
}

func TestCharParamStagedAtIntWidth(t *testing.T) {
	s, _, err := link(t, `/*1@1*/int f(char c, int n) { return n; }
/*1@2*/int main(void) { return f('x', 1); }
`)
	require.NoError(t, err)

	_, f, ok := s.Funcs.Find("f")
	require.True(t, ok)
	require.Len(t, f.Params, 2)
	require.Equal(t, 0, f.Params[0].Offset)
	require.Equal(t, 4, f.Params[1].Offset, "char argument occupies an int-wide slot")
}

func TestStructLayout(t *testing.T) {
	_, ctx, err := link(t, `/*1@1*/struct pair { int a; long b; };
/*1@2*/struct pair g;
/*1@3*/int main(void) { return 0; }
`)
	require.NoError(t, err)

	sym, ok := ctx.Symbols.Lookup("g")
	require.True(t, ok)
	require.Equal(t, 12, sym.Var.Type.Size())
	m, ok := sym.Var.Type.Members.Find("b")
	require.True(t, ok)
	require.Equal(t, 4, m.Offset)
}

func TestEnumCounterResumes(t *testing.T) {
	_, ctx, err := link(t, `/*1@1*/enum e { A, B = 7, C };
/*1@2*/int main(void) { return 0; }
`)
	require.NoError(t, err)

	for name, want := range map[string]int64{"A": 0, "B": 7, "C": 8} {
		sym, ok := ctx.Symbols.Lookup(name)
		require.True(t, ok, name)
		v := ctx.Load(machine.Handle{Offset: sym.Var.Offset, Width: 4}, sym.Var.Type)
		require.Equal(t, want, v.AsInt64(), name)
	}
}
