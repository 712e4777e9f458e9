package scanner

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vastcl/vcl/lang/pcode"
	"github.com/vastcl/vcl/lang/token"
)

func scan(t *testing.T, src string) *Scanner {
	t.Helper()
	fset := token.NewFileSet()
	_, err := fset.AddFile("t.vcl", "t.vcl")
	require.NoError(t, err)
	s := NewScanner(fset, []byte(src))
	require.NoError(t, s.Run())
	return s
}

func TestKeywordAndPunctuation(t *testing.T) {
	s := scan(t, "/*1@1*/if (x) {}\n")
	cur := pcode.NewCursor(s.Out)
	require.Equal(t, token.LINENO, cur.ReadToken())
	cur.ReadUint32()
	require.Equal(t, token.IF, cur.ReadToken())
	require.Equal(t, token.LPAREN, cur.ReadToken())
	require.Equal(t, token.SYMBOL, cur.ReadToken())
	cur.ReadUint32()
	require.Equal(t, token.RPAREN, cur.ReadToken())
	require.Equal(t, token.LBRACE, cur.ReadToken())
	require.Equal(t, token.RBRACE, cur.ReadToken())
}

func TestCompoundAssignFolding(t *testing.T) {
	s := scan(t, "/*1@1*/x += 1;\n")
	cur := pcode.NewCursor(s.Out)
	cur.ReadToken()
	cur.ReadUint32()
	cur.ReadToken() // SYMBOL
	cur.ReadUint32()
	tok := cur.ReadToken()
	require.True(t, tok.IsOpAssign())
	require.Equal(t, token.ADD, tok.Base())
}

func TestShiftFolding(t *testing.T) {
	s := scan(t, "/*1@1*/x << 2;\n")
	cur := pcode.NewCursor(s.Out)
	cur.ReadToken()
	cur.ReadUint32()
	cur.ReadToken()
	cur.ReadUint32()
	require.Equal(t, token.SHL, cur.ReadToken())
}

func TestIntegerPromotion(t *testing.T) {
	s := scan(t, "/*1@1*/5000000000;\n")
	cur := pcode.NewCursor(s.Out)
	cur.ReadToken()
	cur.ReadUint32()
	require.Equal(t, token.ULNGCONST, cur.ReadToken())
}

func TestStringLiteralConcatenation(t *testing.T) {
	s := scan(t, "/*1@1*/\"ab\" \"cd\";\n")
	cur := pcode.NewCursor(s.Out)
	cur.ReadToken()
	cur.ReadUint32()
	require.Equal(t, token.STRCONST, cur.ReadToken())
	n := cur.ReadByte()
	require.Equal(t, byte(5), n) // "abcd" + NUL
	payload := cur.ReadN(int(n))
	require.Equal(t, "abcd", string(payload[:n-1]))
	require.Equal(t, byte(0), payload[n-1])
}

func TestFunctionDeclarationSite(t *testing.T) {
	s := scan(t, "/*1@1*/int foo() { return 1; }\n")
	cur := pcode.NewCursor(s.Out)
	cur.ReadToken()
	cur.ReadUint32()
	require.Equal(t, token.INT, cur.ReadToken())
	require.Equal(t, token.FUNCTION, cur.ReadToken())
	cur.ReadUint32()
	f := s.Funcs.At(0)
	require.Equal(t, "foo", f.Name)
}

func TestGotoLabel(t *testing.T) {
	s := scan(t, "/*1@1*/done: x = 1;\n")
	require.False(t, s.Errors.HasErrors())
	cur := pcode.NewCursor(s.Out)
	cur.ReadToken()
	cur.ReadUint32()
	require.Equal(t, token.SYMBOL, cur.ReadToken())
}
