package token

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenString(t *testing.T) {
	require.Equal(t, "+", ADD.String())
	require.Equal(t, "+=", (ADD | OpAssign).String())
	require.Equal(t, "if", IF.String())
	require.Equal(t, "<unknown token>", Token(1).String())
}

func TestTokenGoString(t *testing.T) {
	require.Equal(t, "'+'", ADD.GoString())
	require.Equal(t, "if", IF.GoString())
}

func TestOpAssign(t *testing.T) {
	require.True(t, ADD.IsOpAssignable())
	require.True(t, SHL.IsOpAssignable())
	require.False(t, ASSIGN.IsOpAssignable())
	require.False(t, COMMA.IsOpAssignable())

	withFlag := ADD | OpAssign
	require.True(t, withFlag.IsOpAssign())
	require.Equal(t, ADD, withFlag.Base())
	require.False(t, ADD.IsOpAssign())
}

func TestLookupTwoCharOp(t *testing.T) {
	cases := []struct {
		a, b byte
		want Token
	}{
		{'=', '=', EQ},
		{'!', '=', NE},
		{'&', '&', LAND},
		{'|', '|', LIOR},
		{'+', '+', INCR},
		{'-', '-', DECR},
		{'-', '>', ARROW},
		{'<', '<', SHL},
		{'>', '>', SHR},
		{'<', '=', LE},
		{'>', '=', GE},
	}
	for _, c := range cases {
		got, ok := LookupTwoCharOp(c.a, c.b)
		require.True(t, ok)
		require.Equal(t, c.want, got)
	}

	_, ok := LookupTwoCharOp('x', 'y')
	require.False(t, ok)
}

func TestLookupKeyword(t *testing.T) {
	for _, kw := range keywords {
		tok, ok := LookupKeyword(kw.name)
		require.True(t, ok)
		require.Equal(t, kw.tok, tok)
	}

	_, ok := LookupKeyword("not_a_keyword")
	require.False(t, ok)
}

func TestIsTypeKeyword(t *testing.T) {
	require.True(t, IsTypeKeyword(INT))
	require.True(t, IsTypeKeyword(STRUCT))
	require.False(t, IsTypeKeyword(IF))
	require.False(t, IsTypeKeyword(AUTO))
}

func TestIsStorageClass(t *testing.T) {
	require.True(t, IsStorageClass(STATIC))
	require.True(t, IsStorageClass(TYPEDEF))
	require.False(t, IsStorageClass(INT))
}
