package pcode

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vastcl/vcl/lang/token"
)

func TestEmitAndRead(t *testing.T) {
	var buf Buffer
	buf.EmitToken(token.IF)
	buf.EmitToken(token.INTCONST)
	buf.EmitUint32(42)
	buf.EmitToken(token.LNGCONST)
	buf.EmitUint64(1 << 40)
	buf.EmitToken(token.STRCONST)
	buf.EmitByte(3)
	buf.EmitBytes([]byte{'h', 'i', 0})

	cur := NewCursor(&buf)
	require.Equal(t, token.IF, cur.ReadToken())
	require.Equal(t, token.INTCONST, cur.ReadToken())
	require.Equal(t, uint32(42), cur.ReadUint32())
	require.Equal(t, token.LNGCONST, cur.ReadToken())
	require.Equal(t, uint64(1)<<40, cur.ReadUint64())
	require.Equal(t, token.STRCONST, cur.ReadToken())
	n := int(cur.ReadByte())
	require.Equal(t, []byte{'h', 'i', 0}, cur.ReadN(n))
	require.True(t, cur.AtEnd())
}

func TestPatchRewritesInPlace(t *testing.T) {
	var buf Buffer
	tokOff := buf.EmitToken(token.SYMBOL)
	payloadOff := buf.EmitUint32(7)

	buf.PatchByte(tokOff, byte(token.IDENTIFIER))
	buf.PatchUint32(payloadOff, 99)

	cur := NewCursor(&buf)
	require.Equal(t, token.IDENTIFIER, cur.ReadToken())
	require.Equal(t, uint32(99), cur.ReadUint32())
	require.Equal(t, 5, buf.Len(), "patching must not change the stream length")
}

func TestSeekAndPeek(t *testing.T) {
	var buf Buffer
	buf.EmitToken(token.WHILE)
	mark := buf.Len()
	buf.EmitToken(token.LPAREN)
	buf.EmitToken(token.RPAREN)

	cur := NewCursor(&buf)
	require.Equal(t, token.WHILE, cur.PeekToken())
	cur.ReadToken()
	cur.ReadToken()
	cur.Seek(mark)
	require.Equal(t, token.LPAREN, cur.ReadToken())
	require.Equal(t, byte(token.RPAREN), cur.PeekByteAt(0))
	require.Same(t, &buf, cur.Buffer())
}
