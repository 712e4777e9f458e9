package machine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vastcl/vcl/lang/symtab"
	"github.com/vastcl/vcl/lang/token"
)

func slotOf(base token.Token, unsigned bool) Slot {
	return Slot{Type: symtab.Type{Base: base, Unsigned: unsigned}}
}

func TestPromoteCommutative(t *testing.T) {
	bases := []Slot{
		slotOf(token.CHAR, false),
		slotOf(token.CHAR, true),
		slotOf(token.INT, false),
		slotOf(token.INT, true),
		slotOf(token.LONG, false),
		slotOf(token.LONG, true),
		slotOf(token.FLOAT, false),
	}
	for _, a := range bases {
		for _, b := range bases {
			ab, au, ak := Promote(a, b)
			ba, bu, bk := Promote(b, a)
			require.Equal(t, ab, ba, "%v vs %v", a.Type, b.Type)
			require.Equal(t, au, bu, "%v vs %v", a.Type, b.Type)
			require.Equal(t, ak, bk, "%v vs %v", a.Type, b.Type)
		}
	}
}

func TestPromoteLongUnsignedIntTieBreak(t *testing.T) {
	long := slotOf(token.LONG, false)
	uint_ := slotOf(token.INT, true)
	base, unsigned, kind := Promote(long, uint_)
	require.Equal(t, token.LONG, base)
	require.True(t, unsigned)
	require.Equal(t, KindUnsignedLong, kind)
}

func TestPromoteFloatDominates(t *testing.T) {
	f := slotOf(token.FLOAT, false)
	ul := slotOf(token.LONG, true)
	base, _, kind := Promote(f, ul)
	require.Equal(t, token.FLOAT, base)
	require.Equal(t, KindFloatKind, kind)
}

func TestStoreNarrowing(t *testing.T) {
	c := Slot{Type: symtab.Type{Base: token.CHAR}}
	got := Store(c, LongSlot(0x1234))
	require.Equal(t, int8(0x34), got.Char)

	i := Slot{Type: symtab.Type{Base: token.INT, Unsigned: true}}
	got = Store(i, LongSlot(-1))
	require.Equal(t, uint32(0xFFFFFFFF), got.UInt)

	f := Slot{Type: symtab.Type{Base: token.FLOAT}}
	got = Store(f, IntSlot(7))
	require.Equal(t, 7.0, got.Float)
}

func TestStackDiscipline(t *testing.T) {
	var s Stack
	require.Equal(t, 0, s.Len())
	s.Push(IntSlot(1))
	require.Equal(t, 1, s.Len())
	s.Push(LongSlot(2))
	require.Equal(t, 2, s.Len())

	v := s.Pop()
	require.Equal(t, 1, s.Len())
	require.Equal(t, int64(2), v.AsInt64())

	s.TopDup()
	require.Equal(t, 2, s.Len())
	require.Equal(t, s.Top().AsInt64(), int64(1))

	s.Pop()
	s.Pop()
	require.Equal(t, 0, s.Len())

	require.PanicsWithError(t, "operand stack underflow", func() { s.Pop() })
}

func TestDataArenaRewind(t *testing.T) {
	var d Data
	h1 := d.Alloc(8)
	mark := d.Mark()
	h2 := d.Alloc(16)
	require.Equal(t, 8, h2.Offset)
	require.Equal(t, 24, d.Mark())

	copy(d.Bytes(h1), []byte{1, 2, 3})
	d.Rewind(mark)
	require.Equal(t, 8, d.Mark())
	require.Equal(t, byte(1), d.Bytes(h1)[0], "rewind must not disturb earlier frames")
}

func TestDataCString(t *testing.T) {
	var d Data
	h := d.Alloc(6)
	copy(d.Bytes(h), "abc\x00x")
	require.Equal(t, "abc", d.CString(h.Offset))
}

func TestWidenReinterpretsSignedness(t *testing.T) {
	c := Slot{Type: symtab.Type{Base: token.CHAR}, Char: -1}
	w := Widen(c, token.LONG, false)
	require.Equal(t, int64(-1), w.AsInt64())

	u := Widen(c, token.LONG, true)
	require.Equal(t, token.LONG, u.Type.Base)
	require.True(t, u.Type.Unsigned)
}

func TestSlotAsInt64Pointer(t *testing.T) {
	p := Slot{Type: symtab.Type{Base: token.INT, Indirect: 1}, PtrValue: Handle{Offset: 40}}
	require.Equal(t, int64(40), p.AsInt64())
	require.True(t, p.IsPointer())
}

func TestDecayType(t *testing.T) {
	arr := symtab.Type{Base: token.INT, Dims: []int{5}}
	d := decayType(arr)
	require.Equal(t, 1, d.Indirect)
	require.Empty(t, d.Dims)
	require.Equal(t, token.INT, d.Base)

	// a plain pointer is unchanged
	p := symtab.Type{Base: token.CHAR, Indirect: 2}
	require.Equal(t, p, decayType(p))
}
