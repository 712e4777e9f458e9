package builtin

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vastcl/vcl/lang/machine"
	"github.com/vastcl/vcl/lang/symtab"
	"github.com/vastcl/vcl/lang/token"
)

func TestLookup(t *testing.T) {
	for _, entry := range catalog {
		code, ok := Lookup(entry.name)
		require.True(t, ok, entry.name)
		require.Equal(t, entry.code, code, entry.name)
	}
	_, ok := Lookup("not_a_builtin")
	require.False(t, ok)
	_, ok = Lookup("")
	require.False(t, ok)
}

func newTestCtx() *machine.Context {
	c := &machine.Context{}
	c.Data.Alloc(8) // null guard
	return c
}

func strSlot(c *machine.Context, s string) machine.Slot {
	h := c.Data.Alloc(len(s) + 1)
	copy(c.Data.Bytes(h), s)
	return machine.Slot{
		Type:     symtab.Type{Base: token.CHAR, Indirect: 1},
		PtrValue: h,
	}
}

func dispatch(t *testing.T, h *Host, c *machine.Context, code Code, args ...machine.Slot) machine.Slot {
	t.Helper()
	fn := &symtab.Function{Name: "test", LibCode: code}
	out, err := h.Dispatch(c, fn, args)
	require.NoError(t, err)
	return out
}

func TestPrintfFormatting(t *testing.T) {
	var stdout bytes.Buffer
	h := NewHost(strings.NewReader(""), &stdout, &stdout)
	c := newTestCtx()

	n := dispatch(t, h, c, LibPrintf,
		strSlot(c, "%d %s %c %x %05d %.2f\n"),
		machine.IntSlot(-3),
		strSlot(c, "str"),
		machine.IntSlot('Q'),
		machine.IntSlot(255),
		machine.IntSlot(42),
		machine.FloatSlot(3.14159),
	)
	require.Equal(t, "-3 str Q ff 00042 3.14\n", stdout.String())
	require.Equal(t, int64(len(stdout.String())), n.AsInt64())
}

func TestPrintfPercentEscape(t *testing.T) {
	var stdout bytes.Buffer
	h := NewHost(strings.NewReader(""), &stdout, &stdout)
	c := newTestCtx()
	dispatch(t, h, c, LibPrintf, strSlot(c, "100%%\n"))
	require.Equal(t, "100%\n", stdout.String())
}

func TestStringFamily(t *testing.T) {
	var stdout bytes.Buffer
	h := NewHost(strings.NewReader(""), &stdout, &stdout)
	c := newTestCtx()

	buf := c.Data.Alloc(32)
	dst := machine.Slot{Type: symtab.Type{Base: token.CHAR, Indirect: 1}, PtrValue: buf}

	dispatch(t, h, c, LibStrcpy, dst, strSlot(c, "foo"))
	require.Equal(t, "foo", c.Data.CString(buf.Offset))

	dispatch(t, h, c, LibStrcat, dst, strSlot(c, "bar"))
	require.Equal(t, "foobar", c.Data.CString(buf.Offset))

	n := dispatch(t, h, c, LibStrlen, dst)
	require.Equal(t, int64(6), n.AsInt64())

	cmp := dispatch(t, h, c, LibStrcmp, dst, strSlot(c, "foobar"))
	require.Equal(t, int64(0), cmp.AsInt64())

	cmp = dispatch(t, h, c, LibStrncmp, dst, strSlot(c, "foozzz"), machine.IntSlot(3))
	require.Equal(t, int64(0), cmp.AsInt64())
}

func TestAtoiAtof(t *testing.T) {
	var stdout bytes.Buffer
	h := NewHost(strings.NewReader(""), &stdout, &stdout)
	c := newTestCtx()

	v := dispatch(t, h, c, LibAtoi, strSlot(c, "  123"))
	require.Equal(t, int64(123), v.AsInt64())

	f := dispatch(t, h, c, LibAtof, strSlot(c, "2.5"))
	require.Equal(t, 2.5, f.AsFloat64())
}

func TestMallocTracksBlocks(t *testing.T) {
	var stdout bytes.Buffer
	h := NewHost(strings.NewReader(""), &stdout, &stdout)
	c := newTestCtx()

	p := dispatch(t, h, c, LibMalloc, machine.IntSlot(16))
	require.NotZero(t, p.PtrValue.Offset)
	require.Len(t, h.allocs, 1)

	dispatch(t, h, c, LibFree, p)
	require.Empty(t, h.allocs)
}

func TestScanFamily(t *testing.T) {
	var stdout bytes.Buffer
	h := NewHost(strings.NewReader("7 hi"), &stdout, &stdout)
	c := newTestCtx()

	num := c.Data.Alloc(4)
	numPtr := machine.Slot{Type: symtab.Type{Base: token.INT, Indirect: 1}, PtrValue: num}
	buf := c.Data.Alloc(16)
	bufPtr := machine.Slot{Type: symtab.Type{Base: token.CHAR, Indirect: 1}, PtrValue: buf}

	n := dispatch(t, h, c, LibScanf, strSlot(c, "%d %s"), numPtr, bufPtr)
	require.Equal(t, int64(2), n.AsInt64())

	got := c.Load(machine.Handle{Offset: num.Offset, Width: 4}, symtab.Type{Base: token.INT})
	require.Equal(t, int64(7), got.AsInt64())
	require.Equal(t, "hi", c.Data.CString(buf.Offset))
}

func TestAbs(t *testing.T) {
	var stdout bytes.Buffer
	h := NewHost(strings.NewReader(""), &stdout, &stdout)
	c := newTestCtx()
	require.Equal(t, int64(9), dispatch(t, h, c, LibAbs, machine.IntSlot(-9)).AsInt64())
}

func TestExitPanics(t *testing.T) {
	var stdout bytes.Buffer
	h := NewHost(strings.NewReader(""), &stdout, &stdout)
	c := newTestCtx()
	fn := &symtab.Function{Name: "exit", LibCode: LibExit}
	require.PanicsWithValue(t, Exit{Status: 4}, func() {
		h.Dispatch(c, fn, []machine.Slot{machine.IntSlot(4)})
	})
}
