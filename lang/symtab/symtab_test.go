package symtab

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vastcl/vcl/lang/token"
)

func TestSymbolTableSortedInsertLookup(t *testing.T) {
	var st SymbolTable
	for _, name := range []string{"zeta", "alpha", "mid", "beta"} {
		st.Insert(Symbol{Name: name, Kind: KindVariable, Var: &Variable{Name: name}})
	}
	require.Equal(t, 4, st.Len())

	all := st.All()
	for i := 1; i < len(all); i++ {
		require.Less(t, all[i-1].Name, all[i].Name, "table must stay sorted")
	}

	for _, name := range []string{"alpha", "beta", "mid", "zeta"} {
		sym, ok := st.Lookup(name)
		require.True(t, ok, name)
		require.Equal(t, name, sym.Var.Name)
	}
	_, ok := st.Lookup("nope")
	require.False(t, ok)
}

func TestVarArenaStableIndices(t *testing.T) {
	var a VarArena
	v1 := &Variable{Name: "one"}
	v2 := &Variable{Name: "two"}
	i1 := a.Add(v1)
	i2 := a.Add(v2)
	require.Equal(t, 0, i1)
	require.Equal(t, 1, i2)
	require.Equal(t, i1, v1.Index)
	require.Equal(t, i2, v2.Index)
	require.Same(t, v1, a.At(i1))
	require.Same(t, v2, a.At(i2))
}

func TestNameTableInterning(t *testing.T) {
	nt := NewNameTable()
	a := nt.Intern("count")
	b := nt.Intern("limit")
	require.NotEqual(t, a, b)
	require.Equal(t, a, nt.Intern("count"), "re-interning returns the same index")
	require.Equal(t, "count", nt.Name(a))
	require.Equal(t, "limit", nt.Name(b))
}

func TestFuncTableFindOrCreate(t *testing.T) {
	ft := NewFuncTable()
	i1, f1, created := ft.FindOrCreate("main")
	require.True(t, created)
	i2, f2, created := ft.FindOrCreate("main")
	require.False(t, created)
	require.Equal(t, i1, i2)
	require.Same(t, f1, f2)

	_, _, ok := ft.Find("other")
	require.False(t, ok)
}

func TestTypeSizes(t *testing.T) {
	cases := []struct {
		typ  Type
		want int
	}{
		{Type{Base: token.CHAR}, 1},
		{Type{Base: token.INT}, 4},
		{Type{Base: token.LONG}, 8},
		{Type{Base: token.FLOAT}, 8},
		{Type{Base: token.INT, Indirect: 1}, 8},
		{Type{Base: token.CHAR, Dims: []int{10}}, 10},
		{Type{Base: token.INT, Dims: []int{3, 4}}, 48},
		{Type{Base: token.CHAR, Indirect: 1, Dims: []int{4}}, 32},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, tc.typ.Size(), "%v", tc.typ)
	}
}

func TestTypeElem(t *testing.T) {
	arr := Type{Base: token.INT, Dims: []int{2, 3}}
	e := arr.Elem()
	require.Equal(t, []int{3}, e.Dims)
	e = e.Elem()
	require.Empty(t, e.Dims)

	ptr := Type{Base: token.CHAR, Indirect: 2}
	require.Equal(t, 1, ptr.Elem().Indirect)
}

func TestStructAndUnionWidths(t *testing.T) {
	var members VarList
	members.Append(Variable{Name: "a", Type: Type{Base: token.INT}})
	members.Append(Variable{Name: "b", Type: Type{Base: token.LONG}})

	st := Type{Base: token.STRUCT, Members: &members}
	require.Equal(t, 12, st.Size())

	un := Type{Base: token.UNION, Members: &members}
	require.Equal(t, 8, un.Size())
}
