// Package symtab implements the symbol table, variable/function records and
// their arenas: the linker's output and the runtime's lookup structure.
// Records are sorted by name and searched with binary search, matching the
// sorted-array symbol table spec.md specifies and grounded on
// _examples/original_source/source/symbol.c's AddSymbol/FindSymbol pair.
package symtab

import (
	"fmt"
	"sort"

	"github.com/vastcl/vcl/lang/token"
)

// Kind distinguishes what a Symbol denotes.
type Kind int

const (
	KindVariable Kind = iota
	KindFunction
	KindLabel
	KindTypedef
	KindStructElem
	KindStructTag
	KindEnumConst
)

// Type describes a declared type: a base type plus pointer/array
// modifiers, matching the struct/union/array/pointer model of spec.md §4.7.
type Type struct {
	Base       token.Token // CHAR, INT, LONG, FLOAT, VOID, STRUCT, UNION, ENUM
	Unsigned   bool
	Indirect   int      // pointer depth; 0 for a plain scalar
	Dims       []int    // array dimensions, outermost first; nil if not an array
	StructName string   // set when Base is STRUCT/UNION/ENUM
	Members    *VarList // struct/union member list, nil otherwise
}

// Size returns the type's size in bytes, mirroring vcldef.h's fixed
// primitive widths; pointers and arrays-of-pointers are always the host
// word size (8, matching a 64-bit machine.Handle).
func (t *Type) Size() int {
	if t.Indirect > 0 {
		n := 8
		for _, d := range t.Dims {
			n *= d
		}
		return n
	}
	base := 0
	switch t.Base {
	case token.CHAR:
		base = 1
	case token.INT:
		base = 4
	case token.LONG:
		base = 8
	case token.FLOAT, token.DOUBLE:
		base = 8
	case token.STRUCT:
		if t.Members != nil {
			base = t.Members.TotalSize()
		}
	case token.UNION:
		if t.Members != nil {
			base = t.Members.MaxSize()
		}
	default:
		base = 4
	}
	for _, d := range t.Dims {
		base *= d
	}
	return base
}

// Elem returns the type obtained by removing one level of subscript or
// indirection: the element type of an array, or the pointed-to type of a
// pointer. For a plain scalar it returns the type unchanged.
func (t Type) Elem() Type {
	e := t
	switch {
	case len(e.Dims) > 0:
		e.Dims = append([]int(nil), e.Dims[1:]...)
		if len(e.Dims) == 0 {
			e.Dims = nil
		}
	case e.Indirect > 0:
		e.Indirect--
	}
	return e
}

// IsArray reports whether t has at least one array dimension.
func (t Type) IsArray() bool { return len(t.Dims) > 0 }

// StorageClass enumerates the storage-class specifiers a declaration can
// carry, matching vcldef.h's AUTO/REGISTER/VOLATILE/EXTERNAL bit values.
type StorageClass int

const (
	StorageAuto StorageClass = 1 << iota
	StorageRegister
	StorageVolatile
	StorageExternal
	StorageStatic
)

// Variable is one declared variable, global, static, local or parameter.
// For a goto label, Offset is a pseudocode offset rather than a data
// offset; for a struct member, Offset is relative to the enclosing
// instance, and for a local it is relative to the call frame.
type Variable struct {
	Name    string
	Kind    Kind
	Index   int // position in the owning VarArena, set by Add
	Type    Type
	Storage StorageClass
	Offset  int
	Local   bool // Offset is frame-relative, not a data-arena address
	Depth   int  // block-nesting depth at declaration (function body = 1)
	Pos     token.Pos
	Const   bool
}

// FuncRunning records one activation of a function currently on the call
// stack, grounded on vcldef.h's FUNCRUNNING: the data needed to rewind the
// data arena and restore the caller's cursor on return.
type FuncRunning struct {
	Func       *Function
	FrameStart int // data arena watermark at call time, rewound on return
	ReturnPos  int // pcode offset to resume the caller at
}

// Function is one declared (and, once linked, defined) function.
type Function struct {
	Name       string
	Return     Type
	Params     []Variable
	Variadic   bool
	Static     bool
	BodyOffset int // pcode offset of the function body, 0 if prototype only
	Prototype  []byte
	Pos        token.Pos
	ProtoPos   token.Pos // position of the first prototype, if any
	Defined    bool
	IsMain     bool

	// LibCode is non-zero for a built-in shim function; the runtime
	// dispatches such a call to the builtin catalog instead of a body.
	LibCode int

	// FrameSize is the total byte width of the function's argument block
	// plus auto locals, computed by the linker; the call protocol allocates
	// exactly this much data-arena space per activation.
	FrameSize int

	// Locals holds every local variable and goto label declared anywhere in
	// the function's body, installed by the tokenizer (labels, at their
	// pcode write offset) and the linker (declared locals, at their
	// frame-relative data offset). Offsets here are relative to the call
	// frame's FrameStart, not absolute data arena addresses; the call
	// protocol is responsible for the translation.
	Locals *VarList
}

// VarList is an intrusive-feeling but slice-backed list of variables, used
// for struct/union member lists and for a block's locals. Indices into the
// slice are stable for the lifetime of the list (members are never removed,
// only appended); pointers returned by At are not, since a later Append may
// move the backing slice.
type VarList struct {
	vars []Variable
}

// Append adds v to the list and returns its index.
func (l *VarList) Append(v Variable) int {
	l.vars = append(l.vars, v)
	return len(l.vars) - 1
}

// Len returns the number of variables in the list.
func (l *VarList) Len() int { return len(l.vars) }

// At returns a pointer to the variable at index i. The pointer aliases the
// backing slice, so after a further Append it may no longer refer to the
// list's element; the index i stays valid.
func (l *VarList) At(i int) *Variable { return &l.vars[i] }

// Find performs a linear search by name, matching declaration order
// (struct member lists are small and spec.md does not require them sorted).
func (l *VarList) Find(name string) (*Variable, bool) {
	for i := range l.vars {
		if l.vars[i].Name == name {
			return &l.vars[i], true
		}
	}
	return nil, false
}

// TotalSize returns the sum of every member's size, used for a struct/union
// whose layout is simply its members laid out in sequence (no alignment
// padding, matching the byte-exact layout spec.md's cross-type store
// requires).
func (l *VarList) TotalSize() int {
	n := 0
	for i := range l.vars {
		n += l.vars[i].Type.Size()
	}
	return n
}

// MaxSize returns the widest member's size, the storage width of a union.
func (l *VarList) MaxSize() int {
	n := 0
	for i := range l.vars {
		if w := l.vars[i].Type.Size(); w > n {
			n = w
		}
	}
	return n
}

// Symbol is one entry in the sorted symbol table: a name bound to either a
// Variable or a Function, distinguished by Kind.
type Symbol struct {
	Name string
	Kind Kind
	Var  *Variable
	Func *Function
}

// SymbolTable is the sorted-by-name symbol table the linker populates and
// the runtime queries. Sorted array plus binary search, per spec.md and
// _examples/original_source/source/symbol.c.
type SymbolTable struct {
	syms []Symbol
}

// Insert adds sym in sorted position. It does not check for duplicates;
// that is the linker's job (spec.md's redefinition diagnostics depend on
// the linker seeing the existing entry before inserting a new one).
func (st *SymbolTable) Insert(sym Symbol) {
	i := sort.Search(len(st.syms), func(i int) bool { return st.syms[i].Name >= sym.Name })
	st.syms = append(st.syms, Symbol{})
	copy(st.syms[i+1:], st.syms[i:])
	st.syms[i] = sym
}

// Lookup performs a binary search for name.
func (st *SymbolTable) Lookup(name string) (*Symbol, bool) {
	i := sort.Search(len(st.syms), func(i int) bool { return st.syms[i].Name >= name })
	if i < len(st.syms) && st.syms[i].Name == name {
		return &st.syms[i], true
	}
	return nil, false
}

// Len returns the number of symbols in the table.
func (st *SymbolTable) Len() int { return len(st.syms) }

// All returns the symbol table contents in sorted order, for diagnostics
// and the `vcl link` subcommand's dump.
func (st *SymbolTable) All() []Symbol { return st.syms }

func (t Type) String() string {
	s := t.Base.String()
	if t.Unsigned {
		s = "unsigned " + s
	}
	for i := 0; i < t.Indirect; i++ {
		s += "*"
	}
	for _, d := range t.Dims {
		s += fmt.Sprintf("[%d]", d)
	}
	return s
}
