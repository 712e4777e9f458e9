package symtab

// NameTable is an append-only string intern table. Before linking, a
// SYMBOL token's payload is an index into a NameTable rather than a name
// straight in the pseudocode stream, so the tokenizer never has to worry
// about variable-length payloads; the linker resolves each index to a name
// and looks that name up in the SymbolTable, rewriting the token to
// IDENTIFIER + arena index in place. Indices are stable for the table's
// lifetime since entries are only ever appended.
type NameTable struct {
	names []string
	index map[string]int
}

func NewNameTable() *NameTable {
	return &NameTable{index: make(map[string]int)}
}

// Intern returns the stable index for name, registering it if this is the
// first occurrence.
func (t *NameTable) Intern(name string) int {
	if i, ok := t.index[name]; ok {
		return i
	}
	i := len(t.names)
	t.names = append(t.names, name)
	t.index[name] = i
	return i
}

// Name returns the name registered at index i.
func (t *NameTable) Name(i int) string { return t.names[i] }

func (t *NameTable) Len() int { return len(t.names) }

// VarArena is the append-only arena of variable records. A linked
// IDENTIFIER token's payload is an index into this arena; the record then
// carries everything the runtime needs (declared type, storage offset,
// frame-relative flag). Indices are stable for the arena's lifetime.
type VarArena struct {
	vars []*Variable
}

// Add appends v, records its index on the record itself, and returns it.
func (a *VarArena) Add(v *Variable) int {
	v.Index = len(a.vars)
	a.vars = append(a.vars, v)
	return v.Index
}

// At returns the record registered at index i.
func (a *VarArena) At(i int) *Variable { return a.vars[i] }

func (a *VarArena) Len() int { return len(a.vars) }

// All returns every registered record, in declaration order.
func (a *VarArena) All() []*Variable { return a.vars }

// FuncTable is an append-only table of function records, indexed the same
// way NameTable indexes names: a FUNCTION/FUNCREF token's payload is a
// stable index here rather than a name, since a function may be referenced
// (as FUNCREF) long before its own FUNCTION declaration site is linked.
type FuncTable struct {
	funcs []*Function
	index map[string]int
}

func NewFuncTable() *FuncTable {
	return &FuncTable{index: make(map[string]int)}
}

// FindOrCreate returns the existing function record for name, or creates
// and registers a new one, matching spec.md §4.2's "ensure a function
// record exists (create with symbol id ... if not)".
func (t *FuncTable) FindOrCreate(name string) (idx int, f *Function, created bool) {
	if i, ok := t.index[name]; ok {
		return i, t.funcs[i], false
	}
	f = &Function{Name: name}
	idx = len(t.funcs)
	t.funcs = append(t.funcs, f)
	t.index[name] = idx
	return idx, f, true
}

// Find looks up name without creating a record, for call sites that must
// not register a function merely by referencing an identifier.
func (t *FuncTable) Find(name string) (idx int, f *Function, ok bool) {
	i, ok := t.index[name]
	if !ok {
		return 0, nil, false
	}
	return i, t.funcs[i], true
}

func (t *FuncTable) At(i int) *Function { return t.funcs[i] }

func (t *FuncTable) Len() int { return len(t.funcs) }

// All returns every registered function, in creation order.
func (t *FuncTable) All() []*Function { return t.funcs }
