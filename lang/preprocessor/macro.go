package preprocessor

import (
	"strings"

	"github.com/dolthub/swiss"
)

// paramSentinel is a high-bit-tagged marker byte for parameter references.
// Stored macro bodies do not contain it: a body is kept as raw replacement
// text and parameters are matched by name when the macro is expanded.
const paramSentinel = 0x80

// macro is one #define entry: an object-like macro has nil Params; a
// function-like macro has a non-nil (possibly empty) Params slice.
type macro struct {
	Name      string
	Params    []string // nil for an object-like macro
	Body      string   // raw replacement text; parameters are matched by name at expansion
	Variadic  bool
	Predefined bool
}

// macroTable is the flat, linearly-searched macro list spec.md specifies
// ("Stored in a single flat list; FindMacro is linear"), plus a
// name-to-index accelerator used only for redefinition/#undef checks where
// order does not matter.
type macroTable struct {
	list  []*macro
	index *swiss.Map[string, int]
}

func newMacroTable() *macroTable {
	return &macroTable{index: swiss.NewMap[string, int](64)}
}

// Find performs the linear scan spec.md requires, so the order in which
// colliding redefinitions are reported matches a faithful re-derivation of
// the original.
func (t *macroTable) Find(name string) (*macro, bool) {
	for _, m := range t.list {
		if m.Name == name {
			return m, true
		}
	}
	return nil, false
}

// FindFast uses the swiss.Map accelerator for call sites (Undef,
// redefinition comparison) that only need presence/index, not
// insertion-order semantics.
func (t *macroTable) FindFast(name string) (*macro, bool) {
	i, ok := t.index.Get(name)
	if !ok {
		return nil, false
	}
	return t.list[i], true
}

func (t *macroTable) Add(m *macro) {
	t.index.Put(m.Name, len(t.list))
	t.list = append(t.list, m)
}

func (t *macroTable) Undef(name string) bool {
	i, ok := t.index.Get(name)
	if !ok {
		return false
	}
	t.index.Delete(name)
	t.list = append(t.list[:i], t.list[i+1:]...)
	for j := i; j < len(t.list); j++ {
		t.index.Put(t.list[j].Name, j)
	}
	return true
}

// sameBody reports whether two macro definitions are identical, used by
// #define's "redefinition with a different body is an error, same body is
// not" rule.
func sameBody(a, b *macro) bool {
	if a.Body != b.Body || a.Variadic != b.Variadic {
		return false
	}
	if len(a.Params) != len(b.Params) {
		return false
	}
	for i := range a.Params {
		if a.Params[i] != b.Params[i] {
			return false
		}
	}
	return true
}

// paramIndex finds a parameter's position by name, or -1.
func (m *macro) paramIndex(name string) int {
	for i, p := range m.Params {
		if p == name {
			return i
		}
	}
	return -1
}

func isIdentStart(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isIdentCont(b byte) bool {
	return isIdentStart(b) || (b >= '0' && b <= '9')
}

// splitArgs splits a function-like macro invocation's argument text on
// top-level commas (commas nested inside parentheses do not separate
// arguments).
func splitArgs(s string) []string {
	var args []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				args = append(args, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	args = append(args, strings.TrimSpace(s[start:]))
	return args
}
