package preprocessor

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vastcl/vcl/lang/token"
)

// Error is one preprocessor diagnostic, fatal or a warning, grounded on the
// teacher's scanner.Error shape (a position plus a message), per
// SPEC_FULL.md's [ADD 4.1a].
type Error struct {
	Pos     token.Pos
	FileSet *token.FileSet
	Msg     string
	Fatal   bool
}

func (e *Error) Error() string {
	where := "<unknown>"
	if e.FileSet != nil {
		where = e.FileSet.Position(e.Pos)
	}
	return fmt.Sprintf("%s: %s", where, e.Msg)
}

// ErrorList aggregates preprocessor diagnostics the way the teacher's
// scanner.ErrorList does: positionally sortable, and satisfying
// Unwrap() []error so it composes with errors.Is/As.
type ErrorList struct {
	items []*Error
}

func (l *ErrorList) Add(e *Error) {
	l.items = append(l.items, e)
}

func (l *ErrorList) HasFatal() bool {
	for _, e := range l.items {
		if e.Fatal {
			return true
		}
	}
	return false
}

func (l *ErrorList) Items() []*Error { return l.items }

func (l *ErrorList) Len() int { return len(l.items) }

// Sort orders diagnostics by position, matching the teacher's
// ErrorList.Sort.
func (l *ErrorList) Sort() {
	sort.Slice(l.items, func(i, j int) bool { return l.items[i].Pos < l.items[j].Pos })
}

func (l *ErrorList) Error() string {
	var b strings.Builder
	for i, e := range l.items {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(e.Error())
	}
	return b.String()
}

// Unwrap exposes each diagnostic as a standalone error, the aggregation
// idiom the teacher's error lists use.
func (l *ErrorList) Unwrap() []error {
	errs := make([]error, len(l.items))
	for i, e := range l.items {
		errs[i] = e
	}
	return errs
}

func (l *ErrorList) Err() error {
	if len(l.items) == 0 {
		return nil
	}
	return l
}
