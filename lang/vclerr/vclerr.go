// Package vclerr defines the diagnostic codes shared by every stage of the
// pipeline and the error/warning types that carry a source position
// alongside one of those codes.
package vclerr

import (
	"fmt"

	"github.com/vastcl/vcl/lang/token"
)

// Code identifies the kind of diagnostic, matching the numbering of the
// original implementation's error table so existing test fixtures that
// assert on a numeric code keep working.
type Code int

//nolint:revive
const (
	_ Code = iota
	TrapErr
	NotPtrErr
	AddrErr
	NotArrayErr
	StructPtrErr
	RBraceErr
	DeclareErr
	FileErr
	LBraceErr
	LexErr
	LinkErr
	LValErr
	MDefErr
	PopErr
	PushErr
	RBracketErr
	ExprErr
	SyntaxErr
	DepthErr
	MDimErr
	PtrOpErr
	FuncErr
	SemiErr
	StrucErr
	ElemErr
	InitErr
	Div0Err
	SizeErr
	BreakErr
	ContErr
	FPEErr
	TMDefErr
	DefineErr
	OMErr
	SubsErr
	LParenErr
	BadLBraceErr
	ColonErr
	WhileErr
	BadVarErr
	CommaErr
	EnumErr
	VoidRetErr
	MismatchErr
	NullRetErr
	RedefErr
	IncompatErr
	NoFuncErr
	NoIdentErr
	VoidPtrErr
	NotNumErr
	IncompTypeErr
	UntermCommentErr
	TypeErr
	TooManyVarErr
	TooManyFuncErr
	DataSpaceErr
	NoSetjmpErr
	CtrlBreak
	LineTooLongErr
	BadPreprocErr
	RedefPPErr
	EndifErr
	ElseErrDirective
	ElifErr
	IncludeErr
	IfsErr
	UntermStrErr
	UntermConstErr
	IfErr
	ArgErr
	StdinFileErr
	StdoutFileErr
	NoMainErr
	SymbolTableErr
	ConstExprErr
	GotoErr
	ElseErr
	SwitchErr
	DefaultErr
	CaseErr
	TooManyDefaultsErr
	FuncNameErr
	TypedefErr
	DeclErr
	StringizeErr
	PtrCompErr
	IntTypeErr
	MathErr
	RegAddrErr
	UnresolvedErr
	UndefuncErr
	TooManyInitErr
	ConstArgErr
	IncludeNestErr
	IfNestErr
	ErrorErr
	AssertErr
	UnsConstSuff
	LngConstSuff
	ConstIsUnsErr
	ConstIsLngErr
	BadIfdefErr
	NeedIdentErr
	BadVclOptErr
	StrTooLongErr
	UnknownSizeErr
	MultipleDefErr
	MissingNameErr
	BadTypeVoidErr
	RParenErr
	CommaExpectedErr
	EllipseErr
)

var messages = map[Code]string{
	TrapErr:            "internal compiler trap",
	NotPtrErr:          "operand is not a pointer",
	AddrErr:            "cannot take the address of this expression",
	NotArrayErr:        "operand is not an array",
	StructPtrErr:       "expected a pointer to struct or union",
	RBraceErr:          "expected '}'",
	DeclareErr:         "invalid declaration",
	FileErr:            "cannot open file",
	LBraceErr:          "expected '{'",
	LexErr:             "invalid token",
	LinkErr:            "unresolved symbol",
	LValErr:            "expression is not an lvalue",
	MDefErr:            "macro already defined",
	PopErr:             "operand stack underflow",
	PushErr:            "operand stack overflow",
	RBracketErr:        "expected ']'",
	ExprErr:            "invalid expression",
	SyntaxErr:          "syntax error",
	DepthErr:           "expression nesting too deep",
	MDimErr:            "too many array dimensions",
	PtrOpErr:           "invalid pointer arithmetic",
	FuncErr:            "invalid function declaration",
	SemiErr:            "expected ';'",
	StrucErr:           "invalid struct or union",
	ElemErr:            "no such member",
	InitErr:            "invalid initializer",
	Div0Err:            "division by zero",
	SizeErr:            "invalid size",
	BreakErr:           "break outside of loop or switch",
	ContErr:            "continue outside of loop",
	FPEErr:             "floating point exception",
	TMDefErr:           "too many macro definitions",
	DefineErr:          "invalid #define",
	OMErr:              "out of memory",
	SubsErr:            "invalid subscript",
	LParenErr:          "expected '('",
	BadLBraceErr:       "unexpected '{'",
	ColonErr:           "expected ':'",
	WhileErr:           "expected while",
	BadVarErr:          "invalid variable declaration",
	CommaErr:           "expected ','",
	EnumErr:            "invalid enum",
	VoidRetErr:         "void function cannot return a value",
	MismatchErr:        "prototype does not match definition",
	NullRetErr:         "non-void function must return a value",
	RedefErr:           "redefinition",
	IncompatErr:        "incompatible types",
	NoFuncErr:          "not a function",
	NoIdentErr:         "expected an identifier",
	VoidPtrErr:         "invalid use of void pointer",
	NotNumErr:          "operand is not numeric",
	IncompTypeErr:      "incompatible type conversion",
	UntermCommentErr:   "unterminated comment",
	TypeErr:            "invalid type",
	TooManyVarErr:      "too many variables",
	TooManyFuncErr:     "too many functions",
	DataSpaceErr:       "out of data space",
	NoSetjmpErr:        "no enclosing control transfer point",
	CtrlBreak:          "interrupted",
	LineTooLongErr:     "source line too long",
	BadPreprocErr:      "unrecognized preprocessor directive",
	RedefPPErr:         "macro redefined with a different body",
	EndifErr:           "#endif without matching #if",
	ElseErrDirective:   "#else without matching #if",
	ElifErr:            "#elif without matching #if",
	IncludeErr:         "cannot open include file",
	IfsErr:             "too many nested #if directives",
	UntermStrErr:       "unterminated string literal",
	UntermConstErr:     "unterminated character constant",
	IfErr:              "invalid #if expression",
	ArgErr:             "invalid argument",
	StdinFileErr:       "cannot read standard input",
	StdoutFileErr:      "cannot write standard output",
	NoMainErr:          "no entry function defined",
	SymbolTableErr:     "symbol table overflow",
	ConstExprErr:       "expression is not constant",
	GotoErr:            "no such label",
	ElseErr:            "else without matching if",
	SwitchErr:          "invalid switch statement",
	DefaultErr:         "default outside of switch",
	CaseErr:            "case outside of switch",
	TooManyDefaultsErr: "more than one default in switch",
	FuncNameErr:        "invalid function name",
	TypedefErr:         "invalid typedef",
	DeclErr:            "invalid declarator",
	StringizeErr:       "invalid use of '#' in macro body",
	PtrCompErr:         "invalid pointer comparison",
	IntTypeErr:         "expected an integral type",
	MathErr:            "arithmetic error",
	RegAddrErr:         "cannot take the address of a register variable",
	UnresolvedErr:      "unresolved external reference",
	UndefuncErr:        "call to undeclared function",
	TooManyInitErr:     "too many initializers",
	ConstArgErr:        "argument must be a constant expression",
	IncludeNestErr:     "#include nested too deeply",
	IfNestErr:          "#if nested too deeply",
	ErrorErr:           "#error",
	AssertErr:          "assertion failed",
	UnsConstSuff:       "invalid unsigned constant suffix",
	LngConstSuff:       "invalid long constant suffix",
	ConstIsUnsErr:      "constant is unsigned",
	ConstIsLngErr:      "constant is long",
	BadIfdefErr:        "invalid #ifdef",
	NeedIdentErr:       "identifier expected",
	BadVclOptErr:       "invalid command line option",
	StrTooLongErr:      "string literal too long",
	UnknownSizeErr:     "sizeof applied to incomplete type",
	MultipleDefErr:     "multiple definition",
	MissingNameErr:     "missing name",
	BadTypeVoidErr:     "invalid use of void",
	RParenErr:          "expected ')'",
	CommaExpectedErr:   "expected ','",
	EllipseErr:         "invalid use of '...'",
}

// String returns the human-readable description of the code.
func (c Code) String() string {
	if s, ok := messages[c]; ok {
		return s
	}
	return fmt.Sprintf("error %d", int(c))
}

// Severity distinguishes a fatal diagnostic from an advisory one. Warnings
// are collected but do not abort preprocessing, linking or execution;
// errors do, once the enclosing stage finishes its current unit of work.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

// Diagnostic is one error or warning produced by any pipeline stage,
// carrying the file/line it was raised against.
type Diagnostic struct {
	Severity Severity
	Code     Code
	Pos      token.Pos
	Detail   string // extra context appended to the code's message, may be empty
}

func (d *Diagnostic) Error() string {
	return d.format()
}

func (d *Diagnostic) format() string {
	prefix := "error"
	if d.Severity == SeverityWarning {
		prefix = "warning"
	}
	if d.Detail == "" {
		return fmt.Sprintf("%s: %s", prefix, d.Code)
	}
	return fmt.Sprintf("%s: %s: %s", prefix, d.Code, d.Detail)
}

// List aggregates diagnostics across a compilation, kept in the order they
// were raised, so one bad line never hides the rest.
type List struct {
	FileSet *token.FileSet
	items   []*Diagnostic
}

// Add appends a new diagnostic.
func (l *List) Add(sev Severity, code Code, pos token.Pos, detail string) {
	l.items = append(l.items, &Diagnostic{Severity: sev, Code: code, Pos: pos, Detail: detail})
}

// Errorf appends a SeverityError diagnostic with a formatted detail string.
func (l *List) Errorf(code Code, pos token.Pos, format string, args ...any) {
	l.Add(SeverityError, code, pos, fmt.Sprintf(format, args...))
}

// Warnf appends a SeverityWarning diagnostic with a formatted detail string.
func (l *List) Warnf(code Code, pos token.Pos, format string, args ...any) {
	l.Add(SeverityWarning, code, pos, fmt.Sprintf(format, args...))
}

// HasErrors reports whether the list contains at least one SeverityError
// diagnostic.
func (l *List) HasErrors() bool {
	for _, d := range l.items {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Items returns the accumulated diagnostics in the order they were added.
func (l *List) Items() []*Diagnostic { return l.items }

// Err returns an error aggregating every diagnostic in the list (formatted
// one per line, positions resolved against FileSet), or nil if the list is
// empty. It implements the same "big error with Unwrap() []error" shape
// used by the preprocessor's ErrorList so errors.Is/As still see through
// to individual diagnostics.
func (l *List) Err() error {
	if len(l.items) == 0 {
		return nil
	}
	return &aggregate{list: l}
}

type aggregate struct{ list *List }

func (a *aggregate) Error() string {
	s := ""
	for i, d := range a.list.items {
		if i > 0 {
			s += "\n"
		}
		loc := "<unknown>"
		if a.list.FileSet != nil {
			loc = a.list.FileSet.Position(d.Pos)
		}
		s += loc + ": " + d.format()
	}
	return s
}

func (a *aggregate) Unwrap() []error {
	errs := make([]error, len(a.list.items))
	for i, d := range a.list.items {
		errs[i] = d
	}
	return errs
}
