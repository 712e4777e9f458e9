// Package scanner implements the pseudocode tokenizer: a single
// left-to-right pass over the preprocessed byte stream that emits the
// pseudocode token stream and performs the identifier classification and
// function pre-registration spec.md §4.2 describes.
//
// The scanning style (a rune/byte cursor with an advance/peek pair and an
// error callback) follows the teacher's original lang/scanner package; the
// token set, literal grammar and identifier classification are new,
// grounded on _examples/original_source/source/pseudo.c and keyword.c.
package scanner

import (
	"github.com/vastcl/vcl/lang/pcode"
	"github.com/vastcl/vcl/lang/symtab"
	"github.com/vastcl/vcl/lang/token"
	"github.com/vastcl/vcl/lang/vclerr"
)

// Scanner tokenizes one preprocessed translation unit into pcode bytes,
// registering functions and goto labels as it goes.
type Scanner struct {
	FileSet *token.FileSet
	Names   *symtab.NameTable
	Funcs   *symtab.FuncTable
	Out     *pcode.Buffer
	Errors  *vclerr.List

	// LibLookup resolves a name against the built-in shim catalog,
	// returning its non-zero library code. Left nil, no builtins are
	// pre-registered and every unknown identifier stays a plain symbol.
	LibLookup func(name string) (int, bool)

	// NoLineMarks suppresses FILE_LINE_MARK emission (the -l option);
	// markers are still consumed to keep label offsets accurate.
	NoLineMarks bool

	src []byte
	pos int

	file int
	line int

	braceDepth   int
	sawCase      bool
	ternaryDepth int // suppresses the goto-label heuristic inside a ?: expression

	// curLocals, when non-nil, is the local-variable list of the function
	// body currently being scanned, used to install goto-label records per
	// spec.md §4.2 item 2. Locals proper are installed by the linker; the
	// tokenizer only pre-installs labels, since a label's offset must be
	// its own write position in the pcode stream.
	curLocals *symtab.VarList
	curFunc   *symtab.Function // function whose body curLocals belongs to
	bodyDepth int              // braceDepth at which curFunc's body opened
}

// NewScanner constructs a Scanner over src, which must already be the
// output of lang/preprocessor (carrying /*file@line*/ markers).
func NewScanner(fset *token.FileSet, src []byte) *Scanner {
	return &Scanner{
		FileSet: fset,
		Names:   symtab.NewNameTable(),
		Funcs:   symtab.NewFuncTable(),
		Out:     &pcode.Buffer{},
		Errors:  &vclerr.List{FileSet: fset},
		src:     src,
	}
}

func (s *Scanner) pos0() token.Pos { return token.MakePos(s.file, s.line) }

func (s *Scanner) fatalf(code vclerr.Code, format string, args ...any) {
	s.Errors.Errorf(code, s.pos0(), format, args...)
}

func (s *Scanner) byteAt(i int) byte {
	if i < 0 || i >= len(s.src) {
		return 0
	}
	return s.src[i]
}

func (s *Scanner) cur() byte  { return s.byteAt(s.pos) }
func (s *Scanner) at(o int) byte { return s.byteAt(s.pos + o) }

// Run tokenizes the entire buffer, returning a non-nil error (an
// *vclerr.List) if any fatal diagnostic was recorded.
func (s *Scanner) Run() error {
	for s.pos < len(s.src) {
		if s.tryLineMark() {
			continue
		}
		c := s.cur()
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			s.pos++
		case isIdentStart(c):
			s.scanIdentifier()
		case isDigit(c) || (c == '.' && isDigit(s.at(1))):
			s.scanNumber()
		case c == '"':
			s.scanString()
		case c == '\'':
			s.scanChar()
		default:
			s.scanOperator()
		}
	}
	s.Out.EmitToken(token.EOF)
	if s.Errors.HasErrors() {
		return s.Errors.Err()
	}
	return nil
}

// tryLineMark consumes a /*<file>@<line>*/ marker at the current position
// and emits a LINENO token, returning true if one was found. Markers are
// recognized independent of a preceding '\n', matching the preprocessor's
// output shape of one marker directly ahead of each emitted line.
func (s *Scanner) tryLineMark() bool {
	if s.cur() != '/' || s.at(1) != '*' {
		return false
	}
	i := s.pos + 2
	fileStart := i
	for i < len(s.src) && isDigit(s.src[i]) {
		i++
	}
	if i == fileStart || s.byteAt(i) != '@' {
		return false
	}
	fileID := atoi(s.src[fileStart:i])
	i++ // past '@'
	lineStart := i
	for i < len(s.src) && isDigit(s.src[i]) {
		i++
	}
	if i == lineStart || s.byteAt(i) != '*' || s.byteAt(i+1) != '/' {
		return false
	}
	lineNo := atoi(s.src[lineStart:i])
	s.pos = i + 2

	s.file, s.line = fileID, lineNo
	if !s.NoLineMarks {
		s.Out.EmitToken(token.LINENO)
		s.Out.EmitUint32(uint32(token.MakePos(fileID, lineNo)))
	}
	return true
}

func atoi(b []byte) int {
	n := 0
	for _, c := range b {
		n = n*10 + int(c-'0')
	}
	return n
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentCont(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

// scanOperator folds a multi-char operator if the two-byte table matches,
// layers the OpAssign bit onto a compound-assignment spelling, and
// otherwise emits the single-byte token for the current character.
func (s *Scanner) scanOperator() {
	c := s.cur()
	start := s.pos

	if c == '.' && s.at(1) == '.' && s.at(2) == '.' {
		s.pos += 3
		s.Out.EmitToken(token.ELLIPSE)
		return
	}

	if tok, ok := token.LookupTwoCharOp(c, s.at(1)); ok {
		s.pos += 2
		if s.cur() == '=' && tok.IsOpAssignable() {
			s.pos++
			s.Out.EmitToken(tok | token.OpAssign)
			return
		}
		s.Out.EmitToken(tok)
		return
	}

	// A single-character binary operator followed by '=' (+=, -=, *=, ...)
	// is its compound assignment; <<= and >>= were already folded by the
	// two-character branch above.
	base := token.Token(c)
	if base.IsOpAssignable() && s.at(1) == '=' {
		s.pos += 2
		s.Out.EmitToken(base | token.OpAssign)
		return
	}

	switch c {
	case '{':
		s.braceDepth++
	case '}':
		s.braceDepth--
		if s.curFunc != nil && s.braceDepth <= 0 {
			s.curFunc, s.curLocals = nil, nil
		}
	}

	if tok := token.Token(c); tok != 0 && tok.String() != "<unknown token>" {
		s.pos++
		switch tok {
		case token.COND:
			s.ternaryDepth++
		case token.COLON:
			if s.ternaryDepth > 0 {
				s.ternaryDepth--
			}
			s.sawCase = false
		}
		s.Out.EmitToken(tok)
		return
	}
	s.pos = start + 1
	s.fatalf(vclerr.LexErr, "illegal character %q", c)
}

// scanIdentifier implements spec.md §4.2's identifier classification: a
// keyword, a goto-label, a function reference/declaration, or a plain
// variable symbol.
func (s *Scanner) scanIdentifier() {
	start := s.pos
	for s.pos < len(s.src) && isIdentCont(s.cur()) {
		s.pos++
	}
	word := string(s.src[start:s.pos])

	if tok, ok := token.LookupKeyword(word); ok {
		s.Out.EmitToken(tok)
		if tok == token.CASE {
			s.sawCase = true
		}
		return
	}

	if !s.sawCase && s.peekIsColon() {
		s.installLabel(word)
		return
	}

	if s.peekIsTopLevelCall() {
		s.emitFunctionSite(word)
		return
	}
	s.emitVariableOrFuncref(word)
}

// peekIsColon reports whether, skipping whitespace and line markers, the
// next significant byte is ':' and this is not the ':' of a '?:' (the
// caller only calls this outside of an expression context where '?' could
// precede, since statement-level identifiers are never inside a ternary's
// condition at the point a label could start a statement).
func (s *Scanner) peekIsColon() bool {
	if s.ternaryDepth > 0 {
		return false
	}
	i := s.skipTrivia(s.pos)
	return s.byteAt(i) == ':' && s.byteAt(i+1) != ':'
}

// skipTrivia returns the index of the next non-whitespace, non-line-mark
// byte starting at i.
func (s *Scanner) skipTrivia(i int) int {
	for {
		for i < len(s.src) && (s.src[i] == ' ' || s.src[i] == '\t' || s.src[i] == '\r' || s.src[i] == '\n') {
			i++
		}
		if s.byteAt(i) == '/' && s.byteAt(i+1) == '*' {
			j := i + 2
			for j < len(s.src) && !(s.src[j] == '*' && s.byteAt(j+1) == '/') {
				j++
			}
			i = j + 2
			continue
		}
		return i
	}
}

// peekIsTopLevelCall reports whether, skipping trivia, the next byte is
// '(' and the current brace nesting is 0 (file scope), matching spec.md's
// function-declaration-site heuristic.
func (s *Scanner) peekIsTopLevelCall() bool {
	if s.braceDepth != 0 {
		return false
	}
	return s.byteAt(s.skipTrivia(s.pos)) == '('
}

// installLabel records word as a goto target at the current pcode write
// position, matching spec.md's "synthesize a variable record with LABEL
// kind ... offset = current write position into pseudocode".
func (s *Scanner) installLabel(word string) {
	s.pos = s.skipTrivia(s.pos) + 1 // consume the ':'
	if s.curLocals != nil {
		s.curLocals.Append(symtab.Variable{
			Name:   word,
			Kind:   symtab.KindLabel,
			Offset: s.Out.Len(),
			Depth:  s.braceDepth,
			Pos:    s.pos0(),
		})
	}
}

// emitFunctionSite distinguishes a prototype from a definition by scanning
// the parenthesized parameter list to its matching close paren and peeking
// at the following byte: ';' is a prototype, '{' is a declaration, per
// spec.md §4.2's final paragraph.
func (s *Scanner) emitFunctionSite(word string) {
	idx, f, created := s.Funcs.FindOrCreate(word)
	if created && s.LibLookup != nil {
		if code, ok := s.LibLookup(word); ok {
			f.LibCode = code
		}
	}
	open := s.skipTrivia(s.pos)
	closeAt := s.matchParen(open)
	if closeAt >= 0 {
		after := s.skipTrivia(closeAt + 1)
		switch s.byteAt(after) {
		case ';':
			if f.ProtoPos == 0 {
				f.ProtoPos = s.pos0()
			}
		case '{':
			f.Pos = s.pos0()
			if f.Locals == nil {
				f.Locals = &symtab.VarList{}
			}
			s.curFunc, s.curLocals = f, f.Locals
			s.bodyDepth = s.braceDepth
		}
	}
	s.Out.EmitToken(token.FUNCTION)
	s.Out.EmitUint32(uint32(idx))
}

// matchParen returns the index of the ')' matching the '(' at open, or -1
// if unbalanced before EOF. It skips string/char literals and line marks
// so a ')' inside a default-argument string is not mistaken for the close.
func (s *Scanner) matchParen(open int) int {
	if s.byteAt(open) != '(' {
		return -1
	}
	depth := 0
	i := open
	for i < len(s.src) {
		c := s.src[i]
		switch {
		case c == '/' && s.byteAt(i+1) == '*':
			j := i + 2
			for j < len(s.src) && !(s.src[j] == '*' && s.byteAt(j+1) == '/') {
				j++
			}
			i = j + 2
			continue
		case c == '"' || c == '\'':
			j := i + 1
			for j < len(s.src) && s.src[j] != c {
				if s.src[j] == '\\' {
					j++
				}
				j++
			}
			i = j + 1
			continue
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth == 0 {
				return i
			}
		}
		i++
	}
	return -1
}

// emitVariableOrFuncref resolves word to a function reference (if a
// function with this name is already known) or a plain variable symbol,
// per spec.md §4.2 item 3's final else branch.
func (s *Scanner) emitVariableOrFuncref(word string) {
	if idx, _, ok := s.Funcs.Find(word); ok {
		s.Out.EmitToken(token.FUNCREF)
		s.Out.EmitUint32(uint32(idx))
		return
	}
	if s.LibLookup != nil {
		if code, ok := s.LibLookup(word); ok {
			idx, f, _ := s.Funcs.FindOrCreate(word)
			f.LibCode = code
			s.Out.EmitToken(token.FUNCREF)
			s.Out.EmitUint32(uint32(idx))
			return
		}
	}
	idx := s.Names.Intern(word)
	s.Out.EmitToken(token.SYMBOL)
	s.Out.EmitUint32(uint32(idx))
}

