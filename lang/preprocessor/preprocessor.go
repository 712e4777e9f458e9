// Package preprocessor implements the text-level preprocessing pass that
// runs before the pseudocode tokenizer: comment stripping, #define/#undef,
// conditional compilation, #include, #error/#pragma, and macro expansion,
// grounded on preproc.c.
package preprocessor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vastcl/vcl/lang/token"
)

const (
	maxIfDepth      = 25
	maxIncludeDepth = 16
)

// condFrame is one level of the #if skip stack, grounded on preproc.c's
// per-level skipping/true-seen/else-done bits.
type condFrame struct {
	skipping bool
	trueSeen bool
	elseDone bool
}

// Processor runs the preprocessing pass over one translation unit, writing
// its output to Out and collecting diagnostics in Errors.
type Processor struct {
	FileSet *token.FileSet
	Errors  *ErrorList
	Out     strings.Builder

	macros      *macroTable
	ifStack     []condFrame
	includeDepth int
	execDir      string // directory the host executable lives in, for <...> includes
	noLineMarks  bool

	curFile *token.File
	curLine int
}

// NewProcessor builds a Processor with the predefined macro set installed.
func NewProcessor(fset *token.FileSet, execDir string) *Processor {
	pp := &Processor{
		FileSet: fset,
		Errors:  &ErrorList{},
		macros:  newMacroTable(),
		execDir: execDir,
	}
	pp.installPredefined()
	return pp
}

func (pp *Processor) installPredefined() {
	now := time.Now()
	pp.macros.Add(&macro{Name: "__DATE__", Body: `"` + now.Format("Jan 02 2006") + `"`, Predefined: true})
	pp.macros.Add(&macro{Name: "__TIME__", Body: `"` + now.Format("15:04:05") + `"`, Predefined: true})
	pp.macros.Add(&macro{Name: "__VCL__", Body: "0x0100", Predefined: true})
	pp.macros.Add(&macro{Name: "__STDC__", Body: "1", Predefined: true})
}

// Define installs a command-line macro (-D name[=value]) ahead of the run;
// an empty value defines the macro to 1, matching the usual cc contract.
func (pp *Processor) Define(name, value string) {
	if value == "" {
		value = "1"
	}
	pp.macros.Add(&macro{Name: name, Body: value})
}

// Run preprocesses the named top-level source file, pushing its id as the
// active source-registry entry for the duration.
func (pp *Processor) Run(path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("preprocessor: %w", err)
	}
	f, err := pp.FileSet.AddFile(filepath.Base(path), path)
	if err != nil {
		return err
	}
	pp.preprocessBuffer(f, ensureTrailingNewline(src))
	pp.Errors.Sort()
	if pp.Errors.HasFatal() {
		return pp.Errors
	}
	return nil
}

func ensureTrailingNewline(src []byte) []byte {
	if len(src) == 0 || src[len(src)-1] != '\n' {
		return append(src, '\n')
	}
	return src
}

// preprocessBuffer walks buf line by line (the state machine spec.md
// describes: strip comments, dispatch directives, otherwise expand macros
// and emit), emitting a /*<fileId>@<lineNo>*/ marker ahead of every
// non-blank output line so the tokenizer can recover file/line.
func (pp *Processor) preprocessBuffer(f *token.File, buf []byte) {
	lines := splitLines(buf)
	inBlockComment := false
	for lineNo := 1; lineNo <= len(lines); lineNo++ {
		raw := lines[lineNo-1]
		pos := f.Pos(lineNo)
		pp.curFile, pp.curLine = f, lineNo

		stripped, stillOpen, err := stripComments(raw, inBlockComment)
		inBlockComment = stillOpen
		if err != nil {
			pp.fatalf(pos, "%s", err)
			continue
		}

		trimmed := strings.TrimSpace(stripped)
		if trimmed == "" {
			continue
		}

		if trimmed[0] == '#' {
			pp.dispatchDirective(f, lineNo, trimmed[1:])
			continue
		}

		if pp.skipping() {
			continue
		}

		expanded, err := pp.expandLine(stripped)
		if err != nil {
			pp.fatalf(pos, "%s", err)
			continue
		}
		if strings.TrimSpace(expanded) == "" {
			continue
		}
		if !pp.noLineMarks {
			fmt.Fprintf(&pp.Out, "/*%d@%d*/", f.ID(), lineNo)
		}
		pp.Out.WriteString(expanded)
		pp.Out.WriteByte('\n')
	}
	if len(pp.ifStack) != 0 {
		pp.fatalf(f.Pos(len(lines)), "missing #endif (%d level(s) still open)", len(pp.ifStack))
	}
	if inBlockComment {
		pp.fatalf(f.Pos(len(lines)), "unterminated comment")
	}
}

func splitLines(buf []byte) []string {
	s := string(buf)
	if strings.HasSuffix(s, "\n") {
		s = s[:len(s)-1]
	}
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func (pp *Processor) skipping() bool {
	for _, f := range pp.ifStack {
		if f.skipping {
			return true
		}
	}
	return false
}

func (pp *Processor) fatalf(pos token.Pos, format string, args ...any) {
	pp.Errors.Add(&Error{Pos: pos, FileSet: pp.FileSet, Msg: fmt.Sprintf(format, args...), Fatal: true})
}

func (pp *Processor) warnf(pos token.Pos, format string, args ...any) {
	pp.Errors.Add(&Error{Pos: pos, FileSet: pp.FileSet, Msg: fmt.Sprintf(format, args...), Fatal: false})
}

// dispatchDirective handles the text following '#' on a directive line,
// grounded on preproc.c's PreProcess dispatch switch.
func (pp *Processor) dispatchDirective(f *token.File, lineNo int, rest string) {
	pos := f.Pos(lineNo)
	rest = strings.TrimLeft(rest, " \t")
	word, tail := splitWord(rest)

	// conditional directives are processed even while skipping, so the if
	// stack stays balanced; everything else is suppressed by an active skip.
	switch word {
	case "if":
		pp.doIf(pos, tail)
		return
	case "ifdef":
		pp.doIfdef(pos, tail, false)
		return
	case "ifndef":
		pp.doIfdef(pos, tail, true)
		return
	case "elif":
		pp.doElif(pos, tail)
		return
	case "else":
		pp.doElse(pos)
		return
	case "endif":
		pp.doEndif(pos)
		return
	}

	if pp.skipping() {
		return
	}

	switch word {
	case "define":
		pp.doDefine(pos, tail)
	case "undef":
		pp.doUndef(pos, tail)
	case "include":
		pp.doInclude(f, pos, tail)
	case "error":
		pp.fatalf(pos, "#error: %s", strings.TrimSpace(tail))
	case "pragma":
		// parsed and discarded, per spec.md.
	case "line":
		// accepted and ignored: line renumbering has no effect on the
		// file-id/line-number scheme this preprocessor emits.
	default:
		pp.warnf(pos, "unknown preprocessor directive #%s", word)
	}
}

func splitWord(s string) (word, rest string) {
	i := 0
	for i < len(s) && isIdentCont(s[i]) {
		i++
	}
	return s[:i], strings.TrimLeft(s[i:], " \t")
}

func (pp *Processor) pushIf(pos token.Pos, taken bool) {
	if len(pp.ifStack) >= maxIfDepth {
		pp.fatalf(pos, "#if nesting too deep (max %d)", maxIfDepth)
		return
	}
	parentSkip := pp.skipping()
	pp.ifStack = append(pp.ifStack, condFrame{skipping: parentSkip || !taken, trueSeen: taken && !parentSkip})
}

func (pp *Processor) doIf(pos token.Pos, expr string) {
	if pp.skipping() {
		pp.pushIfRaw()
		return
	}
	expanded, err := pp.expandLine(expr)
	if err != nil {
		pp.fatalf(pos, "%s", err)
		pp.pushIfRaw()
		return
	}
	v, err := pp.evalIfExpr(expanded)
	if err != nil {
		pp.fatalf(pos, "#if: %s", err)
		pp.pushIfRaw()
		return
	}
	pp.pushIf(pos, v != 0)
}

// pushIfRaw pushes a frame while already skipping, without evaluating the
// condition (its macros may be undefined precisely because this branch is
// dead).
func (pp *Processor) pushIfRaw() {
	if len(pp.ifStack) >= maxIfDepth {
		return
	}
	pp.ifStack = append(pp.ifStack, condFrame{skipping: true})
}

func (pp *Processor) doIfdef(pos token.Pos, name string, negate bool) {
	name = strings.TrimSpace(name)
	if pp.skipping() {
		pp.pushIfRaw()
		return
	}
	_, defined := pp.macros.Find(name)
	taken := defined
	if negate {
		taken = !defined
	}
	pp.pushIf(pos, taken)
}

func (pp *Processor) doElif(pos token.Pos, expr string) {
	if len(pp.ifStack) == 0 {
		pp.fatalf(pos, "#elif without matching #if")
		return
	}
	top := &pp.ifStack[len(pp.ifStack)-1]
	if top.elseDone {
		pp.fatalf(pos, "#elif after #else")
		return
	}
	parentSkip := false
	if len(pp.ifStack) > 1 {
		for _, fr := range pp.ifStack[:len(pp.ifStack)-1] {
			parentSkip = parentSkip || fr.skipping
		}
	}
	if top.trueSeen || parentSkip {
		top.skipping = true
		return
	}
	expanded, err := pp.expandLine(expr)
	if err != nil {
		pp.fatalf(pos, "%s", err)
		return
	}
	v, err := pp.evalIfExpr(expanded)
	if err != nil {
		pp.fatalf(pos, "#elif: %s", err)
		return
	}
	top.skipping = v == 0
	if v != 0 {
		top.trueSeen = true
	}
}

func (pp *Processor) doElse(pos token.Pos) {
	if len(pp.ifStack) == 0 {
		pp.fatalf(pos, "#else without matching #if")
		return
	}
	top := &pp.ifStack[len(pp.ifStack)-1]
	if top.elseDone {
		pp.fatalf(pos, "multiple #else for one #if")
		return
	}
	top.elseDone = true
	parentSkip := false
	if len(pp.ifStack) > 1 {
		for _, fr := range pp.ifStack[:len(pp.ifStack)-1] {
			parentSkip = parentSkip || fr.skipping
		}
	}
	top.skipping = top.trueSeen || parentSkip
	if !top.skipping {
		top.trueSeen = true
	}
}

func (pp *Processor) doEndif(pos token.Pos) {
	if len(pp.ifStack) == 0 {
		pp.fatalf(pos, "#endif without matching #if")
		return
	}
	pp.ifStack = pp.ifStack[:len(pp.ifStack)-1]
}

// doDefine implements #define, grounded on preproc.c's DefineMacro/AddMacro.
func (pp *Processor) doDefine(pos token.Pos, rest string) {
	name, tail := splitWord(rest)
	if name == "" {
		pp.fatalf(pos, "#define requires a macro name")
		return
	}

	var params []string
	variadic := false
	if strings.HasPrefix(tail, "(") {
		end := strings.IndexByte(tail, ')')
		if end < 0 {
			pp.fatalf(pos, "#define %s: unterminated parameter list", name)
			return
		}
		plist := tail[1:end]
		tail = strings.TrimLeft(tail[end+1:], " \t")
		if strings.TrimSpace(plist) != "" {
			for _, p := range strings.Split(plist, ",") {
				p = strings.TrimSpace(p)
				if p == "..." {
					variadic = true
					continue
				}
				params = append(params, p)
			}
		}
		if params == nil {
			params = []string{}
		}
	}

	m := &macro{Name: name, Params: params, Body: strings.TrimSpace(tail), Variadic: variadic}
	if existing, ok := pp.macros.FindFast(name); ok {
		if existing.Predefined {
			pp.warnf(pos, "redefining predefined macro %s", name)
		} else if !sameBody(existing, m) {
			pp.fatalf(pos, "macro %s redefined with a different body", name)
			return
		} else {
			return
		}
	}
	pp.macros.Undef(name)
	pp.macros.Add(m)
}

func (pp *Processor) doUndef(pos token.Pos, rest string) {
	name, _ := splitWord(rest)
	if m, ok := pp.macros.Find(name); ok && m.Predefined {
		pp.warnf(pos, "undefining predefined macro %s", name)
	}
	pp.macros.Undef(name)
}

// doInclude implements #include, grounded on preproc.c's Include: quoted
// forms search relative to the current file's directory, angle-bracket
// forms search relative to the host executable's directory, and the
// included file is recursively preprocessed with its own source-registry
// id pushed for the duration.
func (pp *Processor) doInclude(from *token.File, pos token.Pos, rest string) {
	rest = strings.TrimSpace(rest)
	if len(rest) < 2 {
		pp.fatalf(pos, "malformed #include")
		return
	}

	var path string
	var local bool
	switch {
	case rest[0] == '"' && strings.HasSuffix(rest, `"`):
		path = rest[1 : len(rest)-1]
		local = true
	case rest[0] == '<' && strings.HasSuffix(rest, ">"):
		path = rest[1 : len(rest)-1]
	default:
		pp.fatalf(pos, "malformed #include %q", rest)
		return
	}

	var full string
	if local {
		full = filepath.Join(filepath.Dir(from.FullPath()), path)
	} else {
		full = filepath.Join(pp.execDir, path)
	}

	if pp.includeDepth >= maxIncludeDepth {
		pp.fatalf(pos, "#include nesting too deep (max %d)", maxIncludeDepth)
		return
	}

	src, err := os.ReadFile(full)
	if err != nil {
		pp.fatalf(pos, "#include %q: %s", path, err)
		return
	}
	f, err := pp.FileSet.AddFile(path, full)
	if err != nil {
		pp.fatalf(pos, "%s", err)
		return
	}

	pp.includeDepth++
	pp.preprocessBuffer(f, ensureTrailingNewline(src))
	pp.includeDepth--
}
