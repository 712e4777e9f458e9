// Package engine ties the pipeline together: preprocess, tokenize, link,
// execute. One Engine owns one file set, one pseudocode buffer, one set of
// tables and arenas, one operand stack and one host shim, so running N
// cooperative programs is N independent Engine values with no shared
// state.
//
// It is also the top-level recovery point for execution: fatal runtime
// diagnostics raised anywhere below while the program runs unwind to
// Execute, which prints one line and maps the condition to its numeric exit
// code. (The linker recovers its own per-declaration panics, including
// runtime errors raised while evaluating global initializers.)
package engine

import (
	"fmt"
	"io"
	"strings"

	"github.com/vastcl/vcl/lang/builtin"
	"github.com/vastcl/vcl/lang/linker"
	"github.com/vastcl/vcl/lang/machine"
	"github.com/vastcl/vcl/lang/pcode"
	"github.com/vastcl/vcl/lang/preprocessor"
	"github.com/vastcl/vcl/lang/scanner"
	"github.com/vastcl/vcl/lang/symtab"
	"github.com/vastcl/vcl/lang/token"
	"github.com/vastcl/vcl/lang/vclerr"
)

// Options are the caller-facing knobs, mirroring the documented CLI
// surface.
type Options struct {
	Defines     map[string]string // -D name[=value]
	NoLineMarks bool              // -l: omit FILE_LINE_MARK tokens
	IncludeDir  string            // search root for <...> includes
	Quiet       bool              // -q: suppress warning output
}

// Engine is one compilation-and-execution pipeline instance.
type Engine struct {
	FileSet *token.FileSet
	Stdout  io.Writer
	Stderr  io.Writer

	opts Options
	pp   *preprocessor.Processor
	buf  *pcode.Buffer
	scan *scanner.Scanner
	ctx  *machine.Context
	host *builtin.Host

	mainFn *symtab.Function
}

// New builds an Engine over the given standard streams.
func New(stdin io.Reader, stdout, stderr io.Writer, opts Options) *Engine {
	e := &Engine{
		FileSet: token.NewFileSet(),
		Stdout:  stdout,
		Stderr:  stderr,
		opts:    opts,
		host:    builtin.NewHost(stdin, stdout, stderr),
	}
	e.pp = preprocessor.NewProcessor(e.FileSet, opts.IncludeDir)
	for name, value := range opts.Defines {
		e.pp.Define(name, value)
	}
	e.host.CurrentFile = func() string {
		if e.ctx == nil {
			return ""
		}
		if f := e.FileSet.File(e.ctx.File); f != nil {
			return f.Name()
		}
		return ""
	}
	return e
}

// Preprocess runs only the first stage and returns the marked-up text,
// backing the -P dump and the preprocess subcommand.
func (e *Engine) Preprocess(path string) (string, error) {
	if err := e.pp.Run(path); err != nil {
		return "", err
	}
	e.reportWarnings()
	return e.pp.Out.String(), nil
}

// Tokenize runs through the scanning stage and returns the scanner, for
// the tokenize subcommand's dump.
func (e *Engine) Tokenize(path string) (*scanner.Scanner, error) {
	if err := e.pp.Run(path); err != nil {
		return nil, err
	}
	e.reportWarnings()
	s := scanner.NewScanner(e.FileSet, []byte(e.pp.Out.String()))
	s.LibLookup = builtin.Lookup
	s.NoLineMarks = e.opts.NoLineMarks
	e.scan = s
	e.buf = s.Out
	err := s.Run()
	if !e.opts.Quiet {
		for _, d := range s.Errors.Items() {
			if d.Severity == vclerr.SeverityWarning {
				fmt.Fprintf(e.Stderr, "%s: warning: %s\n", e.FileSet.Position(d.Pos), d.Code)
			}
		}
	}
	if err != nil {
		return s, err
	}
	return s, nil
}

// Compile runs preprocess, tokenize and link, leaving the engine ready to
// Execute. The populated context is reachable through Context for
// inspection dumps.
func (e *Engine) Compile(path string) error {
	s, err := e.Tokenize(path)
	if err != nil {
		return err
	}

	e.ctx = &machine.Context{
		Symbols: &symtab.SymbolTable{},
		Vars:    &symtab.VarArena{},
		Funcs:   s.Funcs,
	}
	e.ctx.MemberName = func(idx int) string { return s.Names.Name(idx) }
	e.ctx.CallFunc = e.callFunction

	// reserve the arena's first bytes so no object sits at offset zero and
	// a null pointer never aliases real storage
	e.ctx.Data.Alloc(8)

	lk := linker.New(e.FileSet, e.buf, s.Names, s.Funcs, e.ctx)
	if err := lk.Run(); err != nil {
		return err
	}

	if _, f, ok := s.Funcs.Find("main"); ok && f.Defined {
		e.mainFn = f
	}
	return nil
}

// Context exposes the linked runtime state, for the link subcommand's
// table dump and for tests.
func (e *Engine) Context() *machine.Context { return e.ctx }

// Run is the whole pipeline: compile path, then execute a synthesized
// "return main(argc, argv)". The returned status is the process exit
// code: main's return value on success, the diagnostic's numeric code on
// a fatal error.
func (e *Engine) Run(path string, argv []string) int {
	if err := e.Compile(path); err != nil {
		fmt.Fprintln(e.Stderr, err)
		return exitCodeFor(err)
	}
	return e.Execute(path, argv)
}

// Execute runs the compiled program. Compile must have succeeded.
func (e *Engine) Execute(path string, argv []string) (status int) {
	defer e.host.Close()
	defer func() {
		r := recover()
		switch r := r.(type) {
		case nil:
		case builtin.Exit:
			status = r.Status
		case *machine.RuntimeError:
			fmt.Fprintf(e.Stderr, "%s: error: %s\n", e.FileSet.Position(r.Pos), r.Detail)
			status = int(runtimeCode(r.Code))
		case *builtin.Longjmp:
			fmt.Fprintln(e.Stderr, "error: longjmp to a frame that has already returned")
			status = int(vclerr.NoSetjmpErr)
		default:
			panic(r)
		}
	}()

	if e.mainFn == nil {
		fmt.Fprintf(e.Stderr, "%s: error: %s\n", path, vclerr.NoMainErr)
		return int(vclerr.NoMainErr)
	}

	args := e.stageArgv(path, argv)
	ret, err := e.callFunction(e.ctx, e.mainFn, args)
	if err != nil {
		fmt.Fprintf(e.Stderr, "error: %s\n", err)
		return int(vclerr.TrapErr)
	}
	return int(ret.AsInt64())
}

// stageArgv builds main's (argc, argv) pair: each argument string in the
// data arena, a pointer vector over them, argv[0] being the program path.
func (e *Engine) stageArgv(path string, argv []string) []machine.Slot {
	all := append([]string{path}, argv...)
	offsets := make([]int, len(all))
	for i, s := range all {
		h := e.ctx.Data.Alloc(len(s) + 1)
		copy(e.ctx.Data.Bytes(h), s)
		offsets[i] = h.Offset
	}
	vec := e.ctx.Data.Alloc(8 * len(all))
	for i, off := range offsets {
		e.ctx.StoreAt(
			machine.Handle{Offset: vec.Offset + 8*i, Width: 8},
			machine.Slot{Type: symtab.Type{Base: token.CHAR, Indirect: 1}, PtrValue: machine.Handle{Offset: off}},
		)
	}
	argvSlot := machine.Slot{
		Type:     symtab.Type{Base: token.CHAR, Indirect: 2},
		PtrValue: vec,
	}
	return []machine.Slot{machine.IntSlot(int32(len(all))), argvSlot}
}

func (e *Engine) reportWarnings() {
	if e.opts.Quiet {
		return
	}
	for _, item := range e.pp.Errors.Items() {
		if !item.Fatal {
			fmt.Fprintf(e.Stderr, "warning: %s\n", item.Error())
		}
	}
}

// exitCodeFor maps a compile-stage error to the process exit code: the
// first diagnostic's own numeric code when one is available.
func exitCodeFor(err error) int {
	type unwrapper interface{ Unwrap() []error }
	if u, ok := err.(unwrapper); ok {
		for _, inner := range u.Unwrap() {
			if d, ok := inner.(*vclerr.Diagnostic); ok && d.Severity == vclerr.SeverityError {
				return int(d.Code)
			}
		}
	}
	return int(vclerr.SyntaxErr)
}

// runtimeCode maps the machine package's fatal conditions onto the stable
// numeric taxonomy.
func runtimeCode(c machine.ErrCode) vclerr.Code {
	switch c {
	case machine.DivByZero:
		return vclerr.Div0Err
	case machine.FloatException:
		return vclerr.FPEErr
	case machine.PopUnderflow:
		return vclerr.PopErr
	case machine.PushOverflow:
		return vclerr.PushErr
	case machine.BreakOutsideLoop:
		return vclerr.BreakErr
	case machine.ContinueOutsideLoop:
		return vclerr.ContErr
	case machine.VoidReturnValue:
		return vclerr.VoidRetErr
	case machine.MissingReturnValue:
		return vclerr.NullRetErr
	case machine.BadGoto:
		return vclerr.GotoErr
	case machine.NotLValue:
		return vclerr.LValErr
	case machine.NotPointer:
		return vclerr.NotPtrErr
	case machine.NotStruct:
		return vclerr.StrucErr
	case machine.NotFunction:
		return vclerr.NoFuncErr
	case machine.BadDecl:
		return vclerr.DeclareErr
	case machine.DoubleDefault:
		return vclerr.TooManyDefaultsErr
	default:
		return vclerr.ExprErr
	}
}

// PreprocessedName derives the -P dump path: the source name with its
// extension replaced by .pre.
func PreprocessedName(path string) string {
	if i := strings.LastIndexByte(path, '.'); i > 0 {
		return path[:i] + ".pre"
	}
	return path + ".pre"
}
