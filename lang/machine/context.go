package machine

import (
	"github.com/vastcl/vcl/lang/pcode"
	"github.com/vastcl/vcl/lang/symtab"
	"github.com/vastcl/vcl/lang/token"
)

// Stack is the operand stack; it grows as needed and has no fixed
// capacity. Push/Pop work in terms of
// Slot values directly; there is no boxing step, matching the "slot is a
// struct, not an interface" design.
type Stack struct {
	slots []Slot
}

// Push appends s to the top of the stack.
func (s *Stack) Push(v Slot) { s.slots = append(s.slots, v) }

// Pop removes and returns the top slot. It panics with a RuntimeError if
// the stack is empty, matching spec.md's PUSHERR/POPERR fatal diagnostics
// for stack discipline violations, which should never occur in a correctly
// linked program.
func (s *Stack) Pop() Slot {
	if len(s.slots) == 0 {
		panic(&RuntimeError{Code: PopUnderflow, Detail: "operand stack underflow"})
	}
	v := s.slots[len(s.slots)-1]
	s.slots = s.slots[:len(s.slots)-1]
	return v
}

// Top returns the top slot without removing it.
func (s *Stack) Top() Slot { return s.slots[len(s.slots)-1] }

// TopDup duplicates the top slot, value and attributes alike.
func (s *Stack) TopDup() {
	s.Push(s.Top())
}

// TopSet replaces the top slot's value while preserving every attribute
// except the lvalue bit, the discipline used after pointer arithmetic.
func (s *Stack) TopSet(v Slot) {
	top := &s.slots[len(s.slots)-1]
	v.Type = top.Type
	v.Const = top.Const
	v.LValue = false
	*top = v
}

// Len reports the current stack depth.
func (s *Stack) Len() int { return len(s.slots) }

// Data is the call-frame data arena: an append-only byte buffer supporting
// stack-discipline rewind on function return, matching spec.md's "data
// arena supports stack-discipline rewind for call frames."
type Data struct {
	bytes []byte
}

// Alloc reserves n zero bytes and returns a Handle to them.
func (d *Data) Alloc(n int) Handle {
	off := len(d.bytes)
	d.bytes = append(d.bytes, make([]byte, n)...)
	return Handle{Offset: off, Width: n}
}

// Mark returns the current high-water mark, to be restored with Rewind on
// function return.
func (d *Data) Mark() int { return len(d.bytes) }

// Rewind truncates the arena back to a previously recorded mark.
func (d *Data) Rewind(mark int) { d.bytes = d.bytes[:mark] }

// Bytes returns the raw backing storage for h, for Store to read/write
// through without ever handing out a Go pointer that could dangle across a
// later Alloc-triggered reallocation; callers must re-derive the slice from
// the Handle each time rather than caching it.
func (d *Data) Bytes(h Handle) []byte { return d.bytes[h.Offset : h.Offset+h.Width] }

// CString reads the NUL-terminated string starting at off, for the string
// builtins and the %s conversion.
func (d *Data) CString(off int) string {
	end := off
	for end < len(d.bytes) && d.bytes[end] != 0 {
		end++
	}
	return string(d.bytes[off:end])
}

// ErrCode distinguishes the runtime-fatal conditions raised directly by
// the machine package itself, as opposed to the full vclerr.Code taxonomy
// which the engine package maps diagnostics onto at the process boundary.
type ErrCode int

const (
	PopUnderflow ErrCode = iota
	PushOverflow
	DivByZero
	FloatException
	BadGoto
	BreakOutsideLoop
	ContinueOutsideLoop
	VoidReturnValue
	MissingReturnValue
	NotLValue
	NotPointer
	NotStruct
	NotFunction
	BadExpr
	BadDecl
	DoubleDefault
)

// RuntimeError is panicked by the statement executor and expression
// evaluator on a fatal condition. During execution it is recovered by
// engine.Engine.Execute; while global initializers are evaluated at link
// time, the linker's per-declaration recovery catches it instead. It is
// reserved for conditions that abort the whole program rather than the
// ordinary break/continue/return/goto flow Flow already carries.
type RuntimeError struct {
	Code   ErrCode
	Pos    token.Pos
	Detail string
}

func (e *RuntimeError) Error() string { return e.Detail }

// Context is the mutable state threaded through every statement and
// expression method: the pseudocode cursor, the operand stack, the data
// arena, the symbol/variable/function tables, and the handful of counters
// spec.md's context record lists (loop/switch nesting, skip-expression
// depth, the current function, goto target).
type Context struct {
	Code    *pcode.Cursor
	Stack   Stack
	Data    Data
	Symbols *symtab.SymbolTable
	Vars    *symtab.VarArena
	Funcs   *symtab.FuncTable

	// MemberName resolves a member-access token's payload (a name-table
	// index the linker preserved) back to its spelling, so the struct scope
	// of the operand — not a global namespace — decides which member is
	// meant. Set by the engine.
	MemberName func(idx int) string

	File, Line int // current position, refreshed on each FILE_LINE_MARK

	Func *symtab.Function // currently executing function, nil at toplevel
	Call []*Frame         // call stack

	LoopDepth   int
	SwitchDepth int
	BlockDepth  int

	// Skip, when non-zero, makes the expression evaluator parse without
	// evaluating: no stores, no calls, no arithmetic traps. Raised for the
	// untaken side of && / || / ?: and for sizeof's operand.
	Skip int

	// StmtStart/StmtDepth record the pcode offset and block depth of the
	// statement currently being executed; the setjmp builtin snapshots them
	// so longjmp can resume at that statement.
	StmtStart int
	StmtDepth int

	// CallFunc dispatches a function call (user-defined or builtin); set by
	// engine.Engine before execution begins, since the call protocol needs
	// access to the builtin catalog that Context itself does not own.
	CallFunc func(c *Context, callee *symtab.Function, args []Slot) (Slot, error)
}

// Pos packs the context's current file/line into a token.Pos.
func (c *Context) Pos() token.Pos { return token.MakePos(c.File, c.Line) }

// PushFrame starts a new call frame, recording the data arena watermark so
// Return can rewind it.
func (c *Context) PushFrame(fn *symtab.Function, returnPC int) *Frame {
	fr := &Frame{Func: fn, FrameStart: c.Data.Mark(), ReturnPC: returnPC}
	c.Call = append(c.Call, fr)
	return fr
}

// PopFrame ends the current call frame and rewinds the data arena.
func (c *Context) PopFrame() {
	fr := c.Call[len(c.Call)-1]
	c.Call = c.Call[:len(c.Call)-1]
	c.Data.Rewind(fr.FrameStart)
}

// CurrentFrame returns the active call frame, or nil at toplevel.
func (c *Context) CurrentFrame() *Frame {
	if len(c.Call) == 0 {
		return nil
	}
	return c.Call[len(c.Call)-1]
}

// VarHandle resolves v's storage to an absolute data-arena handle,
// adding the active frame's base for a frame-relative local.
func (c *Context) VarHandle(v *symtab.Variable) Handle {
	base := v.Offset
	if v.Local {
		if fr := c.CurrentFrame(); fr != nil {
			base += fr.FrameStart
		}
	}
	return Handle{Offset: base, Width: v.Type.Size()}
}

// peek returns the next significant token, consuming any FILE_LINE_MARK
// run first so a statement or expression spanning several source lines
// parses the same as a single-line one.
func (c *Context) peek() token.Token {
	c.ReadFileLineMark()
	return c.Code.PeekToken()
}

// ReadFileLineMark consumes a FILE_LINE_MARK token's payload and updates
// File/Line. It is a no-op if the next token is not FILE_LINE_MARK; callers
// typically loop calling this before dispatching on the following token,
// since the tokenizer inserts a mark ahead of every statement.
func (c *Context) ReadFileLineMark() {
	for !c.Code.AtEnd() && c.Code.PeekToken() == token.LINENO {
		c.Code.ReadToken()
		packed := token.Pos(c.Code.ReadUint32())
		c.File, c.Line = packed.FileLine()
	}
}
