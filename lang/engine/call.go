package engine

import (
	"fmt"

	"github.com/vastcl/vcl/lang/builtin"
	"github.com/vastcl/vcl/lang/machine"
	"github.com/vastcl/vcl/lang/symtab"
	"github.com/vastcl/vcl/lang/token"
)

// callFunction is the dispatcher installed on the machine context: the
// §4.4 call protocol. Builtins go straight to the host shim; a user
// function gets its arguments checked against the prototype, a frame
// staged in the data arena, and its body executed with the goto and
// longjmp re-entry paths handled here.
func (e *Engine) callFunction(c *machine.Context, fn *symtab.Function, args []machine.Slot) (machine.Slot, error) {
	if fn.LibCode != 0 {
		return e.host.Dispatch(c, fn, args)
	}
	if !fn.Defined {
		return machine.Slot{}, fmt.Errorf("call to undefined function %s", fn.Name)
	}
	if !fn.IsMain {
		if err := checkArgs(fn, args); err != nil {
			return machine.Slot{}, err
		}
	}

	savePC := c.Code.Pos()
	savedFunc := c.Func
	savedLoop, savedSwitch, savedBlock := c.LoopDepth, c.SwitchDepth, c.BlockDepth
	c.Func = fn
	c.LoopDepth, c.SwitchDepth, c.BlockDepth = 0, 0, 0

	fr := c.PushFrame(fn, savePC)
	c.Data.Alloc(fn.FrameSize)
	for i := range fn.Params {
		if i >= len(args) {
			break
		}
		p := &fn.Params[i]
		width := p.Type.Size()
		if p.Type.Base == token.CHAR && p.Type.Indirect == 0 {
			width = 4 // char arguments occupy an int slot in the arg block
		}
		staged := machine.Store(machine.Slot{Type: p.Type}, args[i])
		c.StoreAt(machine.Handle{Offset: fr.FrameStart + p.Offset, Width: width}, staged)
	}

	restore := func() {
		c.PopFrame()
		c.Code.Seek(savePC)
		c.Func = savedFunc
		c.LoopDepth, c.SwitchDepth, c.BlockDepth = savedLoop, savedSwitch, savedBlock
	}
	defer func() {
		if r := recover(); r != nil {
			restore()
			panic(r)
		}
	}()

	var flow machine.Flow
	resumePos, resumeDepth := -1, 0
	for {
		f, lj := e.runFrame(c, fn, resumePos, resumeDepth)
		if lj != nil {
			// a longjmp targeting this frame: restart the saved statement,
			// where the re-run setjmp yields the pending value
			resumePos, resumeDepth = lj.StmtStart, lj.StmtDepth
			continue
		}
		flow = f
		break
	}

	restore()
	return resolveReturn(fn, flow)
}

// runFrame executes one attempt at the frame's body, intercepting only a
// longjmp whose saved frame depth matches this activation; anything else
// unwinds further.
func (e *Engine) runFrame(c *machine.Context, fn *symtab.Function, resumePos, resumeDepth int) (flow machine.Flow, lj *builtin.Longjmp) {
	defer func() {
		if r := recover(); r != nil {
			if l, ok := r.(*builtin.Longjmp); ok && l.FrameDepth == len(c.Call) {
				lj = l
				return
			}
			panic(r)
		}
	}()
	if resumePos >= 0 {
		return c.ResumeFrom(resumePos, resumeDepth), nil
	}
	c.Code.Seek(fn.BodyOffset)
	return c.ExecBody(), nil
}

// checkArgs compares staged arguments against the callee's parameter
// list: count (up to a variadic tail), pointer shape, and aggregate
// identity. Numeric scalars convert at staging, matching the original's
// widening rules rather than demanding spelled-out equality.
func checkArgs(fn *symtab.Function, args []machine.Slot) error {
	if !fn.Variadic && len(args) != len(fn.Params) {
		return fmt.Errorf("%s expects %d argument(s), got %d", fn.Name, len(fn.Params), len(args))
	}
	if len(args) < len(fn.Params) {
		return fmt.Errorf("%s expects at least %d argument(s), got %d", fn.Name, len(fn.Params), len(args))
	}
	for i := range fn.Params {
		p := &fn.Params[i]
		a := args[i]
		switch {
		case p.Type.Indirect > 0:
			if !a.IsPointer() && a.AsInt64() != 0 {
				return fmt.Errorf("%s: argument %d must be a pointer", fn.Name, i+1)
			}
		case p.Type.Base == token.STRUCT || p.Type.Base == token.UNION:
			if a.Type.Members != p.Type.Members {
				return fmt.Errorf("%s: argument %d has the wrong aggregate type", fn.Name, i+1)
			}
		default:
			if a.IsPointer() {
				return fmt.Errorf("%s: argument %d must be numeric", fn.Name, i+1)
			}
		}
	}
	return nil
}

// resolveReturn enforces the void/value contract and widens the returned
// slot to the declared return type; a value-returning function that falls
// off the end yields zero.
func resolveReturn(fn *symtab.Function, flow machine.Flow) (machine.Slot, error) {
	isVoid := fn.Return.Base == token.VOID && fn.Return.Indirect == 0
	if isVoid {
		if flow.HasReturn {
			panic(&machine.RuntimeError{Code: machine.VoidReturnValue, Pos: fn.Pos,
				Detail: "void function " + fn.Name + " returns a value"})
		}
		return machine.IntSlot(0), nil
	}
	target := machine.Slot{Type: fn.Return}
	if !flow.HasReturn {
		return target, nil
	}
	return machine.Store(target, flow.Return), nil
}
