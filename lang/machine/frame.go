package machine

import "github.com/vastcl/vcl/lang/symtab"

// Frame records one activation of a function currently on the call stack:
// which function is running, where the data arena stood before the call
// (so return can rewind it), and where in the pcode stream to resume the
// caller. It plays the role vcldef.h's FUNCRUNNING plays in the original,
// minus the raw pointer it used for the rewind watermark.
type Frame struct {
	Func       *symtab.Function
	FrameStart int // data arena watermark at call time
	ReturnPC   int // pcode offset to resume the caller at
	Locals     symtab.VarList
}

// Position returns the name of the function this frame runs, or
// "<toplevel>" when there is none, for runtime error reporting.
func (fr *Frame) Position() string {
	if fr.Func == nil {
		return "<toplevel>"
	}
	return fr.Func.Name
}
