package maincmd

import (
	"context"
	"fmt"

	"github.com/mna/mainer"
)

// Link runs through the linking phase and prints the populated symbol
// and function tables.
func (c *Cmd) Link(_ context.Context, stdio mainer.Stdio, args []string) mainer.ExitCode {
	e := c.newEngine(stdio)
	if err := e.Compile(sourcePath(args[0])); err != nil {
		fmt.Fprintln(stdio.Stderr, err)
		return mainer.Failure
	}

	ctx := e.Context()
	fmt.Fprintln(stdio.Stdout, "symbols:")
	for _, sym := range ctx.Symbols.All() {
		if sym.Var != nil {
			fmt.Fprintf(stdio.Stdout, "  %-20s %-16s offset=%d\n", sym.Name, sym.Var.Type.String(), sym.Var.Offset)
		}
	}

	fmt.Fprintln(stdio.Stdout, "functions:")
	for _, f := range ctx.Funcs.All() {
		switch {
		case f.LibCode != 0:
			fmt.Fprintf(stdio.Stdout, "  %-20s builtin #%d\n", f.Name, f.LibCode)
		case f.Defined:
			fmt.Fprintf(stdio.Stdout, "  %-20s %-16s body=%d frame=%d\n", f.Name, f.Return.String(), f.BodyOffset, f.FrameSize)
		default:
			fmt.Fprintf(stdio.Stdout, "  %-20s %-16s prototype only\n", f.Name, f.Return.String())
		}
	}
	return mainer.Success
}
