package maincmd

import (
	"context"
	"fmt"

	"github.com/mna/mainer"
)

// Preprocess runs only the first phase and prints the marked-up text.
func (c *Cmd) Preprocess(_ context.Context, stdio mainer.Stdio, args []string) mainer.ExitCode {
	e := c.newEngine(stdio)
	text, err := e.Preprocess(sourcePath(args[0]))
	if err != nil {
		fmt.Fprintln(stdio.Stderr, err)
		return mainer.Failure
	}
	fmt.Fprint(stdio.Stdout, text)
	return mainer.Success
}
