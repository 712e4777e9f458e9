package maincmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mna/mainer"
	"github.com/vastcl/vcl/lang/engine"
)

func (c *Cmd) newEngine(stdio mainer.Stdio) *engine.Engine {
	return engine.New(stdio.Stdin, stdio.Stdout, stdio.Stderr, engine.Options{
		Defines:     c.defines(),
		NoLineMarks: c.NoLineMarks,
		IncludeDir:  c.includeDir,
		Quiet:       c.Quiet,
	})
}

// Run compiles and executes the program; everything after the file
// argument is the interpreted program's argv tail.
func (c *Cmd) Run(_ context.Context, stdio mainer.Stdio, args []string) mainer.ExitCode {
	path := sourcePath(args[0])
	e := c.newEngine(stdio)

	if c.DumpPre {
		text, err := e.Preprocess(path)
		if err != nil {
			fmt.Fprintln(stdio.Stderr, err)
			return mainer.Failure
		}
		if err := os.WriteFile(engine.PreprocessedName(path), []byte(text), 0o644); err != nil {
			fmt.Fprintln(stdio.Stderr, err)
			return mainer.Failure
		}
		// the engine consumed its preprocessor; rebuild for the real run
		e = c.newEngine(stdio)
	}

	if c.CompileOnly {
		if err := e.Compile(path); err != nil {
			fmt.Fprintln(stdio.Stderr, err)
			return mainer.Failure
		}
		return mainer.Success
	}
	return mainer.ExitCode(e.Run(path, args[1:]))
}
