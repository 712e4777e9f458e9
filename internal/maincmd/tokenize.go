package maincmd

import (
	"context"
	"fmt"

	"github.com/mna/mainer"
	"github.com/vastcl/vcl/lang/pcode"
	"github.com/vastcl/vcl/lang/scanner"
	"github.com/vastcl/vcl/lang/token"
)

// Tokenize runs through the scanning phase and prints the pseudocode
// token stream, one token per line with its byte offset and payload.
func (c *Cmd) Tokenize(_ context.Context, stdio mainer.Stdio, args []string) mainer.ExitCode {
	e := c.newEngine(stdio)
	s, err := e.Tokenize(sourcePath(args[0]))
	if err != nil {
		fmt.Fprintln(stdio.Stderr, err)
		return mainer.Failure
	}
	dumpTokens(stdio, s)
	return mainer.Success
}

func dumpTokens(stdio mainer.Stdio, s *scanner.Scanner) {
	cur := pcode.NewCursor(s.Out)
	for !cur.AtEnd() {
		off := cur.Pos()
		tok := cur.ReadToken()
		switch tok {
		case token.LINENO:
			pos := token.Pos(cur.ReadUint32())
			file, line := pos.FileLine()
			fmt.Fprintf(stdio.Stdout, "%6d: line %d:%d\n", off, file, line)
		case token.SYMBOL:
			idx := cur.ReadUint32()
			fmt.Fprintf(stdio.Stdout, "%6d: symbol %s\n", off, s.Names.Name(int(idx)))
		case token.FUNCTION, token.FUNCREF:
			idx := cur.ReadUint32()
			fmt.Fprintf(stdio.Stdout, "%6d: %s %s\n", off, tok, s.Funcs.At(int(idx)).Name)
		case token.IDENTIFIER:
			idx := cur.ReadUint32()
			fmt.Fprintf(stdio.Stdout, "%6d: identifier #%d\n", off, idx)
		case token.INTCONST:
			fmt.Fprintf(stdio.Stdout, "%6d: int %d\n", off, int32(cur.ReadUint32()))
		case token.UINTCONST:
			fmt.Fprintf(stdio.Stdout, "%6d: uint %d\n", off, cur.ReadUint32())
		case token.LNGCONST:
			fmt.Fprintf(stdio.Stdout, "%6d: long %d\n", off, int64(cur.ReadUint64()))
		case token.ULNGCONST:
			fmt.Fprintf(stdio.Stdout, "%6d: ulong %d\n", off, cur.ReadUint64())
		case token.FLTCONST:
			fmt.Fprintf(stdio.Stdout, "%6d: float %x\n", off, cur.ReadUint64())
		case token.CHRCONST:
			fmt.Fprintf(stdio.Stdout, "%6d: char %q\n", off, cur.ReadByte())
		case token.STRCONST:
			n := int(cur.ReadByte())
			payload := cur.ReadN(n)
			fmt.Fprintf(stdio.Stdout, "%6d: string %q\n", off, string(payload[:n-1]))
		default:
			fmt.Fprintf(stdio.Stdout, "%6d: %s\n", off, tok)
		}
	}
}
