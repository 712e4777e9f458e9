package machine

import (
	"github.com/vastcl/vcl/lang/decl"
	"github.com/vastcl/vcl/lang/symtab"
	"github.com/vastcl/vcl/lang/token"
)

// ExecBody runs a function body whose opening brace the cursor is
// positioned at, driving the goto protocol: a FlowGoto propagating out of
// the nested statement executors seeks the cursor to the label's recorded
// offset and resumes block execution at the label's nesting depth.
func (c *Context) ExecBody() Flow {
	f := c.Exec()
	for f.Kind == FlowGoto {
		c.Code.Seek(f.GotoOffset)
		f = c.resumeAt(f.GotoDepth)
	}
	return f
}

// ResumeFrom seeks to pos and resumes statement execution inside depth
// enclosing blocks, the re-entry path the setjmp/longjmp builtins use to
// restart the saved statement of the target frame.
func (c *Context) ResumeFrom(pos, depth int) Flow {
	c.Code.Seek(pos)
	f := c.resumeAt(depth)
	for f.Kind == FlowGoto {
		c.Code.Seek(f.GotoOffset)
		f = c.resumeAt(f.GotoDepth)
	}
	return f
}

// resumeAt executes statements sequentially starting at the cursor, inside
// depth enclosing blocks; each bare '}' encountered closes one of them.
// Control returns when the outermost block (the function body) closes or a
// statement escapes.
func (c *Context) resumeAt(depth int) Flow {
	for {
		c.ReadFileLineMark()
		if c.peek() == token.RBRACE {
			c.Code.ReadToken()
			depth--
			if depth <= 0 {
				return None
			}
			continue
		}
		if f := c.Exec(); f.Escapes() {
			return f
		}
	}
}

// Exec executes one statement starting at the cursor and returns how
// control should propagate to the caller, replacing the original
// implementation's setjmp-based goto/break/continue/return unwind with an
// ordinary returned value.
func (c *Context) Exec() Flow {
	c.ReadFileLineMark()
	c.StmtStart = c.Code.Pos()
	c.StmtDepth = c.BlockDepth
	switch tok := c.peek(); tok {
	case token.LBRACE:
		return c.execBlock()
	case token.IF:
		return c.execIf()
	case token.WHILE:
		return c.execWhile()
	case token.DO:
		return c.execDoWhile()
	case token.FOR:
		return c.execFor()
	case token.SWITCH:
		return c.execSwitch()
	case token.RETURN:
		return c.execReturn()
	case token.BREAK:
		c.Code.ReadToken()
		c.expect(token.SEMICOLON)
		if c.LoopDepth == 0 && c.SwitchDepth == 0 {
			panic(&RuntimeError{Code: BreakOutsideLoop, Pos: c.Pos(), Detail: "break outside of loop or switch"})
		}
		return Flow{Kind: FlowBreak}
	case token.CONTINUE:
		c.Code.ReadToken()
		c.expect(token.SEMICOLON)
		if c.LoopDepth == 0 {
			panic(&RuntimeError{Code: ContinueOutsideLoop, Pos: c.Pos(), Detail: "continue outside of loop"})
		}
		return Flow{Kind: FlowContinue}
	case token.GOTO:
		return c.execGoto()
	case token.SEMICOLON:
		c.Code.ReadToken()
		return None
	default:
		if c.isDeclStart() {
			c.execLocalDecl()
			return None
		}
		c.Eval()
		c.expect(token.SEMICOLON)
		return None
	}
}

// isDeclStart reports whether the cursor sits on a local declaration: a
// type or storage-class keyword, or a linked identifier naming a typedef.
func (c *Context) isDeclStart() bool {
	tok := c.peek()
	if decl.StartsDeclaration(tok) {
		return true
	}
	if tok == token.IDENTIFIER && c.Vars != nil {
		idx := int(c.Code.PeekUint32At(1))
		if idx < c.Vars.Len() {
			return c.Vars.At(idx).Kind == symtab.KindTypedef
		}
	}
	return false
}

func (c *Context) execBlock() Flow {
	c.expect(token.LBRACE)
	c.BlockDepth++
	defer func() { c.BlockDepth-- }()
	for {
		c.ReadFileLineMark()
		if c.peek() == token.RBRACE {
			c.Code.ReadToken()
			return None
		}
		if f := c.Exec(); f.Escapes() {
			c.skipToMatchingBrace()
			return f
		}
	}
}

// skipPayload consumes the fixed-width payload following tok, keeping the
// fast-forward scanners in sync with the stream layout.
func (c *Context) skipPayload(tok token.Token) {
	switch tok {
	case token.LINENO, token.IDENTIFIER, token.SYMBOL, token.FUNCTION, token.FUNCREF,
		token.INTCONST, token.UINTCONST:
		c.Code.ReadUint32()
	case token.LNGCONST, token.ULNGCONST, token.FLTCONST:
		c.Code.ReadUint64()
	case token.CHRCONST:
		c.Code.ReadByte()
	case token.STRCONST:
		n := int(c.Code.ReadByte())
		c.Code.ReadN(n)
	}
}

// skipToMatchingBrace fast-forwards the cursor past the rest of the current
// block once break/continue/return/goto has been decided, matching spec.md's
// "on break/continue, fast-forward to the matching }".
func (c *Context) skipToMatchingBrace() {
	depth := 1
	for depth > 0 {
		tok := c.Code.ReadToken()
		switch tok {
		case token.LBRACE:
			depth++
		case token.RBRACE:
			depth--
		default:
			c.skipPayload(tok)
		}
	}
}

func (c *Context) execIf() Flow {
	c.Code.ReadToken()
	c.expect(token.LPAREN)
	cond := c.Eval()
	c.expect(token.RPAREN)

	if cond.AsInt64() != 0 {
		f := c.Exec()
		c.ReadFileLineMark()
		if f.IsNone() && c.peek() == token.ELSE {
			c.Code.ReadToken()
			c.skipStatement()
		}
		return f
	}
	c.skipStatement()
	c.ReadFileLineMark()
	if c.peek() == token.ELSE {
		c.Code.ReadToken()
		return c.Exec()
	}
	return None
}

// skipStatement parses and discards one statement without executing it,
// used for the untaken arm of if/else and for positioning past loop bodies.
func (c *Context) skipStatement() {
	c.ReadFileLineMark()
	switch c.peek() {
	case token.LBRACE:
		c.Code.ReadToken()
		c.skipToMatchingBrace()
		return
	case token.IF:
		c.Code.ReadToken()
		c.skipParens()
		c.skipStatement()
		c.ReadFileLineMark()
		if c.peek() == token.ELSE {
			c.Code.ReadToken()
			c.skipStatement()
		}
		return
	case token.WHILE, token.SWITCH:
		c.Code.ReadToken()
		c.skipParens()
		c.skipStatement()
		return
	case token.FOR:
		c.Code.ReadToken()
		c.skipParens()
		c.skipStatement()
		return
	case token.DO:
		c.Code.ReadToken()
		c.skipStatement()
		c.ReadFileLineMark()
		c.expect(token.WHILE)
		c.skipParens()
		c.expect(token.SEMICOLON)
		return
	}
	// a simple statement: scan to the terminating semicolon, balancing any
	// nested braces an initializer may carry.
	depth := 0
	for {
		tok := c.Code.ReadToken()
		switch tok {
		case token.LBRACE:
			depth++
		case token.RBRACE:
			depth--
		case token.SEMICOLON:
			if depth == 0 {
				return
			}
		default:
			c.skipPayload(tok)
		}
	}
}

// skipParens consumes a balanced parenthesized group starting at the
// cursor's '(' without evaluating anything.
func (c *Context) skipParens() {
	c.ReadFileLineMark()
	c.expect(token.LPAREN)
	depth := 1
	for depth > 0 {
		tok := c.Code.ReadToken()
		switch tok {
		case token.LPAREN:
			depth++
		case token.RPAREN:
			depth--
		default:
			c.skipPayload(tok)
		}
	}
}

func (c *Context) execWhile() Flow {
	c.Code.ReadToken()
	condPos := c.Code.Pos()
	c.expect(token.LPAREN)
	c.evalSkipped()
	c.expect(token.RPAREN)
	c.skipStatement()
	endPos := c.Code.Pos()
	c.LoopDepth++
	defer func() { c.LoopDepth-- }()

	for {
		c.Code.Seek(condPos)
		c.expect(token.LPAREN)
		cond := c.Eval()
		c.expect(token.RPAREN)
		if cond.AsInt64() == 0 {
			c.Code.Seek(endPos)
			return None
		}
		f := c.Exec()
		switch f.Kind {
		case FlowBreak:
			c.Code.Seek(endPos)
			return None
		case FlowReturn, FlowGoto:
			return f
		}
	}
}

// evalSkipped parses one full expression without evaluating it.
func (c *Context) evalSkipped() {
	c.Skip++
	c.Eval()
	c.Skip--
}

func (c *Context) execDoWhile() Flow {
	c.Code.ReadToken()
	bodyPos := c.Code.Pos()
	c.LoopDepth++
	defer func() { c.LoopDepth-- }()

	for {
		c.Code.Seek(bodyPos)
		f := c.Exec()
		if f.Kind == FlowReturn || f.Kind == FlowGoto {
			return f
		}
		c.ReadFileLineMark()
		c.expect(token.WHILE)
		c.expect(token.LPAREN)
		if f.Kind == FlowBreak {
			c.evalSkipped()
			c.expect(token.RPAREN)
			c.expect(token.SEMICOLON)
			return None
		}
		cond := c.Eval()
		c.expect(token.RPAREN)
		c.expect(token.SEMICOLON)
		if cond.AsInt64() == 0 {
			return None
		}
	}
}

func (c *Context) execFor() Flow {
	c.Code.ReadToken()
	c.expect(token.LPAREN)
	if c.peek() != token.SEMICOLON {
		c.Eval()
	}
	c.expect(token.SEMICOLON)

	condPos := c.Code.Pos()
	hasCond := c.peek() != token.SEMICOLON
	if hasCond {
		c.evalSkipped()
	}
	c.expect(token.SEMICOLON)

	updatePos := c.Code.Pos()
	c.skipUpTo(token.RPAREN)
	c.expect(token.RPAREN)
	bodyPos := c.Code.Pos()
	c.skipStatement()
	endPos := c.Code.Pos()

	c.LoopDepth++
	defer func() { c.LoopDepth-- }()

	for {
		truthy := true
		if hasCond {
			c.Code.Seek(condPos)
			truthy = c.Eval().AsInt64() != 0
		}
		if !truthy {
			c.Code.Seek(endPos)
			return None
		}
		c.Code.Seek(bodyPos)
		f := c.Exec()
		switch f.Kind {
		case FlowBreak:
			c.Code.Seek(endPos)
			return None
		case FlowReturn, FlowGoto:
			return f
		}
		c.Code.Seek(updatePos)
		if c.peek() != token.RPAREN {
			c.Eval()
		}
	}
}

// skipUpTo scans forward to (but not past) stop at the current paren
// nesting, used to find the for-loop update clause's end without
// evaluating it.
func (c *Context) skipUpTo(stop token.Token) {
	depth := 0
	for {
		tok := c.peek()
		if tok == stop && depth == 0 {
			return
		}
		tok = c.Code.ReadToken()
		switch tok {
		case token.LPAREN:
			depth++
		case token.RPAREN:
			depth--
		default:
			c.skipPayload(tok)
		}
	}
}

func (c *Context) execSwitch() Flow {
	c.Code.ReadToken()
	c.expect(token.LPAREN)
	v := c.Eval()
	c.expect(token.RPAREN)
	c.ReadFileLineMark()
	c.expect(token.LBRACE)

	c.SwitchDepth++
	c.BlockDepth++
	defer func() { c.SwitchDepth--; c.BlockDepth-- }()

	matched := false
	sawDefault := false
	for {
		c.ReadFileLineMark()
		switch c.peek() {
		case token.RBRACE:
			c.Code.ReadToken()
			return None
		case token.CASE:
			c.Code.ReadToken()
			label := c.Eval()
			c.expect(token.COLON)
			if !matched && label.AsInt64() == v.AsInt64() {
				matched = true
			}
		case token.DEFAULT:
			c.Code.ReadToken()
			c.expect(token.COLON)
			if sawDefault {
				panic(&RuntimeError{Code: DoubleDefault, Pos: c.Pos(), Detail: "more than one default in switch"})
			}
			sawDefault = true
			matched = true
		default:
			if !matched {
				c.skipStatement()
				continue
			}
			f := c.Exec()
			if f.Kind == FlowBreak {
				c.skipToMatchingBrace()
				return None
			}
			if f.Kind == FlowContinue {
				c.skipToMatchingBrace()
				return f
			}
			if f.Kind == FlowReturn || f.Kind == FlowGoto {
				return f
			}
		}
	}
}

func (c *Context) execReturn() Flow {
	c.Code.ReadToken()
	if c.peek() == token.SEMICOLON {
		c.Code.ReadToken()
		return Flow{Kind: FlowReturn}
	}
	v := c.Eval()
	c.expect(token.SEMICOLON)
	return Flow{Kind: FlowReturn, Return: v, HasReturn: true}
}

// execGoto reads the goto target, whose IDENTIFIER payload the linker
// packed as (label block depth << 24 | label pcode offset).
func (c *Context) execGoto() Flow {
	c.Code.ReadToken()
	if c.Code.ReadToken() != token.IDENTIFIER {
		panic(&RuntimeError{Code: BadGoto, Pos: c.Pos(), Detail: "unresolved goto label"})
	}
	packed := c.Code.ReadUint32()
	c.expect(token.SEMICOLON)
	return Flow{
		Kind:       FlowGoto,
		GotoOffset: int(packed & 0x00ffffff),
		GotoDepth:  int(packed >> 24),
	}
}
