package scanner

import (
	"github.com/vastcl/vcl/lang/token"
	"github.com/vastcl/vcl/lang/vclerr"
)

// scanString tokenizes a "..." literal, decoding escapes and concatenating
// with any immediately adjacent "..." literal on the same line (spec.md
// §4.2's "each successive \" within the current line extends the previous
// one"). The result is emitted as STR_CONST + 1-byte length (payload plus
// its terminating NUL) + the bytes. A literal whose payload plus NUL would
// exceed 255 bytes is reported and truncated to 254 payload bytes, so the
// length byte never exceeds 255.
func (s *Scanner) scanString() {
	startPos := s.pos0()
	var buf []byte
	for s.cur() == '"' {
		s.pos++
		for s.pos < len(s.src) && s.cur() != '"' {
			if s.cur() == '\n' || s.cur() == 0 {
				s.fatalf(vclerr.UntermStrErr, "unterminated string literal")
				return
			}
			c, ok := s.scanEscape('"')
			if !ok {
				return
			}
			buf = append(buf, c)
		}
		if s.cur() != '"' {
			s.fatalf(vclerr.UntermStrErr, "unterminated string literal")
			return
		}
		s.pos++
		// concatenate with a following literal on the same physical line,
		// skipping only intervening whitespace (not a line marker, which
		// would mean a new line).
		save := s.pos
		for s.pos < len(s.src) && (s.cur() == ' ' || s.cur() == '\t') {
			s.pos++
		}
		if s.cur() != '"' {
			s.pos = save
			break
		}
	}

	if len(buf)+1 > 255 {
		s.Errors.Errorf(vclerr.StrTooLongErr, startPos, "string literal exceeds 255 bytes")
		buf = buf[:254]
	}

	s.Out.EmitToken(token.STRCONST)
	s.Out.EmitByte(byte(len(buf) + 1))
	s.Out.EmitBytes(buf)
	s.Out.EmitByte(0)
}

// scanChar tokenizes a '...' literal, emitting CHAR_CONST + 1 byte.
func (s *Scanner) scanChar() {
	s.pos++ // opening quote
	if s.pos >= len(s.src) || s.cur() == '\'' {
		s.fatalf(vclerr.UntermConstErr, "empty character literal")
		return
	}
	c, ok := s.scanEscape('\'')
	if !ok {
		return
	}
	if s.cur() != '\'' {
		s.fatalf(vclerr.UntermConstErr, "unterminated character literal")
		return
	}
	s.pos++
	s.Out.EmitToken(token.CHRCONST)
	s.Out.EmitByte(c)
}

// scanEscape decodes one (possibly escaped) character from the input,
// advancing the cursor past it.
func (s *Scanner) scanEscape(quote byte) (byte, bool) {
	c := s.cur()
	if c != '\\' {
		s.pos++
		return c, true
	}
	s.pos++
	e := s.cur()
	switch e {
	case 'n':
		s.pos++
		return '\n', true
	case 't':
		s.pos++
		return '\t', true
	case 'r':
		s.pos++
		return '\r', true
	case '0':
		s.pos++
		return 0, true
	case 'a':
		s.pos++
		return '\a', true
	case 'b':
		s.pos++
		return '\b', true
	case 'f':
		s.pos++
		return '\f', true
	case 'v':
		s.pos++
		return '\v', true
	case '\\', '\'', '"', '?':
		s.pos++
		return e, true
	case 'x':
		s.pos++
		v := 0
		for isHexDigit(s.cur()) {
			v = v*16 + hexVal(s.cur())
			s.pos++
		}
		return byte(v), true
	default:
		if e >= '0' && e <= '7' {
			v := 0
			for n := 0; n < 3 && s.cur() >= '0' && s.cur() <= '7'; n++ {
				v = v*8 + int(s.cur()-'0')
				s.pos++
			}
			return byte(v), true
		}
		s.fatalf(vclerr.LexErr, "unknown escape sequence '\\%c'", e)
		return 0, false
	}
}

func hexVal(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	default:
		return int(c-'A') + 10
	}
}
