package scanner

import (
	"math"
	"strconv"

	"github.com/vastcl/vcl/lang/token"
	"github.com/vastcl/vcl/lang/vclerr"
)

const (
	maxInt32  = math.MaxInt32
	maxUint32 = math.MaxUint32
	maxInt16  = math.MaxInt16
	minInt16  = math.MinInt16
	maxInt64  = math.MaxInt64
)

// scanNumber tokenizes a numeric literal, applying the promotion rules
// spec.md §4.2 lists verbatim (decimal vs. octal vs. hex lookahead,
// unsigned/long suffix scan, and the width-based auto-promotion of an
// unsuffixed literal).
func (s *Scanner) scanNumber() {
	start := s.pos
	isFloat := false
	base := 10

	if s.cur() == '0' && (s.at(1) == 'x' || s.at(1) == 'X') {
		base = 16
		s.pos += 2
		for isHexDigit(s.cur()) {
			s.pos++
		}
	} else if s.cur() == '0' && isDigit(s.at(1)) {
		base = 8
		s.pos++
		for s.cur() >= '0' && s.cur() <= '7' {
			s.pos++
		}
	} else {
		for isDigit(s.cur()) {
			s.pos++
		}
	}

	if base == 10 {
		if s.cur() == '.' {
			isFloat = true
			s.pos++
			for isDigit(s.cur()) {
				s.pos++
			}
		}
		if s.cur() == 'e' || s.cur() == 'E' {
			isFloat = true
			s.pos++
			if s.cur() == '+' || s.cur() == '-' {
				s.pos++
			}
			for isDigit(s.cur()) {
				s.pos++
			}
		}
	}

	digits := string(s.src[start:s.pos])

	if isFloat {
		v, err := strconv.ParseFloat(digits, 64)
		if err != nil {
			s.fatalf(vclerr.MathErr, "invalid floating literal %q: %s", digits, err)
			return
		}
		s.Out.EmitToken(token.FLTCONST)
		s.Out.EmitUint64(math.Float64bits(v))
		return
	}

	sawU, sawL := false, false
	for {
		switch s.cur() {
		case 'u', 'U':
			if sawU {
				s.fatalf(vclerr.UnsConstSuff, "duplicate 'u' suffix")
				return
			}
			sawU = true
			s.pos++
			continue
		case 'l', 'L':
			if sawL {
				s.fatalf(vclerr.LngConstSuff, "duplicate 'l' suffix")
				return
			}
			sawL = true
			s.pos++
			continue
		}
		break
	}

	raw := digits
	if base == 16 {
		raw = digits[2:]
	}
	v, err := strconv.ParseUint(raw, base, 64)
	if err != nil {
		s.fatalf(vclerr.MathErr, "invalid integer literal %q: %s", digits, err)
		return
	}

	tok := s.classifyInt(v, base, sawU, sawL)
	s.emitIntConst(tok, v)
}

func isHexDigit(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// classifyInt applies spec.md's promotion table. A U and/or L suffix fixes
// the token, promoted to unsigned long when the value does not fit. An
// unsuffixed decimal becomes long when it lies outside the 16-bit short
// range and unsigned when it exceeds the int max; an unsuffixed octal or
// hex literal becomes unsigned above the int max and unsigned long above
// the uint max. Promotions are warned about (non-fatally), except the
// octal/hex promotion to unsigned long.
func (s *Scanner) classifyInt(v uint64, base int, sawU, sawL bool) token.Token {
	switch {
	case sawU && sawL:
		if v > maxInt64 {
			return token.ULNGCONST
		}
		return token.ULNGCONST
	case sawU:
		if v > maxUint32 {
			s.Errors.Warnf(vclerr.ConstIsLngErr, s.pos0(), "constant %d too large for unsigned int, promoted to unsigned long", v)
			return token.ULNGCONST
		}
		return token.UINTCONST
	case sawL:
		if v > maxInt64 {
			s.Errors.Warnf(vclerr.ConstIsUnsErr, s.pos0(), "constant %d too large for long, promoted to unsigned long", v)
			return token.ULNGCONST
		}
		return token.LNGCONST
	}

	if base == 10 {
		unsigned := v > maxInt32
		long := v > maxInt16 || int64(v) < minInt16
		if unsigned {
			s.Errors.Warnf(vclerr.ConstIsUnsErr, s.pos0(), "decimal constant %d exceeds int range, promoted to unsigned", v)
		}
		if long {
			s.Errors.Warnf(vclerr.ConstIsLngErr, s.pos0(), "decimal constant %d exceeds short range, promoted to long", v)
		}
		switch {
		case unsigned && long:
			return token.ULNGCONST
		case unsigned:
			return token.UINTCONST
		case long:
			return token.LNGCONST
		default:
			return token.INTCONST
		}
	}

	// octal or hex
	if v > maxUint32 {
		return token.ULNGCONST
	}
	if v > maxInt32 {
		s.Errors.Warnf(vclerr.ConstIsUnsErr, s.pos0(), "constant %#x exceeds int range, promoted to unsigned", v)
		return token.UINTCONST
	}
	return token.INTCONST
}

func (s *Scanner) emitIntConst(tok token.Token, v uint64) {
	s.Out.EmitToken(tok)
	switch tok {
	case token.INTCONST, token.UINTCONST:
		s.Out.EmitUint32(uint32(v))
	default:
		s.Out.EmitUint64(v)
	}
}
