package builtin

import (
	"fmt"
	"io"
	"strings"

	"github.com/vastcl/vcl/lang/machine"
	"github.com/vastcl/vcl/lang/symtab"
	"github.com/vastcl/vcl/lang/token"
)

// formatC renders a C-style format string against the staged argument
// slots. Width, precision and the '-', '+', ' ', '0', '#' flags are
// honored; 'l'/'h' length modifiers are accepted and skipped, so they
// neither narrow nor widen the value. Each conversion pulls one slot,
// widened per its verb.
func formatC(c *machine.Context, format string, args []machine.Slot) string {
	var out strings.Builder
	argi := 0
	next := func() machine.Slot {
		s := arg(args, argi)
		argi++
		return s
	}

	i := 0
	for i < len(format) {
		ch := format[i]
		if ch != '%' {
			out.WriteByte(ch)
			i++
			continue
		}
		i++
		if i < len(format) && format[i] == '%' {
			out.WriteByte('%')
			i++
			continue
		}

		spec := "%"
		for i < len(format) && strings.IndexByte("-+ 0#", format[i]) >= 0 {
			spec += string(format[i])
			i++
		}
		for i < len(format) && format[i] >= '0' && format[i] <= '9' {
			spec += string(format[i])
			i++
		}
		if i < len(format) && format[i] == '.' {
			spec += "."
			i++
			for i < len(format) && format[i] >= '0' && format[i] <= '9' {
				spec += string(format[i])
				i++
			}
		}
		for i < len(format) && (format[i] == 'l' || format[i] == 'h') {
			i++ // every integer is already at full width on the stack
		}
		if i >= len(format) {
			out.WriteString(spec)
			break
		}

		verb := format[i]
		i++
		switch verb {
		case 'd', 'i':
			fmt.Fprintf(&out, spec+"d", next().AsInt64())
		case 'u':
			fmt.Fprintf(&out, spec+"d", uint64(next().AsInt64()))
		case 'x', 'X', 'o':
			fmt.Fprintf(&out, spec+string(verb), next().AsInt64())
		case 'c':
			fmt.Fprintf(&out, spec+"c", rune(byte(next().AsInt64())))
		case 's':
			fmt.Fprintf(&out, spec+"s", c.Data.CString(next().PtrValue.Offset))
		case 'f', 'e', 'E', 'g', 'G':
			if verb == 'f' && !strings.Contains(spec, ".") {
				spec += ".6"
			}
			fmt.Fprintf(&out, spec+string(verb), next().AsFloat64())
		case 'p':
			fmt.Fprintf(&out, spec+"x", next().PtrValue.Offset)
		default:
			out.WriteString(spec)
			out.WriteByte(verb)
		}
	}
	return out.String()
}

// scanC implements the scanf family over any byte source: each conversion
// reads from r and stores through the matching pointer argument, returning
// the number of conversions completed.
func scanC(c *machine.Context, r io.Reader, format string, args []machine.Slot) int {
	argi := 0
	next := func() machine.Slot {
		s := arg(args, argi)
		argi++
		return s
	}

	stored := 0
	i := 0
	for i < len(format) {
		ch := format[i]
		if ch != '%' {
			if ch == ' ' || ch == '\t' || ch == '\n' {
				i++
				continue // whitespace in the format matches any run of input space
			}
			var b [1]byte
			if _, err := r.Read(b[:]); err != nil || b[0] != ch {
				return stored
			}
			i++
			continue
		}
		i++
		for i < len(format) && (format[i] >= '0' && format[i] <= '9' || format[i] == 'l' || format[i] == 'h') {
			i++
		}
		if i >= len(format) {
			return stored
		}
		verb := format[i]
		i++

		dst := next()
		switch verb {
		case 'd', 'i', 'u':
			var v int64
			if _, err := fmt.Fscan(r, &v); err != nil {
				return stored
			}
			elem := dst.Type.Elem()
			width := elem.Size()
			c.StoreAt(machine.Handle{Offset: dst.PtrValue.Offset, Width: width}, scanStore(dst, machine.LongSlot(v)))
		case 'f', 'e', 'g':
			var v float64
			if _, err := fmt.Fscan(r, &v); err != nil {
				return stored
			}
			elem := dst.Type.Elem()
			width := elem.Size()
			c.StoreAt(machine.Handle{Offset: dst.PtrValue.Offset, Width: width}, scanStore(dst, machine.FloatSlot(v)))
		case 's':
			var v string
			if _, err := fmt.Fscan(r, &v); err != nil {
				return stored
			}
			storeString(c, dst.PtrValue.Offset, v)
		case 'c':
			var b [1]byte
			if _, err := io.ReadFull(r, b[:]); err != nil {
				return stored
			}
			c.StoreAt(machine.Handle{Offset: dst.PtrValue.Offset, Width: 1},
				machine.Slot{Type: charType(), Char: int8(b[0])})
		default:
			return stored
		}
		stored++
	}
	return stored
}

// scanStore narrows the scanned value to the pointee's declared type so a
// %d against a char* or long* stores the right width.
func scanStore(ptr machine.Slot, v machine.Slot) machine.Slot {
	target := machine.Slot{Type: ptr.Type.Elem()}
	return machine.Store(target, v)
}

func charType() symtab.Type {
	return symtab.Type{Base: token.CHAR}
}
