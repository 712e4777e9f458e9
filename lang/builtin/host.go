package builtin

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/vastcl/vcl/lang/machine"
	"github.com/vastcl/vcl/lang/symtab"
	"github.com/vastcl/vcl/lang/token"
)

const (
	// MaxOpenFiles bounds the per-engine open-file table.
	MaxOpenFiles = 20
	// MaxAllocs bounds the per-engine heap-block tracking table.
	MaxAllocs = 512
)

// Exit is panicked by the exit builtin and recovered at the engine's
// top-level boundary, where Status becomes the process exit code.
type Exit struct{ Status int }

// Longjmp is panicked by the longjmp builtin; the call protocol unwinds
// frames until it reaches the one setjmp ran in, then resumes that
// frame's saved statement, where the re-executed setjmp yields the
// pending value.
type Longjmp struct {
	StmtStart  int
	StmtDepth  int
	FrameDepth int
}

type jmpState struct {
	stmtStart  int
	stmtDepth  int
	frameDepth int
}

// Host owns the per-engine collaborator state of the shim: standard
// streams, the bounded open-file and heap-block tables, the directory
// iteration cursor, and the setjmp environments. One Host per engine,
// torn down with it.
type Host struct {
	Stdout io.Writer
	Stderr io.Writer
	Stdin  *bufio.Reader

	// CurrentFile is the introspection hook backing _filename, set by the
	// engine; _lineno reads the context's current line instead.
	CurrentFile func() string

	files   [MaxOpenFiles]*os.File
	allocs  map[int]int // arena offset -> block size
	jmps    map[int]jmpState
	pending map[int]int32
	errno   int

	findMatches []string
	findNext    int
}

// NewHost wires a Host over the given standard streams.
func NewHost(stdin io.Reader, stdout, stderr io.Writer) *Host {
	return &Host{
		Stdout:  stdout,
		Stderr:  stderr,
		Stdin:   bufio.NewReader(stdin),
		allocs:  make(map[int]int),
		jmps:    make(map[int]jmpState),
		pending: make(map[int]int32),
	}
}

// Close releases every file still open and forgets tracked heap blocks,
// the teardown half of the bounded-table policy.
func (h *Host) Close() {
	for i, f := range h.files {
		if f != nil {
			f.Close()
			h.files[i] = nil
		}
	}
	h.allocs = make(map[int]int)
}

func intRet(v int64) machine.Slot  { return machine.IntSlot(int32(v)) }
func longRet(v int64) machine.Slot { return machine.LongSlot(v) }
func fltRet(v float64) machine.Slot {
	return machine.FloatSlot(v)
}

// ptrRet builds a char* result pointing at off in the data arena.
func ptrRet(off int) machine.Slot {
	return machine.Slot{
		Type:     symtab.Type{Base: token.CHAR, Indirect: 1},
		PtrValue: machine.Handle{Offset: off},
	}
}

func nullRet() machine.Slot {
	return machine.Slot{Type: symtab.Type{Base: token.CHAR, Indirect: 1}}
}

// arg returns args[i] or a zero slot when the caller passed too few, so a
// variadic shim never indexes out of range.
func arg(args []machine.Slot, i int) machine.Slot {
	if i < len(args) {
		return args[i]
	}
	return machine.Slot{}
}

// str reads the NUL-terminated string the pointer argument designates.
func str(c *machine.Context, s machine.Slot) string {
	return c.Data.CString(s.PtrValue.Offset)
}

// storeString copies s plus terminator into the arena at off.
func storeString(c *machine.Context, off int, s string) {
	b := c.Data.Bytes(machine.Handle{Offset: off, Width: len(s) + 1})
	copy(b, s)
	b[len(s)] = 0
}

// allocString places s in a fresh arena block and returns its offset.
func allocString(c *machine.Context, s string) int {
	h := c.Data.Alloc(len(s) + 1)
	copy(c.Data.Bytes(h), s)
	return h.Offset
}

// Dispatch runs the builtin identified by f.LibCode: stack slots in, one
// slot out. The host standard library does the actual work; this layer is
// argument/return widening and table bookkeeping.
func (h *Host) Dispatch(c *machine.Context, f *symtab.Function, args []machine.Slot) (machine.Slot, error) {
	switch f.LibCode {
	// --- introspection ---
	case LibErrno:
		return intRet(int64(h.errno)), nil
	case LibFilename:
		name := ""
		if h.CurrentFile != nil {
			name = h.CurrentFile()
		}
		return ptrRet(allocString(c, name)), nil
	case LibLineno:
		return intRet(int64(c.Line)), nil

	// --- stdio ---
	case LibPrintf:
		out := formatC(c, str(c, arg(args, 0)), args[1:])
		fmt.Fprint(h.Stdout, out)
		return intRet(int64(len(out))), nil
	case LibCprintf:
		out := formatC(c, str(c, arg(args, 0)), args[1:])
		fmt.Fprint(h.Stdout, out)
		return intRet(int64(len(out))), nil
	case LibFprintf:
		file, err := h.file(arg(args, 0))
		if err != nil {
			return intRet(-1), nil
		}
		out := formatC(c, str(c, arg(args, 1)), args[2:])
		fmt.Fprint(file, out)
		return intRet(int64(len(out))), nil
	case LibSprintf:
		out := formatC(c, str(c, arg(args, 1)), args[2:])
		storeString(c, arg(args, 0).PtrValue.Offset, out)
		return intRet(int64(len(out))), nil
	case LibScanf:
		n := scanC(c, h.Stdin, str(c, arg(args, 0)), args[1:])
		return intRet(int64(n)), nil
	case LibFscanf:
		file, err := h.file(arg(args, 0))
		if err != nil {
			return intRet(-1), nil
		}
		n := scanC(c, bufio.NewReader(file), str(c, arg(args, 1)), args[2:])
		return intRet(int64(n)), nil
	case LibSscanf:
		r := strings.NewReader(str(c, arg(args, 0)))
		n := scanC(c, r, str(c, arg(args, 1)), args[2:])
		return intRet(int64(n)), nil
	case LibPuts:
		fmt.Fprintln(h.Stdout, str(c, arg(args, 0)))
		return intRet(0), nil
	case LibGets:
		line, err := h.Stdin.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")
		if err != nil && line == "" {
			return nullRet(), nil
		}
		storeString(c, arg(args, 0).PtrValue.Offset, line)
		return arg(args, 0), nil
	case LibPutch:
		fmt.Fprintf(h.Stdout, "%c", byte(arg(args, 0).AsInt64()))
		return intRet(arg(args, 0).AsInt64()), nil
	case LibGetch:
		b, err := h.Stdin.ReadByte()
		if err != nil {
			return intRet(-1), nil
		}
		return intRet(int64(b)), nil
	case LibPutc:
		file, err := h.file(arg(args, 1))
		if err != nil {
			return intRet(-1), nil
		}
		fmt.Fprintf(file, "%c", byte(arg(args, 0).AsInt64()))
		return intRet(arg(args, 0).AsInt64()), nil
	case LibGetc:
		file, err := h.file(arg(args, 0))
		if err != nil {
			return intRet(-1), nil
		}
		var b [1]byte
		if _, err := file.Read(b[:]); err != nil {
			return intRet(-1), nil
		}
		return intRet(int64(b[0])), nil
	case LibUngetc:
		// only the stdin stream buffers reads; file streams seek back
		if file, err := h.file(arg(args, 1)); err == nil {
			file.Seek(-1, io.SeekCurrent)
			return intRet(arg(args, 0).AsInt64()), nil
		}
		h.Stdin.UnreadByte()
		return intRet(arg(args, 0).AsInt64()), nil
	case LibClrscr:
		fmt.Fprint(h.Stdout, "\x1b[2J\x1b[H")
		return intRet(0), nil
	case LibCursor:
		fmt.Fprintf(h.Stdout, "\x1b[%d;%dH", arg(args, 1).AsInt64()+1, arg(args, 0).AsInt64()+1)
		return intRet(0), nil

	// --- file management ---
	case LibFopen:
		return h.fopen(c, str(c, arg(args, 0)), str(c, arg(args, 1)))
	case LibFclose:
		idx := int(arg(args, 0).AsInt64()) - 1
		if idx < 0 || idx >= MaxOpenFiles || h.files[idx] == nil {
			return intRet(-1), nil
		}
		h.files[idx].Close()
		h.files[idx] = nil
		return intRet(0), nil
	case LibFread:
		file, err := h.file(arg(args, 3))
		if err != nil {
			return intRet(0), nil
		}
		size := int(arg(args, 1).AsInt64()) * int(arg(args, 2).AsInt64())
		buf := c.Data.Bytes(machine.Handle{Offset: arg(args, 0).PtrValue.Offset, Width: size})
		n, _ := file.Read(buf)
		return intRet(int64(n)), nil
	case LibFwrite:
		file, err := h.file(arg(args, 3))
		if err != nil {
			return intRet(0), nil
		}
		size := int(arg(args, 1).AsInt64()) * int(arg(args, 2).AsInt64())
		buf := c.Data.Bytes(machine.Handle{Offset: arg(args, 0).PtrValue.Offset, Width: size})
		n, _ := file.Write(buf)
		return intRet(int64(n)), nil
	case LibFseek:
		file, err := h.file(arg(args, 0))
		if err != nil {
			return intRet(-1), nil
		}
		_, serr := file.Seek(arg(args, 1).AsInt64(), int(arg(args, 2).AsInt64()))
		if serr != nil {
			return intRet(-1), nil
		}
		return intRet(0), nil
	case LibFtell:
		file, err := h.file(arg(args, 0))
		if err != nil {
			return longRet(-1), nil
		}
		pos, _ := file.Seek(0, io.SeekCurrent)
		return longRet(pos), nil
	case LibFflush:
		return intRet(0), nil // os.File writes are unbuffered host-side
	case LibRewind:
		if file, err := h.file(arg(args, 0)); err == nil {
			file.Seek(0, io.SeekStart)
		}
		return intRet(0), nil
	case LibRemove:
		if err := os.Remove(str(c, arg(args, 0))); err != nil {
			h.errno = 2
			return intRet(-1), nil
		}
		return intRet(0), nil
	case LibRename:
		if err := os.Rename(str(c, arg(args, 0)), str(c, arg(args, 1))); err != nil {
			h.errno = 2
			return intRet(-1), nil
		}
		return intRet(0), nil
	case LibTmpfile:
		file, err := os.CreateTemp("", "vcl*")
		if err != nil {
			return intRet(0), nil
		}
		return h.installFile(file)
	case LibTmpnam:
		name := filepath.Join(os.TempDir(), fmt.Sprintf("vcl%d", time.Now().UnixNano()))
		return ptrRet(allocString(c, name)), nil
	case LibFindfirst:
		matches, err := filepath.Glob(str(c, arg(args, 0)))
		if err != nil || len(matches) == 0 {
			return nullRet(), nil
		}
		h.findMatches, h.findNext = matches, 1
		return ptrRet(allocString(c, filepath.Base(matches[0]))), nil
	case LibFindnext:
		if h.findNext >= len(h.findMatches) {
			return nullRet(), nil
		}
		name := filepath.Base(h.findMatches[h.findNext])
		h.findNext++
		return ptrRet(allocString(c, name)), nil

	// --- stdlib ---
	case LibMalloc:
		return h.malloc(c, int(arg(args, 0).AsInt64()))
	case LibFree:
		delete(h.allocs, arg(args, 0).PtrValue.Offset)
		return intRet(0), nil
	case LibAbs:
		v := arg(args, 0).AsInt64()
		if v < 0 {
			v = -v
		}
		return intRet(v), nil
	case LibAtoi:
		v, _ := strconv.ParseInt(strings.TrimSpace(str(c, arg(args, 0))), 10, 64)
		return intRet(v), nil
	case LibAtol:
		v, _ := strconv.ParseInt(strings.TrimSpace(str(c, arg(args, 0))), 10, 64)
		return longRet(v), nil
	case LibAtof:
		v, _ := strconv.ParseFloat(strings.TrimSpace(str(c, arg(args, 0))), 64)
		return fltRet(v), nil
	case LibSystem:
		cmd := exec.Command("sh", "-c", str(c, arg(args, 0)))
		cmd.Stdout, cmd.Stderr = h.Stdout, h.Stderr
		if err := cmd.Run(); err != nil {
			if ee, ok := err.(*exec.ExitError); ok {
				return intRet(int64(ee.ExitCode())), nil
			}
			return intRet(-1), nil
		}
		return intRet(0), nil
	case LibExit:
		panic(Exit{Status: int(arg(args, 0).AsInt64())})

	// --- string ---
	case LibStrlen:
		return intRet(int64(len(str(c, arg(args, 0))))), nil
	case LibStrcmp:
		return intRet(int64(strings.Compare(str(c, arg(args, 0)), str(c, arg(args, 1))))), nil
	case LibStrncmp:
		n := int(arg(args, 2).AsInt64())
		a, b := str(c, arg(args, 0)), str(c, arg(args, 1))
		if len(a) > n {
			a = a[:n]
		}
		if len(b) > n {
			b = b[:n]
		}
		return intRet(int64(strings.Compare(a, b))), nil
	case LibStrcpy:
		storeString(c, arg(args, 0).PtrValue.Offset, str(c, arg(args, 1)))
		return arg(args, 0), nil
	case LibStrncpy:
		s := str(c, arg(args, 1))
		n := int(arg(args, 2).AsInt64())
		if len(s) > n {
			s = s[:n]
		}
		storeString(c, arg(args, 0).PtrValue.Offset, s)
		return arg(args, 0), nil
	case LibStrcat:
		dst := arg(args, 0).PtrValue.Offset
		storeString(c, dst+len(c.Data.CString(dst)), str(c, arg(args, 1)))
		return arg(args, 0), nil
	case LibStrncat:
		s := str(c, arg(args, 1))
		n := int(arg(args, 2).AsInt64())
		if len(s) > n {
			s = s[:n]
		}
		dst := arg(args, 0).PtrValue.Offset
		storeString(c, dst+len(c.Data.CString(dst)), s)
		return arg(args, 0), nil

	// --- math ---
	case LibAcos:
		return fltRet(math.Acos(arg(args, 0).AsFloat64())), nil
	case LibAsin:
		return fltRet(math.Asin(arg(args, 0).AsFloat64())), nil
	case LibAtan:
		return fltRet(math.Atan(arg(args, 0).AsFloat64())), nil
	case LibAtan2:
		return fltRet(math.Atan2(arg(args, 0).AsFloat64(), arg(args, 1).AsFloat64())), nil
	case LibCeil:
		return fltRet(math.Ceil(arg(args, 0).AsFloat64())), nil
	case LibCos:
		return fltRet(math.Cos(arg(args, 0).AsFloat64())), nil
	case LibCosh:
		return fltRet(math.Cosh(arg(args, 0).AsFloat64())), nil
	case LibExp:
		return fltRet(math.Exp(arg(args, 0).AsFloat64())), nil
	case LibFabs:
		return fltRet(math.Abs(arg(args, 0).AsFloat64())), nil
	case LibFloor:
		return fltRet(math.Floor(arg(args, 0).AsFloat64())), nil
	case LibLog:
		return fltRet(math.Log(arg(args, 0).AsFloat64())), nil
	case LibLog10:
		return fltRet(math.Log10(arg(args, 0).AsFloat64())), nil
	case LibPow:
		return fltRet(math.Pow(arg(args, 0).AsFloat64(), arg(args, 1).AsFloat64())), nil
	case LibSin:
		return fltRet(math.Sin(arg(args, 0).AsFloat64())), nil
	case LibSinh:
		return fltRet(math.Sinh(arg(args, 0).AsFloat64())), nil
	case LibSqrt:
		return fltRet(math.Sqrt(arg(args, 0).AsFloat64())), nil
	case LibTan:
		return fltRet(math.Tan(arg(args, 0).AsFloat64())), nil
	case LibTanh:
		return fltRet(math.Tanh(arg(args, 0).AsFloat64())), nil

	// --- time ---
	case LibTime:
		now := time.Now().Unix()
		if p := arg(args, 0); p.IsPointer() && p.PtrValue.Offset != 0 {
			c.StoreAt(machine.Handle{Offset: p.PtrValue.Offset, Width: 8}, machine.LongSlot(now))
		}
		return longRet(now), nil
	case LibLocaltime:
		return tmRet(c, time.Unix(timeArg(c, arg(args, 0)), 0).Local()), nil
	case LibGmtime:
		return tmRet(c, time.Unix(timeArg(c, arg(args, 0)), 0).UTC()), nil
	case LibMktime:
		return longRet(mktime(c, arg(args, 0))), nil
	case LibAsctime:
		t := tmArg(c, arg(args, 0))
		return ptrRet(allocString(c, t.Format("Mon Jan  2 15:04:05 2006")+"\n")), nil

	// --- non-local jumps ---
	case LibSetjmp:
		key := arg(args, 0).PtrValue.Offset
		if val, ok := h.pending[key]; ok {
			delete(h.pending, key)
			return intRet(int64(val)), nil
		}
		h.jmps[key] = jmpState{stmtStart: c.StmtStart, stmtDepth: c.StmtDepth, frameDepth: len(c.Call)}
		return intRet(0), nil
	case LibLongjmp:
		key := arg(args, 0).PtrValue.Offset
		st, ok := h.jmps[key]
		if !ok {
			return machine.Slot{}, fmt.Errorf("longjmp without a prior setjmp")
		}
		val := int32(arg(args, 1).AsInt64())
		if val == 0 {
			val = 1
		}
		h.pending[key] = val
		panic(&Longjmp{StmtStart: st.stmtStart, StmtDepth: st.stmtDepth, FrameDepth: st.frameDepth})

	default:
		return machine.Slot{}, fmt.Errorf("unknown library code %d for %s", f.LibCode, f.Name)
	}
}

// file resolves a FILE* argument (an index handle issued by fopen) back to
// the host file.
func (h *Host) file(s machine.Slot) (*os.File, error) {
	idx := int(s.AsInt64()) - 1
	if idx < 0 || idx >= MaxOpenFiles || h.files[idx] == nil {
		return nil, fmt.Errorf("bad file handle")
	}
	return h.files[idx], nil
}

func (h *Host) fopen(_ *machine.Context, name, mode string) (machine.Slot, error) {
	var file *os.File
	var err error
	switch {
	case strings.HasPrefix(mode, "r+") || strings.HasPrefix(mode, "w+") || strings.HasPrefix(mode, "a+"):
		file, err = os.OpenFile(name, os.O_RDWR|os.O_CREATE, 0o644)
	case strings.HasPrefix(mode, "w"):
		file, err = os.Create(name)
	case strings.HasPrefix(mode, "a"):
		file, err = os.OpenFile(name, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	default:
		file, err = os.Open(name)
	}
	if err != nil {
		h.errno = 2
		return nullRet(), nil
	}
	return h.installFile(file)
}

func (h *Host) installFile(file *os.File) (machine.Slot, error) {
	for i := range h.files {
		if h.files[i] == nil {
			h.files[i] = file
			s := nullRet()
			s.PtrValue = machine.Handle{Offset: i + 1}
			return s, nil
		}
	}
	file.Close()
	return machine.Slot{}, fmt.Errorf("too many open files (max %d)", MaxOpenFiles)
}

func (h *Host) malloc(c *machine.Context, size int) (machine.Slot, error) {
	if len(h.allocs) >= MaxAllocs {
		return machine.Slot{}, fmt.Errorf("too many heap blocks (max %d)", MaxAllocs)
	}
	if size <= 0 {
		return nullRet(), nil
	}
	hdl := c.Data.Alloc(size)
	h.allocs[hdl.Offset] = size
	s := nullRet()
	s.PtrValue = hdl
	return s, nil
}

// tm mirrors the nine-int calendar record the time builtins exchange with
// interpreted code: sec, min, hour, mday, mon, year-1900, wday, yday,
// isdst, in that order, 4 bytes each.
const tmWidth = 9 * 4

func tmRet(c *machine.Context, t time.Time) machine.Slot {
	h := c.Data.Alloc(tmWidth)
	fields := []int32{
		int32(t.Second()), int32(t.Minute()), int32(t.Hour()),
		int32(t.Day()), int32(t.Month() - 1), int32(t.Year() - 1900),
		int32(t.Weekday()), int32(t.YearDay() - 1), 0,
	}
	for i, v := range fields {
		c.StoreAt(machine.Handle{Offset: h.Offset + i*4, Width: 4}, machine.IntSlot(v))
	}
	s := nullRet()
	s.PtrValue = h
	return s
}

func tmArg(c *machine.Context, s machine.Slot) time.Time {
	off := s.PtrValue.Offset
	read := func(i int) int {
		b := c.Data.Bytes(machine.Handle{Offset: off + i*4, Width: 4})
		return int(int32(uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24))
	}
	return time.Date(read(5)+1900, time.Month(read(4)+1), read(3), read(2), read(1), read(0), 0, time.Local)
}

func mktime(c *machine.Context, s machine.Slot) int64 {
	return tmArg(c, s).Unix()
}

// timeArg dereferences a time_t* argument, or reads "now" for a null
// pointer.
func timeArg(c *machine.Context, s machine.Slot) int64 {
	if !s.IsPointer() || s.PtrValue.Offset == 0 {
		return time.Now().Unix()
	}
	b := c.Data.Bytes(machine.Handle{Offset: s.PtrValue.Offset, Width: 8})
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return int64(v)
}
