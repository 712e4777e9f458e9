// Package builtin implements the library shim: the fixed catalog of
// standard-library function names resolved at tokenize time to integer
// library codes, and the host-side dispatcher that runs them against Go's
// standard library with spec-conformant argument and return widening.
package builtin

// Code is a library function's integer code; zero means "not a builtin".
type Code = int

//nolint:revive
const (
	_ Code = iota
	LibErrno
	LibFilename
	LibLineno
	LibAbs
	LibAcos
	LibAsctime
	LibAsin
	LibAtan
	LibAtan2
	LibAtof
	LibAtoi
	LibAtol
	LibCeil
	LibClrscr
	LibCos
	LibCosh
	LibCprintf
	LibCursor
	LibExit
	LibExp
	LibFabs
	LibFclose
	LibFflush
	LibFindfirst
	LibFindnext
	LibFloor
	LibFopen
	LibFprintf
	LibFread
	LibFree
	LibFscanf
	LibFseek
	LibFtell
	LibFwrite
	LibGetc
	LibGetch
	LibGets
	LibGmtime
	LibLocaltime
	LibLog
	LibLog10
	LibLongjmp
	LibMalloc
	LibMktime
	LibPow
	LibPrintf
	LibPutc
	LibPutch
	LibPuts
	LibRemove
	LibRename
	LibRewind
	LibScanf
	LibSetjmp
	LibSin
	LibSinh
	LibSprintf
	LibSqrt
	LibSscanf
	LibStrcat
	LibStrcmp
	LibStrcpy
	LibStrlen
	LibStrncat
	LibStrncmp
	LibStrncpy
	LibSystem
	LibTan
	LibTanh
	LibTime
	LibTmpfile
	LibTmpnam
	LibUngetc
)

// catalog maps each shim name to its code. Kept sorted by name and
// searched with binary search, the same lookup discipline the keyword
// table uses.
var catalog = []struct {
	name string
	code Code
}{
	{"_Errno", LibErrno},
	{"_filename", LibFilename},
	{"_lineno", LibLineno},
	{"abs", LibAbs},
	{"acos", LibAcos},
	{"asctime", LibAsctime},
	{"asin", LibAsin},
	{"atan", LibAtan},
	{"atan2", LibAtan2},
	{"atof", LibAtof},
	{"atoi", LibAtoi},
	{"atol", LibAtol},
	{"ceil", LibCeil},
	{"clrscr", LibClrscr},
	{"cos", LibCos},
	{"cosh", LibCosh},
	{"cprintf", LibCprintf},
	{"cursor", LibCursor},
	{"exit", LibExit},
	{"exp", LibExp},
	{"fabs", LibFabs},
	{"fclose", LibFclose},
	{"fflush", LibFflush},
	{"findfirst", LibFindfirst},
	{"findnext", LibFindnext},
	{"floor", LibFloor},
	{"fopen", LibFopen},
	{"fprintf", LibFprintf},
	{"fread", LibFread},
	{"free", LibFree},
	{"fscanf", LibFscanf},
	{"fseek", LibFseek},
	{"ftell", LibFtell},
	{"fwrite", LibFwrite},
	{"getc", LibGetc},
	{"getch", LibGetch},
	{"gets", LibGets},
	{"gmtime", LibGmtime},
	{"localtime", LibLocaltime},
	{"log", LibLog},
	{"log10", LibLog10},
	{"longjmp", LibLongjmp},
	{"malloc", LibMalloc},
	{"mktime", LibMktime},
	{"pow", LibPow},
	{"printf", LibPrintf},
	{"putc", LibPutc},
	{"putch", LibPutch},
	{"puts", LibPuts},
	{"remove", LibRemove},
	{"rename", LibRename},
	{"rewind", LibRewind},
	{"scanf", LibScanf},
	{"setjmp", LibSetjmp},
	{"sin", LibSin},
	{"sinh", LibSinh},
	{"sprintf", LibSprintf},
	{"sqrt", LibSqrt},
	{"sscanf", LibSscanf},
	{"strcat", LibStrcat},
	{"strcmp", LibStrcmp},
	{"strcpy", LibStrcpy},
	{"strlen", LibStrlen},
	{"strncat", LibStrncat},
	{"strncmp", LibStrncmp},
	{"strncpy", LibStrncpy},
	{"system", LibSystem},
	{"tan", LibTan},
	{"tanh", LibTanh},
	{"time", LibTime},
	{"tmpfile", LibTmpfile},
	{"tmpnam", LibTmpnam},
	{"ungetc", LibUngetc},
}

func init() {
	for i := 1; i < len(catalog); i++ {
		if catalog[i-1].name > catalog[i].name {
			panic("builtin: catalog is not sorted: " + catalog[i-1].name + " > " + catalog[i].name)
		}
	}
}

// Lookup performs a binary search of the catalog and reports the library
// code for name, or 0, false when name is not a shim function. The
// tokenizer calls this for every identifier it cannot otherwise classify.
func Lookup(name string) (Code, bool) {
	lo, hi := 0, len(catalog)
	for lo < hi {
		mid := (lo + hi) / 2
		switch {
		case catalog[mid].name == name:
			return catalog[mid].code, true
		case catalog[mid].name < name:
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return 0, false
}
