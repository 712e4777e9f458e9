package engine

import (
	"bytes"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vastcl/vcl/internal/filetest"
	"github.com/vastcl/vcl/lang/vclerr"
)

var testUpdateEngineTests = flag.Bool("test.update-engine-tests", false, "if set, updates the expected output files of the engine tests")

func newTestEngine(stdin string) (*Engine, *bytes.Buffer, *bytes.Buffer) {
	var stdout, stderr bytes.Buffer
	e := New(strings.NewReader(stdin), &stdout, &stderr, Options{
		IncludeDir: filepath.Join("testdata", "include"),
	})
	return e, &stdout, &stderr
}

// TestPrograms runs every testdata program through the whole pipeline and
// diffs captured stdout plus the exit status against the golden file.
func TestPrograms(t *testing.T) {
	files := filetest.SourceFiles(t, "testdata", ".vcl")
	for _, fi := range files {
		fi := fi
		t.Run(fi.Name(), func(t *testing.T) {
			e, stdout, _ := newTestEngine("")
			code := e.Run(filepath.Join("testdata", fi.Name()), nil)
			output := fmt.Sprintf("%sexit: %d\n", stdout.String(), code)
			filetest.DiffOutput(t, fi, output, filepath.Join("testdata", "results"), testUpdateEngineTests)
		})
	}
}

// runSource writes src to a temp file and runs it, returning the exit
// code and captured stdout.
func runSource(t *testing.T, src string) (int, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "prog.vcl")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	e, stdout, _ := newTestEngine("")
	code := e.Run(path, nil)
	return code, stdout.String()
}

func TestPrototypeMismatchFails(t *testing.T) {
	code, _ := runSource(t, `
int f(int);
int f(long x) { return 0; }
int main(void) { return 0; }
`)
	require.Equal(t, int(vclerr.MismatchErr), code)
}

func TestMatchingPrototypesLink(t *testing.T) {
	code, out := runSource(t, `
int add(int a, int b);
int main(void) { printf("%d\n", add(2, 3)); return 0; }
int add(int a, int b) { return a + b; }
`)
	require.Equal(t, 0, code)
	require.Equal(t, "5\n", out)
}

func TestDivideByZeroIsFatal(t *testing.T) {
	code, _ := runSource(t, `
int main(void) { int a = 0; return 1 / a; }
`)
	require.Equal(t, int(vclerr.Div0Err), code)
}

func TestDivideByZeroBehindShortCircuitIsSafe(t *testing.T) {
	code, out := runSource(t, `
int main(void)
{
    int a = 0;
    if (a != 0 && 10 / a > 1)
        printf("yes\n");
    else
        printf("no\n");
    return 0;
}
`)
	require.Equal(t, 0, code)
	require.Equal(t, "no\n", out)
}

func TestBreakOutsideLoopIsFatal(t *testing.T) {
	code, _ := runSource(t, `
int main(void) { break; }
`)
	require.Equal(t, int(vclerr.BreakErr), code)
}

func TestTwoDefaultsIsFatal(t *testing.T) {
	code, _ := runSource(t, `
int main(void)
{
    switch (1) {
    default:
        ;
    default:
        ;
    }
    return 0;
}
`)
	require.Equal(t, int(vclerr.TooManyDefaultsErr), code)
}

func TestSwitchFallthroughAndBreak(t *testing.T) {
	code, out := runSource(t, `
int main(void)
{
    int i;
    for (i = 0; i < 4; i++) {
        switch (i) {
        case 0:
        case 1:
            printf("low ");
            break;
        case 2:
            printf("two ");
            break;
        default:
            printf("high ");
        }
    }
    printf("\n");
    return 0;
}
`)
	require.Equal(t, 0, code)
	require.Equal(t, "low low two high \n", out)
}

func TestFiveArrayDimensionsIsFatal(t *testing.T) {
	code, _ := runSource(t, `
int a[2][2][2][2][2];
int main(void) { return 0; }
`)
	require.Equal(t, int(vclerr.MDimErr), code)
}

func TestFourArrayDimensionsLink(t *testing.T) {
	code, out := runSource(t, `
int a[2][2][2][2];
int main(void)
{
    a[1][1][1][1] = 9;
    printf("%d\n", a[1][1][1][1]);
    return 0;
}
`)
	require.Equal(t, 0, code)
	require.Equal(t, "9\n", out)
}

func TestMaxIfNesting(t *testing.T) {
	nest := func(n int) string {
		var b strings.Builder
		for i := 0; i < n; i++ {
			b.WriteString("#if 1\n")
		}
		b.WriteString("int v = 1;\n")
		for i := 0; i < n; i++ {
			b.WriteString("#endif\n")
		}
		b.WriteString("int main(void) { return v; }\n")
		return b.String()
	}

	code, _ := runSource(t, nest(25))
	require.Equal(t, 1, code, "25 nested #if levels must preprocess")

	code, _ = runSource(t, nest(26))
	require.NotEqual(t, 1, code, "26 nested #if levels must be fatal")
}

func TestMaxIncludeNesting(t *testing.T) {
	buildChain := func(t *testing.T, depth int) string {
		dir := t.TempDir()
		for i := depth; i >= 1; i-- {
			var body string
			if i == depth {
				body = "int v = 1;\n"
			} else {
				body = fmt.Sprintf("#include \"inc%d.h\"\n", i+1)
			}
			require.NoError(t, os.WriteFile(filepath.Join(dir, fmt.Sprintf("inc%d.h", i)), []byte(body), 0o644))
		}
		main := "#include \"inc1.h\"\nint main(void) { return v; }\n"
		path := filepath.Join(dir, "prog.vcl")
		require.NoError(t, os.WriteFile(path, []byte(main), 0o644))
		return path
	}

	e, _, _ := newTestEngine("")
	code := e.Run(buildChain(t, 16), nil)
	require.Equal(t, 1, code, "16 nested includes must preprocess")

	e2, _, _ := newTestEngine("")
	code = e2.Run(buildChain(t, 17), nil)
	require.NotEqual(t, 1, code, "17 nested includes must be fatal")
}

func TestWhileAndContinue(t *testing.T) {
	code, out := runSource(t, `
int main(void)
{
    int i = 0, sum = 0;
    while (i < 10) {
        i++;
        if (i % 2)
            continue;
        sum = sum + i;
    }
    printf("%d\n", sum);
    return 0;
}
`)
	require.Equal(t, 0, code)
	require.Equal(t, "30\n", out)
}

func TestDoWhile(t *testing.T) {
	code, out := runSource(t, `
int main(void)
{
    int i = 0;
    do {
        printf("%d", i);
        i++;
    } while (i < 3);
    printf("\n");
    return 0;
}
`)
	require.Equal(t, 0, code)
	require.Equal(t, "012\n", out)
}

func TestRecursion(t *testing.T) {
	code, out := runSource(t, `
int fact(int n)
{
    if (n <= 1)
        return 1;
    return n * fact(n - 1);
}

int main(void)
{
    printf("%d\n", fact(6));
    return 0;
}
`)
	require.Equal(t, 0, code)
	require.Equal(t, "720\n", out)
}

func TestStructMembers(t *testing.T) {
	code, out := runSource(t, `
struct point {
    int x;
    int y;
};

int main(void)
{
    struct point p;
    struct point *q;

    p.x = 3;
    p.y = 4;
    q = &p;
    printf("%d %d\n", p.x + p.y, q->y);
    return 0;
}
`)
	require.Equal(t, 0, code)
	require.Equal(t, "7 4\n", out)
}

func TestEnumConstants(t *testing.T) {
	code, out := runSource(t, `
enum color { RED, GREEN = 5, BLUE };

int main(void)
{
    printf("%d %d %d\n", RED, GREEN, BLUE);
    return 0;
}
`)
	require.Equal(t, 0, code)
	require.Equal(t, "0 5 6\n", out)
}

func TestTypedef(t *testing.T) {
	code, out := runSource(t, `
typedef unsigned long ticks;

int main(void)
{
    ticks t = 12;
    printf("%d\n", t + 1);
    return 0;
}
`)
	require.Equal(t, 0, code)
	require.Equal(t, "13\n", out)
}

func TestSizeof(t *testing.T) {
	code, out := runSource(t, `
int main(void)
{
    int a[4];
    printf("%d %d %d\n", sizeof(int), sizeof a, sizeof(char *));
    return 0;
}
`)
	require.Equal(t, 0, code)
	require.Equal(t, "4 16 8\n", out)
}

func TestCastIdempotence(t *testing.T) {
	code, out := runSource(t, `
int main(void)
{
    float f = 3.9;
    printf("%d %d\n", (int)f, (int)(int)f);
    return 0;
}
`)
	require.Equal(t, 0, code)
	require.Equal(t, "3 3\n", out)
}

func TestStringBuiltins(t *testing.T) {
	code, out := runSource(t, `
int main(void)
{
    char buf[32];

    strcpy(buf, "abc");
    strcat(buf, "def");
    printf("%s %d %d\n", buf, strlen(buf), strcmp(buf, "abcdef"));
    return 0;
}
`)
	require.Equal(t, 0, code)
	require.Equal(t, "abcdef 6 0\n", out)
}

func TestSetjmpLongjmp(t *testing.T) {
	code, out := runSource(t, `
int env[16];

void fail(void)
{
    longjmp(env, 7);
}

int main(void)
{
    int v;

    v = setjmp(env);
    if (v == 0) {
        printf("first ");
        fail();
        printf("unreachable ");
    } else {
        printf("caught %d", v);
    }
    printf("\n");
    return 0;
}
`)
	require.Equal(t, 0, code)
	require.Equal(t, "first caught 7\n", out)
}

func TestExitBuiltin(t *testing.T) {
	code, out := runSource(t, `
int main(void)
{
    printf("before\n");
    exit(3);
    printf("after\n");
    return 0;
}
`)
	require.Equal(t, 3, code)
	require.Equal(t, "before\n", out)
}

func TestCommandLineArguments(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prog.vcl")
	src := `
int main(int argc, char **argv)
{
    printf("%d %s\n", argc, argv[1]);
    return 0;
}
`
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	e, stdout, _ := newTestEngine("")
	code := e.Run(path, []string{"alpha", "beta"})
	require.Equal(t, 0, code)
	require.Equal(t, "3 alpha\n", stdout.String())
}

func TestNoMain(t *testing.T) {
	code, _ := runSource(t, `
int helper(void) { return 1; }
`)
	require.Equal(t, int(vclerr.NoMainErr), code)
}

func TestScanfReadsStdin(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prog.vcl")
	src := `
int main(void)
{
    int v;
    scanf("%d", &v);
    printf("%d\n", v + 1);
    return 0;
}
`
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	e, stdout, _ := newTestEngine("41\n")
	code := e.Run(path, nil)
	require.Equal(t, 0, code)
	require.Equal(t, "42\n", stdout.String())
}
