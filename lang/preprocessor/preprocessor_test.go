package preprocessor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vastcl/vcl/lang/token"
)

func runSource(t *testing.T, src string) (*Processor, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "in.vcl")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))

	pp := NewProcessor(token.NewFileSet(), dir)
	err := pp.Run(path)
	return pp, func() string {
		if err != nil {
			return ""
		}
		return pp.Out.String()
	}()
}

func TestObjectLikeMacro(t *testing.T) {
	pp, out := runSource(t, "#define N 10\nint x = N;\n")
	require.False(t, pp.Errors.HasFatal())
	require.Contains(t, out, "int x = 10;")
}

func TestFunctionLikeMacro(t *testing.T) {
	pp, out := runSource(t, "#define ADD(a, b) ((a) + (b))\nint x = ADD(1, 2);\n")
	require.False(t, pp.Errors.HasFatal())
	require.Contains(t, out, "((1) + (2))")
}

func TestIfdefSkipsUndefined(t *testing.T) {
	pp, out := runSource(t, "#ifdef FOO\nint a;\n#else\nint b;\n#endif\n")
	require.False(t, pp.Errors.HasFatal())
	require.NotContains(t, out, "int a;")
	require.Contains(t, out, "int b;")
}

func TestIfExpression(t *testing.T) {
	pp, out := runSource(t, "#define VER 3\n#if VER >= 2 && VER < 10\nint ok;\n#endif\n")
	require.False(t, pp.Errors.HasFatal())
	require.Contains(t, out, "int ok;")
}

func TestUnterminatedIfIsFatal(t *testing.T) {
	pp, _ := runSource(t, "#if 1\nint a;\n")
	require.True(t, pp.Errors.HasFatal())
}

func TestErrorDirectiveIsFatal(t *testing.T) {
	pp, _ := runSource(t, "#error boom\n")
	require.True(t, pp.Errors.HasFatal())
	require.Contains(t, pp.Errors.Error(), "boom")
}

func TestStringizeAndPaste(t *testing.T) {
	pp, out := runSource(t, "#define STR(x) #x\n#define CAT(a, b) a##b\nchar *s = STR(hi);\nint CAT(fo, o);\n")
	require.False(t, pp.Errors.HasFatal())
	require.Contains(t, out, `"hi"`)
	require.Contains(t, out, "int foo;")
}

func TestDirectiveFreeTextIsStable(t *testing.T) {
	// preprocessing text with no directives and no macro names only adds
	// the file/line markers; re-preprocessing the stripped payload yields
	// the same payload again.
	src := "int a;\nchar *s;\n"
	pp, out := runSource(t, src)
	require.False(t, pp.Errors.HasFatal())

	stripped := ""
	for _, line := range []string{"int a;", "char *s;"} {
		require.Contains(t, out, line)
		stripped += line + "\n"
	}
	pp2, out2 := runSource(t, stripped)
	require.False(t, pp2.Errors.HasFatal())
	require.Contains(t, out2, "int a;")
	require.Contains(t, out2, "char *s;")
}

func TestUnrelatedDefineOrderIrrelevant(t *testing.T) {
	a := "#define ONE 1\n#define TWO 2\nint x = ONE + TWO;\n"
	b := "#define TWO 2\n#define ONE 1\nint x = ONE + TWO;\n"
	ppA, outA := runSource(t, a)
	ppB, outB := runSource(t, b)
	require.False(t, ppA.Errors.HasFatal())
	require.False(t, ppB.Errors.HasFatal())
	require.Equal(t, outA, outB)
}

func TestCommentStripping(t *testing.T) {
	pp, out := runSource(t, "int a; // trailing\nint /* mid */ b;\n")
	require.False(t, pp.Errors.HasFatal())
	require.Contains(t, out, "int a;")
	require.Contains(t, out, "b;")
	require.NotContains(t, out, "mid")
}
