package token

import "testing"

func TestMakePosFileLine(t *testing.T) {
	cases := []struct {
		file, line int
	}{
		{1, 1},
		{1, 42},
		{3, 1},
		{7, MaxLines},
	}
	for _, c := range cases {
		p := MakePos(c.file, c.line)
		gotFile, gotLine := p.FileLine()
		if gotFile != c.file || gotLine != c.line {
			t.Errorf("MakePos(%d, %d): FileLine() = (%d, %d)", c.file, c.line, gotFile, gotLine)
		}
	}
}

func TestPosIsValid(t *testing.T) {
	var zero Pos
	if zero.IsValid() {
		t.Errorf("zero Pos should not be valid")
	}
	if !MakePos(1, 1).IsValid() {
		t.Errorf("MakePos(1, 1) should be valid")
	}
}

func TestFileSetAddFile(t *testing.T) {
	fset := NewFileSet()
	f1, err := fset.AddFile("main.vcl", "/src/main.vcl")
	if err != nil {
		t.Fatalf("AddFile: %v", err)
	}
	if f1.ID() != 1 {
		t.Errorf("first file id = %d, want 1", f1.ID())
	}

	f2, err := fset.AddFile("defs.h", "/src/defs.h")
	if err != nil {
		t.Fatalf("AddFile: %v", err)
	}
	if f2.ID() != 2 {
		t.Errorf("second file id = %d, want 2", f2.ID())
	}

	if fset.File(1) != f1 || fset.File(2) != f2 {
		t.Errorf("File lookup did not return the registered files")
	}
	if fset.File(0) != nil || fset.File(3) != nil {
		t.Errorf("File should return nil for out-of-range ids")
	}
	if fset.Count() != 2 {
		t.Errorf("Count() = %d, want 2", fset.Count())
	}
}

func TestFileSetTooManyFiles(t *testing.T) {
	fset := NewFileSet()
	for i := 0; i < MaxFiles; i++ {
		if _, err := fset.AddFile("f", "f"); err != nil {
			t.Fatalf("AddFile unexpectedly failed at %d: %v", i, err)
		}
	}
	if _, err := fset.AddFile("one-too-many", "one-too-many"); err == nil {
		t.Errorf("expected an error once MaxFiles is exceeded")
	}
}

func TestFilePos(t *testing.T) {
	fset := NewFileSet()
	f, _ := fset.AddFile("main.vcl", "/src/main.vcl")
	p := f.Pos(10)
	gotFile, gotLine := p.FileLine()
	if gotFile != f.ID() || gotLine != 10 {
		t.Errorf("f.Pos(10).FileLine() = (%d, %d), want (%d, 10)", gotFile, gotLine, f.ID())
	}
}

func TestFileSetPosition(t *testing.T) {
	fset := NewFileSet()
	f, _ := fset.AddFile("main.vcl", "/src/main.vcl")

	got := fset.Position(f.Pos(5))
	want := "main.vcl:5"
	if got != want {
		t.Errorf("Position = %q, want %q", got, want)
	}

	if got := fset.Position(Pos(0)); got != "<unknown>" {
		t.Errorf("Position(0) = %q, want <unknown>", got)
	}
}
