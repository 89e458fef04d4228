package toolchain

import (
	"context"
	"errors"
	"io"
	"slices"
	"strings"
	"testing"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/qobs-build/cobble/internal/msg"
)

func init() {
	msg.Output = io.Discard
}

type exitErr int

func (e exitErr) Error() string { return "exit status" }
func (e exitErr) ExitCode() int { return int(e) }

// recorder is an Executor that remembers every command line it was given
type recorder struct {
	calls [][]string
	fail  map[string]error // keyed by any argument of the call
}

func (r *recorder) Exec(_ context.Context, _, name string, args ...string) error {
	r.calls = append(r.calls, append([]string{name}, args...))
	for _, a := range args {
		if err, ok := r.fail[a]; ok {
			return err
		}
	}
	return r.fail[name]
}

func testSettings() *Settings {
	return NewSettings(Options{
		Standard:    []string{"/std:c++20", "/EHsc"},
		Encoding:    []string{"/utf-8"},
		Debug:       []string{"/MDd", "/Od", "/Zi"},
		IncludeDirs: []string{"./SDL3/include", ".", "./imgui"},
		LibraryDirs: []string{"./SDL3/lib/x64", "."},
		Libraries:   []string{"user32", "gdi32.lib", "SDL3", "dwmapi"},
		LinkerFlags: []string{"/SUBSYSTEM:WINDOWS", "/ENTRY:mainCRTStartup"},
	})
}

func TestArtifactPath(t *testing.T) {
	tests := []struct {
		src, ext, want string
	}{
		{"main.cpp", ".obj", "main.obj"},
		{"imgui/backends/imgui_impl_sdl3.cpp", ".obj", "imgui/backends/imgui_impl_sdl3.obj"},
		{"src/util.c", ".o", "src/util.o"},
		{"noext", ".o", "noext.o"},
		{"dir.v2/file.cc", ".o", "dir.v2/file.o"},
	}
	for _, tt := range tests {
		got := ArtifactPath(tt.src, tt.ext)
		if got != tt.want {
			t.Errorf("ArtifactPath(%q, %q) = %q, want %q", tt.src, tt.ext, got, tt.want)
		}
		if again := ArtifactPath(tt.src, tt.ext); again != got {
			t.Errorf("ArtifactPath(%q) not deterministic: %q then %q", tt.src, got, again)
		}
	}
}

func TestSettingsImmutable(t *testing.T) {
	include := []string{"a", "b"}
	s := NewSettings(Options{IncludeDirs: include})
	before := s.Fingerprint()

	include[0] = "changed"
	got := s.IncludeDirs()
	got[1] = "changed too"

	if !slices.Equal(s.IncludeDirs(), []string{"a", "b"}) {
		t.Errorf("settings changed through an alias: %q", s.IncludeDirs())
	}
	if s.Fingerprint() != before {
		t.Error("fingerprint changed")
	}
}

func TestFingerprint(t *testing.T) {
	a := NewSettings(Options{Standard: []string{"-std=c++20"}, Libraries: []string{"m"}})
	b := NewSettings(Options{Standard: []string{"-std=c++20"}, Libraries: []string{"m"}})
	if a.Fingerprint() != b.Fingerprint() {
		t.Error("equal settings have different fingerprints")
	}
	// moving a value between categories must change the digest
	c := NewSettings(Options{Standard: []string{"-std=c++20", "m"}})
	if a.Fingerprint() == c.Fingerprint() {
		t.Error("different settings share a fingerprint")
	}
}

func TestCompileMSVC(t *testing.T) {
	rec := &recorder{}
	c := &Compiler{Tool: "cl", Flavor: MSVC{}, Exec: rec}

	obj, err := c.Compile(context.Background(), "imgui/imgui.cpp", testSettings())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if obj != "imgui/imgui.obj" {
		t.Errorf("artifact = %q", obj)
	}
	want := "cl /std:c++20 /EHsc /utf-8 /MDd /Od /Zi /I./SDL3/include /I. /I./imgui /c imgui/imgui.cpp /Fo:imgui/imgui.obj"
	if got := strings.Join(rec.calls[0], " "); got != want {
		t.Errorf("command line\n got %s\nwant %s", got, want)
	}
}

func TestCompileGNU(t *testing.T) {
	rec := &recorder{}
	c := &Compiler{Tool: "g++", Flavor: GNU{}, Exec: rec}
	s := NewSettings(Options{
		Standard:    []string{"-std=c++20"},
		Debug:       []string{"-O0", "-g"},
		IncludeDirs: []string{"imgui"},
	})

	obj, err := c.Compile(context.Background(), "main.cpp", s)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if obj != "main.o" {
		t.Errorf("artifact = %q", obj)
	}
	want := "g++ -std=c++20 -O0 -g -Iimgui -c main.cpp -o main.o"
	if got := strings.Join(rec.calls[0], " "); got != want {
		t.Errorf("command line\n got %s\nwant %s", got, want)
	}
}

func TestCompileTwiceSamePath(t *testing.T) {
	rec := &recorder{}
	c := &Compiler{Tool: "cl", Flavor: MSVC{}, Exec: rec}
	s := testSettings()

	first, _ := c.Compile(context.Background(), "main.cpp", s)
	second, _ := c.Compile(context.Background(), "main.cpp", s)
	if first != second || !slices.Equal(rec.calls[0], rec.calls[1]) {
		t.Errorf("repeated compile drifted: %q vs %q", rec.calls[0], rec.calls[1])
	}
}

func TestCompileFailure(t *testing.T) {
	t.Run("non-zero exit", func(t *testing.T) {
		rec := &recorder{fail: map[string]error{"main.cpp": exitErr(2)}}
		c := &Compiler{Tool: "cl", Flavor: MSVC{}, Exec: rec}

		_, err := c.Compile(context.Background(), "main.cpp", testSettings())
		var ce *CompileError
		if !errors.As(err, &ce) {
			t.Fatalf("got %v, want CompileError", err)
		}
		if ce.Source != "main.cpp" || ce.ExitStatus != 2 {
			t.Errorf("unexpected error fields: %+v", ce)
		}
	})

	t.Run("tool missing", func(t *testing.T) {
		notFound := errors.New("executable file not found")
		rec := &recorder{fail: map[string]error{"cl": notFound}}
		c := &Compiler{Tool: "cl", Flavor: MSVC{}, Exec: rec}

		_, err := c.Compile(context.Background(), "main.cpp", testSettings())
		var ce *CompileError
		if !errors.As(err, &ce) || ce.ExitStatus != -1 || !errors.Is(err, notFound) {
			t.Errorf("got %v, want CompileError wrapping the spawn error", err)
		}
	})
}

func TestLinkOrder(t *testing.T) {
	rec := &recorder{}
	l := &Linker{Tool: "cl", Flavor: MSVC{}, Exec: rec}
	objs := []string{"imgui/imgui.obj", "imgui/imgui_draw.obj", "main.obj"}

	if err := l.Link(context.Background(), objs, testSettings(), "app.exe"); err != nil {
		t.Fatalf("Link: %v", err)
	}
	want := "cl imgui/imgui.obj imgui/imgui_draw.obj main.obj /Fe:app.exe /link " +
		"/SUBSYSTEM:WINDOWS /ENTRY:mainCRTStartup /LIBPATH:./SDL3/lib/x64 /LIBPATH:. " +
		"user32.lib gdi32.lib SDL3.lib dwmapi.lib"
	if got := strings.Join(rec.calls[0], " "); got != want {
		t.Errorf("command line\n got %s\nwant %s", got, want)
	}
}

func TestLinkGNU(t *testing.T) {
	rec := &recorder{}
	l := &Linker{Tool: "c++", Flavor: GNU{}, Exec: rec}
	s := NewSettings(Options{
		LibraryDirs: []string{"SDL3/lib"},
		Libraries:   []string{"SDL3", "pthread"},
		LinkerFlags: []string{"-Wl,--as-needed"},
	})

	if err := l.Link(context.Background(), []string{"lib.o", "main.o"}, s, "app"); err != nil {
		t.Fatalf("Link: %v", err)
	}
	want := "c++ lib.o main.o -o app -Wl,--as-needed -LSDL3/lib -lSDL3 -lpthread"
	if got := strings.Join(rec.calls[0], " "); got != want {
		t.Errorf("command line\n got %s\nwant %s", got, want)
	}
}

func TestLinkFailure(t *testing.T) {
	rec := &recorder{fail: map[string]error{"/Fe:app.exe": exitErr(1120)}}
	l := &Linker{Tool: "cl", Flavor: MSVC{}, Exec: rec}

	err := l.Link(context.Background(), []string{"main.obj"}, testSettings(), "app.exe")
	var le *LinkError
	if !errors.As(err, &le) || le.ExitStatus != 1120 || le.Executable != "app.exe" {
		t.Errorf("got %v, want LinkError with status 1120", err)
	}
}

func TestRun(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		rec := &recorder{}
		r := &Runner{Exec: rec, Dir: "/proj"}
		status, err := r.Run(context.Background(), "app.exe", []string{"--flag"})
		if status != 0 || err != nil {
			t.Fatalf("got %d, %v", status, err)
		}
		if got := strings.Join(rec.calls[0], " "); got != "/proj/app.exe --flag" {
			t.Errorf("launched %q", got)
		}
	})

	t.Run("program fails", func(t *testing.T) {
		rec := &recorder{fail: map[string]error{"/proj/app": exitErr(3)}}
		r := &Runner{Exec: rec, Dir: "/proj"}
		status, err := r.Run(context.Background(), "app", nil)
		if status != 3 || err != nil {
			t.Errorf("got %d, %v; want status 3 and no error", status, err)
		}
	})

	t.Run("cannot start", func(t *testing.T) {
		rec := &recorder{fail: map[string]error{"/proj/app": errors.New("no such file")}}
		r := &Runner{Exec: rec, Dir: "/proj"}
		if _, err := r.Run(context.Background(), "app", nil); err == nil {
			t.Error("expected an error")
		}
	})
}

func TestFlavorByName(t *testing.T) {
	for _, name := range Flavors() {
		f, err := FlavorByName(name)
		if err != nil || f.Name() != name {
			t.Errorf("FlavorByName(%q) = %v, %v", name, f, err)
		}
	}
	if _, err := FlavorByName("borland"); err == nil {
		t.Error("expected error for unknown flavor")
	}
}

func TestExecutableName(t *testing.T) {
	if got := (MSVC{}).ExecutableName("another_alt_tab"); got != "another_alt_tab.exe" {
		t.Errorf("msvc: %q", got)
	}
	if got := (MSVC{}).ExecutableName("app.exe"); got != "app.exe" {
		t.Errorf("msvc with ext: %q", got)
	}
	if got := (GNU{}).ExecutableName("app"); got != "app" {
		t.Errorf("gnu: %q", got)
	}
}

func TestGNUCleanPatternsMatchNameLiterally(t *testing.T) {
	patterns := (GNU{}).CleanPatterns("demo[1]{x}*?")
	if len(patterns) != 2 {
		t.Fatalf("patterns = %q", patterns)
	}
	exe := patterns[1]
	if !doublestar.ValidatePattern(exe) {
		t.Fatalf("invalid pattern %q", exe)
	}
	for name, want := range map[string]bool{
		"demo[1]{x}*?": true,
		"demo1x":       false,
		"demo[1]{x}ab": false,
		"main.cpp":     false,
	} {
		if got, _ := doublestar.Match(exe, name); got != want {
			t.Errorf("Match(%q, %q) = %v, want %v", exe, name, got, want)
		}
	}

	if got := (GNU{}).CleanPatterns(""); !slices.Equal(got, []string{"**/*.o"}) {
		t.Errorf("patterns without an executable = %q", got)
	}
}
