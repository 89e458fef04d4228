package builder

import (
	"errors"
	"slices"
	"testing"
)

func TestParseTarget(t *testing.T) {
	tests := []struct {
		name string
		want Target
	}{
		{"", TargetRun},
		{"run", TargetRun},
		{"all", TargetAll},
		{"main", TargetMain},
		{"clean", TargetClean},
		{"fetch", TargetFetch},
	}
	for _, tt := range tests {
		got, err := ParseTarget(tt.name)
		if err != nil || got != tt.want {
			t.Errorf("ParseTarget(%q) = %v, %v; want %v", tt.name, got, err, tt.want)
		}
		if tt.name != "" && got.String() != tt.name {
			t.Errorf("%v.String() = %q", got, got.String())
		}
	}

	if _, err := ParseTarget("imgui"); !errors.Is(err, ErrUnknownTarget) {
		t.Errorf("unknown target: got %v, want ErrUnknownTarget", err)
	}
}

func TestNewSourceSet(t *testing.T) {
	lib := []string{"imgui/imgui.cpp", "imgui/imgui_draw.cpp"}
	app := []string{"main.cpp"}

	set, err := NewSourceSet(lib, app)
	if err != nil {
		t.Fatalf("NewSourceSet: %v", err)
	}
	lib[0] = "changed.cpp"
	if set.Library[0] != "imgui/imgui.cpp" {
		t.Error("source set aliases its input")
	}

	for name, tc := range map[string][2][]string{
		"no application": {{"a.cpp"}, nil},
		"overlap":        {{"main.cpp"}, {"./main.cpp"}},
		"duplicate":      {{"a.cpp", "a.cpp"}, {"main.cpp"}},
		"empty path":     {{""}, {"main.cpp"}},
	} {
		if _, err := NewSourceSet(tc[0], tc[1]); err == nil {
			t.Errorf("%s: accepted %q / %q", name, tc[0], tc[1])
		}
	}

	// a project may consist of application sources only
	set, err = NewSourceSet(nil, app)
	if err != nil || len(set.Library) != 0 || !slices.Equal(set.Application, app) {
		t.Errorf("application only: %+v, %v", set, err)
	}
}

func TestResolveFetchSource(t *testing.T) {
	tests := map[string]string{
		"gh:ocornut/imgui":                  "https://github.com/ocornut/imgui",
		"cb:foo/bar@main":                   "https://codeberg.org/foo/bar@main",
		"git:https://example.com/sdl.git":   "https://example.com/sdl.git",
		"https://github.com/libsdl-org/SDL": "https://github.com/libsdl-org/SDL",
	}
	for in, want := range tests {
		got, err := resolveFetchSource(in)
		if err != nil || got != want {
			t.Errorf("resolveFetchSource(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	for _, bad := range []string{"", "vendor/imgui"} {
		if _, err := resolveFetchSource(bad); err == nil {
			t.Errorf("resolveFetchSource(%q) accepted", bad)
		}
	}
}

func TestParseGitURL(t *testing.T) {
	tests := []struct {
		in   string
		want gitURL
	}{
		{"https://github.com/ocornut/imgui", gitURL{cleanURL: "https://github.com/ocornut/imgui.git"}},
		{"https://github.com/ocornut/imgui@docking", gitURL{cleanURL: "https://github.com/ocornut/imgui.git", branch: "docking"}},
		{"https://github.com/ocornut/imgui#v1.91.9", gitURL{cleanURL: "https://github.com/ocornut/imgui.git", commitOrTag: "v1.91.9"}},
		{"https://github.com/ocornut/imgui.git@master#1a2b3c", gitURL{cleanURL: "https://github.com/ocornut/imgui.git", branch: "master", commitOrTag: "1a2b3c"}},
		{"https://user@example.com/repo", gitURL{cleanURL: "https://user@example.com/repo.git"}},
	}
	for _, tt := range tests {
		if got := parseGitURL(tt.in); got != tt.want {
			t.Errorf("parseGitURL(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}
