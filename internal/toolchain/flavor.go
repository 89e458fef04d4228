package toolchain

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
)

const (
	FlavorMSVC = "msvc"
	FlavorGNU  = "gnu"
)

// Flavor knows the flag syntax of one compiler family. The toolchain name
// itself is never part of the returned argument lists.
type Flavor interface {
	Name() string
	// DefaultCompiler is the driver used when nothing else is configured or found
	DefaultCompiler() string
	ObjectExt() string
	ExecutableName(base string) string
	CompileArgs(s *Settings, src, obj string) []string
	LinkArgs(s *Settings, objs []string, exe string) []string
	// CleanPatterns returns doublestar patterns matching every file the
	// toolchain may leave behind, relative to the project root
	CleanPatterns(exe string) []string
}

// Flavors lists the supported flavor names
func Flavors() []string {
	return []string{FlavorGNU, FlavorMSVC}
}

func FlavorByName(name string) (Flavor, error) {
	switch name {
	case FlavorMSVC:
		return MSVC{}, nil
	case FlavorGNU:
		return GNU{}, nil
	}
	return nil, fmt.Errorf("unknown toolchain flavor %q, known flavors: %s", name, strings.Join(Flavors(), ", "))
}

// MSVC drives cl.exe, which both compiles and links (via /link)
type MSVC struct{}

func (MSVC) Name() string            { return FlavorMSVC }
func (MSVC) DefaultCompiler() string { return "cl" }
func (MSVC) ObjectExt() string       { return ".obj" }

func (MSVC) ExecutableName(base string) string {
	if filepath.Ext(base) == ".exe" {
		return base
	}
	return base + ".exe"
}

func (MSVC) CompileArgs(s *Settings, src, obj string) []string {
	args := slices.Concat(s.standard, s.encoding, s.debug)
	for _, dir := range s.includeDirs {
		args = append(args, "/I"+dir)
	}
	return append(args, "/c", src, "/Fo:"+obj)
}

func (MSVC) LinkArgs(s *Settings, objs []string, exe string) []string {
	args := slices.Clone(objs)
	args = append(args, "/Fe:"+exe, "/link")
	args = append(args, s.linkerFlags...)
	for _, dir := range s.libraryDirs {
		args = append(args, "/LIBPATH:"+dir)
	}
	for _, lib := range s.libraries {
		if filepath.Ext(lib) != ".lib" {
			lib += ".lib"
		}
		args = append(args, lib)
	}
	return args
}

func (MSVC) CleanPatterns(string) []string {
	return []string{"**/*.obj", "**/*.exe", "**/*.pdb", "**/*.ilk"}
}

// GNU drives gcc/clang style compiler drivers
type GNU struct{}

func (GNU) Name() string            { return FlavorGNU }
func (GNU) DefaultCompiler() string { return "c++" }
func (GNU) ObjectExt() string       { return ".o" }

func (GNU) ExecutableName(base string) string { return base }

func (GNU) CompileArgs(s *Settings, src, obj string) []string {
	args := slices.Concat(s.standard, s.encoding, s.debug)
	for _, dir := range s.includeDirs {
		args = append(args, "-I"+dir)
	}
	return append(args, "-c", src, "-o", obj)
}

// LinkArgs has no linker-mode separator: the driver takes linker flags after
// the inputs, raw linker options are expected in -Wl, form.
func (GNU) LinkArgs(s *Settings, objs []string, exe string) []string {
	args := slices.Clone(objs)
	args = append(args, "-o", exe)
	args = append(args, s.linkerFlags...)
	for _, dir := range s.libraryDirs {
		args = append(args, "-L"+dir)
	}
	for _, lib := range s.libraries {
		args = append(args, "-l"+lib)
	}
	return args
}

// CleanPatterns matches the executable only when its name is known
func (GNU) CleanPatterns(exe string) []string {
	patterns := []string{"**/*.o"}
	if exe != "" {
		patterns = append(patterns, escapeGlob(filepath.ToSlash(exe)))
	}
	return patterns
}

var globMeta = strings.NewReplacer(
	`\`, `\\`,
	"*", `\*`,
	"?", `\?`,
	"[", `\[`,
	"]", `\]`,
	"{", `\{`,
	"}", `\}`,
)

// escapeGlob makes a literal file name safe to use as a doublestar pattern
func escapeGlob(name string) string {
	return globMeta.Replace(name)
}
