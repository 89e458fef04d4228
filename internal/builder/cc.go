package builder

import (
	"cmp"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/qobs-build/cobble/internal/toolchain"
)

var commonCxxCompilers = []string{"clang++", "g++", "c++", "icpx", "icpc"}

// findCompiler picks the compiler driver for a flavor. It returns an empty
// string if nothing suitable was found on the system.
func findCompiler(flavor toolchain.Flavor) string {
	if flavor.Name() == toolchain.FlavorMSVC {
		if path, err := exec.LookPath("cl"); err == nil {
			return path
		}
		return findVisualStudioCompiler()
	}

	if cxx := os.Getenv("CXX"); cxx != "" {
		return cxx
	}
	if cc := os.Getenv("CC"); cc != "" {
		return cc
	}

	for _, compiler := range commonCxxCompilers {
		if path, err := exec.LookPath(compiler); err == nil {
			return path
		}
	}

	return ""
}

// newestMSVCCompiler picks the cl.exe with the highest toolset version from
// paths of the form .../VC/Tools/MSVC/<version>/bin/<host>/<arch>/cl.exe
func newestMSVCCompiler(paths []string) string {
	if len(paths) == 0 {
		return ""
	}
	return slices.MaxFunc(paths, func(a, b string) int {
		return compareVersions(msvcToolsetVersion(a), msvcToolsetVersion(b))
	})
}

func msvcToolsetVersion(cl string) string {
	dir := cl
	for range 4 {
		dir = filepath.Dir(dir)
	}
	return filepath.Base(dir)
}

// compareVersions compares dotted versions numerically, component by
// component. A component that is not a number sorts first.
func compareVersions(a, b string) int {
	as, bs := strings.Split(a, "."), strings.Split(b, ".")
	for i := range max(len(as), len(bs)) {
		if c := cmp.Compare(versionPart(as, i), versionPart(bs, i)); c != 0 {
			return c
		}
	}
	return 0
}

func versionPart(parts []string, i int) int {
	if i >= len(parts) {
		return 0
	}
	n, err := strconv.Atoi(parts[i])
	if err != nil {
		return -1
	}
	return n
}
