//go:build windows

package builder

import (
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/heaths/go-vssetup"
	"github.com/qobs-build/cobble/internal/msg"
)

// findVisualStudioCompiler looks for the newest x64 cl.exe inside the
// installed Visual Studio instances. The returned compiler still needs the
// INCLUDE and LIB variables a developer prompt sets up.
func findVisualStudioCompiler() string {
	instances, err := vssetup.Instances(false)
	if err != nil {
		return ""
	}

	var found []string
	for _, instance := range instances {
		root, err := instance.InstallationPath()
		if err != nil {
			continue
		}
		pattern := filepath.Join(root, "VC", "Tools", "MSVC", "*", "bin", "Hostx64", "x64", "cl.exe")
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			continue
		}
		found = append(found, matches...)
	}
	cl := newestMSVCCompiler(found)
	if cl == "" {
		return ""
	}
	msg.Warn("cl is not on PATH, using %s (run from a developer prompt if headers are not found)", cl)
	return cl
}
