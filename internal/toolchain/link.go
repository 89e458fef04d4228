package toolchain

import (
	"context"
	"path/filepath"

	"github.com/qobs-build/cobble/internal/msg"
)

// Linker invokes the external linker (usually the compiler driver)
type Linker struct {
	Tool   string
	Flavor Flavor
	Exec   Executor
	Dir    string
}

// Link produces exe from objs. Order of objs is kept as given: callers put
// library artifacts before application artifacts.
func (l *Linker) Link(ctx context.Context, objs []string, s *Settings, exe string) error {
	msg.Step("Linking", "%s", filepath.ToSlash(exe))

	if err := l.Exec.Exec(ctx, l.Dir, l.Tool, l.Flavor.LinkArgs(s, objs, exe)...); err != nil {
		return &LinkError{Executable: exe, ExitStatus: ExitStatus(err), Err: err}
	}
	return nil
}
