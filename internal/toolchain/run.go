package toolchain

import (
	"context"
	"path/filepath"

	"github.com/qobs-build/cobble/internal/msg"
)

// Runner launches the linked executable
type Runner struct {
	Exec Executor
	Dir  string
}

// Run starts exe with args and waits for it. A program that exits non-zero
// is not an error: its status is returned with a nil error. An error is
// returned only when the program could not be started at all.
func (r *Runner) Run(ctx context.Context, exe string, args []string) (int, error) {
	path := exe
	if !filepath.IsAbs(path) {
		path = filepath.Join(r.Dir, exe)
	}
	msg.Step("Running", "%s", filepath.ToSlash(exe))

	err := r.Exec.Exec(ctx, r.Dir, path, args...)
	if err == nil {
		return 0, nil
	}
	if status := ExitStatus(err); status >= 0 {
		return status, nil
	}
	return -1, err
}
