package toolchain

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
)

// Executor spawns a child process and waits for it to exit.
// A non-zero exit must be reported as an error satisfying ExitStatus.
type Executor interface {
	Exec(ctx context.Context, dir, name string, args ...string) error
}

// ProcessExecutor runs commands as real child processes, with stdio inherited
type ProcessExecutor struct {
	Stdin          io.Reader
	Stdout, Stderr io.Writer
}

// NewProcessExecutor returns an executor wired to the current process's stdio
func NewProcessExecutor() *ProcessExecutor {
	return &ProcessExecutor{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr}
}

func (e *ProcessExecutor) Exec(ctx context.Context, dir, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdin = e.Stdin
	cmd.Stdout = e.Stdout
	cmd.Stderr = e.Stderr
	return cmd.Run()
}

// ExitCoder is implemented by errors carrying a process exit status
type ExitCoder interface {
	ExitCode() int
}

// ExitStatus extracts the exit status of a failed child process.
// It returns -1 if err does not describe a process exit (e.g. the
// executable was not found).
func ExitStatus(err error) int {
	var ec ExitCoder
	if errors.As(err, &ec) {
		return ec.ExitCode()
	}
	return -1
}
