package toolchain

import "fmt"

// CompileError reports that the compiler rejected a source or could not be started
type CompileError struct {
	Source     string
	ExitStatus int
	Err        error
}

func (e *CompileError) Error() string {
	if e.ExitStatus < 0 {
		return fmt.Sprintf("compile %s: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("compile %s: compiler exited with status %d", e.Source, e.ExitStatus)
}

func (e *CompileError) Unwrap() error { return e.Err }

// LinkError reports that the linker failed to produce the executable
type LinkError struct {
	Executable string
	ExitStatus int
	Err        error
}

func (e *LinkError) Error() string {
	if e.ExitStatus < 0 {
		return fmt.Sprintf("link %s: %v", e.Executable, e.Err)
	}
	return fmt.Sprintf("link %s: linker exited with status %d", e.Executable, e.ExitStatus)
}

func (e *LinkError) Unwrap() error { return e.Err }
