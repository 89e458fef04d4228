package toolchain

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/qobs-build/cobble/internal/msg"
)

// ArtifactPath derives the object file for src: same directory, same stem,
// extension replaced by ext
func ArtifactPath(src, ext string) string {
	return strings.TrimSuffix(src, filepath.Ext(src)) + ext
}

// Compiler invokes the external compiler for one source at a time
type Compiler struct {
	Tool   string
	Flavor Flavor
	Exec   Executor
	// Dir is the working directory of the child process; sources and
	// artifacts are relative to it
	Dir string
}

// Compile builds the object artifact for src and returns its path
func (c *Compiler) Compile(ctx context.Context, src string, s *Settings) (string, error) {
	obj := ArtifactPath(src, c.Flavor.ObjectExt())
	msg.Step("Compiling", "%s", filepath.ToSlash(src))

	if err := c.Exec.Exec(ctx, c.Dir, c.Tool, c.Flavor.CompileArgs(s, src, obj)...); err != nil {
		return "", &CompileError{Source: src, ExitStatus: ExitStatus(err), Err: err}
	}
	return obj, nil
}
