// Package cache decides which library artifacts are compiled and which are
// reused from a previous full build.
package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/qobs-build/cobble/internal/toolchain"
)

// Policy selects how the library group is obtained
type Policy int

const (
	// Full compiles every source, ignoring artifacts already on disk
	Full Policy = iota
	// Incremental reuses library artifacts produced by an earlier full build
	Incremental
)

func (p Policy) String() string {
	switch p {
	case Full:
		return "full"
	case Incremental:
		return "incremental"
	}
	return fmt.Sprintf("Policy(%d)", int(p))
}

// MissingArtifactError is returned when an artifact expected for reuse is not on disk
type MissingArtifactError struct {
	Source   string
	Artifact string
}

func (e *MissingArtifactError) Error() string {
	return fmt.Sprintf("cached artifact %s for %s is missing (run a full build first)", e.Artifact, e.Source)
}

// Cache tracks artifacts under a project root
type Cache struct {
	root string
	fsys fs.FS
}

func New(root string) *Cache {
	return &Cache{root: root, fsys: os.DirFS(root)}
}

func (c *Cache) Root() string { return c.root }

// Reuse derives the artifact of every source and checks that it exists.
// Freshness is not checked: an artifact that exists is trusted.
func (c *Cache) Reuse(sources []string, ext string) ([]string, error) {
	objs := make([]string, 0, len(sources))
	for _, src := range sources {
		obj := toolchain.ArtifactPath(src, ext)
		if err := c.exists(obj); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, &MissingArtifactError{Source: src, Artifact: obj}
			}
			return nil, fmt.Errorf("stat cached artifact %s: %w", obj, err)
		}
		objs = append(objs, obj)
	}
	return objs, nil
}

func (c *Cache) exists(obj string) error {
	var info fs.FileInfo
	var err error
	if filepath.IsAbs(obj) {
		info, err = os.Stat(obj)
	} else {
		info, err = fs.Stat(c.fsys, filepath.ToSlash(filepath.Clean(obj)))
	}
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", obj)
	}
	return nil
}
