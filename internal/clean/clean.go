// Package clean removes generated files from a project tree.
package clean

import (
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Outcome is the result of removing one file
type Outcome struct {
	Path string // relative to the swept root, slash separated
	Err  error  // nil if the file was removed
}

// Report lists every file a sweep tried to remove
type Report struct {
	Outcomes []Outcome
}

// Removed counts the files that were actually deleted
func (r Report) Removed() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Err == nil {
			n++
		}
	}
	return n
}

// Skipped returns the outcomes whose deletion failed
func (r Report) Skipped() []Outcome {
	var skipped []Outcome
	for _, o := range r.Outcomes {
		if o.Err != nil {
			skipped = append(skipped, o)
		}
	}
	return skipped
}

// Sweep deletes every file under root matching one of patterns. A file that
// cannot be deleted is recorded and skipped, the sweep goes on. Files inside
// a directory whose name is listed in exclude (at any depth) are left alone.
//
// The returned error is non-nil only if a pattern is malformed.
func Sweep(root string, patterns, exclude []string) (Report, error) {
	var report Report
	fsys := os.DirFS(root)
	seen := make(map[string]struct{})

	for _, pat := range patterns {
		matches, err := doublestar.Glob(fsys, pat, doublestar.WithFilesOnly(), doublestar.WithNoFollow())
		if err != nil {
			return report, err
		}
		slices.Sort(matches)
		for _, match := range matches {
			if _, dup := seen[match]; dup || excluded(match, exclude) {
				continue
			}
			seen[match] = struct{}{}
			err := os.Remove(filepath.Join(root, filepath.FromSlash(match)))
			report.Outcomes = append(report.Outcomes, Outcome{Path: match, Err: err})
		}
	}

	return report, nil
}

func excluded(path string, exclude []string) bool {
	dirs := strings.Split(path, "/")
	for _, dir := range dirs[:len(dirs)-1] {
		if slices.Contains(exclude, dir) {
			return true
		}
	}
	return false
}
