package builder

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
)

// SourceSet partitions the project's sources. Library sources are stable and
// their artifacts may be reused; application sources are always recompiled.
type SourceSet struct {
	Library     []string
	Application []string
}

// NewSourceSet validates and copies the two groups. A path may appear only
// once across both groups.
func NewSourceSet(library, application []string) (SourceSet, error) {
	if len(application) == 0 {
		return SourceSet{}, errors.New("no application sources")
	}

	group := make(map[string]string)
	for _, g := range []struct {
		name    string
		sources []string
	}{{"library", library}, {"application", application}} {
		for _, src := range g.sources {
			if src == "" {
				return SourceSet{}, fmt.Errorf("empty path in %s sources", g.name)
			}
			key := filepath.Clean(src)
			if prev, dup := group[key]; dup {
				if prev == g.name {
					return SourceSet{}, fmt.Errorf("%s listed twice in %s sources", src, g.name)
				}
				return SourceSet{}, fmt.Errorf("%s listed in both library and application sources", src)
			}
			group[key] = g.name
		}
	}

	return SourceSet{
		Library:     slices.Clone(library),
		Application: slices.Clone(application),
	}, nil
}
