package builder

import (
	"errors"
	"fmt"
	"strings"
)

// Target is a named sequence of stages selected on the command line
type Target int

const (
	// TargetRun launches the executable left by a previous build
	TargetRun Target = iota
	// TargetAll compiles everything, links and runs
	TargetAll
	// TargetMain reuses library artifacts, recompiles the application, links and runs
	TargetMain
	// TargetClean removes generated files
	TargetClean
	// TargetFetch clones missing library sources
	TargetFetch
)

var targetNames = []string{"run", "all", "main", "clean", "fetch"}

var ErrUnknownTarget = errors.New("unknown target")

func (t Target) String() string {
	if int(t) >= 0 && int(t) < len(targetNames) {
		return targetNames[t]
	}
	return fmt.Sprintf("Target(%d)", int(t))
}

// TargetNames lists the names accepted by ParseTarget
func TargetNames() []string {
	return append([]string(nil), targetNames...)
}

// ParseTarget maps a command line name to a Target. An empty name selects TargetRun.
func ParseTarget(name string) (Target, error) {
	if name == "" {
		return TargetRun, nil
	}
	for i, n := range targetNames {
		if n == name {
			return Target(i), nil
		}
	}
	return 0, fmt.Errorf("%w %q, known targets: %s", ErrUnknownTarget, name, strings.Join(targetNames, ", "))
}
