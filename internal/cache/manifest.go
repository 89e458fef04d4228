package cache

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"
)

const (
	// StateDir holds cobble's own bookkeeping inside the project root
	StateDir         = ".cobble"
	manifestFilename = "manifest.json"
)

// Manifest records what the last full build produced
type Manifest struct {
	BuildID     string    `json:"build_id"`
	Flavor      string    `json:"flavor"`
	Fingerprint string    `json:"fingerprint"`
	Artifacts   []string  `json:"artifacts,omitempty"`
	Time        time.Time `json:"time"`
}

// NewManifest stamps a fresh build id
func NewManifest(flavor, fingerprint string, artifacts []string) *Manifest {
	return &Manifest{
		BuildID:     uuid.NewString(),
		Flavor:      flavor,
		Fingerprint: fingerprint,
		Artifacts:   slices.Clone(artifacts),
		Time:        time.Now().UTC(),
	}
}

func (c *Cache) manifestPath() string {
	return filepath.Join(c.root, StateDir, manifestFilename)
}

// LoadManifest returns the manifest of the last full build, or nil if there is none
func (c *Cache) LoadManifest() (*Manifest, error) {
	f, err := os.Open(c.manifestPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	m := new(Manifest)
	if err := json.NewDecoder(bufio.NewReader(f)).Decode(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *Cache) SaveManifest(m *Manifest) error {
	path := c.manifestPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Stale reports why artifacts recorded in m might not link with the current
// settings. An empty string means no mismatch was found.
func (m *Manifest) Stale(flavor, fingerprint string) string {
	switch {
	case m.Flavor != flavor:
		return "last full build used toolchain flavor " + m.Flavor
	case m.Fingerprint != fingerprint:
		return "build flags changed since the last full build"
	}
	return ""
}

// RemoveManifest forgets the last full build. It is not an error if there is none.
func (c *Cache) RemoveManifest() error {
	err := os.Remove(c.manifestPath())
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
