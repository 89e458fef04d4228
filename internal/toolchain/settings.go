package toolchain

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"strings"
)

// Options holds the raw values a Settings is built from
type Options struct {
	Standard    []string // language standard and exception model (/std:c++20 /EHsc)
	Encoding    []string // source/execution charset (/utf-8)
	Debug       []string // runtime, optimization and debug info (/MDd /Od /Zi)
	IncludeDirs []string
	LibraryDirs []string
	Libraries   []string
	LinkerFlags []string // subsystem and entry point (/SUBSYSTEM:WINDOWS /ENTRY:mainCRTStartup)
}

// Settings is the build configuration shared by every compile and link call
// of one build. It cannot be modified after NewSettings returns.
type Settings struct {
	standard    []string
	encoding    []string
	debug       []string
	includeDirs []string
	libraryDirs []string
	libraries   []string
	linkerFlags []string
}

func NewSettings(o Options) *Settings {
	return &Settings{
		standard:    slices.Clone(o.Standard),
		encoding:    slices.Clone(o.Encoding),
		debug:       slices.Clone(o.Debug),
		includeDirs: slices.Clone(o.IncludeDirs),
		libraryDirs: slices.Clone(o.LibraryDirs),
		libraries:   slices.Clone(o.Libraries),
		linkerFlags: slices.Clone(o.LinkerFlags),
	}
}

func (s *Settings) Standard() []string    { return slices.Clone(s.standard) }
func (s *Settings) Encoding() []string    { return slices.Clone(s.encoding) }
func (s *Settings) Debug() []string       { return slices.Clone(s.debug) }
func (s *Settings) IncludeDirs() []string { return slices.Clone(s.includeDirs) }
func (s *Settings) LibraryDirs() []string { return slices.Clone(s.libraryDirs) }
func (s *Settings) Libraries() []string   { return slices.Clone(s.libraries) }
func (s *Settings) LinkerFlags() []string { return slices.Clone(s.linkerFlags) }

// Fingerprint returns a digest of every flag category. Two settings with the
// same fingerprint produce link-compatible artifacts.
func (s *Settings) Fingerprint() string {
	h := sha256.New()
	for _, group := range [][]string{
		s.standard, s.encoding, s.debug,
		s.includeDirs, s.libraryDirs, s.libraries, s.linkerFlags,
	} {
		h.Write([]byte(strings.Join(group, "\x00")))
		h.Write([]byte{0xff})
	}
	return hex.EncodeToString(h.Sum(nil))
}
