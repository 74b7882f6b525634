// SPDX-License-Identifier: MPL-2.0

// Package manifest reads the native project's Cargo.toml.
//
// Only the fields that decide artifact names are read: the library name
// (falling back to the package name with dashes mapped to underscores, as
// cargo does) and the crate types.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/nativeship/nativeship/pkg/platform"
)

// ErrManifestInvalid is returned for manifests that cannot describe a
// loadable extension module.
var ErrManifestInvalid = errors.New("invalid native manifest")

var moduleNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type (
	// Manifest is the subset of Cargo.toml the pipeline relies on.
	Manifest struct {
		Package PackageSection `toml:"package"`
		Lib     LibSection     `toml:"lib"`

		path string
	}

	// PackageSection is Cargo.toml's [package] table.
	PackageSection struct {
		Name    string `toml:"name"`
		Version string `toml:"version"`
	}

	// LibSection is Cargo.toml's [lib] table.
	LibSection struct {
		Name      string   `toml:"name"`
		CrateType []string `toml:"crate-type"`
	}
)

// Load reads and validates the manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return Parse(data, path)
}

// Parse decodes and validates manifest content. path is recorded for Dir.
func Parse(data []byte, path string) (*Manifest, error) {
	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return nil, fmt.Errorf("%w: %s:%d:%d: %s", ErrManifestInvalid, path, row, col, derr.Error())
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrManifestInvalid, path, err)
	}
	m.path = path

	name := m.ModuleName()
	if name == "" {
		return nil, fmt.Errorf("%w: %s: neither [lib].name nor [package].name is set", ErrManifestInvalid, path)
	}
	if !moduleNamePattern.MatchString(name) {
		return nil, fmt.Errorf("%w: %s: module name %q is not an identifier", ErrManifestInvalid, path, name)
	}
	if platform.IsWindowsReservedName(name) {
		return nil, fmt.Errorf("%w: %s: module name %q is a reserved file name on Windows", ErrManifestInvalid, path, name)
	}
	if len(m.Lib.CrateType) > 0 && !slices.Contains(m.Lib.CrateType, "cdylib") {
		return nil, fmt.Errorf("%w: %s: crate-type %v does not build a cdylib", ErrManifestInvalid, path, m.Lib.CrateType)
	}
	return &m, nil
}

// ModuleName is the library name that names every artifact.
func (m *Manifest) ModuleName() string {
	if m.Lib.Name != "" {
		return m.Lib.Name
	}
	return strings.ReplaceAll(m.Package.Name, "-", "_")
}

// Path returns the manifest file path.
func (m *Manifest) Path() string { return m.path }

// Dir returns the native project directory.
func (m *Manifest) Dir() string { return filepath.Dir(m.path) }
