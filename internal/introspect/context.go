// SPDX-License-Identifier: MPL-2.0

package introspect

import "path/filepath"

// EnvironmentContext holds the introspected interpreter facts. It is built
// once per run and never modified.
type EnvironmentContext struct {
	interpreterPath string
	baseInstallPath string
	libraryDir      string
	versionTag      string
	moduleSearchDir string
}

// NewEnvironmentContext assembles a context. The library directory is always
// <base>/lib.
func NewEnvironmentContext(interpreterPath, baseInstallPath, versionTag, moduleSearchDir string) EnvironmentContext {
	return EnvironmentContext{
		interpreterPath: interpreterPath,
		baseInstallPath: baseInstallPath,
		libraryDir:      filepath.Join(baseInstallPath, "lib"),
		versionTag:      versionTag,
		moduleSearchDir: moduleSearchDir,
	}
}

// InterpreterPath is the absolute path of the interpreter executable.
func (c EnvironmentContext) InterpreterPath() string { return c.interpreterPath }

// BaseInstallPath is the interpreter's installation prefix.
func (c EnvironmentContext) BaseInstallPath() string { return c.baseInstallPath }

// LibraryDir holds the interpreter's shared runtime library.
func (c EnvironmentContext) LibraryDir() string { return c.libraryDir }

// VersionTag is the "<major>.<minor>" interpreter version.
func (c EnvironmentContext) VersionTag() string { return c.versionTag }

// ModuleSearchDir is the first site-packages directory.
func (c EnvironmentContext) ModuleSearchDir() string { return c.moduleSearchDir }
