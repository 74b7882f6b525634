// SPDX-License-Identifier: MPL-2.0

package platform

import (
	"path/filepath"
	"runtime"
)

// OS name constants for runtime.GOOS comparisons.
// Centralizes the string literals to avoid scattered magic strings.
const (
	Windows = "windows"
	Darwin  = "darwin"
	Linux   = "linux"
)

// Naming describes how one platform names native libraries and loadable modules.
type Naming struct {
	// LibPrefix is prepended to the library name by the native linker ("lib" on POSIX).
	LibPrefix string
	// NativeExt is the shared-library extension the linker produces.
	NativeExt string
	// ModuleExt is the extension the interpreter's module loader accepts.
	ModuleExt string
	// BinDir is the directory holding executables inside a virtual environment.
	BinDir string
}

// NamingFor returns the naming conventions for goos. Unknown systems follow
// the Linux conventions.
func NamingFor(goos string) Naming {
	switch goos {
	case Windows:
		return Naming{LibPrefix: "", NativeExt: ".dll", ModuleExt: ".pyd", BinDir: "Scripts"}
	case Darwin:
		return Naming{LibPrefix: "lib", NativeExt: ".dylib", ModuleExt: ".so", BinDir: "bin"}
	default:
		return Naming{LibPrefix: "lib", NativeExt: ".so", ModuleExt: ".so", BinDir: "bin"}
	}
}

// Current returns the naming conventions of the host platform.
func Current() Naming {
	return NamingFor(runtime.GOOS)
}

// NativeFileName returns the filename the linker gives to library name.
func (n Naming) NativeFileName(name string) string {
	return n.LibPrefix + name + n.NativeExt
}

// ModuleFileName returns the filename the module loader expects for name.
func (n Naming) ModuleFileName(name string) string {
	return name + n.ModuleExt
}

// ShadowExts lists the extensions under which a file named after a module
// would be picked up (or confused with it) by the interpreter's import system.
func (n Naming) ShadowExts() []string {
	exts := []string{n.ModuleExt, ".py", ".pyc"}
	if n.NativeExt != n.ModuleExt {
		exts = append(exts, n.NativeExt)
	}
	return exts
}

// ModuleStem strips a known module or library extension from filename.
// It returns filename unchanged when no known extension matches.
func (n Naming) ModuleStem(filename string) string {
	ext := filepath.Ext(filename)
	for _, known := range n.ShadowExts() {
		if ext == known {
			return filename[:len(filename)-len(ext)]
		}
	}
	return filename
}
