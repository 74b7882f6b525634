// SPDX-License-Identifier: MPL-2.0

// Package buildcfg derives the native build configuration from the
// introspected interpreter. Derive does no I/O.
package buildcfg

import (
	"slices"
	"strings"

	"github.com/nativeship/nativeship/internal/environ"
	"github.com/nativeship/nativeship/internal/introspect"
)

type (
	// Options are the configurable names used during derivation.
	Options struct {
		// RuntimeName prefixes the version tag ("python" gives "python3.11").
		RuntimeName string
		// InterpreterVar receives the interpreter path (PYO3_PYTHON).
		InterpreterVar string
		// LinkerFlagsVar receives the linker flags (RUSTFLAGS).
		LinkerFlagsVar string
		// ClearVars are removed from the inherited environment.
		ClearVars []string
		// ManifestPath is the native project's manifest.
		ManifestPath string
	}

	// BuildConfig is the derived configuration handed to the native build tool.
	BuildConfig struct {
		LibrarySearchPaths []string
		LinkTargetName     string
		ManifestPath       string
		// Env is the complete build environment.
		Env environ.Env
	}
)

// Derive computes a BuildConfig. base is not modified. Derived variables
// replace inherited ones of the same name.
func Derive(ec introspect.EnvironmentContext, base environ.Env, opts Options) BuildConfig {
	cfg := BuildConfig{
		LibrarySearchPaths: []string{ec.LibraryDir()},
		LinkTargetName:     opts.RuntimeName + ec.VersionTag(),
		ManifestPath:       opts.ManifestPath,
		Env:                base.Clone(),
	}

	for _, name := range opts.ClearVars {
		cfg.Env.Unset(name)
	}
	if opts.InterpreterVar != "" {
		cfg.Env.Set(opts.InterpreterVar, ec.InterpreterPath())
	}
	if opts.LinkerFlagsVar != "" {
		cfg.Env.Set(opts.LinkerFlagsVar, cfg.LinkerFlags())
	}
	return cfg
}

// LinkerFlags renders the search paths and link target as linker flags,
// e.g. "-L/usr/lib -lpython3.11". Each flag is a single token because the
// build tool splits the variable on whitespace; search paths containing
// whitespace are not supported.
func (c BuildConfig) LinkerFlags() string {
	flags := make([]string, 0, len(c.LibrarySearchPaths)+1)
	for _, dir := range c.LibrarySearchPaths {
		flags = append(flags, "-L"+dir)
	}
	flags = append(flags, "-l"+c.LinkTargetName)
	return strings.Join(flags, " ")
}

// Equal reports whether two configs derive the same build inputs.
func (c BuildConfig) Equal(other BuildConfig) bool {
	return c.LinkTargetName == other.LinkTargetName &&
		c.ManifestPath == other.ManifestPath &&
		slices.Equal(c.LibrarySearchPaths, other.LibrarySearchPaths) &&
		slices.Equal(c.Env.List(), other.Env.List())
}
