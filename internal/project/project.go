// SPDX-License-Identifier: MPL-2.0

// Package project resolves the invocation root. The caller's working
// directory never takes part: the root comes from an explicit flag, the
// NATIVESHIP_ROOT variable, or the location of the nativeship executable.
package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// EnvRoot names the variable that overrides the invocation root.
const EnvRoot = "NATIVESHIP_ROOT"

const (
	// SourceFlag means the root came from --root.
	SourceFlag Source = iota + 1
	// SourceEnv means the root came from NATIVESHIP_ROOT.
	SourceEnv
	// SourceMarker means a marker file was found above the executable.
	SourceMarker
	// SourceExecutable means the executable's own directory was used.
	SourceExecutable
)

// ErrRootInvalid is returned when an explicit root is not a directory.
var ErrRootInvalid = errors.New("invalid project root")

type (
	// Source records how the root was found.
	Source int

	// Options are the inputs to ResolveRoot.
	Options struct {
		// Flag is the --root value, if any.
		Flag string
		// LookupEnv reads NATIVESHIP_ROOT; nil uses os.LookupEnv.
		LookupEnv func(string) (string, bool)
		// Executable returns the running binary's path; nil uses os.Executable.
		Executable func() (string, error)
		// Marker is the file whose presence identifies the root (nativeship.cue).
		Marker string
	}
)

// String implements fmt.Stringer.
func (s Source) String() string {
	switch s {
	case SourceFlag:
		return "flag"
	case SourceEnv:
		return "env"
	case SourceMarker:
		return "marker"
	case SourceExecutable:
		return "executable"
	default:
		return "unknown"
	}
}

// ResolveRoot returns the absolute invocation root, in order of precedence:
// the flag, NATIVESHIP_ROOT, the nearest ancestor of the executable holding
// Marker, and finally the executable's directory.
func ResolveRoot(opts Options) (string, Source, error) {
	lookupEnv := opts.LookupEnv
	if lookupEnv == nil {
		lookupEnv = os.LookupEnv
	}
	executable := opts.Executable
	if executable == nil {
		executable = os.Executable
	}

	if opts.Flag != "" {
		root, err := explicitRoot(opts.Flag)
		return root, SourceFlag, err
	}
	if v, ok := lookupEnv(EnvRoot); ok && v != "" {
		root, err := explicitRoot(v)
		return root, SourceEnv, err
	}

	exe, err := executable()
	if err != nil {
		return "", 0, fmt.Errorf("locate executable: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	exeDir, err := filepath.Abs(filepath.Dir(exe))
	if err != nil {
		return "", 0, fmt.Errorf("locate executable: %w", err)
	}

	if opts.Marker != "" {
		for dir := exeDir; ; dir = filepath.Dir(dir) {
			if info, err := os.Stat(filepath.Join(dir, opts.Marker)); err == nil && !info.IsDir() {
				return dir, SourceMarker, nil
			}
			if filepath.Dir(dir) == dir {
				break
			}
		}
	}
	return exeDir, SourceExecutable, nil
}

func explicitRoot(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrRootInvalid, path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrRootInvalid, abs, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s is not a directory", ErrRootInvalid, abs)
	}
	return abs, nil
}
