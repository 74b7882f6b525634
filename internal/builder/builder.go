// SPDX-License-Identifier: MPL-2.0

// Package builder invokes the native build tool. It is the pipeline's only
// fail-fast checkpoint: a non-zero build exit code is returned as is so the
// orchestrator can exit with it.
package builder

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/nativeship/nativeship/internal/buildcfg"
	"github.com/nativeship/nativeship/internal/proc"
	"github.com/nativeship/nativeship/pkg/types"
)

// ErrBuildFailed is wrapped by BuildFailedError.
var ErrBuildFailed = errors.New("native build failed")

type (
	// BuildFailedError reports a build tool that ran and exited non-zero.
	BuildFailedError struct {
		Tool     string
		ExitCode types.ExitCode
	}

	// Builder runs "<tool> build" against the manifest in a BuildConfig.
	Builder struct {
		Tool    string
		Profile string
		// Dir is the working directory of the build tool.
		Dir    string
		Runner proc.Runner
		Stdout io.Writer
		Stderr io.Writer
		Logger *log.Logger
	}
)

// Error implements the error interface.
func (e *BuildFailedError) Error() string {
	return fmt.Sprintf("%s build exited with status %s", e.Tool, e.ExitCode)
}

// Unwrap returns ErrBuildFailed.
func (e *BuildFailedError) Unwrap() error { return ErrBuildFailed }

// Args returns the build tool arguments for manifest.
func (b *Builder) Args(manifest string) []string {
	args := []string{"build"}
	switch b.Profile {
	case "", "dev", "debug":
	case "release":
		args = append(args, "--release")
	default:
		args = append(args, "--profile", b.Profile)
	}
	return append(args, "--manifest-path", manifest)
}

// Build runs the build tool with cfg.Env, streaming its output. On success it
// returns ExitSuccess. A tool that exits non-zero yields its exit code and a
// *BuildFailedError; a tool that cannot be started yields ExitFailure and the
// start error.
func (b *Builder) Build(ctx context.Context, cfg buildcfg.BuildConfig) (types.ExitCode, error) {
	logger := b.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	cmd := proc.Command{
		Name:   b.Tool,
		Args:   b.Args(cfg.ManifestPath),
		Dir:    b.Dir,
		Env:    cfg.Env,
		Stdout: b.Stdout,
		Stderr: b.Stderr,
	}
	logger.Debug("building native module", "cmd", cmd.String(), "linker_flags", cfg.LinkerFlags())

	res := b.Runner.Run(ctx, cmd)
	if !res.Failed() {
		return types.ExitSuccess, nil
	}
	if res.Error == nil {
		return res.ExitCode, &BuildFailedError{Tool: b.Tool, ExitCode: res.ExitCode}
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return res.ExitCode.Failure(), ctxErr
	}
	return types.ExitFailure, fmt.Errorf("start %s: %w", b.Tool, res.Error)
}

// ProfileDir returns the output subdirectory cargo uses for profile.
func ProfileDir(profile string) string {
	switch profile {
	case "", "dev", "debug":
		return "debug"
	default:
		return profile
	}
}
