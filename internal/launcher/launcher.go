// SPDX-License-Identifier: MPL-2.0

// Package launcher starts the dependent application once its native module
// is deployed, and blocks until the application exits.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/nativeship/nativeship/internal/environ"
	"github.com/nativeship/nativeship/internal/proc"
	"github.com/nativeship/nativeship/pkg/types"
)

var (
	// ErrNoCommand is returned when no entry command is configured.
	ErrNoCommand = errors.New("no application command configured")
	// ErrAppDirMissing is returned when the application directory does not exist.
	ErrAppDirMissing = errors.New("application directory not found")

	errPTYUnsupported = errors.New("pseudo-terminals are not supported on this platform")
)

// Launcher runs the application's entry command.
type Launcher struct {
	// Root is the invocation root; Dir is relative to it unless absolute.
	Root string
	Dir  string
	// Command is the entry command and its arguments.
	Command []string
	// PTY runs the application under a pseudo-terminal.
	PTY bool
	// GracePeriod is how long an interrupted application may take to exit.
	GracePeriod time.Duration

	Runner proc.Runner
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Logger *log.Logger
}

// AppDir returns the absolute application directory.
func (l *Launcher) AppDir() string {
	if filepath.IsAbs(l.Dir) {
		return l.Dir
	}
	return filepath.Join(l.Root, l.Dir)
}

// Launch runs the application with env and returns its exit code. The error
// is non-nil only when the application could not be started.
func (l *Launcher) Launch(ctx context.Context, env environ.Env) (types.ExitCode, error) {
	if len(l.Command) == 0 {
		return types.ExitFailure, ErrNoCommand
	}
	logger := l.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	dir := l.AppDir()
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return types.ExitFailure, fmt.Errorf("%w: %s", ErrAppDirMissing, dir)
	}

	cmd := proc.Command{
		Name:      l.Command[0],
		Args:      l.Command[1:],
		Dir:       dir,
		Env:       env,
		Stdin:     l.Stdin,
		Stdout:    l.Stdout,
		Stderr:    l.Stderr,
		WaitDelay: l.GracePeriod,
	}
	logger.Debug("launching application", "cmd", cmd.String(), "dir", dir, "pty", l.PTY)

	var res *proc.Result
	if l.PTY {
		res = l.launchPTY(ctx, cmd)
		if errors.Is(res.Error, errPTYUnsupported) {
			logger.Warn("running without a pseudo-terminal", "reason", res.Error)
			res = l.Runner.Run(ctx, cmd)
		}
	} else {
		res = l.Runner.Run(ctx, cmd)
	}

	if res.Error != nil && ctx.Err() == nil {
		return res.ExitCode, res.Error
	}
	return res.ExitCode, nil
}

func (l *Launcher) launchPTY(ctx context.Context, c proc.Command) *proc.Result {
	cmd, err := proc.Prepare(ctx, c)
	if err != nil {
		return &proc.Result{ExitCode: types.ExitFailure, Error: err}
	}
	started, waitErr := runPTY(cmd, c.Stdin, c.Stdout)
	if !started {
		return &proc.Result{ExitCode: types.ExitFailure, Error: waitErr}
	}
	return proc.ResultOf(ctx, waitErr)
}
