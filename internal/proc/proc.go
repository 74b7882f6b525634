// SPDX-License-Identifier: MPL-2.0

package proc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/nativeship/nativeship/internal/environ"
	"github.com/nativeship/nativeship/pkg/platform"
	"github.com/nativeship/nativeship/pkg/types"
)

// DefaultWaitDelay bounds how long an interrupted child may take to exit.
const DefaultWaitDelay = 10 * time.Second

type (
	// Command describes one subprocess invocation.
	Command struct {
		// Name is resolved against Env's PATH unless it contains a separator.
		Name string
		Args []string
		// Dir is the working directory; empty means the orchestrator's.
		Dir string
		// Env is the complete child environment.
		Env    environ.Env
		Stdin  io.Reader
		Stdout io.Writer
		Stderr io.Writer
		// WaitDelay overrides DefaultWaitDelay when positive.
		WaitDelay time.Duration
	}

	// Result holds the outcome of a finished command.
	Result struct {
		ExitCode types.ExitCode
		// Output and ErrOutput are only filled by Capture.
		Output    string
		ErrOutput string
		// Error reports failures to start or wait for the command. A command
		// that ran and exited non-zero has a nil Error.
		Error error
	}

	// Runner executes commands. Implementations block until the command exits.
	Runner interface {
		// Run streams output to the command's writers.
		Run(ctx context.Context, c Command) *Result
		// Capture collects stdout and stderr into the Result.
		Capture(ctx context.Context, c Command) *Result
	}

	// ExecRunner runs commands with os/exec.
	ExecRunner struct {
		logger *log.Logger
	}
)

// String renders the command line for logs.
func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Failed reports whether the command could not run or exited non-zero.
func (r *Result) Failed() bool {
	return r.Error != nil || !r.ExitCode.IsSuccess()
}

// Err returns the start error, or an exit status error for a non-zero exit,
// or nil when the command succeeded.
func (r *Result) Err() error {
	switch {
	case r.Error != nil:
		return r.Error
	case !r.ExitCode.IsSuccess():
		return fmt.Errorf("exit status %s", r.ExitCode)
	default:
		return nil
	}
}

// NewExecRunner creates a Runner backed by os/exec. A nil logger discards logs.
func NewExecRunner(logger *log.Logger) *ExecRunner {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &ExecRunner{logger: logger}
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, c Command) *Result {
	cmd, err := Prepare(ctx, c)
	if err != nil {
		return &Result{ExitCode: types.ExitFailure, Error: err}
	}
	r.logger.Debug("exec", "cmd", c.String(), "path", cmd.Path, "dir", cmd.Dir)
	return extractExitCode(ctx, cmd.Run(), nil)
}

// Capture implements Runner.
func (r *ExecRunner) Capture(ctx context.Context, c Command) *Result {
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	cmd, err := Prepare(ctx, c)
	if err != nil {
		return &Result{ExitCode: types.ExitFailure, Error: err}
	}
	r.logger.Debug("exec (capture)", "cmd", c.String(), "path", cmd.Path, "dir", cmd.Dir)
	return extractExitCode(ctx, cmd.Run(), &capturedOutput{stdout: &stdout, stderr: &stderr})
}

// Prepare builds the exec.Cmd for c without starting it. Callers that need to
// attach a terminal start the returned command themselves.
func Prepare(ctx context.Context, c Command) (*exec.Cmd, error) {
	path, err := c.Env.LookPath(c.Name)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", c.Name, err)
	}

	cmd := exec.CommandContext(ctx, path, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = c.Env.List()
	cmd.Stdin = c.Stdin
	cmd.Stdout = c.Stdout
	cmd.Stderr = c.Stderr
	cmd.Cancel = func() error {
		if runtime.GOOS == platform.Windows {
			return cmd.Process.Kill()
		}
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = DefaultWaitDelay
	if c.WaitDelay > 0 {
		cmd.WaitDelay = c.WaitDelay
	}
	return cmd, nil
}

type capturedOutput struct {
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

// extractExitCode determines the exit code from a command execution error.
func extractExitCode(ctx context.Context, err error, captured *capturedOutput) *Result {
	result := &Result{}
	if captured != nil {
		result.Output = captured.stdout.String()
		result.ErrOutput = captured.stderr.String()
	}

	if err == nil {
		return result
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// Killed processes report -1; Failure maps that to a valid non-zero code.
		result.ExitCode = types.ExitCode(exitErr.ExitCode()).Failure()
		if ctxErr := ctx.Err(); ctxErr != nil {
			result.Error = ctxErr
		}
		return result
	}

	result.ExitCode = types.ExitFailure
	result.Error = err
	return result
}

// ResultOf converts the error returned by a started exec.Cmd's Wait into a
// Result, for callers that start commands themselves.
func ResultOf(ctx context.Context, err error) *Result {
	return extractExitCode(ctx, err, nil)
}
