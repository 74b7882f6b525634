// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/nativeship/nativeship/internal/config"
	"github.com/nativeship/nativeship/internal/issue"
	"github.com/nativeship/nativeship/internal/pipeline"
	"github.com/nativeship/nativeship/pkg/types"
)

func TestGetVersionString(t *testing.T) {
	// Not parallel: subtests mutate package-level Version/Commit/BuildDate vars.

	t.Run("ldflags version", func(t *testing.T) {
		origVersion, origCommit, origBuildDate := Version, Commit, BuildDate
		t.Cleanup(func() {
			Version, Commit, BuildDate = origVersion, origCommit, origBuildDate
		})

		Version = "v0.3.0"
		Commit = "abc1234"
		BuildDate = "2026-10-01T10:00:00Z"

		want := "v0.3.0 (commit: abc1234, built: 2026-10-01T10:00:00Z)"
		if got := getVersionString(); got != want {
			t.Errorf("getVersionString() = %q, want %q", got, want)
		}
	})

	t.Run("dev build", func(t *testing.T) {
		origVersion := Version
		t.Cleanup(func() { Version = origVersion })

		Version = "dev"
		if got := getVersionString(); got != "dev (built from source)" {
			t.Errorf("getVersionString() = %q", got)
		}
	})
}

func TestExitCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, 0},
		{"plain error", errors.New("boom"), 1},
		{"build tool status", &ExitError{Code: 101}, 101},
		{"wrapped exit error", fmt.Errorf("run: %w", &ExitError{Code: 2}), 2},
		{"zero code still fails", &ExitError{Code: 0, Err: errors.New("stopped")}, 1},
		{"out of range code", &ExitError{Code: 300}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := exitCode(tt.err); got != tt.want {
				t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestExitError(t *testing.T) {
	t.Parallel()

	cause := errors.New("cargo build exited with status 101")
	err := &ExitError{Code: 101, Err: cause}
	if err.Error() != cause.Error() {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Error("ExitError does not unwrap to its cause")
	}
	if got := (&ExitError{Code: 3}).Error(); got != "exit status 3" {
		t.Errorf("Error() without cause = %q", got)
	}
}

func TestNewLogger(t *testing.T) {
	t.Parallel()

	tests := []struct {
		level   config.LogLevel
		verbose bool
		want    log.Level
		wantErr bool
	}{
		{config.LogLevelInfo, false, log.InfoLevel, false},
		{config.LogLevelWarn, false, log.WarnLevel, false},
		{config.LogLevelError, true, log.DebugLevel, false},
		{config.LogLevel("loud"), false, 0, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			logger, err := newLogger(&buf, tt.level, tt.verbose)
			if tt.wantErr {
				if !errors.Is(err, config.ErrInvalidLogLevel) {
					t.Fatalf("newLogger() error = %v, want ErrInvalidLogLevel", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("newLogger() error = %v", err)
			}
			if logger.GetLevel() != tt.want {
				t.Errorf("level = %v, want %v", logger.GetLevel(), tt.want)
			}
			logger.Error("stage failed", "stage", "build")
			if !strings.Contains(buf.String(), "nativeship") {
				t.Errorf("log line %q lacks the nativeship prefix", buf.String())
			}
		})
	}
}

func TestFailureRendersGuide(t *testing.T) {
	t.Parallel()

	var stderr bytes.Buffer
	app := NewApp(Dependencies{Stderr: &stderr})

	cause := issue.NewErrorContext().
		WithOperation("build native module").
		WithGuide(issue.BuildFailedID).
		Wrap(errors.New("cargo build exited with status 101")).
		BuildError()

	err := app.failure(pipeline.Result{Code: 101, Stopped: pipeline.StageBuild}, cause, false)

	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != types.ExitCode(101) {
		t.Fatalf("failure() = %v, want ExitError with code 101", err)
	}
	if stderr.Len() == 0 {
		t.Error("no issue guide rendered")
	}
}
