// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"

	"github.com/nativeship/nativeship/internal/config"
	"github.com/nativeship/nativeship/internal/environ"
	"github.com/nativeship/nativeship/internal/issue"
	"github.com/nativeship/nativeship/internal/pipeline"
	"github.com/nativeship/nativeship/internal/proc"
	"github.com/nativeship/nativeship/internal/project"
)

type (
	// ConfigProvider loads configuration using explicit options.
	ConfigProvider interface {
		LoadWithSource(ctx context.Context, opts config.LoadOptions) (*config.Config, string, error)
	}

	// App wires CLI services and shared dependencies. Every command handler
	// receives the App and builds a session from it.
	App struct {
		Config     ConfigProvider
		Runner     proc.Runner
		Environ    func() []string
		Executable func() (string, error)
		stdin      io.Reader
		stdout     io.Writer
		stderr     io.Writer
	}

	// Dependencies are the injection points for building an App. Nil fields are
	// replaced with production defaults by NewApp.
	Dependencies struct {
		Config     ConfigProvider
		Runner     proc.Runner
		Environ    func() []string
		Executable func() (string, error)
		Stdin      io.Reader
		Stdout     io.Writer
		Stderr     io.Writer
	}

	// globalFlags are the persistent flags shared by every command.
	globalFlags struct {
		root        string
		configPath  string
		verbose     bool
		noLaunch    bool
		interactive bool
	}

	// session is everything one command invocation resolved before running
	// pipeline stages.
	session struct {
		root       string
		rootSource project.Source
		cfg        *config.Config
		cfgPath    string
		base       environ.Env
		logger     *log.Logger
		deps       pipeline.Deps
	}
)

// NewApp creates an App, filling unset dependencies with production defaults.
func NewApp(deps Dependencies) *App {
	app := &App{
		Config:     deps.Config,
		Runner:     deps.Runner,
		Environ:    deps.Environ,
		Executable: deps.Executable,
		stdin:      deps.Stdin,
		stdout:     deps.Stdout,
		stderr:     deps.Stderr,
	}
	if app.Config == nil {
		app.Config = config.NewProvider()
	}
	if app.Environ == nil {
		app.Environ = os.Environ
	}
	if app.Executable == nil {
		app.Executable = os.Executable
	}
	if app.stdin == nil {
		app.stdin = os.Stdin
	}
	if app.stdout == nil {
		app.stdout = os.Stdout
	}
	if app.stderr == nil {
		app.stderr = os.Stderr
	}
	return app
}

// newSession resolves the invocation root, loads its configuration and
// builds the logger and stage dependencies.
func (a *App) newSession(ctx context.Context, flags globalFlags) (*session, error) {
	base := environ.FromList(a.Environ())

	root, source, err := project.ResolveRoot(project.Options{
		Flag:       flags.root,
		LookupEnv:  base.Lookup,
		Executable: a.Executable,
		Marker:     config.FileName(),
	})
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("resolve project root").
			WithResource(flags.root).
			WithSuggestion("Pass --root or set " + project.EnvRoot + " to the project directory").
			Wrap(err).
			BuildError()
	}

	cfg, cfgPath, err := a.Config.LoadWithSource(ctx, config.LoadOptions{
		ConfigFilePath: flags.configPath,
		ProjectRoot:    root,
	})
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(a.stderr, cfg.Log.Level, flags.verbose)
	if err != nil {
		return nil, err
	}
	logger.Debug("resolved project root", "root", root, "source", source, "config", cfgPath)

	runner := a.Runner
	if runner == nil {
		runner = proc.NewExecRunner(logger)
	}

	return &session{
		root:       root,
		rootSource: source,
		cfg:        cfg,
		cfgPath:    cfgPath,
		base:       base,
		logger:     logger,
		deps: pipeline.Deps{
			Runner: runner,
			Logger: logger,
			Stdin:  a.stdin,
			Stdout: a.stdout,
			Stderr: a.stderr,
			PTY:    flags.interactive,
		},
	}, nil
}

// run executes stages against a fresh state and converts the outcome into
// the command's error.
func (s *session) run(ctx context.Context, stages []pipeline.Stage) (*pipeline.State, pipeline.Result, error) {
	st := pipeline.NewState(s.root, s.cfg, s.base)
	res, err := pipeline.New(s.logger, stages...).Run(ctx, st)
	return st, res, err
}

// newLogger builds the pipeline logger. --verbose forces debug level.
func newLogger(w io.Writer, level config.LogLevel, verbose bool) (*log.Logger, error) {
	lvl, err := log.ParseLevel(string(level))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrInvalidLogLevel, err)
	}
	if verbose {
		lvl = log.DebugLevel
	}
	return log.NewWithOptions(w, log.Options{
		Prefix:          config.AppName,
		Level:           lvl,
		ReportTimestamp: true,
	}), nil
}

// failure turns a stopped pipeline run into the command error, rendering the
// matching issue guide first when one exists.
func (a *App) failure(res pipeline.Result, err error, verbose bool) error {
	if err != nil {
		a.renderGuide(err, verbose)
	}
	return &ExitError{Code: res.Code.Failure(), Err: err}
}
