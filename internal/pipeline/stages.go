// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/nativeship/nativeship/internal/artifact"
	"github.com/nativeship/nativeship/internal/buildcfg"
	"github.com/nativeship/nativeship/internal/builder"
	"github.com/nativeship/nativeship/internal/environ"
	"github.com/nativeship/nativeship/internal/introspect"
	"github.com/nativeship/nativeship/internal/issue"
	"github.com/nativeship/nativeship/internal/launcher"
	"github.com/nativeship/nativeship/internal/manifest"
	"github.com/nativeship/nativeship/internal/proc"
)

// Stage names, in run order.
const (
	StageReset      = "reset"
	StageActivate   = "activate"
	StageIntrospect = "introspect"
	StageManifest   = "manifest"
	StageDerive     = "derive"
	StageClean      = "clean"
	StageBuild      = "build"
	StageRelocate   = "relocate"
	StageLaunch     = "launch"
)

type (
	// Deps are the collaborators the standard stages use.
	Deps struct {
		Runner proc.Runner
		Logger *log.Logger
		Stdin  io.Reader
		Stdout io.Writer
		Stderr io.Writer
		// PTY forces the launcher onto a pseudo-terminal regardless of config.
		PTY bool
	}

	stages struct {
		Deps
	}
)

func newStages(d Deps) *stages {
	if d.Runner == nil {
		d.Runner = proc.NewExecRunner(d.Logger)
	}
	if d.Logger == nil {
		d.Logger = log.New(io.Discard)
	}
	if d.Stdout == nil {
		d.Stdout = io.Discard
	}
	if d.Stderr == nil {
		d.Stderr = io.Discard
	}
	return &stages{Deps: d}
}

// Full returns every stage from reset to relocation, plus the launch stage
// when launch is true.
func Full(d Deps, launch bool) []Stage {
	s := newStages(d)
	list := []Stage{
		{Name: StageReset, Policy: BestEffort, Run: s.reset},
		{Name: StageActivate, Policy: Fatal, Run: s.activate},
		{Name: StageIntrospect, Policy: Fatal, Run: s.introspect},
		{Name: StageManifest, Policy: Fatal, Run: s.manifest},
		{Name: StageDerive, Policy: Fatal, Run: s.derive},
		{Name: StageClean, Policy: BestEffort, Run: s.clean},
		{Name: StageBuild, Policy: Fatal, Run: s.build},
		{Name: StageRelocate, Policy: BestEffort, Run: s.relocate},
	}
	if launch {
		list = append(list, Stage{Name: StageLaunch, Policy: BestEffort, Run: s.launch})
	}
	return list
}

// Inspect returns the stages that derive the environment and build
// configuration without touching the filesystem.
func Inspect(d Deps) []Stage {
	s := newStages(d)
	return []Stage{
		{Name: StageReset, Policy: BestEffort, Run: s.reset},
		{Name: StageActivate, Policy: Fatal, Run: s.activate},
		{Name: StageIntrospect, Policy: Fatal, Run: s.introspect},
		{Name: StageManifest, Policy: Fatal, Run: s.manifest},
		{Name: StageDerive, Policy: Fatal, Run: s.derive},
	}
}

// Rebuild returns the stages for an incremental rebuild: Full without the
// cleaner, so the build tool can reuse its previous output, and without launch.
func Rebuild(d Deps) []Stage {
	s := newStages(d)
	return []Stage{
		{Name: StageReset, Policy: BestEffort, Run: s.reset},
		{Name: StageActivate, Policy: Fatal, Run: s.activate},
		{Name: StageIntrospect, Policy: Fatal, Run: s.introspect},
		{Name: StageManifest, Policy: Fatal, Run: s.manifest},
		{Name: StageDerive, Policy: Fatal, Run: s.derive},
		{Name: StageBuild, Policy: Fatal, Run: s.build},
		{Name: StageRelocate, Policy: BestEffort, Run: s.relocate},
	}
}

// CleanOnly returns the stages needed to run the cleaner on its own.
func CleanOnly(d Deps) []Stage {
	s := newStages(d)
	return []Stage{
		{Name: StageReset, Policy: BestEffort, Run: s.reset},
		{Name: StageActivate, Policy: Fatal, Run: s.activate},
		{Name: StageManifest, Policy: Fatal, Run: s.manifest},
		{Name: StageClean, Policy: BestEffort, Run: s.clean},
	}
}

func (s *stages) reset(_ context.Context, st *State) (Outcome, error) {
	env, report := environ.Reset(st.Env, st.Naming)
	st.Env = env
	st.ResetReport = report
	if report.Active() {
		s.Logger.Info("deactivated inherited environment", "roots", report.Deactivated, "path_entries", len(report.RemovedPath))
	} else {
		s.Logger.Debug("no active environment to reset")
	}
	return Continue(), nil
}

func (s *stages) activate(ctx context.Context, st *State) (Outcome, error) {
	a := environ.NewActivator(st.Root, st.Config.Environment.Descriptor)
	a.Stdout = s.Stderr
	a.Stderr = s.Stderr

	env, err := a.Activate(ctx, st.Env)
	if err != nil {
		ec := issue.NewErrorContext().
			WithOperation("activate environment").
			WithResource(a.DescriptorPath())
		if errors.Is(err, environ.ErrDescriptorNotFound) {
			ec.WithSuggestion("Create the virtual environment: python3 -m venv .venv").
				WithSuggestion("Or set environment.descriptor in nativeship.cue").
				WithGuide(issue.DescriptorNotFoundID)
		} else {
			ec.WithSuggestion("Source the script in a shell to see its error").
				WithSuggestion("Recreate the virtual environment if the script is damaged").
				WithGuide(issue.ActivationFailedID)
		}
		return Continue(), ec.Wrap(err).BuildError()
	}

	st.Env = env
	s.Logger.Info("activated environment", "descriptor", a.DescriptorPath(), "virtual_env", env.Get("VIRTUAL_ENV"))
	return Continue(), nil
}

func (s *stages) introspect(ctx context.Context, st *State) (Outcome, error) {
	i := introspect.New(s.Runner, st.Config.Environment.Interpreter,
		introspect.WithDir(st.Root),
		introspect.WithLogger(s.Logger))

	ec, err := i.Introspect(ctx, st.Env)
	if err != nil {
		resource := st.Config.Environment.Interpreter
		var qe *introspect.QueryError
		if errors.As(err, &qe) {
			resource = fmt.Sprintf("%s (query %s)", resource, qe.Query)
		}
		return Continue(), issue.NewErrorContext().
			WithOperation("introspect interpreter").
			WithResource(resource).
			WithSuggestion("Check that the activated environment contains a working interpreter").
			WithGuide(issue.IntrospectionFailedID).
			Wrap(err).
			BuildError()
	}

	st.EnvContext = ec
	s.Logger.Info("introspected interpreter", "interpreter", ec.InterpreterPath(), "version", ec.VersionTag(), "site", ec.ModuleSearchDir())
	return Continue(), nil
}

func (s *stages) manifest(_ context.Context, st *State) (Outcome, error) {
	path := st.resolve(st.Config.Native.Manifest)
	m, err := manifest.Load(path)
	if err != nil {
		return Continue(), issue.NewErrorContext().
			WithOperation("read native manifest").
			WithResource(path).
			WithSuggestion("Set native.manifest in nativeship.cue to the crate's Cargo.toml").
			WithGuide(issue.ManifestInvalidID).
			Wrap(err).
			BuildError()
	}

	st.Manifest = m
	s.Logger.Debug("read native manifest", "path", path, "module", m.ModuleName())
	return Continue(), nil
}

func (s *stages) derive(_ context.Context, st *State) (Outcome, error) {
	native := st.Config.Native
	st.Build = buildcfg.Derive(st.EnvContext, st.Env, buildcfg.Options{
		RuntimeName:    native.RuntimeName,
		InterpreterVar: native.InterpreterVar,
		LinkerFlagsVar: native.LinkerFlagsVar,
		ClearVars:      native.ClearVars,
		ManifestPath:   st.Manifest.Path(),
	})
	st.Artifact = artifact.Locate(
		st.Naming,
		st.Manifest.ModuleName(),
		st.Manifest.Dir(),
		st.Root,
		builder.ProfileDir(native.Profile),
		st.EnvContext.ModuleSearchDir(),
		st.Build.Env,
	)
	s.Logger.Info("derived build configuration", "link_target", st.Build.LinkTargetName, "flags", st.Build.LinkerFlags())
	return Continue(), nil
}

func (s *stages) clean(ctx context.Context, st *State) (Outcome, error) {
	c := &artifact.Cleaner{
		Root:         st.Root,
		CacheDirName: st.Config.Clean.CacheDirName,
		ModuleName:   st.Manifest.ModuleName(),
		Tool:         st.Config.Native.Tool,
		ManifestPath: st.Manifest.Path(),
		Runner:       s.Runner,
		Logger:       s.Logger,
		Stdout:       s.Stderr,
		Stderr:       s.Stderr,
	}
	st.CleanReport = c.Clean(ctx, st.Env)
	s.Logger.Info("cleaned stale artifacts",
		"caches", len(st.CleanReport.RemovedCacheDirs),
		"strays", len(st.CleanReport.RemovedFiles),
		"tool_clean", st.CleanReport.ToolCleaned)
	return Continue(), st.CleanReport.Err()
}

func (s *stages) build(ctx context.Context, st *State) (Outcome, error) {
	b := &builder.Builder{
		Tool:    st.Config.Native.Tool,
		Profile: st.Config.Native.Profile,
		Dir:     st.Root,
		Runner:  s.Runner,
		Stdout:  s.Stderr,
		Stderr:  s.Stderr,
		Logger:  s.Logger,
	}

	code, err := b.Build(ctx, st.Build)
	if err == nil {
		return Continue(), nil
	}
	if ctx.Err() != nil {
		return Continue(), err
	}

	var bfe *builder.BuildFailedError
	ec := issue.NewErrorContext().
		WithOperation("build native module").
		WithResource(st.Build.ManifestPath).
		WithGuide(issue.BuildFailedID)
	if !errors.As(err, &bfe) {
		ec.WithSuggestion("Install the Rust toolchain or set native.tool in nativeship.cue")
	}
	return Abort(code), ec.Wrap(err).BuildError()
}

func (s *stages) relocate(_ context.Context, st *State) (Outcome, error) {
	dep, err := artifact.NewRelocator(st.Naming, s.Logger).Relocate(st.Artifact)
	if err != nil {
		return Continue(), issue.NewErrorContext().
			WithOperation("deploy native module").
			WithResource(st.Artifact.DeployedPath).
			WithSuggestion("Check that the module search directory is writable").
			WithGuide(issue.RelocationFailedID).
			Wrap(err).
			BuildError()
	}

	st.Deployment = dep
	if len(dep.Kept) > 0 {
		s.Logger.Warn("stale deployments could not be removed", "paths", dep.Kept)
	}
	s.Logger.Info("deployed native module", "path", dep.Path, "sha256", dep.SHA256[:12], "bytes", dep.Size)
	return Continue(), nil
}

func (s *stages) launch(ctx context.Context, st *State) (Outcome, error) {
	cfg := st.Config.Launch
	l := &launcher.Launcher{
		Root:        st.Root,
		Dir:         cfg.Dir,
		Command:     cfg.Command,
		PTY:         cfg.PTY || s.PTY,
		GracePeriod: cfg.GracePeriod,
		Runner:      s.Runner,
		Stdin:       s.Stdin,
		Stdout:      s.Stdout,
		Stderr:      s.Stderr,
		Logger:      s.Logger,
	}

	s.Logger.Info("launching application", "dir", l.AppDir(), "cmd", cfg.Command)
	code, err := l.Launch(ctx, st.Env)
	st.AppExitCode = code
	if err != nil {
		return Continue(), fmt.Errorf("launch application: %w", err)
	}
	if code.IsSuccess() {
		s.Logger.Info("application exited")
	} else {
		s.Logger.Warn("application exited with non-zero status", "code", code)
	}
	return Continue(), nil
}

// resolve makes a config path absolute against the invocation root.
func (st *State) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(st.Root, path)
}
