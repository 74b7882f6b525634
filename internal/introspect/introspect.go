// SPDX-License-Identifier: MPL-2.0

package introspect

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"golang.org/x/mod/semver"

	"github.com/nativeship/nativeship/internal/environ"
	"github.com/nativeship/nativeship/internal/proc"
)

const (
	// QueryInterpreterPath resolves the interpreter executable.
	QueryInterpreterPath Query = "interpreter-path"
	// QueryInstallBase reads sysconfig BINDIR to derive the install base.
	QueryInstallBase Query = "install-base"
	// QueryVersion reads the interpreter version.
	QueryVersion Query = "version"
	// QuerySiteDir reads the first site-packages directory.
	QuerySiteDir Query = "site-dir"
)

var (
	// ErrUnexpectedOutput is wrapped when a query succeeded but its output
	// cannot be used.
	ErrUnexpectedOutput = errors.New("unexpected interpreter output")

	queryArgs = map[Query][]string{
		QueryInterpreterPath: {"-c", "import sys; print(sys.executable)"},
		QueryInstallBase:     {"-c", "import sysconfig; print(sysconfig.get_config_var('BINDIR'))"},
		QueryVersion:         {"--version"},
		QuerySiteDir:         {"-c", "import site; print(site.getsitepackages()[0])"},
	}
)

type (
	// Query names one introspection query.
	Query string

	// QueryError reports which query failed.
	QueryError struct {
		Query       Query
		Interpreter string
		// Stderr is the tail of the query's error output, if any.
		Stderr string
		Err    error
	}

	// Introspector runs the interpreter queries.
	Introspector struct {
		runner      proc.Runner
		interpreter string
		dir         string
		logger      *log.Logger
	}

	// Option configures an Introspector.
	Option func(*Introspector)
)

// Error implements the error interface.
func (e *QueryError) Error() string {
	msg := fmt.Sprintf("interpreter query %q failed", e.Query)
	if e.Interpreter != "" {
		msg += " (" + e.Interpreter + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *QueryError) Unwrap() error { return e.Err }

// WithDir sets the working directory of the queries.
func WithDir(dir string) Option {
	return func(i *Introspector) { i.dir = dir }
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(i *Introspector) { i.logger = logger }
}

// New creates an Introspector for the interpreter executable name.
func New(runner proc.Runner, interpreter string, opts ...Option) *Introspector {
	i := &Introspector{
		runner:      runner,
		interpreter: interpreter,
		logger:      log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Introspect resolves the interpreter on env's PATH and derives an
// EnvironmentContext. The first failing query aborts introspection.
func (i *Introspector) Introspect(ctx context.Context, env environ.Env) (EnvironmentContext, error) {
	resolved, err := env.LookPath(i.interpreter)
	if err != nil {
		return EnvironmentContext{}, &QueryError{Query: QueryInterpreterPath, Interpreter: i.interpreter, Err: err}
	}

	interpreterPath, err := i.query(ctx, env, resolved, QueryInterpreterPath)
	if err != nil {
		return EnvironmentContext{}, err
	}
	if !filepath.IsAbs(interpreterPath) {
		return EnvironmentContext{}, i.unexpected(QueryInterpreterPath, resolved, interpreterPath, "path is not absolute")
	}

	binDir, err := i.query(ctx, env, resolved, QueryInstallBase)
	if err != nil {
		return EnvironmentContext{}, err
	}
	if binDir == "None" || !filepath.IsAbs(binDir) {
		return EnvironmentContext{}, i.unexpected(QueryInstallBase, resolved, binDir, "BINDIR is not an absolute path")
	}

	versionOut, err := i.query(ctx, env, resolved, QueryVersion)
	if err != nil {
		return EnvironmentContext{}, err
	}
	versionTag, err := ParseVersionTag(versionOut)
	if err != nil {
		return EnvironmentContext{}, &QueryError{Query: QueryVersion, Interpreter: resolved, Err: err}
	}

	siteDir, err := i.query(ctx, env, resolved, QuerySiteDir)
	if err != nil {
		return EnvironmentContext{}, err
	}
	if !filepath.IsAbs(siteDir) {
		return EnvironmentContext{}, i.unexpected(QuerySiteDir, resolved, siteDir, "site directory is not absolute")
	}

	ec := NewEnvironmentContext(interpreterPath, filepath.Dir(filepath.Clean(binDir)), versionTag, siteDir)
	i.logger.Debug("introspected interpreter",
		"interpreter", ec.InterpreterPath(),
		"base", ec.BaseInstallPath(),
		"lib", ec.LibraryDir(),
		"version", ec.VersionTag(),
		"site", ec.ModuleSearchDir())
	return ec, nil
}

func (i *Introspector) query(ctx context.Context, env environ.Env, interpreter string, q Query) (string, error) {
	res := i.runner.Capture(ctx, proc.Command{
		Name: interpreter,
		Args: queryArgs[q],
		Dir:  i.dir,
		Env:  env,
	})
	if res.Error != nil {
		return "", &QueryError{Query: q, Interpreter: interpreter, Err: res.Error}
	}
	if res.Failed() {
		return "", &QueryError{
			Query:       q,
			Interpreter: interpreter,
			Stderr:      lastLine(res.ErrOutput),
			Err:         res.Err(),
		}
	}

	out := lastLine(res.Output)
	// Python 2 and some builds print --version on stderr.
	if out == "" && q == QueryVersion {
		out = lastLine(res.ErrOutput)
	}
	if out == "" {
		return "", i.unexpected(q, interpreter, out, "empty output")
	}
	return out, nil
}

func (i *Introspector) unexpected(q Query, interpreter, output, reason string) error {
	return &QueryError{
		Query:       q,
		Interpreter: interpreter,
		Err:         fmt.Errorf("%w: %s: %q", ErrUnexpectedOutput, reason, output),
	}
}

// ParseVersionTag turns "Python 3.11.4" (or "3.11") into "3.11".
func ParseVersionTag(output string) (string, error) {
	fields := strings.Fields(output)
	if len(fields) == 0 {
		return "", fmt.Errorf("%w: empty version", ErrUnexpectedOutput)
	}
	raw := fields[len(fields)-1]

	// Pre-release builds print e.g. 3.13.0rc1.
	end := strings.IndexFunc(raw, func(r rune) bool { return (r < '0' || r > '9') && r != '.' })
	if end >= 0 {
		raw = raw[:end]
	}
	raw = strings.TrimSuffix(raw, ".")

	v := "v" + raw
	if !semver.IsValid(v) {
		return "", fmt.Errorf("%w: version %q", ErrUnexpectedOutput, output)
	}
	return strings.TrimPrefix(semver.MajorMinor(v), "v"), nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for idx := len(lines) - 1; idx >= 0; idx-- {
		if line := strings.TrimSpace(lines[idx]); line != "" {
			return line
		}
	}
	return ""
}
