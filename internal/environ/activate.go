// SPDX-License-Identifier: MPL-2.0

package environ

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// ErrDescriptorNotFound is returned when the activation script does not exist.
var ErrDescriptorNotFound = errors.New("environment descriptor not found")

type (
	// ActivationError is returned when the activation script cannot be parsed
	// or exits with a non-zero status.
	ActivationError struct {
		Descriptor string
		// Status is the script's exit status, or 0 when it never ran.
		Status int
		Err    error
	}

	// Activator sources an activation script and captures the environment it
	// exports.
	Activator struct {
		// Root is the invocation root; the script runs with it as working directory.
		Root string
		// Descriptor is the script path, relative to Root unless absolute.
		Descriptor string
		// Stdout and Stderr receive the script's output. Nil discards it.
		Stdout io.Writer
		Stderr io.Writer
	}
)

// Error implements the error interface.
func (e *ActivationError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("activation script %s exited with status %d", e.Descriptor, e.Status)
	}
	return fmt.Sprintf("activation script %s: %v", e.Descriptor, e.Err)
}

// Unwrap returns the underlying shell error.
func (e *ActivationError) Unwrap() error { return e.Err }

// NewActivator creates an Activator for descriptor under root.
func NewActivator(root, descriptor string) *Activator {
	return &Activator{Root: root, Descriptor: descriptor}
}

// DescriptorPath returns the absolute path of the activation script.
func (a *Activator) DescriptorPath() string {
	if filepath.IsAbs(a.Descriptor) {
		return a.Descriptor
	}
	return filepath.Join(a.Root, a.Descriptor)
}

// Activate sources the descriptor in a shell seeded with base and returns the
// exported environment it leaves behind. Variables the script unsets are
// absent from the result. base is not modified.
func (a *Activator) Activate(ctx context.Context, base Env) (Env, error) {
	path := a.DescriptorPath()

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrDescriptorNotFound, path)
		}
		return nil, &ActivationError{Descriptor: path, Err: err}
	}
	defer f.Close()

	file, err := syntax.NewParser().Parse(f, path)
	if err != nil {
		return nil, &ActivationError{Descriptor: path, Err: err}
	}

	runner, err := interp.New(
		interp.Dir(a.Root),
		interp.Env(expand.ListEnviron(base.List()...)),
		interp.StdIO(nil, writerOrDiscard(a.Stdout), writerOrDiscard(a.Stderr)),
		interp.ExecHandlers(activationExecHandler),
	)
	if err != nil {
		return nil, &ActivationError{Descriptor: path, Err: err}
	}

	if err := runner.Run(ctx, file); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		var status interp.ExitStatus
		if errors.As(err, &status) {
			return nil, &ActivationError{Descriptor: path, Status: int(status), Err: err}
		}
		return nil, &ActivationError{Descriptor: path, Err: err}
	}

	activated := make(Env, len(runner.Vars))
	for name, vr := range runner.Vars {
		if vr.Exported && vr.IsSet() && vr.Kind == expand.String {
			activated[name] = vr.Str
		}
	}

	// The shell rewrites PWD to its own working directory.
	if pwd, ok := base.Lookup("PWD"); ok {
		activated["PWD"] = pwd
	} else {
		delete(activated, "PWD")
	}

	return activated, nil
}

// activationExecHandler turns the command-hash builtins that activation
// scripts call into no-ops; everything else runs normally.
func activationExecHandler(next interp.ExecHandlerFunc) interp.ExecHandlerFunc {
	return func(ctx context.Context, args []string) error {
		switch args[0] {
		case "hash", "rehash":
			return nil
		}
		return next(ctx, args)
	}
}

func writerOrDiscard(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}
