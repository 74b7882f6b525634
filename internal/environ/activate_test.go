// SPDX-License-Identifier: MPL-2.0

package environ

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"testing"

	"github.com/nativeship/nativeship/pkg/platform"
)

func writeScript(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestActivator_Activate(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == platform.Windows {
		t.Skip("script uses POSIX PATH separators")
	}

	root := t.TempDir()
	venv := filepath.Join(root, ".venv")
	writeScript(t, filepath.Join(venv, "bin", "activate"), `
VIRTUAL_ENV="$PWD/.venv"
export VIRTUAL_ENV
PATH="$VIRTUAL_ENV/bin:$PATH"
export PATH
unset PYTHONHOME
LOCAL_ONLY=1
. ./.venv/extra.sh
hash -r 2>/dev/null
rehash
`)
	writeScript(t, filepath.Join(venv, "extra.sh"), "export FROM_EXTRA=sourced\n")

	base := Env{"PATH": "/usr/bin", "PYTHONHOME": "/opt/py", "PWD": "/somewhere/else"}

	got, err := NewActivator(root, filepath.Join(".venv", "bin", "activate")).Activate(context.Background(), base)
	if err != nil {
		t.Fatalf("Activate() error = %v", err)
	}

	if got.Get("VIRTUAL_ENV") != venv {
		t.Errorf("VIRTUAL_ENV = %q, want %q (script runs in the root)", got.Get("VIRTUAL_ENV"), venv)
	}
	if want := []string{filepath.Join(venv, "bin"), "/usr/bin"}; !slices.Equal(got.Path(), want) {
		t.Errorf("PATH = %v, want %v", got.Path(), want)
	}
	if _, ok := got.Lookup("PYTHONHOME"); ok {
		t.Error("PYTHONHOME was unset by the script and must be absent")
	}
	if _, ok := got.Lookup("LOCAL_ONLY"); ok {
		t.Error("non-exported shell variables must not leak")
	}
	if got.Get("FROM_EXTRA") != "sourced" {
		t.Errorf("FROM_EXTRA = %q, want sourced", got.Get("FROM_EXTRA"))
	}
	if got.Get("PWD") != "/somewhere/else" {
		t.Errorf("PWD = %q, want the inherited value", got.Get("PWD"))
	}
	if base.Get("PYTHONHOME") != "/opt/py" {
		t.Error("Activate modified its input")
	}
}

func TestActivator_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		script     *string
		wantStatus int
		notFound   bool
	}{
		{name: "missing descriptor", notFound: true},
		{name: "syntax error", script: ptr("if then fi (\n")},
		{name: "non-zero exit", script: ptr("export A=1\nexit 3\n"), wantStatus: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			root := t.TempDir()
			if tt.script != nil {
				writeScript(t, filepath.Join(root, "activate"), *tt.script)
			}

			_, err := NewActivator(root, "activate").Activate(context.Background(), Env{})
			if err == nil {
				t.Fatal("Activate() expected error")
			}

			if tt.notFound {
				if !errors.Is(err, ErrDescriptorNotFound) {
					t.Errorf("error = %v, want ErrDescriptorNotFound", err)
				}
				return
			}

			var ae *ActivationError
			if !errors.As(err, &ae) {
				t.Fatalf("error = %T %v, want *ActivationError", err, err)
			}
			if ae.Status != tt.wantStatus {
				t.Errorf("Status = %d, want %d", ae.Status, tt.wantStatus)
			}
			if ae.Descriptor != filepath.Join(root, "activate") {
				t.Errorf("Descriptor = %q", ae.Descriptor)
			}
		})
	}
}

func TestActivator_AbsoluteDescriptor(t *testing.T) {
	t.Parallel()

	elsewhere := filepath.Join(t.TempDir(), "activate")
	a := NewActivator(t.TempDir(), elsewhere)
	if a.DescriptorPath() != elsewhere {
		t.Errorf("DescriptorPath() = %q, want %q", a.DescriptorPath(), elsewhere)
	}
}

func ptr(s string) *string { return &s }
