// SPDX-License-Identifier: MPL-2.0

package project

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/nativeship/nativeship/internal/testutil"
)

func noEnv(string) (string, bool) { return "", false }

func exeAt(path string) func() (string, error) {
	return func() (string, error) { return path, nil }
}

func TestResolveRoot_Precedence(t *testing.T) {
	t.Parallel()

	flagRoot := t.TempDir()
	envRoot := t.TempDir()
	project := t.TempDir()
	testutil.MustWriteFile(t, filepath.Join(project, "nativeship.cue"), "")
	exe := filepath.Join(project, "bin", "tools", "nativeship")
	testutil.MustWriteFile(t, exe, "")
	bare := filepath.Join(t.TempDir(), "nativeship")
	testutil.MustWriteFile(t, bare, "")

	env := func(name string) (string, bool) {
		if name == EnvRoot {
			return envRoot, true
		}
		return "", false
	}

	tests := []struct {
		name       string
		opts       Options
		wantRoot   string
		wantSource Source
	}{
		{"flag wins", Options{Flag: flagRoot, LookupEnv: env, Executable: exeAt(exe), Marker: "nativeship.cue"}, flagRoot, SourceFlag},
		{"env over executable", Options{LookupEnv: env, Executable: exeAt(exe), Marker: "nativeship.cue"}, envRoot, SourceEnv},
		{"marker above executable", Options{LookupEnv: noEnv, Executable: exeAt(exe), Marker: "nativeship.cue"}, project, SourceMarker},
		{"executable dir fallback", Options{LookupEnv: noEnv, Executable: exeAt(bare), Marker: "nativeship.cue"}, filepath.Dir(bare), SourceExecutable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			root, source, err := ResolveRoot(tt.opts)
			if err != nil {
				t.Fatalf("ResolveRoot() error = %v", err)
			}
			want, _ := filepath.EvalSymlinks(tt.wantRoot)
			got, _ := filepath.EvalSymlinks(root)
			if got != want {
				t.Errorf("root = %q, want %q", root, tt.wantRoot)
			}
			if source != tt.wantSource {
				t.Errorf("source = %v, want %v", source, tt.wantSource)
			}
		})
	}
}

func TestResolveRoot_IgnoresWorkingDirectory(t *testing.T) {
	project := t.TempDir()
	testutil.MustWriteFile(t, filepath.Join(project, "nativeship.cue"), "")
	exe := filepath.Join(project, "nativeship")
	testutil.MustWriteFile(t, exe, "")

	elsewhere := t.TempDir()
	testutil.MustWriteFile(t, filepath.Join(elsewhere, "nativeship.cue"), "")
	defer testutil.MustChdir(t, elsewhere)()

	root, _, err := ResolveRoot(Options{LookupEnv: noEnv, Executable: exeAt(exe), Marker: "nativeship.cue"})
	if err != nil {
		t.Fatalf("ResolveRoot() error = %v", err)
	}
	want, _ := filepath.EvalSymlinks(project)
	got, _ := filepath.EvalSymlinks(root)
	if got != want {
		t.Errorf("root = %q, want %q regardless of cwd", root, project)
	}
}

func TestResolveRoot_FollowsSymlinkedExecutable(t *testing.T) {
	t.Parallel()

	project := t.TempDir()
	testutil.MustWriteFile(t, filepath.Join(project, "nativeship.cue"), "")
	target := filepath.Join(project, "bin", "nativeship")
	testutil.MustWriteFile(t, target, "")

	link := filepath.Join(t.TempDir(), "nativeship")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	root, source, err := ResolveRoot(Options{LookupEnv: noEnv, Executable: exeAt(link), Marker: "nativeship.cue"})
	if err != nil {
		t.Fatalf("ResolveRoot() error = %v", err)
	}
	want, _ := filepath.EvalSymlinks(project)
	if root != want || source != SourceMarker {
		t.Errorf("ResolveRoot() = %q (%v), want %q via marker", root, source, want)
	}
}

func TestResolveRoot_InvalidExplicitRoot(t *testing.T) {
	t.Parallel()

	file := filepath.Join(t.TempDir(), "file")
	testutil.MustWriteFile(t, file, "")

	for _, flag := range []string{file, filepath.Join(t.TempDir(), "absent")} {
		if _, _, err := ResolveRoot(Options{Flag: flag, LookupEnv: noEnv}); !errors.Is(err, ErrRootInvalid) {
			t.Errorf("ResolveRoot(%q) error = %v, want ErrRootInvalid", flag, err)
		}
	}
}
