// SPDX-License-Identifier: MPL-2.0

package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu    sync.Mutex
	calls [][]string
	fired chan struct{}
}

func newRecorder() *recorder {
	return &recorder{fired: make(chan struct{}, 16)}
}

func (r *recorder) onChange(_ context.Context, changed []string) error {
	r.mu.Lock()
	r.calls = append(r.calls, changed)
	r.mu.Unlock()
	r.fired <- struct{}{}
	return nil
}

func (r *recorder) snapshot() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.calls)
}

// start runs w in the background and returns a stop func that cancels it and
// reports Run's error.
func start(t *testing.T, w *Watcher) func() error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()
	return func() error {
		cancel()
		return <-errCh
	}
}

func write(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("fn main() {}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestWatcher_DebouncesBurst(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	rec := newRecorder()
	w, err := New(Config{Root: root, Debounce: 100 * time.Millisecond, OnChange: rec.onChange})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	stop := start(t, w)

	for _, name := range []string{"a.rs", "b.rs", "c.rs"} {
		write(t, filepath.Join(root, name))
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case <-rec.fired:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for callback")
	}
	time.Sleep(250 * time.Millisecond)
	if err := stop(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	calls := rec.snapshot()
	if len(calls) != 1 {
		t.Fatalf("got %d callbacks, want 1: %v", len(calls), calls)
	}
	if want := []string{"a.rs", "b.rs", "c.rs"}; !slices.Equal(calls[0], want) {
		t.Errorf("changed = %v, want %v", calls[0], want)
	}
}

func TestWatcher_PatternsAndIgnores(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	for _, dir := range []string{"src", "target/release", ".venv/lib"} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			t.Fatal(err)
		}
	}

	rec := newRecorder()
	w, err := New(Config{
		Root:     root,
		Patterns: []string{"**/*.rs", "**/Cargo.toml"},
		Debounce: 50 * time.Millisecond,
		OnChange: rec.onChange,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	stop := start(t, w)

	write(t, filepath.Join(root, "README.md"))
	write(t, filepath.Join(root, "target", "release", "build.rs"))
	write(t, filepath.Join(root, ".venv", "lib", "mod.rs"))
	write(t, filepath.Join(root, "src", "lib.rs"))

	select {
	case <-rec.fired:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for callback")
	}
	time.Sleep(150 * time.Millisecond)
	if err := stop(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	for _, call := range rec.snapshot() {
		for _, path := range call {
			if path != "src/lib.rs" {
				t.Errorf("unexpected changed path %q", path)
			}
		}
	}
}

func TestWatcher_WatchesNewDirectories(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	rec := newRecorder()
	w, err := New(Config{Root: root, Patterns: []string{"**/*.rs"}, Debounce: 50 * time.Millisecond, OnChange: rec.onChange})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	stop := start(t, w)
	defer stop() //nolint:errcheck

	if err := os.MkdirAll(filepath.Join(root, "src", "codec"), 0o755); err != nil {
		t.Fatal(err)
	}
	// Give the watcher time to register the new directory.
	time.Sleep(100 * time.Millisecond)
	write(t, filepath.Join(root, "src", "codec", "frame.rs"))

	deadline := time.After(5 * time.Second)
	for {
		select {
		case <-rec.fired:
			for _, call := range rec.snapshot() {
				if slices.Contains(call, "src/codec/frame.rs") {
					return
				}
			}
		case <-deadline:
			t.Fatalf("frame.rs never reported; calls = %v", rec.snapshot())
		}
	}
}

func TestWatcher_StopsOnCancel(t *testing.T) {
	t.Parallel()

	w, err := New(Config{Root: t.TempDir()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	stop := start(t, w)
	if err := stop(); err != nil {
		t.Errorf("Run() after cancel = %v, want nil", err)
	}
}

func TestWatcher_RunTwice(t *testing.T) {
	t.Parallel()

	w, err := New(Config{Root: t.TempDir()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	stop := start(t, w)
	defer stop() //nolint:errcheck

	// Wait until the first Run has claimed the watcher.
	for !w.started.Load() {
		time.Sleep(time.Millisecond)
	}
	if err := w.Run(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Run() = %v, want ErrAlreadyRunning", err)
	}
}

func TestNew_Rejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  Config
		want error
	}{
		{"no root", Config{}, ErrNoRoot},
		{"bad pattern", Config{Root: t.TempDir(), Patterns: []string{"src/[.rs"}}, ErrInvalidPattern},
		{"bad ignore", Config{Root: t.TempDir(), Ignore: []string{"{target"}}, ErrInvalidPattern},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := New(tt.cfg); !errors.Is(err, tt.want) {
				t.Errorf("New() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDefaultIgnores(t *testing.T) {
	t.Parallel()

	w := &Watcher{ignores: DefaultIgnores()}
	for _, rel := range []string{
		".git/HEAD",
		"src/rust_data_collector/target/release/librust_data_collector.so",
		".venv/lib/python3.11/site-packages/rust_data_collector.so",
		"src/python_ml_dashboard/__pycache__/app.cpython-311.pyc",
		"src/lib.rs.swp",
	} {
		if !w.ignored(rel) {
			t.Errorf("%q not ignored", rel)
		}
	}
	for _, rel := range []string{"src/rust_data_collector/src/lib.rs", "src/rust_data_collector/Cargo.toml"} {
		if w.ignored(rel) {
			t.Errorf("%q ignored", rel)
		}
	}

	got := DefaultIgnores()
	got[0] = "mutated"
	if DefaultIgnores()[0] == "mutated" {
		t.Error("DefaultIgnores() returned the shared slice")
	}
}
