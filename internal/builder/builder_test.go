// SPDX-License-Identifier: MPL-2.0

package builder

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/nativeship/nativeship/internal/buildcfg"
	"github.com/nativeship/nativeship/internal/environ"
	"github.com/nativeship/nativeship/internal/proc"
	"github.com/nativeship/nativeship/pkg/types"
)

type stubRunner struct {
	result *proc.Result
	got    proc.Command
}

func (r *stubRunner) Run(_ context.Context, c proc.Command) *proc.Result {
	r.got = c
	return r.result
}

func (r *stubRunner) Capture(ctx context.Context, c proc.Command) *proc.Result {
	return r.Run(ctx, c)
}

func TestBuilder_Build(t *testing.T) {
	t.Parallel()

	cfg := buildcfg.BuildConfig{
		LibrarySearchPaths: []string{"/usr/lib"},
		LinkTargetName:     "python3.11",
		ManifestPath:       "/work/src/rust_data_collector/Cargo.toml",
		Env:                environ.Env{"RUSTFLAGS": "-L/usr/lib -lpython3.11"},
	}

	tests := []struct {
		name     string
		result   *proc.Result
		wantCode types.ExitCode
		wantErr  error
	}{
		{name: "success", result: &proc.Result{}, wantCode: 0},
		{name: "compile error", result: &proc.Result{ExitCode: 101}, wantCode: 101, wantErr: ErrBuildFailed},
		{name: "tool missing", result: &proc.Result{ExitCode: 1, Error: environ.ErrNotFound}, wantCode: 1, wantErr: environ.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			runner := &stubRunner{result: tt.result}
			b := &Builder{Tool: "cargo", Profile: "release", Dir: "/work", Runner: runner}

			code, err := b.Build(context.Background(), cfg)
			if code != tt.wantCode {
				t.Errorf("code = %d, want %d", code, tt.wantCode)
			}
			if tt.wantErr == nil && err != nil {
				t.Errorf("Build() unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Build() error = %v, want %v", err, tt.wantErr)
			}

			wantArgs := []string{"build", "--release", "--manifest-path", cfg.ManifestPath}
			if runner.got.Name != "cargo" || !slices.Equal(runner.got.Args, wantArgs) {
				t.Errorf("command = %s %v", runner.got.Name, runner.got.Args)
			}
			if runner.got.Env.Get("RUSTFLAGS") != cfg.Env.Get("RUSTFLAGS") {
				t.Error("build must run with the derived environment")
			}
		})
	}
}

func TestBuilder_BuildFailedErrorCarriesCode(t *testing.T) {
	t.Parallel()

	b := &Builder{Tool: "cargo", Profile: "release", Runner: &stubRunner{result: &proc.Result{ExitCode: 101}}}
	_, err := b.Build(context.Background(), buildcfg.BuildConfig{})

	var bfe *BuildFailedError
	if !errors.As(err, &bfe) {
		t.Fatalf("error = %v, want *BuildFailedError", err)
	}
	if bfe.ExitCode != 101 || bfe.Tool != "cargo" {
		t.Errorf("BuildFailedError = %+v", bfe)
	}
}

func TestBuilder_Args(t *testing.T) {
	t.Parallel()

	tests := []struct {
		profile string
		want    []string
		wantDir string
	}{
		{"release", []string{"build", "--release", "--manifest-path", "m"}, "release"},
		{"dev", []string{"build", "--manifest-path", "m"}, "debug"},
		{"", []string{"build", "--manifest-path", "m"}, "debug"},
		{"bench-lto", []string{"build", "--profile", "bench-lto", "--manifest-path", "m"}, "bench-lto"},
	}

	for _, tt := range tests {
		t.Run(tt.profile, func(t *testing.T) {
			t.Parallel()

			b := &Builder{Profile: tt.profile}
			if got := b.Args("m"); !slices.Equal(got, tt.want) {
				t.Errorf("Args() = %v, want %v", got, tt.want)
			}
			if got := ProfileDir(tt.profile); got != tt.wantDir {
				t.Errorf("ProfileDir(%q) = %q, want %q", tt.profile, got, tt.wantDir)
			}
		})
	}
}
