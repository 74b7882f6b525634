// SPDX-License-Identifier: MPL-2.0

package artifact

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/nativeship/nativeship/internal/environ"
	"github.com/nativeship/nativeship/pkg/platform"
)

const module = "rust_data_collector"

func mustWrite(t *testing.T, path string, content []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, content, 0o755); err != nil {
		t.Fatal(err)
	}
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

func setup(t *testing.T, naming platform.Naming) (Artifact, []byte) {
	t.Helper()
	root := t.TempDir()
	projectDir := filepath.Join(root, "src", module)
	site := filepath.Join(root, ".venv", "lib", "python3.11", "site-packages")

	a := Locate(naming, module, projectDir, root, "release", site, environ.Env{})
	content := []byte("\x7fELF fake shared object \x00\x01\x02")
	mustWrite(t, a.BuiltPath, content)
	return a, content
}

func TestLocate(t *testing.T) {
	t.Parallel()

	root := filepath.FromSlash("/work")
	project := filepath.Join(root, "src", module)
	site := filepath.FromSlash("/venv/site-packages")

	tests := []struct {
		name       string
		naming     platform.Naming
		env        environ.Env
		wantBuilt  string
		wantDeploy string
	}{
		{
			name:       "linux",
			naming:     platform.NamingFor(platform.Linux),
			wantBuilt:  filepath.Join(project, "target", "release", "librust_data_collector.so"),
			wantDeploy: filepath.Join(site, "rust_data_collector.so"),
		},
		{
			name:       "darwin renames dylib",
			naming:     platform.NamingFor(platform.Darwin),
			wantBuilt:  filepath.Join(project, "target", "release", "librust_data_collector.dylib"),
			wantDeploy: filepath.Join(site, "rust_data_collector.so"),
		},
		{
			name:       "windows renames dll",
			naming:     platform.NamingFor(platform.Windows),
			wantBuilt:  filepath.Join(project, "target", "release", "rust_data_collector.dll"),
			wantDeploy: filepath.Join(site, "rust_data_collector.pyd"),
		},
		{
			name:       "relative target dir",
			naming:     platform.NamingFor(platform.Linux),
			env:        environ.Env{TargetDirVar: "build"},
			wantBuilt:  filepath.Join(root, "build", "release", "librust_data_collector.so"),
			wantDeploy: filepath.Join(site, "rust_data_collector.so"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			a := Locate(tt.naming, module, project, root, "release", site, tt.env)
			if a.BuiltPath != tt.wantBuilt {
				t.Errorf("BuiltPath = %q, want %q", a.BuiltPath, tt.wantBuilt)
			}
			if a.DeployedPath != tt.wantDeploy {
				t.Errorf("DeployedPath = %q, want %q", a.DeployedPath, tt.wantDeploy)
			}
			if a.SourceProjectDir != project {
				t.Errorf("SourceProjectDir = %q", a.SourceProjectDir)
			}
		})
	}
}

func TestRelocate_CopiesWithModuleExtension(t *testing.T) {
	t.Parallel()

	for _, goos := range []string{platform.Linux, platform.Darwin, platform.Windows} {
		t.Run(goos, func(t *testing.T) {
			t.Parallel()

			naming := platform.NamingFor(goos)
			a, content := setup(t, naming)

			dep, err := NewRelocator(naming, nil).Relocate(a)
			if err != nil {
				t.Fatalf("Relocate() error = %v", err)
			}

			got, err := os.ReadFile(a.DeployedPath)
			if err != nil {
				t.Fatalf("deployed artifact missing: %v", err)
			}
			if !bytes.Equal(got, content) {
				t.Error("deployed content differs from built content")
			}
			if filepath.Ext(a.DeployedPath) != naming.ModuleExt {
				t.Errorf("deployed extension = %q, want %q", filepath.Ext(a.DeployedPath), naming.ModuleExt)
			}
			if dep.Size != int64(len(content)) || len(dep.SHA256) != 64 {
				t.Errorf("Deployment = %+v", dep)
			}
			if !exists(a.BuiltPath) {
				t.Error("built artifact must be copied, not moved")
			}
		})
	}
}

func TestRelocate_ReplacesStaleDeployments(t *testing.T) {
	t.Parallel()

	naming := platform.NamingFor(platform.Darwin)
	a, content := setup(t, naming)
	site := filepath.Dir(a.DeployedPath)

	stale := []string{
		filepath.Join(site, "rust_data_collector.so"),
		filepath.Join(site, "rust_data_collector.dylib"),
		filepath.Join(site, "librust_data_collector.dylib"),
	}
	for _, p := range stale {
		mustWrite(t, p, []byte("stale"))
	}
	mustWrite(t, filepath.Join(site, "numpy.so"), []byte("unrelated"))

	dep, err := NewRelocator(naming, nil).Relocate(a)
	if err != nil {
		t.Fatalf("Relocate() error = %v", err)
	}
	if len(dep.Replaced) != len(stale) {
		t.Errorf("Replaced = %v, want %d entries", dep.Replaced, len(stale))
	}
	for _, p := range stale[1:] {
		if exists(p) {
			t.Errorf("stale %s should be gone", p)
		}
	}
	got, _ := os.ReadFile(a.DeployedPath)
	if !bytes.Equal(got, content) {
		t.Error("deployed content should be the fresh build")
	}
	if !exists(filepath.Join(site, "numpy.so")) {
		t.Error("unrelated modules must survive")
	}
}

func TestRelocate_Idempotent(t *testing.T) {
	t.Parallel()

	naming := platform.NamingFor(platform.Linux)
	a, _ := setup(t, naming)
	r := NewRelocator(naming, nil)

	first, err := r.Relocate(a)
	if err != nil {
		t.Fatalf("first Relocate() error = %v", err)
	}
	second, err := r.Relocate(a)
	if err != nil {
		t.Fatalf("second Relocate() error = %v", err)
	}
	if first.SHA256 != second.SHA256 {
		t.Error("rerun should deploy identical content")
	}
}

func TestRelocate_MissingArtifact(t *testing.T) {
	t.Parallel()

	naming := platform.NamingFor(platform.Linux)
	a, _ := setup(t, naming)
	if err := os.Remove(a.BuiltPath); err != nil {
		t.Fatal(err)
	}

	_, err := NewRelocator(naming, nil).Relocate(a)
	if !errors.Is(err, ErrArtifactMissing) {
		t.Errorf("Relocate() error = %v, want ErrArtifactMissing", err)
	}
	if exists(a.DeployedPath) {
		t.Error("nothing may be deployed without a built artifact")
	}
}

func TestRelocate_ShadowingSourceFailsVerification(t *testing.T) {
	t.Parallel()

	naming := platform.NamingFor(platform.Linux)
	a, _ := setup(t, naming)
	shadow := filepath.Join(filepath.Dir(a.DeployedPath), "rust_data_collector.py")
	mustWrite(t, shadow, []byte("raise ImportError\n"))

	_, err := NewRelocator(naming, nil).Relocate(a)

	var ve *VerificationError
	if !errors.As(err, &ve) {
		t.Fatalf("Relocate() error = %v, want *VerificationError", err)
	}
	if len(ve.Entries) != 2 {
		t.Errorf("Entries = %v, want the module and its shadow", ve.Entries)
	}
}

func TestRelocate_PackageDirectoryWithModuleName(t *testing.T) {
	t.Parallel()

	naming := platform.NamingFor(platform.Linux)
	a, content := setup(t, naming)
	site := filepath.Dir(a.DeployedPath)
	pkgDir := filepath.Join(site, module)
	mustWrite(t, filepath.Join(pkgDir, "__init__.py"), []byte("from .rust_data_collector import *\n"))
	if err := os.Symlink(pkgDir, filepath.Join(site, module+".py")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	dep, err := NewRelocator(naming, nil).Relocate(a)
	if err != nil {
		t.Fatalf("Relocate() error = %v", err)
	}
	if dep.Path != a.DeployedPath {
		t.Errorf("Path = %q, want %q", dep.Path, a.DeployedPath)
	}
	got, _ := os.ReadFile(a.DeployedPath)
	if !bytes.Equal(got, content) {
		t.Error("deployed content should be the fresh build")
	}
	if !exists(filepath.Join(pkgDir, "__init__.py")) {
		t.Error("package directory must be left alone")
	}
}

func TestRelocate_UnremovableStaleIsKept(t *testing.T) {
	t.Parallel()

	naming := platform.NamingFor(platform.Linux)
	a, content := setup(t, naming)
	// A non-empty directory under a stale name cannot be removed with os.Remove.
	stale := filepath.Join(filepath.Dir(a.DeployedPath), naming.NativeFileName(module))
	mustWrite(t, filepath.Join(stale, "keep"), []byte("x"))

	dep, err := NewRelocator(naming, nil).Relocate(a)
	if err != nil {
		t.Fatalf("Relocate() error = %v", err)
	}
	if len(dep.Kept) != 1 || dep.Kept[0] != stale {
		t.Errorf("Kept = %v, want [%s]", dep.Kept, stale)
	}
	got, _ := os.ReadFile(a.DeployedPath)
	if !bytes.Equal(got, content) {
		t.Error("deployed content should be the fresh build")
	}
}
