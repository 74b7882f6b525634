// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/nativeship/nativeship/pkg/platform"
)

const (
	// FakeModuleName is the crate library name used by the fake project.
	FakeModuleName = "rust_data_collector"
	// FakeBaseBinDir is what the fake interpreter reports as sysconfig BINDIR.
	FakeBaseBinDir = "/opt/python/bin"
	// FakeVersion is what the fake interpreter reports for --version.
	FakeVersion = "Python 3.11.4"
	// FakeCargoFailVar makes the fake cargo build exit 101 when set.
	FakeCargoFailVar = "FAKE_CARGO_FAIL"

	fakeManifest = `[package]
name = "rust-data-collector"
version = "0.1.0"
edition = "2021"

[lib]
name = "rust_data_collector"
crate-type = ["cdylib"]

[dependencies]
pyo3 = { version = "0.21", features = ["extension-module"] }
`
)

// FakeProject is an on-disk project wired to fake python/cargo/streamlit scripts.
type FakeProject struct {
	Root         string
	VenvDir      string
	SiteDir      string
	Descriptor   string
	ManifestPath string
	AppDir       string
	Naming       platform.Naming
}

// NewFakeProject lays out a fake project under a fresh temp dir. Tests using
// it are skipped on Windows.
func NewFakeProject(t testing.TB) *FakeProject {
	t.Helper()
	if runtime.GOOS == platform.Windows {
		t.Skip("fake toolchain uses POSIX shell scripts")
	}

	p, err := LayoutFakeProject(t.TempDir())
	if err != nil {
		t.Fatalf("failed to lay out fake project: %v", err)
	}
	return p
}

// LayoutFakeProject writes the fake project into root, which must exist.
// Files already present under root are overwritten only where the layout
// names them.
func LayoutFakeProject(root string) (*FakeProject, error) {
	p := &FakeProject{
		Root:         root,
		VenvDir:      filepath.Join(root, ".venv"),
		Descriptor:   filepath.Join(root, ".venv", "bin", "activate"),
		ManifestPath: filepath.Join(root, "src", FakeModuleName, "Cargo.toml"),
		AppDir:       filepath.Join(root, "src", "python_ml_dashboard"),
		Naming:       platform.Current(),
	}
	p.SiteDir = filepath.Join(p.VenvDir, "lib", "python3.11", "site-packages")
	bin := filepath.Join(p.VenvDir, "bin")

	files := []struct {
		path    string
		content string
		mode    os.FileMode
	}{
		{p.Descriptor, fakeActivate(p.VenvDir), 0o644},
		{filepath.Join(bin, "python"), fakePython(p.SiteDir), 0o755},
		{filepath.Join(bin, "cargo"), fakeCargo(p.Naming.NativeFileName(FakeModuleName)), 0o755},
		{filepath.Join(bin, "streamlit"), fakeStreamlit, 0o755},
		{p.ManifestPath, fakeManifest, 0o644},
		{filepath.Join(filepath.Dir(p.ManifestPath), "src", "lib.rs"), "// native module\n", 0o644},
		{filepath.Join(p.AppDir, "app.py"), "import rust_data_collector\n", 0o644},
	}
	for _, f := range files {
		if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
			return nil, err
		}
		if err := os.WriteFile(f.path, []byte(f.content), f.mode); err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(p.SiteDir, 0o755); err != nil {
		return nil, err
	}
	return p, nil
}

// BuiltPath is where the fake cargo writes the artifact.
func (p *FakeProject) BuiltPath() string {
	return filepath.Join(filepath.Dir(p.ManifestPath), "target", "release", p.Naming.NativeFileName(FakeModuleName))
}

// DeployedPath is where the artifact must end up.
func (p *FakeProject) DeployedPath() string {
	return filepath.Join(p.SiteDir, p.Naming.ModuleFileName(FakeModuleName))
}

// fakeActivate returns an activation script that activates venvDir.
func fakeActivate(venvDir string) string {
	return fmt.Sprintf(`# fake venv activation
deactivate () {
    unset VIRTUAL_ENV
}
VIRTUAL_ENV=%q
export VIRTUAL_ENV
_OLD_VIRTUAL_PATH="$PATH"
PATH="$VIRTUAL_ENV/bin:$PATH"
export PATH
if [ -n "${PYTHONHOME:-}" ] ; then
    unset PYTHONHOME
fi
hash -r 2>/dev/null
`, venvDir)
}

func fakePython(siteDir string) string {
	return fmt.Sprintf(`#!/bin/sh
case "$*" in
  *sys.executable*) echo "$0" ;;
  *BINDIR*) echo %q ;;
  *getsitepackages*) echo %q ;;
  --version) echo %q ;;
  *) echo "unexpected arguments: $*" >&2; exit 2 ;;
esac
`, FakeBaseBinDir, siteDir, FakeVersion)
}

func fakeCargo(nativeFile string) string {
	return fmt.Sprintf(`#!/bin/sh
sub="$1"
shift
manifest=""
while [ $# -gt 0 ]; do
  case "$1" in
    --manifest-path) manifest="$2"; shift ;;
  esac
  shift
done
dir=$(dirname "$manifest")
case "$sub" in
  clean) rm -rf "$dir/target" ;;
  build)
    if [ -n "${%s:-}" ]; then
      echo "error: could not compile rust_data_collector" >&2
      exit 101
    fi
    mkdir -p "$dir/target/release"
    printf 'PYO3_PYTHON=%%s RUSTFLAGS=%%s LDFLAGS=%%s\n' "$PYO3_PYTHON" "$RUSTFLAGS" "${LDFLAGS:-}" > "$dir/target/release/%s"
    ;;
  *) echo "unexpected subcommand: $sub" >&2; exit 2 ;;
esac
`, FakeCargoFailVar, nativeFile)
}

const fakeStreamlit = `#!/bin/sh
echo "dashboard started: $*"
`
