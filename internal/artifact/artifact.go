// SPDX-License-Identifier: MPL-2.0

package artifact

import (
	"path/filepath"

	"github.com/nativeship/nativeship/internal/environ"
	"github.com/nativeship/nativeship/pkg/platform"
)

// TargetDirVar overrides the build tool's output directory.
const TargetDirVar = "CARGO_TARGET_DIR"

// Artifact locates one native module before and after relocation.
type Artifact struct {
	ModuleName string
	// BuiltPath is where the build tool writes the library.
	BuiltPath string
	// DeployedPath is where the module loader will look for it.
	DeployedPath string
	// SourceProjectDir is the native project directory.
	SourceProjectDir string
}

// Locate computes the artifact paths. The build output directory honors
// CARGO_TARGET_DIR from env (relative values are resolved against root) and
// defaults to <projectDir>/target.
func Locate(naming platform.Naming, moduleName, projectDir, root, profile, siteDir string, env environ.Env) Artifact {
	targetDir := filepath.Join(projectDir, "target")
	if dir := env.Get(TargetDirVar); dir != "" {
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(root, dir)
		}
		targetDir = dir
	}

	return Artifact{
		ModuleName:       moduleName,
		BuiltPath:        filepath.Join(targetDir, profile, naming.NativeFileName(moduleName)),
		DeployedPath:     filepath.Join(siteDir, naming.ModuleFileName(moduleName)),
		SourceProjectDir: projectDir,
	}
}
