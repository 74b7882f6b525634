// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"os"
	"runtime"
	"testing"

	"github.com/rogpeppe/go-internal/testscript"

	"github.com/nativeship/nativeship/internal/project"
	"github.com/nativeship/nativeship/internal/testutil"
	"github.com/nativeship/nativeship/pkg/platform"
)

func TestMain(m *testing.M) {
	os.Exit(testscript.RunMain(m, map[string]func() int{
		"nativeship": Main,
	}))
}

// TestCLI runs the txtar scenarios in testdata against a fake project laid
// out in each script's work directory.
func TestCLI(t *testing.T) {
	if runtime.GOOS == platform.Windows {
		t.Skip("fake toolchain uses POSIX shell scripts")
	}

	testscript.Run(t, testscript.Params{
		Dir: "testdata",
		Setup: func(env *testscript.Env) error {
			if _, err := testutil.LayoutFakeProject(env.WorkDir); err != nil {
				return err
			}
			env.Setenv(project.EnvRoot, env.WorkDir)
			return nil
		},
	})
}
