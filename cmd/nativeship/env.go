// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nativeship/nativeship/internal/pipeline"
)

func newEnvCommand(app *App, flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "Show the derived build environment",
		Long: `Reset and activate the environment, introspect its interpreter and derive
the build configuration, then print the result. Nothing on disk is changed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, err := app.newSession(ctx, *flags)
			if err != nil {
				return err
			}

			st, res, err := s.run(ctx, pipeline.Inspect(s.deps))
			if err != nil || !res.Code.IsSuccess() {
				return app.failure(res, err, flags.verbose)
			}
			printEnvironment(app.stdout, st)
			return nil
		},
	}
}

func printEnvironment(w io.Writer, st *pipeline.State) {
	ec := st.EnvContext
	native := st.Config.Native

	fmt.Fprintln(w, TitleStyle.Render("Environment"))
	row(w, "root", st.Root)
	if st.ResetReport.Active() {
		row(w, "deactivated", strings.Join(st.ResetReport.Deactivated, ", "))
	}
	row(w, "interpreter", ec.InterpreterPath())
	row(w, "install base", ec.BaseInstallPath())
	row(w, "library dir", ec.LibraryDir())
	row(w, "version", ec.VersionTag())
	row(w, "site dir", ec.ModuleSearchDir())

	fmt.Fprintln(w)
	fmt.Fprintln(w, TitleStyle.Render("Build"))
	row(w, "manifest", st.Build.ManifestPath)
	row(w, "module", st.Artifact.ModuleName)
	row(w, "link target", st.Build.LinkTargetName)
	row(w, "search paths", strings.Join(st.Build.LibrarySearchPaths, ", "))
	row(w, "built path", st.Artifact.BuiltPath)
	row(w, "deploy path", st.Artifact.DeployedPath)

	fmt.Fprintln(w)
	fmt.Fprintln(w, TitleStyle.Render("Variables"))
	for _, name := range []string{native.InterpreterVar, native.LinkerFlagsVar} {
		fmt.Fprintln(w, "  "+name+"="+st.Build.Env.Get(name))
	}
	for _, name := range native.ClearVars {
		fmt.Fprintln(w, SubtitleStyle.Render("  unset "+name))
	}
}

func row(w io.Writer, label, value string) {
	fmt.Fprintln(w, labelStyle.Render("  "+label)+value)
}
