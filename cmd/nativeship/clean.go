// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nativeship/nativeship/internal/pipeline"
)

func newCleanCommand(app *App, flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Remove stale build artifacts",
		Long: `Remove bytecode caches, run the build tool's clean step and delete stray
copies of the native module under the project root. Failures are reported
but never stop the remaining steps.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, err := app.newSession(ctx, *flags)
			if err != nil {
				return err
			}

			st, res, err := s.run(ctx, pipeline.CleanOnly(s.deps))
			if err != nil || !res.Code.IsSuccess() {
				return app.failure(res, err, flags.verbose)
			}

			report := st.CleanReport
			out := app.stdout
			for _, dir := range report.RemovedCacheDirs {
				fmt.Fprintln(out, "  removed "+PathStyle.Render(rel(st.Root, dir)+"/"))
			}
			for _, file := range report.RemovedFiles {
				fmt.Fprintln(out, "  removed "+PathStyle.Render(rel(st.Root, file)))
			}
			if report.ToolCleaned {
				fmt.Fprintln(out, "  ran "+PathStyle.Render(st.Config.Native.Tool+" clean"))
			}
			if len(report.Errors) > 0 {
				fmt.Fprintln(out, WarningStyle.Render(fmt.Sprintf("! %d clean step(s) failed; see log", len(report.Errors))))
				return nil
			}
			fmt.Fprintln(out, SuccessStyle.Render("✓ ")+"clean")
			return nil
		},
	}
}

func rel(root, path string) string {
	if r, err := filepath.Rel(root, path); err == nil {
		return filepath.ToSlash(r)
	}
	return path
}
