// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/nativeship/nativeship/internal/pipeline"
)

// runPipeline runs every stage from reset to launch and prints a summary of
// the deployment.
func runPipeline(ctx context.Context, app *App, flags globalFlags) error {
	s, err := app.newSession(ctx, flags)
	if err != nil {
		return err
	}

	launch := s.cfg.Launch.Enabled && !flags.noLaunch
	st, res, err := s.run(ctx, pipeline.Full(s.deps, launch))
	if err != nil || !res.Code.IsSuccess() {
		return app.failure(res, err, flags.verbose)
	}

	out := app.stdout
	printDeployment(out, st)
	if len(res.Warnings) > 0 {
		fmt.Fprintln(out, WarningStyle.Render(fmt.Sprintf("! %d best-effort step(s) failed; see log", len(res.Warnings))))
	}
	if launch && !st.AppExitCode.IsSuccess() {
		fmt.Fprintln(out, WarningStyle.Render(fmt.Sprintf("! application exited with status %d", st.AppExitCode)))
	}
	return nil
}

func printDeployment(w io.Writer, st *pipeline.State) {
	if st.Deployment == nil {
		fmt.Fprintln(w, WarningStyle.Render("! "+st.Artifact.ModuleName+" was not deployed; see log"))
		return
	}
	fmt.Fprintln(w, SuccessStyle.Render("✓ ")+"deployed "+st.Artifact.ModuleName+" to "+PathStyle.Render(st.Deployment.Path))
	fmt.Fprintln(w, labelStyle.Render("  sha256")+st.Deployment.SHA256)
}
