// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/nativeship/nativeship/internal/pipeline"
	"github.com/nativeship/nativeship/internal/watch"
)

func newWatchCommand(app *App, flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Rebuild and redeploy when native sources change",
		Long: `Run a full build and deployment, then watch the project root and run an
incremental rebuild whenever a file matching watch.patterns changes. The
application is not launched. A failed rebuild is reported and watching
continues; interrupt to stop.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, err := app.newSession(ctx, *flags)
			if err != nil {
				return err
			}

			st, res, err := s.run(ctx, pipeline.Full(s.deps, false))
			if err != nil || !res.Code.IsSuccess() {
				app.renderGuide(err, flags.verbose)
				s.logger.Error("initial build failed; waiting for changes", "stage", res.Stopped, "code", res.Code)
			} else {
				printDeployment(app.stdout, st)
			}

			w, err := watch.New(watch.Config{
				Root:     s.root,
				Patterns: s.cfg.Watch.Patterns,
				Ignore:   s.cfg.Watch.Ignore,
				Debounce: s.cfg.Watch.Debounce,
				Logger:   s.logger,
				OnChange: func(ctx context.Context, _ []string) error {
					st, res, err := s.run(ctx, pipeline.Rebuild(s.deps))
					if err != nil || !res.Code.IsSuccess() {
						app.renderGuide(err, flags.verbose)
						return &ExitError{Code: res.Code.Failure(), Err: err}
					}
					printDeployment(app.stdout, st)
					return nil
				},
			})
			if err != nil {
				return err
			}

			s.logger.Info("watching for source changes", "root", s.root, "patterns", s.cfg.Watch.Patterns)
			return w.Run(ctx)
		},
	}
}
