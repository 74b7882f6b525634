// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/nativeship/nativeship/internal/config"
	"github.com/nativeship/nativeship/internal/project"
	"github.com/nativeship/nativeship/pkg/types"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// newRootCommand creates the command tree. The root command itself runs the
// full pipeline.
func newRootCommand(app *App) *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   config.AppName,
		Short: "Build, deploy and launch a native extension module",
		Long: TitleStyle.Render(config.AppName) + SubtitleStyle.Render(" - build, deploy and launch a native extension module") + `

nativeship rebuilds the project's Rust extension module against the
interpreter of its Python virtual environment, copies the result into
the environment's site-packages, and starts the dashboard that imports it.

` + SubtitleStyle.Render("Project root:") + `
  --root, then ` + project.EnvRoot + `, then the nearest directory above the
  nativeship executable that contains ` + config.FileName() + `.

` + SubtitleStyle.Render("Examples:") + `
  nativeship                 Build, deploy and launch
  nativeship --no-launch     Build and deploy only
  nativeship env             Show the derived build environment
  nativeship clean           Remove stale build artifacts
  nativeship watch           Rebuild and redeploy on source changes
  nativeship config show     Show the effective configuration`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPipeline(cmd.Context(), app, *flags)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.root, "root", "", "project root (default: "+project.EnvRoot+" or the executable's project)")
	pf.StringVar(&flags.configPath, "config", "", "config file (default is <root>/"+config.FileName()+")")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "enable debug logging and full error chains")
	pf.BoolVar(&flags.noLaunch, "no-launch", false, "skip launching the application")
	pf.BoolVarP(&flags.interactive, "interactive", "i", false, "run the application under a pseudo-terminal")

	rootCmd.AddCommand(newEnvCommand(app, flags))
	rootCmd.AddCommand(newCleanCommand(app, flags))
	rootCmd.AddCommand(newWatchCommand(app, flags))
	rootCmd.AddCommand(newConfigCommand(app, flags))

	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Main runs the CLI and returns the process exit code.
func Main() int {
	app := NewApp(Dependencies{})
	return exitCode(fang.Execute(
		context.Background(),
		newRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(printError),
	))
}

// Execute runs the CLI and exits the process. It is called by main.main().
func Execute() {
	os.Exit(Main())
}

// printError writes err on a single line so log scrapers and tests can match it.
func printError(w io.Writer, _ fang.Styles, err error) {
	fmt.Fprintln(w, ErrorStyle.Render("Error: ")+err.Error())
}

func exitCode(err error) int {
	if err == nil {
		return int(types.ExitSuccess)
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return int(exitErr.Code.Failure())
	}
	return int(types.ExitFailure)
}
