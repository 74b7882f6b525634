// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nativeship/nativeship/internal/config"
)

// newConfigCommand creates the `nativeship config` command tree.
func newConfigCommand(app *App, flags *globalFlags) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect nativeship configuration",
		Long: `Inspect nativeship configuration.

Configuration is read from ` + config.FileName() + ` at the project root, or from the
file named by --config. ` + config.EnvPrefix + `_<SECTION>_<KEY> environment
variables override individual values.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration as CUE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := app.newSession(cmd.Context(), *flags)
			if err != nil {
				return err
			}
			source := s.cfgPath
			if source == "" {
				source = "defaults"
			}
			fmt.Fprintf(app.stdout, "// source: %s\n", source)
			fmt.Fprint(app.stdout, config.GenerateCUE(s.cfg))
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the project root and the configuration file in use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := app.newSession(cmd.Context(), *flags)
			if err != nil {
				return err
			}
			fmt.Fprintln(app.stdout, labelStyle.Render("root")+s.root+SubtitleStyle.Render(" ("+s.rootSource.String()+")"))
			path := s.cfgPath
			if path == "" {
				path = "(none, defaults apply)"
			}
			fmt.Fprintln(app.stdout, labelStyle.Render("config")+path)
			return nil
		},
	})

	return cfgCmd
}
