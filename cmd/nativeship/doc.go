// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the CLI commands for nativeship.
//
// The root command runs the whole build and deploy pipeline. The env, clean
// and config subcommands expose parts of it: env derives and prints the build
// environment without changing anything on disk, clean runs the artifact
// cleaner alone, and config show prints the effective configuration.
package cmd
