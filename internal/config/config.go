// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nativeship/nativeship/internal/issue"
	"github.com/nativeship/nativeship/pkg/cueutil"

	"github.com/spf13/viper"
)

const (
	// AppName is the application name.
	AppName = "nativeship"
	// ConfigFileName is the name of the project config file (without extension).
	ConfigFileName = "nativeship"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// EnvPrefix prefixes environment variable overrides (NATIVESHIP_LAUNCH_DIR, ...).
	EnvPrefix = "NATIVESHIP"
	// MaxFileSize bounds the config file read into memory.
	MaxFileSize = 1 << 20
)

//go:embed config_schema.cue
var configSchema string

// FileName returns the project config filename ("nativeship.cue").
func FileName() string {
	return ConfigFileName + "." + ConfigFileExt
}

// loadWithOptions performs option-driven config loading. It returns the
// loaded config and the path of the file it came from ("" for defaults only).
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	resolvedPath := ""
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Omit --config to use " + FileName() + " from the project root").
				WithGuide(issue.ConfigLoadFailedID).
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		resolvedPath = opts.ConfigFilePath
	} else if opts.ProjectRoot != "" {
		candidate := filepath.Join(opts.ProjectRoot, FileName())
		if fileExists(candidate) {
			resolvedPath = candidate
		}
		// No config file: defaults apply.
	}

	if resolvedPath != "" {
		if err := loadCUEIntoViper(v, resolvedPath); err != nil {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(resolvedPath).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Verify the configuration values match the expected schema").
				WithGuide(issue.ConfigLoadFailedID).
				Wrap(err).
				BuildError()
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(resolvedPath).
			WithSuggestion("Check " + EnvPrefix + "_* environment overrides").
			WithGuide(issue.ConfigLoadFailedID).
			Wrap(err).
			BuildError()
	}

	return &cfg, resolvedPath, nil
}

// setDefaults registers every configuration key with Viper. Registration is
// also what makes AutomaticEnv overrides visible to Unmarshal.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("environment.descriptor", d.Environment.Descriptor)
	v.SetDefault("environment.interpreter", d.Environment.Interpreter)
	v.SetDefault("native.manifest", d.Native.Manifest)
	v.SetDefault("native.tool", d.Native.Tool)
	v.SetDefault("native.profile", d.Native.Profile)
	v.SetDefault("native.runtime_name", d.Native.RuntimeName)
	v.SetDefault("native.interpreter_var", d.Native.InterpreterVar)
	v.SetDefault("native.linker_flags_var", d.Native.LinkerFlagsVar)
	v.SetDefault("native.clear_vars", d.Native.ClearVars)
	v.SetDefault("clean.cache_dir_name", d.Clean.CacheDirName)
	v.SetDefault("launch.enabled", d.Launch.Enabled)
	v.SetDefault("launch.dir", d.Launch.Dir)
	v.SetDefault("launch.command", d.Launch.Command)
	v.SetDefault("launch.pty", d.Launch.PTY)
	v.SetDefault("launch.grace_period", d.Launch.GracePeriod.String())
	v.SetDefault("watch.patterns", d.Watch.Patterns)
	v.SetDefault("watch.ignore", d.Watch.Ignore)
	v.SetDefault("watch.debounce", d.Watch.Debounce.String())
	v.SetDefault("log.level", string(d.Log.Level))
}

// loadCUEIntoViper parses a CUE file, validates it against the #Config schema,
// and merges its contents into Viper.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := cueutil.CheckFileSize(data, MaxFileSize, path); err != nil {
		return err
	}

	unified, err := cueutil.Validate(configSchema, "#Config", data, path)
	if err != nil {
		return err
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return cueutil.FormatError(err, path)
	}

	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}

	return nil
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// GenerateCUE generates a CUE representation of the configuration
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// nativeship project configuration\n\n")

	sb.WriteString("environment: {\n")
	fmt.Fprintf(&sb, "\tdescriptor:  %q\n", cfg.Environment.Descriptor)
	fmt.Fprintf(&sb, "\tinterpreter: %q\n", cfg.Environment.Interpreter)
	sb.WriteString("}\n")

	sb.WriteString("\nnative: {\n")
	fmt.Fprintf(&sb, "\tmanifest:         %q\n", cfg.Native.Manifest)
	fmt.Fprintf(&sb, "\ttool:             %q\n", cfg.Native.Tool)
	fmt.Fprintf(&sb, "\tprofile:          %q\n", cfg.Native.Profile)
	fmt.Fprintf(&sb, "\truntime_name:     %q\n", cfg.Native.RuntimeName)
	fmt.Fprintf(&sb, "\tinterpreter_var:  %q\n", cfg.Native.InterpreterVar)
	fmt.Fprintf(&sb, "\tlinker_flags_var: %q\n", cfg.Native.LinkerFlagsVar)
	fmt.Fprintf(&sb, "\tclear_vars: %s\n", cueList(cfg.Native.ClearVars))
	sb.WriteString("}\n")

	sb.WriteString("\nclean: {\n")
	fmt.Fprintf(&sb, "\tcache_dir_name: %q\n", cfg.Clean.CacheDirName)
	sb.WriteString("}\n")

	sb.WriteString("\nlaunch: {\n")
	fmt.Fprintf(&sb, "\tenabled:      %v\n", cfg.Launch.Enabled)
	fmt.Fprintf(&sb, "\tdir:          %q\n", cfg.Launch.Dir)
	fmt.Fprintf(&sb, "\tcommand:      %s\n", cueList(cfg.Launch.Command))
	fmt.Fprintf(&sb, "\tpty:          %v\n", cfg.Launch.PTY)
	fmt.Fprintf(&sb, "\tgrace_period: %q\n", cfg.Launch.GracePeriod.String())
	sb.WriteString("}\n")

	sb.WriteString("\nwatch: {\n")
	fmt.Fprintf(&sb, "\tpatterns: %s\n", cueList(cfg.Watch.Patterns))
	fmt.Fprintf(&sb, "\tignore:   %s\n", cueList(cfg.Watch.Ignore))
	fmt.Fprintf(&sb, "\tdebounce: %q\n", cfg.Watch.Debounce.String())
	sb.WriteString("}\n")

	sb.WriteString("\nlog: {\n")
	fmt.Fprintf(&sb, "\tlevel: %q\n", cfg.Log.Level)
	sb.WriteString("}\n")

	return sb.String()
}

func cueList(items []string) string {
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = fmt.Sprintf("%q", item)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
