// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// LogLevelDebug enables subprocess command lines and derived values.
	LogLevelDebug LogLevel = "debug"
	// LogLevelInfo logs stage progress.
	LogLevelInfo LogLevel = "info"
	// LogLevelWarn logs best-effort failures only.
	LogLevelWarn LogLevel = "warn"
	// LogLevelError logs fatal failures only.
	LogLevelError LogLevel = "error"
)

var (
	// ErrInvalidLogLevel is returned when a LogLevel value is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// LogLevel is the minimum level written by the pipeline logger.
	LogLevel string

	// InvalidConfigError is returned when a Config has invalid fields.
	// It wraps ErrInvalidConfig for errors.Is() compatibility and collects
	// field-level validation errors from all sections.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the project configuration.
	Config struct {
		// Environment locates the interpreter environment to activate.
		Environment EnvironmentConfig `json:"environment" mapstructure:"environment"`
		// Native configures the native build tool and the derived build environment.
		Native NativeConfig `json:"native" mapstructure:"native"`
		// Clean configures the artifact cleaner.
		Clean CleanConfig `json:"clean" mapstructure:"clean"`
		// Launch configures the dependent application.
		Launch LaunchConfig `json:"launch" mapstructure:"launch"`
		// Watch configures the rebuild-on-change loop.
		Watch WatchConfig `json:"watch" mapstructure:"watch"`
		// Log configures the pipeline logger.
		Log LogConfig `json:"log" mapstructure:"log"`
	}

	// EnvironmentConfig locates the runtime environment.
	EnvironmentConfig struct {
		// Descriptor is the activation script, relative to the project root.
		Descriptor string `json:"descriptor" mapstructure:"descriptor"`
		// Interpreter is the executable name looked up on the activated PATH.
		Interpreter string `json:"interpreter" mapstructure:"interpreter"`
	}

	// NativeConfig configures the native build.
	NativeConfig struct {
		// Manifest is the native project's build manifest, relative to the project root.
		Manifest string `json:"manifest" mapstructure:"manifest"`
		// Tool is the native build tool executable.
		Tool string `json:"tool" mapstructure:"tool"`
		// Profile selects the optimized build profile.
		Profile string `json:"profile" mapstructure:"profile"`
		// RuntimeName prefixes the version tag to form the link target name.
		RuntimeName string `json:"runtime_name" mapstructure:"runtime_name"`
		// InterpreterVar receives the interpreter path for the build tool.
		InterpreterVar string `json:"interpreter_var" mapstructure:"interpreter_var"`
		// LinkerFlagsVar receives the derived linker flags.
		LinkerFlagsVar string `json:"linker_flags_var" mapstructure:"linker_flags_var"`
		// ClearVars are inherited variables removed before the build.
		ClearVars []string `json:"clear_vars" mapstructure:"clear_vars"`
	}

	// CleanConfig configures the artifact cleaner.
	CleanConfig struct {
		// CacheDirName is the bytecode cache directory name removed recursively.
		CacheDirName string `json:"cache_dir_name" mapstructure:"cache_dir_name"`
	}

	// LaunchConfig configures the application launcher.
	LaunchConfig struct {
		// Enabled runs the application after a successful deployment.
		Enabled bool `json:"enabled" mapstructure:"enabled"`
		// Dir is the application directory, relative to the project root.
		Dir string `json:"dir" mapstructure:"dir"`
		// Command is the application entry command.
		Command []string `json:"command" mapstructure:"command"`
		// PTY runs the application under a pseudo-terminal.
		PTY bool `json:"pty" mapstructure:"pty"`
		// GracePeriod is how long an interrupted application may take to exit
		// before it is killed.
		GracePeriod time.Duration `json:"grace_period" mapstructure:"grace_period"`
	}

	// WatchConfig configures `nativeship watch`.
	WatchConfig struct {
		Patterns []string      `json:"patterns" mapstructure:"patterns"`
		Ignore   []string      `json:"ignore" mapstructure:"ignore"`
		Debounce time.Duration `json:"debounce" mapstructure:"debounce"`
	}

	// LogConfig configures the logger.
	LogConfig struct {
		Level LogLevel `json:"level" mapstructure:"level"`
	}
)

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Environment: EnvironmentConfig{
			Descriptor:  ".venv/bin/activate",
			Interpreter: "python",
		},
		Native: NativeConfig{
			Manifest:       "src/rust_data_collector/Cargo.toml",
			Tool:           "cargo",
			Profile:        "release",
			RuntimeName:    "python",
			InterpreterVar: "PYO3_PYTHON",
			LinkerFlagsVar: "RUSTFLAGS",
			ClearVars:      []string{"CARGO_ENCODED_RUSTFLAGS", "LDFLAGS"},
		},
		Clean: CleanConfig{
			CacheDirName: "__pycache__",
		},
		Launch: LaunchConfig{
			Enabled:     true,
			Dir:         "src/python_ml_dashboard",
			Command:     []string{"streamlit", "run", "app.py"},
			GracePeriod: 10 * time.Second,
		},
		Watch: WatchConfig{
			Patterns: []string{"src/**/*.rs", "**/Cargo.toml", "**/Cargo.lock", "**/build.rs"},
			Debounce: 500 * time.Millisecond,
		},
		Log: LogConfig{
			Level: LogLevelInfo,
		},
	}
}

// IsValid returns whether the LogLevel is recognized.
func (l LogLevel) IsValid() (bool, []error) {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true, nil
	default:
		return false, []error{fmt.Errorf("%w: %q", ErrInvalidLogLevel, string(l))}
	}
}

// Validate checks constraints the schema cannot see, such as values that
// arrived through environment overrides.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Environment.Descriptor) == "" {
		errs = append(errs, errors.New("environment.descriptor must not be empty"))
	}
	if strings.TrimSpace(c.Environment.Interpreter) == "" {
		errs = append(errs, errors.New("environment.interpreter must not be empty"))
	}
	if strings.TrimSpace(c.Native.Manifest) == "" {
		errs = append(errs, errors.New("native.manifest must not be empty"))
	}
	if strings.TrimSpace(c.Native.Tool) == "" {
		errs = append(errs, errors.New("native.tool must not be empty"))
	}
	if c.Launch.Enabled && len(c.Launch.Command) == 0 {
		errs = append(errs, errors.New("launch.command must not be empty when launch is enabled"))
	}
	if c.Launch.GracePeriod < 0 {
		errs = append(errs, errors.New("launch.grace_period must not be negative"))
	}
	if c.Watch.Debounce < 0 {
		errs = append(errs, errors.New("watch.debounce must not be negative"))
	}
	if valid, fieldErrs := c.Log.Level.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if len(errs) > 0 {
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	return "invalid config: " + strings.Join(msgs, "; ")
}

// Unwrap returns ErrInvalidConfig for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }
