// Package config loads the settings of the merger command from an optional
// YAML file, the environment and defaults. Command line flags are applied on
// top by the command itself.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"dario.cat/mergo"
	syaml "sigs.k8s.io/yaml"
)

// DefaultFile is looked up in the working directory when no configuration
// file is given explicitly.
const DefaultFile = ".merger.yaml"

// EnvPrefix prefixes every environment override, as in MERGER_LOG_LEVEL.
const EnvPrefix = "MERGER_"

// Color modes for diffs.
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

// Default values for configuration fields.
const (
	DefaultIndent        = 2
	DefaultKeyOrder      = "keep"
	DefaultLogLevel      = "warn"
	DefaultLogFormat     = "text"
	DefaultColor         = ColorAuto
	DefaultDiffContext   = 3
	DefaultWatchDebounce = 100 * time.Millisecond
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Duration is a time.Duration read from strings such as "250ms".
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		var ns int64
		if err2 := json.Unmarshal(b, &ns); err2 != nil {
			return fmt.Errorf("duration must be a string like \"100ms\": %w", err)
		}
		*d = Duration(ns)
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Config holds the merger settings.
type Config struct {
	// Indent is the number of spaces per nesting level of the output.
	Indent int `json:"indent,omitempty"`

	// Output is the file the merged document is written to; empty means stdout.
	Output string `json:"output,omitempty"`

	// Set lists "path=value" overrides applied after all documents.
	Set []string `json:"set,omitempty"`

	// KeyOrder is "keep" (overridden keys stay in place) or "move"
	// (overridden keys move to the end).
	KeyOrder string `json:"keyOrder,omitempty"`

	// Concurrency bounds parallel reading and parsing; 0 means GOMAXPROCS.
	Concurrency int `json:"concurrency,omitempty"`

	Logging LoggingConfig `json:"logging,omitempty"`
	Diff    DiffConfig    `json:"diff,omitempty"`
	Watch   WatchConfig   `json:"watch,omitempty"`
}

type LoggingConfig struct {
	Level  string `json:"level,omitempty"`
	Format string `json:"format,omitempty"`
}

type DiffConfig struct {
	// Color is one of "auto", "always" or "never".
	Color string `json:"color,omitempty"`
	// Context is the number of unchanged lines around each change. It is a
	// pointer so that an explicit 0 is not replaced by the default.
	Context *int `json:"context,omitempty"`
}

// ContextLines returns Context, or DefaultDiffContext when it is unset.
func (d DiffConfig) ContextLines() int {
	if d.Context == nil {
		return DefaultDiffContext
	}
	return *d.Context
}

type WatchConfig struct {
	Debounce Duration `json:"debounce,omitempty"`
}

// Defaults returns the configuration used when nothing else is set.
func Defaults() Config {
	return Config{
		Indent:   DefaultIndent,
		KeyOrder: DefaultKeyOrder,
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Diff: DiffConfig{
			Color:   DefaultColor,
			Context: intPtr(DefaultDiffContext),
		},
		Watch: WatchConfig{
			Debounce: Duration(DefaultWatchDebounce),
		},
	}
}

func intPtr(i int) *int { return &i }

// Parse decodes a configuration document. Unknown fields are rejected.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := syaml.UnmarshalStrict(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load reads the configuration file at path, applies defaults and
// environment overrides, and validates the result. With an empty path the
// DefaultFile is used when it exists; a missing default file is not an
// error.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}

	cfg := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		cfg, err = Parse(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
		}
	case explicit || !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	if err := ApplyDefaults(cfg); err != nil {
		return nil, err
	}
	envErrs := applyEnvOverrides(cfg)

	if err := validate(cfg, envErrs); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills every zero field of cfg from Defaults. Pointer fields
// count as set as soon as they are non-nil, even when they point to zero.
func ApplyDefaults(cfg *Config) error {
	defaults := Defaults()
	if err := mergo.Merge(cfg, defaults, mergo.WithoutDereference); err != nil {
		return fmt.Errorf("applying configuration defaults: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables use the format MERGER_SECTION_FIELD. Values that
// cannot be parsed are returned as field errors.
func applyEnvOverrides(cfg *Config) []FieldError {
	var errs []FieldError
	envInt := func(name string, set func(int)) {
		val := os.Getenv(EnvPrefix + name)
		if val == "" {
			return
		}
		i, err := strconv.Atoi(val)
		if err != nil {
			errs = append(errs, FieldError{Field: EnvPrefix + name, Message: fmt.Sprintf("expected an integer, got %q", val)})
			return
		}
		set(i)
	}

	envInt("INDENT", func(i int) { cfg.Indent = i })
	if val := os.Getenv(EnvPrefix + "OUTPUT"); val != "" {
		cfg.Output = val
	}
	if val := os.Getenv(EnvPrefix + "KEY_ORDER"); val != "" {
		cfg.KeyOrder = val
	}
	envInt("CONCURRENCY", func(i int) { cfg.Concurrency = i })
	if val := os.Getenv(EnvPrefix + "LOG_LEVEL"); val != "" {
		cfg.Logging.Level = val
	}
	if val := os.Getenv(EnvPrefix + "LOG_FORMAT"); val != "" {
		cfg.Logging.Format = val
	}
	if val := os.Getenv(EnvPrefix + "DIFF_COLOR"); val != "" {
		cfg.Diff.Color = val
	}
	envInt("DIFF_CONTEXT", func(i int) { cfg.Diff.Context = intPtr(i) })
	if val := os.Getenv(EnvPrefix + "WATCH_DEBOUNCE"); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			errs = append(errs, FieldError{Field: EnvPrefix + "WATCH_DEBOUNCE", Message: fmt.Sprintf("expected a duration, got %q", val)})
		} else {
			cfg.Watch.Debounce = Duration(d)
		}
	}
	return errs
}

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError collects every invalid field of a configuration.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}
	msgs := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		msgs[i] = fe.Error()
	}
	return fmt.Sprintf("configuration validation failed with %d errors: %s", len(e.Errors), strings.Join(msgs, "; "))
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidConfig }

// Validate checks cfg and returns a *ValidationError listing every problem.
func Validate(cfg *Config) error {
	return validate(cfg, nil)
}

func validate(cfg *Config, errs []FieldError) error {
	if cfg.Indent < 1 || cfg.Indent > 9 {
		errs = append(errs, FieldError{Field: "indent", Message: fmt.Sprintf("must be between 1 and 9, got %d", cfg.Indent)})
	}
	switch strings.ToLower(cfg.KeyOrder) {
	case "keep", "move":
	default:
		errs = append(errs, FieldError{Field: "keyOrder", Message: fmt.Sprintf("must be keep or move, got %q", cfg.KeyOrder)})
	}
	if cfg.Concurrency < 0 {
		errs = append(errs, FieldError{Field: "concurrency", Message: "must not be negative"})
	}
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, FieldError{Field: "logging.level", Message: fmt.Sprintf("unknown level %q", cfg.Logging.Level)})
	}
	switch strings.ToLower(cfg.Logging.Format) {
	case "text", "json":
	default:
		errs = append(errs, FieldError{Field: "logging.format", Message: fmt.Sprintf("unknown format %q", cfg.Logging.Format)})
	}
	switch cfg.Diff.Color {
	case ColorAuto, ColorAlways, ColorNever:
	default:
		errs = append(errs, FieldError{Field: "diff.color", Message: fmt.Sprintf("must be auto, always or never, got %q", cfg.Diff.Color)})
	}
	if cfg.Diff.ContextLines() < 0 {
		errs = append(errs, FieldError{Field: "diff.context", Message: "must not be negative"})
	}
	if cfg.Watch.Debounce < 0 {
		errs = append(errs, FieldError{Field: "watch.debounce", Message: "must not be negative"})
	}
	for i, s := range cfg.Set {
		if !strings.Contains(s, "=") {
			errs = append(errs, FieldError{Field: fmt.Sprintf("set[%d]", i), Message: fmt.Sprintf("expected path=value, got %q", s)})
		}
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}
