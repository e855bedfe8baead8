// Package config holds the debugger settings and loads them through viper.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"

	"github.com/willibrandon/ChronoJS/pkg/instrumentation"
	"github.com/willibrandon/ChronoJS/pkg/recorder"
	"github.com/willibrandon/ChronoJS/pkg/value"
)

// Config keys.
const (
	KeyMaxSnapshots          = "max_snapshots"
	KeyLogLevel              = "log_level"
	KeyMaxDepth              = "serialization.max_depth"
	KeyMaxCollectionSize     = "serialization.max_collection_size"
	KeyMaxStringLength       = "serialization.max_string_length"
	KeyCaptureFunctionSource = "serialization.capture_function_source"
	KeyCaptureEnabled        = "capture.enabled"
	KeyCaptureInclude        = "capture.include"
	KeyCaptureExclude        = "capture.exclude"
	KeyRedactionEnabled      = "redaction.enabled"
	KeyRedactionPatterns     = "redaction.patterns"
	KeyRedactionReplacement  = "redaction.replacement"
	KeyArchivePath           = "archive.path"
	KeyArchiveCompression    = "archive.compression"
)

// EnvPrefix is the prefix of environment overrides, e.g.
// CHRONOJS_MAX_SNAPSHOTS or CHRONOJS_SERIALIZATION_MAX_DEPTH.
const EnvPrefix = "CHRONOJS"

const DefaultMaxSnapshots = 1000

var (
	ErrCapacity    = errors.New("max_snapshots must be positive")
	ErrMaxDepth    = errors.New("serialization.max_depth must not be negative")
	ErrLimits      = errors.New("serialization limits must not be negative")
	ErrLogLevel    = errors.New("unknown log level")
	ErrCompression = errors.New("unknown archive compression")
	ErrRedaction   = errors.New("invalid redaction pattern")
)

// ArchiveConfig controls where evicted snapshots are written. An empty path
// disables archiving.
type ArchiveConfig struct {
	Path        string `yaml:"path" mapstructure:"path"`
	Compression string `yaml:"compression" mapstructure:"compression"`
}

// Config is the complete debugger configuration.
type Config struct {
	MaxSnapshots  int                           `yaml:"max_snapshots" mapstructure:"max_snapshots"`
	LogLevel      string                        `yaml:"log_level" mapstructure:"log_level"`
	Serialization value.Config                  `yaml:"serialization" mapstructure:"serialization"`
	Capture       instrumentation.FilterOptions `yaml:"capture" mapstructure:"capture"`
	Redaction     recorder.RedactionOptions     `yaml:"redaction" mapstructure:"redaction"`
	Archive       ArchiveConfig                 `yaml:"archive" mapstructure:"archive"`
}

func Default() Config {
	return Config{
		MaxSnapshots:  DefaultMaxSnapshots,
		LogLevel:      "info",
		Serialization: value.DefaultConfig(),
		Capture:       instrumentation.DefaultFilterOptions(),
		Redaction:     recorder.DefaultRedactionOptions(),
		Archive:       ArchiveConfig{Compression: recorder.ZstdCompression.String()},
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.MaxSnapshots <= 0 {
		return fmt.Errorf("%w: %d", ErrCapacity, c.MaxSnapshots)
	}
	if c.Serialization.MaxDepth < 0 {
		return fmt.Errorf("%w: %d", ErrMaxDepth, c.Serialization.MaxDepth)
	}
	if c.Serialization.MaxCollectionSize < 0 || c.Serialization.MaxStringLength < 0 {
		return ErrLimits
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	if _, err := recorder.ParseCompression(c.Archive.Compression); err != nil {
		return fmt.Errorf("%w: %q", ErrCompression, c.Archive.Compression)
	}
	if _, err := recorder.NewRedactor(c.Redaction); err != nil {
		return fmt.Errorf("%w: %v", ErrRedaction, err)
	}
	return nil
}

// SlogLevel parses LogLevel.
func (c Config) SlogLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("%w: %q", ErrLogLevel, c.LogLevel)
	}
	return l, nil
}

// SetDefaults registers every default on v so environment variables and
// flags bound to these keys are picked up by Unmarshal.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault(KeyMaxSnapshots, d.MaxSnapshots)
	v.SetDefault(KeyLogLevel, d.LogLevel)
	v.SetDefault(KeyMaxDepth, d.Serialization.MaxDepth)
	v.SetDefault(KeyMaxCollectionSize, d.Serialization.MaxCollectionSize)
	v.SetDefault(KeyMaxStringLength, d.Serialization.MaxStringLength)
	v.SetDefault(KeyCaptureFunctionSource, d.Serialization.CaptureFunctionSource)
	v.SetDefault(KeyCaptureEnabled, d.Capture.Enabled)
	v.SetDefault(KeyCaptureInclude, d.Capture.Include)
	v.SetDefault(KeyCaptureExclude, d.Capture.Exclude)
	v.SetDefault(KeyRedactionEnabled, d.Redaction.Enabled)
	v.SetDefault(KeyRedactionPatterns, d.Redaction.Patterns)
	v.SetDefault(KeyRedactionReplacement, d.Redaction.Replacement)
	v.SetDefault(KeyArchivePath, d.Archive.Path)
	v.SetDefault(KeyArchiveCompression, d.Archive.Compression)
}

// New returns a viper instance with defaults and environment overrides
// configured. Config files are looked up by the caller.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load decodes and validates the configuration held by v.
func Load(v *viper.Viper) (Config, error) {
	cfg := Default()
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	// Comma-separated lists come from environment variables as one string.
	cfg.Capture.Include = splitList(cfg.Capture.Include)
	cfg.Capture.Exclude = splitList(cfg.Capture.Exclude)
	cfg.Redaction.Patterns = splitList(cfg.Redaction.Patterns)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ReadFile loads the named config file into v. A missing file is not an
// error.
func ReadFile(v *viper.Viper, name string, paths ...string) error {
	v.SetConfigName(name)
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func splitList(in []string) []string {
	out := []string{}
	for _, s := range in {
		out = append(out, instrumentation.SplitPatterns(s)...)
	}
	return out
}
