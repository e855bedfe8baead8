package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1000, cfg.MaxSnapshots)
	assert.Equal(t, 10, cfg.Serialization.MaxDepth)
	assert.Equal(t, 1000, cfg.Serialization.MaxStringLength)
	assert.True(t, cfg.Serialization.CaptureFunctionSource)
	assert.True(t, cfg.Capture.Enabled)
	assert.False(t, cfg.Redaction.Enabled)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"zero capacity", func(c *Config) { c.MaxSnapshots = 0 }, ErrCapacity},
		{"negative depth", func(c *Config) { c.Serialization.MaxDepth = -1 }, ErrMaxDepth},
		{"negative string limit", func(c *Config) { c.Serialization.MaxStringLength = -1 }, ErrLimits},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, ErrLogLevel},
		{"bad compression", func(c *Config) { c.Archive.Compression = "lz4" }, ErrCompression},
		{"bad redaction pattern", func(c *Config) {
			c.Redaction.Enabled = true
			c.Redaction.Patterns = []string{"("}
		}, ErrRedaction},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), tt.want)
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	yaml := `max_snapshots: 50
log_level: debug
serialization:
  max_depth: 3
capture:
  exclude: ["_..."]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "chronojs.yaml"), []byte(yaml), 0o644))

	v := New()
	require.NoError(t, ReadFile(v, "chronojs", dir))
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.MaxSnapshots)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 3, cfg.Serialization.MaxDepth)
	assert.Equal(t, 100, cfg.Serialization.MaxCollectionSize)
	assert.Equal(t, []string{"_..."}, cfg.Capture.Exclude)
	assert.True(t, cfg.Capture.Enabled)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	v := New()
	require.NoError(t, ReadFile(v, "chronojs", t.TempDir()))
	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("CHRONOJS_MAX_SNAPSHOTS", "7")
	t.Setenv("CHRONOJS_SERIALIZATION_MAX_DEPTH", "2")
	t.Setenv("CHRONOJS_CAPTURE_INCLUDE", "api..., get*")

	cfg, err := Load(New())
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.MaxSnapshots)
	assert.Equal(t, 2, cfg.Serialization.MaxDepth)
	assert.Equal(t, []string{"api...", "get*"}, cfg.Capture.Include)
}

func TestLoadRejectsInvalid(t *testing.T) {
	v := New()
	v.Set(KeyMaxSnapshots, -1)
	_, err := Load(v)
	assert.ErrorIs(t, err, ErrCapacity)
}
