package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "chanpool.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, 4194304, cfg.MaxFrameSize)
	assert.Equal(t, 60*time.Second, cfg.IdleTimeout)
	assert.Equal(t, time.Second, cfg.ShutdownGrace)
	assert.Equal(t, 8, cfg.ShutdownConcurrency)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
max_frame_size: 1048576
idle_timeout: 30s
shutdown_grace: 250ms
shutdown_concurrency: 2
log:
  level: debug
  format: json
`)

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, 1048576, cfg.MaxFrameSize)
	assert.Equal(t, 30*time.Second, cfg.IdleTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.ShutdownGrace)
	assert.Equal(t, 2, cfg.ShutdownConcurrency)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "max_frame_size: 1048576\n")
	t.Setenv("CHANPOOL_MAX_FRAME_SIZE", "2048")
	t.Setenv("CHANPOOL_LOG_LEVEL", "warn")

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, 2048, cfg.MaxFrameSize)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadFlagsOverrideEnv(t *testing.T) {
	t.Setenv("CHANPOOL_SHUTDOWN_GRACE", "5s")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--shutdown-grace=100ms", "--log-format=json"}))

	cfg, err := Load("", fs)
	require.NoError(t, err)

	assert.Equal(t, 100*time.Millisecond, cfg.ShutdownGrace)
	assert.Equal(t, "json", cfg.Log.Format)
	// Unchanged flags do not shadow defaults
	assert.Equal(t, 4194304, cfg.MaxFrameSize)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"frame size":  "max_frame_size: 0\n",
		"grace":       "shutdown_grace: 0s\n",
		"concurrency": "shutdown_concurrency: 0\n",
		"idle":        "idle_timeout: -1s\n",
		"log level":   "log:\n  level: loud\n",
		"log format":  "log:\n  format: xml\n",
	}

	for name, content := range tests {
		_, err := Load(writeConfig(t, content), nil)
		assert.Error(t, err, name)
	}
}

func TestPoolOptions(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	logger := zerolog.Nop()
	opts := cfg.PoolOptions(&logger)

	assert.Equal(t, cfg.MaxFrameSize, opts.MaxFrameSize)
	assert.Equal(t, cfg.IdleTimeout, opts.IdleTimeout)
	assert.Equal(t, cfg.ShutdownGrace, opts.ShutdownGrace)
	assert.Equal(t, cfg.ShutdownConcurrency, opts.ShutdownConcurrency)
	assert.Same(t, &logger, opts.Logger)
}
