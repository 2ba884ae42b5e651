package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "saintjustus-shell", cfg.Shell.Header)
	assert.Equal(t, 32.0, cfg.Window.Gutter)
	assert.Equal(t, 480.0, cfg.Window.ActiveMinWidth)
	assert.Equal(t, 8*time.Second, cfg.Window.EmbedTimeout)
	assert.Equal(t, 16, cfg.Placement.RandomAttempts)
	assert.Equal(t, 90*time.Millisecond, cfg.Reveal.Step)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadMatchesDefault(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, Default().Window, cfg.Window)
	assert.Equal(t, Default().Placement, cfg.Placement)
	assert.Equal(t, Default().Shell.Bypass, cfg.Shell.Bypass)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"SHELL_HEADER":      "custom-shell",
		"SHELL_BYPASS":      "/downloads/**",
		"WINDOW_GUTTER":     "16",
		"EMBED_TIMEOUT":     "3s",
		"PLACEMENT_SEED":    "42",
		"FETCH_RETRY_COUNT": "0",
		"REVEAL_STEP":       "120ms",
		"LOG_LEVEL":         "debug",
		"LOG_DEV":           "true",
	}
	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "custom-shell", cfg.Shell.Header)
	assert.Equal(t, []string{"/downloads/**"}, cfg.Shell.Bypass)
	assert.Equal(t, 16.0, cfg.Window.Gutter)
	assert.Equal(t, 3*time.Second, cfg.Window.EmbedTimeout)
	assert.Equal(t, uint64(42), cfg.Placement.Seed)
	assert.Equal(t, 0, cfg.Fetch.RetryCount)
	assert.Equal(t, 120*time.Millisecond, cfg.Reveal.Step)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)
}

func TestLoadOrDefaultOnInvalidValue(t *testing.T) {
	t.Setenv("WINDOW_GUTTER", "wide")

	_, err := Load()
	assert.Error(t, err)

	cfg := LoadOrDefault()
	assert.Equal(t, 32.0, cfg.Window.Gutter)
}
