package client

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigWritesDefault(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "socialite", "config.toml")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, DefaultConfig(), cfg)
	assert.FileExists(t, path)

	// The written file loads back to the same values
	again, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestLoadConfigPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[api]
base_url = "https://social.example.com/api"

[realtime]
reconnect_delay_ms = 250
`), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "https://social.example.com/api", cfg.API.BaseURL)
	assert.Equal(t, 250*time.Millisecond, cfg.ReconnectDelay())
	assert.Equal(t, DefaultMaxReconnectAttempts, cfg.Realtime.MaxReconnectAttempts)
	assert.Equal(t, DefaultTypingIdle, cfg.TypingIdle())
	assert.True(t, cfg.Realtime.AutoReconnect)

	url, err := cfg.RealtimeURL()
	require.NoError(t, err)
	assert.Equal(t, "wss://social.example.com/socket", url)
}

func TestLoadConfigParseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[api]\nbase_url = \n"), 0644))

	_, err := LoadConfig(path)

	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, path, cfgErr.Path)
	assert.Equal(t, 2, cfgErr.LineNumber)
}

func TestLoadConfigValidation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[api]
base_url = "ftp://nope"
timeout_seconds = 0

[realtime]
url = "http://not-a-socket"
max_reconnect_attempts = -1
`), 0644))

	_, err := LoadConfig(path)

	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Zero(t, cfgErr.LineNumber)
	assert.Contains(t, cfgErr.Message, "api.base_url")
	assert.Contains(t, cfgErr.Message, "api.timeout_seconds")
	assert.Contains(t, cfgErr.Message, "realtime.url")
	assert.Contains(t, cfgErr.Message, "realtime.max_reconnect_attempts")
}

func TestResetConfigToDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[api]\ntimeout_seconds = 99\n"), 0644))

	require.NoError(t, ResetConfigToDefault(path, true))

	backups, err := filepath.Glob(path + ".backup-*")
	require.NoError(t, err)
	assert.Len(t, backups, 1)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 15, cfg.API.TimeoutSeconds)
}

func TestExtractLineNumber(t *testing.T) {
	assert.Equal(t, 12, extractLineNumber("toml: line 12 (last key \"x\"): expected value"))
	assert.Equal(t, 0, extractLineNumber("something else"))
}
