package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("LT_CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("LT_USERNAME", "alice")
	t.Setenv("LT_ACCESS_KEY", "secret")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, DefaultGridURL, cfg.GridURL)
	assert.Equal(t, DefaultAPIURL, cfg.APIURL)
	assert.Equal(t, "9398", cfg.ApiPort)
	assert.Equal(t, 90, cfg.PingIntervalSeconds)
	assert.False(t, cfg.Tunnel.Enabled)
}

func TestLoadConfig_MissingCredentials(t *testing.T) {
	t.Setenv("LT_CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("LT_USERNAME", "")
	t.Setenv("LT_ACCESS_KEY", "")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LT_USERNAME")
}

func TestLoadConfig_File(t *testing.T) {
	path := writeConfig(t, `
username: alice
access-key: secret
debug: true
ping-interval-seconds: 30
capabilities:
  build: nightly
  video: true
tunnel:
  enabled: true
  name: ci-tunnel
`)
	t.Setenv("LT_CONFIG_PATH", path)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "alice", cfg.Username)
	assert.Equal(t, "secret", cfg.AccessKey)
	assert.True(t, cfg.Debug)
	assert.Equal(t, 30, cfg.PingIntervalSeconds)
	assert.Equal(t, "nightly", cfg.Capabilities.Build)
	assert.True(t, cfg.Capabilities.Video)
	assert.True(t, cfg.Tunnel.Enabled)
	assert.Equal(t, "ci-tunnel", cfg.Tunnel.Name)
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
username: alice
access-key: secret
grid-url: https://hub.example.com/wd/hub
`)
	t.Setenv("LT_CONFIG_PATH", path)
	t.Setenv("LT_USERNAME", "bob")
	t.Setenv("LT_GRID_URL", "https://other.example.com/wd/hub")
	t.Setenv("LT_TUNNEL", "true")
	t.Setenv("LT_PING_INTERVAL", "15")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "bob", cfg.Username)
	assert.Equal(t, "secret", cfg.AccessKey)
	assert.Equal(t, "https://other.example.com/wd/hub", cfg.GridURL)
	assert.True(t, cfg.Tunnel.Enabled)
	assert.Equal(t, 15, cfg.PingIntervalSeconds)
}

func TestLoadConfig_BadFile(t *testing.T) {
	path := writeConfig(t, "username: [broken")
	t.Setenv("LT_CONFIG_PATH", path)

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestLoadConfig_IgnoresInvalidEnvValues(t *testing.T) {
	t.Setenv("LT_CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("LT_USERNAME", "alice")
	t.Setenv("LT_ACCESS_KEY", "secret")
	t.Setenv("LT_TUNNEL", "not-a-bool")
	t.Setenv("LT_PING_INTERVAL", "not-a-number")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.False(t, cfg.Tunnel.Enabled)
	assert.Equal(t, 90, cfg.PingIntervalSeconds)
}
