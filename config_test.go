package rhema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "/tmp/rhema.sock", cfg.SocketPath)
	assert.Equal(t, ".", cfg.DataDir)
	assert.Equal(t, "sqlite", cfg.StoreBackend)
	assert.Equal(t, 1000, cfg.MaxTraces)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
socket_path = "/run/rhema.sock"
store_backend = "bolt"
max_traces = 50
`), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/run/rhema.sock", cfg.SocketPath)
	assert.Equal(t, "bolt", cfg.StoreBackend)
	assert.Equal(t, 50, cfg.MaxTraces)
	// Unset keys keep their defaults.
	assert.Equal(t, ".", cfg.DataDir)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestLoadConfigEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().SocketPath, cfg.SocketPath)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("RHEMA_SOCK", "/tmp/override.sock")
	t.Setenv("RHEMA_STORE", "bolt")
	t.Setenv("RHEMA_MAX_TRACES", "7")
	t.Setenv("RHEMA_LOG_LEVEL", "debug")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/override.sock", cfg.SocketPath)
	assert.Equal(t, "bolt", cfg.StoreBackend)
	assert.Equal(t, 7, cfg.MaxTraces)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadConfigEnvBeatsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`socket_path = "/from/file.sock"`), 0644))
	t.Setenv("RHEMA_SOCK", "/from/env.sock")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/from/env.sock", cfg.SocketPath)
}
