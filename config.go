package rhema

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
)

// Config holds daemon settings. Precedence, lowest to highest:
// defaults, config file, environment, flags.
type Config struct {
	SocketPath   string `toml:"socket_path"`
	DataDir      string `toml:"data_dir"`
	StoreBackend string `toml:"store_backend"`
	MaxTraces    int    `toml:"max_traces"`
	LogLevel     string `toml:"log_level"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		SocketPath:   "/tmp/rhema.sock",
		DataDir:      ".",
		StoreBackend: "sqlite",
		MaxTraces:    1000,
		LogLevel:     "info",
	}
}

// LoadConfig reads the config file at path (skipped when path is
// empty) over the defaults, then applies environment overrides.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("RHEMA_SOCK"); v != "" {
		c.SocketPath = v
	}
	if v := os.Getenv("RHEMA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("RHEMA_STORE"); v != "" {
		c.StoreBackend = v
	}
	if v := os.Getenv("RHEMA_MAX_TRACES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxTraces = n
		}
	}
	if v := os.Getenv("RHEMA_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

// DefaultConfigPath returns the user config file path if one exists,
// otherwise "".
func DefaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	path := filepath.Join(dir, "rhema", "config.toml")
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}
