package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Load reads the configuration from path, falling back to defaults when the
// file does not exist. Environment variables prefixed VANTAGE_ override file
// values.
func Load(path string) (*Config, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, ".vantage", "vantage.json")
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetEnvPrefix("VANTAGE")
	v.AutomaticEnv()

	cfg := DefaultConfig()
	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := v.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	if key := os.Getenv("VANTAGE_API_KEY"); key != "" {
		cfg.Agent.APIKey = key
	}

	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		cfg.DataDir = filepath.Join(home, ".vantage")
	}
	applyDataDir(cfg)

	return cfg, nil
}

// applyDataDir fills path defaults relative to the data directory
func applyDataDir(cfg *Config) {
	if cfg.Logging.File == "" {
		cfg.Logging.File = filepath.Join(cfg.DataDir, "vantage.log")
	}
	if cfg.Memory.Path == "" {
		cfg.Memory.Path = filepath.Join(cfg.DataDir, "memory.db")
	}
	if cfg.Memory.WatchDir == "" {
		cfg.Memory.WatchDir = filepath.Join(cfg.DataDir, "memory")
	}
}

// StorePath returns the path of the orchestration store database
func (c *Config) StorePath() string {
	return filepath.Join(c.DataDir, "vantage.db")
}
