// Package config defines the daemon configuration and its loader
package config

import (
	"fmt"
	"time"
)

// Config is the full vantage configuration
type Config struct {
	DataDir    string           `mapstructure:"data_dir" json:"data_dir"`
	Agent      AgentConfig      `mapstructure:"agent" json:"agent"`
	DataSource DataSourceConfig `mapstructure:"datasource" json:"datasource"`
	Memory     MemoryConfig     `mapstructure:"memory" json:"memory"`
	Logging    LoggingConfig    `mapstructure:"logging" json:"logging"`
	Retention  RetentionConfig  `mapstructure:"retention" json:"retention"`
	Retry      RetryConfig      `mapstructure:"retry" json:"retry"`
	Server     ServerConfig     `mapstructure:"server" json:"server"`
}

// AgentConfig selects the reasoning provider
type AgentConfig struct {
	Provider  string `mapstructure:"provider" json:"provider"` // anthropic or openai
	Model     string `mapstructure:"model" json:"model"`
	APIKey    string `mapstructure:"api_key" json:"api_key,omitempty"`
	MaxTokens int    `mapstructure:"max_tokens" json:"max_tokens"`
}

// DataSourceConfig points at the analytical database
type DataSourceConfig struct {
	Path    string `mapstructure:"path" json:"path"`
	MaxRows int    `mapstructure:"max_rows" json:"max_rows"`
}

// MemoryConfig configures the analysis memory
type MemoryConfig struct {
	Path     string `mapstructure:"path" json:"path"`
	WatchDir string `mapstructure:"watch_dir" json:"watch_dir"`
}

// LoggingConfig configures the logger
type LoggingConfig struct {
	Level     string `mapstructure:"level" json:"level"`
	File      string `mapstructure:"file" json:"file"`
	Console   bool   `mapstructure:"console" json:"console"`
	Pretty    bool   `mapstructure:"pretty" json:"pretty"`
	Redaction bool   `mapstructure:"redaction" json:"redaction"`
}

// RetentionConfig bounds how long terminal action states are kept
type RetentionConfig struct {
	MaxAgeDays int    `mapstructure:"max_age_days" json:"max_age_days"`
	Schedule   string `mapstructure:"schedule" json:"schedule"`
}

// RetryConfig bounds agent and query retries
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts" json:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay" json:"base_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay" json:"max_delay"`
}

// ServerConfig configures the progress/run HTTP server
type ServerConfig struct {
	Addr         string `mapstructure:"addr" json:"addr"`
	HistoryLimit int    `mapstructure:"history_limit" json:"history_limit"`
}

// DefaultConfig returns the configuration used when no file exists
func DefaultConfig() *Config {
	return &Config{
		Agent: AgentConfig{
			Provider:  "anthropic",
			Model:     "claude-sonnet-4-20250514",
			MaxTokens: 4096,
		},
		DataSource: DataSourceConfig{
			MaxRows: 10000,
		},
		Logging: LoggingConfig{
			Level:     "info",
			Console:   true,
			Pretty:    true,
			Redaction: true,
		},
		Retention: RetentionConfig{
			MaxAgeDays: 30,
			Schedule:   "@hourly",
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   time.Second,
			MaxDelay:    8 * time.Second,
		},
		Server: ServerConfig{
			Addr:         "127.0.0.1:8391",
			HistoryLimit: 20,
		},
	}
}

// Validate checks the configuration for values that cannot work
func (c *Config) Validate() error {
	switch c.Agent.Provider {
	case "anthropic", "openai":
	default:
		return fmt.Errorf("unknown agent provider %q", c.Agent.Provider)
	}
	if c.Agent.Model == "" {
		return fmt.Errorf("agent model is required")
	}
	if c.Agent.MaxTokens < 0 {
		return fmt.Errorf("agent max_tokens must not be negative")
	}
	if c.DataSource.Path == "" {
		return fmt.Errorf("datasource path is required")
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry max_attempts must be at least 1")
	}
	if c.Retention.MaxAgeDays < 1 {
		return fmt.Errorf("retention max_age_days must be at least 1")
	}
	return nil
}
