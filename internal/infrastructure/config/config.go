package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
	Shell     ShellConfig
	Sandbox   SandboxConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8080"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"20"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"40"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// ShellConfig holds terminal session configuration.
type ShellConfig struct {
	// AutoSandbox boots the sandbox when a terminal connects.
	AutoSandbox bool `envconfig:"SHELL_SANDBOX_AUTO" default:"false"`
	HistorySize int  `envconfig:"SHELL_HISTORY_SIZE" default:"100"`
	// HistoryDir persists history on disk. Empty keeps it in memory.
	HistoryDir string `envconfig:"SHELL_HISTORY_DIR"`
	User       string `envconfig:"SHELL_USER" default:"guest"`
	Host       string `envconfig:"SHELL_HOST" default:"devshell"`
}

// SandboxConfig holds sandboxed runtime configuration.
type SandboxConfig struct {
	// Root is the parent of per-session workspaces. Empty means the OS temp dir.
	Root             string        `envconfig:"SANDBOX_ROOT"`
	URLHost          string        `envconfig:"SANDBOX_URL_HOST" default:"localhost"`
	PortPollInterval time.Duration `envconfig:"SANDBOX_PORT_POLL" default:"500ms"`
	// Manifest names a project manifest whose files are mounted on boot.
	Manifest string `envconfig:"SANDBOX_MANIFEST"`
	// Consecutive boot failures before sandboxes are refused for BootCooldown.
	BootMaxFailures int           `envconfig:"SANDBOX_BOOT_MAX_FAILURES" default:"3"`
	BootCooldown    time.Duration `envconfig:"SANDBOX_BOOT_COOLDOWN" default:"30s"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8080",
			Host: "0.0.0.0",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 20,
			Burst:             40,
			Enabled:           true,
		},
		Shell: ShellConfig{
			HistorySize: 100,
			User:        "guest",
			Host:        "devshell",
		},
		Sandbox: SandboxConfig{
			URLHost:          "localhost",
			PortPollInterval: 500 * time.Millisecond,
			BootMaxFailures:  3,
			BootCooldown:     30 * time.Second,
		},
	}
}
