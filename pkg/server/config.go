package server

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config holds server configuration. Values resolve in order: defaults,
// YAML config file, PARLEY_* environment variables, command-line flags.
type Config struct {
	ListenAddr  string `yaml:"listen_addr" env:"PARLEY_LISTEN_ADDR"`   // TCP bind address (e.g. ":9700")
	MetricsAddr string `yaml:"metrics_addr" env:"PARLEY_METRICS_ADDR"` // HTTP bind address for /metrics (empty = disabled)
	DBPath      string `yaml:"db_path" env:"PARLEY_DB_PATH"`           // SQLite database path

	MaxSessions  int `yaml:"max_sessions" env:"PARLEY_MAX_SESSIONS"`     // simultaneous connection cap, enforced pre-auth
	MaxFrameSize int `yaml:"max_frame_size" env:"PARLEY_MAX_FRAME_SIZE"` // wire frame payload cap in bytes
	HistoryLimit int `yaml:"history_limit" env:"PARLEY_HISTORY_LIMIT"`   // rows replayed per history fetch

	AuthTimeout   time.Duration `yaml:"auth_timeout" env:"PARLEY_AUTH_TIMEOUT"`     // idle limit per auth-phase frame
	IdleTimeout   time.Duration `yaml:"idle_timeout" env:"PARLEY_IDLE_TIMEOUT"`     // idle limit per post-auth frame
	RequestTTL    time.Duration `yaml:"request_ttl" env:"PARLEY_REQUEST_TTL"`       // pending private-chat request time-to-live
	SweepInterval time.Duration `yaml:"sweep_interval" env:"PARLEY_SWEEP_INTERVAL"` // how often the sweeper scans the ledger
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ListenAddr:    ":9700",
		MetricsAddr:   ":9702",
		DBPath:        "parley.db",
		MaxSessions:   64,
		MaxFrameSize:  4096,
		HistoryLimit:  50,
		AuthTimeout:   30 * time.Second,
		IdleTimeout:   5 * time.Minute,
		RequestTTL:    2 * time.Minute,
		SweepInterval: 15 * time.Second,
	}
}

// LoadFile overlays settings from a YAML config file.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // path from user-provided CLI config
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// ApplyEnv overlays PARLEY_* environment variables.
func (c *Config) ApplyEnv() error {
	if err := env.Parse(c); err != nil {
		return fmt.Errorf("parse env config: %w", err)
	}
	return nil
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("config: listen_addr must not be empty")
	}
	if c.MaxSessions <= 0 {
		return fmt.Errorf("config: max_sessions must be positive")
	}
	if c.MaxFrameSize < 64 {
		return fmt.Errorf("config: max_frame_size must be at least 64 bytes")
	}
	if c.RequestTTL <= 0 || c.SweepInterval <= 0 {
		return fmt.Errorf("config: request_ttl and sweep_interval must be positive")
	}
	return nil
}
