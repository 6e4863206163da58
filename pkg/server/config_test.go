package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfigLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "parley.yaml")
	data := []byte("listen_addr: \":7000\"\nmax_sessions: 8\nrequest_ttl: 90s\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg := DefaultConfig()
	if err := cfg.LoadFile(path); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if cfg.ListenAddr != ":7000" || cfg.MaxSessions != 8 || cfg.RequestTTL != 90*time.Second {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	// Untouched keys keep their defaults.
	if cfg.DBPath != "parley.db" || cfg.MaxFrameSize != 4096 {
		t.Fatalf("defaults clobbered: %+v", cfg)
	}
}

func TestConfigApplyEnv(t *testing.T) {
	t.Setenv("PARLEY_LISTEN_ADDR", ":7100")
	t.Setenv("PARLEY_IDLE_TIMEOUT", "90s")

	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if cfg.ListenAddr != ":7100" || cfg.IdleTimeout != 90*time.Second {
		t.Fatalf("env values not applied: %+v", cfg)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	bad := []func(*Config){
		func(c *Config) { c.ListenAddr = "" },
		func(c *Config) { c.MaxSessions = 0 },
		func(c *Config) { c.MaxFrameSize = 32 },
		func(c *Config) { c.RequestTTL = 0 },
		func(c *Config) { c.SweepInterval = 0 },
	}
	for i, mutate := range bad {
		cfg := DefaultConfig()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("case %d: invalid config accepted: %+v", i, cfg)
		}
	}
}
