package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/tdnguyen/parley/pkg/datastore"
	"github.com/tdnguyen/parley/pkg/logging"
	"github.com/tdnguyen/parley/pkg/server"
	"github.com/tdnguyen/parley/pkg/version"
)

func main() {
	configFile := flag.String("config", "", "YAML config file")
	listen := flag.String("listen", "", "TCP bind address (overrides config)")
	dbPath := flag.String("db", "", "SQLite database file path (overrides config)")
	metricsAddr := flag.String("metrics", "", "HTTP bind address for /metrics (overrides config)")
	maxSessions := flag.Int("max-sessions", 0, "simultaneous session cap (overrides config)")

	logLevel := flag.String("log-level", "info", "Log level: "+logging.LevelNames())
	logFormat := flag.String("log-format", "text", "Log format: text or json")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("parley " + version.Full())
		return
	}

	if err := logging.Setup(logging.Options{
		Level:  *logLevel,
		Format: *logFormat,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "invalid logging config: %v\n", err)
		os.Exit(1)
	}

	// Resolution order: defaults, config file, environment, flags.
	cfg := server.DefaultConfig()
	if *configFile != "" {
		if err := cfg.LoadFile(*configFile); err != nil {
			slog.Error("load config", "err", err)
			os.Exit(1)
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		slog.Error("apply env config", "err", err)
		os.Exit(1)
	}
	if *listen != "" {
		cfg.ListenAddr = *listen
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}
	if *maxSessions > 0 {
		cfg.MaxSessions = *maxSessions
	}

	st, err := datastore.New(cfg.DBPath)
	if err != nil {
		slog.Error("open database", "err", err)
		os.Exit(1)
	}

	srv := server.New(cfg, server.Dependencies{Store: st})
	if err := srv.Run(); err != nil {
		slog.Error("server error", "err", err)
		os.Exit(1)
	}
}
