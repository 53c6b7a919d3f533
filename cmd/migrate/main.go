package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"go.uber.org/zap"

	"github.com/davidleathers/vintage-vault-backend/internal/infrastructure/config"
	"github.com/davidleathers/vintage-vault-backend/internal/infrastructure/database"
	"github.com/davidleathers/vintage-vault-backend/internal/infrastructure/telemetry"
)

// schema is the part of database.Migrator the command drives
type schema interface {
	Up(steps int) error
	Down(steps int) error
	Version() (uint, bool, error)
}

func main() {
	var (
		action     = flag.String("action", "up", "Migration action: up, down, status")
		steps      = flag.Int("steps", 0, "Number of migrations to apply or revert (0 = all)")
		configPath = flag.String("config", config.DefaultPath, "Path to configuration file")
		dbURL      = flag.String("database-url", "", "Overrides database.url")
	)
	flag.Parse()

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *dbURL != "" {
		cfg.Database.URL = *dbURL
	}

	logger, err := telemetry.NewZapLogger(cfg.LogLevel, cfg.Environment)
	if err != nil {
		slog.Error("failed to create logger", "error", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	m, err := database.NewMigrator(cfg.Database.URL, logger)
	if err != nil {
		logger.Error("failed to prepare migrations", zap.Error(err))
		os.Exit(1)
	}
	defer m.Close()

	if err := runAction(m, *action, *steps, os.Stdout); err != nil {
		logger.Error("migration failed", zap.String("action", *action), zap.Error(err))
		os.Exit(1)
	}
}

func runAction(m schema, action string, steps int, out io.Writer) error {
	if steps < 0 {
		return fmt.Errorf("steps must not be negative")
	}

	switch action {
	case "up":
		if err := m.Up(steps); err != nil {
			return err
		}
	case "down":
		if steps == 0 {
			return fmt.Errorf("down requires -steps; reverting everything is not done implicitly")
		}
		if err := m.Down(steps); err != nil {
			return err
		}
	case "status":
	default:
		return fmt.Errorf("unknown action %q", action)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	state := "clean"
	if dirty {
		state = "dirty"
	}
	fmt.Fprintf(out, "schema version %d (%s)\n", version, state)
	return nil
}
