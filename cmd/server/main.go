// Package main is the entry point for the EduLearn AI portal server.
//
// The main package stays minimal. Its job is to:
//  1. Read configuration (environment, optionally a YAML file)
//  2. Create the logger
//  3. Build and start the server
//
// All actual logic lives in internal/.
//
// WHY cmd/server/?
// The cmd/ directory is the Go convention for executable entry points; each
// binary gets its own directory with its own main.go.
package main

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/edulearn/portal/internal/config"
	"github.com/edulearn/portal/internal/server"
)

func main() {
	// === 1. READ CONFIGURATION ===
	// Invalid configuration is fatal: the portal would rather not start than
	// start with a short session secret or, in production, an open /setup.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 2. SET UP LOGGING ===
	// Text logs to stdout; LOG_LEVEL decides how chatty they are.
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	// Config implements slog.LogValuer, so secrets never reach the log.
	logger.Info("configuration loaded", slog.Any("config", *cfg))

	if !cfg.SetupEnabled() {
		logger.Warn("SETUP_SECRET or ADMIN_BOOTSTRAP_PASSWORD not set, /setup is disabled")
	}
	if cfg.AI.APIKey == "" {
		logger.Warn("AI_API_KEY not set, the study assistant will fail upstream")
	}

	// === 3. DATABASE DIRECTORY ===
	// os.MkdirAll is a no-op when the directory already exists.
	dbDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		logger.Error("failed to create database directory",
			slog.String("dir", dbDir),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	// === 4. CREATE AND START THE SERVER ===
	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start() blocks until the server is shut down (Ctrl+C or SIGTERM).
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
