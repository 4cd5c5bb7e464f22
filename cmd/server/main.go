// Mensura - Sensor Telemetry Ingestion and Decoding
// Copyright 2026 Mensura contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mensura/mensura

// Package main is the entry point for the Mensura ingestion server.
//
// Mensura accepts heterogeneous sensor telemetry (JSON, CSV, compact binary
// frames, luftdaten.info and hackAIR pushes) from untrusted devices,
// normalizes it into canonical measurements, validates geospatial and
// temporal fields, and persists it with time-ordered device location
// reconciliation.
//
// # Startup order
//
//  1. Configuration: Koanf v2 layered sources (env > config.yaml > defaults)
//  2. Logging: global zerolog logger
//  3. Database: SQLite store, schema migration, optional device seed
//  4. HTTP server: chi router under a suture supervisor
//
// # Configuration
//
// Commonly used environment variables:
//
//	HTTP_PORT       listen port (default 8000)
//	DB_PATH         SQLite database path (default /data/mensura.db)
//	DB_SEED_FILE    optional JSON device fixture applied at startup
//	TRUSTED_TOKENS  comma-separated tokens for trusted service channels
//	LOG_LEVEL       trace|debug|info|warn|error (default info)
//	LOG_FORMAT      json|console (default json)
//
// # Signal handling
//
// SIGINT and SIGTERM trigger graceful shutdown: the listener stops accepting
// connections, in-flight requests get the configured shutdown timeout, then
// the database is closed.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/mensura/mensura/internal/api"
	"github.com/mensura/mensura/internal/config"
	"github.com/mensura/mensura/internal/database"
	"github.com/mensura/mensura/internal/ingest"
	"github.com/mensura/mensura/internal/logging"
	"github.com/mensura/mensura/internal/supervisor"
	"github.com/mensura/mensura/internal/supervisor/services"
)

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("Server exited with error")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.Database.SeedFile != "" {
		if err := db.SeedDevices(ctx, cfg.Database.SeedFile); err != nil {
			return err
		}
	}

	handler := api.NewHandler(ingest.NewService(db), db, cfg)
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      api.NewRouter(handler, cfg),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	tree := supervisor.NewTree(slog.New(logging.NewSlogHandler()), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	tree.Add(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	logging.Info().Str("addr", cfg.Server.Addr()).Msg("Server starting")

	err = tree.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logging.Info().Msg("Server stopped")
	return nil
}
