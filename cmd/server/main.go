// PACTA - Contract Lifecycle Administration
// Copyright 2026 PACTA Project Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pacta-project/pacta

// Command server runs the PACTA backup service: the change ledger, the
// archive store, the job scheduler and the HTTP API, supervised under
// one process.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/pacta-project/pacta/internal/activity"
	"github.com/pacta-project/pacta/internal/api"
	"github.com/pacta-project/pacta/internal/backup"
	"github.com/pacta-project/pacta/internal/changelog"
	"github.com/pacta-project/pacta/internal/config"
	"github.com/pacta-project/pacta/internal/database"
	"github.com/pacta-project/pacta/internal/logging"
	"github.com/pacta-project/pacta/internal/scheduler"
	"github.com/pacta-project/pacta/internal/supervisor"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	logging.Info().
		Str("db_path", cfg.Database.Path).
		Str("backup_dir", cfg.Backup.Dir).
		Bool("schedule_enabled", cfg.Backup.ScheduleEnabled).
		Msg("Starting PACTA backup service")

	db, err := database.New(cfg.Database.Path)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()

	if err := os.MkdirAll(cfg.Database.UploadsDir, 0o755); err != nil {
		logging.Fatal().Err(err).Str("dir", cfg.Database.UploadsDir).Msg("Failed to create uploads directory")
	}

	store, err := backup.NewStore(cfg.Backup.Dir)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize archive store")
	}

	activityLog := activity.NewLog(db)
	ledger := changelog.NewLedger(db, nil)
	creator := backup.NewCreator(db, store, cfg.Database.UploadsDir, activityLog)
	restorer := backup.NewRestorer(db, store, creator, cfg.Database.UploadsDir, activityLog)

	sched, err := scheduler.New(ledger, creator, store, scheduler.Config{
		BackupEnabled: cfg.Backup.ScheduleEnabled,
		BackupHour:    cfg.Backup.ScheduleHour,
		BackupMinute:  cfg.Backup.ScheduleMinute,
		RetentionDays: cfg.Backup.RetentionDays,
		KeepMinimum:   cfg.Backup.KeepMinimum,
		PurgeDays:     cfg.Changelog.PurgeDays,
		StrictMarking: cfg.Changelog.StrictMarking,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create scheduler")
	}

	handler := api.NewHandler(store, creator, restorer, ledger, sched, cfg.Backup)
	router := api.NewRouter(handler, cfg.Server)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree := supervisor.New(supervisor.DefaultConfig())
	tree.Add(supervisor.NewSchedulerService(sched))
	tree.Add(supervisor.NewHTTPService(server, supervisor.DefaultConfig().ShutdownTimeout))

	errCh := tree.ServeBackground(ctx)
	logging.Info().Str("addr", server.Addr).Msg("HTTP server listening")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
		<-errCh
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor stopped with error")
		}
	}

	logging.Info().Msg("Shutdown complete")
}
