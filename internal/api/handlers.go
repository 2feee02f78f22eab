// PACTA - Contract Lifecycle Administration
// Copyright 2026 PACTA Project Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pacta-project/pacta

package api

import (
	"context"

	"github.com/pacta-project/pacta/internal/backup"
	"github.com/pacta-project/pacta/internal/changelog"
	"github.com/pacta-project/pacta/internal/config"
	"github.com/pacta-project/pacta/internal/scheduler"
)

// Jobs is the scheduler surface the API drives.
type Jobs interface {
	TriggerManualBackup(ctx context.Context) error
	RescheduleDailyBackup(hour, minute int) error
	EnableDailyBackup(enabled bool)
	Schedule() (enabled bool, hour, minute int)
	JobStatuses() []scheduler.JobStatus
}

// Handler holds the backup subsystem components the endpoints call.
type Handler struct {
	store    *backup.Store
	creator  *backup.Creator
	restorer *backup.Restorer
	ledger   *changelog.Ledger
	jobs     Jobs
	cfg      config.BackupConfig
}

// NewHandler wires the endpoint handlers.
func NewHandler(store *backup.Store, creator *backup.Creator, restorer *backup.Restorer, ledger *changelog.Ledger, jobs Jobs, cfg config.BackupConfig) *Handler {
	return &Handler{
		store:    store,
		creator:  creator,
		restorer: restorer,
		ledger:   ledger,
		jobs:     jobs,
		cfg:      cfg,
	}
}
