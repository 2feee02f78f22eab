// PACTA - Contract Lifecycle Administration
// Copyright 2026 PACTA Project Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pacta-project/pacta

// Package scheduler drives PACTA's time-based jobs: the daily backup,
// retention pruning and change-ledger compaction.
//
// One instance is constructed by the composition root and owns a single
// worker: at most one job (including manual triggers) runs at any time,
// so the archive store and the live database never see concurrent
// backup/restore activity.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pacta-project/pacta/internal/backup"
	"github.com/pacta-project/pacta/internal/changelog"
	"github.com/pacta-project/pacta/internal/logging"
	"github.com/pacta-project/pacta/internal/metrics"
)

// Job names.
const (
	JobDailyBackup    = "daily_backup"
	JobCleanupBackups = "cleanup_backups"
	JobCleanupChanges = "cleanup_changes"
)

// MisfireGrace is how late a job may fire and still run; a job later
// than this is skipped until its next scheduled time.
const MisfireGrace = 5 * time.Minute

// tickInterval is the driver's polling resolution.
const tickInterval = 15 * time.Second

// Config carries the scheduler's tunables.
type Config struct {
	// BackupEnabled controls the daily backup job.
	BackupEnabled bool
	// BackupHour/BackupMinute set the daily backup's local fire time.
	BackupHour   int
	BackupMinute int
	// RetentionDays/KeepMinimum are passed to the nightly prune.
	RetentionDays int
	KeepMinimum   int
	// PurgeDays is the ledger compaction window.
	PurgeDays int
	// StrictMarking scopes mark-processed to entries recorded before the
	// snapshot started.
	StrictMarking bool
}

// job is one scheduled unit of work.
type job struct {
	name    string
	cron    *Cron
	enabled bool
	run     func(ctx context.Context) (outcome string, err error)

	nextRun     time.Time
	lastRun     time.Time
	lastOutcome string
}

// JobStatus is the externally visible state of one job.
type JobStatus struct {
	Name        string    `json:"name"`
	Enabled     bool      `json:"enabled"`
	NextRun     time.Time `json:"next_run"`
	LastRun     time.Time `json:"last_run,omitempty"`
	LastOutcome string    `json:"last_outcome,omitempty"`
}

// Scheduler owns the job table and the single worker loop.
type Scheduler struct {
	ledger  *changelog.Ledger
	creator *backup.Creator
	store   *backup.Store
	cfg     Config

	mu   sync.Mutex
	jobs []*job

	// runMu serializes job bodies with manual triggers.
	runMu sync.Mutex

	stopCh  chan struct{}
	doneCh  chan struct{}
	started bool
}

// New builds a scheduler with the standard PACTA job table.
func New(ledger *changelog.Ledger, creator *backup.Creator, store *backup.Store, cfg Config) (*Scheduler, error) {
	s := &Scheduler{
		ledger:  ledger,
		creator: creator,
		store:   store,
		cfg:     cfg,
	}

	backupCron, err := ParseCron(fmt.Sprintf("%d %d * * *", cfg.BackupMinute, cfg.BackupHour))
	if err != nil {
		return nil, fmt.Errorf("invalid backup schedule: %w", err)
	}
	pruneCron, err := ParseCron("0 5 * * *")
	if err != nil {
		return nil, err
	}
	purgeCron, err := ParseCron("0 3 * * 0")
	if err != nil {
		return nil, err
	}

	s.jobs = []*job{
		{name: JobDailyBackup, cron: backupCron, enabled: cfg.BackupEnabled, run: s.runDailyBackup},
		{name: JobCleanupBackups, cron: pruneCron, enabled: true, run: s.runCleanupBackups},
		{name: JobCleanupChanges, cron: purgeCron, enabled: true, run: s.runCleanupChanges},
	}
	return s, nil
}

// Start launches the driver loop. It returns immediately; jobs fire on
// their cron schedules until Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already started")
	}
	s.started = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})

	now := time.Now()
	for _, j := range s.jobs {
		j.nextRun = j.cron.Next(now)
		logging.Info().
			Str("job", j.name).
			Bool("enabled", j.enabled).
			Time("next_run", j.nextRun).
			Msg("Scheduled job registered")
	}
	s.mu.Unlock()

	go s.loop(ctx)
	return nil
}

// Stop halts the driver and waits for any in-flight job to finish, so a
// process shutdown never leaves a half-written archive behind.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	close(s.stopCh)
	done := s.doneCh
	s.mu.Unlock()

	<-done
	logging.Info().Msg("Scheduler stopped")
}

// loop is the single worker: due jobs execute here, one at a time.
func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.fireDue(ctx, now)
		}
	}
}

// fireDue runs every due job, skipping those beyond the misfire grace.
func (s *Scheduler) fireDue(ctx context.Context, now time.Time) {
	for _, j := range s.dueJobs(now) {
		if now.Sub(j.dueAt) > MisfireGrace {
			logging.Warn().
				Str("job", j.j.name).
				Time("due", j.dueAt).
				Msg("Job missed its window, skipping until next schedule")
			metrics.ScheduledJobRuns.WithLabelValues(j.j.name, "skipped").Inc()
			s.finishJob(j.j, now, "missed window")
			continue
		}
		s.execute(ctx, j.j, now)
	}
}

type dueJob struct {
	j     *job
	dueAt time.Time
}

// dueJobs snapshots the due-job list under the lock.
func (s *Scheduler) dueJobs(now time.Time) []dueJob {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []dueJob
	for _, j := range s.jobs {
		if j.enabled && !j.nextRun.IsZero() && !now.Before(j.nextRun) {
			due = append(due, dueJob{j: j, dueAt: j.nextRun})
		}
	}
	return due
}

// execute runs one job body under the worker mutex.
func (s *Scheduler) execute(ctx context.Context, j *job, now time.Time) {
	s.runMu.Lock()
	outcome, err := j.run(ctx)
	s.runMu.Unlock()

	if err != nil {
		logging.Error().Err(err).Str("job", j.name).Msg("Scheduled job failed")
		metrics.ScheduledJobRuns.WithLabelValues(j.name, "failure").Inc()
		outcome = err.Error()
	} else {
		metrics.ScheduledJobRuns.WithLabelValues(j.name, outcome).Inc()
	}
	s.finishJob(j, now, outcome)
}

// finishJob records the run and arms the next trigger.
func (s *Scheduler) finishJob(j *job, now time.Time, outcome string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j.lastRun = now
	j.lastOutcome = outcome
	j.nextRun = j.cron.Next(now)
}

// runDailyBackup skips when the ledger reports nothing pending,
// otherwise snapshots with scheduled provenance and marks the ledger.
func (s *Scheduler) runDailyBackup(ctx context.Context) (string, error) {
	report, err := s.ledger.PendingChanges(ctx)
	if err != nil {
		return "", err
	}
	metrics.PendingChanges.Set(float64(report.TotalChanges))

	if !report.HasChanges {
		logging.Info().Msg("No pending changes, skipping scheduled backup")
		return "skipped", nil
	}

	if err := s.backupAndMark(ctx,
		fmt.Sprintf("Backup automático: %d cambios pendientes", report.TotalChanges)); err != nil {
		return "", err
	}
	return "success", nil
}

// backupAndMark creates a scheduled snapshot and flips the ledger only
// after the archive is durably written.
func (s *Scheduler) backupAndMark(ctx context.Context, reason string) error {
	snapshotStart := time.Now()

	if _, err := s.creator.Create(ctx, backup.ProvenanceScheduled, "", reason); err != nil {
		return err
	}

	var marked int64
	var err error
	if s.cfg.StrictMarking {
		marked, err = s.ledger.MarkProcessedBefore(ctx, snapshotStart)
	} else {
		marked, err = s.ledger.MarkAllProcessed(ctx)
	}
	if err != nil {
		// The archive exists; the ledger just was not flipped. The next
		// run will re-cover the same entries.
		logging.Warn().Err(err).Msg("Backup written but ledger marking failed")
		return nil
	}

	metrics.PendingChanges.Set(0)
	logging.Info().Int64("marked", marked).Msg("Ledger entries marked processed")
	return nil
}

func (s *Scheduler) runCleanupBackups(ctx context.Context) (string, error) {
	result, err := s.store.Prune(s.cfg.RetentionDays, s.cfg.KeepMinimum)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("deleted %d, kept %d", result.Deleted, result.Kept), nil
}

func (s *Scheduler) runCleanupChanges(ctx context.Context) (string, error) {
	deleted, err := s.ledger.PurgeProcessed(ctx, s.cfg.PurgeDays)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("purged %d", deleted), nil
}

// TriggerManualBackup forces the daily backup job immediately: the
// pending-change check is bypassed, and on success ledger entries are
// marked processed. Serialized with scheduled jobs.
func (s *Scheduler) TriggerManualBackup(ctx context.Context) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.backupAndMark(ctx, "Backup manual inmediato")
}

// RescheduleDailyBackup atomically replaces the daily backup trigger.
func (s *Scheduler) RescheduleDailyBackup(hour, minute int) error {
	if hour < 0 || hour > 23 {
		return fmt.Errorf("hour must be between 0 and 23, got %d", hour)
	}
	if minute < 0 || minute > 59 {
		return fmt.Errorf("minute must be between 0 and 59, got %d", minute)
	}

	cron, err := ParseCron(fmt.Sprintf("%d %d * * *", minute, hour))
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.BackupHour = hour
	s.cfg.BackupMinute = minute
	for _, j := range s.jobs {
		if j.name == JobDailyBackup {
			j.cron = cron
			if s.started {
				j.nextRun = cron.Next(time.Now())
			}
			logging.Info().
				Int("hour", hour).
				Int("minute", minute).
				Time("next_run", j.nextRun).
				Msg("Daily backup rescheduled")
		}
	}
	return nil
}

// EnableDailyBackup toggles the daily backup job.
func (s *Scheduler) EnableDailyBackup(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if j.name == JobDailyBackup {
			j.enabled = enabled
		}
	}
}

// Schedule returns the daily backup's configured fire time and state.
func (s *Scheduler) Schedule() (enabled bool, hour, minute int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if j.name == JobDailyBackup {
			enabled = j.enabled
		}
	}
	return enabled, s.cfg.BackupHour, s.cfg.BackupMinute
}

// JobStatuses reports the state of every job.
func (s *Scheduler) JobStatuses() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	statuses := make([]JobStatus, 0, len(s.jobs))
	for _, j := range s.jobs {
		statuses = append(statuses, JobStatus{
			Name:        j.name,
			Enabled:     j.enabled,
			NextRun:     j.nextRun,
			LastRun:     j.lastRun,
			LastOutcome: j.lastOutcome,
		})
	}
	return statuses
}
