// PACTA - Contract Lifecycle Administration
// Copyright 2026 PACTA Project Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pacta-project/pacta

// Package metrics exposes Prometheus instrumentation for the backup
// subsystem: snapshot throughput and duration, restore outcomes,
// retention pruning and change-ledger volume.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Backup metrics
	BackupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pacta_backups_total",
			Help: "Total number of backup snapshots attempted",
		},
		[]string{"provenance", "outcome"}, // outcome: "success" or "failure"
	)

	BackupDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pacta_backup_duration_seconds",
			Help:    "Duration of backup snapshot creation in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"provenance"},
	)

	BackupSizeBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pacta_backup_last_size_bytes",
			Help: "Size in bytes of the most recent backup archive",
		},
	)

	// Restore metrics
	RestoresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pacta_restores_total",
			Help: "Total number of restore attempts",
		},
		[]string{"outcome"},
	)

	// Retention metrics
	ArchivesPrunedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pacta_archives_pruned_total",
			Help: "Total number of scheduled archives deleted by retention",
		},
	)

	// Change ledger metrics
	ChangesRecordedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pacta_changes_recorded_total",
			Help: "Total number of change ledger entries recorded",
		},
		[]string{"table", "operation"},
	)

	PendingChanges = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pacta_pending_changes",
			Help: "Change ledger entries not yet covered by a backup",
		},
	)

	// Scheduler metrics
	ScheduledJobRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pacta_scheduled_job_runs_total",
			Help: "Total scheduled job executions",
		},
		[]string{"job", "outcome"}, // outcome: "success", "failure", "skipped"
	)

	// API metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pacta_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pacta_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)
)

// RecordBackup records the outcome, duration and size of one snapshot.
func RecordBackup(provenance string, duration time.Duration, sizeBytes int64, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	BackupsTotal.WithLabelValues(provenance, outcome).Inc()
	if err == nil {
		BackupDuration.WithLabelValues(provenance).Observe(duration.Seconds())
		BackupSizeBytes.Set(float64(sizeBytes))
	}
}

// RecordRestore records a restore attempt.
func RecordRestore(err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	RestoresTotal.WithLabelValues(outcome).Inc()
}

// RecordAPIRequest records one handled API request.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
