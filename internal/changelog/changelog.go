// PACTA - Contract Lifecycle Administration
// Copyright 2026 PACTA Project Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pacta-project/pacta

// Package changelog maintains the change ledger used to decide whether a
// scheduled backup is worth taking.
//
// Every mutation of a tracked business table appends a row to the
// change_tracking table. The scheduler consults PendingChanges before the
// daily snapshot and flips entries to processed after a successful one;
// processed entries are purged after a retention window.
package changelog

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/pacta-project/pacta/internal/database"
	"github.com/pacta-project/pacta/internal/logging"
	"github.com/pacta-project/pacta/internal/metrics"
)

// Operations recorded in the ledger.
const (
	OpInsert = "INSERT"
	OpUpdate = "UPDATE"
	OpDelete = "DELETE"
)

// timeLayout is the storage format for ledger timestamps. Fixed-width UTC
// text keeps lexicographic order chronological and SQLite's DATE() happy.
const timeLayout = "2006-01-02 15:04:05.000000000"

// ChangeGroup aggregates pending entries for one table/operation pair.
type ChangeGroup struct {
	Table     string    `json:"table"`
	Operation string    `json:"operation"`
	Count     int64     `json:"count"`
	First     time.Time `json:"first_change"`
	Last      time.Time `json:"last_change"`
}

// PendingReport describes the unprocessed ledger entries for the tracked
// tables.
type PendingReport struct {
	HasChanges   bool          `json:"has_changes"`
	Changes      []ChangeGroup `json:"changes"`
	TotalChanges int64         `json:"total_changes"`
	Message      string        `json:"message"`
}

// DaySummary aggregates entries per table/operation for one calendar day.
type DaySummary struct {
	Table     string `json:"table"`
	Operation string `json:"operation"`
	Count     int64  `json:"count"`
}

// Summary reports per-day change counts over a trailing window.
type Summary struct {
	ByDate       map[string][]DaySummary `json:"summary"`
	TotalChanges int64                   `json:"total_changes"`
	PeriodDays   int                     `json:"period_days"`
}

// Ledger records and queries change-tracking entries.
type Ledger struct {
	db     *database.Manager
	tables []string
}

// NewLedger creates a ledger over db tracking the given tables. A nil or
// empty tables slice falls back to database.TrackedTables.
func NewLedger(db *database.Manager, tables []string) *Ledger {
	if len(tables) == 0 {
		tables = database.TrackedTables
	}
	return &Ledger{db: db, tables: tables}
}

// Record appends a ledger entry. It never returns an error: change
// tracking must not break the business write it is riding on. Failures
// are logged.
func (l *Ledger) Record(ctx context.Context, table, operation string, recordID *int64, payload any) {
	var payloadJSON any
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			logging.Warn().Err(err).Str("table", table).Msg("Failed to serialize change payload")
		} else {
			payloadJSON = string(data)
		}
	}

	_, err := l.db.Exec(ctx,
		`INSERT INTO change_tracking (table_name, operation, record_id, change_data, timestamp)
		 VALUES (?, ?, ?, ?, ?)`,
		table, operation, recordID, payloadJSON, time.Now().UTC().Format(timeLayout))
	if err != nil {
		logging.Warn().Err(err).
			Str("table", table).
			Str("operation", operation).
			Msg("Failed to record change")
		return
	}
	metrics.ChangesRecordedTotal.WithLabelValues(table, operation).Inc()
}

// PendingChanges reports unprocessed entries for the tracked tables,
// grouped by table and operation, most recently changed groups first.
func (l *Ledger) PendingChanges(ctx context.Context) (*PendingReport, error) {
	query, args := l.trackedQuery(
		`SELECT table_name, operation, COUNT(*), MIN(timestamp), MAX(timestamp)
		 FROM change_tracking
		 WHERE table_name IN (%s) AND backup_processed = 0
		 GROUP BY table_name, operation
		 ORDER BY MAX(timestamp) DESC`)

	rows, err := l.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending changes: %w", err)
	}
	defer rows.Close()

	report := &PendingReport{Changes: []ChangeGroup{}}
	for rows.Next() {
		var (
			g           ChangeGroup
			first, last string
		)
		if err := rows.Scan(&g.Table, &g.Operation, &g.Count, &first, &last); err != nil {
			return nil, fmt.Errorf("failed to scan change group: %w", err)
		}
		g.First = parseLedgerTime(first)
		g.Last = parseLedgerTime(last)
		report.Changes = append(report.Changes, g)
		report.TotalChanges += g.Count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if report.TotalChanges == 0 {
		report.Message = "No hay cambios pendientes de backup"
		return report, nil
	}
	report.HasChanges = true
	report.Message = fmt.Sprintf("Se encontraron %d cambios pendientes de backup", report.TotalChanges)
	return report, nil
}

// MarkAllProcessed flips every unprocessed entry to processed and returns
// the number flipped. Idempotent: a second call returns 0.
func (l *Ledger) MarkAllProcessed(ctx context.Context) (int64, error) {
	res, err := l.db.Exec(ctx,
		`UPDATE change_tracking SET backup_processed = 1 WHERE backup_processed = 0`)
	if err != nil {
		return 0, fmt.Errorf("failed to mark changes processed: %w", err)
	}
	return res.RowsAffected()
}

// MarkProcessedBefore flips only unprocessed entries recorded strictly
// before cutoff. Used in strict marking mode so entries written while a
// snapshot was being built stay pending for the next one.
func (l *Ledger) MarkProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := l.db.Exec(ctx,
		`UPDATE change_tracking SET backup_processed = 1
		 WHERE backup_processed = 0 AND timestamp < ?`, cutoff.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("failed to mark changes processed: %w", err)
	}
	return res.RowsAffected()
}

// ChangeSummary aggregates all entries (processed or not) from the last
// days days, keyed by calendar date.
func (l *Ledger) ChangeSummary(ctx context.Context, days int) (*Summary, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days).Format(timeLayout)

	rows, err := l.db.Query(ctx,
		`SELECT table_name, operation, COUNT(*), DATE(timestamp)
		 FROM change_tracking
		 WHERE timestamp >= ?
		 GROUP BY table_name, operation, DATE(timestamp)
		 ORDER BY DATE(timestamp) DESC, table_name, operation`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query change summary: %w", err)
	}
	defer rows.Close()

	summary := &Summary{ByDate: map[string][]DaySummary{}, PeriodDays: days}
	for rows.Next() {
		var (
			s    DaySummary
			date string
		)
		if err := rows.Scan(&s.Table, &s.Operation, &s.Count, &date); err != nil {
			return nil, fmt.Errorf("failed to scan summary row: %w", err)
		}
		summary.ByDate[date] = append(summary.ByDate[date], s)
		summary.TotalChanges += s.Count
	}
	return summary, rows.Err()
}

// PurgeProcessed deletes processed entries older than olderThanDays and
// returns the number deleted. Unprocessed entries are never purged.
func (l *Ledger) PurgeProcessed(ctx context.Context, olderThanDays int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -olderThanDays).Format(timeLayout)

	res, err := l.db.Exec(ctx,
		`DELETE FROM change_tracking WHERE timestamp < ? AND backup_processed = 1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge processed changes: %w", err)
	}
	return res.RowsAffected()
}

// LastBackupInfo holds the most recent BACKUP_* activity entry.
type LastBackupInfo struct {
	LastBackupDate time.Time      `json:"last_backup_date"`
	Details        map[string]any `json:"details"`
}

// LastBackup returns information about the most recent backup, or nil
// when no backup has been recorded yet.
func (l *Ledger) LastBackup(ctx context.Context) (*LastBackupInfo, error) {
	rows, err := l.db.Query(ctx,
		`SELECT fecha_actividad, detalles FROM actividad_sistema
		 WHERE accion LIKE 'BACKUP_%'
		 ORDER BY fecha_actividad DESC, id DESC LIMIT 1`)
	if err != nil {
		return nil, fmt.Errorf("failed to query last backup: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}

	var (
		date    time.Time
		details *string
	)
	if err := rows.Scan(&date, &details); err != nil {
		return nil, fmt.Errorf("failed to scan last backup: %w", err)
	}

	info := &LastBackupInfo{LastBackupDate: date, Details: map[string]any{}}
	if details != nil && *details != "" {
		// Malformed details degrade to an empty map, same as the rest of
		// the activity readers.
		_ = json.Unmarshal([]byte(*details), &info.Details)
	}
	return info, rows.Err()
}

// parseLedgerTime parses a stored timestamp, returning the zero time on
// malformed input rather than failing the whole report.
func parseLedgerTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		logging.Debug().Str("value", s).Msg("Unparseable ledger timestamp")
		return time.Time{}
	}
	return t
}

// trackedQuery expands the IN placeholder list for the tracked tables.
func (l *Ledger) trackedQuery(format string) (string, []any) {
	placeholders := ""
	args := make([]any, len(l.tables))
	for i, t := range l.tables {
		if i > 0 {
			placeholders += ", "
		}
		placeholders += "?"
		args[i] = t
	}
	return fmt.Sprintf(format, placeholders), args
}
