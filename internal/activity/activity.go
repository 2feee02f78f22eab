// PACTA - Contract Lifecycle Administration
// Copyright 2026 PACTA Project Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pacta-project/pacta

// Package activity writes and reads the actividad_sistema audit trail.
//
// Recording is best-effort: an audit failure must never fail the operation
// being audited, so Record logs and swallows errors.
package activity

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/pacta-project/pacta/internal/database"
	"github.com/pacta-project/pacta/internal/logging"
)

// Well-known action names. Backup actions carry the provenance as a
// suffix, e.g. BACKUP_SCHEDULED, BACKUP_MANUAL.
const (
	ActionBackupPrefix = "BACKUP_"
	ActionRestore      = "RESTORE"
)

// Entry is one row of the activity log.
type Entry struct {
	ID        int64     `json:"id"`
	ActorID   *int64    `json:"actor_id,omitempty"`
	Action    string    `json:"action"`
	Table     string    `json:"table,omitempty"`
	RecordID  *int64    `json:"record_id,omitempty"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Log records and retrieves activity entries.
type Log struct {
	db *database.Manager
}

// NewLog creates an activity log over the given database.
func NewLog(db *database.Manager) *Log {
	return &Log{db: db}
}

// Record inserts an activity entry. Details is serialized to JSON when
// non-nil. Failures are logged, never returned.
func (l *Log) Record(ctx context.Context, actorID *int64, action, table string, recordID *int64, details any) {
	var detailsJSON any
	if details != nil {
		data, err := json.Marshal(details)
		if err != nil {
			logging.Warn().Err(err).Str("action", action).Msg("Failed to serialize activity details")
		} else {
			detailsJSON = string(data)
		}
	}

	var tableVal any
	if table != "" {
		tableVal = table
	}

	_, err := l.db.Exec(ctx,
		`INSERT INTO actividad_sistema (usuario_id, accion, tabla_afectada, registro_id, detalles)
		 VALUES (?, ?, ?, ?, ?)`,
		actorID, action, tableVal, recordID, detailsJSON)
	if err != nil {
		logging.Warn().Err(err).Str("action", action).Msg("Failed to record activity")
	}
}

// Recent returns the newest entries, most recent first.
func (l *Log) Recent(ctx context.Context, limit int) ([]Entry, error) {
	return l.query(ctx,
		`SELECT id, usuario_id, accion, tabla_afectada, registro_id, detalles, fecha_actividad
		 FROM actividad_sistema ORDER BY fecha_actividad DESC, id DESC LIMIT ?`, limit)
}

// RecentByAction returns the newest entries whose action starts with
// actionPrefix, most recent first.
func (l *Log) RecentByAction(ctx context.Context, actionPrefix string, limit int) ([]Entry, error) {
	return l.query(ctx,
		`SELECT id, usuario_id, accion, tabla_afectada, registro_id, detalles, fecha_actividad
		 FROM actividad_sistema WHERE accion LIKE ? || '%'
		 ORDER BY fecha_actividad DESC, id DESC LIMIT ?`, actionPrefix, limit)
}

func (l *Log) query(ctx context.Context, q string, args ...any) ([]Entry, error) {
	rows, err := l.db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity log: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e       Entry
			table   *string
			details *string
		)
		if err := rows.Scan(&e.ID, &e.ActorID, &e.Action, &table, &e.RecordID, &details, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan activity entry: %w", err)
		}
		if table != nil {
			e.Table = *table
		}
		if details != nil {
			e.Details = *details
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
