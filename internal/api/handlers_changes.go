// PACTA - Contract Lifecycle Administration
// Copyright 2026 PACTA Project Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pacta-project/pacta

package api

import (
	"net/http"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/pacta-project/pacta/internal/logging"
)

// PendingChanges reports unprocessed ledger entries grouped by table
// and operation.
func (h *Handler) PendingChanges(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	report, err := h.ledger.PendingChanges(r.Context())
	if err != nil {
		logging.Error().Err(err).Msg("Failed to read pending changes")
		rw.InternalError("Failed to read pending changes")
		return
	}
	rw.Success(report)
}

// ChangeSummary reports per-day change activity over a window.
func (h *Handler) ChangeSummary(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	days := 7
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 365 {
			rw.BadRequest("days must be an integer between 1 and 365")
			return
		}
		days = parsed
	}

	summary, err := h.ledger.ChangeSummary(r.Context(), days)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to build change summary")
		rw.InternalError("Failed to build change summary")
		return
	}
	rw.Success(summary)
}

// cleanupRequest is the body of POST /api/backup/cleanup.
type cleanupRequest struct {
	RetentionDays int `json:"retention_days"`
	KeepMinimum   int `json:"keep_minimum"`
}

// Cleanup prunes old scheduled archives on demand. Body fields default
// to the configured retention policy.
func (h *Handler) Cleanup(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	req := cleanupRequest{
		RetentionDays: h.cfg.RetentionDays,
		KeepMinimum:   h.cfg.KeepMinimum,
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			rw.BadRequest("Invalid JSON body")
			return
		}
	}
	if req.RetentionDays < 1 {
		rw.BadRequest("retention_days must be at least 1")
		return
	}
	if req.KeepMinimum < 0 {
		rw.BadRequest("keep_minimum must not be negative")
		return
	}

	result, err := h.store.Prune(req.RetentionDays, req.KeepMinimum)
	if err != nil {
		logging.Error().Err(err).Msg("Prune failed")
		rw.InternalError("Failed to prune backups")
		return
	}
	rw.Success(result)
}

// Status summarizes the subsystem: pending changes, last backup,
// schedule and archive counts.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	report, err := h.ledger.PendingChanges(r.Context())
	if err != nil {
		logging.Error().Err(err).Msg("Failed to read pending changes")
		rw.InternalError("Failed to read backup status")
		return
	}
	lastBackup, err := h.ledger.LastBackup(r.Context())
	if err != nil {
		logging.Error().Err(err).Msg("Failed to read last backup")
		rw.InternalError("Failed to read backup status")
		return
	}
	listing, err := h.store.List()
	if err != nil {
		logging.Error().Err(err).Msg("Failed to list archives")
		rw.InternalError("Failed to read backup status")
		return
	}

	counts := make(map[string]int, len(listing))
	for p, infos := range listing {
		counts[string(p)] = len(infos)
	}
	enabled, hour, minute := h.jobs.Schedule()

	rw.Success(map[string]any{
		"pending_changes": report,
		"last_backup":     lastBackup,
		"archive_counts":  counts,
		"schedule": map[string]any{
			"enabled": enabled,
			"hour":    hour,
			"minute":  minute,
		},
	})
}
