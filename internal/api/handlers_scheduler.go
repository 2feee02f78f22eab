// PACTA - Contract Lifecycle Administration
// Copyright 2026 PACTA Project Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pacta-project/pacta

package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/pacta-project/pacta/internal/logging"
)

// TriggerBackup forces the daily backup job to run now, bypassing the
// pending-change check.
func (h *Handler) TriggerBackup(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	if err := h.jobs.TriggerManualBackup(r.Context()); err != nil {
		logging.Error().Err(err).Msg("Triggered backup failed")
		rw.InternalError("Triggered backup failed")
		return
	}
	rw.Success(map[string]string{"status": "backup completed"})
}

// rescheduleRequest is the body of POST /api/backup/scheduler/reschedule.
type rescheduleRequest struct {
	Hour   *int `json:"hour"`
	Minute *int `json:"minute"`
}

// Reschedule moves the daily backup's fire time.
func (h *Handler) Reschedule(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req rescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rw.BadRequest("Invalid JSON body")
		return
	}
	if req.Hour == nil || req.Minute == nil {
		rw.BadRequest("Both hour and minute are required")
		return
	}
	if err := h.jobs.RescheduleDailyBackup(*req.Hour, *req.Minute); err != nil {
		rw.Error(http.StatusBadRequest, ErrCodeValidationFailed, err.Error())
		return
	}
	rw.Success(map[string]int{"hour": *req.Hour, "minute": *req.Minute})
}

// SchedulerJobs reports every scheduled job's state.
func (h *Handler) SchedulerJobs(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	rw.Success(map[string]any{"jobs": h.jobs.JobStatuses()})
}
