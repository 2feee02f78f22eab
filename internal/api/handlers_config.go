// PACTA - Contract Lifecycle Administration
// Copyright 2026 PACTA Project Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pacta-project/pacta

package api

import (
	"net/http"

	"github.com/goccy/go-json"
)

// backupConfigView is the externally visible retention and schedule
// configuration.
type backupConfigView struct {
	ScheduleEnabled bool `json:"schedule_enabled"`
	ScheduleHour    int  `json:"schedule_hour"`
	ScheduleMinute  int  `json:"schedule_minute"`
	RetentionDays   int  `json:"retention_days"`
	KeepMinimum     int  `json:"keep_minimum"`
}

// GetConfig returns the effective backup configuration.
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	enabled, hour, minute := h.jobs.Schedule()
	rw.Success(backupConfigView{
		ScheduleEnabled: enabled,
		ScheduleHour:    hour,
		ScheduleMinute:  minute,
		RetentionDays:   h.cfg.RetentionDays,
		KeepMinimum:     h.cfg.KeepMinimum,
	})
}

// saveConfigRequest is the body of POST /api/backup/config. Pointer
// fields distinguish "absent" from zero values.
type saveConfigRequest struct {
	ScheduleEnabled *bool `json:"schedule_enabled"`
	ScheduleHour    *int  `json:"schedule_hour"`
	ScheduleMinute  *int  `json:"schedule_minute"`
	RetentionDays   *int  `json:"retention_days"`
	KeepMinimum     *int  `json:"keep_minimum"`
}

// SaveConfig applies schedule and retention changes at runtime.
func (h *Handler) SaveConfig(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req saveConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rw.BadRequest("Invalid JSON body")
		return
	}

	if req.RetentionDays != nil {
		if *req.RetentionDays < 1 {
			rw.BadRequest("retention_days must be at least 1")
			return
		}
		h.cfg.RetentionDays = *req.RetentionDays
	}
	if req.KeepMinimum != nil {
		if *req.KeepMinimum < 0 {
			rw.BadRequest("keep_minimum must not be negative")
			return
		}
		h.cfg.KeepMinimum = *req.KeepMinimum
	}

	if req.ScheduleHour != nil || req.ScheduleMinute != nil {
		_, hour, minute := h.jobs.Schedule()
		if req.ScheduleHour != nil {
			hour = *req.ScheduleHour
		}
		if req.ScheduleMinute != nil {
			minute = *req.ScheduleMinute
		}
		if err := h.jobs.RescheduleDailyBackup(hour, minute); err != nil {
			rw.Error(http.StatusBadRequest, ErrCodeValidationFailed, err.Error())
			return
		}
	}
	if req.ScheduleEnabled != nil {
		h.jobs.EnableDailyBackup(*req.ScheduleEnabled)
	}

	h.GetConfig(w, r)
}
