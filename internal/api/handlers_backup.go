// PACTA - Contract Lifecycle Administration
// Copyright 2026 PACTA Project Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pacta-project/pacta

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/pacta-project/pacta/internal/backup"
	"github.com/pacta-project/pacta/internal/logging"
)

// maxImportBytes caps uploaded archives at 1 GiB.
const maxImportBytes = 1 << 30

// createBackupRequest is the body of POST /api/backup/create.
type createBackupRequest struct {
	Label  string `json:"label"`
	Reason string `json:"reason"`
}

// CreateBackup snapshots the database and uploads into a manual archive.
func (h *Handler) CreateBackup(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req createBackupRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			rw.BadRequest("Invalid JSON body")
			return
		}
	}
	if req.Reason == "" {
		req.Reason = "Backup manual"
	}

	result, err := h.creator.Create(r.Context(), backup.ProvenanceManual, req.Label, req.Reason)
	if err != nil {
		logging.Error().Err(err).Msg("Manual backup failed")
		rw.InternalError("Backup creation failed")
		return
	}
	rw.Created(result)
}

// ListBackups returns every archive grouped by provenance.
func (h *Handler) ListBackups(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	listing, err := h.store.List()
	if err != nil {
		logging.Error().Err(err).Msg("Failed to list archives")
		rw.InternalError("Failed to list backups")
		return
	}

	total := 0
	for _, infos := range listing {
		total += len(infos)
	}
	rw.Success(map[string]any{
		"backups": listing,
		"total":   total,
	})
}

// DeleteBackup removes one archive by name.
func (h *Handler) DeleteBackup(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	info, ok := h.findArchive(rw, chi.URLParam(r, "name"))
	if !ok {
		return
	}
	if err := h.store.Delete(info.Path); err != nil {
		logging.Error().Err(err).Str("name", info.Name).Msg("Failed to delete archive")
		rw.InternalError("Failed to delete backup")
		return
	}
	rw.Success(map[string]string{"deleted": info.Name})
}

// DownloadBackup streams one archive to the client.
func (h *Handler) DownloadBackup(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	info, ok := h.findArchive(rw, chi.URLParam(r, "name"))
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+info.Name+`"`)
	http.ServeFile(w, r, info.Path)
}

// ImportBackup accepts a multipart upload and files it under imported/.
func (h *Handler) ImportBackup(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		rw.BadRequest("Multipart field 'file' is required")
		return
	}
	defer file.Close()

	info, err := h.store.Import(file, header.Filename)
	if err != nil {
		switch {
		case errors.Is(err, backup.ErrNotZip),
			errors.Is(err, backup.ErrEmptyFilename),
			errors.Is(err, backup.ErrMissingDB),
			errors.Is(err, backup.ErrMissingMeta):
			rw.Error(http.StatusUnprocessableEntity, ErrCodeValidationFailed, err.Error())
		default:
			logging.Error().Err(err).Str("filename", header.Filename).Msg("Import failed")
			rw.InternalError("Failed to import backup")
		}
		return
	}
	rw.Created(info)
}

// ValidateBackup runs the pre-flight check on one archive.
func (h *Handler) ValidateBackup(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	info, ok := h.findArchive(rw, chi.URLParam(r, "name"))
	if !ok {
		return
	}
	rw.Success(h.restorer.Validate(info.Path))
}

// restoreRequest is the body of POST /api/backup/restore.
type restoreRequest struct {
	Name               string `json:"name"`
	RestoreDatabase    *bool  `json:"restore_database"`
	RestoreUploads     *bool  `json:"restore_uploads"`
	SkipSafetySnapshot bool   `json:"skip_safety_snapshot"`
}

// RestoreBackup replaces the live state from an archive.
func (h *Handler) RestoreBackup(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req restoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rw.BadRequest("Invalid JSON body")
		return
	}
	info, ok := h.findArchive(rw, req.Name)
	if !ok {
		return
	}

	opts := backup.DefaultRestoreOptions()
	if req.RestoreDatabase != nil {
		opts.RestoreDatabase = *req.RestoreDatabase
	}
	if req.RestoreUploads != nil {
		opts.RestoreUploads = *req.RestoreUploads
	}
	opts.SkipSafetySnapshot = req.SkipSafetySnapshot

	result, err := h.restorer.Restore(r.Context(), info.Path, opts)
	if err != nil {
		logging.Error().Err(err).Str("name", info.Name).Msg("Restore failed")
		rw.ErrorWithDetails(http.StatusInternalServerError, ErrCodeInternalError, "Restore failed", result)
		return
	}
	rw.Success(result)
}

// RestoreHistory lists past restore operations from the activity log.
func (h *Handler) RestoreHistory(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	entries, err := h.restorer.History(r.Context(), 50)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to read restore history")
		rw.InternalError("Failed to read restore history")
		return
	}
	rw.Success(map[string]any{"history": entries})
}

// findArchive resolves a bare archive name, writing the error response
// on failure.
func (h *Handler) findArchive(rw *ResponseWriter, name string) (*backup.ArchiveInfo, bool) {
	info, err := h.store.Find(name)
	if err != nil {
		switch {
		case errors.Is(err, backup.ErrArchiveMissing):
			rw.NotFound("Backup not found: " + name)
		case errors.Is(err, backup.ErrEmptyFilename):
			rw.BadRequest("Backup name is required")
		case errors.Is(err, backup.ErrNotZip), errors.Is(err, backup.ErrOutsideRoot):
			rw.BadRequest("Invalid backup name: " + name)
		default:
			logging.Error().Err(err).Str("name", name).Msg("Archive lookup failed")
			rw.InternalError("Failed to locate backup")
		}
		return nil, false
	}
	return info, true
}
