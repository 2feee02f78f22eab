// PACTA - Contract Lifecycle Administration
// Copyright 2026 PACTA Project Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pacta-project/pacta

package backup

import (
	"errors"
	"fmt"
	"time"
)

// Provenance is the origin category of an archive.
type Provenance string

const (
	// ProvenanceScheduled marks cron-driven snapshots.
	ProvenanceScheduled Provenance = "scheduled"
	// ProvenanceManual marks operator-triggered and safety snapshots.
	ProvenanceManual Provenance = "manual"
	// ProvenanceImported marks archives uploaded from outside the system.
	ProvenanceImported Provenance = "imported"
)

// Dir returns the store subdirectory for the provenance. Scheduled
// archives live under automatic/ for compatibility with the original
// on-disk layout.
func (p Provenance) Dir() string {
	switch p {
	case ProvenanceScheduled:
		return "automatic"
	case ProvenanceManual:
		return "manual"
	case ProvenanceImported:
		return "imported"
	}
	return ""
}

// Valid reports whether p is a known provenance.
func (p Provenance) Valid() bool {
	return p.Dir() != ""
}

// ParseProvenance converts a string (provenance name or store directory
// name) into a Provenance.
func ParseProvenance(s string) (Provenance, error) {
	switch s {
	case "scheduled", "automatic":
		return ProvenanceScheduled, nil
	case "manual":
		return ProvenanceManual, nil
	case "imported":
		return ProvenanceImported, nil
	}
	return "", fmt.Errorf("unknown provenance %q", s)
}

// Archive entry names. DatabaseEntryName keeps the original deployment's
// file name so archives remain interchangeable with it.
const (
	DatabaseEntryName = "pacta_local.db"
	MetadataEntryName = "backup_metadata.json"
	UploadsEntryDir   = "uploads"

	// MetadataVersion is written into every new archive's metadata.
	MetadataVersion = "1.0"
)

// Metadata is the descriptor embedded in each archive as
// backup_metadata.json.
type Metadata struct {
	BackupType    string           `json:"backup_type"`
	Timestamp     string           `json:"timestamp"`
	CreatedAt     string           `json:"created_at"`
	Reason        string           `json:"reason"`
	Version       string           `json:"version"`
	DatabaseStats map[string]int64 `json:"database_stats"`
}

// ArchiveInfo describes one archive as listed from the store.
// CreatedAt is filesystem truth (the archive's mtime); Metadata carries
// the embedded created_at, which may be absent for imported archives.
type ArchiveInfo struct {
	Name       string     `json:"name"`
	Path       string     `json:"path"`
	Provenance Provenance `json:"provenance"`
	Size       int64      `json:"size"`
	SizeMB     float64    `json:"size_mb"`
	CreatedAt  time.Time  `json:"created_at"`
	Metadata   *Metadata  `json:"metadata,omitempty"`
	HasUploads bool       `json:"has_uploads"`
}

// SnapshotResult describes a freshly created archive.
type SnapshotResult struct {
	Name       string     `json:"name"`
	Path       string     `json:"path"`
	Provenance Provenance `json:"provenance"`
	Size       int64      `json:"size"`
	CreatedAt  time.Time  `json:"created_at"`
	Reason     string     `json:"reason"`
	Metadata   *Metadata  `json:"metadata"`
}

// ValidationResult is the outcome of a pre-flight archive check.
type ValidationResult struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// Restore step names.
const (
	StepDatabase = "database"
	StepUploads  = "uploads"
)

// StepResult records the outcome of one restore sub-step.
type StepResult struct {
	Step    string `json:"step"`
	Success bool   `json:"success"`
	Skipped bool   `json:"skipped,omitempty"`
	Error   string `json:"error,omitempty"`
}

// RestoreOptions controls which parts of a restore run.
type RestoreOptions struct {
	// RestoreDatabase swaps the live database file. Default true.
	RestoreDatabase bool
	// RestoreUploads swaps the uploads tree. Default true.
	RestoreUploads bool
	// SkipSafetySnapshot opts out of the pre-restore manual snapshot.
	SkipSafetySnapshot bool
}

// DefaultRestoreOptions restores everything with a safety snapshot.
func DefaultRestoreOptions() RestoreOptions {
	return RestoreOptions{RestoreDatabase: true, RestoreUploads: true}
}

// RestoreResult describes the outcome of a restore.
type RestoreResult struct {
	Success          bool            `json:"success"`
	BackupName       string          `json:"backup_name"`
	RestoreTimestamp time.Time       `json:"restore_timestamp"`
	SafetySnapshot   *SnapshotResult `json:"safety_snapshot,omitempty"`
	Metadata         *Metadata       `json:"metadata,omitempty"`
	Steps            []StepResult    `json:"steps"`
	Warnings         []string        `json:"warnings,omitempty"`
	Error            string          `json:"error,omitempty"`
}

// PruneResult reports a retention pass over scheduled archives.
type PruneResult struct {
	Deleted int      `json:"deleted"`
	Kept    int      `json:"kept"`
	Removed []string `json:"removed,omitempty"`
}

// Store errors surfaced to callers.
var (
	ErrOutsideRoot    = errors.New("path resolves outside the backup store")
	ErrNotZip         = errors.New("not a .zip archive")
	ErrEmptyFilename  = errors.New("empty filename")
	ErrMissingDB      = errors.New("archive contains no embedded database file")
	ErrMissingMeta    = errors.New("archive contains no backup_metadata.json")
	ErrArchiveMissing = errors.New("archive does not exist")
)
