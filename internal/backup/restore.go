// PACTA - Contract Lifecycle Administration
// Copyright 2026 PACTA Project Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pacta-project/pacta

package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pacta-project/pacta/internal/activity"
	"github.com/pacta-project/pacta/internal/database"
	"github.com/pacta-project/pacta/internal/logging"
	"github.com/pacta-project/pacta/internal/metrics"
)

// Restorer replaces live state with an archive's contents.
//
// The database swap is atomic from the caller's perspective: either the
// archived database fully takes over, or the pre-restore file is back in
// place. The uploads swap is best-effort; its failure downgrades to a
// warning because the database is the authoritative store.
type Restorer struct {
	db         *database.Manager
	store      *Store
	creator    *Creator
	uploadsDir string
	activity   *activity.Log
}

// NewRestorer wires a restore engine.
func NewRestorer(db *database.Manager, store *Store, creator *Creator, uploadsDir string, log *activity.Log) *Restorer {
	return &Restorer{db: db, store: store, creator: creator, uploadsDir: uploadsDir, activity: log}
}

// Validate runs the pre-flight checks on an archive without touching any
// live state: containment, existence, container integrity, embedded
// database and metadata presence, metadata parseability.
func (r *Restorer) Validate(path string) *ValidationResult {
	abs, err := r.store.Resolve(path)
	if err != nil {
		return &ValidationResult{Error: err.Error()}
	}
	if _, err := os.Stat(abs); err != nil {
		return &ValidationResult{Error: ErrArchiveMissing.Error()}
	}
	if err := checkZipIntegrity(abs); err != nil {
		return &ValidationResult{Error: err.Error()}
	}

	hasDB, hasMeta, _, err := inspectArchive(abs)
	if err != nil {
		return &ValidationResult{Error: err.Error()}
	}
	if !hasDB {
		return &ValidationResult{Error: ErrMissingDB.Error()}
	}
	if !hasMeta {
		return &ValidationResult{Error: ErrMissingMeta.Error()}
	}
	if _, err := readArchiveMetadata(abs); err != nil {
		return &ValidationResult{Error: err.Error()}
	}
	return &ValidationResult{Valid: true}
}

// Restore runs the full protocol against the archive at path.
func (r *Restorer) Restore(ctx context.Context, path string, opts RestoreOptions) (*RestoreResult, error) {
	result := &RestoreResult{
		BackupName:       filepath.Base(path),
		RestoreTimestamp: time.Now(),
		Steps:            []StepResult{},
	}

	fail := func(err error) (*RestoreResult, error) {
		result.Error = err.Error()
		metrics.RecordRestore(err)
		logging.Error().Err(err).Str("archive", result.BackupName).Msg("Restore aborted")
		return result, err
	}

	// Validating.
	if v := r.Validate(path); !v.Valid {
		return fail(fmt.Errorf("archive validation failed: %s", v.Error))
	}
	abs, err := r.store.Resolve(path)
	if err != nil {
		return fail(err)
	}

	// SafetySnapshot.
	if !opts.SkipSafetySnapshot {
		safety, err := r.creator.Create(ctx, ProvenanceManual, "",
			fmt.Sprintf("Safety snapshot before restoring %s", result.BackupName))
		if err != nil {
			return fail(fmt.Errorf("safety snapshot failed, restore aborted: %w", err))
		}
		result.SafetySnapshot = safety
	}

	// Extracting.
	tempDir, err := os.MkdirTemp("", "pacta-restore-*")
	if err != nil {
		return fail(fmt.Errorf("failed to create extraction directory: %w", err))
	}
	defer os.RemoveAll(tempDir)

	if err := extractZip(abs, tempDir); err != nil {
		return fail(fmt.Errorf("failed to extract archive: %w", err))
	}
	meta, err := readArchiveMetadata(abs)
	if err != nil {
		return fail(err)
	}
	result.Metadata = meta

	dbEntry, err := databaseEntryName(abs)
	if err != nil {
		return fail(err)
	}

	// RestoringDatabase.
	if opts.RestoreDatabase {
		if err := r.restoreDatabase(ctx, filepath.Join(tempDir, dbEntry)); err != nil {
			result.Steps = append(result.Steps, StepResult{Step: StepDatabase, Error: err.Error()})
			return fail(fmt.Errorf("database restore failed: %w", err))
		}
		result.Steps = append(result.Steps, StepResult{Step: StepDatabase, Success: true})
	} else {
		result.Steps = append(result.Steps, StepResult{Step: StepDatabase, Skipped: true})
	}

	// RestoringUploads: failure is a warning, not fatal.
	switch {
	case !opts.RestoreUploads:
		result.Steps = append(result.Steps, StepResult{Step: StepUploads, Skipped: true})
	default:
		archivedUploads := filepath.Join(tempDir, UploadsEntryDir)
		if _, err := os.Stat(archivedUploads); os.IsNotExist(err) {
			result.Steps = append(result.Steps, StepResult{Step: StepUploads, Skipped: true})
			break
		}
		if err := r.restoreUploads(archivedUploads); err != nil {
			result.Steps = append(result.Steps, StepResult{Step: StepUploads, Error: err.Error()})
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("uploads restore failed, previous uploads kept: %v", err))
			logging.Warn().Err(err).Msg("Uploads restore failed")
		} else {
			result.Steps = append(result.Steps, StepResult{Step: StepUploads, Success: true})
		}
	}

	// Logging.
	result.Success = true
	metrics.RecordRestore(nil)
	r.activity.Record(ctx, nil, activity.ActionRestore, "", nil, map[string]any{
		"backup_name": result.BackupName,
		"metadata":    meta,
		"steps":       result.Steps,
		"warnings":    result.Warnings,
	})
	logging.Info().
		Str("archive", result.BackupName).
		Int("steps", len(result.Steps)).
		Msg("Restore completed")
	return result, nil
}

// restoreDatabase swaps the live database file for newDBPath with a
// rollback path: the original is copied aside first and put back if the
// swap or the verification query fails.
func (r *Restorer) restoreDatabase(ctx context.Context, newDBPath string) error {
	livePath := r.db.Path()
	asidePath := livePath + ".pre-restore"

	if err := r.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	if err := copyFile(livePath, asidePath); err != nil {
		// Nothing swapped yet; reopen and bail.
		if reopenErr := r.db.Reopen(); reopenErr != nil {
			logging.Error().Err(reopenErr).Msg("Failed to reopen database after aborted swap")
		}
		return fmt.Errorf("failed to copy database aside: %w", err)
	}

	if err := r.swapAndVerify(ctx, newDBPath, livePath); err != nil {
		r.rollbackDatabase(asidePath, livePath)
		return err
	}

	os.Remove(asidePath)
	return nil
}

// swapAndVerify installs newDBPath as the live file, reopens the pool and
// runs the verification query.
func (r *Restorer) swapAndVerify(ctx context.Context, newDBPath, livePath string) error {
	removeDatabaseFiles(livePath)
	if err := copyFile(newDBPath, livePath); err != nil {
		return fmt.Errorf("failed to install restored database: %w", err)
	}
	if err := r.db.Reopen(); err != nil {
		return fmt.Errorf("restored database failed to open: %w", err)
	}

	var count int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM usuarios`).Scan(&count); err != nil {
		return fmt.Errorf("restored database failed verification: %w", err)
	}
	logging.Info().Int64("usuarios", count).Msg("Restored database verified")
	return nil
}

// rollbackDatabase puts the aside copy back and reopens the pool.
func (r *Restorer) rollbackDatabase(asidePath, livePath string) {
	removeDatabaseFiles(livePath)
	if err := copyFile(asidePath, livePath); err != nil {
		logging.Error().Err(err).Msg("CRITICAL: failed to roll back database after failed restore")
		return
	}
	os.Remove(asidePath)
	if err := r.db.Reopen(); err != nil {
		logging.Error().Err(err).Msg("Failed to reopen database after rollback")
		return
	}
	logging.Warn().Msg("Database rolled back to pre-restore state")
}

// removeDatabaseFiles deletes the database file and its WAL siblings.
func removeDatabaseFiles(path string) {
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		os.Remove(p)
	}
}

// restoreUploads swaps the uploads tree for archivedUploads, keeping the
// previous tree aside until the copy succeeds.
func (r *Restorer) restoreUploads(archivedUploads string) error {
	asideDir := r.uploadsDir + ".pre-restore"
	os.RemoveAll(asideDir)

	hadUploads := false
	if _, err := os.Stat(r.uploadsDir); err == nil {
		hadUploads = true
		if err := os.Rename(r.uploadsDir, asideDir); err != nil {
			return fmt.Errorf("failed to move uploads aside: %w", err)
		}
	}

	if err := copyDir(archivedUploads, r.uploadsDir); err != nil {
		os.RemoveAll(r.uploadsDir)
		if hadUploads {
			if renameErr := os.Rename(asideDir, r.uploadsDir); renameErr != nil {
				logging.Error().Err(renameErr).Msg("Failed to roll back uploads tree")
			}
		}
		return fmt.Errorf("failed to install restored uploads: %w", err)
	}

	if hadUploads {
		os.RemoveAll(asideDir)
	}
	return nil
}

// History returns the most recent restore records from the activity log.
func (r *Restorer) History(ctx context.Context, limit int) ([]activity.Entry, error) {
	return r.activity.RecentByAction(ctx, activity.ActionRestore, limit)
}
