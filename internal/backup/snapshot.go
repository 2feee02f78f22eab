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
	"regexp"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/pacta-project/pacta/internal/activity"
	"github.com/pacta-project/pacta/internal/database"
	"github.com/pacta-project/pacta/internal/logging"
	"github.com/pacta-project/pacta/internal/metrics"
)

// timestampLayout is the human-readable suffix on archive names.
const timestampLayout = "20060102_150405"

// metadataTables are counted into database_stats. The activity log and
// notifications are included beyond the tracked set so restores can be
// sanity-checked against them.
var metadataTables = append(append([]string{}, database.TrackedTables...),
	"actividad_sistema", "notificaciones")

var invalidNameChars = regexp.MustCompile(`[^A-Za-z0-9 _-]`)

// sanitizeName strips a custom label down to [A-Za-z0-9_-], mapping
// spaces to underscores.
func sanitizeName(label string) string {
	clean := invalidNameChars.ReplaceAllString(label, "")
	return strings.ReplaceAll(clean, " ", "_")
}

// Creator is the snapshot builder: it turns live state (database file
// plus uploads tree) into one immutable archive in the store.
type Creator struct {
	db         *database.Manager
	store      *Store
	uploadsDir string
	activity   *activity.Log
}

// NewCreator wires a snapshot builder.
func NewCreator(db *database.Manager, store *Store, uploadsDir string, log *activity.Log) *Creator {
	return &Creator{db: db, store: store, uploadsDir: uploadsDir, activity: log}
}

// archiveName computes the final archive filename. Custom labels are
// sanitized; the timestamp keeps names operator-readable and the short
// token disambiguates sub-second concurrent snapshots.
func archiveName(provenance Provenance, label string, now time.Time) string {
	token := uuid.New().String()[:8]
	ts := now.Format(timestampLayout)
	if clean := sanitizeName(label); clean != "" {
		return fmt.Sprintf("%s_%s_%s.zip", clean, ts, token)
	}
	return fmt.Sprintf("%s_backup_%s_%s.zip", provenance, ts, token)
}

// Create builds one snapshot: an online database copy, the uploads tree
// if present, and a metadata descriptor, zipped into the provenance
// directory. The temporary working directory is removed on success and
// failure alike, so a failed snapshot is safely retryable.
func (c *Creator) Create(ctx context.Context, provenance Provenance, label, reason string) (*SnapshotResult, error) {
	if !provenance.Valid() {
		return nil, fmt.Errorf("invalid provenance %q", provenance)
	}

	start := time.Now()
	result, err := c.create(ctx, provenance, label, reason, start)
	metrics.RecordBackup(string(provenance), time.Since(start), sizeOf(result), err)
	if err != nil {
		logging.Error().Err(err).Str("provenance", string(provenance)).Msg("Snapshot failed")
		return nil, err
	}

	logging.Info().
		Str("archive", result.Name).
		Str("provenance", string(provenance)).
		Int64("size", result.Size).
		Dur("duration", time.Since(start)).
		Msg("Snapshot created")

	c.activity.Record(ctx, nil, activity.ActionBackupPrefix+strings.ToUpper(string(provenance)), "", nil,
		map[string]any{
			"backup_name": result.Name,
			"size":        result.Size,
			"reason":      reason,
		})
	return result, nil
}

func (c *Creator) create(ctx context.Context, provenance Provenance, label, reason string, now time.Time) (*SnapshotResult, error) {
	name := archiveName(provenance, label, now)

	workDir, err := os.MkdirTemp("", "pacta-snapshot-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create working directory: %w", err)
	}
	defer os.RemoveAll(workDir)

	// Online copy: VACUUM INTO never blocks foreground writers.
	if err := c.db.VacuumInto(ctx, filepath.Join(workDir, DatabaseEntryName)); err != nil {
		return nil, fmt.Errorf("failed to copy database: %w", err)
	}

	if fi, err := os.Stat(c.uploadsDir); err == nil && fi.IsDir() {
		if err := copyDir(c.uploadsDir, filepath.Join(workDir, UploadsEntryDir)); err != nil {
			return nil, fmt.Errorf("failed to copy uploads: %w", err)
		}
	}

	meta, err := c.buildMetadata(ctx, provenance, reason, now)
	if err != nil {
		return nil, err
	}
	metaJSON, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to serialize metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(workDir, MetadataEntryName), metaJSON, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write metadata: %w", err)
	}

	destPath := filepath.Join(c.store.DirFor(provenance), name)
	if err := zipDirectory(workDir, destPath); err != nil {
		// A half-written archive must not linger in the store.
		os.Remove(destPath)
		return nil, err
	}

	fi, err := os.Stat(destPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat archive: %w", err)
	}

	return &SnapshotResult{
		Name:       name,
		Path:       destPath,
		Provenance: provenance,
		Size:       fi.Size(),
		CreatedAt:  fi.ModTime(),
		Reason:     reason,
		Metadata:   meta,
	}, nil
}

// buildMetadata gathers per-table row counts; a table missing from the
// schema counts as zero.
func (c *Creator) buildMetadata(ctx context.Context, provenance Provenance, reason string, now time.Time) (*Metadata, error) {
	stats := make(map[string]int64, len(metadataTables))
	for _, table := range metadataTables {
		count, err := c.db.TableCount(ctx, table)
		if err != nil {
			return nil, fmt.Errorf("failed to count table %s: %w", table, err)
		}
		stats[table] = count
	}

	return &Metadata{
		BackupType:    string(provenance),
		Timestamp:     now.Format(timestampLayout),
		CreatedAt:     now.Format(time.RFC3339),
		Reason:        reason,
		Version:       MetadataVersion,
		DatabaseStats: stats,
	}, nil
}

func sizeOf(r *SnapshotResult) int64 {
	if r == nil {
		return 0
	}
	return r.Size
}
