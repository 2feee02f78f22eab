// PACTA - Contract Lifecycle Administration
// Copyright 2026 PACTA Project Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pacta-project/pacta

package backup

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pacta-project/pacta/internal/logging"
	"github.com/pacta-project/pacta/internal/metrics"
)

// Store is the on-disk archive catalog. Archives are partitioned by
// provenance into automatic/, manual/ and imported/ beneath the root.
type Store struct {
	root string
}

// NewStore creates the store rooted at dir, creating the provenance
// subdirectories as needed.
func NewStore(dir string) (*Store, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve store root: %w", err)
	}
	for _, p := range []Provenance{ProvenanceScheduled, ProvenanceManual, ProvenanceImported} {
		if err := os.MkdirAll(filepath.Join(root, p.Dir()), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}
	return &Store{root: root}, nil
}

// Root returns the absolute store root.
func (s *Store) Root() string {
	return s.root
}

// DirFor returns the absolute directory for a provenance.
func (s *Store) DirFor(p Provenance) string {
	return filepath.Join(s.root, p.Dir())
}

// Resolve verifies that path points at a .zip inside the store root and
// returns its absolute form. Rejections happen before any filesystem
// access beyond path resolution.
func (s *Store) Resolve(path string) (string, error) {
	if !strings.HasSuffix(strings.ToLower(path), ".zip") {
		return "", ErrNotZip
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	rel, err := filepath.Rel(s.root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", ErrOutsideRoot
	}
	return abs, nil
}

// List returns all archives grouped by provenance, newest first within
// each group (by file modification time).
func (s *Store) List() (map[Provenance][]ArchiveInfo, error) {
	result := make(map[Provenance][]ArchiveInfo, 3)
	for _, p := range []Provenance{ProvenanceScheduled, ProvenanceManual, ProvenanceImported} {
		infos, err := s.listProvenance(p)
		if err != nil {
			return nil, err
		}
		result[p] = infos
	}
	return result, nil
}

// listProvenance lists one provenance directory, newest first.
func (s *Store) listProvenance(p Provenance) ([]ArchiveInfo, error) {
	entries, err := os.ReadDir(s.DirFor(p))
	if err != nil {
		if os.IsNotExist(err) {
			return []ArchiveInfo{}, nil
		}
		return nil, fmt.Errorf("failed to read store directory: %w", err)
	}

	infos := make([]ArchiveInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".zip") {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		path := filepath.Join(s.DirFor(p), e.Name())

		info := ArchiveInfo{
			Name:       e.Name(),
			Path:       path,
			Provenance: p,
			Size:       fi.Size(),
			SizeMB:     math.Round(float64(fi.Size())/(1024*1024)*100) / 100,
			CreatedAt:  fi.ModTime(),
		}

		// Metadata is optional in listings; imported archives may carry
		// none, and a corrupt container still shows up with its file facts.
		if _, hasMeta, hasUploads, err := inspectArchive(path); err == nil {
			info.HasUploads = hasUploads
			if hasMeta {
				if meta, err := readArchiveMetadata(path); err == nil {
					info.Metadata = meta
				}
			}
		}
		infos = append(infos, info)
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].CreatedAt.After(infos[j].CreatedAt)
	})
	return infos, nil
}

// Import accepts an external archive stream and files it under
// imported/. The upload is rejected unless it is a readable zip carrying
// an embedded database file and a metadata descriptor; rejected files
// are deleted best-effort.
func (s *Store) Import(r io.Reader, filename string) (*ArchiveInfo, error) {
	if filename == "" {
		return nil, ErrEmptyFilename
	}
	if !strings.HasSuffix(strings.ToLower(filename), ".zip") {
		return nil, ErrNotZip
	}

	stem := sanitizeName(strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename)))
	destName := fmt.Sprintf("imported_%s_%s.zip", stem, time.Now().Format(timestampLayout))
	destPath := filepath.Join(s.DirFor(ProvenanceImported), destName)

	out, err := os.Create(destPath)
	if err != nil {
		return nil, fmt.Errorf("failed to write imported archive: %w", err)
	}
	size, err := io.Copy(out, r)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		s.removeRejected(destPath)
		return nil, fmt.Errorf("failed to write imported archive: %w", err)
	}

	hasDB, hasMeta, hasUploads, err := inspectArchive(destPath)
	if err != nil {
		s.removeRejected(destPath)
		return nil, err
	}
	if !hasDB {
		s.removeRejected(destPath)
		return nil, ErrMissingDB
	}
	if !hasMeta {
		s.removeRejected(destPath)
		return nil, ErrMissingMeta
	}

	info := &ArchiveInfo{
		Name:       destName,
		Path:       destPath,
		Provenance: ProvenanceImported,
		Size:       size,
		SizeMB:     math.Round(float64(size)/(1024*1024)*100) / 100,
		CreatedAt:  time.Now(),
		HasUploads: hasUploads,
	}
	if meta, err := readArchiveMetadata(destPath); err == nil {
		info.Metadata = meta
	}

	logging.Info().Str("archive", destName).Int64("size", size).Msg("Imported external archive")
	return info, nil
}

// removeRejected deletes a rejected import. Deletion failures are
// tolerated; the file may be held open by a concurrent scanner.
func (s *Store) removeRejected(path string) {
	if err := os.Remove(path); err != nil {
		logging.Warn().Err(err).Str("path", path).Msg("Failed to delete rejected import")
	}
}

// Find locates an archive by bare filename across all provenance
// directories. Names carrying path separators are rejected outright.
func (s *Store) Find(name string) (*ArchiveInfo, error) {
	if name == "" {
		return nil, ErrEmptyFilename
	}
	if name != filepath.Base(name) {
		return nil, ErrOutsideRoot
	}
	if !strings.HasSuffix(strings.ToLower(name), ".zip") {
		return nil, ErrNotZip
	}

	for _, p := range []Provenance{ProvenanceScheduled, ProvenanceManual, ProvenanceImported} {
		infos, err := s.listProvenance(p)
		if err != nil {
			return nil, err
		}
		for i := range infos {
			if infos[i].Name == name {
				return &infos[i], nil
			}
		}
	}
	return nil, ErrArchiveMissing
}

// Delete removes exactly one archive file inside the store root.
func (s *Store) Delete(path string) error {
	abs, err := s.Resolve(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(abs); os.IsNotExist(err) {
		return ErrArchiveMissing
	}
	if err := os.Remove(abs); err != nil {
		return fmt.Errorf("failed to delete archive: %w", err)
	}
	logging.Info().Str("path", abs).Msg("Deleted archive")
	return nil
}

// Prune retires old scheduled archives: the keepMinimum newest are always
// kept, and among the remainder anything older than retentionDays is
// deleted. Manual and imported archives are never touched.
func (s *Store) Prune(retentionDays, keepMinimum int) (*PruneResult, error) {
	infos, err := s.listProvenance(ProvenanceScheduled)
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	result := &PruneResult{}

	for i, info := range infos {
		// infos is newest-first; the first keepMinimum are untouchable.
		if i < keepMinimum || !info.CreatedAt.Before(cutoff) {
			result.Kept++
			continue
		}
		if err := os.Remove(info.Path); err != nil {
			logging.Warn().Err(err).Str("path", info.Path).Msg("Failed to prune archive")
			result.Kept++
			continue
		}
		result.Deleted++
		result.Removed = append(result.Removed, info.Name)
		metrics.ArchivesPrunedTotal.Inc()
	}

	logging.Info().
		Int("deleted", result.Deleted).
		Int("kept", result.Kept).
		Int("retention_days", retentionDays).
		Int("keep_minimum", keepMinimum).
		Msg("Retention prune completed")
	return result, nil
}
