// PACTA - Contract Lifecycle Administration
// Copyright 2026 PACTA Project Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pacta-project/pacta

package backup

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
)

// zipDirectory compresses the contents of srcDir into a zip archive at
// destPath. Entry names are relative to srcDir with forward slashes.
func zipDirectory(srcDir, destPath string) error {
	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)

	err = filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}

		header, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		header.Name = filepath.ToSlash(rel)
		header.Method = zip.Deflate

		w, err := zw.CreateHeader(header)
		if err != nil {
			return err
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		_, err = io.Copy(w, f)
		return err
	})
	if err != nil {
		zw.Close()
		return fmt.Errorf("failed to add files to archive: %w", err)
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finalize archive: %w", err)
	}
	return out.Sync()
}

// extractZip unpacks the archive at srcPath into destDir, rejecting
// entries that would escape destDir.
func extractZip(srcPath, destDir string) error {
	r, err := zip.OpenReader(srcPath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		destPath, err := validateEntryPath(destDir, f.Name)
		if err != nil {
			return err
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(destPath, 0o755); err != nil {
				return err
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
			return err
		}
		if err := extractZipFile(f, destPath); err != nil {
			return fmt.Errorf("failed to extract %s: %w", f.Name, err)
		}
	}
	return nil
}

// validateEntryPath joins an archive entry name onto destDir and verifies
// the result stays inside destDir. Guards against zip-slip entries.
func validateEntryPath(destDir, name string) (string, error) {
	destPath := filepath.Join(destDir, filepath.FromSlash(name))
	cleanDest := filepath.Clean(destDir) + string(os.PathSeparator)
	if !strings.HasPrefix(filepath.Clean(destPath)+string(os.PathSeparator), cleanDest) {
		return "", fmt.Errorf("archive entry %q escapes extraction directory", name)
	}
	return destPath, nil
}

func extractZipFile(f *zip.File, destPath string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, rc); err != nil {
		return err
	}
	return out.Sync()
}

// inspectArchive opens the archive and reports whether it carries an
// embedded database file, a metadata descriptor, and an uploads tree.
// A container that cannot be opened yields an error.
func inspectArchive(path string) (hasDB, hasMeta, hasUploads bool, err error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return false, false, false, fmt.Errorf("invalid archive: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		name := f.Name
		switch {
		case name == MetadataEntryName:
			hasMeta = true
		case strings.HasPrefix(name, UploadsEntryDir+"/"):
			hasUploads = true
		case !strings.Contains(name, "/") && strings.HasSuffix(name, ".db"):
			hasDB = true
		}
	}
	return hasDB, hasMeta, hasUploads, nil
}

// checkZipIntegrity reads every entry to the end, verifying stored CRCs.
func checkZipIntegrity(path string) error {
	r, err := zip.OpenReader(path)
	if err != nil {
		return fmt.Errorf("invalid archive: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("corrupt entry %s: %w", f.Name, err)
		}
		_, err = io.Copy(io.Discard, rc)
		rc.Close()
		if err != nil {
			return fmt.Errorf("corrupt entry %s: %w", f.Name, err)
		}
	}
	return nil
}

// readArchiveMetadata parses backup_metadata.json out of the archive.
func readArchiveMetadata(path string) (*Metadata, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("invalid archive: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		if f.Name != MetadataEntryName {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()

		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, err
		}
		meta := &Metadata{}
		if err := json.Unmarshal(data, meta); err != nil {
			return nil, fmt.Errorf("unparseable metadata: %w", err)
		}
		return meta, nil
	}
	return nil, ErrMissingMeta
}

// databaseEntryName returns the name of the first top-level .db entry.
func databaseEntryName(path string) (string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("invalid archive: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		if !strings.Contains(f.Name, "/") && strings.HasSuffix(f.Name, ".db") {
			return f.Name, nil
		}
	}
	return "", ErrMissingDB
}

// copyFile copies src to dst, fsyncing the destination before returning.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}

// copyDir recursively copies the directory tree at src to dst.
func copyDir(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target)
	})
}
