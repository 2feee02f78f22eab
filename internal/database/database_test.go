// PACTA - Contract Lifecycle Administration
// Copyright 2026 PACTA Project Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pacta-project/pacta

package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := New(filepath.Join(t.TempDir(), "pacta.db"))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func TestNewCreatesSchema(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	for _, table := range append(TrackedTables, "change_tracking", "actividad_sistema", "notificaciones") {
		var exists int
		err := m.QueryRow(ctx,
			`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&exists)
		if err != nil {
			t.Fatalf("schema check for %s failed: %v", table, err)
		}
		if exists != 1 {
			t.Errorf("table %s missing from schema", table)
		}
	}
}

func TestNewIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pacta.db")

	m1, err := New(path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if _, err := m1.Exec(context.Background(),
		`INSERT INTO usuarios (nombre_usuario, nombre_completo, correo, contrasena) VALUES ('admin', 'Admin', 'a@x', 'h')`); err != nil {
		t.Fatal(err)
	}
	m1.Close()

	m2, err := New(path)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer m2.Close()

	count, err := m2.TableCount(context.Background(), "usuarios")
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("usuarios count after reopen = %d, want 1", count)
	}
}

func TestTableCountMissingTable(t *testing.T) {
	m := newTestManager(t)

	count, err := m.TableCount(context.Background(), "no_such_table")
	if err != nil {
		t.Fatalf("missing table should not error: %v", err)
	}
	if count != 0 {
		t.Errorf("count = %d, want 0 for missing table", count)
	}
}

func TestVacuumIntoProducesUsableCopy(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	if _, err := m.Exec(ctx,
		`INSERT INTO clientes (nombre, codigo) VALUES ('ACME', 'C-001')`); err != nil {
		t.Fatal(err)
	}

	copyPath := filepath.Join(t.TempDir(), "copy.db")
	if err := m.VacuumInto(ctx, copyPath); err != nil {
		t.Fatalf("VacuumInto failed: %v", err)
	}

	copyMgr, err := New(copyPath)
	if err != nil {
		t.Fatalf("copy should open: %v", err)
	}
	defer copyMgr.Close()

	count, err := copyMgr.TableCount(ctx, "clientes")
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("clientes count in copy = %d, want 1", count)
	}
}

func TestReopenAfterFileSwap(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pacta.db")

	m, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()
	ctx := context.Background()

	// Build a replacement database with one row more.
	otherPath := filepath.Join(dir, "other.db")
	other, err := New(otherPath)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := other.Exec(ctx,
		`INSERT INTO usuarios (nombre_usuario, nombre_completo, correo, contrasena) VALUES ('u', 'U', 'u@x', 'h')`); err != nil {
		t.Fatal(err)
	}
	other.Close()

	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(otherPath, path); err != nil {
		t.Fatal(err)
	}
	if err := m.Reopen(); err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}

	count, err := m.TableCount(ctx, "usuarios")
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("usuarios count after swap = %d, want 1", count)
	}
}
