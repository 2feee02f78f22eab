// PACTA - Contract Lifecycle Administration
// Copyright 2026 PACTA Project Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pacta-project/pacta

// Package database manages the PACTA SQLite database file.
//
// The whole application state lives in a single SQLite file plus the
// uploads/ tree next to it. The backup subsystem copies that file with
// VACUUM INTO so readers and writers are never blocked while a snapshot
// is taken, and swaps it wholesale on restore, after which Reopen
// re-initializes the connection pool against the new file.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver, registered as "sqlite"

	"github.com/pacta-project/pacta/internal/logging"
)

// Manager owns the connection pool to the PACTA database file.
type Manager struct {
	mu   sync.RWMutex
	db   *sql.DB
	path string
}

// New opens (creating if needed) the database at path and ensures the
// PACTA schema exists.
func New(path string) (*Manager, error) {
	m := &Manager{path: path}
	if err := m.open(); err != nil {
		return nil, err
	}
	if err := m.ensureSchema(context.Background()); err != nil {
		m.db.Close()
		return nil, err
	}
	return m, nil
}

// open initializes the pool. Callers must hold mu or be the constructor.
func (m *Manager) open() error {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", m.path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database %s: %w", m.path, err)
	}

	// SQLite serializes writers; a small pool avoids lock churn.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping database %s: %w", m.path, err)
	}

	m.db = db
	return nil
}

// Path returns the database file path.
func (m *Manager) Path() string {
	return m.path
}

// Query runs a query returning rows.
func (m *Manager) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.db.QueryContext(ctx, query, args...)
}

// QueryRow runs a query expected to return at most one row.
func (m *Manager) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.db.QueryRowContext(ctx, query, args...)
}

// Exec runs a statement without returning rows.
func (m *Manager) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.db.ExecContext(ctx, query, args...)
}

// TableCount returns the row count of table. A missing table yields 0
// rather than an error: restored databases from older deployments may
// lack newer tables, and snapshot metadata must still be writable.
func (m *Manager) TableCount(ctx context.Context, table string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var exists int
	err := m.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&exists)
	if err != nil {
		return 0, fmt.Errorf("failed to check table %s: %w", table, err)
	}
	if exists == 0 {
		return 0, nil
	}

	var count int64
	// Table names cannot be bound parameters; the name was just verified
	// against sqlite_master.
	err = m.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %q`, table)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count table %s: %w", table, err)
	}
	return count, nil
}

// VacuumInto writes a compacted, consistent copy of the live database to
// destPath without taking an exclusive lock.
func (m *Manager) VacuumInto(ctx context.Context, destPath string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, err := m.db.ExecContext(ctx, `VACUUM INTO ?`, destPath); err != nil {
		return fmt.Errorf("vacuum into %s: %w", destPath, err)
	}
	return nil
}

// Reopen closes the pool and opens it again against the same path.
// Called after a restore swaps the underlying file.
func (m *Manager) Reopen() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.db != nil {
		if err := m.db.Close(); err != nil {
			logging.Warn().Err(err).Msg("Failed to close database before reopen")
		}
	}
	return m.open()
}

// Close shuts down the connection pool.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.db == nil {
		return nil
	}
	err := m.db.Close()
	m.db = nil
	return err
}
