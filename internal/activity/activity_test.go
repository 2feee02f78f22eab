// PACTA - Contract Lifecycle Administration
// Copyright 2026 PACTA Project Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pacta-project/pacta

package activity

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pacta-project/pacta/internal/database"
)

func newTestLog(t *testing.T) *Log {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "pacta.db"))
	if err != nil {
		t.Fatalf("database.New() failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewLog(db)
}

func TestRecordAndRecent(t *testing.T) {
	log := newTestLog(t)
	ctx := context.Background()

	actor := int64(7)
	log.Record(ctx, &actor, "BACKUP_MANUAL", "", nil, map[string]string{"backup": "x.zip"})
	log.Record(ctx, nil, "RESTORE", "contratos", nil, nil)

	entries, err := log.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}

	// Newest first.
	if entries[0].Action != "RESTORE" {
		t.Errorf("first entry action = %q, want RESTORE", entries[0].Action)
	}
	if entries[0].Table != "contratos" {
		t.Errorf("first entry table = %q, want contratos", entries[0].Table)
	}
	if entries[1].ActorID == nil || *entries[1].ActorID != 7 {
		t.Errorf("backup entry actor = %v, want 7", entries[1].ActorID)
	}
	if !strings.Contains(entries[1].Details, `"backup":"x.zip"`) {
		t.Errorf("details = %q, want serialized payload", entries[1].Details)
	}
}

func TestRecentByActionPrefix(t *testing.T) {
	log := newTestLog(t)
	ctx := context.Background()

	log.Record(ctx, nil, "BACKUP_SCHEDULED", "", nil, nil)
	log.Record(ctx, nil, "RESTORE", "", nil, nil)
	log.Record(ctx, nil, "BACKUP_MANUAL", "", nil, nil)

	entries, err := log.RecentByAction(ctx, ActionBackupPrefix, 10)
	if err != nil {
		t.Fatalf("RecentByAction failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d backup entries, want 2", len(entries))
	}
	for _, e := range entries {
		if !strings.HasPrefix(e.Action, ActionBackupPrefix) {
			t.Errorf("unexpected action %q", e.Action)
		}
	}
}

func TestRecordNeverFails(t *testing.T) {
	log := newTestLog(t)

	// Unserializable details must not panic or surface an error.
	log.Record(context.Background(), nil, "BACKUP_MANUAL", "", nil, map[string]any{"bad": func() {}})

	entries, err := log.Recent(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("entry should still be recorded without details, got %d", len(entries))
	}
	if entries[0].Details != "" {
		t.Errorf("details should be empty after serialization failure, got %q", entries[0].Details)
	}
}
