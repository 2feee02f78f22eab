// PACTA - Contract Lifecycle Administration
// Copyright 2026 PACTA Project Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pacta-project/pacta

package api

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/pacta-project/pacta/internal/activity"
	"github.com/pacta-project/pacta/internal/backup"
	"github.com/pacta-project/pacta/internal/changelog"
	"github.com/pacta-project/pacta/internal/config"
	"github.com/pacta-project/pacta/internal/database"
	"github.com/pacta-project/pacta/internal/scheduler"
)

// stubJobs records scheduler calls without running anything.
type stubJobs struct {
	triggered   int
	enabled     bool
	hour        int
	minute      int
	rescheduled bool
}

func (s *stubJobs) TriggerManualBackup(ctx context.Context) error { s.triggered++; return nil }

func (s *stubJobs) RescheduleDailyBackup(hour, minute int) error {
	if hour < 0 || hour > 23 {
		return fmt.Errorf("hour must be between 0 and 23, got %d", hour)
	}
	if minute < 0 || minute > 59 {
		return fmt.Errorf("minute must be between 0 and 59, got %d", minute)
	}
	s.hour, s.minute, s.rescheduled = hour, minute, true
	return nil
}

func (s *stubJobs) EnableDailyBackup(enabled bool) { s.enabled = enabled }

func (s *stubJobs) Schedule() (bool, int, int) { return s.enabled, s.hour, s.minute }

func (s *stubJobs) JobStatuses() []scheduler.JobStatus {
	return []scheduler.JobStatus{{Name: scheduler.JobDailyBackup, Enabled: s.enabled}}
}

type testServer struct {
	srv    *httptest.Server
	db     *database.Manager
	store  *backup.Store
	ledger *changelog.Ledger
	jobs   *stubJobs
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	root := t.TempDir()

	db, err := database.New(filepath.Join(root, "pacta.db"))
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	uploadsDir := filepath.Join(root, "uploads")
	if err := os.MkdirAll(filepath.Join(uploadsDir, "contratos"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(uploadsDir, "contratos", "c1.pdf"), []byte("doc"), 0o644); err != nil {
		t.Fatal(err)
	}

	store, err := backup.NewStore(filepath.Join(root, "backups"))
	if err != nil {
		t.Fatal(err)
	}

	log := activity.NewLog(db)
	ledger := changelog.NewLedger(db, nil)
	creator := backup.NewCreator(db, store, uploadsDir, log)
	restorer := backup.NewRestorer(db, store, creator, uploadsDir, log)

	jobs := &stubJobs{enabled: true, hour: 16}
	handler := NewHandler(store, creator, restorer, ledger, jobs, config.BackupConfig{
		Dir:           store.Root(),
		RetentionDays: 7,
		KeepMinimum:   3,
	})

	router := NewRouter(handler, config.ServerConfig{Host: "127.0.0.1", Port: 8080})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testServer{srv: srv, db: db, store: store, ledger: ledger, jobs: jobs}
}

// envelope decodes the standard response wrapper, leaving data raw.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatal(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decoding envelope: %v", err)
	}
	return resp, env
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	resp, env := doJSON(t, http.MethodGet, ts.srv.URL+"/healthz", nil)
	if resp.StatusCode != http.StatusOK || !env.Success {
		t.Fatalf("healthz: status %d, success %v", resp.StatusCode, env.Success)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
}

func TestCreateListDeleteBackup(t *testing.T) {
	ts := newTestServer(t)

	resp, env := doJSON(t, http.MethodPost, ts.srv.URL+"/api/backup/create",
		map[string]string{"label": "antes de migración", "reason": "prueba"})
	if resp.StatusCode != http.StatusCreated || !env.Success {
		t.Fatalf("create: status %d, success %v, error %+v", resp.StatusCode, env.Success, env.Error)
	}
	var created backup.SnapshotResult
	if err := json.Unmarshal(env.Data, &created); err != nil {
		t.Fatal(err)
	}
	if created.Provenance != backup.ProvenanceManual {
		t.Errorf("provenance = %s, want manual", created.Provenance)
	}

	resp, env = doJSON(t, http.MethodGet, ts.srv.URL+"/api/backup/list", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list: status %d", resp.StatusCode)
	}
	var listing struct {
		Total   int                                        `json:"total"`
		Backups map[backup.Provenance][]backup.ArchiveInfo `json:"backups"`
	}
	if err := json.Unmarshal(env.Data, &listing); err != nil {
		t.Fatal(err)
	}
	if listing.Total != 1 || len(listing.Backups[backup.ProvenanceManual]) != 1 {
		t.Fatalf("listing = %+v, want 1 manual archive", listing)
	}

	resp, env = doJSON(t, http.MethodDelete, ts.srv.URL+"/api/backup/"+created.Name, nil)
	if resp.StatusCode != http.StatusOK || !env.Success {
		t.Fatalf("delete: status %d, error %+v", resp.StatusCode, env.Error)
	}

	resp, _ = doJSON(t, http.MethodDelete, ts.srv.URL+"/api/backup/"+created.Name, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("second delete: status %d, want 404", resp.StatusCode)
	}
}

func TestDownloadBackup(t *testing.T) {
	ts := newTestServer(t)

	_, env := doJSON(t, http.MethodPost, ts.srv.URL+"/api/backup/create", nil)
	var created backup.SnapshotResult
	if err := json.Unmarshal(env.Data, &created); err != nil {
		t.Fatal(err)
	}

	resp, err := http.Get(ts.srv.URL + "/api/backup/download/" + created.Name)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("download: status %d", resp.StatusCode)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, created.Name) {
		t.Errorf("Content-Disposition = %q", cd)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if len(body) == 0 || string(body[:2]) != "PK" {
		t.Error("download body is not a zip")
	}
}

func buildImportZip(t *testing.T, withMeta bool) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	fw, err := zw.Create(backup.DatabaseEntryName)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write([]byte("not a real db, container checks only")); err != nil {
		t.Fatal(err)
	}
	if withMeta {
		mw, err := zw.Create(backup.MetadataEntryName)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := mw.Write([]byte(`{"backup_type":"manual","version":"1.0","database_stats":{}}`)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func postImport(t *testing.T, url string, filename string, content []byte) (*http.Response, envelope) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	resp, err := http.Post(url+"/api/backup/import", mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatal(err)
	}
	return resp, env
}

func TestImportBackup(t *testing.T) {
	ts := newTestServer(t)

	resp, env := postImport(t, ts.srv.URL, "externo.zip", buildImportZip(t, true))
	if resp.StatusCode != http.StatusCreated || !env.Success {
		t.Fatalf("import: status %d, error %+v", resp.StatusCode, env.Error)
	}
	var info backup.ArchiveInfo
	if err := json.Unmarshal(env.Data, &info); err != nil {
		t.Fatal(err)
	}
	if info.Provenance != backup.ProvenanceImported {
		t.Errorf("provenance = %s, want imported", info.Provenance)
	}

	// Missing metadata descriptor is rejected.
	resp, env = postImport(t, ts.srv.URL, "sinmeta.zip", buildImportZip(t, false))
	if resp.StatusCode != http.StatusUnprocessableEntity || env.Success {
		t.Errorf("import without metadata: status %d, success %v", resp.StatusCode, env.Success)
	}

	// Garbage bytes are rejected.
	resp, _ = postImport(t, ts.srv.URL, "basura.zip", []byte("this is not a zip"))
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("garbage import: status %d, want 422", resp.StatusCode)
	}
}

func TestValidateAndRestore(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	if _, err := ts.db.Exec(ctx,
		`INSERT INTO usuarios (nombre_usuario, nombre_completo, correo, contrasena, rol)
		 VALUES ('admin', 'Administrador', 'admin@pacta.local', 'x', 'administrador')`); err != nil {
		t.Fatal(err)
	}

	_, env := doJSON(t, http.MethodPost, ts.srv.URL+"/api/backup/create", nil)
	var created backup.SnapshotResult
	if err := json.Unmarshal(env.Data, &created); err != nil {
		t.Fatal(err)
	}

	resp, env := doJSON(t, http.MethodGet, ts.srv.URL+"/api/backup/validate/"+created.Name, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("validate: status %d", resp.StatusCode)
	}
	var validation backup.ValidationResult
	if err := json.Unmarshal(env.Data, &validation); err != nil {
		t.Fatal(err)
	}
	if !validation.Valid {
		t.Fatalf("validation failed: %s", validation.Error)
	}

	resp, env = doJSON(t, http.MethodPost, ts.srv.URL+"/api/backup/restore",
		map[string]any{"name": created.Name, "skip_safety_snapshot": true})
	if resp.StatusCode != http.StatusOK || !env.Success {
		t.Fatalf("restore: status %d, error %+v", resp.StatusCode, env.Error)
	}
	var result backup.RestoreResult
	if err := json.Unmarshal(env.Data, &result); err != nil {
		t.Fatal(err)
	}
	if !result.Success {
		t.Fatalf("restore result: %+v", result)
	}

	resp, _ = doJSON(t, http.MethodPost, ts.srv.URL+"/api/backup/restore",
		map[string]any{"name": "no-existe.zip"})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("restore of missing archive: status %d, want 404", resp.StatusCode)
	}
}

func TestPendingChangesEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	resp, env := doJSON(t, http.MethodGet, ts.srv.URL+"/api/backup/changes", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("changes: status %d", resp.StatusCode)
	}
	var report changelog.PendingReport
	if err := json.Unmarshal(env.Data, &report); err != nil {
		t.Fatal(err)
	}
	if report.HasChanges {
		t.Error("fresh ledger should have no pending changes")
	}

	id := int64(1)
	ts.ledger.Record(ctx, "contratos", changelog.OpInsert, &id, nil)

	_, env = doJSON(t, http.MethodGet, ts.srv.URL+"/api/backup/changes", nil)
	if err := json.Unmarshal(env.Data, &report); err != nil {
		t.Fatal(err)
	}
	if !report.HasChanges || report.TotalChanges != 1 {
		t.Errorf("report = %+v, want 1 pending change", report)
	}

	resp, _ = doJSON(t, http.MethodGet, ts.srv.URL+"/api/backup/changes/summary?days=400", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("summary days=400: status %d, want 400", resp.StatusCode)
	}
}

func TestStatusEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp, env := doJSON(t, http.MethodGet, ts.srv.URL+"/api/backup/status", nil)
	if resp.StatusCode != http.StatusOK || !env.Success {
		t.Fatalf("status: %d, error %+v", resp.StatusCode, env.Error)
	}
	var status struct {
		ArchiveCounts map[string]int `json:"archive_counts"`
		Schedule      struct {
			Enabled bool `json:"enabled"`
			Hour    int  `json:"hour"`
		} `json:"schedule"`
	}
	if err := json.Unmarshal(env.Data, &status); err != nil {
		t.Fatal(err)
	}
	if !status.Schedule.Enabled || status.Schedule.Hour != 16 {
		t.Errorf("schedule = %+v", status.Schedule)
	}
}

func TestSchedulerEndpoints(t *testing.T) {
	ts := newTestServer(t)

	resp, env := doJSON(t, http.MethodPost, ts.srv.URL+"/api/backup/scheduler/trigger", nil)
	if resp.StatusCode != http.StatusOK || !env.Success {
		t.Fatalf("trigger: status %d", resp.StatusCode)
	}
	if ts.jobs.triggered != 1 {
		t.Errorf("triggered = %d, want 1", ts.jobs.triggered)
	}

	resp, _ = doJSON(t, http.MethodPost, ts.srv.URL+"/api/backup/scheduler/reschedule",
		map[string]int{"hour": 24, "minute": 0})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("reschedule hour=24: status %d, want 400", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodPost, ts.srv.URL+"/api/backup/scheduler/reschedule",
		map[string]int{"hour": 4, "minute": 30})
	if resp.StatusCode != http.StatusOK || ts.jobs.hour != 4 || ts.jobs.minute != 30 {
		t.Errorf("reschedule: status %d, schedule %d:%d", resp.StatusCode, ts.jobs.hour, ts.jobs.minute)
	}

	resp, env = doJSON(t, http.MethodGet, ts.srv.URL+"/api/backup/scheduler/jobs", nil)
	if resp.StatusCode != http.StatusOK || !env.Success {
		t.Errorf("jobs: status %d", resp.StatusCode)
	}
}

func TestConfigEndpoints(t *testing.T) {
	ts := newTestServer(t)

	resp, env := doJSON(t, http.MethodPost, ts.srv.URL+"/api/backup/config",
		map[string]any{"retention_days": 14, "keep_minimum": 5, "schedule_enabled": false})
	if resp.StatusCode != http.StatusOK || !env.Success {
		t.Fatalf("save config: status %d, error %+v", resp.StatusCode, env.Error)
	}

	_, env = doJSON(t, http.MethodGet, ts.srv.URL+"/api/backup/config", nil)
	var view backupConfigView
	if err := json.Unmarshal(env.Data, &view); err != nil {
		t.Fatal(err)
	}
	if view.RetentionDays != 14 || view.KeepMinimum != 5 || view.ScheduleEnabled {
		t.Errorf("config after save = %+v", view)
	}

	resp, _ = doJSON(t, http.MethodPost, ts.srv.URL+"/api/backup/config",
		map[string]any{"retention_days": 0})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("retention_days=0: status %d, want 400", resp.StatusCode)
	}
}

func TestRestoreHistoryEndpoint(t *testing.T) {
	ts := newTestServer(t)

	_, env := doJSON(t, http.MethodPost, ts.srv.URL+"/api/backup/create", nil)
	var created backup.SnapshotResult
	if err := json.Unmarshal(env.Data, &created); err != nil {
		t.Fatal(err)
	}
	if _, env = doJSON(t, http.MethodPost, ts.srv.URL+"/api/backup/restore",
		map[string]any{"name": created.Name, "skip_safety_snapshot": true}); !env.Success {
		t.Fatalf("restore failed: %+v", env.Error)
	}

	resp, env := doJSON(t, http.MethodGet, ts.srv.URL+"/api/backup/restore/history", nil)
	if resp.StatusCode != http.StatusOK || !env.Success {
		t.Fatalf("history: status %d", resp.StatusCode)
	}
	var history struct {
		History []activity.Entry `json:"history"`
	}
	if err := json.Unmarshal(env.Data, &history); err != nil {
		t.Fatal(err)
	}
	if len(history.History) != 1 {
		t.Errorf("history entries = %d, want 1", len(history.History))
	}
}

// Rate limiting kicks in when configured with a tiny budget.
func TestRateLimit(t *testing.T) {
	limited := RateLimit(2, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	srv := httptest.NewServer(limited)
	defer srv.Close()

	var last int
	for i := 0; i < 3; i++ {
		resp, err := http.Get(srv.URL)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		last = resp.StatusCode
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("third request: status %d, want 429", last)
	}
}
