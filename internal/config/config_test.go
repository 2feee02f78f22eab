// PACTA - Contract Lifecycle Administration
// Copyright 2026 PACTA Project Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pacta-project/pacta

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Backup.ScheduleHour != 16 || cfg.Backup.ScheduleMinute != 0 {
		t.Errorf("default schedule = %02d:%02d, want 16:00",
			cfg.Backup.ScheduleHour, cfg.Backup.ScheduleMinute)
	}
	if cfg.Backup.RetentionDays != 7 || cfg.Backup.KeepMinimum != 3 {
		t.Errorf("default retention = %d/%d, want 7/3",
			cfg.Backup.RetentionDays, cfg.Backup.KeepMinimum)
	}
	if cfg.Changelog.PurgeDays != 30 {
		t.Errorf("default purge days = %d, want 30", cfg.Changelog.PurgeDays)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port zero", func(c *Config) { c.Server.Port = 0 }},
		{"hour out of range", func(c *Config) { c.Backup.ScheduleHour = 24 }},
		{"minute out of range", func(c *Config) { c.Backup.ScheduleMinute = 60 }},
		{"retention zero", func(c *Config) { c.Backup.RetentionDays = 0 }},
		{"empty backup dir", func(c *Config) { c.Backup.Dir = "" }},
		{"empty db path", func(c *Config) { c.Database.Path = "" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"db path equals backup dir", func(c *Config) {
			c.Database.Path = "/data/x"
			c.Backup.Dir = "/data/x"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"PACTA_SERVER_PORT", "server.port"},
		{"PACTA_BACKUP_SCHEDULE_HOUR", "backup.schedule_hour"},
		{"PACTA_DATABASE_UPLOADS_DIR", "database.uploads_dir"},
		{"PACTA_CHANGELOG_STRICT_MARKING", "changelog.strict_marking"},
		{"PACTA_LOGGING_LEVEL", "logging.level"},
	}

	for _, tt := range tests {
		if got := envTransformFunc(tt.in); got != tt.want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLoadLayering(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  port: 9090
backup:
  schedule_hour: 2
  retention_days: 14
`
	if err := os.WriteFile(configPath, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv(ConfigPathEnvVar, configPath)
	t.Setenv("PACTA_BACKUP_SCHEDULE_HOUR", "5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	// File overrides defaults.
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090 (from file)", cfg.Server.Port)
	}
	if cfg.Backup.RetentionDays != 14 {
		t.Errorf("retention = %d, want 14 (from file)", cfg.Backup.RetentionDays)
	}
	// Env overrides file.
	if cfg.Backup.ScheduleHour != 5 {
		t.Errorf("schedule hour = %d, want 5 (from env)", cfg.Backup.ScheduleHour)
	}
	// Defaults survive where nothing overrides.
	if cfg.Backup.KeepMinimum != 3 {
		t.Errorf("keep minimum = %d, want default 3", cfg.Backup.KeepMinimum)
	}
}

func TestLoadCORSOriginsFromEnv(t *testing.T) {
	t.Setenv("PACTA_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if len(cfg.Server.CORSOrigins) != 2 ||
		cfg.Server.CORSOrigins[0] != "https://a.example" ||
		cfg.Server.CORSOrigins[1] != "https://b.example" {
		t.Errorf("cors origins = %v, want split pair", cfg.Server.CORSOrigins)
	}
}
