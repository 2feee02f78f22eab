// PACTA - Contract Lifecycle Administration
// Copyright 2026 PACTA Project Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pacta-project/pacta

// Package config loads and validates PACTA service configuration.
//
// Configuration is layered with koanf: built-in defaults, then an optional
// YAML file, then PACTA_* environment variables. Precedence: ENV > file >
// defaults.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the root configuration for the PACTA backup service.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Backup    BackupConfig    `koanf:"backup"`
	Changelog ChangelogConfig `koanf:"changelog"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig configures the HTTP API listener.
type ServerConfig struct {
	Host            string        `koanf:"host" validate:"required"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	Timeout         time.Duration `koanf:"timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs" validate:"min=0"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// DatabaseConfig configures the SQLite database and the uploads tree.
type DatabaseConfig struct {
	Path       string `koanf:"path" validate:"required"`
	UploadsDir string `koanf:"uploads_dir" validate:"required"`
}

// BackupConfig configures the archive store, schedule and retention.
type BackupConfig struct {
	// Dir is the archive store root; automatic/, manual/ and imported/
	// live beneath it.
	Dir string `koanf:"dir" validate:"required"`

	// ScheduleEnabled controls the daily automatic backup job.
	ScheduleEnabled bool `koanf:"schedule_enabled"`

	// ScheduleHour/ScheduleMinute set the local time of the daily backup.
	ScheduleHour   int `koanf:"schedule_hour" validate:"min=0,max=23"`
	ScheduleMinute int `koanf:"schedule_minute" validate:"min=0,max=59"`

	// RetentionDays and KeepMinimum drive the nightly prune of the
	// automatic/ directory.
	RetentionDays int `koanf:"retention_days" validate:"min=1"`
	KeepMinimum   int `koanf:"keep_minimum" validate:"min=0"`
}

// ChangelogConfig configures the change ledger.
type ChangelogConfig struct {
	// PurgeDays is how long processed ledger entries are kept.
	PurgeDays int `koanf:"purge_days" validate:"min=1"`

	// StrictMarking scopes mark-processed to entries recorded before the
	// snapshot started, instead of flipping everything pending at the time
	// the snapshot finishes.
	StrictMarking bool `koanf:"strict_marking"`
}

// LoggingConfig configures the zerolog facade.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config with all defaults applied. Defaults match
// the behavior of the original PACTA deployment: daily backup at 16:00,
// 7-day/keep-3 retention, 30-day ledger purge.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			Timeout:         30 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: 1 * time.Minute,
		},
		Database: DatabaseConfig{
			Path:       "/data/pacta.db",
			UploadsDir: "/data/uploads",
		},
		Backup: BackupConfig{
			Dir:             "/data/backups",
			ScheduleEnabled: true,
			ScheduleHour:    16,
			ScheduleMinute:  0,
			RetentionDays:   7,
			KeepMinimum:     3,
		},
		Changelog: ChangelogConfig{
			PurgeDays:     30,
			StrictMarking: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Database.Path == c.Backup.Dir {
		return fmt.Errorf("database path and backup dir must differ")
	}
	return nil
}
