// PACTA - Contract Lifecycle Administration
// Copyright 2026 PACTA Project Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pacta-project/pacta

package database

import (
	"context"
	"fmt"
)

// TrackedTables are the business tables whose mutations feed the change
// ledger and whose row counts go into snapshot metadata.
var TrackedTables = []string{
	"usuarios",
	"clientes",
	"contratos",
	"suplementos",
	"personas_responsables",
	"documentos_contratos",
}

// schema is idempotent; every statement is CREATE IF NOT EXISTS so an
// existing (or freshly restored) database passes through untouched.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS usuarios (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		nombre_usuario TEXT NOT NULL UNIQUE,
		nombre_completo TEXT NOT NULL,
		correo TEXT NOT NULL UNIQUE,
		contrasena TEXT NOT NULL,
		rol TEXT NOT NULL DEFAULT 'usuario',
		activo INTEGER NOT NULL DEFAULT 1,
		fecha_creacion TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS clientes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		nombre TEXT NOT NULL,
		codigo TEXT UNIQUE,
		direccion TEXT,
		telefono TEXT,
		correo TEXT,
		fecha_creacion TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS contratos (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		numero_contrato TEXT NOT NULL UNIQUE,
		cliente_id INTEGER NOT NULL REFERENCES clientes(id),
		objeto TEXT,
		monto REAL,
		fecha_inicio DATE,
		fecha_fin DATE,
		estado TEXT NOT NULL DEFAULT 'vigente',
		fecha_creacion TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS suplementos (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		contrato_id INTEGER NOT NULL REFERENCES contratos(id),
		numero TEXT,
		descripcion TEXT,
		monto REAL,
		fecha DATE,
		fecha_creacion TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS personas_responsables (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		nombre TEXT NOT NULL,
		cargo TEXT,
		correo TEXT,
		telefono TEXT,
		cliente_id INTEGER REFERENCES clientes(id)
	)`,
	`CREATE TABLE IF NOT EXISTS documentos_contratos (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		contrato_id INTEGER NOT NULL REFERENCES contratos(id),
		nombre_archivo TEXT NOT NULL,
		ruta_archivo TEXT NOT NULL,
		tipo TEXT,
		fecha_subida TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS notificaciones (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		usuario_id INTEGER REFERENCES usuarios(id),
		mensaje TEXT NOT NULL,
		leida INTEGER NOT NULL DEFAULT 0,
		fecha_creacion TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS actividad_sistema (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		usuario_id INTEGER,
		accion TEXT NOT NULL,
		tabla_afectada TEXT,
		registro_id INTEGER,
		detalles TEXT,
		fecha_actividad TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS change_tracking (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		table_name TEXT NOT NULL,
		operation TEXT NOT NULL,
		record_id INTEGER,
		change_data TEXT,
		timestamp TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		backup_processed INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_change_tracking_table ON change_tracking(table_name)`,
	`CREATE INDEX IF NOT EXISTS idx_change_tracking_timestamp ON change_tracking(timestamp)`,
	`CREATE INDEX IF NOT EXISTS idx_change_tracking_processed ON change_tracking(backup_processed)`,
	`CREATE INDEX IF NOT EXISTS idx_actividad_fecha ON actividad_sistema(fecha_actividad)`,
	`CREATE INDEX IF NOT EXISTS idx_actividad_accion ON actividad_sistema(accion)`,
}

// ensureSchema applies the schema statements in order.
func (m *Manager) ensureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
