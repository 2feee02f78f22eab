// PACTA - Contract Lifecycle Administration
// Copyright 2026 PACTA Project Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pacta-project/pacta

// Package backup implements PACTA's snapshot builder, archive store and
// restore engine.
//
// A snapshot is a single zip archive holding an online copy of the
// database file, the uploads tree and a backup_metadata.json descriptor.
// Archives are cataloged on disk under the store root, partitioned by
// provenance:
//
//	backups/
//	  automatic/   scheduler-produced ("scheduled" provenance)
//	  manual/      operator-produced, including pre-restore safety snapshots
//	  imported/    uploaded from outside the system
//
// Retention pruning applies to automatic/ only; manual and imported
// archives are kept until explicitly deleted. Restores validate the
// archive, take a safety snapshot, then swap the database file (with
// rollback on failure) and the uploads tree (best-effort).
package backup
