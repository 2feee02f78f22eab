// PACTA - Contract Lifecycle Administration
// Copyright 2026 PACTA Project Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pacta-project/pacta

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordBackupOutcomes(t *testing.T) {
	before := testutil.ToFloat64(BackupsTotal.WithLabelValues("manual", "success"))
	RecordBackup("manual", 2*time.Second, 1024, nil)
	after := testutil.ToFloat64(BackupsTotal.WithLabelValues("manual", "success"))
	if after != before+1 {
		t.Errorf("success counter = %v, want %v", after, before+1)
	}
	if got := testutil.ToFloat64(BackupSizeBytes); got != 1024 {
		t.Errorf("size gauge = %v, want 1024", got)
	}

	beforeFail := testutil.ToFloat64(BackupsTotal.WithLabelValues("scheduled", "failure"))
	RecordBackup("scheduled", 0, 0, errors.New("boom"))
	afterFail := testutil.ToFloat64(BackupsTotal.WithLabelValues("scheduled", "failure"))
	if afterFail != beforeFail+1 {
		t.Errorf("failure counter = %v, want %v", afterFail, beforeFail+1)
	}
}

func TestRecordRestore(t *testing.T) {
	before := testutil.ToFloat64(RestoresTotal.WithLabelValues("failure"))
	RecordRestore(errors.New("bad archive"))
	after := testutil.ToFloat64(RestoresTotal.WithLabelValues("failure"))
	if after != before+1 {
		t.Errorf("restore failure counter = %v, want %v", after, before+1)
	}
}

func TestPendingChangesGauge(t *testing.T) {
	PendingChanges.Set(42)
	if got := testutil.ToFloat64(PendingChanges); got != 42 {
		t.Errorf("pending gauge = %v, want 42", got)
	}
}
