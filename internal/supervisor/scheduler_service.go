// PACTA - Contract Lifecycle Administration
// Copyright 2026 PACTA Project Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pacta-project/pacta

package supervisor

import (
	"context"
)

// JobRunner matches the scheduler's lifecycle methods.
type JobRunner interface {
	Start(ctx context.Context) error
	Stop()
}

// SchedulerService runs the job scheduler under supervision.
type SchedulerService struct {
	runner JobRunner
}

// NewSchedulerService wraps a scheduler for supervision.
func NewSchedulerService(runner JobRunner) *SchedulerService {
	return &SchedulerService{runner: runner}
}

// Serve implements suture.Service. Stop waits for any in-flight job, so
// shutdown never interrupts a snapshot mid-write.
func (s *SchedulerService) Serve(ctx context.Context) error {
	if err := s.runner.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	s.runner.Stop()
	return ctx.Err()
}

func (s *SchedulerService) String() string { return "scheduler" }
