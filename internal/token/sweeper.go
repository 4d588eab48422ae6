// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package token

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Sweeper runs both garbage-collection sweeps on a cron schedule.
type Sweeper struct {
	manager *Manager
	cron    *cron.Cron
	timeout time.Duration
	logger  *slog.Logger
}

/*
NewSweeper schedules [Sweeper.RunOnce] with a standard cron spec or a
descriptor such as "@every 1h".

Parameters:
  - manager: *Manager
  - schedule: string
  - timeout: time.Duration (bound on one run)
  - logger: *slog.Logger

Returns:
  - *Sweeper: Not started yet
  - error: An unparsable schedule
*/
func NewSweeper(manager *Manager, schedule string, timeout time.Duration, logger *slog.Logger) (*Sweeper, error) {
	sweeper := &Sweeper{
		manager: manager,
		cron:    cron.New(),
		timeout: timeout,
		logger:  logger,
	}

	if _, err := sweeper.cron.AddFunc(schedule, sweeper.tick); err != nil {
		return nil, fmt.Errorf("token_sweeper_schedule_invalid: %q: %w", schedule, err)
	}
	return sweeper, nil
}

// Start begins the schedule in its own goroutine.
func (sweeper *Sweeper) Start() {
	sweeper.cron.Start()
	sweeper.logger.Info("token_sweeper_started")
}

// Stop halts the schedule and waits for a running sweep, up to ctx.
func (sweeper *Sweeper) Stop(ctx context.Context) {
	done := sweeper.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		sweeper.logger.Warn("token_sweeper_stop_timeout")
	}
}

func (sweeper *Sweeper) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), sweeper.timeout)
	defer cancel()

	if err := sweeper.RunOnce(ctx); err != nil {
		sweeper.logger.Error("token_sweep_failed", slog.String("error", err.Error()))
	}
}

// RunOnce runs the expired and revoked sweeps. Both are idempotent, and a
// failure of one does not skip the other.
func (sweeper *Sweeper) RunOnce(ctx context.Context) error {
	expired, expiredErr := sweeper.manager.SweepExpired(ctx)
	revoked, revokedErr := sweeper.manager.SweepRevoked(ctx)

	sweeper.logger.InfoContext(ctx, "token_sweep_completed",
		slog.Int64("expired_deleted", expired),
		slog.Int64("revoked_deleted", revoked),
	)
	return errors.Join(expiredErr, revokedErr)
}
