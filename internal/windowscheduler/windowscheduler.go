// Package windowscheduler drives the Encoder Pool on and off according to
// the configured rest-window schedule, ticking once a minute and starting
// or stopping the pool as the window opens and closes.
package windowscheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jmylchreest/transcodarr/internal/repository"
)

// Pool is the subset of the Encoder Pool's lifecycle this package drives.
type Pool interface {
	Start(ctx context.Context) error
	Stop()
	Running() bool
}

// HostActiveHours reports the host's active-hours window (start, end,
// "HH:MM" each) when UseHostRestHours is set, and whether it was able to
// determine one at all.
type HostActiveHours interface {
	RestWindow(ctx context.Context) (start, end string, ok bool)
}

// Scheduler ticks the rest-window schedule and starts/stops the Encoder
// Pool to match it.
type Scheduler struct {
	scheduleRepo repository.ScheduleRepository
	pool         Pool
	hostHours    HostActiveHours
	tickInterval time.Duration
	logger       *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Scheduler. hostHours may be nil; when nil, a schedule with
// UseHostRestHours set simply falls back to its own StartTime/EndTime.
func New(scheduleRepo repository.ScheduleRepository, pool Pool, hostHours HostActiveHours, tickInterval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		scheduleRepo: scheduleRepo,
		pool:         pool,
		hostHours:    hostHours,
		tickInterval: tickInterval,
		logger:       logger,
	}
}

// Start launches the tick loop. It does not itself start the pool — the
// first tick evaluates the window and acts accordingly.
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.tickLoop()

	s.logger.Info("window scheduler started", "tick_interval", s.tickInterval)
	return nil
}

// Stop cancels the tick loop and waits for it to exit. It does not stop the
// pool — the caller decides whether an in-progress job should be allowed to
// finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Info("window scheduler stopped")
}

func (s *Scheduler) tickLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if err := s.tick(s.ctx); err != nil {
				s.logger.Error("window scheduler tick failed", "error", err)
			}
		}
	}
}

// tick evaluates the current schedule against now and starts/stops the
// pool if it disagrees with the pool's running state. A manual override
// freezes the pool in whatever state the operator put it in.
func (s *Scheduler) tick(ctx context.Context) error {
	schedule, err := s.scheduleRepo.Get(ctx)
	if err != nil {
		return fmt.Errorf("loading schedule: %w", err)
	}
	if schedule.ManualOverride {
		return nil
	}

	restStart, restEnd := "", ""
	if schedule.UseHostRestHours && s.hostHours != nil {
		if start, end, ok := s.hostHours.RestWindow(ctx); ok {
			restStart, restEnd = start, end
		}
	}

	within := schedule.WithinWindow(time.Now(), restStart, restEnd)
	running := s.pool.Running()

	switch {
	case within && !running:
		s.logger.Info("entering rest window, starting encoder pool")
		if err := s.pool.Start(ctx); err != nil {
			return fmt.Errorf("starting encoder pool: %w", err)
		}
	case !within && running:
		s.logger.Info("leaving rest window, stopping encoder pool")
		s.pool.Stop()
	}
	return nil
}
