package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

const DefaultSweepSchedule = "@every 1m"

// Sweeper removes expired sessions on a cron schedule.
type Sweeper struct {
	cron   *cron.Cron
	store  *Store
	logger *slog.Logger
}

func NewSweeper(store *Store, schedule string, logger *slog.Logger) (*Sweeper, error) {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Sweeper{
		cron:   cron.New(),
		store:  store,
		logger: logger,
	}
	if _, err := s.cron.AddFunc(schedule, func() { s.Sweep() }); err != nil {
		return nil, fmt.Errorf("schedule session sweep %q: %w", schedule, err)
	}
	return s, nil
}

// Sweep runs one cleanup pass.
func (s *Sweeper) Sweep() int {
	removed := s.store.CleanExpired()
	if removed > 0 {
		s.logger.Info("expired sessions removed", "removed", removed, "active", s.store.Size())
	}
	return removed
}

func (s *Sweeper) Start() {
	s.logger.Info("session sweeper started", "entries", len(s.cron.Entries()))
	s.cron.Start()
}

// Stop halts the schedule and waits for a running sweep, or for ctx.
func (s *Sweeper) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("session sweeper stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
