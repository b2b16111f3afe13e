package memory

import (
	"context"
	"log/slog"
	"time"
)

// vitalityDecayer lets the scheduler tick persona vitality without a
// package cycle.
type vitalityDecayer interface {
	DecayVitality(ctx context.Context) (int, error)
}

// Scheduler periodically recalculates decay scores, expires stale
// working memory, and decays persona vitality.
type Scheduler struct {
	store    *Store
	personas vitalityDecayer
	interval time.Duration
	logger   *slog.Logger
}

// NewScheduler creates a maintenance scheduler. personas may be nil
// when vitality decay is not wanted (tests).
func NewScheduler(store *Store, personas vitalityDecayer, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &Scheduler{
		store:    store,
		personas: personas,
		interval: interval,
		logger:   logger.With("component", "scheduler"),
	}
}

// Run blocks until ctx is canceled, executing a maintenance cycle on
// each tick. Callers must track the goroutine with a WaitGroup.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

// runOnce executes a single decay + expiry cycle.
func (s *Scheduler) runOnce(ctx context.Context) {
	if n, err := s.store.UpdateDecayScores(ctx); err != nil {
		s.logger.Warn("decay update failed", "error", err)
	} else if n > 0 {
		s.logger.Debug("decay scores updated", "count", n)
	}

	if n, err := s.store.DeleteStale(ctx); err != nil {
		s.logger.Warn("stale expiry failed", "error", err)
	} else if n > 0 {
		s.logger.Info("deleted stale working memories", "count", n)
	}

	if s.personas != nil {
		if n, err := s.personas.DecayVitality(ctx); err != nil {
			s.logger.Warn("vitality decay failed", "error", err)
		} else if n > 0 {
			s.logger.Debug("persona vitality decayed", "count", n)
		}
	}
}
