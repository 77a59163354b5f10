// Package workers runs the time-driven lifecycle transitions: closing
// registration at the deadline and starting or cancelling tournaments
// once their start time arrives.
package workers

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/opencourt/tournament-engine/services"
)

type LifecycleScheduler struct {
	tournaments *services.TournamentService
	interval    time.Duration
	logger      *slog.Logger

	sched gocron.Scheduler
}

func NewLifecycleScheduler(tournaments *services.TournamentService, interval time.Duration, logger *slog.Logger) *LifecycleScheduler {
	return &LifecycleScheduler{
		tournaments: tournaments,
		interval:    interval,
		logger:      logger,
	}
}

func (s *LifecycleScheduler) Start(ctx context.Context) error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	s.sched = sched

	if _, err := sched.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func() {
			if err := s.tournaments.AutoAdvanceByTime(ctx); err != nil {
				s.logger.ErrorContext(ctx, "lifecycle scheduler run failed", slog.Any("error", err))
			}
		}),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	); err != nil {
		return err
	}

	sched.Start()
	s.logger.InfoContext(ctx, "lifecycle scheduler started", slog.Duration("interval", s.interval))
	return nil
}

func (s *LifecycleScheduler) Shutdown() error {
	if s.sched == nil {
		return nil
	}
	return s.sched.Shutdown()
}
