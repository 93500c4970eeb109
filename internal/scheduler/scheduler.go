package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"

	"ms-raffle/internal/logger"
)

type RaffleSweeper interface {
	ActivateDueRaffles(ctx context.Context, now time.Time) (int, error)
	CompleteDueRaffles(ctx context.Context, now time.Time) (int, error)
}

type CartSweeper interface {
	ReleaseExpiredCarts(ctx context.Context) (int, error)
}

// Scheduler runs the three sweeps on a timer, independent of request
// handling. Every job tolerates already-transitioned state as a no-op, so
// re-running a tick is harmless.
type Scheduler struct {
	scheduler gocron.Scheduler
	raffles   RaffleSweeper
	carts     CartSweeper
	logger    *logger.Logger
	interval  time.Duration
}

func New(raffles RaffleSweeper, carts CartSweeper, interval time.Duration, log *logger.Logger) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	return &Scheduler{
		scheduler: s,
		raffles:   raffles,
		carts:     carts,
		logger:    log,
		interval:  interval,
	}, nil
}

func (s *Scheduler) Start() error {
	jobs := []struct {
		name string
		run  func()
	}{
		{"activate-raffles", s.ActivatePendingRaffles},
		{"complete-raffles", s.CompleteRaffles},
		{"release-expired-carts", s.ReleaseExpiredCarts},
	}
	for _, job := range jobs {
		if _, err := s.scheduler.NewJob(
			gocron.DurationJob(s.interval),
			gocron.NewTask(job.run),
			gocron.WithName(job.name),
		); err != nil {
			return fmt.Errorf("failed to schedule %s: %w", job.name, err)
		}
	}
	s.scheduler.Start()
	s.logger.LogSweep("scheduler", fmt.Sprintf("started, interval %s", s.interval))
	return nil
}

func (s *Scheduler) Stop() error {
	return s.scheduler.Shutdown()
}

// ActivatePendingRaffles is the scheduler entry point for raffle activation.
func (s *Scheduler) ActivatePendingRaffles() {
	ctx := context.Background()
	activated, err := s.raffles.ActivateDueRaffles(ctx, time.Now())
	if err != nil {
		s.logger.Error("SWEEP", fmt.Sprintf("activation sweep failed: %v", err))
		return
	}
	if activated > 0 {
		s.logger.LogSweep("activate-raffles", fmt.Sprintf("activated %d raffles", activated))
	}
}

// CompleteRaffles completes ACTIVE raffles whose end date passed.
func (s *Scheduler) CompleteRaffles() {
	ctx := context.Background()
	completed, err := s.raffles.CompleteDueRaffles(ctx, time.Now())
	if err != nil {
		s.logger.Error("SWEEP", fmt.Sprintf("completion sweep failed: %v", err))
		return
	}
	if completed > 0 {
		s.logger.LogSweep("complete-raffles", fmt.Sprintf("completed %d raffles", completed))
	}
}

// ReleaseExpiredCarts releases carts idle past the configured threshold.
func (s *Scheduler) ReleaseExpiredCarts() {
	ctx := context.Background()
	released, err := s.carts.ReleaseExpiredCarts(ctx)
	if err != nil {
		s.logger.Error("SWEEP", fmt.Sprintf("cart expiry sweep failed: %v", err))
		return
	}
	if released > 0 {
		s.logger.LogSweep("release-expired-carts", fmt.Sprintf("released %d carts", released))
	}
}
