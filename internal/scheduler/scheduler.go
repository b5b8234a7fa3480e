package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// TickFunc performs one unit of work and returns how long to wait before the
// next invocation.
type TickFunc func(ctx context.Context) (time.Duration, error)

// Options tune scheduler behaviour.
type Options struct {
	DefaultDelay time.Duration
	StartupDelay time.Duration
}

// Scheduler drives a cancellable poll loop whose delay varies per tick.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) *Scheduler {
	if opts.DefaultDelay <= 0 {
		panic("scheduler default delay must be positive")
	}
	return &Scheduler{opts: opts, logger: logger.With().Str("component", "scheduler").Logger()}
}

// Run blocks, invoking the tick function until ctx is cancelled. Sleeping is
// the only suspension point; cancellation during a sleep stops the loop
// immediately. Tick errors are logged and the loop continues with the
// default delay.
func (s *Scheduler) Run(ctx context.Context, tick TickFunc) error {
	if s.opts.StartupDelay > 0 {
		if err := s.wait(ctx, s.opts.StartupDelay); err != nil {
			return err
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		delay, err := tick(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Error().Err(err).Msg("tick execution failed")
			delay = s.opts.DefaultDelay
		}
		if delay <= 0 {
			delay = s.opts.DefaultDelay
		}

		s.logger.Debug().Dur("delay", delay).Msg("waiting for next tick")
		if err := s.wait(ctx, delay); err != nil {
			return err
		}
	}
}

func (s *Scheduler) wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
