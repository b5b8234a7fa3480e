package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"number-stock-alerts/internal/scheduler"
)

// Run executes the long-running monitoring loop until interrupted.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	stateStore, purchaseLog, closeStores, err := a.openStores(ctx)
	if err != nil {
		return err
	}
	if closeStores != nil {
		defer closeStores()
	}

	controller := a.newController(stateStore, purchaseLog)

	sched := scheduler.New(scheduler.Options{
		DefaultDelay: a.Config.Monitor.PollInterval,
		StartupDelay: a.Config.Monitor.StartupDelay,
	}, a.Logger)

	a.Logger.Info().
		Str("service", a.Config.Target.Service).
		Int("country", a.Config.Target.Country).
		Dur("poll_interval", a.Config.Monitor.PollInterval).
		Dur("cooldown", a.Config.Monitor.Cooldown).
		Msg("starting availability monitor")

	err = sched.Run(ctx, controller.Tick)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("monitor terminated with error")
		return err
	}

	a.Logger.Info().Msg("availability monitor stopped")
	return nil
}

// Check performs a single decision cycle for cron/CI invocations. The
// persisted state carries the cooldown machine to the next run. A failure to
// reach the marketplace is returned so the process exits non-zero.
func (a *App) Check(ctx context.Context) error {
	stateStore, purchaseLog, closeStores, err := a.openStores(ctx)
	if err != nil {
		return err
	}
	if closeStores != nil {
		defer closeStores()
	}

	controller := a.newController(stateStore, purchaseLog)

	out, err := controller.RunOnce(ctx)
	if err != nil {
		return fmt.Errorf("check failed: %w", err)
	}

	summary := map[string]any{
		"available": out.Snapshot.Available,
		"count":     out.Snapshot.Count,
		"purchased": len(out.Purchased),
		"notified":  out.Notified,
	}
	encoded, marshalErr := json.Marshal(summary)
	if marshalErr != nil {
		return marshalErr
	}
	fmt.Fprintln(os.Stdout, string(encoded))
	return nil
}
