package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"number-stock-alerts/internal/marketplace"
	"number-stock-alerts/internal/notify"
	"number-stock-alerts/internal/state"
)

// Options parameterise the availability controller.
type Options struct {
	Service   string
	Country   int
	Quantity  int
	Intervals Intervals
}

// Outcome summarises one completed decision cycle.
type Outcome struct {
	Snapshot  marketplace.Snapshot
	Purchased []marketplace.PurchaseRecord
	Notified  bool
	NextDelay time.Duration
	State     state.NotificationState
}

// Controller ties prober, purchaser, notifier, and state store together and
// executes the per-poll decision. Purchase and notification are not
// transactional with the state save: a save failure after a delivered
// notification may cause a repeat on the next invocation (accepted
// at-least-once risk).
type Controller struct {
	opts      Options
	prober    marketplace.StockProber
	purchaser *Purchaser
	notifier  notify.Notifier
	store     state.Store
	logger    zerolog.Logger
	now       func() time.Time
}

// New constructs the controller. purchaser may be nil when auto-purchase is
// disabled, notifier may be nil when notifications are disabled.
func New(opts Options, prober marketplace.StockProber, purchaser *Purchaser, notifier notify.Notifier, store state.Store, logger zerolog.Logger) *Controller {
	return &Controller{
		opts:      opts,
		prober:    prober,
		purchaser: purchaser,
		notifier:  notifier,
		store:     store,
		logger:    logger.With().Str("component", "controller").Logger(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// RunOnce performs one full pass: probe, decide, execute, persist. A probe
// failure is returned untouched so single-shot callers can exit non-zero;
// state is not modified in that case.
func (c *Controller) RunOnce(ctx context.Context) (Outcome, error) {
	snap, err := c.prober.FetchStats(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("probe marketplace: %w", err)
	}
	return c.Apply(ctx, snap), nil
}

// Tick adapts the controller to the scheduler loop: probe failures degrade
// to an unavailable snapshot instead of stopping the monitor.
func (c *Controller) Tick(ctx context.Context) (time.Duration, error) {
	out, err := c.RunOnce(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		c.logger.Error().Err(err).Msg("probe failed; treating as unavailable")
		out = c.Apply(ctx, marketplace.Snapshot{CheckedAt: c.now()})
	}
	return out.NextDelay, nil
}

// Apply runs the decision for an already-obtained snapshot and executes its
// side effects in order: purchase, notify, persist.
func (c *Controller) Apply(ctx context.Context, snap marketplace.Snapshot) Outcome {
	st, err := c.store.Load(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("notification state unreadable; starting from zero state")
	}

	now := c.now()
	dec := Decide(st, snap, now, c.opts.Intervals)

	out := Outcome{Snapshot: snap, NextDelay: dec.NextDelay, State: dec.State}

	if dec.Purchase && c.purchaser != nil {
		out.Purchased = c.purchaser.Purchase(ctx, c.opts.Quantity)
	}

	if dec.Notify {
		out.Notified = c.dispatch(ctx, snap, now, out.Purchased)
	}

	if err := c.store.Save(ctx, dec.State); err != nil {
		// purchases and notifications already happened; not rolled back
		c.logger.Error().Err(err).Msg("failed to persist notification state")
	}

	c.logger.Info().
		Bool("available", snap.Available).
		Int("count", snap.Count).
		Bool("notified", out.Notified).
		Int("purchased", len(out.Purchased)).
		Dur("next_delay", out.NextDelay).
		Msg("decision cycle complete")

	return out
}

func (c *Controller) dispatch(ctx context.Context, snap marketplace.Snapshot, now time.Time, purchased []marketplace.PurchaseRecord) bool {
	if c.notifier == nil {
		c.logger.Info().Msg("notifications disabled; skipping delivery")
		return false
	}

	checkedAt := snap.CheckedAt
	if checkedAt.IsZero() {
		checkedAt = now
	}

	note := notify.Notification{
		Service:   c.opts.Service,
		Country:   c.opts.Country,
		Count:     snap.Count,
		Price:     snap.Price,
		CheckedAt: checkedAt,
		Purchased: purchased,
	}

	if err := c.notifier.Notify(ctx, note); err != nil {
		c.logger.Error().Err(err).Msg("notification delivery failed")
		return false
	}
	return true
}
