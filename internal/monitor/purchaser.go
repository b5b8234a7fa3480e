package monitor

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"number-stock-alerts/internal/marketplace"
	"number-stock-alerts/internal/state"
)

// Purchaser issues sequential number allocations and records the results.
type Purchaser struct {
	allocator marketplace.NumberAllocator
	log       state.PurchaseLog
	delay     time.Duration
	logger    zerolog.Logger
}

// NewPurchaser constructs a purchaser. delay spaces out consecutive
// allocation requests.
func NewPurchaser(allocator marketplace.NumberAllocator, log state.PurchaseLog, delay time.Duration, logger zerolog.Logger) *Purchaser {
	return &Purchaser{
		allocator: allocator,
		log:       log,
		delay:     delay,
		logger:    logger.With().Str("component", "purchaser").Logger(),
	}
}

// Purchase attempts up to quantity allocations. It stops early on explicit
// stock exhaustion or on any transport/parse failure, returning whatever was
// obtained so far; individual requests are not retried. Non-empty results
// are appended to the purchase log.
func (p *Purchaser) Purchase(ctx context.Context, quantity int) []marketplace.PurchaseRecord {
	if quantity <= 0 {
		return nil
	}

	purchased := make([]marketplace.PurchaseRecord, 0, quantity)
	for i := 0; i < quantity; i++ {
		rec, err := p.allocator.BuyNumber(ctx)
		if err != nil {
			if errors.Is(err, marketplace.ErrNoNumbers) {
				p.logger.Warn().Int("obtained", len(purchased)).Int("requested", quantity).Msg("stock exhausted mid-batch")
			} else {
				p.logger.Error().Err(err).Int("obtained", len(purchased)).Msg("allocation failed; stopping batch")
			}
			break
		}
		purchased = append(purchased, rec)

		if i < quantity-1 && p.delay > 0 {
			if err := sleep(ctx, p.delay); err != nil {
				break
			}
		}
	}

	if len(purchased) > 0 && p.log != nil {
		if err := p.log.Append(ctx, purchased); err != nil {
			p.logger.Error().Err(err).Msg("failed to append purchase log")
		}
	}

	p.logger.Info().Int("purchased", len(purchased)).Int("requested", quantity).Msg("purchase batch finished")
	return purchased
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
