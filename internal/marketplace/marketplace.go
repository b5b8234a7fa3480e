package marketplace

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Snapshot is a point-in-time availability read for the monitored
// service/country pair. It is produced fresh on every poll and never
// persisted.
type Snapshot struct {
	Available bool
	Count     int
	Price     *decimal.Decimal
	CheckedAt time.Time
}

// PurchaseRecord captures a single successful number allocation. Immutable
// once created; appended to the purchase log.
type PurchaseRecord struct {
	TransactionID string           `json:"tzid"`
	Number        string           `json:"number"`
	Service       string           `json:"service"`
	Country       int              `json:"country"`
	Price         *decimal.Decimal `json:"price,omitempty"`
	PurchasedAt   time.Time        `json:"purchased_at"`
}

// StockProber retrieves current stock and price for the target pair.
type StockProber interface {
	FetchStats(ctx context.Context) (Snapshot, error)
}

// NumberAllocator requests a single number allocation from the marketplace.
type NumberAllocator interface {
	BuyNumber(ctx context.Context) (PurchaseRecord, error)
}
