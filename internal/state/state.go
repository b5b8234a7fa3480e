package state

import (
	"context"
	"time"

	"number-stock-alerts/internal/marketplace"
)

// NotificationState is the single persisted record that carries the
// availability machine across invocations. LastNotifiedAt is set whenever
// a notification became due, whether or not delivery succeeded;
// WasAvailable always reflects the most recent poll.
type NotificationState struct {
	LastNotifiedAt *time.Time `json:"last_notification_time"`
	WasAvailable   bool       `json:"numbers_were_available"`
}

// Store persists the notification state. Single-writer assumption: if
// multiple processes share a store, last writer wins.
type Store interface {
	Load(ctx context.Context) (NotificationState, error)
	Save(ctx context.Context, st NotificationState) error
}

// PurchaseLog is the append-only record of completed purchases.
type PurchaseLog interface {
	Append(ctx context.Context, records []marketplace.PurchaseRecord) error
	ListRecent(ctx context.Context, limit int) ([]marketplace.PurchaseRecord, error)
}
