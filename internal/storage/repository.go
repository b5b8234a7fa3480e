package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"number-stock-alerts/internal/marketplace"
	"number-stock-alerts/internal/state"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	loadStateSQL = `SELECT last_notified_at, was_available
    FROM notification_state
    WHERE target = $1;`

	saveStateSQL = `INSERT INTO notification_state (
        target,
        last_notified_at,
        was_available,
        updated_at
    ) VALUES (
        $1,$2,$3,now()
    )
    ON CONFLICT (target) DO UPDATE
    SET last_notified_at = EXCLUDED.last_notified_at,
        was_available    = EXCLUDED.was_available,
        updated_at       = EXCLUDED.updated_at;`

	insertPurchaseSQL = `INSERT INTO purchases (
        tzid,
        number,
        service,
        country,
        price,
        purchased_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6
    );`

	listRecentPurchasesSQL = `SELECT
        tzid,
        number,
        service,
        country,
        price,
        purchased_at
    FROM purchases
    ORDER BY purchased_at DESC
    LIMIT $1;`
)

// Store serves the notification state and the purchase log from PostgreSQL.
// The state row is keyed by target so several monitored pairs can share one
// database; purchases are insert-only.
type Store struct {
	pool   *pgxpool.Pool
	target string
}

// NewStore wires a pgx pool into a Store. target identifies the monitored
// service/country pair, e.g. "foodora/36".
func NewStore(pool *pgxpool.Pool, target string) *Store {
	return &Store{pool: pool, target: target}
}

// TargetKey renders the canonical state-row key for a service/country pair.
func TargetKey(service string, country int) string {
	return fmt.Sprintf("%s/%d", service, country)
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// Load reads the notification state row. A missing row yields the zero
// state.
func (s *Store) Load(ctx context.Context) (state.NotificationState, error) {
	pool, err := s.getPool()
	if err != nil {
		return state.NotificationState{}, err
	}

	var (
		lastNotified sql.NullTime
		wasAvailable bool
	)
	row := pool.QueryRow(ctx, loadStateSQL, s.target)
	if scanErr := row.Scan(&lastNotified, &wasAvailable); scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return state.NotificationState{}, nil
		}
		return state.NotificationState{}, fmt.Errorf("load notification state: %w", scanErr)
	}

	st := state.NotificationState{WasAvailable: wasAvailable}
	if lastNotified.Valid {
		ts := lastNotified.Time
		st.LastNotifiedAt = &ts
	}
	return st, nil
}

// Save upserts the notification state row for the target.
func (s *Store) Save(ctx context.Context, st state.NotificationState) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	var lastNotified interface{}
	if st.LastNotifiedAt != nil {
		lastNotified = *st.LastNotifiedAt
	}

	if _, execErr := pool.Exec(ctx, saveStateSQL, s.target, lastNotified, st.WasAvailable); execErr != nil {
		return fmt.Errorf("save notification state: %w", execErr)
	}
	return nil
}

// Append inserts purchase records. Existing rows are never updated.
func (s *Store) Append(ctx context.Context, records []marketplace.PurchaseRecord) error {
	if len(records) == 0 {
		return nil
	}

	pool, err := s.getPool()
	if err != nil {
		return err
	}

	for _, rec := range records {
		var price interface{}
		if rec.Price != nil {
			price = rec.Price.String()
		}
		if _, execErr := pool.Exec(ctx, insertPurchaseSQL,
			rec.TransactionID,
			rec.Number,
			rec.Service,
			rec.Country,
			price,
			rec.PurchasedAt,
		); execErr != nil {
			return fmt.Errorf("insert purchase: %w", execErr)
		}
	}
	return nil
}

// ListRecent lists the most recent purchases, newest first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]marketplace.PurchaseRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentPurchasesSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent purchases: %w", queryErr)
	}
	defer rows.Close()

	records := make([]marketplace.PurchaseRecord, 0, limit)
	for rows.Next() {
		var (
			rec      marketplace.PurchaseRecord
			priceStr sql.NullString
			bought   time.Time
		)
		if err := rows.Scan(
			&rec.TransactionID,
			&rec.Number,
			&rec.Service,
			&rec.Country,
			&priceStr,
			&bought,
		); err != nil {
			return nil, err
		}
		rec.PurchasedAt = bought

		if priceStr.Valid {
			price, convErr := decimal.NewFromString(priceStr.String)
			if convErr != nil {
				return nil, fmt.Errorf("parse purchase price: %w", convErr)
			}
			rec.Price = &price
		}

		records = append(records, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

var _ state.Store = (*Store)(nil)
var _ state.PurchaseLog = (*Store)(nil)
