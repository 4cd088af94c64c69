package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/dealerdesk/dealerdesk/internal/platform/db"
	"github.com/dealerdesk/dealerdesk/internal/shared"
)

// Repository persists ledger entries in PostgreSQL. It accepts a db.Querier so
// callers can run its operations inside their own transaction; distribution
// delivery and order reservation rely on that to keep the ledger mutation and
// their own writes atomic.
type Repository struct {
	q db.Querier
}

// NewRepository constructs Repository.
func NewRepository(q db.Querier) *Repository {
	return &Repository{q: q}
}

// Credit creates the entry with qty if absent, or atomically adds qty to an
// existing one. A single merge statement avoids the duplicate-row race of
// branching create-or-update paths.
func (r *Repository) Credit(ctx context.Context, dealerID, carConfigID, qty int64) error {
	_, err := r.q.Exec(ctx, `INSERT INTO dealer_cars (dealer_id, car_config_id, quantity, dealer_price, status, updated_at)
VALUES ($1, $2, $3, 0, 'PENDING', NOW())
ON CONFLICT (dealer_id, car_config_id)
DO UPDATE SET quantity = dealer_cars.quantity + EXCLUDED.quantity, updated_at = NOW()`, dealerID, carConfigID, qty)
	if err != nil {
		return fmt.Errorf("inventory: credit: %w", err)
	}
	return nil
}

// Debit atomically subtracts qty, only when the resulting quantity stays
// non-negative. The guard lives in the WHERE clause, so two concurrent debits
// against the same key can never drive the quantity below zero.
func (r *Repository) Debit(ctx context.Context, dealerID, carConfigID, qty int64) error {
	tag, err := r.q.Exec(ctx, `UPDATE dealer_cars
SET quantity = quantity - $3, updated_at = NOW()
WHERE dealer_id = $1 AND car_config_id = $2 AND quantity >= $3`, dealerID, carConfigID, qty)
	if err != nil {
		return fmt.Errorf("inventory: debit: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	// Zero rows: either the entry is missing or the stock is short.
	if _, err := r.Get(ctx, dealerID, carConfigID); err != nil {
		return err
	}
	return shared.ErrInsufficientInventory
}

// Get loads one ledger entry.
func (r *Repository) Get(ctx context.Context, dealerID, carConfigID int64) (Entry, error) {
	var e Entry
	err := r.q.QueryRow(ctx, `SELECT dealer_id, car_config_id, quantity, dealer_price, status, updated_at
FROM dealer_cars WHERE dealer_id = $1 AND car_config_id = $2`, dealerID, carConfigID).
		Scan(&e.DealerID, &e.CarConfigID, &e.Quantity, &e.DealerPrice, &e.Status, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, fmt.Errorf("inventory entry %d/%d: %w", dealerID, carConfigID, shared.ErrNotFound)
		}
		return Entry{}, fmt.Errorf("inventory: get: %w", err)
	}
	return e, nil
}

// SetDealerPrice confirms the dealer sale price and activates the entry.
func (r *Repository) SetDealerPrice(ctx context.Context, dealerID, carConfigID int64, price decimal.Decimal) error {
	tag, err := r.q.Exec(ctx, `UPDATE dealer_cars
SET dealer_price = $3, status = 'ACTIVE', updated_at = NOW()
WHERE dealer_id = $1 AND car_config_id = $2`, dealerID, carConfigID, price)
	if err != nil {
		return fmt.Errorf("inventory: set price: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("inventory entry %d/%d: %w", dealerID, carConfigID, shared.ErrNotFound)
	}
	return nil
}

// ListByDealer returns the dealer's full ledger ordered by configuration.
func (r *Repository) ListByDealer(ctx context.Context, dealerID int64) ([]Entry, error) {
	rows, err := r.q.Query(ctx, `SELECT dealer_id, car_config_id, quantity, dealer_price, status, updated_at
FROM dealer_cars WHERE dealer_id = $1 ORDER BY car_config_id`, dealerID)
	if err != nil {
		return nil, fmt.Errorf("inventory: list: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.DealerID, &e.CarConfigID, &e.Quantity, &e.DealerPrice, &e.Status, &e.UpdatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
