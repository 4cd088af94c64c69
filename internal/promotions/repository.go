package promotions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dealerdesk/dealerdesk/internal/platform/db"
	"github.com/dealerdesk/dealerdesk/internal/shared"
)

// Repository persists promotions in PostgreSQL.
type Repository struct {
	q db.Querier
}

// NewRepository constructs Repository.
func NewRepository(q db.Querier) *Repository {
	return &Repository{q: q}
}

const promotionColumns = `id, dealer_id, value, type, status, start_date, end_date`

// Create inserts a promotion with its derived initial status.
func (r *Repository) Create(ctx context.Context, p Promotion) (Promotion, error) {
	err := r.q.QueryRow(ctx, `INSERT INTO promotions (dealer_id, value, type, status, start_date, end_date)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id`, p.DealerID, p.Value, p.Type, p.Status, p.StartDate, p.EndDate).Scan(&p.ID)
	if err != nil {
		return Promotion{}, fmt.Errorf("promotions: create: %w", err)
	}
	return p, nil
}

// Get loads one promotion.
func (r *Repository) Get(ctx context.Context, id int64) (Promotion, error) {
	var p Promotion
	err := r.q.QueryRow(ctx, `SELECT `+promotionColumns+` FROM promotions WHERE id = $1`, id).
		Scan(&p.ID, &p.DealerID, &p.Value, &p.Type, &p.Status, &p.StartDate, &p.EndDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Promotion{}, fmt.Errorf("promotion %d: %w", id, shared.ErrNotFound)
		}
		return Promotion{}, fmt.Errorf("promotions: get: %w", err)
	}
	return p, nil
}

// ListByDealer returns the dealer's promotions.
func (r *Repository) ListByDealer(ctx context.Context, dealerID int64) ([]Promotion, error) {
	rows, err := r.q.Query(ctx, `SELECT `+promotionColumns+` FROM promotions WHERE dealer_id = $1 ORDER BY start_date DESC, id DESC`, dealerID)
	if err != nil {
		return nil, fmt.Errorf("promotions: list: %w", err)
	}
	defer rows.Close()

	promos := []Promotion{}
	for rows.Next() {
		var p Promotion
		if err := rows.Scan(&p.ID, &p.DealerID, &p.Value, &p.Type, &p.Status, &p.StartDate, &p.EndDate); err != nil {
			return nil, err
		}
		promos = append(promos, p)
	}
	return promos, rows.Err()
}

// UpdateEndDate extends the validity window.
func (r *Repository) UpdateEndDate(ctx context.Context, id int64, endDate time.Time, status Status) error {
	tag, err := r.q.Exec(ctx, `UPDATE promotions SET end_date = $2, status = $3 WHERE id = $1`, id, endDate, status)
	if err != nil {
		return fmt.Errorf("promotions: update end date: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("promotion %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

// SweepStatuses recomputes every stored status from the wall clock in one
// statement; returns the number of rows whose status flipped.
func (r *Repository) SweepStatuses(ctx context.Context, today time.Time) (int64, error) {
	tag, err := r.q.Exec(ctx, `UPDATE promotions
SET status = CASE WHEN start_date <= $1 AND $1 < end_date THEN 'ACTIVE' ELSE 'INACTIVE' END
WHERE status <> CASE WHEN start_date <= $1 AND $1 < end_date THEN 'ACTIVE' ELSE 'INACTIVE' END`, today)
	if err != nil {
		return 0, fmt.Errorf("promotions: sweep: %w", err)
	}
	return tag.RowsAffected(), nil
}
