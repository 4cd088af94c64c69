package distribution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dealerdesk/dealerdesk/internal/inventory"
	"github.com/dealerdesk/dealerdesk/internal/platform/db"
	"github.com/dealerdesk/dealerdesk/internal/shared"
)

// Repository persists distribution requests in PostgreSQL. Every transition is
// a single guarded UPDATE with the expected status in the WHERE clause, so two
// concurrent actors cannot fire the same transition twice.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const requestColumns = `id, code, dealer_id, car_config_id, quantity, status, requested_by,
request_date, approved_at, expected_delivery_at, actual_delivery_at`

// Create inserts a new request in REQUESTED state.
func (r *Repository) Create(ctx context.Context, req Request) (Request, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO distribution_requests
(code, dealer_id, car_config_id, quantity, status, requested_by, request_date)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id`, req.Code, req.DealerID, req.CarConfigID, req.Quantity, req.Status, req.RequestedBy, req.RequestDate).
		Scan(&req.ID)
	if err != nil {
		return Request{}, fmt.Errorf("distribution: create: %w", err)
	}
	return req, nil
}

// Get loads one request.
func (r *Repository) Get(ctx context.Context, id int64) (Request, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM distribution_requests WHERE id = $1`, id)
	req, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Request{}, fmt.Errorf("distribution request %d: %w", id, shared.ErrNotFound)
		}
		return Request{}, fmt.Errorf("distribution: get: %w", err)
	}
	return req, nil
}

// ListByDealer returns the dealer's requests, newest first.
func (r *Repository) ListByDealer(ctx context.Context, dealerID int64) ([]Request, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+requestColumns+`
FROM distribution_requests WHERE dealer_id = $1 ORDER BY request_date DESC, id DESC`, dealerID)
	if err != nil {
		return nil, fmt.Errorf("distribution: list: %w", err)
	}
	defer rows.Close()

	requests := []Request{}
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

// ListPending returns requests awaiting manufacturer action.
func (r *Repository) ListPending(ctx context.Context) ([]Request, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+requestColumns+`
FROM distribution_requests WHERE status IN ($1, $2, $3) ORDER BY request_date, id`,
		StatusRequested, StatusApproved, StatusInTransit)
	if err != nil {
		return nil, fmt.Errorf("distribution: list pending: %w", err)
	}
	defer rows.Close()

	requests := []Request{}
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

// MarkApproved transitions REQUESTED -> APPROVED. Returns false when the
// request was not in REQUESTED state.
func (r *Repository) MarkApproved(ctx context.Context, id int64) (bool, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE distribution_requests
SET status = $2, approved_at = NOW()
WHERE id = $1 AND status = $3`, id, StatusApproved, StatusRequested)
	if err != nil {
		return false, fmt.Errorf("distribution: approve: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkRejected transitions REQUESTED -> REJECTED, terminal, no inventory effect.
func (r *Repository) MarkRejected(ctx context.Context, id int64) (bool, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE distribution_requests
SET status = $2
WHERE id = $1 AND status = $3`, id, StatusRejected, StatusRequested)
	if err != nil {
		return false, fmt.Errorf("distribution: reject: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkInTransit transitions APPROVED -> IN_TRANSIT with the expected date.
func (r *Repository) MarkInTransit(ctx context.Context, id int64, expected time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE distribution_requests
SET status = $2, expected_delivery_at = $3
WHERE id = $1 AND status = $4`, id, StatusInTransit, expected, StatusApproved)
	if err != nil {
		return false, fmt.Errorf("distribution: ship: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Deliver transitions IN_TRANSIT -> DELIVERED and credits the dealer ledger,
// both inside one transaction. The RETURNING clause hands the quantities to the
// ledger credit without a separate read.
func (r *Repository) Deliver(ctx context.Context, id int64) (bool, error) {
	delivered := false
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var dealerID, carConfigID, qty int64
		err := tx.QueryRow(ctx, `UPDATE distribution_requests
SET status = $2, actual_delivery_at = NOW()
WHERE id = $1 AND status = $3
RETURNING dealer_id, car_config_id, quantity`, id, StatusDelivered, StatusInTransit).
			Scan(&dealerID, &carConfigID, &qty)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			return fmt.Errorf("distribution: deliver: %w", err)
		}
		if err := inventory.NewRepository(tx).Credit(ctx, dealerID, carConfigID, qty); err != nil {
			return err
		}
		delivered = true
		return nil
	})
	return delivered, err
}

func scanRequest(row pgx.Row) (Request, error) {
	var req Request
	err := row.Scan(&req.ID, &req.Code, &req.DealerID, &req.CarConfigID, &req.Quantity, &req.Status,
		&req.RequestedBy, &req.RequestDate, &req.ApprovedAt, &req.ExpectedDeliveryAt, &req.ActualDeliveryAt)
	return req, err
}
