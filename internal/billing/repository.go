package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/dealerdesk/dealerdesk/internal/orders"
	"github.com/dealerdesk/dealerdesk/internal/platform/db"
	"github.com/dealerdesk/dealerdesk/internal/shared"
)

// Repository persists installment plans and payments. Payment creation and
// settlement both run under the order row lock so concurrent writers cannot
// exceed the schedule or settle twice.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const uniqueViolation = "23505"

func (r *Repository) CreatePlan(ctx context.Context, plan Installment) (Installment, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO installments (order_id, principal, term_count, interest_rate,
			total_interest, total_pay, amount_per_term, note, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		RETURNING id`,
		plan.OrderID, plan.Principal, plan.TermCount, plan.InterestRate,
		plan.TotalInterest, plan.TotalPay, plan.AmountPerTerm, plan.Note, plan.CreatedAt,
	).Scan(&plan.ID)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return Installment{}, shared.Conflictf("order %d already has an installment plan", plan.OrderID)
	}
	if err != nil {
		return Installment{}, fmt.Errorf("insert installment: %w", err)
	}
	return plan, nil
}

func (r *Repository) UpdatePlan(ctx context.Context, plan Installment) (Installment, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE installments SET term_count = $1, interest_rate = $2, total_interest = $3,
			total_pay = $4, amount_per_term = $5, note = $6, updated_at = $7
		WHERE order_id = $8`,
		plan.TermCount, plan.InterestRate, plan.TotalInterest,
		plan.TotalPay, plan.AmountPerTerm, plan.Note, plan.UpdatedAt, plan.OrderID)
	if err != nil {
		return Installment{}, fmt.Errorf("update installment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return Installment{}, fmt.Errorf("installment for order %d: %w", plan.OrderID, shared.ErrNotFound)
	}
	return r.GetPlan(ctx, plan.OrderID)
}

func (r *Repository) GetPlan(ctx context.Context, orderID int64) (Installment, error) {
	return scanPlan(ctx, r.pool, orderID, false)
}

// HasInstallment satisfies the promotion lock check on the orders side.
func (r *Repository) HasInstallment(ctx context.Context, orderID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM installments WHERE order_id = $1)`, orderID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("installment exists: %w", err)
	}
	return exists, nil
}

// InsertPayment creates a PENDING payment under the order row lock. maxCount
// bounds the number of non-failed payments the order may accumulate; the
// insert reports a conflict once the bound is reached.
func (r *Repository) InsertPayment(ctx context.Context, p Payment, maxCount int64) (Payment, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var status orders.Status
		err := tx.QueryRow(ctx, `
			SELECT status FROM orders WHERE id = $1 FOR UPDATE`, p.OrderID,
		).Scan(&status)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("order %d: %w", p.OrderID, shared.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("lock order: %w", err)
		}
		if status != orders.StatusAwaitingPayment {
			return shared.Conflictf("order %d is %s, must be %s", p.OrderID, status, orders.StatusAwaitingPayment)
		}

		var count int64
		err = tx.QueryRow(ctx, `
			SELECT COUNT(*) FROM payments WHERE order_id = $1 AND status <> $2`,
			p.OrderID, PaymentFailed,
		).Scan(&count)
		if err != nil {
			return fmt.Errorf("count payments: %w", err)
		}
		if count >= maxCount {
			return shared.Conflictf("order %d already has %d of %d payments", p.OrderID, count, maxCount)
		}

		return tx.QueryRow(ctx, `
			INSERT INTO payments (order_id, method, amount, status, note, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id`,
			p.OrderID, p.Method, p.Amount, p.Status, p.Note, p.CreatedAt,
		).Scan(&p.ID)
	})
	if err != nil {
		return Payment{}, err
	}
	return p, nil
}

func (r *Repository) GetPayment(ctx context.Context, id int64) (Payment, error) {
	var p Payment
	err := r.pool.QueryRow(ctx, `
		SELECT id, order_id, method, amount, status, note, created_at
		FROM payments WHERE id = $1`, id,
	).Scan(&p.ID, &p.OrderID, &p.Method, &p.Amount, &p.Status, &p.Note, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Payment{}, fmt.Errorf("payment %d: %w", id, shared.ErrNotFound)
	}
	if err != nil {
		return Payment{}, fmt.Errorf("get payment: %w", err)
	}
	return p, nil
}

func (r *Repository) ListPayments(ctx context.Context, orderID int64) ([]Payment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, order_id, method, amount, status, note, created_at
		FROM payments WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var out []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.OrderID, &p.Method, &p.Amount, &p.Status, &p.Note, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CompletePayment flips a PENDING payment to COMPLETED and settles the order
// in the same transaction. A direct order is paid by its single payment; an
// installment order is paid once completed payments cover the plan total.
func (r *Repository) CompletePayment(ctx context.Context, paymentID int64, completedAt time.Time) (Payment, error) {
	var out Payment
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		p, err := transitionPayment(ctx, tx, paymentID, PaymentCompleted)
		if err != nil {
			return err
		}
		out = p

		var method string
		var status orders.Status
		err = tx.QueryRow(ctx, `
			SELECT payment_method, status FROM orders WHERE id = $1 FOR UPDATE`, p.OrderID,
		).Scan(&method, &status)
		if err != nil {
			return fmt.Errorf("lock order: %w", err)
		}
		if status != orders.StatusAwaitingPayment {
			return nil
		}

		settle := false
		if shared.ClassifyPaymentMethod(method) == shared.PaymentFamilyDirect {
			settle = true
		} else {
			plan, err := scanPlan(ctx, tx, p.OrderID, true)
			if err != nil {
				return err
			}
			var completed decimal.Decimal
			err = tx.QueryRow(ctx, `
				SELECT COALESCE(SUM(amount), 0) FROM payments
				WHERE order_id = $1 AND status = $2`,
				p.OrderID, PaymentCompleted,
			).Scan(&completed)
			if err != nil {
				return fmt.Errorf("sum completed payments: %w", err)
			}
			settle = completed.GreaterThanOrEqual(plan.TotalPay)
		}
		if !settle {
			return nil
		}

		_, err = tx.Exec(ctx, `
			UPDATE orders SET status = $1, completion_date = $2
			WHERE id = $3 AND status = $4`,
			orders.StatusPaid, completedAt, p.OrderID, orders.StatusAwaitingPayment)
		if err != nil {
			return fmt.Errorf("settle order: %w", err)
		}
		return nil
	})
	if err != nil {
		return Payment{}, err
	}
	return out, nil
}

// FailPayment flips a PENDING payment to FAILED. Failure never reverses a
// settled order.
func (r *Repository) FailPayment(ctx context.Context, paymentID int64) (Payment, error) {
	var out Payment
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		p, err := transitionPayment(ctx, tx, paymentID, PaymentFailed)
		if err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return Payment{}, err
	}
	return out, nil
}

// DeletePayment removes a payment record. Settlement already applied to the
// order is deliberately left intact.
func (r *Repository) DeletePayment(ctx context.Context, paymentID int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM payments WHERE id = $1`, paymentID)
	if err != nil {
		return fmt.Errorf("delete payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("payment %d: %w", paymentID, shared.ErrNotFound)
	}
	return nil
}

func transitionPayment(ctx context.Context, tx pgx.Tx, paymentID int64, to PaymentStatus) (Payment, error) {
	var p Payment
	err := tx.QueryRow(ctx, `
		UPDATE payments SET status = $1
		WHERE id = $2 AND status = $3
		RETURNING id, order_id, method, amount, status, note, created_at`,
		to, paymentID, PaymentPending,
	).Scan(&p.ID, &p.OrderID, &p.Method, &p.Amount, &p.Status, &p.Note, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		var current PaymentStatus
		if scanErr := tx.QueryRow(ctx, `
			SELECT status FROM payments WHERE id = $1`, paymentID).Scan(&current); scanErr != nil {
			return Payment{}, fmt.Errorf("payment %d: %w", paymentID, shared.ErrNotFound)
		}
		return Payment{}, shared.Conflictf("payment %d is %s, must be %s", paymentID, current, PaymentPending)
	}
	if err != nil {
		return Payment{}, fmt.Errorf("transition payment: %w", err)
	}
	return p, nil
}

func scanPlan(ctx context.Context, q db.Querier, orderID int64, forUpdate bool) (Installment, error) {
	query := `
		SELECT id, order_id, principal, term_count, interest_rate,
			total_interest, total_pay, amount_per_term, note, created_at, updated_at
		FROM installments WHERE order_id = $1`
	if forUpdate {
		query += " FOR UPDATE"
	}
	var plan Installment
	err := q.QueryRow(ctx, query, orderID).Scan(&plan.ID, &plan.OrderID, &plan.Principal,
		&plan.TermCount, &plan.InterestRate, &plan.TotalInterest, &plan.TotalPay,
		&plan.AmountPerTerm, &plan.Note, &plan.CreatedAt, &plan.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Installment{}, fmt.Errorf("installment for order %d: %w", orderID, shared.ErrNotFound)
	}
	if err != nil {
		return Installment{}, fmt.Errorf("get installment: %w", err)
	}
	return plan, nil
}
