package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/dealerdesk/dealerdesk/internal/inventory"
	"github.com/dealerdesk/dealerdesk/internal/platform/db"
	"github.com/dealerdesk/dealerdesk/internal/promotions"
	"github.com/dealerdesk/dealerdesk/internal/shared"
)

// Repository persists orders and their details. Every mutation that moves
// stock runs the ledger write and the detail write in one transaction so a
// crash can never leave a reservation half applied.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Create(ctx context.Context, o Order) (Order, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO orders (dealer_id, customer_id, created_by, status, payment_method,
			sub_total, discount_amount, total_amount, order_date)
		VALUES ($1, $2, $3, $4, $5, 0, 0, 0, $6)
		RETURNING id`,
		o.DealerID, o.CustomerID, o.CreatedBy, o.Status, o.PaymentMethod, o.OrderDate,
	).Scan(&o.ID)
	if err != nil {
		return Order{}, fmt.Errorf("insert order: %w", err)
	}
	return o, nil
}

func (r *Repository) Get(ctx context.Context, id int64) (Order, error) {
	o, err := scanOrder(ctx, r.pool, id, false)
	if err != nil {
		return Order{}, err
	}
	o.Details, err = listDetails(ctx, r.pool, id)
	if err != nil {
		return Order{}, err
	}
	return o, nil
}

func (r *Repository) ListByDealer(ctx context.Context, dealerID int64) ([]Order, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, dealer_id, customer_id, created_by, status, payment_method,
			sub_total, discount_amount, total_amount, promotion_id, order_date, completion_date
		FROM orders
		WHERE dealer_id = $1
		ORDER BY id DESC`, dealerID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.DealerID, &o.CustomerID, &o.CreatedBy, &o.Status,
			&o.PaymentMethod, &o.SubTotal, &o.DiscountAmount, &o.TotalAmount,
			&o.PromotionID, &o.OrderDate, &o.CompletionDate); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// AddDetail reserves qty units from the dealer ledger, snapshots the dealer
// price onto the new line and recomputes the order totals, all in one
// transaction. The order must still be a draft when the row lock is taken.
func (r *Repository) AddDetail(ctx context.Context, orderID, carConfigID, qty int64) (Order, error) {
	var out Order
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		o, err := lockDraft(ctx, tx, orderID)
		if err != nil {
			return err
		}
		inv := inventory.NewRepository(tx)
		if err := inv.Debit(ctx, o.DealerID, carConfigID, qty); err != nil {
			return err
		}
		entry, err := inv.Get(ctx, o.DealerID, carConfigID)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO order_details (order_id, car_config_id, quantity, unit_price)
			VALUES ($1, $2, $3, $4)`,
			orderID, carConfigID, qty, entry.DealerPrice)
		if err != nil {
			return fmt.Errorf("insert order detail: %w", err)
		}
		out, err = recomputeTotals(ctx, tx, o)
		return err
	})
	if err != nil {
		return Order{}, err
	}
	return out, nil
}

// ResizeDetail changes a line quantity. A positive delta debits the ledger, a
// negative one credits stock back. FinalPrice, when non-nil, replaces the line
// total override.
func (r *Repository) ResizeDetail(ctx context.Context, orderID, detailID, qty int64, finalPrice *decimal.Decimal) (Order, error) {
	var out Order
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		o, err := lockDraft(ctx, tx, orderID)
		if err != nil {
			return err
		}
		var carConfigID, oldQty int64
		err = tx.QueryRow(ctx, `
			SELECT car_config_id, quantity FROM order_details
			WHERE id = $1 AND order_id = $2`, detailID, orderID,
		).Scan(&carConfigID, &oldQty)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("order detail %d: %w", detailID, shared.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("get order detail: %w", err)
		}

		inv := inventory.NewRepository(tx)
		switch delta := qty - oldQty; {
		case delta > 0:
			if err := inv.Debit(ctx, o.DealerID, carConfigID, delta); err != nil {
				return err
			}
		case delta < 0:
			if err := inv.Credit(ctx, o.DealerID, carConfigID, -delta); err != nil {
				return err
			}
		}

		if finalPrice != nil {
			_, err = tx.Exec(ctx, `
				UPDATE order_details SET quantity = $1, final_price = $2 WHERE id = $3`,
				qty, *finalPrice, detailID)
		} else {
			_, err = tx.Exec(ctx, `
				UPDATE order_details SET quantity = $1 WHERE id = $2`, qty, detailID)
		}
		if err != nil {
			return fmt.Errorf("update order detail: %w", err)
		}
		out, err = recomputeTotals(ctx, tx, o)
		return err
	})
	if err != nil {
		return Order{}, err
	}
	return out, nil
}

// RemoveDetail deletes a line and credits its full quantity back.
func (r *Repository) RemoveDetail(ctx context.Context, orderID, detailID int64) (Order, error) {
	var out Order
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		o, err := lockDraft(ctx, tx, orderID)
		if err != nil {
			return err
		}
		var carConfigID, qty int64
		err = tx.QueryRow(ctx, `
			DELETE FROM order_details WHERE id = $1 AND order_id = $2
			RETURNING car_config_id, quantity`, detailID, orderID,
		).Scan(&carConfigID, &qty)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("order detail %d: %w", detailID, shared.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("delete order detail: %w", err)
		}
		if err := inventory.NewRepository(tx).Credit(ctx, o.DealerID, carConfigID, qty); err != nil {
			return err
		}
		out, err = recomputeTotals(ctx, tx, o)
		return err
	})
	if err != nil {
		return Order{}, err
	}
	return out, nil
}

// SetPromotion attaches or clears a promotion and recomputes totals under the
// order row lock. Business checks on the promotion itself happen in the
// service before this is called.
func (r *Repository) SetPromotion(ctx context.Context, orderID int64, promotionID *int64) (Order, error) {
	var out Order
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		o, err := lockDraft(ctx, tx, orderID)
		if err != nil {
			return err
		}
		o.PromotionID = promotionID
		out, err = recomputeTotals(ctx, tx, o)
		return err
	})
	if err != nil {
		return Order{}, err
	}
	return out, nil
}

// UpdateStatus moves the order from one status to another. It reports false
// when the order was not in the expected status.
func (r *Repository) UpdateStatus(ctx context.Context, orderID int64, from, to Status) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE orders SET status = $1 WHERE id = $2 AND status = $3`,
		to, orderID, from)
	if err != nil {
		return false, fmt.Errorf("update order status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Cancel flips an open order to CANCELLED and credits every reserved line
// back to the ledger in the same transaction.
func (r *Repository) Cancel(ctx context.Context, orderID int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var dealerID int64
		err := tx.QueryRow(ctx, `
			UPDATE orders SET status = $1
			WHERE id = $2 AND status IN ($3, $4)
			RETURNING dealer_id`,
			StatusCancelled, orderID, StatusDraft, StatusAwaitingPayment,
		).Scan(&dealerID)
		if errors.Is(err, pgx.ErrNoRows) {
			return shared.Conflictf("order %d is not open", orderID)
		}
		if err != nil {
			return fmt.Errorf("cancel order: %w", err)
		}

		details, err := listDetails(ctx, tx, orderID)
		if err != nil {
			return err
		}
		inv := inventory.NewRepository(tx)
		for _, d := range details {
			if err := inv.Credit(ctx, dealerID, d.CarConfigID, d.Quantity); err != nil {
				return err
			}
		}
		return nil
	})
}

// lockDraft takes the order row lock and enforces that detail and promotion
// edits only happen before finalization.
func lockDraft(ctx context.Context, tx pgx.Tx, orderID int64) (Order, error) {
	o, err := scanOrder(ctx, tx, orderID, true)
	if err != nil {
		return Order{}, err
	}
	if o.Status != StatusDraft {
		return Order{}, shared.Conflictf("order %d is %s, must be %s", orderID, o.Status, StatusDraft)
	}
	return o, nil
}

func scanOrder(ctx context.Context, q db.Querier, id int64, forUpdate bool) (Order, error) {
	query := `
		SELECT id, dealer_id, customer_id, created_by, status, payment_method,
			sub_total, discount_amount, total_amount, promotion_id, order_date, completion_date
		FROM orders WHERE id = $1`
	if forUpdate {
		query += " FOR UPDATE"
	}
	var o Order
	err := q.QueryRow(ctx, query, id).Scan(&o.ID, &o.DealerID, &o.CustomerID, &o.CreatedBy,
		&o.Status, &o.PaymentMethod, &o.SubTotal, &o.DiscountAmount, &o.TotalAmount,
		&o.PromotionID, &o.OrderDate, &o.CompletionDate)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, fmt.Errorf("order %d: %w", id, shared.ErrNotFound)
	}
	if err != nil {
		return Order{}, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

func listDetails(ctx context.Context, q db.Querier, orderID int64) ([]Detail, error) {
	rows, err := q.Query(ctx, `
		SELECT id, order_id, car_config_id, quantity, unit_price, final_price
		FROM order_details WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order details: %w", err)
	}
	defer rows.Close()

	var out []Detail
	for rows.Next() {
		var d Detail
		if err := rows.Scan(&d.ID, &d.OrderID, &d.CarConfigID, &d.Quantity, &d.UnitPrice, &d.FinalPrice); err != nil {
			return nil, fmt.Errorf("scan order detail: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// recomputeTotals re-derives subtotal, discount and total from the current
// details and the attached promotion, then writes them onto the order row.
func recomputeTotals(ctx context.Context, tx pgx.Tx, o Order) (Order, error) {
	details, err := listDetails(ctx, tx, o.ID)
	if err != nil {
		return Order{}, err
	}
	o.SubTotal = SubTotal(details)
	o.DiscountAmount = decimal.Zero
	if o.PromotionID != nil {
		promo, err := promotions.NewRepository(tx).Get(ctx, *o.PromotionID)
		if err != nil {
			return Order{}, err
		}
		o.DiscountAmount = promo.Discount(o.SubTotal)
	}
	o.TotalAmount = o.SubTotal.Sub(o.DiscountAmount)
	if o.TotalAmount.IsNegative() {
		return Order{}, shared.Conflictf("discount %s exceeds subtotal %s", o.DiscountAmount, o.SubTotal)
	}

	_, err = tx.Exec(ctx, `
		UPDATE orders SET sub_total = $1, discount_amount = $2, total_amount = $3, promotion_id = $4
		WHERE id = $5`,
		o.SubTotal, o.DiscountAmount, o.TotalAmount, o.PromotionID, o.ID)
	if err != nil {
		return Order{}, fmt.Errorf("update order totals: %w", err)
	}
	o.Details = details
	return o, nil
}
