package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status enumerates the order workflow. The vocabulary is closed; unknown
// labels are rejected at the boundary instead of deep in business logic.
type Status string

const (
	// StatusDraft accepts detail and promotion changes.
	StatusDraft Status = "DRAFT"
	// StatusAwaitingPayment is the finalized state payments are created against.
	StatusAwaitingPayment Status = "AWAITING_PAYMENT"
	// StatusPaid is set by payment settlement once the obligation is met.
	StatusPaid Status = "PAID"
	// StatusCancelled releases all reserved stock back to the ledger.
	StatusCancelled Status = "CANCELLED"
)

// Order is a dealer sale under construction or settlement.
type Order struct {
	ID             int64           `json:"id"`
	DealerID       int64           `json:"dealer_id"`
	CustomerID     int64           `json:"customer_id"`
	CreatedBy      int64           `json:"created_by"`
	Status         Status          `json:"status"`
	PaymentMethod  string          `json:"payment_method"`
	SubTotal       decimal.Decimal `json:"sub_total"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	PromotionID    *int64          `json:"promotion_id,omitempty"`
	OrderDate      time.Time       `json:"order_date"`
	CompletionDate *time.Time      `json:"completion_date,omitempty"`
	Details        []Detail        `json:"details,omitempty"`
}

// Detail is one line item. UnitPrice is a snapshot of the dealer price at add
// time; FinalPrice, when set, overrides the whole line total.
type Detail struct {
	ID          int64            `json:"id"`
	OrderID     int64            `json:"order_id"`
	CarConfigID int64            `json:"car_config_id"`
	Quantity    int64            `json:"quantity"`
	UnitPrice   decimal.Decimal  `json:"unit_price"`
	FinalPrice  *decimal.Decimal `json:"final_price,omitempty"`
}

// LineTotal returns FinalPrice when overridden, else UnitPrice * Quantity.
func (d Detail) LineTotal() decimal.Decimal {
	if d.FinalPrice != nil {
		return *d.FinalPrice
	}
	return d.UnitPrice.Mul(decimal.NewFromInt(d.Quantity))
}

// SubTotal sums line totals over all details.
func SubTotal(details []Detail) decimal.Decimal {
	total := decimal.Zero
	for _, d := range details {
		total = total.Add(d.LineTotal())
	}
	return total
}
