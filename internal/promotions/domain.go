package promotions

import (
	"time"

	"github.com/shopspring/decimal"
)

// Type enumerates supported discount kinds.
type Type string

const (
	// TypeFlatAmount subtracts the value directly from the order subtotal.
	TypeFlatAmount Type = "FLAT_AMOUNT"
	// TypePercentage subtracts value percent of the subtotal.
	TypePercentage Type = "PERCENTAGE"
)

// Status is derived from the validity window, never set by users.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusInactive Status = "INACTIVE"
)

// Promotion is a dealer-owned discount with a validity window.
type Promotion struct {
	ID        int64           `json:"id"`
	DealerID  int64           `json:"dealer_id"`
	Value     decimal.Decimal `json:"value"`
	Type      Type            `json:"type"`
	Status    Status          `json:"status"`
	StartDate time.Time       `json:"start_date"`
	EndDate   time.Time       `json:"end_date"`
}

// StatusAt derives the status as a pure function of the window:
// active iff startDate <= today < endDate.
func (p Promotion) StatusAt(today time.Time) Status {
	if !today.Before(p.StartDate) && today.Before(p.EndDate) {
		return StatusActive
	}
	return StatusInactive
}

// Discount computes the discount amount for a subtotal. Percentage division
// runs at 10 fractional digits before the final 2-digit rounding.
func (p Promotion) Discount(subTotal decimal.Decimal) decimal.Decimal {
	if p.Type == TypePercentage {
		return subTotal.Mul(p.Value).DivRound(decimal.NewFromInt(100), 10).Round(2)
	}
	return p.Value.Round(2)
}
