package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus enumerates the payment lifecycle. PENDING may move to
// COMPLETED or FAILED; both of those are terminal.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentCompleted PaymentStatus = "COMPLETED"
	PaymentFailed    PaymentStatus = "FAILED"
)

// Installment is the financing schedule for a single order. Principal is the
// order total frozen at plan creation, so later recalculation is always
// reproducible.
type Installment struct {
	ID            int64           `json:"id"`
	OrderID       int64           `json:"order_id"`
	Principal     decimal.Decimal `json:"principal"`
	TermCount     int64           `json:"term_count"`
	InterestRate  decimal.Decimal `json:"interest_rate"`
	TotalInterest decimal.Decimal `json:"total_interest"`
	TotalPay      decimal.Decimal `json:"total_pay"`
	AmountPerTerm decimal.Decimal `json:"amount_per_term"`
	Note          string          `json:"note,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Payment is one settlement event against an order.
type Payment struct {
	ID        int64           `json:"id"`
	OrderID   int64           `json:"order_id"`
	Method    string          `json:"method"`
	Amount    decimal.Decimal `json:"amount"`
	Status    PaymentStatus   `json:"status"`
	Note      string          `json:"note,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

var (
	hundred = decimal.NewFromInt(100)
	twelve  = decimal.NewFromInt(12)
)

// ComputeSchedule derives the simple-interest figures for a plan. The annual
// rate is prorated over the term in months; division runs at 10 fractional
// digits before the final 2-digit rounding.
//
//	interest = principal * (rate/100) * (termCount/12)
//	perTerm  = (principal + interest) / termCount
func ComputeSchedule(principal decimal.Decimal, termCount int64, rate decimal.Decimal) (totalInterest, totalPay, amountPerTerm decimal.Decimal) {
	months := decimal.NewFromInt(termCount)
	totalInterest = principal.
		Mul(rate).DivRound(hundred, 10).
		Mul(months).DivRound(twelve, 10).
		Round(2)
	totalPay = principal.Add(totalInterest)
	amountPerTerm = totalPay.DivRound(months, 10).Round(2)
	return totalInterest, totalPay, amountPerTerm
}
