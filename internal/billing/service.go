package billing

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dealerdesk/dealerdesk/internal/orders"
	"github.com/dealerdesk/dealerdesk/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	CreatePlan(ctx context.Context, plan Installment) (Installment, error)
	UpdatePlan(ctx context.Context, plan Installment) (Installment, error)
	GetPlan(ctx context.Context, orderID int64) (Installment, error)
	InsertPayment(ctx context.Context, p Payment, maxCount int64) (Payment, error)
	GetPayment(ctx context.Context, id int64) (Payment, error)
	ListPayments(ctx context.Context, orderID int64) ([]Payment, error)
	CompletePayment(ctx context.Context, paymentID int64, completedAt time.Time) (Payment, error)
	FailPayment(ctx context.Context, paymentID int64) (Payment, error)
	DeletePayment(ctx context.Context, paymentID int64) error
}

// OrdersPort resolves orders for scoping and amount rules.
type OrdersPort interface {
	Get(ctx context.Context, id int64) (orders.Order, error)
}

// Service owns installment plans and payment settlement.
type Service struct {
	repo   RepositoryPort
	orders OrdersPort
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs billing service.
func NewService(repo RepositoryPort, ordersPort OrdersPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, orders: ordersPort, logger: logger, now: time.Now}
}

// InstallmentInput carries the financing parameters.
type InstallmentInput struct {
	TermCount    int64
	InterestRate decimal.Decimal
	Note         string
}

// CreateInstallment opens a financing schedule for an order. The order must
// carry an installment-family payment method and a positive total; the plan
// freezes the order total as its principal.
func (s *Service) CreateInstallment(ctx context.Context, id *shared.Identity, orderID int64, input InstallmentInput) (Installment, error) {
	if err := validateInstallmentInput(input); err != nil {
		return Installment{}, err
	}
	o, err := s.getOwned(ctx, id, orderID)
	if err != nil {
		return Installment{}, err
	}
	if shared.ClassifyPaymentMethod(o.PaymentMethod) != shared.PaymentFamilyInstallment {
		return Installment{}, shared.Validationf("order %d payment method %q is not an installment method", orderID, o.PaymentMethod)
	}
	if !o.TotalAmount.IsPositive() {
		return Installment{}, shared.Validationf("order %d has no amount to finance", orderID)
	}

	totalInterest, totalPay, perTerm := ComputeSchedule(o.TotalAmount, input.TermCount, input.InterestRate)
	plan, err := s.repo.CreatePlan(ctx, Installment{
		OrderID:       orderID,
		Principal:     o.TotalAmount,
		TermCount:     input.TermCount,
		InterestRate:  input.InterestRate,
		TotalInterest: totalInterest,
		TotalPay:      totalPay,
		AmountPerTerm: perTerm,
		Note:          input.Note,
		CreatedAt:     s.now().UTC(),
	})
	if err != nil {
		return Installment{}, err
	}
	s.logger.Info("installment plan created",
		slog.Int64("order_id", orderID),
		slog.Int64("term_count", plan.TermCount),
		slog.String("amount_per_term", plan.AmountPerTerm.String()))
	return plan, nil
}

// UpdateInstallment recomputes the schedule from the frozen principal with
// new terms. Completed payments keep their recorded amounts.
func (s *Service) UpdateInstallment(ctx context.Context, id *shared.Identity, orderID int64, input InstallmentInput) (Installment, error) {
	if err := validateInstallmentInput(input); err != nil {
		return Installment{}, err
	}
	if _, err := s.getOwned(ctx, id, orderID); err != nil {
		return Installment{}, err
	}
	plan, err := s.repo.GetPlan(ctx, orderID)
	if err != nil {
		return Installment{}, err
	}

	plan.TermCount = input.TermCount
	plan.InterestRate = input.InterestRate
	plan.TotalInterest, plan.TotalPay, plan.AmountPerTerm = ComputeSchedule(plan.Principal, input.TermCount, input.InterestRate)
	plan.Note = input.Note
	plan.UpdatedAt = s.now().UTC()
	return s.repo.UpdatePlan(ctx, plan)
}

// GetInstallment returns the plan for an order in the caller's dealership.
func (s *Service) GetInstallment(ctx context.Context, id *shared.Identity, orderID int64) (Installment, error) {
	if _, err := s.getOwned(ctx, id, orderID); err != nil {
		return Installment{}, err
	}
	return s.repo.GetPlan(ctx, orderID)
}

// PaymentInput carries a new payment request. The amount is never caller
// supplied; it is derived from the order or its plan.
type PaymentInput struct {
	Method string
	Note   string
}

// CreatePayment records a PENDING payment against a finalized order. Direct
// orders take exactly one payment of the full total; installment orders take
// up to termCount payments of the per-term amount.
func (s *Service) CreatePayment(ctx context.Context, id *shared.Identity, orderID int64, input PaymentInput) (Payment, error) {
	o, err := s.getOwned(ctx, id, orderID)
	if err != nil {
		return Payment{}, err
	}

	method := input.Method
	if method == "" {
		method = o.PaymentMethod
	}

	var amount decimal.Decimal
	var maxCount int64
	if shared.ClassifyPaymentMethod(o.PaymentMethod) == shared.PaymentFamilyDirect {
		amount = o.TotalAmount
		maxCount = 1
	} else {
		plan, err := s.repo.GetPlan(ctx, orderID)
		if errors.Is(err, shared.ErrNotFound) {
			return Payment{}, shared.Conflictf("order %d has no installment plan", orderID)
		}
		if err != nil {
			return Payment{}, err
		}
		amount = plan.AmountPerTerm
		maxCount = plan.TermCount
	}

	p, err := s.repo.InsertPayment(ctx, Payment{
		OrderID:   orderID,
		Method:    method,
		Amount:    amount,
		Status:    PaymentPending,
		Note:      input.Note,
		CreatedAt: s.now().UTC(),
	}, maxCount)
	if err != nil {
		return Payment{}, err
	}
	s.logger.Info("payment created",
		slog.Int64("payment_id", p.ID),
		slog.Int64("order_id", orderID),
		slog.String("amount", p.Amount.String()))
	return p, nil
}

// UpdatePaymentStatus moves a PENDING payment to COMPLETED or FAILED.
// Completion settles the order when the obligation is met; failure never
// reverses anything.
func (s *Service) UpdatePaymentStatus(ctx context.Context, id *shared.Identity, paymentID int64, status PaymentStatus) (Payment, error) {
	p, err := s.repo.GetPayment(ctx, paymentID)
	if err != nil {
		return Payment{}, err
	}
	if _, err := s.getOwned(ctx, id, p.OrderID); err != nil {
		return Payment{}, err
	}

	switch status {
	case PaymentCompleted:
		p, err = s.repo.CompletePayment(ctx, paymentID, s.now().UTC())
	case PaymentFailed:
		p, err = s.repo.FailPayment(ctx, paymentID)
	default:
		return Payment{}, shared.Validationf("status must be %s or %s", PaymentCompleted, PaymentFailed)
	}
	if err != nil {
		return Payment{}, err
	}
	s.logger.Info("payment status updated",
		slog.Int64("payment_id", paymentID),
		slog.String("status", string(p.Status)))
	return p, nil
}

// DeletePayment removes a payment record in any status. An order already
// settled by that payment stays settled.
func (s *Service) DeletePayment(ctx context.Context, id *shared.Identity, paymentID int64) error {
	p, err := s.repo.GetPayment(ctx, paymentID)
	if err != nil {
		return err
	}
	if _, err := s.getOwned(ctx, id, p.OrderID); err != nil {
		return err
	}
	return s.repo.DeletePayment(ctx, paymentID)
}

// ListPayments returns all payments against an order in the caller's dealership.
func (s *Service) ListPayments(ctx context.Context, id *shared.Identity, orderID int64) ([]Payment, error) {
	if _, err := s.getOwned(ctx, id, orderID); err != nil {
		return nil, err
	}
	return s.repo.ListPayments(ctx, orderID)
}

func (s *Service) getOwned(ctx context.Context, id *shared.Identity, orderID int64) (orders.Order, error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return orders.Order{}, err
	}
	if err := shared.Authorize(id, o.DealerID); err != nil {
		return orders.Order{}, err
	}
	return o, nil
}

func validateInstallmentInput(input InstallmentInput) error {
	if input.TermCount <= 0 {
		return shared.Validationf("term count must be positive")
	}
	if input.InterestRate.IsNegative() {
		return shared.Validationf("interest rate must not be negative")
	}
	return nil
}
