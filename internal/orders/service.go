package orders

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dealerdesk/dealerdesk/internal/promotions"
	"github.com/dealerdesk/dealerdesk/internal/shared"
)

// RepositoryPort describes repository operations used by Service. The
// stock-moving methods are transactional end to end; the service never sees a
// state where the ledger and the details disagree.
type RepositoryPort interface {
	Create(ctx context.Context, o Order) (Order, error)
	Get(ctx context.Context, id int64) (Order, error)
	ListByDealer(ctx context.Context, dealerID int64) ([]Order, error)
	AddDetail(ctx context.Context, orderID, carConfigID, qty int64) (Order, error)
	ResizeDetail(ctx context.Context, orderID, detailID, qty int64, finalPrice *decimal.Decimal) (Order, error)
	RemoveDetail(ctx context.Context, orderID, detailID int64) (Order, error)
	SetPromotion(ctx context.Context, orderID int64, promotionID *int64) (Order, error)
	UpdateStatus(ctx context.Context, orderID int64, from, to Status) (bool, error)
	Cancel(ctx context.Context, orderID int64) error
}

// PromotionPort resolves promotions for eligibility checks.
type PromotionPort interface {
	Get(ctx context.Context, id int64) (promotions.Promotion, error)
}

// InstallmentChecker reports whether an installment plan already exists for
// an order. Changing the total under a computed plan would silently desync
// the schedule, so promotion changes are blocked once a plan is in place.
type InstallmentChecker interface {
	HasInstallment(ctx context.Context, orderID int64) (bool, error)
}

// SnapshotInvalidator drops a dealer's cached inventory snapshot after a
// reservation moved stock.
type SnapshotInvalidator interface {
	InvalidateSnapshot(ctx context.Context, dealerID int64)
}

// Service orchestrates order building, reservation and lifecycle.
type Service struct {
	repo         RepositoryPort
	promos       PromotionPort
	installments InstallmentChecker
	snapshots    SnapshotInvalidator
	logger       *slog.Logger
	now          func() time.Time
}

// NewService constructs orders service.
func NewService(repo RepositoryPort, promos PromotionPort, installments InstallmentChecker, snapshots SnapshotInvalidator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:         repo,
		promos:       promos,
		installments: installments,
		snapshots:    snapshots,
		logger:       logger,
		now:          time.Now,
	}
}

// CreateInput describes a new draft order.
type CreateInput struct {
	CustomerID    int64
	PaymentMethod string
}

// Create opens a DRAFT order for the caller's dealership. The payment method
// is free text here; its family only matters once billing starts.
func (s *Service) Create(ctx context.Context, id *shared.Identity, input CreateInput) (Order, error) {
	if input.CustomerID == 0 {
		return Order{}, shared.Validationf("customer required")
	}
	if input.PaymentMethod == "" {
		return Order{}, shared.Validationf("payment method required")
	}
	created, err := s.repo.Create(ctx, Order{
		DealerID:       id.DealerID,
		CustomerID:     input.CustomerID,
		CreatedBy:      id.UserID,
		Status:         StatusDraft,
		PaymentMethod:  input.PaymentMethod,
		SubTotal:       decimal.Zero,
		DiscountAmount: decimal.Zero,
		TotalAmount:    decimal.Zero,
		OrderDate:      s.now().UTC(),
	})
	if err != nil {
		return Order{}, err
	}
	s.logger.Info("order created",
		slog.Int64("order_id", created.ID),
		slog.Int64("dealer_id", created.DealerID),
		slog.String("payment_method", created.PaymentMethod))
	return created, nil
}

// AddDetailInput describes a new order line.
type AddDetailInput struct {
	CarConfigID int64
	Quantity    int64
}

// AddDetail reserves stock for a new line on a draft order.
func (s *Service) AddDetail(ctx context.Context, id *shared.Identity, orderID int64, input AddDetailInput) (Order, error) {
	if input.CarConfigID == 0 {
		return Order{}, shared.Validationf("car config required")
	}
	if input.Quantity <= 0 {
		return Order{}, shared.Validationf("quantity must be positive")
	}
	if err := s.authorize(ctx, id, orderID); err != nil {
		return Order{}, err
	}
	o, err := s.repo.AddDetail(ctx, orderID, input.CarConfigID, input.Quantity)
	if err != nil {
		return Order{}, err
	}
	s.invalidate(ctx, o.DealerID)
	return o, nil
}

// UpdateDetailInput carries a line resize and an optional line total override.
type UpdateDetailInput struct {
	Quantity   int64
	FinalPrice *decimal.Decimal
}

// UpdateDetail resizes a line. Growing it takes more stock, shrinking it
// returns the difference to the ledger.
func (s *Service) UpdateDetail(ctx context.Context, id *shared.Identity, orderID, detailID int64, input UpdateDetailInput) (Order, error) {
	if input.Quantity <= 0 {
		return Order{}, shared.Validationf("quantity must be positive")
	}
	if input.FinalPrice != nil && input.FinalPrice.IsNegative() {
		return Order{}, shared.Validationf("final price must not be negative")
	}
	if err := s.authorize(ctx, id, orderID); err != nil {
		return Order{}, err
	}
	o, err := s.repo.ResizeDetail(ctx, orderID, detailID, input.Quantity, input.FinalPrice)
	if err != nil {
		return Order{}, err
	}
	s.invalidate(ctx, o.DealerID)
	return o, nil
}

// DeleteDetail drops a line and releases its full reservation.
func (s *Service) DeleteDetail(ctx context.Context, id *shared.Identity, orderID, detailID int64) (Order, error) {
	if err := s.authorize(ctx, id, orderID); err != nil {
		return Order{}, err
	}
	o, err := s.repo.RemoveDetail(ctx, orderID, detailID)
	if err != nil {
		return Order{}, err
	}
	s.invalidate(ctx, o.DealerID)
	return o, nil
}

// ApplyPromotionInput attaches a promotion, or clears it when the id is nil.
type ApplyPromotionInput struct {
	PromotionID *int64
}

// ApplyPromotion attaches a promotion to a draft order. The promotion must
// belong to the same dealer and be active today, and the order must have an
// amount to discount. Clearing always succeeds on a draft.
func (s *Service) ApplyPromotion(ctx context.Context, id *shared.Identity, orderID int64, input ApplyPromotionInput) (Order, error) {
	o, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if err := shared.Authorize(id, o.DealerID); err != nil {
		return Order{}, err
	}

	if s.installments != nil {
		hasPlan, err := s.installments.HasInstallment(ctx, orderID)
		if err != nil {
			return Order{}, err
		}
		if hasPlan {
			return Order{}, shared.Conflictf("order %d has an installment plan, promotion is locked", orderID)
		}
	}

	if input.PromotionID != nil {
		promo, err := s.promos.Get(ctx, *input.PromotionID)
		if err != nil {
			return Order{}, err
		}
		if promo.DealerID != o.DealerID {
			return Order{}, shared.Validationf("promotion %d belongs to another dealer", promo.ID)
		}
		if promo.StatusAt(s.now()) != promotions.StatusActive {
			return Order{}, shared.Validationf("promotion %d is not active", promo.ID)
		}
		if !o.SubTotal.IsPositive() {
			return Order{}, shared.Validationf("order %d has no amount to discount", orderID)
		}
	}
	return s.repo.SetPromotion(ctx, orderID, input.PromotionID)
}

// Finalize transitions DRAFT -> AWAITING_PAYMENT. At least one line and a
// positive subtotal required; a zero subtotal would leave nothing to pay.
func (s *Service) Finalize(ctx context.Context, id *shared.Identity, orderID int64) (Order, error) {
	o, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if err := shared.Authorize(id, o.DealerID); err != nil {
		return Order{}, err
	}
	if len(o.Details) == 0 {
		return Order{}, shared.Validationf("order %d has no details", orderID)
	}
	if !o.SubTotal.IsPositive() {
		return Order{}, shared.Validationf("order %d has nothing to pay", orderID)
	}
	ok, err := s.repo.UpdateStatus(ctx, orderID, StatusDraft, StatusAwaitingPayment)
	if err != nil {
		return Order{}, err
	}
	if !ok {
		return Order{}, shared.Conflictf("order %d is %s, must be %s", orderID, o.Status, StatusDraft)
	}
	s.logger.Info("order finalized",
		slog.Int64("order_id", orderID),
		slog.String("total", o.TotalAmount.String()))
	return s.repo.Get(ctx, orderID)
}

// Cancel voids an open order and returns every reserved unit to the ledger.
// PAID orders cannot be cancelled.
func (s *Service) Cancel(ctx context.Context, id *shared.Identity, orderID int64) error {
	o, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if err := shared.Authorize(id, o.DealerID); err != nil {
		return err
	}
	if err := s.repo.Cancel(ctx, orderID); err != nil {
		return err
	}
	s.invalidate(ctx, o.DealerID)
	s.logger.Info("order cancelled",
		slog.Int64("order_id", orderID),
		slog.Int64("dealer_id", o.DealerID))
	return nil
}

// Get returns an order with its details, scoped to the caller's dealership.
func (s *Service) Get(ctx context.Context, id *shared.Identity, orderID int64) (Order, error) {
	o, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if err := shared.Authorize(id, o.DealerID); err != nil {
		return Order{}, err
	}
	return o, nil
}

// List returns the caller's dealership orders, newest first.
func (s *Service) List(ctx context.Context, id *shared.Identity) ([]Order, error) {
	return s.repo.ListByDealer(ctx, id.DealerID)
}

func (s *Service) invalidate(ctx context.Context, dealerID int64) {
	if s.snapshots != nil {
		s.snapshots.InvalidateSnapshot(ctx, dealerID)
	}
}

func (s *Service) authorize(ctx context.Context, id *shared.Identity, orderID int64) error {
	o, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return err
	}
	return shared.Authorize(id, o.DealerID)
}
