package distribution

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dealerdesk/dealerdesk/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	Create(ctx context.Context, req Request) (Request, error)
	Get(ctx context.Context, id int64) (Request, error)
	ListByDealer(ctx context.Context, dealerID int64) ([]Request, error)
	ListPending(ctx context.Context) ([]Request, error)
	MarkApproved(ctx context.Context, id int64) (bool, error)
	MarkRejected(ctx context.Context, id int64) (bool, error)
	MarkInTransit(ctx context.Context, id int64, expected time.Time) (bool, error)
	Deliver(ctx context.Context, id int64) (bool, error)
}

// SnapshotInvalidator drops a dealer's cached inventory snapshot after the
// delivery transaction has credited the ledger.
type SnapshotInvalidator interface {
	InvalidateSnapshot(ctx context.Context, dealerID int64)
}

// Service orchestrates the factory-to-dealer distribution workflow.
type Service struct {
	repo      RepositoryPort
	snapshots SnapshotInvalidator
	logger    *slog.Logger
	now       func() time.Time
}

// NewService constructs distribution service.
func NewService(repo RepositoryPort, snapshots SnapshotInvalidator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, snapshots: snapshots, logger: logger, now: time.Now}
}

// CreateInput describes a dealer's stock request.
type CreateInput struct {
	CarConfigID int64
	Quantity    int64
}

// Create registers a new request in REQUESTED state for the caller's dealer.
func (s *Service) Create(ctx context.Context, id *shared.Identity, input CreateInput) (Request, error) {
	if input.CarConfigID == 0 {
		return Request{}, shared.Validationf("car config required")
	}
	if input.Quantity <= 0 {
		return Request{}, shared.Validationf("quantity must be positive")
	}
	req := Request{
		Code:        fmt.Sprintf("DR-%s", uuid.NewString()),
		DealerID:    id.DealerID,
		CarConfigID: input.CarConfigID,
		Quantity:    input.Quantity,
		Status:      StatusRequested,
		RequestedBy: id.UserID,
		RequestDate: s.now().UTC(),
	}
	created, err := s.repo.Create(ctx, req)
	if err != nil {
		return Request{}, err
	}
	s.logger.Info("distribution request created",
		slog.String("code", created.Code),
		slog.Int64("dealer_id", created.DealerID),
		slog.Int64("qty", created.Quantity))
	return created, nil
}

// Approve transitions REQUESTED -> APPROVED. Manufacturer capability only.
func (s *Service) Approve(ctx context.Context, id *shared.Identity, requestID int64) (Request, error) {
	if err := shared.RequireRole(id, shared.RoleManufacturer); err != nil {
		return Request{}, err
	}
	ok, err := s.repo.MarkApproved(ctx, requestID)
	if err != nil {
		return Request{}, err
	}
	if !ok {
		return Request{}, s.transitionConflict(ctx, requestID, StatusRequested)
	}
	return s.repo.Get(ctx, requestID)
}

// Reject transitions REQUESTED -> REJECTED. Terminal, no inventory effect.
func (s *Service) Reject(ctx context.Context, id *shared.Identity, requestID int64) (Request, error) {
	if err := shared.RequireRole(id, shared.RoleManufacturer); err != nil {
		return Request{}, err
	}
	ok, err := s.repo.MarkRejected(ctx, requestID)
	if err != nil {
		return Request{}, err
	}
	if !ok {
		return Request{}, s.transitionConflict(ctx, requestID, StatusRequested)
	}
	return s.repo.Get(ctx, requestID)
}

// SetExpectedDelivery transitions APPROVED -> IN_TRANSIT. The expected date
// must lie strictly in the future.
func (s *Service) SetExpectedDelivery(ctx context.Context, id *shared.Identity, requestID int64, expected time.Time) (Request, error) {
	if err := shared.RequireRole(id, shared.RoleManufacturer); err != nil {
		return Request{}, err
	}
	if !expected.After(s.now()) {
		return Request{}, shared.Validationf("expected delivery date must be in the future")
	}
	ok, err := s.repo.MarkInTransit(ctx, requestID, expected.UTC())
	if err != nil {
		return Request{}, err
	}
	if !ok {
		return Request{}, s.transitionConflict(ctx, requestID, StatusApproved)
	}
	return s.repo.Get(ctx, requestID)
}

// ConfirmDelivery transitions IN_TRANSIT -> DELIVERED and credits the dealer's
// ledger. Only staff of the requesting dealer may confirm; this is the single
// point where manufacturer stock becomes dealer stock.
func (s *Service) ConfirmDelivery(ctx context.Context, id *shared.Identity, requestID int64) (Request, error) {
	req, err := s.repo.Get(ctx, requestID)
	if err != nil {
		return Request{}, err
	}
	if err := shared.Authorize(id, req.DealerID); err != nil {
		return Request{}, err
	}
	ok, err := s.repo.Deliver(ctx, requestID)
	if err != nil {
		return Request{}, err
	}
	if !ok {
		return Request{}, s.transitionConflict(ctx, requestID, StatusInTransit)
	}
	if s.snapshots != nil {
		s.snapshots.InvalidateSnapshot(ctx, req.DealerID)
	}
	s.logger.Info("distribution delivered",
		slog.String("code", req.Code),
		slog.Int64("dealer_id", req.DealerID),
		slog.Int64("qty", req.Quantity))
	return s.repo.Get(ctx, requestID)
}

// Get returns a single request, dealer-scoped for non-manufacturer callers.
func (s *Service) Get(ctx context.Context, id *shared.Identity, requestID int64) (Request, error) {
	req, err := s.repo.Get(ctx, requestID)
	if err != nil {
		return Request{}, err
	}
	if id.Role != shared.RoleManufacturer {
		if err := shared.Authorize(id, req.DealerID); err != nil {
			return Request{}, err
		}
	}
	return req, nil
}

// List returns the caller's dealer requests, or all pending ones for the
// manufacturer side.
func (s *Service) List(ctx context.Context, id *shared.Identity) ([]Request, error) {
	if id.Role == shared.RoleManufacturer {
		return s.repo.ListPending(ctx)
	}
	return s.repo.ListByDealer(ctx, id.DealerID)
}

// transitionConflict reports a Conflict naming the required state.
func (s *Service) transitionConflict(ctx context.Context, requestID int64, required Status) error {
	req, err := s.repo.Get(ctx, requestID)
	if err != nil {
		return err
	}
	return shared.Conflictf("request %d is %s, must be %s", requestID, req.Status, required)
}
