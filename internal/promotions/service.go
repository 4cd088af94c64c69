package promotions

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dealerdesk/dealerdesk/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	Create(ctx context.Context, p Promotion) (Promotion, error)
	Get(ctx context.Context, id int64) (Promotion, error)
	ListByDealer(ctx context.Context, dealerID int64) ([]Promotion, error)
	UpdateEndDate(ctx context.Context, id int64, endDate time.Time, status Status) error
	SweepStatuses(ctx context.Context, today time.Time) (int64, error)
}

// Service owns promotion lifecycle rules.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// CreateInput describes a new promotion.
type CreateInput struct {
	Value     decimal.Decimal
	Type      Type
	StartDate time.Time
	EndDate   time.Time
}

// Create registers a promotion for the caller's dealer. The stored status is
// derived from the window, never taken from input.
func (s *Service) Create(ctx context.Context, id *shared.Identity, input CreateInput) (Promotion, error) {
	if input.Type != TypeFlatAmount && input.Type != TypePercentage {
		return Promotion{}, shared.Validationf("unknown promotion type %q", input.Type)
	}
	if input.Value.Sign() <= 0 {
		return Promotion{}, shared.Validationf("promotion value must be positive")
	}
	if !input.StartDate.Before(input.EndDate) {
		return Promotion{}, shared.Validationf("start date must precede end date")
	}
	p := Promotion{
		DealerID:  id.DealerID,
		Value:     input.Value,
		Type:      input.Type,
		StartDate: input.StartDate.UTC(),
		EndDate:   input.EndDate.UTC(),
	}
	p.Status = p.StatusAt(s.now())
	return s.repo.Create(ctx, p)
}

// Extend moves the end date outward. The start date is immutable once
// reached; only the end of the window may change, and only forward.
func (s *Service) Extend(ctx context.Context, id *shared.Identity, promotionID int64, endDate time.Time) (Promotion, error) {
	p, err := s.repo.Get(ctx, promotionID)
	if err != nil {
		return Promotion{}, err
	}
	if err := shared.Authorize(id, p.DealerID); err != nil {
		return Promotion{}, err
	}
	if !endDate.After(p.EndDate) {
		return Promotion{}, shared.Validationf("end date may only be extended")
	}
	p.EndDate = endDate.UTC()
	p.Status = p.StatusAt(s.now())
	if err := s.repo.UpdateEndDate(ctx, promotionID, p.EndDate, p.Status); err != nil {
		return Promotion{}, err
	}
	return p, nil
}

// Get returns a promotion owned by the caller's dealer.
func (s *Service) Get(ctx context.Context, id *shared.Identity, promotionID int64) (Promotion, error) {
	p, err := s.repo.Get(ctx, promotionID)
	if err != nil {
		return Promotion{}, err
	}
	if err := shared.Authorize(id, p.DealerID); err != nil {
		return Promotion{}, err
	}
	return p, nil
}

// List returns the caller's dealer promotions.
func (s *Service) List(ctx context.Context, id *shared.Identity) ([]Promotion, error) {
	return s.repo.ListByDealer(ctx, id.DealerID)
}

// Sweep recomputes all stored statuses from wall-clock dates. Runs daily from
// the worker and once at startup.
func (s *Service) Sweep(ctx context.Context) error {
	flipped, err := s.repo.SweepStatuses(ctx, s.now().UTC())
	if err != nil {
		return err
	}
	s.logger.Info("promotion status sweep", slog.Int64("flipped", flipped))
	return nil
}
