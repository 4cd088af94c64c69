package inventory

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/dealerdesk/dealerdesk/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	Credit(ctx context.Context, dealerID, carConfigID, qty int64) error
	Debit(ctx context.Context, dealerID, carConfigID, qty int64) error
	Get(ctx context.Context, dealerID, carConfigID int64) (Entry, error)
	SetDealerPrice(ctx context.Context, dealerID, carConfigID int64, price decimal.Decimal) error
	ListByDealer(ctx context.Context, dealerID int64) ([]Entry, error)
}

// Service coordinates ledger operations.
type Service struct {
	repo   RepositoryPort
	cache  *SnapshotCache
	logger *slog.Logger

	snapshots singleflight.Group
}

// NewService builds Service.
func NewService(repo RepositoryPort, cache *SnapshotCache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, logger: logger}
}

// Credit adds delivered stock to the dealer's ledger.
func (s *Service) Credit(ctx context.Context, dealerID, carConfigID, qty int64) error {
	if qty <= 0 {
		return shared.Validationf("credit quantity must be positive")
	}
	if err := s.repo.Credit(ctx, dealerID, carConfigID, qty); err != nil {
		return err
	}
	s.invalidate(ctx, dealerID)
	return nil
}

// Debit reserves stock out of the dealer's ledger.
func (s *Service) Debit(ctx context.Context, dealerID, carConfigID, qty int64) error {
	if qty <= 0 {
		return shared.Validationf("debit quantity must be positive")
	}
	if err := s.repo.Debit(ctx, dealerID, carConfigID, qty); err != nil {
		return err
	}
	s.invalidate(ctx, dealerID)
	return nil
}

// Get returns one ledger entry for the caller's dealer.
func (s *Service) Get(ctx context.Context, dealerID, carConfigID int64) (Entry, error) {
	return s.repo.Get(ctx, dealerID, carConfigID)
}

// SetDealerPrice confirms the sale price for a configuration.
func (s *Service) SetDealerPrice(ctx context.Context, dealerID, carConfigID int64, price decimal.Decimal) error {
	if price.Sign() <= 0 {
		return shared.Validationf("dealer price must be positive")
	}
	if err := s.repo.SetDealerPrice(ctx, dealerID, carConfigID, price); err != nil {
		return err
	}
	s.invalidate(ctx, dealerID)
	return nil
}

// Snapshot returns the dealer's ledger, served from cache when possible.
// Concurrent rebuilds for the same dealer are collapsed into one load.
func (s *Service) Snapshot(ctx context.Context, dealerID int64) ([]Entry, error) {
	key := fmt.Sprintf("dealer:%d", dealerID)
	result, err, _ := s.snapshots.Do(key, func() (any, error) {
		return s.cache.Fetch(ctx, dealerID, func(ctx context.Context) ([]Entry, error) {
			return s.repo.ListByDealer(ctx, dealerID)
		})
	})
	if err != nil {
		return nil, err
	}
	return result.([]Entry), nil
}

// InvalidateSnapshot drops the dealer's cached snapshot after ledger writes
// performed outside this service, such as a delivery confirmation crediting
// the ledger inside the distribution transaction.
func (s *Service) InvalidateSnapshot(ctx context.Context, dealerID int64) {
	s.invalidate(ctx, dealerID)
}

func (s *Service) invalidate(ctx context.Context, dealerID int64) {
	if err := s.cache.Invalidate(ctx, dealerID); err != nil {
		s.logger.Warn("invalidate inventory snapshot", slog.Int64("dealer_id", dealerID), slog.Any("error", err))
	}
}
