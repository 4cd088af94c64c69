package promotions

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/dealerdesk/dealerdesk/internal/shared"
)

type memoryRepo struct {
	promos map[int64]Promotion
	nextID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{promos: make(map[int64]Promotion)}
}

func (r *memoryRepo) Create(ctx context.Context, p Promotion) (Promotion, error) {
	r.nextID++
	p.ID = r.nextID
	r.promos[p.ID] = p
	return p, nil
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (Promotion, error) {
	p, ok := r.promos[id]
	if !ok {
		return Promotion{}, fmt.Errorf("promotion %d: %w", id, shared.ErrNotFound)
	}
	return p, nil
}

func (r *memoryRepo) ListByDealer(ctx context.Context, dealerID int64) ([]Promotion, error) {
	var out []Promotion
	for _, p := range r.promos {
		if p.DealerID == dealerID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memoryRepo) UpdateEndDate(ctx context.Context, id int64, endDate time.Time, status Status) error {
	p, ok := r.promos[id]
	if !ok {
		return fmt.Errorf("promotion %d: %w", id, shared.ErrNotFound)
	}
	p.EndDate = endDate
	p.Status = status
	r.promos[id] = p
	return nil
}

func (r *memoryRepo) SweepStatuses(ctx context.Context, today time.Time) (int64, error) {
	var flipped int64
	for id, p := range r.promos {
		next := p.StatusAt(today)
		if next != p.Status {
			p.Status = next
			r.promos[id] = p
			flipped++
		}
	}
	return flipped, nil
}

var staff = &shared.Identity{UserID: 1, DealerID: 1, Role: shared.RoleDealerStaff}

func TestStatusDerivation(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	p := Promotion{
		StartDate: now.AddDate(0, 0, -1),
		EndDate:   now.AddDate(0, 0, 1),
	}
	require.Equal(t, StatusActive, p.StatusAt(now))
	require.Equal(t, StatusActive, p.StatusAt(p.StartDate))
	// The window is half-open: inactive exactly at the end date.
	require.Equal(t, StatusInactive, p.StatusAt(p.EndDate))
	require.Equal(t, StatusInactive, p.StatusAt(p.StartDate.Add(-time.Second)))
}

func TestDiscountComputation(t *testing.T) {
	flat := Promotion{Type: TypeFlatAmount, Value: decimal.NewFromInt(5_000_000)}
	require.True(t, flat.Discount(decimal.NewFromInt(100_000_000)).Equal(decimal.NewFromInt(5_000_000)))

	pct := Promotion{Type: TypePercentage, Value: decimal.NewFromInt(10)}
	require.True(t, pct.Discount(decimal.NewFromInt(600_000_000)).Equal(decimal.NewFromInt(60_000_000)))

	// Over-100 percentages compute as-is; the order layer rejects negative totals.
	over := Promotion{Type: TypePercentage, Value: decimal.NewFromInt(150)}
	require.True(t, over.Discount(decimal.NewFromInt(100)).Equal(decimal.NewFromInt(150)))
}

func TestCreateValidation(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, staff, CreateInput{Type: "COUPON", Value: decimal.NewFromInt(1), StartDate: time.Now(), EndDate: time.Now().AddDate(0, 1, 0)})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(ctx, staff, CreateInput{Type: TypeFlatAmount, Value: decimal.Zero, StartDate: time.Now(), EndDate: time.Now().AddDate(0, 1, 0)})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(ctx, staff, CreateInput{Type: TypeFlatAmount, Value: decimal.NewFromInt(1), StartDate: time.Now(), EndDate: time.Now().AddDate(0, -1, 0)})
	require.ErrorIs(t, err, shared.ErrValidation)

	p, err := svc.Create(ctx, staff, CreateInput{Type: TypePercentage, Value: decimal.NewFromInt(10), StartDate: time.Now().AddDate(0, 0, -1), EndDate: time.Now().AddDate(0, 1, 0)})
	require.NoError(t, err)
	require.Equal(t, StatusActive, p.Status)
	require.EqualValues(t, 1, p.DealerID)
}

func TestExtendOnlyForward(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	p, err := svc.Create(ctx, staff, CreateInput{Type: TypeFlatAmount, Value: decimal.NewFromInt(1), StartDate: time.Now().AddDate(0, 0, -2), EndDate: time.Now().AddDate(0, 0, -1)})
	require.NoError(t, err)
	require.Equal(t, StatusInactive, p.Status)

	_, err = svc.Extend(ctx, staff, p.ID, p.EndDate.AddDate(0, 0, -1))
	require.ErrorIs(t, err, shared.ErrValidation)

	extended, err := svc.Extend(ctx, staff, p.ID, time.Now().AddDate(0, 1, 0))
	require.NoError(t, err)
	require.Equal(t, StatusActive, extended.Status)

	other := &shared.Identity{UserID: 2, DealerID: 99, Role: shared.RoleDealerStaff}
	_, err = svc.Extend(ctx, other, p.ID, time.Now().AddDate(0, 2, 0))
	require.ErrorIs(t, err, shared.ErrForbidden)
}

func TestSweepFlipsStatuses(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	expired, err := svc.Create(ctx, staff, CreateInput{Type: TypeFlatAmount, Value: decimal.NewFromInt(1), StartDate: time.Now().AddDate(0, 0, -10), EndDate: time.Now().AddDate(0, 0, 5)})
	require.NoError(t, err)
	require.Equal(t, StatusActive, expired.Status)

	// Simulate the window having passed since the status was stored.
	p := repo.promos[expired.ID]
	p.EndDate = time.Now().AddDate(0, 0, -1)
	repo.promos[expired.ID] = p

	require.NoError(t, svc.Sweep(ctx))
	require.Equal(t, StatusInactive, repo.promos[expired.ID].Status)
}
