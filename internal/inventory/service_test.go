package inventory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/dealerdesk/dealerdesk/internal/shared"
)

type memoryRepo struct {
	entries map[string]Entry
	lists   int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{entries: make(map[string]Entry)}
}

func key(dealerID, carConfigID int64) string {
	return fmt.Sprintf("%d:%d", dealerID, carConfigID)
}

func (r *memoryRepo) Credit(ctx context.Context, dealerID, carConfigID, qty int64) error {
	k := key(dealerID, carConfigID)
	e, ok := r.entries[k]
	if !ok {
		e = Entry{DealerID: dealerID, CarConfigID: carConfigID, Status: EntryStatusPending}
	}
	e.Quantity += qty
	e.UpdatedAt = time.Now()
	r.entries[k] = e
	return nil
}

func (r *memoryRepo) Debit(ctx context.Context, dealerID, carConfigID, qty int64) error {
	k := key(dealerID, carConfigID)
	e, ok := r.entries[k]
	if !ok {
		return fmt.Errorf("inventory entry: %w", shared.ErrNotFound)
	}
	if e.Quantity < qty {
		return shared.ErrInsufficientInventory
	}
	e.Quantity -= qty
	r.entries[k] = e
	return nil
}

func (r *memoryRepo) Get(ctx context.Context, dealerID, carConfigID int64) (Entry, error) {
	e, ok := r.entries[key(dealerID, carConfigID)]
	if !ok {
		return Entry{}, fmt.Errorf("inventory entry: %w", shared.ErrNotFound)
	}
	return e, nil
}

func (r *memoryRepo) SetDealerPrice(ctx context.Context, dealerID, carConfigID int64, price decimal.Decimal) error {
	k := key(dealerID, carConfigID)
	e, ok := r.entries[k]
	if !ok {
		return fmt.Errorf("inventory entry: %w", shared.ErrNotFound)
	}
	e.DealerPrice = price
	e.Status = EntryStatusActive
	r.entries[k] = e
	return nil
}

func (r *memoryRepo) ListByDealer(ctx context.Context, dealerID int64) ([]Entry, error) {
	r.lists++
	var out []Entry
	for _, e := range r.entries {
		if e.DealerID == dealerID {
			out = append(out, e)
		}
	}
	return out, nil
}

func TestCreditThenDebit(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	require.NoError(t, svc.Credit(ctx, 1, 10, 5))
	entry, err := svc.Get(ctx, 1, 10)
	require.NoError(t, err)
	require.EqualValues(t, 5, entry.Quantity)

	require.NoError(t, svc.Debit(ctx, 1, 10, 3))
	entry, err = svc.Get(ctx, 1, 10)
	require.NoError(t, err)
	require.EqualValues(t, 2, entry.Quantity)
}

func TestDebitNeverGoesNegative(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	require.NoError(t, svc.Credit(ctx, 1, 10, 2))

	err := svc.Debit(ctx, 1, 10, 3)
	require.ErrorIs(t, err, shared.ErrInsufficientInventory)
	require.ErrorIs(t, err, shared.ErrConflict)

	// Failed debit leaves the quantity unchanged.
	entry, err := svc.Get(ctx, 1, 10)
	require.NoError(t, err)
	require.EqualValues(t, 2, entry.Quantity)
}

func TestDebitRejectsNonPositiveQty(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)

	err := svc.Debit(context.Background(), 1, 10, 0)
	require.ErrorIs(t, err, shared.ErrValidation)
	err = svc.Credit(context.Background(), 1, 10, -1)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestSnapshotCaching(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := newMemoryRepo()
	svc := NewService(repo, NewSnapshotCache(client, time.Minute), nil)
	ctx := context.Background()

	require.NoError(t, svc.Credit(ctx, 1, 10, 4))

	first, err := svc.Snapshot(ctx, 1)
	require.NoError(t, err)
	require.Len(t, first, 1)

	// Second read is served from cache.
	_, err = svc.Snapshot(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 1, repo.lists)

	// A mutation invalidates the snapshot.
	require.NoError(t, svc.Credit(ctx, 1, 11, 1))
	second, err := svc.Snapshot(ctx, 1)
	require.NoError(t, err)
	require.Len(t, second, 2)
	require.Equal(t, 2, repo.lists)
}
