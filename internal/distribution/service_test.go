package distribution

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dealerdesk/dealerdesk/internal/shared"
)

type memoryRepo struct {
	requests map[int64]Request
	credits  map[string]int64
	nextID   int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{requests: make(map[int64]Request), credits: make(map[string]int64)}
}

func (r *memoryRepo) Create(ctx context.Context, req Request) (Request, error) {
	r.nextID++
	req.ID = r.nextID
	r.requests[req.ID] = req
	return req, nil
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (Request, error) {
	req, ok := r.requests[id]
	if !ok {
		return Request{}, fmt.Errorf("distribution request %d: %w", id, shared.ErrNotFound)
	}
	return req, nil
}

func (r *memoryRepo) ListByDealer(ctx context.Context, dealerID int64) ([]Request, error) {
	var out []Request
	for _, req := range r.requests {
		if req.DealerID == dealerID {
			out = append(out, req)
		}
	}
	return out, nil
}

func (r *memoryRepo) ListPending(ctx context.Context) ([]Request, error) {
	var out []Request
	for _, req := range r.requests {
		if req.Status != StatusRejected && req.Status != StatusDelivered {
			out = append(out, req)
		}
	}
	return out, nil
}

func (r *memoryRepo) transition(id int64, from, to Status, mutate func(*Request)) (bool, error) {
	req, ok := r.requests[id]
	if !ok {
		return false, fmt.Errorf("distribution request %d: %w", id, shared.ErrNotFound)
	}
	if req.Status != from {
		return false, nil
	}
	req.Status = to
	if mutate != nil {
		mutate(&req)
	}
	r.requests[id] = req
	return true, nil
}

func (r *memoryRepo) MarkApproved(ctx context.Context, id int64) (bool, error) {
	now := time.Now()
	return r.transition(id, StatusRequested, StatusApproved, func(req *Request) { req.ApprovedAt = &now })
}

func (r *memoryRepo) MarkRejected(ctx context.Context, id int64) (bool, error) {
	return r.transition(id, StatusRequested, StatusRejected, nil)
}

func (r *memoryRepo) MarkInTransit(ctx context.Context, id int64, expected time.Time) (bool, error) {
	return r.transition(id, StatusApproved, StatusInTransit, func(req *Request) { req.ExpectedDeliveryAt = &expected })
}

func (r *memoryRepo) Deliver(ctx context.Context, id int64) (bool, error) {
	now := time.Now()
	ok, err := r.transition(id, StatusInTransit, StatusDelivered, func(req *Request) { req.ActualDeliveryAt = &now })
	if err != nil || !ok {
		return ok, err
	}
	req := r.requests[id]
	r.credits[fmt.Sprintf("%d:%d", req.DealerID, req.CarConfigID)] += req.Quantity
	return true, nil
}

var (
	dealerStaff  = &shared.Identity{UserID: 7, DealerID: 1, Role: shared.RoleDealerStaff}
	otherDealer  = &shared.Identity{UserID: 8, DealerID: 2, Role: shared.RoleDealerStaff}
	manufacturer = &shared.Identity{UserID: 9, DealerID: 100, Role: shared.RoleManufacturer}
)

func createRequested(t *testing.T, svc *Service) Request {
	t.Helper()
	req, err := svc.Create(context.Background(), dealerStaff, CreateInput{CarConfigID: 10, Quantity: 3})
	require.NoError(t, err)
	require.Equal(t, StatusRequested, req.Status)
	return req
}

func TestFullDeliveryFlow(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	req := createRequested(t, svc)

	req, err := svc.Approve(ctx, manufacturer, req.ID)
	require.NoError(t, err)
	require.Equal(t, StatusApproved, req.Status)
	require.NotNil(t, req.ApprovedAt)

	req, err = svc.SetExpectedDelivery(ctx, manufacturer, req.ID, time.Now().Add(48*time.Hour))
	require.NoError(t, err)
	require.Equal(t, StatusInTransit, req.Status)

	req, err = svc.ConfirmDelivery(ctx, dealerStaff, req.ID)
	require.NoError(t, err)
	require.Equal(t, StatusDelivered, req.Status)
	require.NotNil(t, req.ActualDeliveryAt)

	// Delivery credited the dealer ledger exactly once.
	require.EqualValues(t, 3, repo.credits["1:10"])
}

func TestTransitionsAreMonotonic(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	req := createRequested(t, svc)

	// Cannot ship or deliver from REQUESTED.
	_, err := svc.SetExpectedDelivery(ctx, manufacturer, req.ID, time.Now().Add(time.Hour))
	require.ErrorIs(t, err, shared.ErrConflict)
	_, err = svc.ConfirmDelivery(ctx, dealerStaff, req.ID)
	require.ErrorIs(t, err, shared.ErrConflict)

	_, err = svc.Approve(ctx, manufacturer, req.ID)
	require.NoError(t, err)

	// Cannot re-approve or reject once approved.
	_, err = svc.Approve(ctx, manufacturer, req.ID)
	require.ErrorIs(t, err, shared.ErrConflict)
	_, err = svc.Reject(ctx, manufacturer, req.ID)
	require.ErrorIs(t, err, shared.ErrConflict)

	// No inventory side effects from any failed attempt.
	require.Empty(t, repo.credits)
}

func TestRejectedIsTerminal(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	req := createRequested(t, svc)
	req, err := svc.Reject(ctx, manufacturer, req.ID)
	require.NoError(t, err)
	require.Equal(t, StatusRejected, req.Status)

	_, err = svc.Approve(ctx, manufacturer, req.ID)
	require.ErrorIs(t, err, shared.ErrConflict)
	require.Empty(t, repo.credits)
}

func TestExpectedDeliveryMustBeFuture(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	req := createRequested(t, svc)
	_, err := svc.Approve(ctx, manufacturer, req.ID)
	require.NoError(t, err)

	_, err = svc.SetExpectedDelivery(ctx, manufacturer, req.ID, time.Now().Add(-time.Minute))
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestManufacturerCapabilityRequired(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	req := createRequested(t, svc)
	_, err := svc.Approve(ctx, dealerStaff, req.ID)
	require.ErrorIs(t, err, shared.ErrForbidden)
}

func TestConfirmDeliveryRequiresSameDealer(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	req := createRequested(t, svc)
	_, err := svc.Approve(ctx, manufacturer, req.ID)
	require.NoError(t, err)
	_, err = svc.SetExpectedDelivery(ctx, manufacturer, req.ID, time.Now().Add(time.Hour))
	require.NoError(t, err)

	_, err = svc.ConfirmDelivery(ctx, otherDealer, req.ID)
	require.ErrorIs(t, err, shared.ErrForbidden)

	got, err := svc.Get(ctx, dealerStaff, req.ID)
	require.NoError(t, err)
	require.Equal(t, StatusInTransit, got.Status)
}
