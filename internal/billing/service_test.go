package billing

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/dealerdesk/dealerdesk/internal/orders"
	"github.com/dealerdesk/dealerdesk/internal/shared"
)

// memoryRepo models the transactional repository semantics: payment counts
// and settlement both observe the owning order.
type memoryRepo struct {
	store    *orderStore
	plans    map[int64]Installment
	payments map[int64]*Payment
	nextID   int64
}

type orderStore struct {
	orders map[int64]*orders.Order
}

func (s *orderStore) Get(ctx context.Context, id int64) (orders.Order, error) {
	o, ok := s.orders[id]
	if !ok {
		return orders.Order{}, fmt.Errorf("order %d: %w", id, shared.ErrNotFound)
	}
	return *o, nil
}

func newFixture() (*memoryRepo, *orderStore) {
	store := &orderStore{orders: make(map[int64]*orders.Order)}
	repo := &memoryRepo{
		store:    store,
		plans:    make(map[int64]Installment),
		payments: make(map[int64]*Payment),
	}
	return repo, store
}

func (r *memoryRepo) CreatePlan(ctx context.Context, plan Installment) (Installment, error) {
	if _, ok := r.plans[plan.OrderID]; ok {
		return Installment{}, shared.Conflictf("order %d already has an installment plan", plan.OrderID)
	}
	r.nextID++
	plan.ID = r.nextID
	r.plans[plan.OrderID] = plan
	return plan, nil
}

func (r *memoryRepo) UpdatePlan(ctx context.Context, plan Installment) (Installment, error) {
	existing, ok := r.plans[plan.OrderID]
	if !ok {
		return Installment{}, fmt.Errorf("installment for order %d: %w", plan.OrderID, shared.ErrNotFound)
	}
	plan.ID = existing.ID
	r.plans[plan.OrderID] = plan
	return plan, nil
}

func (r *memoryRepo) GetPlan(ctx context.Context, orderID int64) (Installment, error) {
	plan, ok := r.plans[orderID]
	if !ok {
		return Installment{}, fmt.Errorf("installment for order %d: %w", orderID, shared.ErrNotFound)
	}
	return plan, nil
}

func (r *memoryRepo) HasInstallment(ctx context.Context, orderID int64) (bool, error) {
	_, ok := r.plans[orderID]
	return ok, nil
}

func (r *memoryRepo) InsertPayment(ctx context.Context, p Payment, maxCount int64) (Payment, error) {
	o, ok := r.store.orders[p.OrderID]
	if !ok {
		return Payment{}, fmt.Errorf("order %d: %w", p.OrderID, shared.ErrNotFound)
	}
	if o.Status != orders.StatusAwaitingPayment {
		return Payment{}, shared.Conflictf("order %d is %s, must be %s", p.OrderID, o.Status, orders.StatusAwaitingPayment)
	}
	var count int64
	for _, existing := range r.payments {
		if existing.OrderID == p.OrderID && existing.Status != PaymentFailed {
			count++
		}
	}
	if count >= maxCount {
		return Payment{}, shared.Conflictf("order %d already has %d of %d payments", p.OrderID, count, maxCount)
	}
	r.nextID++
	p.ID = r.nextID
	cp := p
	r.payments[p.ID] = &cp
	return p, nil
}

func (r *memoryRepo) GetPayment(ctx context.Context, id int64) (Payment, error) {
	p, ok := r.payments[id]
	if !ok {
		return Payment{}, fmt.Errorf("payment %d: %w", id, shared.ErrNotFound)
	}
	return *p, nil
}

func (r *memoryRepo) ListPayments(ctx context.Context, orderID int64) ([]Payment, error) {
	var out []Payment
	for _, p := range r.payments {
		if p.OrderID == orderID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *memoryRepo) CompletePayment(ctx context.Context, paymentID int64, completedAt time.Time) (Payment, error) {
	p, ok := r.payments[paymentID]
	if !ok {
		return Payment{}, fmt.Errorf("payment %d: %w", paymentID, shared.ErrNotFound)
	}
	if p.Status != PaymentPending {
		return Payment{}, shared.Conflictf("payment %d is %s, must be %s", paymentID, p.Status, PaymentPending)
	}
	p.Status = PaymentCompleted

	o := r.store.orders[p.OrderID]
	if o.Status != orders.StatusAwaitingPayment {
		return *p, nil
	}
	settle := false
	if shared.ClassifyPaymentMethod(o.PaymentMethod) == shared.PaymentFamilyDirect {
		settle = true
	} else {
		plan := r.plans[p.OrderID]
		completed := decimal.Zero
		for _, other := range r.payments {
			if other.OrderID == p.OrderID && other.Status == PaymentCompleted {
				completed = completed.Add(other.Amount)
			}
		}
		settle = completed.GreaterThanOrEqual(plan.TotalPay)
	}
	if settle {
		o.Status = orders.StatusPaid
		o.CompletionDate = &completedAt
	}
	return *p, nil
}

func (r *memoryRepo) FailPayment(ctx context.Context, paymentID int64) (Payment, error) {
	p, ok := r.payments[paymentID]
	if !ok {
		return Payment{}, fmt.Errorf("payment %d: %w", paymentID, shared.ErrNotFound)
	}
	if p.Status != PaymentPending {
		return Payment{}, shared.Conflictf("payment %d is %s, must be %s", paymentID, p.Status, PaymentPending)
	}
	p.Status = PaymentFailed
	return *p, nil
}

func (r *memoryRepo) DeletePayment(ctx context.Context, paymentID int64) error {
	if _, ok := r.payments[paymentID]; !ok {
		return fmt.Errorf("payment %d: %w", paymentID, shared.ErrNotFound)
	}
	delete(r.payments, paymentID)
	return nil
}

var staff = &shared.Identity{UserID: 3, DealerID: 1, Role: shared.RoleDealerStaff}

func seedOrder(store *orderStore, id int64, method string, total int64) {
	store.orders[id] = &orders.Order{
		ID:            id,
		DealerID:      1,
		Status:        orders.StatusAwaitingPayment,
		PaymentMethod: method,
		TotalAmount:   decimal.NewFromInt(total),
	}
}

func TestComputeSchedule(t *testing.T) {
	interest, totalPay, perTerm := ComputeSchedule(decimal.NewFromInt(600_000_000), 12, decimal.NewFromInt(10))
	require.Equal(t, "60000000", interest.String())
	require.Equal(t, "660000000", totalPay.String())
	require.Equal(t, "55000000", perTerm.String())

	// 24 months doubles the prorated interest.
	interest, totalPay, perTerm = ComputeSchedule(decimal.NewFromInt(600_000_000), 24, decimal.NewFromInt(10))
	require.Equal(t, "120000000", interest.String())
	require.Equal(t, "720000000", totalPay.String())
	require.Equal(t, "30000000", perTerm.String())

	// Uneven division rounds half up at two decimals.
	_, _, perTerm = ComputeSchedule(decimal.NewFromInt(1000), 3, decimal.Zero)
	require.Equal(t, "333.33", perTerm.String())
}

func TestCreateInstallmentPreconditions(t *testing.T) {
	repo, store := newFixture()
	svc := NewService(repo, store, nil)
	ctx := context.Background()
	in := InstallmentInput{TermCount: 12, InterestRate: decimal.NewFromInt(10)}

	// Direct-family method cannot be financed.
	seedOrder(store, 1, "cash", 600_000_000)
	_, err := svc.CreateInstallment(ctx, staff, 1, in)
	require.ErrorIs(t, err, shared.ErrValidation)

	// Nothing to finance.
	seedOrder(store, 2, "installment", 0)
	_, err = svc.CreateInstallment(ctx, staff, 2, in)
	require.ErrorIs(t, err, shared.ErrValidation)

	// A second plan on the same order conflicts.
	seedOrder(store, 3, "financing", 600_000_000)
	_, err = svc.CreateInstallment(ctx, staff, 3, in)
	require.NoError(t, err)
	_, err = svc.CreateInstallment(ctx, staff, 3, in)
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestUpdateInstallmentRecomputesFromPrincipal(t *testing.T) {
	repo, store := newFixture()
	svc := NewService(repo, store, nil)
	ctx := context.Background()

	seedOrder(store, 1, "installment", 600_000_000)
	plan, err := svc.CreateInstallment(ctx, staff, 1, InstallmentInput{TermCount: 12, InterestRate: decimal.NewFromInt(10), Note: "standard 12-month plan"})
	require.NoError(t, err)
	require.Equal(t, "55000000", plan.AmountPerTerm.String())
	require.Equal(t, "standard 12-month plan", plan.Note)

	plan, err = svc.UpdateInstallment(ctx, staff, 1, InstallmentInput{TermCount: 6, InterestRate: decimal.NewFromInt(12), Note: "shortened per customer request"})
	require.NoError(t, err)
	require.Equal(t, "36000000", plan.TotalInterest.String())
	require.Equal(t, "106000000", plan.AmountPerTerm.String())
	require.Equal(t, "600000000", plan.Principal.String())
	require.Equal(t, "shortened per customer request", plan.Note)
}

func TestDirectPaymentFlow(t *testing.T) {
	repo, store := newFixture()
	svc := NewService(repo, store, nil)
	ctx := context.Background()

	seedOrder(store, 1, "bank transfer", 500_000_000)
	p, err := svc.CreatePayment(ctx, staff, 1, PaymentInput{Note: "wire ref 8812"})
	require.NoError(t, err)
	require.Equal(t, PaymentPending, p.Status)
	require.Equal(t, "500000000", p.Amount.String())

	// A direct order takes exactly one payment.
	_, err = svc.CreatePayment(ctx, staff, 1, PaymentInput{})
	require.ErrorIs(t, err, shared.ErrConflict)

	p, err = svc.UpdatePaymentStatus(ctx, staff, p.ID, PaymentCompleted)
	require.NoError(t, err)
	require.Equal(t, PaymentCompleted, p.Status)
	require.Equal(t, orders.StatusPaid, store.orders[1].Status)
	require.NotNil(t, store.orders[1].CompletionDate)
}

func TestInstallmentSettlesAtFullSchedule(t *testing.T) {
	repo, store := newFixture()
	svc := NewService(repo, store, nil)
	ctx := context.Background()

	seedOrder(store, 1, "installment", 600_000_000)
	_, err := svc.CreateInstallment(ctx, staff, 1, InstallmentInput{TermCount: 12, InterestRate: decimal.NewFromInt(10)})
	require.NoError(t, err)

	var payments []Payment
	for i := 0; i < 12; i++ {
		p, err := svc.CreatePayment(ctx, staff, 1, PaymentInput{})
		require.NoError(t, err)
		require.Equal(t, "55000000", p.Amount.String())
		payments = append(payments, p)
	}

	// Schedule is full; a 13th payment conflicts.
	_, err = svc.CreatePayment(ctx, staff, 1, PaymentInput{})
	require.ErrorIs(t, err, shared.ErrConflict)

	// Eleven completions are not enough.
	for i := 0; i < 11; i++ {
		_, err := svc.UpdatePaymentStatus(ctx, staff, payments[i].ID, PaymentCompleted)
		require.NoError(t, err)
	}
	require.Equal(t, orders.StatusAwaitingPayment, store.orders[1].Status)

	// The twelfth settles the order.
	_, err = svc.UpdatePaymentStatus(ctx, staff, payments[11].ID, PaymentCompleted)
	require.NoError(t, err)
	require.Equal(t, orders.StatusPaid, store.orders[1].Status)
}

func TestFailedPaymentFreesScheduleSlot(t *testing.T) {
	repo, store := newFixture()
	svc := NewService(repo, store, nil)
	ctx := context.Background()

	seedOrder(store, 1, "installment", 600_000_000)
	_, err := svc.CreateInstallment(ctx, staff, 1, InstallmentInput{TermCount: 2, InterestRate: decimal.Zero})
	require.NoError(t, err)

	p1, err := svc.CreatePayment(ctx, staff, 1, PaymentInput{})
	require.NoError(t, err)
	_, err = svc.CreatePayment(ctx, staff, 1, PaymentInput{})
	require.NoError(t, err)
	_, err = svc.CreatePayment(ctx, staff, 1, PaymentInput{})
	require.ErrorIs(t, err, shared.ErrConflict)

	// A failed payment no longer occupies the schedule.
	_, err = svc.UpdatePaymentStatus(ctx, staff, p1.ID, PaymentFailed)
	require.NoError(t, err)
	_, err = svc.CreatePayment(ctx, staff, 1, PaymentInput{})
	require.NoError(t, err)
}

func TestPaymentTransitionsAreTerminal(t *testing.T) {
	repo, store := newFixture()
	svc := NewService(repo, store, nil)
	ctx := context.Background()

	seedOrder(store, 1, "cash", 100_000)
	p, err := svc.CreatePayment(ctx, staff, 1, PaymentInput{})
	require.NoError(t, err)

	_, err = svc.UpdatePaymentStatus(ctx, staff, p.ID, PaymentCompleted)
	require.NoError(t, err)
	_, err = svc.UpdatePaymentStatus(ctx, staff, p.ID, PaymentFailed)
	require.ErrorIs(t, err, shared.ErrConflict)

	// An unknown target status never reaches the repository.
	seedOrder(store, 2, "cash", 100_000)
	p2, err := svc.CreatePayment(ctx, staff, 2, PaymentInput{})
	require.NoError(t, err)
	_, err = svc.UpdatePaymentStatus(ctx, staff, p2.ID, PaymentStatus("REFUNDED"))
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestDeletePaymentNeverUnpays(t *testing.T) {
	repo, store := newFixture()
	svc := NewService(repo, store, nil)
	ctx := context.Background()

	seedOrder(store, 1, "cash", 100_000)
	p, err := svc.CreatePayment(ctx, staff, 1, PaymentInput{})
	require.NoError(t, err)
	_, err = svc.UpdatePaymentStatus(ctx, staff, p.ID, PaymentCompleted)
	require.NoError(t, err)
	require.Equal(t, orders.StatusPaid, store.orders[1].Status)

	require.NoError(t, svc.DeletePayment(ctx, staff, p.ID))
	require.Equal(t, orders.StatusPaid, store.orders[1].Status)
}

func TestBillingIsDealerScoped(t *testing.T) {
	repo, store := newFixture()
	svc := NewService(repo, store, nil)
	ctx := context.Background()
	intruder := &shared.Identity{UserID: 4, DealerID: 2, Role: shared.RoleDealerStaff}

	seedOrder(store, 1, "installment", 600_000_000)
	_, err := svc.CreateInstallment(ctx, intruder, 1, InstallmentInput{TermCount: 12, InterestRate: decimal.NewFromInt(10)})
	require.ErrorIs(t, err, shared.ErrForbidden)
	_, err = svc.CreatePayment(ctx, intruder, 1, PaymentInput{})
	require.ErrorIs(t, err, shared.ErrForbidden)
}
