package purchase

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-seat-reservation/internal/bizerr"
	"github.com/iliyamo/cinema-seat-reservation/internal/cache"
	"github.com/iliyamo/cinema-seat-reservation/internal/config"
	"github.com/iliyamo/cinema-seat-reservation/internal/eventbus"
	"github.com/iliyamo/cinema-seat-reservation/internal/inventory"
	"github.com/iliyamo/cinema-seat-reservation/internal/lock"
	"github.com/iliyamo/cinema-seat-reservation/internal/model"
	"github.com/iliyamo/cinema-seat-reservation/internal/payment"
	"github.com/iliyamo/cinema-seat-reservation/internal/store"
)

type fakePricer struct{}

func (fakePricer) PriceSeat(ctx context.Context, f model.Function, row string, number uint32) (model.SeatTier, int64, error) {
	return model.TierStandard, f.BasePriceCents, nil
}

type fakePayment struct {
	approve bool
}

func (f fakePayment) Authorize(ctx context.Context, req payment.Request) (payment.Result, error) {
	if !f.approve {
		return payment.Result{Approved: false, DeclineCode: "declined", ProcessedAt: time.Now()}, nil
	}
	return payment.Result{Approved: true, ExternalRef: "ref-1", ProcessedAt: time.Now()}, nil
}

type recordingBus struct {
	events []model.Event
}

func (b *recordingBus) Publish(ctx context.Context, ev model.Event) { b.events = append(b.events, ev) }
func (b *recordingBus) Close() error                                { return nil }

var _ eventbus.Bus = (*recordingBus)(nil)

func buildHarness(t *testing.T, approve bool) (*Coordinator, store.Store, model.Function, model.User) {
	t.Helper()
	f := model.Function{
		ID:             1,
		SeatsPerRow:    10,
		BasePriceCents: 1000,
		VIPPriceCents:  1800,
		Status:         model.FunctionScheduled,
		StartsAt:       time.Now().Add(2 * time.Hour),
	}
	user := model.User{ID: 1, Tier: model.CustomerStandard}
	st := store.NewMemoryStore([]model.Function{f}, []model.User{user})
	ca := cache.NewMemoryStore()
	locks := lock.NewManager(ca, time.Second, time.Second, 5*time.Millisecond)
	inv := inventory.NewService(st, ca, locks, config.DomainConfig{MaxSeatsPerHold: 8, HoldWindow: 5 * time.Minute}, nil)
	bus := &recordingBus{}
	coord := NewCoordinator(st, inv, fakePayment{approve: approve}, bus, fakePricer{}, config.DomainConfig{TaxRate: 0.10})
	return coord, st, f, user
}

func TestPurchase_ConfirmsHeldSeatsOnApproval(t *testing.T) {
	ctx := context.Background()
	coord, st, f, user := buildHarness(t, true)

	_, err := coord.inv.TryHold(ctx, f, user.ID, []string{"A1", "A2"})
	require.NoError(t, err)

	txn, err := coord.Purchase(ctx, user, f, []string{"A1", "A2"}, 0, "card")
	require.NoError(t, err)
	assert.Equal(t, model.TransactionConfirmed, txn.State)
	assert.Equal(t, int64(2000), txn.SubtotalCents)
	assert.NotNil(t, txn.ConfirmedAt)

	statuses, err := coord.inv.QueryMap(ctx, f, []string{"A1", "A2"})
	require.NoError(t, err)
	assert.Equal(t, inventory.StateSold, statuses[0].State)
	assert.Equal(t, inventory.StateSold, statuses[1].State)

	stored, err := st.GetTransaction(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TransactionConfirmed, stored.State)
}

func TestPurchase_EstablishesHoldItselfOnDirectCheckout(t *testing.T) {
	ctx := context.Background()
	coord, st, f, user := buildHarness(t, true)

	// No prior TryHold call: a direct checkout of free seats must still
	// succeed, establishing the hold itself before confirming it.
	txn, err := coord.Purchase(ctx, user, f, []string{"A1", "A2"}, 0, "card")
	require.NoError(t, err)
	assert.Equal(t, model.TransactionConfirmed, txn.State)
	assert.NotEmpty(t, txn.UUID)
	assert.Contains(t, txn.InvoiceNumber, "CIN-")
	assert.False(t, txn.ExpiresAt.IsZero())

	statuses, err := coord.inv.QueryMap(ctx, f, []string{"A1", "A2"})
	require.NoError(t, err)
	assert.Equal(t, inventory.StateSold, statuses[0].State)
	assert.Equal(t, inventory.StateSold, statuses[1].State)

	stored, err := st.GetTransaction(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TransactionConfirmed, stored.State)
}

func TestPurchase_ReleasesSeatsOnDecline(t *testing.T) {
	ctx := context.Background()
	coord, _, f, user := buildHarness(t, false)

	_, err := coord.inv.TryHold(ctx, f, user.ID, []string{"B1"})
	require.NoError(t, err)

	_, err = coord.Purchase(ctx, user, f, []string{"B1"}, 0, "card")
	require.Error(t, err)
	be, ok := bizerr.As(err)
	require.True(t, ok)
	assert.Equal(t, bizerr.KindPaymentDeclined, be.Kind)

	statuses, err := coord.inv.QueryMap(ctx, f, []string{"B1"})
	require.NoError(t, err)
	assert.Equal(t, inventory.StateFree, statuses[0].State, "a declined purchase must release its seats back to FREE")
}

func TestPurchase_RejectsWhenSalesClosed(t *testing.T) {
	ctx := context.Background()
	coord, _, f, user := buildHarness(t, true)
	f.Status = model.FunctionFinished

	_, err := coord.Purchase(ctx, user, f, []string{"C1"}, 0, "card")
	require.Error(t, err)
}

func TestPurchase_VIPDiscountStacksWithPromo(t *testing.T) {
	ctx := context.Background()
	coord, _, f, _ := buildHarness(t, true)
	vip := model.User{ID: 2, Tier: model.CustomerVIP}

	_, err := coord.inv.TryHold(ctx, f, vip.ID, []string{"D1"})
	require.NoError(t, err)

	txn, err := coord.Purchase(ctx, vip, f, []string{"D1"}, 0.05, "card")
	require.NoError(t, err)
	// VIP's 15% and the 5% promo stack per §4.C: 1000 * (0.15+0.05) = 200.
	assert.Equal(t, int64(200), txn.DiscountCents, "customer-tier and promo discounts must stack, not take the larger")
}

func TestPurchase_CombinedDiscountClampsAtSubtotal(t *testing.T) {
	ctx := context.Background()
	coord, _, f, _ := buildHarness(t, true)
	premium := model.User{ID: 3, Tier: model.CustomerPremium}

	_, err := coord.inv.TryHold(ctx, f, premium.ID, []string{"D2"})
	require.NoError(t, err)

	// Premium (10%) + a 95% promo would exceed 100%; the combined
	// fraction must clamp to 1 rather than discount past the subtotal.
	txn, err := coord.Purchase(ctx, premium, f, []string{"D2"}, 0.95, "card")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), txn.DiscountCents)
	assert.Equal(t, int64(0), txn.TotalCents)
}

func TestCancel_RevertsConfirmedTransaction(t *testing.T) {
	ctx := context.Background()
	coord, st, f, user := buildHarness(t, true)

	_, err := coord.inv.TryHold(ctx, f, user.ID, []string{"E1"})
	require.NoError(t, err)
	txn, err := coord.Purchase(ctx, user, f, []string{"E1"}, 0, "card")
	require.NoError(t, err)

	require.NoError(t, coord.Cancel(ctx, user, txn.ID))

	stored, err := st.GetTransaction(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TransactionCancelled, stored.State)

	statuses, err := coord.inv.QueryMap(ctx, f, []string{"E1"})
	require.NoError(t, err)
	assert.Equal(t, inventory.StateFree, statuses[0].State)
}

func TestCancel_RejectsWrongOwner(t *testing.T) {
	ctx := context.Background()
	coord, _, f, user := buildHarness(t, true)

	_, err := coord.inv.TryHold(ctx, f, user.ID, []string{"F1"})
	require.NoError(t, err)
	txn, err := coord.Purchase(ctx, user, f, []string{"F1"}, 0, "card")
	require.NoError(t, err)

	other := model.User{ID: 99}
	err = coord.Cancel(ctx, other, txn.ID)
	require.Error(t, err)
	be, ok := bizerr.As(err)
	require.True(t, ok)
	assert.Equal(t, bizerr.KindForbidden, be.Kind)
}

func TestCancel_ReleasesHeldSeatsWhenPending(t *testing.T) {
	ctx := context.Background()
	coord, st, f, user := buildHarness(t, true)

	_, err := coord.inv.TryHold(ctx, f, user.ID, []string{"G1"})
	require.NoError(t, err)

	txn := model.Transaction{
		UserID:     user.ID,
		FunctionID: f.ID,
		Seats:      []model.SeatLineItem{{SeatCode: "G1"}},
		State:      model.TransactionPending,
	}
	require.NoError(t, st.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return st.CreateTransactionTx(ctx, tx, &txn)
	}))

	require.NoError(t, coord.Cancel(ctx, user, txn.ID))

	stored, err := st.GetTransaction(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TransactionCancelled, stored.State)

	statuses, err := coord.inv.QueryMap(ctx, f, []string{"G1"})
	require.NoError(t, err)
	assert.Equal(t, inventory.StateFree, statuses[0].State)
}

func TestCancel_RejectsTerminalState(t *testing.T) {
	ctx := context.Background()
	coord, st, f, user := buildHarness(t, false)

	_, err := coord.inv.TryHold(ctx, f, user.ID, []string{"H1"})
	require.NoError(t, err)
	_, err = coord.Purchase(ctx, user, f, []string{"H1"}, 0, "card")
	require.Error(t, err)

	txns, err := st.ListTransactionsByUser(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, model.TransactionFailed, txns[0].State)

	err = coord.Cancel(ctx, user, txns[0].ID)
	require.Error(t, err)
	be, ok := bizerr.As(err)
	require.True(t, ok)
	assert.Equal(t, bizerr.KindInvalidInput, be.Kind)
}

func TestCancel_RejectsUnknownTransaction(t *testing.T) {
	ctx := context.Background()
	coord, _, _, user := buildHarness(t, true)

	err := coord.Cancel(ctx, user, 999)
	require.Error(t, err)
	be, ok := bizerr.As(err)
	require.True(t, ok)
	assert.Equal(t, bizerr.KindNotFound, be.Kind)
}
