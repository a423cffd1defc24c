package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-seat-reservation/internal/cache"
	"github.com/iliyamo/cinema-seat-reservation/internal/config"
	"github.com/iliyamo/cinema-seat-reservation/internal/lock"
	"github.com/iliyamo/cinema-seat-reservation/internal/model"
	"github.com/iliyamo/cinema-seat-reservation/internal/store"
)

func testFunction() model.Function {
	return model.Function{
		ID:             1,
		SeatsPerRow:    10,
		BasePriceCents: 1000,
		VIPPriceCents:  1800,
		Status:         model.FunctionScheduled,
		StartsAt:       time.Now().Add(2 * time.Hour),
	}
}

func newTestService(t *testing.T, cfg config.DomainConfig) (*Service, store.Store) {
	t.Helper()
	st := store.NewMemoryStore([]model.Function{testFunction()}, nil)
	ca := cache.NewMemoryStore()
	if cfg.MaxSeatsPerHold == 0 {
		cfg.MaxSeatsPerHold = 8
	}
	if cfg.HoldWindow == 0 {
		cfg.HoldWindow = 5 * time.Minute
	}
	if cfg.LockTTL == 0 {
		cfg.LockTTL = 2 * time.Second
	}
	if cfg.LockWaitMax == 0 {
		cfg.LockWaitMax = time.Second
	}
	if cfg.LockRetryBase == 0 {
		cfg.LockRetryBase = 5 * time.Millisecond
	}
	locks := lock.NewManager(ca, cfg.LockTTL, cfg.LockWaitMax, cfg.LockRetryBase)
	return NewService(st, ca, locks, cfg, nil), st
}

func TestTryHold_AllOrNothing(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, config.DomainConfig{})
	f := testFunction()

	sels, err := svc.TryHold(ctx, f, 1, []string{"A1", "A2"})
	require.NoError(t, err)
	assert.Len(t, sels, 2)

	statuses, err := svc.QueryMap(ctx, f, []string{"A1", "A2", "A3"})
	require.NoError(t, err)
	assert.Equal(t, StateHeld, statuses[0].State)
	assert.Equal(t, StateHeld, statuses[1].State)
	assert.Equal(t, StateFree, statuses[2].State)

	_, err = svc.TryHold(ctx, f, 2, []string{"A2", "A3"})
	require.Error(t, err)

	statuses, err = svc.QueryMap(ctx, f, []string{"A3"})
	require.NoError(t, err)
	assert.Equal(t, StateFree, statuses[0].State, "A3 must not be held by the failed all-or-nothing request")
}

func TestTryHold_IdempotentForSameUser(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, config.DomainConfig{})
	f := testFunction()

	first, err := svc.TryHold(ctx, f, 1, []string{"A1", "A2"})
	require.NoError(t, err)
	assert.Len(t, first, 2)

	// Same user, same seats, repeated within HOLD_WINDOW: a no-op
	// success, not a conflict.
	second, err := svc.TryHold(ctx, f, 1, []string{"A1", "A2"})
	require.NoError(t, err, "re-holding seats the same user already owns must succeed")
	assert.Len(t, second, 2)

	statuses, err := svc.QueryMap(ctx, f, []string{"A1", "A2"})
	require.NoError(t, err)
	assert.Equal(t, StateHeld, statuses[0].State)
	assert.Equal(t, StateHeld, statuses[1].State)
}

func TestTryHold_MixOfOwnedAndNewSeatsSucceeds(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, config.DomainConfig{})
	f := testFunction()

	_, err := svc.TryHold(ctx, f, 1, []string{"A1"})
	require.NoError(t, err)

	// A1 already held by user 1, A2 is new: the whole request should
	// succeed, reusing A1's hold and creating A2's.
	sels, err := svc.TryHold(ctx, f, 1, []string{"A1", "A2"})
	require.NoError(t, err)
	assert.Len(t, sels, 2)

	statuses, err := svc.QueryMap(ctx, f, []string{"A1", "A2"})
	require.NoError(t, err)
	assert.Equal(t, StateHeld, statuses[0].State)
	assert.Equal(t, StateHeld, statuses[1].State)
}

func TestTryHold_RejectsWhenSalesClosed(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, config.DomainConfig{})
	f := testFunction()
	f.Status = model.FunctionFinished

	_, err := svc.TryHold(ctx, f, 1, []string{"A1"})
	require.Error(t, err)
}

func TestTryHold_RejectsTooManySeats(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, config.DomainConfig{MaxSeatsPerHold: 2})
	f := testFunction()

	_, err := svc.TryHold(ctx, f, 1, []string{"A1", "A2", "A3"})
	require.Error(t, err)
}

func TestReleaseThenReHold(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, config.DomainConfig{})
	f := testFunction()

	_, err := svc.TryHold(ctx, f, 1, []string{"B5"})
	require.NoError(t, err)

	require.NoError(t, svc.Release(ctx, f, 1, []string{"B5"}))

	statuses, err := svc.QueryMap(ctx, f, []string{"B5"})
	require.NoError(t, err)
	assert.Equal(t, StateFree, statuses[0].State)

	_, err = svc.TryHold(ctx, f, 2, []string{"B5"})
	require.NoError(t, err, "a released seat must be re-holdable by a different user")
}

func TestConfirm_MovesHeldToSold(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, config.DomainConfig{})
	f := testFunction()

	_, err := svc.TryHold(ctx, f, 1, []string{"C1", "C2"})
	require.NoError(t, err)

	confirmed, err := svc.Confirm(ctx, f, 1, []string{"C1", "C2"})
	require.NoError(t, err)
	assert.Len(t, confirmed, 2)

	statuses, err := svc.QueryMap(ctx, f, []string{"C1", "C2"})
	require.NoError(t, err)
	assert.Equal(t, StateSold, statuses[0].State)
	assert.Equal(t, StateSold, statuses[1].State)
}

func TestConfirm_FailsOnHoldLost(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, config.DomainConfig{})
	f := testFunction()

	_, err := svc.TryHold(ctx, f, 1, []string{"D1"})
	require.NoError(t, err)
	require.NoError(t, svc.Release(ctx, f, 1, []string{"D1"}))

	_, err = svc.Confirm(ctx, f, 1, []string{"D1"})
	require.Error(t, err, "confirming a hold that already expired/released must fail")
}

func TestCancelConfirmed_RevertsToFree(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, config.DomainConfig{})
	f := testFunction()

	_, err := svc.TryHold(ctx, f, 1, []string{"E1"})
	require.NoError(t, err)
	_, err = svc.Confirm(ctx, f, 1, []string{"E1"})
	require.NoError(t, err)

	require.NoError(t, svc.CancelConfirmed(ctx, f, 1, []string{"E1"}))

	statuses, err := svc.QueryMap(ctx, f, []string{"E1"})
	require.NoError(t, err)
	assert.Equal(t, StateFree, statuses[0].State)
}

func TestSweepExpired_ReleasesOnlyLapsedHolds(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, config.DomainConfig{HoldWindow: -time.Minute})
	f := testFunction()

	_, err := svc.TryHold(ctx, f, 1, []string{"F1"})
	require.NoError(t, err)

	expired, err := svc.SweepExpired(ctx, f)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, "F1", expired[0].SeatCode)

	statuses, err := svc.QueryMap(ctx, f, []string{"F1"})
	require.NoError(t, err)
	assert.Equal(t, StateFree, statuses[0].State)
}

func TestRebuild_ReconstructsFromStore(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, config.DomainConfig{})
	f := testFunction()

	_, err := svc.TryHold(ctx, f, 1, []string{"G1"})
	require.NoError(t, err)
	_, err = svc.Confirm(ctx, f, 1, []string{"G1"})
	require.NoError(t, err)

	require.NoError(t, svc.Rebuild(ctx, f))

	statuses, err := svc.QueryMap(ctx, f, []string{"G1"})
	require.NoError(t, err)
	assert.Equal(t, StateSold, statuses[0].State)
}

type recordingPublisher struct {
	events []model.Event
}

func (r *recordingPublisher) Publish(ctx context.Context, ev model.Event) {
	r.events = append(r.events, ev)
}

func TestTryHold_PublishesSeatHeldEvent(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore([]model.Function{testFunction()}, nil)
	ca := cache.NewMemoryStore()
	cfg := config.DomainConfig{LockTTL: time.Second, LockWaitMax: time.Second, LockRetryBase: 5 * time.Millisecond, MaxSeatsPerHold: 8}
	locks := lock.NewManager(ca, cfg.LockTTL, cfg.LockWaitMax, cfg.LockRetryBase)
	pub := &recordingPublisher{}
	svc := NewService(st, ca, locks, cfg, pub)
	f := testFunction()

	_, err := svc.TryHold(ctx, f, 1, []string{"H1"})
	require.NoError(t, err)

	require.Len(t, pub.events, 1)
	assert.Equal(t, model.EventSeatHeld, pub.events[0].Type)
	assert.Equal(t, []string{"H1"}, pub.events[0].SeatCodes)
}
