package reaper

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-seat-reservation/internal/cache"
	"github.com/iliyamo/cinema-seat-reservation/internal/config"
	"github.com/iliyamo/cinema-seat-reservation/internal/inventory"
	"github.com/iliyamo/cinema-seat-reservation/internal/lock"
	"github.com/iliyamo/cinema-seat-reservation/internal/model"
	"github.com/iliyamo/cinema-seat-reservation/internal/store"
)

type recordingBus struct {
	events []model.Event
}

func (b *recordingBus) Publish(ctx context.Context, ev model.Event) { b.events = append(b.events, ev) }
func (b *recordingBus) Close() error                                { return nil }

func TestSweepAll_PublishesOneEventPerAffectedUser(t *testing.T) {
	ctx := context.Background()
	f := model.Function{
		ID:          1,
		SeatsPerRow: 10,
		Status:      model.FunctionScheduled,
		StartsAt:    time.Now().Add(time.Hour),
	}
	st := store.NewMemoryStore([]model.Function{f}, nil)
	ca := cache.NewMemoryStore()
	locks := lock.NewManager(ca, time.Second, time.Second, 5*time.Millisecond)
	inv := inventory.NewService(st, ca, locks, config.DomainConfig{MaxSeatsPerHold: 8, HoldWindow: -time.Minute}, nil)

	_, err := inv.TryHold(ctx, f, 1, []string{"A1", "A2"})
	require.NoError(t, err)
	_, err = inv.TryHold(ctx, f, 2, []string{"B1"})
	require.NoError(t, err)

	bus := &recordingBus{}
	r := New(st, inv, bus, config.DomainConfig{ReaperInterval: time.Hour})
	r.sweepAll(ctx)

	require.Len(t, bus.events, 2, "one hold_expired event per affected user")
	byUser := map[uint64][]string{}
	for _, ev := range bus.events {
		assert.Equal(t, model.EventHoldExpired, ev.Type)
		byUser[ev.UserID] = ev.SeatCodes
	}
	assert.ElementsMatch(t, []string{"A1", "A2"}, byUser[1])
	assert.ElementsMatch(t, []string{"B1"}, byUser[2])

	statuses, err := inv.QueryMap(ctx, f, []string{"A1", "A2", "B1"})
	require.NoError(t, err)
	for _, s := range statuses {
		assert.Equal(t, inventory.StateFree, s.State)
	}
}

func TestSweepAll_NoExpiredHoldsPublishesNothing(t *testing.T) {
	ctx := context.Background()
	f := model.Function{
		ID:          1,
		SeatsPerRow: 10,
		Status:      model.FunctionScheduled,
		StartsAt:    time.Now().Add(time.Hour),
	}
	st := store.NewMemoryStore([]model.Function{f}, nil)
	ca := cache.NewMemoryStore()
	locks := lock.NewManager(ca, time.Second, time.Second, 5*time.Millisecond)
	inv := inventory.NewService(st, ca, locks, config.DomainConfig{MaxSeatsPerHold: 8, HoldWindow: 5 * time.Minute}, nil)

	_, err := inv.TryHold(ctx, f, 1, []string{"C1"})
	require.NoError(t, err)

	bus := &recordingBus{}
	r := New(st, inv, bus, config.DomainConfig{ReaperInterval: time.Hour})
	r.sweepAll(ctx)

	assert.Empty(t, bus.events, "a hold within its window must not be swept")
}

func TestSweepAll_ForceFailsExpiredProcessingTransaction(t *testing.T) {
	ctx := context.Background()
	f := model.Function{
		ID:          1,
		SeatsPerRow: 10,
		Status:      model.FunctionScheduled,
		StartsAt:    time.Now().Add(time.Hour),
	}
	st := store.NewMemoryStore([]model.Function{f}, nil)
	ca := cache.NewMemoryStore()
	locks := lock.NewManager(ca, time.Second, time.Second, 5*time.Millisecond)
	inv := inventory.NewService(st, ca, locks, config.DomainConfig{MaxSeatsPerHold: 8, HoldWindow: 5 * time.Minute}, nil)

	_, err := inv.TryHold(ctx, f, 1, []string{"Z1"})
	require.NoError(t, err)

	txn := model.Transaction{
		UserID:     1,
		FunctionID: f.ID,
		Seats:      []model.SeatLineItem{{SeatCode: "Z1"}},
		State:      model.TransactionProcessing,
		ExpiresAt:  time.Now().Add(-time.Minute),
	}
	require.NoError(t, st.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return st.CreateTransactionTx(ctx, tx, &txn)
	}))

	bus := &recordingBus{}
	r := New(st, inv, bus, config.DomainConfig{ReaperInterval: time.Hour})
	r.sweepAll(ctx)

	stored, err := st.GetTransaction(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TransactionFailed, stored.State, "a transaction stuck in PROCESSING past its checkout window must be force-failed")

	statuses, err := inv.QueryMap(ctx, f, []string{"Z1"})
	require.NoError(t, err)
	assert.Equal(t, inventory.StateFree, statuses[0].State, "force-failing a processing transaction must release its held seat")

	var sawFailed bool
	for _, ev := range bus.events {
		if ev.Type == model.EventSaleFailed && ev.TransactionID == txn.ID {
			sawFailed = true
		}
	}
	assert.True(t, sawFailed, "force-failing must publish a sale_failed event")
}

func TestSweepAll_SkipsFunctionsNotOpenForSales(t *testing.T) {
	ctx := context.Background()
	closedFunc := model.Function{
		ID:          2,
		SeatsPerRow: 10,
		Status:      model.FunctionFinished,
		StartsAt:    time.Now().Add(-time.Hour),
	}
	st := store.NewMemoryStore([]model.Function{closedFunc}, nil)
	ca := cache.NewMemoryStore()
	locks := lock.NewManager(ca, time.Second, time.Second, 5*time.Millisecond)
	inv := inventory.NewService(st, ca, locks, config.DomainConfig{MaxSeatsPerHold: 8}, nil)

	bus := &recordingBus{}
	r := New(st, inv, bus, config.DomainConfig{ReaperInterval: time.Hour})
	r.sweepAll(ctx)

	assert.Empty(t, bus.events)
}
