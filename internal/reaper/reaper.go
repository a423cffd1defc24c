// Package reaper implements the Expiry Reaper: a ticker-driven sweep
// that finds TEMPORARY selections whose hold window has lapsed and
// releases them back to FREE. Generalized from the per-item,
// continue-on-error worker loop used to expire stale holds in the
// reference booking worker, adapted to sweep one function at a time
// under that function's own lock instead of locking individual rows.
package reaper

import (
	"context"
	"database/sql"
	"log"
	"time"

	"github.com/iliyamo/cinema-seat-reservation/internal/config"
	"github.com/iliyamo/cinema-seat-reservation/internal/eventbus"
	"github.com/iliyamo/cinema-seat-reservation/internal/inventory"
	"github.com/iliyamo/cinema-seat-reservation/internal/model"
	"github.com/iliyamo/cinema-seat-reservation/internal/store"
)

// Reaper periodically sweeps every function with sales still open for
// expired holds.
type Reaper struct {
	store    store.Store
	inv      *inventory.Service
	bus      eventbus.Bus
	interval time.Duration
}

// New builds a Reaper driven by cfg.ReaperInterval.
func New(st store.Store, inv *inventory.Service, bus eventbus.Bus, cfg config.DomainConfig) *Reaper {
	return &Reaper{store: st, inv: inv, bus: bus, interval: cfg.ReaperInterval}
}

// Run ticks until ctx is cancelled, sweeping once immediately and then
// once per interval.
func (r *Reaper) Run(ctx context.Context) {
	r.sweepAll(ctx)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweepAll(ctx)
		}
	}
}

// sweepAll sweeps every open function in its own short operation,
// logging and continuing on a per-function failure rather than
// letting one bad function stall the rest of the sweep.
func (r *Reaper) sweepAll(ctx context.Context) {
	ids, err := r.store.ListOpenFunctionIDs(ctx, time.Now())
	if err != nil {
		log.Printf("reaper: list open functions failed: %v", err)
	} else {
		for _, id := range ids {
			if err := r.sweepOne(ctx, id); err != nil {
				log.Printf("reaper: sweep function %d failed: %v", id, err)
			}
		}
	}
	r.sweepExpiredTransactions(ctx)
}

// sweepExpiredTransactions force-fails every transaction still stuck in
// PROCESSING past its checkout window (§8 P5: none remains processing
// past expires_at+ε), releasing its held seats and publishing the same
// sale_failed event a declined payment would.
func (r *Reaper) sweepExpiredTransactions(ctx context.Context) {
	var expired []model.Transaction
	err := r.store.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		expired, err = r.store.ExpiredProcessingTransactionsTx(ctx, tx, time.Now())
		return err
	})
	if err != nil {
		log.Printf("reaper: list expired processing transactions failed: %v", err)
		return
	}
	for _, txn := range expired {
		if err := r.failExpiredTransaction(ctx, txn); err != nil {
			log.Printf("reaper: force-fail transaction %d failed: %v", txn.ID, err)
		}
	}
}

func (r *Reaper) failExpiredTransaction(ctx context.Context, txn model.Transaction) error {
	f, err := r.store.GetFunction(ctx, txn.FunctionID)
	if err != nil {
		return err
	}
	codes := txn.SeatCodes()
	if err := r.inv.Release(ctx, f, txn.UserID, codes); err != nil {
		return err
	}

	txn.State = model.TransactionFailed
	if err := r.store.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return r.store.UpdateTransactionTx(ctx, tx, &txn)
	}); err != nil {
		return err
	}

	r.bus.Publish(ctx, model.Event{
		Type:          model.EventSaleFailed,
		FunctionID:    txn.FunctionID,
		UserID:        txn.UserID,
		TransactionID: txn.ID,
		SeatCodes:     codes,
		OccurredAt:    time.Now(),
	})
	log.Printf("reaper: force-failed transaction %d past checkout window %s", txn.ID, txn.ExpiresAt)
	return nil
}

func (r *Reaper) sweepOne(ctx context.Context, functionID uint64) error {
	f, err := r.store.GetFunction(ctx, functionID)
	if err != nil {
		return err
	}
	expired, err := r.inv.SweepExpired(ctx, f)
	if err != nil {
		return err
	}
	if len(expired) == 0 {
		return nil
	}
	byUser := make(map[uint64][]string)
	for _, sel := range expired {
		byUser[sel.UserID] = append(byUser[sel.UserID], sel.SeatCode)
	}
	now := time.Now()
	for userID, codes := range byUser {
		r.bus.Publish(ctx, model.Event{
			Type:       model.EventHoldExpired,
			FunctionID: functionID,
			UserID:     userID,
			SeatCodes:  codes,
			OccurredAt: now,
		})
	}
	log.Printf("reaper: expired %d seat holds for function %d", len(expired), functionID)
	return nil
}
