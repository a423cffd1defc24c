// Package inventory implements the Seat Inventory Service: the
// authoritative three-tier seat state machine (free / held / sold) for
// every function. The hot path — query_map, try_hold, release, confirm
// — is served entirely from the cache bitmaps under the per-function
// distributed lock; the durable store is written in the same critical
// section so a crash leaves the two consistent, and sweep_expired/
// rebuild exist precisely to repair the cache side if it doesn't.
package inventory

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/cinema-seat-reservation/internal/bizerr"
	"github.com/iliyamo/cinema-seat-reservation/internal/cache"
	"github.com/iliyamo/cinema-seat-reservation/internal/config"
	"github.com/iliyamo/cinema-seat-reservation/internal/lock"
	"github.com/iliyamo/cinema-seat-reservation/internal/model"
	"github.com/iliyamo/cinema-seat-reservation/internal/store"
)

// SeatState is the three-tier status QueryMap reports per seat.
type SeatState string

const (
	StateFree SeatState = "FREE"
	StateHeld SeatState = "HELD"
	StateSold SeatState = "SOLD"
)

// SeatStatus pairs a seat code with its current tier.
type SeatStatus struct {
	SeatCode string
	State    SeatState
}

// EventPublisher is the minimal slice of eventbus.Bus the service
// needs. Declared locally (rather than importing eventbus directly)
// since eventbus forwards events to the realtime Hub, which in turn
// depends on this package for SeatStatus - importing eventbus here
// would cycle back.
type EventPublisher interface {
	Publish(ctx context.Context, ev model.Event)
}

// Service is the Seat Inventory Service.
type Service struct {
	store store.Store
	cache cache.Store
	locks *lock.Manager
	cfg   config.DomainConfig
	bus   EventPublisher
}

// NewService wires the Seat Inventory Service to its dependencies: the
// durable store, the cache store, the lock manager that serializes
// mutation per function, and the event sink TryHold/Release publish
// seat_held/seat_released notifications to. bus may be nil, in which
// case those notifications are simply not sent.
func NewService(st store.Store, ca cache.Store, locks *lock.Manager, cfg config.DomainConfig, bus EventPublisher) *Service {
	return &Service{store: st, cache: ca, locks: locks, cfg: cfg, bus: bus}
}

func (s *Service) publish(ctx context.Context, ev model.Event) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(ctx, ev)
}

func heldKey(functionID uint64) string {
	return "seatmap:held:" + strconv.FormatUint(functionID, 10)
}

func soldKey(functionID uint64) string {
	return "seatmap:sold:" + strconv.FormatUint(functionID, 10)
}

// QueryMap reports the current state of each requested seat code
// without taking the function lock: reads of the bitmap are safe to
// run concurrently with writes, since a torn read only ever shows a
// seat transiently as FREE a moment before it's marked HELD, never the
// other way around (holds are only granted after the bit is set).
func (s *Service) QueryMap(ctx context.Context, f model.Function, codes []string) ([]SeatStatus, error) {
	hk, sk := heldKey(f.ID), soldKey(f.ID)
	out := make([]SeatStatus, len(codes))
	for i, code := range codes {
		row, num, err := splitSeatCode(code)
		if err != nil {
			return nil, err
		}
		off := bitOffset(row, num, f.SeatsPerRow)
		sold, err := s.cache.GetBit(ctx, sk, off)
		if err != nil {
			return nil, bizerr.StoreUnavailable(err)
		}
		state := StateFree
		if sold {
			state = StateSold
		} else {
			held, err := s.cache.GetBit(ctx, hk, off)
			if err != nil {
				return nil, bizerr.StoreUnavailable(err)
			}
			if held {
				state = StateHeld
			}
		}
		out[i] = SeatStatus{SeatCode: code, State: state}
	}
	return out, nil
}

// dedupe returns codes with duplicates removed, preserving order.
func dedupe(codes []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}

// TryHold attempts to place a TEMPORARY hold on every requested seat
// for the user, all-or-nothing: if any seat is already HELD by someone
// else or SOLD, no seat is held and the conflicting codes are reported
// back so the caller can retry against the remainder. A seat the
// caller already holds is a no-op success (§4.C idempotence: a repeat
// call with the identical (function, user, seats) within HOLD_WINDOW
// must not be reported as a conflict against the caller's own hold).
func (s *Service) TryHold(ctx context.Context, f model.Function, userID uint64, codes []string) ([]model.Selection, error) {
	if !f.SalesOpen(time.Now()) {
		return nil, bizerr.SalesClosed()
	}
	codes = dedupe(codes)
	if len(codes) == 0 {
		return nil, bizerr.InvalidInput("at least one seat must be selected")
	}
	if len(codes) > s.cfg.MaxSeatsPerHold {
		return nil, bizerr.TooManySeats(s.cfg.MaxSeatsPerHold)
	}

	handle, err := s.locks.Acquire(ctx, f.ID)
	if err != nil {
		return nil, err
	}
	defer s.locks.Release(context.Background(), handle)

	offsets := make([]int64, len(codes))
	for i, code := range codes {
		row, num, err := splitSeatCode(code)
		if err != nil {
			return nil, err
		}
		offsets[i] = bitOffset(row, num, f.SeatsPerRow)
	}

	hk, sk := heldKey(f.ID), soldKey(f.ID)
	var heldCodes []string
	var conflicts []string
	for i, off := range offsets {
		sold, err := s.cache.GetBit(ctx, sk, off)
		if err != nil {
			return nil, bizerr.StoreUnavailable(err)
		}
		if sold {
			conflicts = append(conflicts, codes[i])
			continue
		}
		held, err := s.cache.GetBit(ctx, hk, off)
		if err != nil {
			return nil, bizerr.StoreUnavailable(err)
		}
		if held {
			heldCodes = append(heldCodes, codes[i])
		}
	}

	// A bit set in the held bitmap doesn't say who holds it; consult
	// the durable selections to split heldCodes into the caller's own
	// (already-held, no-op) seats and genuine conflicts. Any conflict,
	// sold or held-by-someone-else, is reported together in one shot:
	// no partial holds on a request that can't be fully satisfied.
	var owned []model.Selection
	var newCodes []string
	if len(heldCodes) > 0 {
		var existing []model.Selection
		if err := s.store.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
			var err error
			existing, err = s.store.SelectionsByCodesTx(ctx, tx, f.ID, heldCodes, model.SelectionTemporary)
			return err
		}); err != nil {
			return nil, bizerr.StoreUnavailable(err)
		}
		byCode := make(map[string]model.Selection, len(existing))
		for _, sel := range existing {
			byCode[sel.SeatCode] = sel
		}
		for _, code := range heldCodes {
			sel, ok := byCode[code]
			if !ok || sel.UserID != userID {
				conflicts = append(conflicts, code)
				continue
			}
			owned = append(owned, sel)
		}
	}
	if len(conflicts) > 0 {
		return nil, bizerr.SeatUnavailable(conflicts)
	}
	heldSet := make(map[string]bool, len(heldCodes))
	for _, code := range heldCodes {
		heldSet[code] = true
	}
	for _, code := range codes {
		if !heldSet[code] {
			newCodes = append(newCodes, code)
		}
	}
	if len(newCodes) == 0 {
		// Every requested seat is already held by this same user: a
		// pure no-op success, returning the existing selections.
		return owned, nil
	}

	newOffsets := make([]int64, len(newCodes))
	for i, code := range newCodes {
		row, num, _ := splitSeatCode(code)
		newOffsets[i] = bitOffset(row, num, f.SeatsPerRow)
	}
	if err := s.cache.SetBits(ctx, hk, newOffsets, true); err != nil {
		return nil, bizerr.StoreUnavailable(err)
	}

	now := time.Now()
	expiresAt := now.Add(s.cfg.HoldWindow)
	sels := make([]model.Selection, len(newCodes))
	for i, code := range newCodes {
		sels[i] = model.Selection{
			FunctionID: f.ID,
			UserID:     userID,
			SeatCode:   code,
			Token:      uuid.NewString(),
			Status:     model.SelectionTemporary,
			ExpiresAt:  expiresAt,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
	}
	if err := s.store.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return s.store.CreateSelectionsTx(ctx, tx, sels)
	}); err != nil {
		// Roll the bitmap back: the durable write is the source of
		// truth and must not diverge from the cache.
		_ = s.cache.SetBits(context.Background(), hk, newOffsets, false)
		return nil, bizerr.StoreUnavailable(err)
	}
	s.publish(ctx, model.Event{
		Type:       model.EventSeatHeld,
		FunctionID: f.ID,
		UserID:     userID,
		SeatCodes:  newCodes,
		OccurredAt: now,
	})
	return append(owned, sels...), nil
}

// Release gives up the caller's holds on the given seats, clearing
// both the cache bitmap and the durable mirror. Seats the caller does
// not actually hold are silently ignored.
func (s *Service) Release(ctx context.Context, f model.Function, userID uint64, codes []string) error {
	codes = dedupe(codes)
	if len(codes) == 0 {
		return nil
	}
	handle, err := s.locks.Acquire(ctx, f.ID)
	if err != nil {
		return err
	}
	defer s.locks.Release(context.Background(), handle)

	return s.releaseLocked(ctx, f, userID, codes, model.SelectionReleased)
}

func (s *Service) releaseLocked(ctx context.Context, f model.Function, userID uint64, codes []string, reason model.SelectionStatus) error {
	var owned []model.Selection
	if err := s.store.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		active, err := s.store.SelectionsForUserTx(ctx, tx, userID, f.ID, codes, model.SelectionTemporary)
		if err != nil {
			return err
		}
		owned = active
		if len(active) == 0 {
			return nil
		}
		ownedCodes := make([]string, len(active))
		for i, a := range active {
			ownedCodes[i] = a.SeatCode
		}
		return s.store.TransitionSelectionsTx(ctx, tx, f.ID, ownedCodes, reason)
	}); err != nil {
		return bizerr.StoreUnavailable(err)
	}
	if len(owned) == 0 {
		return nil
	}
	hk := heldKey(f.ID)
	offsets := make([]int64, len(owned))
	ownedCodes := make([]string, len(owned))
	for i, sel := range owned {
		row, num, _ := splitSeatCode(sel.SeatCode)
		offsets[i] = bitOffset(row, num, f.SeatsPerRow)
		ownedCodes[i] = sel.SeatCode
	}
	if err := s.cache.SetBits(ctx, hk, offsets, false); err != nil {
		return err
	}
	if reason == model.SelectionReleased {
		s.publish(ctx, model.Event{
			Type:       model.EventSeatReleased,
			FunctionID: f.ID,
			UserID:     userID,
			SeatCodes:  ownedCodes,
			OccurredAt: time.Now(),
		})
	}
	return nil
}

// Confirm validates that the caller still holds every requested seat
// and, if so, moves them from HELD to SOLD atomically under the
// function lock. It is called by the Purchase Coordinator inside its
// own transaction boundary once payment has been authorized.
func (s *Service) Confirm(ctx context.Context, f model.Function, userID uint64, codes []string) ([]model.Selection, error) {
	codes = dedupe(codes)
	handle, err := s.locks.Acquire(ctx, f.ID)
	if err != nil {
		return nil, err
	}
	defer s.locks.Release(context.Background(), handle)

	var confirmed []model.Selection
	if err := s.store.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		active, err := s.store.SelectionsForUserTx(ctx, tx, userID, f.ID, codes, model.SelectionTemporary)
		if err != nil {
			return err
		}
		if len(active) != len(codes) {
			have := map[string]bool{}
			for _, a := range active {
				have[a.SeatCode] = true
			}
			var missing []string
			for _, c := range codes {
				if !have[c] {
					missing = append(missing, c)
				}
			}
			return bizerr.HoldLost(missing)
		}
		confirmed = active
		return s.store.TransitionSelectionsTx(ctx, tx, f.ID, codes, model.SelectionConfirmed)
	}); err != nil {
		return nil, err
	}

	hk, sk := heldKey(f.ID), soldKey(f.ID)
	offsets := make([]int64, len(codes))
	for i, code := range codes {
		row, num, _ := splitSeatCode(code)
		offsets[i] = bitOffset(row, num, f.SeatsPerRow)
	}
	if err := s.cache.SetBits(ctx, sk, offsets, true); err != nil {
		return nil, bizerr.StoreUnavailable(err)
	}
	if err := s.cache.SetBits(ctx, hk, offsets, false); err != nil {
		return nil, bizerr.StoreUnavailable(err)
	}
	return confirmed, nil
}

// CancelConfirmed reverts previously SOLD seats back to FREE, used by
// the Purchase Coordinator when a transaction is cancelled ahead of
// the function's start time. Seats the caller does not actually own as
// CONFIRMED selections are silently ignored.
func (s *Service) CancelConfirmed(ctx context.Context, f model.Function, userID uint64, codes []string) error {
	codes = dedupe(codes)
	if len(codes) == 0 {
		return nil
	}
	handle, err := s.locks.Acquire(ctx, f.ID)
	if err != nil {
		return err
	}
	defer s.locks.Release(context.Background(), handle)

	var owned []model.Selection
	if err := s.store.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		active, err := s.store.SelectionsForUserTx(ctx, tx, userID, f.ID, codes, model.SelectionConfirmed)
		if err != nil {
			return err
		}
		owned = active
		if len(active) == 0 {
			return nil
		}
		ownedCodes := make([]string, len(active))
		for i, a := range active {
			ownedCodes[i] = a.SeatCode
		}
		return s.store.TransitionSelectionsTx(ctx, tx, f.ID, ownedCodes, model.SelectionReleased)
	}); err != nil {
		return bizerr.StoreUnavailable(err)
	}
	if len(owned) == 0 {
		return nil
	}
	sk := soldKey(f.ID)
	offsets := make([]int64, len(owned))
	for i, sel := range owned {
		row, num, _ := splitSeatCode(sel.SeatCode)
		offsets[i] = bitOffset(row, num, f.SeatsPerRow)
	}
	return s.cache.SetBits(ctx, sk, offsets, false)
}

// SweepExpired releases every TEMPORARY selection for the function
// whose hold window has lapsed. It is the operation the Expiry Reaper
// drives on a timer; it is also safe to call opportunistically (e.g.
// before TryHold) since it is a no-op when nothing has expired.
func (s *Service) SweepExpired(ctx context.Context, f model.Function) ([]model.Selection, error) {
	handle, err := s.locks.Acquire(ctx, f.ID)
	if err != nil {
		return nil, err
	}
	defer s.locks.Release(context.Background(), handle)

	var expired []model.Selection
	if err := s.store.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		e, err := s.store.ExpiredSelectionsTx(ctx, tx, f.ID, time.Now())
		expired = e
		return err
	}); err != nil {
		return nil, bizerr.StoreUnavailable(err)
	}
	if len(expired) == 0 {
		return nil, nil
	}
	hk := heldKey(f.ID)
	offsets := make([]int64, len(expired))
	for i, sel := range expired {
		row, num, _ := splitSeatCode(sel.SeatCode)
		offsets[i] = bitOffset(row, num, f.SeatsPerRow)
	}
	if err := s.cache.SetBits(ctx, hk, offsets, false); err != nil {
		return nil, bizerr.StoreUnavailable(err)
	}
	return expired, nil
}

// Rebuild reconstructs the cache bitmaps for a function entirely from
// the durable store, discarding whatever is currently cached. It is
// the recovery path for a cache that was flushed or replaced.
func (s *Service) Rebuild(ctx context.Context, f model.Function) error {
	handle, err := s.locks.Acquire(ctx, f.ID)
	if err != nil {
		return err
	}
	defer s.locks.Release(context.Background(), handle)

	var sels []model.Selection
	if err := s.store.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		sels, err = s.store.SelectionsByFunctionTx(ctx, tx, f.ID)
		return err
	}); err != nil {
		return bizerr.StoreUnavailable(err)
	}

	hk, sk := heldKey(f.ID), soldKey(f.ID)
	if err := s.cache.Del(ctx, hk, sk); err != nil {
		return bizerr.StoreUnavailable(err)
	}
	var heldOffsets, soldOffsets []int64
	for _, sel := range sels {
		row, num, err := splitSeatCode(sel.SeatCode)
		if err != nil {
			continue
		}
		off := bitOffset(row, num, f.SeatsPerRow)
		switch sel.Status {
		case model.SelectionTemporary:
			heldOffsets = append(heldOffsets, off)
		case model.SelectionConfirmed:
			soldOffsets = append(soldOffsets, off)
		}
	}
	if err := s.cache.SetBits(ctx, hk, heldOffsets, true); err != nil {
		return bizerr.StoreUnavailable(err)
	}
	return s.cache.SetBits(ctx, sk, soldOffsets, true)
}
