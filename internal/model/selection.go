package model

import "time"

// SelectionStatus tracks where a seat selection sits in its lifecycle.
// The durable row is a mirror of the authoritative cache-side hold: the
// cache bitmap is what the inventory service consults on the hot path,
// this table exists so a crashed cache can be rebuilt and so holds
// survive being queried after the fact (audit, support).
type SelectionStatus string

const (
	SelectionTemporary SelectionStatus = "TEMPORARY"
	SelectionConfirmed SelectionStatus = "CONFIRMED"
	SelectionReleased  SelectionStatus = "RELEASED"
	SelectionExpired   SelectionStatus = "EXPIRED"
)

// Selection represents a temporary or finalized claim on one seat of
// one function by one user.  Selections are created in bulk by
// Seat Inventory's try_hold operation and transition to CONFIRMED when
// a purchase succeeds, or to RELEASED/EXPIRED when the hold is given up
// voluntarily or by the reaper.
//
// Fields:
//  ID         – primary key identifier.
//  FunctionID – function the seat belongs to.
//  UserID     – user who holds or owns the seat.
//  SeatCode   – canonical "<ROW><NUMBER>" seat code.
//  Token      – random token generated for this selection by try_hold,
//               independent of the lock token; release matches
//               selections by user, not by token.
//  Status     – current lifecycle state.
//  ExpiresAt  – when a TEMPORARY selection lapses absent confirmation.
//  CreatedAt  – creation timestamp.
//  UpdatedAt  – last transition timestamp.
type Selection struct {
	ID         uint64          // selections.id
	FunctionID uint64          // selections.function_id
	UserID     uint64          // selections.user_id
	SeatCode   string          // selections.seat_code
	Token      string          // selections.token
	Status     SelectionStatus // selections.status
	ExpiresAt  time.Time       // selections.expires_at
	CreatedAt  time.Time       // selections.created_at
	UpdatedAt  time.Time       // selections.updated_at
}
