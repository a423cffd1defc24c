package model

import (
	"strconv"
	"strings"
	"time"
)

// SeatTier classifies a seat for pricing and allocation purposes.
type SeatTier string

const (
	TierStandard   SeatTier = "STANDARD"
	TierVIP        SeatTier = "VIP"
	TierAccessible SeatTier = "ACCESSIBLE"
)

// Seat describes a physical seat in a hall.  Seats are
// uniquely identified by their hall, row label and seat number.
// The seat_type indicates whether the seat is standard, VIP or
// accessible for disabled patrons.
//
// Fields:
//  ID         – primary key identifier.
//  HallID     – hall to which this seat belongs.
//  RowLabel   – letter or string designating the row.
//  SeatNumber – number of the seat within the row.
//  SeatType   – type of seat (STANDARD, VIP, ACCESSIBLE).
//  Surcharge  – optional per-seat price addition in cents (nil means
//               no surcharge). The seat repository does not load it and
//               the purchase pricer does not add it to the tier price.
//  IsActive   – whether the seat is active.
//  CreatedAt  – creation timestamp.
//  UpdatedAt  – last update timestamp.
type Seat struct {
	ID         uint64    // seats.id
	HallID     uint64    // seats.hall_id
	RowLabel   string    // seats.row_label
	SeatNumber uint32    // seats.seat_number
	SeatType   SeatTier  // seats.seat_type
	Surcharge  *int64    // seats.surcharge_cents (nullable)
	IsActive   bool      // seats.is_active
	CreatedAt  time.Time // seats.created_at
	UpdatedAt  time.Time // seats.updated_at
}

// Code returns the canonical seat identifier used on the wire and as
// the cache/session key component, e.g. "C12". Row letters are always
// upper-cased so lookups are case-insensitive regardless of how the
// caller formatted the request.
func (s Seat) Code() string {
	return SeatCode(s.RowLabel, s.SeatNumber)
}

// SeatCode builds the canonical "<ROW><NUMBER>" seat code from raw
// parts, upper-casing the row so "c12" and "C12" resolve identically.
func SeatCode(row string, number uint32) string {
	return strings.ToUpper(strings.TrimSpace(row)) + strconv.FormatUint(uint64(number), 10)
}
