package model

import "time"

// EventType enumerates the domain events the Event Sink Bus carries
// out of the transactional core, for consumers such as analytics,
// ranking aggregation and downstream notification services.
type EventType string

const (
	EventSeatHeld      EventType = "seat_held"
	EventSeatReleased  EventType = "seat_released"
	EventHoldExpired   EventType = "hold_expired"
	EventSaleConfirmed EventType = "sale_confirmed"
	EventSaleFailed    EventType = "sale_failed"
)

// Event is a single fact published to the Event Sink Bus. It carries
// just enough context for a consumer to update its own view (a sales
// ranking, a seat map cache, an email queue) without reaching back into
// the transactional store.
//
// Fields:
//  Type          – what happened.
//  FunctionID    – function the event concerns.
//  UserID        – acting user, zero if not applicable.
//  TransactionID – related transaction, zero if not applicable.
//  SeatCodes     – seats involved.
//  AmountCents   – transaction total, zero if not applicable.
//  OccurredAt    – when the event was produced.
type Event struct {
	Type          EventType `json:"type"`
	FunctionID    uint64    `json:"function_id"`
	UserID        uint64    `json:"user_id,omitempty"`
	TransactionID uint64    `json:"transaction_id,omitempty"`
	SeatCodes     []string  `json:"seat_codes,omitempty"`
	AmountCents   int64     `json:"amount_cents,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}
