package model

import "time"

// TransactionState tracks a purchase through the state machine the
// Purchase Coordinator drives: every transaction starts PENDING, moves
// to PROCESSING while payment is in flight, and then settles into
// exactly one terminal state.
type TransactionState string

const (
	TransactionPending    TransactionState = "PENDING"
	TransactionProcessing TransactionState = "PROCESSING"
	TransactionConfirmed  TransactionState = "CONFIRMED"
	TransactionFailed     TransactionState = "FAILED"
	TransactionCancelled  TransactionState = "CANCELLED"
)

// SeatLineItem is one priced seat within a transaction.  It is the
// immutable record of what was charged for a seat, independent of
// whatever the function's current prices happen to be later.
//
// Fields:
//  SeatCode        – canonical "<ROW><NUMBER>" seat code.
//  Tier            – seat tier at time of purchase.
//  UnitPriceCents  – the function's price for the seat's tier; no seat
//                    surcharge is added.
//  DiscountApplied – combined customer-tier + promo discount fraction
//                    applied to this seat, in the range [0, 1].
//  FinalPriceCents – UnitPriceCents after DiscountApplied, rounded.
type SeatLineItem struct {
	SeatCode        string   // transaction_seats.seat_code
	Tier            SeatTier // transaction_seats.tier
	UnitPriceCents  int64    // transaction_seats.unit_price_cents
	DiscountApplied float64  // transaction_seats.discount_applied
	FinalPriceCents int64    // transaction_seats.final_price_cents
}

// PaymentDetail captures what the injected payment capability returned,
// without exposing any of its internals to the rest of the system.
//
// Fields:
//  Method      – payment method label supplied by the caller.
//  ExternalRef – processor-assigned reference, present once authorized.
//  DeclineCode – processor-assigned reason, present only on decline.
//  ProcessedAt – when the payment capability returned its verdict.
type PaymentDetail struct {
	Method      string     // transactions.payment_method
	ExternalRef *string    // transactions.payment_ref (nullable)
	DeclineCode *string    // transactions.decline_code (nullable)
	ProcessedAt *time.Time // transactions.payment_processed_at (nullable)
}

// Transaction records a user's purchase of one or more seats for a
// single function.  It aggregates the seats, their priced line items,
// the computed totals and the payment outcome under one state machine,
// mirroring what the Purchase Coordinator drives seat inventory and the
// payment capability through.
//
// Fields:
//  ID               – primary key identifier.
//  UUID             – opaque transaction identifier, generated once at
//                     creation; the invoice number's hex suffix is
//                     derived from it so the two are bijective.
//  InvoiceNumber    – unique, format CIN-{yyyymmddHHMMSS}-{8hex}.
//  UserID           – user who made the purchase.
//  FunctionID       – function being purchased.
//  Seats            – priced line items, one per seat.
//  SubtotalCents    – sum of UnitPriceCents across all seats.
//  DiscountCents    – total amount removed by discounts.
//  TaxCents         – tax computed on the discounted subtotal.
//  TotalCents       – SubtotalCents - DiscountCents + TaxCents.
//  Payment          – outcome returned by the payment capability.
//  State            – current position in the purchase state machine.
//  CreatedAt        – creation timestamp.
//  UpdatedAt        – last transition timestamp.
//  ConfirmedAt      – when State became CONFIRMED (nil otherwise).
//  ExpiresAt        – now + CHECKOUT_WINDOW at creation; the reaper
//                     force-fails any transaction still PROCESSING
//                     past this instant.
type Transaction struct {
	ID            uint64           // transactions.id
	UUID          string           // transactions.uuid
	InvoiceNumber string           // transactions.invoice_number
	UserID        uint64           // transactions.user_id
	FunctionID    uint64           // transactions.function_id
	Seats         []SeatLineItem   // transaction_seats rows
	SubtotalCents int64            // transactions.subtotal_cents
	DiscountCents int64            // transactions.discount_cents
	TaxCents      int64            // transactions.tax_cents
	TotalCents    int64            // transactions.total_cents
	Payment       PaymentDetail    // embedded payment outcome
	State         TransactionState // transactions.state
	CreatedAt     time.Time        // transactions.created_at
	UpdatedAt     time.Time        // transactions.updated_at
	ConfirmedAt   *time.Time       // transactions.confirmed_at (nullable)
	ExpiresAt     time.Time        // transactions.expires_at
}

// SeatCodes returns the seat codes covered by this transaction, in the
// order they were booked.
func (t Transaction) SeatCodes() []string {
	codes := make([]string, len(t.Seats))
	for i, s := range t.Seats {
		codes[i] = s.SeatCode
	}
	return codes
}
