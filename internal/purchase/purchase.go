// Package purchase implements the Purchase Coordinator: the state
// machine that turns a set of held seats into a priced, paid
// transaction, or unwinds cleanly back to available seats on any
// failure. It is the direct generalization of the original
// comprar_entrada use case — price, charge, confirm-or-rollback — onto
// the cache-bitmap-backed Seat Inventory Service instead of a document
// store.
package purchase

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/cinema-seat-reservation/internal/bizerr"
	"github.com/iliyamo/cinema-seat-reservation/internal/config"
	"github.com/iliyamo/cinema-seat-reservation/internal/eventbus"
	"github.com/iliyamo/cinema-seat-reservation/internal/inventory"
	"github.com/iliyamo/cinema-seat-reservation/internal/model"
	"github.com/iliyamo/cinema-seat-reservation/internal/payment"
	"github.com/iliyamo/cinema-seat-reservation/internal/store"
)

// Coordinator drives a purchase end to end: price the held seats,
// persist a PENDING/PROCESSING transaction, authorize payment, and
// either confirm the seats and the transaction together or release the
// seats and fail the transaction together. Seat confirmation and
// transaction persistence are deliberately two separate commits rather
// than one distributed transaction — if the process crashes between
// them, the worst case is a SOLD seat with a transaction still showing
// PROCESSING, which the reaper or a manual reconciliation pass can
// detect and correct; there is no world in which a seat sale records
// CONFIRMED without a processed payment.
type Coordinator struct {
	store  store.Store
	inv    *inventory.Service
	pay    payment.Capability
	bus    eventbus.Bus
	pricer SeatPricer
	cfg    config.DomainConfig
}

// NewCoordinator wires the Purchase Coordinator to its dependencies.
func NewCoordinator(st store.Store, inv *inventory.Service, pay payment.Capability, bus eventbus.Bus, pricer SeatPricer, cfg config.DomainConfig) *Coordinator {
	return &Coordinator{store: st, inv: inv, pay: pay, bus: bus, pricer: pricer, cfg: cfg}
}

// newInvoiceNumber builds the CIN-{yyyymmddHHMMSS}-{8hex} invoice
// number §3 requires, bijective with (timestamp, transaction uuid):
// the timestamp segment is exact and the hex segment is the leading
// 8 hex digits of txnUUID, so both are recoverable from the number
// together with the stored UUID.
func newInvoiceNumber(now time.Time, txnUUID string) string {
	hex := strings.ReplaceAll(txnUUID, "-", "")
	if len(hex) > 8 {
		hex = hex[:8]
	}
	return "CIN-" + now.UTC().Format("20060102150405") + "-" + hex
}

// Purchase prices and charges the caller's seats for the function,
// confirming them as SOLD on success. It establishes (or reuses) the
// caller's holds itself per §4.E step 4, so a direct checkout of seats
// never held before succeeds exactly like one that held them first.
// method selects the payment method passed through to the payment
// capability; promoDiscount is the promo-code fraction the caller supplied.
// Per §4.C, customer-tier and promo discounts stack:
// discounted = subtotal * (1 − customer_discount − promo_discount),
// clamped so the combined fraction never exceeds 1.
func (c *Coordinator) Purchase(ctx context.Context, user model.User, f model.Function, codes []string, promoDiscount float64, method string) (model.Transaction, error) {
	if !f.SalesOpen(time.Now()) {
		return model.Transaction{}, bizerr.SalesClosed()
	}
	if len(codes) == 0 {
		return model.Transaction{}, bizerr.InvalidInput("at least one seat must be selected")
	}

	if _, err := c.inv.TryHold(ctx, f, user.ID, codes); err != nil {
		return model.Transaction{}, err
	}

	discount := model.CustomerDiscounts[user.Tier] + promoDiscount
	if discount > 1 {
		discount = 1
	}
	if discount < 0 {
		discount = 0
	}

	items, subtotal, discountCents, err := priceLineItems(ctx, c.pricer, f, codes, discount)
	if err != nil {
		_ = c.inv.Release(ctx, f, user.ID, codes)
		return model.Transaction{}, err
	}
	taxable := subtotal - discountCents
	taxCents := roundHalfToEven(float64(taxable) * c.cfg.TaxRate)
	total := taxable + taxCents

	now := time.Now()
	txnUUID := uuid.NewString()
	txn := model.Transaction{
		UUID:          txnUUID,
		InvoiceNumber: newInvoiceNumber(now, txnUUID),
		UserID:        user.ID,
		FunctionID:    f.ID,
		Seats:         items,
		SubtotalCents: subtotal,
		DiscountCents: discountCents,
		TaxCents:      taxCents,
		TotalCents:    total,
		Payment:       model.PaymentDetail{Method: method},
		State:         model.TransactionPending,
		ExpiresAt:     now.Add(c.cfg.CheckoutWindow),
	}
	if err := c.store.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return c.store.CreateTransactionTx(ctx, tx, &txn)
	}); err != nil {
		_ = c.inv.Release(ctx, f, user.ID, codes)
		return model.Transaction{}, bizerr.StoreUnavailable(err)
	}

	txn.State = model.TransactionProcessing
	if err := c.store.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return c.store.UpdateTransactionTx(ctx, tx, &txn)
	}); err != nil {
		_ = c.inv.Release(ctx, f, user.ID, codes)
		return model.Transaction{}, bizerr.StoreUnavailable(err)
	}

	result, payErr := c.pay.Authorize(ctx, payment.Request{
		TransactionID: txn.ID,
		UserID:        user.ID,
		AmountCents:   total,
		Method:        method,
	})

	if payErr != nil || !result.Approved {
		return c.fail(ctx, txn, f, user.ID, codes, result)
	}
	return c.confirm(ctx, txn, f, user.ID, codes, result)
}

func (c *Coordinator) confirm(ctx context.Context, txn model.Transaction, f model.Function, userID uint64, codes []string, result payment.Result) (model.Transaction, error) {
	if _, err := c.inv.Confirm(ctx, f, userID, codes); err != nil {
		// Payment already succeeded but the hold evaporated underneath
		// us (expired mid-authorization). The transaction is marked
		// FAILED even though money moved; reconciliation against the
		// payment capability's ledger is out of scope for this system.
		return c.fail(ctx, txn, f, userID, codes, result)
	}

	now := time.Now()
	ref := result.ExternalRef
	txn.Payment.ExternalRef = &ref
	txn.Payment.ProcessedAt = &result.ProcessedAt
	txn.State = model.TransactionConfirmed
	txn.ConfirmedAt = &now

	if err := c.store.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return c.store.UpdateTransactionTx(ctx, tx, &txn)
	}); err != nil {
		return model.Transaction{}, bizerr.StoreUnavailable(err)
	}

	c.bus.Publish(ctx, model.Event{
		Type:          model.EventSaleConfirmed,
		FunctionID:    f.ID,
		UserID:        userID,
		TransactionID: txn.ID,
		SeatCodes:     codes,
		AmountCents:   txn.TotalCents,
		OccurredAt:    now,
	})
	return txn, nil
}

func (c *Coordinator) fail(ctx context.Context, txn model.Transaction, f model.Function, userID uint64, codes []string, result payment.Result) (model.Transaction, error) {
	_ = c.inv.Release(ctx, f, userID, codes)

	now := time.Now()
	if result.DeclineCode != "" {
		dc := result.DeclineCode
		txn.Payment.DeclineCode = &dc
	}
	if !result.ProcessedAt.IsZero() {
		txn.Payment.ProcessedAt = &result.ProcessedAt
	}
	txn.State = model.TransactionFailed

	if err := c.store.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return c.store.UpdateTransactionTx(ctx, tx, &txn)
	}); err != nil {
		return model.Transaction{}, bizerr.StoreUnavailable(err)
	}

	c.bus.Publish(ctx, model.Event{
		Type:       model.EventSaleFailed,
		FunctionID: f.ID,
		UserID:     userID,
		SeatCodes:  codes,
		OccurredAt: now,
	})

	reason := "payment declined"
	if result.DeclineCode != "" {
		reason = result.DeclineCode
	}
	return model.Transaction{}, bizerr.PaymentDeclined(reason)
}

// Cancel voids a transaction owned by user. §4.E's state diagram allows
// owner-cancellation from PENDING or PROCESSING (before payment is
// invoked), releasing the held-but-not-yet-sold seats back to FREE.
// A CONFIRMED transaction has already been paid for and sold; §3's
// Non-goals rule out a refund workflow beyond marking the transaction
// cancelled, so cancelling a CONFIRMED transaction is also accepted
// here as that workflow's entire extent — it reverts the SOLD seats to
// FREE via CancelConfirmed and marks the transaction CANCELLED, with no
// separate REFUNDED state or money movement. Any other state (FAILED,
// CANCELLED) is terminal and rejected.
func (c *Coordinator) Cancel(ctx context.Context, user model.User, transactionID uint64) error {
	txn, err := c.store.GetTransaction(ctx, transactionID)
	if err != nil {
		if err == store.ErrNotFound {
			return bizerr.NotFound("transaction")
		}
		return bizerr.StoreUnavailable(err)
	}
	if txn.UserID != user.ID {
		return bizerr.Forbidden("transaction does not belong to this user")
	}

	f, err := c.store.GetFunction(ctx, txn.FunctionID)
	if err != nil {
		return bizerr.StoreUnavailable(err)
	}
	codes := txn.SeatCodes()

	switch txn.State {
	case model.TransactionPending, model.TransactionProcessing:
		if err := c.inv.Release(ctx, f, user.ID, codes); err != nil {
			return err
		}
	case model.TransactionConfirmed:
		if !time.Now().Before(f.StartsAt) {
			return bizerr.SalesClosed()
		}
		if err := c.inv.CancelConfirmed(ctx, f, user.ID, codes); err != nil {
			return err
		}
	default:
		return bizerr.InvalidInput("only pending, processing or confirmed transactions can be cancelled")
	}

	txn.State = model.TransactionCancelled
	if err := c.store.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return c.store.UpdateTransactionTx(ctx, tx, &txn)
	}); err != nil {
		return bizerr.StoreUnavailable(err)
	}

	c.bus.Publish(ctx, model.Event{
		Type:          model.EventSeatReleased,
		FunctionID:    f.ID,
		UserID:        user.ID,
		TransactionID: txn.ID,
		SeatCodes:     codes,
		OccurredAt:    time.Now(),
	})
	return nil
}
