// Package bizerr defines the typed business errors that cross package
// boundaries between the inventory, lock, purchase and eventbus layers
// and the HTTP handlers. Handlers never inspect driver- or
// infrastructure-specific errors directly; everything that should
// produce a specific HTTP response is translated into a *bizerr.Error
// at the point it is detected.
package bizerr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a business error independently of its message, so
// callers (such as the HTTP handlers' writeBizErr) can branch on it.
type Kind string

const (
	KindInvalidInput      Kind = "invalid_input"
	KindTooManySeats      Kind = "too_many_seats"
	KindSeatUnavailable   Kind = "seat_unavailable"
	KindHoldLost          Kind = "hold_lost"
	KindSalesClosed       Kind = "sales_closed"
	KindLockBusy          Kind = "lock_busy"
	KindPaymentDeclined   Kind = "payment_declined"
	KindPaymentUnavailable Kind = "payment_unavailable"
	KindStoreUnavailable  Kind = "store_unavailable"
	KindUnauthorized      Kind = "unauthorized"
	KindForbidden         Kind = "forbidden"
	KindNotFound          Kind = "not_found"
	KindConflict          Kind = "conflict"
)

// Error is the concrete type every business-rule failure is wrapped in.
// Conflicts carries the seat codes involved when Kind is
// KindSeatUnavailable or KindHoldLost, so the caller can report exactly
// which seats lost the race instead of failing the whole request
// opaquely.
type Error struct {
	Kind      Kind
	Message   string
	Conflicts []string
	Retryable bool
	cause     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.cause }

// HTTPStatus maps the error kind to the status code the HTTP layer
// should return.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindInvalidInput, KindTooManySeats:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindSeatUnavailable, KindHoldLost, KindConflict:
		return http.StatusConflict
	case KindSalesClosed:
		return http.StatusGone
	case KindLockBusy:
		return http.StatusTooManyRequests
	case KindPaymentDeclined:
		return http.StatusPaymentRequired
	case KindPaymentUnavailable, KindStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, cause: cause}
}

func InvalidInput(msg string) *Error {
	return New(KindInvalidInput, msg)
}

func TooManySeats(max int) *Error {
	return New(KindTooManySeats, fmt.Sprintf("at most %d seats may be held at once", max))
}

func SeatUnavailable(conflicts []string) *Error {
	return &Error{
		Kind:      KindSeatUnavailable,
		Message:   "one or more seats are no longer available",
		Conflicts: conflicts,
		Retryable: true,
	}
}

func HoldLost(conflicts []string) *Error {
	return &Error{
		Kind:      KindHoldLost,
		Message:   "hold expired or was released before purchase completed",
		Conflicts: conflicts,
		Retryable: true,
	}
}

func SalesClosed() *Error {
	return New(KindSalesClosed, "sales are closed for this function")
}

func LockBusy() *Error {
	return &Error{Kind: KindLockBusy, Message: "another operation is in progress for this function", Retryable: true}
}

func PaymentDeclined(reason string) *Error {
	return New(KindPaymentDeclined, reason)
}

func PaymentUnavailable(cause error) *Error {
	return Wrap(KindPaymentUnavailable, "payment capability unavailable", cause)
}

func StoreUnavailable(cause error) *Error {
	return Wrap(KindStoreUnavailable, "durable store unavailable", cause)
}

func Unauthorized(msg string) *Error {
	if msg == "" {
		msg = "authentication required"
	}
	return New(KindUnauthorized, msg)
}

func Forbidden(msg string) *Error {
	if msg == "" {
		msg = "not allowed to perform this action"
	}
	return New(KindForbidden, msg)
}

func NotFound(what string) *Error {
	return New(KindNotFound, what+" not found")
}

// As extracts a *Error from err if present in its chain.
func As(err error) (*Error, bool) {
	var be *Error
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}
