// Package store implements the Durable Store: the system-of-record for
// functions, users, seat selections and transactions. It is the
// generalization of the teacher's repository layer — same raw
// database/sql + *sql.Tx idiom, same row-level SELECT ... FOR UPDATE
// locking discipline — retargeted at the spec's Function/Selection/
// Transaction aggregates instead of Show/SeatHold/Reservation.
package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/cinema-seat-reservation/internal/model"
)

// Store is the full durable-storage contract the inventory, purchase
// and reaper components depend on. A MySQL-backed implementation lives
// in mysql.go; tests use the in-memory fake in memory.go (NewMemoryStore).
type Store interface {
	DB() *sql.DB

	// WithTx runs fn inside a transaction, committing on nil return and
	// rolling back otherwise.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error

	GetFunction(ctx context.Context, id uint64) (model.Function, error)
	ListOpenFunctionIDs(ctx context.Context, now time.Time) ([]uint64, error)

	GetUser(ctx context.Context, id uint64) (model.User, error)

	// CreateSelectionsTx persists newly created TEMPORARY selections.
	CreateSelectionsTx(ctx context.Context, tx *sql.Tx, sels []model.Selection) error

	// SelectionsForUserTx returns the caller's selections in the given
	// status for the function and seat codes, locked FOR UPDATE so a
	// concurrent confirm/expire/cancel can't race past this read.
	SelectionsForUserTx(ctx context.Context, tx *sql.Tx, userID, functionID uint64, seatCodes []string, status model.SelectionStatus) ([]model.Selection, error)

	// SelectionsByCodesTx returns every selection in the given status
	// for the function and seat codes regardless of owner, locked FOR
	// UPDATE. TryHold uses this to tell a seat that's HELD by the
	// requesting user apart from one held by someone else, since the
	// bitmap alone carries no owner.
	SelectionsByCodesTx(ctx context.Context, tx *sql.Tx, functionID uint64, seatCodes []string, status model.SelectionStatus) ([]model.Selection, error)

	// TransitionSelectionsTx moves the named seat codes for a function
	// into the given terminal/temporary state.
	TransitionSelectionsTx(ctx context.Context, tx *sql.Tx, functionID uint64, seatCodes []string, to model.SelectionStatus) error

	// ExpiredSelectionsTx returns and deletes-to-EXPIRED every TEMPORARY
	// selection for the function whose ExpiresAt has passed.
	ExpiredSelectionsTx(ctx context.Context, tx *sql.Tx, functionID uint64, now time.Time) ([]model.Selection, error)

	// SelectionsByFunctionTx returns every non-terminal selection for a
	// function, used by Seat Inventory's rebuild operation to
	// reconstruct the cache bitmap from the durable mirror.
	SelectionsByFunctionTx(ctx context.Context, tx *sql.Tx, functionID uint64) ([]model.Selection, error)

	CreateTransactionTx(ctx context.Context, tx *sql.Tx, t *model.Transaction) error
	UpdateTransactionTx(ctx context.Context, tx *sql.Tx, t *model.Transaction) error
	GetTransaction(ctx context.Context, id uint64) (model.Transaction, error)
	ListTransactionsByUser(ctx context.Context, userID uint64) ([]model.Transaction, error)

	// ExpiredProcessingTransactionsTx returns every transaction still in
	// state PROCESSING whose ExpiresAt has passed, used by the Expiry
	// Reaper to force-fail purchases interrupted mid-payment (§8 P5).
	ExpiredProcessingTransactionsTx(ctx context.Context, tx *sql.Tx, now time.Time) ([]model.Transaction, error)
}
