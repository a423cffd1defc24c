package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/cinema-seat-reservation/internal/model"
)

// ErrNotFound is returned when a lookup by ID finds no row.
var ErrNotFound = errors.New("store: not found")

const timeLayout = "2006-01-02 15:04:05"

// mysqlStore is the production Store, built directly on database/sql
// the way the teacher's repository package does — no ORM, explicit
// *sql.Tx threading through every write path so callers control commit
// boundaries.
type mysqlStore struct {
	db *sql.DB
}

// NewMySQLStore wraps an already-opened, already-pinged *sql.DB.
func NewMySQLStore(db *sql.DB) Store {
	return &mysqlStore{db: db}
}

func (s *mysqlStore) DB() *sql.DB { return s.db }

func (s *mysqlStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(ctx, tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *mysqlStore) GetFunction(ctx context.Context, id uint64) (model.Function, error) {
	const q = `SELECT id, hall_id, film_id, title, language, subtitled, starts_at, ends_at,
	                  base_price_cents, vip_price_cents, seats_per_row, status, created_at, updated_at
	           FROM functions WHERE id = ?`
	var f model.Function
	var status string
	err := s.db.QueryRowContext(ctx, q, id).Scan(
		&f.ID, &f.HallID, &f.FilmID, &f.Title, &f.Language, &f.Subtitled, &f.StartsAt, &f.EndsAt,
		&f.BasePriceCents, &f.VIPPriceCents, &f.SeatsPerRow, &status, &f.CreatedAt, &f.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Function{}, ErrNotFound
	}
	if err != nil {
		return model.Function{}, err
	}
	f.Status = model.FunctionStatus(status)
	return f, nil
}

func (s *mysqlStore) ListOpenFunctionIDs(ctx context.Context, now time.Time) ([]uint64, error) {
	const q = `SELECT id FROM functions WHERE status = ? AND starts_at > ?`
	rows, err := s.db.QueryContext(ctx, q, string(model.FunctionScheduled), now.UTC().Format(timeLayout))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *mysqlStore) GetUser(ctx context.Context, id uint64) (model.User, error) {
	const q = `SELECT id, email, password_hash, role, role_id, tier, is_active, created_at, updated_at
	           FROM users WHERE id = ?`
	var u model.User
	var tier string
	err := s.db.QueryRowContext(ctx, q, id).Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.RoleID, &tier, &u.IsActive, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, err
	}
	u.Tier = model.CustomerTier(tier)
	return u, nil
}

func (s *mysqlStore) CreateSelectionsTx(ctx context.Context, tx *sql.Tx, sels []model.Selection) error {
	if len(sels) == 0 {
		return nil
	}
	query := `INSERT INTO selections (function_id, user_id, seat_code, token, status, expires_at) VALUES `
	args := make([]interface{}, 0, len(sels)*6)
	for i, sel := range sels {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?, ?)"
		args = append(args, sel.FunctionID, sel.UserID, sel.SeatCode, sel.Token, string(sel.Status), sel.ExpiresAt.UTC().Format(timeLayout))
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

func (s *mysqlStore) SelectionsForUserTx(ctx context.Context, tx *sql.Tx, userID, functionID uint64, seatCodes []string, status model.SelectionStatus) ([]model.Selection, error) {
	if len(seatCodes) == 0 {
		return nil, nil
	}
	placeholders, args := inClause(seatCodes)
	q := `SELECT id, function_id, user_id, seat_code, token, status, expires_at, created_at, updated_at
	      FROM selections
	      WHERE user_id = ? AND function_id = ? AND status = ? AND seat_code IN (` + placeholders + `)
	      FOR UPDATE`
	full := append([]interface{}{userID, functionID, string(status)}, args...)
	rows, err := tx.QueryContext(ctx, q, full...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSelections(rows)
}

func (s *mysqlStore) SelectionsByCodesTx(ctx context.Context, tx *sql.Tx, functionID uint64, seatCodes []string, status model.SelectionStatus) ([]model.Selection, error) {
	if len(seatCodes) == 0 {
		return nil, nil
	}
	placeholders, args := inClause(seatCodes)
	q := `SELECT id, function_id, user_id, seat_code, token, status, expires_at, created_at, updated_at
	      FROM selections
	      WHERE function_id = ? AND status = ? AND seat_code IN (` + placeholders + `)
	      FOR UPDATE`
	full := append([]interface{}{functionID, string(status)}, args...)
	rows, err := tx.QueryContext(ctx, q, full...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSelections(rows)
}

func (s *mysqlStore) TransitionSelectionsTx(ctx context.Context, tx *sql.Tx, functionID uint64, seatCodes []string, to model.SelectionStatus) error {
	if len(seatCodes) == 0 {
		return nil
	}
	placeholders, args := inClause(seatCodes)
	q := `UPDATE selections SET status = ?, updated_at = UTC_TIMESTAMP()
	      WHERE function_id = ? AND seat_code IN (` + placeholders + `)`
	full := append([]interface{}{string(to), functionID}, args...)
	_, err := tx.ExecContext(ctx, q, full...)
	return err
}

func (s *mysqlStore) ExpiredSelectionsTx(ctx context.Context, tx *sql.Tx, functionID uint64, now time.Time) ([]model.Selection, error) {
	const sel = `SELECT id, function_id, user_id, seat_code, token, status, expires_at, created_at, updated_at
	             FROM selections
	             WHERE function_id = ? AND status = ? AND expires_at <= ?
	             FOR UPDATE`
	rows, err := tx.QueryContext(ctx, sel, functionID, string(model.SelectionTemporary), now.UTC().Format(timeLayout))
	if err != nil {
		return nil, err
	}
	expired, err := scanSelections(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}
	if len(expired) == 0 {
		return nil, nil
	}
	codes := make([]string, len(expired))
	for i, e := range expired {
		codes[i] = e.SeatCode
	}
	if err := s.TransitionSelectionsTx(ctx, tx, functionID, codes, model.SelectionExpired); err != nil {
		return nil, err
	}
	return expired, nil
}

func (s *mysqlStore) SelectionsByFunctionTx(ctx context.Context, tx *sql.Tx, functionID uint64) ([]model.Selection, error) {
	const q = `SELECT id, function_id, user_id, seat_code, token, status, expires_at, created_at, updated_at
	           FROM selections WHERE function_id = ? AND status IN (?, ?)`
	rows, err := tx.QueryContext(ctx, q, functionID, string(model.SelectionTemporary), string(model.SelectionConfirmed))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSelections(rows)
}

func scanSelections(rows *sql.Rows) ([]model.Selection, error) {
	var out []model.Selection
	for rows.Next() {
		var sel model.Selection
		var status string
		if err := rows.Scan(&sel.ID, &sel.FunctionID, &sel.UserID, &sel.SeatCode, &sel.Token, &status,
			&sel.ExpiresAt, &sel.CreatedAt, &sel.UpdatedAt); err != nil {
			return nil, err
		}
		sel.Status = model.SelectionStatus(status)
		out = append(out, sel)
	}
	return out, rows.Err()
}

func (s *mysqlStore) CreateTransactionTx(ctx context.Context, tx *sql.Tx, t *model.Transaction) error {
	const q = `INSERT INTO transactions
	             (uuid, invoice_number, user_id, function_id, subtotal_cents, discount_cents, tax_cents, total_cents,
	              payment_method, state, expires_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, t.UUID, t.InvoiceNumber, t.UserID, t.FunctionID, t.SubtotalCents, t.DiscountCents,
		t.TaxCents, t.TotalCents, t.Payment.Method, string(t.State), t.ExpiresAt.UTC().Format(timeLayout))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)

	if len(t.Seats) == 0 {
		return nil
	}
	query := `INSERT INTO transaction_seats (transaction_id, seat_code, tier, unit_price_cents, discount_applied, final_price_cents) VALUES `
	args := make([]interface{}, 0, len(t.Seats)*6)
	for i, seat := range t.Seats {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?, ?)"
		args = append(args, t.ID, seat.SeatCode, string(seat.Tier), seat.UnitPriceCents, seat.DiscountApplied, seat.FinalPriceCents)
	}
	_, err = tx.ExecContext(ctx, query, args...)
	return err
}

func (s *mysqlStore) UpdateTransactionTx(ctx context.Context, tx *sql.Tx, t *model.Transaction) error {
	const q = `UPDATE transactions
	           SET state = ?, payment_ref = ?, decline_code = ?, payment_processed_at = ?, confirmed_at = ?, updated_at = UTC_TIMESTAMP()
	           WHERE id = ?`
	var confirmedAt interface{}
	if t.ConfirmedAt != nil {
		confirmedAt = t.ConfirmedAt.UTC().Format(timeLayout)
	}
	var processedAt interface{}
	if t.Payment.ProcessedAt != nil {
		processedAt = t.Payment.ProcessedAt.UTC().Format(timeLayout)
	}
	_, err := tx.ExecContext(ctx, q, string(t.State), t.Payment.ExternalRef, t.Payment.DeclineCode, processedAt, confirmedAt, t.ID)
	return err
}

func (s *mysqlStore) GetTransaction(ctx context.Context, id uint64) (model.Transaction, error) {
	t, err := s.loadTransaction(ctx, s.db, id)
	if err != nil {
		return model.Transaction{}, err
	}
	return t, nil
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func (s *mysqlStore) loadTransaction(ctx context.Context, q queryer, id uint64) (model.Transaction, error) {
	const sel = `SELECT id, uuid, invoice_number, user_id, function_id, subtotal_cents, discount_cents, tax_cents, total_cents,
	                    payment_method, payment_ref, decline_code, payment_processed_at, state,
	                    created_at, updated_at, confirmed_at, expires_at
	             FROM transactions WHERE id = ?`
	var t model.Transaction
	var state string
	var paymentRef, declineCode sql.NullString
	var processedAt, confirmedAt sql.NullTime
	err := q.QueryRowContext(ctx, sel, id).Scan(
		&t.ID, &t.UUID, &t.InvoiceNumber, &t.UserID, &t.FunctionID, &t.SubtotalCents, &t.DiscountCents, &t.TaxCents, &t.TotalCents,
		&t.Payment.Method, &paymentRef, &declineCode, &processedAt, &state,
		&t.CreatedAt, &t.UpdatedAt, &confirmedAt, &t.ExpiresAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Transaction{}, ErrNotFound
	}
	if err != nil {
		return model.Transaction{}, err
	}
	t.State = model.TransactionState(state)
	if paymentRef.Valid {
		t.Payment.ExternalRef = &paymentRef.String
	}
	if declineCode.Valid {
		t.Payment.DeclineCode = &declineCode.String
	}
	if processedAt.Valid {
		pt := processedAt.Time
		t.Payment.ProcessedAt = &pt
	}
	if confirmedAt.Valid {
		ct := confirmedAt.Time
		t.ConfirmedAt = &ct
	}

	seatRows, err := q.QueryContext(ctx, `SELECT seat_code, tier, unit_price_cents, discount_applied, final_price_cents
	                                       FROM transaction_seats WHERE transaction_id = ?`, id)
	if err != nil {
		return model.Transaction{}, err
	}
	defer seatRows.Close()
	for seatRows.Next() {
		var item model.SeatLineItem
		var tier string
		if err := seatRows.Scan(&item.SeatCode, &tier, &item.UnitPriceCents, &item.DiscountApplied, &item.FinalPriceCents); err != nil {
			return model.Transaction{}, err
		}
		item.Tier = model.SeatTier(tier)
		t.Seats = append(t.Seats, item)
	}
	return t, seatRows.Err()
}

func (s *mysqlStore) ListTransactionsByUser(ctx context.Context, userID uint64) ([]model.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM transactions WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	out := make([]model.Transaction, 0, len(ids))
	for _, id := range ids {
		t, err := s.loadTransaction(ctx, s.db, id)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *mysqlStore) ExpiredProcessingTransactionsTx(ctx context.Context, tx *sql.Tx, now time.Time) ([]model.Transaction, error) {
	const q = `SELECT id FROM transactions WHERE state = ? AND expires_at <= ? FOR UPDATE`
	rows, err := tx.QueryContext(ctx, q, string(model.TransactionProcessing), now.UTC().Format(timeLayout))
	if err != nil {
		return nil, err
	}
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	out := make([]model.Transaction, 0, len(ids))
	for _, id := range ids {
		t, err := s.loadTransaction(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func inClause(vals []string) (string, []interface{}) {
	placeholders := make([]string, len(vals))
	args := make([]interface{}, len(vals))
	for i, v := range vals {
		placeholders[i] = "?"
		args[i] = v
	}
	return strings.Join(placeholders, ","), args
}
