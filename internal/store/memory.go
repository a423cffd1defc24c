package store

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/iliyamo/cinema-seat-reservation/internal/model"
)

// memoryStore is an in-process Store for package tests. It never opens
// a real *sql.DB; DB() panics if called, since nothing in the purchase/
// inventory/reaper test suites needs raw SQL access.
type memoryStore struct {
	mu           sync.Mutex
	functions    map[uint64]model.Function
	users        map[uint64]model.User
	selections   map[uint64]*model.Selection
	transactions map[uint64]*model.Transaction
	nextSelID    uint64
	nextTxID     uint64
}

// NewMemoryStore builds an in-memory Store seeded with the given
// functions and users.
func NewMemoryStore(functions []model.Function, users []model.User) Store {
	m := &memoryStore{
		functions:    map[uint64]model.Function{},
		users:        map[uint64]model.User{},
		selections:   map[uint64]*model.Selection{},
		transactions: map[uint64]*model.Transaction{},
	}
	for _, f := range functions {
		m.functions[f.ID] = f
	}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *memoryStore) DB() *sql.DB { panic("store: DB() unavailable on memory store") }

// WithTx on the memory store just runs fn with a nil *sql.Tx: none of
// the memoryStore methods below dereference it, they dispatch on the
// receiver instead. This keeps the Store interface identical between
// the real and fake implementations without requiring a real driver.
func (m *memoryStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error {
	return fn(ctx, nil)
}

func (m *memoryStore) GetFunction(ctx context.Context, id uint64) (model.Function, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.functions[id]
	if !ok {
		return model.Function{}, ErrNotFound
	}
	return f, nil
}

func (m *memoryStore) ListOpenFunctionIDs(ctx context.Context, now time.Time) ([]uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []uint64
	for id, f := range m.functions {
		if f.SalesOpen(now) {
			out = append(out, id)
		}
	}
	return out, nil
}

func (m *memoryStore) GetUser(ctx context.Context, id uint64) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return u, nil
}

func (m *memoryStore) CreateSelectionsTx(ctx context.Context, tx *sql.Tx, sels []model.Selection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sel := range sels {
		m.nextSelID++
		s := sel
		s.ID = m.nextSelID
		m.selections[s.ID] = &s
	}
	return nil
}

func (m *memoryStore) matchingTemporary(userID, functionID uint64, seatCodes []string, status model.SelectionStatus) []*model.Selection {
	want := map[string]bool{}
	for _, c := range seatCodes {
		want[c] = true
	}
	var out []*model.Selection
	for _, s := range m.selections {
		if s.FunctionID != functionID || s.Status != status {
			continue
		}
		if userID != 0 && s.UserID != userID {
			continue
		}
		if want[s.SeatCode] {
			out = append(out, s)
		}
	}
	return out
}

func (m *memoryStore) SelectionsForUserTx(ctx context.Context, tx *sql.Tx, userID, functionID uint64, seatCodes []string, status model.SelectionStatus) ([]model.Selection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	matches := m.matchingTemporary(userID, functionID, seatCodes, status)
	out := make([]model.Selection, len(matches))
	for i, s := range matches {
		out[i] = *s
	}
	return out, nil
}

func (m *memoryStore) SelectionsByCodesTx(ctx context.Context, tx *sql.Tx, functionID uint64, seatCodes []string, status model.SelectionStatus) ([]model.Selection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	matches := m.matchingTemporary(0, functionID, seatCodes, status)
	out := make([]model.Selection, len(matches))
	for i, s := range matches {
		out[i] = *s
	}
	return out, nil
}

func (m *memoryStore) TransitionSelectionsTx(ctx context.Context, tx *sql.Tx, functionID uint64, seatCodes []string, to model.SelectionStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := map[string]bool{}
	for _, c := range seatCodes {
		want[c] = true
	}
	now := time.Now()
	for _, s := range m.selections {
		if s.FunctionID == functionID && want[s.SeatCode] {
			s.Status = to
			s.UpdatedAt = now
		}
	}
	return nil
}

func (m *memoryStore) ExpiredSelectionsTx(ctx context.Context, tx *sql.Tx, functionID uint64, now time.Time) ([]model.Selection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var expired []model.Selection
	for _, s := range m.selections {
		if s.FunctionID == functionID && s.Status == model.SelectionTemporary && !s.ExpiresAt.After(now) {
			s.Status = model.SelectionExpired
			s.UpdatedAt = now
			expired = append(expired, *s)
		}
	}
	return expired, nil
}

func (m *memoryStore) SelectionsByFunctionTx(ctx context.Context, tx *sql.Tx, functionID uint64) ([]model.Selection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Selection
	for _, s := range m.selections {
		if s.FunctionID == functionID && (s.Status == model.SelectionTemporary || s.Status == model.SelectionConfirmed) {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *memoryStore) CreateTransactionTx(ctx context.Context, tx *sql.Tx, t *model.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextTxID++
	t.ID = m.nextTxID
	cp := *t
	cp.Seats = append([]model.SeatLineItem(nil), t.Seats...)
	m.transactions[t.ID] = &cp
	return nil
}

func (m *memoryStore) UpdateTransactionTx(ctx context.Context, tx *sql.Tx, t *model.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.transactions[t.ID]
	if !ok {
		return ErrNotFound
	}
	existing.State = t.State
	existing.Payment = t.Payment
	existing.ConfirmedAt = t.ConfirmedAt
	existing.UpdatedAt = time.Now()
	return nil
}

func (m *memoryStore) GetTransaction(ctx context.Context, id uint64) (model.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.transactions[id]
	if !ok {
		return model.Transaction{}, ErrNotFound
	}
	return *t, nil
}

func (m *memoryStore) ExpiredProcessingTransactionsTx(ctx context.Context, tx *sql.Tx, now time.Time) ([]model.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Transaction
	for _, t := range m.transactions {
		if t.State == model.TransactionProcessing && !t.ExpiresAt.After(now) {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *memoryStore) ListTransactionsByUser(ctx context.Context, userID uint64) ([]model.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Transaction
	for _, t := range m.transactions {
		if t.UserID == userID {
			out = append(out, *t)
		}
	}
	return out, nil
}
