// Package lock implements the per-function distributed lock that
// serializes seat inventory mutations and realtime broadcast ordering
// across all server instances. It is built entirely on the cache
// Store's SetNX/CompareAndDelete/CompareAndExpire primitives, mirroring
// how the original service acquired its Redis lock with a random
// acquirer token and released it with a compare-and-delete script
// rather than a bare DEL.
package lock

import (
	"context"
	"math/rand"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/cinema-seat-reservation/internal/bizerr"
	"github.com/iliyamo/cinema-seat-reservation/internal/cache"
)

// Handle is returned by Acquire and must be passed to Release/Renew. It
// carries the acquirer token so a caller can never release a lock it
// doesn't hold, even if it still has a stale Handle value around after
// its own lease expired and someone else acquired it.
type Handle struct {
	key   string
	token string
}

// Manager acquires and releases per-function locks against the cache
// store, retrying with exponential backoff and jitter up to a maximum
// wait before giving up.
type Manager struct {
	store     cache.Store
	ttl       time.Duration
	maxWait   time.Duration
	retryBase time.Duration
	keyPrefix string
}

// NewManager builds a lock Manager. ttl is the lease duration granted
// on each acquire/renew; maxWait bounds how long Acquire will retry
// before returning a LockBusy error; retryBase is the base delay doubled
// on each attempt (capped) with +/-25% jitter applied.
func NewManager(store cache.Store, ttl, maxWait, retryBase time.Duration) *Manager {
	return &Manager{store: store, ttl: ttl, maxWait: maxWait, retryBase: retryBase, keyPrefix: "lock:function:"}
}

func (m *Manager) key(functionID uint64) string {
	return m.keyPrefix + strconv.FormatUint(functionID, 10)
}

// Acquire blocks (subject to ctx and maxWait) until the function's lock
// is obtained or the wait budget is exhausted, in which case it returns
// a *bizerr.Error with Kind KindLockBusy.
func (m *Manager) Acquire(ctx context.Context, functionID uint64) (*Handle, error) {
	key := m.key(functionID)
	token := uuid.NewString()
	deadline := time.Now().Add(m.maxWait)
	delay := m.retryBase

	for attempt := 0; ; attempt++ {
		ok, err := m.store.SetNX(ctx, key, []byte(token), int64(m.ttl/time.Second))
		if err != nil {
			return nil, bizerr.StoreUnavailable(err)
		}
		if ok {
			return &Handle{key: key, token: token}, nil
		}
		if time.Now().Add(delay).After(deadline) {
			return nil, bizerr.LockBusy()
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(jitter(delay)):
		}
		delay *= 2
		if delay > m.maxWait {
			delay = m.maxWait
		}
	}
}

// Release gives up the lock, but only if this handle's token still
// matches what's stored — a lock whose lease already expired and was
// re-acquired by someone else is left alone.
func (m *Manager) Release(ctx context.Context, h *Handle) error {
	_, err := m.store.CompareAndDelete(ctx, h.key, []byte(h.token))
	return err
}

// Renew extends the lease by ttl, again gated on the token still
// matching, and reports whether the lease was extended. No current
// holder calls it.
func (m *Manager) Renew(ctx context.Context, h *Handle) (bool, error) {
	return m.store.CompareAndExpire(ctx, h.key, []byte(h.token), int64(m.ttl/time.Second))
}

func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	delta := time.Duration(rand.Int63n(int64(d)/2 + 1))
	return d*3/4 + delta
}

