// Package cache wraps redis/go-redis/v9 behind the narrow capability
// set the rest of the system actually needs: bitmap ops for the seat
// map, a compare-and-delete primitive for the distributed lock, hash
// and sorted-set ops for pricing/ranking side-state, and streams for
// fan-out to slow consumers. Nothing upstream imports go-redis
// directly; everything goes through the Store interface so tests can
// substitute an in-memory fake.
package cache

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("cache: key not found")

// ZMember is one entry of a sorted-set range, used for sales ranking
// reads.
type ZMember struct {
	Member string
	Score  float64
}

// Store is the full capability surface the rest of the system needs
// from the cache. A redis-backed implementation lives in
// redis_store.go; an in-memory implementation for tests lives in
// memory_store.go.
type Store interface {
	// Get/Set/Del are a plain byte-string KV with optional TTL (ttl<=0
	// means no expiry).
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, val []byte, ttlSeconds int64) error
	Del(ctx context.Context, keys ...string) error

	// SetNX sets key only if absent, with a TTL, returning whether the
	// set took effect. This is the primitive the lock manager acquires
	// on.
	SetNX(ctx context.Context, key string, val []byte, ttlSeconds int64) (bool, error)

	// CompareAndDelete atomically deletes key only if its current value
	// equals expected, returning whether the delete happened. This is
	// the primitive the lock manager releases with.
	CompareAndDelete(ctx context.Context, key string, expected []byte) (bool, error)

	// CompareAndExpire atomically refreshes key's TTL only if its
	// current value equals expected. Used for lock renewal.
	CompareAndExpire(ctx context.Context, key string, expected []byte, ttlSeconds int64) (bool, error)

	// Bitmap ops back the seat map: one bit per seat offset, one key
	// per function per tier of state (held/sold).
	GetBit(ctx context.Context, key string, offset int64) (bool, error)
	SetBit(ctx context.Context, key string, offset int64, val bool) error
	SetBits(ctx context.Context, key string, offsets []int64, val bool) error
	BitCount(ctx context.Context, key string) (int64, error)
	BitPositions(ctx context.Context, key string, limit int64) ([]int64, error)

	// Hash ops back small per-entity side tables (e.g. seat metadata
	// caches).
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)

	// Sorted-set ops back the sales ranking.
	ZIncrBy(ctx context.Context, key string, incr float64, member string) (float64, error)
	ZRevRangeWithScores(ctx context.Context, key string, start, stop int64) ([]ZMember, error)

	// Streams back the at-least-once fan-out to the Event Sink Bus
	// consumer when RabbitMQ itself is unavailable or for in-process
	// metrics consumption.
	XAdd(ctx context.Context, stream string, values map[string]string) (string, error)
	XRangeAfter(ctx context.Context, stream, afterID string, count int64) ([]XMessage, error)

	Incr(ctx context.Context, key string) (int64, error)

	Close() error
}

// XMessage is one entry read back from a stream.
type XMessage struct {
	ID     string
	Values map[string]string
}
