package cache

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"
)

// memoryStore is an in-process Store used by package tests so the
// lock manager, seat inventory and purchase coordinator can be
// exercised without a live Redis instance. TTLs are honored via
// lazy expiry checked on access, not a background sweep.
type memoryStore struct {
	mu      sync.Mutex
	values  map[string]entry
	bitmaps map[string]map[int64]bool
	hashes  map[string]map[string]string
	zsets   map[string]map[string]float64
	streams map[string][]XMessage
	counter map[string]int64
	seq     int64
}

type entry struct {
	val      []byte
	expireAt time.Time
}

// NewMemoryStore builds an empty in-memory cache store.
func NewMemoryStore() Store {
	return &memoryStore{
		values:  map[string]entry{},
		bitmaps: map[string]map[int64]bool{},
		hashes:  map[string]map[string]string{},
		zsets:   map[string]map[string]float64{},
		streams: map[string][]XMessage{},
		counter: map[string]int64{},
	}
}

func (m *memoryStore) expired(e entry) bool {
	return !e.expireAt.IsZero() && time.Now().After(e.expireAt)
}

func (m *memoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.values[key]
	if !ok || m.expired(e) {
		return nil, ErrNotFound
	}
	return e.val, nil
}

func (m *memoryStore) Set(ctx context.Context, key string, val []byte, ttlSeconds int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = entry{val: val, expireAt: expiry(ttlSeconds)}
	return nil
}

func (m *memoryStore) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.values, k)
		delete(m.bitmaps, k)
		delete(m.hashes, k)
		delete(m.zsets, k)
	}
	return nil
}

func (m *memoryStore) SetNX(ctx context.Context, key string, val []byte, ttlSeconds int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.values[key]; ok && !m.expired(e) {
		return false, nil
	}
	m.values[key] = entry{val: val, expireAt: expiry(ttlSeconds)}
	return true, nil
}

func (m *memoryStore) CompareAndDelete(ctx context.Context, key string, expected []byte) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.values[key]
	if !ok || m.expired(e) || string(e.val) != string(expected) {
		return false, nil
	}
	delete(m.values, key)
	return true, nil
}

func (m *memoryStore) CompareAndExpire(ctx context.Context, key string, expected []byte, ttlSeconds int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.values[key]
	if !ok || m.expired(e) || string(e.val) != string(expected) {
		return false, nil
	}
	e.expireAt = expiry(ttlSeconds)
	m.values[key] = e
	return true, nil
}

func (m *memoryStore) GetBit(ctx context.Context, key string, offset int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bitmaps[key][offset], nil
}

func (m *memoryStore) SetBit(ctx context.Context, key string, offset int64, val bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setBitLocked(key, offset, val)
	return nil
}

func (m *memoryStore) setBitLocked(key string, offset int64, val bool) {
	bm, ok := m.bitmaps[key]
	if !ok {
		bm = map[int64]bool{}
		m.bitmaps[key] = bm
	}
	if val {
		bm[offset] = true
	} else {
		delete(bm, offset)
	}
}

func (m *memoryStore) SetBits(ctx context.Context, key string, offsets []int64, val bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, off := range offsets {
		m.setBitLocked(key, off, val)
	}
	return nil
}

func (m *memoryStore) BitCount(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.bitmaps[key])), nil
}

func (m *memoryStore) BitPositions(ctx context.Context, key string, limit int64) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int64, 0, len(m.bitmaps[key]))
	for off := range m.bitmaps[key] {
		out = append(out, off)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.hashes[key]
	if !ok {
		h = map[string]string{}
		m.hashes[key] = h
	}
	for k, v := range fields {
		h[k] = v
	}
	return nil
}

func (m *memoryStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]string{}
	for k, v := range m.hashes[key] {
		out[k] = v
	}
	return out, nil
}

func (m *memoryStore) ZIncrBy(ctx context.Context, key string, incr float64, member string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	z, ok := m.zsets[key]
	if !ok {
		z = map[string]float64{}
		m.zsets[key] = z
	}
	z[member] += incr
	return z[member], nil
}

func (m *memoryStore) ZRevRangeWithScores(ctx context.Context, key string, start, stop int64) ([]ZMember, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	members := make([]ZMember, 0, len(m.zsets[key]))
	for member, score := range m.zsets[key] {
		members = append(members, ZMember{Member: member, Score: score})
	}
	sort.Slice(members, func(i, j int) bool { return members[i].Score > members[j].Score })
	if start < 0 {
		start = 0
	}
	if stop < 0 || stop >= int64(len(members)) {
		stop = int64(len(members)) - 1
	}
	if start > stop || start >= int64(len(members)) {
		return nil, nil
	}
	return members[start : stop+1], nil
}

func (m *memoryStore) XAdd(ctx context.Context, stream string, values map[string]string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	id := time.Now().Format("20060102150405") + "-" + strconv.FormatInt(m.seq, 10)
	m.streams[stream] = append(m.streams[stream], XMessage{ID: id, Values: values})
	return id, nil
}

func (m *memoryStore) XRangeAfter(ctx context.Context, stream, afterID string, count int64) ([]XMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.streams[stream]
	start := 0
	if afterID != "" {
		for i, msg := range all {
			if msg.ID == afterID {
				start = i + 1
				break
			}
		}
	}
	end := len(all)
	if count > 0 && int64(start)+count < int64(end) {
		end = start + int(count)
	}
	if start >= end {
		return nil, nil
	}
	out := make([]XMessage, end-start)
	copy(out, all[start:end])
	return out, nil
}

func (m *memoryStore) Incr(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counter[key]++
	return m.counter[key], nil
}

func (m *memoryStore) Close() error { return nil }

func expiry(ttlSeconds int64) time.Time {
	if ttlSeconds <= 0 {
		return time.Time{}
	}
	return time.Now().Add(time.Duration(ttlSeconds) * time.Second)
}

