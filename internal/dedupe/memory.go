package dedupe

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	key string
	ts  time.Time
}

type item struct {
	expires time.Time
	written time.Time
	count   int64
}

// MemoryStore is an in-process PresenceStore with a fixed capacity. It keeps
// no state across restarts, so it suits tests and single-shot local runs.
type MemoryStore struct {
	mu       sync.Mutex
	items    map[string]item
	order    []entry
	capacity int
	now      func() time.Time
}

// NewMemoryStore creates a store holding at most capacity keys; the oldest
// writes are evicted first.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = 1
	}
	return &MemoryStore{
		items:    make(map[string]item, capacity),
		order:    make([]entry, 0, capacity),
		capacity: capacity,
		now:      time.Now,
	}
}

// WithClock replaces the time source. Intended for tests.
func (m *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
	return m
}

// Exists returns true when the key has been written and has not expired.
func (m *MemoryStore) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.items[key]
	return ok && m.now().Before(it.expires), nil
}

// Set records key until now+ttl.
func (m *MemoryStore) Set(_ context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.put(key, item{expires: now.Add(ttl), written: now}, now)
	return nil
}

// Incr bumps the counter at key, starting a new ttl window when the key is
// absent or expired.
func (m *MemoryStore) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	it, ok := m.items[key]
	if ok && now.Before(it.expires) {
		it.count++
		m.items[key] = it
		return it.count, nil
	}

	m.put(key, item{expires: now.Add(ttl), written: now, count: 1}, now)
	return 1, nil
}

// Ping always succeeds.
func (m *MemoryStore) Ping(context.Context) error { return nil }

// Len returns the number of stored keys, expired or not.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

func (m *MemoryStore) put(key string, it item, now time.Time) {
	m.items[key] = it
	m.order = append(m.order, entry{key: key, ts: it.written})
	m.compact(now)
}

func (m *MemoryStore) compact(now time.Time) {
	for len(m.order) > 0 {
		oldest := m.order[0]
		cur, ok := m.items[oldest.key]
		stale := !ok || !cur.written.Equal(oldest.ts)
		if !stale && len(m.items) <= m.capacity && now.Before(cur.expires) {
			break
		}

		m.order = m.order[1:]
		if !stale {
			delete(m.items, oldest.key)
		}
	}
}
