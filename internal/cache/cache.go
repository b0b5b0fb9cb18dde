// Package cache holds read-only snapshots with a time-to-live and explicit
// invalidation. Values handed out are shared; callers must not mutate them.
package cache

import (
	"context"
	"sync"
	"time"
)

// Store is the get/put/invalidate contract shared by the in-process and
// redis-backed caches.
type Store[V any] interface {
	Get(ctx context.Context, key string) (V, bool, error)
	Put(ctx context.Context, key string, v V) error
	Invalidate(ctx context.Context, keys ...string) error
	InvalidateAll(ctx context.Context) error
}

type memEntry[V any] struct {
	val     V
	expires time.Time
}

// Memory is an in-process TTL store.
type Memory[V any] struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memEntry[V]
}

type MemoryOption[V any] func(*Memory[V])

// WithClock swaps the time source, for tests.
func WithClock[V any](now func() time.Time) MemoryOption[V] {
	return func(m *Memory[V]) { m.now = now }
}

func NewMemory[V any](ttl time.Duration, opts ...MemoryOption[V]) *Memory[V] {
	m := &Memory[V]{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]memEntry[V]),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory[V]) Get(_ context.Context, key string) (V, bool, error) {
	var zero V
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return zero, false, nil
	}
	if m.ttl > 0 && !m.now().Before(e.expires) {
		m.mu.Lock()
		if cur, still := m.entries[key]; still && cur.expires.Equal(e.expires) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return zero, false, nil
	}
	return e.val, true, nil
}

func (m *Memory[V]) Put(_ context.Context, key string, v V) error {
	m.mu.Lock()
	m.entries[key] = memEntry[V]{val: v, expires: m.now().Add(m.ttl)}
	m.mu.Unlock()
	return nil
}

func (m *Memory[V]) Invalidate(_ context.Context, keys ...string) error {
	m.mu.Lock()
	for _, k := range keys {
		delete(m.entries, k)
	}
	m.mu.Unlock()
	return nil
}

func (m *Memory[V]) InvalidateAll(_ context.Context) error {
	m.mu.Lock()
	m.entries = make(map[string]memEntry[V])
	m.mu.Unlock()
	return nil
}

// Len counts live and not-yet-evicted entries.
func (m *Memory[V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
