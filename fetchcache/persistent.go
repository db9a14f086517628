package fetchcache

import (
	"context"
	"sync"
	"time"
)

// Persistent is an optional second tier consulted when a key is not in
// memory. Load returns (nil, nil) for a missing key. A TTL of 0 means no
// expiration.
type Persistent[V any] interface {
	Load(ctx context.Context, key string) (*V, error)
	Save(ctx context.Context, key string, val *V, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// MemoryStore is an in-process Persistent, useful in tests and for sharing
// one tier between several caches.
type MemoryStore[V any] struct {
	mu    sync.RWMutex
	items map[string]memoryItem[V]
	now   func() time.Time
}

type memoryItem[V any] struct {
	val       V
	expiresAt time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore[V any]() *MemoryStore[V] {
	return &MemoryStore[V]{items: make(map[string]memoryItem[V]), now: time.Now}
}

// Load implements Persistent.
func (s *MemoryStore[V]) Load(_ context.Context, key string) (*V, error) {
	s.mu.RLock()
	item, ok := s.items[key]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if !item.expiresAt.IsZero() && s.now().After(item.expiresAt) {
		s.mu.Lock()
		delete(s.items, key)
		s.mu.Unlock()
		return nil, nil
	}
	v := item.val
	return &v, nil
}

// Save implements Persistent.
func (s *MemoryStore[V]) Save(_ context.Context, key string, val *V, ttl time.Duration) error {
	item := memoryItem[V]{val: *val}
	if ttl > 0 {
		item.expiresAt = s.now().Add(ttl)
	}
	s.mu.Lock()
	s.items[key] = item
	s.mu.Unlock()
	return nil
}

// Delete implements Persistent.
func (s *MemoryStore[V]) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored keys, including expired ones not yet read.
func (s *MemoryStore[V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
