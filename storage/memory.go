package storage

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/bastion-hub/internal/errors"
)

var _ TTLStore = (*MemoryStore)(nil)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore is a thread-safe in-memory Store, used in tests and for
// processes that do not need sessions to survive a restart.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
	}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, errors.ErrInvalidKey
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.entries[key]
	if !ok || entry.expired() {
		return nil, errors.ErrNotFound
	}

	// Return a copy to prevent external modifications
	return append([]byte(nil), entry.value...), nil
}

func (m *MemoryStore) Set(ctx context.Context, key string, value []byte) error {
	return m.SetWithTTL(ctx, key, value, 0)
}

// SetWithTTL stores value under key. A zero ttl never expires.
func (m *MemoryStore) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return errors.ErrInvalidKey
	}

	entry := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.expiresAt = NowTimeFunc().Add(ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = entry
	return nil
}

func (m *MemoryStore) Remove(_ context.Context, key string) error {
	if key == "" {
		return errors.ErrInvalidKey
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// Keys lists the live keys, in no particular order.
func (m *MemoryStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.entries))
	for k, e := range m.entries {
		if !e.expired() {
			keys = append(keys, k)
		}
	}
	return keys
}

func (e memoryEntry) expired() bool {
	return !e.expiresAt.IsZero() && !NowTimeFunc().Before(e.expiresAt)
}
