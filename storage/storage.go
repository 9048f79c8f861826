// Package storage holds the key-value capability the session layer persists
// through, plus its adapters.
package storage

import (
	"context"
	"time"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Store is a durable key-value store. Get returns errors.ErrNotFound for a
// missing (or expired) key. Remove of a missing key is not an error.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
}

// TTLStore is a Store whose entries can expire on their own.
type TTLStore interface {
	Store
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
