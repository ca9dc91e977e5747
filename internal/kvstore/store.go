// Package kvstore defines the durable key-value contract consumed by the
// token manager, cache, and offline queue, plus SQLite, Redis, and in-memory
// implementations. Each operation is individually atomic; no multi-key
// transactions are offered or assumed by callers.
package kvstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no value exists for the key.
// Use errors.Is(err, kvstore.ErrNotFound) to check.
var ErrNotFound = errors.New("kvstore: key not found")

// Store is the durable persistence contract. Implementations must make each
// call individually atomic and durable across process restarts.
//
// Keys returns every stored key with the given prefix in lexicographic
// order. The offline queue relies on this ordering: queue records are keyed
// by ULID, so the lexicographic sort is the enqueue-time order.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
	Close() error
}
