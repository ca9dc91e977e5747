// Package cache implements the TTL-bound read-through response cache.
// Keys are caller-supplied — nothing is derived from request shape, so the
// caller decides what is cacheable and when two requests share an entry.
// Eviction is lazy: an expired entry is removed when a read finds it stale.
// There is no size bound; Clear and Invalidate are the pressure valves.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/meridianhq/meridian-go/internal/kvstore"
)

// keyPrefix namespaces cache records in the shared durable store.
const keyPrefix = "cache/"

// entry is the persisted record shape.
type entry struct {
	Payload   []byte    `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Cache is a durable TTL cache over the key-value store.
// Reads never fail: any storage or decode problem is logged and reported
// as a miss, so the pipeline cannot distinguish "error" from "no entry".
type Cache struct {
	store  kvstore.Store
	clock  clockwork.Clock
	logger *slog.Logger
}

// New creates a cache over store using the real clock.
func New(store kvstore.Store, logger *slog.Logger) *Cache {
	return NewWithClock(store, clockwork.NewRealClock(), logger)
}

// NewWithClock is New with an injectable clock for deterministic TTL tests.
func NewWithClock(store kvstore.Store, clock clockwork.Clock, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}

	return &Cache{store: store, clock: clock, logger: logger}
}

// Get returns the payload for key if a fresh entry exists. A stale entry is
// deleted on the way out (lazy eviction) and reported as a miss.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	data, err := c.store.Get(ctx, keyPrefix+key)
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil, false
	}

	if err != nil {
		c.logger.Warn("cache read failed, treating as miss",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)

		return nil, false
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		c.logger.Warn("cache entry corrupt, deleting",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		c.deleteQuiet(ctx, key)

		return nil, false
	}

	if !c.clock.Now().Before(e.ExpiresAt) {
		c.logger.Debug("cache entry expired",
			slog.String("key", key),
			slog.Time("expired_at", e.ExpiresAt),
		)
		c.deleteQuiet(ctx, key)

		return nil, false
	}

	return e.Payload, true
}

// Set stores payload under key for ttl, overwriting any existing entry.
func (c *Cache) Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	now := c.clock.Now()

	data, err := json.Marshal(entry{
		Payload:   payload,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	})
	if err != nil {
		return fmt.Errorf("cache: encoding entry %s: %w", key, err)
	}

	if err := c.store.Set(ctx, keyPrefix+key, data); err != nil {
		return fmt.Errorf("cache: writing entry %s: %w", key, err)
	}

	return nil
}

// Invalidate removes the entry for key, if any. Used when a mutation is
// known to stale prior reads.
func (c *Cache) Invalidate(ctx context.Context, key string) error {
	if err := c.store.Delete(ctx, keyPrefix+key); err != nil {
		return fmt.Errorf("cache: invalidating %s: %w", key, err)
	}

	return nil
}

// Clear removes every cache entry.
func (c *Cache) Clear(ctx context.Context) error {
	keys, err := c.store.Keys(ctx, keyPrefix)
	if err != nil {
		return fmt.Errorf("cache: listing entries: %w", err)
	}

	for _, k := range keys {
		if err := c.store.Delete(ctx, k); err != nil {
			return fmt.Errorf("cache: clearing %s: %w", k, err)
		}
	}

	return nil
}

// Len reports the number of stored entries, fresh or stale.
func (c *Cache) Len(ctx context.Context) (int, error) {
	keys, err := c.store.Keys(ctx, keyPrefix)
	if err != nil {
		return 0, fmt.Errorf("cache: listing entries: %w", err)
	}

	return len(keys), nil
}

func (c *Cache) deleteQuiet(ctx context.Context, key string) {
	if err := c.store.Delete(ctx, keyPrefix+key); err != nil {
		c.logger.Warn("cache delete failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}
