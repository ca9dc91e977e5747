package cache

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianhq/meridian-go/internal/kvstore"
)

func newTestCache(t *testing.T) (*Cache, *kvstore.Memory, *clockwork.FakeClock) {
	t.Helper()

	store := kvstore.NewMemory()
	clock := clockwork.NewFakeClock()

	return NewWithClock(store, clock, slog.Default()), store, clock
}

func TestCache_SetGetWithinTTL(t *testing.T) {
	ctx := context.Background()
	c, _, clock := newTestCache(t)

	require.NoError(t, c.Set(ctx, "profile", []byte(`{"name":"amy"}`), 5*time.Minute))

	clock.Advance(4 * time.Minute)

	got, ok := c.Get(ctx, "profile")
	require.True(t, ok)
	assert.Equal(t, []byte(`{"name":"amy"}`), got)
}

func TestCache_ExpiredEntryIsEvictedLazily(t *testing.T) {
	ctx := context.Background()
	c, store, clock := newTestCache(t)

	require.NoError(t, c.Set(ctx, "profile", []byte("v"), 5*time.Minute))

	clock.Advance(5 * time.Minute)

	_, ok := c.Get(ctx, "profile")
	assert.False(t, ok)

	// The stale record is gone from the store, not just hidden.
	_, err := store.Get(ctx, "cache/profile")
	assert.ErrorIs(t, err, kvstore.ErrNotFound)

	// A second read stays a miss.
	_, ok = c.Get(ctx, "profile")
	assert.False(t, ok)
}

func TestCache_SetOverwrites(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestCache(t)

	require.NoError(t, c.Set(ctx, "k", []byte("old"), time.Minute))
	require.NoError(t, c.Set(ctx, "k", []byte("new"), time.Minute))

	got, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, []byte("new"), got)
}

func TestCache_InvalidateAndClear(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestCache(t)

	require.NoError(t, c.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, c.Set(ctx, "b", []byte("2"), time.Minute))

	require.NoError(t, c.Invalidate(ctx, "a"))

	_, ok := c.Get(ctx, "a")
	assert.False(t, ok)

	_, ok = c.Get(ctx, "b")
	assert.True(t, ok)

	require.NoError(t, c.Clear(ctx))

	_, ok = c.Get(ctx, "b")
	assert.False(t, ok)

	n, err := c.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCache_CorruptEntryIsAMissAndDeleted(t *testing.T) {
	ctx := context.Background()
	c, store, _ := newTestCache(t)

	require.NoError(t, store.Set(ctx, "cache/bad", []byte("not json")))

	_, ok := c.Get(ctx, "bad")
	assert.False(t, ok)

	_, err := store.Get(ctx, "cache/bad")
	assert.ErrorIs(t, err, kvstore.ErrNotFound)
}

func TestCache_MissOnUnknownKey(t *testing.T) {
	c, _, _ := newTestCache(t)

	_, ok := c.Get(context.Background(), "never-set")
	assert.False(t, ok)
}
