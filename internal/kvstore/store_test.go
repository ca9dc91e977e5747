package kvstore

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openBackends returns one of each Store implementation, cleaned up via t.Cleanup.
func openBackends(t *testing.T) map[string]Store {
	t.Helper()

	ctx := context.Background()

	sqliteStore, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "meridian.db"), slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { sqliteStore.Close() })

	mr := miniredis.RunT(t)
	redisStore := NewRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { redisStore.Close() })

	return map[string]Store{
		"memory": NewMemory(),
		"sqlite": sqliteStore,
		"redis":  redisStore,
	}
}

func TestStore_GetSetDelete(t *testing.T) {
	ctx := context.Background()

	for name, store := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Get(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, store.Set(ctx, "a", []byte("one")))

			got, err := store.Get(ctx, "a")
			require.NoError(t, err)
			assert.Equal(t, []byte("one"), got)

			// Overwrite.
			require.NoError(t, store.Set(ctx, "a", []byte("two")))

			got, err = store.Get(ctx, "a")
			require.NoError(t, err)
			assert.Equal(t, []byte("two"), got)

			require.NoError(t, store.Delete(ctx, "a"))

			_, err = store.Get(ctx, "a")
			assert.ErrorIs(t, err, ErrNotFound)

			// Deleting an absent key is not an error.
			assert.NoError(t, store.Delete(ctx, "a"))
		})
	}
}

func TestStore_KeysPrefixOrder(t *testing.T) {
	ctx := context.Background()

	for name, store := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Set(ctx, "queue/03", []byte("c")))
			require.NoError(t, store.Set(ctx, "queue/01", []byte("a")))
			require.NoError(t, store.Set(ctx, "queue/02", []byte("b")))
			require.NoError(t, store.Set(ctx, "cache/zz", []byte("x")))

			keys, err := store.Keys(ctx, "queue/")
			require.NoError(t, err)
			assert.Equal(t, []string{"queue/01", "queue/02", "queue/03"}, keys)

			keys, err = store.Keys(ctx, "missing/")
			require.NoError(t, err)
			assert.Empty(t, keys)
		})
	}
}

func TestSQLite_ReopenSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "meridian.db")

	store, err := OpenSQLite(ctx, dbPath, slog.Default())
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "token/access", []byte("A1")))
	require.NoError(t, store.Close())

	reopened, err := OpenSQLite(ctx, dbPath, slog.Default())
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, "token/access")
	require.NoError(t, err)
	assert.Equal(t, []byte("A1"), got)
}

func TestMemory_ValueIsolation(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	in := []byte("abc")
	require.NoError(t, store.Set(ctx, "k", in))
	in[0] = 'z'

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)

	got[1] = 'z'

	again, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), again)
}
