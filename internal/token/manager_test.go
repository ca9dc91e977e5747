package token

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianhq/meridian-go/internal/kvstore"
)

func seededManager(t *testing.T, refreshFn RefreshFunc) (*Manager, *kvstore.Memory) {
	t.Helper()

	store := kvstore.NewMemory()
	m := NewManager(store, refreshFn, slog.Default())

	require.NoError(t, m.SetCredentials(context.Background(), Credentials{
		AccessToken:  "A1",
		RefreshToken: "R1",
	}))

	return m, store
}

func TestManager_SetCredentialsPersists(t *testing.T) {
	ctx := context.Background()
	m, store := seededManager(t, nil)

	access, err := store.Get(ctx, "token/access")
	require.NoError(t, err)
	assert.Equal(t, "A1", string(access))

	refresh, err := store.Get(ctx, "token/refresh")
	require.NoError(t, err)
	assert.Equal(t, "R1", string(refresh))

	assert.Equal(t, StateAuthenticated, m.State())

	// A fresh manager over the same store restores the pair.
	reloaded := NewManager(store, nil, slog.Default())
	require.NoError(t, reloaded.Load(ctx))

	got, ok := reloaded.AccessToken()
	require.True(t, ok)
	assert.Equal(t, "A1", got)
}

func TestManager_SetCredentialsRejectsIncompletePair(t *testing.T) {
	m := NewManager(kvstore.NewMemory(), nil, slog.Default())

	assert.Error(t, m.SetCredentials(context.Background(), Credentials{AccessToken: "A"}))
	assert.Equal(t, StateUnauthenticated, m.State())
}

func TestManager_ClearCredentials(t *testing.T) {
	ctx := context.Background()
	m, store := seededManager(t, nil)

	require.NoError(t, m.ClearCredentials(ctx))

	_, ok := m.AccessToken()
	assert.False(t, ok)
	assert.Equal(t, StateUnauthenticated, m.State())

	_, err := store.Get(ctx, "token/access")
	assert.ErrorIs(t, err, kvstore.ErrNotFound)
}

func TestManager_ConcurrentRefreshSingleFlight(t *testing.T) {
	var calls atomic.Int32

	release := make(chan struct{})

	refreshFn := func(_ context.Context, refreshToken string) (Credentials, error) {
		calls.Add(1)
		<-release

		assert.Equal(t, "R1", refreshToken)

		return Credentials{AccessToken: "A2", RefreshToken: "R2"}, nil
	}

	m, _ := seededManager(t, refreshFn)

	const n = 20

	var wg sync.WaitGroup

	results := make([]Credentials, n)
	errs := make([]error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = m.Refresh(context.Background(), "A1")
		}(i)
	}

	// Let every caller reach the manager before the refresh resolves.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load(), "exactly one refresh call for the burst")

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "A2", results[i].AccessToken)
		assert.Equal(t, "R2", results[i].RefreshToken)
	}
}

func TestManager_RefreshAfterCompletionReturnsCurrentPair(t *testing.T) {
	var calls atomic.Int32

	refreshFn := func(context.Context, string) (Credentials, error) {
		calls.Add(1)
		return Credentials{AccessToken: "A2", RefreshToken: "R2"}, nil
	}

	m, _ := seededManager(t, refreshFn)

	first, err := m.Refresh(context.Background(), "A1")
	require.NoError(t, err)
	assert.Equal(t, "A2", first.AccessToken)

	// A straggler that failed with the old token gets the new pair with no
	// second network call.
	second, err := m.Refresh(context.Background(), "A1")
	require.NoError(t, err)
	assert.Equal(t, "A2", second.AccessToken)
	assert.Equal(t, int32(1), calls.Load())
}

func TestManager_RefreshFailureIsTerminal(t *testing.T) {
	var calls atomic.Int32

	refreshFn := func(context.Context, string) (Credentials, error) {
		calls.Add(1)
		return Credentials{}, errors.New("refresh token revoked")
	}

	m, store := seededManager(t, refreshFn)
	ctx := context.Background()

	_, err := m.Refresh(ctx, "A1")
	assert.ErrorIs(t, err, ErrReauthRequired)

	// Credentials are gone from memory and the store.
	_, ok := m.AccessToken()
	assert.False(t, ok)

	_, getErr := store.Get(ctx, "token/refresh")
	assert.ErrorIs(t, getErr, kvstore.ErrNotFound)

	// No further automatic refresh until SetCredentials.
	_, err = m.Refresh(ctx, "")
	assert.ErrorIs(t, err, ErrReauthRequired)
	assert.Equal(t, int32(1), calls.Load())

	// SetCredentials re-arms the manager.
	require.NoError(t, m.SetCredentials(ctx, Credentials{AccessToken: "A3", RefreshToken: "R3"}))
	assert.Equal(t, StateAuthenticated, m.State())
}

func TestManager_RefreshUnauthenticated(t *testing.T) {
	m := NewManager(kvstore.NewMemory(), nil, slog.Default())

	_, err := m.Refresh(context.Background(), "")
	assert.ErrorIs(t, err, ErrReauthRequired)
}

func TestManager_LoadWithOrphanAccessToken(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemory()
	require.NoError(t, store.Set(ctx, "token/access", []byte("A1")))

	m := NewManager(store, nil, slog.Default())
	require.NoError(t, m.Load(ctx))

	assert.Equal(t, StateUnauthenticated, m.State())

	_, err := store.Get(ctx, "token/access")
	assert.ErrorIs(t, err, kvstore.ErrNotFound)
}

func TestManager_AccessExpiryFromJWT(t *testing.T) {
	ctx := context.Background()
	exp := time.Now().Add(time.Hour).Truncate(time.Second)

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(exp),
	})

	signed, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	m := NewManager(kvstore.NewMemory(), nil, slog.Default())
	require.NoError(t, m.SetCredentials(ctx, Credentials{AccessToken: signed, RefreshToken: "R"}))

	got, ok := m.AccessExpiry()
	require.True(t, ok)
	assert.True(t, got.Equal(exp))
}

func TestManager_AccessExpiryOpaqueToken(t *testing.T) {
	m, _ := seededManager(t, nil)

	_, ok := m.AccessExpiry()
	assert.False(t, ok)
}
