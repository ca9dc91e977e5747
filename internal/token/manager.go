// Package token owns the live credential pair and the refresh protocol.
//
// The manager is the only component that mutates credentials, so no request
// ever observes a half-updated pair. Refresh is single-flight: concurrent
// callers that hit an authentication error while a refresh is running are
// parked on the in-progress attempt and all resolve from its result — a
// second network call is never issued. A failed refresh is fatal for the
// session: credentials are cleared and every caller gets ErrReauthRequired
// until SetCredentials installs a new pair.
package token

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"

	"github.com/meridianhq/meridian-go/internal/kvstore"
)

// Durable store keys for the persisted credential pair.
const (
	accessKey  = "token/access"
	refreshKey = "token/refresh"
)

// ErrReauthRequired signals that the session cannot continue without the
// user logging in again. Returned by Refresh after the refresh token is
// rejected, and by every subsequent Refresh until SetCredentials.
var ErrReauthRequired = errors.New("token: re-authentication required")

// Credentials is the access/refresh token pair. Exactly one pair is live
// at a time; installing a new pair invalidates the previous one for new
// requests.
type Credentials struct {
	AccessToken  string
	RefreshToken string
}

// State describes where the manager is in its lifecycle.
type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticated
	StateRefreshing
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	case StateRefreshing:
		return "refreshing"
	default:
		return "unknown"
	}
}

// RefreshFunc exchanges a refresh token for a new credential pair.
// The pipeline provides the real implementation against the backend's
// refresh endpoint; tests inject fakes.
type RefreshFunc func(ctx context.Context, refreshToken string) (Credentials, error)

// Manager holds the current credential pair, mirrors it to the durable
// store, and serializes refresh attempts.
type Manager struct {
	store     kvstore.Store
	refreshFn RefreshFunc
	logger    *slog.Logger

	mu         sync.Mutex
	creds      Credentials
	haveCreds  bool
	refreshing bool

	group singleflight.Group
}

// NewManager creates a manager over store. Call Load to pick up a pair
// persisted by a previous process.
func NewManager(store kvstore.Store, refreshFn RefreshFunc, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{store: store, refreshFn: refreshFn, logger: logger}
}

// Load restores the persisted credential pair, if any. A missing pair is
// not an error — the manager starts unauthenticated.
func (m *Manager) Load(ctx context.Context) error {
	access, err := m.store.Get(ctx, accessKey)
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("token: loading access token: %w", err)
	}

	refresh, err := m.store.Get(ctx, refreshKey)
	if errors.Is(err, kvstore.ErrNotFound) {
		// Half a pair is useless; drop the orphan.
		m.logger.Warn("access token present without refresh token, clearing")
		return m.ClearCredentials(ctx)
	}

	if err != nil {
		return fmt.Errorf("token: loading refresh token: %w", err)
	}

	m.mu.Lock()
	m.creds = Credentials{AccessToken: string(access), RefreshToken: string(refresh)}
	m.haveCreds = true
	m.mu.Unlock()

	m.logger.Info("restored persisted credentials")

	return nil
}

// SetCredentials installs a new pair, persists it, and makes it visible to
// subsequent requests immediately. It also re-arms refresh after a prior
// fatal refresh failure.
func (m *Manager) SetCredentials(ctx context.Context, c Credentials) error {
	if c.AccessToken == "" || c.RefreshToken == "" {
		return fmt.Errorf("token: refusing to install incomplete credential pair")
	}

	if err := m.store.Set(ctx, accessKey, []byte(c.AccessToken)); err != nil {
		return fmt.Errorf("token: persisting access token: %w", err)
	}

	if err := m.store.Set(ctx, refreshKey, []byte(c.RefreshToken)); err != nil {
		return fmt.Errorf("token: persisting refresh token: %w", err)
	}

	m.mu.Lock()
	m.creds = c
	m.haveCreds = true
	m.mu.Unlock()

	if exp, ok := accessExpiry(c.AccessToken); ok {
		m.logger.Info("credentials installed", slog.Time("access_expiry", exp))
	} else {
		m.logger.Info("credentials installed")
	}

	return nil
}

// ClearCredentials removes the pair from memory and durable storage.
// Subsequent requests proceed unauthenticated.
func (m *Manager) ClearCredentials(ctx context.Context) error {
	m.mu.Lock()
	m.creds = Credentials{}
	m.haveCreds = false
	m.mu.Unlock()

	if err := m.store.Delete(ctx, accessKey); err != nil {
		return fmt.Errorf("token: clearing access token: %w", err)
	}

	if err := m.store.Delete(ctx, refreshKey); err != nil {
		return fmt.Errorf("token: clearing refresh token: %w", err)
	}

	m.logger.Info("credentials cleared")

	return nil
}

// AccessToken returns the current access token, and whether one exists.
func (m *Manager) AccessToken() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.creds.AccessToken, m.haveCreds
}

// State reports the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case m.refreshing:
		return StateRefreshing
	case m.haveCreds:
		return StateAuthenticated
	default:
		return StateUnauthenticated
	}
}

// AccessExpiry returns the exp claim of the current access token, when the
// token is a JWT carrying one. Display-only — the pipeline reacts to 401s,
// it never pre-judges expiry.
func (m *Manager) AccessExpiry() (time.Time, bool) {
	m.mu.Lock()
	access := m.creds.AccessToken
	have := m.haveCreds
	m.mu.Unlock()

	if !have {
		return time.Time{}, false
	}

	return accessExpiry(access)
}

// Refresh obtains a fresh credential pair. staleAccess is the access token
// the caller just failed with: if the live pair has already moved past it,
// the caller gets the current pair without any network call. Otherwise the
// caller joins the single in-flight refresh attempt.
//
// On refresh failure the credentials are cleared, every parked caller gets
// ErrReauthRequired, and no further refresh is attempted until
// SetCredentials is called again.
func (m *Manager) Refresh(ctx context.Context, staleAccess string) (Credentials, error) {
	m.mu.Lock()

	if !m.haveCreds {
		m.mu.Unlock()
		return Credentials{}, ErrReauthRequired
	}

	if staleAccess != "" && m.creds.AccessToken != staleAccess {
		// Another caller already refreshed past the token this caller saw.
		c := m.creds
		m.mu.Unlock()

		return c, nil
	}

	refreshToken := m.creds.RefreshToken
	m.mu.Unlock()

	v, err, shared := m.group.Do("refresh", func() (any, error) {
		return m.doRefresh(ctx, refreshToken)
	})
	if err != nil {
		return Credentials{}, err
	}

	if shared {
		m.logger.Debug("refresh result shared with concurrent caller")
	}

	creds, ok := v.(Credentials)
	if !ok {
		return Credentials{}, fmt.Errorf("token: unexpected refresh result type %T", v)
	}

	return creds, nil
}

// doRefresh performs the actual refresh call. It runs at most once per
// burst of concurrent Refresh callers (singleflight).
func (m *Manager) doRefresh(ctx context.Context, refreshToken string) (Credentials, error) {
	m.mu.Lock()

	// A caller can slip in between a completed refresh and the singleflight
	// key expiring. If the live refresh token has already moved on, the
	// earlier attempt succeeded — hand out its result.
	if m.haveCreds && m.creds.RefreshToken != refreshToken {
		c := m.creds
		m.mu.Unlock()

		return c, nil
	}

	m.refreshing = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.refreshing = false
		m.mu.Unlock()
	}()

	// The outcome is shared by every parked caller, so one caller's
	// cancellation must not fail the others.
	callCtx := context.WithoutCancel(ctx)

	m.logger.Info("refreshing credentials")

	creds, err := m.refreshFn(callCtx, refreshToken)
	if err != nil {
		m.logger.Error("refresh failed, session requires re-authentication",
			slog.String("error", err.Error()),
		)

		if clearErr := m.ClearCredentials(callCtx); clearErr != nil {
			m.logger.Warn("clearing credentials after failed refresh",
				slog.String("error", clearErr.Error()),
			)
		}

		return Credentials{}, fmt.Errorf("token: refresh rejected (%v): %w", err, ErrReauthRequired)
	}

	if err := m.SetCredentials(callCtx, creds); err != nil {
		return Credentials{}, err
	}

	m.logger.Info("refresh succeeded")

	return creds, nil
}

// accessExpiry extracts the exp claim from a JWT access token without
// verifying the signature. Opaque tokens simply report no expiry.
func accessExpiry(access string) (time.Time, bool) {
	parser := jwt.NewParser()

	var claims jwt.RegisteredClaims
	if _, _, err := parser.ParseUnverified(access, &claims); err != nil {
		return time.Time{}, false
	}

	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}

	return claims.ExpiresAt.Time, true
}
