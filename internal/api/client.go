package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/meridianhq/meridian-go/internal/cache"
	"github.com/meridianhq/meridian-go/internal/kvstore"
	"github.com/meridianhq/meridian-go/internal/netmon"
	"github.com/meridianhq/meridian-go/internal/token"
)

// Outbound header names.
const (
	headerAuthorization = "Authorization"
	headerClientVersion = "X-Client-Version"
	headerPlatform      = "X-Client-Platform"
	headerRequestID     = "X-Request-Id"
	contentTypeJSON     = "application/json"
)

// Default auth endpoint paths.
const (
	defaultLoginPath   = "/auth/login"
	defaultRefreshPath = "/auth/refresh"
)

// Config assembles a Client from its injected collaborators. BaseURL and
// Store are required; everything else has a working default.
type Config struct {
	BaseURL string
	Store   kvstore.Store

	// Transport defaults to an HTTPTransport over http.DefaultClient.
	Transport Transport

	// Monitor, when set, triggers a queue drain on each offline-to-online
	// transition. Without one, drains only happen via Drain().
	Monitor *netmon.Monitor

	Logger *slog.Logger
	Clock  clockwork.Clock

	// ClientVersion and Platform are stamped on every outbound request.
	ClientVersion string
	Platform      string

	// MaxQueueAttempts caps replays per queued item; <= 0 selects the default.
	MaxQueueAttempts int

	// LoginPath and RefreshPath override the default auth endpoints.
	LoginPath   string
	RefreshPath string
}

// Client is the resilient pipeline in front of the backend API. Construct
// one per session with NewClient and share it; all methods are safe for
// concurrent use.
type Client struct {
	baseURL       string
	transport     Transport
	tokens        *token.Manager
	cache         *cache.Cache
	queue         *Queue
	monitor       *netmon.Monitor
	cancels       *CancelRegistry
	logger        *slog.Logger
	clientVersion string
	platform      string
	loginPath     string
	refreshPath   string

	lifeCtx  context.Context
	lifeStop context.CancelFunc
	unsub    func()
	wg       sync.WaitGroup
}

// NewClient builds a Client, restores persisted credentials and queued
// requests from cfg.Store, and (when a Monitor is configured) starts
// listening for reachability transitions.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("api: config missing base URL")
	}

	if cfg.Store == nil {
		return nil, fmt.Errorf("api: config missing durable store")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	transport := cfg.Transport
	if transport == nil {
		transport = NewHTTPTransport(nil, 0, 0, logger)
	}

	loginPath := cfg.LoginPath
	if loginPath == "" {
		loginPath = defaultLoginPath
	}

	refreshPath := cfg.RefreshPath
	if refreshPath == "" {
		refreshPath = defaultRefreshPath
	}

	lifeCtx, lifeStop := context.WithCancel(context.Background())

	c := &Client{
		baseURL:       cfg.BaseURL,
		transport:     transport,
		monitor:       cfg.Monitor,
		cancels:       NewCancelRegistry(),
		logger:        logger,
		clientVersion: cfg.ClientVersion,
		platform:      cfg.Platform,
		loginPath:     loginPath,
		refreshPath:   refreshPath,
		lifeCtx:       lifeCtx,
		lifeStop:      lifeStop,
	}

	c.tokens = token.NewManager(cfg.Store, c.refreshCredentials, logger)
	if err := c.tokens.Load(ctx); err != nil {
		lifeStop()
		return nil, err
	}

	c.cache = cache.NewWithClock(cfg.Store, clock, logger)

	c.queue = NewQueue(cfg.Store, cfg.MaxQueueAttempts, clock, logger)
	c.queue.setReplay(c.replayQueued)

	if err := c.queue.Load(ctx); err != nil {
		lifeStop()
		return nil, err
	}

	if cfg.Monitor != nil {
		events, unsub := cfg.Monitor.Subscribe()
		c.unsub = unsub

		c.wg.Add(1)

		go c.watchNetwork(events)
	}

	return c, nil
}

// Close stops the network watcher and aborts every in-flight call. The
// durable store is owned by the caller and stays open.
func (c *Client) Close() {
	c.lifeStop()

	if c.unsub != nil {
		c.unsub()
	}

	c.cancels.CancelAll()
	c.wg.Wait()
}

// Do runs one descriptor through the pipeline: cache read-through, auth
// injection, dispatch, refresh-and-replay on 401, offline queueing on
// connectivity failure, cache write on success.
//
// When the request is queued the returned error is a *QueuedError wrapping
// ErrQueued — an "accepted but pending" outcome, not a failure.
func (c *Client) Do(ctx context.Context, d Descriptor) (*Response, error) {
	if d.CacheKey != "" {
		if payload, ok := c.cache.Get(ctx, d.CacheKey); ok {
			c.logger.Debug("cache hit",
				slog.String("key", d.CacheKey),
				slog.String("path", d.Path),
			)

			return &Response{StatusCode: http.StatusOK, Body: payload}, nil
		}
	}

	if d.CancelKey != "" {
		callCtx, done := c.cancels.Begin(ctx, d.CancelKey)
		defer done()

		ctx = callCtx
	}

	resp, err := c.dispatch(ctx, d)
	if err != nil {
		if isConnectivity(err) && !d.NoQueue {
			// The request context may already be dead (that can be exactly
			// why we are here); the enqueue write must still go through.
			rec, outcome, qErr := c.queue.Enqueue(context.WithoutCancel(ctx), d)
			if qErr != nil {
				c.logger.Error("failed to queue request",
					slog.String("path", d.Path),
					slog.String("error", qErr.Error()),
				)

				return nil, err
			}

			return nil, &QueuedError{ID: rec.ID, Outcome: outcome}
		}

		return nil, err
	}

	c.storeInCache(ctx, d, resp)

	return resp, nil
}

// dispatch issues the call, running the refresh-and-replay protocol on an
// authentication failure. The replay happens at most once per dispatch; a
// second 401 is terminal for the request.
func (c *Client) dispatch(ctx context.Context, d Descriptor) (*Response, error) {
	var access string
	if !d.SkipAuth {
		access, _ = c.tokens.AccessToken()
	}

	resp, err := c.roundTrip(ctx, d, access)
	if err != nil {
		return nil, err
	}

	if resp.ok() {
		return resp, nil
	}

	if resp.StatusCode == http.StatusUnauthorized && !d.SkipAuth {
		creds, refreshErr := c.tokens.Refresh(ctx, access)
		if refreshErr != nil {
			return nil, refreshErr
		}

		c.logger.Debug("replaying request after refresh",
			slog.String("method", d.Method),
			slog.String("path", d.Path),
		)

		replayResp, replayErr := c.roundTrip(ctx, d, creds.AccessToken)
		if replayErr != nil {
			return nil, replayErr
		}

		if replayResp.ok() {
			return replayResp, nil
		}

		return nil, errorFromResponse(replayResp)
	}

	return nil, errorFromResponse(resp)
}

// roundTrip stamps the standard headers and hands the exchange to the
// transport.
func (c *Client) roundTrip(ctx context.Context, d Descriptor, access string) (*Response, error) {
	header := make(http.Header, len(d.Header)+5)
	for k, vs := range d.Header {
		header[k] = append([]string(nil), vs...)
	}

	if access != "" {
		header.Set(headerAuthorization, "Bearer "+access)
	}

	if c.clientVersion != "" {
		header.Set(headerClientVersion, c.clientVersion)
	}

	if c.platform != "" {
		header.Set(headerPlatform, c.platform)
	}

	header.Set(headerRequestID, uuid.NewString())
	header.Set("Accept", contentTypeJSON)

	if len(d.Body) > 0 && header.Get("Content-Type") == "" {
		header.Set("Content-Type", contentTypeJSON)
	}

	return c.transport.RoundTrip(ctx, d.Method, c.baseURL+d.Path, header, d.Body)
}

// replayQueued dispatches a queued descriptor. The access token is fetched
// at replay time, never the one current at enqueue time, so items replayed
// after a refresh carry the live pair.
func (c *Client) replayQueued(ctx context.Context, d Descriptor) (*Response, error) {
	resp, err := c.dispatch(ctx, d)
	if err != nil {
		return nil, err
	}

	c.storeInCache(ctx, d, resp)

	return resp, nil
}

// storeInCache writes a successful response when the descriptor asked for it.
func (c *Client) storeInCache(ctx context.Context, d Descriptor, resp *Response) {
	if d.CacheKey == "" || d.CacheTTL <= 0 {
		return
	}

	if err := c.cache.Set(ctx, d.CacheKey, resp.Body, d.CacheTTL); err != nil {
		c.logger.Warn("caching response failed",
			slog.String("key", d.CacheKey),
			slog.String("error", err.Error()),
		)
	}
}

// refreshCredentials is the token manager's RefreshFunc: it exchanges the
// refresh token at the backend's refresh endpoint, outside the normal
// pipeline so it cannot recurse into the refresh protocol or the queue.
func (c *Client) refreshCredentials(ctx context.Context, refreshToken string) (token.Credentials, error) {
	body, err := json.Marshal(map[string]string{"refresh_token": refreshToken})
	if err != nil {
		return token.Credentials{}, fmt.Errorf("api: encoding refresh request: %w", err)
	}

	header := make(http.Header, 4)
	header.Set("Content-Type", contentTypeJSON)
	header.Set("Accept", contentTypeJSON)
	header.Set(headerRequestID, uuid.NewString())

	if c.clientVersion != "" {
		header.Set(headerClientVersion, c.clientVersion)
	}

	resp, err := c.transport.RoundTrip(ctx, http.MethodPost, c.baseURL+c.refreshPath, header, body)
	if err != nil {
		return token.Credentials{}, err
	}

	if !resp.ok() {
		return token.Credentials{}, errorFromResponse(resp)
	}

	var grant credentialGrant
	if err := json.Unmarshal(resp.Body, &grant); err != nil {
		return token.Credentials{}, fmt.Errorf("api: decoding refresh response: %w", err)
	}

	return token.Credentials{
		AccessToken:  grant.AccessToken,
		RefreshToken: grant.RefreshToken,
	}, nil
}

// watchNetwork drains the queue on each offline-to-online transition.
// The monitor only emits transitions, so one event is one drain.
func (c *Client) watchNetwork(events <-chan netmon.Event) {
	defer c.wg.Done()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}

			if !ev.Online {
				continue
			}

			c.logger.Info("network restored, draining offline queue",
				slog.Int("queue_depth", c.queue.Len()),
			)

			if err := c.queue.Drain(c.lifeCtx); err != nil && !errors.Is(err, context.Canceled) {
				c.logger.Warn("queue drain failed", slog.String("error", err.Error()))
			}
		case <-c.lifeCtx.Done():
			return
		}
	}
}

// Drain replays the offline queue immediately, outside any transition.
func (c *Client) Drain(ctx context.Context) error {
	return c.queue.Drain(ctx)
}

// Cancel aborts the in-flight call registered under key.
func (c *Client) Cancel(key string) {
	c.cancels.Cancel(key)
}

// CancelAll aborts every tracked in-flight call.
func (c *Client) CancelAll() {
	c.cancels.CancelAll()
}

// Tokens exposes the credential manager (state, expiry, manual install).
func (c *Client) Tokens() *token.Manager {
	return c.tokens
}

// Cache exposes the response cache for invalidation by mutating callers.
func (c *Client) Cache() *cache.Cache {
	return c.cache
}

// Queue exposes the offline queue for inspection and operator tooling.
func (c *Client) Queue() *Queue {
	return c.queue
}
