package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// defaultTimeout bounds every dispatched call. Expiry is treated as a
// connectivity failure, not a distinct fatal error.
const defaultTimeout = 30 * time.Second

// Transport issues a single HTTP exchange. Implementations normalize
// transport-level failures into the package's connectivity sentinels and
// support cooperative abort through the context.
type Transport interface {
	RoundTrip(ctx context.Context, method, url string, header http.Header, body []byte) (*Response, error)
}

// HTTPTransport is the production Transport over net/http, with a per-call
// timeout and an optional client-side rate limiter.
type HTTPTransport struct {
	client  *http.Client
	timeout time.Duration
	limiter *rate.Limiter // nil = unlimited
	logger  *slog.Logger
}

// NewHTTPTransport creates a transport. A nil client selects
// http.DefaultClient, timeout <= 0 selects the default, and rps <= 0
// disables rate limiting.
func NewHTTPTransport(client *http.Client, timeout time.Duration, rps float64, logger *slog.Logger) *HTTPTransport {
	if client == nil {
		client = http.DefaultClient
	}

	if timeout <= 0 {
		timeout = defaultTimeout
	}

	if logger == nil {
		logger = slog.Default()
	}

	var limiter *rate.Limiter
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}

	return &HTTPTransport{
		client:  client,
		timeout: timeout,
		limiter: limiter,
		logger:  logger,
	}
}

// RoundTrip executes one exchange. Any HTTP response, success or failure,
// is returned as a *Response with the body fully read; only transport-level
// problems produce an error, already classified as Cancelled, Timeout, or
// NetworkUnavailable.
func (t *HTTPTransport) RoundTrip(ctx context.Context, method, url string, header http.Header, body []byte) (*Response, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, t.classifyTransportError(ctx, err)
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(callCtx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("api: building request: %w", err)
	}

	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, t.classifyTransportError(ctx, err)
	}

	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, t.classifyTransportError(ctx, err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       respBody,
	}, nil
}

// classifyTransportError normalizes a transport failure. ctx is the
// caller's context, before the per-call timeout was layered on: an abort
// through the cancellation registry surfaces there as cause ErrCancelled.
func (t *HTTPTransport) classifyTransportError(ctx context.Context, err error) error {
	if cause := context.Cause(ctx); errors.Is(cause, ErrCancelled) {
		return fmt.Errorf("api: call aborted: %w", ErrCancelled)
	}

	if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
		return fmt.Errorf("api: %v: %w", err, ErrCancelled)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("api: %v: %w", err, ErrTimeout)
	}

	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("api: %v: %w", err, ErrTimeout)
	}

	return fmt.Errorf("api: %v: %w", err, ErrNetworkUnavailable)
}
