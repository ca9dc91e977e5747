package api

import (
	"net/http"
	"time"
)

// Descriptor is the inert description of one call before dispatch: what to
// send plus the policy flags that drive the pipeline. It is immutable once
// dispatched — the queue serializes a copy, never a reference.
type Descriptor struct {
	Method string      `json:"method"`
	Path   string      `json:"path"`
	Body   []byte      `json:"body,omitempty"`
	Header http.Header `json:"header,omitempty"`

	// SkipAuth suppresses bearer token injection (login, refresh, public
	// endpoints). Requests with SkipAuth never trigger the refresh protocol.
	SkipAuth bool `json:"skip_auth,omitempty"`

	// NoQueue suppresses offline queueing: a connectivity failure is
	// returned to the caller instead of being parked for replay.
	NoQueue bool `json:"no_queue,omitempty"`

	// CacheKey, when set, makes the pipeline consult the cache before
	// dispatch and (together with CacheTTL) store a successful response.
	CacheKey string        `json:"cache_key,omitempty"`
	CacheTTL time.Duration `json:"cache_ttl,omitempty"`

	// CancelKey registers the call with the cancellation registry so the
	// caller can abort it by key. A second dispatch with the same key
	// aborts the first (last writer wins).
	CancelKey string `json:"-"`
}

// Response is the outcome of a dispatched call. Body is fully read and the
// underlying connection released before the pipeline returns.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// ok reports whether the status is 2xx.
func (r *Response) ok() bool {
	return r.StatusCode >= http.StatusOK && r.StatusCode < http.StatusMultipleChoices
}
