package api

import (
	"context"
	"sync"
)

// cancelHandle pairs a cancel function with an identity so a completed call
// removes only its own registration, never a replacement's.
type cancelHandle struct {
	cancel context.CancelCauseFunc
}

// CancelRegistry maps caller-supplied keys to in-flight call abort handles.
// Keys are independent; there is no cross-key ordering.
type CancelRegistry struct {
	mu      sync.Mutex
	handles map[string]*cancelHandle
}

// NewCancelRegistry returns an empty registry.
func NewCancelRegistry() *CancelRegistry {
	return &CancelRegistry{handles: make(map[string]*cancelHandle)}
}

// Begin derives an abortable context for a call under key. If a call is
// already registered for the key it is aborted and replaced — last writer
// wins. The returned done function deregisters the handle; it must be
// called when the call completes on any path.
func (r *CancelRegistry) Begin(ctx context.Context, key string) (context.Context, func()) {
	callCtx, cancel := context.WithCancelCause(ctx)
	h := &cancelHandle{cancel: cancel}

	r.mu.Lock()
	if prev, ok := r.handles[key]; ok {
		prev.cancel(ErrCancelled)
	}

	r.handles[key] = h
	r.mu.Unlock()

	done := func() {
		r.mu.Lock()
		if cur, ok := r.handles[key]; ok && cur == h {
			delete(r.handles, key)
		}
		r.mu.Unlock()

		// Release the context's resources regardless of outcome.
		cancel(nil)
	}

	return callCtx, done
}

// Cancel aborts the call registered under key, if any. The aborted call
// surfaces as ErrCancelled, distinct from network or server failure.
func (r *CancelRegistry) Cancel(key string) {
	r.mu.Lock()
	h, ok := r.handles[key]
	if ok {
		delete(r.handles, key)
	}
	r.mu.Unlock()

	if ok {
		h.cancel(ErrCancelled)
	}
}

// CancelAll aborts every tracked call. Used on session teardown.
func (r *CancelRegistry) CancelAll() {
	r.mu.Lock()
	handles := make([]*cancelHandle, 0, len(r.handles))

	for k, h := range r.handles {
		handles = append(handles, h)
		delete(r.handles, k)
	}
	r.mu.Unlock()

	for _, h := range handles {
		h.cancel(ErrCancelled)
	}
}

// Len reports the number of tracked in-flight calls.
func (r *CancelRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.handles)
}
