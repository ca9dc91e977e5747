// Package api implements the resilient request pipeline for the Meridian
// backend: dispatch with auth header injection, read-through caching,
// single refresh-and-replay on authentication failure, offline queueing of
// connectivity failures, and error classification.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for outcome classification.
// Use errors.Is(err, api.ErrNotFound) to check.
var (
	ErrBadRequest         = errors.New("api: bad request")
	ErrUnauthorized       = errors.New("api: unauthorized")
	ErrForbidden          = errors.New("api: forbidden")
	ErrNotFound           = errors.New("api: not found")
	ErrConflict           = errors.New("api: conflict")
	ErrValidation         = errors.New("api: validation failed")
	ErrRateLimited        = errors.New("api: rate limited")
	ErrServer             = errors.New("api: server error")
	ErrNetworkUnavailable = errors.New("api: network unavailable")
	ErrTimeout            = errors.New("api: request timed out")
	ErrCancelled          = errors.New("api: request cancelled")

	// ErrQueued is the "accepted but pending" outcome: the request could not
	// be dispatched because the network is unreachable and has been placed
	// on the offline queue. It is neither a success nor a terminal failure.
	ErrQueued = errors.New("api: queued for retry")
)

// Error wraps a sentinel with HTTP status, the backend's request ID, the
// response message, and any field-level validation detail.
type Error struct {
	StatusCode int
	RequestID  string
	Message    string
	Fields     map[string][]string // field -> messages, validation errors only
	Err        error               // sentinel, for errors.Is()
}

func (e *Error) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("api: HTTP %d (request-id: %s): %s", e.StatusCode, e.RequestID, e.Message)
	}

	if e.StatusCode != 0 {
		return fmt.Sprintf("api: HTTP %d: %s", e.StatusCode, e.Message)
	}

	return fmt.Sprintf("api: %s", e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// QueuedError reports that a request was handed to the offline queue.
// Outcome delivers the replay result if the caller is still listening when
// connectivity returns; otherwise the result is logged by the queue.
type QueuedError struct {
	ID      string
	Outcome <-chan Outcome
}

func (e *QueuedError) Error() string {
	return fmt.Sprintf("api: request queued for retry (id %s)", e.ID)
}

func (e *QueuedError) Unwrap() error {
	return ErrQueued
}

// errorBody is the backend's error response shape.
type errorBody struct {
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

// classifyStatus maps an HTTP status code to a sentinel error.
// Returns nil for 2xx success codes.
func classifyStatus(code int) error {
	switch code {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	case http.StatusUnprocessableEntity:
		return ErrValidation
	case http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		switch {
		case code >= http.StatusInternalServerError:
			return ErrServer
		case code >= http.StatusBadRequest:
			return ErrBadRequest
		default:
			return nil
		}
	}
}

// errorFromResponse builds an *Error from a non-2xx response, decoding the
// body for the message and field detail when it parses as the backend's
// error shape.
func errorFromResponse(resp *Response) *Error {
	apiErr := &Error{
		StatusCode: resp.StatusCode,
		RequestID:  resp.Header.Get("X-Request-Id"),
		Message:    http.StatusText(resp.StatusCode),
		Err:        classifyStatus(resp.StatusCode),
	}

	var body errorBody
	if err := json.Unmarshal(resp.Body, &body); err == nil {
		if body.Message != "" {
			apiErr.Message = body.Message
		}

		if len(body.Errors) > 0 {
			apiErr.Fields = body.Errors
			// A 400 carrying field detail is a validation failure, not a
			// generic bad request.
			if apiErr.StatusCode == http.StatusBadRequest {
				apiErr.Err = ErrValidation
			}
		}
	}

	return apiErr
}

// isConnectivity reports whether err is a pure connectivity failure —
// the class that routes to the offline queue. Timeouts count: expiry is
// indistinguishable from an unreachable backend for queueing purposes.
func isConnectivity(err error) bool {
	return errors.Is(err, ErrNetworkUnavailable) || errors.Is(err, ErrTimeout)
}
