package api

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		sentinel error
	}{
		{"unauthorized", http.StatusUnauthorized, ErrUnauthorized},
		{"forbidden", http.StatusForbidden, ErrForbidden},
		{"not found", http.StatusNotFound, ErrNotFound},
		{"conflict", http.StatusConflict, ErrConflict},
		{"unprocessable", http.StatusUnprocessableEntity, ErrValidation},
		{"rate limited", http.StatusTooManyRequests, ErrRateLimited},
		{"server error", http.StatusInternalServerError, ErrServer},
		{"bad gateway", http.StatusBadGateway, ErrServer},
		{"bad request", http.StatusBadRequest, ErrBadRequest},
		{"teapot", http.StatusTeapot, ErrBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, classifyStatus(tt.status), tt.sentinel)
		})
	}

	assert.NoError(t, classifyStatus(http.StatusOK))
	assert.NoError(t, classifyStatus(http.StatusNoContent))
}

func TestErrorFromResponse_DecodesBackendShape(t *testing.T) {
	resp := &Response{
		StatusCode: http.StatusUnprocessableEntity,
		Header:     http.Header{"X-Request-Id": []string{"req-42"}},
		Body:       []byte(`{"message":"validation failed","errors":{"email":["is invalid"]}}`),
	}

	err := errorFromResponse(resp)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "req-42", err.RequestID)
	assert.Equal(t, "validation failed", err.Message)
	require.Contains(t, err.Fields, "email")
	assert.Equal(t, []string{"is invalid"}, err.Fields["email"])
	assert.Contains(t, err.Error(), "req-42")
}

func TestErrorFromResponse_BadRequestWithFieldsIsValidation(t *testing.T) {
	resp := &Response{
		StatusCode: http.StatusBadRequest,
		Header:     http.Header{},
		Body:       []byte(`{"message":"nope","errors":{"name":["required"]}}`),
	}

	assert.ErrorIs(t, errorFromResponse(resp), ErrValidation)
}

func TestErrorFromResponse_NonJSONBodyFallsBackToStatusText(t *testing.T) {
	resp := &Response{
		StatusCode: http.StatusServiceUnavailable,
		Header:     http.Header{},
		Body:       []byte("<html>gateway sad</html>"),
	}

	err := errorFromResponse(resp)
	assert.ErrorIs(t, err, ErrServer)
	assert.Equal(t, http.StatusText(http.StatusServiceUnavailable), err.Message)
}

func TestQueuedError_UnwrapsToErrQueued(t *testing.T) {
	var err error = &QueuedError{ID: "01ABC"}

	assert.ErrorIs(t, err, ErrQueued)
	assert.Contains(t, err.Error(), "01ABC")

	var qe *QueuedError
	require.True(t, errors.As(err, &qe))
	assert.Equal(t, "01ABC", qe.ID)
}

func TestIsConnectivity(t *testing.T) {
	assert.True(t, isConnectivity(ErrNetworkUnavailable))
	assert.True(t, isConnectivity(ErrTimeout))
	assert.False(t, isConnectivity(ErrCancelled))
	assert.False(t, isConnectivity(ErrServer))
	assert.False(t, isConnectivity(nil))
}
