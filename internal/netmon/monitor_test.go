package netmon

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitor_StartsOnline(t *testing.T) {
	m := New(slog.Default())
	assert.True(t, m.State().Online)
}

func TestMonitor_EmitsOnlyOnTransition(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := NewWithClock(clock, slog.Default())

	events, cancel := m.Subscribe()
	defer cancel()

	// Repeated same-state observations are absorbed.
	m.SetOnline(true)
	m.SetOnline(true)
	assert.Empty(t, events)

	m.SetOnline(false)
	m.SetOnline(false)
	m.SetOnline(true)

	require.Len(t, events, 2)

	ev := <-events
	assert.False(t, ev.Online)

	ev = <-events
	assert.True(t, ev.Online)
}

func TestMonitor_StateTimestampTracksTransition(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := NewWithClock(clock, slog.Default())

	start := m.State().Since

	clock.Advance(time.Minute)
	m.SetOnline(false)

	st := m.State()
	assert.False(t, st.Online)
	assert.Equal(t, start.Add(time.Minute), st.Since)
}

func TestMonitor_UnsubscribeStopsDelivery(t *testing.T) {
	m := New(slog.Default())

	events, cancel := m.Subscribe()
	cancel()

	m.SetOnline(false)

	_, open := <-events
	assert.False(t, open)

	// Double cancel is safe.
	cancel()
}

func TestMonitor_SlowSubscriberDoesNotBlock(t *testing.T) {
	m := New(slog.Default())

	_, cancel := m.Subscribe()
	defer cancel()

	// Flood more transitions than the buffer holds; SetOnline must not block.
	for i := 0; i < eventBuffer*3; i++ {
		m.SetOnline(i%2 == 0)
	}
}

func TestProbeSource_ReportsTransitions(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if !healthy.Load() {
			// Simulate unreachable by hijacking and dropping the connection.
			hj, ok := w.(http.Hijacker)
			require.True(t, ok)

			conn, _, err := hj.Hijack()
			require.NoError(t, err)
			conn.Close()

			return
		}

		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := New(slog.Default())
	m.SetOnline(false) // start from a known offline state

	p := NewProbeSource(m, srv.URL, time.Hour, slog.Default())

	ctx := context.Background()
	p.probe(ctx)
	assert.True(t, m.State().Online)

	healthy.Store(false)
	p.probe(ctx)
	assert.False(t, m.State().Online)
}

func TestProbeSource_RunStopsOnCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := New(slog.Default())
	p := NewProbeSource(m, srv.URL, 10*time.Millisecond, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestWebsocketSource_DialFailureGoesOffline(t *testing.T) {
	m := New(slog.Default())

	src := NewWebsocketSource(m, "ws://127.0.0.1:1/presence", slog.Default())

	stop := make(chan struct{})
	src.sleepFunc = func(context.Context, time.Duration) error {
		close(stop)
		return context.Canceled
	}

	err := src.Run(context.Background())
	assert.ErrorIs(t, err, context.Canceled)

	<-stop
	assert.False(t, m.State().Online)
}
