package netmon

import (
	"context"
	"log/slog"
	"time"

	"github.com/coder/websocket"
)

// Websocket heartbeat settings.
const (
	pingInterval     = 25 * time.Second
	pingTimeout      = 10 * time.Second
	reconnectBackoff = 5 * time.Second
	maxBackoff       = 2 * time.Minute
)

// WebsocketSource feeds a Monitor from a persistent websocket connection to
// the backend's presence endpoint. A live connection with healthy pings
// means reachable; a failed dial or ping means unreachable. This reacts to
// outages within one ping interval, much faster than the HTTP probe.
type WebsocketSource struct {
	monitor *Monitor
	url     string
	logger  *slog.Logger

	// sleepFunc waits between reconnect attempts. Tests override it.
	sleepFunc func(ctx context.Context, d time.Duration) error
}

// NewWebsocketSource creates a heartbeat source against the ws:// or wss://
// URL, reporting into monitor.
func NewWebsocketSource(monitor *Monitor, url string, logger *slog.Logger) *WebsocketSource {
	if logger == nil {
		logger = slog.Default()
	}

	return &WebsocketSource{
		monitor:   monitor,
		url:       url,
		logger:    logger,
		sleepFunc: sleepCtx,
	}
}

// Run maintains the connection until ctx is canceled, reconnecting with
// exponential backoff after failures.
func (w *WebsocketSource) Run(ctx context.Context) error {
	backoff := reconnectBackoff

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		conn, _, err := websocket.Dial(ctx, w.url, nil)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			w.logger.Debug("websocket dial failed",
				slog.String("url", w.url),
				slog.String("error", err.Error()),
			)
			w.monitor.SetOnline(false)

			if sleepErr := w.sleepFunc(ctx, backoff); sleepErr != nil {
				return sleepErr
			}

			backoff = min(backoff*2, maxBackoff)

			continue
		}

		backoff = reconnectBackoff

		w.logger.Info("websocket connected", slog.String("url", w.url))
		w.monitor.SetOnline(true)

		err = w.keepAlive(ctx, conn)
		conn.Close(websocket.StatusNormalClosure, "reconnecting")

		if ctx.Err() != nil {
			return ctx.Err()
		}

		w.logger.Info("websocket lost", slog.String("error", err.Error()))
		w.monitor.SetOnline(false)

		if sleepErr := w.sleepFunc(ctx, backoff); sleepErr != nil {
			return sleepErr
		}
	}
}

// keepAlive pings until a ping fails or ctx is canceled. Inbound frames are
// discarded; the connection exists only as a liveness signal.
func (w *WebsocketSource) keepAlive(ctx context.Context, conn *websocket.Conn) error {
	// Drain inbound frames so control frames are processed.
	readCtx, stopRead := context.WithCancel(ctx)
	defer stopRead()

	readErr := make(chan error, 1)

	go func() {
		for {
			if _, _, err := conn.Read(readCtx); err != nil {
				readErr <- err
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			return err
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
			err := conn.Ping(pingCtx)
			cancel()

			if err != nil {
				return err
			}
		}
	}
}

// sleepCtx waits for d or until ctx is canceled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
