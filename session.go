package main

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/meridianhq/meridian-go/internal/api"
	"github.com/meridianhq/meridian-go/internal/config"
	"github.com/meridianhq/meridian-go/internal/kvstore"
	"github.com/meridianhq/meridian-go/internal/netmon"
)

// session bundles the assembled pipeline client with everything the CLI
// needs to tear it down again.
type session struct {
	client  *api.Client
	monitor *netmon.Monitor

	store   kvstore.Store
	stop    context.CancelFunc
	watcher *config.Watcher
}

// newSession assembles the full pipeline from the resolved config: durable
// store, transport, network monitor with its signal sources, and the
// client. A config watcher runs alongside so edits to the file are picked
// up by long-lived commands like `queue drain --wait`.
func newSession(ctx context.Context) (*session, error) {
	cfg := cfgHolder.Config()

	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("no base URL configured; set base_url in %s, %s, or pass --base-url",
			cfgHolder.Path(), config.EnvBaseURL)
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// Durations were validated during config resolution.
	timeout, _ := time.ParseDuration(cfg.HTTP.Timeout)
	probeInterval, _ := time.ParseDuration(cfg.Network.ProbeInterval)

	transport := api.NewHTTPTransport(nil, timeout, cfg.HTTP.RequestsPerSecond, logger)
	monitor := netmon.New(logger)

	client, err := api.NewClient(ctx, api.Config{
		BaseURL:          cfg.BaseURL,
		Store:            store,
		Transport:        transport,
		Monitor:          monitor,
		Logger:           logger,
		ClientVersion:    version,
		Platform:         runtime.GOOS,
		MaxQueueAttempts: cfg.Queue.MaxAttempts,
		LoginPath:        cfg.Auth.LoginPath,
		RefreshPath:      cfg.Auth.RefreshPath,
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	bgCtx, stop := context.WithCancel(context.Background())

	probeURL := cfg.Network.ProbeURL
	if probeURL == "" {
		probeURL = cfg.BaseURL
	}

	probe := netmon.NewProbeSource(monitor, probeURL, probeInterval, logger)
	go probe.Run(bgCtx)

	if cfg.Network.WebsocketURL != "" {
		heartbeat := netmon.NewWebsocketSource(monitor, cfg.Network.WebsocketURL, logger)
		go heartbeat.Run(bgCtx)
	}

	s := &session{
		client:  client,
		monitor: monitor,
		store:   store,
		stop:    stop,
	}

	if watcher, err := config.NewWatcher(cfgHolder, logger); err == nil {
		s.watcher = watcher

		go watcher.Run(bgCtx)
	} else {
		logger.Debug("config watch unavailable", slog.String("error", err.Error()))
	}

	return s, nil
}

// Close tears the session down: signal sources first, then the client,
// then the store the client writes through.
func (s *session) Close() {
	s.stop()
	s.client.Close()

	if err := s.store.Close(); err != nil {
		logger.Warn("closing store", slog.String("error", err.Error()))
	}
}

// openStore builds the durable store selected by config.
func openStore(ctx context.Context, cfg *config.Config) (kvstore.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return kvstore.OpenSQLite(ctx, cfg.Store.Path, logger)
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Store.RedisAddr,
			Password: cfg.Store.RedisPassword,
			DB:       cfg.Store.RedisDB,
		})

		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Store.RedisAddr, err)
		}

		return kvstore.NewRedis(client), nil
	case "memory":
		return kvstore.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
