package netmon

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Default probe settings. A HEAD against the backend's health endpoint is
// cheap enough to run continuously.
const (
	defaultProbeInterval = 30 * time.Second
	defaultProbeTimeout  = 10 * time.Second
)

// ProbeSource feeds a Monitor by periodically issuing a HEAD request
// against a health URL. Any HTTP response, including 5xx, counts as
// reachable — the probe measures connectivity, not backend health.
type ProbeSource struct {
	monitor  *Monitor
	url      string
	interval time.Duration
	client   *http.Client
	logger   *slog.Logger
}

// NewProbeSource creates a probe against url reporting into monitor.
// interval <= 0 selects the default.
func NewProbeSource(monitor *Monitor, url string, interval time.Duration, logger *slog.Logger) *ProbeSource {
	if interval <= 0 {
		interval = defaultProbeInterval
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &ProbeSource{
		monitor:  monitor,
		url:      url,
		interval: interval,
		client:   &http.Client{Timeout: defaultProbeTimeout},
		logger:   logger,
	}
}

// Run probes until ctx is canceled. An immediate probe fires before the
// first tick so startup state settles quickly.
func (p *ProbeSource) Run(ctx context.Context) error {
	p.probe(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.probe(ctx)
		}
	}
}

func (p *ProbeSource) probe(ctx context.Context) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, nil)
	if err != nil {
		p.logger.Warn("building probe request", slog.String("error", err.Error()))
		return
	}

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return
		}

		p.logger.Debug("probe failed", slog.String("error", err.Error()))
		p.monitor.SetOnline(false)

		return
	}

	resp.Body.Close()
	p.monitor.SetOnline(true)
}
