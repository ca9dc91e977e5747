package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Store driver names.
const (
	storeDriverSQLite = "sqlite"
	storeDriverRedis  = "redis"
	storeDriverMemory = "memory"
)

// Validation range constants.
const (
	minHTTPTimeout   = 1 * time.Second
	minProbeInterval = 5 * time.Second
	maxQueueAttempts = 100
)

// Validate checks all configuration values and returns all errors found.
// It accumulates every error rather than stopping at the first, so users
// see a complete report and can fix all issues in one pass.
func Validate(cfg *Config) error {
	var errs []error

	errs = append(errs, validateBaseURL(cfg.BaseURL)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)
	errs = append(errs, validateHTTP(&cfg.HTTP)...)
	errs = append(errs, validateQueue(&cfg.Queue)...)
	errs = append(errs, validateStore(&cfg.Store)...)
	errs = append(errs, validateNetwork(&cfg.Network)...)
	errs = append(errs, validateAuth(&cfg.Auth)...)

	return errors.Join(errs...)
}

// validateBaseURL accepts an empty base URL: it may arrive later via
// environment or flag, and commands that need it fail with a clear error
// at client construction.
func validateBaseURL(raw string) []error {
	if raw == "" {
		return nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return []error{fmt.Errorf("base_url: invalid URL %q: %w", raw, err)}
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return []error{fmt.Errorf("base_url: must use http or https, got %q", raw)}
	}

	if u.Host == "" {
		return []error{fmt.Errorf("base_url: missing host in %q", raw)}
	}

	return nil
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validLogFormats = map[string]bool{
	"auto": true,
	"text": true,
	"json": true,
}

func validateLogging(l *LoggingConfig) []error {
	var errs []error

	if !validLogLevels[l.Level] {
		errs = append(errs, fmt.Errorf("logging.level: must be one of debug, info, warn, error; got %q", l.Level))
	}

	if !validLogFormats[l.Format] {
		errs = append(errs, fmt.Errorf("logging.format: must be one of auto, text, json; got %q", l.Format))
	}

	return errs
}

func validateHTTP(h *HTTPConfig) []error {
	var errs []error

	if err := validateDuration("http.timeout", h.Timeout, minHTTPTimeout); err != nil {
		errs = append(errs, err)
	}

	if h.RequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("http.requests_per_second: must be >= 0, got %v", h.RequestsPerSecond))
	}

	return errs
}

func validateQueue(q *QueueConfig) []error {
	if q.MaxAttempts < 1 || q.MaxAttempts > maxQueueAttempts {
		return []error{fmt.Errorf("queue.max_attempts: must be between 1 and %d, got %d",
			maxQueueAttempts, q.MaxAttempts)}
	}

	return nil
}

func validateStore(s *StoreConfig) []error {
	var errs []error

	switch s.Driver {
	case storeDriverSQLite, storeDriverMemory:
	case storeDriverRedis:
		if s.RedisAddr == "" {
			errs = append(errs, errors.New("store.redis_addr: required when store.driver is \"redis\""))
		}
	default:
		errs = append(errs, fmt.Errorf("store.driver: must be one of sqlite, redis, memory; got %q", s.Driver))
	}

	return errs
}

func validateNetwork(n *NetworkConfig) []error {
	var errs []error

	if err := validateDuration("network.probe_interval", n.ProbeInterval, minProbeInterval); err != nil {
		errs = append(errs, err)
	}

	if n.WebsocketURL != "" {
		u, err := url.Parse(n.WebsocketURL)
		if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
			errs = append(errs, fmt.Errorf("network.websocket_url: must be a ws:// or wss:// URL, got %q", n.WebsocketURL))
		}
	}

	return errs
}

func validateAuth(a *AuthConfig) []error {
	var errs []error

	if !strings.HasPrefix(a.LoginPath, "/") {
		errs = append(errs, fmt.Errorf("auth.login_path: must start with /, got %q", a.LoginPath))
	}

	if !strings.HasPrefix(a.RefreshPath, "/") {
		errs = append(errs, fmt.Errorf("auth.refresh_path: must start with /, got %q", a.RefreshPath))
	}

	return errs
}

// validateDuration checks that a duration string is valid and meets a minimum.
func validateDuration(field, value string, minimum time.Duration) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%s: invalid duration %q: %w", field, value, err)
	}

	if d < minimum {
		return fmt.Errorf("%s: must be >= %s, got %s", field, minimum, d)
	}

	return nil
}
