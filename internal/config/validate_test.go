package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_DefaultsAreValid(t *testing.T) {
	assert.NoError(t, Validate(DefaultConfig()))
}

func TestValidate_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		message string
	}{
		{
			name:    "base url without scheme",
			mutate:  func(c *Config) { c.BaseURL = "api.example.com" },
			message: "base_url",
		},
		{
			name:    "base url with ftp scheme",
			mutate:  func(c *Config) { c.BaseURL = "ftp://api.example.com" },
			message: "base_url",
		},
		{
			name:    "unknown log level",
			mutate:  func(c *Config) { c.Logging.Level = "loud" },
			message: "logging.level",
		},
		{
			name:    "unknown log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			message: "logging.format",
		},
		{
			name:    "timeout too short",
			mutate:  func(c *Config) { c.HTTP.Timeout = "10ms" },
			message: "http.timeout",
		},
		{
			name:    "timeout not a duration",
			mutate:  func(c *Config) { c.HTTP.Timeout = "soon" },
			message: "http.timeout",
		},
		{
			name:    "negative rate limit",
			mutate:  func(c *Config) { c.HTTP.RequestsPerSecond = -1 },
			message: "http.requests_per_second",
		},
		{
			name:    "zero queue attempts",
			mutate:  func(c *Config) { c.Queue.MaxAttempts = 0 },
			message: "queue.max_attempts",
		},
		{
			name:    "unknown store driver",
			mutate:  func(c *Config) { c.Store.Driver = "postgres" },
			message: "store.driver",
		},
		{
			name: "redis driver without address",
			mutate: func(c *Config) {
				c.Store.Driver = "redis"
				c.Store.RedisAddr = ""
			},
			message: "store.redis_addr",
		},
		{
			name:    "probe interval too short",
			mutate:  func(c *Config) { c.Network.ProbeInterval = "1s" },
			message: "network.probe_interval",
		},
		{
			name:    "websocket url with http scheme",
			mutate:  func(c *Config) { c.Network.WebsocketURL = "https://api.example.com/ws" },
			message: "network.websocket_url",
		},
		{
			name:    "login path without slash",
			mutate:  func(c *Config) { c.Auth.LoginPath = "auth/login" },
			message: "auth.login_path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestValidate_AccumulatesAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Logging.Level = "loud"
	cfg.HTTP.Timeout = "soon"
	cfg.Store.Driver = "postgres"

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logging.level")
	assert.Contains(t, err.Error(), "http.timeout")
	assert.Contains(t, err.Error(), "store.driver")
}

func TestValidate_AcceptsEmptyBaseURL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BaseURL = ""

	assert.NoError(t, Validate(cfg))
}

func TestValidate_AcceptsWssWebsocketURL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Network.WebsocketURL = "wss://api.example.com/ws"

	assert.NoError(t, Validate(cfg))
}
