// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for meridian-go. It supports a
// three-layer override chain (defaults -> config file -> environment ->
// CLI flags) and an fsnotify-based watcher that reloads the file in place
// without restarting the process.
package config

// Config is the top-level configuration structure parsed from a TOML file.
type Config struct {
	// BaseURL is the backend origin every request path is resolved against,
	// e.g. "https://api.meridian.example".
	BaseURL string `toml:"base_url"`

	Logging LoggingConfig `toml:"logging"`
	HTTP    HTTPConfig    `toml:"http"`
	Queue   QueueConfig   `toml:"queue"`
	Store   StoreConfig   `toml:"store"`
	Network NetworkConfig `toml:"network"`
	Auth    AuthConfig    `toml:"auth"`
}

// LoggingConfig controls log output behavior.
type LoggingConfig struct {
	Level  string `toml:"level"`  // debug, info, warn, error
	Format string `toml:"format"` // auto, text, json
}

// HTTPConfig controls the outbound transport: per-call timeout and an
// optional client-side rate limit.
type HTTPConfig struct {
	Timeout           string  `toml:"timeout"`
	RequestsPerSecond float64 `toml:"requests_per_second"` // 0 = unlimited
}

// QueueConfig controls the offline request queue.
type QueueConfig struct {
	MaxAttempts int `toml:"max_attempts"`
}

// StoreConfig selects and configures the durable store backing tokens,
// the offline queue, and the response cache.
type StoreConfig struct {
	Driver        string `toml:"driver"` // sqlite, redis, memory
	Path          string `toml:"path"`   // sqlite database file
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
}

// NetworkConfig controls the reachability monitor's signal sources.
// An empty websocket_url disables the heartbeat source; the HTTP probe
// is always available.
type NetworkConfig struct {
	ProbeURL      string `toml:"probe_url"`
	ProbeInterval string `toml:"probe_interval"`
	WebsocketURL  string `toml:"websocket_url"`
}

// AuthConfig overrides the backend's authentication endpoint paths.
type AuthConfig struct {
	LoginPath   string `toml:"login_path"`
	RefreshPath string `toml:"refresh_path"`
}

// CLIOverrides holds values from CLI flags that override config file and
// environment settings. Empty string means "not specified".
type CLIOverrides struct {
	ConfigPath string // --config flag
	BaseURL    string // --base-url flag
	LogLevel   string // derived from --verbose / --quiet
}
