package config

// Default values for configuration options. These are the "layer 0" of the
// override chain and work without any config file.
const (
	defaultLogLevel      = "info"
	defaultLogFormat     = "auto"
	defaultHTTPTimeout   = "30s"
	defaultMaxAttempts   = 5
	defaultStoreDriver   = "sqlite"
	defaultProbeInterval = "30s"
	defaultLoginPath     = "/auth/login"
	defaultRefreshPath   = "/auth/refresh"
)

// DefaultConfig returns a Config populated with all default values.
// It is used both as the starting point for TOML decoding (so unset fields
// retain defaults) and as the fallback when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
		HTTP: HTTPConfig{
			Timeout: defaultHTTPTimeout,
		},
		Queue: QueueConfig{
			MaxAttempts: defaultMaxAttempts,
		},
		Store: StoreConfig{
			Driver: defaultStoreDriver,
		},
		Network: NetworkConfig{
			ProbeInterval: defaultProbeInterval,
		},
		Auth: AuthConfig{
			LoginPath:   defaultLoginPath,
			RefreshPath: defaultRefreshPath,
		},
	}
}
