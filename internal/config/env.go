package config

import "os"

// Environment variable names for overrides.
const (
	EnvConfig    = "MERIDIAN_CONFIG"
	EnvBaseURL   = "MERIDIAN_BASE_URL"
	EnvStorePath = "MERIDIAN_STORE_PATH"
	EnvRedisAddr = "MERIDIAN_REDIS_ADDR"
	EnvLogLevel  = "MERIDIAN_LOG_LEVEL"
)

// EnvOverrides holds values derived from environment variables.
// These are read once by ReadEnvOverrides and applied in Resolve.
type EnvOverrides struct {
	ConfigPath string // MERIDIAN_CONFIG: override config file path
	BaseURL    string // MERIDIAN_BASE_URL: backend origin override
	StorePath  string // MERIDIAN_STORE_PATH: sqlite store file override
	RedisAddr  string // MERIDIAN_REDIS_ADDR: redis address override
	LogLevel   string // MERIDIAN_LOG_LEVEL: log level override
}

// ReadEnvOverrides reads environment variables and returns any overrides
// found. This does not modify the Config; Resolve applies the fields.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath: os.Getenv(EnvConfig),
		BaseURL:    os.Getenv(EnvBaseURL),
		StorePath:  os.Getenv(EnvStorePath),
		RedisAddr:  os.Getenv(EnvRedisAddr),
		LogLevel:   os.Getenv(EnvLogLevel),
	}
}
