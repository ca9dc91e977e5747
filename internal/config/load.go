package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Load reads and parses a TOML config file, validates it, and returns the
// resulting Config. Unknown keys are fatal errors with "did you mean?"
// suggestions — silently ignoring a typo in a config file leads to
// hard-to-debug behavior.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := checkUnknownKeys(&md); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault reads a TOML config file if it exists, otherwise returns a
// Config populated with all default values. This supports the zero-config
// first-run experience: base URL and credentials can come entirely from
// the environment and `login`.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}

	return Load(path)
}

// Resolve loads configuration and applies the override chain:
// defaults -> config file -> environment variables -> CLI flags.
// It returns the resolved config and the config file path it used.
// CLI flags always win, matching user expectations for one-off overrides
// without editing the config file.
func Resolve(env EnvOverrides, cli CLIOverrides) (*Config, string, error) {
	cfgPath := DefaultConfigPath()
	if env.ConfigPath != "" {
		cfgPath = env.ConfigPath
	}

	if cli.ConfigPath != "" {
		cfgPath = cli.ConfigPath
	}

	cfg, err := LoadOrDefault(cfgPath)
	if err != nil {
		return nil, "", err
	}

	applyEnvOverrides(cfg, env)
	applyCLIOverrides(cfg, cli)

	// The sqlite path defaults to the platform data directory; resolving it
	// here means every consumer sees a concrete path.
	if cfg.Store.Driver == storeDriverSQLite && cfg.Store.Path == "" {
		cfg.Store.Path = DefaultStorePath()
	}

	if err := Validate(cfg); err != nil {
		return nil, "", fmt.Errorf("config validation: %w", err)
	}

	return cfg, cfgPath, nil
}

func applyEnvOverrides(cfg *Config, env EnvOverrides) {
	if env.BaseURL != "" {
		cfg.BaseURL = env.BaseURL
	}

	if env.StorePath != "" {
		cfg.Store.Path = env.StorePath
	}

	if env.RedisAddr != "" {
		cfg.Store.RedisAddr = env.RedisAddr
	}

	if env.LogLevel != "" {
		cfg.Logging.Level = env.LogLevel
	}
}

func applyCLIOverrides(cfg *Config, cli CLIOverrides) {
	if cli.BaseURL != "" {
		cfg.BaseURL = cli.BaseURL
	}

	if cli.LogLevel != "" {
		cfg.Logging.Level = cli.LogLevel
	}
}
