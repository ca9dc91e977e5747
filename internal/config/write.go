package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// configFilePermissions is the standard permission mode for config files.
// Owner read/write only: the file may hold a redis password.
const configFilePermissions = 0o600

// configDirPermissions is the standard permission mode for config directories.
const configDirPermissions = 0o755

// configTemplate is the default config file content written by
// `meridian config init`. All settings are present as commented-out
// defaults so users can discover every option without reading docs.
const configTemplate = `# meridian configuration

# Backend origin all request paths resolve against.
# base_url = "https://api.meridian.example"

[logging]
# Verbosity: debug, info, warn, error
# level = "info"
# Output format: auto (text on a terminal, json otherwise), text, json
# format = "auto"

[http]
# Per-request timeout
# timeout = "30s"
# Client-side rate limit; 0 = unlimited
# requests_per_second = 0.0

[queue]
# Replay attempts per queued request before it is dropped
# max_attempts = 5

[store]
# Durable store backend: sqlite, redis, memory
# driver = "sqlite"
# SQLite database file (default: platform data directory)
# path = ""
# redis_addr = "localhost:6379"

[network]
# Reachability probe endpoint (default: base_url)
# probe_url = ""
# probe_interval = "30s"
# Heartbeat connection for instant connectivity signals; empty = disabled
# websocket_url = ""

[auth]
# login_path = "/auth/login"
# refresh_path = "/auth/refresh"
`

// WriteDefault creates a new config file from the default template. It
// refuses to overwrite an existing file. The write is atomic (temp file +
// rename) and parent directories are created as needed.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	return atomicWriteFile(path, []byte(configTemplate))
}

// atomicWriteFile writes data to a temporary file in the same directory as
// path, then renames it to the target path. This prevents partial writes
// from corrupting the config file on crash.
func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, configDirPermissions); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	f, err := os.CreateTemp(dir, ".config-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	tempPath := f.Name()

	// Clean up the temp file on any error path.
	succeeded := false
	defer func() {
		if !succeeded {
			os.Remove(tempPath)
		}
	}()

	if _, err := f.Write(data); err != nil {
		f.Close()

		return fmt.Errorf("writing temp file: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Chmod(tempPath, configFilePermissions); err != nil {
		return fmt.Errorf("setting file permissions: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}

	succeeded = true

	return nil
}
