package config

import (
	"fmt"
	"io"

	"github.com/BurntSushi/toml"
)

// RenderEffective writes the fully resolved configuration as TOML, with
// the redis password masked. Used by `meridian config show`.
func RenderEffective(cfg *Config, w io.Writer) error {
	masked := *cfg
	if masked.Store.RedisPassword != "" {
		masked.Store.RedisPassword = "********"
	}

	enc := toml.NewEncoder(w)
	if err := enc.Encode(&masked); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	return nil
}
