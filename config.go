package prose

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Config holds the runtime tuning knobs: heap region sizes, the promotion
// age, and collector logging. The zero value is not usable; start from
// DefaultConfig.
type Config struct {
	// EdenBytes is the size of the allocation region. No single object may
	// exceed it.
	EdenBytes int `toml:"eden_bytes"`
	// SurvivorBytes is the size of each of the two survivor semispaces.
	SurvivorBytes int `toml:"survivor_bytes"`
	// OldBytes is the initial size of the old region, which grows on demand.
	OldBytes int `toml:"old_bytes"`
	// PromoteAge is the number of scavenges an object survives before being
	// promoted to the old region.
	PromoteAge int `toml:"promote_age"`
	// GCLog enables per-scavenge debug logging.
	GCLog bool `toml:"gc_log"`
}

// DefaultConfig returns the standard configuration.
func DefaultConfig() Config {
	return Config{
		EdenBytes:     512 << 10,
		SurvivorBytes: 256 << 10,
		OldBytes:      1 << 20,
		PromoteAge:    3,
	}
}

// LoadConfig reads a TOML configuration file over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("loading config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (cfg Config) validate() error {
	if cfg.EdenBytes < 4096 || cfg.SurvivorBytes < 4096 || cfg.OldBytes < 4096 {
		return fmt.Errorf("heap regions must be at least 4096 bytes")
	}
	if cfg.PromoteAge < 1 || cfg.PromoteAge > 255 {
		return fmt.Errorf("promote_age must be in 1..255")
	}
	return nil
}
