package config

import (
	"fmt"
)

// Validate checks configuration correctness. It performs declarative
// validation only and does not mutate the configuration; range checks on
// timing values are left to the device option constructors.
func Validate(cfg *Config) error {
	if len(cfg.Networks) == 0 {
		return fmt.Errorf("at least one candidate network is required")
	}

	for i, n := range cfg.Networks {
		if n.Name == "" {
			return fmt.Errorf("network %d: name is required", i)
		}
		if n.PeerHost == "" {
			return fmt.Errorf("network %q: peer_host is required", n.Name)
		}
	}

	if cfg.Port < 0 || cfg.Port > 65535 {
		return fmt.Errorf("port %d is out of range [0, 65535]", cfg.Port)
	}

	switch cfg.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level %q is not one of debug, info, warn, error", cfg.LogLevel)
	}

	return nil
}
