package config

import (
	"fmt"
	"time"

	"github.com/kilianp07/fieldops/infra/lock"
)

// LockConfig selects the run lock backend.
type LockConfig struct {
	// Backend is "memory" or "redis".
	Backend    string      `json:"backend"`
	TTLSeconds int         `json:"ttl_seconds"`
	Redis      lock.Config `json:"redis"`
}

// SetDefaults applies sane defaults.
func (c *LockConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "memory"
	}
	if c.TTLSeconds <= 0 {
		c.TTLSeconds = 900
	}
}

// Validate checks the backend settings.
func (c LockConfig) Validate() error {
	switch c.Backend {
	case "memory":
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis requires addr")
		}
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	return nil
}

// TTL returns the lock expiry.
func (c LockConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}
