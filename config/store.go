package config

import (
	"fmt"

	"github.com/kilianp07/fieldops/infra/store/postgres"
)

// Store drivers.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// StoreConfig selects the record store.
type StoreConfig struct {
	Driver string `json:"driver"`
	// Path is the SQLite database file.
	Path     string          `json:"path"`
	Postgres postgres.Config `json:"postgres"`
}

// SetDefaults applies sane defaults.
func (c *StoreConfig) SetDefaults() {
	if c.Driver == "" {
		c.Driver = StoreMemory
	}
	if c.Driver == StoreSQLite && c.Path == "" {
		c.Path = "fieldops.db"
	}
	if c.Driver == StorePostgres {
		c.Postgres.SetDefaults()
	}
}

// Validate checks the driver settings.
func (c StoreConfig) Validate() error {
	switch c.Driver {
	case StoreMemory:
	case StoreSQLite:
		if c.Path == "" {
			return fmt.Errorf("sqlite requires path")
		}
	case StorePostgres:
		if c.Postgres.DSN == "" {
			return fmt.Errorf("postgres requires dsn")
		}
	default:
		return fmt.Errorf("unknown driver %q", c.Driver)
	}
	return nil
}
