package app

import (
	"context"
	"fmt"

	"github.com/kilianp07/fieldops/config"
	corelock "github.com/kilianp07/fieldops/core/lock"
	"github.com/kilianp07/fieldops/core/logger"
	"github.com/kilianp07/fieldops/core/store"
	"github.com/kilianp07/fieldops/infra/lock"
	"github.com/kilianp07/fieldops/infra/store/postgres"
	"github.com/kilianp07/fieldops/infra/store/sqlite"
)

// OpenStore opens the record store selected by cfg.
func OpenStore(ctx context.Context, cfg config.StoreConfig, log logger.Logger) (store.Store, error) {
	switch cfg.Driver {
	case config.StoreMemory, "":
		return store.NewMemoryStore(store.Dataset{}), nil
	case config.StoreSQLite:
		s, err := sqlite.Open(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("sqlite store: %w", err)
		}
		return s, nil
	case config.StorePostgres:
		s, err := postgres.Open(ctx, cfg.Postgres, log)
		if err != nil {
			return nil, fmt.Errorf("postgres store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// NewLocker creates the run lock selected by cfg.
func NewLocker(ctx context.Context, cfg config.LockConfig) (corelock.Locker, error) {
	switch cfg.Backend {
	case "memory", "":
		return corelock.NewMemoryLocker(), nil
	case "redis":
		l, err := lock.NewRedisLocker(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("redis lock: %w", err)
		}
		return l, nil
	default:
		return nil, fmt.Errorf("unknown lock backend %q", cfg.Backend)
	}
}
