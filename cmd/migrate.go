package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/fieldops/config"
	"github.com/kilianp07/fieldops/infra/logger"
	"github.com/kilianp07/fieldops/infra/store/postgres"
	"github.com/kilianp07/fieldops/infra/store/sqlite"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the record store schema",
	RunE:  migrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func migrate(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logger.New("migrate")
	switch cfg.Store.Driver {
	case config.StorePostgres:
		pg := cfg.Store.Postgres
		pg.Migrate = false
		s, err := postgres.Open(ctx, pg, log)
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()
		if err := s.Migrate(); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	case config.StoreSQLite:
		// the schema is created when the database opens
		s, err := sqlite.Open(cfg.Store.Path)
		if err != nil {
			return err
		}
		if err := s.Close(); err != nil {
			return err
		}
	default:
		return errors.New("the memory store has no schema")
	}
	log.Infof("%s schema is up to date", cfg.Store.Driver)
	return nil
}
