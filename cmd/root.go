// Package cmd implements the fieldops command line.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/fieldops/config"
	"github.com/kilianp07/fieldops/core/model"
	"github.com/kilianp07/fieldops/infra/logger"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:          "fieldops",
	Short:        "Daily field service assignment engine",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "configuration file")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger.Configure(cfg.Logging.Options())
	return cfg, nil
}

// parseDate parses a --date flag value. ok is false for an empty value.
func parseDate(s string) (d time.Time, ok bool, err error) {
	if s == "" {
		return time.Time{}, false, nil
	}
	d, err = model.ParseDate(s)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("invalid date %q, want YYYY-MM-DD: %w", s, err)
	}
	return d, true, nil
}
