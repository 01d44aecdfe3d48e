package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/fieldops/app"
	"github.com/kilianp07/fieldops/core/assign"
	"github.com/kilianp07/fieldops/infra/logger"
	"github.com/kilianp07/fieldops/pkg/export"
)

var (
	runDate string
	runJSON bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the assignment once for a target date",
	Long:  "Run the assignment once for a target date. Without --date the target is today plus the configured lead days. Committed outcomes are handed to the configured notifier before the command exits.",
	RunE:  runOnce,
}

func init() {
	runCmd.Flags().StringVar(&runDate, "date", "", "target date (YYYY-MM-DD)")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "print the summary as JSON")
	rootCmd.AddCommand(runCmd)
}

func runOnce(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	date, ok, err := parseDate(runDate)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	svc, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("main").Errorf("service close: %v", err)
		}
	}()
	if !ok {
		date = svc.Target(time.Now())
	}

	sum, runErr := svc.RunOnce(ctx, date)
	if err := printSummary(cmd, sum); err != nil {
		return err
	}
	if runErr != nil {
		return fmt.Errorf("run failed: %w", runErr)
	}
	return nil
}

func printSummary(cmd *cobra.Command, sum assign.RunSummary) error {
	if runJSON {
		return export.WriteJSON(cmd.OutOrStdout(), sum)
	}
	return export.WriteSummary(cmd.OutOrStdout(), sum)
}
