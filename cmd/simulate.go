package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/fieldops/core/model"
	"github.com/kilianp07/fieldops/infra/logger"
	"github.com/kilianp07/fieldops/qa/scenarios"
)

var (
	simFile  string
	simDate  string
	simCheck bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a scenario file on an in-memory store",
	RunE:  simulate,
}

func init() {
	simulateCmd.Flags().StringVarP(&simFile, "file", "f", "", "scenario file")
	simulateCmd.Flags().StringVar(&simDate, "date", "", "override the scenario target date (YYYY-MM-DD)")
	simulateCmd.Flags().BoolVar(&simCheck, "check", false, "fail when the scenario expectations are not met")
	simulateCmd.Flags().BoolVar(&runJSON, "json", false, "print the summary as JSON")
	_ = simulateCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(simulateCmd)
}

func simulate(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	sc, err := scenarios.Load(simFile)
	if err != nil {
		return err
	}
	if d, ok, err := parseDate(simDate); err != nil {
		return err
	} else if ok {
		sc.Date = model.DateKey(d)
	}

	sum, out, err := sc.Run(ctx, logger.New("simulate"))
	if err != nil {
		return fmt.Errorf("scenario %s: %w", sc.Name, err)
	}
	if err := printSummary(cmd, sum); err != nil {
		return err
	}
	if !simCheck {
		return nil
	}
	failures := sc.Expected.Check(sum, out)
	for _, f := range failures {
		fmt.Fprintln(cmd.ErrOrStderr(), "FAIL", f)
	}
	if len(failures) > 0 {
		return errors.New("scenario expectations not met")
	}
	fmt.Fprintf(cmd.OutOrStdout(), "scenario %s: ok\n", sc.Name)
	return nil
}
