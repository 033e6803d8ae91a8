package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run a single mirror refresh cycle and exit",
	RunE:  runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	_, engine, status, err := setup()
	if err != nil {
		return err
	}

	report := engine.RunCycle(cmd.Context())
	log.Info().
		Str("cycle", report.ID).
		Int("installed", report.Installed).
		Int("skipped", report.Skipped).
		Int("failed", report.Failed).
		Dur("duration", report.Duration).
		Msg("sync finished")

	if failing := status.Failing(); len(failing) > 0 {
		for _, f := range failing {
			log.Error().Str("key", f.Key).Str("error", f.LastError).Msg("file not refreshed")
		}
	}
	if report.Failed > 0 {
		return fmt.Errorf("%d file(s) failed to refresh", report.Failed)
	}
	return nil
}
