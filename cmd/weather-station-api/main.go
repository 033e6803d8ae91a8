package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "weather-station-api",
	Short: "Weather station report API backed by a mirrored blob store",
	Long: `weather-station-api mirrors device sensor files from a remote blob
container into a local cache and serves daily weather reports over HTTP.`,
	SilenceUsage: true,
}

func main() {
	// Termination signals cancel the command context; serve shuts down and
	// sync stops at the next file boundary.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}
