package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mr1hm/go-quake-search/internal/models"
	"github.com/mr1hm/go-quake-search/internal/search"
)

var (
	rankingChannel  string
	rankingStations int
)

// ranking selects the station list the --channel and --stations flags name.
func ranking() models.Ranking {
	return models.Ranking{ChannelCode: rankingChannel, Limit: rankingStations}
}

var stationsCmd = &cobra.Command{
	Use:   "stations <event-id>",
	Short: "Print the ranked stations cached for an event",
	Long:  "Prints one of the station lists cached for an event. Without --channel the most recently ranked list is printed.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		svc, closeFn, err := openService(ctx)
		if err != nil {
			return err
		}
		defer closeFn()

		stations, err := svc.Stations(ctx, args[0], ranking())
		if err != nil {
			return fmt.Errorf("stations for %s: %w", args[0], err)
		}
		return printJSON(cmd.OutOrStdout(), stations)
	},
}

var waveformsMax int

var waveformsCmd = &cobra.Command{
	Use:   "waveforms <event-id>",
	Short: "Fetch and print waveforms for an event's ranked stations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		svc, closeFn, err := openService(ctx)
		if err != nil {
			return err
		}
		defer closeFn()

		waveforms, err := svc.Waveforms(ctx, args[0], ranking(), waveformsMax)
		if err != nil {
			return fmt.Errorf("waveforms for %s: %w", args[0], err)
		}
		return printJSON(cmd.OutOrStdout(), waveforms)
	},
}

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete expired rows from the cache",
	RunE: func(cmd *cobra.Command, _ []string) error {
		svc, closeFn, err := openService(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()

		n, err := svc.Purge(cmd.Context())
		if err != nil {
			return fmt.Errorf("purge: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "purged %d expired rows\n", n)
		return nil
	},
}

func init() {
	for _, cmd := range []*cobra.Command{stationsCmd, waveformsCmd} {
		cmd.Flags().StringVar(&rankingChannel, "channel", "", "channel code the stations were ranked for (default latest ranking)")
		cmd.Flags().IntVar(&rankingStations, "stations", 0, "station limit the stations were ranked with (default from SEARCH_STATION_LIMIT)")
	}
	waveformsCmd.Flags().IntVar(&waveformsMax, "max", search.DefaultMaxWaveforms, "max stations with data to return")
	rootCmd.AddCommand(stationsCmd, waveformsCmd, purgeCmd)
}
