package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mr1hm/go-quake-search/internal/models"
)

var (
	searchLat       float64
	searchLng       float64
	searchRadius    float64
	searchStart     string
	searchEnd       string
	searchMagnitude float64
	searchProvider  string
	searchChannel   string
	searchLimit     int
	searchStations  int
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Find the largest events in a region and rank nearby stations",
	Long:  "Runs a region search (or serves it from the cache) and prints the events and ranked stations as JSON.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		start, err := time.Parse("2006-01-02", searchStart)
		if err != nil {
			return fmt.Errorf("invalid --start %q: %w", searchStart, err)
		}
		end, err := time.Parse("2006-01-02", searchEnd)
		if err != nil {
			return fmt.Errorf("invalid --end %q: %w", searchEnd, err)
		}

		svc, closeFn, err := openService(ctx)
		if err != nil {
			return err
		}
		defer closeFn()

		result, err := svc.Search(ctx, models.SearchRequest{
			Latitude:     searchLat,
			Longitude:    searchLng,
			RadiusKm:     searchRadius,
			Start:        start,
			End:          end.Add(24 * time.Hour),
			MinMagnitude: searchMagnitude,
			Provider:     searchProvider,
			ChannelCode:  searchChannel,
			EventLimit:   searchLimit,
			StationLimit: searchStations,
		})
		if err != nil {
			return fmt.Errorf("search: %w", err)
		}

		return printJSON(cmd.OutOrStdout(), result)
	},
}

func init() {
	searchCmd.Flags().Float64Var(&searchLat, "lat", 0, "latitude of the search center (required)")
	searchCmd.Flags().Float64Var(&searchLng, "lng", 0, "longitude of the search center (required)")
	searchCmd.Flags().Float64Var(&searchRadius, "radius", 500, "search radius in kilometers")
	searchCmd.Flags().StringVar(&searchStart, "start", "", "first day, YYYY-MM-DD (required)")
	searchCmd.Flags().StringVar(&searchEnd, "end", "", "last day inclusive, YYYY-MM-DD (required)")
	searchCmd.Flags().Float64Var(&searchMagnitude, "magnitude", 0, "minimum magnitude")
	searchCmd.Flags().StringVar(&searchProvider, "provider", "", "FDSN provider host (default from FDSN_PROVIDER)")
	searchCmd.Flags().StringVar(&searchChannel, "channel", "BHZ", "channel code, substring or glob, comma separated")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 0, "max events (default from SEARCH_EVENT_LIMIT)")
	searchCmd.Flags().IntVar(&searchStations, "stations", 0, "max stations per event (default from SEARCH_STATION_LIMIT)")
	_ = searchCmd.MarkFlagRequired("lat")
	_ = searchCmd.MarkFlagRequired("lng")
	_ = searchCmd.MarkFlagRequired("start")
	_ = searchCmd.MarkFlagRequired("end")
	rootCmd.AddCommand(searchCmd)
}
