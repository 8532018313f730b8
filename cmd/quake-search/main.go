package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mr1hm/go-quake-search/internal/config"
	"github.com/mr1hm/go-quake-search/internal/fdsn"
	"github.com/mr1hm/go-quake-search/internal/logging"
	"github.com/mr1hm/go-quake-search/internal/repository"
	"github.com/mr1hm/go-quake-search/internal/search"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "quake-search",
	Short: "Search earthquakes and nearby seismic stations",
	Long:  "Queries FDSN event, station and dataselect services and caches results in the same SQLite database the server uses.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()

		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		logging.Setup(cfg.Logging.Level, os.Stderr)
		return nil
	},
	SilenceUsage: true,
}

// openService opens the cache and starts a service with station workers
// only. The returned func stops the workers and closes the cache.
func openService(ctx context.Context) (*search.Service, func(), error) {
	db, err := repository.NewSQLiteDB(cfg.Cache.Path, repository.WithTTL(cfg.Cache.TTL))
	if err != nil {
		return nil, nil, fmt.Errorf("open cache: %w", err)
	}

	client := fdsn.NewClient(fdsn.Options{
		Timeout:           cfg.FDSN.Timeout,
		MaxRetries:        cfg.FDSN.MaxRetries,
		RequestsPerSecond: cfg.FDSN.RequestsPerSecond,
		UserAgent:         cfg.FDSN.UserAgent,
	}, nil)

	svc := search.NewService(search.Deps{
		Events:    client,
		Stations:  client,
		Waveforms: client,
		Store:     db,
	}, search.OptionsFromConfig(cfg))

	runCtx, cancel := context.WithCancel(ctx)
	svc.StartWorkers(runCtx)

	return svc, func() {
		cancel()
		svc.Stop()
		db.Close()
	}, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
