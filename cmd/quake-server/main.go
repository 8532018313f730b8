package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/mr1hm/go-quake-search/internal/api"
	"github.com/mr1hm/go-quake-search/internal/config"
	"github.com/mr1hm/go-quake-search/internal/fdsn"
	"github.com/mr1hm/go-quake-search/internal/logging"
	"github.com/mr1hm/go-quake-search/internal/observability"
	"github.com/mr1hm/go-quake-search/internal/repository"
	"github.com/mr1hm/go-quake-search/internal/search"
	"github.com/mr1hm/go-quake-search/internal/stream"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("Fatal while loading config: %v", err)
	}
	logging.Setup(cfg.Logging.Level, os.Stdout)

	slog.Info("Server starting", "host", cfg.Server.Host, "port", cfg.Server.Port, "provider", cfg.FDSN.DefaultProvider)

	db, err := repository.NewSQLiteDB(cfg.Cache.Path, repository.WithTTL(cfg.Cache.TTL))
	if err != nil {
		logging.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := observability.NewMetrics()

	// Searches go to redis when configured so several servers share them
	var cache repository.SearchCache
	if cfg.Redis.Addr != "" {
		rdb, err := repository.ConnectRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logging.Fatalf("Failed to connect to redis: %v", err)
		}
		defer rdb.Close()
		cache = repository.NewRedisSearchCache(rdb, cfg.Cache.TTL)
		slog.Info("using redis search cache", "addr", cfg.Redis.Addr)
	}

	client := fdsn.NewClient(fdsn.Options{
		Timeout:           cfg.FDSN.Timeout,
		MaxRetries:        cfg.FDSN.MaxRetries,
		RequestsPerSecond: cfg.FDSN.RequestsPerSecond,
		UserAgent:         cfg.FDSN.UserAgent,
	}, metrics)

	// Broadcaster for the SSE event stream
	broadcaster := stream.NewBroadcaster(stream.DefaultBuffer)

	svc := search.NewService(search.Deps{
		Events:      client,
		Stations:    client,
		Waveforms:   client,
		Store:       db,
		Cache:       cache,
		Broadcaster: broadcaster,
		Metrics:     metrics,
	}, search.OptionsFromConfig(cfg))
	svc.Start(ctx)

	// Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false, // Set to false when using wildcard origins
	}))
	router.Use(api.RateLimitMiddleware(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst))

	handler := api.NewHandler(svc, broadcaster)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	go func() {
		slog.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down...")

	broadcaster.Close() // Ends open event streams

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Stop taking requests before the workers go away
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	cancel()
	svc.Stop()

	slog.Info("shutdown complete")
}
