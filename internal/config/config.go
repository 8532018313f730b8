package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mr1hm/go-quake-search/internal/models"
)

type Config struct {
	Server    ServerConfig
	Worker    WorkerConfig
	FDSN      FDSNConfig
	Search    SearchConfig
	Cache     CacheConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	AllowOrigins []string
}

type WorkerConfig struct {
	Count      int
	BufferSize int
}

type FDSNConfig struct {
	DefaultProvider   string
	Timeout           time.Duration
	MaxRetries        int
	RequestsPerSecond float64
	UserAgent         string
}

type SearchConfig struct {
	EventLimit       int
	StationLimit     int
	WidenAttempts    int
	WaveformWindow   time.Duration
	WaveformFetchers int
	ApprovedNetworks []string
	ApprovedChannels []string
}

type CacheConfig struct {
	Path            string
	TTL             time.Duration
	JanitorInterval time.Duration
}

// RedisConfig enables the shared search cache when Addr is set.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

type LoggingConfig struct {
	Level string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "localhost"),
			Port:         getEnvInt("SERVER_PORT", 8080),
			AllowOrigins: getEnvList("CORS_ALLOW_ORIGINS", []string{"*"}),
		},
		Worker: WorkerConfig{
			Count:      getEnvInt("WORKER_COUNT", 4),
			BufferSize: getEnvInt("WORKER_BUFFER_SIZE", 20),
		},
		FDSN: FDSNConfig{
			DefaultProvider:   getEnv("FDSN_PROVIDER", "service.iris.edu"),
			Timeout:           getEnvDuration("FDSN_TIMEOUT", 30*time.Second),
			MaxRetries:        getEnvInt("FDSN_MAX_RETRIES", 2),
			RequestsPerSecond: getEnvFloat("FDSN_REQUESTS_PER_SECOND", 5),
			UserAgent:         getEnv("FDSN_USER_AGENT", "go-quake-search/1.0"),
		},
		Search: SearchConfig{
			EventLimit:       getEnvInt("SEARCH_EVENT_LIMIT", 5),
			StationLimit:     getEnvInt("SEARCH_STATION_LIMIT", 5),
			WidenAttempts:    getEnvInt("SEARCH_WIDEN_ATTEMPTS", 1),
			WaveformWindow:   getEnvDuration("WAVEFORM_WINDOW", 20*time.Minute),
			WaveformFetchers: getEnvInt("WAVEFORM_FETCHERS", 4),
			ApprovedNetworks: getEnvList("APPROVED_NETWORKS", nil),
			ApprovedChannels: getEnvList("APPROVED_CHANNELS", nil),
		},
		Cache: CacheConfig{
			Path:            getEnv("DB_PATH", "./data/quake-search.db"),
			TTL:             getEnvDuration("CACHE_TTL", time.Hour),
			JanitorInterval: getEnvDuration("CACHE_JANITOR_INTERVAL", 5*time.Minute),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvFloat("RATE_LIMIT_RPS", 10),
			Burst:             getEnvInt("RATE_LIMIT_BURST", 20),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Worker.Count < 1 {
		return fmt.Errorf("worker count must be at least 1")
	}
	if c.FDSN.DefaultProvider == "" {
		return fmt.Errorf("FDSN provider must not be empty")
	}
	if c.FDSN.MaxRetries < 0 {
		return fmt.Errorf("FDSN max retries must not be negative")
	}
	if c.Search.EventLimit < 1 || c.Search.StationLimit < 1 {
		return fmt.Errorf("search event and station limits must be at least 1")
	}
	if c.Search.EventLimit > models.MaxEventLimit || c.Search.StationLimit > models.MaxStationLimit {
		return fmt.Errorf("search limits must be at most %d events and %d stations", models.MaxEventLimit, models.MaxStationLimit)
	}
	if c.Search.WidenAttempts < 1 || c.Search.WidenAttempts > 8 {
		return fmt.Errorf("search widen attempts must be between 1 and 8")
	}
	if c.Search.WaveformWindow <= 0 {
		return fmt.Errorf("waveform window must be positive")
	}
	if c.Cache.TTL < time.Minute {
		return fmt.Errorf("cache TTL must be at least 1 minute")
	}
	if c.Cache.JanitorInterval < time.Second {
		return fmt.Errorf("cache janitor interval must be at least 1 second")
	}
	if c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst < 1 {
		return fmt.Errorf("invalid rate limit: %v rps, burst %d", c.RateLimit.RequestsPerSecond, c.RateLimit.Burst)
	}

	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}

// getEnvList reads a comma separated list, dropping empty entries.
func getEnvList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
