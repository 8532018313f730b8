package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Server.Port)
	}
	if cfg.FDSN.DefaultProvider != "service.iris.edu" {
		t.Errorf("expected IRIS as default provider, got %s", cfg.FDSN.DefaultProvider)
	}
	if cfg.Search.EventLimit != 5 || cfg.Search.StationLimit != 5 {
		t.Errorf("expected limits 5/5, got %d/%d", cfg.Search.EventLimit, cfg.Search.StationLimit)
	}
	if cfg.Search.WaveformWindow != 20*time.Minute {
		t.Errorf("expected 20m waveform window, got %v", cfg.Search.WaveformWindow)
	}
	if cfg.Cache.TTL != time.Hour {
		t.Errorf("expected 1h cache TTL, got %v", cfg.Cache.TTL)
	}
	if cfg.Redis.Addr != "" {
		t.Errorf("expected redis disabled by default, got %s", cfg.Redis.Addr)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("CACHE_TTL", "2h")
	t.Setenv("APPROVED_NETWORKS", "IU, II,,US")
	t.Setenv("FDSN_REQUESTS_PER_SECOND", "2.5")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Cache.TTL != 2*time.Hour {
		t.Errorf("expected 2h TTL, got %v", cfg.Cache.TTL)
	}
	if got := cfg.Search.ApprovedNetworks; len(got) != 3 || got[0] != "IU" || got[1] != "II" || got[2] != "US" {
		t.Errorf("unexpected approved networks: %v", got)
	}
	if cfg.FDSN.RequestsPerSecond != 2.5 {
		t.Errorf("expected 2.5 rps, got %v", cfg.FDSN.RequestsPerSecond)
	}
	if cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("expected redis addr, got %s", cfg.Redis.Addr)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"bad port", "SERVER_PORT", "70000"},
		{"bad log level", "LOG_LEVEL", "verbose"},
		{"short ttl", "CACHE_TTL", "10s"},
		{"too many widen attempts", "SEARCH_WIDEN_ATTEMPTS", "9"},
		{"no workers", "WORKER_COUNT", "0"},
		{"too many stations", "SEARCH_STATION_LIMIT", "500"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			if _, err := Load(); err == nil {
				t.Errorf("expected error for %s=%s", tt.key, tt.val)
			}
		})
	}
}
