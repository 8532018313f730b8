// Package search runs region searches against FDSN services and serves the
// cached results.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mr1hm/go-quake-search/internal/config"
	"github.com/mr1hm/go-quake-search/internal/fdsn"
	"github.com/mr1hm/go-quake-search/internal/models"
	"github.com/mr1hm/go-quake-search/internal/observability"
	"github.com/mr1hm/go-quake-search/internal/repository"
	"github.com/mr1hm/go-quake-search/internal/stream"
	"github.com/mr1hm/go-quake-search/internal/worker"
)

var ErrNotStarted = errors.New("search service not started")

type EventSource interface {
	Events(ctx context.Context, q fdsn.EventQuery) ([]models.Event, error)
}

type StationSource interface {
	Channels(ctx context.Context, q fdsn.StationQuery) ([]models.Channel, error)
}

type WaveformSource interface {
	DataSelect(ctx context.Context, q fdsn.DataSelectQuery) ([]byte, error)
}

type Options struct {
	DefaultProvider  string
	EventLimit       int
	StationLimit     int
	WidenAttempts    int
	WaveformWindow   time.Duration
	WaveformFetchers int
	ApprovedNetworks []string
	ApprovedChannels []string
	CacheTTL         time.Duration
	JanitorInterval  time.Duration
	Workers          int
	WorkerBuffer     int
}

func DefaultOptions() Options {
	return Options{
		DefaultProvider:  "service.iris.edu",
		EventLimit:       5,
		StationLimit:     5,
		WidenAttempts:    1,
		WaveformWindow:   20 * time.Minute,
		WaveformFetchers: 4,
		CacheTTL:         time.Hour,
		JanitorInterval:  5 * time.Minute,
		Workers:          4,
		WorkerBuffer:     20,
	}
}

// OptionsFromConfig maps the loaded configuration onto service options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		DefaultProvider:  cfg.FDSN.DefaultProvider,
		EventLimit:       cfg.Search.EventLimit,
		StationLimit:     cfg.Search.StationLimit,
		WidenAttempts:    cfg.Search.WidenAttempts,
		WaveformWindow:   cfg.Search.WaveformWindow,
		WaveformFetchers: cfg.Search.WaveformFetchers,
		ApprovedNetworks: cfg.Search.ApprovedNetworks,
		ApprovedChannels: cfg.Search.ApprovedChannels,
		CacheTTL:         cfg.Cache.TTL,
		JanitorInterval:  cfg.Cache.JanitorInterval,
		Workers:          cfg.Worker.Count,
		WorkerBuffer:     cfg.Worker.BufferSize,
	}
}

// Deps are the collaborators of a Service. Cache defaults to Store,
// Broadcaster and Clock are optional.
type Deps struct {
	Events      EventSource
	Stations    StationSource
	Waveforms   WaveformSource
	Store       repository.Store
	Cache       repository.SearchCache
	Broadcaster *stream.Broadcaster
	Metrics     *observability.Metrics
	Clock       clockwork.Clock
}

type Service struct {
	events      EventSource
	stations    StationSource
	waveforms   WaveformSource
	store       repository.Store
	cache       repository.SearchCache
	broadcaster *stream.Broadcaster
	metrics     *observability.Metrics
	clock       clockwork.Clock
	opts        Options

	// set when searches are cached outside the local store
	sharedCache bool

	pool   *worker.WorkerPool
	runCtx context.Context
	wg     sync.WaitGroup
}

func NewService(deps Deps, opts Options) *Service {
	def := DefaultOptions()
	if opts.DefaultProvider == "" {
		opts.DefaultProvider = def.DefaultProvider
	}
	if opts.EventLimit <= 0 {
		opts.EventLimit = def.EventLimit
	}
	if opts.StationLimit <= 0 {
		opts.StationLimit = def.StationLimit
	}
	if opts.WidenAttempts <= 0 {
		opts.WidenAttempts = def.WidenAttempts
	}
	if opts.WaveformWindow <= 0 {
		opts.WaveformWindow = def.WaveformWindow
	}
	if opts.WaveformFetchers <= 0 {
		opts.WaveformFetchers = def.WaveformFetchers
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = def.CacheTTL
	}
	if opts.JanitorInterval <= 0 {
		opts.JanitorInterval = def.JanitorInterval
	}
	if opts.Workers <= 0 {
		opts.Workers = def.Workers
	}
	if opts.WorkerBuffer < 0 {
		opts.WorkerBuffer = def.WorkerBuffer
	}

	s := &Service{
		events:      deps.Events,
		stations:    deps.Stations,
		waveforms:   deps.Waveforms,
		store:       deps.Store,
		cache:       deps.Cache,
		broadcaster: deps.Broadcaster,
		metrics:     deps.Metrics,
		clock:       deps.Clock,
		opts:        opts,
	}
	if s.cache == nil {
		s.cache = deps.Store
	} else {
		s.sharedCache = deps.Cache != deps.Store
	}
	if s.metrics == nil {
		s.metrics = observability.NewMetricsForTesting()
	}
	if s.clock == nil {
		s.clock = clockwork.NewRealClock()
	}
	s.pool = worker.NewWorkerPool(opts.Workers, opts.WorkerBuffer, s.processStationJob)
	return s
}

// Start launches the station workers and the cache janitor. They run until
// ctx is cancelled; call Stop afterwards to wait for them.
func (s *Service) Start(ctx context.Context) {
	s.runCtx = ctx
	s.pool.Start(ctx)

	s.wg.Add(1)
	go s.runJanitor(ctx)
}

// StartWorkers launches only the station workers, for one-shot use where
// no janitor is wanted.
func (s *Service) StartWorkers(ctx context.Context) {
	s.runCtx = ctx
	s.pool.Start(ctx)
}

func (s *Service) Stop() {
	s.wg.Wait()
	s.pool.Stop()
	slog.Info("search service stopped")
}

func (s *Service) runJanitor(ctx context.Context) {
	defer s.wg.Done()
	slog.Info("starting cache janitor", "interval", s.opts.JanitorInterval)

	ticker := s.clock.NewTicker(s.opts.JanitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("cache janitor shutting down")
			return
		case <-ticker.Chan():
			if _, err := s.Purge(ctx); err != nil && ctx.Err() == nil {
				slog.Error("cache purge failed", "error", err)
			}
		}
	}
}

// Purge removes expired cache rows.
func (s *Service) Purge(ctx context.Context) (int64, error) {
	n, err := s.store.PurgeExpired(ctx)
	if err != nil {
		return 0, err
	}
	s.metrics.CachePurged.Add(float64(n))
	if n > 0 {
		slog.Debug("purged expired cache rows", "count", n)
	}
	return n, nil
}

// Event returns one cached event.
func (s *Service) Event(ctx context.Context, id string) (*models.Event, error) {
	return s.store.GetEvent(ctx, id)
}

// Stations returns the stations cached for an event under a ranking. The
// zero Ranking returns the most recent one.
func (s *Service) Stations(ctx context.Context, eventID string, r models.Ranking) ([]models.Station, error) {
	return s.store.GetStations(ctx, eventID, s.rankingKey(r))
}

// rankingKey names the station list a ranking produces. A limit of zero
// means the configured default. Approved channel and network lists change
// what gets ranked, so they are part of the key.
func (s *Service) rankingKey(r models.Ranking) string {
	code := strings.ToUpper(strings.TrimSpace(r.ChannelCode))
	if code == "" {
		return ""
	}
	limit := r.Limit
	if limit <= 0 {
		limit = s.opts.StationLimit
	}

	key := fmt.Sprintf("%s/%d", code, limit)
	if len(s.opts.ApprovedChannels) > 0 {
		key += "|ch=" + strings.Join(s.opts.ApprovedChannels, ",")
	}
	if len(s.opts.ApprovedNetworks) > 0 {
		key += "|net=" + strings.Join(s.opts.ApprovedNetworks, ",")
	}
	return key
}

// ListEvents returns cached events matching the filter.
func (s *Service) ListEvents(ctx context.Context, f repository.Filter) ([]models.Event, error) {
	return s.store.ListEvents(ctx, f)
}
