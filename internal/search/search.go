package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/mr1hm/go-quake-search/internal/fdsn"
	"github.com/mr1hm/go-quake-search/internal/geo"
	"github.com/mr1hm/go-quake-search/internal/models"
	"github.com/mr1hm/go-quake-search/internal/ranking"
	"github.com/mr1hm/go-quake-search/internal/repository"
	"github.com/mr1hm/go-quake-search/internal/worker"
)

const maxRadiusDeg = 180

type stationJob struct {
	ctx     context.Context
	req     models.SearchRequest
	event   models.Event
	results chan<- stationResult
}

type stationResult struct {
	eventID  string
	stations []models.Station
	err      error
}

// Key identifies a search for caching. The geohash cell groups keys by
// region and the center rounded to 0.01 degrees (about a kilometer) keeps
// distinct centers in one cell apart, so only near-identical centers with
// the same parameters share a key.
func Key(req models.SearchRequest) string {
	center := geo.Point{Latitude: req.Latitude, Longitude: req.Longitude}
	return fmt.Sprintf("%s|%.2f,%.2f|%s|%g|%d|%d|%g|%s|%d|%d",
		geo.RegionKey(center, req.RadiusKm),
		req.Latitude,
		geo.NormalizeLongitude(req.Longitude),
		strings.ToLower(req.Provider),
		req.RadiusKm,
		req.Start.Unix(),
		req.End.Unix(),
		req.MinMagnitude,
		req.ChannelCode,
		req.EventLimit,
		req.StationLimit,
	)
}

// Prepare fills defaults, normalizes and validates a request.
func (s *Service) Prepare(req models.SearchRequest) (models.SearchRequest, error) {
	if strings.TrimSpace(req.Provider) == "" {
		req.Provider = s.opts.DefaultProvider
	}
	if req.EventLimit == 0 {
		req.EventLimit = s.opts.EventLimit
	}
	if req.StationLimit == 0 {
		req.StationLimit = s.opts.StationLimit
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return req, err
	}
	return req, nil
}

// Search finds the largest events in the request region, ranks the stations
// nearest each epicenter and caches everything.
func (s *Service) Search(ctx context.Context, req models.SearchRequest) (*models.SearchResult, error) {
	if s.runCtx == nil {
		return nil, ErrNotStarted
	}

	req, err := s.Prepare(req)
	if err != nil {
		s.metrics.Searches.WithLabelValues("invalid").Inc()
		return nil, err
	}

	key := Key(req)
	if cached, err := s.cache.GetSearch(ctx, key); err == nil {
		s.metrics.CacheLookups.WithLabelValues("search", "hit").Inc()
		s.metrics.Searches.WithLabelValues("cached").Inc()
		slog.Debug("search cache hit", "key", key)
		if s.sharedCache {
			// another instance may have run it, so the rows it points at
			// must exist here too
			if err := s.persist(ctx, req.Ranking(), cached); err != nil {
				slog.Warn("failed to store shared search locally", "key", key, "error", err)
			}
		}
		return cached, nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		slog.Warn("search cache lookup failed", "key", key, "error", err)
	}
	s.metrics.CacheLookups.WithLabelValues("search", "miss").Inc()

	start := s.clock.Now()
	result, err := s.search(ctx, req)
	if err != nil {
		s.metrics.Searches.WithLabelValues("error").Inc()
		return nil, err
	}
	s.metrics.SearchDuration.Observe(s.clock.Since(start).Seconds())
	s.metrics.Searches.WithLabelValues("success").Inc()

	if err := s.cache.PutSearch(ctx, key, result, s.opts.CacheTTL); err != nil {
		slog.Warn("failed to cache search", "key", key, "error", err)
	}
	return result, nil
}

func (s *Service) search(ctx context.Context, req models.SearchRequest) (*models.SearchResult, error) {
	events, err := s.events.Events(ctx, fdsn.EventQuery{
		Provider:     req.Provider,
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
		MaxRadiusDeg: math.Min(geo.KmToDegrees(req.RadiusKm), maxRadiusDeg),
		Start:        req.Start,
		End:          req.End,
		MinMagnitude: req.MinMagnitude,
		Limit:        req.EventLimit,
		OrderBy:      "magnitude",
	})
	if err != nil {
		return nil, fmt.Errorf("error querying events: %w", err)
	}
	if len(events) > req.EventLimit {
		events = events[:req.EventLimit]
	}
	s.metrics.EventsFound.Add(float64(len(events)))
	slog.Info("events found", "provider", req.Provider, "count", len(events))

	stations, err := s.stationsForEvents(ctx, req, events)
	if err != nil {
		return nil, err
	}

	result := models.NewSearchResult()
	for _, e := range events {
		result.AddEvent(e, stations[e.ID])
	}

	if err := s.persist(ctx, req.Ranking(), result); err != nil {
		return nil, err
	}
	return result, nil
}

// stationsForEvents fans the per-event station lookups out to the worker
// pool. A failed lookup leaves that event without stations.
func (s *Service) stationsForEvents(ctx context.Context, req models.SearchRequest, events []models.Event) (map[string][]models.Station, error) {
	results := make(chan stationResult, len(events))
	for _, e := range events {
		job := stationJob{ctx: ctx, req: req, event: e, results: results}
		if err := s.pool.Submit(ctx, job); err != nil {
			return nil, fmt.Errorf("error queueing station lookup for %s: %w", e.ID, err)
		}
	}

	out := make(map[string][]models.Station, len(events))
	for range events {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.runCtx.Done():
			return nil, ErrNotStarted
		case r := <-results:
			if r.err != nil {
				slog.Warn("station lookup failed", "event_id", r.eventID, "error", r.err)
				out[r.eventID] = []models.Station{}
				continue
			}
			out[r.eventID] = r.stations
		}
	}
	return out, nil
}

func (s *Service) processStationJob(_ context.Context, j worker.Job) error {
	job := j.(stationJob)
	stations, err := s.rankStations(job.ctx, job.req, job.event)
	job.results <- stationResult{eventID: job.event.ID, stations: stations, err: err}
	return err
}

// rankStations queries channels around the epicenter during the event
// window and keeps the closest. With WidenAttempts > 1 an empty answer
// retries at twice the radius.
func (s *Service) rankStations(ctx context.Context, req models.SearchRequest, e models.Event) ([]models.Station, error) {
	radius := math.Min(geo.KmToDegrees(req.RadiusKm), maxRadiusDeg)
	opts := ranking.Options{
		ChannelCode:      req.ChannelCode,
		ApprovedChannels: s.opts.ApprovedChannels,
		ApprovedNetworks: s.opts.ApprovedNetworks,
		Limit:            req.StationLimit,
	}

	for attempt := 1; ; attempt++ {
		channels, err := s.stations.Channels(ctx, fdsn.StationQuery{
			Provider:        req.Provider,
			Latitude:        e.Latitude,
			Longitude:       e.Longitude,
			MaxRadiusDeg:    radius,
			Start:           e.StartTime,
			End:             e.EndTime,
			Network:         strings.Join(s.opts.ApprovedNetworks, ","),
			ChannelCode:     s.channelPattern(req.ChannelCode),
			MatchTimeSeries: true,
		})
		if err != nil {
			return nil, fmt.Errorf("error querying stations: %w", err)
		}

		stations := ranking.Rank(e, channels, opts)
		if len(stations) > 0 || attempt >= s.opts.WidenAttempts || radius >= maxRadiusDeg {
			s.metrics.StationsRanked.Add(float64(len(stations)))
			slog.Debug("stations ranked", "event_id", e.ID, "candidates", len(channels), "kept", len(stations), "radius_deg", radius)
			return stations, nil
		}

		slog.Debug("no stations found, widening radius", "event_id", e.ID, "attempt", attempt, "radius_deg", radius)
		radius = math.Min(radius*2, maxRadiusDeg)
	}
}

// channelPattern turns the substring channel match used for ranking into
// an FDSN wildcard pattern so the service returns every candidate.
func (s *Service) channelPattern(code string) string {
	if len(s.opts.ApprovedChannels) > 0 {
		return strings.Join(s.opts.ApprovedChannels, ",")
	}
	var parts []string
	for _, p := range strings.Split(code, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !strings.ContainsAny(p, "*?") {
			p = "*" + p + "*"
		}
		parts = append(parts, p)
	}
	return strings.Join(parts, ",")
}

// persist saves events and their stations under the ranking and announces
// events that were not cached before.
func (s *Service) persist(ctx context.Context, r models.Ranking, result *models.SearchResult) error {
	rankKey := s.rankingKey(r)
	var fresh []string
	events := make([]models.Event, 0, len(result.EventIDs))
	for _, id := range result.EventIDs {
		if _, err := s.store.GetEvent(ctx, id); errors.Is(err, repository.ErrNotFound) {
			fresh = append(fresh, id)
		}
		events = append(events, result.Events[id])
	}

	if err := s.store.SaveEvents(ctx, events); err != nil {
		return fmt.Errorf("error caching events: %w", err)
	}
	for _, id := range result.EventIDs {
		if err := s.store.SaveStations(ctx, id, rankKey, result.Stations[id]); err != nil {
			return fmt.Errorf("error caching stations for %s: %w", id, err)
		}
	}

	if s.broadcaster != nil {
		for _, id := range fresh {
			e := result.Events[id]
			s.broadcaster.Broadcast(&e)
		}
	}
	return nil
}
