package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/mr1hm/go-quake-search/internal/fdsn"
	"github.com/mr1hm/go-quake-search/internal/models"
	"github.com/mr1hm/go-quake-search/internal/mseed"
	"github.com/mr1hm/go-quake-search/internal/repository"
)

const DefaultMaxWaveforms = 5

// Waveforms fetches waveform data for the stations of one of an event's
// rankings and returns at most limit stations that have data, in rank
// order. Stations without data are skipped.
func (s *Service) Waveforms(ctx context.Context, eventID string, r models.Ranking, limit int) ([]models.StationWaveforms, error) {
	if limit <= 0 {
		limit = DefaultMaxWaveforms
	}

	event, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	stations, err := s.store.GetStations(ctx, eventID, s.rankingKey(r))
	if err != nil {
		return nil, err
	}

	start := event.StartTime
	end := start.Add(s.opts.WaveformWindow)

	segments := make([][]models.Waveform, len(stations))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.WaveformFetchers)
	for i := range stations {
		st := stations[i]
		g.Go(func() error {
			key := repository.WaveformKey{SeedID: st.ID(), Start: start, End: end}
			w, err := s.waveform(gctx, event.Provider, key)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				slog.Warn("waveform fetch failed", "event_id", eventID, "seed_id", st.SeedID, "error", err)
				return nil
			}
			segments[i] = w
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := []models.StationWaveforms{}
	for i, st := range stations {
		if len(segments[i]) == 0 {
			continue
		}
		out = append(out, models.StationWaveforms{Station: st, Segments: segments[i]})
		s.metrics.WaveformsServed.Add(float64(len(segments[i])))
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// waveform returns the cached segments for key or fetches and caches them.
// A channel with no data yields no segments and no error.
func (s *Service) waveform(ctx context.Context, provider string, key repository.WaveformKey) ([]models.Waveform, error) {
	cached, err := s.store.GetWaveforms(ctx, key)
	if err == nil {
		s.metrics.CacheLookups.WithLabelValues("waveform", "hit").Inc()
		return cached, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		slog.Warn("waveform cache lookup failed", "seed_id", key.SeedID.String(), "error", err)
	}
	s.metrics.CacheLookups.WithLabelValues("waveform", "miss").Inc()

	body, err := s.waveforms.DataSelect(ctx, fdsn.DataSelectQuery{
		Provider: provider,
		SeedID:   key.SeedID,
		Start:    key.Start,
		End:      key.End,
	})
	if errors.Is(err, fdsn.ErrNoData) {
		slog.Debug("no waveform data", "seed_id", key.SeedID.String())
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	records, err := mseed.Parse(body)
	if err != nil && len(records) == 0 {
		return nil, fmt.Errorf("error decoding miniseed: %w", err)
	}
	if err != nil {
		slog.Warn("partial miniseed decode", "seed_id", key.SeedID.String(), "records", len(records), "error", err)
	}

	var segments []models.Waveform
	for _, w := range mseed.Merge(records) {
		if w.SeedID == key.SeedID {
			segments = append(segments, w)
		}
	}
	if len(segments) == 0 {
		return nil, nil
	}

	if err := s.store.SaveWaveforms(ctx, key, segments); err != nil {
		slog.Warn("failed to cache waveform", "seed_id", key.SeedID.String(), "error", err)
	}
	return segments, nil
}
